package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"beneplan/internal/types"
)

// SubscriptionRepository provides data access for the subscriptions table.
// Rows are created by the checkout orchestrator; status transitions are
// written by the entitlement activator and the reconciliation sweep.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a new SubscriptionRepository backed by
// the given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `s.id, s.profile_id, s.account_id, s.plan_id,
	s.gateway_subscription_id, s.gateway_customer_id, s.payment_method, s.status,
	s.created_at, s.updated_at`

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	err := row.Scan(
		&s.ID,
		&s.ProfileID,
		&s.AccountID,
		&s.PlanID,
		&s.GatewaySubscriptionID,
		&s.GatewayCustomerID,
		&s.PaymentMethod,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Insert creates a subscription row with a generated identifier.
func (r *SubscriptionRepository) Insert(ctx context.Context, s *types.Subscription) (*types.Subscription, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (id, profile_id, account_id, plan_id,
		   gateway_subscription_id, gateway_customer_id, payment_method, status,
		   created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		s.ID, s.ProfileID, s.AccountID, s.PlanID,
		s.GatewaySubscriptionID, s.GatewayCustomerID, s.PaymentMethod, s.Status,
		now,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to insert subscription", err)
	}
	return s, nil
}

// GetByID retrieves a subscription by its local identifier.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.id = $1`,
		id,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// GetByGatewayID retrieves a subscription by its gateway subscription id.
// Returns ErrCodeNotFoundSubscription when no local row references it, which
// webhook processing treats as accept-and-ignore: the event may belong to
// another system sharing the gateway account.
func (r *SubscriptionRepository) GetByGatewayID(ctx context.Context, gatewayID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.gateway_subscription_id = $1`,
		gatewayID,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// UpdateStatus transitions a subscription to the given status.
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, id string, status types.SubscriptionStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $2, updated_at = $3
		 WHERE id = $1`,
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
	}
	return nil
}

// ListPendingSince returns up to limit subscriptions still in pending_payment
// created within the trailing window, oldest first. This is the sweep's work
// queue.
func (r *SubscriptionRepository) ListPendingSince(ctx context.Context, since time.Time, limit int) ([]*types.Subscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.status = 'pending_payment' AND s.created_at >= $1
		 ORDER BY s.created_at ASC
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query pending subscriptions", err)
	}
	defer rows.Close()

	var subs []*types.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan subscription", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read subscriptions", err)
	}
	return subs, nil
}
