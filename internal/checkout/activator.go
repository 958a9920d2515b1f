// Package checkout implements the subscription write path and the
// entitlement activation state machine behind it.
package checkout

import (
	"context"
	"log/slog"
	"time"

	"beneplan/internal/external"
	"beneplan/internal/types"
)

// SubscriptionStore abstracts the subscription writes the activator and the
// orchestrator need.
type SubscriptionStore interface {
	Insert(ctx context.Context, s *types.Subscription) (*types.Subscription, error)
	UpdateStatus(ctx context.Context, id string, status types.SubscriptionStatus) error
}

// EntitlementStore abstracts the entitlement table. Insert must be backed by
// a storage-level uniqueness guard on active (profile_id, source_id) pairs
// and report whether the row was actually created.
type EntitlementStore interface {
	ActiveBySource(ctx context.Context, profileID, sourceID string) (*types.Entitlement, error)
	Insert(ctx context.Context, e *types.Entitlement) (inserted bool, err error)
}

// PlanReader abstracts the plan lookup used to derive entitlement expiry.
type PlanReader interface {
	GetByID(ctx context.Context, id string) (*types.Plan, error)
}

// ActivationInput identifies the confirmed payment to activate. All three
// reconciliation triggers build this from the local subscription row.
type ActivationInput struct {
	ProfileID      string
	SubscriptionID string
	PlanID         string
	TaxID          string
	FullName       string
}

// Activator grants entitlements for confirmed payments. It is the sole
// writer of the subscription "active" status and the sole creator of
// entitlement rows; every reconciliation trigger converges here, and the
// idempotency check plus the store's uniqueness guard make concurrent or
// duplicate triggering safe.
type Activator struct {
	subscriptions SubscriptionStore
	entitlements  EntitlementStore
	plans         PlanReader
	loyalty       external.LoyaltyService
	logger        *slog.Logger
}

// NewActivator creates an Activator.
func NewActivator(
	subscriptions SubscriptionStore,
	entitlements EntitlementStore,
	plans PlanReader,
	loyalty external.LoyaltyService,
	logger *slog.Logger,
) *Activator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activator{
		subscriptions: subscriptions,
		entitlements:  entitlements,
		plans:         plans,
		loyalty:       loyalty,
		logger:        logger,
	}
}

// Activate marks the subscription active, grants the entitlement, and syncs
// the buyer to the loyalty platform.
//
// The idempotency check runs first, unconditionally: when an active
// entitlement already exists for the (profile, subscription) pair the call
// returns Skipped=true with zero writes. When two triggers race past the
// check, the entitlement insert's uniqueness guard lets exactly one create
// the row; the loser also reports Skipped.
//
// A loyalty sync failure does not fail the activation: the entitlement
// stands and the sub-result carries the upstream status.
func (a *Activator) Activate(ctx context.Context, input ActivationInput) *types.ActivationResult {
	existing, err := a.entitlements.ActiveBySource(ctx, input.ProfileID, input.SubscriptionID)
	if err != nil {
		return &types.ActivationResult{Error: err.Error()}
	}
	if existing != nil {
		a.logger.InfoContext(ctx, "entitlement already granted, skipping",
			"profile_id", input.ProfileID,
			"subscription_id", input.SubscriptionID,
		)
		return &types.ActivationResult{OK: true, Skipped: true, Entitlement: existing}
	}

	if err := a.subscriptions.UpdateStatus(ctx, input.SubscriptionID, types.SubStatusActive); err != nil {
		return &types.ActivationResult{Error: err.Error()}
	}

	entitlement := &types.Entitlement{
		ProfileID:  input.ProfileID,
		ProductID:  input.PlanID,
		SourceType: types.EntitlementSourceSubscription,
		SourceID:   input.SubscriptionID,
		Status:     types.EntitlementStatusActive,
		ExpiresAt:  a.expiry(ctx, input.PlanID),
	}
	inserted, err := a.entitlements.Insert(ctx, entitlement)
	if err != nil {
		return &types.ActivationResult{Error: err.Error()}
	}
	if !inserted {
		// A concurrent trigger won the insert race.
		a.logger.InfoContext(ctx, "entitlement insert lost the race, skipping",
			"profile_id", input.ProfileID,
			"subscription_id", input.SubscriptionID,
		)
		return &types.ActivationResult{OK: true, Skipped: true}
	}

	result := &types.ActivationResult{OK: true, Entitlement: entitlement}

	syncResult, syncErr := a.loyalty.SyncUser(ctx, input.TaxID, input.FullName)
	result.LoyaltySync = syncResult
	if syncErr != nil {
		a.logger.WarnContext(ctx, "loyalty sync failed after entitlement grant",
			"profile_id", input.ProfileID,
			"http_status", syncResult.HTTPStatus,
			"error", syncErr,
		)
	}

	a.logger.InfoContext(ctx, "entitlement activated",
		"profile_id", input.ProfileID,
		"subscription_id", input.SubscriptionID,
		"expires_at", entitlement.ExpiresAt,
		"loyalty_ok", result.LoyaltySync.OK,
	)
	return result
}

// expiry derives the entitlement window from the plan's billing interval:
// one month for monthly plans, one year for yearly. When the plan cannot be
// read or carries an unknown interval, fall back to one year.
func (a *Activator) expiry(ctx context.Context, planID string) time.Time {
	now := time.Now().UTC()

	plan, err := a.plans.GetByID(ctx, planID)
	if err != nil {
		a.logger.WarnContext(ctx, "plan lookup failed, defaulting entitlement expiry to one year",
			"plan_id", planID,
			"error", err,
		)
		return now.AddDate(1, 0, 0)
	}

	switch plan.Interval {
	case types.IntervalMonthly:
		return now.AddDate(0, 1, 0)
	case types.IntervalYearly:
		return now.AddDate(1, 0, 0)
	default:
		return now.AddDate(1, 0, 0)
	}
}
