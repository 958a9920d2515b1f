// Package scheduler implements the periodic reconciliation passes that close
// the gap between gateway state and local state when neither the inline
// checkout path nor the webhook delivered a terminal status.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"beneplan/internal/checkout"
	"beneplan/internal/external"
	"beneplan/internal/types"
)

const (
	defaultLookback    = 72 * time.Hour
	defaultBatchLimit  = 100
	defaultParallelism = 4
)

// SubscriptionSource lists and transitions locally pending subscriptions.
type SubscriptionSource interface {
	ListPendingSince(ctx context.Context, since time.Time, limit int) ([]*types.Subscription, error)
	UpdateStatus(ctx context.Context, id string, status types.SubscriptionStatus) error
}

// ProfileReader loads the buyer behind a pending subscription.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (*types.BuyerProfile, error)
}

// Activator grants the entitlement once a payment is confirmed.
type Activator interface {
	Activate(ctx context.Context, in checkout.ActivationInput) *types.ActivationResult
}

// SweeperConfig tunes one sweep pass. Zero values fall back to defaults.
type SweeperConfig struct {
	Lookback    time.Duration
	BatchLimit  int
	Parallelism int
}

// Sweeper re-checks locally pending subscriptions against the gateway and
// settles each one: activate, cancel, or leave pending for the next pass.
type Sweeper struct {
	subscriptions SubscriptionSource
	profiles      ProfileReader
	gateway       external.GatewayService
	activator     Activator
	cfg           SweeperConfig
	logger        *slog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(
	subscriptions SubscriptionSource,
	profiles ProfileReader,
	gateway external.GatewayService,
	activator Activator,
	cfg SweeperConfig,
	logger *slog.Logger,
) *Sweeper {
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		subscriptions: subscriptions,
		profiles:      profiles,
		gateway:       gateway,
		activator:     activator,
		cfg:           cfg,
		logger:        logger,
	}
}

// Run executes one sweep pass. Per-subscription failures are counted and
// logged; only the initial listing is fatal. A report is always returned,
// even alongside an error.
func (s *Sweeper) Run(ctx context.Context) (*types.SweepReport, error) {
	report := &types.SweepReport{StartedAt: time.Now().UTC()}

	since := report.StartedAt.Add(-s.cfg.Lookback)
	pending, err := s.subscriptions.ListPendingSince(ctx, since, s.cfg.BatchLimit)
	if err != nil {
		report.FinishedAt = time.Now().UTC()
		return report, err
	}
	report.Found = len(pending)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, sub := range pending {
		g.Go(func() error {
			outcome := s.settle(gctx, sub)
			mu.Lock()
			report.Processed++
			switch outcome {
			case settledActivated:
				report.Activated++
			case settledCanceled:
				report.Canceled++
			case settledStillPending:
				report.StillPending++
			case settledError:
				report.Errors++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	s.logger.InfoContext(ctx, "reconciliation sweep finished",
		"found", report.Found,
		"activated", report.Activated,
		"canceled", report.Canceled,
		"still_pending", report.StillPending,
		"errors", report.Errors,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

type settlement int

const (
	settledStillPending settlement = iota
	settledActivated
	settledCanceled
	settledError
)

// settle resolves a single pending subscription against the gateway.
func (s *Sweeper) settle(ctx context.Context, sub *types.Subscription) settlement {
	gwSub, err := s.gateway.GetSubscription(ctx, sub.GatewaySubscriptionID)
	if err != nil {
		s.logger.WarnContext(ctx, "sweep gateway lookup failed",
			"subscription_id", sub.ID,
			"gateway_subscription_id", sub.GatewaySubscriptionID,
			"error", err,
		)
		return settledError
	}

	if paymentConfirmed(gwSub) {
		profile, err := s.profiles.GetByID(ctx, sub.ProfileID)
		if err != nil {
			s.logger.WarnContext(ctx, "sweep profile lookup failed",
				"subscription_id", sub.ID,
				"profile_id", sub.ProfileID,
				"error", err,
			)
			return settledError
		}
		result := s.activator.Activate(ctx, checkout.ActivationInput{
			ProfileID:      profile.ID,
			SubscriptionID: sub.ID,
			PlanID:         sub.PlanID,
			TaxID:          profile.TaxID,
			FullName:       profile.FullName,
		})
		if result.Error != "" {
			return settledError
		}
		return settledActivated
	}

	switch gwSub.Status {
	case types.GatewaySubExpired, types.GatewaySubSuspended, types.GatewaySubCanceled:
		if err := s.subscriptions.UpdateStatus(ctx, sub.ID, types.SubStatusCanceled); err != nil {
			s.logger.WarnContext(ctx, "sweep cancel transition failed",
				"subscription_id", sub.ID,
				"error", err,
			)
			return settledError
		}
		return settledCanceled
	}
	return settledStillPending
}

// paymentConfirmed treats either signal as proof of payment: the gateway
// flags the subscription active, or its latest invoice settled as paid.
func paymentConfirmed(gwSub *external.GatewaySubscription) bool {
	if gwSub.Active {
		return true
	}
	if inv := gwSub.LatestInvoice(); inv != nil && inv.Status == types.GatewayInvoicePaid {
		return true
	}
	return false
}
