// Package catalog keeps the local plan table in step with the billing
// gateway's plan catalog. The gateway is the source of truth for plan name,
// price, and existence; locally we only track the kind classification and
// the contract links.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"beneplan/internal/external"
	"beneplan/internal/types"
)

// priceToleranceCents absorbs one minor unit of rounding drift between the
// gateway's decimal prices and the local integer representation. A delta of
// exactly one cent does not count as a price change; two cents does.
const priceToleranceCents = 1

// PlanStore abstracts the plan table operations the synchronizer needs.
type PlanStore interface {
	ListAll(ctx context.Context, limit int) ([]*types.Plan, error)
	Insert(ctx context.Context, p *types.Plan) error
	UpdateFromGateway(ctx context.Context, id string, name string, priceCents int64, interval types.BillingInterval) error
	SetActive(ctx context.Context, id string, active bool) error
}

// PlanLister abstracts the gateway catalog read.
type PlanLister interface {
	ListPlans(ctx context.Context, limit int) ([]*external.GatewayPlan, error)
}

// Synchronizer reconciles gateway plans into local plan rows.
type Synchronizer struct {
	store     PlanStore
	gateway   PlanLister
	pageLimit int
	logger    *slog.Logger
}

// NewSynchronizer creates a Synchronizer. pageLimit caps both the gateway
// and the local catalog reads.
func NewSynchronizer(store PlanStore, gateway PlanLister, pageLimit int, logger *slog.Logger) *Synchronizer {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		store:     store,
		gateway:   gateway,
		pageLimit: pageLimit,
		logger:    logger,
	}
}

// Sync runs one reconciliation pass. For every gateway plan: insert when
// absent locally, patch when the name drifted, the price moved beyond the
// one-cent tolerance, or the local row was deactivated. Local plans whose
// identifier vanished from the gateway are deactivated. Re-running against
// an unchanged upstream produces zero writes.
//
// Per-plan failures are counted and logged; the batch always runs to the
// end. Only the two catalog reads are fatal.
func (s *Synchronizer) Sync(ctx context.Context) (*types.CatalogSyncReport, error) {
	started := time.Now().UTC()

	upstream, err := s.gateway.ListPlans(ctx, s.pageLimit)
	if err != nil {
		return nil, err
	}
	local, err := s.store.ListAll(ctx, s.pageLimit)
	if err != nil {
		return nil, err
	}

	upstreamByID := make(map[string]*external.GatewayPlan, len(upstream))
	for _, p := range upstream {
		if p.Identifier == "" {
			continue
		}
		upstreamByID[p.Identifier] = p
	}
	localByID := make(map[string]*types.Plan, len(local))
	for _, p := range local {
		localByID[p.GatewayPlanID] = p
	}

	report := &types.CatalogSyncReport{}

	for id, gw := range upstreamByID {
		existing, ok := localByID[id]
		if !ok {
			plan := &types.Plan{
				Name:          gw.Name,
				PriceCents:    gw.PriceCents,
				Interval:      gw.Interval,
				GatewayPlanID: id,
				Kind:          types.PlanKindConsumer,
				Active:        true,
			}
			if err := s.store.Insert(ctx, plan); err != nil {
				report.Errors++
				s.logger.WarnContext(ctx, "catalog sync: insert failed",
					"gateway_plan_id", id,
					"error", err,
				)
				continue
			}
			report.Inserted++
			continue
		}

		if !s.changed(existing, gw) {
			report.Unchanged++
			continue
		}
		if err := s.store.UpdateFromGateway(ctx, existing.ID, gw.Name, gw.PriceCents, gw.Interval); err != nil {
			report.Errors++
			s.logger.WarnContext(ctx, "catalog sync: update failed",
				"plan_id", existing.ID,
				"gateway_plan_id", id,
				"error", err,
			)
			continue
		}
		report.Updated++
	}

	for id, plan := range localByID {
		if _, ok := upstreamByID[id]; ok {
			continue
		}
		if !plan.Active {
			continue
		}
		if err := s.store.SetActive(ctx, plan.ID, false); err != nil {
			report.Errors++
			s.logger.WarnContext(ctx, "catalog sync: deactivate failed",
				"plan_id", plan.ID,
				"error", err,
			)
			continue
		}
		report.Deactivated++
	}

	s.logger.InfoContext(ctx, "catalog sync finished",
		"inserted", report.Inserted,
		"updated", report.Updated,
		"deactivated", report.Deactivated,
		"unchanged", report.Unchanged,
		"errors", report.Errors,
		"duration", time.Since(started),
	)
	return report, nil
}

// changed reports whether the local row drifted from the gateway entry. A
// locally deactivated plan that still exists upstream always counts as
// changed so the update path reactivates it.
func (s *Synchronizer) changed(local *types.Plan, gw *external.GatewayPlan) bool {
	if !local.Active {
		return true
	}
	if local.Name != gw.Name {
		return true
	}
	delta := local.PriceCents - gw.PriceCents
	if delta < 0 {
		delta = -delta
	}
	return delta > priceToleranceCents
}
