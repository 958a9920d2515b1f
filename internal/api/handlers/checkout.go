// Package handlers contains the HTTP handler implementations for the
// beneplan checkout API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beneplan/internal/core"
	"beneplan/internal/metrics"
	"beneplan/internal/types"
)

// EligibilityResolver classifies a buyer by tax id.
type EligibilityResolver interface {
	Resolve(ctx context.Context, taxID string) (*types.EligibilityResult, error)
}

// PlanCatalog is the plan listing surface the checkout page reads from.
type PlanCatalog interface {
	ListActiveByKind(ctx context.Context, kind types.PlanKind) ([]*types.Plan, error)
	ActiveContractPlans(ctx context.Context, orgID string) ([]*types.Plan, error)
}

// CatalogSyncer refreshes the local plan catalog from the gateway.
type CatalogSyncer interface {
	Sync(ctx context.Context) (*types.CatalogSyncReport, error)
}

// Subscriber runs the checkout write path.
type Subscriber interface {
	Subscribe(ctx context.Context, req *types.CheckoutRequest) (*types.CheckoutResponse, error)
}

// CheckoutHandler serves the checkout read and write endpoints.
type CheckoutHandler struct {
	eligibility EligibilityResolver
	plans       PlanCatalog
	syncer      CatalogSyncer
	subscriber  Subscriber
	validator   *core.Validator
	metrics     *metrics.Registry
	logger      *slog.Logger
}

// NewCheckoutHandler creates a CheckoutHandler. syncer, validator, and
// metrics may be nil.
func NewCheckoutHandler(
	eligibility EligibilityResolver,
	plans PlanCatalog,
	syncer CatalogSyncer,
	subscriber Subscriber,
	validator *core.Validator,
	reg *metrics.Registry,
	logger *slog.Logger,
) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		eligibility: eligibility,
		plans:       plans,
		syncer:      syncer,
		subscriber:  subscriber,
		validator:   validator,
		metrics:     reg,
		logger:      logger,
	}
}

// RegisterRoutes mounts the checkout endpoints under /v1.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Get("/checkout/identity", h.HandleIdentity)
	r.Get("/checkout/plans", h.HandlePlans)
	r.Get("/plans", h.HandlePlans)
	r.Post("/checkout/subscriptions", h.HandleSubscribe)
}

// HandleIdentity resolves the buyer's eligibility from the tax_id query
// parameter. Unknown buyers are a successful response with found=false, not
// an error.
func (h *CheckoutHandler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	taxID := r.URL.Query().Get("tax_id")
	if taxID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"tax_id query parameter is required",
			nil,
		))
		return
	}

	result, err := h.eligibility.Resolve(r.Context(), taxID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandlePlans lists the plans the buyer may subscribe to. A negotiated buyer
// sees the plans linked to the organization's active contract, falling back
// to the consumer catalog when the contract links none. The local catalog is
// opportunistically refreshed from the gateway first; a refresh failure only
// logs, the listing proceeds from the last known state.
func (h *CheckoutHandler) HandlePlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.syncer != nil {
		if report, err := h.syncer.Sync(ctx); err != nil {
			h.logger.WarnContext(ctx, "opportunistic catalog sync failed", "error", err)
		} else if h.metrics != nil {
			h.metrics.RecordCatalogSync(report)
		}
	}

	kind := types.PlanKind(r.URL.Query().Get("kind"))
	orgID := r.URL.Query().Get("organization_id")

	var (
		plans []*types.Plan
		err   error
	)
	if kind == types.PlanKindNegotiated && orgID != "" {
		plans, err = h.plans.ActiveContractPlans(ctx, orgID)
		if err == nil && len(plans) == 0 {
			plans, err = h.plans.ListActiveByKind(ctx, types.PlanKindConsumer)
		}
	} else {
		plans, err = h.plans.ListActiveByKind(ctx, types.PlanKindConsumer)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: plans})
}

// HandleSubscribe runs the checkout write path.
func (h *CheckoutHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req types.CheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if h.validator != nil {
		if err := h.validator.ValidateStruct(&req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	resp, err := h.subscriber.Subscribe(r.Context(), &req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCheckoutOutcome(resp.PaymentOutcome)
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: resp})
}
