package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beneplan/internal/core"
	"beneplan/internal/metrics"
	"beneplan/internal/types"
)

// sweepSecretHeader carries the shared secret on HTTP-triggered sweeps.
const sweepSecretHeader = "X-Sweep-Secret"

// SweepRunner executes one reconciliation pass.
type SweepRunner interface {
	Run(ctx context.Context) (*types.SweepReport, error)
}

// SweepHandler exposes the reconciliation sweep over HTTP for external
// schedulers that cannot invoke the sweeper binary directly. The shared
// secret travels in the X-Sweep-Secret header or the secret query parameter.
type SweepHandler struct {
	secret  string
	sweeper SweepRunner
	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewSweepHandler creates a SweepHandler. metrics may be nil.
func NewSweepHandler(secret string, sweeper SweepRunner, reg *metrics.Registry, logger *slog.Logger) *SweepHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepHandler{secret: secret, sweeper: sweeper, metrics: reg, logger: logger}
}

// RegisterRoutes mounts the sweep trigger under /v1.
func (h *SweepHandler) RegisterRoutes(r chi.Router) {
	r.Post("/sweep", h.Handle)
}

// Handle authenticates the caller and runs one sweep pass.
func (h *SweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get(sweepSecretHeader)
	if provided == "" {
		provided = r.URL.Query().Get("secret")
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		h.logger.WarnContext(r.Context(), "sweep trigger rejected")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthSweepSecret,
			"invalid sweep secret",
			nil,
		))
		return
	}

	report, err := h.sweeper.Run(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSweep(report)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}
