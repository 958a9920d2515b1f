package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"beneplan/internal/checkout"
	"beneplan/internal/core"
	"beneplan/internal/metrics"
	"beneplan/internal/types"
)

// maxWebhookBodySize caps gateway notification payloads at 64 KB.
const maxWebhookBodySize = 64 * 1024

// SubscriptionLookup finds the local row a gateway notification refers to.
type SubscriptionLookup interface {
	GetByGatewayID(ctx context.Context, gatewayID string) (*types.Subscription, error)
}

// ProfileLookup loads the buyer behind a subscription.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*types.BuyerProfile, error)
}

// EntitlementActivator grants the entitlement once payment is confirmed.
type EntitlementActivator interface {
	Activate(ctx context.Context, in checkout.ActivationInput) *types.ActivationResult
}

// PaymentWebhookHandler processes asynchronous payment notifications from the
// billing gateway. The endpoint is unauthenticated; the shared token embedded
// in the payload is the only credential, so it is compared in constant time.
//
// The gateway retries undelivered notifications, so every ignorable condition
// answers 200 and only genuinely retryable failures answer 5xx.
type PaymentWebhookHandler struct {
	token         string
	subscriptions SubscriptionLookup
	profiles      ProfileLookup
	activator     EntitlementActivator
	metrics       *metrics.Registry
	logger        *slog.Logger
}

// NewPaymentWebhookHandler creates a PaymentWebhookHandler. metrics may be nil.
func NewPaymentWebhookHandler(
	token string,
	subscriptions SubscriptionLookup,
	profiles ProfileLookup,
	activator EntitlementActivator,
	reg *metrics.Registry,
	logger *slog.Logger,
) *PaymentWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentWebhookHandler{
		token:         token,
		subscriptions: subscriptions,
		profiles:      profiles,
		activator:     activator,
		metrics:       reg,
		logger:        logger,
	}
}

// RegisterRoutes mounts the webhook endpoint under /v1.
func (h *PaymentWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/payments", h.Handle)
}

// webhookAck is the acknowledgment body. Skipped reports whether the event
// was accepted without triggering any state change.
type webhookAck struct {
	Skipped bool `json:"skipped"`
}

// Handle decodes, authenticates, and processes one payment notification.
func (h *PaymentWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil || len(payload) == 0 {
		h.recordEvent("rejected")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"webhook body must not be empty",
			err,
		))
		return
	}

	event, err := decodePaymentEvent(r.Header.Get("Content-Type"), payload)
	if err != nil {
		h.recordEvent("rejected")
		core.Error(w, r, err)
		return
	}

	if subtle.ConstantTimeCompare([]byte(event.Token), []byte(h.token)) != 1 {
		h.logger.WarnContext(ctx, "webhook token mismatch", "event", event.Event)
		h.recordEvent("rejected")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthWebhookToken,
			"webhook token mismatch",
			nil,
		))
		return
	}

	skipped, err := h.process(ctx, event)
	if err != nil {
		h.recordEvent("error")
		core.Error(w, r, err)
		return
	}
	if skipped {
		h.recordEvent("skipped")
	} else {
		h.recordEvent("processed")
	}
	core.JSON(w, r, http.StatusOK, webhookAck{Skipped: skipped})
}

// process applies the event. It returns skipped=true for every condition the
// gateway should not retry: wrong event type, non-paid status, unknown
// subscription, or an already-active subscription.
func (h *PaymentWebhookHandler) process(ctx context.Context, event *types.PaymentEvent) (bool, error) {
	if event.Event != types.EventInvoiceStatusChanged {
		h.logger.InfoContext(ctx, "ignoring webhook event type", "event", event.Event)
		return true, nil
	}
	if event.InvoiceStatus != types.GatewayInvoicePaid {
		h.logger.InfoContext(ctx, "ignoring non-paid invoice status",
			"invoice_id", event.InvoiceID,
			"status", event.InvoiceStatus,
		)
		return true, nil
	}

	sub, err := h.subscriptions.GetByGatewayID(ctx, event.GatewaySubscriptionID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSubscription {
			h.logger.WarnContext(ctx, "webhook references unknown subscription",
				"gateway_subscription_id", event.GatewaySubscriptionID,
			)
			return true, nil
		}
		return false, err
	}
	if sub.Status == types.SubStatusActive {
		return true, nil
	}

	profile, err := h.profiles.GetByID(ctx, sub.ProfileID)
	if err != nil {
		return false, err
	}

	result := h.activator.Activate(ctx, checkout.ActivationInput{
		ProfileID:      profile.ID,
		SubscriptionID: sub.ID,
		PlanID:         sub.PlanID,
		TaxID:          profile.TaxID,
		FullName:       profile.FullName,
	})
	if result.Error != "" {
		return false, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"activation failed: "+result.Error,
			nil,
		)
	}

	h.logger.InfoContext(ctx, "webhook activated subscription",
		"subscription_id", sub.ID,
		"invoice_id", event.InvoiceID,
		"already_granted", result.Skipped,
	)
	return false, nil
}

func (h *PaymentWebhookHandler) recordEvent(result string) {
	if h.metrics != nil {
		h.metrics.RecordWebhookEvent(result)
	}
}

// decodePaymentEvent normalizes the two wire formats the gateway uses into a
// canonical PaymentEvent: URL-encoded form bodies with the nested data[...]
// prefix, and plain JSON bodies.
func decodePaymentEvent(contentType string, payload []byte) (*types.PaymentEvent, error) {
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(payload))
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"malformed form-encoded webhook body",
				err,
			)
		}
		return &types.PaymentEvent{
			Event:                 values.Get("event"),
			Token:                 values.Get("token"),
			InvoiceID:             values.Get("data[id]"),
			InvoiceStatus:         values.Get("data[status]"),
			GatewaySubscriptionID: values.Get("data[subscription_id]"),
		}, nil
	}

	var event types.PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"malformed JSON webhook body",
			err,
		)
	}
	return &event, nil
}
