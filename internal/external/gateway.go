package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"beneplan/internal/types"
)

// GatewayClientConfig holds the configuration for creating a GatewayClient.
type GatewayClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// GatewayClient implements GatewayService by calling the billing gateway's
// REST API through BaseClient. The gateway authenticates with HTTP basic
// auth, API key as the username and a blank password.
type GatewayClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewGatewayClient creates a new GatewayClient.
func NewGatewayClient(httpClient *http.Client, cfg GatewayClientConfig) *GatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"gateway",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"beneplan/1.0",
	)

	return &GatewayClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewGatewayClientWithBase creates a GatewayClient with a pre-configured
// BaseClient, used by tests to disable retry delays.
func NewGatewayClientWithBase(base *BaseClient, cfg GatewayClientConfig) *GatewayClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GatewayClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// ---------------------------------------------------------------------------
// GatewayService implementation
// ---------------------------------------------------------------------------

type gatewayCustomerList struct {
	TotalItems int               `json:"totalItems"`
	Items      []GatewayCustomer `json:"items"`
}

// EnsureCustomer looks the customer up by email first and creates one only
// when the search comes back empty.
func (g *GatewayClient) EnsureCustomer(ctx context.Context, email, name, taxID string) (string, error) {
	query := url.Values{}
	query.Set("query", email)
	query.Set("limit", "1")

	var list gatewayCustomerList
	if err := g.doJSON(ctx, http.MethodGet, "/v1/customers?"+query.Encode(), nil, &list, "EnsureCustomer"); err != nil {
		return "", err
	}
	if len(list.Items) > 0 {
		return list.Items[0].ID, nil
	}

	payload := map[string]string{
		"email":    email,
		"name":     name,
		"cpf_cnpj": taxID,
	}
	var created GatewayCustomer
	if err := g.doJSON(ctx, http.MethodPost, "/v1/customers", payload, &created, "EnsureCustomer"); err != nil {
		return "", err
	}
	return created.ID, nil
}

// CreatePaymentMethod exchanges the one-time card token for a durable
// payment method attached to the customer and marked as its default.
func (g *GatewayClient) CreatePaymentMethod(ctx context.Context, customerID, token string) (string, error) {
	payload := map[string]any{
		"description":    "checkout card",
		"token":          token,
		"set_as_default": true,
	}

	var out struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/v1/customers/%s/payment_methods", url.PathEscape(customerID))
	if err := g.doJSON(ctx, http.MethodPost, path, payload, &out, "CreatePaymentMethod"); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateSubscription creates the gateway recurring-billing resource.
// only_on_charge_success=false keeps the subscription alive when the first
// charge attempt fails, so the webhook and the sweep have a resource to
// reconcile against.
func (g *GatewayClient) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*GatewaySubscription, error) {
	payload := map[string]any{
		"plan_identifier":        params.PlanIdentifier,
		"customer_id":            params.CustomerID,
		"payable_with":           string(params.PayableWith),
		"only_on_charge_success": false,
	}
	if params.PaymentMethodID != "" {
		payload["customer_payment_method_id"] = params.PaymentMethodID
	}

	var sub GatewaySubscription
	if err := g.doJSON(ctx, http.MethodPost, "/v1/subscriptions", payload, &sub, "CreateSubscription"); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscription fetches a subscription with its recent invoices embedded.
func (g *GatewayClient) GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	var sub GatewaySubscription
	path := "/v1/subscriptions/" + url.PathEscape(id)
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &sub, "GetSubscription"); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetInvoice fetches a single invoice by id.
func (g *GatewayClient) GetInvoice(ctx context.Context, id string) (*GatewayInvoice, error) {
	var inv GatewayInvoice
	path := "/v1/invoices/" + url.PathEscape(id)
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &inv, "GetInvoice"); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ChargeInvoice issues an immediate charge against a pending invoice. A
// declined charge is not an error here: the caller re-fetches the invoice
// for the authoritative post-charge status, so only transport and API
// failures surface.
func (g *GatewayClient) ChargeInvoice(ctx context.Context, invoiceID, paymentMethodID string) error {
	payload := map[string]string{
		"invoice_id":                 invoiceID,
		"customer_payment_method_id": paymentMethodID,
	}

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := g.doJSON(ctx, http.MethodPost, "/v1/charge", payload, &out, "ChargeInvoice"); err != nil {
		return err
	}
	if !out.Success {
		g.logger.InfoContext(ctx, "gateway declined invoice charge",
			"invoice_id", invoiceID,
			"message", out.Message,
		)
	}
	return nil
}

type gatewayPlanList struct {
	TotalItems int               `json:"totalItems"`
	Items      []gatewayWirePlan `json:"items"`
}

type gatewayWirePlan struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Interval     int    `json:"interval"`
	IntervalType string `json:"interval_type"`
	Prices       []struct {
		ValueCents int64 `json:"value_cents"`
	} `json:"prices"`
}

// ListPlans returns up to limit entries of the gateway plan catalog.
func (g *GatewayClient) ListPlans(ctx context.Context, limit int) ([]*GatewayPlan, error) {
	var list gatewayPlanList
	path := "/v1/plans?limit=" + strconv.Itoa(limit)
	if err := g.doJSON(ctx, http.MethodGet, path, nil, &list, "ListPlans"); err != nil {
		return nil, err
	}

	plans := make([]*GatewayPlan, 0, len(list.Items))
	for _, item := range list.Items {
		p := &GatewayPlan{
			Identifier: item.Identifier,
			Name:       item.Name,
			Interval:   mapPlanInterval(item.Interval, item.IntervalType),
		}
		if len(item.Prices) > 0 {
			p.PriceCents = item.Prices[0].ValueCents
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// mapPlanInterval folds the gateway's (interval, interval_type) pair into
// the local billing interval enum. Twelve or more months counts as yearly.
func mapPlanInterval(interval int, intervalType string) types.BillingInterval {
	if intervalType == "years" || interval >= 12 {
		return types.IntervalYearly
	}
	return types.IntervalMonthly
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

// doJSON performs one JSON request/response round trip against the gateway
// API, decoding 2xx bodies into out and mapping everything else to a domain
// error.
func (g *GatewayClient) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return types.NewAppError(
				types.ErrCodeInternalUnexpected,
				fmt.Sprintf("%s: failed to marshal gateway payload", operation),
				err,
			)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("%s: failed to create gateway request", operation),
			err,
		)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(g.apiKey, "")

	resp, err := g.base.Do(req)
	if err != nil {
		return g.wrapTransportError(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.handleErrorResponse(resp, operation)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamGateway,
			fmt.Sprintf("%s: gateway returned an unreadable response body", operation),
			err,
		)
	}
	return nil
}

// gatewayErrorResponse is the JSON error envelope the gateway returns.
// Errors may be a plain string or a field-to-messages map.
type gatewayErrorResponse struct {
	Errors json.RawMessage `json:"errors"`
}

func (g *GatewayClient) handleErrorResponse(resp *http.Response, operation string) error {
	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamGateway,
			fmt.Sprintf("%s: gateway returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	errMsg := string(raw)
	var envelope gatewayErrorResponse
	if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && len(envelope.Errors) > 0 {
		errMsg = string(envelope.Errors)
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return types.NewAppError(
			types.ErrCodePaymentDeclined,
			fmt.Sprintf("%s: gateway declined the payment: %s", operation, errMsg),
			nil,
		)
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(
			types.ErrCodeUpstreamGateway,
			fmt.Sprintf("%s: gateway resource not found: %s", operation, errMsg),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: gateway server error: %s", operation, errMsg),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamGateway,
			fmt.Sprintf("%s: gateway error (%d): %s", operation, resp.StatusCode, errMsg),
			nil,
		)
	}
}

// wrapTransportError keeps AppErrors produced by BaseClient (breaker open,
// retries exhausted) as-is and wraps anything else as a gateway failure.
func (g *GatewayClient) wrapTransportError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamGateway,
		fmt.Sprintf("%s: gateway request failed: %v", operation, err),
		err,
	)
}

var _ GatewayService = (*GatewayClient)(nil)
