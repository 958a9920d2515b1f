package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"beneplan/internal/types"
)

// LoyaltyClientConfig holds the configuration for creating a LoyaltyClient.
type LoyaltyClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// LoyaltyClient implements LoyaltyService against the benefits platform's
// user-sync API. The operation is an idempotent upsert keyed by tax id, so
// repeated syncs for the same buyer are harmless.
type LoyaltyClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewLoyaltyClient creates a new LoyaltyClient.
func NewLoyaltyClient(httpClient *http.Client, cfg LoyaltyClientConfig) *LoyaltyClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"loyalty",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    500 * time.Millisecond,
			MaxWait:    3 * time.Second,
		},
		"beneplan/1.0",
	)

	return &LoyaltyClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewLoyaltyClientWithBase creates a LoyaltyClient with a pre-configured
// BaseClient, used by tests to disable retry delays.
func NewLoyaltyClientWithBase(base *BaseClient, cfg LoyaltyClientConfig) *LoyaltyClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LoyaltyClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// SyncUser upserts the buyer on the loyalty platform. The returned result
// carries the upstream HTTP status; a non-2xx status yields OK=false along
// with an error describing the failure, and the caller decides whether that
// failure is fatal.
func (l *LoyaltyClient) SyncUser(ctx context.Context, taxID, name string) (types.LoyaltySyncResult, error) {
	payload := map[string]string{
		"document": taxID,
		"name":     name,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return types.LoyaltySyncResult{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"SyncUser: failed to marshal loyalty payload",
			err,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/users/sync", bytes.NewReader(raw))
	if err != nil {
		return types.LoyaltySyncResult{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"SyncUser: failed to create loyalty request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.base.Do(req)
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok {
			return types.LoyaltySyncResult{}, appErr
		}
		return types.LoyaltySyncResult{}, types.NewAppError(
			types.ErrCodeUpstreamLoyalty,
			fmt.Sprintf("SyncUser: loyalty request failed: %v", err),
			err,
		)
	}
	defer resp.Body.Close()

	result := types.LoyaltySyncResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode <= 299,
		HTTPStatus: resp.StatusCode,
	}
	if !result.OK {
		return result, types.NewAppError(
			types.ErrCodeUpstreamLoyalty,
			fmt.Sprintf("SyncUser: loyalty platform returned %d", resp.StatusCode),
			nil,
		)
	}
	return result, nil
}

var _ LoyaltyService = (*LoyaltyClient)(nil)
