// Package main is the scheduled reconciliation runner. One invocation runs a
// single catalog sync plus a single payment sweep, which makes it
// cron-friendly; -interval switches to continuous ticker mode for
// environments without an external scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"beneplan/internal/catalog"
	"beneplan/internal/checkout"
	"beneplan/internal/config"
	"beneplan/internal/db"
	"beneplan/internal/external"
	"beneplan/internal/scheduler"
)

func main() {
	interval := flag.Duration("interval", 0, "run continuously on this interval instead of once")
	flag.Parse()

	if err := run(*interval); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(interval time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("sweeper starting", "environment", cfg.Environment, "interval", interval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	profileRepo := db.NewProfileRepository(pool)
	planRepo := db.NewPlanRepository(pool)
	subscriptionRepo := db.NewSubscriptionRepository(pool)
	entitlementRepo := db.NewEntitlementRepository(pool)

	gateway, loyalty := buildClients(cfg, logger)

	synchronizer := catalog.NewSynchronizer(planRepo, gateway, cfg.Catalog.PageLimit, logger)
	activator := checkout.NewActivator(subscriptionRepo, entitlementRepo, planRepo, loyalty, logger)
	sweeper := scheduler.NewSweeper(subscriptionRepo, profileRepo, gateway, activator, scheduler.SweeperConfig{
		Lookback:    cfg.Sweep.Window,
		BatchLimit:  cfg.Sweep.BatchLimit,
		Parallelism: cfg.Sweep.Parallelism,
	}, logger)

	if interval <= 0 {
		return runOnce(ctx, synchronizer, sweeper, logger)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := runOnce(ctx, synchronizer, sweeper, logger); err != nil {
			logger.Error("reconciliation pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// runOnce performs one catalog sync and one payment sweep. A catalog failure
// does not block the sweep; the two reconcile independent state.
func runOnce(ctx context.Context, synchronizer *catalog.Synchronizer, sweeper *scheduler.Sweeper, logger *slog.Logger) error {
	if report, err := synchronizer.Sync(ctx); err != nil {
		logger.Error("catalog sync failed", "error", err)
	} else {
		logger.Info("catalog sync finished",
			"inserted", report.Inserted,
			"updated", report.Updated,
			"deactivated", report.Deactivated,
			"unchanged", report.Unchanged,
			"errors", report.Errors,
		)
	}

	report, err := sweeper.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("sweep finished",
		"found", report.Found,
		"activated", report.Activated,
		"canceled", report.Canceled,
		"still_pending", report.StillPending,
		"errors", report.Errors,
	)
	return nil
}

func buildClients(cfg *config.Config, logger *slog.Logger) (external.GatewayService, external.LoyaltyService) {
	if cfg.Environment == "local" || cfg.IsTestMode {
		logger.Info("using stubbed gateway and loyalty clients")
		return external.NewStubGatewayService(logger), external.NewStubLoyaltyService(logger)
	}
	return external.NewGatewayClient(
			newHTTPClient(cfg.Gateway.Timeout),
			external.GatewayClientConfig{
				APIKey:  cfg.Gateway.APIKey.Unmask(),
				BaseURL: cfg.Gateway.BaseURL,
				Logger:  logger,
			},
		), external.NewLoyaltyClient(
			newHTTPClient(cfg.Loyalty.Timeout),
			external.LoyaltyClientConfig{
				APIKey:  cfg.Loyalty.APIKey.Unmask(),
				BaseURL: cfg.Loyalty.BaseURL,
				Logger:  logger,
			},
		)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
