// Package main is the entry point for the beneplan checkout API server.
//
// It loads configuration, connects to Postgres, applies migrations, wires the
// domain components against the real gateway and loyalty clients (or stubs in
// local/test mode), and serves HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"beneplan/internal/api/handlers"
	"beneplan/internal/catalog"
	"beneplan/internal/checkout"
	"beneplan/internal/config"
	"beneplan/internal/core"
	"beneplan/internal/db"
	"beneplan/internal/eligibility"
	"beneplan/internal/external"
	"beneplan/internal/metrics"
	"beneplan/internal/migrations"
	"beneplan/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("checkout API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Repositories.
	profileRepo := db.NewProfileRepository(pool)
	eligibilityRepo := db.NewEligibilityRepository(pool, logger)
	planRepo := db.NewPlanRepository(pool)
	accountRepo := db.NewAccountRepository(pool)
	subscriptionRepo := db.NewSubscriptionRepository(pool)
	entitlementRepo := db.NewEntitlementRepository(pool)

	// External clients. Local and test modes get loopback stubs so the
	// checkout flow works without gateway credentials.
	gateway, loyalty := buildClients(cfg, logger)

	metricsReg := metrics.NewRegistry()

	// Domain components.
	resolver := eligibility.NewResolver(profileRepo, eligibilityRepo, logger)
	synchronizer := catalog.NewSynchronizer(planRepo, gateway, cfg.Catalog.PageLimit, logger)
	activator := checkout.NewActivator(subscriptionRepo, entitlementRepo, planRepo, loyalty, logger)
	orchestrator := checkout.NewOrchestrator(profileRepo, accountRepo, subscriptionRepo, gateway, activator, logger)
	sweeper := scheduler.NewSweeper(subscriptionRepo, profileRepo, gateway, activator, scheduler.SweeperConfig{
		Lookback:    cfg.Sweep.Window,
		BatchLimit:  cfg.Sweep.BatchLimit,
		Parallelism: cfg.Sweep.Parallelism,
	}, logger)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metricsReg
	srv.MetricsHandler = metricsReg.Handler()
	srv.HealthProbes = []core.HealthProbe{
		core.PingProbe{ProbeName: "database", Target: pool},
	}

	checkoutHandler := handlers.NewCheckoutHandler(
		resolver,
		planCatalog{planRepo, eligibilityRepo},
		synchronizer, orchestrator, srv.Validator, metricsReg, logger,
	)
	webhookHandler := handlers.NewPaymentWebhookHandler(
		cfg.Gateway.WebhookToken.Unmask(), subscriptionRepo, profileRepo, activator, metricsReg, logger,
	)
	sweepHandler := handlers.NewSweepHandler(
		cfg.Sweep.Secret.Unmask(), sweeper, metricsReg, logger,
	)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { checkoutHandler.RegisterRoutes(r) },
		func(r chi.Router) { webhookHandler.RegisterRoutes(r) },
		func(r chi.Router) { sweepHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()
	return runHTTPServer(srv, cfg, logger)
}

// planCatalog joins the two repositories behind the plan listing endpoint:
// the consumer catalog lives on PlanRepository, the negotiated contract
// listing on EligibilityRepository.
type planCatalog struct {
	*db.PlanRepository
	*db.EligibilityRepository
}

// buildClients returns the gateway and loyalty services, stubbed in local and
// test modes.
func buildClients(cfg *config.Config, logger *slog.Logger) (external.GatewayService, external.LoyaltyService) {
	if cfg.Environment == "local" || cfg.IsTestMode {
		logger.Info("using stubbed gateway and loyalty clients")
		return external.NewStubGatewayService(logger), external.NewStubLoyaltyService(logger)
	}

	gateway := external.NewGatewayClient(
		&http.Client{Timeout: cfg.Gateway.Timeout},
		external.GatewayClientConfig{
			APIKey:  cfg.Gateway.APIKey.Unmask(),
			BaseURL: cfg.Gateway.BaseURL,
			Logger:  logger,
		},
	)
	loyalty := external.NewLoyaltyClient(
		&http.Client{Timeout: cfg.Loyalty.Timeout},
		external.LoyaltyClientConfig{
			APIKey:  cfg.Loyalty.APIKey.Unmask(),
			BaseURL: cfg.Loyalty.BaseURL,
			Logger:  logger,
		},
	)
	return gateway, loyalty
}

// runMigrations opens a short-lived database/sql connection for the migrate
// driver and applies pending migrations.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL.Unmask())
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return migrations.Run(sqlDB, cfg.Database.MigrationsPath, logger)
}

// runHTTPServer serves until a shutdown signal or a listener error.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return srv.Shutdown(shutdownCtx)
}

// newLogger builds the process-wide JSON logger.
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
