package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cmpt474/mm-login-gateway/config"
	"github.com/cmpt474/mm-login-gateway/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	infra, err := bootstrap.ConnectInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close infrastructure failed", "error", cerr)
		}
	}()

	// Run migrations if enabled
	if infra.DB != nil {
		if cfg.Postgres.RunMigrationsOnStart {
			if err = bootstrap.RunMigrations(ctx, infra.DB, logger); err != nil {
				return err
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	gw, err := bootstrap.BuildGateway(bootstrap.GatewayDeps{
		Config:   &cfg,
		Infra:    infra,
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.ServeUntilSignal(ctx, &bootstrap.HTTPServerConfig{
		Config:  &cfg,
		Gateway: gw,
		Logger:  logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting login gateway",
		"addr", cfg.HTTP.Addr,
		"gateway_domain", cfg.Token.GatewayDomain,
		"webapp_domain", cfg.Token.WebappDomain,
		"store", cfg.Store.Driver,
		"lock", cfg.Store.LockDriver,
		"legacy_login", cfg.LegacyLoginEnabled,
		"dev", cfg.IsDev)
}
