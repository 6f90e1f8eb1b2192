package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmpt474/mm-login-gateway/config"
	httpx "github.com/cmpt474/mm-login-gateway/internal/http"
	"github.com/cmpt474/mm-login-gateway/internal/observability/metrics"
)

const shutdownWaitTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config  *config.AppConfig
	Gateway *Gateway
	Logger  *slog.Logger
}

// BuildHTTPHandler assembles the router with its middleware and metrics endpoint.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Gateway:        cfg.Gateway.Service,
		AllowedOrigins: appCfg.AllowedOrigins(),
		MaxBodyBytes:   appCfg.HTTP.MaxBodyBytes,
		RateLimit: httpx.NewRateLimiter(httpx.RateLimitConfig{
			Rate:              appCfg.HTTP.LoginRate(),
			Burst:             appCfg.HTTP.LoginBurst,
			TrustProxyHeaders: appCfg.HTTP.TrustProxyHeaders,
		}),
		Metrics: cfg.Gateway.Metrics,
		Logger:  logger,
	}
	if appCfg.Metrics.Enabled && cfg.Gateway.Registry != nil {
		services.MetricsHandler = metrics.Handler(cfg.Gateway.Registry)
		services.MetricsPath = appCfg.Metrics.Path
	}
	return httpx.NewRouter(services)
}

// StartHTTPServer creates and starts the HTTP server.
// Listener failures are delivered on the returned channel.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, <-chan error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := ":8080"
	if cfg.Config != nil && cfg.Config.HTTP.Addr != "" {
		addr = cfg.Config.HTTP.Addr
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           BuildHTTPHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return server, errCh
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownWaitTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("HTTP server stopped")
	return nil
}

// ServeUntilSignal runs the HTTP server until SIGINT/SIGTERM, ctx cancellation, or a listener failure.
func ServeUntilSignal(ctx context.Context, cfg *HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, errCh := StartHTTPServer(cfg)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return ShutdownHTTPServer(context.WithoutCancel(ctx), server, logger)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		logger.Error("HTTP server failed", "error", err)
		return err
	}
}
