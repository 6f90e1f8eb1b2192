package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cmpt474/mm-login-gateway/config"
	"github.com/cmpt474/mm-login-gateway/internal/adapters/cas"
	"github.com/cmpt474/mm-login-gateway/internal/adapters/devauth"
	"github.com/cmpt474/mm-login-gateway/internal/adapters/hcaptcha"
	jwtadapter "github.com/cmpt474/mm-login-gateway/internal/adapters/jwt"
	"github.com/cmpt474/mm-login-gateway/internal/adapters/memstore"
	"github.com/cmpt474/mm-login-gateway/internal/adapters/password"
	redisadapter "github.com/cmpt474/mm-login-gateway/internal/adapters/redis"
	"github.com/cmpt474/mm-login-gateway/internal/data"
	"github.com/cmpt474/mm-login-gateway/internal/observability/metrics"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
	"github.com/cmpt474/mm-login-gateway/internal/service"
)

// GatewayDeps carries everything BuildGateway needs.
type GatewayDeps struct {
	Config *config.AppConfig
	Infra  *Infrastructure
	// Registry receives the gateway's metrics. Nil disables metrics.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// Gateway is the assembled service plus the pieces the HTTP layer needs.
type Gateway struct {
	Service  *service.GatewayService
	Metrics  metrics.Recorder
	Registry *prometheus.Registry
}

// BuildGateway wires adapters selected by configuration into a GatewayService.
func BuildGateway(deps GatewayDeps) (*Gateway, error) {
	if deps.Config == nil {
		return nil, errors.New("gateway: config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	infra := deps.Infra
	if infra == nil {
		infra = &Infrastructure{}
	}

	var rec metrics.Recorder = metrics.Nop{}
	if deps.Registry != nil {
		rec = metrics.NewCollector(deps.Registry)
	}

	tickets, err := buildTicketValidator(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := jwtadapter.NewIssuer(jwtadapter.IssuerOptions{
		Secret:        []byte(cfg.Token.Secret),
		GatewayDomain: cfg.Token.GatewayDomain,
		WebappDomain:  cfg.Token.WebappDomain,
		TTL:           cfg.Token.TTL,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("build token issuer: %w", err)
	}

	users, err := buildUserStore(cfg, infra)
	if err != nil {
		return nil, err
	}
	locker, err := buildLocker(cfg, infra)
	if err != nil {
		return nil, err
	}

	opts := service.GatewayServiceOptions{
		Tickets:           tickets,
		Users:             users,
		Tokens:            tokens,
		Locker:            locker,
		LegacyEnabled:     cfg.LegacyLoginEnabled,
		ElevationCode:     cfg.Mentor.ApplicationPassword,
		EchoElevationCode: cfg.Mentor.EchoCode,
		Metrics:           rec,
		Logger:            logger,
	}
	if cfg.LegacyLoginEnabled {
		verifier, err := hcaptcha.NewVerifier(hcaptcha.VerifierOptions{
			VerifyURL:        cfg.Captcha.VerifyURL,
			Secret:           cfg.Captcha.VerifyKey,
			SiteKey:          cfg.Captcha.SiteKey,
			AllowedOrigin:    cfg.Token.WebappDomain,
			LocalOrigin:      cfg.Captcha.LocalOrigin,
			ExpectedHostname: cfg.Captcha.ExpectedHostname,
			Timeout:          cfg.Captcha.Timeout,
			Logger:           logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build captcha verifier: %w", err)
		}
		opts.Challenge = verifier
		opts.Hasher = password.NewBcryptHasher(password.DefaultCost)
	}

	svc, err := service.NewGatewayService(opts)
	if err != nil {
		return nil, err
	}

	logger.Info("gateway assembled",
		"store", cfg.Store.Driver,
		"lock", cfg.Store.LockDriver,
		"legacy_login", cfg.LegacyLoginEnabled,
	)
	return &Gateway{Service: svc, Metrics: rec, Registry: deps.Registry}, nil
}

//nolint:ireturn // the identity provider is chosen at runtime.
func buildTicketValidator(cfg *config.AppConfig, logger *slog.Logger) (ports.TicketValidator, error) {
	if cfg.DevAuth.Enabled {
		if !cfg.IsDev {
			return nil, errors.New("dev auth requires development mode")
		}
		logger.Warn("dev auth enabled; tickets are not checked", "identity", cfg.DevAuth.Identity)
		v, err := devauth.NewValidator(devauth.Config{Identity: cfg.DevAuth.Identity, Courses: cfg.DevAuth.Courses})
		if err != nil {
			return nil, fmt.Errorf("build dev ticket validator: %w", err)
		}
		return v, nil
	}

	v, err := cas.NewValidator(cas.ValidatorOptions{
		BaseURL: cfg.CAS.BaseURL,
		Timeout: cfg.CAS.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build ticket validator: %w", err)
	}
	return v, nil
}

//nolint:ireturn // the store backend is chosen at runtime.
func buildUserStore(cfg *config.AppConfig, infra *Infrastructure) (ports.UserStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		return memstore.NewUserStore(nil), nil
	case config.StoreDriverPostgres:
		if infra.DB == nil {
			return nil, errors.New("postgres user store requires a database connection")
		}
		return data.NewUserRepo(infra.DB, data.RealTimeProvider{}), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

//nolint:ireturn // the lock backend is chosen at runtime.
func buildLocker(cfg *config.AppConfig, infra *Infrastructure) (ports.IdentityLocker, error) {
	switch cfg.Store.LockDriver {
	case config.LockDriverMemory:
		return memstore.NewKeyedLocker(), nil
	case config.LockDriverRedis:
		if infra.Redis == nil {
			return nil, errors.New("redis lock requires a redis connection")
		}
		return redisadapter.NewIdentityLock(infra.Redis, redisadapter.IdentityLockOptions{
			Prefix: cfg.Redis.KeyPrefix,
			TTL:    cfg.Store.LockTTL,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported lock driver %q", cfg.Store.LockDriver)
	}
}
