package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: token, identity provider, captcha and mentor settings
//   - database.go: user store and lock backends
//   - http.go: HTTP server, CORS and rate limiting
//
// The loaded value is treated as immutable and handed to constructors;
// business logic never reads the process environment directly.
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Token signing and domain binding.
	Token TokenConfig

	// External identity provider (CAS).
	CAS CASConfig `envPrefix:"CAS_"`

	// Local stand-in for CAS; requires IsDev.
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Bot challenge (hCaptcha) used by the legacy credential flows.
	Captcha CaptchaConfig `envPrefix:"HCAPTCHA_"`

	// Mentor role elevation.
	Mentor MentorConfig `envPrefix:"MENTOR_"`

	// LegacyLoginEnabled exposes the username/password login and signup flows.
	LegacyLoginEnabled bool `env:"LEGACY_LOGIN_ENABLED" envDefault:"false"`

	// Storage configuration
	Store    StoreConfig
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Metrics exposition
	Metrics MetricsConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Token.Sanitize()
	c.CAS.Sanitize()
	c.Captcha.Sanitize()

	c.detectDevMode()
}

// Validate reports missing or inconsistent configuration. A non-nil error must
// abort startup; required values are never checked lazily per request.
func (c *AppConfig) Validate() error {
	var errs []error

	if err := c.Token.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Mentor.ApplicationPassword) == "" {
		errs = append(errs, errors.New("MENTOR_APPLICATION_PASSWORD is required"))
	}
	if c.CAS.BaseURL == "" {
		errs = append(errs, errors.New("CAS_BASE_URL is required"))
	}
	if c.DevAuth.Enabled && !c.IsDev {
		errs = append(errs, errors.New("DEV_AUTH_ENABLED requires DEV=true"))
	}
	if c.LegacyLoginEnabled && c.Captcha.VerifyKey == "" {
		errs = append(errs, errors.New("HCAPTCHA_VERIFY_KEY is required when LEGACY_LOGIN_ENABLED=true"))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Store.Driver == StoreDriverPostgres && c.Postgres.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required when STORE_DRIVER=postgres"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// AllowedOrigins returns the CORS allow-list for API routes.
func (c *AppConfig) AllowedOrigins() []string {
	origins := []string{c.Token.WebappDomain}
	if c.Captcha.LocalOrigin != "" && c.Captcha.LocalOrigin != c.Token.WebappDomain {
		origins = append(origins, c.Captcha.LocalOrigin)
	}
	return origins
}
