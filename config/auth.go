package config

import (
	"errors"
	"strings"
	"time"
)

// minSigningKeyLen is the smallest accepted HS256 key size in bytes.
const minSigningKeyLen = 32

// TokenConfig controls issuance and validation of session tokens.
type TokenConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 bytes.
	Secret string `env:"JWT_SECRET"`

	// GatewayDomain is this service's public origin. Tokens carry it as issuer and audience.
	GatewayDomain string `env:"GATEWAY_DOMAIN"`

	// WebappDomain is the front-end origin. Tokens carry it as the second audience.
	WebappDomain string `env:"WEBAPP_DOMAIN"`

	// TTL is the token lifetime.
	TTL time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Leeway tolerates clock skew during validation.
	Leeway time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}

// Sanitize trims domains and clamps durations.
func (t *TokenConfig) Sanitize() {
	t.GatewayDomain = strings.TrimRight(strings.TrimSpace(t.GatewayDomain), "/")
	t.WebappDomain = strings.TrimRight(strings.TrimSpace(t.WebappDomain), "/")
	if t.TTL <= 0 {
		t.TTL = 24 * time.Hour
	}
	if t.Leeway < 0 {
		t.Leeway = 0
	}
}

// Validate checks the required token settings.
func (t *TokenConfig) Validate() error {
	var errs []error
	if t.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(t.Secret) < minSigningKeyLen {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if t.GatewayDomain == "" {
		errs = append(errs, errors.New("GATEWAY_DOMAIN is required"))
	}
	if t.WebappDomain == "" {
		errs = append(errs, errors.New("WEBAPP_DOMAIN is required"))
	}
	return errors.Join(errs...)
}

// CASConfig contains the identity provider settings.
type CASConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://cas.sfu.ca/cas"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

// Sanitize normalises the base URL and timeout.
func (c *CASConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// CaptchaConfig contains hCaptcha verification settings.
type CaptchaConfig struct {
	VerifyURL string `env:"VERIFY_URL" envDefault:"https://hcaptcha.com/siteverify"`
	VerifyKey string `env:"VERIFY_KEY"`
	SiteKey   string `env:"SITE_KEY"`

	// ExpectedHostname enables the strict variant: the verification response
	// must name this hostname.
	ExpectedHostname string `env:"EXPECTED_HOSTNAME"`

	// LocalOrigin is the only referrer prefix for which the test sentinel is honoured.
	LocalOrigin string `env:"LOCAL_ORIGIN" envDefault:"http://localhost:3000"`

	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Sanitize normalises captcha settings.
func (c *CaptchaConfig) Sanitize() {
	c.VerifyURL = strings.TrimSpace(c.VerifyURL)
	c.ExpectedHostname = strings.TrimSpace(c.ExpectedHostname)
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// MentorConfig controls the student to mentor elevation flow.
type MentorConfig struct {
	ApplicationPassword string `env:"APPLICATION_PASSWORD"`

	// EchoCode reproduces the historical behaviour of quoting the submitted
	// code back in the rejection message.
	EchoCode bool `env:"ECHO_CODE" envDefault:"false"`
}

// DevAuthConfig replaces the identity provider with a local stand-in. Development only.
type DevAuthConfig struct {
	Enabled  bool     `env:"ENABLED"  envDefault:"false"`
	Identity string   `env:"IDENTITY" envDefault:"dev-user"`
	Courses  []string `env:"COURSES"`
}
