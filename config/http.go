package config

import "golang.org/x/time/rate"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Port mirrors the conventional PORT variable; when set it overrides Addr.
	Port string `env:"PORT"`

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"65536"`

	// LoginRatePerMinute is the sustained per-client rate for login, signup and elevation.
	LoginRatePerMinute int `env:"HTTP_LOGIN_RATE_PER_MINUTE" envDefault:"30"`

	// LoginBurst is the per-client burst for the same routes.
	LoginBurst int `env:"HTTP_LOGIN_BURST" envDefault:"10"`

	// TrustProxyHeaders makes the rate limiter key on X-Forwarded-For.
	TrustProxyHeaders bool `env:"HTTP_TRUST_PROXY_HEADERS" envDefault:"false"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Port != "" {
		h.Addr = ":" + h.Port
	}
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 64 << 10
	}
	if h.LoginRatePerMinute < 1 {
		h.LoginRatePerMinute = 1
	}
	if h.LoginBurst < 1 {
		h.LoginBurst = 1
	}
}

// LoginRate converts the per-minute budget into a token bucket rate.
func (h *HTTPConfig) LoginRate() rate.Limit {
	return rate.Limit(float64(h.LoginRatePerMinute) / 60.0)
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"METRICS_PATH"    envDefault:"/metrics"`
}
