// Package hcaptcha verifies bot challenge responses with the hCaptcha siteverify API.
package hcaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

// TestResponse is the sentinel response accepted from the local development origin.
const TestResponse = "10000000-aaaa-bbbb-cccc-000000000001"

const maxResponseBytes = 64 << 10

var _ ports.ChallengeVerifier = (*Verifier)(nil)

// VerifierOptions configures a Verifier.
type VerifierOptions struct {
	VerifyURL string
	Secret    string
	SiteKey   string
	// AllowedOrigin is the canonical web origin; referrers outside it always fail.
	AllowedOrigin string
	// LocalOrigin enables TestResponse for referrers under it. Empty disables the bypass.
	LocalOrigin string
	// ExpectedHostname, when set, must match the hostname reported by the provider.
	ExpectedHostname string
	Timeout          time.Duration
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

// Verifier implements ports.ChallengeVerifier.
type Verifier struct {
	opts   VerifierOptions
	client *http.Client
	logger *slog.Logger
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// NewVerifier constructs a Verifier. VerifyURL, Secret and AllowedOrigin are required.
func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	if strings.TrimSpace(opts.VerifyURL) == "" {
		return nil, fmt.Errorf("hcaptcha: verify URL is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("hcaptcha: secret is required")
	}
	if opts.AllowedOrigin == "" {
		return nil, fmt.Errorf("hcaptcha: allowed origin is required")
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{opts: opts, client: client, logger: logger.With("component", "hcaptcha")}, nil
}

// Verify reports whether response is a genuine challenge solution submitted from referrer.
// Any transport or decode failure yields false. There are no retries.
func (v *Verifier) Verify(ctx context.Context, response, referrer string) bool {
	if !hasOrigin(referrer, v.opts.AllowedOrigin) {
		v.logger.InfoContext(ctx, "captcha rejected foreign referrer", "referrer", referrer)
		return false
	}
	if response == "" {
		return false
	}

	if response == TestResponse {
		return v.opts.LocalOrigin != "" && hasOrigin(referrer, v.opts.LocalOrigin)
	}

	res, err := v.siteVerify(ctx, response)
	if err != nil {
		v.logger.WarnContext(ctx, "captcha verification failed", "error", err)
		return false
	}
	if !res.Success {
		v.logger.InfoContext(ctx, "captcha not accepted", "error_codes", res.ErrorCodes)
		return false
	}
	if v.opts.ExpectedHostname != "" && res.Hostname != v.opts.ExpectedHostname {
		v.logger.InfoContext(ctx, "captcha hostname mismatch", "hostname", res.Hostname)
		return false
	}
	return true
}

// hasOrigin reports whether referrer starts with origin and the host ends there,
// so https://app.example.com does not match https://app.example.com.evil.test.
func hasOrigin(referrer, origin string) bool {
	if origin == "" || !strings.HasPrefix(referrer, origin) {
		return false
	}
	if strings.HasSuffix(origin, "/") {
		return true
	}
	rest := referrer[len(origin):]
	return rest == "" || strings.ContainsRune("/?#", rune(rest[0]))
}

func (v *Verifier) siteVerify(ctx context.Context, response string) (siteVerifyResponse, error) {
	form := url.Values{}
	form.Set("response", response)
	form.Set("secret", v.opts.Secret)
	if v.opts.SiteKey != "" {
		form.Set("sitekey", v.opts.SiteKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.opts.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return siteVerifyResponse{}, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		return siteVerifyResponse{}, fmt.Errorf("siteverify request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return siteVerifyResponse{}, fmt.Errorf("siteverify: unexpected status %d", res.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&out); err != nil {
		return siteVerifyResponse{}, fmt.Errorf("decode siteverify response: %w", err)
	}
	return out, nil
}
