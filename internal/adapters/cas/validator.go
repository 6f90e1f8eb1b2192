// Package cas validates single sign-on tickets against a CAS server's serviceValidate endpoint.
package cas

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

const (
	// ErrInvalidLogin is reported when the response carries no success envelope.
	ErrInvalidLogin = "Invalid SFU login"
	// ErrNotStudent is reported when the authenticated identity is not affiliated as a student.
	ErrNotStudent = "Not a student"
	// ErrUnavailable is reported when the CAS server cannot be reached or answers with garbage.
	ErrUnavailable = "Identity provider unavailable"

	studentAffiliation = "student"
	maxResponseBytes   = 1 << 20
)

var _ ports.TicketValidator = (*Validator)(nil)

// ValidatorOptions configures a Validator.
type ValidatorOptions struct {
	// BaseURL is the CAS root, e.g. https://cas.sfu.ca/cas.
	BaseURL string
	// Timeout bounds a single validation round trip. Ignored when HTTPClient is set.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Validator implements ports.TicketValidator for CAS 2.0/3.0 servers.
type Validator struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewValidator constructs a Validator. BaseURL is required.
func NewValidator(opts ValidatorOptions) (*Validator, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("cas: base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("cas: parse base URL: %w", err)
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

	return &Validator{
		endpoint: base + "/serviceValidate",
		client:   client,
		logger:   logger.With("component", "cas"),
	}, nil
}

// serviceResponse is the CAS protocol envelope. Element names are matched on their local part.
type serviceResponse struct {
	XMLName xml.Name     `xml:"serviceResponse"`
	Success *authSuccess `xml:"authenticationSuccess"`
	Failure *authFailure `xml:"authenticationFailure"`
}

type authSuccess struct {
	User       string `xml:"user"`
	Attributes struct {
		Affiliation []string `xml:"eduPersonAffiliation"`
		Members     []string `xml:"member"`
	} `xml:"attributes"`
}

type authFailure struct {
	Code        string `xml:"code,attr"`
	Description string `xml:",chardata"`
}

// ValidateTicket asks the CAS server whether ticket was issued for service.
// It never returns an error; every failure is folded into the result.
func (v *Validator) ValidateTicket(ctx context.Context, service, ticket string) domainauth.TicketValidation {
	body, err := v.fetch(ctx, service, ticket)
	if err != nil {
		v.logger.WarnContext(ctx, "cas validation request failed", "error", err)
		return failure(ErrUnavailable)
	}

	var resp serviceResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		v.logger.WarnContext(ctx, "cas response not decodable", "error", err)
		return failure(ErrUnavailable)
	}

	return v.interpret(ctx, resp)
}

func (v *Validator) fetch(ctx context.Context, service, ticket string) ([]byte, error) {
	q := url.Values{}
	q.Set("service", service)
	q.Set("ticket", ticket)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build cas request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	res, err := v.client.Do(req)
	if err != nil {
		// url.Error carries the full request URL, ticket included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("cas request to %s: %w", v.endpoint, urlErr.Err)
		}
		return nil, fmt.Errorf("cas request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("cas request: unexpected status %d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read cas response: %w", err)
	}
	return body, nil
}

func (v *Validator) interpret(ctx context.Context, resp serviceResponse) domainauth.TicketValidation {
	if resp.Success == nil {
		if resp.Failure != nil {
			v.logger.InfoContext(ctx, "cas rejected ticket",
				"code", resp.Failure.Code,
				"description", strings.TrimSpace(resp.Failure.Description))
		}
		return failure(ErrInvalidLogin)
	}

	identity := strings.TrimSpace(resp.Success.User)
	if identity == "" {
		return failure(ErrInvalidLogin)
	}

	if !hasAffiliation(resp.Success.Attributes.Affiliation, studentAffiliation) {
		return failure(ErrNotStudent)
	}

	members := make([]string, 0, len(resp.Success.Attributes.Members))
	for _, m := range resp.Success.Attributes.Members {
		members = append(members, strings.TrimSpace(m))
	}

	return domainauth.TicketValidation{
		Success:  true,
		Identity: identity,
		Courses:  domainauth.FilterCourses(members),
	}
}

func hasAffiliation(values []string, want string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == want {
			return true
		}
	}
	return false
}

func failure(reason string) domainauth.TicketValidation {
	return domainauth.TicketValidation{Courses: []string{}, Error: reason}
}
