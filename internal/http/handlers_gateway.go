package httpx

import (
	"context"
	"net/http"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	"github.com/cmpt474/mm-login-gateway/internal/service"
)

// GatewayServiceInterface is the subset of service.GatewayService the handlers use.
type GatewayServiceInterface interface {
	TokenAuthenticator
	LegacyEnabled() bool
	LoginWithTicket(ctx context.Context, in service.TicketLoginInput) (*service.LoginResult, error)
	LoginWithCredentials(ctx context.Context, in service.CredentialsInput) (*service.LoginResult, error)
	Signup(ctx context.Context, in service.CredentialsInput) (*service.LoginResult, error)
	Introspect(ctx context.Context, token string) (domainauth.Claims, error)
	ApplyMentor(ctx context.Context, claims domainauth.Claims, code string) (*service.LoginResult, error)
}

// GatewayHandlers serves the login, signup, introspection and elevation routes.
type GatewayHandlers struct {
	Svc          GatewayServiceInterface
	MaxBodyBytes int64
}

// loginRequest accepts both the ticket and the credential body shapes.
type loginRequest struct {
	Referrer        string `json:"referrer"`
	Ticket          string `json:"ticket"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	CaptchaResponse string `json:"captchaResponse"`
}

type signupRequest struct {
	Referrer        string `json:"referrer"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	CaptchaResponse string `json:"captchaResponse"`
}

type applyMentorRequest struct {
	ApplicationCode string `json:"applicationCode"`
}

type tokenResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token"`
	Courses []string `json:"courses,omitempty"`
}

type introspectionResponse struct {
	Status bool `json:"status"`
}

// Login handles POST /api/login. A body carrying a ticket runs the ticket flow;
// a body carrying only credentials runs the legacy flow when enabled.
func (h *GatewayHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req, h.MaxBodyBytes) {
		return
	}

	if req.Ticket == "" && req.Username != "" && h.Svc.LegacyEnabled() {
		res, err := h.Svc.LoginWithCredentials(r.Context(), service.CredentialsInput{
			Username:        req.Username,
			Password:        req.Password,
			CaptchaResponse: req.CaptchaResponse,
			Referrer:        submittingOrigin(r, req.Referrer),
		})
		h.writeToken(w, res, err)
		return
	}

	res, err := h.Svc.LoginWithTicket(r.Context(), service.TicketLoginInput{Referrer: req.Referrer, Ticket: req.Ticket})
	h.writeToken(w, res, err)
}

// ValidateTicket handles the ticket-only aliases of the login route.
func (h *GatewayHandlers) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Referrer string `json:"referrer"`
		Ticket   string `json:"ticket"`
	}
	if !DecodeJSON(w, r, &req, h.MaxBodyBytes) {
		return
	}
	res, err := h.Svc.LoginWithTicket(r.Context(), service.TicketLoginInput{Referrer: req.Referrer, Ticket: req.Ticket})
	h.writeToken(w, res, err)
}

// Signup handles POST /api/login/signup.
func (h *GatewayHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	if !h.Svc.LegacyEnabled() {
		http.NotFound(w, r)
		return
	}
	var req signupRequest
	if !DecodeJSON(w, r, &req, h.MaxBodyBytes) {
		return
	}
	res, err := h.Svc.Signup(r.Context(), service.CredentialsInput{
		Username:        req.Username,
		Password:        req.Password,
		CaptchaResponse: req.CaptchaResponse,
		Referrer:        submittingOrigin(r, req.Referrer),
	})
	h.writeToken(w, res, err)
}

// Introspection handles GET /api/login/introspection. Every failure has the same shape.
func (h *GatewayHandlers) Introspection(w http.ResponseWriter, r *http.Request) {
	token, ok := BearerToken(r)
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, introspectionResponse{})
		return
	}
	if _, err := h.Svc.Introspect(r.Context(), token); err != nil {
		WriteJSON(w, http.StatusUnauthorized, introspectionResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, introspectionResponse{Status: true})
}

// ApplyMentor handles the elevation routes. It must sit behind RequireToken.
func (h *GatewayHandlers) ApplyMentor(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		WriteFailure(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req applyMentorRequest
	if !DecodeJSON(w, r, &req, h.MaxBodyBytes) {
		return
	}
	res, err := h.Svc.ApplyMentor(r.Context(), claims, req.ApplicationCode)
	h.writeToken(w, res, err)
}

func (h *GatewayHandlers) writeToken(w http.ResponseWriter, res *service.LoginResult, err error) {
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tokenResponse{Success: true, Token: res.Token, Courses: res.Courses})
}

// submittingOrigin prefers the body's referrer, then the browser-supplied headers.
func submittingOrigin(r *http.Request, bodyReferrer string) string {
	if bodyReferrer != "" {
		return bodyReferrer
	}
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	return r.Referer()
}
