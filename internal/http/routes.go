package httpx

import (
	"log/slog"
	"net/http"

	"github.com/cmpt474/mm-login-gateway/internal/observability/metrics"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Gateway GatewayServiceInterface

	// AllowedOrigins may call the API routes cross-origin.
	AllowedOrigins []string
	MaxBodyBytes   int64

	// RateLimit guards login, signup and elevation. Nil disables limiting.
	RateLimit *RateLimiter

	// MetricsHandler is mounted at MetricsPath when non-nil.
	MetricsHandler http.Handler
	MetricsPath    string
	Metrics        metrics.Recorder

	Logger *slog.Logger
}

const healthPath = "/api/health"

// NewRouter creates and configures the gateway's HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	h := &GatewayHandlers{Svc: services.Gateway, MaxBodyBytes: services.MaxBodyBytes}

	mux.Handle("GET "+healthPath, http.HandlerFunc(healthHandler))
	mux.Handle("HEAD "+healthPath, http.HandlerFunc(healthHandler))

	registerLoginRoutes(mux, h, services.RateLimit)

	if services.MetricsHandler != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, services.MetricsHandler)
	}

	var handler http.Handler = mux
	handler = CORS(CORSConfig{AllowedOrigins: services.AllowedOrigins, PublicPaths: []string{healthPath}})(handler)
	handler = Logging(logger, services.Metrics)(handler)
	return Recover(logger)(handler)
}

func registerLoginRoutes(mux *http.ServeMux, h *GatewayHandlers, limiter *RateLimiter) {
	limited := func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return limiter.Middleware(next)
	}
	requireToken := RequireToken(h.Svc)

	mux.Handle("POST /api/login", limited(http.HandlerFunc(h.Login)))
	mux.Handle("POST /api/login-validate", limited(http.HandlerFunc(h.ValidateTicket)))
	mux.Handle("POST /api/login/validate", limited(http.HandlerFunc(h.ValidateTicket)))
	mux.Handle("POST /api/login/signup", limited(http.HandlerFunc(h.Signup)))
	mux.Handle("GET /api/login/introspection", http.HandlerFunc(h.Introspection))

	apply := limited(requireToken(http.HandlerFunc(h.ApplyMentor)))
	mux.Handle("POST /api/login/apply-mentor", apply)
	mux.Handle("POST /api/login/mentor-apply", apply)
}
