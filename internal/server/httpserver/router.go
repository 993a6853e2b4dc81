package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// RouterOptions configures Router.
type RouterOptions struct {
	Service AuthService
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// Metrics serves /metrics when set.
	Metrics        http.Handler
	AllowedOrigins []string
	CookieSecure   bool
	Logger         logging.Logger
	// GlobalLimit is requests per minute per client IP across all routes.
	GlobalLimit int
	// AuthLimit is requests per minute per client IP on login and register.
	AuthLimit int
}

// Router builds the HTTP API.
func Router(opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.GlobalLimit <= 0 {
		opts.GlobalLimit = 600
	}
	if opts.AuthLimit <= 0 {
		opts.AuthLimit = 30
	}

	h := &handlers{svc: opts.Service, cookieSecure: opts.CookieSecure, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Use(httprate.LimitByIP(opts.GlobalLimit, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(r.Context()); err != nil {
				opts.Logger.Warn(r.Context(), "not ready", "error", err)
				respondError(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(opts.AuthLimit, time.Minute))
			r.Post("/register", h.register)
			r.Post("/login", h.login)
		})
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.With(RequireSession(opts.Service)).Get("/me", h.me)
	})

	return otelhttp.NewHandler(r, "gophauth.http")
}
