package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/auth"
	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/metrics"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Gate           *auth.Gate
	UserHandler    *UserHandler
	APIKeyHandler  *APIKeyHandler
	SessionHandler *SessionHandler
	UploadHandler  *UploadHandler
	ContentHandler *ContentHandler
	Metrics        *metrics.Metrics
	Registry       *prometheus.Registry
	Logger         zerolog.Logger

	// AnonymousUpload opens the single-request upload route to callers
	// without credentials.
	AnonymousUpload bool
}

// NewRouter builds the full route tree. Every protected route is gated on
// exactly the right it exercises.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics(cfg.Metrics))

	gate := cfg.Gate

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/create", cfg.UserHandler.Create)

		r.With(gate.RequireAuthenticated()).Get("/info", cfg.UserHandler.Info)
		r.With(gate.Require(domain.RightChangeUsername)).Post("/username", cfg.UserHandler.ChangeUsername)
		r.With(gate.Require(domain.RightResetPassword)).Post("/password", cfg.UserHandler.ResetPassword)
		r.With(gate.Require(domain.RightDeleteAccount)).Delete("/", cfg.UserHandler.DeleteAccount)

		r.Route("/apikeys", func(r chi.Router) {
			r.With(gate.Require(domain.RightGenerateAPIKey)).Post("/", cfg.APIKeyHandler.Generate)
			r.With(gate.Require(domain.RightListAPIKeys)).Get("/", cfg.APIKeyHandler.List)
			r.With(gate.Require(domain.RightExpireAPIKey)).Delete("/{keyId}", cfg.APIKeyHandler.Expire)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.With(gate.Require(domain.RightGenerateSession)).Post("/", cfg.SessionHandler.Generate)
			r.Post("/refresh", cfg.SessionHandler.Refresh)
			r.With(gate.Require(domain.RightExpireSession)).Delete("/", cfg.SessionHandler.Expire)
			r.With(gate.Require(domain.RightExpireSession)).Delete("/{refreshToken}", cfg.SessionHandler.ExpireByToken)
			r.With(gate.Require(domain.RightListSessions)).Get("/", cfg.SessionHandler.List)
		})
	})

	r.Route("/api/file", func(r chi.Router) {
		r.Route("/upload", func(r chi.Router) {
			uploadGate := gate.Require(domain.RightUploadFile)
			if cfg.AnonymousUpload {
				r.With(gate.RequireOrAnonymous(domain.RightUploadFile)).Post("/", cfg.ContentHandler.UploadWhole)
			} else {
				r.With(uploadGate).Post("/", cfg.ContentHandler.UploadWhole)
			}

			r.Group(func(r chi.Router) {
				r.Use(uploadGate)
				r.Post("/begin", cfg.UploadHandler.Begin)
				r.Post("/upstream/{handle}", cfg.UploadHandler.Upstream)
				r.Post("/finish/{handle}", cfg.UploadHandler.Finish)
				r.Post("/clear/{handle}", cfg.UploadHandler.Clear)
				r.Post("/abort/{handle}", cfg.UploadHandler.Abort)
				r.Get("/info/{handle}", cfg.UploadHandler.Info)
			})
		})

		r.With(gate.Require(domain.RightModifyFileOptions)).Post("/options/{contentId}", cfg.ContentHandler.Options)
		r.With(gate.Require(domain.RightDeleteFile)).Delete("/{contentId}", cfg.ContentHandler.Delete)
		r.With(gate.Require(domain.RightQueryContent)).Get("/query", cfg.ContentHandler.Query)
		r.Get("/info/{contentId}", cfg.ContentHandler.Meta)
	})

	// Raw content lives at the root, like any link shortener.
	r.Get("/{contentId}", cfg.ContentHandler.Serve)

	return r
}

// handleHealth handles health check requests.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// requestMetrics records handler latency labeled by route pattern and status.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RequestDuration.
				WithLabelValues(route, strconv.Itoa(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}
