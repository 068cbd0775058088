package rest

import (
	"net/http"
	"strings"

	"flowboard/interfaces/http/rest/handlers"
	"flowboard/interfaces/http/rest/middleware"
	pkgerrors "flowboard/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig collects everything the router mounts
type RouterConfig struct {
	Boards   *handlers.BoardHandler
	Sessions *handlers.SessionHandler
	Health   *handlers.HealthHandler
	Auth     middleware.AuthConfig
	Errors   *pkgerrors.ErrorHandler
	// Metrics is optional; when set requests are recorded and /metrics is served
	Metrics        middleware.HTTPRecorder
	MetricsHandler http.Handler
	// Tracing is optional; it opens a trace segment per request
	Tracing     func(http.Handler) http.Handler
	CORSOrigins []string
	Logger      *zap.Logger
}

// Router creates and configures the HTTP router
type Router struct {
	cfg RouterConfig
}

// NewRouter creates a new router instance
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Errors == nil {
		cfg.Errors = pkgerrors.NewErrorHandler(cfg.Logger, false)
	}
	if cfg.Auth.Errors == nil {
		cfg.Auth.Errors = cfg.Errors
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = cfg.Logger
	}
	return &Router{cfg: cfg}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	if rt.cfg.Tracing != nil {
		router.Use(rt.cfg.Tracing)
	}
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.ClientIP)
	router.Use(middleware.Logger(rt.cfg.Logger))
	router.Use(rt.cfg.Errors.Middleware)
	if rt.cfg.Metrics != nil {
		router.Use(middleware.Metrics(rt.cfg.Metrics))
	}
	router.Use(versionMiddleware)

	origins := rt.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Location", middleware.HeaderRateLimitRemaining, middleware.HeaderRateLimitReset},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           300,
	}))

	if rt.cfg.Health != nil {
		router.Get("/health", rt.cfg.Health.Health)
		router.Get("/ready", rt.cfg.Health.Ready)
	}
	if rt.cfg.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", rt.cfg.MetricsHandler)
	}

	// API v1 routes (legacy - redirects to v2)
	router.Route("/api/v1", func(r chi.Router) {
		r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			target := strings.Replace(req.URL.Path, "/api/v1", "/api/v2", 1)
			if req.URL.RawQuery != "" {
				target += "?" + req.URL.RawQuery
			}
			http.Redirect(w, req, target, http.StatusPermanentRedirect)
		})
	})

	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.cfg.Auth))

		r.Get("/notices", rt.cfg.Sessions.Notices)

		r.Route("/boards", func(r chi.Router) {
			r.Get("/", rt.cfg.Boards.ListBoards)
			r.Post("/", rt.cfg.Boards.CreateBoard)

			r.Route("/{boardID}", func(r chi.Router) {
				r.Get("/", rt.cfg.Boards.GetBoard)
				r.Delete("/", rt.cfg.Boards.DeleteBoard)

				sessions := rt.cfg.Sessions
				r.Post("/session", sessions.OpenSession)
				r.Get("/session", sessions.SessionStatus)
				r.Delete("/session", sessions.CloseSession)

				r.Post("/blocks", sessions.CreateBlock)
				r.Patch("/blocks/{blockID}", sessions.UpdateBlock)
				r.Put("/blocks/{blockID}/position", sessions.MoveBlock)
				r.Delete("/blocks/{blockID}", sessions.DeleteBlock)
				r.Post("/blocks/{blockID}/autolink", sessions.AutoLink)

				r.Post("/connections", sessions.Connect)
				r.Delete("/connections", sessions.Disconnect)

				r.Post("/input", sessions.Input)
				r.Post("/viewport/reset", sessions.ResetViewport)
				r.Post("/undo", sessions.Undo)
				r.Post("/redo", sessions.Redo)

				r.Get("/frame", sessions.Frame)
				r.Get("/export.svg", sessions.ExportSVG)
			})
		})
	})

	return router
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Latest", "v2")
		if strings.HasPrefix(r.URL.Path, "/api/v1") {
			w.Header().Set("X-API-Version", "v1")
			w.Header().Set("X-API-Deprecated", "true")
		} else {
			w.Header().Set("X-API-Version", "v2")
		}
		next.ServeHTTP(w, r)
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
