package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/infrastructure/di"
	"blueprint-editor/interfaces/http/pages"
	"blueprint-editor/interfaces/http/rest/handlers"
	"blueprint-editor/interfaces/http/rest/middleware"
	"blueprint-editor/pkg/common"
	pkgerrors "blueprint-editor/pkg/errors"
	"blueprint-editor/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
)

// readyTimeout bounds the storage probe behind /ready
const readyTimeout = 3 * time.Second

// Router creates and configures the HTTP router
type Router struct {
	container *di.Container
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(container *di.Container) *Router {
	return &Router{
		container: container,
		errors:    pkgerrors.NewErrorHandler(container.Logger, container.Config.IsDevelopment()),
		logger:    container.Logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	c := rt.container
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestContext)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(c.Metrics))
	router.Use(c.Tracer.Middleware)
	if c.Config.EnableGzip {
		router.Use(compress)
	}

	if c.Config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:8080"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Handle("/metrics", c.Metrics.Handler())

	if c.LocalBlobs != nil {
		router.Handle("/blobs/*", http.StripPrefix("/blobs/", http.FileServer(http.Dir(c.LocalBlobs.Dir()))))
	}

	// Pages
	page := pages.NewRouter(c.QueryBus, c.Catalog, c.Domain, rt.errors, rt.logger)
	router.Handle("/", page)
	router.Handle("/drawing/*", page)
	router.Handle("/board", page)
	router.Handle("/board/*", page)

	router.Route("/api/v2", func(r chi.Router) {
		r.Use(versionMiddleware)

		diagramHandler := handlers.NewDiagramHandler(c.CommandBus, c.QueryBus, c.Blobs, c.Exporter, rt.errors, rt.logger)
		r.Route("/diagrams", func(r chi.Router) {
			r.Get("/", diagramHandler.ListDiagrams)
			r.Post("/", diagramHandler.CreateDiagram)
			r.Get("/{id}", diagramHandler.GetDiagram)
			r.Patch("/{id}", diagramHandler.RenameDiagram)
			r.Put("/{id}/nodes", diagramHandler.SaveNodes)
			r.Put("/{id}/blueprint-position", diagramHandler.SetBlueprintPosition)
			r.Get("/{id}/schedule.pdf", diagramHandler.ExportSchedule)
		})

		limit := middleware.RateLimit(c.RateLimiter, rt.errors, rt.logger)

		blueprintHandler := handlers.NewBlueprintHandler(c.CommandBus, c.QueryBus, c.Domain, rt.errors, rt.logger)
		r.Route("/blueprints", func(r chi.Router) {
			r.With(limit).Post("/", blueprintHandler.Upload)
			r.Get("/", blueprintHandler.ListBlueprints)
		})
		r.Get("/symbols", blueprintHandler.ListSymbols)

		sessionHandler := handlers.NewSessionHandler(c.Sessions, c.Hub, rt.errors, rt.logger)
		r.Route("/sessions", func(r chi.Router) {
			r.With(limit).Post("/", sessionHandler.Open)
			r.Route("/{sid}", func(r chi.Router) {
				r.Use(middleware.SessionContext)
				r.Get("/", sessionHandler.State)
				r.Delete("/", sessionHandler.Close)
				r.Put("/pending-symbol", sessionHandler.ChooseSymbol)
				r.Delete("/pending-symbol", sessionHandler.ResetPendingSymbol)
				r.Put("/tool", sessionHandler.SetTool)
				r.Delete("/tool", sessionHandler.ResetTool)
				r.Post("/clicks", sessionHandler.Click)
				r.Post("/changes", sessionHandler.ApplyChanges)
				r.Post("/save", sessionHandler.Save)
				r.Get("/ws", sessionHandler.Subscribe)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"time":     utils.NowRFC3339(),
		"sessions": rt.container.Sessions.Count(),
	})
}

// readinessCheck probes the diagram store
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
	defer cancel()

	if _, err := rt.container.Repo.List(ctx, ports.ListOptions{Limit: 1}); err != nil {
		rt.logger.Warn("Readiness probe failed", zap.Error(err))
		rt.errors.HandleStatus(w, req, http.StatusServiceUnavailable, "diagram store unavailable")
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v2")
		next.ServeHTTP(w, r)
	})
}

// compress gzips responses, leaving websocket upgrades untouched since
// they need the raw connection
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}
