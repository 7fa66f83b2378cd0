package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"reallynicca-backend/application/commands/bus"
	querybus "reallynicca-backend/application/queries/bus"
	"reallynicca-backend/infrastructure/config"
	"reallynicca-backend/interfaces/http/rest/handlers"
	"reallynicca-backend/interfaces/http/rest/middleware"
	pkgerrors "reallynicca-backend/pkg/errors"
	"reallynicca-backend/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	collector  *observability.Collector
	config     *config.Config
	logger     *zap.Logger
}

// NewRouter creates a new router instance. collector may be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		collector:  collector,
		config:     cfg,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()
	errorHandler := pkgerrors.NewErrorHandler(rt.logger, rt.config.IsDevelopment())

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil && rt.config.EnableMetrics {
		router.Use(middleware.Metrics(rt.collector))
	}

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.collector != nil && rt.config.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	gapHandler := handlers.NewGapHandler(rt.queryBus, errorHandler, rt.config.MaxRequestBytes, rt.logger)
	graphHandler := handlers.NewGraphHandler(rt.commandBus, errorHandler, rt.config.MaxRequestBytes, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/gaps", gapHandler.DetectGaps)

		r.Route("/graphs/{graphID}", func(r chi.Router) {
			r.Put("/", graphHandler.StoreGraph)
			r.Get("/gaps", gapHandler.DetectGapsForGraph)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
