// Package api serves the converter handle lifecycle and the conversion
// catalog over HTTP.
//
// Every route under /api/v1 requires the X-API-Key header. /metrics is left
// open for scraping.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// NewRouter builds the HTTP routes for server. Metrics are served from
// gatherer when it is non-nil.
func NewRouter(server *Server, gatherer prometheus.Gatherer) http.Handler {
	metrics := server.metrics

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(server.config.APIKey)))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))

		// Converter handles
		r.Post("/converters", metrics.InstrumentHandler("POST", "/api/v1/converters", server.handleCreateConverter))
		r.Delete("/converters/{handle}",
			metrics.InstrumentHandler("DELETE", "/api/v1/converters/{handle}", server.handleDeleteConverter))
		r.Post("/converters/{handle}/convert",
			metrics.InstrumentHandler("POST", "/api/v1/converters/{handle}/convert", server.handleConvert))
		r.Get("/converters/{handle}/finish_t",
			metrics.InstrumentHandler("GET", "/api/v1/converters/{handle}/finish_t", server.handleFinishT))

		// Catalog
		r.Get("/catalog", metrics.InstrumentHandler("GET", "/api/v1/catalog", server.handleListCatalog))
		r.Get("/catalog/{id}", metrics.InstrumentHandler("GET", "/api/v1/catalog/{id}", server.handleGetCatalog))
	})

	return r
}

// StartServer serves the API until ctx is done, then shuts down gracefully
func StartServer(
	ctx context.Context,
	registry IConverterRegistry,
	catalog ICatalog,
	config ServerConfig,
	reg *prometheus.Registry,
) error {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	server := NewServer(registry, catalog, config, NewMetrics(reg))

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(server, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		fmt.Printf("Starting stdf2h5 REST API server on %s\n", addr)
		fmt.Printf("Metrics available at: http://%s/metrics\n", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
