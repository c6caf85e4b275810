// Package api exposes the scraper over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/monitoring"
	"github.com/sells-group/bbb-scraper/internal/pipeline"
	"github.com/sells-group/bbb-scraper/internal/store"
)

// ServiceName is reported by the health and index endpoints.
const ServiceName = "BBB Scraper API"

// Scraper runs one scrape request. *pipeline.Runner implements it.
type Scraper interface {
	Scrape(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// Options configures a Server.
type Options struct {
	Scraper Scraper
	// Store enables the /runs endpoints when non-nil.
	Store        store.Store
	Gatherer     prometheus.Gatherer
	DefaultPages int
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	scraper      Scraper
	store        store.Store
	collector    *monitoring.Collector
	gatherer     prometheus.Gatherer
	defaultPages int
	router       http.Handler
}

// New creates a Server and builds its router.
func New(opts Options) *Server {
	s := &Server{
		scraper:      opts.Scraper,
		store:        opts.Store,
		gatherer:     opts.Gatherer,
		defaultPages: opts.DefaultPages,
	}
	if s.defaultPages < 1 {
		s.defaultPages = 1
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.store != nil {
		s.collector = monitoring.NewCollector(s.store)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Run-ID"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/scrape", s.handleScrape)

	if s.store != nil {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/stats", s.handleRunStats)
			r.Get("/{id}", s.handleGetRun)
		})
	}
	return r
}

// requestLogger logs one line per request on the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("api: request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// Serve listens on port until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("api: shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("api: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("api: starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}
