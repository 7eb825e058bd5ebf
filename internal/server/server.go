// Package server exposes farm records, breeding forecasts and reports over a
// JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/history"
	"goatfarm-breeding-forecast/internal/metrics"
	"goatfarm-breeding-forecast/internal/news"
	"goatfarm-breeding-forecast/internal/records"
)

// NewsSource supplies headlines for the news endpoint.
type NewsSource interface {
	Fetch(ctx context.Context) ([]news.Item, error)
}

// HistorySource lists stored forecast runs.
type HistorySource interface {
	Recent(ctx context.Context, owner string, limit int) ([]history.Run, error)
}

// Options wires the server's collaborators. Store is required; News, History
// and Metrics are optional.
type Options struct {
	Store       records.Store
	Policy      breeding.Policy
	News        NewsSource
	History     HistorySource
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	CORSOrigins []string
	TopSales    int
	Now         func() time.Time
}

// Server is the HTTP API.
type Server struct {
	store    records.Store
	policy   breeding.Policy
	news     NewsSource
	history  HistorySource
	metrics  *metrics.Metrics
	log      *zap.Logger
	origins  []string
	topSales int
	now      func() time.Time
}

func New(opts Options) *Server {
	s := &Server{
		store:    opts.Store,
		policy:   opts.Policy,
		news:     opts.News,
		history:  opts.History,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		origins:  opts.CORSOrigins,
		topSales: opts.TopSales,
		now:      opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/news", s.handleNews)
		r.Route("/farms/{owner}", func(r chi.Router) {
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/breeding/forecast", s.handleForecast)
			r.Get("/breeding/history", s.handleHistory)
			r.Get("/reports", s.handleReport)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handlePutProfile)
			r.Route("/records/{collection}", func(r chi.Router) {
				r.Get("/", s.handleListRecords)
				r.Post("/", s.handleAddRecord)
				r.Get("/{key}", s.handleGetRecord)
				r.Delete("/{key}", s.handleDeleteRecord)
			})
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, status, elapsed)
		}
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
