// Package api serves the daemon's HTTP surface: beacon ingestion, history
// and baseline management, baseline comparison, the relay websocket and
// Prometheus exposition.
package api

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/vitalsd/internal/collector"
	"codeberg.org/mutker/vitalsd/internal/history"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 10

// Store is the history surface the API reads and manages.
type Store interface {
	Signals() []string
	Now() int64
	SavePerformanceSnapshot(ctx context.Context, page string, metrics map[string]*float64, overallScore *float64)
	GetPerformanceHistory(ctx context.Context) history.Document
	GetHistoryForPage(ctx context.Context, page string) (*history.PagePerformanceHistory, bool)
	ClearPerformanceHistory(ctx context.Context)
	SetBaseline(ctx context.Context, page string, timestamp int64)
	ClearBaseline(ctx context.Context, page string)
}

// Dispatcher routes a beacon to the collector callbacks for its signal.
type Dispatcher interface {
	Dispatch(ctx context.Context, page collector.PageContext, m collector.Metric) bool
}

type Config struct {
	AllowedOrigins []string
	// RateLimit is the number of beacons accepted per client IP and
	// RateWindow. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

type Option func(*API)

// WithRelay mounts h as the relay websocket endpoint.
func WithRelay(h http.Handler) Option {
	return func(a *API) {
		a.relay = h
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *API) {
		a.gatherer = g
	}
}

type API struct {
	cfg      Config
	store    Store
	beacons  Dispatcher
	relay    http.Handler
	gatherer prometheus.Gatherer
	logger   logger.Logger
}

func New(cfg Config, store Store, beacons Dispatcher, opts ...Option) *API {
	a := &API{
		cfg:     cfg,
		store:   store,
		beacons: beacons,
		logger:  logger.Component("api"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(a.logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		write(rw, http.StatusOK, Response{Message: "ok"})
	})
	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Only beacons are cross-origin. Management routes answer
		// preflights with 405 and carry no CORS headers.
		r.Group(func(r chi.Router) {
			r.Use(a.beaconCORS())
			r.Options("/beacon", func(rw http.ResponseWriter, _ *http.Request) {
				rw.WriteHeader(http.StatusNoContent)
			})
			r.With(a.rateLimiter()).Post("/beacon", a.postBeacon)
		})

		r.Post("/snapshots", a.postSnapshots)

		r.Get("/history", a.getHistory)
		r.Get("/history/page", a.getPageHistory)
		r.Delete("/history", a.deleteHistory)

		r.Put("/baseline", a.putBaseline)
		r.Delete("/baseline", a.deleteBaseline)
		r.Get("/compare", a.getCompare)

		if a.relay != nil {
			r.Handle("/relay", a.relay)
		}
	})

	return r
}

// beaconCORS allows the configured origins to post beacons. An empty
// list denies every cross-origin request.
func (a *API) beaconCORS() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: a.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}
	if len(a.cfg.AllowedOrigins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return cors.Handler(opts)
}

func (a *API) rateLimiter() func(http.Handler) http.Handler {
	if a.cfg.RateLimit <= 0 || a.cfg.RateWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		a.cfg.RateLimit,
		a.cfg.RateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(rw http.ResponseWriter, _ *http.Request) {
			write(rw, http.StatusTooManyRequests, Response{
				Message: "Beacon rate limit exceeded. Please try again later.",
			})
		}),
	)
}

// requestLogger writes one event per request once it completes.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
			start := time.Now()

			defer func() {
				ev := log.Debug()
				if ww.Status() >= http.StatusInternalServerError {
					ev = log.Warn()
				}
				ev.Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("Request handled")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
