// Package server exposes an interval index over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/itree/pkg/index"
	"github.com/Sumatoshi-tech/itree/pkg/observability"
)

// Default timeouts applied when Options leaves them zero.
const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter

	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler

	// CacheSize is the number of search results kept in an LRU cache.
	// Zero disables caching.
	CacheSize int

	// RateLimit caps /v1 requests per second with bursts of RateBurst.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Server serves search and mutation endpoints for one index.
type Server struct {
	idx     *index.Index
	opts    Options
	logger  *slog.Logger
	handler http.Handler
	cache   *lru.Cache[searchKey, []index.Match]
	limiter *rate.Limiter
}

// New builds a server for idx.
func New(idx *index.Index, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if opts.Meter == nil {
		opts.Meter = noopmetric.NewMeterProvider().Meter("")
	}

	red, err := observability.NewREDMetrics(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("create request metrics: %w", err)
	}

	s := &Server{
		idx:    idx,
		opts:   withDefaults(opts),
		logger: opts.Logger.With(slog.String("component", "server")),
	}

	if opts.CacheSize > 0 {
		s.cache, err = lru.New[searchKey, []index.Match](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create search cache: %w", err)
		}
	}

	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.RateBurst, 1))
	}

	s.handler = observability.HTTPMiddleware(opts.Tracer, red, s.routes())

	return s, nil
}

func withDefaults(opts Options) Options {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}

	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	return opts
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /v1/search", s.handleSearch)
	api.HandleFunc("GET /v1/stab", s.handleStab)
	api.HandleFunc("GET /v1/intervals", s.handleList)
	api.HandleFunc("POST /v1/intervals", s.handleInsert)
	api.HandleFunc("DELETE /v1/intervals", s.handleRemove)
	api.HandleFunc("GET /v1/stats", s.handleStats)

	mux := http.NewServeMux()

	mux.Handle("/v1/", s.limit(api))

	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.ReadyHandler(func(context.Context) error {
		return s.idx.Verify()
	}))

	if s.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.opts.MetricsHandler)
	}

	return mux
}

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is canceled, then shuts
// down gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- srv.Serve(listener)
	}()

	s.logger.InfoContext(ctx, "server listening", "addr", listener.Addr().String(), "index", s.idx.Name())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	s.logger.InfoContext(ctx, "server shutting down")

	err := srv.Shutdown(shutdownCtx)

	<-serveErr

	if err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	return nil
}

// limit rejects requests beyond the configured rate with 429.
func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		if !s.limiter.Allow() {
			rw.Header().Set("Retry-After", "1")
			s.writeJSON(hr.Context(), rw, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})

			return
		}

		next.ServeHTTP(rw, hr)
	})
}
