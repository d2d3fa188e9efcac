// Package server exposes single-image degradation over HTTP.
//
// Routes:
//
//	GET  /healthz      liveness, {"status":"ok","version":...}
//	POST /v1/degrade   degrade the request body, respond image/png
//
// The image is sent either as the raw request body or as the "file" field of
// a multipart form. Parameters come from the query string:
//
//	size         square working size (default: the image's own size)
//	             at most Config.MaxSize, which also bounds the source image
//	kind         noise kind (default gaussian); strict=true rejects unknown kinds
//	intensity    primary parameter of the kind (default 10)
//	mean, amount gaussian mean, mixed salt-and-pepper amount
//	strategy     consistency strategy (default power_law)
//	base_size    grain base or power-law reference size
//	alpha        power-law exponent (default 0.6)
//	median       median kernel, odd (default 0, disabled)
//	output_size  final square resample (default 0, disabled)
//	interp       resample interpolation
//	seed         fixed seed; seeded responses are cached
//
// Failures are JSON bodies {"error": message, "code": CODE}.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/grainscale/pkg/buildinfo"
	"github.com/matzehuels/grainscale/pkg/cache"
	"github.com/matzehuels/grainscale/pkg/errors"
)

// Defaults applied by Config.ValidateAndSetDefaults.
const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 32 << 20
	DefaultMaxSize      = 8192
	DefaultTimeout      = 60 * time.Second
	DefaultCacheTTL     = 24 * time.Hour
	shutdownTimeout     = 10 * time.Second
)

// Config configures the HTTP server.
type Config struct {
	Addr         string
	MaxBodyBytes int64
	Timeout      time.Duration

	// MaxSize bounds size, output_size and the long side of the upload.
	MaxSize int

	// CacheTTL bounds how long seeded results stay cached. Zero never expires.
	CacheTTL time.Duration

	// CacheNamespace prefixes every cache key, so servers sharing one Redis
	// can keep their results apart.
	CacheNamespace string
}

// ValidateAndSetDefaults fills zero fields and rejects negative limits.
func (c *Config) ValidateAndSetDefaults() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxBodyBytes < 0 || c.Timeout < 0 || c.CacheTTL < 0 || c.MaxSize < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server limits must not be negative")
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	return nil
}

// Server serves the degradation API.
type Server struct {
	cfg    Config
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger
}

// New returns a server. A nil cache disables caching; a nil logger uses
// log.Default().
func New(cfg Config, c cache.Cache, logger *log.Logger) (*Server, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	keyer := cache.NewDefaultKeyer()
	if cfg.CacheNamespace != "" {
		keyer = cache.NewScopedKeyer(keyer, cfg.CacheNamespace+":")
	}
	return &Server{cfg: cfg, cache: c, keyer: keyer, logger: logger}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(serverHeader)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.Timeout))
		r.Post("/degrade", s.handleDegrade)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, errors.ErrCodeInvalidPath, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, errors.ErrCodeInvalidInput, r.Method+" not allowed on "+r.URL.Path)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "version", buildinfo.Resolved())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// =============================================================================
// Middleware
// =============================================================================

func serverHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", buildinfo.UserAgent())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}
