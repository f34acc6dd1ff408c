package api

import (
	"context"
	"image"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/skyplot/internal/cache"
	"github.com/star/skyplot/internal/health"
	"github.com/star/skyplot/internal/httputil"
	"github.com/star/skyplot/internal/metrics"
	"github.com/star/skyplot/internal/watch"
)

const tracerName = "github.com/star/skyplot/internal/api"

// Config holds the HTTP surface settings.
type Config struct {
	Addr       string
	TrustProxy bool
	// DSOThreshold is the altitude used when a request gives none.
	DSOThreshold float64
	// DetailSize is the default canvas of night.png.
	DetailSize image.Point
	// MaxObjects bounds the watchlist size of a tonight request.
	MaxObjects int
}

// DefaultConfig returns the settings of the original viewer.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		DSOThreshold: watch.DefaultThreshold,
		DetailSize:   watch.DefaultDetailSize,
		MaxObjects:   500,
	}
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        Config
	plots      *cache.PlotCache
	now        func() time.Time
}

// NewServer creates a configured HTTP server. checks feed /readyz; static, if
// not nil, is served at /.
func NewServer(cfg Config, logger *slog.Logger, plots *cache.PlotCache, checks map[string]health.Check, static fs.FS) *Server {
	s := &Server{
		logger: logger,
		cfg:    cfg,
		plots:  plots,
		now:    time.Now,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(logger, checks))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/nightband.png", s.nightbandHandler)
	mux.HandleFunc("GET /api/v1/visibility.png", s.visibilityHandler)
	mux.HandleFunc("GET /api/v1/night.png", s.nightHandler)
	mux.HandleFunc("GET /api/v1/window", s.windowHandler)
	mux.HandleFunc("GET /api/v1/altaz", s.altazHandler)
	mux.HandleFunc("POST /api/v1/tonight", s.tonightHandler)
	mux.HandleFunc("GET /api/v1/plot/stats", s.statsHandler)
	mux.HandleFunc("POST /api/v1/plot/invalidate", s.invalidateHandler)
	if static != nil {
		mux.Handle("GET /", http.FileServerFS(static))
	}

	// Build middleware chain: metrics -> request id -> tracing -> logging -> mux.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestIDMiddleware keeps a caller supplied X-Request-Id or assigns a new one
// and echoes it in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// tracingMiddleware starts a server span per request, continuing any trace
// propagated in the request headers.
func tracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("request_id", RequestID(ctx)),
			),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
				"request_id", RequestID(r.Context()),
			)
		})
	}
}
