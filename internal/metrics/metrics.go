package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyplot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyplot_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	plotCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyplot_plot_cache_hits_total",
		Help: "Night band requests served from the in-memory raster.",
	})

	plotCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyplot_plot_cache_misses_total",
		Help: "Night band requests for a year or location other than the cached one.",
	})

	plotCacheReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skyplot_plot_cache_ready",
		Help: "1 when a night band raster is cached, 0 otherwise.",
	})

	plotBuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyplot_plot_builds_total",
		Help: "Night band rasters built from scratch.",
	})

	plotBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyplot_plot_build_duration_seconds",
		Help:    "Time to build one night band raster.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	rendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyplot_renders_total",
			Help: "Overlay images rendered, by kind.",
		},
		[]string{"kind"},
	)

	storeHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyplot_raster_store_hits_total",
		Help: "Night band rasters loaded from the shared store instead of being built.",
	})

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyplot_raster_store_errors_total",
			Help: "Failed raster store operations.",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(plotCacheHits, plotCacheMisses, plotCacheReady)
	prometheus.MustRegister(plotBuildsTotal, plotBuildDuration)
	prometheus.MustRegister(rendersTotal)
	prometheus.MustRegister(storeHits, storeErrors)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncCacheHits counts a plot cache hit.
func IncCacheHits() { plotCacheHits.Inc() }

// IncCacheMisses counts a plot cache miss.
func IncCacheMisses() { plotCacheMisses.Inc() }

// SetCacheReady publishes whether the plot cache holds a raster.
func SetCacheReady(ready bool) {
	if ready {
		plotCacheReady.Set(1)
		return
	}
	plotCacheReady.Set(0)
}

// ObservePlotBuild counts one raster build and records how long it took.
func ObservePlotBuild(d time.Duration) {
	plotBuildsTotal.Inc()
	plotBuildDuration.Observe(d.Seconds())
}

// IncRenders counts one rendered overlay of the given kind ("visibility", "night").
func IncRenders(kind string) { rendersTotal.WithLabelValues(kind).Inc() }

// IncStoreHits counts a raster loaded from the shared store.
func IncStoreHits() { storeHits.Inc() }

// IncStoreErrors counts a failed store operation ("load" or "save").
func IncStoreErrors(op string) { storeErrors.WithLabelValues(op).Inc() }

// knownRoutes lists every path the server registers. Anything else is a
// scanner or a typo and shares one label.
var knownRoutes = map[string]bool{
	"/":                       true,
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
	"/api/v1/nightband.png":   true,
	"/api/v1/visibility.png":  true,
	"/api/v1/night.png":       true,
	"/api/v1/window":          true,
	"/api/v1/altaz":           true,
	"/api/v1/tonight":         true,
	"/api/v1/plot/stats":      true,
	"/api/v1/plot/invalidate": true,
}

// normalizeRoute maps a request path to a bounded set of metric labels.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
