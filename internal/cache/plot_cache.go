// Package cache memoizes the night band raster.
//
// Building a raster solves the Sun's rise and set for every day of a year and
// classifies every pixel, so it is done once per (year, location) and reused
// for every overlay drawn on top of it. The cache holds a single entry: the
// raster for the key most recently requested. Asking for any other key
// rebuilds wholesale and swaps the entry; nothing is patched in place.
//
// An optional Store acts as a second tier shared between processes. It is
// consulted before building and written after.
package cache

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/star/skyplot/internal/metrics"
	"github.com/star/skyplot/internal/plot"
	"github.com/star/skyplot/internal/sky"
)

var tracer = otel.Tracer("github.com/star/skyplot/internal/cache")

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Size         image.Point // Raster canvas (default: 800x500)
	SunThreshold float64     // Solar altitude that starts the night (default: -10)
}

// DefaultConfig returns the canvas and threshold used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Size:         image.Pt(plot.DefaultWidth, plot.DefaultHeight),
		SunThreshold: plot.DefaultSunThreshold,
	}
}

// Key identifies the raster a caller needs.
type Key struct {
	Year     int
	Location sky.Location
}

func (k Key) String() string {
	return fmt.Sprintf("%d@%s", k.Year, k.Location)
}

// Params is everything a raster depends on: the key plus the configuration.
type Params struct {
	Key
	Size         image.Point
	SunThreshold float64
}

// Store is a second-tier raster store. Load returns nil, nil when it has no
// raster for params.
type Store interface {
	Load(ctx context.Context, params Params) (*plot.NightRaster, error)
	Save(ctx context.Context, params Params, r *plot.NightRaster) error
}

// BuildFunc builds a raster. It is plot.Build outside of tests.
type BuildFunc func(loc sky.Location, size image.Point, sunThreshold float64, year int) (*plot.NightRaster, error)

// PlotCache holds the night band raster for the most recently requested key.
// Safe for concurrent use by multiple goroutines.
type PlotCache struct {
	mu      sync.RWMutex
	current *plot.NightRaster
	key     Key
	dirty   bool

	config Config
	store  Store
	build  BuildFunc
	logger *slog.Logger

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	builds    atomic.Int64
	storeHits atomic.Int64
}

// New creates an empty cache. store may be nil.
func New(config Config, store Store, logger *slog.Logger) *PlotCache {
	logger.Info("plot cache initialized",
		"width", config.Size.X,
		"height", config.Size.Y,
		"sun_threshold", config.SunThreshold,
		"store", store != nil,
	)
	metrics.SetCacheReady(false)
	return &PlotCache{
		config: config,
		store:  store,
		build:  plot.Build,
		logger: logger,
	}
}

// Config returns the configuration rasters are built with.
func (c *PlotCache) Config() Config {
	return c.config
}

// fresh reports whether the cached raster was built for key and has not been
// invalidated. Caller must hold mu.
func (c *PlotCache) fresh(key Key) bool {
	return c.current != nil && !c.dirty && c.key == key
}

// Get returns the raster for key, building it if the cached one was built for
// a different year or location or has been invalidated.
//
// Two concurrent misses for the same key may both build. Building is a pure
// function of the key, so the loser's raster is simply discarded.
func (c *PlotCache) Get(ctx context.Context, key Key) (*plot.NightRaster, error) {
	c.mu.RLock()
	if c.fresh(key) {
		r := c.current
		c.mu.RUnlock()
		c.hits.Add(1)
		metrics.IncCacheHits()
		return r, nil
	}
	old := c.key
	had := c.current != nil
	c.mu.RUnlock()

	c.misses.Add(1)
	metrics.IncCacheMisses()

	attrs := []any{"year", key.Year, "latitude", key.Location.Latitude, "longitude", key.Location.Longitude}
	if had {
		attrs = append(attrs, "previous", old.String())
	}
	c.logger.Info("plot cache rebuild starting", attrs...)

	r, err := c.load(ctx, key)
	if err != nil {
		c.logger.Warn("plot cache rebuild failed", "key", key.String(), "error", err)
		return nil, err
	}

	c.mu.Lock()
	if !c.fresh(key) {
		c.current = r
		c.key = key
		c.dirty = false
	} else {
		r = c.current
	}
	c.mu.Unlock()
	metrics.SetCacheReady(true)

	return r, nil
}

// load fetches the raster for key from the store or builds it.
func (c *PlotCache) load(ctx context.Context, key Key) (*plot.NightRaster, error) {
	params := Params{Key: key, Size: c.config.Size, SunThreshold: c.config.SunThreshold}

	ctx, span := tracer.Start(ctx, "plotcache.load", trace.WithAttributes(
		attribute.Int("year", key.Year),
		attribute.Float64("latitude", key.Location.Latitude),
		attribute.Float64("longitude", key.Location.Longitude),
	))
	defer span.End()

	if c.store != nil {
		r, err := c.store.Load(ctx, params)
		switch {
		case err != nil:
			metrics.IncStoreErrors("load")
			c.logger.Warn("raster store load failed", "key", key.String(), "error", err)
		case r != nil:
			c.storeHits.Add(1)
			metrics.IncStoreHits()
			span.SetAttributes(attribute.Bool("store_hit", true))
			c.logger.Info("plot cache loaded from store", "key", key.String())
			return r, nil
		}
	}

	start := time.Now()
	r, err := c.build(key.Location, params.Size, params.SunThreshold, key.Year)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.builds.Add(1)
	metrics.ObservePlotBuild(duration)
	c.logger.Info("plot cache rebuild complete",
		"key", key.String(),
		"duration_ms", duration.Milliseconds(),
		"min_hour", r.MinHour,
		"max_hour", r.MaxHour,
	)

	if c.store != nil {
		if err := c.store.Save(ctx, params, r); err != nil {
			metrics.IncStoreErrors("save")
			c.logger.Warn("raster store save failed", "key", key.String(), "error", err)
		}
	}
	return r, nil
}

// Current returns the cached raster, if there is one. It does not build and
// returns the raster even when it has been invalidated.
func (c *PlotCache) Current() (*plot.NightRaster, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.current != nil
}

// Invalidate marks the cached raster stale so the next Get rebuilds it.
func (c *PlotCache) Invalidate() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
	c.logger.Info("plot cache invalidated")
}

// Stats returns current cache statistics.
func (c *PlotCache) Stats() Stats {
	c.mu.RLock()
	s := Stats{
		Ready: c.current != nil,
		Dirty: c.dirty,
	}
	if c.current != nil {
		s.Year = c.key.Year
		s.Location = c.key.Location
		s.MinHour = c.current.MinHour
		s.MaxHour = c.current.MaxHour
		s.SizeBytes = int64(len(c.current.Pixels.Pix))
	}
	c.mu.RUnlock()

	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	s.Builds = c.builds.Load()
	s.StoreHits = c.storeHits.Load()
	return s
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Ready     bool         `json:"ready"`
	Dirty     bool         `json:"dirty"`
	Year      int          `json:"year,omitempty"`
	Location  sky.Location `json:"location"`
	MinHour   float64      `json:"min_hour"`
	MaxHour   float64      `json:"max_hour"`
	SizeBytes int64        `json:"size_bytes"`
	Hits      int64        `json:"hits"`
	Misses    int64        `json:"misses"`
	Builds    int64        `json:"builds"`
	StoreHits int64        `json:"store_hits"`
}
