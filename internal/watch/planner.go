// Package watch holds the per-session observing state (date, site, altitude
// threshold) of a watchlist view and turns user actions on an object into
// engine calls, reporting results back through a VisibilityRequester.
package watch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/star/skyplot/internal/cache"
	"github.com/star/skyplot/internal/dso"
	"github.com/star/skyplot/internal/plot"
	"github.com/star/skyplot/internal/sky"
)

// DefaultThreshold is the altitude in degrees an object must clear to count as
// observable.
const DefaultThreshold = 15.0

// DefaultDetailSize is the canvas of the single-night popup.
var DefaultDetailSize = image.Pt(600, 300)

// VisibilityRequester is implemented by the presentation layer. The Planner
// calls it with finished artifacts; it never calls back into the Planner.
type VisibilityRequester interface {
	// ShowVisibility displays the yearly visibility plot of obj.
	ShowVisibility(obj dso.DSO, p *plot.VisibilityPlot)
	// ShowNightDetail displays the single-night altitude curve of obj.
	ShowNightDetail(obj dso.DSO, p *plot.NightPlot)
	// CenterSkyView points the sky viewer at (raDeg, decDeg) with the given
	// field of view in degrees.
	CenterSkyView(raDeg, decDeg, fovDeg float64)
	// PromptLocation asks the user to pick an observing site.
	PromptLocation(reason error)
}

// Planner is safe for concurrent use.
type Planner struct {
	mu         sync.Mutex
	date       time.Time
	loc        sky.Location
	hasLoc     bool
	threshold  float64
	detailSize image.Point

	cache  *cache.PlotCache
	ui     VisibilityRequester
	logger *slog.Logger
}

// NewPlanner creates a planner for today's date with no location and the
// default threshold.
func NewPlanner(c *cache.PlotCache, ui VisibilityRequester, logger *slog.Logger) *Planner {
	return &Planner{
		date:       time.Now(),
		threshold:  DefaultThreshold,
		detailSize: DefaultDetailSize,
		cache:      c,
		ui:         ui,
		logger:     logger,
	}
}

// Threshold returns the current altitude threshold.
func (p *Planner) Threshold() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threshold
}

// Location returns the observing site, or false if none was chosen yet.
func (p *Planner) Location() (sky.Location, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc, p.hasLoc
}

// SetDate changes the observing date. A new year rebuilds the night band once
// a location is known.
func (p *Planner) SetDate(ctx context.Context, date time.Time) error {
	p.mu.Lock()
	p.date = date
	key, ok := p.keyLocked()
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return p.refresh(ctx, key)
}

// SetLocation changes the observing site and rebuilds the night band.
// Longitude wraps into [-180, 180].
func (p *Planner) SetLocation(ctx context.Context, latitude, longitude float64) error {
	loc, err := sky.NewLocation(latitude, longitude)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.loc, p.hasLoc = loc, true
	key, _ := p.keyLocked()
	p.mu.Unlock()
	return p.refresh(ctx, key)
}

// SetThreshold changes the altitude an object must clear. Night band rasters
// do not depend on it, so nothing is rebuilt.
func (p *Planner) SetThreshold(threshold float64) error {
	if err := sky.CheckFinite("threshold", threshold); err != nil {
		return err
	}
	p.mu.Lock()
	p.threshold = threshold
	p.mu.Unlock()
	return nil
}

// Horizontal returns where obj is at instant t for the current site, or false
// when no site is set.
func (p *Planner) Horizontal(obj dso.DSO, t time.Time) (sky.Horizontal, bool) {
	loc, ok := p.Location()
	if !ok {
		return sky.Horizontal{}, false
	}
	return obj.Horizontal(t, loc), true
}

// RequestVisibility renders obj's yearly visibility over the night band and
// hands it to ShowVisibility. Without a location the user is prompted and
// plot.ErrNotReady is returned.
func (p *Planner) RequestVisibility(ctx context.Context, obj dso.DSO) error {
	r, threshold, _, err := p.raster(ctx)
	if err != nil {
		return err
	}
	vp, err := plot.Render(r, obj.Coordinates, threshold, nil)
	if err != nil {
		return fmt.Errorf("render %s: %w", obj.ID, err)
	}
	p.logger.Debug("visibility rendered",
		"component", "watch",
		"object", obj.ID,
		"threshold", threshold,
		"clipped_days", vp.Clipped,
	)
	p.ui.ShowVisibility(obj, vp)
	return nil
}

// RequestNightDetail renders obj's altitude across the night of the current
// date and hands it to ShowNightDetail.
func (p *Planner) RequestNightDetail(ctx context.Context, obj dso.DSO) error {
	r, threshold, date, err := p.raster(ctx)
	if err != nil {
		return err
	}
	np, err := plot.RenderNight(r, obj.Coordinates, threshold, date, p.detailSize)
	if err != nil {
		return fmt.Errorf("render night of %s: %w", obj.ID, err)
	}
	p.ui.ShowNightDetail(obj, np)
	return nil
}

// GoTo centers the sky viewer on obj, framed by its angular size.
func (p *Planner) GoTo(obj dso.DSO) {
	ra, dec := obj.DisplayDegrees()
	p.ui.CenterSkyView(ra, dec, obj.FieldOfView())
}

func (p *Planner) keyLocked() (cache.Key, bool) {
	return cache.Key{Year: p.date.Year(), Location: p.loc}, p.hasLoc
}

func (p *Planner) refresh(ctx context.Context, key cache.Key) error {
	if _, err := p.cache.Get(ctx, key); err != nil {
		return fmt.Errorf("night band for %s: %w", key, err)
	}
	return nil
}

// raster returns the night band for the current key along with the settings
// the request should be rendered with.
func (p *Planner) raster(ctx context.Context) (*plot.NightRaster, float64, time.Time, error) {
	p.mu.Lock()
	key, ok := p.keyLocked()
	threshold, date := p.threshold, p.date
	p.mu.Unlock()

	if !ok {
		p.logger.Warn("plot requested before selecting a location", "component", "watch")
		p.ui.PromptLocation(plot.ErrNotReady)
		return nil, 0, time.Time{}, plot.ErrNotReady
	}
	r, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil, 0, time.Time{}, fmt.Errorf("night band for %s: %w", key, err)
	}
	return r, threshold, date, nil
}
