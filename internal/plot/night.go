package plot

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
)

// Altitude range of the single-night view, degrees.
const (
	nightMinAlt = -20.0
	nightMaxAlt = 90.0
)

var (
	curveColor     = color.RGBA{R: 240, G: 196, B: 64, A: 255}
	curveDimColor  = color.RGBA{R: 150, G: 130, B: 80, A: 255}
	thresholdColor = color.RGBA{R: 220, G: 80, B: 80, A: 255}
)

// TrackPoint is one sample of an object's path across a single night.
type TrackPoint struct {
	Hour float64   `json:"hour"` // night hour
	Time time.Time `json:"time"`
	sky.Horizontal
	Sky Class `json:"sky"`
}

// NightPlot is the detailed view of one object over one night.
type NightPlot struct {
	Image  *image.RGBA
	Window riseset.TimeWindow
	Track  []TrackPoint
}

// NightTrack samples the horizontal position of obj every step across the
// raster's hour axis on the night following date.
func NightTrack(r *NightRaster, obj sky.Equatorial, date time.Time, step time.Duration) ([]TrackPoint, error) {
	if r == nil {
		return nil, ErrNotReady
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: sampling step %v", sky.ErrInvalidInput, step)
	}
	day, err := r.DayOf(date)
	if err != nil {
		return nil, err
	}
	band := r.Days[day]
	midnight := sky.LocalMidnight(band.Date, r.Location.Longitude)

	start := midnight.Add(time.Duration(r.MinHour * float64(time.Hour)))
	n := int(math.Floor((r.MaxHour-r.MinHour)/step.Hours()+1e-9)) + 1
	track := make([]TrackPoint, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * step)
		h := r.MinHour + float64(i)*step.Hours()
		track = append(track, TrackPoint{
			Hour:       h,
			Time:       ts,
			Horizontal: sky.ToHorizontal(obj, r.Location, ts),
			Sky:        band.Class(h),
		})
	}
	return track, nil
}

// RenderNight draws the altitude of obj across the night following date on a
// canvas of the given size: hours run left to right over the raster's axis,
// altitude bottom to top, the background shows the sky condition and a rule
// marks threshold.
func RenderNight(r *NightRaster, obj sky.Equatorial, threshold float64, date time.Time, size image.Point) (*NightPlot, error) {
	if r == nil {
		return nil, ErrNotReady
	}
	if size.X <= 1 || size.Y <= 1 {
		return nil, fmt.Errorf("%w: canvas size %dx%d", sky.ErrInvalidInput, size.X, size.Y)
	}
	if err := sky.CheckFinite("threshold", threshold); err != nil {
		return nil, err
	}
	day, err := r.DayOf(date)
	if err != nil {
		return nil, err
	}
	band := r.Days[day]
	window, err := riseset.Window(obj, r.Location, band.Date, threshold)
	if err != nil {
		return nil, err
	}

	// One sample per column.
	step := time.Duration((r.MaxHour - r.MinHour) / float64(size.X-1) * float64(time.Hour))
	track, err := NightTrack(r, obj, band.Date, step)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	rowOf := func(alt float64) int {
		f := (nightMaxAlt - alt) / (nightMaxAlt - nightMinAlt)
		return max(0, min(size.Y-1, int(f*float64(size.Y))))
	}
	hourAt := func(x int) float64 {
		return r.MinHour + float64(x)*(r.MaxHour-r.MinHour)/float64(size.X-1)
	}

	for x := 0; x < size.X; x++ {
		c := classColor[band.Class(hourAt(x))]
		for y := 0; y < size.Y; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	if threshold >= nightMinAlt && threshold <= nightMaxAlt {
		ty := rowOf(threshold)
		for x := 0; x < size.X; x++ {
			img.SetRGBA(x, ty, thresholdColor)
		}
	}
	hy := rowOf(0)
	for x := 0; x < size.X; x++ {
		img.SetRGBA(x, hy, blend(img.RGBAAt(x, hy), ruleColor, 0.4))
	}

	prev := -1
	for x := 0; x < size.X && x < len(track); x++ {
		pt := track[x]
		y := rowOf(pt.Altitude)
		c := curveDimColor
		if pt.Altitude >= threshold && pt.Sky == Night {
			c = curveColor
		}
		// Join consecutive samples so steep sections stay continuous.
		from, to := y, y
		if prev >= 0 {
			from, to = min(prev, y), max(prev, y)
		}
		for yy := from; yy <= to; yy++ {
			img.SetRGBA(x, yy, c)
		}
		prev = y
	}

	return &NightPlot{Image: img, Window: window, Track: track}, nil
}
