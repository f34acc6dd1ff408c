// Package plot renders the yearly observability map: a night band raster
// showing day, twilight and night for every day of a year at one location, and
// an overlay marking when a given object is above its altitude threshold.
//
// Time of night is measured in night hours: signed hours from the local mean
// solar midnight that ends each calendar day, in [-12, 12). Negative values are
// the evening, positive values the following morning. Columns are days of the
// year from January 1st on the left; rows run from MinHour at the top to
// MaxHour at the bottom.
package plot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
)

// ErrNotReady is returned when an overlay or detail view is requested before a
// night band raster exists for the current location.
var ErrNotReady = errors.New("plot: select a location first")

const (
	// DefaultWidth and DefaultHeight are the canvas size used when none is configured.
	DefaultWidth  = 800
	DefaultHeight = 500

	// DefaultSunThreshold is the solar altitude below which the sky counts as dark.
	DefaultSunThreshold = -10.0

	// axisMargin pads the fitted axis on both sides, in hours.
	axisMargin = 0.5
)

// Class is the sky condition of one pixel.
type Class uint8

const (
	Day Class = iota
	Twilight
	Night
)

func (c Class) String() string {
	switch c {
	case Day:
		return "day"
	case Twilight:
		return "twilight"
	case Night:
		return "night"
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var (
	dayColor      = color.RGBA{R: 176, G: 196, B: 222, A: 255}
	twilightColor = color.RGBA{R: 64, G: 76, B: 128, A: 255}
	nightColor    = color.RGBA{R: 14, G: 18, B: 44, A: 255}
	ruleColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

var classColor = [...]color.RGBA{Day: dayColor, Twilight: twilightColor, Night: nightColor}

// Span is a half-open interval [Start, End) of night hours. End may exceed 12
// when the interval crosses local noon. The zero Span is empty.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// FullSpan covers the whole day.
var FullSpan = Span{Start: -12, End: 12}

// Empty reports whether s contains no hours.
func (s Span) Empty() bool { return s.End <= s.Start }

// Contains reports whether night hour h lies in s, taking the 24 hour wrap
// into account.
func (s Span) Contains(h float64) bool {
	for _, x := range [...]float64{h, h + 24, h - 24} {
		if x >= s.Start && x < s.End {
			return true
		}
	}
	return false
}

// NightHour converts a local mean solar clock hour to a night hour.
func NightHour(clock float64) float64 {
	return sky.WrapSignedHours(clock)
}

// AboveSpan returns the night-hour interval during which an object with window
// w is above its threshold.
func AboveSpan(w riseset.TimeWindow) Span {
	switch w.State {
	case riseset.Circumpolar:
		return FullSpan
	case riseset.NeverVisible:
		return Span{}
	}
	start := NightHour(w.Rise)
	return Span{Start: start, End: start + w.Duration}
}

// BelowSpan returns the night-hour interval during which an object with window
// w is below its threshold. Applied to the Sun it is the night.
func BelowSpan(w riseset.TimeWindow) Span {
	switch w.State {
	case riseset.Circumpolar:
		return Span{}
	case riseset.NeverVisible:
		return FullSpan
	}
	start := NightHour(w.Set)
	return Span{Start: start, End: start + 24 - w.Duration}
}

// DayBand is the solar geometry of one calendar day and the night after it.
type DayBand struct {
	Date time.Time `json:"date"`
	// Sun is the Sun's window against the night threshold, Horizon against 0°.
	Sun     riseset.TimeWindow `json:"sun"`
	Horizon riseset.TimeWindow `json:"horizon"`
	// Night is when the Sun is below the night threshold, Dark when it is below
	// the horizon. Dark minus Night is twilight.
	Night Span `json:"night"`
	Dark  Span `json:"dark"`
}

// Class returns the sky condition at night hour h.
func (d DayBand) Class(h float64) Class {
	switch {
	case d.Night.Contains(h):
		return Night
	case d.Dark.Contains(h):
		return Twilight
	}
	return Day
}

// NightRaster is the rendered night band for one year at one location. It is
// never modified after Build returns.
type NightRaster struct {
	Pixels       *image.RGBA
	MinHour      float64
	MaxHour      float64
	Year         int
	Location     sky.Location
	SunThreshold float64
	Days         []DayBand
}

// DaysIn returns the number of days in year.
func DaysIn(year int) int {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(start.AddDate(1, 0, 0).Sub(start).Hours()/24 + 0.5)
}

// Size returns the raster dimensions.
func (r *NightRaster) Size() image.Point {
	return r.Pixels.Bounds().Size()
}

// DayAt returns the day-of-year index drawn in column x.
func (r *NightRaster) DayAt(x int) int {
	w := r.Size().X
	d := x * len(r.Days) / w
	return max(0, min(d, len(r.Days)-1))
}

// HourAt returns the night hour at the centre of row y.
func (r *NightRaster) HourAt(y int) float64 {
	h := r.Size().Y
	return r.MinHour + (float64(y)+0.5)*(r.MaxHour-r.MinHour)/float64(h)
}

// RowOf returns the row that night hour hr falls in and whether it is on the axis.
func (r *NightRaster) RowOf(hr float64) (int, bool) {
	if hr < r.MinHour || hr > r.MaxHour {
		return 0, false
	}
	h := r.Size().Y
	y := int((hr - r.MinHour) / (r.MaxHour - r.MinHour) * float64(h))
	return min(y, h-1), true
}

// DayOf returns the index of date within the raster's year.
func (r *NightRaster) DayOf(date time.Time) (int, error) {
	if date.Year() != r.Year {
		return 0, fmt.Errorf("%w: date %s is outside %d", ErrNotReady, date.Format(time.DateOnly), r.Year)
	}
	return date.YearDay() - 1, nil
}

// ClassAt returns the sky condition drawn at pixel (x, y).
func (r *NightRaster) ClassAt(x, y int) Class {
	return r.Days[r.DayAt(x)].Class(r.HourAt(y))
}

// Build renders the night band for every day of year at loc.
//
// The first pass solves the Sun's window for each day, against sunThreshold for
// night and against the horizon for twilight, and fits one shared vertical axis
// around every night of the year. The second pass classifies every pixel in
// that frame. Every day shares the same axis so that the seasonal drift of dusk
// and dawn reads as a curve.
func Build(loc sky.Location, size image.Point, sunThreshold float64, year int) (*NightRaster, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: canvas size %dx%d", sky.ErrInvalidInput, size.X, size.Y)
	}
	if err := sky.CheckFinite("sun threshold", sunThreshold); err != nil {
		return nil, err
	}
	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: year %d", sky.ErrInvalidInput, year)
	}

	n := DaysIn(year)
	days := make([]DayBand, n)
	for i := range days {
		date := time.Date(year, time.January, 1+i, 0, 0, 0, 0, time.UTC)
		sun, err := riseset.SunWindow(loc, date, sunThreshold)
		if err != nil {
			return nil, err
		}
		horizon, err := riseset.SunWindow(loc, date, 0)
		if err != nil {
			return nil, err
		}
		days[i] = DayBand{
			Date:    date,
			Sun:     sun,
			Horizon: horizon,
			Night:   BelowSpan(sun),
			Dark:    BelowSpan(horizon),
		}
	}

	lo, hi := fitAxis(days)
	r := &NightRaster{
		Pixels:       image.NewRGBA(image.Rect(0, 0, size.X, size.Y)),
		MinHour:      lo,
		MaxHour:      hi,
		Year:         year,
		Location:     loc,
		SunThreshold: sunThreshold,
		Days:         days,
	}

	for x := 0; x < size.X; x++ {
		band := days[r.DayAt(x)]
		for y := 0; y < size.Y; y++ {
			r.Pixels.SetRGBA(x, y, classColor[band.Class(r.HourAt(y))])
		}
	}
	r.drawRules()
	return r, nil
}

// fitAxis returns the tightest [lo, hi] containing every night of the year,
// padded by axisMargin and clamped to the day. A night that crosses noon or
// lasts the whole day needs the full axis, as does a year without any night.
func fitAxis(days []DayBand) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range days {
		switch d.Sun.State {
		case riseset.Circumpolar:
			continue
		case riseset.NeverVisible:
			return FullSpan.Start, FullSpan.End
		}
		if d.Night.End > FullSpan.End {
			return FullSpan.Start, FullSpan.End
		}
		lo = math.Min(lo, d.Night.Start)
		hi = math.Max(hi, d.Night.End)
	}
	if lo > hi {
		return FullSpan.Start, FullSpan.End
	}
	return math.Max(FullSpan.Start, lo-axisMargin), math.Min(FullSpan.End, hi+axisMargin)
}

// drawRules marks the first day of each month with a faint vertical rule and
// local midnight with a horizontal one.
func (r *NightRaster) drawRules() {
	size := r.Size()
	n := len(r.Days)
	for m := time.February; m <= time.December; m++ {
		d := time.Date(r.Year, m, 1, 0, 0, 0, 0, time.UTC).YearDay() - 1
		x := (d*size.X + n - 1) / n
		if x >= size.X {
			continue
		}
		for y := 0; y < size.Y; y++ {
			r.Pixels.SetRGBA(x, y, blend(r.Pixels.RGBAAt(x, y), ruleColor, 0.18))
		}
	}
	if y, ok := r.RowOf(0); ok && r.MinHour < 0 && r.MaxHour > 0 {
		for x := 0; x < size.X; x++ {
			r.Pixels.SetRGBA(x, y, blend(r.Pixels.RGBAAt(x, y), ruleColor, 0.3))
		}
	}
}

// blend mixes c into dst with opacity alpha in [0, 1].
func blend(dst, c color.RGBA, alpha float64) color.RGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a)*(1-alpha) + float64(b)*alpha))
	}
	return color.RGBA{R: mix(dst.R, c.R), G: mix(dst.G, c.G), B: mix(dst.B, c.B), A: 255}
}
