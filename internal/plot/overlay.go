package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
)

var (
	visibleColor = color.RGBA{R: 240, G: 196, B: 64, A: 255}
	edgeColor    = color.RGBA{R: 255, G: 232, B: 160, A: 255}
)

// daylightAlpha is the opacity of the visibility band where the sky is not dark.
const daylightAlpha = 0.35

// VisibilityPlot is a night band with one object's visibility drawn over it.
type VisibilityPlot struct {
	Image *image.RGBA
	// Windows holds the object's window for every day of the raster's year.
	Windows []riseset.TimeWindow
	// Clipped counts the days whose visible interval extends past the axis.
	Clipped int
}

// Render draws the time obj spends above threshold on every day of the
// raster's year. The raster's location is used: a raster is only meaningful
// for the location it was built for.
//
// When onto is nil a new canvas is allocated, otherwise onto must have the
// raster's bounds and is overwritten. r itself is never modified. Visible time
// over night is painted opaque; over twilight and day it is translucent so the
// band remains readable.
func Render(r *NightRaster, obj sky.Equatorial, threshold float64, onto *image.RGBA) (*VisibilityPlot, error) {
	if r == nil {
		return nil, ErrNotReady
	}
	if err := sky.CheckFinite("threshold", threshold); err != nil {
		return nil, err
	}
	b := r.Pixels.Bounds()
	if onto == nil {
		onto = image.NewRGBA(b)
	} else if onto.Bounds() != b {
		return nil, fmt.Errorf("%w: canvas %v does not match raster %v", sky.ErrInvalidInput, onto.Bounds(), b)
	}
	draw.Draw(onto, b, r.Pixels, b.Min, draw.Src)

	p := &VisibilityPlot{Image: onto, Windows: make([]riseset.TimeWindow, len(r.Days))}
	spans := make([]Span, len(r.Days))
	for i, d := range r.Days {
		w, err := riseset.Window(obj, r.Location, d.Date, threshold)
		if err != nil {
			return nil, err
		}
		p.Windows[i] = w
		spans[i] = AboveSpan(w)
		if clipped(spans[i], r.MinHour, r.MaxHour) {
			p.Clipped++
		}
	}

	size := r.Size()
	for x := 0; x < size.X; x++ {
		day := r.DayAt(x)
		span, band := spans[day], r.Days[day]
		if span.Empty() {
			continue
		}
		for y := 0; y < size.Y; y++ {
			h := r.HourAt(y)
			if !span.Contains(h) {
				continue
			}
			px := b.Min.Add(image.Pt(x, y))
			if band.Class(h) == Night {
				onto.SetRGBA(px.X, px.Y, visibleColor)
				continue
			}
			onto.SetRGBA(px.X, px.Y, blend(onto.RGBAAt(px.X, px.Y), visibleColor, daylightAlpha))
		}
		if p.Windows[day].State != riseset.Normal {
			continue
		}
		for _, edge := range [...]float64{span.Start, sky.WrapSignedHours(span.End)} {
			if y, ok := r.RowOf(edge); ok {
				onto.SetRGBA(b.Min.X+x, b.Min.Y+y, edgeColor)
			}
		}
	}
	return p, nil
}

// clipped reports whether any part of a non-empty span lies outside [lo, hi].
func clipped(s Span, lo, hi float64) bool {
	if s.Empty() {
		return false
	}
	if s.End-s.Start >= 24 {
		return lo > FullSpan.Start || hi < FullSpan.End
	}
	return s.End > FullSpan.End || s.Start < lo || s.End > hi
}
