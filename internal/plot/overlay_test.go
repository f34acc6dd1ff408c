package plot

import (
	"bytes"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
)

// Orion Nebula.
var m42 = sky.Equatorial{RA: 5.5881, Dec: -5.3911}

func columnOf(r *NightRaster, date time.Time) int {
	return (date.YearDay() - 1) * r.Size().X / len(r.Days)
}

func TestRenderNotReady(t *testing.T) {
	if _, err := Render(nil, m42, 15, nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("err = %v, want ErrNotReady", err)
	}
}

func TestRenderDoesNotMutateRaster(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	before := bytes.Clone(r.Pixels.Pix)

	p, err := Render(r, m42, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(r.Pixels.Pix, before) {
		t.Error("Render modified the raster")
	}
	if p.Image == r.Pixels {
		t.Error("Render returned the raster's own image")
	}
	if len(p.Windows) != len(r.Days) {
		t.Errorf("len(Windows) = %d, want %d", len(p.Windows), len(r.Days))
	}
}

func TestRenderOnto(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	canvas := image.NewRGBA(r.Pixels.Bounds())
	p, err := Render(r, m42, 15, canvas)
	if err != nil {
		t.Fatal(err)
	}
	if p.Image != canvas {
		t.Error("Render did not draw onto the supplied canvas")
	}

	_, err = Render(r, m42, 15, image.NewRGBA(image.Rect(0, 0, 10, 10)))
	if !errors.Is(err, sky.ErrInvalidInput) {
		t.Errorf("mismatched canvas: err = %v, want ErrInvalidInput", err)
	}
}

func TestRenderSeasonalVisibility(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	p, err := Render(r, m42, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	y, _ := r.RowOf(0)

	// Orion is high at midnight in January and a daytime object in July.
	jan := columnOf(r, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if got := p.Image.RGBAAt(jan, y); got != visibleColor {
		t.Errorf("January midnight pixel = %v, want visible", got)
	}
	jul := columnOf(r, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC))
	if got, want := p.Image.RGBAAt(jul, y), r.Pixels.RGBAAt(jul, y); got != want {
		t.Errorf("July midnight pixel = %v, want untouched %v", got, want)
	}

	opaque, translucent := 0, 0
	b := r.Pixels.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			got, orig := p.Image.RGBAAt(x, y), r.Pixels.RGBAAt(x, y)
			switch {
			case got == visibleColor:
				opaque++
			case got != orig && got != edgeColor:
				translucent++
				if r.ClassAt(x, y) == Night {
					t.Fatalf("pixel (%d,%d) over night is translucent", x, y)
				}
			}
		}
	}
	if opaque == 0 || translucent == 0 {
		t.Errorf("opaque=%d translucent=%d, want both painted", opaque, translucent)
	}
}

func TestRenderNeverVisible(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	// Far southern object from 40N.
	p, err := Render(r, sky.Equatorial{RA: 12, Dec: -80}, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.Image.Pix, r.Pixels.Pix) {
		t.Error("never-visible object changed the plot")
	}
	for i, w := range p.Windows {
		if w.State != riseset.NeverVisible {
			t.Fatalf("day %d: state %v", i, w.State)
		}
	}
	if p.Clipped != 0 {
		t.Errorf("Clipped = %d, want 0", p.Clipped)
	}
}

func TestRenderCircumpolarClipped(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	// Near the north celestial pole, always at least 35° up from 40N.
	p, err := Render(r, sky.Equatorial{RA: 2.5, Dec: 85}, 15, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Clipped != len(r.Days) {
		t.Errorf("Clipped = %d, want every day (%d)", p.Clipped, len(r.Days))
	}
	b := r.Pixels.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if r.ClassAt(x, y) == Night && p.Image.RGBAAt(x, y) != visibleColor {
				t.Fatalf("night pixel (%d,%d) not painted for a circumpolar object", x, y)
			}
		}
	}
}

func TestRenderInvalidThreshold(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	if _, err := Render(r, m42, nanThreshold(), nil); !errors.Is(err, sky.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestClipped(t *testing.T) {
	tests := []struct {
		span   Span
		lo, hi float64
		want   bool
	}{
		{Span{}, -6, 6, false},
		{Span{-2, 3}, -6, 6, false},
		{Span{-7, 3}, -6, 6, true},
		{Span{-2, 7}, -6, 6, true},
		{Span{10, 14}, -12, 12, true},
		{FullSpan, -12, 12, false},
		{FullSpan, -6, 6, true},
	}
	for _, tt := range tests {
		if got := clipped(tt.span, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clipped(%v, %v, %v) = %v, want %v", tt.span, tt.lo, tt.hi, got, tt.want)
		}
	}
}
