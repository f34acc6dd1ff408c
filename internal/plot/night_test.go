package plot

import (
	"bytes"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
)

func nanThreshold() float64 { return math.NaN() }

func TestNightTrack(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	track, err := NightTrack(r, m42, date, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(track) < 2 {
		t.Fatalf("track has %d points", len(track))
	}
	if track[0].Hour != r.MinHour {
		t.Errorf("first sample at %v, want %v", track[0].Hour, r.MinHour)
	}
	if last := track[len(track)-1].Hour; last > r.MaxHour+1e-9 || r.MaxHour-last > 10.0/60 {
		t.Errorf("last sample at %v, axis ends at %v", last, r.MaxHour)
	}

	peak := track[0]
	for i, pt := range track {
		if i > 0 {
			if dt := pt.Time.Sub(track[i-1].Time); dt != 10*time.Minute {
				t.Fatalf("sample %d: step %v", i, dt)
			}
		}
		if want := sky.ToHorizontal(m42, madrid, pt.Time); pt.Horizontal != want {
			t.Fatalf("sample %d: %+v, want %+v", i, pt.Horizontal, want)
		}
		if pt.Altitude > peak.Altitude {
			peak = pt
		}
	}

	// Upper culmination: 90 - |lat - dec|.
	if want := 90 - math.Abs(madrid.Latitude-m42.Dec); math.Abs(peak.Altitude-want) > 0.2 {
		t.Errorf("peak altitude = %.2f, want %.2f", peak.Altitude, want)
	}
	w, _ := riseset.Window(m42, madrid, date, 15)
	if d := math.Abs(peak.Hour - NightHour(w.Transit)); d > 10.0/60 {
		t.Errorf("peak at night hour %.3f, transit at %.3f", peak.Hour, NightHour(w.Transit))
	}

	mid := track[len(track)/2]
	if mid.Sky != r.Days[date.YearDay()-1].Class(mid.Hour) {
		t.Errorf("sample sky class %v disagrees with the raster", mid.Sky)
	}
}

func TestNightTrackErrors(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NightTrack(nil, m42, date, time.Minute); !errors.Is(err, ErrNotReady) {
		t.Errorf("nil raster: err = %v, want ErrNotReady", err)
	}
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	if _, err := NightTrack(r, m42, date, 0); !errors.Is(err, sky.ErrInvalidInput) {
		t.Errorf("zero step: err = %v, want ErrInvalidInput", err)
	}
	if _, err := NightTrack(r, m42, date.AddDate(1, 0, 0), time.Minute); !errors.Is(err, ErrNotReady) {
		t.Errorf("other year: err = %v, want ErrNotReady", err)
	}
}

func TestRenderNight(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	p, err := RenderNight(r, m42, 15, date, image.Pt(400, 200))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Image.Bounds().Size(); got != image.Pt(400, 200) {
		t.Errorf("size = %v, want 400x200", got)
	}
	if p.Window.State != riseset.Normal {
		t.Errorf("window state = %v, want NORMAL", p.Window.State)
	}
	if len(p.Track) != 400 {
		t.Errorf("track has %d samples, want one per column", len(p.Track))
	}

	bright := 0
	for x := 0; x < 400; x++ {
		for y := 0; y < 200; y++ {
			if p.Image.RGBAAt(x, y) == curveColor {
				bright++
			}
		}
	}
	if bright == 0 {
		t.Error("no part of the curve is drawn as observable")
	}

	again, err := RenderNight(r, m42, 15, date, image.Pt(400, 200))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.Image.Pix, again.Image.Pix) {
		t.Error("RenderNight is not deterministic")
	}
}

func TestRenderNightErrors(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if _, err := RenderNight(nil, m42, 15, date, image.Pt(100, 100)); !errors.Is(err, ErrNotReady) {
		t.Errorf("nil raster: err = %v, want ErrNotReady", err)
	}
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	if _, err := RenderNight(r, m42, 15, date, image.Pt(1, 100)); !errors.Is(err, sky.ErrInvalidInput) {
		t.Errorf("tiny canvas: err = %v, want ErrInvalidInput", err)
	}
	if _, err := RenderNight(r, m42, nanThreshold(), date, image.Pt(100, 100)); !errors.Is(err, sky.ErrInvalidInput) {
		t.Errorf("NaN threshold: err = %v, want ErrInvalidInput", err)
	}
}

func TestPNGRoundTrip(t *testing.T) {
	r := buildRaster(t, madrid, 2024, DefaultSunThreshold)
	var buf bytes.Buffer
	if err := EncodePNG(&buf, r.Pixels); err != nil {
		t.Fatal(err)
	}
	img, err := DecodePNG(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix, r.Pixels.Pix) {
		t.Error("decoded pixels differ from the raster")
	}
}
