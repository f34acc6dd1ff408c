package riseset

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/star/skyplot/internal/sky"
)

func TestSolvePole(t *testing.T) {
	tests := []struct {
		name      string
		lat, dec  float64
		threshold float64
		want      State
	}{
		{"north pole dec 45 threshold 15", 90, 45, 15, Circumpolar},
		{"north pole dec 45 threshold 45", 90, 45, 45, Circumpolar},
		{"north pole dec 45 threshold 45.1", 90, 45, 45.1, NeverVisible},
		{"north pole dec 45 threshold 60", 90, 45, 60, NeverVisible},
		{"north pole dec -30 threshold 1", 90, -30, 1, NeverVisible},
		{"north pole dec -30 threshold 30", 90, -30, 30, NeverVisible},
		{"south pole dec -30 threshold 15", -90, -30, 15, Circumpolar},
		{"south pole dec 30 threshold 0", -90, 30, 0, NeverVisible},
		{"celestial pole from 40N", 40, 90, 30, Circumpolar},
		{"celestial pole from 40N high threshold", 40, 90, 45, NeverVisible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, err := Solve(tt.dec, tt.lat, tt.threshold)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ha.State != tt.want {
				t.Errorf("state = %v, want %v", ha.State, tt.want)
			}
		})
	}
}

func TestSolveNormal(t *testing.T) {
	// Equatorial object from 51.5N with a 15° threshold.
	ha, err := Solve(0, 51.5, 15)
	if err != nil {
		t.Fatal(err)
	}
	if ha.State != Normal {
		t.Fatalf("state = %v, want NORMAL", ha.State)
	}
	want := math.Acos(math.Sin(15*deg2rad)/math.Cos(51.5*deg2rad)) * 12 / math.Pi
	if math.Abs(ha.H0-want) > 1e-12 {
		t.Errorf("H0 = %v, want %v", ha.H0, want)
	}
	if ha.H0 >= 6 {
		t.Errorf("H0 = %v, want < 6 for a positive threshold", ha.H0)
	}

	// A 0° threshold on the celestial equator is exactly 6 sidereal hours.
	ha, _ = Solve(0, 51.5, 0)
	if math.Abs(ha.H0-6) > 1e-12 {
		t.Errorf("H0 on horizon = %v, want 6", ha.H0)
	}
}

func TestSolveInvalidInput(t *testing.T) {
	tests := []struct {
		name                string
		dec, lat, threshold float64
	}{
		{"NaN declination", math.NaN(), 0, 0},
		{"NaN latitude", 0, math.NaN(), 0},
		{"infinite threshold", 0, 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Solve(tt.dec, tt.lat, tt.threshold); !errors.Is(err, sky.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	_, err := Window(sky.Equatorial{RA: math.NaN()}, sky.Location{}, time.Now(), 0)
	if !errors.Is(err, sky.ErrInvalidInput) {
		t.Errorf("Window NaN RA: err = %v, want ErrInvalidInput", err)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Normal:       "NORMAL",
		Circumpolar:  "CIRCUMPOLAR",
		NeverVisible: "NEVER_VISIBLE",
		State(7):     "State(7)",
	} {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

// TestWindowAroundMidnight covers an equatorial object transiting at local
// midnight from 51.5N with a 15° threshold.
func TestWindowAroundMidnight(t *testing.T) {
	loc := sky.Location{Latitude: 51.5, Longitude: -0.12}
	date := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	mid := sky.LocalMidnight(date, loc.Longitude)
	eq := sky.Equatorial{RA: sky.LocalSiderealTime(mid, loc.Longitude), Dec: 0}

	w, err := Window(eq, loc, date, 15)
	if err != nil {
		t.Fatal(err)
	}
	if w.State != Normal {
		t.Fatalf("state = %v, want NORMAL", w.State)
	}
	if d := math.Abs(sky.WrapSignedHours(w.Transit)); d > 1e-6 {
		t.Errorf("transit = %v, want local midnight", w.Transit)
	}
	if w.Duration <= 0 || w.Duration >= 12 {
		t.Errorf("duration = %v, want in (0, 12)", w.Duration)
	}
	if asym := sky.WrapSignedHours(w.Rise) + w.Set; math.Abs(asym) > 1e-6 {
		t.Errorf("rise %v and set %v are not symmetric about midnight", w.Rise, w.Set)
	}
	if w.Rise < 12 || w.Set > 12 {
		t.Errorf("window %v..%v does not straddle midnight", w.Rise, w.Set)
	}

	// An object opposite the Sun transits close to midnight too; the equation
	// of time keeps it within half an hour.
	sun := sky.SunEquatorial(mid)
	opp := sky.Equatorial{RA: sky.WrapHours(sun.RA + 12), Dec: 0}
	w, err = Window(opp, loc, date, 15)
	if err != nil {
		t.Fatal(err)
	}
	if d := math.Abs(sky.WrapSignedHours(w.Transit)); d > 0.5 {
		t.Errorf("anti-solar transit = %v, want within 0.5h of midnight", w.Transit)
	}
}

// TestWindowGeometry checks that rise and set land on the threshold and that
// the window's midpoint is the altitude maximum.
func TestWindowGeometry(t *testing.T) {
	date := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	for _, lat := range []float64{-60, -30, 0, 30, 51.5} {
		for _, dec := range []float64{-40, -10, 0, 20, 45} {
			for _, threshold := range []float64{0, 15, 30} {
				for _, offset := range []float64{-2, 0, 3} {
					loc := sky.Location{Latitude: lat, Longitude: 23.7}
					mid := sky.LocalMidnight(date, loc.Longitude)
					eq := sky.Equatorial{RA: sky.WrapHours(sky.LocalSiderealTime(mid, loc.Longitude) + offset), Dec: dec}

					w, err := Window(eq, loc, date, threshold)
					if err != nil {
						t.Fatal(err)
					}
					if w.State != Normal {
						continue
					}
					transit := offset / sky.SiderealRate
					half := w.Duration / 2
					if math.Abs(transit-half) >= 11.5 || math.Abs(transit+half) >= 11.5 {
						continue
					}

					if w.Duration <= 0 {
						t.Errorf("lat=%v dec=%v thr=%v: duration %v not positive", lat, dec, threshold, w.Duration)
					}
					if got := sky.WrapHours(w.Set - w.Rise); math.Abs(got-w.Duration) > 1e-9 {
						t.Errorf("lat=%v dec=%v thr=%v: set-rise = %v, duration = %v", lat, dec, threshold, got, w.Duration)
					}
					if mp := sky.WrapHours(w.Rise + half); math.Abs(sky.WrapSignedHours(mp-w.Transit)) > 1e-9 {
						t.Errorf("lat=%v dec=%v thr=%v: midpoint %v != transit %v", lat, dec, threshold, mp, w.Transit)
					}

					alt := func(h float64) float64 {
						return sky.ToHorizontal(eq, loc, Instant(date, loc.Longitude, h)).Altitude
					}
					if a := alt(w.Rise); math.Abs(a-threshold) > 1e-3 {
						t.Errorf("lat=%v dec=%v thr=%v: altitude at rise = %v", lat, dec, threshold, a)
					}
					if a := alt(w.Set); math.Abs(a-threshold) > 1e-3 {
						t.Errorf("lat=%v dec=%v thr=%v: altitude at set = %v", lat, dec, threshold, a)
					}
					peak := alt(w.Transit)
					if want := 90 - math.Abs(lat-dec); math.Abs(peak-want) > 1e-3 {
						t.Errorf("lat=%v dec=%v: transit altitude = %v, want %v", lat, dec, peak, want)
					}
					if peak < alt(w.Transit-0.25) || peak < alt(w.Transit+0.25) {
						t.Errorf("lat=%v dec=%v thr=%v: transit is not the altitude maximum", lat, dec, threshold)
					}
				}
			}
		}
	}
}

// TestWindowCircumpolarBoundary approaches 90-|dec| from below: the rise and
// set hours close in on the lower culmination rather than jumping.
func TestWindowCircumpolarBoundary(t *testing.T) {
	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	eq := sky.Equatorial{RA: 4, Dec: 30}

	prevGap := math.Inf(1)
	for _, lat := range []float64{55, 58, 59.5, 59.9, 59.99, 59.999, 59.99999} {
		w, err := Window(eq, sky.Location{Latitude: lat}, date, 0)
		if err != nil {
			t.Fatal(err)
		}
		if w.State != Normal {
			t.Fatalf("lat=%v: state = %v, want NORMAL", lat, w.State)
		}
		gap := 24 - w.Duration
		if gap >= prevGap {
			t.Errorf("lat=%v: below-threshold gap %v did not shrink (prev %v)", lat, gap, prevGap)
		}
		prevGap = gap

		antiTransit := sky.WrapHours(w.Transit + 12)
		lower := math.Abs(sky.WrapSignedHours(sky.WrapHours(w.Set+gap/2) - antiTransit))
		if lower > 0.05 {
			t.Errorf("lat=%v: lower culmination %v h from anti-transit", lat, lower)
		}
	}
	// A circumpolar object is above the threshold for a whole sidereal day,
	// which is the limit the gap converges to.
	if limit := 24 - 24/sky.SiderealRate; prevGap-limit > 0.01 {
		t.Errorf("gap just below boundary = %v h, want close to %v", prevGap, limit)
	}

	w, err := Window(eq, sky.Location{Latitude: 60.001}, date, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.State != Circumpolar || w.Duration != 24 {
		t.Errorf("lat=60.001: window = %+v, want circumpolar", w)
	}
	if w.Rise != 0 || w.Set != 0 {
		t.Errorf("circumpolar window carries rise/set: %+v", w)
	}

	// Mirror image: rise and set merge at transit approaching never-visible.
	w, err = Window(eq, sky.Location{Latitude: -59.999}, date, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.State != Normal || w.Duration > 0.1 {
		t.Errorf("lat=-59.999: window = %+v, want vanishing normal window", w)
	}
	w, _ = Window(eq, sky.Location{Latitude: -60.001}, date, 0)
	if w.State != NeverVisible || w.Duration != 0 {
		t.Errorf("lat=-60.001: window = %+v, want never visible", w)
	}
}

func TestTimeWindowContains(t *testing.T) {
	w := TimeWindow{State: Normal, Rise: 21, Set: 3, Duration: 6}
	for h, want := range map[float64]bool{22: true, 0: true, 2.9: true, 3.5: false, 12: false, 20.9: false} {
		if got := w.Contains(h); got != want {
			t.Errorf("Contains(%v) = %v, want %v", h, got, want)
		}
	}
	if !(TimeWindow{State: Circumpolar}).Contains(12) {
		t.Error("circumpolar window should contain every hour")
	}
	if (TimeWindow{State: NeverVisible}).Contains(0) {
		t.Error("never-visible window should contain no hour")
	}
}

// TestSunWindowSunrise compares sunrise and sunset against go-sunrise using the
// conventional -0.833° apparent horizon.
func TestSunWindowSunrise(t *testing.T) {
	const tolerance = 0.1 // hours

	sites := []sky.Location{
		{Latitude: 51.5, Longitude: -0.12},
		{Latitude: 40, Longitude: -3},
		{Latitude: -33.9, Longitude: 151.2},
		{Latitude: 19.8, Longitude: -155.5},
	}
	clock := func(ts time.Time, lon float64) float64 {
		ts = ts.UTC()
		h := float64(ts.Hour()) + float64(ts.Minute())/60 + float64(ts.Second())/3600
		return sky.WrapHours(h + lon/15)
	}

	for _, loc := range sites {
		for month := time.January; month <= time.December; month += 2 {
			date := time.Date(2024, month, 14, 0, 0, 0, 0, time.UTC)
			w, err := SunWindow(loc, date, -0.833)
			if err != nil {
				t.Fatal(err)
			}
			if w.State != Normal {
				t.Fatalf("%v %s: sun state = %v", loc, date.Format("2006-01-02"), w.State)
			}

			_, set := sunrise.SunriseSunset(loc.Latitude, loc.Longitude, date.Year(), date.Month(), date.Day())
			next := date.AddDate(0, 0, 1)
			rise, _ := sunrise.SunriseSunset(loc.Latitude, loc.Longitude, next.Year(), next.Month(), next.Day())

			if d := math.Abs(sky.WrapSignedHours(w.Set - clock(set, loc.Longitude))); d > tolerance {
				t.Errorf("%v %s: sunset %.3f h, go-sunrise %.3f h", loc, date.Format("2006-01-02"), w.Set, clock(set, loc.Longitude))
			}
			if d := math.Abs(sky.WrapSignedHours(w.Rise - clock(rise, loc.Longitude))); d > tolerance {
				t.Errorf("%v %s: sunrise %.3f h, go-sunrise %.3f h", loc, next.Format("2006-01-02"), w.Rise, clock(rise, loc.Longitude))
			}
		}
	}
}

// TestSunWindowTransit checks that the Sun's reported transit is the instant
// its hour angle is zero.
func TestSunWindowTransit(t *testing.T) {
	const tolerance = 0.01 // hours

	for _, loc := range []sky.Location{
		{Latitude: 51.5, Longitude: -0.12},
		{Latitude: -33.9, Longitude: 151.2},
	} {
		for month := time.January; month <= time.December; month += 3 {
			date := time.Date(2024, month, 10, 0, 0, 0, 0, time.UTC)
			w, err := SunWindow(loc, date, -10)
			if err != nil {
				t.Fatal(err)
			}
			at := Instant(date, loc.Longitude, w.Transit)
			ha := sky.WrapSignedHours(sky.LocalSiderealTime(at, loc.Longitude) - sky.SunEquatorial(at).RA)
			if math.Abs(ha) > tolerance {
				t.Errorf("%v %s: sun hour angle at transit = %.4f h", loc, date.Format(time.DateOnly), ha)
			}
		}
	}
}

func TestInstant(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// Longitude 0: clock hours are UTC hours.
	if got, want := Instant(date, 0, 22.5), time.Date(2024, 6, 1, 22, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Instant(22.5) = %v, want %v", got, want)
	}
	if got, want := Instant(date, 0, 3), time.Date(2024, 6, 2, 3, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Instant(3) = %v, want %v", got, want)
	}
}

func TestStateText(t *testing.T) {
	for _, s := range []State{Normal, Circumpolar, NeverVisible} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got State
		if err := got.UnmarshalText(text); err != nil || got != s {
			t.Errorf("round trip of %v = %v, %v", s, got, err)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("SOMETIMES")); err == nil {
		t.Error("unknown state should not parse")
	}
}
