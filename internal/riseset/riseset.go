// Package riseset finds when a fixed celestial object crosses an altitude
// threshold.
//
// The solver is closed form: the hour angle at which the object's altitude
// equals the threshold follows directly from the spherical triangle
//
//	cos(H0) = (sin(h0) - sin(lat)·sin(dec)) / (cos(lat)·cos(dec))
//
// and is converted to local mean solar clock hours using the object's right
// ascension and the local sidereal time at local solar midnight. It is cheap
// enough to run for every day of a year per rendered plot.
package riseset

import (
	"fmt"
	"math"
	"time"

	"cloudeng.io/errors"

	"github.com/star/skyplot/internal/sky"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi

	// degenerateEps is the bound on cos(lat)·cos(dec) below which the
	// hour-angle formula is replaced by a direct altitude comparison.
	degenerateEps = 1e-12

	// altitudeEps absorbs rounding in the constant-altitude comparison so that
	// an object whose altitude equals the threshold counts as above it.
	altitudeEps = 1e-9
)

// State classifies an object's daily motion relative to a threshold.
type State int

const (
	// Normal objects rise above and set below the threshold once per day.
	Normal State = iota
	// Circumpolar objects never drop below the threshold.
	Circumpolar
	// NeverVisible objects never rise above the threshold.
	NeverVisible
)

var stateNames = map[State]string{
	Normal:       "NORMAL",
	Circumpolar:  "CIRCUMPOLAR",
	NeverVisible: "NEVER_VISIBLE",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("riseset: unknown state %q", text)
}

// HourAngle is the solution of the rise/set equation for one declination,
// latitude and threshold.
type HourAngle struct {
	State State
	// H0 is the half-width of the visible arc in sidereal hours, [0, 12].
	// It is 12 for Circumpolar and 0 for NeverVisible.
	H0 float64
}

// Solve returns the hour angle at which an object at declination dec crosses
// altitude threshold for an observer at latitude lat (all degrees).
//
// At the geographic poles, and for an object at a celestial pole, altitude does
// not change over the day. The formula divides by zero there, so the constant
// altitude asin(sin(lat)·sin(dec)) is compared with the threshold instead.
func Solve(dec, lat, threshold float64) (HourAngle, error) {
	errs := &errors.M{}
	errs.Append(
		sky.CheckFinite("declination", dec),
		sky.CheckFinite("latitude", lat),
		sky.CheckFinite("threshold", threshold),
	)
	if err := errs.Err(); err != nil {
		return HourAngle{}, err
	}

	sinLat, cosLat := math.Sincos(lat * deg2rad)
	sinDec, cosDec := math.Sincos(dec * deg2rad)
	denom := cosLat * cosDec

	if math.Abs(denom) < degenerateEps {
		alt := math.Asin(math.Max(-1, math.Min(1, sinLat*sinDec))) * rad2deg
		if alt >= threshold-altitudeEps {
			return HourAngle{State: Circumpolar, H0: 12}, nil
		}
		return HourAngle{State: NeverVisible}, nil
	}

	cosH0 := (math.Sin(threshold*deg2rad) - sinLat*sinDec) / denom
	switch {
	case cosH0 < -1:
		return HourAngle{State: Circumpolar, H0: 12}, nil
	case cosH0 > 1:
		return HourAngle{State: NeverVisible}, nil
	}
	return HourAngle{State: Normal, H0: math.Acos(cosH0) * 12.0 / math.Pi}, nil
}

// TimeWindow is the interval an object spends above a threshold during one
// night, in local mean solar clock hours [0, 24).
type TimeWindow struct {
	State State `json:"state"`
	// Rise and Set are zero unless State is Normal. Set may be numerically
	// smaller than Rise when the window spans local midnight.
	Rise float64 `json:"rise"`
	Set  float64 `json:"set"`
	// Transit is the upper meridian crossing closest to local midnight.
	Transit float64 `json:"transit"`
	// Duration is the number of solar hours above the threshold: 24 for
	// Circumpolar, 0 for NeverVisible.
	Duration float64 `json:"duration"`
}

// Contains reports whether clock hour h falls inside the window.
func (w TimeWindow) Contains(h float64) bool {
	switch w.State {
	case Circumpolar:
		return true
	case NeverVisible:
		return false
	}
	return sky.WrapHours(h-w.Rise) <= w.Duration
}

// Window computes the visibility window of eq for the observer at loc during the
// night that follows date's calendar day. Times are referenced to the local mean
// solar midnight that ends that day (see sky.LocalMidnight).
func Window(eq sky.Equatorial, loc sky.Location, date time.Time, threshold float64) (TimeWindow, error) {
	return window(eq, loc, date, threshold, sky.SiderealRate)
}

// window converts the hour angle solution to solar clock hours. rate is how
// fast the target's hour angle grows, in hour-angle hours per solar hour:
// SiderealRate for a fixed star, 1 for the Sun.
func window(eq sky.Equatorial, loc sky.Location, date time.Time, threshold, rate float64) (TimeWindow, error) {
	errs := &errors.M{}
	errs.Append(
		sky.CheckFinite("right ascension", eq.RA),
		sky.CheckFinite("longitude", loc.Longitude),
	)
	if err := errs.Err(); err != nil {
		return TimeWindow{}, err
	}
	ha, err := Solve(eq.Dec, loc.Latitude, threshold)
	if err != nil {
		return TimeWindow{}, err
	}

	midnight := sky.LocalMidnight(date, loc.Longitude)
	lst := sky.LocalSiderealTime(midnight, loc.Longitude)
	transit := sky.WrapSignedHours(eq.RA-lst) / rate

	w := TimeWindow{State: ha.State, Transit: sky.WrapHours(transit)}
	switch ha.State {
	case Circumpolar:
		w.Duration = 24
	case Normal:
		half := ha.H0 / rate
		w.Rise = sky.WrapHours(transit - half)
		w.Set = sky.WrapHours(transit + half)
		w.Duration = 2 * half
	}
	return w, nil
}

// SunWindow returns the window during which the Sun is above threshold for the
// night that follows date. The Sun's position is taken at local solar midnight
// and its hour angle advances one hour per solar hour.
func SunWindow(loc sky.Location, date time.Time, threshold float64) (TimeWindow, error) {
	sun := sky.SunEquatorial(sky.LocalMidnight(date, loc.Longitude))
	return window(sun, loc, date, threshold, 1)
}

// Instant converts clock hour h of the night following date to an absolute
// time. Hours before noon are taken after local midnight, hours after noon
// before it.
func Instant(date time.Time, longitude, h float64) time.Time {
	midnight := sky.LocalMidnight(date, longitude)
	return midnight.Add(time.Duration(sky.WrapSignedHours(h) * float64(time.Hour)))
}
