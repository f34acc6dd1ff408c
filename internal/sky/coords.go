// Package sky provides the coordinate systems and time scales used to decide
// whether a fixed celestial object is above an observer's horizon.
//
// Equatorial coordinates (right ascension in hours, declination in degrees) are
// converted to horizontal coordinates (altitude and azimuth in degrees) using
// local mean sidereal time. The transform is purely geometric: atmospheric
// refraction, precession and nutation are not modeled, which keeps the error
// well under a degree for catalog objects and is plenty for observation planning.
package sky

import (
	"fmt"
	"math"
	"time"

	"cloudeng.io/errors"
)

// ErrInvalidInput is returned when a coordinate, threshold or time is NaN,
// infinite or out of range.
var ErrInvalidInput = errors.New("invalid input")

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Location is an observer's geographic position in degrees.
// Longitude is east-positive.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewLocation validates latitude and longitude and wraps the longitude into
// [-180, 180] by whole turns. Map widgets report longitudes past ±180 when the
// user scrolls horizontally; those wrap rather than clamp. Latitude is not
// range checked beyond being finite.
func NewLocation(latitude, longitude float64) (Location, error) {
	errs := &errors.M{}
	errs.Append(
		CheckFinite("latitude", latitude),
		CheckFinite("longitude", longitude),
	)
	if err := errs.Err(); err != nil {
		return Location{}, err
	}
	return Location{Latitude: latitude, Longitude: wrapLongitude(longitude)}, nil
}

// wrapLongitude maps lon into [-180, 180]. Values already in range, including
// both edges, are returned unchanged; an east longitude that lands on the
// antimeridian maps to 180.
func wrapLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	w := math.Mod(lon+180, 360)
	if w < 0 {
		w += 360
	}
	w -= 180
	if w == -180 && lon > 0 {
		return 180
	}
	return w
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
}

// Equatorial holds fixed celestial coordinates.
type Equatorial struct {
	RA  float64 `json:"ra"`  // right ascension, hours [0, 24)
	Dec float64 `json:"dec"` // declination, degrees [-90, 90]
}

// NewEquatorial validates the coordinates and wraps ra into [0, 24).
// Declination must lie in [-90, 90].
func NewEquatorial(ra, dec float64) (Equatorial, error) {
	errs := &errors.M{}
	errs.Append(
		CheckFinite("right ascension", ra),
		CheckFinite("declination", dec),
	)
	if math.Abs(dec) > 90 {
		errs.Append(fmt.Errorf("%w: declination %v is outside [-90, 90]", ErrInvalidInput, dec))
	}
	if err := errs.Err(); err != nil {
		return Equatorial{}, err
	}
	return Equatorial{RA: WrapHours(ra), Dec: dec}, nil
}

// Horizontal holds an object's position relative to the observer's horizon.
type Horizontal struct {
	Altitude float64 `json:"altitude"` // degrees, 0 = horizon, 90 = zenith
	Azimuth  float64 `json:"azimuth"`  // degrees, 0 = north, clockwise, [0, 360)
}

// CheckFinite returns an ErrInvalidInput error naming the field when v is NaN
// or infinite.
func CheckFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is %v", ErrInvalidInput, name, v)
	}
	return nil
}

// ToHorizontal computes the altitude and azimuth of eq for an observer at loc
// at instant t.
//
//	H        = LST - RA
//	sin(alt) = sin(dec)·sin(lat) + cos(dec)·cos(lat)·cos(H)
//	az       = atan2(-cos(dec)·sin(H), sin(dec)·cos(lat) - cos(dec)·sin(lat)·cos(H))
//
// At the geographic poles every direction is south (or north) and at the zenith
// azimuth has no meaning; in both cases Azimuth is returned as 0.
func ToHorizontal(eq Equatorial, loc Location, t time.Time) Horizontal {
	ha := (LocalSiderealTime(t, loc.Longitude) - eq.RA) * 15.0 * deg2rad
	lat := loc.Latitude * deg2rad
	dec := eq.Dec * deg2rad

	sinLat, cosLat := math.Sincos(lat)
	sinDec, cosDec := math.Sincos(dec)
	sinHA, cosHA := math.Sincos(ha)

	sinAlt := sinDec*sinLat + cosDec*cosLat*cosHA
	sinAlt = math.Max(-1, math.Min(1, sinAlt))
	alt := math.Asin(sinAlt)

	if math.Abs(cosLat) < 1e-12 || math.Abs(math.Cos(alt)) < 1e-12 {
		return Horizontal{Altitude: alt * rad2deg}
	}

	az := math.Atan2(-cosDec*sinHA, sinDec*cosLat-cosDec*sinLat*cosHA) * rad2deg
	if az < 0 {
		az += 360
	}
	if az >= 360 {
		az -= 360
	}
	return Horizontal{Altitude: alt * rad2deg, Azimuth: az}
}

// ToDisplayDegrees converts eq to the (ra, dec) degree pair expected by sky
// viewer widgets.
func ToDisplayDegrees(eq Equatorial) (raDeg, decDeg float64) {
	return eq.RA * 15.0, eq.Dec
}
