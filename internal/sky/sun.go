package sky

import (
	"math"
	"time"
)

// SunEquatorial returns the Sun's apparent right ascension and declination at
// instant t using the low-precision formula of the Astronomical Almanac. Good to
// about 0.01° between 1950 and 2050, which is far below what a sunset time
// depends on.
func SunEquatorial(t time.Time) Equatorial {
	n := JulianDate(t) - j2000

	// Mean longitude and mean anomaly, degrees.
	l := math.Mod(280.460+0.9856474*n, 360)
	g := math.Mod(357.528+0.9856003*n, 360) * deg2rad

	// Ecliptic longitude and obliquity of the ecliptic.
	lambda := (l + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * deg2rad
	eps := (23.439 - 0.0000004*n) * deg2rad

	sinLambda, cosLambda := math.Sincos(lambda)
	ra := math.Atan2(math.Cos(eps)*sinLambda, cosLambda) * rad2deg / 15.0
	dec := math.Asin(math.Sin(eps)*sinLambda) * rad2deg

	return Equatorial{RA: WrapHours(ra), Dec: dec}
}
