package sky

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

// SiderealRate is the number of sidereal hours that elapse per solar hour.
const SiderealRate = 1.00273790935

// JulianDate converts a time.Time to Julian Date. The time is taken in UTC.
// Uses the standard astronomical algorithm valid for dates after March 1, 4801 BC.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	frac := float64(t.Hour()) + float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0

	// Jan/Feb count as months 13/14 of the previous year.
	if m <= 2 {
		y -= 1
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + frac/24.0
}

// GMST returns Greenwich Mean Sidereal Time in radians for the given instant.
// IAU-82 model (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0 and θ is in seconds of time.
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// LocalSiderealTime returns the local mean sidereal time in hours [0, 24) for an
// observer at the given east-positive longitude (degrees).
func LocalSiderealTime(t time.Time, longitude float64) float64 {
	return WrapHours(GMST(t)*12.0/math.Pi + longitude/15.0)
}

// WrapHours reduces h into [0, 24).
func WrapHours(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	if h >= 24 {
		h = 0
	}
	return h
}

// WrapSignedHours reduces h into [-12, 12).
func WrapSignedHours(h float64) float64 {
	return WrapHours(h+12) - 12
}

// SolarOffset converts a longitude to the offset between UTC and local mean
// solar time.
func SolarOffset(longitude float64) time.Duration {
	return time.Duration(longitude / 15.0 * float64(time.Hour))
}

// LocalMidnight returns the instant of local mean solar midnight that ends the
// calendar day of date (year, month and day are read in date's own location).
func LocalMidnight(date time.Time, longitude float64) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Add(-SolarOffset(longitude))
}
