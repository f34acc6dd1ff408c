package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"cloudeng.io/errors"

	"github.com/star/skyplot/internal/sky"
)

const (
	minYear = 1
	maxYear = 9999
)

// query reads request parameters and collects every problem so a single 400
// names all of them.
type query struct {
	v    url.Values
	errs errors.M
}

func newQuery(v url.Values) *query {
	return &query{v: v}
}

func (q *query) has(name string) bool {
	return q.v.Get(name) != ""
}

func (q *query) fail(format string, args ...any) {
	q.errs.Append(fmt.Errorf("%w: "+format, append([]any{sky.ErrInvalidInput}, args...)...))
}

// float returns the named parameter, or def when it is absent.
func (q *query) float(name string, def float64) float64 {
	s := q.v.Get(name)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		q.fail("%s %q is not a number", name, s)
		return def
	}
	if err := sky.CheckFinite(name, f); err != nil {
		q.errs.Append(err)
		return def
	}
	return f
}

func (q *query) int(name string, def int) int {
	s := q.v.Get(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		q.fail("%s %q is not an integer", name, s)
		return def
	}
	return n
}

// year returns the requested year, or 0 when absent. Years outside
// [minYear, maxYear] are rejected.
func (q *query) year() int {
	if !q.has("year") {
		return 0
	}
	s := q.v.Get("year")
	y, err := strconv.Atoi(s)
	switch {
	case err != nil:
		q.fail("year %q is not an integer", s)
		return 0
	case y < minYear || y > maxYear:
		q.fail("year %d is outside [%d, %d]", y, minYear, maxYear)
		return 0
	}
	return y
}

// location returns the site given by lat and lon, or false when neither is
// present. Giving only one of them is an error.
func (q *query) location() (sky.Location, bool) {
	switch {
	case !q.has("lat") && !q.has("lon"):
		return sky.Location{}, false
	case !q.has("lat"):
		q.fail("lat is required with lon")
		return sky.Location{}, false
	case !q.has("lon"):
		q.fail("lon is required with lat")
		return sky.Location{}, false
	}
	lat, lon := q.float("lat", 0), q.float("lon", 0)
	loc, err := sky.NewLocation(lat, lon)
	if err != nil {
		q.errs.Append(err)
		return sky.Location{}, false
	}
	return loc, true
}

// requiredLocation is location for requests that cannot fall back to the
// cached site.
func (q *query) requiredLocation() sky.Location {
	if !q.has("lat") && !q.has("lon") {
		q.fail("lat and lon are required")
		return sky.Location{}
	}
	loc, _ := q.location()
	return loc
}

// object returns the target from ra (hours) and dec (degrees), both required.
// Either may be sexagesimal.
func (q *query) object() sky.Equatorial {
	ok := true
	parse := func(name string, fn func(string) (float64, error)) float64 {
		if !q.has(name) {
			q.fail("%s is required", name)
			ok = false
			return 0
		}
		v, err := fn(q.v.Get(name))
		if err != nil {
			q.errs.Append(err)
			ok = false
		}
		return v
	}
	ra := parse("ra", sky.ParseRA)
	dec := parse("dec", sky.ParseDec)
	if !ok {
		return sky.Equatorial{}
	}
	eq, err := sky.NewEquatorial(ra, dec)
	if err != nil {
		q.errs.Append(err)
	}
	return eq
}

// date parses a YYYY-MM-DD calendar date, defaulting to today (UTC).
func (q *query) date(name string, now time.Time) time.Time {
	s := q.v.Get(name)
	if s == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		q.fail("%s %q is not a YYYY-MM-DD date", name, s)
		return now
	}
	return t
}

// instant parses an RFC 3339 timestamp, defaulting to now.
func (q *query) instant(name string, now time.Time) time.Time {
	s := q.v.Get(name)
	if s == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		q.fail("%s %q is not an RFC 3339 time", name, s)
		return now
	}
	return t
}

func (q *query) err() error {
	return q.errs.Err()
}
