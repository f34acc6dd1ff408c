package sky

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/soniakeys/unit"
)

// unitMarkers may follow a numeric component of a sexagesimal string.
const unitMarkers = "hmsd°'\"′″"

// ParseRA parses a right ascension given as decimal hours ("5.5755") or
// sexagesimal hours ("05 34 32", "5h34m31.9s", "05:34:31.9").
func ParseRA(s string) (float64, error) {
	neg, fields, err := sexaFields(s)
	if err != nil {
		return 0, fmt.Errorf("%w: right ascension %q: %v", ErrInvalidInput, s, err)
	}
	if neg {
		return 0, fmt.Errorf("%w: right ascension %q is negative", ErrInvalidInput, s)
	}
	if len(fields) == 1 {
		return WrapHours(fields[0]), nil
	}
	h, m, sec := splitFields(fields)
	return unit.NewRA(h, m, sec).Hour(), nil
}

// ParseDec parses a declination given as decimal degrees ("-5.39") or
// sexagesimal degrees ("+22 00 52", "-05°23'28\"", "+22:00:52").
func ParseDec(s string) (float64, error) {
	neg, fields, err := sexaFields(s)
	if err != nil {
		return 0, fmt.Errorf("%w: declination %q: %v", ErrInvalidInput, s, err)
	}
	var sign byte = '+'
	if neg {
		sign = '-'
	}
	if len(fields) == 1 {
		if neg {
			return -fields[0], nil
		}
		return fields[0], nil
	}
	d, m, sec := splitFields(fields)
	return unit.NewAngle(sign, d, m, sec).Deg(), nil
}

func sexaFields(s string) (bool, []float64, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"), strings.HasPrefix(s, "−"):
		neg = true
		s = strings.TrimLeft(s, "-−")
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	parts, err := sexaComponents(s)
	if err != nil {
		return false, nil, err
	}
	if len(parts) == 0 || len(parts) > 3 {
		return false, nil, fmt.Errorf("expected 1 to 3 components, got %d", len(parts))
	}
	fields := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return false, nil, err
		}
		if err := CheckFinite("component", v); err != nil {
			return false, nil, err
		}
		if v < 0 {
			return false, nil, fmt.Errorf("component %q is negative", p)
		}
		fields[i] = v
	}
	return neg, fields, nil
}

// sexaComponents splits s into its numeric components. Components are
// separated by spaces or colons, and each may carry one unit marker directly
// after its digits ("5h34m", "-05°23'"). A marker anywhere else is an error.
func sexaComponents(s string) ([]string, error) {
	var parts []string
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		if unicode.IsSpace(r) || r == ':' {
			i++
			continue
		}
		start := i
		for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
			i++
		}
		if i == start {
			return nil, fmt.Errorf("unexpected %q", string(r))
		}
		parts = append(parts, string(rs[start:i]))
		if i < len(rs) && strings.ContainsRune(unitMarkers, rs[i]) {
			i++
		}
		if i < len(rs) && !unicode.IsSpace(rs[i]) && rs[i] != ':' && !unicode.IsDigit(rs[i]) {
			return nil, fmt.Errorf("unexpected %q after %q", string(rs[i]), parts[len(parts)-1])
		}
	}
	return parts, nil
}

func splitFields(fields []float64) (int, int, float64) {
	// Fractional leading components carry down so "5.5 0" still means 5h30m.
	whole := fields[0]
	if len(fields) == 2 {
		return int(whole), 0, (whole-math.Trunc(whole))*3600 + fields[1]*60
	}
	return int(whole), 0, (whole-math.Trunc(whole))*3600 + fields[1]*60 + fields[2]
}

// FormatEquatorial renders eq the way catalog tables show it:
// "05h 34m 32s / +22° 00' 52\"".
func FormatEquatorial(eq Equatorial) string {
	ts := int64(math.Round(WrapHours(eq.RA) * 3600))
	ts %= 24 * 3600
	raStr := fmt.Sprintf("%02dh %02dm %02ds", ts/3600, ts%3600/60, ts%60)

	sign := "+"
	if eq.Dec < 0 {
		sign = "-"
	}
	as := int64(math.Round(math.Abs(eq.Dec) * 3600))
	decStr := fmt.Sprintf("%s%02d° %02d' %02d\"", sign, as/3600, as%3600/60, as%60)

	return raStr + " / " + decStr
}

// FormatHorizontal renders hz as "+41.2° / 237.9°" (altitude / azimuth).
func FormatHorizontal(hz Horizontal) string {
	return fmt.Sprintf("%+.1f° / %.1f°", hz.Altitude, hz.Azimuth)
}
