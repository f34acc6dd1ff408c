// Package dso describes the deep-sky objects the engine is asked about.
package dso

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/star/skyplot/internal/sky"
)

// MinFieldOfView is the smallest field of view, in arcminutes, a sky viewer is
// pointed with. Stars and tiny planetaries would otherwise zoom in to nothing.
const MinFieldOfView = 3.0

// DSO is one catalog entry.
type DSO struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type,omitempty"`
	Coordinates sky.Equatorial `json:"-"`
	// Dimensions is the angular size (width, height) in arcminutes.
	Dimensions [2]float64 `json:"dimensions"`
}

// Horizontal returns the object's altitude and azimuth for an observer at loc
// at instant t.
func (d DSO) Horizontal(t time.Time, loc sky.Location) sky.Horizontal {
	return sky.ToHorizontal(d.Coordinates, loc, t)
}

// DisplayDegrees returns the (ra, dec) degree pair handed to sky viewers.
func (d DSO) DisplayDegrees() (raDeg, decDeg float64) {
	return sky.ToDisplayDegrees(d.Coordinates)
}

// FieldOfView returns the field of view in degrees that frames the object:
// the larger of its dimensions, never less than MinFieldOfView arcminutes.
func (d DSO) FieldOfView() float64 {
	return math.Max(math.Max(d.Dimensions[0], d.Dimensions[1]), MinFieldOfView) / 60
}

// wire is the catalog form: coordinates as a [ra hours, dec degrees] pair.
type wire struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type,omitempty"`
	Coords     [2]float64 `json:"coords"`
	Dimensions [2]float64 `json:"dimensions"`
}

// MarshalJSON implements json.Marshaler.
func (d DSO) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{
		ID:         d.ID,
		Name:       d.Name,
		Type:       d.Type,
		Coords:     [2]float64{d.Coordinates.RA, d.Coordinates.Dec},
		Dimensions: d.Dimensions,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Coordinates are validated with
// sky.NewEquatorial.
func (d *DSO) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	eq, err := sky.NewEquatorial(w.Coords[0], w.Coords[1])
	if err != nil {
		return fmt.Errorf("dso %q: %w", w.ID, err)
	}
	*d = DSO{ID: w.ID, Name: w.Name, Type: w.Type, Coordinates: eq, Dimensions: w.Dimensions}
	return nil
}

// ParseCatalog reads a JSON array of objects. Entries without an id are
// rejected, as are duplicate ids.
func ParseCatalog(r io.Reader) ([]DSO, error) {
	var objs []DSO
	if err := json.NewDecoder(r).Decode(&objs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]bool, len(objs))
	for i, o := range objs {
		if o.ID == "" {
			return nil, fmt.Errorf("%w: catalog entry %d has no id", sky.ErrInvalidInput, i)
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("%w: duplicate catalog id %q", sky.ErrInvalidInput, o.ID)
		}
		seen[o.ID] = true
	}
	return objs, nil
}
