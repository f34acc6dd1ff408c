package watch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/star/skyplot/internal/dso"
	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
)

// Row is one watchlist line: where the object is now and when it is up tonight.
type Row struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Coords     string             `json:"coords"`
	Horizontal sky.Horizontal     `json:"horizontal"`
	Position   string             `json:"position"`
	Window     riseset.TimeWindow `json:"window"`
	Error      string             `json:"error,omitempty"`
}

// TonightRequest holds the parameters of a watchlist summary.
type TonightRequest struct {
	Location  sky.Location
	Date      time.Time // night that follows this calendar day
	At        time.Time // instant for the alt/az column
	Threshold float64
	Objects   []dso.DSO
}

// Tonight computes a Row for every object. Objects are processed concurrently,
// bounded by the number of CPUs; rows keep the order of req.Objects.
func Tonight(ctx context.Context, req TonightRequest) []Row {
	rows := make([]Row, len(req.Objects))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, obj := range req.Objects {
		wg.Add(1)
		go func(idx int, o dso.DSO) {
			defer wg.Done()

			rows[idx] = Row{ID: o.ID, Name: o.Name}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				rows[idx].Error = "cancelled"
				return
			}

			w, err := riseset.Window(o.Coordinates, req.Location, req.Date, req.Threshold)
			if err != nil {
				rows[idx].Error = err.Error()
				return
			}
			hz := o.Horizontal(req.At, req.Location)
			rows[idx].Coords = sky.FormatEquatorial(o.Coordinates)
			rows[idx].Horizontal = hz
			rows[idx].Position = sky.FormatHorizontal(hz)
			rows[idx].Window = w
		}(i, obj)
	}

	wg.Wait()
	return rows
}
