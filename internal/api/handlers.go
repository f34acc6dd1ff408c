package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/star/skyplot/internal/cache"
	"github.com/star/skyplot/internal/dso"
	"github.com/star/skyplot/internal/metrics"
	"github.com/star/skyplot/internal/plot"
	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
	"github.com/star/skyplot/internal/watch"
)

// maxCanvas bounds the side of a requested night.png.
const maxCanvas = 4096

// maxBodyBytes bounds a tonight request body.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to status codes: invalid input is the
// caller's fault, a missing night band means a location must be chosen first.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sky.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, plot.ErrNotReady):
		status = http.StatusConflict
	default:
		s.logger.Error("request failed",
			"component", "api",
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, img *image.RGBA) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := plot.EncodePNG(w, img); err != nil {
		s.logger.Warn("png write failed", "component", "api", "path", r.URL.Path, "error", err)
	}
}

// raster returns the night band for the requested site and year. Without a
// site the cached raster's site is used; with nothing cached the request is
// not ready. year 0 means the cached raster's year, or the current one.
func (s *Server) raster(ctx context.Context, q *query, year int) (*plot.NightRaster, error) {
	loc, ok := q.location()
	if err := q.err(); err != nil {
		return nil, err
	}
	if !ok {
		cur, ready := s.plots.Current()
		if !ready {
			return nil, plot.ErrNotReady
		}
		loc = cur.Location
		if year == 0 {
			year = cur.Year
		}
	}
	if year == 0 {
		year = s.now().Year()
	}
	return s.plots.Get(ctx, cache.Key{Year: year, Location: loc})
}

func (s *Server) nightbandHandler(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	year := q.year()
	raster, err := s.raster(r.Context(), q, year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.IncRenders("nightband")
	w.Header().Set("X-Min-Hour", strconv.FormatFloat(raster.MinHour, 'f', 4, 64))
	w.Header().Set("X-Max-Hour", strconv.FormatFloat(raster.MaxHour, 'f', 4, 64))
	s.writePNG(w, r, raster.Pixels)
}

func (s *Server) visibilityHandler(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	obj := q.object()
	threshold := q.float("threshold", s.cfg.DSOThreshold)
	year := q.year()
	raster, err := s.raster(r.Context(), q, year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	vp, err := plot.Render(raster, obj, threshold, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.IncRenders("visibility")
	w.Header().Set("X-Clipped-Days", strconv.Itoa(vp.Clipped))
	s.writePNG(w, r, vp.Image)
}

func (s *Server) nightHandler(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	obj := q.object()
	threshold := q.float("threshold", s.cfg.DSOThreshold)
	date := q.date("date", s.now())
	width := q.int("width", s.cfg.DetailSize.X)
	height := q.int("height", s.cfg.DetailSize.Y)
	if width > maxCanvas || height > maxCanvas {
		q.fail("canvas %dx%d exceeds %d pixels per side", width, height, maxCanvas)
	}
	raster, err := s.raster(r.Context(), q, date.Year())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	np, err := plot.RenderNight(raster, obj, threshold, date, image.Pt(width, height))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	metrics.IncRenders("night")
	s.writePNG(w, r, np.Image)
}

type windowResponse struct {
	Location  sky.Location       `json:"location"`
	Date      string             `json:"date"`
	Object    sky.Equatorial     `json:"object"`
	Coords    string             `json:"coords"`
	Threshold float64            `json:"threshold"`
	Window    riseset.TimeWindow `json:"window"`
	Rise      *time.Time         `json:"rise_time,omitempty"`
	Set       *time.Time         `json:"set_time,omitempty"`
	Transit   time.Time          `json:"transit_time"`
}

func (s *Server) windowHandler(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	loc := q.requiredLocation()
	obj := q.object()
	threshold := q.float("threshold", s.cfg.DSOThreshold)
	date := q.date("date", s.now())
	if err := q.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	win, err := riseset.Window(obj, loc, date, threshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := windowResponse{
		Location:  loc,
		Date:      date.Format(time.DateOnly),
		Object:    obj,
		Coords:    sky.FormatEquatorial(obj),
		Threshold: threshold,
		Window:    win,
		Transit:   riseset.Instant(date, loc.Longitude, win.Transit).UTC(),
	}
	if win.State == riseset.Normal {
		rise := riseset.Instant(date, loc.Longitude, win.Rise).UTC()
		set := riseset.Instant(date, loc.Longitude, win.Set).UTC()
		resp.Rise, resp.Set = &rise, &set
	}
	writeJSON(w, http.StatusOK, resp)
}

type altazResponse struct {
	Location   sky.Location   `json:"location"`
	Time       time.Time      `json:"time"`
	Object     sky.Equatorial `json:"object"`
	Horizontal sky.Horizontal `json:"horizontal"`
	Position   string         `json:"position"`
	Display    struct {
		RA  float64 `json:"ra_deg"`
		Dec float64 `json:"dec_deg"`
	} `json:"display"`
}

func (s *Server) altazHandler(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r.URL.Query())
	loc := q.requiredLocation()
	obj := q.object()
	at := q.instant("time", s.now())
	if err := q.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	hz := sky.ToHorizontal(obj, loc, at)
	resp := altazResponse{
		Location:   loc,
		Time:       at.UTC(),
		Object:     obj,
		Horizontal: hz,
		Position:   sky.FormatHorizontal(hz),
	}
	resp.Display.RA, resp.Display.Dec = sky.ToDisplayDegrees(obj)
	writeJSON(w, http.StatusOK, resp)
}

type tonightRequest struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Date      string    `json:"date,omitempty"`
	Time      string    `json:"time,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
	Objects   []dso.DSO `json:"objects"`
}

func (s *Server) tonightHandler(w http.ResponseWriter, r *http.Request) {
	var body tonightRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: request body: %v", sky.ErrInvalidInput, err))
		return
	}
	if len(body.Objects) > s.cfg.MaxObjects {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":       fmt.Sprintf("%d objects requested", len(body.Objects)),
			"max_objects": s.cfg.MaxObjects,
		})
		return
	}

	q := newQuery(url.Values{"date": {body.Date}, "time": {body.Time}})
	loc, err := sky.NewLocation(body.Latitude, body.Longitude)
	if err != nil {
		q.errs.Append(err)
	}
	now := s.now()
	date := q.date("date", now)
	at := q.instant("time", now)
	threshold := s.cfg.DSOThreshold
	if body.Threshold != nil {
		threshold = *body.Threshold
	}
	if err := q.err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	rows := watch.Tonight(r.Context(), watch.TonightRequest{
		Location:  loc,
		Date:      date,
		At:        at,
		Threshold: threshold,
		Objects:   body.Objects,
	})
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.plots.Stats())
}

func (s *Server) invalidateHandler(w http.ResponseWriter, r *http.Request) {
	s.plots.Invalidate()
	s.logger.Info("plot cache invalidated", "component", "api", "request_id", RequestID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
