// Command skyplot renders visibility plots to PNG files without a server.
//
//	skyplot -lat 40 -lon -3 -date 2024-01-15 -ra "05 35 17" -dec "-05 23 28"
//	skyplot -lat 40 -lon -3 -catalog watchlist.json -out plots
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/star/skyplot/internal/cache"
	"github.com/star/skyplot/internal/dso"
	"github.com/star/skyplot/internal/plot"
	"github.com/star/skyplot/internal/riseset"
	"github.com/star/skyplot/internal/sky"
	"github.com/star/skyplot/internal/watch"
)

func main() {
	var (
		lat       = flag.Float64("lat", math.NaN(), "observer latitude, degrees")
		lon       = flag.Float64("lon", math.NaN(), "observer longitude, degrees east")
		dateStr   = flag.String("date", time.Now().UTC().Format(time.DateOnly), "observing date, YYYY-MM-DD")
		raStr     = flag.String("ra", "", "target right ascension, hours (decimal or sexagesimal)")
		decStr    = flag.String("dec", "", "target declination, degrees (decimal or sexagesimal)")
		name      = flag.String("name", "target", "target id used in file names")
		catalog   = flag.String("catalog", "", "JSON catalog of objects to plot instead of -ra/-dec")
		threshold = flag.Float64("threshold", watch.DefaultThreshold, "object altitude threshold, degrees")
		sunTh     = flag.Float64("sun-threshold", plot.DefaultSunThreshold, "sun altitude that ends twilight, degrees")
		width     = flag.Int("width", plot.DefaultWidth, "night band width, pixels")
		height    = flag.Int("height", plot.DefaultHeight, "night band height, pixels")
		outDir    = flag.String("out", ".", "output directory")
		verbose   = flag.Bool("v", false, "log progress")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	date, err := time.Parse(time.DateOnly, *dateStr)
	if err != nil {
		fatal("invalid -date: %v", err)
	}
	objs, err := loadObjects(*catalog, *name, *raStr, *decStr)
	if err != nil {
		fatal("%v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatal("create output directory: %v", err)
	}

	plots := cache.New(cache.Config{Size: image.Pt(*width, *height), SunThreshold: *sunTh}, nil, logger)
	ui := &fileRequester{dir: *outDir}
	planner := watch.NewPlanner(plots, ui, logger)

	ctx := context.Background()
	if err := planner.SetThreshold(*threshold); err != nil {
		fatal("invalid -threshold: %v", err)
	}
	if err := planner.SetDate(ctx, date); err != nil {
		fatal("%v", err)
	}
	if !math.IsNaN(*lat) || !math.IsNaN(*lon) {
		if err := planner.SetLocation(ctx, *lat, *lon); err != nil {
			fatal("invalid location: %v", err)
		}
	}

	if r, ok := plots.Current(); ok {
		ui.write("nightband.png", r.Pixels)
		fmt.Printf("night band %d: axis [%+.2fh, %+.2fh] around local midnight\n", r.Year, r.MinHour, r.MaxHour)
	}

	for _, obj := range objs {
		if err := planner.RequestVisibility(ctx, obj); err != nil {
			if errors.Is(err, plot.ErrNotReady) {
				os.Exit(2)
			}
			fatal("%s: %v", obj.ID, err)
		}
		if err := planner.RequestNightDetail(ctx, obj); err != nil {
			fatal("%s: %v", obj.ID, err)
		}
		planner.GoTo(obj)
	}
	if ui.err != nil {
		fatal("%v", ui.err)
	}

	loc, ok := planner.Location()
	if !ok {
		return
	}
	printTonight(watch.Tonight(ctx, watch.TonightRequest{
		Location:  loc,
		Date:      date,
		At:        sky.LocalMidnight(date, loc.Longitude),
		Threshold: planner.Threshold(),
		Objects:   objs,
	}))
}

func loadObjects(catalog, name, ra, dec string) ([]dso.DSO, error) {
	if catalog != "" {
		f, err := os.Open(catalog)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dso.ParseCatalog(f)
	}
	if ra == "" || dec == "" {
		return nil, errors.New("either -catalog or both -ra and -dec are required")
	}
	raH, err := sky.ParseRA(ra)
	if err != nil {
		return nil, err
	}
	decD, err := sky.ParseDec(dec)
	if err != nil {
		return nil, err
	}
	eq, err := sky.NewEquatorial(raH, decD)
	if err != nil {
		return nil, err
	}
	return []dso.DSO{{ID: name, Name: name, Coordinates: eq}}, nil
}

// fileRequester writes every artifact the planner produces into dir.
type fileRequester struct {
	dir string
	err error
}

func (f *fileRequester) ShowVisibility(obj dso.DSO, p *plot.VisibilityPlot) {
	f.write(obj.ID+"-visibility.png", p.Image)
	if p.Clipped > 0 {
		fmt.Printf("%s: %d days extend past the plotted hours\n", obj.ID, p.Clipped)
	}
}

func (f *fileRequester) ShowNightDetail(obj dso.DSO, p *plot.NightPlot) {
	f.write(obj.ID+"-night.png", p.Image)
}

func (f *fileRequester) CenterSkyView(raDeg, decDeg, fovDeg float64) {
	fmt.Printf("sky view: ra %.4f° dec %+.4f° fov %.3f°\n", raDeg, decDeg, fovDeg)
}

func (f *fileRequester) PromptLocation(reason error) {
	fmt.Fprintf(os.Stderr, "skyplot: %v (pass -lat and -lon)\n", reason)
}

func (f *fileRequester) write(name string, img *image.RGBA) {
	path := filepath.Join(f.dir, name)
	out, err := os.Create(path)
	if err != nil {
		f.err = errors.Join(f.err, err)
		return
	}
	if err := plot.EncodePNG(out, img); err != nil {
		f.err = errors.Join(f.err, err)
	}
	if err := out.Close(); err != nil {
		f.err = errors.Join(f.err, err)
	}
	fmt.Println("wrote", path)
}

func printTonight(rows []watch.Row) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRA / DEC\tALT / AZ (midnight)\tSTATE\tRISE\tSET")
	for _, r := range rows {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\t\t\terror: %s\t\t\n", r.ID, r.Error)
			continue
		}
		rise, set := "-", "-"
		if r.Window.State == riseset.Normal {
			rise, set = clock(r.Window.Rise), clock(r.Window.Set)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Coords, r.Position, r.Window.State, rise, set)
	}
	tw.Flush()
}

// clock formats a local mean solar clock hour as HH:MM.
func clock(h float64) string {
	m := int(math.Round(sky.WrapHours(h)*60)) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "skyplot: "+format+"\n", args...)
	os.Exit(1)
}
