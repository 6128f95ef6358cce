// Package main is a headless polygon client. It replays a drawing session
// against a running service and writes the resulting canvas to a PNG file.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/client"
	"github.com/polygon-manager/backend/internal/drawing"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/render"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Service base URL")
	out := flag.String("out", "canvas.png", "Output PNG path")
	background := flag.String("background", "", "Background image path")
	name := flag.String("name", "", "Name of a polygon to draw")
	points := flag.String("points", "", "Display coordinates to click, as x,y;x,y;...")
	deleteID := flag.Int64("delete", 0, "Polygon id to delete before drawing")
	highlight := flag.Int64("highlight", 0, "Polygon id to highlight")
	timeout := flag.Duration("timeout", time.Minute, "Per-request timeout")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, options{
		baseURL:    *baseURL,
		out:        *out,
		background: *background,
		name:       *name,
		points:     *points,
		deleteID:   *deleteID,
		highlight:  *highlight,
		timeout:    *timeout,
	}); err != nil {
		logger.Fatal("Sketch failed", zap.Error(err))
	}
}

type options struct {
	baseURL    string
	out        string
	background string
	name       string
	points     string
	deleteID   int64
	highlight  int64
	timeout    time.Duration
}

func run(logger *zap.Logger, opts options) error {
	clicks, err := parsePoints(opts.points)
	if err != nil {
		return err
	}

	api := client.New(opts.baseURL, opts.timeout)
	ctrl := drawing.NewController(api, drawing.NewState(geometry.DefaultLimits()), logger)
	loop := render.NewLoop(ctrl, func(*image.RGBA) {}, logger)

	if opts.background != "" {
		bg, err := render.LoadBackground(opts.background)
		if err != nil {
			logger.Warn("Background unavailable, using fallback", zap.Error(err))
		}
		loop.SetBackground(bg)
	}

	step := func(a drawing.Action) {
		ctrl.Dispatch(a)
		ctrl.Wait()
		if n := ctrl.State().Notice; n != nil {
			logger.Warn("Notice", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
		}
	}

	step(drawing.Refresh{})
	logger.Info("Loaded polygons", zap.Int("count", len(ctrl.State().Polygons)))

	if opts.deleteID != 0 {
		step(drawing.Delete{ID: opts.deleteID})
	}

	if opts.name != "" {
		step(drawing.Start{Name: opts.name})
		for _, p := range clicks {
			step(drawing.Click{X: p.X, Y: p.Y})
		}
		step(drawing.Finish{})
	}

	if opts.highlight != 0 {
		step(drawing.Select{ID: opts.highlight})
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.out, err)
	}
	defer f.Close()

	if err := png.Encode(f, loop.Frame()); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s := ctrl.State()
	logger.Info("Wrote frame",
		zap.String("path", opts.out),
		zap.Int("polygons", len(s.Polygons)),
		zap.Stringer("phase", s.Phase),
	)
	return nil
}

// parsePoints parses "x,y;x,y;...".
func parsePoints(raw string) ([]geometry.Point, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var points []geometry.Point
	for i, pair := range strings.Split(raw, ";") {
		xs, ys, ok := strings.Cut(strings.TrimSpace(pair), ",")
		if !ok {
			return nil, fmt.Errorf("point %d: expected x,y", i)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		points = append(points, geometry.Point{X: x, Y: y})
	}
	return points, nil
}
