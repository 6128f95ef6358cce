// Package render turns client state into canvas frames.
//
// Plan builds an ordered display list from a Scene and Rasterize paints it.
// The order is fixed: background, stored polygons, the polygon being drawn,
// then the highlight overlay. Stored polygons are closed paths; the polygon
// being drawn is an open path.
package render

import (
	"image"
	"image/color"

	"github.com/polygon-manager/backend/internal/drawing"
	"github.com/polygon-manager/backend/internal/geometry"
	"github.com/polygon-manager/backend/internal/models"
)

// Palette.
var (
	FallbackColor   = color.NRGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	PolygonStroke   = color.NRGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}
	PolygonFill     = color.NRGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0x40}
	InProgressColor = color.NRGBA{R: 0xdd, G: 0x33, B: 0x33, A: 0xff}
	HighlightColor  = color.NRGBA{R: 0xff, G: 0x99, B: 0x00, A: 0xff}
	LabelColor      = color.NRGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
	OverlayColor    = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x60}
)

// Stroke widths in canvas pixels.
const (
	StrokeWidth    = 2.0
	HighlightWidth = 4.0
	VertexRadius   = 4.0
)

// BackgroundStatus tracks the background image load.
type BackgroundStatus int

const (
	BackgroundPending BackgroundStatus = iota
	BackgroundLoaded
	BackgroundFailed
)

// Background is the canvas backdrop.
type Background struct {
	Status BackgroundStatus
	Image  image.Image
}

// Scene is everything a frame depends on.
type Scene struct {
	Width  int
	Height int

	Background Background
	Polygons   []models.Polygon
	InProgress []geometry.Point
	Highlight  int64
	Loading    bool
}

// SceneFrom builds a scene from client state.
func SceneFrom(s drawing.State, bg Background) Scene {
	w, h := int(s.Viewport.LogicalWidth), int(s.Viewport.LogicalHeight)
	if w <= 0 || h <= 0 {
		w, h = drawing.CanvasWidth, drawing.CanvasHeight
	}
	return Scene{
		Width:      w,
		Height:     h,
		Background: bg,
		Polygons:   s.Polygons,
		InProgress: s.Points,
		Highlight:  s.Highlight,
		Loading:    s.Loading,
	}
}

// OpKind identifies a drawing operation.
type OpKind int

const (
	OpImage OpKind = iota
	OpFill
	OpPath
	OpOverlay
)

func (k OpKind) String() string {
	switch k {
	case OpImage:
		return "image"
	case OpFill:
		return "fill"
	case OpPath:
		return "path"
	case OpOverlay:
		return "overlay"
	}
	return "unknown"
}

// Layer names the role of a path in the frame.
type Layer int

const (
	LayerStored Layer = iota
	LayerInProgress
	LayerHighlight
)

// Op is one entry of a display list.
type Op struct {
	Kind  OpKind
	Layer Layer

	// OpImage
	Image image.Image

	// OpFill, OpOverlay and path fill. A zero alpha means no fill.
	Fill color.NRGBA

	// OpPath
	PolygonID int64
	Points    []geometry.Point
	Closed    bool
	Stroke    color.NRGBA
	Width     float64
	Vertices  bool
	Labels    bool
}

// Plan returns the display list for s.
func Plan(s Scene) []Op {
	ops := make([]Op, 0, len(s.Polygons)+4)

	if s.Background.Status == BackgroundLoaded && s.Background.Image != nil {
		ops = append(ops, Op{Kind: OpImage, Image: s.Background.Image})
	} else {
		ops = append(ops, Op{Kind: OpFill, Fill: FallbackColor})
	}

	for _, p := range s.Polygons {
		ops = append(ops, Op{
			Kind:      OpPath,
			Layer:     LayerStored,
			PolygonID: p.ID,
			Points:    p.Points,
			Closed:    true,
			Stroke:    PolygonStroke,
			Fill:      PolygonFill,
			Width:     StrokeWidth,
			Vertices:  true,
		})
	}

	if len(s.InProgress) > 0 {
		ops = append(ops, Op{
			Kind:     OpPath,
			Layer:    LayerInProgress,
			Points:   s.InProgress,
			Stroke:   InProgressColor,
			Width:    StrokeWidth,
			Vertices: true,
			Labels:   true,
		})
	}

	if s.Highlight != 0 {
		for _, p := range s.Polygons {
			if p.ID != s.Highlight {
				continue
			}
			ops = append(ops, Op{
				Kind:      OpPath,
				Layer:     LayerHighlight,
				PolygonID: p.ID,
				Points:    p.Points,
				Closed:    true,
				Stroke:    HighlightColor,
				Width:     HighlightWidth,
				Vertices:  true,
				Labels:    true,
			})
			break
		}
	}

	if s.Loading {
		ops = append(ops, Op{Kind: OpOverlay, Fill: OverlayColor})
	}

	return ops
}
