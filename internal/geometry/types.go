// Package geometry defines polygon points, their wire encoding and the rules
// that decide whether a polygon may be stored.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a vertex in canvas-logical coordinates. On the wire it is the
// two-element array [x, y].
type Point struct {
	X float64
	Y float64
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a strict [x, y] pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("point: expected 2 coordinates, got %d", len(pair))
	}
	p.X, p.Y = pair[0], pair[1]
	return nil
}

// IsFinite reports whether both components are neither NaN nor infinite.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains returns true if the point is inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Centroid computes the average position of a set of points.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point{X: sumX / n, Y: sumY / n}
}

// Viewport describes how a canvas is displayed: its logical size and the
// size and offset it is rendered at (which may differ under CSS scaling).
type Viewport struct {
	LogicalWidth   float64
	LogicalHeight  float64
	RenderedWidth  float64
	RenderedHeight float64
	Left           float64
	Top            float64
}

// ToCanvas maps a pointer position in display space to canvas-logical space.
// An unknown rendered or logical size maps that axis with ratio 1.
func (v Viewport) ToCanvas(clientX, clientY float64) Point {
	sx, sy := 1.0, 1.0
	if v.RenderedWidth > 0 && v.LogicalWidth > 0 {
		sx = v.LogicalWidth / v.RenderedWidth
	}
	if v.RenderedHeight > 0 && v.LogicalHeight > 0 {
		sy = v.LogicalHeight / v.RenderedHeight
	}
	return Point{
		X: (clientX - v.Left) * sx,
		Y: (clientY - v.Top) * sy,
	}
}
