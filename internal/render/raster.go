package render

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"strconv"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/polygon-manager/backend/internal/geometry"
)

// Rasterize paints ops onto a new width×height image.
func Rasterize(ops []Op, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	z := vector.NewRasterizer(width, height)

	for _, op := range ops {
		switch op.Kind {
		case OpImage:
			xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), op.Image, op.Image.Bounds(), draw.Src, nil)
		case OpFill:
			draw.Draw(dst, dst.Bounds(), image.NewUniform(op.Fill), image.Point{}, draw.Src)
		case OpOverlay:
			draw.Draw(dst, dst.Bounds(), image.NewUniform(op.Fill), image.Point{}, draw.Over)
		case OpPath:
			paintPath(dst, z, op)
		}
	}
	return dst
}

func paintPath(dst *image.RGBA, z *vector.Rasterizer, op Op) {
	if len(op.Points) == 0 {
		return
	}

	if op.Closed && op.Fill.A > 0 && len(op.Points) >= 3 {
		z.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
		z.MoveTo(f32(op.Points[0]))
		for _, p := range op.Points[1:] {
			z.LineTo(f32(p))
		}
		z.ClosePath()
		z.Draw(dst, dst.Bounds(), image.NewUniform(op.Fill), image.Point{})
	}

	stroke := image.NewUniform(op.Stroke)
	for i := 0; i+1 < len(op.Points); i++ {
		strokeSegment(dst, z, op.Points[i], op.Points[i+1], op.Width, stroke)
	}
	if op.Closed && len(op.Points) > 2 {
		strokeSegment(dst, z, op.Points[len(op.Points)-1], op.Points[0], op.Width, stroke)
	}

	if op.Vertices {
		for _, p := range op.Points {
			dot(dst, z, p, VertexRadius, stroke)
		}
	}

	if op.Labels {
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(LabelColor),
			Face: basicfont.Face7x13,
		}
		for i, p := range op.Points {
			d.Dot = fixed.P(int(p.X)+6, int(p.Y)-6)
			d.DrawString(strconv.Itoa(i))
		}
	}
}

// strokeSegment fills the quad around a→b. Each segment is rasterized on
// its own so overlapping joins do not cancel.
func strokeSegment(dst *image.RGBA, z *vector.Rasterizer, a, b geometry.Point, width float64, src image.Image) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	z.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
	z.LineTo(float32(b.X+nx), float32(b.Y+ny))
	z.LineTo(float32(b.X-nx), float32(b.Y-ny))
	z.LineTo(float32(a.X-nx), float32(a.Y-ny))
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), src, image.Point{})
}

// dot fills an octagon approximating a circle.
func dot(dst *image.RGBA, z *vector.Rasterizer, c geometry.Point, r float64, src image.Image) {
	z.Reset(dst.Bounds().Dx(), dst.Bounds().Dy())
	for i := 0; i < 8; i++ {
		angle := float64(i) * math.Pi / 4
		x, y := float32(c.X+r*math.Cos(angle)), float32(c.Y+r*math.Sin(angle))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), src, image.Point{})
}

func f32(p geometry.Point) (float32, float32) {
	return float32(p.X), float32(p.Y)
}

// Describe returns a one-line summary of ops, for logs.
func Describe(ops []Op) string {
	paths := 0
	for _, op := range ops {
		if op.Kind == OpPath {
			paths++
		}
	}
	return fmt.Sprintf("%d ops, %d paths", len(ops), paths)
}
