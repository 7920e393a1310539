// Package export renders recorded runs as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/framesim/internal/storage"
	"github.com/san-kum/framesim/internal/viz"
)

// Point is a projected position. Views drop one world axis.
type Point struct{ X, Y float64 }

// Plane selects the two world axes a view keeps.
type Plane [2]int

var (
	PlaneXY = Plane{0, 1}
	PlaneXZ = Plane{0, 2}
	PlaneZY = Plane{2, 1}
)

// CanvasToSVG converts a Braille canvas to SVG format
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}
	w, h := canvas.Pixels()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff00">
`, width, height, width, height)

	dotRadius := scale * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, dotRadius)
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// Trajectory extracts the path of particle p (or body p when body is set)
// from recorded frames, projected onto plane.
func Trajectory(f *storage.Frames, p int, body bool, plane Plane) ([]Point, error) {
	prefix := "p"
	if body {
		prefix = "b"
	}
	axes := [3]string{"x", "y", "z"}
	a := f.Column(fmt.Sprintf("%s%d_%s", prefix, p, axes[plane[0]]))
	b := f.Column(fmt.Sprintf("%s%d_%s", prefix, p, axes[plane[1]]))
	if a == nil || b == nil {
		return nil, fmt.Errorf("run has no %s%d", prefix, p)
	}
	pts := make([]Point, len(a))
	for i := range a {
		pts[i] = Point{a[i], b[i]}
	}
	return pts, nil
}

// Frame extracts every particle and body position of frame i.
func Frame(f *storage.Frames, i int, plane Plane) ([]Point, error) {
	if i < 0 || i >= len(f.Rows) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, len(f.Rows))
	}
	row := f.Rows[i]
	pts := make([]Point, 0, len(row)/3)
	for k := 0; k+2 < len(row); k += 3 {
		pts = append(pts, Point{row[k+plane[0]], row[k+plane[1]]})
	}
	return pts, nil
}

type bounds struct{ minX, minY, rangeX, rangeY float64 }

func fit(points []Point) bounds {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	// 10% padding on every side
	return bounds{minX - rangeX*0.1, minY - rangeY*0.1, rangeX * 1.2, rangeY * 1.2}
}

func (b bounds) screen(p Point, width, height int) (float64, float64) {
	x := (p.X - b.minX) / b.rangeX * float64(width)
	y := float64(height) - (p.Y-b.minY)/b.rangeY*float64(height)
	return x, y
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// TrajectoryToSVG draws points as a polyline.
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}
	b := fit(points)

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)
	for i, p := range points {
		x, y := b.screen(p, width, height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}

// PointsToSVG draws points as dots.
func PointsToSVG(points []Point, width, height int, fillColor string) string {
	if len(points) == 0 {
		return ""
	}
	b := fit(points)

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, "<g fill=\"%s\">\n", fillColor)
	for _, p := range points {
		x, y := b.screen(p, width, height)
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"2\"/>\n", x, y)
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
