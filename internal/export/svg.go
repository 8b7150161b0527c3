// Package export renders stored runs to files outside the terminal.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/san-kum/legmpc/internal/robot"
)

// Path is one polyline of a top-down trajectory plot.
type Path struct {
	Label  string
	Color  string
	Points []r3.Vector
}

var footColors = []string{"#ff6b6b", "#4ecdc4", "#ffd93d", "#6c5ce7"}

// TrajectoryPaths projects the base and every contact frame of m over
// states onto the x-y plane.
func TrajectoryPaths(m robot.Model, states [][]float64) []Path {
	m = m.Clone()
	frames := m.ContactFrames()
	paths := make([]Path, 1+len(frames))
	paths[0] = Path{Label: "base", Color: "#ffffff"}
	for i, id := range frames {
		paths[1+i] = Path{Label: m.FrameName(id), Color: footColors[i%len(footColors)]}
	}
	nq := m.DimQ()
	for _, x := range states {
		if len(x) < nq {
			continue
		}
		m.ForwardKinematics(x[:nq])
		paths[0].Points = append(paths[0].Points, r3.Vector{X: x[0], Y: x[1]})
		for i, id := range frames {
			paths[1+i].Points = append(paths[1+i].Points, m.FramePosition(id))
		}
	}
	return paths
}

// bounds is the x-y box around all points with 10% padding and equal
// scale on both axes.
func bounds(paths []Path) (min, max r3.Vector, ok bool) {
	min = r3.Vector{X: math.Inf(1), Y: math.Inf(1)}
	max = r3.Vector{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range paths {
		for _, v := range p.Points {
			min.X, min.Y = math.Min(min.X, v.X), math.Min(min.Y, v.Y)
			max.X, max.Y = math.Max(max.X, v.X), math.Max(max.Y, v.Y)
			ok = true
		}
	}
	if !ok {
		return min, max, false
	}
	span := math.Max(math.Max(max.X-min.X, max.Y-min.Y), 1e-3) * 1.2
	c := min.Add(max).Mul(0.5)
	half := r3.Vector{X: span / 2, Y: span / 2}
	return c.Sub(half), c.Add(half), true
}

// TrajectoryToSVG writes paths as a top-down SVG of width x height
// pixels with x to the right and y upwards.
func TrajectoryToSVG(w io.Writer, paths []Path, width, height int) error {
	lo, hi, ok := bounds(paths)
	if !ok {
		return fmt.Errorf("no points to draw")
	}
	sx := float64(width) / (hi.X - lo.X)
	sy := float64(height) / (hi.Y - lo.Y)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for _, p := range paths {
		if len(p.Points) == 0 {
			continue
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, p.Color)
		for i, v := range p.Points {
			x := (v.X - lo.X) * sx
			y := float64(height) - (v.Y-lo.Y)*sy
			if i == 0 {
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}

	for i, p := range paths {
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*i, p.Color, p.Label)
	}
	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
