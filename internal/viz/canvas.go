package viz

import (
	"math"
	"strings"

	"github.com/golang/geo/r3"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a Braille pixel grid of Width x Height cells over a world
// window in the x-y plane. World x grows to the right and y upwards.
type Canvas struct {
	Width, Height int
	Grid          [][]rune

	center r3.Vector
	scale  float64 // sub-pixels per meter
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		scale:  1,
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// SetView centers the canvas on center with span meters across the
// smaller canvas dimension.
func (c *Canvas) SetView(center r3.Vector, span float64) {
	c.center = center
	c.scale = float64(min(2*c.Width, 4*c.Height)) / span
}

func (c *Canvas) pixel(p r3.Vector) (x, y int) {
	x = int(math.Round(float64(c.Width) + (p.X-c.center.X)*c.scale))
	y = int(math.Round(float64(2*c.Height) - (p.Y-c.center.Y)*c.scale))
	return x, y
}

// Set sets a pixel at (x, y) in sub-pixel coordinates. The canvas size
// in sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// Point sets the pixel under a world point.
func (c *Canvas) Point(p r3.Vector) {
	c.Set(c.pixel(p))
}

// Blob sets a square of (2r+1)^2 pixels around a world point.
func (c *Canvas) Blob(p r3.Vector, r int) {
	x, y := c.pixel(p)
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			c.Set(x+dx, y+dy)
		}
	}
}

// Segment draws the world segment from a to b.
func (c *Canvas) Segment(a, b r3.Vector) {
	x0, y0 := c.pixel(a)
	x1, y1 := c.pixel(b)
	c.DrawLine(x0, y0, x1, y1)
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = 0x2800
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for i, row := range c.Grid {
		b.WriteString(string(row))
		if i < len(c.Grid)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
