package document

import (
	"fmt"
	"math"

	"github.com/orimap/orimap/internal/typeid"
)

// Priorities of the builtin colors. They sort below every map color and
// therefore draw on top of everything.
const (
	PriorityCoveringRed   = -1005
	PriorityCoveringWhite = -1000
	PriorityUndefined     = -500
)

// Color is a spot color of the map. Priority equals the position in the
// color set; lower priorities are drawn on top.
type Color struct {
	ID       string
	Name     string
	Priority int

	C, M, Y, K float64
	R, G, B    float64
	Opacity    float64
}

// NewCMYKColor creates a color from CMYK components in [0, 1].
func NewCMYKColor(name string, c, m, y, k float64) *Color {
	col := &Color{ID: typeid.NewColorID(), Name: name, C: c, M: m, Y: y, K: k, Opacity: 1}
	col.UpdateFromCMYK()
	return col
}

// NewRGBColor creates a color from RGB components in [0, 1].
func NewRGBColor(name string, r, g, b float64) *Color {
	col := &Color{ID: typeid.NewColorID(), Name: name, R: r, G: g, B: b, Opacity: 1}
	col.UpdateFromRGB()
	return col
}

func (c *Color) UpdateFromCMYK() {
	c.R = (1 - c.C) * (1 - c.K)
	c.G = (1 - c.M) * (1 - c.K)
	c.B = (1 - c.Y) * (1 - c.K)
}

func (c *Color) UpdateFromRGB() {
	c.K = 1 - max(c.R, c.G, c.B)
	if c.K >= 1 {
		c.C, c.M, c.Y = 0, 0, 0
		return
	}
	c.C = (1 - c.R - c.K) / (1 - c.K)
	c.M = (1 - c.G - c.K) / (1 - c.K)
	c.Y = (1 - c.B - c.K) / (1 - c.K)
}

// Hex returns the color as #rrggbb.
func (c *Color) Hex() string {
	channel := func(v float64) int {
		return int(math.Round(max(0, min(1, v)) * 255))
	}
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

// Duplicate returns a copy with a fresh id.
func (c *Color) Duplicate() *Color {
	dup := *c
	dup.ID = typeid.NewColorID()
	return &dup
}

// ColorSet is the ordered color list of a map. Several maps may share one
// set; the last map releasing it frees the colors.
type ColorSet struct {
	colors []*Color
	refs   int
}

func newColorSet() *ColorSet {
	return &ColorSet{refs: 1}
}

func (s *ColorSet) retain() {
	s.refs++
}

func (s *ColorSet) release() {
	s.refs--
	if s.refs == 0 {
		s.colors = nil
	}
}

// RefCount returns the number of maps holding this set.
func (s *ColorSet) RefCount() int { return s.refs }

func (s *ColorSet) Len() int { return len(s.colors) }
