package document

import "github.com/orimap/orimap/internal/geom"

// NewSampleMap builds a small course area: a few spot colors, one symbol of
// each kind and a handful of objects on the default layer. New documents
// and tests start from it.
func NewSampleMap() *Map {
	m := NewMap()

	purple := NewCMYKColor("Purple", 0.35, 0.85, 0, 0)
	black := NewCMYKColor("Black", 0, 0, 0, 1)
	brown := NewCMYKColor("Brown", 0, 0.56, 1, 0.18)
	blue := NewCMYKColor("Blue", 1, 0, 0, 0)
	yellow := NewCMYKColor("Yellow", 0, 0.27, 0.79, 0)
	for i, c := range []*Color{purple, black, brown, blue, yellow} {
		m.AddColor(c, i)
	}

	contour := NewLineSymbol("Contour")
	contour.Base().Number = "101"
	contour.Color = brown
	contour.LineWidth = 140

	footpath := NewLineSymbol("Footpath")
	footpath.Base().Number = "507"
	footpath.Color = black
	footpath.LineWidth = 250
	footpath.Dashed = true
	footpath.DashLength = 2000
	footpath.BreakLength = 250

	lake := NewAreaSymbol("Lake")
	lake.Base().Number = "301"
	lake.Color = blue

	field := NewAreaSymbol("Open land")
	field.Base().Number = "401"
	field.Color = yellow

	control := NewPointSymbol("Control point")
	control.Base().Number = "703"
	control.InnerRadius = 2500
	control.OuterWidth = 350
	control.OuterColor = purple

	label := NewTextSymbol("Control number")
	label.Base().Number = "704"
	label.Color = purple

	for i, s := range []Symbol{contour, footpath, lake, field, control, label} {
		m.AddSymbol(s, i)
	}

	c := geom.NewMapCoord
	closed := func(x, y float64) geom.MapCoord {
		return c(x, y).WithFlag(geom.FlagClosePoint, true)
	}

	m.AddObject(NewPathObject(field, c(0, 0), c(60, 0), c(60, 40), c(0, 40), closed(0, 0)), 0)
	m.AddObject(NewPathObject(lake, c(10, 10), c(25, 8), c(30, 18), c(14, 22), closed(10, 10)), 0)
	m.AddObject(NewPathObject(contour,
		c(35, 5).WithFlag(geom.FlagCurveStart, true), c(42, 2), c(50, 12), c(55, 20), c(58, 35)), 0)
	m.AddObject(NewPathObject(footpath, c(2, 38), c(20, 30), c(40, 32), c(58, 25)), 0)
	m.AddObject(NewPointObject(control, c(45, 28)), 0)
	m.AddObject(NewTextObject(label, c(50, 33), "31"), 0)

	m.MarkSaved()
	return m
}
