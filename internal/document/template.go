package document

import (
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/typeid"
)

// Template is a reference image placed under or over the map. Its pixels
// live elsewhere; the map only knows where it sits. Position is in 1/1000
// mm, Extent in template units.
type Template struct {
	ID       string
	Path     string
	Extent   geom.Rect
	X, Y     int64
	Rotation float64
	ScaleX   float64
	ScaleY   float64

	m *Map
}

func NewTemplate(path string, extent geom.Rect) *Template {
	return &Template{ID: typeid.NewTemplateID(), Path: path, Extent: extent, ScaleX: 1, ScaleY: 1}
}

// Transform returns the template to map (mm) transform.
func (t *Template) Transform() geom.Matrix2D {
	return geom.Translate(nativeToMM(t.X), nativeToMM(t.Y)).
		Multiply(geom.Rotate(t.Rotation)).
		Multiply(geom.Scale(t.ScaleX, t.ScaleY))
}

func (t *Template) TemplateToMap(p geom.MapCoordF) geom.MapCoordF {
	x, y := t.Transform().TransformPoint(p.X, p.Y)
	return geom.MapCoordF{X: x, Y: y}
}

func (t *Template) MapToTemplate(p geom.MapCoordF) geom.MapCoordF {
	x, y := t.Transform().Invert().TransformPoint(p.X, p.Y)
	return geom.MapCoordF{X: x, Y: y}
}

// CalculateMapExtent transforms all four corners, since a rotated template
// covers more than its translated extent.
func (t *Template) CalculateMapExtent() geom.Rect {
	return t.Transform().TransformRect(t.Extent)
}

// SetTemplateAreaDirty invalidates the whole template in all widgets
// showing it.
func (t *Template) SetTemplateAreaDirty() {
	if t.m != nil {
		t.m.SetTemplateAreaDirty(t, t.CalculateMapExtent(), 0)
	}
}

func (t *Template) Map() *Map { return t.m }
