package document

import "github.com/orimap/orimap/internal/geom"

// recordingWidget counts the invalidations a map sends to its widgets.
type recordingWidget struct {
	updateEverything int
	objectAreas      []geom.Rect
	templateAreas    []geom.Rect
	frontFlags       []bool
	view             *recordingView
}

func newRecordingWidget() *recordingWidget {
	return &recordingWidget{view: &recordingView{visible: map[*Template]bool{}}}
}

func (w *recordingWidget) UpdateEverything() { w.updateEverything++ }

func (w *recordingWidget) MarkObjectAreaDirty(r geom.Rect) {
	w.objectAreas = append(w.objectAreas, r)
}

func (w *recordingWidget) SetDrawingBoundingBox(geom.Rect, int, bool)  {}
func (w *recordingWidget) ClearDrawingBoundingBox()                    {}
func (w *recordingWidget) SetActivityBoundingBox(geom.Rect, int, bool) {}
func (w *recordingWidget) ClearActivityBoundingBox()                   {}
func (w *recordingWidget) UpdateDrawing(geom.Rect, int)                {}
func (w *recordingWidget) View() WidgetView                            { return w.view }

func (w *recordingWidget) MarkTemplateCacheDirty(r geom.Rect, _ int, front bool) {
	w.templateAreas = append(w.templateAreas, r)
	w.frontFlags = append(w.frontFlags, front)
}

type recordingView struct {
	visible map[*Template]bool
	deleted []*Template
}

func (v *recordingView) IsTemplateVisible(t *Template) bool { return v.visible[t] }

func (v *recordingView) DeleteTemplateVisibility(t *Template) {
	delete(v.visible, t)
	v.deleted = append(v.deleted, t)
}

func (v *recordingView) CalculateViewBoundingBox(r geom.Rect) geom.Rect { return r }

// fixture is a map with one color and one symbol of each basic kind.
type fixture struct {
	m     *Map
	black *Color
	point *PointSymbol
	line  *LineSymbol
	area  *AreaSymbol
	text  *TextSymbol
}

func newFixture() *fixture {
	f := &fixture{m: NewMap(), black: NewCMYKColor("Black", 0, 0, 0, 1)}
	f.m.AddColor(f.black, 0)

	f.point = NewPointSymbol("point")
	f.point.InnerRadius = 500
	f.point.InnerColor = f.black
	f.line = NewLineSymbol("line")
	f.line.Color = f.black
	f.line.LineWidth = 200
	f.area = NewAreaSymbol("area")
	f.area.Color = f.black
	f.text = NewTextSymbol("text")
	f.text.Color = f.black

	for i, s := range []Symbol{f.point, f.line, f.area, f.text} {
		f.m.AddSymbol(s, i)
	}
	f.m.MarkSaved()
	return f
}

func (f *fixture) addPoint(x, y float64) *PointObject {
	obj := NewPointObject(f.point, geom.NewMapCoord(x, y))
	f.m.AddObject(obj, -1)
	return obj
}

func (f *fixture) addLine(coords ...geom.MapCoord) *PathObject {
	obj := NewPathObject(f.line, coords...)
	f.m.AddObject(obj, -1)
	return obj
}

func mc(x, y float64) geom.MapCoord { return geom.NewMapCoord(x, y) }
