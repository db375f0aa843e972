package document

import "github.com/orimap/orimap/internal/geom"

// Widget is a view onto the map that caches rendered output. The map
// forwards invalidations to every attached widget.
type Widget interface {
	// UpdateEverything redraws from scratch, e.g. when the help text shown
	// for an empty map has to change.
	UpdateEverything()
	MarkObjectAreaDirty(mapRect geom.Rect)
	// MarkTemplateCacheDirty invalidates a view rect of the front or back
	// template cache.
	MarkTemplateCacheDirty(viewRect geom.Rect, pixelBorder int, frontCache bool)
	SetDrawingBoundingBox(mapRect geom.Rect, pixelBorder int, doUpdate bool)
	ClearDrawingBoundingBox()
	SetActivityBoundingBox(mapRect geom.Rect, pixelBorder int, doUpdate bool)
	ClearActivityBoundingBox()
	UpdateDrawing(mapRect geom.Rect, pixelBorder int)
	View() WidgetView
}

// WidgetView is the part of a widget's view the map needs.
type WidgetView interface {
	IsTemplateVisible(t *Template) bool
	DeleteTemplateVisibility(t *Template)
	CalculateViewBoundingBox(mapRect geom.Rect) geom.Rect
}

func (m *Map) AddWidget(w Widget) {
	m.widgets = append(m.widgets, w)
}

// RemoveWidget detaches w, which must be attached.
func (m *Map) RemoveWidget(w Widget) {
	for i, x := range m.widgets {
		if x == w {
			m.widgets = append(m.widgets[:i], m.widgets[i+1:]...)
			return
		}
	}
	panic("document: removing a widget that is not attached")
}

func (m *Map) Widgets() []Widget { return m.widgets }

func (m *Map) UpdateAllWidgets() {
	for _, w := range m.widgets {
		w.UpdateEverything()
	}
}

func (m *Map) SetDrawingBoundingBox(mapRect geom.Rect, pixelBorder int, doUpdate bool) {
	for _, w := range m.widgets {
		w.SetDrawingBoundingBox(mapRect, pixelBorder, doUpdate)
	}
}

func (m *Map) ClearDrawingBoundingBox() {
	for _, w := range m.widgets {
		w.ClearDrawingBoundingBox()
	}
}

func (m *Map) SetActivityBoundingBox(mapRect geom.Rect, pixelBorder int, doUpdate bool) {
	for _, w := range m.widgets {
		w.SetActivityBoundingBox(mapRect, pixelBorder, doUpdate)
	}
}

func (m *Map) ClearActivityBoundingBox() {
	for _, w := range m.widgets {
		w.ClearActivityBoundingBox()
	}
}

func (m *Map) UpdateDrawing(mapRect geom.Rect, pixelBorder int) {
	for _, w := range m.widgets {
		w.UpdateDrawing(mapRect, pixelBorder)
	}
}

func (m *Map) SetObjectAreaDirty(mapRect geom.Rect) {
	for _, w := range m.widgets {
		w.MarkObjectAreaDirty(mapRect)
	}
}
