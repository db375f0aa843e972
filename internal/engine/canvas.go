package engine

import (
	"image"

	"github.com/google/uuid"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/view"
)

// Canvas is the map widget behind a browser canvas. It does not draw; it
// collects which parts of the map changed so the engine knows when the
// retained scene must be rebuilt and which area the client should repaint.
type Canvas struct {
	ID string

	v *view.MapView

	// full is set when everything must be redrawn, e.g. after a camera
	// change. Otherwise dirty is the changed area in map coordinates.
	full  bool
	dirty geom.Rect

	frontTemplatesDirty bool
	backTemplatesDirty  bool

	drawingBox  geom.Rect
	activityBox geom.Rect
	dragOffset  image.Point
}

func NewCanvas(v *view.MapView) *Canvas {
	return &Canvas{ID: uuid.NewString(), v: v, full: true}
}

var _ view.Widget = (*Canvas)(nil)

func (c *Canvas) View() document.WidgetView { return c.v }

func (c *Canvas) UpdateEverything() { c.full = true }

func (c *Canvas) MarkObjectAreaDirty(mapRect geom.Rect) {
	c.dirty = c.dirty.Union(mapRect)
}

func (c *Canvas) MarkTemplateCacheDirty(viewRect geom.Rect, pixelBorder int, frontCache bool) {
	if frontCache {
		c.frontTemplatesDirty = true
	} else {
		c.backTemplatesDirty = true
	}
	c.dirty = c.dirty.Union(c.v.CalculateViewedRect(viewRect.Adjusted(float64(pixelBorder))))
}

// SetDrawingBoundingBox tracks the area of an object being drawn by a tool.
func (c *Canvas) SetDrawingBoundingBox(mapRect geom.Rect, pixelBorder int, doUpdate bool) {
	c.drawingBox = c.padded(mapRect, pixelBorder)
	if doUpdate {
		c.dirty = c.dirty.Union(c.drawingBox)
	}
}

func (c *Canvas) ClearDrawingBoundingBox() {
	c.dirty = c.dirty.Union(c.drawingBox)
	c.drawingBox = geom.Rect{}
}

// SetActivityBoundingBox tracks the area of tool feedback such as handles.
func (c *Canvas) SetActivityBoundingBox(mapRect geom.Rect, pixelBorder int, doUpdate bool) {
	c.activityBox = c.padded(mapRect, pixelBorder)
	if doUpdate {
		c.dirty = c.dirty.Union(c.activityBox)
	}
}

func (c *Canvas) ClearActivityBoundingBox() {
	c.dirty = c.dirty.Union(c.activityBox)
	c.activityBox = geom.Rect{}
}

func (c *Canvas) UpdateDrawing(mapRect geom.Rect, pixelBorder int) {
	c.dirty = c.dirty.Union(c.padded(mapRect, pixelBorder))
}

func (c *Canvas) padded(mapRect geom.Rect, pixelBorder int) geom.Rect {
	if mapRect.IsEmpty() {
		return geom.Rect{}
	}
	return mapRect.Adjusted(float64(c.v.PixelToLength(float64(pixelBorder))) / 1000)
}

func (c *Canvas) Zoomed(factor float64) {
	if factor != 1 {
		c.full = true
	}
}

func (c *Canvas) Moved(dx, dy int64) {
	if dx != 0 || dy != 0 {
		c.full = true
	}
}

func (c *Canvas) DragOffsetChanged(offset image.Point) { c.dragOffset = offset }

func (c *Canvas) DraggingCompleted(offset image.Point, dx, dy int64) {
	c.dragOffset = image.Point{}
	c.full = true
}

func (c *Canvas) DragOffset() image.Point { return c.dragOffset }

// NeedsRender reports whether anything changed since the last Reset.
func (c *Canvas) NeedsRender() bool {
	return c.full || c.dirty.IsValid() || c.frontTemplatesDirty || c.backTemplatesDirty
}

// DirtyArea returns the changed map area. full means the whole viewport.
func (c *Canvas) DirtyArea() (area geom.Rect, full bool) {
	return c.dirty, c.full
}

// DrawingBoundingBox returns the area of the object being drawn, if any.
func (c *Canvas) DrawingBoundingBox() geom.Rect { return c.drawingBox }

func (c *Canvas) ActivityBoundingBox() geom.Rect { return c.activityBox }

// Reset marks the canvas as up to date.
func (c *Canvas) Reset() {
	c.full = false
	c.dirty = geom.Rect{}
	c.frontTemplatesDirty = false
	c.backTemplatesDirty = false
}
