// Package view holds the camera of a map viewport: zoom, rotation and
// position, the affine transforms between map millimeters and view pixels,
// and which templates the viewport shows.
package view

import (
	"image"
	"math"
	"slices"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/typeid"
)

const (
	ZoomInLimit  = 512.0
	ZoomOutLimit = 1 / 16.0

	// ScreenPixelPerMM is the assumed resolution of the screen.
	ScreenPixelPerMM = 4.999838577
)

// TemplateVisibility is the per view display state of a template.
type TemplateVisibility struct {
	Visible bool
	Opacity float32
}

// Listener follows camera changes, e.g. to shift a cached drawing instead
// of repainting it.
type Listener interface {
	Zoomed(factor float64)
	Moved(dx, dy int64)
	DragOffsetChanged(offset image.Point)
	DraggingCompleted(offset image.Point, dx, dy int64)
}

// Widget is a map widget showing this view.
type Widget interface {
	document.Widget
	Listener
}

// MapView is the camera of one viewport onto a map. View coordinates are
// pixels relative to the viewport origin; the camera position appears at
// the origin when it is (0, 0).
type MapView struct {
	ID string

	m          *document.Map
	zoom       float64
	rotation   float64
	positionX  int64
	positionY  int64
	viewX      int
	viewY      int
	dragOffset image.Point

	mapToView geom.Matrix2D
	viewToMap geom.Matrix2D

	visibilities map[*document.Template]*TemplateVisibility
	widgets      []Widget
}

// New creates a view at zoom 1 centered on the map origin.
func New(m *document.Map) *MapView {
	v := &MapView{
		ID:           typeid.NewViewID(),
		m:            m,
		zoom:         1,
		visibilities: make(map[*document.Template]*TemplateVisibility),
	}
	v.update()
	return v
}

func (v *MapView) Map() *document.Map { return v.m }

func (v *MapView) Zoom() float64           { return v.zoom }
func (v *MapView) Rotation() float64       { return v.rotation }
func (v *MapView) PositionX() int64        { return v.positionX }
func (v *MapView) PositionY() int64        { return v.positionY }
func (v *MapView) ViewX() int              { return v.viewX }
func (v *MapView) ViewY() int              { return v.viewY }
func (v *MapView) DragOffset() image.Point { return v.dragOffset }

// MapToView is the map (mm) to view (px) transform.
func (v *MapView) MapToView() geom.Matrix2D { return v.mapToView }

// ViewToMap is the inverse of MapToView.
func (v *MapView) ViewToMap() geom.Matrix2D { return v.viewToMap }

// AddWidget attaches w to this view and to the map.
func (v *MapView) AddWidget(w Widget) {
	v.widgets = append(v.widgets, w)
	v.m.AddWidget(w)
}

// RemoveWidget detaches w, which must be attached.
func (v *MapView) RemoveWidget(w Widget) {
	i := slices.Index(v.widgets, w)
	if i < 0 {
		panic("view: removing a widget that is not attached")
	}
	v.widgets = slices.Delete(v.widgets, i, i+1)
	v.m.RemoveWidget(w)
}

func (v *MapView) UpdateAllWidgets() {
	for _, w := range v.widgets {
		w.UpdateEverything()
	}
}

// LengthToPixel converts a length in 1/1000 mm to view pixels.
func (v *MapView) LengthToPixel(length int64) float64 {
	return v.zoom * ScreenPixelPerMM * (float64(length) / 1000)
}

// PixelToLength converts view pixels to a length in 1/1000 mm.
func (v *MapView) PixelToLength(pixel float64) int64 {
	return int64(math.Round(1000 * pixel / (v.zoom * ScreenPixelPerMM)))
}

func (v *MapView) MapToViewF(p geom.MapCoordF) (x, y float64) {
	return v.mapToView.TransformPoint(p.X, p.Y)
}

func (v *MapView) MapToViewCoord(c geom.MapCoord) (x, y float64) {
	return v.MapToViewF(c.ToF())
}

func (v *MapView) ViewToMapF(x, y float64) geom.MapCoordF {
	mx, my := v.viewToMap.TransformPoint(x, y)
	return geom.MapCoordF{X: mx, Y: my}
}

func (v *MapView) ViewToMapCoord(x, y float64) geom.MapCoord {
	return v.ViewToMapF(x, y).ToMapCoord()
}

// CalculateViewedRect returns the map rect covered by viewRect. All four
// corners are transformed since a rotated view sees a rotated rect; the
// result is padded by 0.001 mm.
func (v *MapView) CalculateViewedRect(viewRect geom.Rect) geom.Rect {
	return transformCorners(v.viewToMap, viewRect).Adjusted(0.001)
}

// CalculateViewBoundingBox returns the view rect covering mapRect, padded
// by one pixel.
func (v *MapView) CalculateViewBoundingBox(mapRect geom.Rect) geom.Rect {
	return transformCorners(v.mapToView, mapRect).Adjusted(1)
}

func transformCorners(m geom.Matrix2D, r geom.Rect) geom.Rect {
	x, y := m.TransformPoint(r.Left(), r.Top())
	out := geom.Rect{X: x, Y: y}
	for _, c := range [][2]float64{{r.Right(), r.Top()}, {r.Right(), r.Bottom()}, {r.Left(), r.Bottom()}} {
		x, y = m.TransformPoint(c[0], c[1])
		out = out.IncludePoint(x, y)
	}
	return out
}

// SetDragOffset shifts the displayed map by offset pixels while the user
// pans. The camera itself moves in CompleteDragging.
func (v *MapView) SetDragOffset(offset image.Point) {
	v.dragOffset = offset
	for _, w := range v.widgets {
		w.DragOffsetChanged(offset)
	}
}

// CompleteDragging folds a pan of offset pixels into the camera position.
func (v *MapView) CompleteDragging(offset image.Point) {
	v.dragOffset = image.Point{}
	dx := -v.PixelToLength(float64(offset.X))
	dy := -v.PixelToLength(float64(offset.Y))
	for _, w := range v.widgets {
		w.DraggingCompleted(offset, dx, dy)
	}
	v.positionX += dx
	v.positionY += dy
	v.update()
}

// ZoomSteps zooms by half a stop per step, in for positive steps and out
// for negative ones, stopping at the zoom limits. With preserveCursor the
// map point under (cursorX, cursorY) stays there. Returns false if the
// view already was at the limit.
func (v *MapView) ZoomSteps(numSteps float64, preserveCursor bool, cursorX, cursorY float64) bool {
	numSteps *= 0.5
	zoomIn := numSteps > 0
	if zoomIn && v.zoom >= ZoomInLimit || !zoomIn && v.zoom <= ZoomOutLimit {
		return false
	}

	target := math.Pow(2, math.Log2(v.zoom)+numSteps)
	switch {
	case zoomIn && target > ZoomInLimit:
		target = ZoomInLimit
	case !zoomIn && target < ZoomOutLimit:
		target = ZoomOutLimit
	}
	factor := target / v.zoom

	var cursorMap, toCenter geom.MapCoordF
	if preserveCursor {
		cursorMap = v.ViewToMapF(cursorX, cursorY)
		toCenter = geom.MapCoordF{
			X: float64(v.positionX)/1000 - cursorMap.X,
			Y: float64(v.positionY)/1000 - cursorMap.Y,
		}.Mul(1 / factor)
	}

	v.SetZoom(target)
	if preserveCursor {
		center := cursorMap.Add(toCenter)
		v.SetPosition(int64(math.Round(1000*center.X)), int64(math.Round(1000*center.Y)))
	}
	return true
}

// SetZoom sets the zoom factor, limited to [ZoomOutLimit, ZoomInLimit].
func (v *MapView) SetZoom(zoom float64) {
	zoom = max(ZoomOutLimit, min(ZoomInLimit, zoom))
	factor := zoom / v.zoom
	for _, w := range v.widgets {
		w.Zoomed(factor)
	}
	v.zoom = zoom
	v.update()
}

func (v *MapView) SetRotation(radians float64) {
	v.rotation = radians
	v.update()
	v.UpdateAllWidgets()
}

// SetPosition moves the camera center to (x, y) in 1/1000 mm.
func (v *MapView) SetPosition(x, y int64) {
	dx, dy := x-v.positionX, y-v.positionY
	for _, w := range v.widgets {
		w.Moved(dx, dy)
	}
	v.positionX, v.positionY = x, y
	v.update()
}

func (v *MapView) SetPositionX(x int64) { v.SetPosition(x, v.positionY) }
func (v *MapView) SetPositionY(y int64) { v.SetPosition(v.positionX, y) }

// SetViewOrigin shifts the view space so that the camera center appears at
// (-x, -y).
func (v *MapView) SetViewOrigin(x, y int) {
	v.viewX, v.viewY = x, y
	v.update()
}

// CenterOn moves the camera to the center of mapRect and picks the largest
// half-stop zoom at which it fits into a viewport of the given size.
func (v *MapView) CenterOn(mapRect geom.Rect, width, height int) {
	if !mapRect.IsValid() || width <= 0 || height <= 0 {
		return
	}
	cx, cy := mapRect.Center()
	fit := min(float64(width)/(mapRect.Width*ScreenPixelPerMM), float64(height)/(mapRect.Height*ScreenPixelPerMM))
	zoom := math.Pow(2, math.Floor(2*math.Log2(fit))/2)
	v.SetZoom(zoom)
	v.SetPosition(int64(math.Round(cx*1000)), int64(math.Round(cy*1000)))
}

// update recomputes both transforms. Every camera setter calls it.
func (v *MapView) update() {
	cosr, sinr := math.Cos(v.rotation), math.Sin(v.rotation)
	z := v.LengthToPixel(1000)
	px, py := float64(v.positionX)/1000, float64(v.positionY)/1000

	v.mapToView = geom.Matrix2D{
		z * cosr,
		z * sinr,
		-z * sinr,
		z * cosr,
		-z*px*cosr + z*py*sinr - float64(v.viewX),
		-z*px*sinr - z*py*cosr - float64(v.viewY),
	}
	v.viewToMap = v.mapToView.Invert()
}

// IsTemplateVisible reports whether t is shown. Templates without a
// visibility record are hidden.
func (v *MapView) IsTemplateVisible(t *document.Template) bool {
	vis, ok := v.visibilities[t]
	return ok && vis.Visible && vis.Opacity > 0
}

// TemplateVisibility returns the record of t, creating a visible opaque
// one on first use.
func (v *MapView) TemplateVisibility(t *document.Template) *TemplateVisibility {
	vis, ok := v.visibilities[t]
	if !ok {
		vis = &TemplateVisibility{Visible: true, Opacity: 1}
		v.visibilities[t] = vis
	}
	return vis
}

func (v *MapView) HasTemplateVisibility(t *document.Template) bool {
	_, ok := v.visibilities[t]
	return ok
}

func (v *MapView) DeleteTemplateVisibility(t *document.Template) {
	delete(v.visibilities, t)
}

// NumTemplateVisibilities returns how many templates have a record.
func (v *MapView) NumTemplateVisibilities() int { return len(v.visibilities) }
