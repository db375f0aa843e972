package view

import (
	"bytes"
	"encoding/binary"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
)

type listenerCall struct {
	kind   string
	factor float64
	dx, dy int64
	offset image.Point
}

type fakeWidget struct {
	v       *MapView
	calls   []listenerCall
	redraws int
}

func (w *fakeWidget) UpdateEverything()                                  { w.redraws++ }
func (w *fakeWidget) MarkObjectAreaDirty(geom.Rect)                      {}
func (w *fakeWidget) MarkTemplateCacheDirty(geom.Rect, int, bool)        {}
func (w *fakeWidget) SetDrawingBoundingBox(geom.Rect, int, bool)         {}
func (w *fakeWidget) ClearDrawingBoundingBox()                           {}
func (w *fakeWidget) SetActivityBoundingBox(geom.Rect, int, bool)        {}
func (w *fakeWidget) ClearActivityBoundingBox()                          {}
func (w *fakeWidget) UpdateDrawing(geom.Rect, int)                       {}
func (w *fakeWidget) View() document.WidgetView                          { return w.v }
func (w *fakeWidget) Zoomed(factor float64)                              { w.record(listenerCall{kind: "zoomed", factor: factor}) }
func (w *fakeWidget) Moved(dx, dy int64)                                 { w.record(listenerCall{kind: "moved", dx: dx, dy: dy}) }
func (w *fakeWidget) DragOffsetChanged(offset image.Point)               { w.record(listenerCall{kind: "drag", offset: offset}) }
func (w *fakeWidget) DraggingCompleted(offset image.Point, dx, dy int64) { w.record(listenerCall{kind: "dragged", offset: offset, dx: dx, dy: dy}) }

func (w *fakeWidget) record(c listenerCall) { w.calls = append(w.calls, c) }

func newViewWithWidget() (*MapView, *fakeWidget) {
	v := New(document.NewMap())
	w := &fakeWidget{v: v}
	v.AddWidget(w)
	return v, w
}

func TestZoomSteps(t *testing.T) {
	v, w := newViewWithWidget()
	require.True(t, v.ZoomSteps(2, false, 0, 0))
	assert.InDelta(t, 2.0, v.Zoom(), 1e-9)
	require.Len(t, w.calls, 1)
	assert.Equal(t, "zoomed", w.calls[0].kind)
	assert.InDelta(t, 2.0, w.calls[0].factor, 1e-9)

	require.True(t, v.ZoomSteps(-1, false, 0, 0))
	assert.InDelta(t, math.Sqrt2, v.Zoom(), 1e-9)
}

func TestZoomStopsAtLimits(t *testing.T) {
	v := New(document.NewMap())
	v.SetZoom(400)
	assert.True(t, v.ZoomSteps(2, false, 0, 0))
	assert.Equal(t, ZoomInLimit, v.Zoom())
	assert.False(t, v.ZoomSteps(2, false, 0, 0))
	assert.Equal(t, ZoomInLimit, v.Zoom())

	v.SetZoom(0.07)
	assert.True(t, v.ZoomSteps(-2, false, 0, 0))
	assert.Equal(t, ZoomOutLimit, v.Zoom())
	assert.False(t, v.ZoomSteps(-2, false, 0, 0))

	v.SetZoom(10000)
	assert.Equal(t, ZoomInLimit, v.Zoom(), "explicit zoom is clamped too")
}

func TestZoomPreservesCursor(t *testing.T) {
	v := New(document.NewMap())
	v.SetRotation(0.3)
	v.SetPosition(12000, -4000)
	v.SetViewOrigin(-320, -240)

	cursorX, cursorY := 57.0, 131.0
	before := v.ViewToMapF(cursorX, cursorY)
	require.True(t, v.ZoomSteps(3, true, cursorX, cursorY))
	after := v.ViewToMapF(cursorX, cursorY)

	assert.InDelta(t, before.X, after.X, 0.002)
	assert.InDelta(t, before.Y, after.Y, 0.002)
}

func TestTransformsAreInverse(t *testing.T) {
	v := New(document.NewMap())
	v.SetZoom(3)
	v.SetRotation(-1.1)
	v.SetPosition(-50000, 25000)

	p := geom.MapCoordF{X: 13.5, Y: -7.25}
	x, y := v.MapToViewF(p)
	back := v.ViewToMapF(x, y)
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	x, y = v.MapToViewCoord(geom.FromNative(-50000, 25000))
	assert.InDelta(t, 0, x, 1e-9, "the camera position is at the view origin")
	assert.InDelta(t, 0, y, 1e-9)
}

func TestLengthConversion(t *testing.T) {
	v := New(document.NewMap())
	assert.InDelta(t, ScreenPixelPerMM, v.LengthToPixel(1000), 1e-12)
	assert.Equal(t, int64(2000), v.PixelToLength(10))
	v.SetZoom(2)
	assert.Equal(t, int64(1000), v.PixelToLength(10))
}

func TestViewedRectCoversViewport(t *testing.T) {
	v := New(document.NewMap())
	v.SetRotation(math.Pi / 6)
	v.SetZoom(1.5)
	viewRect := geom.Rect{X: -100, Y: -80, Width: 200, Height: 160}

	mapRect := v.CalculateViewedRect(viewRect)
	require.True(t, mapRect.IsValid())
	for _, c := range [][2]float64{{-100, -80}, {100, -80}, {100, 80}, {-100, 80}} {
		p := v.ViewToMapF(c[0], c[1])
		assert.True(t, mapRect.Contains(p.X, p.Y), "corner %v", c)
	}

	box := v.CalculateViewBoundingBox(mapRect)
	assert.LessOrEqual(t, box.Left(), viewRect.Left())
	assert.GreaterOrEqual(t, box.Right(), viewRect.Right())
	assert.LessOrEqual(t, box.Top(), viewRect.Top())
	assert.GreaterOrEqual(t, box.Bottom(), viewRect.Bottom())
}

func TestCompleteDragging(t *testing.T) {
	v, w := newViewWithWidget()
	v.SetDragOffset(image.Point{X: 10, Y: -5})
	assert.Equal(t, image.Point{X: 10, Y: -5}, v.DragOffset())

	v.CompleteDragging(image.Point{X: 10, Y: -5})
	assert.Equal(t, image.Point{}, v.DragOffset())
	assert.Equal(t, int64(-2000), v.PositionX())
	assert.Equal(t, int64(1000), v.PositionY())

	require.Len(t, w.calls, 2)
	assert.Equal(t, listenerCall{kind: "drag", offset: image.Point{X: 10, Y: -5}}, w.calls[0])
	assert.Equal(t, listenerCall{kind: "dragged", offset: image.Point{X: 10, Y: -5}, dx: -2000, dy: 1000}, w.calls[1])
}

func TestTemplateVisibility(t *testing.T) {
	v, w := newViewWithWidget()
	m := v.Map()
	tmpl := document.NewTemplate("scan.png", geom.Rect{Width: 100, Height: 100})
	m.AddTemplate(tmpl, 0)

	assert.False(t, v.IsTemplateVisible(tmpl), "templates without a record are hidden")
	assert.False(t, v.HasTemplateVisibility(tmpl))

	vis := v.TemplateVisibility(tmpl)
	assert.Equal(t, TemplateVisibility{Visible: true, Opacity: 1}, *vis)
	assert.True(t, v.IsTemplateVisible(tmpl))

	vis.Opacity = 0
	assert.False(t, v.IsTemplateVisible(tmpl))

	m.DeleteTemplate(0)
	assert.False(t, v.HasTemplateVisibility(tmpl), "deleting the template drops the record")
	assert.Zero(t, v.NumTemplateVisibilities())

	v.RemoveWidget(w)
	assert.Empty(t, m.Widgets())
	assert.Panics(t, func() { v.RemoveWidget(w) })
}

func TestRotationRedrawsWidgets(t *testing.T) {
	v, w := newViewWithWidget()
	v.SetRotation(0.5)
	assert.Equal(t, 1, w.redraws)
	assert.Equal(t, 0.5, v.Rotation())
}

func TestCenterOn(t *testing.T) {
	v := New(document.NewMap())
	v.CenterOn(geom.Rect{X: 10, Y: 20, Width: 100, Height: 50}, 800, 600)
	assert.Equal(t, int64(60000), v.PositionX())
	assert.Equal(t, int64(45000), v.PositionY())

	pixels := v.LengthToPixel(100000)
	assert.LessOrEqual(t, pixels, 800.0)
	assert.Greater(t, pixels*math.Sqrt2, 800.0, "the next half stop would not fit")
}

func TestRecordRoundTrip(t *testing.T) {
	m := document.NewMap()
	t0 := document.NewTemplate("a.png", geom.Rect{Width: 10, Height: 10})
	t1 := document.NewTemplate("b.png", geom.Rect{Width: 10, Height: 10})
	m.AddTemplate(t0, 0)
	m.AddTemplate(t1, 1)

	v := New(m)
	v.SetZoom(3)
	v.SetRotation(0.5)
	v.SetPosition(1234, -5678)
	v.SetViewOrigin(-400, -300)
	v.TemplateVisibility(t0)
	v.TemplateVisibility(t1).Visible = false
	v.TemplateVisibility(t1).Opacity = 0.5

	var buf bytes.Buffer
	require.NoError(t, v.Save(&buf))

	loaded := New(m)
	require.NoError(t, loaded.Load(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, v.Zoom(), loaded.Zoom())
	assert.Equal(t, v.Rotation(), loaded.Rotation())
	assert.Equal(t, v.PositionX(), loaded.PositionX())
	assert.Equal(t, v.PositionY(), loaded.PositionY())
	assert.Equal(t, -400, loaded.ViewX())
	assert.True(t, v.MapToView().ApproxEqual(loaded.MapToView(), 1e-12))

	assert.True(t, loaded.IsTemplateVisible(t0))
	assert.False(t, loaded.IsTemplateVisible(t1))
	assert.Equal(t, float32(0.5), loaded.TemplateVisibility(t1).Opacity)

	var again bytes.Buffer
	require.NoError(t, loaded.Save(&again))
	assert.Equal(t, buf.Bytes(), again.Bytes(), "records are written in template order")
}

func TestRecordErrors(t *testing.T) {
	m := document.NewMap()
	t0 := document.NewTemplate("a.png", geom.Rect{Width: 10, Height: 10})
	t1 := document.NewTemplate("b.png", geom.Rect{Width: 10, Height: 10})
	m.AddTemplate(t0, 0)
	m.AddTemplate(t1, 1)
	v := New(m)
	v.TemplateVisibility(t1)
	var buf bytes.Buffer
	require.NoError(t, v.Save(&buf))

	single := document.NewMap()
	single.AddTemplate(document.NewTemplate("a.png", geom.Rect{Width: 10, Height: 10}), 0)
	target := New(single)
	target.SetZoom(4)
	err := target.Load(bytes.NewReader(buf.Bytes()))
	assert.ErrorIs(t, err, ErrUnknownTemplate)
	assert.Equal(t, 4.0, target.Zoom(), "a failed load leaves the view alone")

	err = New(m).Load(bytes.NewReader(buf.Bytes()[:10]))
	assert.Error(t, err)

	// A header claiming far more visibilities than the map has templates.
	huge := bytes.Clone(buf.Bytes())
	countAt := binary.Size(recordHeader{}) - 4
	binary.LittleEndian.PutUint32(huge[countAt:], 0x7fffffff)
	target = New(m)
	target.SetZoom(2)
	err = target.Load(bytes.NewReader(huge))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "visibilities for 2 templates")
	assert.Equal(t, 2.0, target.Zoom())
}
