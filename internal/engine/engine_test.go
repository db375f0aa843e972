package engine

import (
	"bytes"
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
)

func sampleEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine()
	e.LoadSampleDocument()
	require.Equal(t, 6, e.Map().NumObjects())
	return e
}

// viewPoint returns where the map point (x, y) mm appears in the viewport.
func viewPoint(e *Engine, x, y float64) (float64, float64) {
	return e.View().MapToViewF(geom.MapCoordF{X: x, Y: y})
}

func decodeCommands(t *testing.T, s string) []DrawCommand {
	t.Helper()
	var commands []DrawCommand
	require.NoError(t, json.Unmarshal([]byte(s), &commands))
	return commands
}

func TestEmptyEngineRendersNothing(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, "[]", e.Render())
	assert.Equal(t, "", e.HitTest(10, 10))
	assert.Equal(t, `{"height":0,"width":0,"x":0,"y":0}`, e.GetSelectionBounds())
}

func TestRenderSampleMap(t *testing.T) {
	e := sampleEngine(t)
	commands := decodeCommands(t, e.Render())
	require.NotEmpty(t, commands)

	objects := map[string]bool{}
	for _, cmd := range commands {
		assert.NotEmpty(t, cmd.Op)
		assert.Len(t, cmd.Transform, 6)
		objects[cmd.ObjectID] = true
	}
	assert.Len(t, objects, 6, "every sample object is drawn")

	ops := map[string]int{}
	for _, cmd := range commands {
		ops[cmd.Op]++
	}
	assert.Positive(t, ops["path"])
	assert.Positive(t, ops["circle"])
	assert.Equal(t, 1, ops["text"])
}

func TestSceneIsRetainedUntilChange(t *testing.T) {
	e := sampleEngine(t)
	first := e.Scene()
	assert.False(t, e.NeedsRender())
	assert.Same(t, first, e.Scene())

	e.ZoomSteps(1, 400, 300)
	assert.True(t, e.NeedsRender())
	second := e.Scene()
	assert.NotSame(t, first, second)

	e.Map().Layer(0).Object(4).Move(1000, 0)
	e.Map().Layer(0).Object(4).Update(true, true)
	assert.True(t, e.NeedsRender(), "object changes mark the canvas dirty")
}

func TestHitTestFindsTopmostObject(t *testing.T) {
	e := sampleEngine(t)
	control := e.Map().Layer(0).Object(4)

	x, y := viewPoint(e, 45, 28)
	assert.Equal(t, control.ID(), e.HitTest(x, y))

	x, y = viewPoint(e, 5, 35)
	assert.Equal(t, e.Map().Layer(0).Object(0).ID(), e.HitTest(x, y), "open land area")

	x, y = viewPoint(e, -50, -50)
	assert.Equal(t, "", e.HitTest(x, y))
}

func TestSelectAt(t *testing.T) {
	e := sampleEngine(t)
	control := e.Map().Layer(0).Object(4)
	x, y := viewPoint(e, 45, 28)

	require.True(t, e.SelectAt(x, y, false))
	assert.JSONEq(t, `["`+control.ID()+`"]`, e.GetSelection())

	selected := 0
	for _, cmd := range decodeCommands(t, e.Render()) {
		if cmd.Selected {
			selected++
			assert.Equal(t, control.ID(), cmd.ObjectID)
			assert.Equal(t, document.Builtins().CoveringRed.Hex(), cmd.Stroke)
		}
	}
	assert.Positive(t, selected)

	bounds := SelectionBounds(e.Map(), e.View())
	assert.True(t, bounds.Contains(x, y))

	assert.True(t, e.SelectAt(x, y, true), "adding toggles")
	assert.Zero(t, e.Map().NumSelectedObjects())

	fx, fy := viewPoint(e, -50, -50)
	assert.False(t, e.SelectAt(fx, fy, false))
}

func TestSelectBox(t *testing.T) {
	e := sampleEngine(t)
	x1, y1 := viewPoint(e, 40, 24)
	x2, y2 := viewPoint(e, 48, 31)

	n := e.SelectBox(x1, y1, x2, y2, false)
	assert.Positive(t, n)
	assert.True(t, e.Map().IsObjectSelected(e.Map().Layer(0).Object(4)))

	e.SetSelection([]string{e.Map().Layer(0).Object(1).ID(), "object_missing"})
	assert.Equal(t, []document.Object{e.Map().Layer(0).Object(1)}, e.Map().SelectedObjects())
}

func TestMoveSelectionAndUndo(t *testing.T) {
	e := sampleEngine(t)
	control := e.Map().Layer(0).Object(4)
	e.SetSelection([]string{control.ID()})
	before := control.Coords()[0]

	px := e.View().LengthToPixel(2000)
	require.True(t, e.MoveSelection(px, 0))
	after := e.Map().Layer(0).Object(4).Coords()[0]
	assert.InDelta(t, before.X()+2, after.X(), 0.002)
	assert.InDelta(t, before.Y(), after.Y(), 0.002)
	assert.True(t, e.State().CanUndo)

	require.True(t, e.Undo())
	assert.Equal(t, before, e.Map().Layer(0).Object(4).Coords()[0])
	assert.True(t, e.State().CanRedo)
	assert.False(t, e.State().HasUnsavedChanges)
}

func TestEditingCommands(t *testing.T) {
	e := sampleEngine(t)
	footpath := e.Map().Layer(0).Object(3)
	e.SetSelection([]string{footpath.ID()})

	assert.Equal(t, 1, e.DuplicateSelection())
	assert.Equal(t, 7, e.Map().NumObjects())
	assert.Equal(t, 1, e.SwitchDashes())
	assert.True(t, e.SwitchSymbol(0), "footpath to contour")
	assert.Equal(t, 1, e.DeleteSelection())
	assert.Equal(t, 6, e.Map().NumObjects())

	for e.Undo() {
	}
	assert.Equal(t, 6, e.Map().NumObjects())
	assert.False(t, e.Map().HasUnsavedChanges())
}

func TestSymbolsReportCompatibility(t *testing.T) {
	e := sampleEngine(t)
	e.SetSelection([]string{e.Map().Layer(0).Object(3).ID()})

	symbols := e.Symbols()
	require.Len(t, symbols, 6)
	assert.True(t, symbols[0].Compatible, "line to line")
	assert.False(t, symbols[4].Compatible, "line to point")
	assert.Equal(t, "507", symbols[1].Number)
}

func TestTemplatesAreDrawnAroundObjects(t *testing.T) {
	e := sampleEngine(t)
	m := e.Map()
	back := document.NewTemplate("ortho.png", geom.Rect{Width: 60, Height: 40})
	front := document.NewTemplate("overlay.png", geom.Rect{Width: 60, Height: 40})
	m.AddTemplate(back, 0)
	m.AddTemplate(front, 1)
	m.SetFirstFrontTemplate(1)
	e.SetTemplateVisibility(0, true, 0.5)
	e.SetTemplateVisibility(1, true, 2)

	commands := decodeCommands(t, e.Render())
	require.NotEmpty(t, commands)
	first, last := commands[0], commands[len(commands)-1]
	assert.Equal(t, "image", first.Op)
	assert.Equal(t, back.ID, first.TemplateID)
	assert.InDelta(t, 0.5, first.Opacity, 1e-6)
	assert.Equal(t, "image", last.Op)
	assert.Equal(t, front.ID, last.TemplateID)
	assert.InDelta(t, 1, last.Opacity, 1e-6, "opacity is clamped")

	e.SetTemplateVisibility(0, false, 1)
	for _, cmd := range decodeCommands(t, e.Render()) {
		assert.NotEqual(t, back.ID, cmd.TemplateID)
	}
}

func TestHelperSymbolsHiddenByDefault(t *testing.T) {
	e := sampleEngine(t)
	lake := e.Map().Symbol(2)
	lake.Base().Helper = true
	e.Map().UpdateAllObjects(false)

	lakeID := e.Map().Layer(0).Object(1).ID()
	drawn := func() bool {
		for _, cmd := range decodeCommands(t, e.Render()) {
			if cmd.ObjectID == lakeID {
				return true
			}
		}
		return false
	}
	assert.False(t, drawn())
	e.SetShowHelperSymbols(true)
	assert.True(t, drawn())
}

func TestMsgpackEncoding(t *testing.T) {
	e := sampleEngine(t)
	data, err := e.RenderMsgpack()
	require.NoError(t, err)

	var decoded []DrawCommand
	require.NoError(t, msgpack.Unmarshal(data, &decoded))
	commands := e.Scene().Commands
	require.Len(t, decoded, len(commands))
	for i := range commands {
		assert.Equal(t, commands[i].Op, decoded[i].Op)
		assert.Equal(t, commands[i].ObjectID, decoded[i].ObjectID)
		assert.Len(t, decoded[i].Path, len(commands[i].Path))
	}
}

func TestSaveAndLoadDocument(t *testing.T) {
	e := sampleEngine(t)
	e.SetZoom(8)
	var buf bytes.Buffer
	require.NoError(t, e.SaveDocument(&buf, ""))

	other := NewEngine()
	warnings, err := other.LoadDocument(bytes.NewReader(buf.Bytes()), "copy.omap")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, e.Map().ID, other.Map().ID)
	assert.InDelta(t, 8.0, other.View().Zoom(), 1e-9)
	assert.Len(t, decodeCommands(t, other.Render()), len(decodeCommands(t, e.Render())))

	before := other.Map()
	_, err = other.LoadDocument(bytes.NewReader([]byte("garbage")), "x.txt")
	require.Error(t, err)
	assert.Same(t, before, other.Map(), "failed loads keep the current map")

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(other.GetDocument()), &doc))
	assert.Equal(t, e.Map().ID, doc["id"])
}

func TestResizeKeepsCameraCentered(t *testing.T) {
	e := sampleEngine(t)
	e.Resize(1000, 500)
	assert.Equal(t, -500, e.View().ViewX())
	assert.Equal(t, -250, e.View().ViewY())

	cx, cy := viewPoint(e, float64(e.View().PositionX())/1000, float64(e.View().PositionY())/1000)
	assert.InDelta(t, 500, cx, 1e-6)
	assert.InDelta(t, 250, cy, 1e-6)
}

func TestPanMovesCamera(t *testing.T) {
	e := sampleEngine(t)
	x0 := e.View().PositionX()
	e.DragTo(40, 0)
	assert.Equal(t, image.Pt(40, 0), e.Canvas().DragOffset())

	e.Pan(40, 0)
	assert.Equal(t, x0-e.View().PixelToLength(40), e.View().PositionX())
	assert.Equal(t, image.Point{}, e.Canvas().DragOffset())
}

func TestStateJSON(t *testing.T) {
	e := sampleEngine(t)
	var s State
	require.NoError(t, json.Unmarshal([]byte(e.GetState()), &s))
	assert.Equal(t, e.Map().ID, s.MapID)
	require.Len(t, s.Layers, 1)
	assert.Equal(t, 6, s.Layers[0].ObjectCount)
	assert.False(t, s.CanUndo)
}

func TestCanvasTracksDirtyAreas(t *testing.T) {
	e := sampleEngine(t)
	c := e.Canvas()
	e.Scene()
	require.False(t, c.NeedsRender())

	c.Zoomed(1)
	c.Moved(0, 0)
	assert.False(t, c.NeedsRender(), "no-op camera changes")

	c.MarkObjectAreaDirty(geom.Rect{X: 1, Y: 1, Width: 2, Height: 2})
	c.MarkObjectAreaDirty(geom.Rect{X: 5, Y: 5, Width: 1, Height: 1})
	area, full := c.DirtyArea()
	assert.False(t, full)
	assert.Equal(t, geom.Rect{X: 1, Y: 1, Width: 5, Height: 5}, area)

	c.SetDrawingBoundingBox(geom.Rect{X: 10, Y: 10, Width: 1, Height: 1}, 0, false)
	assert.Equal(t, geom.Rect{X: 10, Y: 10, Width: 1, Height: 1}, c.DrawingBoundingBox())
	c.ClearDrawingBoundingBox()
	assert.True(t, c.DrawingBoundingBox().IsEmpty())

	c.Reset()
	assert.False(t, c.NeedsRender())
	c.UpdateEverything()
	_, full = c.DirtyArea()
	assert.True(t, full)
}

func TestAddImageTemplate(t *testing.T) {
	e := sampleEngine(t)
	m := e.Map()

	back := e.AddImageTemplate("back.png", 400, 200, false)
	front := e.AddImageTemplate("front.png", 100, 100, true)
	assert.Equal(t, 0, back)
	assert.Equal(t, 1, front)
	assert.False(t, m.IsFrontTemplate(m.Template(back)))
	assert.True(t, m.IsFrontTemplate(m.Template(front)))
	assert.True(t, e.View().IsTemplateVisible(m.Template(back)))

	// Centered on the camera.
	cx, cy := m.Template(back).CalculateMapExtent().Center()
	assert.InDelta(t, float64(e.View().PositionX())/1000, cx, 0.01)
	assert.InDelta(t, float64(e.View().PositionY())/1000, cy, 0.01)

	commands := decodeCommands(t, e.Render())
	require.NotEmpty(t, commands)
	assert.Equal(t, m.Template(back).ID, commands[0].TemplateID)
	assert.Equal(t, m.Template(front).ID, commands[len(commands)-1].TemplateID)
}

func TestOnMapChanged(t *testing.T) {
	e := NewEngine()
	var seen []*document.Map
	e.OnMapChanged(func(m *document.Map) { seen = append(seen, m) })
	require.Len(t, seen, 1)
	assert.Same(t, e.Map(), seen[0])

	e.LoadSampleDocument()
	require.Len(t, seen, 2)
	assert.Same(t, e.Map(), seen[1])
}
