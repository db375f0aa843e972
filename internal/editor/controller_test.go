package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
)

type fixture struct {
	c     *Controller
	m     *document.Map
	point *document.PointSymbol
	line  *document.LineSymbol
	track *document.LineSymbol
	area  *document.AreaSymbol
}

func newFixture() *fixture {
	m := document.NewMap()
	black := document.NewCMYKColor("Black", 0, 0, 0, 1)
	m.AddColor(black, 0)

	f := &fixture{
		c:     New(m),
		m:     m,
		point: document.NewPointSymbol("point"),
		line:  document.NewLineSymbol("line"),
		track: document.NewLineSymbol("track"),
		area:  document.NewAreaSymbol("area"),
	}
	f.point.InnerRadius = 500
	f.point.InnerColor = black
	f.line.Color, f.line.LineWidth = black, 200
	f.track.Color, f.track.LineWidth = black, 350
	f.area.Color = black
	for i, s := range []document.Symbol{f.point, f.line, f.track, f.area} {
		m.AddSymbol(s, i)
	}
	m.MarkSaved()
	return f
}

func mc(x, y float64) geom.MapCoord { return geom.NewMapCoord(x, y) }

func (f *fixture) addPoint(x, y float64) document.Object {
	obj := document.NewPointObject(f.point, mc(x, y))
	f.m.AddObject(obj, -1)
	return obj
}

func (f *fixture) addPath(sym document.Symbol, coords ...geom.MapCoord) *document.PathObject {
	obj := document.NewPathObject(sym, coords...)
	f.m.AddObject(obj, -1)
	return obj
}

func (f *fixture) selectAll(objs ...document.Object) {
	f.m.ClearObjectSelection(false)
	for _, obj := range objs {
		f.m.AddObjectToSelection(obj, false)
	}
}

func TestUndoWithEmptyHistory(t *testing.T) {
	f := newFixture()
	_, ok := f.c.Undo()
	assert.False(t, ok)
	_, ok = f.c.Redo()
	assert.False(t, ok)
}

func TestUndoReturnsToSavedState(t *testing.T) {
	f := newFixture()
	a := f.addPoint(0, 0)
	f.m.MarkSaved()
	f.selectAll(a)

	require.True(t, f.c.MoveSelection(1000, 0))
	require.True(t, f.m.HasUnsavedChanges())
	assert.Equal(t, mc(1, 0), a.Coords()[0])

	rect, ok := f.c.Undo()
	require.True(t, ok)
	assert.False(t, f.m.HasUnsavedChanges(), "undo back to the saved state clears the dirty flag")
	assert.True(t, rect.IsValid())
	restored := f.m.CurrentLayer().Object(0)
	assert.Equal(t, mc(0, 0), restored.Coords()[0])
	assert.Equal(t, []document.Object{restored}, f.m.SelectedObjects())

	_, ok = f.c.Redo()
	require.True(t, ok)
	assert.True(t, f.m.HasUnsavedChanges())
	assert.Same(t, a, f.m.CurrentLayer().Object(0))
	assert.Equal(t, []document.Object{a}, f.m.SelectedObjects())
}

func TestUndoSwitchesToAffectedLayer(t *testing.T) {
	f := newFixture()
	f.m.AddLayer("second", 1)
	f.m.SetCurrentLayerIndex(1)
	a := f.addPoint(0, 0)
	f.selectAll(a)
	require.Equal(t, 1, f.c.DuplicateSelection())

	f.m.SetCurrentLayerIndex(0)
	_, ok := f.c.Undo()
	require.True(t, ok)
	assert.Equal(t, 1, f.m.CurrentLayerIndex())
	assert.Equal(t, 1, f.m.Layer(1).NumObjects())
}

func TestEditingProtocol(t *testing.T) {
	f := newFixture()
	a := f.addPath(f.line, mc(0, 0), mc(10, 0))
	f.selectAll(a)
	edited := 0
	f.m.Subscribe(func(document.Event) { edited++ }, document.EventSelectionEdited)

	assert.Panics(t, func() { f.c.FinishEditing(true) })
	f.c.StartEditing()
	assert.True(t, f.c.IsEditing())
	assert.Panics(t, func() { f.c.StartEditing() })

	a.Move(0, 5000)
	f.c.FinishEditing(true)
	assert.False(t, f.c.IsEditing())
	assert.False(t, a.IsDirty())
	assert.Equal(t, 1, edited)
	assert.Equal(t, 1, f.m.UndoManager().NumUndoSteps())

	f.c.StartEditing()
	f.c.FinishEditing(false)
	assert.Equal(t, 1, f.m.UndoManager().NumUndoSteps(), "unchanged edits record nothing")
}

func TestAbortEditing(t *testing.T) {
	f := newFixture()
	a := f.addPath(f.line, mc(0, 0), mc(10, 0))
	f.selectAll(a)

	f.c.StartEditing()
	a.Move(0, 5000)
	f.c.AbortEditing()

	restored := f.m.CurrentLayer().Object(0)
	assert.NotSame(t, a, restored)
	assert.Equal(t, []geom.MapCoord{mc(0, 0), mc(10, 0)}, restored.Coords())
	assert.Equal(t, []document.Object{restored}, f.m.SelectedObjects())
	assert.False(t, f.m.UndoManager().CanUndo())
}
