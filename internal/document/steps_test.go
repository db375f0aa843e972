package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orimap/orimap/internal/undo"
)

func coordsOf(l *Layer) [][]int64 {
	var out [][]int64
	for _, obj := range l.Objects() {
		for _, c := range obj.Coords() {
			out = append(out, []int64{c.NativeX(), c.NativeY()})
		}
	}
	return out
}

func TestReplaceStepUndoRedo(t *testing.T) {
	f := newFixture()
	obj := f.addLine(mc(0, 0), mc(10, 0))
	layer := f.m.CurrentLayer()
	before := coordsOf(layer)

	step := NewReplaceObjectsStep(f.m, 0)
	step.AddObject(0, obj.Duplicate())
	obj.Move(5000, 0)
	obj.Update(true, true)
	f.m.UndoManager().AddNewStep(step)
	after := coordsOf(layer)

	_, done := f.m.UndoManager().Undo()
	require.True(t, done)
	assert.Equal(t, before, coordsOf(layer))
	assert.NotSame(t, obj, layer.Object(0))
	assert.True(t, f.m.Renderables().Contains(layer.Object(0)))
	assert.False(t, f.m.Renderables().Contains(obj))

	f.m.UndoManager().Redo()
	assert.Equal(t, after, coordsOf(layer))
	assert.Same(t, obj, layer.Object(0))
}

func TestAddDeleteStepsAreInverse(t *testing.T) {
	f := newFixture()
	a := f.addPoint(0, 0)
	b := f.addPoint(1, 0)
	c := f.addPoint(2, 0)
	layer := f.m.CurrentLayer()

	// Record the deletion of a and c the way an editing command does.
	step := NewAddObjectsStep(f.m, 0)
	step.AddObject(2, c)
	step.AddObject(0, a)
	layer.DeleteObjectAt(2, true)
	layer.DeleteObjectAt(0, true)
	f.m.UndoManager().AddNewStep(step)
	require.Equal(t, []Object{b}, layer.Objects())

	f.m.UndoManager().Undo()
	assert.Equal(t, []Object{a, b, c}, layer.Objects())
	redo, ok := f.m.UndoManager().LastRedoStep().(*DeleteObjectsStep)
	require.True(t, ok)
	assert.Equal(t, []int{0, 2}, redo.Indices())

	f.m.UndoManager().Redo()
	assert.Equal(t, []Object{b}, layer.Objects())
	back, ok := f.m.UndoManager().LastUndoStep().(*AddObjectsStep)
	require.True(t, ok)
	assert.ElementsMatch(t, []Object{a, c}, back.AffectedOutcome())
}

func TestSwitchSymbolStep(t *testing.T) {
	f := newFixture()
	obj := f.addLine(mc(0, 0), mc(10, 0))

	step := NewSwitchSymbolStep(f.m, 0)
	step.AddObject(0, obj.Symbol())
	obj.SetSymbol(f.area, false)
	obj.Update(true, true)
	f.m.UndoManager().AddNewStep(step)

	f.m.UndoManager().Undo()
	assert.Same(t, f.line, obj.Symbol())
	assert.False(t, obj.IsDirty())
	f.m.UndoManager().Redo()
	assert.Same(t, f.area, obj.Symbol())
	assert.Equal(t, []Object{obj}, step.AffectedOutcome())
}

func TestSwitchDashesStepIsSelfInverse(t *testing.T) {
	f := newFixture()
	obj := f.addLine(mc(0, 0), mc(5, 0), mc(10, 3))
	original := obj.Coords()

	obj.Reverse()
	obj.Update(true, true)
	step := NewSwitchDashesStep(f.m, 0)
	step.AddObject(0)
	f.m.UndoManager().AddNewStep(step)

	f.m.UndoManager().Undo()
	assert.Equal(t, original, obj.Coords())
	f.m.UndoManager().Redo()
	assert.Equal(t, mc(10, 3), obj.Coords()[0])
}

func TestCombinedStepAffectedLayer(t *testing.T) {
	f := newFixture()
	obj := f.addLine(mc(0, 0), mc(10, 0))
	replace := NewReplaceObjectsStep(f.m, 0)
	replace.AddObject(0, obj.Duplicate())
	remove := NewDeleteObjectsStep(f.m, 0)
	remove.AddObject(1)

	layer, outcome := AffectedLayerAndOutcome(undo.NewCombinedStep(replace, remove))
	assert.Equal(t, 0, layer)
	assert.Len(t, outcome, 1)

	f.m.AddLayer("other", 1)
	elsewhere := NewDeleteObjectsStep(f.m, 1)
	assert.Panics(t, func() { AffectedLayerAndOutcome(undo.NewCombinedStep(replace, elsewhere)) })

	layer, outcome = AffectedLayerAndOutcome(undo.NewCombinedStep())
	assert.Equal(t, -1, layer)
	assert.Empty(t, outcome)
}
