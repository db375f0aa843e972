package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/undo"
)

func TestNewMapHasOneLayer(t *testing.T) {
	m := NewMap()
	require.Equal(t, 1, m.NumLayers())
	assert.Equal(t, 0, m.CurrentLayerIndex())
	assert.Equal(t, DefaultLayerName, m.CurrentLayer().Name())
	assert.False(t, m.HasUnsavedChanges())

	m.AddLayer("second", 1)
	m.AddLayer("first", 0)
	assert.Equal(t, 3, m.NumLayers())
	assert.Equal(t, 1, m.CurrentLayerIndex(), "inserting before the current layer shifts it")

	m.Clear()
	assert.Equal(t, 1, m.NumLayers())
	assert.Equal(t, 0, m.CurrentLayerIndex())
	assert.Zero(t, m.NumColors())
	assert.Zero(t, m.NumSymbols())
	assert.False(t, m.HasUnsavedChanges())
}

func TestDeleteLayerKeepsCurrentIndexValid(t *testing.T) {
	f := newFixture()
	f.m.AddLayer("top", 1)
	f.m.SetCurrentLayerIndex(1)
	f.addPoint(1, 1)
	f.m.UndoManager().AddNewStep(NewDeleteObjectsStep(f.m, 1))

	f.m.DeleteLayer(1)
	assert.Equal(t, 1, f.m.NumLayers())
	assert.Equal(t, 0, f.m.CurrentLayerIndex())
	assert.Zero(t, f.m.NumObjects())
	assert.False(t, f.m.UndoManager().CanUndo())

	assert.Panics(t, func() { f.m.DeleteLayer(0) })
}

func TestAddAndDeleteObjectRefreshesWidgetsOnce(t *testing.T) {
	f := newFixture()
	w := newRecordingWidget()
	f.m.AddWidget(w)

	obj := NewPointObject(f.point, mc(10, 10))
	f.m.AddObject(obj, 0)
	require.Equal(t, 1, f.m.NumObjects())
	assert.Equal(t, 1, w.updateEverything)
	assert.Same(t, f.m, obj.Map())
	assert.NotEmpty(t, w.objectAreas)

	w.updateEverything = 0
	f.m.DeleteObject(obj, false)
	assert.Zero(t, f.m.NumObjects())
	assert.Equal(t, 1, w.updateEverything)
	assert.Nil(t, obj.Map())
	assert.False(t, f.m.Renderables().Contains(obj))
}

func TestSecondObjectDoesNotRefreshWidgets(t *testing.T) {
	f := newFixture()
	f.addPoint(1, 1)
	w := newRecordingWidget()
	f.m.AddWidget(w)
	f.addPoint(2, 2)
	assert.Zero(t, w.updateEverything)

	f.m.RemoveWidget(w)
	assert.Panics(t, func() { f.m.RemoveWidget(w) })
}

func TestUnsavedChangesFireOnce(t *testing.T) {
	f := newFixture()
	fired := 0
	f.m.Subscribe(func(Event) { fired++ }, EventGotUnsavedChanges)

	f.m.AddColor(NewRGBColor("red", 1, 0, 0), 1)
	f.addPoint(3, 3)
	assert.Equal(t, 1, fired)
	assert.True(t, f.m.HasUnsavedChanges())
	assert.True(t, f.m.AreColorsDirty())
	assert.True(t, f.m.AreObjectsDirty())
	assert.False(t, f.m.AreSymbolsDirty())
	assert.False(t, f.m.AreTemplatesDirty())

	f.m.SetHasUnsavedChanges(false)
	assert.False(t, f.m.HasUnsavedChanges())
	assert.False(t, f.m.AreColorsDirty())
	assert.False(t, f.m.AreObjectsDirty())

	f.m.SetSymbolsDirty()
	assert.Equal(t, 2, fired)
}

func TestColorPrioritiesFollowPositions(t *testing.T) {
	f := newFixture()
	red := NewRGBColor("red", 1, 0, 0)
	f.m.AddColor(red, 0)
	assert.Equal(t, 0, red.Priority)
	assert.Equal(t, 1, f.black.Priority)

	f.m.MoveColor(0, 1)
	assert.Equal(t, 1, red.Priority)
	assert.Equal(t, 0, f.black.Priority)
	assert.Equal(t, 1, f.m.FindColorIndex(red))
	assert.Equal(t, -1, f.m.FindColorIndex(NewRGBColor("other", 0, 0, 0)))
}

func TestDeleteColorNotifiesSymbolsFirst(t *testing.T) {
	f := newFixture()
	obj := f.addLine(mc(0, 0), mc(10, 0))
	require.NotEmpty(t, obj.Renderables())

	replacement := NewRGBColor("grey", 0.5, 0.5, 0.5)
	f.m.SetColor(replacement, 0)
	f.line.Color = replacement
	f.point.InnerColor = replacement
	f.area.Color = replacement
	f.text.Color = replacement
	before := f.m.NumColors()

	var sawCleared bool
	f.m.Subscribe(func(e Event) {
		sawCleared = e.Color == replacement && f.line.Color == nil && f.point.InnerColor == nil
	}, EventColorDeleted)

	f.m.DeleteColor(0)
	assert.True(t, sawCleared, "symbols drop the color before observers hear of the deletion")
	assert.Equal(t, before-1, f.m.NumColors())
	assert.False(t, f.m.IsColorUsedByASymbol(replacement))
	assert.Empty(t, obj.Renderables(), "objects of affected symbols are regenerated")
}

func TestSharedColorSet(t *testing.T) {
	a := NewMap()
	b := NewMap()
	b.UseColorsFrom(a)
	assert.Equal(t, 2, a.ColorSet().RefCount())

	a.AddColor(NewRGBColor("green", 0, 1, 0), 0)
	assert.Equal(t, 1, b.NumColors())
	assert.Same(t, a.Color(0), b.Color(0))

	b.Clear()
	assert.Equal(t, 1, a.ColorSet().RefCount())
	assert.Equal(t, 1, a.NumColors())
}

func TestFindSymbolIndex(t *testing.T) {
	f := newFixture()
	assert.Equal(t, 1, f.m.FindSymbolIndex(f.line))
	assert.Equal(t, -2, f.m.FindSymbolIndex(Builtins().UndefinedPoint))
	assert.Equal(t, -3, f.m.FindSymbolIndex(Builtins().UndefinedLine))
	assert.Panics(t, func() { f.m.FindSymbolIndex(NewLineSymbol("stranger")) })
}

func TestDeleteSymbolRemovesObjectsAndClearsUndo(t *testing.T) {
	f := newFixture()
	combined := NewCombinedSymbol("combined", f.line, f.area)
	f.m.AddSymbol(combined, f.m.NumSymbols())
	keep := f.addPoint(5, 5)
	doomed := f.addLine(mc(0, 0), mc(10, 0))
	f.m.AddObjectToSelection(doomed, false)
	f.m.AddObjectToSelection(keep, false)
	f.m.UndoManager().AddNewStep(NewReplaceObjectsStep(f.m, 0))

	var deleted []Symbol
	f.m.Subscribe(func(e Event) { deleted = append(deleted, e.Symbol) }, EventSymbolDeleted)

	f.m.DeleteSymbol(f.m.FindSymbolIndex(f.line))
	assert.Equal(t, []Symbol{f.line}, deleted)
	assert.Equal(t, 1, f.m.NumObjects())
	assert.Same(t, keep, f.m.Layer(0).Object(0))
	assert.Equal(t, []Object{keep}, f.m.SelectedObjects())
	assert.False(t, f.m.UndoManager().CanUndo())
	assert.Nil(t, combined.Parts[0], "combined symbols drop the deleted part")
	assert.Same(t, f.area, combined.Parts[1])
}

func TestSetSymbolMovesCompatibleObjects(t *testing.T) {
	f := newFixture()
	line := f.addLine(mc(0, 0), mc(10, 0))
	replacement := NewAreaSymbol("replacement")
	pos := f.m.FindSymbolIndex(f.line)

	f.m.SetSymbol(replacement, pos)
	assert.Same(t, replacement, line.Symbol())
	assert.Equal(t, pos, f.m.FindSymbolIndex(replacement))

	f.addPoint(1, 1)
	f.m.SetSymbol(NewLineSymbol("no points"), f.m.FindSymbolIndex(f.point))
	assert.Equal(t, 1, f.m.NumObjects(), "incompatible objects are dropped")
}

func TestMoveAndSortSymbols(t *testing.T) {
	f := newFixture()
	f.m.MoveSymbol(0, 4)
	assert.Equal(t, []Symbol{f.line, f.area, f.text, f.point}, f.m.Symbols())
	f.m.MoveSymbol(3, 0)
	assert.Equal(t, []Symbol{f.point, f.line, f.area, f.text}, f.m.Symbols())

	f.m.SortSymbols(func(a, b Symbol) bool { return a.Base().Name < b.Base().Name })
	assert.Equal(t, []Symbol{f.area, f.line, f.point, f.text}, f.m.Symbols())
}

func TestTemplatesFrontAndBack(t *testing.T) {
	f := newFixture()
	w := newRecordingWidget()
	f.m.AddWidget(w)

	back := NewTemplate("back.png", geom.Rect{X: 0, Y: 0, Width: 100, Height: 100})
	front := NewTemplate("front.png", geom.Rect{X: 0, Y: 0, Width: 50, Height: 50})
	f.m.AddTemplate(back, 0)
	f.m.AddTemplate(front, 1)
	f.m.SetFirstFrontTemplate(1)
	assert.False(t, f.m.IsFrontTemplate(back))
	assert.True(t, f.m.IsFrontTemplate(front))

	w.view.visible[back] = true
	w.view.visible[front] = true
	back.SetTemplateAreaDirty()
	front.SetTemplateAreaDirty()
	assert.Equal(t, []bool{false, true}, w.frontFlags)

	f.m.DeleteTemplate(0)
	assert.Equal(t, 0, f.m.FirstFrontTemplate())
	assert.Equal(t, []*Template{back}, w.view.deleted)
	assert.True(t, f.m.IsFrontTemplate(front))
	assert.Nil(t, back.Map())
	assert.Panics(t, func() { f.m.FindTemplateIndex(back) })
}

func TestCalculateExtentIncludesRotatedTemplates(t *testing.T) {
	f := newFixture()
	f.addPoint(0, 0)
	objects := f.m.CalculateExtent(false, false, nil)
	require.True(t, objects.IsValid())

	tmpl := NewTemplate("t.png", geom.Rect{X: 0, Y: 0, Width: 10, Height: 10})
	tmpl.X = 100000
	tmpl.Rotation = 0.5
	f.m.AddTemplate(tmpl, 0)

	all := f.m.CalculateExtent(false, true, nil)
	mapped := tmpl.CalculateMapExtent()
	assert.InDelta(t, mapped.Right(), all.Right(), 1e-9)
	assert.InDelta(t, objects.Left(), all.Left(), 1e-9)

	w := newRecordingWidget()
	assert.Equal(t, objects, f.m.CalculateExtent(false, true, w.View()), "invisible templates are skipped")
}

func TestHelperSymbolsExcludedFromExtent(t *testing.T) {
	f := newFixture()
	f.point.Helper = true
	f.addPoint(0, 0)
	assert.False(t, f.m.CalculateExtent(false, false, nil).IsValid())
	assert.True(t, f.m.CalculateExtent(true, false, nil).IsValid())
}

func TestUndoManagerBelongsToMap(t *testing.T) {
	m := NewMap()
	m.UndoManager().AddNewStep(undo.NewCombinedStep())
	assert.True(t, m.UndoManager().CanUndo())
	m.Clear()
	assert.False(t, m.UndoManager().CanUndo())
	assert.True(t, m.UndoManager().InSavedState())
}

func TestSampleMap(t *testing.T) {
	m := NewSampleMap()
	assert.Equal(t, 5, m.NumColors())
	assert.Equal(t, 6, m.NumSymbols())
	assert.Equal(t, 6, m.NumObjects())
	assert.False(t, m.HasUnsavedChanges())
	assert.Equal(t, 6, m.Renderables().NumObjects())
}

func TestFindObjectByID(t *testing.T) {
	m := NewSampleMap()
	second := m.AddLayer("course", 1)
	p := NewPointObject(m.Symbol(4), geom.NewMapCoord(1, 1))
	second.AddObject(p, 0)

	assert.Same(t, p, m.FindObjectByID(p.ID()))
	assert.Same(t, m.Layer(0).Object(2), m.FindObjectByID(m.Layer(0).Object(2).ID()))
	assert.Nil(t, m.FindObjectByID("object_unknown"))
}

func TestImageTemplateScale(t *testing.T) {
	m := NewMap()
	assert.InDelta(t, 25.4/96, m.ImageTemplateScale(), 1e-9)

	m.SetImageTemplateDefaults(ImageTemplateDefaults{UseMetersPerPixel: true, MetersPerPixel: 0.5})
	assert.InDelta(t, 0.5*1000/15000, m.ImageTemplateScale(), 1e-9)

	m.SetImageTemplateDefaults(ImageTemplateDefaults{DPI: 300, Scale: 10000})
	assert.InDelta(t, 25.4/300*10000/15000, m.ImageTemplateScale(), 1e-9)
}

func TestUnsubscribeDuringEmit(t *testing.T) {
	f := newFixture()
	var calls []string
	var first, third Subscription
	first = f.m.Subscribe(func(Event) {
		calls = append(calls, "first")
		f.m.Unsubscribe(first)
		f.m.Unsubscribe(third)
	}, EventColorAdded)
	f.m.Subscribe(func(Event) { calls = append(calls, "second") }, EventColorAdded)
	third = f.m.Subscribe(func(Event) { calls = append(calls, "third") }, EventColorAdded)
	f.m.Subscribe(func(Event) { calls = append(calls, "fourth") }, EventColorAdded)

	f.m.AddColor(NewRGBColor("red", 1, 0, 0), 1)
	assert.Equal(t, []string{"first", "second", "fourth"}, calls)

	calls = nil
	f.m.AddColor(NewRGBColor("blue", 0, 0, 1), 2)
	assert.Equal(t, []string{"second", "fourth"}, calls)
}
