package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orimap/orimap/internal/geom"
)

func TestDeleteAllObjectsWithSymbolRenumbers(t *testing.T) {
	for _, doomed := range [][]int{
		{0, 3, 4, 9},
		{0, 1, 2},
		{7, 8, 9},
		{},
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	} {
		f := newFixture()
		layer := f.m.CurrentLayer()
		isDoomed := make(map[int]bool)
		for _, i := range doomed {
			isDoomed[i] = true
		}
		var kept []Object
		for i := range 10 {
			if isDoomed[i] {
				f.addLine(mc(float64(i), 0), mc(float64(i), 5))
			} else {
				kept = append(kept, f.addPoint(float64(i), 0))
			}
		}

		deleted := layer.DeleteAllObjectsWithSymbol(f.line)
		assert.Equal(t, len(doomed) > 0, deleted)
		require.Equal(t, 10-len(doomed), layer.NumObjects())
		assert.Equal(t, kept, layer.Objects())
		for i, obj := range kept {
			assert.Equal(t, i, layer.FindObjectIndex(obj))
		}
		assert.False(t, layer.DoObjectsExistWithSymbol(f.line))
	}
}

func TestLayerSetObjectKeepsSelectionSlot(t *testing.T) {
	f := newFixture()
	a := f.addPoint(0, 0)
	b := f.addPoint(5, 5)
	f.m.AddObjectToSelection(a, false)
	f.m.AddObjectToSelection(b, false)

	replacement := NewPointObject(f.point, mc(1, 1))
	f.m.CurrentLayer().SetObject(replacement, 0, true)

	assert.Equal(t, []Object{replacement, b}, f.m.SelectedObjects())
	assert.Same(t, replacement, f.m.FirstSelectedObject())
	assert.Nil(t, a.Map())
	assert.True(t, f.m.Renderables().Contains(replacement))
	assert.False(t, f.m.Renderables().Contains(a))
	assert.True(t, f.m.SelectionRenderables().Contains(replacement))
}

func TestFindObjectsAt(t *testing.T) {
	f := newFixture()
	point := f.addPoint(10, 10)
	line := f.addLine(mc(0, 20), mc(20, 20))
	area := NewPathObject(f.area, mc(30, 0), mc(40, 0), mc(40, 10), mc(30, 10).WithFlag(geom.FlagClosePoint, true))
	f.m.AddObject(area, -1)

	hits := f.m.FindObjectsAt(geom.MapCoordF{X: 10.3, Y: 10}, 0.1, false, false, false)
	require.Len(t, hits, 1)
	assert.Equal(t, SelectionInfo{Type: SymbolPoint, Object: point}, hits[0])

	hits = f.m.FindObjectsAt(geom.MapCoordF{X: 5, Y: 20.2}, 0.15, false, false, false)
	require.Len(t, hits, 1)
	assert.Same(t, line, hits[0].Object)

	hits = f.m.FindObjectsAt(geom.MapCoordF{X: 35, Y: 5}, 0, false, false, false)
	require.Len(t, hits, 1)
	assert.Equal(t, SymbolArea, hits[0].Type)

	f.area.Protected = true
	assert.Empty(t, f.m.FindObjectsAt(geom.MapCoordF{X: 35, Y: 5}, 0, false, false, false))
	assert.Len(t, f.m.FindObjectsAt(geom.MapCoordF{X: 35, Y: 5}, 0, false, false, true), 1)

	f.line.Hidden = true
	assert.Empty(t, f.m.FindObjectsAt(geom.MapCoordF{X: 5, Y: 20}, 1, false, false, false))
	assert.Len(t, f.m.FindObjectsAt(geom.MapCoordF{X: 5, Y: 20}, 1, false, true, false), 1)
}

func TestFindObjectsAtBox(t *testing.T) {
	f := newFixture()
	f.addPoint(10, 10)
	line := f.addLine(mc(0, 20), mc(20, 20))

	found := f.m.FindObjectsAtBox(geom.MapCoordF{X: 5, Y: 15}, geom.MapCoordF{X: 8, Y: 25}, false, false)
	assert.Equal(t, []Object{line}, found)

	found = f.m.FindObjectsAtBox(geom.MapCoordF{X: -1, Y: -1}, geom.MapCoordF{X: 30, Y: 30}, false, false)
	assert.Len(t, found, 2)

	assert.Empty(t, f.m.FindObjectsAtBox(geom.MapCoordF{X: 50, Y: 50}, geom.MapCoordF{X: 60, Y: 60}, false, false))
}

func TestChangeSymbolForAllObjectsDropsIncompatible(t *testing.T) {
	f := newFixture()
	layer := f.m.CurrentLayer()
	f.addPoint(0, 0)
	line := f.addLine(mc(0, 0), mc(1, 1))
	f.addPoint(2, 2)

	layer.ChangeSymbolForAllObjects(f.point, f.line)
	assert.Equal(t, []Object{line}, layer.Objects())

	layer.ChangeSymbolForAllObjects(f.line, f.area)
	assert.Same(t, f.area, line.Symbol())
	assert.False(t, line.IsDirty())
}

func TestScaleAllObjects(t *testing.T) {
	f := newFixture()
	p := f.addPoint(10, 20)
	f.m.ScaleAllObjects(0.5)
	assert.Equal(t, mc(5, 10), p.Position())
	assert.False(t, p.IsDirty())
}

func TestLayerIndexChecks(t *testing.T) {
	f := newFixture()
	layer := f.m.CurrentLayer()
	assert.Panics(t, func() { layer.Object(0) })
	assert.Panics(t, func() { layer.AddObject(NewPointObject(f.point, mc(0, 0)), 1) })
	assert.Panics(t, func() { layer.FindObjectIndex(NewPointObject(f.point, mc(0, 0))) })
	assert.False(t, layer.DeleteObject(NewPointObject(f.point, mc(0, 0)), false))
	assert.Panics(t, func() { f.m.DeleteObject(NewPointObject(f.point, mc(0, 0)), false) })
}
