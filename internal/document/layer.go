package document

import (
	"fmt"

	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/typeid"
)

// SelectionInfo is one hit of a point query: which symbol type of the
// object was hit.
type SelectionInfo struct {
	Type   SymbolType
	Object Object
}

// Layer is an ordered list of objects; later objects draw on top. Indices
// are renumbered on every insert and delete.
type Layer struct {
	ID      string
	name    string
	objects []Object
	m       *Map
}

func newLayer(name string, m *Map) *Layer {
	return &Layer{ID: typeid.NewLayerID(), name: name, m: m}
}

func (l *Layer) Name() string        { return l.name }
func (l *Layer) SetName(name string) { l.name = name }
func (l *Layer) NumObjects() int     { return len(l.objects) }
func (l *Layer) Map() *Map           { return l.m }

func (l *Layer) Object(i int) Object {
	l.checkIndex(i)
	return l.objects[i]
}

// Objects returns a copy of the object list.
func (l *Layer) Objects() []Object {
	return append([]Object(nil), l.objects...)
}

func (l *Layer) checkIndex(i int) {
	if i < 0 || i >= len(l.objects) {
		panic(fmt.Sprintf("document: object index %d out of range [0, %d)", i, len(l.objects)))
	}
}

// FindObjectIndex returns the index of obj, which must be in this layer.
func (l *Layer) FindObjectIndex(obj Object) int {
	if i := l.indexOf(obj); i >= 0 {
		return i
	}
	panic("document: object not found in layer")
}

func (l *Layer) indexOf(obj Object) int {
	for i := len(l.objects) - 1; i >= 0; i-- {
		if l.objects[i] == obj {
			return i
		}
	}
	return -1
}

// SetObject replaces the object at pos. The old object is detached; with
// deleteOld its caches are dropped as well. If the old object was selected
// the new one takes its place in the selection.
func (l *Layer) SetObject(obj Object, pos int, deleteOld bool) {
	l.checkIndex(pos)
	old := l.objects[pos]
	l.m.RemoveRenderablesOfObject(old, true)
	l.m.replaceInSelection(old, obj)
	if deleteOld {
		old.base().detach()
	} else {
		old.base().setMap(nil)
	}

	l.objects[pos] = obj
	removeOld := obj.Map() == l.m
	obj.base().setMap(l.m)
	obj.Update(true, removeOld)
	l.m.SetObjectsDirty()
}

// AddObject inserts obj at pos and takes ownership of it.
func (l *Layer) AddObject(obj Object, pos int) {
	if pos < 0 || pos > len(l.objects) {
		panic(fmt.Sprintf("document: insert position %d out of range [0, %d]", pos, len(l.objects)))
	}
	l.objects = append(l.objects, nil)
	copy(l.objects[pos+1:], l.objects[pos:])
	l.objects[pos] = obj

	removeOld := obj.Map() == l.m
	obj.base().setMap(l.m)
	obj.Update(true, removeOld)
	l.m.SetObjectsDirty()

	if l.m.NumObjects() == 1 {
		l.m.UpdateAllWidgets()
	}
}

// DeleteObjectAt removes the object at pos. With removeOnly the object
// keeps its state so it can be inserted again, otherwise it is discarded.
// A selected object leaves the selection.
func (l *Layer) DeleteObjectAt(pos int, removeOnly bool) {
	l.checkIndex(pos)
	obj := l.objects[pos]
	if l.m.IsObjectSelected(obj) {
		l.m.RemoveObjectFromSelection(obj, true)
	}
	l.m.RemoveRenderablesOfObject(obj, true)
	if removeOnly {
		obj.base().setMap(nil)
	} else {
		obj.base().detach()
	}
	l.objects = append(l.objects[:pos], l.objects[pos+1:]...)
	l.m.SetObjectsDirty()

	if l.m.NumObjects() == 0 {
		l.m.UpdateAllWidgets()
	}
}

// DeleteObject removes obj by identity and reports whether it was found.
func (l *Layer) DeleteObject(obj Object, removeOnly bool) bool {
	i := l.indexOf(obj)
	if i < 0 {
		return false
	}
	l.DeleteObjectAt(i, removeOnly)
	return true
}

func eligible(obj Object, includeHidden, includeProtected bool) bool {
	sym := obj.Symbol()
	if sym == nil {
		return true
	}
	if !includeHidden && sym.Base().Hidden {
		return false
	}
	return includeProtected || !sym.Base().Protected
}

// FindObjectsAt returns the objects hit at p, in layer order.
func (l *Layer) FindObjectsAt(p geom.MapCoordF, tolerance float64, extended, includeHidden, includeProtected bool) []SelectionInfo {
	var out []SelectionInfo
	for _, obj := range l.objects {
		if !eligible(obj, includeHidden, includeProtected) {
			continue
		}
		obj.Update(false, true)
		if t := obj.IsPointOnObject(p, tolerance, extended); t != NoSymbol {
			out = append(out, SelectionInfo{Type: t, Object: obj})
		}
	}
	return out
}

// FindObjectsAtBox returns the objects touching the box spanned by the two
// corners.
func (l *Layer) FindObjectsAtBox(corner1, corner2 geom.MapCoordF, includeHidden, includeProtected bool) []Object {
	box := geom.RectFromCorners(corner1, corner2)
	var out []Object
	for _, obj := range l.objects {
		if !eligible(obj, includeHidden, includeProtected) {
			continue
		}
		obj.Update(false, true)
		extent := obj.Extent()
		if !boxTouches(box, extent) {
			continue
		}
		if obj.IntersectsBox(box) {
			out = append(out, obj)
		}
	}
	return out
}

// boxTouches is the cheap rejection test; degenerate extents of straight
// lines still count.
func boxTouches(box, extent geom.Rect) bool {
	return extent.Left() <= box.Right() && box.Left() <= extent.Right() &&
		extent.Top() <= box.Bottom() && box.Top() <= extent.Bottom()
}

// CalculateExtent unions the extents of all visible objects. The result is
// invalid when there are none.
func (l *Layer) CalculateExtent(includeHelperSymbols bool) geom.Rect {
	rect := geom.Rect{}
	for _, obj := range l.objects {
		sym := obj.Symbol()
		if sym != nil && (sym.Base().Hidden || (!includeHelperSymbols && sym.Base().Helper)) {
			continue
		}
		obj.Update(false, true)
		rect = rect.Union(obj.Extent())
	}
	return rect
}

// The bulk operations below walk the objects from the last to the first
// index, so deleting the current object never shifts one that is still to
// be visited.

func (l *Layer) ScaleAllObjects(factor float64) {
	for i := len(l.objects) - 1; i >= 0; i-- {
		l.objects[i].Scale(factor)
	}
	l.ForceUpdateOfAllObjects(nil)
}

func (l *Layer) UpdateAllObjects(removeOld bool) {
	for i := len(l.objects) - 1; i >= 0; i-- {
		l.objects[i].Update(true, removeOld)
	}
}

func (l *Layer) UpdateAllObjectsWithSymbol(sym Symbol) {
	for i := len(l.objects) - 1; i >= 0; i-- {
		if l.objects[i].Symbol() == sym {
			l.objects[i].Update(true, true)
		}
	}
}

// ChangeSymbolForAllObjects reassigns objects from oldSym to newSym and
// deletes those whose geometry cannot carry newSym.
func (l *Layer) ChangeSymbolForAllObjects(oldSym, newSym Symbol) {
	for i := len(l.objects) - 1; i >= 0; i-- {
		obj := l.objects[i]
		if obj.Symbol() != oldSym {
			continue
		}
		if !obj.SetSymbol(newSym, false) {
			l.m.logger.Debug("dropping object incompatible with new symbol", "object", obj.ID(), "type", obj.Type())
			l.DeleteObjectAt(i, false)
			continue
		}
		obj.Update(true, true)
	}
}

// DeleteAllObjectsWithSymbol reports whether any object was deleted.
func (l *Layer) DeleteAllObjectsWithSymbol(sym Symbol) bool {
	deleted := false
	for i := len(l.objects) - 1; i >= 0; i-- {
		if l.objects[i].Symbol() != sym {
			continue
		}
		l.DeleteObjectAt(i, false)
		deleted = true
	}
	return deleted
}

func (l *Layer) DoObjectsExistWithSymbol(sym Symbol) bool {
	for i := len(l.objects) - 1; i >= 0; i-- {
		if l.objects[i].Symbol() == sym {
			return true
		}
	}
	return false
}

// ForceUpdateOfAllObjects updates the objects with the symbol, or all
// objects when sym is nil.
func (l *Layer) ForceUpdateOfAllObjects(sym Symbol) {
	for i := len(l.objects) - 1; i >= 0; i-- {
		if sym == nil || l.objects[i].Symbol() == sym {
			l.objects[i].Update(true, true)
		}
	}
}
