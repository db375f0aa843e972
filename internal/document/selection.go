package document

import (
	"slices"

	"github.com/orimap/orimap/internal/geom"
)

func (m *Map) NumSelectedObjects() int { return len(m.selected) }

// SelectedObjects returns the selection in the order it was built.
func (m *Map) SelectedObjects() []Object {
	return slices.Clone(m.selected)
}

// FirstSelectedObject is nil exactly when the selection is empty.
func (m *Map) FirstSelectedObject() Object { return m.firstSelected }

func (m *Map) IsObjectSelected(obj Object) bool {
	_, ok := m.selectedSet[obj]
	return ok
}

// SelectionRenderables holds the renderables of the selected objects.
func (m *Map) SelectionRenderables() *RenderableContainer { return m.selectionRenderables }

// AddObjectToSelection selects obj, which must not be selected yet. Callers
// selecting several objects pass emit only on the last call.
func (m *Map) AddObjectToSelection(obj Object, emit bool) {
	if m.IsObjectSelected(obj) {
		panic("document: object is already selected")
	}
	m.selectedSet[obj] = struct{}{}
	m.selected = append(m.selected, obj)
	m.addSelectionRenderables(obj)
	if m.firstSelected == nil {
		m.firstSelected = obj
	}
	if emit {
		m.EmitSelectionChanged()
	}
}

// RemoveObjectFromSelection deselects obj, which must be selected.
func (m *Map) RemoveObjectFromSelection(obj Object, emit bool) {
	if !m.IsObjectSelected(obj) {
		panic("document: object is not selected")
	}
	m.dropFromSelection(obj)
	if emit {
		m.EmitSelectionChanged()
	}
}

func (m *Map) dropFromSelection(obj Object) {
	delete(m.selectedSet, obj)
	if i := slices.Index(m.selected, obj); i >= 0 {
		m.selected = slices.Delete(m.selected, i, i+1)
	}
	m.removeSelectionRenderables(obj)
	if m.firstSelected == obj {
		m.firstSelected = nil
		if len(m.selected) > 0 {
			m.firstSelected = m.selected[0]
		}
	}
}

// RemoveSymbolFromSelection deselects every object with the symbol and
// reports whether there was any.
func (m *Map) RemoveSymbolFromSelection(sym Symbol, emit bool) bool {
	removed := false
	for _, obj := range slices.Clone(m.selected) {
		if obj.Symbol() != sym {
			continue
		}
		m.dropFromSelection(obj)
		removed = true
	}
	if emit && removed {
		m.EmitSelectionChanged()
	}
	return removed
}

// ToggleObjectSelection returns whether obj is selected afterwards.
func (m *Map) ToggleObjectSelection(obj Object, emit bool) bool {
	if m.IsObjectSelected(obj) {
		m.RemoveObjectFromSelection(obj, emit)
		return false
	}
	m.AddObjectToSelection(obj, emit)
	return true
}

func (m *Map) ClearObjectSelection(emit bool) {
	m.selectionRenderables.Clear()
	clear(m.selectedSet)
	m.selected = nil
	m.firstSelected = nil
	if emit {
		m.EmitSelectionChanged()
	}
}

// replaceInSelection puts replacement in the selection slot of old, keeping
// the order. Nothing happens if old is not selected.
func (m *Map) replaceInSelection(old, replacement Object) {
	if old == replacement || !m.IsObjectSelected(old) {
		return
	}
	delete(m.selectedSet, old)
	m.removeSelectionRenderables(old)
	m.selectedSet[replacement] = struct{}{}
	m.selected[slices.Index(m.selected, old)] = replacement
	if m.firstSelected == old {
		m.firstSelected = replacement
	}
}

// GetSelectionToSymbolCompatibility reports whether sym could be applied to
// every selected object, and whether any selected object uses a different
// symbol. An empty selection or a nil symbol is never compatible.
func (m *Map) GetSelectionToSymbolCompatibility(sym Symbol) (compatible, different bool) {
	compatible = sym != nil && len(m.selected) > 0
	if sym == nil {
		return compatible, false
	}
	for _, obj := range m.selected {
		if !IsTypeCompatible(sym, obj) {
			return false, true
		}
		if obj.Symbol() != sym {
			different = true
		}
	}
	return compatible, different
}

// IncludeSelectionRect returns rect grown by the extents of all selected
// objects.
func (m *Map) IncludeSelectionRect(rect geom.Rect) geom.Rect {
	for _, obj := range m.selected {
		rect = rect.Union(obj.Extent())
	}
	return rect
}

func (m *Map) addSelectionRenderables(obj Object) {
	obj.Update(false, true)
	m.selectionRenderables.InsertRenderablesOfObject(obj)
}

func (m *Map) removeSelectionRenderables(obj Object) {
	m.selectionRenderables.RemoveRenderablesOfObject(obj, false)
}

// UpdateSelectionRenderables refreshes the highlight of a selected object
// after it changed.
func (m *Map) UpdateSelectionRenderables(obj Object) {
	m.removeSelectionRenderables(obj)
	m.addSelectionRenderables(obj)
}
