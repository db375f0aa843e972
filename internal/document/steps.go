package document

import (
	"cmp"
	"slices"

	"github.com/orimap/orimap/internal/undo"
)

// MapStep is an undo step editing the objects of one layer. Objects are
// addressed by index, which is only valid for the layer state the step was
// recorded against.
type MapStep interface {
	undo.Step
	// Layer is the index of the edited layer.
	Layer() int
	// AffectedOutcome lists the objects that exist in the layer once the
	// step has been undone, so they can be selected afterwards.
	AffectedOutcome() []Object
}

// IndexedObject pairs an object with its index in a layer.
type IndexedObject struct {
	Index  int
	Object Object
}

type objectStep struct {
	m     *Map
	layer int
}

func (s objectStep) Layer() int { return s.layer }

func (s objectStep) objects() *Layer { return s.m.Layer(s.layer) }

// ReplaceObjectsStep restores object snapshots on undo. The returned step
// holds the objects that were replaced.
type ReplaceObjectsStep struct {
	objectStep
	entries []IndexedObject
}

func NewReplaceObjectsStep(m *Map, layer int) *ReplaceObjectsStep {
	return &ReplaceObjectsStep{objectStep: objectStep{m: m, layer: layer}}
}

// AddObject records the snapshot to restore at index.
func (s *ReplaceObjectsStep) AddObject(index int, snapshot Object) {
	s.entries = append(s.entries, IndexedObject{Index: index, Object: snapshot})
}

func (s *ReplaceObjectsStep) Entries() []IndexedObject { return s.entries }

func (s *ReplaceObjectsStep) AffectedOutcome() []Object {
	out := make([]Object, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Object
	}
	return out
}

func (s *ReplaceObjectsStep) Undo() undo.Step {
	layer := s.objects()
	inverse := NewReplaceObjectsStep(s.m, s.layer)
	for _, e := range s.entries {
		current := layer.Object(e.Index)
		inverse.AddObject(e.Index, current)
		layer.SetObject(e.Object, e.Index, false)
	}
	return inverse
}

// AddObjectsStep inserts objects on undo; it reverts a deletion. The
// returned step deletes them again.
type AddObjectsStep struct {
	objectStep
	entries []IndexedObject
}

func NewAddObjectsStep(m *Map, layer int) *AddObjectsStep {
	return &AddObjectsStep{objectStep: objectStep{m: m, layer: layer}}
}

// AddObject records obj to be inserted at index. Indices are final
// positions after all insertions.
func (s *AddObjectsStep) AddObject(index int, obj Object) {
	s.entries = append(s.entries, IndexedObject{Index: index, Object: obj})
}

func (s *AddObjectsStep) Entries() []IndexedObject { return s.entries }

func (s *AddObjectsStep) AffectedOutcome() []Object {
	out := make([]Object, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Object
	}
	return out
}

func (s *AddObjectsStep) Undo() undo.Step {
	layer := s.objects()
	sorted := slices.Clone(s.entries)
	slices.SortFunc(sorted, func(a, b IndexedObject) int { return cmp.Compare(a.Index, b.Index) })

	inverse := NewDeleteObjectsStep(s.m, s.layer)
	for _, e := range sorted {
		layer.AddObject(e.Object, e.Index)
		inverse.AddObject(e.Index)
	}
	return inverse
}

// DeleteObjectsStep removes objects on undo; it reverts an insertion. The
// returned step adds them back.
type DeleteObjectsStep struct {
	objectStep
	indices []int
}

func NewDeleteObjectsStep(m *Map, layer int) *DeleteObjectsStep {
	return &DeleteObjectsStep{objectStep: objectStep{m: m, layer: layer}}
}

func (s *DeleteObjectsStep) AddObject(index int) {
	s.indices = append(s.indices, index)
}

func (s *DeleteObjectsStep) Indices() []int { return s.indices }

// AffectedOutcome is empty: the objects are gone after undo.
func (s *DeleteObjectsStep) AffectedOutcome() []Object { return nil }

func (s *DeleteObjectsStep) Undo() undo.Step {
	layer := s.objects()
	sorted := slices.Clone(s.indices)
	slices.Sort(sorted)

	inverse := NewAddObjectsStep(s.m, s.layer)
	for i := len(sorted) - 1; i >= 0; i-- {
		idx := sorted[i]
		obj := layer.Object(idx)
		layer.DeleteObjectAt(idx, true)
		inverse.AddObject(idx, obj)
	}
	return inverse
}

// SwitchSymbolStep restores the previous symbols of objects.
type SwitchSymbolStep struct {
	objectStep
	indices []int
	symbols []Symbol
}

func NewSwitchSymbolStep(m *Map, layer int) *SwitchSymbolStep {
	return &SwitchSymbolStep{objectStep: objectStep{m: m, layer: layer}}
}

// AddObject records that the object at index used sym before the edit.
func (s *SwitchSymbolStep) AddObject(index int, sym Symbol) {
	s.indices = append(s.indices, index)
	s.symbols = append(s.symbols, sym)
}

func (s *SwitchSymbolStep) AffectedOutcome() []Object {
	layer := s.objects()
	out := make([]Object, len(s.indices))
	for i, idx := range s.indices {
		out[i] = layer.Object(idx)
	}
	return out
}

func (s *SwitchSymbolStep) Undo() undo.Step {
	layer := s.objects()
	inverse := NewSwitchSymbolStep(s.m, s.layer)
	for i, idx := range s.indices {
		obj := layer.Object(idx)
		inverse.AddObject(idx, obj.Symbol())
		obj.SetSymbol(s.symbols[i], true)
		obj.Update(true, true)
	}
	s.m.SetObjectsDirty()
	return inverse
}

// SwitchDashesStep reverses paths; it is its own inverse.
type SwitchDashesStep struct {
	objectStep
	indices []int
}

func NewSwitchDashesStep(m *Map, layer int) *SwitchDashesStep {
	return &SwitchDashesStep{objectStep: objectStep{m: m, layer: layer}}
}

func (s *SwitchDashesStep) AddObject(index int) {
	s.indices = append(s.indices, index)
}

func (s *SwitchDashesStep) AffectedOutcome() []Object {
	layer := s.objects()
	out := make([]Object, len(s.indices))
	for i, idx := range s.indices {
		out[i] = layer.Object(idx)
	}
	return out
}

func (s *SwitchDashesStep) Undo() undo.Step {
	layer := s.objects()
	inverse := NewSwitchDashesStep(s.m, s.layer)
	for _, idx := range s.indices {
		if path, ok := layer.Object(idx).(*PathObject); ok {
			path.Reverse()
			path.Update(true, true)
		}
		inverse.AddObject(idx)
	}
	s.m.SetObjectsDirty()
	return inverse
}

// AffectedLayerAndOutcome resolves the layer and the objects to select
// after undoing step. Every sub-step of a combined step must edit the same
// layer. Returns -1 for a step that is not a map step.
func AffectedLayerAndOutcome(step undo.Step) (int, []Object) {
	switch s := step.(type) {
	case MapStep:
		return s.Layer(), s.AffectedOutcome()
	case *undo.CombinedStep:
		layer := -1
		var out []Object
		seen := make(map[Object]bool)
		for _, sub := range s.SubSteps() {
			subLayer, objs := AffectedLayerAndOutcome(sub)
			if layer == -1 {
				layer = subLayer
			} else if subLayer != layer {
				panic("document: combined undo step spans several layers")
			}
			for _, obj := range objs {
				if !seen[obj] {
					seen[obj] = true
					out = append(out, obj)
				}
			}
		}
		return layer, out
	}
	return -1, nil
}
