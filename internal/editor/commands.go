package editor

import (
	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/undo"
)

// ConnectDistance is the largest gap, in mm, that ConnectPaths closes.
const ConnectDistance = 0.35

// DuplicateSelection adds a copy of every selected object and selects the
// copies instead. Returns the number of copies.
func (c *Controller) DuplicateSelection() int {
	selected := c.m.SelectedObjects()
	if len(selected) == 0 {
		return 0
	}
	copies := make([]document.Object, len(selected))
	for i, obj := range selected {
		copies[i] = document.Reidentify(obj.Duplicate())
	}
	c.addAndSelect(copies)
	c.logger.Debug("duplicated objects", "count", len(copies))
	return len(copies)
}

// addAndSelect appends objs to the current layer, records their removal as
// the undo step and makes them the selection.
func (c *Controller) addAndSelect(objs []document.Object) {
	layer := c.m.CurrentLayerIndex()
	step := document.NewDeleteObjectsStep(c.m, layer)
	c.m.ClearObjectSelection(false)
	for i, obj := range objs {
		step.AddObject(c.m.AddObject(obj, layer))
		c.m.AddObjectToSelection(obj, i == len(objs)-1)
	}
	c.m.UndoManager().AddNewStep(step)
}

// SwitchSymbol assigns sym to every selected object. Nothing happens, and
// false is returned, unless sym fits all of them and differs from the
// symbol of at least one.
func (c *Controller) SwitchSymbol(sym document.Symbol) bool {
	compatible, different := c.m.GetSelectionToSymbolCompatibility(sym)
	if !compatible || !different {
		return false
	}
	step := document.NewSwitchSymbolStep(c.m, c.m.CurrentLayerIndex())
	for _, obj := range c.m.SelectedObjects() {
		step.AddObject(c.currentIndex(obj), obj.Symbol())
		obj.SetSymbol(sym, true)
		obj.Update(true, true)
	}
	c.m.SetObjectsDirty()
	c.m.UndoManager().AddNewStep(step)
	c.m.EmitSelectionEdited()
	return true
}

// FillOrCreateBorder adds a copy of every selected object drawn with sym,
// typically an area symbol to fill lines or a line symbol to outline
// areas. The copies become the selection. Same preconditions as
// SwitchSymbol.
func (c *Controller) FillOrCreateBorder(sym document.Symbol) bool {
	compatible, different := c.m.GetSelectionToSymbolCompatibility(sym)
	if !compatible || !different {
		return false
	}
	selected := c.m.SelectedObjects()
	copies := make([]document.Object, len(selected))
	for i, obj := range selected {
		dup := document.Reidentify(obj.Duplicate())
		dup.SetSymbol(sym, true)
		copies[i] = dup
	}
	c.addAndSelect(copies)
	return true
}

// SwitchDashes reverses the direction of the selected paths drawn with a
// line, which flips the side of asymmetric line decorations.
func (c *Controller) SwitchDashes() int {
	step := document.NewSwitchDashesStep(c.m, c.m.CurrentLayerIndex())
	n := 0
	for _, obj := range c.m.SelectedObjects() {
		path, ok := obj.(*document.PathObject)
		if !ok || obj.Symbol() == nil || obj.Symbol().ContainedTypes()&document.SymbolLine == 0 {
			continue
		}
		path.Reverse()
		path.Update(true, true)
		step.AddObject(c.currentIndex(obj))
		n++
	}
	if n == 0 {
		return 0
	}
	c.m.SetObjectsDirty()
	c.m.UndoManager().AddNewStep(step)
	c.m.EmitSelectionEdited()
	return n
}

// ConnectPaths closes selected paths whose ends nearly meet and joins
// selected paths of the same symbol whose ends are within ConnectDistance.
// Joined paths are removed from the map. Returns whether anything changed.
func (c *Controller) ConnectPaths() bool {
	const maxDistSq = ConnectDistance * ConnectDistance

	var paths []*document.PathObject
	for _, obj := range c.m.SelectedObjects() {
		path, ok := obj.(*document.PathObject)
		if ok && obj.Symbol() != nil && obj.Symbol().ContainedTypes()&document.SymbolLine != 0 {
			paths = append(paths, path)
		}
	}

	layerIndex := c.m.CurrentLayerIndex()
	layer := c.m.CurrentLayer()
	snapshots := make(map[*document.PathObject]document.Object)
	snapshot := func(p *document.PathObject) {
		if _, ok := snapshots[p]; !ok {
			snapshots[p] = p.Duplicate()
		}
	}

	var removed []*document.PathObject
	addStep := document.NewAddObjectsStep(c.m, layerIndex)
	for i := 0; i < len(paths); i++ {
		a := paths[i]
		if closeNearlyClosedParts(a, maxDistSq, snapshot) {
			continue
		}
		for k := i + 1; k < len(paths); k++ {
			b := paths[k]
			if b.Symbol() != a.Symbol() || !a.CanBeConnected(b, maxDistSq) {
				continue
			}
			snapshot(a)
			a.ConnectIfClose(b, maxDistSq)

			// b goes away; its undo entry restores the state before this
			// command touched it.
			original, ok := snapshots[b]
			if !ok {
				original = b.Duplicate()
			}
			delete(snapshots, b)
			addStep.AddObject(layer.FindObjectIndex(b), original)
			removed = append(removed, b)
			paths = append(paths[:k], paths[k+1:]...)
			k = i
		}
	}

	for _, b := range removed {
		layer.DeleteObject(b, false)
	}

	// Indices of the replace step refer to the layer after the removals,
	// which is the state it is undone in.
	replaceStep := document.NewReplaceObjectsStep(c.m, layerIndex)
	for _, p := range paths {
		original, ok := snapshots[p]
		if !ok {
			continue
		}
		p.Update(true, true)
		replaceStep.AddObject(layer.FindObjectIndex(p), original)
	}

	if len(removed) == 0 && len(replaceStep.Entries()) == 0 {
		return false
	}
	combined := undo.NewCombinedStep()
	if len(removed) > 0 {
		combined.Add(addStep)
	}
	if len(replaceStep.Entries()) > 0 {
		combined.Add(replaceStep)
	}
	c.m.UndoManager().AddNewStep(combined)
	c.m.SetObjectsDirty()
	c.m.EmitSelectionChanged()
	c.m.EmitSelectionEdited()
	c.logger.Debug("connected paths", "removed", len(removed), "changed", len(replaceStep.Entries()))
	return true
}

// closeNearlyClosedParts closes the open parts of p whose ends are within
// reach of each other and reports whether all parts are closed now.
func closeNearlyClosedParts(p *document.PathObject, maxDistSq float64, snapshot func(*document.PathObject)) bool {
	coords := p.Coords()
	allClosed := true
	for i, part := range p.Parts() {
		if p.IsPartClosed(i) {
			continue
		}
		if part.End > part.Start && coords[part.Start].ToF().LengthSquaredTo(coords[part.End].ToF()) <= maxDistSq {
			snapshot(p)
			p.ConnectPartEnds(i)
			continue
		}
		allClosed = false
	}
	return allClosed
}

// DeleteSelection removes the selected objects. Returns how many.
func (c *Controller) DeleteSelection() int {
	selected := c.m.SelectedObjects()
	if len(selected) == 0 {
		return 0
	}
	layer := c.m.CurrentLayer()
	step := document.NewAddObjectsStep(c.m, c.m.CurrentLayerIndex())
	for _, obj := range selected {
		step.AddObject(c.currentIndex(obj), obj)
	}
	c.m.ClearObjectSelection(false)
	for _, obj := range selected {
		layer.DeleteObject(obj, true)
	}
	c.m.UndoManager().AddNewStep(step)
	c.m.EmitSelectionChanged()
	return len(selected)
}

// MoveSelection moves the selected objects by (dx, dy) in 1/1000 mm.
func (c *Controller) MoveSelection(dx, dy int64) bool {
	if c.m.NumSelectedObjects() == 0 || dx == 0 && dy == 0 {
		return false
	}
	c.StartEditing()
	for _, obj := range c.m.SelectedObjects() {
		obj.Move(dx, dy)
	}
	c.FinishEditing(true)
	return true
}
