// Package editor implements the editing commands of the map editor. Every
// command works on the selection in the current layer and records one undo
// step, so the command and its undo leave the map in a consistent state.
package editor

import (
	"log/slog"
	"slices"

	"github.com/orimap/orimap/internal/document"
	"github.com/orimap/orimap/internal/geom"
	"github.com/orimap/orimap/internal/undo"
)

// Controller edits one map.
type Controller struct {
	m      *document.Map
	logger *slog.Logger

	// editing holds the snapshots taken by StartEditing, nil when no
	// edit is in progress.
	editing      []document.IndexedObject
	editingLayer int
}

func New(m *document.Map) *Controller {
	return &Controller{m: m, logger: slog.Default()}
}

func (c *Controller) SetLogger(l *slog.Logger) { c.logger = l }

func (c *Controller) Map() *document.Map { return c.m }

func (c *Controller) CanUndo() bool { return c.m.UndoManager().CanUndo() }
func (c *Controller) CanRedo() bool { return c.m.UndoManager().CanRedo() }

// Undo reverts the last edit and selects the objects it brought back. It
// returns the extent of those objects, which the caller should scroll into
// view, and false if there was nothing to undo.
func (c *Controller) Undo() (geom.Rect, bool) { return c.doUndo(false) }

// Redo re-applies the last undone edit, see Undo.
func (c *Controller) Redo() (geom.Rect, bool) { return c.doUndo(true) }

func (c *Controller) doUndo(redo bool) (geom.Rect, bool) {
	um := c.m.UndoManager()
	var step undo.Step
	if redo {
		step = um.LastRedoStep()
	} else {
		step = um.LastUndoStep()
	}
	if step == nil {
		return geom.Rect{}, false
	}

	// The outcome names the objects the step will restore, so it has to be
	// taken before the step runs.
	layer, affected := document.AffectedLayerAndOutcome(step)

	var inSavedState, done bool
	if redo {
		inSavedState, done = um.Redo()
	} else {
		inSavedState, done = um.Undo()
	}
	if !done {
		return geom.Rect{}, false
	}
	c.logger.Debug("undo", "redo", redo, "layer", layer, "objects", len(affected), "saved", inSavedState)

	switch {
	case c.m.HasUnsavedChanges() && inSavedState:
		c.m.SetHasUnsavedChanges(false)
	case !c.m.HasUnsavedChanges() && !inSavedState:
		c.m.SetObjectsDirty()
	}

	if layer >= 0 {
		c.m.SetCurrentLayerIndex(layer)
		objects := c.m.Layer(layer).Objects()
		affected = slices.DeleteFunc(affected, func(obj document.Object) bool {
			return !slices.Contains(objects, obj)
		})
	} else {
		affected = nil
	}
	return c.selectObjects(affected), true
}

// selectObjects replaces the selection with objs and returns their extent.
func (c *Controller) selectObjects(objs []document.Object) geom.Rect {
	c.m.ClearObjectSelection(len(objs) == 0)
	rect := geom.Rect{}
	for i, obj := range objs {
		rect = rect.Union(obj.Extent())
		c.m.AddObjectToSelection(obj, i == len(objs)-1)
	}
	return rect
}

// currentIndex returns the index of obj in the current layer, which must
// hold it.
func (c *Controller) currentIndex(obj document.Object) int {
	return c.m.CurrentLayer().FindObjectIndex(obj)
}

// IsEditing reports whether StartEditing snapshots are pending.
func (c *Controller) IsEditing() bool { return c.editing != nil }

// StartEditing snapshots the selected objects before they are changed in
// place. FinishEditing turns the snapshots into an undo step.
func (c *Controller) StartEditing() {
	if c.editing != nil {
		panic("editor: editing already in progress")
	}
	c.editingLayer = c.m.CurrentLayerIndex()
	c.editing = make([]document.IndexedObject, 0, c.m.NumSelectedObjects())
	for _, obj := range c.m.SelectedObjects() {
		c.editing = append(c.editing, document.IndexedObject{
			Index:  c.currentIndex(obj),
			Object: obj.Duplicate(),
		})
	}
}

// FinishEditing ends the edit started by StartEditing. If changed, the
// edited objects are regenerated and the snapshots become a replace step;
// otherwise the snapshots are dropped.
func (c *Controller) FinishEditing(changed bool) {
	if c.editing == nil {
		panic("editor: no editing in progress")
	}
	snapshots := c.editing
	c.editing = nil
	if !changed || len(snapshots) == 0 {
		return
	}

	layer := c.m.Layer(c.editingLayer)
	step := document.NewReplaceObjectsStep(c.m, c.editingLayer)
	for _, s := range snapshots {
		layer.Object(s.Index).Update(true, true)
		step.AddObject(s.Index, s.Object)
	}
	c.m.UndoManager().AddNewStep(step)
	c.m.SetObjectsDirty()
	c.m.EmitSelectionEdited()
}

// AbortEditing restores the snapshots taken by StartEditing without
// recording an undo step.
func (c *Controller) AbortEditing() {
	if c.editing == nil {
		panic("editor: no editing in progress")
	}
	snapshots := c.editing
	c.editing = nil
	layer := c.m.Layer(c.editingLayer)
	for _, s := range snapshots {
		layer.SetObject(s.Object, s.Index, true)
	}
	c.m.EmitSelectionEdited()
}
