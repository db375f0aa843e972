package undo

// Manager holds the undo and redo stacks of one document and remembers
// which undo depth corresponds to the last saved state.
type Manager struct {
	undoSteps []Step
	redoSteps []Step

	// savedIndex is the undo depth of the saved state, -1 if that state
	// can no longer be reached.
	savedIndex int
	limit      int

	onAvailabilityChanged func(canUndo, canRedo bool)
}

// NewManager creates an empty manager whose current state counts as saved.
// A limit <= 0 keeps every step.
func NewManager(limit int) *Manager {
	return &Manager{limit: limit}
}

// OnAvailabilityChanged registers a callback fired whenever CanUndo or
// CanRedo may have changed.
func (m *Manager) OnAvailabilityChanged(fn func(canUndo, canRedo bool)) {
	m.onAvailabilityChanged = fn
}

// SetLimit changes the maximum number of undo steps, dropping the oldest
// ones if necessary.
func (m *Manager) SetLimit(limit int) {
	m.limit = limit
	m.enforceLimit()
	m.notify()
}

func (m *Manager) Limit() int { return m.limit }

// AddNewStep pushes a step that was just performed. The redo stack is
// discarded; if the saved state lived there it becomes unreachable.
func (m *Manager) AddNewStep(step Step) {
	if step == nil {
		panic("undo: nil step")
	}
	if m.savedIndex > len(m.undoSteps) {
		m.savedIndex = -1
	}
	m.redoSteps = nil
	m.undoSteps = append(m.undoSteps, step)
	m.enforceLimit()
	m.notify()
}

func (m *Manager) enforceLimit() {
	if m.limit <= 0 || len(m.undoSteps) <= m.limit {
		return
	}
	drop := len(m.undoSteps) - m.limit
	m.undoSteps = append([]Step(nil), m.undoSteps[drop:]...)
	if m.savedIndex >= 0 {
		m.savedIndex -= drop
		if m.savedIndex < 0 {
			m.savedIndex = -1
		}
	}
}

// Undo reverts the last step. done is false if there was nothing to undo.
// inSavedState reports whether the document now matches the saved state.
func (m *Manager) Undo() (inSavedState, done bool) {
	if len(m.undoSteps) == 0 {
		return m.InSavedState(), false
	}
	last := len(m.undoSteps) - 1
	step := m.undoSteps[last]
	m.undoSteps[last] = nil
	m.undoSteps = m.undoSteps[:last]

	m.redoSteps = append(m.redoSteps, step.Undo())
	m.notify()
	return m.InSavedState(), true
}

// Redo re-applies the last undone step.
func (m *Manager) Redo() (inSavedState, done bool) {
	if len(m.redoSteps) == 0 {
		return m.InSavedState(), false
	}
	last := len(m.redoSteps) - 1
	step := m.redoSteps[last]
	m.redoSteps[last] = nil
	m.redoSteps = m.redoSteps[:last]

	m.undoSteps = append(m.undoSteps, step.Undo())
	m.notify()
	return m.InSavedState(), true
}

// Clear drops all steps. currentStateSaved tells whether the document is
// in its saved state afterwards.
func (m *Manager) Clear(currentStateSaved bool) {
	m.undoSteps = nil
	m.redoSteps = nil
	if currentStateSaved {
		m.savedIndex = 0
	} else {
		m.savedIndex = -1
	}
	m.notify()
}

// NotifyOfSave marks the current state as the saved one.
func (m *Manager) NotifyOfSave() {
	m.savedIndex = len(m.undoSteps)
}

func (m *Manager) InSavedState() bool {
	return m.savedIndex == len(m.undoSteps)
}

func (m *Manager) CanUndo() bool     { return len(m.undoSteps) > 0 }
func (m *Manager) CanRedo() bool     { return len(m.redoSteps) > 0 }
func (m *Manager) NumUndoSteps() int { return len(m.undoSteps) }
func (m *Manager) NumRedoSteps() int { return len(m.redoSteps) }

// LastUndoStep returns the step Undo would revert, or nil.
func (m *Manager) LastUndoStep() Step {
	if len(m.undoSteps) == 0 {
		return nil
	}
	return m.undoSteps[len(m.undoSteps)-1]
}

// LastRedoStep returns the step Redo would re-apply, or nil.
func (m *Manager) LastRedoStep() Step {
	if len(m.redoSteps) == 0 {
		return nil
	}
	return m.redoSteps[len(m.redoSteps)-1]
}

func (m *Manager) notify() {
	if m.onAvailabilityChanged != nil {
		m.onAvailabilityChanged(m.CanUndo(), m.CanRedo())
	}
}
