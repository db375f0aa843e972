package undo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addStep adds delta to a shared counter and records the order it ran in.
type addStep struct {
	value *int
	delta int
	log   *[]int
}

func (s *addStep) Undo() Step {
	*s.value -= s.delta
	if s.log != nil {
		*s.log = append(*s.log, s.delta)
	}
	return &addStep{value: s.value, delta: -s.delta, log: s.log}
}

func perform(m *Manager, value *int, delta int) {
	*value += delta
	m.AddNewStep(&addStep{value: value, delta: delta})
}

func TestUndoRedoRestoresState(t *testing.T) {
	m := NewManager(0)
	v := 0
	perform(m, &v, 3)
	perform(m, &v, 4)
	require.Equal(t, 7, v)

	inSaved, done := m.Undo()
	assert.True(t, done)
	assert.False(t, inSaved)
	assert.Equal(t, 3, v)

	inSaved, done = m.Undo()
	assert.True(t, done)
	assert.True(t, inSaved)
	assert.Equal(t, 0, v)

	_, done = m.Undo()
	assert.False(t, done, "undo on an empty stack is a no-op")
	assert.Equal(t, 0, v)

	m.Redo()
	m.Redo()
	assert.Equal(t, 7, v)
	assert.False(t, m.CanRedo())
}

func TestSavedIndexTracking(t *testing.T) {
	m := NewManager(0)
	v := 0
	perform(m, &v, 1)
	m.NotifyOfSave()
	perform(m, &v, 2)
	assert.False(t, m.InSavedState())

	inSaved, _ := m.Undo()
	assert.True(t, inSaved)

	m.Undo()
	assert.False(t, m.InSavedState())

	// The saved state sits on the redo stack and is discarded here.
	perform(m, &v, 5)
	m.Undo()
	assert.False(t, m.InSavedState())
	m.Redo()
	assert.False(t, m.InSavedState())
}

func TestClear(t *testing.T) {
	m := NewManager(0)
	v := 0
	perform(m, &v, 1)

	m.Clear(false)
	assert.Equal(t, 0, m.NumUndoSteps())
	assert.False(t, m.InSavedState())

	m.Clear(true)
	assert.True(t, m.InSavedState())
	assert.Nil(t, m.LastUndoStep())
	assert.Nil(t, m.LastRedoStep())
}

func TestLimitDropsOldestSteps(t *testing.T) {
	m := NewManager(2)
	v := 0
	perform(m, &v, 1)
	perform(m, &v, 10)
	perform(m, &v, 100)
	assert.Equal(t, 2, m.NumUndoSteps())

	m.Undo()
	m.Undo()
	_, done := m.Undo()
	assert.False(t, done)
	assert.Equal(t, 1, v)
	assert.False(t, m.InSavedState(), "saved state was dropped with the oldest step")
}

func TestCombinedStepOrder(t *testing.T) {
	v := 0
	var log []int
	c := NewCombinedStep()
	for _, d := range []int{1, 2, 3} {
		v += d
		c.Add(&addStep{value: &v, delta: d, log: &log})
	}
	m := NewManager(0)
	m.AddNewStep(c)

	m.Undo()
	assert.Equal(t, 0, v)
	assert.Equal(t, []int{3, 2, 1}, log)

	log = nil
	m.Redo()
	assert.Equal(t, 6, v)
	assert.Equal(t, []int{-1, -2, -3}, log)

	redoStep, ok := m.LastUndoStep().(*CombinedStep)
	require.True(t, ok)
	assert.Equal(t, 3, redoStep.NumSubSteps())
}

func TestAvailabilityCallback(t *testing.T) {
	m := NewManager(0)
	var calls [][2]bool
	m.OnAvailabilityChanged(func(canUndo, canRedo bool) {
		calls = append(calls, [2]bool{canUndo, canRedo})
	})
	v := 0
	perform(m, &v, 1)
	m.Undo()
	assert.Equal(t, [][2]bool{{true, false}, {false, true}}, calls)
}

func TestAddNilStepPanics(t *testing.T) {
	assert.Panics(t, func() { NewManager(0).AddNewStep(nil) })
}
