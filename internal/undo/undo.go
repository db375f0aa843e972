package undo

// Step is one reversible edit. Undo reverts the edit and returns the step
// that re-applies it, which the manager pushes onto the opposite stack.
type Step interface {
	Undo() Step
}

// CombinedStep applies several sub-steps as one unit.
type CombinedStep struct {
	steps []Step
}

// NewCombinedStep creates a combined step from the given sub-steps, in the
// order they were performed.
func NewCombinedStep(steps ...Step) *CombinedStep {
	return &CombinedStep{steps: steps}
}

// Add appends a sub-step.
func (c *CombinedStep) Add(s Step) {
	c.steps = append(c.steps, s)
}

func (c *CombinedStep) SubSteps() []Step { return c.steps }

func (c *CombinedStep) NumSubSteps() int { return len(c.steps) }

// Undo reverts the sub-steps last to first. The returned step holds the
// inverses in the order they were produced, so undoing it replays the
// original order.
func (c *CombinedStep) Undo() Step {
	inverse := &CombinedStep{steps: make([]Step, 0, len(c.steps))}
	for i := len(c.steps) - 1; i >= 0; i-- {
		inverse.steps = append(inverse.steps, c.steps[i].Undo())
	}
	return inverse
}
