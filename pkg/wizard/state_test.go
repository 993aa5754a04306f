package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const steps = 5

func stateAt(i int) *State {
	s := NewState(steps)
	for s.Current() < i {
		s.Advance()
	}
	return s
}

func TestState_Initial(t *testing.T) {
	s := NewState(steps)
	assert.Equal(t, 0, s.Current())
	assert.Equal(t, 0, s.Previous())
	assert.Equal(t, 0, s.Delta())
	assert.Equal(t, DirectionNone, s.Direction())
	assert.True(t, s.HasNext())
	assert.False(t, s.HasPrevious())
	assert.False(t, s.IsFinal())
}

func TestState_Advance(t *testing.T) {
	for i := 0; i < steps-1; i++ {
		s := stateAt(i)
		assert.True(t, s.Advance())
		assert.Equal(t, i+1, s.Current())
		assert.Equal(t, i, s.Previous())
		assert.Equal(t, DirectionForward, s.Direction())
	}

	s := stateAt(steps - 1)
	prev := s.Previous()
	assert.False(t, s.Advance())
	assert.Equal(t, steps-1, s.Current())
	assert.Equal(t, prev, s.Previous())
}

func TestState_Retreat(t *testing.T) {
	for i := 1; i < steps; i++ {
		s := stateAt(i)
		assert.True(t, s.Retreat())
		assert.Equal(t, i-1, s.Current())
		assert.Equal(t, i, s.Previous())
		assert.Equal(t, -1, s.Delta())
		assert.Equal(t, DirectionBackward, s.Direction())
	}

	s := NewState(steps)
	assert.False(t, s.Retreat())
	assert.Equal(t, 0, s.Current())
}

func TestState_JumpTo(t *testing.T) {
	for cur := 0; cur < steps; cur++ {
		for target := -1; target <= steps; target++ {
			s := stateAt(cur)
			before := s.Snapshot()
			moved := s.JumpTo(target)

			rejected := target == cur || target > cur+1 || target < 0 || target >= steps
			if rejected {
				assert.False(t, moved, "cur=%d target=%d", cur, target)
				assert.Equal(t, before, s.Snapshot())
				continue
			}
			assert.True(t, moved, "cur=%d target=%d", cur, target)
			assert.Equal(t, target, s.Current())
			assert.Equal(t, cur, s.Previous())
		}
	}
}

func TestState_DerivedAgreeWithBoundaries(t *testing.T) {
	for i := 0; i < steps; i++ {
		s := stateAt(i)
		assert.Equal(t, i < steps-1, s.HasNext())
		assert.Equal(t, i > 0, s.HasPrevious())
		assert.Equal(t, i == steps-1, s.IsFinal())

		assert.Equal(t, s.HasNext(), stateAt(i).Advance())
		assert.Equal(t, s.HasPrevious(), stateAt(i).Retreat())
	}
}

func TestState_SingleStepWizard(t *testing.T) {
	s := NewState(1)
	assert.True(t, s.IsFinal())
	assert.False(t, s.Advance())
	assert.False(t, s.Retreat())
	assert.False(t, s.JumpTo(1))
}

func TestState_Reset(t *testing.T) {
	s := stateAt(3)
	s.Reset()
	assert.Equal(t, Snapshot{Current: 0, Previous: 0, Count: steps}, s.Snapshot())
}

func TestNewState_PanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { NewState(0) })
}
