// Package wizard implements multi-step form navigation: an index state
// machine bounded by a fixed step registry, a gatekeeper that validates the
// current step's fields before forward moves, and a controller that ties
// both to a submission collaborator.
package wizard

// Direction is the sign of the last transition, used by views to pick an
// enter animation.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionForward
	DirectionBackward
)

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "none"
	}
}

// State tracks the current and previous step index of one wizard session.
// Invalid transitions are no-ops: the index can never leave [0, count).
// State has a single writer and is not safe for concurrent use.
type State struct {
	current  int
	previous int
	count    int
}

// NewState returns a state at step 0 for a wizard of count steps.
// count must be positive.
func NewState(count int) *State {
	if count < 1 {
		panic("wizard: step count must be positive")
	}
	return &State{count: count}
}

// Advance moves one step forward. It reports whether the index changed.
func (s *State) Advance() bool {
	if s.current == s.count-1 {
		return false
	}
	s.move(s.current + 1)
	return true
}

// Retreat moves one step back. It reports whether the index changed.
func (s *State) Retreat() bool {
	if s.current == 0 {
		return false
	}
	s.move(s.current - 1)
	return true
}

// JumpTo moves to target. Jumping to the current step or more than one step
// ahead is rejected; any backward jump inside the bounds is allowed.
func (s *State) JumpTo(target int) bool {
	if target == s.current || target > s.current+1 || target < 0 || target >= s.count {
		return false
	}
	s.move(target)
	return true
}

// Reset returns to the first step with no transition history.
func (s *State) Reset() {
	s.current, s.previous = 0, 0
}

func (s *State) move(target int) {
	s.previous = s.current
	s.current = target
}

func (s *State) Current() int  { return s.current }
func (s *State) Previous() int { return s.previous }
func (s *State) Count() int    { return s.count }

// Delta is current minus previous index.
func (s *State) Delta() int { return s.current - s.previous }

func (s *State) HasNext() bool     { return s.current < s.count-1 }
func (s *State) HasPrevious() bool { return s.current > 0 }
func (s *State) IsFinal() bool     { return s.current == s.count-1 }

// Direction returns the direction of the last transition.
func (s *State) Direction() Direction {
	switch d := s.Delta(); {
	case d > 0:
		return DirectionForward
	case d < 0:
		return DirectionBackward
	default:
		return DirectionNone
	}
}

// Snapshot is a serialisable copy of State.
type Snapshot struct {
	Current  int `json:"current" msgpack:"current"`
	Previous int `json:"previous" msgpack:"previous"`
	Count    int `json:"count" msgpack:"count"`
}

// Snapshot returns the current values.
func (s *State) Snapshot() Snapshot {
	return Snapshot{Current: s.current, Previous: s.previous, Count: s.count}
}
