package wizard

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	ErrEmptyRegistry   = errors.New("wizard: registry has no steps")
	ErrDuplicateStepID = errors.New("wizard: duplicate step id")
	ErrUnknownField    = errors.New("wizard: step names a field missing from the schema")
	ErrUnownedField    = errors.New("wizard: schema field not owned by any step")
	ErrSharedField     = errors.New("wizard: field owned by more than one step")
)

// ViewID selects the rendering unit for a step.
type ViewID string

// Step describes one page of the wizard and the fields it owns.
type Step struct {
	ID          string
	Title       string
	Description string
	Fields      []string
	View        ViewID
}

// Registry is the fixed, ordered list of steps. Order defines navigation order.
type Registry struct {
	steps []Step
}

// NewRegistry copies steps into an immutable registry.
func NewRegistry(steps ...Step) (*Registry, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyRegistry
	}
	seen := make(map[string]bool, len(steps))
	out := make([]Step, len(steps))
	for i, st := range steps {
		if seen[st.ID] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStepID, st.ID)
		}
		seen[st.ID] = true
		st.Fields = append([]string(nil), st.Fields...)
		out[i] = st
	}
	return &Registry{steps: out}, nil
}

// MustRegistry is NewRegistry for package-level definitions.
func MustRegistry(steps ...Step) *Registry {
	r, err := NewRegistry(steps...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the step count.
func (r *Registry) Len() int {
	return len(r.steps)
}

// At returns the step at index i. i must be in [0, Len()).
func (r *Registry) At(i int) Step {
	st := r.steps[i]
	st.Fields = append([]string(nil), st.Fields...)
	return st
}

// Steps returns a copy of all steps.
func (r *Registry) Steps() []Step {
	out := make([]Step, len(r.steps))
	for i := range r.steps {
		out[i] = r.At(i)
	}
	return out
}

// FieldSet is the part of a schema the registry is checked against.
type FieldSet interface {
	Has(name string) bool
	FieldNames() []string
}

// Validate checks that every step field exists in schema and that every
// schema field is owned by exactly one step. All violations are joined.
func (r *Registry) Validate(schema FieldSet) error {
	var errs []error
	owner := make(map[string]string)
	for _, st := range r.steps {
		for _, f := range st.Fields {
			if !schema.Has(f) {
				errs = append(errs, fmt.Errorf("%w: step %q field %q", ErrUnknownField, st.ID, f))
			}
			if prev, ok := owner[f]; ok {
				errs = append(errs, fmt.Errorf("%w: %q in steps %q and %q", ErrSharedField, f, prev, st.ID))
				continue
			}
			owner[f] = st.ID
		}
	}
	for _, f := range schema.FieldNames() {
		if _, ok := owner[f]; !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnownedField, f))
		}
	}
	return errors.Join(errs...)
}
