package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabrielmiguelok/applyform/pkg/forms"
	"github.com/gabrielmiguelok/applyform/pkg/logging"
)

// Controller errors.
var (
	ErrNotFinalStep     = errors.New("wizard: submit is only allowed on the final step")
	ErrAlreadySubmitted = errors.New("wizard: form already submitted")
	ErrNoSubmitter      = errors.New("wizard: no submitter configured")
)

// Submitter receives a payload that passed the aggregate schema.
type Submitter interface {
	Submit(ctx context.Context, payload any) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, payload any) error

func (f SubmitterFunc) Submit(ctx context.Context, payload any) error {
	return f(ctx, payload)
}

// View is the read-only side of State handed to renderers.
type View interface {
	Current() int
	Previous() int
	Count() int
	Delta() int
	HasNext() bool
	HasPrevious() bool
	IsFinal() bool
	Direction() Direction
}

// Controller owns the State of one wizard session and guards its forward
// transitions with a Checker.
type Controller struct {
	registry  *Registry
	state     *State
	checker   Checker
	submitter Submitter
	logger    logging.Logger
	submitted bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSubmitter sets the submission collaborator.
func WithSubmitter(s Submitter) Option {
	return func(c *Controller) {
		c.submitter = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController creates a controller positioned on the first step.
func NewController(registry *Registry, checker Checker, opts ...Option) *Controller {
	c := &Controller{
		registry: registry,
		state:    NewState(registry.Len()),
		checker:  checker,
		logger:   logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State exposes the navigation state for rendering.
func (c *Controller) State() View {
	return c.state
}

// Registry returns the step registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Step returns the current step descriptor.
func (c *Controller) Step() Step {
	return c.registry.At(c.state.Current())
}

// Submitted reports whether a submission has been accepted.
func (c *Controller) Submitted() bool {
	return c.submitted
}

// Next validates the current step's fields and advances when they pass.
// A failed gate returns the field errors and leaves the state untouched.
// Every call re-runs the gate, including on steps that passed before.
// On the final step Next does nothing.
func (c *Controller) Next(ctx context.Context) (forms.Errors, error) {
	if !c.state.HasNext() {
		return nil, nil
	}
	errs, err := c.gate(ctx)
	if err != nil || !errs.Valid() {
		return errs, err
	}
	c.state.Advance()
	c.logger.Debug("wizard advanced", logging.Int("step", c.state.Current()))
	return nil, nil
}

// Back moves to the previous step without validation.
func (c *Controller) Back() bool {
	return c.state.Retreat()
}

// Goto jumps to target. Backward jumps are never gated; a jump to the
// immediate next step is gated like Next; anything else is ignored.
func (c *Controller) Goto(ctx context.Context, target int) (forms.Errors, error) {
	if target == c.state.Current()+1 {
		return c.Next(ctx)
	}
	c.state.JumpTo(target)
	return nil, nil
}

// Submit runs the aggregate schema and hands payload to the submitter.
// It is only allowed on the final step, once.
func (c *Controller) Submit(ctx context.Context, payload any) (forms.Errors, error) {
	if !c.state.IsFinal() {
		return nil, ErrNotFinalStep
	}
	if c.submitted {
		return nil, ErrAlreadySubmitted
	}
	if c.submitter == nil {
		return nil, ErrNoSubmitter
	}

	errs, err := c.checker.CheckAll(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !errs.Valid() {
		c.logger.Debug("submit rejected", logging.Strings("fields", errs.Paths()))
		return errs, nil
	}

	if err := c.submitter.Submit(ctx, payload); err != nil {
		return nil, fmt.Errorf("submit payload: %w", err)
	}
	c.submitted = true
	c.logger.Info("application submitted")
	return nil, nil
}

// Reset returns to the first step and clears the submitted flag.
func (c *Controller) Reset() {
	c.state.Reset()
	c.submitted = false
}

// gate checks the current step. Results that arrive after ctx is cancelled
// are discarded.
func (c *Controller) gate(ctx context.Context) (forms.Errors, error) {
	step := c.Step()
	errs, err := c.checker.CheckStep(ctx, step.Fields)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !errs.Valid() {
		c.logger.Debug("step gate failed",
			logging.String("step", step.ID),
			logging.Strings("fields", errs.Paths()),
		)
	}
	return errs, nil
}
