package wizard

import (
	"context"

	"github.com/gabrielmiguelok/applyform/pkg/forms"
)

// Checker validates form data on behalf of the controller.
type Checker interface {
	// CheckStep validates only the named fields (the gate of one step).
	CheckStep(ctx context.Context, fields []string) (forms.Errors, error)

	// CheckAll validates the aggregate payload.
	CheckAll(ctx context.Context) (forms.Errors, error)
}

// SchemaChecker runs a forms.Schema against the values returned by Values
// at check time, so edits made between checks are always seen.
type SchemaChecker struct {
	Schema *forms.Schema
	Values func() forms.Values
}

// CheckStep implements Checker.
func (c SchemaChecker) CheckStep(ctx context.Context, fields []string) (forms.Errors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Schema.ValidateFields(c.Values(), fields...), nil
}

// CheckAll implements Checker.
func (c SchemaChecker) CheckAll(ctx context.Context) (forms.Errors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Schema.Validate(c.Values()), nil
}
