package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/applyform/pkg/forms"
)

type fixture struct {
	values    forms.Map
	submitted []any
	ctrl      *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	schema := forms.NewSchema(
		forms.NewField("a", forms.FieldText, "A", forms.WithRequired()),
		forms.NewField("b", forms.FieldText, "B", forms.WithRequired()),
		forms.NewField("c", forms.FieldText, "C"),
	)
	reg, err := NewRegistry(
		Step{ID: "1", Fields: []string{"a"}},
		Step{ID: "2", Fields: []string{"b"}},
		Step{ID: "3", Fields: []string{"c"}},
	)
	require.NoError(t, err)
	require.NoError(t, reg.Validate(schema))

	f := &fixture{values: forms.Map{}}
	checker := SchemaChecker{Schema: schema, Values: func() forms.Values { return f.values }}
	f.ctrl = NewController(reg, checker, WithSubmitter(SubmitterFunc(func(_ context.Context, p any) error {
		f.submitted = append(f.submitted, p)
		return nil
	})))
	return f
}

func TestController_NextBlockedByGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	errs, err := f.ctrl.Next(ctx)
	require.NoError(t, err)
	assert.True(t, errs.Has("a"))
	assert.False(t, errs.Has("b"), "gate must only check the current step")
	assert.Equal(t, 0, f.ctrl.State().Current())

	f.values["a"] = "x"
	errs, err = f.ctrl.Next(ctx)
	require.NoError(t, err)
	assert.True(t, errs.Valid())
	assert.Equal(t, 1, f.ctrl.State().Current())
	assert.Equal(t, 0, f.ctrl.State().Previous())
}

func TestController_RegatesAfterRetreat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.values["a"] = "x"

	_, err := f.ctrl.Next(ctx)
	require.NoError(t, err)
	require.True(t, f.ctrl.Back())

	delete(f.values, "a")
	errs, err := f.ctrl.Next(ctx)
	require.NoError(t, err)
	assert.True(t, errs.Has("a"))
	assert.Equal(t, 0, f.ctrl.State().Current())
}

func TestController_Goto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	errs, err := f.ctrl.Goto(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, 0, f.ctrl.State().Current(), "cannot skip ahead")

	errs, err = f.ctrl.Goto(ctx, 1)
	require.NoError(t, err)
	assert.True(t, errs.Has("a"), "next-step jump is gated")
	assert.Equal(t, 0, f.ctrl.State().Current())

	f.values["a"], f.values["b"] = "x", "y"
	_, _ = f.ctrl.Next(ctx)
	_, _ = f.ctrl.Next(ctx)
	require.Equal(t, 2, f.ctrl.State().Current())

	f.values["a"] = ""
	_, err = f.ctrl.Goto(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, f.ctrl.State().Current(), "backward jumps are never gated")
	assert.Equal(t, 2, f.ctrl.State().Previous())
}

func TestController_CancelledGateDiscarded(t *testing.T) {
	f := newFixture(t)
	f.values["a"] = "x"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs, err := f.ctrl.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, errs)
	assert.Equal(t, 0, f.ctrl.State().Current())
}

func TestController_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Submit(ctx, "early")
	assert.ErrorIs(t, err, ErrNotFinalStep)

	f.values["a"], f.values["b"] = "x", "y"
	_, _ = f.ctrl.Next(ctx)
	_, _ = f.ctrl.Next(ctx)
	require.True(t, f.ctrl.State().IsFinal())

	delete(f.values, "a")
	errs, err := f.ctrl.Submit(ctx, "payload")
	require.NoError(t, err)
	assert.True(t, errs.Has("a"), "aggregate schema covers earlier steps")
	assert.Empty(t, f.submitted)

	f.values["a"] = "x"
	errs, err = f.ctrl.Submit(ctx, "payload")
	require.NoError(t, err)
	assert.True(t, errs.Valid())
	assert.Equal(t, []any{"payload"}, f.submitted)
	assert.True(t, f.ctrl.Submitted())

	_, err = f.ctrl.Submit(ctx, "payload")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	f.ctrl.Reset()
	assert.False(t, f.ctrl.Submitted())
	assert.Equal(t, 0, f.ctrl.State().Current())
}

func TestController_SubmitterFailure(t *testing.T) {
	reg := MustRegistry(Step{ID: "only"})
	boom := errors.New("boom")
	ctrl := NewController(reg,
		SchemaChecker{Schema: forms.NewSchema(), Values: func() forms.Values { return forms.Map{} }},
		WithSubmitter(SubmitterFunc(func(context.Context, any) error { return boom })),
	)

	_, err := ctrl.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ctrl.Submitted())
}

func TestController_NextOnFinalIsNoop(t *testing.T) {
	ctrl := NewController(MustRegistry(Step{ID: "only", Fields: []string{"x"}}),
		SchemaChecker{Schema: forms.NewSchema(), Values: func() forms.Values { return forms.Map{} }})

	errs, err := ctrl.Next(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, errs)
	assert.Equal(t, 0, ctrl.State().Current())
}

func TestRegistry_Validate(t *testing.T) {
	schema := forms.NewSchema(
		forms.NewField("a", forms.FieldText, "A"),
		forms.NewField("b", forms.FieldText, "B"),
	)

	reg := MustRegistry(Step{ID: "1", Fields: []string{"a", "z"}}, Step{ID: "2", Fields: []string{"a"}})
	err := reg.Validate(schema)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.ErrorIs(t, err, ErrSharedField)
	assert.ErrorIs(t, err, ErrUnownedField)

	_, err = NewRegistry(Step{ID: "1"}, Step{ID: "1"})
	assert.ErrorIs(t, err, ErrDuplicateStepID)

	_, err = NewRegistry()
	assert.ErrorIs(t, err, ErrEmptyRegistry)
}

func TestRegistry_IsImmutable(t *testing.T) {
	fields := []string{"a"}
	reg := MustRegistry(Step{ID: "1", Fields: fields})
	fields[0] = "mutated"

	got := reg.At(0)
	assert.Equal(t, []string{"a"}, got.Fields)
	got.Fields[0] = "again"
	assert.Equal(t, []string{"a"}, reg.Steps()[0].Fields)
}
