// Package forms provides declarative form schemas: named fields carrying
// per-value validators, plus named cross-field refinements. Validation is
// pure; results are returned as Errors keyed by field path.
package forms

import (
	"fmt"
	"strconv"
)

// Values gives read access to form data by field name.
type Values interface {
	Get(name string) any
}

// Map is a Values backed by a plain map.
type Map map[string]any

func (m Map) Get(name string) any {
	return m[name]
}

// Issue is one refinement failure. Path is relative to the values the
// refinement ran on; "" means the values themselves.
type Issue struct {
	Path    string
	Message string
}

// Refinement is a named rule that needs more than one value.
type Refinement struct {
	// Name identifies the rule in logs and tests.
	Name string

	// Root is the field the rule belongs to. Partial validation runs the
	// refinement only when Root is among the requested fields. An empty
	// Root means the rule always runs.
	Root string

	// Check returns the issues found; nil means the rule passed.
	Check func(values Values) []Issue
}

// Schema is an ordered set of fields plus refinements.
type Schema struct {
	fields      []Field
	index       map[string]int
	refinements []Refinement
}

// NewSchema builds a schema. Duplicate field names panic; schemas are
// package-level configuration and a duplicate is a programming error.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("forms: duplicate field %q", f.Name))
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Refine adds cross-field rules and returns the schema.
func (s *Schema) Refine(rules ...Refinement) *Schema {
	s.refinements = append(s.refinements, rules...)
	return s
}

// Has reports whether the schema defines name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Field returns the field definition for name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// FieldNames returns the field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Validate runs every field rule and every refinement.
func (s *Schema) Validate(values Values) Errors {
	errs := Errors{}
	for _, f := range s.fields {
		s.validateField(values, f, errs)
	}
	for _, r := range s.refinements {
		applyRefinement(values, r, errs)
	}
	return errs
}

// ValidateFields runs only the named fields and the refinements rooted at
// them. Unknown names are reported as errors so a misconfigured step cannot
// silently pass.
func (s *Schema) ValidateFields(values Values, names ...string) Errors {
	errs := Errors{}
	selected := make(map[string]bool, len(names))
	for _, name := range names {
		f, ok := s.Field(name)
		if !ok {
			errs.Add(name, "unknown field")
			continue
		}
		selected[name] = true
		s.validateField(values, f, errs)
	}
	for _, r := range s.refinements {
		if r.Root == "" || selected[r.Root] {
			applyRefinement(values, r, errs)
		}
	}
	return errs
}

// ValidateValue checks a single candidate value against a field's own
// validators, without items or refinements. Used for inline feedback while typing.
func (s *Schema) ValidateValue(name string, value any) []string {
	f, ok := s.Field(name)
	if !ok {
		return []string{"unknown field"}
	}
	errs := Errors{}
	checkValue(f, value, errs)
	return errs[name]
}

func (s *Schema) validateField(values Values, f Field, errs Errors) {
	value := values.Get(f.Name)
	if !checkValue(f, value, errs) || f.Items == nil {
		return
	}
	items, ok := value.([]Values)
	if !ok {
		return
	}
	for i, item := range items {
		errs.Merge(f.Name+"."+strconv.Itoa(i), f.Items.Validate(item))
	}
}

// checkValue applies required and validators; it reports whether item
// validation should continue.
func checkValue(f Field, value any, errs Errors) bool {
	if IsEmpty(value) {
		if f.Required {
			errs.Add(f.Name, f.requiredMessage())
		}
		return false
	}
	for _, v := range f.Validators {
		if err := v.Validate(value); err != nil {
			errs.Add(f.Name, v.Message())
		}
	}
	return true
}

func applyRefinement(values Values, r Refinement, errs Errors) {
	for _, issue := range r.Check(values) {
		path := issue.Path
		if r.Root != "" {
			path = joinPath(r.Root, issue.Path)
		}
		errs.Add(path, issue.Message)
	}
}
