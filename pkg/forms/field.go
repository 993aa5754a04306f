package forms

// FieldType identifies the input widget a field renders as.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldURL      FieldType = "url"
	FieldDate     FieldType = "date"
	FieldTextarea FieldType = "textarea"
	FieldSelect   FieldType = "select"
	FieldFile     FieldType = "file"
	FieldList     FieldType = "list"
)

// Field describes one named value of a schema: how it renders and which
// rules it must satisfy.
type Field struct {
	// Name is the field identifier, unique within a schema.
	Name string

	// Type is the field type.
	Type FieldType

	// Label is the display label.
	Label string

	// Placeholder is the placeholder text.
	Placeholder string

	// Help is help text shown below the field.
	Help string

	// Required rejects empty values with RequiredMsg.
	Required bool

	// RequiredMsg overrides the default required message.
	RequiredMsg string

	// Validators run in order on non-empty values.
	Validators []Validator

	// Items validates each element of a list value ([]Values).
	// Errors are reported under "<name>.<index>.<item field>".
	Items *Schema

	// Options are the available options for select fields.
	Options []Option
}

// Option represents a select option.
type Option struct {
	Value string
	Label string
}

// FieldOption is a function that configures a field.
type FieldOption func(*Field)

// NewField creates a new field.
func NewField(name string, fieldType FieldType, label string, opts ...FieldOption) Field {
	field := Field{
		Name:  name,
		Type:  fieldType,
		Label: label,
	}
	for _, opt := range opts {
		opt(&field)
	}
	return field
}

// WithRequired marks the field as required. An optional message replaces the default.
func WithRequired(msg ...string) FieldOption {
	return func(f *Field) {
		f.Required = true
		f.RequiredMsg = first(msg)
	}
}

// WithPlaceholder sets the placeholder text.
func WithPlaceholder(placeholder string) FieldOption {
	return func(f *Field) {
		f.Placeholder = placeholder
	}
}

// WithHelp sets the help text.
func WithHelp(help string) FieldOption {
	return func(f *Field) {
		f.Help = help
	}
}

// WithValidator appends validators.
func WithValidator(v ...Validator) FieldOption {
	return func(f *Field) {
		f.Validators = append(f.Validators, v...)
	}
}

// WithLength adds min and max rune-length validators with their messages.
func WithLength(min, max int, minMsg, maxMsg string) FieldOption {
	return func(f *Field) {
		f.Validators = append(f.Validators, MinLength(min, minMsg), MaxLength(max, maxMsg))
	}
}

// WithItems sets the schema applied to each list element.
func WithItems(items *Schema) FieldOption {
	return func(f *Field) {
		f.Items = items
	}
}

// WithOptions sets the select options.
func WithOptions(options ...Option) FieldOption {
	return func(f *Field) {
		f.Options = options
	}
}

func (f Field) requiredMessage() string {
	return orDefault(f.RequiredMsg, "This field is required")
}
