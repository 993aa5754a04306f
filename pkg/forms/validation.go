package forms

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Validator validates a single field value. Validators are pure and skip
// empty values; emptiness is the Field's Required concern.
type Validator interface {
	// Validate checks if the value is valid.
	Validate(value any) error

	// Message returns the error message shown to the user.
	Message() string
}

var errInvalid = errors.New("invalid")

// EmailValidator validates the generic local@domain.tld shape.
type EmailValidator struct {
	Msg string
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (v EmailValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}
	if !emailRegex.MatchString(str) {
		return errInvalid
	}
	return nil
}

func (v EmailValidator) Message() string {
	return orDefault(v.Msg, "Please enter a valid email address")
}

// URLValidator requires an absolute URL with a scheme and a host.
type URLValidator struct {
	Msg string
}

func (v URLValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}
	u, err := url.Parse(str)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return errInvalid
	}
	return nil
}

func (v URLValidator) Message() string {
	return orDefault(v.Msg, "Please enter a valid URL")
}

// ContainsValidator requires the string value to contain Substr.
type ContainsValidator struct {
	Substr string
	Msg    string
}

func (v ContainsValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}
	if !strings.Contains(str, v.Substr) {
		return errInvalid
	}
	return nil
}

func (v ContainsValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must contain %q", v.Substr))
}

// MinLengthValidator validates minimum string length in runes.
type MinLengthValidator struct {
	Min int
	Msg string
}

func (v MinLengthValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}
	if utf8.RuneCountInString(str) < v.Min {
		return errInvalid
	}
	return nil
}

func (v MinLengthValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must be at least %d characters", v.Min))
}

// MaxLengthValidator validates maximum string length in runes.
type MaxLengthValidator struct {
	Max int
	Msg string
}

func (v MaxLengthValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok {
		return nil
	}
	if utf8.RuneCountInString(str) > v.Max {
		return errInvalid
	}
	return nil
}

func (v MaxLengthValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("Must be at most %d characters", v.Max))
}

// PatternValidator validates against a compiled regular expression.
type PatternValidator struct {
	Re  *regexp.Regexp
	Msg string
}

func (v PatternValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}
	if !v.Re.MatchString(str) {
		return errInvalid
	}
	return nil
}

func (v PatternValidator) Message() string {
	return orDefault(v.Msg, "Invalid format")
}

// MinItemsValidator validates the minimum length of a slice value.
// Unlike the string validators it does not skip empty slices.
type MinItemsValidator struct {
	Min int
	Msg string
}

func (v MinItemsValidator) Validate(value any) error {
	if length(value) < v.Min {
		return errInvalid
	}
	return nil
}

func (v MinItemsValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("At least %d item(s) required", v.Min))
}

// MaxItemsValidator validates the maximum length of a slice value.
type MaxItemsValidator struct {
	Max int
	Msg string
}

func (v MaxItemsValidator) Validate(value any) error {
	if length(value) > v.Max {
		return errInvalid
	}
	return nil
}

func (v MaxItemsValidator) Message() string {
	return orDefault(v.Msg, fmt.Sprintf("At most %d item(s) allowed", v.Max))
}

// CustomValidator allows custom validation functions.
type CustomValidator struct {
	Fn  func(value any) error
	Msg string
}

func (v CustomValidator) Validate(value any) error {
	return v.Fn(value)
}

func (v CustomValidator) Message() string {
	return v.Msg
}

// Convenience constructors. The optional msg overrides the default message.

func Email(msg ...string) Validator {
	return EmailValidator{Msg: first(msg)}
}

func URL(msg ...string) Validator {
	return URLValidator{Msg: first(msg)}
}

func Contains(substr string, msg ...string) Validator {
	return ContainsValidator{Substr: substr, Msg: first(msg)}
}

func MinLength(n int, msg ...string) Validator {
	return MinLengthValidator{Min: n, Msg: first(msg)}
}

func MaxLength(n int, msg ...string) Validator {
	return MaxLengthValidator{Max: n, Msg: first(msg)}
}

// Pattern compiles pattern once; it panics on an invalid expression like regexp.MustCompile.
func Pattern(pattern string, msg ...string) Validator {
	return PatternValidator{Re: regexp.MustCompile(pattern), Msg: first(msg)}
}

func MinItems(n int, msg ...string) Validator {
	return MinItemsValidator{Min: n, Msg: first(msg)}
}

func MaxItems(n int, msg ...string) Validator {
	return MaxItemsValidator{Max: n, Msg: first(msg)}
}

func Custom(fn func(value any) error, msg string) Validator {
	return CustomValidator{Fn: fn, Msg: msg}
}

func first(msg []string) string {
	if len(msg) > 0 {
		return msg[0]
	}
	return ""
}

func orDefault(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}

func length(value any) int {
	if value == nil {
		return 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return 0
	}
}

// IsEmpty reports whether value counts as "not provided".
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case time.Time:
		return v.IsZero()
	case *time.Time:
		return v == nil || v.IsZero()
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
