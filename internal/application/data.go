// Package application defines the job application form: its fields,
// validation rules, step layout and the live wizard component.
package application

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gabrielmiguelok/applyform/pkg/forms"
	"github.com/gabrielmiguelok/applyform/pkg/uploads"
)

// Field identifiers. They double as payload keys.
const (
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldCountry   = "country"
	FieldState     = "state"
	FieldCity      = "city"
	FieldAddress   = "address"
	FieldZip       = "zip"
	FieldTimeZone  = "timeZone"
	FieldJobs      = "jobs"
	FieldGitHub    = "github"
	FieldPortfolio = "portfolio"
	FieldResume    = "resume"
)

// Job entry fields.
const (
	JobTitle       = "title"
	JobCompany     = "company"
	JobFrom        = "from"
	JobTo          = "to"
	JobDescription = "description"
)

var (
	ErrNotEditable = errors.New("field is not editable as text")
	ErrJobIndex    = errors.New("job index out of range")
	ErrInvalidDate = errors.New("invalid date")
)

// DateLayout is the wire format of dates.
const DateLayout = time.DateOnly

// Date is a calendar date. The zero value means "not set".
type Date struct {
	time.Time
}

// ParseDate parses s in DateLayout. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
	}
	return Date{Time: t}, nil
}

// String returns the date in DateLayout, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*d = Date{}
		return nil
	}
	s, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// JobEntry is one work experience record.
type JobEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	From        Date   `json:"from"`
	To          Date   `json:"to"`
	Description string `json:"description"`
}

// Get implements forms.Values.
func (j JobEntry) Get(name string) any {
	switch name {
	case JobTitle:
		return j.Title
	case JobCompany:
		return j.Company
	case JobFrom:
		return j.From.Time
	case JobTo:
		return j.To.Time
	case JobDescription:
		return j.Description
	default:
		return nil
	}
}

// Set assigns one job field from its text form.
func (j *JobEntry) Set(name, value string) error {
	switch name {
	case JobTitle:
		j.Title = value
	case JobCompany:
		j.Company = value
	case JobDescription:
		j.Description = value
	case JobFrom, JobTo:
		d, err := ParseDate(value)
		if err != nil {
			return err
		}
		if name == JobFrom {
			j.From = d
		} else {
			j.To = d
		}
	default:
		return fmt.Errorf("%w: %s.%s", ErrNotEditable, FieldJobs, name)
	}
	return nil
}

// FormData is the full application payload.
type FormData struct {
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Country   string        `json:"country"`
	State     string        `json:"state"`
	City      string        `json:"city"`
	Address   string        `json:"address"`
	Zip       string        `json:"zip"`
	TimeZone  string        `json:"timeZone,omitempty"`
	Jobs      []JobEntry    `json:"jobs"`
	GitHub    string        `json:"github"`
	Portfolio string        `json:"portfolio"`
	Resume    *uploads.List `json:"resume"`
}

// Defaults seeds a fresh form.
type Defaults struct {
	TimeZone   string
	MaxResumes int
}

// NewFormData returns a form with one empty job row, as the wizard shows
// on first load.
func NewFormData(d Defaults) *FormData {
	return &FormData{
		TimeZone: d.TimeZone,
		Jobs:     []JobEntry{{}},
		Resume:   uploads.NewList(d.MaxResumes),
	}
}

// Get implements forms.Values.
func (f *FormData) Get(name string) any {
	if p := f.text(name); p != nil {
		return *p
	}
	switch name {
	case FieldJobs:
		if len(f.Jobs) == 0 {
			return nil
		}
		items := make([]forms.Values, len(f.Jobs))
		for i, j := range f.Jobs {
			items[i] = j
		}
		return items
	case FieldResume:
		if f.Resume == nil || f.Resume.Len() == 0 {
			return nil
		}
		entries := f.Resume.Entries()
		items := make([]forms.Values, len(entries))
		for i, e := range entries {
			items[i] = e
		}
		return items
	}
	return nil
}

// Set assigns a scalar text field.
func (f *FormData) Set(name, value string) error {
	p := f.text(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrNotEditable, name)
	}
	*p = value
	return nil
}

func (f *FormData) text(name string) *string {
	switch name {
	case FieldFirstName:
		return &f.FirstName
	case FieldLastName:
		return &f.LastName
	case FieldEmail:
		return &f.Email
	case FieldPhone:
		return &f.Phone
	case FieldCountry:
		return &f.Country
	case FieldState:
		return &f.State
	case FieldCity:
		return &f.City
	case FieldAddress:
		return &f.Address
	case FieldZip:
		return &f.Zip
	case FieldTimeZone:
		return &f.TimeZone
	case FieldGitHub:
		return &f.GitHub
	case FieldPortfolio:
		return &f.Portfolio
	}
	return nil
}

// AddJob appends an empty job row.
func (f *FormData) AddJob() {
	f.Jobs = append(f.Jobs, JobEntry{})
}

// RemoveJob deletes the job at index i.
func (f *FormData) RemoveJob(i int) error {
	if i < 0 || i >= len(f.Jobs) {
		return ErrJobIndex
	}
	f.Jobs = append(f.Jobs[:i], f.Jobs[i+1:]...)
	return nil
}

// SetJobField assigns one field of the job at index i.
func (f *FormData) SetJobField(i int, name, value string) error {
	if i < 0 || i >= len(f.Jobs) {
		return ErrJobIndex
	}
	return f.Jobs[i].Set(name, value)
}

// JobPath returns the error path of a job field, e.g. "jobs.0.to".
func JobPath(i int, name string) string {
	return FieldJobs + "." + strconv.Itoa(i) + "." + name
}
