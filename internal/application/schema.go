package application

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/nyaruka/phonenumbers"

	"github.com/gabrielmiguelok/applyform/pkg/forms"
	"github.com/gabrielmiguelok/applyform/pkg/uploads"
)

// Resume limits.
const (
	MaxResumeSizeInBytes = 10 << 20
	MaxFiles             = 2
)

// ValidResumeExtensions lists the accepted resume file extensions.
var ValidResumeExtensions = []string{".pdf"}

// DefaultPhoneRegion is the region assumed for numbers without a country code.
const DefaultPhoneRegion = "NG"

// SchemaOptions tunes locale-dependent rules.
type SchemaOptions struct {
	// PhoneRegion is the ISO 3166 region hint used to parse phone numbers.
	PhoneRegion string
}

var errRule = errors.New("rule failed")

// NewSchema builds the validation rules of the application form.
func NewSchema(opts SchemaOptions) *forms.Schema {
	region := strings.ToUpper(opts.PhoneRegion)
	if region == "" {
		region = DefaultPhoneRegion
	}

	return forms.NewSchema(
		forms.NewField(FieldFirstName, forms.FieldText, "First name",
			forms.WithPlaceholder("John"),
			length(2, 70,
				"first name must be at least 2 characters long",
				"first name must be at most 70 characters long")),
		forms.NewField(FieldLastName, forms.FieldText, "Last name",
			forms.WithPlaceholder("Doe"),
			length(2, 70,
				"last name must be at least 2 characters long",
				"last name must be at most 70 characters long")),
		forms.NewField(FieldEmail, forms.FieldEmail, "Email",
			forms.WithPlaceholder("john.doe@example.com"),
			forms.WithRequired("Email is required."),
			forms.WithValidator(
				forms.Email("Invalid email format. Please enter a valid email address."),
				forms.Custom(rejectSubdomain, "Subdomain emails are not allowed. Please use an email from a main domain."),
			)),
		forms.NewField(FieldPhone, forms.FieldTel, "Phone",
			forms.WithPlaceholder("+234 803 123 4567"),
			forms.WithRequired("Invalid Phone Number"),
			forms.WithValidator(forms.Custom(validPhone(region), "Invalid Phone Number"))),

		forms.NewField(FieldCountry, forms.FieldText, "Country",
			length(2, 70, "Country must be at least 2 characters.", "Country must be at most 70 characters.")),
		forms.NewField(FieldState, forms.FieldText, "State",
			length(2, 70, "State must be at least 2 characters.", "State must be at most 70 characters.")),
		forms.NewField(FieldCity, forms.FieldText, "City",
			length(2, 70, "City must be at least 2 characters.", "City must be at most 70 characters.")),
		forms.NewField(FieldAddress, forms.FieldText, "Address",
			length(2, 70, "Address must be at least 2 characters.", "Address must be at most 70 characters.")),
		forms.NewField(FieldZip, forms.FieldText, "ZIP code",
			forms.WithRequired("Invalid ZIP code format."),
			forms.WithValidator(forms.Pattern(`^[A-Za-z0-9](?:[A-Za-z0-9\s\-]{0,10}[A-Za-z0-9])?$`, "Invalid ZIP code format."))),
		forms.NewField(FieldTimeZone, forms.FieldSelect, "Time zone",
			forms.WithHelp("IANA name, e.g. Africa/Lagos"),
			forms.WithValidator(forms.Custom(validTimeZone, "Unknown time zone."))),

		forms.NewField(FieldJobs, forms.FieldList, "Jobs",
			forms.WithRequired("At least one job is required."),
			forms.WithItems(jobSchema())),

		forms.NewField(FieldGitHub, forms.FieldURL, "GitHub",
			forms.WithPlaceholder("https://github.com/username"),
			forms.WithRequired("invalid url format"),
			forms.WithValidator(
				forms.URL("invalid url format"),
				forms.Contains("github", "url should be a github profile"),
			)),
		forms.NewField(FieldPortfolio, forms.FieldURL, "Portfolio",
			forms.WithPlaceholder("https://example.com"),
			forms.WithRequired("Invalid URL format"),
			forms.WithValidator(forms.URL("Invalid URL format"))),

		forms.NewField(FieldResume, forms.FieldFile, "Resume",
			forms.WithHelp(fmt.Sprintf("PDF, up to %d files of %dMB each", MaxFiles, MaxResumeSizeInBytes>>20)),
			forms.WithValidator(forms.MaxItems(MaxFiles, fmt.Sprintf("You can upload at most %d files.", MaxFiles))),
			forms.WithItems(resumeSchema())),
	)
}

func jobSchema() *forms.Schema {
	return forms.NewSchema(
		forms.NewField(JobTitle, forms.FieldText, "Job title",
			length(2, 70, "Job title must be at least 2 characters.", "Job title must be at most 70 characters.")),
		forms.NewField(JobCompany, forms.FieldText, "Company",
			length(2, 90, "Company name must be at least 2 characters.", "Company name must be at most 90 characters.")),
		forms.NewField(JobFrom, forms.FieldDate, "From",
			forms.WithRequired("Invalid start date.")),
		forms.NewField(JobTo, forms.FieldDate, "To",
			forms.WithHelp("Leave empty for your current job")),
		forms.NewField(JobDescription, forms.FieldTextarea, "Description",
			length(2, 500, "Description must be at least 2 characters.", "Description must be at most 500 characters.")),
	).Refine(forms.Refinement{
		Name: "end-after-start",
		Check: func(v forms.Values) []forms.Issue {
			from, _ := v.Get(JobFrom).(time.Time)
			to, _ := v.Get(JobTo).(time.Time)
			if from.IsZero() || to.IsZero() || !to.Before(from) {
				return nil
			}
			return []forms.Issue{{Path: JobTo, Message: "End date must be after the start date."}}
		},
	})
}

func resumeSchema() *forms.Schema {
	allowed := uploads.MimeTypes(ValidResumeExtensions)
	return forms.NewSchema().Refine(forms.Refinement{
		Name: "resume-file",
		Check: func(v forms.Values) []forms.Issue {
			name, _ := v.Get("name").(string)
			size, _ := v.Get("size").(int64)
			mimeType, _ := v.Get("type").(string)

			var issues []forms.Issue
			switch {
			case size <= 0:
				issues = append(issues, forms.Issue{Message: "The uploaded file is empty. Please select a valid file."})
			case size > MaxResumeSizeInBytes:
				issues = append(issues, forms.Issue{Message: fmt.Sprintf("File %s exceeds the %dMB limit.", name, MaxResumeSizeInBytes>>20)})
			}
			if !slices.Contains(allowed, mimeType) {
				issues = append(issues, forms.Issue{Message: fmt.Sprintf(
					"Invalid file type: %s. Only %s files are allowed.", mimeType, strings.Join(ValidResumeExtensions, ", "))})
			}
			return issues
		},
	})
}

// length makes an empty value fail with the minimum-length message.
func length(min, max int, minMsg, maxMsg string) forms.FieldOption {
	return func(f *forms.Field) {
		forms.WithRequired(minMsg)(f)
		forms.WithLength(min, max, minMsg, maxMsg)(f)
	}
}

// rejectSubdomain fails when the domain part has more than two labels.
func rejectSubdomain(value any) error {
	s, _ := value.(string)
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return nil
	}
	if len(strings.Split(s[at+1:], ".")) > 2 {
		return errRule
	}
	return nil
}

func validPhone(region string) func(any) error {
	return func(value any) error {
		s, _ := value.(string)
		num, err := phonenumbers.Parse(s, region)
		if err != nil {
			return err
		}
		if !phonenumbers.IsValidNumber(num) {
			return errRule
		}
		return nil
	}
}

func validTimeZone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := time.LoadLocation(s)
	return err
}
