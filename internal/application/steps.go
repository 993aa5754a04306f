package application

import "github.com/gabrielmiguelok/applyform/pkg/wizard"

// Step views.
const (
	ViewPersonal wizard.ViewID = "personal"
	ViewAddress  wizard.ViewID = "address"
	ViewWork     wizard.ViewID = "work"
	ViewSocial   wizard.ViewID = "social"
	ViewResume   wizard.ViewID = "resume"
)

// Steps returns the ordered step registry of the application form.
func Steps() *wizard.Registry {
	return wizard.MustRegistry(
		wizard.Step{
			ID:          "1",
			Title:       "Personal Information",
			Description: "Tell us about yourself",
			Fields:      []string{FieldFirstName, FieldLastName, FieldEmail, FieldPhone},
			View:        ViewPersonal,
		},
		wizard.Step{
			ID:          "2",
			Title:       "Address",
			Description: "Enter your address information.",
			Fields:      []string{FieldCountry, FieldState, FieldCity, FieldAddress, FieldZip, FieldTimeZone},
			View:        ViewAddress,
		},
		wizard.Step{
			ID:          "3",
			Title:       "Work Experience",
			Description: "Enter your work experience. This information will be used to evaluate your application.",
			Fields:      []string{FieldJobs},
			View:        ViewWork,
		},
		wizard.Step{
			ID:          "4",
			Title:       "Social Links",
			Description: "Enter your social links. This information helps us to know more about you.",
			Fields:      []string{FieldGitHub, FieldPortfolio},
			View:        ViewSocial,
		},
		wizard.Step{
			ID:          "5",
			Title:       "Resume",
			Description: "Upload your resume. This information helps us to know more about you.",
			Fields:      []string{FieldResume},
			View:        ViewResume,
		},
	)
}
