package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/aristath/scaffold/internal/config"
)

// InitForm collects the answers for a new project configuration.
type InitForm struct {
	form *huh.Form

	projectName string
	description string
	concept     string
	language    string
}

// NewInitForm builds the form, prefilled from opts.
func NewInitForm(opts config.ProjectOptions) *InitForm {
	f := &InitForm{
		projectName: opts.ProjectName,
		description: opts.Description,
		concept:     opts.Concept,
		language:    opts.Language,
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("projectName").
				Title("Project Name").
				Value(&f.projectName).
				Placeholder("my-app").
				Validate(requireText("project name")),

			huh.NewInput().
				Key("description").
				Title("Description").
				Value(&f.description).
				Placeholder("A short summary of the project"),
		).Title("Project"),

		huh.NewGroup(
			huh.NewText().
				Key("concept").
				Title("Concept").
				Description("What should the generated project do?").
				Value(&f.concept),

			huh.NewInput().
				Key("language").
				Title("Language").
				Value(&f.language).
				Placeholder("go"),
		).Title("Prompt Variables"),
	)
	return f
}

func requireText(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// Run shows the form in the terminal and blocks until it is submitted.
func (f *InitForm) Run() error {
	return f.form.Run()
}

// Form exposes the underlying huh form.
func (f *InitForm) Form() *huh.Form {
	return f.form
}

// Apply copies the answers into opts, keeping its Extra variables.
func (f *InitForm) Apply(opts *config.ProjectOptions) {
	opts.ProjectName = strings.TrimSpace(f.projectName)
	opts.Description = strings.TrimSpace(f.description)
	opts.Concept = strings.TrimSpace(f.concept)
	opts.Language = strings.TrimSpace(f.language)
}
