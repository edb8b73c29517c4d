// Package tui walks a requester through a site request in the terminal. The
// wizard only talks to a session.Controller; every answer flows through the
// form state store.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/formstate"
	"github.com/goliatone/go-siterequest/pkg/session"
	"github.com/goliatone/go-siterequest/pkg/validation"
)

// Wizard drives one session from division choice to submission.
type Wizard struct {
	session       *session.Controller
	driver        PromptDriver
	theme         Theme
	logger        zerolog.Logger
	policy        validation.Policy
	aliasRequired bool
}

// New constructs a wizard with defaults (survey driver, rule policy).
func New(ctrl *session.Controller, options ...Option) (*Wizard, error) {
	if ctrl == nil {
		return nil, errors.New("tui: session controller is required")
	}
	w := &Wizard{
		session: ctrl,
		logger:  zerolog.Nop(),
		policy:  validation.DefaultPolicy(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(w)
	}
	if w.driver == nil {
		w.driver = NewSurveyDriver(nil)
	}
	return w, nil
}

// Run prompts until the request is saved, the user aborts, or ctx ends. The
// final state is returned in every case.
func (w *Wizard) Run(ctx context.Context) (formstate.State, error) {
	if ctx == nil {
		return formstate.State{}, errors.New("tui: context is required")
	}
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"divisions", w.loadDivisions},
		{"division", w.chooseDivision},
		{"site template", w.chooseSiteTemplate},
		{"alias", w.chooseAlias},
		{"fields", w.collectValues},
		{"submit", w.submit},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			w.logger.Debug().Err(err).Str("step", step.name).Msg("wizard stopped")
			return w.session.State(), err
		}
	}
	return w.session.State(), nil
}

func (w *Wizard) loadDivisions(ctx context.Context) error {
	return w.withRetry(ctx, "Loading divisions failed", func() error {
		return w.session.LoadDivisions(ctx)
	})
}

func (w *Wizard) chooseDivision(ctx context.Context) error {
	for {
		divisions := w.session.State().Divisions.Items
		if len(divisions) == 0 {
			_ = w.errorf(ctx, "No divisions are available.")
			return ErrNoChoices
		}
		options := make([]string, len(divisions))
		for i, d := range divisions {
			options[i] = choiceLabel(d.Name, d.ID)
		}
		idx, err := w.pick(ctx, ChoicePrompt{Label: "Division", Options: options, Default: -1})
		if err != nil {
			return err
		}

		if err := w.session.SelectDivision(ctx, divisions[idx].ID); err != nil {
			return err
		}
		if err := w.retryFailed(ctx, "Loading site templates failed", func() error {
			return w.session.LoadSiteTemplates(ctx)
		}); err != nil {
			return err
		}
		if len(w.session.State().SiteTemplates.Items) > 0 {
			return nil
		}
		_ = w.infof(ctx, "%s offers no site templates, pick another division.", options[idx])
	}
}

func (w *Wizard) chooseSiteTemplate(ctx context.Context) error {
	templates := w.session.State().SiteTemplates.Items
	options := make([]string, len(templates))
	for i, t := range templates {
		options[i] = choiceLabel(t.Name, t.ID)
	}
	idx, err := w.pick(ctx, ChoicePrompt{Label: "Site template", Options: options, Default: -1})
	if err != nil {
		return err
	}
	if err := w.session.SelectSiteTemplate(ctx, templates[idx].ID); err != nil {
		return err
	}
	return w.retryFailed(ctx, "Loading fields failed", func() error {
		return w.session.LoadFields(ctx)
	})
}

func (w *Wizard) chooseAlias(ctx context.Context) error {
	help := "Lowercase letters, digits and hyphens."
	if !w.aliasRequired {
		help += " Leave empty to skip."
	}
	for {
		alias, err := w.driver.Text(ctx, TextPrompt{Label: "Site alias", Help: help})
		if err != nil {
			return err
		}
		alias = strings.TrimSpace(alias)
		if alias == "" {
			if w.aliasRequired {
				_ = w.errorf(ctx, "An alias is required.")
				continue
			}
			return w.session.SetAlias("")
		}

		if err := w.session.ValidateAlias(ctx, alias); err != nil {
			return err
		}
		st := w.session.State()
		switch st.Alias.Status {
		case formstate.AliasValid:
			return nil
		case formstate.AliasInvalid:
			_ = w.errorf(ctx, "Alias %q is not available.", st.Alias.Value)
		case formstate.AliasFailed:
			_ = w.errorf(ctx, "Alias check failed: %s", st.Alias.Message)
			again, err := w.driver.Confirm(ctx, ConfirmPrompt{Label: "Try another alias?", Default: true})
			if err != nil {
				return err
			}
			if !again {
				return ErrAborted
			}
		}
	}
}

func (w *Wizard) collectValues(ctx context.Context) error {
	fields := w.session.State().Fields.Items
	values := make(map[string]any, len(fields))
	for _, field := range fields {
		value, present, err := w.promptField(ctx, field)
		if err != nil {
			return err
		}
		if present {
			values[field.Name] = value
		}
	}
	valid, err := w.session.UpdateValues(values)
	if err != nil {
		return err
	}
	if !valid {
		for _, issue := range w.session.State().FieldIssues {
			_ = w.errorf(ctx, "%s: %s", issue.Field, issue.Message)
		}
		return errors.New("tui: collected values are not valid")
	}
	return nil
}

func (w *Wizard) submit(ctx context.Context) error {
	ok, err := w.driver.Confirm(ctx, ConfirmPrompt{Label: "Submit site request?", Default: true})
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	if err := w.withRetry(ctx, "Saving the request failed", func() error {
		return w.session.Submit(ctx)
	}); err != nil {
		return err
	}
	return w.infof(ctx, "Site request saved.")
}

// withRetry runs op and, while the store records a failure, offers to run it
// again.
func (w *Wizard) withRetry(ctx context.Context, failure string, op func() error) error {
	if err := op(); err != nil {
		return err
	}
	return w.retryFailed(ctx, failure, op)
}

// retryFailed offers op as a retry while the store records a failed request.
func (w *Wizard) retryFailed(ctx context.Context, failure string, op func() error) error {
	for w.session.State().Phase == formstate.PhaseFailed {
		_ = w.errorf(ctx, "%s: %s", failure, w.session.State().ErrorMessage)
		again, err := w.driver.Confirm(ctx, ConfirmPrompt{Label: "Retry?", Default: true})
		if err != nil {
			return err
		}
		if !again {
			return ErrAborted
		}
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wizard) pick(ctx context.Context, p ChoicePrompt) (int, error) {
	for {
		idx, err := w.driver.Choose(ctx, p)
		if err != nil {
			return -1, err
		}
		if idx >= 0 && idx < len(p.Options) {
			return idx, nil
		}
		_ = w.errorf(ctx, "Invalid %s selection", strings.ToLower(p.Label))
	}
}

func (w *Wizard) infof(ctx context.Context, format string, args ...any) error {
	return w.driver.Notify(ctx, w.theme.InfoPrefix+fmt.Sprintf(format, args...))
}

func (w *Wizard) errorf(ctx context.Context, format string, args ...any) error {
	return w.driver.Notify(ctx, w.theme.ErrorPrefix+fmt.Sprintf(format, args...))
}

func choiceLabel(name, id string) string {
	if name == "" || name == id {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}
