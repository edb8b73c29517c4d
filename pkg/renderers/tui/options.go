package tui

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/validation"
)

// Theme captures optional prefixes the wizard applies when printing messages.
// Keep minimal to avoid coupling wizard logic to ANSI specifics.
type Theme struct {
	InfoPrefix  string
	ErrorPrefix string
}

// Option configures the wizard.
type Option func(*Wizard)

// WithPromptDriver overrides the prompt driver used by the wizard.
func WithPromptDriver(driver PromptDriver) Option {
	return func(w *Wizard) {
		if driver != nil {
			w.driver = driver
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(w *Wizard) {
		w.theme = theme
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Wizard) {
		w.logger = logger
	}
}

// WithAliasRequired keeps asking for an alias until one is accepted instead
// of allowing the step to be skipped.
func WithAliasRequired(required bool) Option {
	return func(w *Wizard) {
		w.aliasRequired = required
	}
}

// WithPolicy overrides the policy used to give feedback on each answer. It
// should match the policy of the store the session drives.
func WithPolicy(policy validation.Policy) Option {
	return func(w *Wizard) {
		if policy != nil {
			w.policy = policy
		}
	}
}
