package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// TextKind selects how a free text answer is collected.
type TextKind int

const (
	TextLine TextKind = iota
	TextSecret
	TextMultiline
)

// TextPrompt asks for a free text answer.
type TextPrompt struct {
	Label   string
	Help    string
	Default string
	Kind    TextKind
}

// ConfirmPrompt asks a yes/no question.
type ConfirmPrompt struct {
	Label   string
	Help    string
	Default bool
}

// ChoicePrompt offers a list of labels. Default is an index into Options, or
// -1 for no preselection.
type ChoicePrompt struct {
	Label   string
	Help    string
	Options []string
	Default int
}

// PromptDriver is everything the wizard needs from a terminal. Tests script
// it; the CLI uses NewSurveyDriver.
type PromptDriver interface {
	Text(ctx context.Context, p TextPrompt) (string, error)
	Confirm(ctx context.Context, p ConfirmPrompt) (bool, error)
	Choose(ctx context.Context, p ChoicePrompt) (int, error)
	ChooseMany(ctx context.Context, p ChoicePrompt) ([]int, error)
	Notify(ctx context.Context, msg string) error
}

type surveyDriver struct {
	out io.Writer
}

// NewSurveyDriver prompts on the process terminal. Notices go to out, or
// stdout when out is nil.
func NewSurveyDriver(out io.Writer) PromptDriver {
	if out == nil {
		out = os.Stdout
	}
	return &surveyDriver{out: out}
}

func (d *surveyDriver) Text(ctx context.Context, p TextPrompt) (string, error) {
	var prompt survey.Prompt
	switch p.Kind {
	case TextSecret:
		// survey never echoes a default for secrets.
		prompt = &survey.Password{Message: p.Label, Help: p.Help}
	case TextMultiline:
		prompt = &survey.Multiline{Message: p.Label, Help: p.Help, Default: p.Default}
	default:
		prompt = &survey.Input{Message: p.Label, Help: p.Help, Default: p.Default}
	}
	var answer string
	if err := askOne(ctx, prompt, &answer); err != nil {
		return "", err
	}
	return answer, nil
}

func (d *surveyDriver) Confirm(ctx context.Context, p ConfirmPrompt) (bool, error) {
	var answer bool
	err := askOne(ctx, &survey.Confirm{Message: p.Label, Help: p.Help, Default: p.Default}, &answer)
	return answer, err
}

func (d *surveyDriver) Choose(ctx context.Context, p ChoicePrompt) (int, error) {
	if len(p.Options) == 0 {
		return -1, ErrNoChoices
	}
	prompt := &survey.Select{Message: p.Label, Help: p.Help, Options: p.Options}
	if p.Default >= 0 && p.Default < len(p.Options) {
		prompt.Default = p.Options[p.Default]
	}
	var answer string
	if err := askOne(ctx, prompt, &answer); err != nil {
		return -1, err
	}
	return indexOf(p.Options, answer), nil
}

func (d *surveyDriver) ChooseMany(ctx context.Context, p ChoicePrompt) ([]int, error) {
	if len(p.Options) == 0 {
		return nil, ErrNoChoices
	}
	var answers []string
	if err := askOne(ctx, &survey.MultiSelect{Message: p.Label, Help: p.Help, Options: p.Options}, &answers); err != nil {
		return nil, err
	}
	picked := make([]int, 0, len(answers))
	for _, answer := range answers {
		if idx := indexOf(p.Options, answer); idx >= 0 {
			picked = append(picked, idx)
		}
	}
	return picked, nil
}

func (d *surveyDriver) Notify(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}

// askOne refuses to prompt once ctx is done; survey itself cannot be
// interrupted mid-question.
func askOne(ctx context.Context, prompt survey.Prompt, response any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return promptErr(survey.AskOne(prompt, response))
}

// promptErr maps Ctrl+C and a closed stdin to ErrAborted.
func promptErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, terminal.InterruptErr), errors.Is(err, io.EOF):
		return ErrAborted
	default:
		return err
	}
}

func indexOf(options []string, value string) int {
	for i, option := range options {
		if option == value {
			return i
		}
	}
	return -1
}
