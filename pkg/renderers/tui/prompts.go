package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-siterequest/pkg/model"
)

// promptField asks for one value, looping until the policy accepts it. The
// second result is false when an optional field was left empty.
func (w *Wizard) promptField(ctx context.Context, field model.Field) (any, bool, error) {
	for {
		value, present, err := w.ask(ctx, field)
		if err != nil {
			return nil, false, err
		}
		candidate := map[string]any{}
		if present {
			candidate[field.Name] = value
		}
		result := w.policy.Validate([]model.Field{field}, candidate)
		if result.Valid {
			return value, present, nil
		}
		for _, issue := range result.Issues {
			_ = w.errorf(ctx, "Invalid %s: %s", field.DisplayLabel(), issue.Message)
		}
	}
}

func (w *Wizard) ask(ctx context.Context, field model.Field) (any, bool, error) {
	switch field.Type {
	case model.FieldTypeBoolean:
		return w.askBoolean(ctx, field)
	case model.FieldTypeInteger, model.FieldTypeNumber:
		return w.askNumber(ctx, field)
	case model.FieldTypeArray:
		return w.askList(ctx, field)
	default:
		if len(field.Enum) > 0 {
			return w.askChoice(ctx, field)
		}
		return w.askText(ctx, field)
	}
}

func (w *Wizard) askText(ctx context.Context, field model.Field) (any, bool, error) {
	prompt := TextPrompt{
		Label:   field.DisplayLabel(),
		Default: defaultString(field.Default),
		Help:    field.Description,
	}
	switch field.Metadata["format"] {
	case "password":
		prompt.Kind = TextSecret
		prompt.Default = ""
	case "textarea":
		prompt.Kind = TextMultiline
	}
	response, err := w.driver.Text(ctx, prompt)
	if err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(response) == "" {
		return nil, false, nil
	}
	return response, true, nil
}

func (w *Wizard) askBoolean(ctx context.Context, field model.Field) (any, bool, error) {
	def, _ := field.Default.(bool)
	resp, err := w.driver.Confirm(ctx, ConfirmPrompt{
		Label:   field.DisplayLabel(),
		Default: def,
		Help:    field.Description,
	})
	if err != nil {
		return nil, false, err
	}
	return resp, true, nil
}

func (w *Wizard) askNumber(ctx context.Context, field model.Field) (any, bool, error) {
	for {
		input, err := w.driver.Text(ctx, TextPrompt{
			Label:   field.DisplayLabel(),
			Default: defaultString(field.Default),
			Help:    field.Description,
		})
		if err != nil {
			return nil, false, err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			return nil, false, nil
		}
		if field.Type == model.FieldTypeInteger {
			i, err := strconv.ParseInt(input, 10, 64)
			if err != nil {
				_ = w.errorf(ctx, "Invalid %s: expected a whole number", field.DisplayLabel())
				continue
			}
			return i, true, nil
		}
		f, err := strconv.ParseFloat(input, 64)
		if err != nil {
			_ = w.errorf(ctx, "Invalid %s: expected a number", field.DisplayLabel())
			continue
		}
		return f, true, nil
	}
}

func (w *Wizard) askChoice(ctx context.Context, field model.Field) (any, bool, error) {
	options := stringifyEnum(field.Enum)
	idx, err := w.pick(ctx, ChoicePrompt{
		Label:   field.DisplayLabel(),
		Options: options,
		Default: indexOf(options, defaultString(field.Default)),
		Help:    field.Description,
	})
	if err != nil {
		return nil, false, err
	}
	return field.Enum[idx], true, nil
}

// askList uses a multi-select for enum-backed lists and a comma separated
// input otherwise.
func (w *Wizard) askList(ctx context.Context, field model.Field) (any, bool, error) {
	if len(field.Enum) > 0 {
		options := stringifyEnum(field.Enum)
		indices, err := w.driver.ChooseMany(ctx, ChoicePrompt{
			Label:   field.DisplayLabel(),
			Options: options,
			Help:    field.Description,
		})
		if err != nil {
			return nil, false, err
		}
		if len(indices) == 0 {
			return nil, false, nil
		}
		selected := make([]any, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(field.Enum) {
				selected = append(selected, field.Enum[idx])
			}
		}
		return selected, true, nil
	}

	input, err := w.driver.Text(ctx, TextPrompt{
		Label: field.DisplayLabel(),
		Help:  strings.TrimSpace(field.Description + " Separate entries with commas."),
	})
	if err != nil {
		return nil, false, err
	}
	var items []any
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return items, true, nil
}

func defaultString(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func stringifyEnum(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
