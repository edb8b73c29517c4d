package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/AlecAivazis/survey/v2/terminal"
)

func TestSurveyDriver_EmptyChoices(t *testing.T) {
	d := NewSurveyDriver(io.Discard)
	ctx := context.Background()

	if idx, err := d.Choose(ctx, ChoicePrompt{Label: "Division", Default: -1}); !errors.Is(err, ErrNoChoices) || idx != -1 {
		t.Fatalf("expected ErrNoChoices and -1, got %d %v", idx, err)
	}
	if picked, err := d.ChooseMany(ctx, ChoicePrompt{Label: "Regions"}); !errors.Is(err, ErrNoChoices) || picked != nil {
		t.Fatalf("expected ErrNoChoices, got %v %v", picked, err)
	}
}

func TestSurveyDriver_CancelledContext(t *testing.T) {
	d := NewSurveyDriver(io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Text(ctx, TextPrompt{Label: "Site alias"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("text: expected context.Canceled, got %v", err)
	}
	if _, err := d.Confirm(ctx, ConfirmPrompt{Label: "Submit?"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("confirm: expected context.Canceled, got %v", err)
	}
	if _, err := d.Choose(ctx, ChoicePrompt{Label: "Division", Options: []string{"ops"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("choose: expected context.Canceled, got %v", err)
	}
	if err := d.Notify(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("notify: expected context.Canceled, got %v", err)
	}
}

func TestSurveyDriver_Notify(t *testing.T) {
	var out bytes.Buffer
	if err := NewSurveyDriver(&out).Notify(context.Background(), "Site request saved."); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if out.String() != "Site request saved.\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestPromptErr(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{terminal.InterruptErr, ErrAborted},
		{fmt.Errorf("read: %w", io.EOF), ErrAborted},
		{boom, boom},
	}
	for _, tc := range cases {
		if got := promptErr(tc.in); !errors.Is(got, tc.want) || (tc.want == nil && got != nil) {
			t.Fatalf("promptErr(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
