package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C) or declined to
	// continue.
	ErrAborted = errors.New("tui: aborted")
	// ErrNoChoices is returned when a required pick list came back empty.
	ErrNoChoices = errors.New("tui: nothing to choose from")
)
