// Package session wires a formstate.Store to division, template and field
// sources, an alias validator and a persistence sink.
//
// Every request the controller starts carries a token. A completion whose
// token was superseded, by a new selection, a new request of the same kind or
// a reset, is dropped instead of reaching the store. Failures reported by the
// collaborators are recorded in the state; errors returned by the controller
// are misuse (ErrInvalidTransition) or context cancellation.
package session
