// Package formstate holds the state of a site request form: cascading
// division and site template selections, the dynamic fields of the selected
// content type, alias validation, and submission status.
//
// The request lifecycle is a single Phase (idle, one of three loads, saving,
// failed, saved) so a load and a save can never be in flight together, and a
// failure always carries its message. Alias validation runs on its own
// AliasState next to the phase. The flat flag record rendering layers expect
// (isLoading, hasError, divisionsLoaded, ...) is derived through State.View.
//
// Each asynchronous request is modelled as a begin/succeeded/failed triplet.
// Completions that do not match the request in flight are rejected with
// ErrInvalidTransition and leave the state unchanged. The store carries no
// request tokens: callers discard stale completions before reporting them
// (see pkg/session).
package formstate
