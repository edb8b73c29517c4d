package formstate

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/validation"
)

// RejectHook observes operations refused with ErrInvalidTransition.
type RejectHook func(op string, err error)

// Option configures the Store.
type Option func(*Store)

// WithLogger attaches a logger. Transitions log at debug level, rejected
// operations at warn level.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPolicy overrides the policy used by ComputeFieldsValid.
func WithPolicy(policy validation.Policy) Option {
	return func(s *Store) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithAliasRequired makes BeginSave demand a positively validated alias.
// Without it an alias only blocks saving while it is being checked or after
// it was found invalid.
func WithAliasRequired(required bool) Option {
	return func(s *Store) {
		s.aliasRequired = required
	}
}

// WithRejectHook registers a callback for refused operations.
func WithRejectHook(hook RejectHook) Option {
	return func(s *Store) {
		if hook != nil {
			s.rejectHooks = append(s.rejectHooks, hook)
		}
	}
}

// WithSubscriber registers a subscriber at construction time.
func WithSubscriber(fn func(Change)) Option {
	return func(s *Store) {
		if fn != nil {
			s.addSubscriber(fn)
		}
	}
}
