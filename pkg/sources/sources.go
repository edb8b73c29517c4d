// Package sources defines the collaborators a site request form talks to:
// reference data sources, the alias validator and the persistence sink.
// Adapters live in the sub-packages.
package sources

import (
	"context"
	"errors"

	"github.com/goliatone/go-siterequest/pkg/model"
)

// ErrNotFound reports an unknown division or content type.
var ErrNotFound = errors.New("sources: not found")

// ErrConflict reports a submission refused because it clashes with stored
// state, such as an alias claimed by an earlier request.
var ErrConflict = errors.New("sources: conflict")

// DivisionSource lists the divisions a requester may choose from.
type DivisionSource interface {
	Divisions(ctx context.Context) ([]model.Division, error)
}

// SiteTemplateSource lists the templates offered for a division.
type SiteTemplateSource interface {
	SiteTemplates(ctx context.Context, divisionID string) ([]model.SiteTemplate, error)
}

// FieldSource describes the dynamic fields of a content type.
type FieldSource interface {
	Fields(ctx context.Context, contentTypeID string) ([]model.Field, error)
}

// AliasValidator reports whether an alias can be used. An error means the
// check itself failed, not that the alias is invalid.
type AliasValidator interface {
	ValidateAlias(ctx context.Context, alias string) (bool, error)
}

// Sink persists a completed request.
type Sink interface {
	Save(ctx context.Context, submission model.Submission) error
}

// Catalog bundles the three reference data sources.
type Catalog interface {
	DivisionSource
	SiteTemplateSource
	FieldSource
}

// AliasValidatorFunc adapts a function into an AliasValidator.
type AliasValidatorFunc func(ctx context.Context, alias string) (bool, error)

// ValidateAlias calls the underlying function.
func (fn AliasValidatorFunc) ValidateAlias(ctx context.Context, alias string) (bool, error) {
	return fn(ctx, alias)
}

// ChainAliasValidators returns a validator that accepts an alias only when
// every validator accepts it. Evaluation stops at the first rejection or
// error.
func ChainAliasValidators(validators ...AliasValidator) AliasValidator {
	return AliasValidatorFunc(func(ctx context.Context, alias string) (bool, error) {
		for _, v := range validators {
			if v == nil {
				continue
			}
			ok, err := v.ValidateAlias(ctx, alias)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}
