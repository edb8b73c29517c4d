package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/formstate"
	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
	"github.com/goliatone/go-siterequest/pkg/validation"
)

type requestKind string

const (
	kindDivisions     requestKind = "divisions"
	kindSiteTemplates requestKind = "site_templates"
	kindFields        requestKind = "fields"
	kindAlias         requestKind = "alias"
	kindSave          requestKind = "save"
)

// Sources bundles the collaborators of a Controller. Aliases is optional;
// without it only the alias format is checked.
type Sources struct {
	Divisions     sources.DivisionSource
	SiteTemplates sources.SiteTemplateSource
	Fields        sources.FieldSource
	Aliases       sources.AliasValidator
	Sink          sources.Sink
}

// FromCatalog fills the reference data sources from a single catalog.
func FromCatalog(catalog sources.Catalog, aliases sources.AliasValidator, sink sources.Sink) Sources {
	return Sources{
		Divisions:     catalog,
		SiteTemplates: catalog,
		Fields:        catalog,
		Aliases:       aliases,
		Sink:          sink,
	}
}

func (s Sources) validate() error {
	var missing []error
	if s.Divisions == nil {
		missing = append(missing, errors.New("division source is required"))
	}
	if s.SiteTemplates == nil {
		missing = append(missing, errors.New("site template source is required"))
	}
	if s.Fields == nil {
		missing = append(missing, errors.New("field source is required"))
	}
	if s.Sink == nil {
		missing = append(missing, errors.New("sink is required"))
	}
	return errors.Join(missing...)
}

// Option customises the controller.
type Option func(*Controller)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithStore drives an existing store instead of a fresh one, letting callers
// register subscribers and policies up front.
func WithStore(store *formstate.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// Controller runs one site request form.
type Controller struct {
	src    Sources
	store  *formstate.Store
	logger zerolog.Logger

	mu     sync.Mutex
	tokens map[requestKind]uuid.UUID
	values map[string]any
}

// New constructs a Controller.
func New(src Sources, options ...Option) (*Controller, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		src:    src,
		logger: zerolog.Nop(),
		tokens: make(map[requestKind]uuid.UUID),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	if c.store == nil {
		c.store = formstate.New(formstate.WithLogger(c.logger))
	}
	return c, nil
}

// Store exposes the underlying store.
func (c *Controller) Store() *formstate.Store {
	return c.store
}

// State returns a snapshot of the form state.
func (c *Controller) State() formstate.State {
	return c.store.State()
}

// Values returns a copy of the current field values.
func (c *Controller) Values() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneValues(c.values)
}

// LoadDivisions fetches the division list.
func (c *Controller) LoadDivisions(ctx context.Context) error {
	token, err := c.begin(kindDivisions, func() error {
		return c.store.BeginLoadingDivisions()
	})
	if err != nil {
		return err
	}
	items, fetchErr := c.src.Divisions.Divisions(ctx)
	fetchErr = settle(ctx, fetchErr)
	return c.finish(ctx, kindDivisions, token, func() error {
		if fetchErr != nil {
			return c.store.LoadDivisionsFailed(fetchErr.Error())
		}
		return c.store.LoadDivisionsSucceeded(items)
	})
}

// SelectDivision selects a division and loads its site templates.
func (c *Controller) SelectDivision(ctx context.Context, id string) error {
	c.mu.Lock()
	err := c.store.SelectDivision(id)
	if err == nil {
		c.invalidate(kindSiteTemplates, kindFields)
		c.values = nil
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.LoadSiteTemplates(ctx)
}

// LoadSiteTemplates fetches the templates of the selected division. It also
// retries a failed template load.
func (c *Controller) LoadSiteTemplates(ctx context.Context) error {
	var division string
	token, err := c.begin(kindSiteTemplates, func() error {
		if err := c.store.BeginLoadingSiteTemplates(); err != nil {
			return err
		}
		division = c.store.State().SelectedDivision
		return nil
	})
	if err != nil {
		return err
	}
	items, fetchErr := c.src.SiteTemplates.SiteTemplates(ctx, division)
	fetchErr = settle(ctx, fetchErr)
	return c.finish(ctx, kindSiteTemplates, token, func() error {
		if fetchErr != nil {
			return c.store.LoadSiteTemplatesFailed(fetchErr.Error())
		}
		return c.store.LoadSiteTemplatesSucceeded(items)
	})
}

// SelectSiteTemplate selects a template and loads the fields of its content
// type.
func (c *Controller) SelectSiteTemplate(ctx context.Context, id string) error {
	c.mu.Lock()
	err := c.store.SelectSiteTemplate(id)
	if err == nil {
		c.invalidate(kindFields)
		c.values = nil
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.LoadFields(ctx)
}

// LoadFields fetches the field descriptors of the selected content type.
func (c *Controller) LoadFields(ctx context.Context) error {
	var contentType string
	token, err := c.begin(kindFields, func() error {
		if err := c.store.BeginLoadingFields(); err != nil {
			return err
		}
		contentType = c.store.State().ContentTypeID
		return nil
	})
	if err != nil {
		return err
	}
	fields, fetchErr := c.src.Fields.Fields(ctx, contentType)
	fetchErr = settle(ctx, fetchErr)
	return c.finish(ctx, kindFields, token, func() error {
		if fetchErr != nil {
			return c.store.LoadFieldsFailed(fetchErr.Error())
		}
		return c.store.LoadFieldsSucceeded(fields)
	})
}

// SetAlias records an alias without checking it.
func (c *Controller) SetAlias(alias string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.SetAlias(alias); err != nil {
		return err
	}
	c.invalidate(kindAlias)
	return nil
}

// ValidateAlias records alias and checks it. Malformed aliases are rejected
// without consulting the validator.
func (c *Controller) ValidateAlias(ctx context.Context, alias string) error {
	var value string
	token, err := c.begin(kindAlias, func() error {
		if err := c.store.SetAlias(alias); err != nil {
			return err
		}
		c.invalidate(kindAlias)
		if err := c.store.BeginValidatingAlias(); err != nil {
			return err
		}
		value = c.store.State().Alias.Value
		return nil
	})
	if err != nil {
		return err
	}

	valid, checkErr := c.checkAlias(ctx, value)
	checkErr = settle(ctx, checkErr)
	return c.finish(ctx, kindAlias, token, func() error {
		if checkErr != nil {
			return c.store.AliasValidationFailed(checkErr.Error())
		}
		return c.store.AliasValidationSucceeded(valid)
	})
}

func (c *Controller) checkAlias(ctx context.Context, alias string) (bool, error) {
	if validation.ValidateAliasFormat(alias) != nil {
		return false, nil
	}
	if c.src.Aliases == nil {
		return true, nil
	}
	return c.src.Aliases.ValidateAlias(ctx, alias)
}

// UpdateValues replaces the field values and reports whether they satisfy
// the loaded fields. The issues are recorded in the state. While a save is
// in flight the values are kept and the store's rejection is returned.
func (c *Controller) UpdateValues(values map[string]any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := cloneValues(values)
	valid, err := c.store.ComputeFieldsValid(next)
	if err != nil {
		return false, err
	}
	c.values = next
	return valid, nil
}

// Submit sanitizes the values, re-validates them and hands the request to
// the sink. A refused Submit leaves the state as it was. A sink failure is
// recorded in the state and may be retried.
func (c *Controller) Submit(ctx context.Context) error {
	var submission model.Submission
	token, err := c.begin(kindSave, func() error {
		clean := validation.SanitizeValues(c.values)
		if err := c.store.BeginSaveWith(clean); err != nil {
			return err
		}
		c.values = clean
		st := c.store.State()
		submission = model.Submission{
			Division:      st.SelectedDivision,
			SiteTemplate:  st.SelectedSiteTemplate,
			ContentTypeID: st.ContentTypeID,
			Alias:         st.Alias.Value,
			Values:        cloneValues(clean),
		}
		return nil
	})
	if err != nil {
		return err
	}

	saveErr := settle(ctx, c.src.Sink.Save(ctx, submission))
	return c.finish(ctx, kindSave, token, func() error {
		if saveErr != nil {
			return c.store.SaveFailed(saveErr.Error())
		}
		return c.store.SaveSucceeded()
	})
}

// Reset abandons every request in flight and clears the form.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.tokens)
	c.values = nil
	c.store.Reset()
}

func (c *Controller) begin(kind requestKind, start func() error) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := start(); err != nil {
		return uuid.Nil, err
	}
	token := uuid.New()
	c.tokens[kind] = token
	c.logger.Debug().Str("request", string(kind)).Str("token", token.String()).Msg("request started")
	return token, nil
}

// finish reports a completion unless it was superseded. Cancellation is
// recorded as a failure first and then returned.
func (c *Controller) finish(ctx context.Context, kind requestKind, token uuid.UUID, report func() error) error {
	c.mu.Lock()
	current, ok := c.tokens[kind]
	if !ok || current != token {
		c.mu.Unlock()
		c.logger.Debug().Str("request", string(kind)).Str("token", token.String()).Msg("discarding stale completion")
		return ctx.Err()
	}
	delete(c.tokens, kind)
	err := report()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("request", string(kind)).Msg("completion rejected")
		return err
	}
	return ctx.Err()
}

// settle treats a cancelled context as a failure even when the collaborator
// ignored it.
func settle(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Controller) invalidate(kinds ...requestKind) {
	for _, kind := range kinds {
		delete(c.tokens, kind)
	}
}

func cloneValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
