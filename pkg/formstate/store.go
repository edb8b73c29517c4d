package formstate

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/validation"
)

// Operation names carried by Change notifications and reject hooks.
const (
	OpBeginLoadingDivisions      = "begin_loading_divisions"
	OpLoadDivisionsSucceeded     = "load_divisions_succeeded"
	OpLoadDivisionsFailed        = "load_divisions_failed"
	OpBeginLoadingSiteTemplates  = "begin_loading_site_templates"
	OpLoadSiteTemplatesSucceeded = "load_site_templates_succeeded"
	OpLoadSiteTemplatesFailed    = "load_site_templates_failed"
	OpBeginLoadingFields         = "begin_loading_fields"
	OpLoadFieldsSucceeded        = "load_fields_succeeded"
	OpLoadFieldsFailed           = "load_fields_failed"
	OpSelectDivision             = "select_division"
	OpSelectSiteTemplate         = "select_site_template"
	OpClearSiteTemplate          = "clear_site_template"
	OpSetAlias                   = "set_alias"
	OpBeginValidatingAlias       = "begin_validating_alias"
	OpAliasValidationSucceeded   = "alias_validation_succeeded"
	OpAliasValidationFailed      = "alias_validation_failed"
	OpComputeFieldsValid         = "compute_fields_valid"
	OpBeginSave                  = "begin_save"
	OpSaveSucceeded              = "save_succeeded"
	OpSaveFailed                 = "save_failed"
	OpReset                      = "reset"
)

const (
	defaultDivisionsError     = "failed to load divisions"
	defaultSiteTemplatesError = "failed to load site templates"
	defaultFieldsError        = "failed to load fields"
	defaultAliasError         = "alias validation failed"
	defaultSaveError          = "failed to save request"
)

// Change is delivered to subscribers after every committed mutation.
type Change struct {
	Op    string
	State State
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// Store is the single source of truth for one form instance. Mutations are
// serialized; each committed mutation notifies subscribers exactly once, in
// commit order, before the mutating call returns. Subscribers may read the
// store but must not mutate it from inside the callback.
type Store struct {
	dispatchMu sync.Mutex
	mu         sync.Mutex

	state       State
	subscribers []subscriber
	nextID      uint64

	logger        zerolog.Logger
	policy        validation.Policy
	aliasRequired bool
	rejectHooks   []RejectHook
}

// New constructs a Store holding the initial state.
func New(options ...Option) *Store {
	s := &Store{
		state:  Initial(),
		logger: zerolog.Nop(),
		policy: validation.DefaultPolicy(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn for change notifications and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.addSubscriberLocked(fn)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) addSubscriber(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addSubscriberLocked(fn)
}

func (s *Store) addSubscriberLocked(fn func(Change)) uint64 {
	s.nextID++
	s.subscribers = append(s.subscribers, subscriber{id: s.nextID, fn: fn})
	return s.nextID
}

// BeginLoadingDivisions starts a division fetch.
func (s *Store) BeginLoadingDivisions() error {
	return s.apply(OpBeginLoadingDivisions, func(st *State) error {
		if err := requireIdleRequest(OpBeginLoadingDivisions, st); err != nil {
			return err
		}
		st.Phase = PhaseLoadingDivisions
		st.ErrorMessage = ""
		return nil
	})
}

// LoadDivisionsSucceeded stores the fetched divisions. A selected division
// that is no longer offered is dropped together with everything downstream.
func (s *Store) LoadDivisionsSucceeded(items []model.Division) error {
	return s.apply(OpLoadDivisionsSucceeded, func(st *State) error {
		if err := requirePhase(OpLoadDivisionsSucceeded, st, PhaseLoadingDivisions); err != nil {
			return err
		}
		st.Divisions = loaded(cloneSlice(items))
		if st.SelectedDivision != "" {
			if _, ok := st.Division(st.SelectedDivision); !ok {
				st.SelectedDivision = ""
				clearSiteTemplates(st)
			}
		}
		st.Phase = PhaseIdle
		st.ErrorMessage = ""
		return nil
	})
}

// LoadDivisionsFailed records a failed division fetch.
func (s *Store) LoadDivisionsFailed(message string) error {
	return s.fail(OpLoadDivisionsFailed, PhaseLoadingDivisions, message, defaultDivisionsError)
}

// BeginLoadingSiteTemplates starts a template fetch for the selected division.
func (s *Store) BeginLoadingSiteTemplates() error {
	return s.apply(OpBeginLoadingSiteTemplates, func(st *State) error {
		if err := requireIdleRequest(OpBeginLoadingSiteTemplates, st); err != nil {
			return err
		}
		if st.SelectedDivision == "" {
			return invalid(OpBeginLoadingSiteTemplates, st, "no division selected")
		}
		st.Phase = PhaseLoadingSiteTemplates
		st.ErrorMessage = ""
		return nil
	})
}

// LoadSiteTemplatesSucceeded stores the templates offered for the selected
// division. A template selection survives only if the template is still
// offered with the same content type.
func (s *Store) LoadSiteTemplatesSucceeded(items []model.SiteTemplate) error {
	return s.apply(OpLoadSiteTemplatesSucceeded, func(st *State) error {
		if err := requirePhase(OpLoadSiteTemplatesSucceeded, st, PhaseLoadingSiteTemplates); err != nil {
			return err
		}
		st.SiteTemplates = loaded(cloneSlice(items))
		if st.SelectedSiteTemplate != "" {
			item, ok := st.SiteTemplate(st.SelectedSiteTemplate)
			if !ok || item.ContentTypeID != st.ContentTypeID {
				clearSiteTemplateSelection(st)
			}
		}
		st.Phase = PhaseIdle
		st.ErrorMessage = ""
		return nil
	})
}

// LoadSiteTemplatesFailed records a failed template fetch.
func (s *Store) LoadSiteTemplatesFailed(message string) error {
	return s.fail(OpLoadSiteTemplatesFailed, PhaseLoadingSiteTemplates, message, defaultSiteTemplatesError)
}

// BeginLoadingFields starts a field schema fetch for the current content type.
func (s *Store) BeginLoadingFields() error {
	return s.apply(OpBeginLoadingFields, func(st *State) error {
		if err := requireIdleRequest(OpBeginLoadingFields, st); err != nil {
			return err
		}
		if st.ContentTypeID == "" {
			return invalid(OpBeginLoadingFields, st, "no content type selected")
		}
		st.Phase = PhaseLoadingFields
		st.ErrorMessage = ""
		return nil
	})
}

// LoadFieldsSucceeded stores the field descriptors. Previously computed
// validity no longer applies and is reset.
func (s *Store) LoadFieldsSucceeded(fields []model.Field) error {
	return s.apply(OpLoadFieldsSucceeded, func(st *State) error {
		if err := requirePhase(OpLoadFieldsSucceeded, st, PhaseLoadingFields); err != nil {
			return err
		}
		st.Fields = loaded(model.CloneFields(fields))
		st.FieldsValid = false
		st.FieldIssues = nil
		st.Phase = PhaseIdle
		st.ErrorMessage = ""
		return nil
	})
}

// LoadFieldsFailed records a failed field schema fetch.
func (s *Store) LoadFieldsFailed(message string) error {
	return s.fail(OpLoadFieldsFailed, PhaseLoadingFields, message, defaultFieldsError)
}

// SelectDivision selects a division and invalidates every downstream choice.
// A template or field fetch still in flight is abandoned; its completion will
// be rejected.
func (s *Store) SelectDivision(id string) error {
	return s.apply(OpSelectDivision, func(st *State) error {
		if err := requireEditable(OpSelectDivision, st); err != nil {
			return err
		}
		if strings.TrimSpace(id) == "" {
			return invalid(OpSelectDivision, st, "division id is required")
		}
		if !st.Divisions.Loaded {
			return invalid(OpSelectDivision, st, "divisions are not loaded")
		}
		if st.Phase == PhaseLoadingSiteTemplates || st.Phase == PhaseLoadingFields {
			st.Phase = PhaseIdle
		}
		st.SelectedDivision = id
		clearSiteTemplates(st)
		return nil
	})
}

// SelectSiteTemplate selects one of the loaded templates and derives the
// content type from it. Loaded fields are discarded.
func (s *Store) SelectSiteTemplate(id string) error {
	return s.apply(OpSelectSiteTemplate, func(st *State) error {
		if err := requireEditable(OpSelectSiteTemplate, st); err != nil {
			return err
		}
		if !st.SiteTemplates.Loaded {
			return invalid(OpSelectSiteTemplate, st, "site templates are not loaded")
		}
		item, ok := st.SiteTemplate(id)
		if !ok {
			return invalid(OpSelectSiteTemplate, st, "site template "+id+" is not offered")
		}
		if st.Phase == PhaseLoadingFields {
			st.Phase = PhaseIdle
		}
		st.SelectedSiteTemplate = item.ID
		st.ContentTypeID = item.ContentTypeID
		clearFields(st)
		return nil
	})
}

// ClearSiteTemplate drops the template selection and the content type
// derived from it.
func (s *Store) ClearSiteTemplate() error {
	return s.apply(OpClearSiteTemplate, func(st *State) error {
		if err := requireEditable(OpClearSiteTemplate, st); err != nil {
			return err
		}
		if st.Phase == PhaseLoadingFields {
			st.Phase = PhaseIdle
		}
		clearSiteTemplateSelection(st)
		return nil
	})
}

// SetAlias records the alias typed by the user. Its validity returns to
// unchecked; a check still in flight is abandoned.
func (s *Store) SetAlias(alias string) error {
	return s.apply(OpSetAlias, func(st *State) error {
		if err := requireEditable(OpSetAlias, st); err != nil {
			return err
		}
		st.Alias = AliasState{Value: strings.TrimSpace(alias), Status: AliasUnchecked}
		return nil
	})
}

// BeginValidatingAlias starts an alias check. It runs alongside loads.
func (s *Store) BeginValidatingAlias() error {
	return s.apply(OpBeginValidatingAlias, func(st *State) error {
		if err := requireEditable(OpBeginValidatingAlias, st); err != nil {
			return err
		}
		if st.Alias.Value == "" {
			return invalid(OpBeginValidatingAlias, st, "alias is empty")
		}
		if st.Alias.Status == AliasValidating {
			return invalid(OpBeginValidatingAlias, st, "alias check already in flight")
		}
		st.Alias.Status = AliasValidating
		st.Alias.Message = ""
		return nil
	})
}

// AliasValidationSucceeded records the validator verdict.
func (s *Store) AliasValidationSucceeded(valid bool) error {
	return s.apply(OpAliasValidationSucceeded, func(st *State) error {
		if st.Alias.Status != AliasValidating {
			return invalid(OpAliasValidationSucceeded, st, "no alias check in flight")
		}
		if valid {
			st.Alias.Status = AliasValid
		} else {
			st.Alias.Status = AliasInvalid
		}
		return nil
	})
}

// AliasValidationFailed records that the validator itself failed.
func (s *Store) AliasValidationFailed(message string) error {
	return s.apply(OpAliasValidationFailed, func(st *State) error {
		if st.Alias.Status != AliasValidating {
			return invalid(OpAliasValidationFailed, st, "no alias check in flight")
		}
		st.Alias.Status = AliasFailed
		st.Alias.Message = messageOr(message, defaultAliasError)
		return nil
	})
}

// ValidateFields evaluates values against the loaded fields without touching
// the state.
func (s *Store) ValidateFields(values map[string]any) validation.Result {
	s.mu.Lock()
	fields := s.state.Fields
	s.mu.Unlock()
	return s.evaluate(fields, values)
}

// ComputeFieldsValid evaluates values against the loaded fields, records the
// verdict and its issues, and returns the verdict. Like every other edit it
// is refused while saving and moves a saved form back to Idle.
func (s *Store) ComputeFieldsValid(values map[string]any) (bool, error) {
	var valid bool
	err := s.apply(OpComputeFieldsValid, func(st *State) error {
		if err := requireEditable(OpComputeFieldsValid, st); err != nil {
			return err
		}
		result := s.evaluate(st.Fields, values)
		st.FieldsValid = result.Valid
		st.FieldIssues = result.Issues
		valid = result.Valid
		return nil
	})
	return valid, err
}

func (s *Store) evaluate(fields Collection[model.Field], values map[string]any) validation.Result {
	if !fields.Loaded {
		return validation.Result{Issues: []validation.Issue{{Message: "fields are not loaded"}}}
	}
	return s.policy.Validate(fields.Items, values)
}

// BeginSave starts persisting the request. Fields must be valid, no request
// may be in flight, and the alias must not be pending or rejected.
func (s *Store) BeginSave() error {
	return s.apply(OpBeginSave, s.startSave)
}

// BeginSaveWith re-validates values and starts the save in one step. When
// the save is refused the recorded verdict and issues are left untouched.
func (s *Store) BeginSaveWith(values map[string]any) error {
	return s.apply(OpBeginSave, func(st *State) error {
		result := s.evaluate(st.Fields, values)
		st.FieldsValid = result.Valid
		st.FieldIssues = result.Issues
		return s.startSave(st)
	})
}

func (s *Store) startSave(st *State) error {
	if err := requireIdleRequest(OpBeginSave, st); err != nil {
		return err
	}
	if !st.FieldsValid {
		return invalid(OpBeginSave, st, "fields are not valid")
	}
	switch st.Alias.Status {
	case AliasValidating:
		return invalid(OpBeginSave, st, "alias check in flight")
	case AliasInvalid, AliasFailed:
		return invalid(OpBeginSave, st, "alias is not valid")
	case AliasUnchecked:
		if s.aliasRequired {
			return invalid(OpBeginSave, st, "alias has not been validated")
		}
	}
	st.Phase = PhaseSaving
	st.ErrorMessage = ""
	return nil
}

// SaveSucceeded records a persisted request.
func (s *Store) SaveSucceeded() error {
	return s.apply(OpSaveSucceeded, func(st *State) error {
		if err := requirePhase(OpSaveSucceeded, st, PhaseSaving); err != nil {
			return err
		}
		st.Phase = PhaseSaved
		st.ErrorMessage = ""
		return nil
	})
}

// SaveFailed records a failed save. The form stays editable and saving may be
// retried.
func (s *Store) SaveFailed(message string) error {
	return s.fail(OpSaveFailed, PhaseSaving, message, defaultSaveError)
}

// Reset returns the form to its initial state, abandoning anything in flight.
func (s *Store) Reset() {
	_ = s.apply(OpReset, func(st *State) error {
		*st = Initial()
		return nil
	})
}

func (s *Store) fail(op string, want Phase, message, fallback string) error {
	return s.apply(op, func(st *State) error {
		if err := requirePhase(op, st, want); err != nil {
			return err
		}
		st.Phase = PhaseFailed
		st.ErrorMessage = messageOr(message, fallback)
		return nil
	})
}

func (s *Store) apply(op string, mutate func(*State) error) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	next := s.state.clone()
	if err := mutate(&next); err != nil {
		hooks := append([]RejectHook(nil), s.rejectHooks...)
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("op", op).Msg("form state transition rejected")
		for _, hook := range hooks {
			hook(op, err)
		}
		return err
	}
	s.state = next
	subs := append([]subscriber(nil), s.subscribers...)
	s.mu.Unlock()

	s.logger.Debug().
		Str("op", op).
		Str("phase", string(next.Phase)).
		Str("alias", string(next.Alias.Status)).
		Msg("form state transition")

	for _, sub := range subs {
		sub.fn(Change{Op: op, State: next.clone()})
	}
	return nil
}

func requireIdleRequest(op string, st *State) error {
	if st.IsLoading() {
		return invalid(op, st, "a load is already in flight")
	}
	if st.IsSaving() {
		return invalid(op, st, "a save is in flight")
	}
	return nil
}

func requireEditable(op string, st *State) error {
	if st.Phase == PhaseSaving {
		return invalid(op, st, "the form is locked while saving")
	}
	if st.Phase == PhaseSaved {
		st.Phase = PhaseIdle
	}
	return nil
}

func requirePhase(op string, st *State, want Phase) error {
	if st.Phase != want {
		return invalid(op, st, "no matching request in flight")
	}
	return nil
}

func invalid(op string, st *State, reason string) error {
	return &TransitionError{Op: op, Phase: st.Phase, Reason: reason}
}

func clearSiteTemplates(st *State) {
	st.SiteTemplates = Collection[model.SiteTemplate]{}
	clearSiteTemplateSelection(st)
}

func clearSiteTemplateSelection(st *State) {
	st.SelectedSiteTemplate = ""
	st.ContentTypeID = ""
	clearFields(st)
}

func clearFields(st *State) {
	st.Fields = Collection[model.Field]{}
	st.FieldsValid = false
	st.FieldIssues = nil
}

func messageOr(message, fallback string) string {
	if trimmed := strings.TrimSpace(message); trimmed != "" {
		return trimmed
	}
	return fallback
}
