package formstate

import (
	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/validation"
)

// Phase is the request lifecycle of the form. Exactly one phase is active, so
// loading and saving can never overlap.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseLoadingDivisions     Phase = "loading_divisions"
	PhaseLoadingSiteTemplates Phase = "loading_site_templates"
	PhaseLoadingFields        Phase = "loading_fields"
	PhaseSaving               Phase = "saving"
	PhaseFailed               Phase = "failed"
	PhaseSaved                Phase = "saved"
)

// Loading reports whether the phase has a reference-data request in flight.
func (p Phase) Loading() bool {
	switch p {
	case PhaseLoadingDivisions, PhaseLoadingSiteTemplates, PhaseLoadingFields:
		return true
	default:
		return false
	}
}

// AliasStatus tracks alias validation independently of the request phase.
type AliasStatus string

const (
	AliasUnchecked  AliasStatus = "unchecked"
	AliasValidating AliasStatus = "validating"
	AliasValid      AliasStatus = "valid"
	AliasInvalid    AliasStatus = "invalid"
	AliasFailed     AliasStatus = "failed"
)

// AliasState is the alias sub-state. Message is set only when Status is
// AliasFailed.
type AliasState struct {
	Value   string      `json:"value,omitempty"`
	Status  AliasStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Collection is a loaded reference list. Loaded distinguishes "never
// fetched" from "fetched and empty".
type Collection[T any] struct {
	Items  []T  `json:"items,omitempty"`
	Loaded bool `json:"loaded"`
}

func loaded[T any](items []T) Collection[T] {
	if items == nil {
		items = []T{}
	}
	return Collection[T]{Items: items, Loaded: true}
}

// State is an immutable snapshot of the form. Store.State returns a deep
// copy, so callers may keep or modify it freely.
type State struct {
	Phase        Phase  `json:"phase"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	Divisions     Collection[model.Division]     `json:"divisions"`
	SiteTemplates Collection[model.SiteTemplate] `json:"siteTemplates"`
	Fields        Collection[model.Field]        `json:"fields"`

	SelectedDivision     string `json:"selectedDivision,omitempty"`
	SelectedSiteTemplate string `json:"selectedSiteTemplate,omitempty"`
	ContentTypeID        string `json:"contentTypeId,omitempty"`

	FieldsValid bool               `json:"fieldsValid"`
	FieldIssues []validation.Issue `json:"fieldIssues,omitempty"`

	Alias AliasState `json:"alias"`
}

// Initial returns the state a form starts with.
func Initial() State {
	return State{
		Phase: PhaseIdle,
		Alias: AliasState{Status: AliasUnchecked},
	}
}

// IsLoading reports whether reference data is being fetched.
func (s State) IsLoading() bool { return s.Phase.Loading() }

// IsSaving reports whether a submission is in flight.
func (s State) IsSaving() bool { return s.Phase == PhaseSaving }

// SaveSuccess reports whether the last submission was persisted.
func (s State) SaveSuccess() bool { return s.Phase == PhaseSaved }

// HasError reports a load, save or alias validator failure.
func (s State) HasError() bool {
	return s.Phase == PhaseFailed || s.Alias.Status == AliasFailed
}

// FailureMessage returns the message for the current failure, or "" when
// HasError is false. Request failures win over alias validator failures.
func (s State) FailureMessage() string {
	if s.Phase == PhaseFailed {
		return s.ErrorMessage
	}
	if s.Alias.Status == AliasFailed {
		return s.Alias.Message
	}
	return ""
}

// AliasValidating reports an alias check in flight.
func (s State) AliasValidating() bool { return s.Alias.Status == AliasValidating }

// AliasIsValid reports a completed, positive alias check.
func (s State) AliasIsValid() bool { return s.Alias.Status == AliasValid }

// HasSelectedDivision reports whether a division is selected.
func (s State) HasSelectedDivision() bool { return s.SelectedDivision != "" }

// HasSelectedSiteTemplate reports whether a site template is selected.
func (s State) HasSelectedSiteTemplate() bool { return s.SelectedSiteTemplate != "" }

// SiteTemplate returns the loaded template with the given id.
func (s State) SiteTemplate(id string) (model.SiteTemplate, bool) {
	for _, item := range s.SiteTemplates.Items {
		if item.ID == id {
			return item, true
		}
	}
	return model.SiteTemplate{}, false
}

// Division returns the loaded division with the given id.
func (s State) Division(id string) (model.Division, bool) {
	for _, item := range s.Divisions.Items {
		if item.ID == id {
			return item, true
		}
	}
	return model.Division{}, false
}

func (s State) clone() State {
	out := s
	out.Divisions.Items = cloneSlice(s.Divisions.Items)
	out.SiteTemplates.Items = cloneSlice(s.SiteTemplates.Items)
	out.Fields.Items = model.CloneFields(s.Fields.Items)
	out.FieldIssues = cloneSlice(s.FieldIssues)
	return out
}

func cloneSlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	return append(make([]T, 0, len(src)), src...)
}

// View is the flat flag record rendering layers bind to. Optional members
// are pointers or nil slices so absence survives JSON encoding.
type View struct {
	HasError     bool    `json:"hasError"`
	FieldsValid  bool    `json:"fieldsValid"`
	SaveSuccess  bool    `json:"saveSuccess"`
	IsLoading    bool    `json:"isLoading"`
	IsSaving     bool    `json:"isSaving"`
	ErrorMessage *string `json:"errorMessage,omitempty"`

	DivisionsLoaded     bool `json:"divisionsLoaded"`
	SiteTemplatesLoaded bool `json:"siteTemplatesLoaded"`
	FieldsLoaded        bool `json:"fieldsLoaded"`

	SelectedDivision     *string              `json:"selectedDivision,omitempty"`
	SelectedSiteTemplate *string              `json:"selectedSiteTemplate,omitempty"`
	ContentTypeID        *string              `json:"contentTypeId,omitempty"`
	Divisions            []model.Division     `json:"divisions,omitempty"`
	SiteTemplates        []model.SiteTemplate `json:"siteTemplates,omitempty"`
	Fields               []model.Field        `json:"fields,omitempty"`

	Alias           *string `json:"alias,omitempty"`
	AliasValidating bool    `json:"aliasValidating"`
	AliasIsValid    bool    `json:"aliasIsValid"`
}

// View flattens the snapshot into boolean flags and optional members.
func (s State) View() View {
	s = s.clone()
	v := View{
		HasError:             s.HasError(),
		FieldsValid:          s.FieldsValid,
		SaveSuccess:          s.SaveSuccess(),
		IsLoading:            s.IsLoading(),
		IsSaving:             s.IsSaving(),
		ErrorMessage:         optional(s.FailureMessage()),
		DivisionsLoaded:      s.Divisions.Loaded,
		SiteTemplatesLoaded:  s.SiteTemplates.Loaded,
		FieldsLoaded:         s.Fields.Loaded,
		SelectedDivision:     optional(s.SelectedDivision),
		SelectedSiteTemplate: optional(s.SelectedSiteTemplate),
		ContentTypeID:        optional(s.ContentTypeID),
		Alias:                optional(s.Alias.Value),
		AliasValidating:      s.AliasValidating(),
		AliasIsValid:         s.AliasIsValid(),
	}
	if s.Divisions.Loaded {
		v.Divisions = s.Divisions.Items
	}
	if s.SiteTemplates.Loaded {
		v.SiteTemplates = s.SiteTemplates.Items
	}
	if s.Fields.Loaded {
		v.Fields = s.Fields.Items
	}
	return v
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
