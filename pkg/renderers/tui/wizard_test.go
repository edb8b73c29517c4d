package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-siterequest/pkg/formstate"
	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/session"
	"github.com/goliatone/go-siterequest/pkg/sources"
	"github.com/goliatone/go-siterequest/pkg/sources/catalog"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	multiIdx     [][]int
	confirm      []bool
	textAreas    []string
	passwords    []string
	infoMessages []string
	inputPos     int
	selectPos    int
	multiPos     int
	confirmPos   int
	textPos      int
	passPos      int
}

func (s *stubDriver) Text(_ context.Context, p TextPrompt) (string, error) {
	switch p.Kind {
	case TextSecret:
		if s.passPos >= len(s.passwords) {
			return "", errors.New("no password scripted")
		}
		s.passPos++
		return s.passwords[s.passPos-1], nil
	case TextMultiline:
		if s.textPos >= len(s.textAreas) {
			return "", errors.New("no textarea scripted")
		}
		s.textPos++
		return s.textAreas[s.textPos-1], nil
	}
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmPrompt) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Choose(_ context.Context, _ ChoicePrompt) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) ChooseMany(_ context.Context, _ ChoicePrompt) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) Notify(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func (s *stubDriver) sawMessage(fragment string) bool {
	for _, msg := range s.infoMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

const wizardCatalog = `
divisions:
  - id: ops
    name: Operations
    templates:
      - id: team
        name: Team site
        contentTypeId: "0x0101"
  - id: fin
    name: Finance
contentTypes:
  "0x0101":
    fields:
      - name: title
        type: string
        required: true
        validations:
          - kind: maxLength
            params:
              value: "10"
      - name: members
        type: integer
        validations:
          - kind: min
            params:
              value: "1"
      - name: visibility
        type: string
        enum: [private, public]
      - name: regions
        type: array
        enum: [emea, amer, apac]
      - name: notify
        type: boolean
      - name: notes
        type: string
        metadata:
          format: textarea
reservedAliases: [admin]
`

type memorySink struct {
	mu    sync.Mutex
	saved []model.Submission
	fails int
}

func (m *memorySink) Save(_ context.Context, sub model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails > 0 {
		m.fails--
		return errors.New("sink unavailable")
	}
	m.saved = append(m.saved, sub)
	return nil
}

func newWizard(t *testing.T, src session.Sources, driver PromptDriver, opts ...Option) *Wizard {
	t.Helper()
	ctrl, err := session.New(src)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	w, err := New(ctrl, append([]Option{WithPromptDriver(driver)}, opts...)...)
	if err != nil {
		t.Fatalf("new wizard: %v", err)
	}
	return w
}

func catalogSources(t *testing.T, sink sources.Sink) session.Sources {
	t.Helper()
	c, err := catalog.Parse([]byte(wizardCatalog), "wizard.yaml")
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return session.FromCatalog(c, c, sink)
}

func TestWizard_CompletesRequest(t *testing.T) {
	sink := &memorySink{}
	driver := &stubDriver{
		selectIdx: []int{0, 0, 1},
		inputs:    []string{"admin", "ops-team", "far too long title", "Ops", "many", "0", "5"},
		multiIdx:  [][]int{{0, 2}},
		confirm:   []bool{true, true},
		textAreas: []string{""},
	}
	w := newWizard(t, catalogSources(t, sink), driver)

	st, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v (messages %v)", err, driver.infoMessages)
	}
	if !st.SaveSuccess() {
		t.Fatalf("expected saved state, got %+v", st.View())
	}

	want := []model.Submission{{
		Division:      "ops",
		SiteTemplate:  "team",
		ContentTypeID: "0x0101",
		Alias:         "ops-team",
		Values: map[string]any{
			"title":      "Ops",
			"members":    int64(5),
			"visibility": "public",
			"regions":    []any{"emea", "apac"},
			"notify":     true,
		},
	}}
	if diff := cmp.Diff(want, sink.saved); diff != "" {
		t.Fatalf("saved mismatch (-want +got):\n%s", diff)
	}

	for _, fragment := range []string{`Alias "admin" is not available`, "Invalid title: max length 10", "expected a whole number", "Invalid members: min 1", "Site request saved."} {
		if !driver.sawMessage(fragment) {
			t.Fatalf("expected message containing %q, got %v", fragment, driver.infoMessages)
		}
	}
}

func TestWizard_DeclineSubmit(t *testing.T) {
	sink := &memorySink{}
	driver := &stubDriver{
		selectIdx: []int{0, 0, 0},
		inputs:    []string{"", "Ops", ""},
		multiIdx:  [][]int{{}},
		confirm:   []bool{false, false},
		textAreas: []string{"notes"},
	}
	w := newWizard(t, catalogSources(t, sink), driver)

	st, err := w.Run(context.Background())
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if st.SaveSuccess() || len(sink.saved) != 0 {
		t.Fatalf("nothing should be saved, got %+v", st.View())
	}
	if !st.FieldsValid {
		t.Fatalf("expected values to be recorded as valid before declining")
	}
}

func TestWizard_SkipsDivisionWithoutTemplates(t *testing.T) {
	driver := &stubDriver{
		selectIdx: []int{1, 0, 0, 0},
		inputs:    []string{"", "Ops", ""},
		multiIdx:  [][]int{{}},
		confirm:   []bool{false, true},
		textAreas: []string{""},
	}
	w := newWizard(t, catalogSources(t, &memorySink{}), driver)

	st, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.SelectedDivision != "ops" {
		t.Fatalf("expected ops after skipping finance, got %q", st.SelectedDivision)
	}
	if !driver.sawMessage("Finance (fin) offers no site templates") {
		t.Fatalf("expected empty division notice, got %v", driver.infoMessages)
	}
}

type flakyDivisions struct {
	failures int
}

func (f *flakyDivisions) Divisions(context.Context) ([]model.Division, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("directory offline")
	}
	return []model.Division{{ID: "ops", Name: "Operations"}}, nil
}

func TestWizard_RetriesFailures(t *testing.T) {
	sink := &memorySink{fails: 1}
	src := catalogSources(t, sink)
	src.Divisions = &flakyDivisions{failures: 1}
	driver := &stubDriver{
		selectIdx: []int{0, 0, 0},
		inputs:    []string{"", "Ops", ""},
		multiIdx:  [][]int{{}},
		// retry divisions, notify, submit, retry save
		confirm:   []bool{true, false, true, true},
		textAreas: []string{""},
	}
	w := newWizard(t, src, driver)

	st, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !st.SaveSuccess() || len(sink.saved) != 1 {
		t.Fatalf("expected one saved request after retries, got %+v", st.View())
	}
	for _, fragment := range []string{"Loading divisions failed: directory offline", "Saving the request failed: sink unavailable"} {
		if !driver.sawMessage(fragment) {
			t.Fatalf("expected message containing %q, got %v", fragment, driver.infoMessages)
		}
	}
}

func TestWizard_GiveUpAfterFailure(t *testing.T) {
	src := catalogSources(t, &memorySink{})
	src.Divisions = &flakyDivisions{failures: 1}
	driver := &stubDriver{confirm: []bool{false}}
	w := newWizard(t, src, driver)

	st, err := w.Run(context.Background())
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if st.Phase != formstate.PhaseFailed {
		t.Fatalf("expected failed phase, got %v", st.Phase)
	}
}

func TestWizard_AliasRequired(t *testing.T) {
	sink := &memorySink{}
	driver := &stubDriver{
		selectIdx: []int{0, 0, 0},
		inputs:    []string{"", "ops-team", "Ops", ""},
		multiIdx:  [][]int{{}},
		confirm:   []bool{false, true},
		textAreas: []string{""},
	}
	w := newWizard(t, catalogSources(t, sink), driver, WithAliasRequired(true), WithTheme(Theme{ErrorPrefix: "! "}))

	if _, err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !driver.sawMessage("! An alias is required.") {
		t.Fatalf("expected themed alias message, got %v", driver.infoMessages)
	}
	if len(sink.saved) != 1 || sink.saved[0].Alias != "ops-team" {
		t.Fatalf("unexpected saved requests %+v", sink.saved)
	}
}

func TestNew_RequiresSession(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error without session")
	}
}
