package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/pkg/formstate"
	"github.com/goliatone/go-siterequest/pkg/metrics"
	"github.com/goliatone/go-siterequest/pkg/model"
)

func TestCollector_ObservesStore(t *testing.T) {
	collector := metrics.NewCollector(zerolog.Nop(), "")
	store := formstate.New(collector.StoreOptions()...)

	if err := store.BeginLoadingDivisions(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.LoadDivisionsSucceeded([]model.Division{{ID: "ops"}}); err != nil {
		t.Fatalf("succeed: %v", err)
	}
	if err := store.LoadDivisionsSucceeded(nil); err == nil {
		t.Fatalf("expected duplicate completion to be rejected")
	}
	if err := store.BeginSave(); err == nil {
		t.Fatalf("expected save without valid fields to be rejected")
	}

	expected := `
# HELP siterequest_form_rejected_transitions_total Form operations refused as invalid transitions
# TYPE siterequest_form_rejected_transitions_total counter
siterequest_form_rejected_transitions_total{op="begin_save"} 1
siterequest_form_rejected_transitions_total{op="load_divisions_succeeded"} 1
# HELP siterequest_form_transitions_total Committed form state transitions by operation
# TYPE siterequest_form_transitions_total counter
siterequest_form_transitions_total{op="begin_loading_divisions"} 1
siterequest_form_transitions_total{op="load_divisions_succeeded"} 1
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"siterequest_form_transitions_total", "siterequest_form_rejected_transitions_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollector_PhaseGauge(t *testing.T) {
	collector := metrics.NewCollector(zerolog.Nop(), "forms")
	store := formstate.New(formstate.WithSubscriber(collector.Observe))

	if err := store.BeginLoadingDivisions(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	expected := `
# HELP forms_form_phase 1 for the phase the form is currently in, 0 otherwise
# TYPE forms_form_phase gauge
forms_form_phase{phase="failed"} 0
forms_form_phase{phase="idle"} 0
forms_form_phase{phase="loading_divisions"} 1
forms_form_phase{phase="loading_fields"} 0
forms_form_phase{phase="loading_site_templates"} 0
forms_form_phase{phase="saved"} 0
forms_form_phase{phase="saving"} 0
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "forms_form_phase"); err != nil {
		t.Fatalf("unexpected phase gauge: %v", err)
	}
}

func TestCollector_SaveOutcomes(t *testing.T) {
	collector := metrics.NewCollector(zerolog.Nop(), "")
	collector.Observe(formstate.Change{Op: formstate.OpSaveFailed, State: formstate.State{Phase: formstate.PhaseFailed}})
	collector.Observe(formstate.Change{Op: formstate.OpSaveSucceeded, State: formstate.State{Phase: formstate.PhaseSaved}})
	collector.Observe(formstate.Change{Op: formstate.OpSaveSucceeded, State: formstate.State{Phase: formstate.PhaseSaved}})

	expected := `
# HELP siterequest_form_saves_total Finished save attempts by outcome
# TYPE siterequest_form_saves_total counter
siterequest_form_saves_total{outcome="failed"} 1
siterequest_form_saves_total{outcome="succeeded"} 2
`
	if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "siterequest_form_saves_total"); err != nil {
		t.Fatalf("unexpected save metrics: %v", err)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := metrics.NewCollector(zerolog.Nop(), "")
	collector.Rejected(formstate.OpBeginSave, formstate.ErrInvalidTransition)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `siterequest_form_rejected_transitions_total{op="begin_save"} 1`) {
		t.Fatalf("expected rejected counter in exposition, got:\n%s", body)
	}
}
