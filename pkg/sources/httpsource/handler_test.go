package httpsource_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
	"github.com/goliatone/go-siterequest/pkg/sources/catalog"
	"github.com/goliatone/go-siterequest/pkg/sources/httpsource"
	"github.com/goliatone/go-siterequest/pkg/sources/sqlite"
)

const servedCatalog = `
divisions:
  - id: ops
    name: Operations
    templates:
      - id: team
        name: Team site
        contentTypeId: "0x0101"
contentTypes:
  "0x0101":
    fields:
      - name: title
        required: true
reservedAliases: [admin]
`

func newCatalogServer(t *testing.T, opts ...httpsource.HandlerOption) (*httpsource.Client, *sqlite.Store) {
	t.Helper()
	c, err := catalog.Parse([]byte(servedCatalog), "served.yaml")
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	store, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	handler := httpsource.NewHandler(c, append([]httpsource.HandlerOption{
		httpsource.WithAliasValidator(sources.ChainAliasValidators(c, store)),
		httpsource.WithSink(store),
	}, opts...)...)
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", handler))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := httpsource.New(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, store
}

func TestHandler_ServesCatalog(t *testing.T) {
	client, _ := newCatalogServer(t)
	ctx := context.Background()

	divisions, err := client.Divisions(ctx)
	if err != nil {
		t.Fatalf("divisions: %v", err)
	}
	if diff := cmp.Diff([]model.Division{{ID: "ops", Name: "Operations"}}, divisions); diff != "" {
		t.Fatalf("divisions mismatch (-want +got):\n%s", diff)
	}

	templates, err := client.SiteTemplates(ctx, "ops")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	if diff := cmp.Diff([]model.SiteTemplate{{ID: "team", Name: "Team site", ContentTypeID: "0x0101"}}, templates); diff != "" {
		t.Fatalf("templates mismatch (-want +got):\n%s", diff)
	}

	fields, err := client.Fields(ctx, "0x0101")
	if err != nil {
		t.Fatalf("fields: %v", err)
	}
	if diff := cmp.Diff([]model.Field{{Name: "title", Type: model.FieldTypeString, Required: true}}, fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	if _, err := client.SiteTemplates(ctx, "nope"); !errors.Is(err, sources.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandler_AliasesAndSubmissions(t *testing.T) {
	client, store := newCatalogServer(t)
	ctx := context.Background()

	for alias, want := range map[string]bool{"admin": false, "ops-team": true, "Bad Alias": false} {
		got, err := client.ValidateAlias(ctx, alias)
		if err != nil {
			t.Fatalf("validate %q: %v", alias, err)
		}
		if got != want {
			t.Fatalf("alias %q: expected %v, got %v", alias, want, got)
		}
	}

	sub := model.Submission{Division: "ops", SiteTemplate: "team", ContentTypeID: "0x0101", Alias: "ops-team", Values: map[string]any{"title": "Ops"}}
	if err := client.Save(ctx, sub); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := client.Save(ctx, sub); !errors.Is(err, sources.ErrConflict) {
		t.Fatalf("expected ErrConflict for a reused alias, got %v", err)
	}
	if valid, err := client.ValidateAlias(ctx, "ops-team"); err != nil || valid {
		t.Fatalf("expected stored alias to be unavailable, got %v %v", valid, err)
	}

	records, err := store.Requests(ctx)
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if len(records) != 1 || records[0].Submission.Alias != "ops-team" {
		t.Fatalf("unexpected records %+v", records)
	}

	if err := client.Save(ctx, model.Submission{Division: "ops"}); err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected bad request for an incomplete submission, got %v", err)
	}
}

func TestHandler_Guard(t *testing.T) {
	client, _ := newCatalogServer(t, httpsource.WithGuard(func(r *http.Request) error {
		if r.Method == http.MethodPost {
			return httpsource.StatusError{Code: http.StatusUnauthorized}
		}
		return nil
	}))
	ctx := context.Background()

	if _, err := client.Divisions(ctx); err != nil {
		t.Fatalf("divisions should pass the guard: %v", err)
	}
	err := client.Save(ctx, model.Submission{Division: "ops", SiteTemplate: "team", ContentTypeID: "0x0101"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
