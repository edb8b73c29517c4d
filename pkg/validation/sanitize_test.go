package validation

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateAliasFormat(t *testing.T) {
	valid := []string{"ops", "team-site", "a1b2c3", "x-9"}
	for _, alias := range valid {
		if err := ValidateAliasFormat(alias); err != nil {
			t.Fatalf("expected %q to be valid: %v", alias, err)
		}
	}

	invalid := []string{"", "ab", "-ops", "ops-", "Ops", "team site", "team_site"}
	for _, alias := range invalid {
		if err := ValidateAliasFormat(alias); !errors.Is(err, ErrAliasFormat) {
			t.Fatalf("expected %q to be rejected, got %v", alias, err)
		}
	}
}

func TestSanitizeValues(t *testing.T) {
	values := map[string]any{
		"title":   "  <b>Ops</b> portal ",
		"tags":    []any{"<script>x</script>alpha", 3},
		"labels":  []string{"<i>beta</i>"},
		"members": 12,
	}

	got := SanitizeValues(values)
	want := map[string]any{
		"title":   "Ops portal",
		"tags":    []any{"alpha", 3},
		"labels":  []string{"beta"},
		"members": 12,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sanitized values mismatch (-want +got):\n%s", diff)
	}
	if values["title"] != "  <b>Ops</b> portal " {
		t.Fatalf("input map must not be mutated")
	}
}
