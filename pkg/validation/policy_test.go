package validation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-siterequest/pkg/model"
)

func siteFields() []model.Field {
	return []model.Field{
		{
			Name:     "title",
			Type:     model.FieldTypeString,
			Required: true,
			Validations: []model.ValidationRule{
				{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "3"}},
				{Kind: model.ValidationRuleMaxLength, Params: map[string]string{"value": "20"}},
			},
		},
		{
			Name: "members",
			Type: model.FieldTypeInteger,
			Validations: []model.ValidationRule{
				{Kind: model.ValidationRuleMin, Params: map[string]string{"value": "1"}},
				{Kind: model.ValidationRuleMax, Params: map[string]string{"value": "500", "exclusive": "true"}},
			},
		},
		{
			Name: "visibility",
			Type: model.FieldTypeString,
			Enum: []any{"private", "public"},
		},
		{
			Name: "code",
			Type: model.FieldTypeString,
			Validations: []model.ValidationRule{
				{Kind: model.ValidationRulePattern, Params: map[string]string{"pattern": `^[A-Z]{3}$`}},
			},
		},
		{Name: "external", Type: model.FieldTypeBoolean},
		{
			Name: "regions",
			Type: model.FieldTypeArray,
			Enum: []any{"emea", "amer", "apac"},
		},
	}
}

func TestRulesPolicy_Valid(t *testing.T) {
	values := map[string]any{
		"title":      "Operations",
		"members":    json.Number("12"),
		"visibility": "private",
		"code":       "OPS",
		"external":   true,
		"regions":    []string{"emea", "apac"},
		"unknown":    "ignored",
	}

	result := DefaultPolicy().Validate(siteFields(), values)
	if !result.Valid {
		t.Fatalf("expected values to be valid: %#v", result.Issues)
	}
}

func TestRulesPolicy_Issues(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   []Issue
	}{
		{
			name:   "missing required",
			values: map[string]any{},
			want:   []Issue{{Field: "title", Message: "required"}},
		},
		{
			name:   "blank required",
			values: map[string]any{"title": "   "},
			want:   []Issue{{Field: "title", Message: "required"}},
		},
		{
			name:   "too short",
			values: map[string]any{"title": "ab"},
			want:   []Issue{{Field: "title", Message: "min length 3"}},
		},
		{
			name:   "exclusive max",
			values: map[string]any{"title": "Ops", "members": 500},
			want:   []Issue{{Field: "members", Message: "max 500"}},
		},
		{
			name:   "fractional integer",
			values: map[string]any{"title": "Ops", "members": 2.5},
			want:   []Issue{{Field: "members", Message: "expected integer, got 2.5"}},
		},
		{
			name:   "nan text",
			values: map[string]any{"title": "Ops", "members": "NaN"},
			want:   []Issue{{Field: "members", Message: "expected a finite number, got NaN"}},
		},
		{
			name:   "lowercase nan",
			values: map[string]any{"title": "Ops", "members": "nan"},
			want:   []Issue{{Field: "members", Message: "expected a finite number, got nan"}},
		},
		{
			name:   "infinity",
			values: map[string]any{"title": "Ops", "members": math.Inf(1)},
			want:   []Issue{{Field: "members", Message: "expected a finite number, got +Inf"}},
		},
		{
			name:   "choice",
			values: map[string]any{"title": "Ops", "visibility": "secret"},
			want:   []Issue{{Field: "visibility", Message: `"secret" is not an allowed choice`}},
		},
		{
			name:   "pattern",
			values: map[string]any{"title": "Ops", "code": "ops"},
			want:   []Issue{{Field: "code", Message: "does not match required pattern"}},
		},
		{
			name:   "array choice",
			values: map[string]any{"title": "Ops", "regions": []any{"emea", "mars"}},
			want:   []Issue{{Field: "regions", Message: `"mars" is not an allowed choice`}},
		},
		{
			name:   "sorted issues",
			values: map[string]any{"external": "maybe"},
			want: []Issue{
				{Field: "external", Message: "expected boolean, got string"},
				{Field: "title", Message: "required"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DefaultPolicy().Validate(siteFields(), tt.values)
			if result.Valid {
				t.Fatalf("expected invalid result")
			}
			if diff := cmp.Diff(tt.want, result.Issues); diff != "" {
				t.Fatalf("issues mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRulesPolicy_LargeWholeNumbers(t *testing.T) {
	fields := []model.Field{{Name: "quota", Type: model.FieldTypeInteger, Required: true}}
	for _, value := range []any{1e19, json.Number("12345678901234567890"), float64(math.MaxInt64) * 4} {
		if result := DefaultPolicy().Validate(fields, map[string]any{"quota": value}); !result.Valid {
			t.Fatalf("expected %v to be a whole number: %#v", value, result.Issues)
		}
	}
}

func TestPolicyFunc(t *testing.T) {
	called := false
	policy := PolicyFunc(func(fields []model.Field, values map[string]any) Result {
		called = true
		return Result{Valid: len(values) == len(fields)}
	})
	if !policy.Validate(nil, nil).Valid {
		t.Fatalf("expected custom policy verdict")
	}
	if !called {
		t.Fatalf("expected policy function to be invoked")
	}
}
