package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-siterequest/pkg/model"
)

// Issue represents a validation failure for a single field.
type Issue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result captures the outcome of validating a candidate value set.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// Policy decides whether a value set satisfies the loaded field descriptors.
// Implementations must not mutate their inputs.
type Policy interface {
	Validate(fields []model.Field, values map[string]any) Result
}

// PolicyFunc adapts a function into a Policy.
type PolicyFunc func(fields []model.Field, values map[string]any) Result

// Validate calls the underlying function.
func (fn PolicyFunc) Validate(fields []model.Field, values map[string]any) Result {
	return fn(fields, values)
}

// RulesPolicy enforces the required flag, the declared type, the choice set
// and the canonical validation rules carried by each descriptor. Values for
// names that have no descriptor are ignored.
type RulesPolicy struct{}

var _ Policy = RulesPolicy{}

// DefaultPolicy returns the rule-driven policy.
func DefaultPolicy() Policy {
	return RulesPolicy{}
}

// Validate implements Policy.
func (RulesPolicy) Validate(fields []model.Field, values map[string]any) Result {
	result := Result{Valid: true}
	for _, field := range fields {
		value, present := values[field.Name]
		if err := validateField(field, value, present); err != nil {
			result.Issues = append(result.Issues, Issue{Field: field.Name, Message: err.Error()})
		}
	}
	if len(result.Issues) > 0 {
		result.Valid = false
		sort.SliceStable(result.Issues, func(i, j int) bool {
			return result.Issues[i].Field < result.Issues[j].Field
		})
	}
	return result
}

func validateField(field model.Field, value any, present bool) error {
	rules := collectRules(field)
	if !present || isEmpty(value) {
		if rules.required {
			return errors.New("required")
		}
		return nil
	}

	switch field.Type {
	case model.FieldTypeBoolean:
		if _, ok := toBool(value); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
		return nil
	case model.FieldTypeInteger, model.FieldTypeNumber:
		num, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("expected number, got %v", value)
		}
		if math.IsNaN(num) || math.IsInf(num, 0) {
			return fmt.Errorf("expected a finite number, got %v", value)
		}
		if field.Type == model.FieldTypeInteger && math.Trunc(num) != num {
			return fmt.Errorf("expected integer, got %v", value)
		}
		if err := rules.validateNumber(num); err != nil {
			return err
		}
		return checkChoice(field, value)
	case model.FieldTypeArray:
		items, ok := toSlice(value)
		if !ok {
			return fmt.Errorf("expected list, got %T", value)
		}
		if err := rules.validateArray(items); err != nil {
			return err
		}
		for _, item := range items {
			if err := checkChoice(field, item); err != nil {
				return err
			}
		}
		return nil
	default:
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected text, got %T", value)
		}
		if err := rules.validateString(text); err != nil {
			return err
		}
		return checkChoice(field, text)
	}
}

type rules struct {
	required     bool
	min          *float64
	max          *float64
	exclusiveMin bool
	exclusiveMax bool
	minLen       *int
	maxLen       *int
	pattern      *regexp.Regexp
}

func collectRules(field model.Field) rules {
	out := rules{required: field.Required}
	for _, v := range field.Validations {
		switch v.Kind {
		case model.ValidationRuleMin:
			if val, ok := parseFloat(v.Params["value"]); ok {
				out.min = &val
				out.exclusiveMin = v.Params["exclusive"] == "true"
			}
		case model.ValidationRuleMax:
			if val, ok := parseFloat(v.Params["value"]); ok {
				out.max = &val
				out.exclusiveMax = v.Params["exclusive"] == "true"
			}
		case model.ValidationRuleMinLength:
			if val, ok := parseInt(v.Params["value"]); ok {
				out.minLen = &val
			}
		case model.ValidationRuleMaxLength:
			if val, ok := parseInt(v.Params["value"]); ok {
				out.maxLen = &val
			}
		case model.ValidationRulePattern:
			if expr := v.Params["pattern"]; expr != "" {
				if re, err := regexp.Compile(expr); err == nil {
					out.pattern = re
				}
			}
		}
	}
	return out
}

func (r rules) validateString(value string) error {
	length := len([]rune(value))
	if r.minLen != nil && length < *r.minLen {
		return fmt.Errorf("min length %d", *r.minLen)
	}
	if r.maxLen != nil && length > *r.maxLen {
		return fmt.Errorf("max length %d", *r.maxLen)
	}
	if r.pattern != nil && !r.pattern.MatchString(value) {
		return errors.New("does not match required pattern")
	}
	return nil
}

func (r rules) validateNumber(v float64) error {
	if r.min != nil {
		if v < *r.min || (r.exclusiveMin && v == *r.min) {
			return fmt.Errorf("min %v", *r.min)
		}
	}
	if r.max != nil {
		if v > *r.max || (r.exclusiveMax && v == *r.max) {
			return fmt.Errorf("max %v", *r.max)
		}
	}
	return nil
}

func (r rules) validateArray(value []any) error {
	if r.required && len(value) == 0 {
		return errors.New("required")
	}
	if r.minLen != nil && len(value) < *r.minLen {
		return fmt.Errorf("min items %d", *r.minLen)
	}
	if r.maxLen != nil && len(value) > *r.maxLen {
		return fmt.Errorf("max items %d", *r.maxLen)
	}
	return nil
}

func checkChoice(field model.Field, value any) error {
	if len(field.Enum) == 0 {
		return nil
	}
	got := fmt.Sprint(value)
	for _, choice := range field.Enum {
		if fmt.Sprint(choice) == got {
			return nil
		}
	}
	return fmt.Errorf("%q is not an allowed choice", got)
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseFloat(strings.TrimSpace(n))
	default:
		return 0, false
	}
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func parseFloat(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(raw, 64)
	return val, err == nil
}

func parseInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	return val, err == nil
}
