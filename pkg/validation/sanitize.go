package validation

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy

	aliasPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)
)

const (
	aliasMinLength = 3
	aliasMaxLength = 63
)

// ErrAliasFormat reports an alias that cannot be used as a site address.
var ErrAliasFormat = errors.New("validation: alias must be 3-63 lowercase letters, digits or hyphens and must not start or end with a hyphen")

// ValidateAliasFormat checks the alias shape. Uniqueness is the concern of the
// alias validators in pkg/sources.
func ValidateAliasFormat(alias string) error {
	if len(alias) < aliasMinLength || len(alias) > aliasMaxLength {
		return ErrAliasFormat
	}
	if !aliasPattern.MatchString(alias) {
		return ErrAliasFormat
	}
	return nil
}

// SanitizeText strips markup from free text entered into the form.
func SanitizeText(raw string) string {
	return strings.TrimSpace(textSanitizer().Sanitize(raw))
}

// SanitizeValues returns a copy of values with markup removed from every
// string, including strings inside lists.
func SanitizeValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = sanitizeValue(value)
	}
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case string:
		return SanitizeText(v)
	case []string:
		clean := make([]string, len(v))
		for i, s := range v {
			clean[i] = SanitizeText(s)
		}
		return clean
	case []any:
		clean := make([]any, len(v))
		for i, item := range v {
			clean[i] = sanitizeValue(item)
		}
		return clean
	default:
		return v
	}
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
