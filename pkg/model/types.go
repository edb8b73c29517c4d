package model

import "strings"

// FieldType is the simplified enum for form-friendly field kinds.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
)

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
)

// ParseFieldType maps schema type names onto FieldType. Unknown or empty
// names fall back to FieldTypeString.
func ParseFieldType(raw string) FieldType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "integer", "int":
		return FieldTypeInteger
	case "number", "float", "decimal":
		return FieldTypeNumber
	case "boolean", "bool":
		return FieldTypeBoolean
	case "array", "multichoice":
		return FieldTypeArray
	default:
		return FieldTypeString
	}
}

// ValidationRule represents a single validation constraint applied to a field.
// Numeric bounds and length limits encode their threshold in Params["value"]
// while pattern rules keep the expression in Params["pattern"]. Exclusive
// bounds set Params["exclusive"] to "true".
type ValidationRule struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Field describes one dynamic input of a content type. Enum holds the choice
// set; for array fields it constrains every element.
type Field struct {
	Name        string            `json:"name" yaml:"name"`
	Type        FieldType         `json:"type" yaml:"type"`
	Required    bool              `json:"required" yaml:"required"`
	Label       string            `json:"label,omitempty" yaml:"label,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any               `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []any             `json:"enum,omitempty" yaml:"enum,omitempty"`
	Validations []ValidationRule  `json:"validations,omitempty" yaml:"validations,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Division is an organizational unit offered as the first form selection.
type Division struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// SiteTemplate is a provisioning template offered once a division is chosen.
// ContentTypeID names the content type whose fields the form collects.
type SiteTemplate struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	ContentTypeID string `json:"contentTypeId" yaml:"contentTypeId"`
}

// Submission is the payload handed to persistence sinks.
type Submission struct {
	Division      string         `json:"division"`
	SiteTemplate  string         `json:"siteTemplate"`
	ContentTypeID string         `json:"contentTypeId"`
	Alias         string         `json:"alias,omitempty"`
	Values        map[string]any `json:"values,omitempty"`
}

// CloneFields returns a deep copy of the descriptors so snapshots never share
// mutable maps or slices with their source.
func CloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, field := range fields {
		out[i] = field.clone()
	}
	return out
}

func (f Field) clone() Field {
	out := f
	if f.Enum != nil {
		out.Enum = append([]any(nil), f.Enum...)
	}
	if f.Validations != nil {
		out.Validations = make([]ValidationRule, len(f.Validations))
		for i, rule := range f.Validations {
			out.Validations[i] = ValidationRule{Kind: rule.Kind, Params: cloneStrings(rule.Params)}
		}
	}
	out.Metadata = cloneStrings(f.Metadata)
	return out
}

func cloneStrings(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
