// Package openapi derives content type field descriptors from an OpenAPI 3
// document. Each operation whose request body describes a content type is
// indexed by its x-content-type-id extension, falling back to operationId.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
)

// ContentTypeExtension names the operation extension carrying the content
// type id.
const ContentTypeExtension = "x-content-type-id"

// FieldSource implements sources.FieldSource over a parsed document.
type FieldSource struct {
	contentTypes map[string][]model.Field
}

var _ sources.FieldSource = (*FieldSource)(nil)

// Option configures document loading.
type Option func(*options)

type options struct {
	validate bool
}

// WithValidation validates the document before extracting fields.
func WithValidation() Option {
	return func(o *options) {
		o.validate = true
	}
}

// NewFieldSource parses raw (JSON or YAML) and indexes every operation with a
// request body.
func NewFieldSource(ctx context.Context, raw []byte, opts ...Option) (*FieldSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi fields: document payload is empty")
	}
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi fields: load document: %w", err)
	}
	if cfg.validate {
		if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi fields: validate: %w", err)
		}
	}

	src := &FieldSource{contentTypes: make(map[string][]model.Field)}
	if doc.Paths == nil {
		return src, nil
	}

	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for method := range ops {
			methods = append(methods, method)
		}
		sort.Strings(methods)
		for _, method := range methods {
			if err := src.collect(method, path, ops[method]); err != nil {
				return nil, err
			}
		}
	}
	return src, nil
}

// Fields implements sources.FieldSource.
func (s *FieldSource) Fields(ctx context.Context, contentTypeID string) ([]model.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, ok := s.contentTypes[contentTypeID]
	if !ok {
		return nil, fmt.Errorf("openapi fields: content type %q: %w", contentTypeID, sources.ErrNotFound)
	}
	return model.CloneFields(fields), nil
}

// ContentTypes lists the indexed content type ids in sorted order.
func (s *FieldSource) ContentTypes() []string {
	out := make([]string, 0, len(s.contentTypes))
	for id := range s.contentTypes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *FieldSource) collect(method, path string, op *openapi3.Operation) error {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	id := contentTypeID(op)
	if id == "" {
		return nil
	}
	if _, exists := s.contentTypes[id]; exists {
		return fmt.Errorf("openapi fields: content type %q declared twice (%s %s)", id, method, path)
	}
	schema := requestSchema(op.RequestBody.Value)
	if schema == nil {
		return nil
	}
	s.contentTypes[id] = fieldsFromObject(schema)
	return nil
}

func contentTypeID(op *openapi3.Operation) string {
	if raw, ok := op.Extensions[ContentTypeExtension]; ok {
		switch v := raw.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case fmt.Stringer:
			return v.String()
		}
	}
	return strings.TrimSpace(op.OperationID)
}

func requestSchema(body *openapi3.RequestBody) *openapi3.Schema {
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt, ok := body.Content[mediaType]; ok && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	for _, mt := range body.Content {
		if mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func fieldsFromObject(schema *openapi3.Schema) []model.Field {
	required := make(map[string]struct{}, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.Field, 0, len(names))
	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		prop := ref.Value
		if schemaType(prop) == "object" {
			// nested objects have no flat form representation
			continue
		}
		_, isRequired := required[name]
		fields = append(fields, fieldFromSchema(name, prop, isRequired))
	}
	return fields
}

func fieldFromSchema(name string, prop *openapi3.Schema, required bool) model.Field {
	field := model.Field{
		Name:        name,
		Type:        model.ParseFieldType(schemaType(prop)),
		Required:    required,
		Label:       prop.Title,
		Description: prop.Description,
		Default:     prop.Default,
	}
	if len(prop.Enum) > 0 {
		field.Enum = append([]any(nil), prop.Enum...)
	}
	if field.Type == model.FieldTypeArray && prop.Items != nil && prop.Items.Value != nil && len(prop.Items.Value.Enum) > 0 {
		field.Enum = append([]any(nil), prop.Items.Value.Enum...)
	}
	if prop.Format != "" {
		field.Metadata = map[string]string{"format": prop.Format}
	}
	applyValidations(&field, prop)
	return field
}

func schemaType(schema *openapi3.Schema) string {
	if schema.Type == nil {
		return ""
	}
	values := schema.Type.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func applyValidations(field *model.Field, schema *openapi3.Schema) {
	if schema.Min != nil {
		params := map[string]string{"value": formatFloat(*schema.Min)}
		if schema.ExclusiveMin {
			params["exclusive"] = "true"
		}
		field.Validations = append(field.Validations, model.ValidationRule{Kind: model.ValidationRuleMin, Params: params})
	}
	if schema.Max != nil {
		params := map[string]string{"value": formatFloat(*schema.Max)}
		if schema.ExclusiveMax {
			params["exclusive"] = "true"
		}
		field.Validations = append(field.Validations, model.ValidationRule{Kind: model.ValidationRuleMax, Params: params})
	}

	minLen, maxLen := schema.MinLength, schema.MaxLength
	if field.Type == model.FieldTypeArray {
		minLen, maxLen = schema.MinItems, schema.MaxItems
	}
	if minLen != 0 {
		field.Validations = append(field.Validations, model.ValidationRule{
			Kind:   model.ValidationRuleMinLength,
			Params: map[string]string{"value": strconv.FormatUint(minLen, 10)},
		})
	}
	if maxLen != nil {
		field.Validations = append(field.Validations, model.ValidationRule{
			Kind:   model.ValidationRuleMaxLength,
			Params: map[string]string{"value": strconv.FormatUint(*maxLen, 10)},
		})
	}
	if schema.Pattern != "" {
		field.Validations = append(field.Validations, model.ValidationRule{
			Kind:   model.ValidationRulePattern,
			Params: map[string]string{"pattern": schema.Pattern},
		})
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
