// Package catalog serves divisions, site templates and field descriptors from
// a YAML (or JSON) catalog file, and validates aliases against the catalog's
// reserved list.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
	"github.com/goliatone/go-siterequest/pkg/validation"
)

type documentFile struct {
	Divisions       []divisionFile             `json:"divisions" yaml:"divisions"`
	ContentTypes    map[string]contentTypeFile `json:"contentTypes" yaml:"contentTypes"`
	ReservedAliases []string                   `json:"reservedAliases" yaml:"reservedAliases"`
}

type divisionFile struct {
	ID        string               `json:"id" yaml:"id"`
	Name      string               `json:"name" yaml:"name"`
	Templates []model.SiteTemplate `json:"templates" yaml:"templates"`
}

type contentTypeFile struct {
	Name   string        `json:"name" yaml:"name"`
	Fields []model.Field `json:"fields" yaml:"fields"`
}

// Catalog is an immutable, in-memory catalog.
type Catalog struct {
	source       string
	divisions    []model.Division
	templates    map[string][]model.SiteTemplate
	contentTypes map[string][]model.Field
	reserved     map[string]struct{}
}

var (
	_ sources.Catalog        = (*Catalog)(nil)
	_ sources.AliasValidator = (*Catalog)(nil)
)

// LoadFile reads and parses a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// LoadFS reads and parses a catalog from an fs.FS.
func LoadFS(fsys fs.FS, name string) (*Catalog, error) {
	if fsys == nil {
		return nil, fmt.Errorf("catalog: filesystem is nil")
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", name, err)
	}
	return Parse(data, name)
}

// Parse decodes a catalog document. source names the document in errors.
func Parse(data []byte, source string) (*Catalog, error) {
	doc, err := parseDocument(data, source)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		source:       source,
		templates:    make(map[string][]model.SiteTemplate, len(doc.Divisions)),
		contentTypes: make(map[string][]model.Field, len(doc.ContentTypes)),
		reserved:     make(map[string]struct{}, len(doc.ReservedAliases)),
	}

	for idx, raw := range doc.Divisions {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: file %s division at index %d has an empty id", source, idx)
		}
		if _, exists := c.templates[id]; exists {
			return nil, fmt.Errorf("catalog: file %s defines duplicate division %q", source, id)
		}
		templates, err := normaliseTemplates(raw.Templates, id, source)
		if err != nil {
			return nil, err
		}
		c.divisions = append(c.divisions, model.Division{ID: id, Name: displayName(raw.Name, id)})
		c.templates[id] = templates
	}

	for rawID, ct := range doc.ContentTypes {
		id := strings.TrimSpace(rawID)
		if id == "" {
			return nil, fmt.Errorf("catalog: file %s defines a content type with an empty id", source)
		}
		fields, err := normaliseFields(ct.Fields, id, source)
		if err != nil {
			return nil, err
		}
		c.contentTypes[id] = fields
	}

	for _, alias := range doc.ReservedAliases {
		if trimmed := strings.ToLower(strings.TrimSpace(alias)); trimmed != "" {
			c.reserved[trimmed] = struct{}{}
		}
	}

	return c, nil
}

// Divisions implements sources.DivisionSource.
func (c *Catalog) Divisions(ctx context.Context) ([]model.Division, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.Division{}, c.divisions...), nil
}

// SiteTemplates implements sources.SiteTemplateSource.
func (c *Catalog) SiteTemplates(ctx context.Context, divisionID string) ([]model.SiteTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	templates, ok := c.templates[divisionID]
	if !ok {
		return nil, fmt.Errorf("catalog: division %q: %w", divisionID, sources.ErrNotFound)
	}
	return append([]model.SiteTemplate{}, templates...), nil
}

// Fields implements sources.FieldSource.
func (c *Catalog) Fields(ctx context.Context, contentTypeID string) ([]model.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, ok := c.contentTypes[contentTypeID]
	if !ok {
		return nil, fmt.Errorf("catalog: content type %q: %w", contentTypeID, sources.ErrNotFound)
	}
	out := model.CloneFields(fields)
	if out == nil {
		out = []model.Field{}
	}
	return out, nil
}

// HasContentType reports whether the catalog describes the content type.
func (c *Catalog) HasContentType(contentTypeID string) bool {
	_, ok := c.contentTypes[contentTypeID]
	return ok
}

// ContentTypes lists the described content type ids in sorted order.
func (c *Catalog) ContentTypes() []string {
	out := make([]string, 0, len(c.contentTypes))
	for id := range c.contentTypes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ValidateAlias implements sources.AliasValidator. An alias is valid when it
// is well formed and not reserved.
func (c *Catalog) ValidateAlias(ctx context.Context, alias string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if validation.ValidateAliasFormat(alias) != nil {
		return false, nil
	}
	_, reserved := c.reserved[strings.ToLower(alias)]
	return !reserved, nil
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("catalog: file %s is empty", source)
	}

	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("catalog: parse %s: %w", source, err)
	}
	return doc, nil
}

func normaliseTemplates(raw []model.SiteTemplate, divisionID, source string) ([]model.SiteTemplate, error) {
	out := make([]model.SiteTemplate, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for idx, tpl := range raw {
		id := strings.TrimSpace(tpl.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: file %s division %q template at index %d has an empty id", source, divisionID, idx)
		}
		if _, exists := seen[id]; exists {
			return nil, fmt.Errorf("catalog: file %s division %q defines duplicate template %q", source, divisionID, id)
		}
		contentType := strings.TrimSpace(tpl.ContentTypeID)
		if contentType == "" {
			return nil, fmt.Errorf("catalog: file %s template %q has no contentTypeId", source, id)
		}
		seen[id] = struct{}{}
		out = append(out, model.SiteTemplate{ID: id, Name: displayName(tpl.Name, id), ContentTypeID: contentType})
	}
	return out, nil
}

func normaliseFields(raw []model.Field, contentTypeID, source string) ([]model.Field, error) {
	out := make([]model.Field, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for idx, field := range raw {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog: file %s content type %q field at index %d has an empty name", source, contentTypeID, idx)
		}
		if _, exists := seen[name]; exists {
			return nil, fmt.Errorf("catalog: file %s content type %q defines duplicate field %q", source, contentTypeID, name)
		}
		seen[name] = struct{}{}
		field.Name = name
		field.Type = model.ParseFieldType(string(field.Type))
		out = append(out, field)
	}
	return out, nil
}

func displayName(name, fallback string) string {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		return trimmed
	}
	return fallback
}
