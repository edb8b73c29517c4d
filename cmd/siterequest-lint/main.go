package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-siterequest/pkg/model"
	"github.com/goliatone/go-siterequest/pkg/sources"
	"github.com/goliatone/go-siterequest/pkg/sources/catalog"
	"github.com/goliatone/go-siterequest/pkg/sources/openapi"
)

type violation struct {
	file     string
	location string
	message  string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("siterequest-lint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [-fields schema] catalog...\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(fs.Output(), "\nLint site request catalogs and OpenAPI field schemas.\n\n")
		fs.PrintDefaults()
	}
	schemaPath := fs.String("fields", "", "OpenAPI document describing content type fields")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 && *schemaPath == "" {
		fs.Usage()
		return 2
	}

	var (
		schema     *openapi.FieldSource
		violations []violation
	)
	if *schemaPath != "" {
		raw, err := os.ReadFile(*schemaPath)
		if err != nil {
			fmt.Fprintf(stderr, "lint %s: read file: %v\n", *schemaPath, err)
			return 1
		}
		schema, err = openapi.NewFieldSource(ctx, raw, openapi.WithValidation())
		if err != nil {
			fmt.Fprintf(stderr, "lint %s: %v\n", *schemaPath, err)
			return 1
		}
		linted, err := lintContentTypes(ctx, *schemaPath, schema, schema.ContentTypes())
		if err != nil {
			fmt.Fprintf(stderr, "lint %s: %v\n", *schemaPath, err)
			return 1
		}
		violations = append(violations, linted...)
	}

	for _, path := range paths {
		linted, err := lintCatalog(ctx, path, schema)
		if err != nil {
			fmt.Fprintf(stderr, "lint %s: %v\n", path, err)
			return 1
		}
		violations = append(violations, linted...)
	}

	if len(violations) == 0 {
		return 0
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].file == violations[j].file {
			if violations[i].location == violations[j].location {
				return violations[i].message < violations[j].message
			}
			return violations[i].location < violations[j].location
		}
		return violations[i].file < violations[j].file
	})
	for _, v := range violations {
		fmt.Fprintf(stderr, "%s: %s -> %s\n", v.file, v.location, v.message)
	}
	return 1
}

// lintCatalog checks every template resolves to a content type, either in
// the catalog itself or in the optional field schema, then lints the
// catalog's own field descriptors.
func lintCatalog(ctx context.Context, path string, schema *openapi.FieldSource) ([]violation, error) {
	c, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}

	known := map[string]bool{}
	for _, id := range c.ContentTypes() {
		known[id] = true
	}
	if schema != nil {
		for _, id := range schema.ContentTypes() {
			known[id] = true
		}
	}

	divisions, err := c.Divisions(ctx)
	if err != nil {
		return nil, err
	}
	var result []violation
	for _, division := range divisions {
		templates, err := c.SiteTemplates(ctx, division.ID)
		if err != nil {
			return nil, err
		}
		if len(templates) == 0 {
			result = append(result, violation{
				file:     path,
				location: formatLocation([]string{"division", division.ID}),
				message:  "division offers no site templates",
			})
		}
		for _, tpl := range templates {
			if !known[tpl.ContentTypeID] {
				result = append(result, violation{
					file:     path,
					location: formatLocation([]string{"division", division.ID, "template", tpl.ID}),
					message:  fmt.Sprintf("unknown content type %q", tpl.ContentTypeID),
				})
			}
		}
	}

	fields, err := lintContentTypes(ctx, path, c, c.ContentTypes())
	if err != nil {
		return nil, err
	}
	return append(result, fields...), nil
}

func lintContentTypes(ctx context.Context, file string, src sources.FieldSource, ids []string) ([]violation, error) {
	var result []violation
	for _, id := range ids {
		fields, err := src.Fields(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, field := range fields {
			base := []string{"contentType", id, "field", field.Name}
			result = append(result, lintField(file, base, field)...)
		}
	}
	return result, nil
}

func lintField(file string, path []string, field model.Field) []violation {
	var result []violation
	report := func(format string, args ...any) {
		result = append(result, violation{
			file:     file,
			location: formatLocation(path),
			message:  fmt.Sprintf(format, args...),
		})
	}

	if field.Type == model.FieldTypeBoolean && len(field.Enum) > 0 {
		report("boolean fields cannot declare choices")
	}
	if field.Default != nil && len(field.Enum) > 0 && field.Type != model.FieldTypeArray && !containsChoice(field.Enum, field.Default) {
		report("default %v is not one of the choices", field.Default)
	}

	var minLen, maxLen = -1, -1
	for _, rule := range field.Validations {
		switch rule.Kind {
		case model.ValidationRuleMin, model.ValidationRuleMax:
			if _, err := strconv.ParseFloat(rule.Params["value"], 64); err != nil {
				report("%s needs a numeric value, found %q", rule.Kind, rule.Params["value"])
			}
			if field.Type != model.FieldTypeInteger && field.Type != model.FieldTypeNumber {
				report("%s only applies to numeric fields", rule.Kind)
			}
		case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
			n, err := strconv.Atoi(rule.Params["value"])
			if err != nil || n < 0 {
				report("%s needs a non-negative integer, found %q", rule.Kind, rule.Params["value"])
				continue
			}
			if rule.Kind == model.ValidationRuleMinLength {
				minLen = n
			} else {
				maxLen = n
			}
		case model.ValidationRulePattern:
			expr := rule.Params["pattern"]
			if expr == "" {
				report("pattern rule has no expression")
				continue
			}
			if _, err := regexp.Compile(expr); err != nil {
				report("invalid pattern %q: %v", expr, err)
			}
		default:
			report("unsupported validation %q", rule.Kind)
		}
	}
	if minLen >= 0 && maxLen >= 0 && minLen > maxLen {
		report("minLength %d exceeds maxLength %d", minLen, maxLen)
	}
	return result
}

func containsChoice(choices []any, value any) bool {
	want := fmt.Sprint(value)
	for _, choice := range choices {
		if fmt.Sprint(choice) == want {
			return true
		}
	}
	return false
}

func formatLocation(path []string) string {
	return strings.Join(path, ".")
}
