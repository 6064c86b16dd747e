package cli

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"orionos/pkg/domain"
)

type openAPIDoc struct {
	Paths      map[string]map[string]any `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Format     string            `yaml:"format"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

// schemaTypes binds document schemas to the Go types that serialize them.
var schemaTypes = map[string]reflect.Type{
	"Drive":    reflect.TypeOf(domain.Drive{}),
	"Position": reflect.TypeOf(domain.Position{}),
	"Size":     reflect.TypeOf(domain.Size{}),
	"AppState": reflect.TypeOf(domain.AppState{}),
}

func openapiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Check the desktop OpenAPI document",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [desktop-openapi.yaml]",
		Short: "Verify the document against the wire types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDoc(args[0])
			if err != nil {
				return err
			}
			if err := CheckDoc(doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s OpenAPI consistency check passed.\n", okMark("✓"))
			return nil
		},
	})
	return cmd
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// CheckDoc validates the error envelope, the string encoding of drive
// counters, numeric geometry and that schemas list every wire field.
func CheckDoc(doc openAPIDoc) error {
	errSchema, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errSchema); err != nil {
		return err
	}

	drive, err := getSchema(doc, "Drive")
	if err != nil {
		return err
	}
	for _, field := range []string{"totalStorage", "storageLimit"} {
		if prop := drive.Properties[field]; prop.Type != "string" {
			return fmt.Errorf("Drive.%s must be a string-encoded integer, got %q", field, prop.Type)
		}
	}
	for name, fields := range map[string][]string{"Position": {"x", "y"}, "Size": {"width", "height"}} {
		s, err := getSchema(doc, name)
		if err != nil {
			return err
		}
		for _, field := range fields {
			if prop := s.Properties[field]; prop.Type != "number" {
				return fmt.Errorf("%s.%s must be number, got %q", name, field, prop.Type)
			}
		}
	}

	names := make([]string, 0, len(schemaTypes))
	for name := range schemaTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, err := getSchema(doc, name)
		if err != nil {
			return err
		}
		for _, field := range jsonFields(schemaTypes[name]) {
			if _, ok := s.Properties[field]; !ok {
				return fmt.Errorf("%s is missing property %q", name, field)
			}
		}
	}
	return nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"error", "code"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	for _, field := range []string{"error", "code", "requestId"} {
		if prop, ok := s.Properties[field]; !ok || prop.Type != "string" {
			return fmt.Errorf("ErrorResponse.%s must be string", field)
		}
	}
	return nil
}

// jsonFields lists the JSON names a struct serializes.
func jsonFields(t reflect.Type) []string {
	out := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out = append(out, name)
	}
	return out
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}
