package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/charterline/pkg/charter"
)

// schemaFile is the on-disk layout of a field schema.
type schemaFile struct {
	Fields []charter.FieldSpec `yaml:"fields"`
}

// LoadSchema reads the field schema YAML at path.
//
// Example:
//
//	fields:
//	  - id: project_name
//	    label: Project name
//	    required: true
//	  - id: milestones
//	    type: object-list
//	    children: [name, date]
func LoadSchema(path string) (charter.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open schema %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadSchemaFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse schema %q: %w", path, err)
	}
	return s, nil
}

// LoadSchemaFromReader decodes and validates a field schema from r. Unknown
// keys are rejected.
func LoadSchemaFromReader(r io.Reader) (charter.Schema, error) {
	var sf schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode schema yaml: %w", err)
	}
	schema := charter.Schema(sf.Fields)
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func validateSchema(s charter.Schema) error {
	errs := []error{s.Validate()}
	for _, f := range s {
		if f.Kind() != charter.TypeObjectList && len(f.Children) > 0 {
			errs = append(errs, fmt.Errorf("fields[%s].children is only valid for object-list fields", f.ID))
		}
		seen := make(map[string]struct{}, len(f.Children))
		for _, c := range f.Children {
			if c == "" {
				errs = append(errs, fmt.Errorf("fields[%s].children contains an empty id", f.ID))
				continue
			}
			if _, dup := seen[c]; dup {
				errs = append(errs, fmt.Errorf("fields[%s].children %q is a duplicate", f.ID, c))
			}
			seen[c] = struct{}{}
		}
	}
	return errors.Join(errs...)
}
