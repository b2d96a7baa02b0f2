package localstore

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

type Field struct {
	Type     FieldType
	Required bool
	Default  any
	Enum     []string
}

// MigrationFunc upgrades a document written with version N to version N+1.
type MigrationFunc func(doc Document) (Document, error)

// Schema is the fixed, versioned shape of one collection. Unknown fields are rejected.
type Schema struct {
	Name       string
	Version    int
	PrimaryKey string
	Fields     map[string]Field
	// Migrations is keyed by the version being migrated from.
	Migrations map[int]MigrationFunc
}

func (s *Schema) applyDefaults(doc Document) {
	for name, f := range s.Fields {
		if _, ok := doc[name]; !ok && f.Default != nil {
			doc[name] = f.Default
		}
	}
}

// Validate checks a normalized document (JSON-decoded values) against the schema.
func (s *Schema) Validate(doc Document) error {
	pk, ok := doc[s.PrimaryKey].(string)
	if !ok || pk == "" {
		return apperror.NewValidation(s.Name, s.PrimaryKey, "primary key must be a non-empty string")
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, known := s.Fields[name]
		if !known {
			return apperror.NewValidation(s.Name, name, "unknown field")
		}
		v := doc[name]
		if v == nil {
			if f.Required {
				return apperror.NewValidation(s.Name, name, "required field is null")
			}
			continue
		}
		if !matchesType(f.Type, v) {
			return apperror.NewValidation(s.Name, name, fmt.Sprintf("expected %s, got %T", f.Type, v))
		}
		if len(f.Enum) > 0 {
			str, _ := v.(string)
			if !slices.Contains(f.Enum, str) {
				return apperror.NewValidation(s.Name, name, fmt.Sprintf("value %q not in %v", str, f.Enum))
			}
		}
	}

	for name, f := range s.Fields {
		if _, ok := doc[name]; f.Required && !ok {
			return apperror.NewValidation(s.Name, name, "required field missing")
		}
	}
	return nil
}

// Migrate walks a document from version `from` up to the schema version.
func (s *Schema) Migrate(from int, doc Document) (Document, error) {
	if from > s.Version {
		return nil, fmt.Errorf("%s: record version %d is newer than schema version %d", s.Name, from, s.Version)
	}
	for v := from; v < s.Version; v++ {
		fn, ok := s.Migrations[v]
		if !ok {
			return nil, fmt.Errorf("%s: no migration from version %d to %d", s.Name, v, v+1)
		}
		var err error
		doc, err = fn(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: migrate %d->%d: %w", s.Name, v, v+1, err)
		}
	}
	return doc, nil
}

func matchesType(t FieldType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeInteger:
		f, ok := v.(float64)
		return ok && f == math.Trunc(f)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	}
	return false
}
