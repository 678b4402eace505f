// Package schema implements the Table Schema Registry (C7): an immutable,
// process-lifetime declaration of tables built once at startup from
// configuration. Lookup by name is O(1); enumeration is defined and used by
// the index registry's rebuildAll.
//
// Grounded on the teacher's vector.IndexConfig / graph.GraphConfig pattern
// (plain config structs validated at construction time, no hidden global
// state) and on Design Notes §9 ("pass the registry explicitly").
package schema

import (
	"fmt"
	"regexp"

	"github.com/agentplexus/hybridtable"
)

// identifierPattern is the identifier grammar shared by table names and
// column names throughout the system (§3).
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidIdentifier reports whether s is a safe SQL identifier to interpolate
// after quoting. Used by schema validation and by the store/postgres SQL
// builders before any identifier is placed into generated SQL text.
func ValidIdentifier(s string) bool {
	return s != "" && identifierPattern.MatchString(s)
}

// Registry is the immutable Table Schema Registry (C7).
type Registry struct {
	tables map[string]hybridtable.TableSchema
	order  []string
}

// NewRegistry validates and builds a Registry from a set of table schemas.
// Validation failures are configuration errors: fatal at startup.
func NewRegistry(schemas []hybridtable.TableSchema) (*Registry, error) {
	r := &Registry{
		tables: make(map[string]hybridtable.TableSchema, len(schemas)),
	}
	for _, s := range schemas {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("schema: invalid table %q: %w", s.Name, err)
		}
		if _, dup := r.tables[s.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate table %q", s.Name)
		}
		r.tables[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	return r, nil
}

func validate(s hybridtable.TableSchema) error {
	if !ValidIdentifier(s.Name) {
		return fmt.Errorf("name must match %s", identifierPattern.String())
	}
	if len(s.TextColumns) == 0 {
		return fmt.Errorf("textColumns must be non-empty")
	}
	for _, c := range s.TextColumns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("invalid text column %q", c)
		}
	}

	seenColumns := make(map[string]bool, len(s.Filters))
	for _, f := range s.Filters {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("invalid filter column %q", f.Column)
		}
		if seenColumns[f.Column] {
			return fmt.Errorf("duplicate filter column %q", f.Column)
		}
		seenColumns[f.Column] = true

		switch f.Kind {
		case hybridtable.FilterExact, hybridtable.FilterIn, hybridtable.FilterRange,
			hybridtable.FilterLike, hybridtable.FilterDistance:
		default:
			return fmt.Errorf("filter %q: unknown kind %q", f.Column, f.Kind)
		}

		if f.Kind == hybridtable.FilterDistance {
			if f.DataType != hybridtable.DataGeo {
				return fmt.Errorf("filter %q: kind=distance requires dataType=geo", f.Column)
			}
			if s.LatitudeColumn == "" || s.LongitudeColumn == "" {
				return fmt.Errorf("filter %q: kind=distance requires latitudeColumn and longitudeColumn on the table", f.Column)
			}
		}
		if f.DataType == hybridtable.DataEnum && len(f.ValidEnumValues) == 0 {
			return fmt.Errorf("filter %q: dataType=enum requires validEnumValues", f.Column)
		}
	}

	if s.LatitudeColumn != "" && !ValidIdentifier(s.LatitudeColumn) {
		return fmt.Errorf("invalid latitude column %q", s.LatitudeColumn)
	}
	if s.LongitudeColumn != "" && !ValidIdentifier(s.LongitudeColumn) {
		return fmt.Errorf("invalid longitude column %q", s.LongitudeColumn)
	}

	return nil
}

// Get looks up a table schema by name.
func (r *Registry) Get(name string) (hybridtable.TableSchema, bool) {
	s, ok := r.tables[name]
	return s, ok
}

// All returns every declared schema in declaration order. Used by
// rebuildAll (C5) to enumerate tables.
func (r *Registry) All() []hybridtable.TableSchema {
	out := make([]hybridtable.TableSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// FilterDescriptorFor looks up a single filter descriptor by column name.
func FilterDescriptorFor(s hybridtable.TableSchema, column string) (hybridtable.FilterDescriptor, bool) {
	for _, f := range s.Filters {
		if f.Column == column {
			return f, true
		}
	}
	return hybridtable.FilterDescriptor{}, false
}
