package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentplexus/hybridtable"
)

// schemaFile is the on-disk YAML shape of the table schema declaration
// (§9), kept distinct from hybridtable.TableSchema so the wire format can
// evolve (snake_case keys, omitted fields) independently of the domain
// type, mirroring kbconfig.Config's separate yaml-tagged structs.
type schemaFile struct {
	Tables []tableSchemaYAML `yaml:"tables"`
}

type tableSchemaYAML struct {
	Name            string       `yaml:"name"`
	TextColumns     []string     `yaml:"text_columns"`
	Hybrid          bool         `yaml:"hybrid"`
	Filters         []filterYAML `yaml:"filters,omitempty"`
	LatitudeColumn  string       `yaml:"latitude_column,omitempty"`
	LongitudeColumn string       `yaml:"longitude_column,omitempty"`
}

type filterYAML struct {
	Column          string   `yaml:"column"`
	Kind            string   `yaml:"kind"`
	DataType        string   `yaml:"data_type"`
	ValidEnumValues []string `yaml:"valid_enum_values,omitempty"`
}

// LoadSchemas reads and parses the YAML table schema declaration at path
// into the domain's TableSchema vocabulary. Validation against the
// identifier grammar and filter-kind rules happens downstream in
// schema.NewRegistry; a malformed file is a configuration error, fatal at
// startup (§7).
func LoadSchemas(path string) ([]hybridtable.TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read schema file %s: %w", path, err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse schema file %s: %w", path, err)
	}

	out := make([]hybridtable.TableSchema, 0, len(file.Tables))
	for _, t := range file.Tables {
		filters := make([]hybridtable.FilterDescriptor, 0, len(t.Filters))
		for _, f := range t.Filters {
			filters = append(filters, hybridtable.FilterDescriptor{
				Column:          f.Column,
				Kind:            hybridtable.FilterKind(f.Kind),
				DataType:        hybridtable.DataType(f.DataType),
				ValidEnumValues: f.ValidEnumValues,
			})
		}
		out = append(out, hybridtable.TableSchema{
			Name:            t.Name,
			TextColumns:     t.TextColumns,
			Hybrid:          t.Hybrid,
			Filters:         filters,
			LatitudeColumn:  t.LatitudeColumn,
			LongitudeColumn: t.LongitudeColumn,
		})
	}
	return out, nil
}
