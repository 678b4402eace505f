package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentplexus/hybridtable/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	os.Unsetenv("HYBRIDTABLE_ADDR")
	os.Unsetenv("HYBRIDTABLE_EMBEDDER_DIMENSIONS")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.EmbedderDimensions != 384 {
		t.Fatalf("expected default dimensions 384, got %d", cfg.EmbedderDimensions)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("HYBRIDTABLE_ADDR", ":9090")
	t.Setenv("HYBRIDTABLE_EMBEDDER_DIMENSIONS", "128")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected overridden addr :9090, got %q", cfg.Addr)
	}
	if cfg.EmbedderDimensions != 128 {
		t.Fatalf("expected overridden dimensions 128, got %d", cfg.EmbedderDimensions)
	}
}

func TestLoadSchemasParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := `
tables:
  - name: items
    text_columns: [titulo, descricao]
    hybrid: true
    latitude_column: items_lat
    longitude_column: items_lon
    filters:
      - column: status
        kind: exact
        data_type: enum
        valid_enum_values: [ativo, inativo]
      - column: preco_diario
        kind: range
        data_type: decimal
      - column: localizacao
        kind: distance
        data_type: geo
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schema file: %v", err)
	}

	schemas, err := config.LoadSchemas(path)
	if err != nil {
		t.Fatalf("LoadSchemas: %v", err)
	}
	if len(schemas) != 1 {
		t.Fatalf("expected 1 table, got %d", len(schemas))
	}
	s := schemas[0]
	if s.Name != "items" || !s.Hybrid {
		t.Fatalf("unexpected table schema: %+v", s)
	}
	if len(s.Filters) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(s.Filters))
	}
	if s.LatitudeColumn != "items_lat" || s.LongitudeColumn != "items_lon" {
		t.Fatalf("expected lat/lon columns set, got %+v", s)
	}
}

func TestLoadSchemasMissingFile(t *testing.T) {
	if _, err := config.LoadSchemas(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing schema file")
	}
}
