package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Outcome.Policy != PolicyUniformBaseline {
		t.Errorf("data mode policy = %q, want %q", cfg.Outcome.Policy, PolicyUniformBaseline)
	}
	if cfg.Warehouse.DSN != filepath.Join(cfg.DataDir, "warehouse.db") {
		t.Errorf("unexpected warehouse dsn %q", cfg.Warehouse.DSN)
	}
	if cfg.Results.Path != filepath.Join(cfg.DataDir, "results.db") {
		t.Errorf("unexpected results path %q", cfg.Results.Path)
	}
}

func TestResolvePolicyByMode(t *testing.T) {
	tests := []struct {
		name   string
		mode   Mode
		policy string
		want   string
	}{
		{"data default", ModeData, "", PolicyUniformBaseline},
		{"schema default", ModeSchema, "", PolicyAllPass},
		{"explicit kept", ModeSchema, PolicyUniformBaseline, PolicyUniformBaseline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = tt.mode
			cfg.Outcome.Policy = tt.policy
			cfg.Resolve()
			if cfg.Outcome.Policy != tt.want {
				t.Fatalf("policy = %q, want %q", cfg.Outcome.Policy, tt.want)
			}
		})
	}
}

func TestResolveEngineDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Concurrency = 0
	cfg.Engine.SampleSize = -1
	cfg.Resolve()
	if cfg.Engine.Concurrency != 1 || cfg.Engine.SampleSize != 10 {
		t.Fatalf("unexpected engine defaults: %+v", cfg.Engine)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "both" }},
		{"bad storage", func(c *Config) { c.Storage.Type = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }},
		{"minio without endpoint", func(c *Config) { c.Storage.Type = "minio" }},
		{"no pattern", func(c *Config) { c.Release.ManifestPattern = "" }},
		{"no catalog key", func(c *Config) { c.Release.CatalogKey = "" }},
		{"bad driver", func(c *Config) { c.Warehouse.Driver = "oracle" }},
		{"no suffix", func(c *Config) { c.Warehouse.CandidateSuffix = "" }},
		{"negative qps", func(c *Config) { c.Warehouse.MaxQPS = -1 }},
		{"bad results", func(c *Config) { c.Results.Type = "redis" }},
		{"bad policy", func(c *Config) { c.Outcome.Policy = "majority" }},
		{"negative baseline", func(c *Config) { c.Outcome.Baseline = -1 }},
		{"too much concurrency", func(c *Config) { c.Engine.Concurrency = 100 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Resolve()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "driftguard.yaml")
	yamlData := `mode: schema
warehouse:
  driver: postgres
  dsn: postgres://localhost/dw
engine:
  concurrency: 4
precheck:
  required_schemas: [SALES, SALES_REGRESSION]
`
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(yamlPath)
	if err != nil {
		t.Fatalf("LoadFromFile yaml: %v", err)
	}
	if cfg.Mode != ModeSchema || cfg.Warehouse.Driver != "postgres" || cfg.Engine.Concurrency != 4 {
		t.Fatalf("unexpected yaml config: %+v", cfg)
	}
	if len(cfg.Precheck.RequiredSchemas) != 2 {
		t.Fatalf("expected 2 required schemas, got %v", cfg.Precheck.RequiredSchemas)
	}
	// Unset keys keep their defaults
	if cfg.Warehouse.CandidateSuffix != "_REGRESSION" {
		t.Errorf("candidate suffix default lost: %q", cfg.Warehouse.CandidateSuffix)
	}

	jsonPath := filepath.Join(dir, "driftguard.json")
	if err := os.WriteFile(jsonPath, []byte(`{"outcome":{"policy":"all_pass"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFromFile json: %v", err)
	}
	if cfg.Outcome.Policy != PolicyAllPass {
		t.Errorf("policy = %q, want all_pass", cfg.Outcome.Policy)
	}

	if _, err := LoadFromFile(filepath.Join(dir, "driftguard.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	tomlPath := filepath.Join(dir, "x.toml")
	os.WriteFile(tomlPath, []byte("a=1"), 0644)
	if _, err := LoadFromFile(tomlPath); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DRIFTGUARD_MODE", "schema")
	t.Setenv("DRIFTGUARD_STORAGE_TYPE", "minio")
	t.Setenv("DRIFTGUARD_MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("DRIFTGUARD_CONCURRENCY", "8")
	t.Setenv("DRIFTGUARD_OUTCOME_BASELINE", "25")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Mode != ModeSchema {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Storage.Type != "minio" || cfg.Storage.Minio.Endpoint != "localhost:9000" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Engine.Concurrency != 8 {
		t.Errorf("concurrency = %d", cfg.Engine.Concurrency)
	}
	if cfg.Outcome.Baseline != 25 {
		t.Errorf("baseline = %d", cfg.Outcome.Baseline)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "dg")
	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.Storage.Path} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}
}
