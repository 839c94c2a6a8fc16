// Package config provides configuration for driftguard runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects which validation a run performs.
type Mode string

const (
	// ModeData diffs the content of each impacted model
	ModeData Mode = "data"
	// ModeSchema compares column metadata of each impacted model
	ModeSchema Mode = "schema"
)

// Outcome policy names.
const (
	PolicyUniformBaseline = "uniform_baseline"
	PolicyAllPass         = "all_pass"
)

// Config holds the configuration for one driftguard run.
type Config struct {
	// Mode specifies the validation mode: data or schema
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for local files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Logging configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Storage holding the release manifests and the regression configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Release manifest and catalog locations
	Release ReleaseConfig `json:"release" yaml:"release"`

	// Warehouse holding reference and candidate models
	Warehouse WarehouseConfig `json:"warehouse" yaml:"warehouse"`

	// Results (artifact store) configuration
	Results ResultsConfig `json:"results" yaml:"results"`

	// Outcome evaluation configuration
	Outcome OutcomeConfig `json:"outcome" yaml:"outcome"`

	// Engine tuning
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Precheck configuration
	Precheck PrecheckConfig `json:"precheck" yaml:"precheck"`

	// Metrics export configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LogConfig holds operator logging configuration.
type LogConfig struct {
	// Level is a logrus level name (debug, info, warn, error)
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3, minio
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`

	// MinIO configuration (for minio type)
	Minio MinioConfig `json:"minio" yaml:"minio"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// MinioConfig holds MinIO storage configuration.
type MinioConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	Region          string `json:"region" yaml:"region"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
}

// ReleaseConfig locates the release manifests and the regression catalog.
type ReleaseConfig struct {
	// Prefix is the storage prefix searched for release manifests
	Prefix string `json:"prefix" yaml:"prefix"`

	// ManifestPattern matches manifest base names (path.Match syntax)
	ManifestPattern string `json:"manifest_pattern" yaml:"manifest_pattern"`

	// CatalogKey is the object path of the regression configuration
	CatalogKey string `json:"catalog_key" yaml:"catalog_key"`
}

// WarehouseConfig holds the query backend configuration.
type WarehouseConfig struct {
	// Driver is sqlite, postgres (lib/pq) or pgx
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the driver data source name
	DSN string `json:"dsn" yaml:"dsn"`

	// Attach maps schema aliases to SQLite database files (sqlite only)
	Attach map[string]string `json:"attach" yaml:"attach"`

	// CandidateSuffix is appended to a model's schema to locate the candidate
	CandidateSuffix string `json:"candidate_suffix" yaml:"candidate_suffix"`

	// MaxQPS caps warehouse calls per second across workers (0 = unlimited)
	MaxQPS float64 `json:"max_qps" yaml:"max_qps"`
}

// ResultsConfig holds artifact store configuration.
type ResultsConfig struct {
	// Type is sqlite, object, or memory
	Type string `json:"type" yaml:"type"`

	// Path is the SQLite results database (sqlite type)
	Path string `json:"path" yaml:"path"`

	// Prefix is the object storage prefix (object type)
	Prefix string `json:"prefix" yaml:"prefix"`
}

// OutcomeConfig holds verdict evaluation configuration.
type OutcomeConfig struct {
	// Policy is uniform_baseline or all_pass; empty picks the mode default
	Policy string `json:"policy" yaml:"policy"`

	// Baseline is the record count every artifact must share (uniform_baseline)
	Baseline int `json:"baseline" yaml:"baseline"`
}

// EngineConfig holds engine tuning.
type EngineConfig struct {
	// Concurrency is the number of models validated in parallel
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// SampleSize bounds the mismatching rows reported per model
	SampleSize int `json:"sample_size" yaml:"sample_size"`
}

// PrecheckConfig lists resources that must exist before a run starts.
type PrecheckConfig struct {
	// RequiredSchemas must exist in the warehouse
	RequiredSchemas []string `json:"required_schemas" yaml:"required_schemas"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	// Textfile, when set, receives the run metrics in Prometheus text format
	Textfile string `json:"textfile" yaml:"textfile"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeData,
		DataDir: "./data/driftguard",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Type: "local",
		},
		Release: ReleaseConfig{
			Prefix:          "configs",
			ManifestPattern: "release_v*.*.json",
			CatalogKey:      "configs/regression_config.json",
		},
		Warehouse: WarehouseConfig{
			Driver:          "sqlite",
			CandidateSuffix: "_REGRESSION",
		},
		Results: ResultsConfig{
			Type:   "sqlite",
			Prefix: "results",
		},
		Outcome: OutcomeConfig{
			Baseline: 0,
		},
		Engine: EngineConfig{
			Concurrency: 1,
			SampleSize:  10,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir and Mode.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/driftguard"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}

	if c.Results.Path == "" {
		c.Results.Path = filepath.Join(c.DataDir, "results.db")
	}

	if c.Warehouse.Driver == "sqlite" && c.Warehouse.DSN == "" {
		c.Warehouse.DSN = filepath.Join(c.DataDir, "warehouse.db")
	}

	// Schema checks report one detail row per column, so a uniform record
	// count is meaningless there; default to the per-model reduction.
	if c.Outcome.Policy == "" {
		if c.Mode == ModeSchema {
			c.Outcome.Policy = PolicyAllPass
		} else {
			c.Outcome.Policy = PolicyUniformBaseline
		}
	}

	if c.Engine.Concurrency <= 0 {
		c.Engine.Concurrency = 1
	}
	if c.Engine.SampleSize <= 0 {
		c.Engine.SampleSize = 10
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeData, ModeSchema:
	default:
		return fmt.Errorf("invalid mode: %s (must be data or schema)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when storage type is s3")
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("minio.endpoint and minio.bucket are required when storage type is minio")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be local, s3, or minio)", c.Storage.Type)
	}

	if c.Release.ManifestPattern == "" {
		return fmt.Errorf("release.manifest_pattern is required")
	}
	if c.Release.CatalogKey == "" {
		return fmt.Errorf("release.catalog_key is required")
	}

	switch c.Warehouse.Driver {
	case "sqlite", "postgres", "pgx":
	default:
		return fmt.Errorf("invalid warehouse driver: %s (must be sqlite, postgres, or pgx)", c.Warehouse.Driver)
	}
	if c.Warehouse.MaxQPS < 0 {
		return fmt.Errorf("warehouse.max_qps must be >= 0, got %g", c.Warehouse.MaxQPS)
	}
	if c.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required")
	}
	if c.Warehouse.CandidateSuffix == "" {
		return fmt.Errorf("warehouse.candidate_suffix is required")
	}

	switch c.Results.Type {
	case "sqlite", "object", "memory":
	default:
		return fmt.Errorf("invalid results type: %s (must be sqlite, object, or memory)", c.Results.Type)
	}

	switch c.Outcome.Policy {
	case PolicyUniformBaseline, PolicyAllPass:
	default:
		return fmt.Errorf("invalid outcome policy: %s (must be %s or %s)", c.Outcome.Policy, PolicyUniformBaseline, PolicyAllPass)
	}
	if c.Outcome.Baseline < 0 {
		return fmt.Errorf("outcome.baseline must be >= 0, got %d", c.Outcome.Baseline)
	}

	if c.Engine.Concurrency < 1 || c.Engine.Concurrency > 64 {
		return fmt.Errorf("engine.concurrency must be between 1 and 64, got %d", c.Engine.Concurrency)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DRIFTGUARD_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("DRIFTGUARD_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("DRIFTGUARD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Logging
	if v := os.Getenv("DRIFTGUARD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DRIFTGUARD_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Storage configuration
	if v := os.Getenv("DRIFTGUARD_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("DRIFTGUARD_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("DRIFTGUARD_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("DRIFTGUARD_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("DRIFTGUARD_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("DRIFTGUARD_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.Minio.Endpoint = v
	}
	if v := os.Getenv("DRIFTGUARD_MINIO_BUCKET"); v != "" {
		cfg.Storage.Minio.Bucket = v
	}
	if v := os.Getenv("DRIFTGUARD_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.Minio.AccessKeyID = v
	}
	if v := os.Getenv("DRIFTGUARD_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.Minio.SecretAccessKey = v
	}

	// Warehouse configuration
	if v := os.Getenv("DRIFTGUARD_WAREHOUSE_DRIVER"); v != "" {
		cfg.Warehouse.Driver = v
	}
	if v := os.Getenv("DRIFTGUARD_WAREHOUSE_DSN"); v != "" {
		cfg.Warehouse.DSN = v
	}
	if v := os.Getenv("DRIFTGUARD_CANDIDATE_SUFFIX"); v != "" {
		cfg.Warehouse.CandidateSuffix = v
	}
	if v := os.Getenv("DRIFTGUARD_WAREHOUSE_MAX_QPS"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Warehouse.MaxQPS)
	}

	// Results and outcome
	if v := os.Getenv("DRIFTGUARD_RESULTS_TYPE"); v != "" {
		cfg.Results.Type = v
	}
	if v := os.Getenv("DRIFTGUARD_RESULTS_PATH"); v != "" {
		cfg.Results.Path = v
	}
	if v := os.Getenv("DRIFTGUARD_OUTCOME_POLICY"); v != "" {
		cfg.Outcome.Policy = v
	}
	if v := os.Getenv("DRIFTGUARD_OUTCOME_BASELINE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Outcome.Baseline)
	}

	// Engine
	if v := os.Getenv("DRIFTGUARD_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Engine.Concurrency)
	}
	if v := os.Getenv("DRIFTGUARD_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}

// EnsureDirectories creates all required local directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}
	if c.Results.Type == "sqlite" {
		dirs = append(dirs, filepath.Dir(c.Results.Path))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
