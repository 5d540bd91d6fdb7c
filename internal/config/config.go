// Package config loads clinicrecords settings from an optional YAML file and
// applies CLINICRECORDS_* environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob drivers.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

const (
	defaultBlobRoot  = "./blobdata"
	defaultS3Region  = "us-east-1"
	defaultLogLevel  = "info"
	defaultPatientDB = "patients.txt"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvStorageDriver = "CLINICRECORDS_STORAGE_DRIVER"
	EnvSQLitePath    = "CLINICRECORDS_SQLITE_PATH"
	EnvPostgresDSN   = "CLINICRECORDS_POSTGRES_DSN"
	EnvBlobDriver    = "CLINICRECORDS_BLOB_DRIVER"
	EnvBlobFSRoot    = "CLINICRECORDS_BLOB_FS_ROOT"
	EnvS3Bucket      = "CLINICRECORDS_BLOB_S3_BUCKET"
	EnvS3Region      = "CLINICRECORDS_BLOB_S3_REGION"
	EnvS3Endpoint    = "CLINICRECORDS_BLOB_S3_ENDPOINT"
	EnvS3PathStyle   = "CLINICRECORDS_BLOB_S3_PATH_STYLE"
	EnvLogLevel      = "CLINICRECORDS_LOG_LEVEL"
)

// Config holds the application configuration.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Blob     Blob     `yaml:"blob"`
	Log      Log      `yaml:"log,omitempty"`
	Metrics  Metrics  `yaml:"metrics,omitempty"`
	Patients Patients `yaml:"patients,omitempty"`
}

// Storage selects the record store backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// Blob selects the object store used for backups.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root,omitempty"`
	S3     S3     `yaml:"s3,omitempty"`
}

// S3 holds bucket settings. Credentials come from the default AWS chain
// unless AccessKeyID is set.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// Log configures the zap logger.
type Log struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

// Metrics configures the Prometheus textfile written on exit.
type Metrics struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Patients configures the flat-file patient database.
type Patients struct {
	File string `yaml:"file,omitempty"`
}

// Default returns a Config with defaults applied and no file or
// environment input.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path (when non-empty), applies environment overrides and
// defaults, then validates the result. A missing file is an error only when
// path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := loadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	ApplyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg with any CLINICRECORDS_* variables that are set.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Storage.Driver, EnvStorageDriver)
	setString(&cfg.Storage.SQLitePath, EnvSQLitePath)
	setString(&cfg.Storage.PostgresDSN, EnvPostgresDSN)
	setString(&cfg.Blob.Driver, EnvBlobDriver)
	setString(&cfg.Blob.FSRoot, EnvBlobFSRoot)
	setString(&cfg.Blob.S3.Bucket, EnvS3Bucket)
	setString(&cfg.Blob.S3.Region, EnvS3Region)
	setString(&cfg.Blob.S3.Endpoint, EnvS3Endpoint)
	if v, ok := os.LookupEnv(EnvS3PathStyle); ok {
		cfg.Blob.S3.PathStyle = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	setString(&cfg.Log.Level, EnvLogLevel)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}
	if cfg.Blob.Driver == "" {
		cfg.Blob.Driver = BlobFilesystem
	}
	if cfg.Blob.FSRoot == "" {
		cfg.Blob.FSRoot = defaultBlobRoot
	}
	if cfg.Blob.S3.Region == "" {
		cfg.Blob.S3.Region = defaultS3Region
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Patients.File == "" {
		cfg.Patients.File = defaultPatientDB
	}
}

// Validate rejects unknown drivers and incomplete S3 settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("%s required for s3 blob driver", EnvS3Bucket))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
