package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment override (PROCRUNNER_DB_PATH, ...)
	EnvPrefix = "procrunner"
	// DefaultConfigFile is read from the working directory when no path is given
	DefaultConfigFile = "procrunner.yaml"
)

// Config keys
const (
	KeyDBPath         = "db_path"
	KeyLogLevel       = "log_level"
	KeyMaxRuns        = "max_runs"
	KeyWorkDir        = "work_dir"
	KeyMetricsFile    = "metrics_file"
	KeyHealthFile     = "health_file"
	KeyStorageType    = "storage.type"
	KeyStorageBaseDir = "storage.base_dir"
	KeyS3Bucket       = "storage.s3.bucket"
	KeyS3Prefix       = "storage.s3.prefix"
	KeyS3Region       = "storage.s3.region"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config provides read-only access to application configuration.
// Values come from defaults, an optional YAML file and PROCRUNNER_* variables,
// in increasing precedence.
type Config interface {
	DBPath() string      // SQLite database file
	LogLevel() string    // debug|info|warn|error
	MaxRuns() int        // Stage budget per invocation
	WorkDir() string     // Scratch directory for intermediate files
	MetricsFile() string // Prometheus textfile output, empty disables
	HealthFile() string  // JSON outcome of the last run, empty disables

	StorageType() string    // local|s3
	StorageBaseDir() string // Root for local source files
	S3Bucket() string
	S3Prefix() string
	S3Region() string

	// ConfigFile is the file that was read, empty when only defaults/env apply
	ConfigFile() string
}

// AppConfig is the concrete implementation of Config interface
type AppConfig struct {
	dbPath      string
	logLevel    string
	maxRuns     int
	workDir     string
	metricsFile string
	healthFile  string

	storageType    string
	storageBaseDir string
	s3Bucket       string
	s3Prefix       string
	s3Region       string

	configFile string
}

// Defaults returns the built-in configuration values
func Defaults() map[string]any {
	return map[string]any{
		KeyDBPath:         ".procrunner/procrunner.db",
		KeyLogLevel:       "warn",
		KeyMaxRuns:        1000,
		KeyWorkDir:        ".procrunner/work",
		KeyMetricsFile:    "",
		KeyHealthFile:     "",
		KeyStorageType:    StorageLocal,
		KeyStorageBaseDir: ".",
		KeyS3Bucket:       "",
		KeyS3Prefix:       "",
		KeyS3Region:       "",
	}
}

// NewViper builds a viper instance with defaults and env binding.
// path may be empty, in which case DefaultConfigFile is tried.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// An explicit --config must exist; the implicit default is optional
		if !explicit && isNotExist(err) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Load reads configuration from path (optional), env and defaults
func Load(path string) (*AppConfig, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper converts a populated viper instance into an AppConfig
func FromViper(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		dbPath:         v.GetString(KeyDBPath),
		logLevel:       strings.ToLower(v.GetString(KeyLogLevel)),
		maxRuns:        v.GetInt(KeyMaxRuns),
		workDir:        v.GetString(KeyWorkDir),
		metricsFile:    v.GetString(KeyMetricsFile),
		healthFile:     v.GetString(KeyHealthFile),
		storageType:    strings.ToLower(v.GetString(KeyStorageType)),
		storageBaseDir: v.GetString(KeyStorageBaseDir),
		s3Bucket:       v.GetString(KeyS3Bucket),
		s3Prefix:       v.GetString(KeyS3Prefix),
		s3Region:       v.GetString(KeyS3Region),
	}
	if used := v.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			cfg.configFile = used
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.dbPath == "" {
		return fmt.Errorf("%s must not be empty", KeyDBPath)
	}
	if c.maxRuns <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyMaxRuns, c.maxRuns)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s must be one of debug|info|warn|error, got %q", KeyLogLevel, c.logLevel)
	}
	switch c.storageType {
	case StorageLocal:
	case StorageS3:
		if c.s3Bucket == "" {
			return fmt.Errorf("%s is required when %s=%s", KeyS3Bucket, KeyStorageType, StorageS3)
		}
	default:
		return fmt.Errorf("%s must be %s or %s, got %q", KeyStorageType, StorageLocal, StorageS3, c.storageType)
	}
	return nil
}

// DBPath returns the SQLite database file
func (c *AppConfig) DBPath() string { return c.dbPath }

// LogLevel returns the configured log level
func (c *AppConfig) LogLevel() string { return c.logLevel }

// MaxRuns returns the stage budget per invocation
func (c *AppConfig) MaxRuns() int { return c.maxRuns }

// WorkDir returns the scratch directory
func (c *AppConfig) WorkDir() string { return c.workDir }

func (c *AppConfig) MetricsFile() string    { return c.metricsFile }
func (c *AppConfig) HealthFile() string     { return c.healthFile }
func (c *AppConfig) StorageType() string    { return c.storageType }
func (c *AppConfig) StorageBaseDir() string { return c.storageBaseDir }
func (c *AppConfig) S3Bucket() string       { return c.s3Bucket }
func (c *AppConfig) S3Prefix() string       { return c.s3Prefix }
func (c *AppConfig) S3Region() string       { return c.s3Region }

// ConfigFile returns the path of the file that was read
func (c *AppConfig) ConfigFile() string { return c.configFile }
