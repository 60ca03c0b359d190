// Package config loads AutoFlow settings from ~/.autoflow/config.yaml, the
// AUTOFLOW_* environment and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/dshills/autoflow/pkg/logging"
)

// EnvPrefix is the prefix of environment overrides, e.g. AUTOFLOW_STORE_TYPE.
const EnvPrefix = "AUTOFLOW"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config is the full AutoFlow configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir" validate:"required"`
	Log       logging.Config  `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// StoreConfig selects and configures the workflow repository.
type StoreConfig struct {
	Type   string      `mapstructure:"type" validate:"oneof=memory file sqlite redis"`
	Dir    string      `mapstructure:"dir"`
	SQLite string      `mapstructure:"sqlite_path"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the connection settings of the Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
	Enabled  bool   `mapstructure:"-"`
}

// ExecutionConfig tunes the engine.
type ExecutionConfig struct {
	MaxNodeExecutions int           `mapstructure:"max_node_executions" validate:"gte=1"`
	NodeTimeout       time.Duration `mapstructure:"node_timeout" validate:"gte=0"`
	MockMinDelay      time.Duration `mapstructure:"mock_min_delay" validate:"gte=0"`
	MockMaxDelay      time.Duration `mapstructure:"mock_max_delay" validate:"gtefield=MockMinDelay"`
	// Builtins enables the if, format, delay, schedule and filter executors.
	Builtins bool `mapstructure:"builtins"`
	// Secrets resolves secret:// configuration values from the keyring.
	Secrets bool        `mapstructure:"secrets"`
	Retry   RetryConfig `mapstructure:"retry"`
}

// RetryConfig controls retrying of failed node executions. MaxAttempts 0
// disables retries.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=0,lte=10"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gte=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gte=0"`
	NonRetryable []string      `mapstructure:"non_retryable"`
}

// CatalogConfig points at optional catalog extension files.
type CatalogConfig struct {
	Extensions []string `mapstructure:"extensions"`
}

// DefaultDir returns ~/.autoflow.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".autoflow"
	}
	return filepath.Join(home, ".autoflow")
}

// New returns a viper instance with AutoFlow defaults and env binding.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDir())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("store.type", StoreFile)
	v.SetDefault("store.dir", "")
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "autoflow")

	v.SetDefault("execution.max_node_executions", 10000)
	v.SetDefault("execution.node_timeout", 0)
	v.SetDefault("execution.mock_min_delay", 500*time.Millisecond)
	v.SetDefault("execution.mock_max_delay", 1500*time.Millisecond)
	v.SetDefault("execution.builtins", false)
	v.SetDefault("execution.secrets", false)
	v.SetDefault("execution.retry.max_attempts", 0)
	v.SetDefault("execution.retry.initial_delay", 100*time.Millisecond)
	v.SetDefault("execution.retry.max_delay", 10*time.Second)
	v.SetDefault("execution.retry.non_retryable", []string{})

	v.SetDefault("catalog.extensions", []string{})
}

// Load reads the config file into v and decodes the result. An empty path
// looks for config.yaml in DefaultDir; a missing default file is not an
// error, a missing explicit file is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDerived fills paths that default relative to the data directory.
func (c *Config) applyDerived() {
	if c.Store.Dir == "" {
		c.Store.Dir = c.DataDir
	}
	if c.Store.SQLite == "" {
		c.Store.SQLite = filepath.Join(c.DataDir, "autoflow.db")
	}
	c.Store.Redis.Enabled = c.Store.Type == StoreRedis
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
