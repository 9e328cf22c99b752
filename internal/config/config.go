// Package config handles configuration loading and validation for the
// database CLI. Values come from defaults, an optional config file, and
// TOYDB_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/wcygan/sql-database/pkg/storage"
)

// Config holds the runtime settings of a database instance.
type Config struct {
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// StorageConfig configures the storage stack.
type StorageConfig struct {
	// DataDir is where the catalog, WAL, and heap files live. Required.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// PageSize is fixed at 4096; it is surfaced here so a config file that
	// tries to change it fails validation instead of silently corrupting.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// BufferPoolPages bounds the page cache.
	BufferPoolPages int `mapstructure:"buffer_pool_pages" yaml:"buffer_pool_pages"`

	// WALFile is the log filename under the data directory.
	WALFile string `mapstructure:"wal_file" yaml:"wal_file"`

	// CatalogFile is the catalog filename under the data directory.
	CatalogFile string `mapstructure:"catalog_file" yaml:"catalog_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.data_dir", "./toydb_data")
	v.SetDefault("storage.page_size", storage.PageSize)
	v.SetDefault("storage.buffer_pool_pages", storage.DefaultBufferPages)
	v.SetDefault("storage.wal_file", "toydb.wal")
	v.SetDefault("storage.catalog_file", "catalog.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
}

// Load reads configuration. cfgFile may be empty, in which case only
// defaults and environment variables apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TOYDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.PageSize != storage.PageSize {
		return fmt.Errorf("storage.page_size is fixed at %d, got %d", storage.PageSize, c.Storage.PageSize)
	}
	if c.Storage.BufferPoolPages <= 0 {
		return fmt.Errorf("storage.buffer_pool_pages must be positive, got %d", c.Storage.BufferPoolPages)
	}
	if c.Storage.WALFile == "" {
		return fmt.Errorf("storage.wal_file must not be empty")
	}
	if c.Storage.CatalogFile == "" {
		return fmt.Errorf("storage.catalog_file must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug/info/warn/error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
