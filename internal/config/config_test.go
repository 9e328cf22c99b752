package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.PageSize != 4096 {
		t.Errorf("default page size = %d, want 4096", cfg.Storage.PageSize)
	}
	if cfg.Storage.BufferPoolPages != 256 {
		t.Errorf("default buffer pool = %d, want 256", cfg.Storage.BufferPoolPages)
	}
	if cfg.Storage.WALFile != "toydb.wal" {
		t.Errorf("default wal file = %q", cfg.Storage.WALFile)
	}
	if cfg.Storage.CatalogFile != "catalog.json" {
		t.Errorf("default catalog file = %q", cfg.Storage.CatalogFile)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q", cfg.Log.Level)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toydb.yaml")
	content := `storage:
  data_dir: /tmp/mydb
  buffer_pool_pages: 64
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.DataDir != "/tmp/mydb" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Storage.BufferPoolPages != 64 {
		t.Errorf("buffer_pool_pages = %d", cfg.Storage.BufferPoolPages)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Storage.WALFile != "toydb.wal" {
		t.Errorf("wal file = %q", cfg.Storage.WALFile)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		shouldError bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing data dir", func(c *Config) { c.Storage.DataDir = "" }, true},
		{"wrong page size", func(c *Config) { c.Storage.PageSize = 8192 }, true},
		{"zero buffer pool", func(c *Config) { c.Storage.BufferPoolPages = 0 }, true},
		{"negative buffer pool", func(c *Config) { c.Storage.BufferPoolPages = -1 }, true},
		{"empty wal file", func(c *Config) { c.Storage.WALFile = "" }, true},
		{"empty catalog file", func(c *Config) { c.Storage.CatalogFile = "" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.modify(cfg)
			err = cfg.Validate()
			if tt.shouldError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TOYDB_STORAGE_DATA_DIR", "/tmp/envdb")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.DataDir != "/tmp/envdb" {
		t.Errorf("env override ignored: %q", cfg.Storage.DataDir)
	}
}
