package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Defaults
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	t.Run("storage defaults", func(t *testing.T) {
		assert.Equal(t, "/var/lib/obastore", config.Storage.DataDir)
		assert.Equal(t, BackendFile, config.Storage.Backend)
		assert.True(t, config.Storage.Compress)
		assert.Equal(t, 3, config.Storage.CompressionLevel)
		assert.Equal(t, 10000, config.Storage.CompactThreshold)
		assert.Equal(t, 3, config.Storage.NgramSize)
	})

	t.Run("logging defaults", func(t *testing.T) {
		assert.Equal(t, "info", config.Logging.Level)
		assert.Equal(t, "json", config.Logging.Format)
		assert.Equal(t, "stdout", config.Logging.Output)
	})

	t.Run("default indexes are valid", func(t *testing.T) {
		assert.NotEmpty(t, config.Indexes)
		assert.Empty(t, ValidateConfig(config))
	})
}

// =============================================================================
// Parsing
// =============================================================================

func TestParseConfig(t *testing.T) {
	t.Run("empty config uses defaults", func(t *testing.T) {
		config, err := ParseConfig([]byte(""))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)
	})

	t.Run("parse storage config", func(t *testing.T) {
		config, err := ParseConfig([]byte(`
storage:
  backend: memory
  syncOnWrite: true
  compress: false
  compactThreshold: 50
`))
		require.NoError(t, err)
		assert.Equal(t, BackendMemory, config.Storage.Backend)
		assert.True(t, config.Storage.SyncOnWrite)
		assert.False(t, config.Storage.Compress)
		assert.Equal(t, 50, config.Storage.CompactThreshold)
		// Unset keys keep their defaults.
		assert.Equal(t, "/var/lib/obastore", config.Storage.DataDir)
	})

	t.Run("indexes replace defaults", func(t *testing.T) {
		config, err := ParseConfig([]byte(`
indexes:
  - attribute: uid
  - attribute: entryDN
    type: equality
    singleValued: true
  - attribute: description
    type: substring
`))
		require.NoError(t, err)
		assert.Equal(t, []IndexConfig{
			{Attribute: "uid"},
			{Attribute: "entryDN", Type: "equality", SingleValued: true},
			{Attribute: "description", Type: "substring"},
		}, config.Indexes)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := ParseConfig([]byte("storage:\n  pageSize: 4096\n"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("storage: [unclosed"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})
}

func TestEnvironmentSubstitution(t *testing.T) {
	t.Setenv("OBASTORE_TEST_DIR", "/srv/directory")
	t.Setenv("OBASTORE_TEST_EMPTY", "")

	config, err := ParseConfig([]byte(`
storage:
  dataDir: ${OBASTORE_TEST_DIR}
logging:
  level: ${OBASTORE_TEST_EMPTY:-debug}
  output: ${OBASTORE_TEST_UNSET:-stderr}
`))
	require.NoError(t, err)
	assert.Equal(t, "/srv/directory", config.Storage.DataDir)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "stderr", config.Logging.Output)
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig("")
		assert.ErrorIs(t, err, ErrMissingConfigFile)
	})

	t.Run("round trip through Marshal", func(t *testing.T) {
		want := DefaultConfig()
		want.Storage.Backend = BackendMemory
		want.Logging.Format = "text"

		data, err := Marshal(want)
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, data, 0o600))

		got, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

// =============================================================================
// Validation
// =============================================================================

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		field  string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"file backend without dir", func(c *Config) { c.Storage.DataDir = "" }, "storage.dataDir"},
		{"relative data dir", func(c *Config) { c.Storage.DataDir = "data" }, "storage.dataDir"},
		{"compression level", func(c *Config) { c.Storage.CompressionLevel = 30 }, "storage.compressionLevel"},
		{"negative threshold", func(c *Config) { c.Storage.CompactThreshold = -1 }, "storage.compactThreshold"},
		{"ngram size", func(c *Config) { c.Storage.NgramSize = 1 }, "storage.ngramSize"},
		{"bad attribute", func(c *Config) { c.Indexes = []IndexConfig{{Attribute: "1cn"}} }, "indexes[0].attribute"},
		{"reserved attribute", func(c *Config) { c.Indexes = []IndexConfig{{Attribute: "entryuuid"}} }, "indexes[0].attribute"},
		{"bad type", func(c *Config) { c.Indexes = []IndexConfig{{Attribute: "cn", Type: "approx"}} }, "indexes[0].type"},
		{"single-valued substring", func(c *Config) {
			c.Indexes = []IndexConfig{{Attribute: "cn", Type: "substring", SingleValued: true}}
		}, "indexes[0].singleValued"},
		{"duplicate index", func(c *Config) {
			c.Indexes = []IndexConfig{{Attribute: "cn"}, {Attribute: "CN", Type: "eq"}}
		}, "indexes[1]"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative log output", func(c *Config) { c.Logging.Output = "obastore.log" }, "logging.output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)

			errs := ValidateConfig(config)
			require.Len(t, errs, 1)

			var verr ValidationError
			require.True(t, errors.As(errs[0], &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateConfigValid(t *testing.T) {
	config := DefaultConfig()
	config.Storage.Backend = BackendMemory
	config.Storage.DataDir = ""
	config.Indexes = append(config.Indexes,
		IndexConfig{Attribute: "2.5.4.3", Type: "presence"},
		IndexConfig{Attribute: "employeeNumber", SingleValued: true},
	)
	config.Logging.Output = filepath.Join(t.TempDir(), "obastore.log")

	assert.Empty(t, ValidateConfig(config))
}
