package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  provider: SQLite
  dsn: /tmp/rules.db
  ruleset: edge
seed:
  prefix_correlation: true
  workers: 4
logging:
  level: DEBUG
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderSQLite, cfg.Source.Provider)
	assert.Equal(t, "/tmp/rules.db", cfg.Source.DSN)
	assert.Equal(t, "edge", cfg.Source.Ruleset)
	assert.Equal(t, "of_rules", cfg.Source.Table, "unset keys keep their defaults")
	assert.True(t, cfg.Seed.PrefixCorrelation)
	assert.Equal(t, 4, cfg.Seed.Workers)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "source: [unterminated"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "source:\n  provider: oracle\n"))
	assert.ErrorContains(t, err, "unknown rule provider")

	_, err = LoadConfig(writeConfig(t, "seed:\n  workers: 0\n"))
	assert.ErrorContains(t, err, "workers")
}

func TestLoadConfigFilterSetSource(t *testing.T) {
	path := writeConfig(t, `
source:
  provider: ClassBench
  path: filters.txt
  format: "access-list NUMBER permit PROTOCOL SRC_IP DST_IP"
  format_file: acl.fmt
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderClassBench, cfg.Source.Provider)
	assert.Equal(t, "filters.txt", cfg.Source.Path)
	assert.Equal(t, "access-list NUMBER permit PROTOCOL SRC_IP DST_IP", cfg.Source.Format)
	assert.Equal(t, "acl.fmt", cfg.Source.FormatFile)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
