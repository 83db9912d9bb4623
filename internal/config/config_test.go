package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 18790, cfg.Gateway.Port)
	assert.Equal(t, "loopback", cfg.Gateway.Bind)
	assert.Equal(t, 20, cfg.Discovery.MaxTurns)
	assert.Equal(t, 3, cfg.Enrichment.Cadence)
	assert.Equal(t, "USD", cfg.Pricing.Currency)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  port: 9999
discovery:
  maxTurns: 10
enrichment:
  keywords: [vm, postgres]
session:
  store: memory
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, 10, cfg.Discovery.MaxTurns)
	assert.Equal(t, []string{"vm", "postgres"}, cfg.Enrichment.Keywords)
	assert.Equal(t, "memory", cfg.Session.Store)
	// untouched fields still defaulted
	assert.Equal(t, 6, cfg.Discovery.TailWindow)
	assert.Equal(t, "USD", cfg.Pricing.Currency)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUOTEMILL_GATEWAY_PORT", "7777")
	t.Setenv("QUOTEMILL_LOG_LEVEL", "DEBUG")
	t.Setenv("QUOTEMILL_PROVIDER_URL", "https://reasoner.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Gateway.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "https://reasoner.example.com", cfg.Provider.BaseURL)
}

func TestSensitiveFieldExpansion(t *testing.T) {
	t.Setenv("MY_SECRET", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  auth:
    token: ${MY_SECRET}
provider:
  apiKey: ${UNSET_VAR_XYZ}
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Gateway.Auth.Token)
	// unset vars are left as-is
	assert.Equal(t, "${UNSET_VAR_XYZ}", cfg.Provider.APIKey)
}
