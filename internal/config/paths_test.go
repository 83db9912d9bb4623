package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsHonorsHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("QUOTEMILL_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(base, "data", "quotemill.db"), p.Database)

	require.NoError(t, p.EnsureDirs())
	assert.DirExists(t, p.Logs)
	assert.DirExists(t, p.Data)
}

func TestParseConfigPath(t *testing.T) {
	parts, err := ParseConfigPath("gateway.auth.token")
	require.NoError(t, err)
	assert.Equal(t, []string{"gateway", "auth", "token"}, parts)

	_, err = ParseConfigPath("")
	assert.Error(t, err)

	_, err = ParseConfigPath("gateway..port")
	assert.Error(t, err)

	_, err = ParseConfigPath("gateway.__proto__")
	assert.Error(t, err)
}

func TestValueAtPath(t *testing.T) {
	root := map[string]any{}

	SetValueAtPath(root, []string{"gateway", "port"}, 9000)
	v, ok := GetValueAtPath(root, []string{"gateway", "port"})
	require.True(t, ok)
	assert.Equal(t, 9000, v)

	_, ok = GetValueAtPath(root, []string{"gateway", "missing"})
	assert.False(t, ok)

	assert.True(t, UnsetValueAtPath(root, []string{"gateway", "port"}))
	assert.False(t, UnsetValueAtPath(root, []string{"gateway", "port"}))
}
