package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewServerConfig()
	assert.Equal(t, 16, cfg.Capacity)
	assert.Equal(t, 4, cfg.MaxConcurrency)
}

func TestChainableSetters(t *testing.T) {
	cfg := NewServerConfig().WithCapacity(64).WithMaxConcurrency(8)
	assert.Equal(t, 64, cfg.Capacity)
	assert.Equal(t, 8, cfg.MaxConcurrency)

	// Value semantics: the original is untouched.
	base := NewServerConfig()
	_ = base.WithCapacity(1)
	assert.Equal(t, 16, base.Capacity)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, NewServerConfig(), cfg)
}

func TestLoadPartialOverrideMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capacity": 32}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Capacity, "present fields override the default")
	assert.Equal(t, 4, cfg.MaxConcurrency, "absent fields keep the default")
}

func TestLoadFullOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capacity": 128, "max_concurrency": 16}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ServerConfig{Capacity: 128, MaxConcurrency: 16}, cfg)
}

func TestLoadRejectsNonpositiveValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capacity": 0}`), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capacity": `), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
