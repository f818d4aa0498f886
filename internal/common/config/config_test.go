package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEOCAD_CONFIG", "")
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("GEOCAD_STORE", "")
	t.Setenv("GEOCAD_ENTITY_CAP", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 20, cfg.EntityCap)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"4000\"\nstore: memory\nentity_cap: 5\nenv: production\n"), 0o644))
	t.Setenv("GEOCAD_CONFIG", path)
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("GEOCAD_STORE", "")
	t.Setenv("GEOCAD_ENTITY_CAP", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 0, cfg.EntityCap)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("GEOCAD_CONFIG", "")
	t.Setenv("GEOCAD_STORE", "postgres")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("GEOCAD_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
