package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_BalanceValues(t *testing.T) {
	c := Default()

	assert.Equal(t, 5, c.Game.MaxHP)
	assert.Equal(t, 15, c.Game.CharacterPool)
	assert.Equal(t, 5, c.Game.CycleLength)
	assert.Equal(t, 100, c.Game.XPPerLevel)
	assert.Equal(t, 15, c.Game.DefaultPoint)
	assert.Equal(t, 3*time.Second, c.Game.NotifyDuration)
	assert.Equal(t, CollisionSkip, c.Game.Collision)
	assert.Equal(t, "file", c.Storage.Backend)
	require.NoError(t, c.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, 5, c.Game.MaxHP)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todoquest.yml")
	body := "game:\n  max_hp: 3\n  character_pool: 20\n  collision_policy: refresh\nstorage:\n  backend: sqlite\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Game.MaxHP)
	assert.Equal(t, 20, c.Game.CharacterPool)
	assert.Equal(t, CollisionRefresh, c.Game.Collision)
	assert.Equal(t, "sqlite", c.Storage.Backend)
	// Untouched knobs keep their defaults.
	assert.Equal(t, 5, c.Game.CycleLength)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todoquest.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestFromEnv_Overlay(t *testing.T) {
	t.Setenv("TODOQUEST_MAX_HP", "9")
	t.Setenv("TODOQUEST_STORAGE_BACKEND", "memory")

	c, err := FromEnv(Default())
	require.NoError(t, err)
	assert.Equal(t, 9, c.Game.MaxHP)
	assert.Equal(t, "memory", c.Storage.Backend)
}
