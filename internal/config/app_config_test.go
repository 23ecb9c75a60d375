package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := LoadAppConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultShardCount, cfg.ShardCount)
	assert.Equal(t, defaultSnapshotInterval, cfg.SnapshotInterval)
	assert.Equal(t, defaultGoalDebounce, cfg.GoalDebounce)
	assert.Equal(t, defaultGoalMaxDebounce, cfg.GoalMaxDebounce)
	assert.Equal(t, defaultSQLitePath, cfg.SQLitePath)
	assert.Same(t, cfg, Loaded())
}

func TestLoadAppConfigEnvOverrides(t *testing.T) {
	t.Setenv("LOOM_SHARD_COUNT", "32")
	t.Setenv("LOOM_SQLITE_PATH", ":memory:")
	t.Setenv("LOOM_GOAL_DEBOUNCE_MS", "1000")
	t.Setenv("LOOM_GOAL_MAX_DEBOUNCE_MS", "2000")

	cfg, err := LoadAppConfig("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.ShardCount)
	assert.Equal(t, ":memory:", cfg.SQLitePath)
	assert.Equal(t, time.Second, cfg.GoalDebounce)
	assert.Equal(t, 2*time.Second, cfg.GoalMaxDebounce)
	assert.Equal(t, "", cfg.SQLiteDir())
}

func TestLoadAppConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shard_count: 8\nsnapshot_interval: 50\n"), 0o644))

	cfg, err := LoadAppConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ShardCount)
	assert.Equal(t, 50, cfg.SnapshotInterval)
}

func TestLoadAppConfigRejectsInvertedDebounceBounds(t *testing.T) {
	t.Setenv("LOOM_GOAL_DEBOUNCE_MS", "5000")
	t.Setenv("LOOM_GOAL_MAX_DEBOUNCE_MS", "1000")

	_, err := LoadAppConfig("")
	assert.Error(t, err)
}
