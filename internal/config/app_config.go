package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the small set of process-wide settings this service needs
// at startup, the way internal/config/config.go's Config struct does for the
// teacher's much larger surface: a package-level struct populated once via
// viper binds, with typed accessors. Scope here stays narrow on purpose —
// sharding width, snapshot cadence, goal debounce bounds, and the SQLite
// path — not an AI-provider or lattice settings sprawl.
type AppConfig struct {
	// ShardCount is the number of task-ID shards the NATS dispatcher hashes
	// trigger subjects across (see orchestrator.NewNATSDispatcher).
	ShardCount int

	// SnapshotInterval is the snapshot cadence setting, in events. Nothing
	// in this module reads it: eventstore.ShouldSnapshot uses its own fixed
	// 50-event cadence, and the orchestrator does not write snapshots.
	SnapshotInterval int

	// GoalDebounce is how long the goal tracker waits after a contributing
	// event before recomputing a goal (internal/goals.Tracker.Debounce).
	GoalDebounce time.Duration

	// GoalMaxDebounce bounds how long repeated events can keep postponing a
	// recompute (internal/goals.Tracker.MaxDebounce).
	GoalMaxDebounce time.Duration

	// SQLitePath is the database file passed to store.Open. ":memory:" is
	// valid and used by tests.
	SQLitePath string
}

var loadedAppConfig *AppConfig

const (
	envPrefix = "LOOM"

	defaultShardCount       = 16
	defaultSnapshotInterval = 50
	defaultGoalDebounce     = 5 * time.Second
	defaultGoalMaxDebounce  = 10 * time.Second
	defaultSQLitePath       = "./loom.db"
)

// bindAppEnvVars binds every AppConfig field to its LOOM_* environment
// variable, the same explicit-bind discipline as the teacher's bindEnvVars:
// AutomaticEnv alone won't pick up nested keys reliably, so each key is
// bound by name.
func bindAppEnvVars(v *viper.Viper) {
	v.BindEnv("shard_count", envPrefix+"_SHARD_COUNT")
	v.BindEnv("snapshot_interval", envPrefix+"_SNAPSHOT_INTERVAL")
	v.BindEnv("goal_debounce_ms", envPrefix+"_GOAL_DEBOUNCE_MS")
	v.BindEnv("goal_max_debounce_ms", envPrefix+"_GOAL_MAX_DEBOUNCE_MS")
	v.BindEnv("sqlite_path", envPrefix+"_SQLITE_PATH")
}

// LoadAppConfig reads AppConfig from an optional YAML file plus LOOM_*
// environment variables (env wins), following the teacher's InitViper +
// Load two-step: a config file is opportunistically read first, then
// explicit env bindings and defaults fill in the rest. cfgFile may be
// empty, in which case only "./loom.yaml" is tried if present.
func LoadAppConfig(cfgFile string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	} else if _, err := os.Stat("./loom.yaml"); err == nil {
		v.SetConfigFile("./loom.yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read ./loom.yaml: %w", err)
		}
	}

	v.AutomaticEnv()
	bindAppEnvVars(v)

	v.SetDefault("shard_count", defaultShardCount)
	v.SetDefault("snapshot_interval", defaultSnapshotInterval)
	v.SetDefault("goal_debounce_ms", defaultGoalDebounce.Milliseconds())
	v.SetDefault("goal_max_debounce_ms", defaultGoalMaxDebounce.Milliseconds())
	v.SetDefault("sqlite_path", defaultSQLitePath)

	cfg := &AppConfig{
		ShardCount:       v.GetInt("shard_count"),
		SnapshotInterval: v.GetInt("snapshot_interval"),
		GoalDebounce:     time.Duration(v.GetInt64("goal_debounce_ms")) * time.Millisecond,
		GoalMaxDebounce:  time.Duration(v.GetInt64("goal_max_debounce_ms")) * time.Millisecond,
		SQLitePath:       v.GetString("sqlite_path"),
	}

	if cfg.ShardCount < 1 {
		return nil, fmt.Errorf("config: shard_count must be >= 1, got %d", cfg.ShardCount)
	}
	if cfg.SnapshotInterval < 1 {
		return nil, fmt.Errorf("config: snapshot_interval must be >= 1, got %d", cfg.SnapshotInterval)
	}
	if cfg.GoalMaxDebounce < cfg.GoalDebounce {
		return nil, fmt.Errorf("config: goal_max_debounce_ms (%s) must be >= goal_debounce_ms (%s)", cfg.GoalMaxDebounce, cfg.GoalDebounce)
	}

	loadedAppConfig = cfg
	return cfg, nil
}

// Loaded returns the AppConfig from the most recent LoadAppConfig call, or
// nil if none has run yet. Mirrors the teacher's loadedConfig package var,
// used by path helpers that need the config outside of where it was loaded.
func Loaded() *AppConfig { return loadedAppConfig }

// SQLiteDir returns the directory component of SQLitePath, creating it
// isn't this package's job (store.Open already does that) — this is just
// for callers that want to report or check the path ahead of time.
func (c *AppConfig) SQLiteDir() string {
	if c.SQLitePath == ":memory:" {
		return ""
	}
	return filepath.Dir(c.SQLitePath)
}
