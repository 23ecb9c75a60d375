package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cloudshipai/loom/internal/config"
)

// ConfigStore is the SQLite-backed orchestrator.ConfigStore: published
// workflow documents are stored as their raw YAML and re-parsed on read
// against lib, the same step library the rest of the module resolves
// ref_name steps against.
type ConfigStore struct {
	db  *DB
	lib *config.StepLibrary
}

func NewConfigStore(db *DB, lib *config.StepLibrary) *ConfigStore {
	return &ConfigStore{db: db, lib: lib}
}

// Put publishes a workflow document, keyed by its parsed id.
func (s *ConfigStore) Put(ctx context.Context, doc []byte, now int64) (*config.WorkflowConfig, error) {
	cfg, err := config.ParseWorkflowConfig(doc, s.lib)
	if err != nil {
		return nil, err
	}
	err = withWriteLock(func() error {
		_, err := s.db.conn.ExecContext(ctx,
			`INSERT INTO workflow_configs (id, yaml, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET yaml = excluded.yaml, updated_at = excluded.updated_at`,
			cfg.ID.String(), doc, now)
		if err != nil {
			return fmt.Errorf("store: upsert workflow config: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigStore) Get(ctx context.Context, workflowID string) (*config.WorkflowConfig, bool, error) {
	var doc string
	row := s.db.conn.QueryRowContext(ctx, `SELECT yaml FROM workflow_configs WHERE id = ?`, workflowID)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: read workflow config: %w", err)
	}
	cfg, err := config.ParseWorkflowConfig([]byte(doc), s.lib)
	if err != nil {
		return nil, false, fmt.Errorf("store: reparse stored workflow config %q: %w", workflowID, err)
	}
	return cfg, true, nil
}
