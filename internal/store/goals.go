package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

// Goals is the SQLite-backed goals.GoalRepo / goals.GoalStore: both ports
// share the same Get method signature, so one adapter satisfies both
// without duplication, the way this package's Annotations adapter serves
// two ports off one table.
type Goals struct {
	db *DB
}

func NewGoals(db *DB) *Goals {
	return &Goals{db: db}
}

// Put stores a newly defined goal. Composite goals' child list is also
// normalized into goal_children, a pure join table between two goal rows
// with no domain identity of its own; each row gets an opaque uuid primary
// key rather than a ids.ID, since it names a relationship, not an entity.
func (g *Goals) Put(ctx context.Context, goal models.Goal) error {
	payload, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("store: marshal goal: %w", err)
	}
	return withWriteLock(func() error {
		tx, err := g.db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin goal upsert tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO goals (id, project_id, kind, target, current, completed, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET target = excluded.target, payload = excluded.payload`,
			goal.ID.String(), goal.ProjectID.String(), string(goal.Kind), goal.Target, goal.Current, boolToInt(goal.Completed), string(payload)); err != nil {
			return fmt.Errorf("store: upsert goal: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM goal_children WHERE goal_id = ?`, goal.ID.String()); err != nil {
			return fmt.Errorf("store: clear goal children: %w", err)
		}
		for i, childID := range goal.ChildGoalIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO goal_children (id, goal_id, child_goal_id, position) VALUES (?, ?, ?, ?)`,
				uuid.NewString(), goal.ID.String(), childID.String(), i); err != nil {
				return fmt.Errorf("store: insert goal child: %w", err)
			}
		}
		return tx.Commit()
	})
}

func (g *Goals) Get(ctx context.Context, goalID string) (models.Goal, bool, error) {
	var payload string
	row := g.db.conn.QueryRowContext(ctx, `SELECT payload FROM goals WHERE id = ?`, goalID)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Goal{}, false, nil
		}
		return models.Goal{}, false, fmt.Errorf("store: read goal: %w", err)
	}
	var goal models.Goal
	if err := json.Unmarshal([]byte(payload), &goal); err != nil {
		return models.Goal{}, false, fmt.Errorf("store: unmarshal goal: %w", err)
	}

	children, err := g.childGoalIDs(ctx, goalID)
	if err != nil {
		return models.Goal{}, false, err
	}
	if children != nil {
		goal.ChildGoalIDs = children
	}
	return goal, true, nil
}

func (g *Goals) childGoalIDs(ctx context.Context, goalID string) ([]ids.ID, error) {
	rows, err := g.db.conn.QueryContext(ctx,
		`SELECT child_goal_id FROM goal_children WHERE goal_id = ? ORDER BY position ASC`, goalID)
	if err != nil {
		return nil, fmt.Errorf("store: query goal children: %w", err)
	}
	defer rows.Close()

	var out []ids.ID
	for rows.Next() {
		var childID string
		if err := rows.Scan(&childID); err != nil {
			return nil, fmt.Errorf("store: scan goal child: %w", err)
		}
		id, err := ids.Parse(ids.TagGoal, childID)
		if err != nil {
			return nil, fmt.Errorf("store: parse goal child id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpdateCurrent implements goals.GoalRepo: it rewrites both the flattened
// columns (queryable without a JSON decode) and the goal's full payload,
// keeping Current/Completed consistent in both places.
func (g *Goals) UpdateCurrent(ctx context.Context, goalID string, current float64, completed bool) error {
	return withWriteLock(func() error {
		tx, err := g.db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin goal update tx: %w", err)
		}
		defer tx.Rollback()

		var payload string
		row := tx.QueryRowContext(ctx, `SELECT payload FROM goals WHERE id = ?`, goalID)
		if err := row.Scan(&payload); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("store: goal %q not found", goalID)
			}
			return fmt.Errorf("store: read goal for update: %w", err)
		}
		var goal models.Goal
		if err := json.Unmarshal([]byte(payload), &goal); err != nil {
			return fmt.Errorf("store: unmarshal goal for update: %w", err)
		}
		goal.Current = current
		goal.Completed = completed
		updated, err := json.Marshal(goal)
		if err != nil {
			return fmt.Errorf("store: marshal updated goal: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE goals SET current = ?, completed = ?, payload = ? WHERE id = ?`,
			current, boolToInt(completed), string(updated), goalID); err != nil {
			return fmt.Errorf("store: update goal: %w", err)
		}
		return tx.Commit()
	})
}
