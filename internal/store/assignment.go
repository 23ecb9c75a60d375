package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudshipai/loom/internal/assignment"
	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

// Assignments is the SQLite-backed assignment.Repo: inserts, status
// transitions, and the lookups the assignment service's eligibility gates
// need (active/lifetime load, prior-work exclusion for gate 2 in §4.7).
// Insert rejects a second non-terminal row for the same (task_id, step_id,
// user_id) with *assignment.DuplicateAssignment; it does not check that
// task_id names an existing task.
type Assignments struct {
	db *DB
}

func NewAssignments(db *DB) *Assignments {
	return &Assignments{db: db}
}

func (a *Assignments) Insert(ctx context.Context, ta models.TaskAssignment) (models.TaskAssignment, error) {
	if ta.ID.IsZero() {
		ta.ID = ids.New(ids.TagAssignment)
	}
	meta, err := json.Marshal(ta.Metadata)
	if err != nil {
		return models.TaskAssignment{}, fmt.Errorf("store: marshal assignment metadata: %w", err)
	}
	err = withWriteLock(func() error {
		var existing int
		if err := a.db.conn.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM assignments WHERE task_id = ? AND step_id = ? AND user_id = ? AND status IN (?, ?, ?)`,
			ta.TaskID.String(), ta.StepID, ta.UserID.String(),
			string(models.AssignmentAssigned), string(models.AssignmentAccepted), string(models.AssignmentInProgress)).Scan(&existing); err != nil {
			return fmt.Errorf("store: check duplicate assignment: %w", err)
		}
		if existing > 0 {
			return &assignment.DuplicateAssignment{TaskID: ta.TaskID, StepID: ta.StepID, UserID: ta.UserID}
		}
		_, err := a.db.conn.ExecContext(ctx, `
			INSERT INTO assignments (id, task_id, project_id, step_id, user_id, status, assigned_at, accepted_at, submitted_at, time_spent_ms, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ta.ID.String(), ta.TaskID.String(), ta.ProjectID.String(), ta.StepID, ta.UserID.String(),
			string(ta.Status), timeToUnixPtr(&ta.AssignedAt), timeToUnixPtr(ta.AcceptedAt), timeToUnixPtr(ta.SubmittedAt),
			ta.TimeSpentMs, string(meta))
		if err != nil {
			return fmt.Errorf("store: insert assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.TaskAssignment{}, err
	}
	return ta, nil
}

func (a *Assignments) UpdateStatus(ctx context.Context, assignmentID ids.ID, status models.AssignmentStatus) (models.TaskAssignment, error) {
	var updated models.TaskAssignment
	err := withWriteLock(func() error {
		column := ""
		switch status {
		case models.AssignmentAccepted:
			column = ", accepted_at = unixepoch()"
		case models.AssignmentSubmitted:
			column = ", submitted_at = unixepoch()"
		}
		_, err := a.db.conn.ExecContext(ctx,
			fmt.Sprintf(`UPDATE assignments SET status = ?%s WHERE id = ?`, column),
			string(status), assignmentID.String())
		if err != nil {
			return fmt.Errorf("store: update assignment status: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.TaskAssignment{}, err
	}
	updated, ok, err := a.getByID(ctx, assignmentID.String())
	if err != nil {
		return models.TaskAssignment{}, err
	}
	if !ok {
		return models.TaskAssignment{}, fmt.Errorf("store: assignment %q not found after update", assignmentID)
	}
	return updated, nil
}

func (a *Assignments) ListByUser(ctx context.Context, userID ids.ID) ([]models.TaskAssignment, error) {
	return a.list(ctx, `WHERE user_id = ? ORDER BY assigned_at ASC`, userID.String())
}

func (a *Assignments) ListByTask(ctx context.Context, taskID ids.ID) ([]models.TaskAssignment, error) {
	return a.list(ctx, `WHERE task_id = ? ORDER BY assigned_at ASC`, taskID.String())
}

func (a *Assignments) CountActiveByUser(ctx context.Context, userID ids.ID) (int, error) {
	row := a.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM assignments WHERE user_id = ? AND status IN (?, ?, ?)`,
		userID.String(), string(models.AssignmentAssigned), string(models.AssignmentAccepted), string(models.AssignmentInProgress))
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count active assignments: %w", err)
	}
	return count, nil
}

func (a *Assignments) CountLifetimeByUser(ctx context.Context, userID ids.ID) (int, error) {
	row := a.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE user_id = ?`, userID.String())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count lifetime assignments: %w", err)
	}
	return count, nil
}

func (a *Assignments) HasUserWorkedOnTask(ctx context.Context, userID, taskID ids.ID, excludeSteps []string) (bool, error) {
	if len(excludeSteps) == 0 {
		return false, nil
	}
	placeholders := make([]string, len(excludeSteps))
	args := make([]interface{}, 0, len(excludeSteps)+2)
	args = append(args, userID.String(), taskID.String())
	for i, step := range excludeSteps {
		placeholders[i] = "?"
		args = append(args, step)
	}
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM assignments WHERE user_id = ? AND task_id = ? AND step_id IN (%s)`,
		strings.Join(placeholders, ","))
	row := a.db.conn.QueryRowContext(ctx, query, args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("store: check prior assignment: %w", err)
	}
	return count > 0, nil
}

func (a *Assignments) getByID(ctx context.Context, id string) (models.TaskAssignment, bool, error) {
	rows, err := a.list(ctx, `WHERE id = ?`, id)
	if err != nil {
		return models.TaskAssignment{}, false, err
	}
	if len(rows) == 0 {
		return models.TaskAssignment{}, false, nil
	}
	return rows[0], true, nil
}

func (a *Assignments) list(ctx context.Context, where string, args ...interface{}) ([]models.TaskAssignment, error) {
	rows, err := a.db.conn.QueryContext(ctx, `
		SELECT id, task_id, project_id, step_id, user_id, status, assigned_at, accepted_at, submitted_at, time_spent_ms, metadata
		FROM assignments `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query assignments: %w", err)
	}
	defer rows.Close()

	var out []models.TaskAssignment
	for rows.Next() {
		var (
			id, taskID, projectID, stepID, userID, status, metadata string
			assignedAt                                              int64
			acceptedAt, submittedAt                                 sql.NullInt64
			timeSpentMs                                              int64
		)
		if err := rows.Scan(&id, &taskID, &projectID, &stepID, &userID, &status, &assignedAt, &acceptedAt, &submittedAt, &timeSpentMs, &metadata); err != nil {
			return nil, fmt.Errorf("store: scan assignment: %w", err)
		}
		ta := models.TaskAssignment{
			StepID:      stepID,
			Status:      models.AssignmentStatus(status),
			AssignedAt:  unixToTime(assignedAt),
			TimeSpentMs: timeSpentMs,
		}
		if ta.ID, err = ids.Parse(ids.TagAssignment, id); err != nil {
			return nil, fmt.Errorf("store: parse assignment id: %w", err)
		}
		if ta.TaskID, err = ids.Parse(ids.TagTask, taskID); err != nil {
			return nil, fmt.Errorf("store: parse assignment task id: %w", err)
		}
		if projectID != "" {
			if ta.ProjectID, err = ids.Parse(ids.TagProject, projectID); err != nil {
				return nil, fmt.Errorf("store: parse assignment project id: %w", err)
			}
		}
		if ta.UserID, err = ids.Parse(ids.TagUser, userID); err != nil {
			return nil, fmt.Errorf("store: parse assignment user id: %w", err)
		}
		if acceptedAt.Valid {
			t := unixToTime(acceptedAt.Int64)
			ta.AcceptedAt = &t
		}
		if submittedAt.Valid {
			t := unixToTime(submittedAt.Int64)
			ta.SubmittedAt = &t
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &ta.Metadata); err != nil {
				return nil, fmt.Errorf("store: unmarshal assignment metadata: %w", err)
			}
		}
		out = append(out, ta)
	}
	return out, rows.Err()
}
