package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudshipai/loom/internal/expr"
	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

// Annotations is the SQLite-backed adapter for both orchestrator.AnnotationRepo
// (per-task, per-step lookups the executors consume) and goals.AnnotationSource
// (per-project, filter_expr-matched numeric contributions the goal evaluator
// consumes), grounded on the same table: one annotation row serves both reads.
type Annotations struct {
	db *DB
}

func NewAnnotations(db *DB) *Annotations {
	return &Annotations{db: db}
}

// Put records an annotation under projectID, the way a task repository
// outside this core would call in once a user submits one.
func (a *Annotations) Put(ctx context.Context, projectID string, ann models.Annotation) error {
	data, err := json.Marshal(ann.Data)
	if err != nil {
		return fmt.Errorf("store: marshal annotation data: %w", err)
	}
	return withWriteLock(func() error {
		_, err := a.db.conn.ExecContext(ctx, `
			INSERT INTO annotations (id, task_id, project_id, step_id, user_id, data, decision, reason, adjudication, final_decision, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data, decision = excluded.decision,
				reason = excluded.reason, adjudication = excluded.adjudication, final_decision = excluded.final_decision`,
			ann.ID.String(), ann.TaskID.String(), projectID, ann.StepID, ann.UserID.String(), string(data),
			string(ann.Decision), ann.Reason, boolToInt(ann.Adjudication), boolToInt(ann.FinalDecision), ann.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("store: insert annotation: %w", err)
		}
		return nil
	})
}

// ListFor implements orchestrator.AnnotationRepo: every annotation recorded
// against (taskID, stepID), in insertion order.
func (a *Annotations) ListFor(ctx context.Context, taskID, stepID string) ([]models.Annotation, error) {
	rows, err := a.db.conn.QueryContext(ctx, `
		SELECT id, task_id, step_id, user_id, data, decision, reason, adjudication, final_decision, created_at
		FROM annotations WHERE task_id = ? AND step_id = ? ORDER BY created_at ASC, id ASC`,
		taskID, stepID)
	if err != nil {
		return nil, fmt.Errorf("store: list annotations: %w", err)
	}
	defer rows.Close()

	var out []models.Annotation
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	return out, rows.Err()
}

// MatchingValues implements goals.AnnotationSource: every annotation
// recorded for projectID against contribution.StepID, filtered by
// contribution.FilterExpr (evaluated against the annotation's Data, empty
// expr matches everything) and reduced to one float per annotation. A
// contribution_type naming a key present in Data uses that key's numeric
// value (e.g. "agreement" pulls models.Annotation.AgreementScore's
// underlying field); anything else counts the annotation as 1, which is
// what a plain Volume contribution wants.
func (a *Annotations) MatchingValues(ctx context.Context, projectID string, contribution models.Contribution) ([]float64, error) {
	rows, err := a.db.conn.QueryContext(ctx, `
		SELECT id, task_id, step_id, user_id, data, decision, reason, adjudication, final_decision, created_at
		FROM annotations WHERE project_id = ? AND step_id = ?`,
		projectID, contribution.StepID)
	if err != nil {
		return nil, fmt.Errorf("store: query contribution annotations: %w", err)
	}
	defer rows.Close()

	var filter *expr.Expr
	if contribution.FilterExpr != "" {
		filter, err = expr.Parse(contribution.FilterExpr)
		if err != nil {
			return nil, fmt.Errorf("store: parse contribution filter_expr: %w", err)
		}
	}

	var values []float64
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			matched, err := filter.EvalBool(expr.MapContext{TaskContext: ann.Data})
			if err != nil {
				return nil, fmt.Errorf("store: evaluate contribution filter_expr: %w", err)
			}
			if !matched {
				continue
			}
		}
		values = append(values, contributionValue(ann, contribution.ContributionType))
	}
	return values, rows.Err()
}

func contributionValue(ann models.Annotation, contributionType string) float64 {
	if contributionType == "agreement" {
		if score, ok := ann.AgreementScore(); ok {
			return score
		}
	}
	if raw, ok := ann.Data[contributionType]; ok {
		switch v := raw.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 1
}

func scanAnnotation(rows interface{ Scan(...interface{}) error }) (models.Annotation, error) {
	var (
		id, taskID, userID, stepID, decision, reason, data string
		adjudication, finalDecision                        int
		createdAt                                          int64
	)
	if err := rows.Scan(&id, &taskID, &stepID, &userID, &data, &decision, &reason, &adjudication, &finalDecision, &createdAt); err != nil {
		return models.Annotation{}, fmt.Errorf("store: scan annotation: %w", err)
	}

	idVal, err := ids.Parse(ids.TagAnnotation, id)
	if err != nil {
		return models.Annotation{}, fmt.Errorf("store: parse annotation id: %w", err)
	}
	taskVal, err := ids.Parse(ids.TagTask, taskID)
	if err != nil {
		return models.Annotation{}, fmt.Errorf("store: parse annotation task id: %w", err)
	}
	userVal, err := ids.Parse(ids.TagUser, userID)
	if err != nil {
		return models.Annotation{}, fmt.Errorf("store: parse annotation user id: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return models.Annotation{}, fmt.Errorf("store: unmarshal annotation data: %w", err)
	}

	return models.Annotation{
		ID:            idVal,
		TaskID:        taskVal,
		StepID:        stepID,
		UserID:        userVal,
		Data:          payload,
		Decision:      models.Decision(decision),
		Reason:        reason,
		Adjudication:  adjudication != 0,
		FinalDecision: finalDecision != 0,
		CreatedAt:     unixToTime(createdAt),
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
