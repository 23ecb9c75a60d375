// Package orchestrator implements the single entrypoint of §4.10:
// process(task_id, trigger), the 8-step load/execute/transition/persist
// cycle that drives every other component package.
package orchestrator

import (
	"context"
	"time"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/pkg/models"
)

// ConfigStore is the consumed port of §6: get(workflow_id) -> WorkflowConfig.
// Implementations are expected to cache reads and invalidate on publish;
// the orchestrator itself treats every call as authoritative.
type ConfigStore interface {
	Get(ctx context.Context, workflowID string) (*config.WorkflowConfig, bool, error)
}

// AnnotationRepo is the consumed port of §6: list_for(task_id, step_id).
type AnnotationRepo interface {
	ListFor(ctx context.Context, taskID, stepID string) ([]models.Annotation, error)
}

// Clock is the time port the orchestrator consults for event timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// GoalNotifier is the asynchronous fan-out to C9 (§4.10 step 8). The
// orchestrator never blocks the task's critical path on it. OnEvent
// receives the id of the task whose events were just appended.
type GoalNotifier interface {
	OnEvent(taskID string)
}
