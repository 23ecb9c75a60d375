package assignment

import (
	"context"

	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

// Repo is the consumed AssignmentRepo port (§6): the storage-backed
// operations the assignment service needs, with the uniqueness
// constraint and foreign-key checks enforced by the implementation.
type Repo interface {
	Insert(ctx context.Context, a models.TaskAssignment) (models.TaskAssignment, error)
	UpdateStatus(ctx context.Context, assignmentID ids.ID, status models.AssignmentStatus) (models.TaskAssignment, error)
	ListByUser(ctx context.Context, userID ids.ID) ([]models.TaskAssignment, error)
	ListByTask(ctx context.Context, taskID ids.ID) ([]models.TaskAssignment, error)
	CountActiveByUser(ctx context.Context, userID ids.ID) (int, error)
	CountLifetimeByUser(ctx context.Context, userID ids.ID) (int, error)
	HasUserWorkedOnTask(ctx context.Context, userID, taskID ids.ID, excludeSteps []string) (bool, error)
}

// Directory is the consumed UserDirectory port (§6).
type Directory interface {
	Get(ctx context.Context, userID ids.ID) (models.User, bool, error)
	ListEligible(ctx context.Context, filter func(models.User) bool) ([]models.User, error)
}
