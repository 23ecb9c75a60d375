// Package assignment implements the assignment service (§4.7): eligibility
// gating, skill/role matching, cross-step exclusion, load-balanced ranking,
// and atomic, race-safe insert of a TaskAssignment.
package assignment

import (
	"context"
	"time"

	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

// Clock is the time port the service consults for assigned_at timestamps
// and certification-expiry comparisons (§6).
type Clock interface {
	Now() time.Time
}

// Service is the assignment service's entrypoint, closing over the ports
// it consumes.
type Service struct {
	Repo      Repo
	Directory Directory
	Clock     Clock
}

// FindBestAssignee runs the five eligibility gates of §4.7 over every
// user the directory reports as a candidate (filtered to active users,
// the cheapest narrowing the directory can do before the remaining gates
// run), then ranks the survivors by strategy and returns
// the top candidate.
func (s *Service) FindBestAssignee(ctx context.Context, taskID ids.ID, stepID string, req Requirements) (models.User, error) {
	now := s.now()

	candidates, err := s.Directory.ListEligible(ctx, func(u models.User) bool {
		return u.Status == models.UserStatusActive
	})
	if err != nil {
		return models.User{}, err
	}

	var eligibleUsers []models.User
	for _, u := range candidates {
		reason, err := eligible(ctx, s.Repo, u, taskID, req, now)
		if err != nil {
			return models.User{}, err
		}
		if reason == "" {
			eligibleUsers = append(eligibleUsers, u)
		}
	}
	if len(eligibleUsers) == 0 {
		return models.User{}, &NoEligibleUsers{StepID: stepID}
	}

	pool, err := candidatesForUsers(ctx, s.Repo, eligibleUsers)
	if err != nil {
		return models.User{}, err
	}
	ranked := rank(pool, req.EffectiveStrategy(), req.RequiredSkills)
	return ranked[0].user, nil
}

// AssignTask inserts a new Assigned assignment atomically. The repo's
// (task_id, step_id, user_id) uniqueness constraint is the sole source
// of truth for concurrent-insert races (S6): whichever caller's insert
// lands first wins, the other observes DuplicateAssignment.
func (s *Service) AssignTask(ctx context.Context, taskID, projectID, userID ids.ID, stepID string) (models.TaskAssignment, error) {
	_, ok, err := s.Directory.Get(ctx, userID)
	if err != nil {
		return models.TaskAssignment{}, err
	}
	if !ok {
		return models.TaskAssignment{}, &UserNotFound{UserID: userID}
	}

	a := models.TaskAssignment{
		ID:         ids.New(ids.TagAssignment),
		TaskID:     taskID,
		ProjectID:  projectID,
		StepID:     stepID,
		UserID:     userID,
		Status:     models.AssignmentAssigned,
		AssignedAt: s.now(),
	}
	return s.Repo.Insert(ctx, a)
}

// Submit records a user's submission. It is idempotent: a second call on
// an already-Submitted assignment leaves submitted_at untouched and
// returns the stored row, rather than erroring.
func (s *Service) Submit(ctx context.Context, a models.TaskAssignment) (models.TaskAssignment, error) {
	if a.Status == models.AssignmentSubmitted {
		return a, nil
	}
	return s.Repo.UpdateStatus(ctx, a.ID, models.AssignmentSubmitted)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
