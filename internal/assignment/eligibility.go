package assignment

import (
	"context"
	"time"

	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

// defaultCertificationGrace is the default window (§4.7 gate 3) during
// which an expired certification still counts as held, absent a
// per-skill override.
const defaultCertificationGrace = 7 * 24 * time.Hour

// eligible runs the five ordered hard gates of §4.7 against one
// candidate. It returns the first failing gate's reason, or "" if the
// candidate clears every gate.
func eligible(ctx context.Context, repo Repo, u models.User, taskID ids.ID, req Requirements, now time.Time) (string, error) {
	// Gate 1: status active.
	if u.Status != models.UserStatusActive {
		return "status not active", nil
	}

	// Gate 2: holds every required role.
	if !u.HasAllRoles(req.RequiredRoles) {
		return "missing required role", nil
	}

	// Gate 3: holds each required skill at >= proficiency, certification
	// not expired (within grace).
	for _, sr := range req.RequiredSkills {
		skill, ok := u.Skill(sr.Name)
		if !ok || skill.Proficiency < sr.MinProficiency {
			return "missing or insufficient skill " + sr.Name, nil
		}
		if skill.ExpiresAtUnix > 0 {
			grace := defaultCertificationGrace
			if sr.CertificationGraceSeconds > 0 {
				grace = time.Duration(sr.CertificationGraceSeconds) * time.Second
			}
			expiry := time.Unix(skill.ExpiresAtUnix, 0).Add(grace)
			if now.After(expiry) {
				return "expired certification " + sr.Name, nil
			}
		}
	}

	// Gate 4: cross-step exclusion.
	if len(req.ExcludePreviousSteps) > 0 {
		worked, err := repo.HasUserWorkedOnTask(ctx, u.ID, taskID, req.ExcludePreviousSteps)
		if err != nil {
			return "", err
		}
		if worked {
			return "previously worked an excluded step", nil
		}
	}

	// Gate 5: under the concurrent-assignment cap.
	active, err := repo.CountActiveByUser(ctx, u.ID)
	if err != nil {
		return "", err
	}
	if active >= req.EffectiveMaxAssignmentsPerUser() {
		return "at max_assignments_per_user", nil
	}

	return "", nil
}
