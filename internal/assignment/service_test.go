package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

type fakeRepo struct {
	assignments   map[ids.ID]models.TaskAssignment
	worked        map[ids.ID]map[string]bool // userID -> stepID -> worked
	lifetimeCount map[ids.ID]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		assignments:   map[ids.ID]models.TaskAssignment{},
		worked:        map[ids.ID]map[string]bool{},
		lifetimeCount: map[ids.ID]int{},
	}
}

func (r *fakeRepo) Insert(ctx context.Context, a models.TaskAssignment) (models.TaskAssignment, error) {
	for _, existing := range r.assignments {
		if existing.TaskID == a.TaskID && existing.StepID == a.StepID && existing.UserID == a.UserID && !existing.Status.Terminal() {
			return models.TaskAssignment{}, &DuplicateAssignment{TaskID: a.TaskID, StepID: a.StepID, UserID: a.UserID}
		}
	}
	r.assignments[a.ID] = a
	r.lifetimeCount[a.UserID]++
	return a, nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, assignmentID ids.ID, status models.AssignmentStatus) (models.TaskAssignment, error) {
	a := r.assignments[assignmentID]
	a.Status = status
	r.assignments[assignmentID] = a
	return a, nil
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID ids.ID) ([]models.TaskAssignment, error) {
	var out []models.TaskAssignment
	for _, a := range r.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByTask(ctx context.Context, taskID ids.ID) ([]models.TaskAssignment, error) {
	var out []models.TaskAssignment
	for _, a := range r.assignments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRepo) CountActiveByUser(ctx context.Context, userID ids.ID) (int, error) {
	n := 0
	for _, a := range r.assignments {
		if a.UserID == userID && !a.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) CountLifetimeByUser(ctx context.Context, userID ids.ID) (int, error) {
	return r.lifetimeCount[userID], nil
}

func (r *fakeRepo) HasUserWorkedOnTask(ctx context.Context, userID, taskID ids.ID, excludeSteps []string) (bool, error) {
	steps := r.worked[userID]
	for _, s := range excludeSteps {
		if steps[s] {
			return true, nil
		}
	}
	return false, nil
}

type fakeDirectory struct {
	users map[ids.ID]models.User
}

func (d *fakeDirectory) Get(ctx context.Context, userID ids.ID) (models.User, bool, error) {
	u, ok := d.users[userID]
	return u, ok, nil
}

func (d *fakeDirectory) ListEligible(ctx context.Context, filter func(models.User) bool) ([]models.User, error) {
	var out []models.User
	for _, u := range d.users {
		if filter(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestFindBestAssigneeFiltersByRoleAndSkill(t *testing.T) {
	repo := newFakeRepo()
	annotator := models.User{ID: ids.New(ids.TagUser), Status: models.UserStatusActive, Roles: []string{"annotator"}, Skills: []models.Skill{{Name: "nlp", Proficiency: 0.9}}}
	noSkill := models.User{ID: ids.New(ids.TagUser), Status: models.UserStatusActive, Roles: []string{"annotator"}}
	dir := &fakeDirectory{users: map[ids.ID]models.User{annotator.ID: annotator, noSkill.ID: noSkill}}

	svc := &Service{Repo: repo, Directory: dir}
	req := Requirements{RequiredRoles: []string{"annotator"}, RequiredSkills: []SkillRequirement{{Name: "nlp", MinProficiency: 0.5}}}

	got, err := svc.FindBestAssignee(context.Background(), ids.New(ids.TagTask), "annotate", req)
	require.NoError(t, err)
	assert.Equal(t, annotator.ID, got.ID)
}

func TestFindBestAssigneeNoEligibleUsers(t *testing.T) {
	repo := newFakeRepo()
	inactive := models.User{ID: ids.New(ids.TagUser), Status: models.UserStatusInactive}
	dir := &fakeDirectory{users: map[ids.ID]models.User{inactive.ID: inactive}}

	svc := &Service{Repo: repo, Directory: dir}
	_, err := svc.FindBestAssignee(context.Background(), ids.New(ids.TagTask), "annotate", Requirements{})
	var noEligible *NoEligibleUsers
	require.ErrorAs(t, err, &noEligible)
}

func TestFindBestAssigneeExcludesPreviousStepWorkers(t *testing.T) {
	repo := newFakeRepo()
	u := models.User{ID: ids.New(ids.TagUser), Status: models.UserStatusActive}
	taskID := ids.New(ids.TagTask)
	repo.worked[u.ID] = map[string]bool{"annotate": true}
	dir := &fakeDirectory{users: map[ids.ID]models.User{u.ID: u}}

	svc := &Service{Repo: repo, Directory: dir}
	req := Requirements{ExcludePreviousSteps: []string{"annotate"}}
	_, err := svc.FindBestAssignee(context.Background(), taskID, "review", req)
	var noEligible *NoEligibleUsers
	require.ErrorAs(t, err, &noEligible)
}

func TestFindBestAssigneeRespectsCertificationGrace(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	expiredRecently := models.User{
		ID: ids.New(ids.TagUser), Status: models.UserStatusActive,
		Skills: []models.Skill{{Name: "nlp", Proficiency: 0.9, ExpiresAtUnix: now.Add(-time.Hour).Unix()}},
	}
	dir := &fakeDirectory{users: map[ids.ID]models.User{expiredRecently.ID: expiredRecently}}
	svc := &Service{Repo: repo, Directory: dir}
	req := Requirements{RequiredSkills: []SkillRequirement{{Name: "nlp", MinProficiency: 0.5}}}

	got, err := svc.FindBestAssignee(context.Background(), ids.New(ids.TagTask), "annotate", req)
	require.NoError(t, err)
	assert.Equal(t, expiredRecently.ID, got.ID)
}

func TestRankLeastLoadedPrefersFewerActive(t *testing.T) {
	busy := candidate{user: models.User{ID: ids.New(ids.TagUser), JoinedAt: 1}, active: 3}
	idle := candidate{user: models.User{ID: ids.New(ids.TagUser), JoinedAt: 2}, active: 0}
	ranked := rank([]candidate{busy, idle}, StrategyLeastLoaded, nil)
	assert.Equal(t, idle.user.ID, ranked[0].user.ID)
}

func TestRankSkillWeightedPrefersHigherWeightedSum(t *testing.T) {
	low := candidate{user: models.User{ID: ids.New(ids.TagUser), JoinedAt: 1, Skills: []models.Skill{{Name: "nlp", Proficiency: 0.3}}}}
	high := candidate{user: models.User{ID: ids.New(ids.TagUser), JoinedAt: 2, Skills: []models.Skill{{Name: "nlp", Proficiency: 0.9}}}}
	ranked := rank([]candidate{low, high}, StrategySkillWeighted, []SkillRequirement{{Name: "nlp", Weight: 1}})
	assert.Equal(t, high.user.ID, ranked[0].user.ID)
}

func TestAssignTaskDuplicateOnConcurrentInsert(t *testing.T) {
	repo := newFakeRepo()
	user := models.User{ID: ids.New(ids.TagUser), Status: models.UserStatusActive}
	dir := &fakeDirectory{users: map[ids.ID]models.User{user.ID: user}}
	svc := &Service{Repo: repo, Directory: dir}
	taskID, projectID := ids.New(ids.TagTask), ids.New(ids.TagProject)

	_, err := svc.AssignTask(context.Background(), taskID, projectID, user.ID, "annotate")
	require.NoError(t, err)

	_, err = svc.AssignTask(context.Background(), taskID, projectID, user.ID, "annotate")
	var dup *DuplicateAssignment
	require.ErrorAs(t, err, &dup)
}

func TestAssignTaskUserNotFound(t *testing.T) {
	repo := newFakeRepo()
	dir := &fakeDirectory{users: map[ids.ID]models.User{}}
	svc := &Service{Repo: repo, Directory: dir}

	_, err := svc.AssignTask(context.Background(), ids.New(ids.TagTask), ids.New(ids.TagProject), ids.New(ids.TagUser), "annotate")
	var notFound *UserNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestSubmitIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	a := models.TaskAssignment{ID: ids.New(ids.TagAssignment), Status: models.AssignmentSubmitted}
	svc := &Service{Repo: repo}

	got, err := svc.Submit(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}
