package goals

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cloudshipai/loom/pkg/models"
)

// CompletionAction is what the tracker does once a Goal reaches its
// target, per §4.9.
type CompletionAction string

const (
	ActionNotify            CompletionAction = "notify"
	ActionActivateNextPhase CompletionAction = "activate_next_phase"
	ActionPauseProject      CompletionAction = "pause_project"
	ActionMarkCompleted     CompletionAction = "mark_completed"
)

const (
	defaultDebounce = 5 * time.Second
	maxDebounce     = 10 * time.Second
)

// ActionHandler fires the configured completion action for a goal that
// just reached its target.
type ActionHandler interface {
	Fire(ctx context.Context, goal models.Goal, action CompletionAction) error
}

// GoalRepo loads/persists Goal rows; the tracker treats it as the
// authoritative record (§4.9: "the tracker makes no durability
// guarantees beyond at-most-once per debounce window").
type GoalRepo interface {
	Get(ctx context.Context, goalID string) (models.Goal, bool, error)
	UpdateCurrent(ctx context.Context, goalID string, current float64, completed bool) error
}

// Tracker debounces incoming events per goal (default 5s, capped at
// 10s) and, once the debounce window elapses, evaluates the goal and
// fires its completion action if newly reached. A later event within an
// open window cancels and restarts that goal's timer rather than
// stacking another evaluation, matching the teacher's graceful-stop
// idiom in internal/services/scheduler.go (one tracked timer per key,
// replaced rather than piled up).
type Tracker struct {
	Evaluator *Evaluator
	Repo      GoalRepo
	Actions   ActionHandler
	Debounce  time.Duration
	MaxDebounce time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	pending map[string]*pendingGoal
}

type pendingGoal struct {
	timer     *time.Timer
	firstSeen time.Time
}

// NewTracker constructs a Tracker with an idle cron scheduler;
// StartHeartbeat schedules and starts the Deadline heartbeat.
func NewTracker(eval *Evaluator, repo GoalRepo, actions ActionHandler) *Tracker {
	t := &Tracker{
		Evaluator:   eval,
		Repo:        repo,
		Actions:     actions,
		Debounce:    defaultDebounce,
		MaxDebounce: maxDebounce,
		pending:     map[string]*pendingGoal{},
		cron:        cron.New(),
	}
	return t
}

// StartHeartbeat schedules a periodic re-evaluation of every Deadline
// goal named by listDeadlineGoals, so on-track projections move forward
// even without new annotation events. expr is a standard 5-field cron
// expression (e.g. "0 * * * *" for hourly).
func (t *Tracker) StartHeartbeat(expr string, listDeadlineGoals func(ctx context.Context) ([]string, error)) error {
	_, err := t.cron.AddFunc(expr, func() {
		ctx := context.Background()
		ids, err := listDeadlineGoals(ctx)
		if err != nil {
			log.Printf("goals: heartbeat list failed: %v", err)
			return
		}
		for _, id := range ids {
			t.OnEvent(id)
		}
	})
	if err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Stop gracefully stops the cron heartbeat, mirroring the teacher's
// bounded-timeout shutdown.
func (t *Tracker) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		t.cron.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// OnEvent enqueues goalID for (re-)evaluation, debounced per §4.9: a new
// event arriving within an open window cancels the scheduled evaluation
// and restarts the timer, up to MaxDebounce total delay from the first
// event in the burst.
func (t *Tracker) OnEvent(goalID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	debounce := t.effectiveDebounce()
	now := time.Now()

	p, exists := t.pending[goalID]
	if exists {
		p.timer.Stop()
		if now.Sub(p.firstSeen) >= t.effectiveMaxDebounce() {
			// Burst has run past the cap; evaluate immediately instead of
			// deferring further.
			delete(t.pending, goalID)
			go t.evaluate(goalID)
			return
		}
	} else {
		p = &pendingGoal{firstSeen: now}
		t.pending[goalID] = p
	}

	delay := debounce
	if remaining := t.effectiveMaxDebounce() - now.Sub(p.firstSeen); remaining < delay {
		delay = remaining
	}
	p.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.pending, goalID)
		t.mu.Unlock()
		t.evaluate(goalID)
	})
}

func (t *Tracker) evaluate(goalID string) {
	ctx := context.Background()
	goal, ok, err := t.Repo.Get(ctx, goalID)
	if err != nil || !ok {
		if err != nil {
			log.Printf("goals: load %q failed: %v", goalID, err)
		}
		return
	}
	if goal.Completed {
		return
	}

	current, err := t.Evaluator.Evaluate(ctx, goal)
	if err != nil {
		log.Printf("goals: evaluate %q failed: %v", goalID, err)
		return
	}

	completed := goal.Kind != models.GoalDeadline && current >= goal.Target
	if err := t.Repo.UpdateCurrent(ctx, goalID, current, completed); err != nil {
		log.Printf("goals: persist %q failed: %v", goalID, err)
		return
	}

	if completed && goal.CompletionAction != "" && t.Actions != nil {
		goal.Current = current
		goal.Completed = true
		if err := t.Actions.Fire(ctx, goal, CompletionAction(goal.CompletionAction)); err != nil {
			log.Printf("goals: completion action for %q failed: %v", goalID, err)
		}
	}
}

func (t *Tracker) effectiveDebounce() time.Duration {
	if t.Debounce <= 0 {
		return defaultDebounce
	}
	return t.Debounce
}

func (t *Tracker) effectiveMaxDebounce() time.Duration {
	if t.MaxDebounce <= 0 {
		return maxDebounce
	}
	return t.MaxDebounce
}
