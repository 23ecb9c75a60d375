package models

import "github.com/cloudshipai/loom/pkg/ids"

// GoalKind selects which GoalEvaluator a Goal uses, per §4.9.
type GoalKind string

const (
	GoalVolume    GoalKind = "Volume"
	GoalQuality   GoalKind = "Quality"
	GoalDeadline  GoalKind = "Deadline"
	GoalComposite GoalKind = "Composite"
	GoalManual    GoalKind = "Manual"
)

// AggregationKind names how a Contribution's matching values combine.
type AggregationKind string

const (
	AggregationSum   AggregationKind = "sum"
	AggregationAvg   AggregationKind = "avg"
	AggregationMin   AggregationKind = "min"
	AggregationMax   AggregationKind = "max"
	AggregationCount AggregationKind = "count"
)

// Contribution names one source of progress a Goal draws from.
type Contribution struct {
	StepID          string          `json:"step_id"`
	ContributionType string         `json:"contribution_type"`
	Weight          float64         `json:"weight"`
	Aggregation     AggregationKind `json:"aggregation"`
	FilterExpr      string          `json:"filter_expr,omitempty"`
}

// Goal is a measurable target tracked over a project, per §3.
type Goal struct {
	ID            ids.ID         `json:"goal_id"`
	ProjectID     ids.ID         `json:"project_id"`
	Kind          GoalKind       `json:"kind"`
	Target        float64        `json:"target"`
	Current       float64        `json:"current"`
	DeadlineUnix  int64          `json:"deadline_unix,omitempty"`
	Contributions []Contribution `json:"contributions,omitempty"`
	ChildGoalIDs  []ids.ID       `json:"child_goal_ids,omitempty"`
	CompletionAction string      `json:"completion_action,omitempty"`
	Completed     bool           `json:"completed,omitempty"`
}

// OnTrack reports whether, given a constant rate of progress since
// tracking began, Current is projected to reach Target by DeadlineUnix.
// nowUnix and startedUnix let the caller supply both without this
// method reading the wall clock itself.
func (g Goal) OnTrack(nowUnix, startedUnix int64) bool {
	if g.Kind != GoalDeadline || g.DeadlineUnix == 0 {
		return true
	}
	if nowUnix >= g.DeadlineUnix {
		return g.Current >= g.Target
	}
	elapsed := nowUnix - startedUnix
	remaining := g.DeadlineUnix - startedUnix
	if elapsed <= 0 || remaining <= 0 {
		return true
	}
	projectedRate := g.Current / float64(elapsed)
	projectedAtDeadline := projectedRate * float64(remaining)
	return projectedAtDeadline >= g.Target
}
