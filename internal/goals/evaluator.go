// Package goals implements the goal tracker (C9, §4.9): pure per-kind
// evaluators, a debounced event-driven tracker, and the completion
// actions a goal fires once its target is reached.
package goals

import (
	"context"

	"github.com/cloudshipai/loom/pkg/models"
)

// AnnotationSource is the narrow read port a Volume/Quality evaluator
// consults: matching annotations/step-results for a project, already
// filtered by filter_expr by the caller (the evaluator itself is pure
// arithmetic over whatever the source hands it).
type AnnotationSource interface {
	MatchingValues(ctx context.Context, projectID string, contribution models.Contribution) ([]float64, error)
}

// GoalStore resolves a Goal's child goals for Composite evaluation.
type GoalStore interface {
	Get(ctx context.Context, goalID string) (models.Goal, bool, error)
}

// Evaluator computes a Goal's updated Current value. It is pure given its
// inputs: no I/O of its own beyond what AnnotationSource/GoalStore
// provide, consistent with §5's "state manager, transition evaluator,
// consensus library... are synchronous and CPU-only" (the goal evaluator
// is the same shape, one layer up).
type Evaluator struct {
	Source AnnotationSource
	Goals  GoalStore
}

// Evaluate computes the new Current for goal, per its Kind. Manual goals
// are a no-op: the caller's direct API write is authoritative and
// Evaluate returns goal.Current unchanged.
func (e *Evaluator) Evaluate(ctx context.Context, goal models.Goal) (float64, error) {
	switch goal.Kind {
	case models.GoalVolume:
		return e.evaluateAggregated(ctx, goal)
	case models.GoalQuality:
		return e.evaluateWeightedAverage(ctx, goal)
	case models.GoalDeadline:
		// Deadline's "current" is still a volume/quality-style progress
		// number; on-track-ness is a separate projection (models.Goal.OnTrack),
		// not part of Current.
		return e.evaluateAggregated(ctx, goal)
	case models.GoalComposite:
		return e.evaluateComposite(ctx, goal)
	case models.GoalManual:
		return goal.Current, nil
	default:
		return goal.Current, nil
	}
}

func (e *Evaluator) evaluateAggregated(ctx context.Context, goal models.Goal) (float64, error) {
	var total float64
	for _, c := range goal.Contributions {
		values, err := e.Source.MatchingValues(ctx, goal.ProjectID.String(), c)
		if err != nil {
			return 0, err
		}
		total += c.Weight * aggregate(values, c.Aggregation)
	}
	return total, nil
}

func (e *Evaluator) evaluateWeightedAverage(ctx context.Context, goal models.Goal) (float64, error) {
	var weightedSum, weightTotal float64
	for _, c := range goal.Contributions {
		values, err := e.Source.MatchingValues(ctx, goal.ProjectID.String(), c)
		if err != nil {
			return 0, err
		}
		if len(values) == 0 {
			continue
		}
		weightedSum += c.Weight * aggregate(values, models.AggregationAvg)
		weightTotal += c.Weight
	}
	if weightTotal == 0 {
		return 0, nil
	}
	return weightedSum / weightTotal, nil
}

// evaluateComposite computes the weighted mean over child goals' Current
// values (the Open Question resolution recorded in DESIGN.md).
func (e *Evaluator) evaluateComposite(ctx context.Context, goal models.Goal) (float64, error) {
	var weightedSum, weightTotal float64
	for i, childID := range goal.ChildGoalIDs {
		child, ok, err := e.Goals.Get(ctx, childID.String())
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		weight := 1.0
		if i < len(goal.Contributions) {
			weight = goal.Contributions[i].Weight
		}
		weightedSum += weight * child.Current
		weightTotal += weight
	}
	if weightTotal == 0 {
		return 0, nil
	}
	return weightedSum / weightTotal, nil
}

func aggregate(values []float64, kind models.AggregationKind) float64 {
	if len(values) == 0 {
		return 0
	}
	switch kind {
	case models.AggregationSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case models.AggregationAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case models.AggregationMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case models.AggregationMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case models.AggregationCount:
		return float64(len(values))
	default:
		return 0
	}
}
