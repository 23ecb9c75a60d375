// Package validation implements the structural validator (§4.2): it runs
// once, after parsing, over an entire WorkflowConfig and reports every
// problem it finds rather than stopping at the first.
package validation

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/cloudshipai/loom/internal/config"
)

// IssueKind discriminates why a single finding was reported.
type IssueKind string

const (
	IssueUnresolvedReference IssueKind = "unresolved_reference"
	IssueCycle               IssueKind = "cycle"
	IssueUnreachableStep     IssueKind = "unreachable_step"
	IssueUnreachableExit     IssueKind = "unreachable_exit"
	IssueOutOfBounds         IssueKind = "out_of_bounds"
	IssueMaxRecursionDepth   IssueKind = "max_recursion_depth"
)

// Issue is one validator finding. Suggestion is populated only for
// IssueUnresolvedReference, carrying the closest known step id by edit
// distance.
type Issue struct {
	Kind       IssueKind
	Detail     string
	Suggestion string
}

func (i Issue) String() string {
	if i.Suggestion != "" {
		return fmt.Sprintf("%s: %s (did you mean %q?)", i.Kind, i.Detail, i.Suggestion)
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}

// Result is the aggregated outcome of validating a WorkflowConfig. Errors
// make the workflow unpublishable; Warnings do not.
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// OK reports whether the workflow has no errors (warnings are permitted).
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// MaxRecursionDepthError describes a nesting depth past
// config.MaxSubWorkflowDepth. Validate does not return it; it reports the
// same condition as an IssueMaxRecursionDepth issue (see its depth
// parameter).
type MaxRecursionDepthError struct {
	Depth int
}

func (e *MaxRecursionDepthError) Error() string {
	return fmt.Sprintf("validation: sub-workflow nesting depth %d exceeds maximum %d", e.Depth, config.MaxSubWorkflowDepth)
}

// Validate runs every check in §4.2 against cfg and returns the aggregated
// result. depth is the static nesting depth of cfg within its ancestors
// (0 for a root workflow); it is used only for the sub-workflow depth
// bound, check 5.
func Validate(cfg *config.WorkflowConfig, depth int) Result {
	var r Result

	stepIDs := map[string]bool{}
	for _, s := range cfg.Steps {
		stepIDs[s.ID] = true
	}
	knownNames := make([]string, 0, len(stepIDs)+2)
	for id := range stepIDs {
		knownNames = append(knownNames, id)
	}
	knownNames = append(knownNames, config.SinkComplete, config.SinkFailed)
	sort.Strings(knownNames)

	resolves := func(name string) bool {
		return stepIDs[name] || config.IsSink(name)
	}
	suggest := func(name string) string {
		best := ""
		bestDist := -1
		for _, cand := range knownNames {
			d := levenshtein.ComputeDistance(name, cand)
			if bestDist == -1 || d < bestDist {
				bestDist = d
				best = cand
			}
		}
		return best
	}

	checkRef := func(name, context string) {
		if name == "" {
			return
		}
		if !resolves(name) {
			r.Errors = append(r.Errors, Issue{
				Kind:       IssueUnresolvedReference,
				Detail:     fmt.Sprintf("%s references unknown step %q", context, name),
				Suggestion: suggest(name),
			})
		}
	}

	// 1. References resolve.
	checkRef(cfg.EntryStepID, "entry_step_id")
	for _, e := range cfg.ExitStepIDs {
		checkRef(e, "exit_step_ids")
	}
	for _, t := range cfg.Transitions {
		checkRef(t.From, "transition from")
		checkRef(t.To, "transition to")
	}

	// 2. Acyclicity, except through retry-annotated, max_retries-bounded edges.
	checkAcyclic(cfg, &r)

	// 3. Reachability: every non-terminal step reachable from entry, every
	// exit reachable from entry.
	checkReachability(cfg, stepIDs, &r)

	// 4. Bounds.
	checkBounds(cfg, &r)

	// 5. Sub-workflow depth.
	if depth+1 > config.MaxSubWorkflowDepth {
		r.Errors = append(r.Errors, Issue{
			Kind:   IssueMaxRecursionDepth,
			Detail: fmt.Sprintf("nesting depth %d exceeds maximum %d", depth+1, config.MaxSubWorkflowDepth),
		})
	}

	return r
}

func checkAcyclic(cfg *config.WorkflowConfig, r *Result) {
	adj := map[string][]config.TransitionConfig{}
	for _, t := range cfg.Transitions {
		adj[t.From] = append(adj[t.From], t)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(node string) bool
	visit = func(node string) bool {
		color[node] = gray
		for _, t := range adj[node] {
			if config.IsSink(t.To) {
				continue
			}
			switch color[t.To] {
			case white:
				if visit(t.To) {
					return true
				}
			case gray:
				if !t.Retry {
					r.Errors = append(r.Errors, Issue{
						Kind:   IssueCycle,
						Detail: fmt.Sprintf("cycle through %q -> %q is not a retry transition", node, t.To),
					})
					return true
				}
				if stepMaxRetries(cfg, node) <= 0 {
					r.Errors = append(r.Errors, Issue{
						Kind:   IssueCycle,
						Detail: fmt.Sprintf("retry cycle through %q -> %q has no bounding max_retries", node, t.To),
					})
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for _, s := range cfg.Steps {
		if color[s.ID] == white {
			visit(s.ID)
		}
	}
}

func stepMaxRetries(cfg *config.WorkflowConfig, stepID string) int {
	s, ok := cfg.StepByID(stepID)
	if !ok {
		return 0
	}
	return s.Settings.EffectiveMaxRetries()
}

func checkReachability(cfg *config.WorkflowConfig, stepIDs map[string]bool, r *Result) {
	reachable := map[string]bool{}
	if cfg.EntryStepID != "" {
		var walk func(string)
		walk = func(node string) {
			if reachable[node] {
				return
			}
			reachable[node] = true
			for _, t := range cfg.TransitionsFrom(node) {
				if !config.IsSink(t.To) {
					walk(t.To)
				} else {
					reachable[t.To] = true
				}
			}
		}
		walk(cfg.EntryStepID)
	}

	for id := range stepIDs {
		if !reachable[id] {
			r.Errors = append(r.Errors, Issue{
				Kind:   IssueUnreachableStep,
				Detail: fmt.Sprintf("step %q is not reachable from entry_step_id %q", id, cfg.EntryStepID),
			})
		}
	}
	for _, e := range cfg.ExitStepIDs {
		if !reachable[e] {
			r.Errors = append(r.Errors, Issue{
				Kind:   IssueUnreachableExit,
				Detail: fmt.Sprintf("exit step %q is not reachable from entry_step_id %q", e, cfg.EntryStepID),
			})
		}
	}
}

func checkBounds(cfg *config.WorkflowConfig, r *Result) {
	for _, s := range cfg.Steps {
		if s.Settings.TimeoutSeconds != nil && *s.Settings.TimeoutSeconds <= 0 {
			r.Errors = append(r.Errors, Issue{
				Kind:   IssueOutOfBounds,
				Detail: fmt.Sprintf("step %q: timeout_seconds must be > 0, got %d", s.ID, *s.Settings.TimeoutSeconds),
			})
		}
		if s.Settings.MinAnnotators != nil && *s.Settings.MinAnnotators < 1 {
			r.Errors = append(r.Errors, Issue{
				Kind:   IssueOutOfBounds,
				Detail: fmt.Sprintf("step %q: min_annotators must be >= 1, got %d", s.ID, *s.Settings.MinAnnotators),
			})
		}
		if s.Settings.Agreement != nil {
			th := s.Settings.Agreement.Threshold
			if th < -1 || th > 1 {
				r.Errors = append(r.Errors, Issue{
					Kind:   IssueOutOfBounds,
					Detail: fmt.Sprintf("step %q: agreement.threshold must be in [-1,1], got %v", s.ID, th),
				})
			}
		}
		if s.Settings.MaxRetries != nil && *s.Settings.MaxRetries > 10 {
			r.Errors = append(r.Errors, Issue{
				Kind:   IssueOutOfBounds,
				Detail: fmt.Sprintf("step %q: max_retries must be <= 10, got %d", s.ID, *s.Settings.MaxRetries),
			})
		}
	}
}
