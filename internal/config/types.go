// Package config parses workflow definitions (the "Workflow YAML" of §6)
// into a typed, immutable WorkflowConfig, resolving step-library references
// along the way. The parser itself performs no I/O beyond reading the
// buffers it is handed and does no structural validation: that is
// internal/validation's job (C2).
package config

import (
	"github.com/cloudshipai/loom/pkg/ids"
)

// WorkflowType classifies the overall shape of a workflow, per §3.
type WorkflowType string

const (
	WorkflowTypeSingle     WorkflowType = "single"
	WorkflowTypeMultiStep  WorkflowType = "multi_step"
	WorkflowTypeBranching  WorkflowType = "branching"
	WorkflowTypeConsensus  WorkflowType = "consensus"
)

// StepType is one of the six step executors the orchestrator dispatches to.
type StepType string

const (
	StepTypeAnnotation  StepType = "Annotation"
	StepTypeReview      StepType = "Review"
	StepTypeAdjudication StepType = "Adjudication"
	StepTypeAutoProcess StepType = "AutoProcess"
	StepTypeConditional StepType = "Conditional"
	StepTypeSubWorkflow StepType = "SubWorkflow"
)

// Virtual sink step ids, terminal pseudo-steps that end a workflow without
// needing an explicit step (§3, §4.5).
const (
	SinkComplete = "_complete"
	SinkFailed   = "_failed"
)

// IsSink reports whether a step id names one of the virtual terminal sinks.
func IsSink(stepID string) bool {
	return stepID == SinkComplete || stepID == SinkFailed
}

// Visibility controls whether annotators see each other's submissions
// during an Annotation step (§4.4.1).
type Visibility string

const (
	VisibilityBlind         Visibility = "blind"
	VisibilityCollaborative Visibility = "collaborative"
)

// AgreementSettings names the consensus metric and threshold a step or
// transition consults (§3 StepSettings, §4.5 on_agreement/on_disagreement).
type AgreementSettings struct {
	Metric    string  `yaml:"metric" json:"metric"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// StepSettings is the sparse, per-step-type configuration bag described in
// §3. Every field is optional; step executors read only the fields that
// apply to their type and fall back to documented defaults otherwise.
type StepSettings struct {
	MinAnnotators   *int               `yaml:"min_annotators,omitempty" json:"min_annotators,omitempty"`
	Visibility      Visibility         `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	RequiredRoles   []string           `yaml:"required_roles,omitempty" json:"required_roles,omitempty"`
	ShowPrevious    *bool              `yaml:"show_previous,omitempty" json:"show_previous,omitempty"`
	Handler         string             `yaml:"handler,omitempty" json:"handler,omitempty"`
	HandlerConfig   map[string]interface{} `yaml:"handler_config,omitempty" json:"handler_config,omitempty"`
	Condition       string             `yaml:"condition,omitempty" json:"condition,omitempty"`
	TrueBranch      string             `yaml:"true_branch,omitempty" json:"true_branch,omitempty"`
	FalseBranch     string             `yaml:"false_branch,omitempty" json:"false_branch,omitempty"`
	SubWorkflowID   string             `yaml:"sub_workflow_id,omitempty" json:"sub_workflow_id,omitempty"`
	InputMapping    map[string]string  `yaml:"input_mapping,omitempty" json:"input_mapping,omitempty"`
	OutputMapping   map[string]string  `yaml:"output_mapping,omitempty" json:"output_mapping,omitempty"`
	TimeoutSeconds  *int               `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	MaxRetries      *int               `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	Agreement       *AgreementSettings `yaml:"agreement,omitempty" json:"agreement,omitempty"`
}

// DefaultRequiredRoles is the default required-role set for an Adjudication
// step (§4.4.3).
var DefaultRequiredRoles = []string{"adjudicator"}

// EffectiveShowPrevious returns show_previous with its §4.4.3 default (true).
func (s StepSettings) EffectiveShowPrevious() bool {
	if s.ShowPrevious == nil {
		return true
	}
	return *s.ShowPrevious
}

// EffectiveMinAnnotators returns min_annotators with a floor of 1.
func (s StepSettings) EffectiveMinAnnotators() int {
	if s.MinAnnotators == nil || *s.MinAnnotators < 1 {
		return 1
	}
	return *s.MinAnnotators
}

// EffectiveRequiredRoles returns required_roles, defaulting to {adjudicator}
// when empty (Adjudication steps only consult this default per §4.4.3; other
// step types treat an empty list as "no role gate").
func (s StepSettings) EffectiveRequiredRoles() []string {
	if len(s.RequiredRoles) == 0 {
		return DefaultRequiredRoles
	}
	return s.RequiredRoles
}

// EffectiveMaxRetries returns max_retries, defaulting to 3 attempts for
// AutoProcess per §4.4.4.
func (s StepSettings) EffectiveMaxRetries() int {
	if s.MaxRetries == nil {
		return 3
	}
	return *s.MaxRetries
}

// StepConfig is a single node in the workflow graph.
type StepConfig struct {
	ID       string       `yaml:"id" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	StepType StepType     `yaml:"step_type" json:"step_type"`
	Settings StepSettings `yaml:"settings" json:"settings"`

	// RefName and Overrides are parse-time-only fields: ParseWorkflowConfig
	// resolves a step's ref_name/overrides from the raw document and never
	// copies them here, so a parsed WorkflowConfig carries them empty.
	RefName   string                 `yaml:"ref_name,omitempty" json:"-"`
	Overrides map[string]interface{} `yaml:"overrides,omitempty" json:"-"`
}

// ConditionType selects how a TransitionConfig decides whether it fires,
// per the §4.5 table.
type ConditionType string

const (
	ConditionAlways        ConditionType = "always"
	ConditionOnComplete    ConditionType = "on_complete"
	ConditionOnAgreement   ConditionType = "on_agreement"
	ConditionOnDisagreement ConditionType = "on_disagreement"
	ConditionExpression    ConditionType = "expression"
)

// TransitionCondition guards a TransitionConfig.
type TransitionCondition struct {
	Type       ConditionType `yaml:"type" json:"type"`
	Expression string        `yaml:"expression,omitempty" json:"expression,omitempty"`
	// Threshold overrides the originating step's agreement.threshold for
	// on_agreement/on_disagreement when set; nil defers to the step.
	Threshold *float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
}

// TransitionConfig is a directed, guarded edge between two steps (or a
// virtual sink).
type TransitionConfig struct {
	From      string               `yaml:"from" json:"from"`
	To        string               `yaml:"to" json:"to"`
	Condition TransitionCondition  `yaml:"condition" json:"condition"`
	// Retry marks this edge as an intentional loop-back; the structural
	// validator permits a cycle only through edges carrying this flag,
	// bounded by the origin step's settings.max_retries (§4.2 item 2).
	Retry bool `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// OnNoMatch is the workflow-level fallback when no transition out of a
// completed step is satisfied (§4.5).
type OnNoMatch string

const (
	OnNoMatchFail     OnNoMatch = "fail"
	OnNoMatchComplete OnNoMatch = "complete"
)

// WorkflowSettings are workflow-wide knobs outside any single step.
type WorkflowSettings struct {
	AllowParallelSteps bool      `yaml:"allow_parallel_steps,omitempty" json:"allow_parallel_steps,omitempty"`
	OnNoMatch          OnNoMatch `yaml:"on_no_match,omitempty" json:"on_no_match,omitempty"`
	MaxSubWorkflowDepth int      `yaml:"max_sub_workflow_depth,omitempty" json:"max_sub_workflow_depth,omitempty"`
}

// EffectiveOnNoMatch defaults on_no_match to "fail".
func (s WorkflowSettings) EffectiveOnNoMatch() OnNoMatch {
	if s.OnNoMatch == "" {
		return OnNoMatchFail
	}
	return s.OnNoMatch
}

// MaxSubWorkflowDepth is the hard cap from §4.4.6/§4.2 item 5: three levels
// of nesting, including the root.
const MaxSubWorkflowDepth = 3

// WorkflowConfig is the immutable, published workflow definition.
type WorkflowConfig struct {
	ID           ids.ID              `yaml:"-" json:"id"`
	RawID        string              `yaml:"id" json:"-"`
	Name         string              `yaml:"name" json:"name"`
	WorkflowType WorkflowType        `yaml:"workflow_type" json:"workflow_type"`
	EntryStepID  string              `yaml:"entry_step_id" json:"entry_step_id"`
	ExitStepIDs  []string            `yaml:"exit_step_ids" json:"exit_step_ids"`
	Steps        []StepConfig        `yaml:"steps" json:"steps"`
	Transitions  []TransitionConfig  `yaml:"transitions" json:"transitions"`
	Settings     WorkflowSettings    `yaml:"settings" json:"settings"`
	Hooks        map[string]interface{} `yaml:"hooks,omitempty" json:"hooks,omitempty"`
}

// StepByID returns the step with the given id, if present.
func (c *WorkflowConfig) StepByID(id string) (StepConfig, bool) {
	for _, s := range c.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepConfig{}, false
}

// AllStepIDs returns every non-virtual step id declared in the workflow.
func (c *WorkflowConfig) AllStepIDs() []string {
	out := make([]string, 0, len(c.Steps))
	for _, s := range c.Steps {
		out = append(out, s.ID)
	}
	return out
}

// TransitionsFrom returns the outgoing transitions for a step, in the
// declaration order they appear in the workflow document (first-match
// tie-break for the transition evaluator, §4.5).
func (c *WorkflowConfig) TransitionsFrom(stepID string) []TransitionConfig {
	var out []TransitionConfig
	for _, t := range c.Transitions {
		if t.From == stepID {
			out = append(out, t)
		}
	}
	return out
}

// IsExitStep reports whether a step id is declared in exit_step_ids.
func (c *WorkflowConfig) IsExitStep(stepID string) bool {
	for _, e := range c.ExitStepIDs {
		if e == stepID {
			return true
		}
	}
	return false
}
