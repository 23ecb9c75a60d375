package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cloudshipai/loom/pkg/ids"
)

// ParseErrorKind discriminates the parser's failure modes (§4.1).
type ParseErrorKind string

const (
	ErrYamlSyntax          ParseErrorKind = "yaml_syntax"
	ErrUnknownStepRef      ParseErrorKind = "unknown_step_ref"
	ErrOverrideTypeMismatch ParseErrorKind = "override_type_mismatch"
)

// ParseError is returned by ParseWorkflowConfig and ParseStepLibrary.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Kind, e.Detail)
}

// rawStep is the on-the-wire shape of a step entry: either a full inline
// StepConfig, or a ref_name plus an overrides object to be resolved against
// a StepLibrary.
type rawStep struct {
	ID        string                 `yaml:"id"`
	Name      string                 `yaml:"name"`
	StepType  StepType               `yaml:"step_type"`
	Settings  StepSettings           `yaml:"settings"`
	RefName   string                 `yaml:"ref_name"`
	Overrides map[string]interface{} `yaml:"overrides"`
}

// rawWorkflow is the on-the-wire shape of a workflow document.
type rawWorkflow struct {
	ID           string              `yaml:"id"`
	Name         string              `yaml:"name"`
	WorkflowType WorkflowType        `yaml:"workflow_type"`
	EntryStepID  string              `yaml:"entry_step_id"`
	ExitStepIDs  []string            `yaml:"exit_step_ids"`
	Steps        []rawStep           `yaml:"steps"`
	Transitions  []TransitionConfig  `yaml:"transitions"`
	Settings     WorkflowSettings    `yaml:"settings"`
	Hooks        map[string]interface{} `yaml:"hooks"`
}

// ParseWorkflowConfig decodes a workflow YAML document into a WorkflowConfig,
// resolving every step's ref_name/overrides against lib. lib may be nil if
// the document contains no ref_name steps. The workflow id is parsed as a
// wf_ tagged identifier if present; when the document has no id, or one
// that does not parse as a wf_ identifier, a fresh wf_ id is minted.
func ParseWorkflowConfig(doc []byte, lib *StepLibrary) (*WorkflowConfig, error) {
	var raw rawWorkflow
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, &ParseError{Kind: ErrYamlSyntax, Detail: err.Error()}
	}

	steps := make([]StepConfig, 0, len(raw.Steps))
	for _, rs := range raw.Steps {
		if rs.RefName == "" {
			steps = append(steps, StepConfig{
				ID:       rs.ID,
				Name:     rs.Name,
				StepType: rs.StepType,
				Settings: rs.Settings,
			})
			continue
		}
		if lib == nil {
			return nil, &ParseError{
				Kind:   ErrUnknownStepRef,
				Detail: fmt.Sprintf("step %q references %q but no step library was supplied", rs.ID, rs.RefName),
			}
		}
		resolved, err := lib.resolve(rs)
		if err != nil {
			return nil, err
		}
		resolved.ID = rs.ID
		if rs.Name != "" {
			resolved.Name = rs.Name
		}
		steps = append(steps, resolved)
	}

	cfg := &WorkflowConfig{
		RawID:        raw.ID,
		Name:         raw.Name,
		WorkflowType: raw.WorkflowType,
		EntryStepID:  raw.EntryStepID,
		ExitStepIDs:  raw.ExitStepIDs,
		Steps:        steps,
		Transitions:  raw.Transitions,
		Settings:     raw.Settings,
		Hooks:        raw.Hooks,
	}

	if raw.ID != "" {
		id, err := ids.Parse(ids.TagWorkflow, raw.ID)
		if err != nil {
			id = ids.New(ids.TagWorkflow)
		}
		cfg.ID = id
	} else {
		cfg.ID = ids.New(ids.TagWorkflow)
	}

	return cfg, nil
}
