package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StepTemplate is the shape of a single named entry in a step library
// document (§4.1): everything a StepConfig carries except id/ref_name,
// since a template is keyed by name rather than by graph position.
type StepTemplate struct {
	Name     string       `yaml:"name"`
	StepType StepType     `yaml:"step_type"`
	Settings StepSettings `yaml:"settings"`
}

// StepLibrary is a named collection of reusable step templates that
// workflow documents can reference via ref_name (§4.1).
type StepLibrary struct {
	Steps map[string]StepTemplate
}

// rawLibrary mirrors the on-disk shape of a step-library YAML document:
// a top-level "steps" map from template name to template body.
type rawLibrary struct {
	Steps map[string]StepTemplate `yaml:"steps"`
}

// ParseStepLibrary decodes a step-library YAML document.
func ParseStepLibrary(doc []byte) (*StepLibrary, error) {
	var raw rawLibrary
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, &ParseError{Kind: ErrYamlSyntax, Detail: err.Error()}
	}
	return &StepLibrary{Steps: raw.Steps}, nil
}

// Merge layers other's templates on top of lib, with other taking
// precedence on name collisions. Used to layer a project-supplied library
// over the built-in templates (SPEC_FULL §4.1).
func (lib *StepLibrary) Merge(other *StepLibrary) *StepLibrary {
	merged := map[string]StepTemplate{}
	for k, v := range lib.Steps {
		merged[k] = v
	}
	for k, v := range other.Steps {
		merged[k] = v
	}
	return &StepLibrary{Steps: merged}
}

// resolve looks up ref_name in the library and merges the raw step's
// overrides onto the template, producing a fully-settled StepConfig.
func (lib *StepLibrary) resolve(raw rawStep) (StepConfig, error) {
	tmpl, ok := lib.Steps[raw.RefName]
	if !ok {
		return StepConfig{}, &ParseError{
			Kind:   ErrUnknownStepRef,
			Detail: fmt.Sprintf("no step template named %q in library", raw.RefName),
		}
	}

	// overrides is a partial step config: its "settings" map is merged onto
	// the template's settings. A map with no "settings" key is taken as
	// settings fields directly.
	overrides := raw.Overrides
	if nested, ok := overrides["settings"].(map[string]interface{}); ok {
		overrides = nested
	}
	settings, err := mergeSettings(tmpl.Settings, overrides)
	if err != nil {
		return StepConfig{}, err
	}

	name := raw.Name
	if name == "" {
		name = tmpl.Name
	}
	stepType := raw.StepType
	if stepType == "" {
		stepType = tmpl.StepType
	}

	return StepConfig{
		ID:       raw.ID,
		Name:     name,
		StepType: stepType,
		Settings: settings,
	}, nil
}

// mergeSettings applies overrides onto a template's settings following the
// three rules of §4.1: scalars and explicit nils replace wholesale,
// sequences (slices) replace wholesale, and nested objects (maps) merge
// field-by-field. overrides is the settings part of the step's decoded
// "overrides" map (see resolve); it is applied via a round trip through the settings'
// own YAML encoding so the merge logic needs no per-field special casing.
func mergeSettings(base StepSettings, overrides map[string]interface{}) (StepSettings, error) {
	if len(overrides) == 0 {
		return base, nil
	}

	baseBytes, err := yaml.Marshal(base)
	if err != nil {
		return StepSettings{}, &ParseError{Kind: ErrOverrideTypeMismatch, Detail: err.Error()}
	}
	var baseMap map[string]interface{}
	if err := yaml.Unmarshal(baseBytes, &baseMap); err != nil {
		return StepSettings{}, &ParseError{Kind: ErrOverrideTypeMismatch, Detail: err.Error()}
	}
	if baseMap == nil {
		baseMap = map[string]interface{}{}
	}

	merged, err := mergeMaps(baseMap, overrides)
	if err != nil {
		return StepSettings{}, err
	}

	mergedBytes, err := yaml.Marshal(merged)
	if err != nil {
		return StepSettings{}, &ParseError{Kind: ErrOverrideTypeMismatch, Detail: err.Error()}
	}
	var out StepSettings
	if err := yaml.Unmarshal(mergedBytes, &out); err != nil {
		return StepSettings{}, &ParseError{Kind: ErrOverrideTypeMismatch, Detail: err.Error()}
	}
	return out, nil
}

// mergeMaps implements the object field-merge rule: keys present in
// override replace the corresponding key in base, except when both sides
// hold a nested map, in which case the merge recurses. Slices (sequences)
// are always replaced wholesale, never concatenated or merged by index.
func mergeMaps(base, override map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range override {
		bv, existed := out[k]
		if existed {
			bvMap, bvIsMap := bv.(map[string]interface{})
			ovMap, ovIsMap := ov.(map[string]interface{})
			if bvIsMap && ovIsMap {
				merged, err := mergeMaps(bvMap, ovMap)
				if err != nil {
					return nil, err
				}
				out[k] = merged
				continue
			}
			if bvIsMap != ovIsMap && bv != nil && ov != nil {
				return nil, &ParseError{
					Kind:   ErrOverrideTypeMismatch,
					Detail: fmt.Sprintf("override for %q changes shape from the template's", k),
				}
			}
		}
		out[k] = ov
	}
	return out, nil
}
