// Package templates embeds the built-in step-library YAML documents a
// workflow config can ref_name against, the way the teacher's own
// internal/templates embeds its workflow bundles.
package templates

import _ "embed"

// DefaultLibrary is the step-library YAML shipped with this module:
// single/double-pass annotation, blind/sighted review, disagreement-
// triggered adjudication, and the two built-in AutoProcess handlers
// (majority vote, passthrough), each a ready-made StepTemplate a
// workflow config can reference by ref_name.
//
//go:embed library/defaults.yml
var DefaultLibrary string
