// Package testutil holds small helpers shared by more than one package's
// tests, kept deliberately narrow: add to it only when a second caller
// actually needs what's here.
package testutil

// IntPtr returns a pointer to n, for constructing config.StepSettings'
// optional *int fields (min_annotators, timeout_seconds, max_retries)
// directly in Go rather than through a parsed YAML document.
func IntPtr(n int) *int { return &n }
