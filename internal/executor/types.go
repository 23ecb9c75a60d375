// Package executor implements the polymorphic step-executor family (§4.4):
// Annotation, Review, Adjudication, AutoProcess, Conditional, SubWorkflow.
// Executors are stateless and synchronous from the orchestrator's point of
// view (they may suspend on I/O, per §5, but hold no durable state of
// their own); every variant is selected once at config-parse time and
// holds only its parsed, immutable StepConfig.
package executor

import (
	"context"
	"time"

	"github.com/cloudshipai/loom/internal/config"
	"github.com/cloudshipai/loom/internal/state"
	"github.com/cloudshipai/loom/pkg/models"
)

// ResultKind discriminates an ExecutionResult, mirroring the
// Complete/Waiting/Failed union of §4.4.
type ResultKind string

const (
	ResultComplete ResultKind = "complete"
	ResultWaiting  ResultKind = "waiting"
	ResultFailed   ResultKind = "failed"
)

// ExecutionResult is what every StepExecutor.Execute returns.
type ExecutionResult struct {
	Kind ResultKind

	Step state.StepResult // ResultComplete

	Message string // ResultWaiting

	Reason    string // ResultFailed
	Retryable bool   // ResultFailed

	// ContextDelta merges into the task's shared context regardless of
	// result kind; the orchestrator persists it even on Waiting, per
	// §4.10 step 5 ("persist any context deltas and stop").
	ContextDelta map[string]interface{}
}

// Complete builds a ResultComplete execution result.
func Complete(result state.StepResult) ExecutionResult {
	return ExecutionResult{Kind: ResultComplete, Step: result}
}

// Waiting builds a ResultWaiting execution result.
func Waiting(message string) ExecutionResult {
	return ExecutionResult{Kind: ResultWaiting, Message: message}
}

// WaitingWithContext builds a ResultWaiting execution result that also
// carries a context delta to persist.
func WaitingWithContext(message string, delta map[string]interface{}) ExecutionResult {
	return ExecutionResult{Kind: ResultWaiting, Message: message, ContextDelta: delta}
}

// Failed builds a ResultFailed execution result.
func Failed(reason string, retryable bool) ExecutionResult {
	return ExecutionResult{Kind: ResultFailed, Reason: reason, Retryable: retryable}
}

// SubWorkflowRunner is the port a SubWorkflow step uses to drive a nested
// workflow; implemented by the orchestrator (internal/orchestrator) to
// avoid a dependency cycle back into this package.
type SubWorkflowRunner interface {
	// Start begins (or resumes) the nested workflow identified by
	// subWorkflowID for the given logical child task, seeded with input,
	// at the given nesting depth (root = 0). It returns done=true once the
	// nested workflow has reached a terminal state, with output populated
	// from its final context.
	Start(ctx context.Context, childTaskID, subWorkflowID string, input map[string]interface{}, depth int) (done bool, output map[string]interface{}, err error)
}

// Ctx is what the orchestrator hands a StepExecutor for one invocation.
type Ctx struct {
	StepConfig    config.StepConfig
	TaskID        string
	Annotations   []models.Annotation
	User          *models.User
	TaskContext   map[string]interface{}
	StepResults   map[string]state.StepResult
	Handlers      *HandlerRegistry
	Clock         Clock
	Depth         int // current sub-workflow nesting depth (0 = root)
}

// Clock is the time port every executor consults instead of reading wall
// time directly (§9 "Time & clocks").
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock backed by time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// StepExecutor is the common executor contract from §4.4.
type StepExecutor interface {
	Execute(ctx context.Context, ec Ctx) (ExecutionResult, error)
}
