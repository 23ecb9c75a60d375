package executor

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/cloudshipai/loom/internal/state"
)

// backoffSchedule matches §4.4.4 exactly: initial 1s, multiplier 4x,
// capped at 16s, total budget 60s.
func backoffSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 4
	b.MaxInterval = 16 * time.Second
	b.MaxElapsedTime = 60 * time.Second
	b.RandomizationFactor = 0
	return b
}

// AutoProcessExecutor implements §4.4.4: it resolves a named handler from
// the registry and invokes it, retrying transient errors on the schedule
// above up to a default of 3 attempts. Permanent errors (handlers
// returning *PermanentError) are never retried.
type AutoProcessExecutor struct {
	Handlers *HandlerRegistry
}

func (e *AutoProcessExecutor) Execute(ctx context.Context, ec Ctx) (ExecutionResult, error) {
	handlerName := ec.StepConfig.Settings.Handler
	if handlerName == "" {
		return ExecutionResult{}, &ConfigurationError{StepID: ec.StepConfig.ID, Detail: "AutoProcess step has no handler configured"}
	}

	h, ok := e.Handlers.Get(handlerName)
	if !ok {
		return ExecutionResult{}, &HandlerNotFoundError{Handler: handlerName}
	}

	maxAttempts := ec.StepConfig.Settings.EffectiveMaxRetries()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	in := HandlerInput{
		Annotations:   ec.Annotations,
		Context:       ec.TaskContext,
		HandlerConfig: ec.StepConfig.Settings.HandlerConfig,
	}

	var output map[string]interface{}
	attempts := 0
	operation := func() error {
		attempts++
		out, err := h.Handle(ctx, in)
		if err == nil {
			output = out
			return nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return backoff.Permanent(err)
		}
		if attempts >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.WithMaxRetries(backoffSchedule(), uint64(maxAttempts-1))
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if err != nil {
		// Every exit path here has already exhausted this step's own
		// retry budget (permanent error, or the backoff/attempt cap was
		// hit), so the step itself is never retryable; a workflow author
		// wanting another attempt expresses that as a retry transition
		// bounded by its own max_retries (§9).
		return Failed(err.Error(), false), nil
	}

	return Complete(state.StepResult{Kind: state.ResultAutoProcessed, Output: output}), nil
}
