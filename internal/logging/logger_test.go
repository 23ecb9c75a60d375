package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoAlwaysWritesSortedFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Info("step activated", F("step_id", "review"), F("task_id", "task_01"))

	out := buf.String()
	assert.Contains(t, out, "INFO step activated")
	assert.Contains(t, out, "task_id=task_01")
	assert.Contains(t, out, "step_id=review")
	assert.Less(t, strings.Index(out, "step_id=review"), strings.Index(out, "task_id=task_01"))
}

func TestDebugSuppressedUnlessEnabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)
	l.Debug("noisy detail")
	assert.Empty(t, buf.String())

	l2 := New(&buf, true)
	l2.Debug("noisy detail")
	assert.Contains(t, buf.String(), "DEBUG noisy detail")
}

func TestNilLoggerIsSafeNoOp(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("ignored")
		l.Debug("ignored")
		l.Error("ignored")
	})
	assert.False(t, l.IsDebugEnabled())
}
