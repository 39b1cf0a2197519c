package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmitTransition(t *testing.T) {
	rec := NewRecorder()

	EmitTransition(rec, Transition{From: "QUEUED", To: "RUNNING", Queue: "gpu", Result: ResultSuccess})
	EmitTransition(rec, Transition{
		From: "RUNNING", To: "COMPLETED", Queue: "gpu", Result: ResultError,
		Err: fmt.Errorf("apply: %w", context.DeadlineExceeded),
	})

	assert.Equal(t, int64(2), rec.CountOf("job.transition"))
	tags := rec.TagsOf("job.transition")
	assert.Equal(t, map[string]string{"from": "QUEUED", "to": "RUNNING", "queue": "gpu", "result": "success"}, tags[0])
	assert.Equal(t, "timeout", tags[1]["error_class"])
}

func TestEmitCommand(t *testing.T) {
	rec := NewRecorder()

	EmitCommand(rec, Command{Name: CommandSubmit, Queue: "compute", Result: ResultSuccess, Duration: 40 * time.Millisecond})
	EmitCommand(rec, Command{Name: CommandCancel, Queue: "compute", Result: ResultNoop})

	assert.Equal(t, int64(2), rec.CountOf("job.command"))
	assert.Len(t, rec.Timings["job.command_duration"], 1)
	assert.NotContains(t, rec.TagsOf("job.command")[1], "error_class")
}

func TestEmitUsage(t *testing.T) {
	rec := NewRecorder()

	EmitUsage(rec, "gpu", 16, 2)

	assert.InDelta(t, 16.0, rec.Gauges["usage.cpu_hours"], 1e-9)
	assert.InDelta(t, 2.0, rec.Gauges["usage.gpu_hours"], 1e-9)
	assert.Equal(t, int64(1), rec.CountOf("usage.recorded"))
}

func TestNilSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitTransition(nil, Transition{Result: ResultSuccess})
		EmitCommand(nil, Command{Result: ResultSuccess})
		EmitUsage(nil, "q", 1, 1)
	})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))

	src := map[string]string{"a": "1"}
	dst := CloneTags(src)
	dst["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
