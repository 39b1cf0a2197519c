// Package metrics holds the metric names and tag conventions shared by the hpcjobs services.
package metrics

import (
	"maps"
	"time"

	obserrors "github.com/target/hpcjobs/internal/observability/errors"
	"github.com/target/hpcjobs/internal/observability/statsd"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
	ResultSkipped = "skipped"
)

// Command names tagged on job.command metrics.
const (
	CommandSubmit = "submit"
	CommandCancel = "cancel"
)

// Transition describes one reconciliation outcome for metric emission.
type Transition struct {
	From   string
	To     string
	Queue  string
	Result string
	Err    error
}

// EmitTransition counts a lifecycle transition attempt as job.transition.
func EmitTransition(sink statsd.Sink, in Transition) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"from":   in.From,
		"to":     in.To,
		"queue":  in.Queue,
		"result": in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)
	sink.Count("job.transition", 1, tags)
}

// Command captures a user-initiated scheduler command.
type Command struct {
	Name     string
	Queue    string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitCommand emits job.command and, when measured, job.command_duration.
func EmitCommand(sink statsd.Sink, in Command) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"command": in.Name,
		"queue":   in.Queue,
		"result":  in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)
	sink.Count("job.command", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.command_duration", in.Duration, CloneTags(tags))
	}
}

// EmitUsage records the resources billed for a completed job.
func EmitUsage(sink statsd.Sink, queue string, cpuHours, gpuHours float64) {
	if sink == nil {
		return
	}
	tags := map[string]string{"queue": queue}
	sink.Gauge("usage.cpu_hours", cpuHours, tags)
	sink.Gauge("usage.gpu_hours", gpuHours, CloneTags(tags))
	sink.Count("usage.recorded", 1, CloneTags(tags))
}

func addErrorClass(tags map[string]string, result string, err error) {
	if err == nil || result != ResultError {
		return
	}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

// CloneTags returns a shallow copy so a sink may retain the map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
