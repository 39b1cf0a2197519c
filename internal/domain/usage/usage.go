// Package usage computes billable resource consumption for finished jobs.
package usage

import (
	"time"

	"github.com/target/hpcjobs/internal/domain/model"
)

const secondsPerHour = 3600.0

// RuntimeSeconds returns the whole seconds between start and end, clamped at zero.
func RuntimeSeconds(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Compute derives the usage record for job from its observed start and end.
// ID and CreatedAt are left for the store to assign.
func Compute(job *model.Job, start, end time.Time) model.UsageRecord {
	runtime := RuntimeSeconds(start, end)
	hours := float64(runtime) / secondsPerHour

	return model.UsageRecord{
		JobID:           job.ID,
		UserID:          job.UserID,
		CPUHours:        float64(job.Nodes*job.TasksPerNode*job.CPUsPerTask) * hours,
		GPUHours:        float64(job.Nodes*job.GPUsPerNode) * hours,
		WalltimeSeconds: runtime,
	}
}
