package testutil

import (
	"github.com/target/hpcjobs/internal/domain/model"
)

// JobRequestBuilder builds CreateJobRequest values with valid defaults.
type JobRequestBuilder struct {
	req model.CreateJobRequest
}

// NewJobRequest starts a request for a one-node job on the "compute" queue.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: model.CreateJobRequest{
			Name:            "train-model",
			Queue:           "compute",
			WalltimeSeconds: 3600,
			Environment:     model.NewModulesEnvironment("gcc/12.2"),
			Command:         "./run.sh",
		},
	}
}

// WithName sets the job name.
func (b *JobRequestBuilder) WithName(name string) *JobRequestBuilder {
	b.req.Name = name
	return b
}

// WithQueue sets the partition.
func (b *JobRequestBuilder) WithQueue(queue string) *JobRequestBuilder {
	b.req.Queue = queue
	return b
}

// WithResources sets nodes, tasks per node, CPUs per task and GPUs per node.
func (b *JobRequestBuilder) WithResources(nodes, tasks, cpus, gpus int) *JobRequestBuilder {
	b.req.Nodes = IntPtr(nodes)
	b.req.TasksPerNode = IntPtr(tasks)
	b.req.CPUsPerTask = IntPtr(cpus)
	b.req.GPUsPerNode = IntPtr(gpus)
	return b
}

// WithWalltime sets the walltime in seconds.
func (b *JobRequestBuilder) WithWalltime(seconds int) *JobRequestBuilder {
	b.req.WalltimeSeconds = seconds
	return b
}

// WithEnvironment sets the execution environment.
func (b *JobRequestBuilder) WithEnvironment(env model.Environment) *JobRequestBuilder {
	b.req.Environment = env
	return b
}

// WithCommand sets the main command and optional arguments.
func (b *JobRequestBuilder) WithCommand(cmd string, args string) *JobRequestBuilder {
	b.req.Command = cmd
	if args != "" {
		b.req.Arguments = StringPtr(args)
	}
	return b
}

// Build returns a copy of the request.
func (b *JobRequestBuilder) Build() model.CreateJobRequest {
	return b.req
}

// Record wraps the request in a CreateJobRecord for userID.
func (b *JobRequestBuilder) Record(userID string) *model.CreateJobRecord {
	return &model.CreateJobRecord{UserID: userID, Request: b.req}
}

// NewJob returns a persisted-looking job in status with an external id, for service tests.
func NewJob(id string, status model.JobStatus) *model.Job {
	ext := "1000"
	return &model.Job{
		ID:               id,
		UserID:           "alice",
		Name:             "train-model",
		Type:             model.JobTypeSingle,
		ExternalID:       &ext,
		Queue:            "compute",
		Nodes:            2,
		TasksPerNode:     4,
		CPUsPerTask:      2,
		MemoryPerNodeGB:  4,
		GPUsPerNode:      1,
		WalltimeSeconds:  3600,
		Environment:      model.NewModulesEnvironment("gcc/12.2"),
		Command:          "./run.sh",
		WorkingDirectory: "/shared/hpc-portal/users/alice/jobs/" + id,
		Status:           status,
		SubmittedAt:      TestTime(),
		CreatedAt:        TestTime(),
		UpdatedAt:        TestTime(),
	}
}
