package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/target/hpcjobs/internal/core"
	"github.com/target/hpcjobs/internal/data"
	"github.com/target/hpcjobs/internal/domain/lifecycle"
	"github.com/target/hpcjobs/internal/domain/model"
)

// memJobRepo is a stateful in-memory JobRepository with the same conditional
// update semantics as the Postgres implementation.
type memJobRepo struct {
	mu          sync.Mutex
	jobs        map[string]*model.Job
	events      []model.JobEvent
	usage       map[string]model.UsageRecord
	listErr     error
	listCalls   int
	now         time.Time
	applyCalls  int
	applyFailed int
}

var _ core.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo(jobs ...*model.Job) *memJobRepo {
	r := &memJobRepo{
		jobs:  make(map[string]*model.Job),
		usage: make(map[string]model.UsageRecord),
		now:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, j := range jobs {
		cp := *j
		r.jobs[j.ID] = &cp
	}
	return r
}

func (r *memJobRepo) snapshot(id string) *model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (r *memJobRepo) eventsFor(id string) []model.JobEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.JobEvent
	for _, ev := range r.events {
		if ev.JobID == id {
			out = append(out, ev)
		}
	}
	return out
}

func (r *memJobRepo) usageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.usage)
}

func (r *memJobRepo) Create(_ context.Context, rec *model.CreateJobRecord) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req := rec.Request
	j := &model.Job{
		ID:       "job-" + req.Name,
		UserID:   rec.UserID,
		Name:     req.Name,
		Queue:    req.Queue,
		Command:  req.Command,
		Status:   model.JobStatusSubmitted,
		Nodes:    *req.Nodes,
		Priority: req.Priority,
	}
	r.jobs[j.ID] = j
	cp := *j
	return &cp, nil
}

func isAfterCursor(j *model.Job, after *model.ActiveJobCursor) bool {
	if after == nil {
		return true
	}
	if c := j.SubmittedAt.Compare(after.SubmittedAt); c != 0 {
		return c > 0
	}
	return j.ID > after.ID
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	if j := r.snapshot(id); j != nil {
		return j, nil
	}
	return nil, data.ErrJobNotFound
}

func (r *memJobRepo) List(_ context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, j := range r.jobs {
		if j.UserID == opts.UserID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memJobRepo) ListActive(_ context.Context, after *model.ActiveJobCursor, limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*model.Job
	for _, j := range r.jobs {
		if slices.Contains(model.ActiveJobStatuses, j.Status) && isAfterCursor(j, after) {
			cp := *j
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Job) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memJobRepo) SetWorkingDirectory(_ context.Context, id, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return data.ErrJobNotFound
	}
	j.WorkingDirectory = dir
	return nil
}

func (r *memJobRepo) MarkSubmitted(_ context.Context, id, externalID string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	if j.Status != model.JobStatusSubmitted {
		return nil, data.ErrJobStatusConflict
	}
	j.ExternalID = &externalID
	j.Status = model.JobStatusQueued
	r.events = append(r.events, model.JobEvent{JobID: id, Kind: model.EventSubmitted, Message: lifecycle.SubmittedMessage(externalID)})
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) MarkSubmissionFailed(_ context.Context, id, reason string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	j.Status = model.JobStatusFailed
	j.StatusReason = &reason
	r.events = append(r.events, model.JobEvent{JobID: id, Kind: model.EventFailed, Message: lifecycle.SubmissionFailedMessage(reason)})
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ApplyTransition(_ context.Context, rec model.TransitionRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyCalls++
	j, ok := r.jobs[rec.JobID]
	if !ok || j.Status != rec.From {
		r.applyFailed++
		return false, nil
	}

	j.Status = rec.To
	if rec.StartedAt != nil {
		j.StartedAt = rec.StartedAt
	}
	if rec.EndedAt != nil {
		j.EndedAt = rec.EndedAt
	}
	if rec.ExitCode != nil {
		j.ExitCode = rec.ExitCode
	}
	if rec.Reason != nil {
		j.StatusReason = rec.Reason
	}

	ev := rec.Event
	ev.JobID = rec.JobID
	ev.CreatedAt = r.now
	r.events = append(r.events, ev)

	if rec.Usage != nil {
		if _, exists := r.usage[rec.JobID]; !exists {
			r.usage[rec.JobID] = *rec.Usage
		}
	}
	return true, nil
}

// fakeGateway answers QueryStatus from per-handle functions.
type fakeGateway struct {
	mu      sync.Mutex
	status  map[string]func(ctx context.Context) (*model.SchedulerStatus, error)
	queried []string
}

var _ core.SchedulerGateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{status: make(map[string]func(ctx context.Context) (*model.SchedulerStatus, error))}
}

func (g *fakeGateway) observe(externalID string, st model.SchedulerStatus) {
	g.status[externalID] = func(context.Context) (*model.SchedulerStatus, error) {
		cp := st
		return &cp, nil
	}
}

func (g *fakeGateway) Submit(context.Context, string) (string, error) { return "", nil }
func (g *fakeGateway) Cancel(context.Context, string) error           { return nil }
func (g *fakeGateway) ListQueues(context.Context) ([]model.QueueInfo, error) {
	return nil, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, externalID string) (*model.SchedulerStatus, error) {
	g.mu.Lock()
	g.queried = append(g.queried, externalID)
	fn := g.status[externalID]
	g.mu.Unlock()
	if fn == nil {
		return &model.SchedulerStatus{Status: model.JobStatusQueued}, nil
	}
	return fn(ctx)
}
