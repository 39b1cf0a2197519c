package data

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/hpcjobs/internal/domain/model"
	"github.com/target/hpcjobs/internal/testutil"
)

func TestJobRepo_BuildListQuery(t *testing.T) {
	repo := NewJobRepo(nil, RepoConfig{})
	running := model.JobStatusRunning

	tests := []struct {
		name     string
		opts     model.JobListOptions
		contains []string
		absent   []string
		args     []any
	}{
		{
			name:     "user only uses default page",
			opts:     model.JobListOptions{UserID: "alice"},
			contains: []string{"FROM jobs", "WHERE user_id = $1", "ORDER BY submitted_at DESC, id DESC", "LIMIT 50"},
			absent:   []string{"ILIKE", "status = "},
			args:     []any{"alice"},
		},
		{
			name: "status and search",
			opts: model.JobListOptions{UserID: "alice", Status: &running, Search: " gpu_run% ", Limit: 10, Offset: 20},
			contains: []string{
				"status = $2",
				"(name ILIKE $3 OR id::text ILIKE $4)",
				"LIMIT 10",
				"OFFSET 20",
			},
			args: []any{"alice", model.JobStatusRunning, `%gpu\_run\%%`, `%gpu\_run\%%`},
		},
		{
			name:     "limit is capped and offset floored",
			opts:     model.JobListOptions{UserID: "bob", Limit: 10_000, Offset: -5},
			contains: []string{"LIMIT 500", "OFFSET 0"},
			args:     []any{"bob"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := repo.buildListQuery(tt.opts)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, query, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, query, s)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% \_x\\`, escapeLike(`50% _x\`))
}

func TestJobRepo_GetByID_InvalidUUID(t *testing.T) {
	repo := NewJobRepo(nil, RepoConfig{})
	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobRepo_ApplyTransition_RequiresJobID(t *testing.T) {
	repo := NewJobRepo(nil, RepoConfig{})
	_, err := repo.ApplyTransition(context.Background(), model.TransitionRecord{})
	require.ErrorIs(t, err, ErrJobIDRequired)
}

func TestJobRepo_Integration_SubmissionAndTransitions(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})
		events := NewJobEventRepo(db)
		usage := NewUsageRepo(db)

		job, err := repo.Create(ctx, testutil.NewJobRequest().WithResources(2, 4, 2, 1).Record("alice"))
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusSubmitted, job.Status)
		assert.False(t, job.HasExternalID())
		assert.Equal(t, model.EnvironmentModules, job.Environment.Kind)
		assert.Equal(t, 4, job.MemoryPerNodeGB)

		require.NoError(t, repo.SetWorkingDirectory(ctx, job.ID, "/shared/w/"+job.ID))

		clock.AddTime(time.Second)
		queued, err := repo.MarkSubmitted(ctx, job.ID, "55021")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, queued.Status)
		require.NotNil(t, queued.ExternalID)
		assert.Equal(t, "55021", *queued.ExternalID)
		assert.Equal(t, "/shared/w/"+job.ID, queued.WorkingDirectory)

		_, err = repo.MarkSubmitted(ctx, job.ID, "55022")
		require.ErrorIs(t, err, ErrJobStatusConflict)

		start := testutil.TestTime().Add(time.Minute)
		end := start.Add(time.Hour)
		exit := 0
		complete := model.TransitionRecord{
			JobID:     job.ID,
			From:      model.JobStatusQueued,
			To:        model.JobStatusCompleted,
			StartedAt: &start,
			EndedAt:   &end,
			ExitCode:  &exit,
			Event:     model.JobEvent{Kind: model.EventCompleted, Message: "Job completed"},
			Usage:     &model.UsageRecord{UserID: "alice", CPUHours: 16, GPUHours: 2, WalltimeSeconds: 3600},
		}

		applied, err := repo.ApplyTransition(ctx, complete)
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = repo.ApplyTransition(ctx, complete)
		require.NoError(t, err)
		assert.False(t, applied, "stale precondition must be a no-op")

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
		require.NotNil(t, got.ExitCode)
		assert.Equal(t, 0, *got.ExitCode)
		assert.True(t, got.StartedAt.Equal(start))

		evs, err := events.ListByJob(ctx, job.ID, 0)
		require.NoError(t, err)
		require.Len(t, evs, 2)
		assert.Equal(t, model.EventCompleted, evs[0].Kind)
		assert.Equal(t, model.EventSubmitted, evs[1].Kind)
		assert.Equal(t, "Job submitted to Slurm with ID 55021", evs[1].Message)

		rec, err := usage.GetByJobID(ctx, job.ID)
		require.NoError(t, err)
		assert.InDelta(t, 16.0, rec.CPUHours, 1e-9)
		assert.Equal(t, int64(3600), rec.WalltimeSeconds)

		sum, err := usage.SummarizeByUser(ctx, "alice", time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Jobs)
		assert.InDelta(t, 2.0, sum.GPUHours, 1e-9)
	})
}

func TestJobRepo_Integration_SubmissionFailed(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		job, err := repo.Create(ctx, testutil.NewJobRequest().Record("bob"))
		require.NoError(t, err)

		failed, err := repo.MarkSubmissionFailed(ctx, job.ID, "sbatch: error: invalid partition")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		assert.False(t, failed.HasExternalID())
		require.NotNil(t, failed.StatusReason)
		assert.True(t, strings.Contains(*failed.StatusReason, "invalid partition"))

		evs, err := NewJobEventRepo(db).ListByJob(ctx, job.ID, 10)
		require.NoError(t, err)
		require.Len(t, evs, 1)
		assert.Equal(t, "Job submission failed: sbatch: error: invalid partition", evs[0].Message)

		_, err = NewUsageRepo(db).GetByJobID(ctx, job.ID)
		require.ErrorIs(t, err, ErrUsageNotFound)
	})
}

func TestJobRepo_BuildActiveQuery(t *testing.T) {
	repo := NewJobRepo(nil, RepoConfig{})

	query, args, err := repo.buildActiveQuery(nil, 0)
	require.NoError(t, err)
	assert.Contains(t, query, "WHERE status IN ($1,$2,$3)")
	assert.Contains(t, query, "ORDER BY submitted_at ASC, id ASC")
	assert.Contains(t, query, "LIMIT 500")
	assert.NotContains(t, query, "(submitted_at, id) >")
	assert.Len(t, args, 3)

	cursor := &model.ActiveJobCursor{SubmittedAt: testutil.TestTime(), ID: "0b8f5c2e-4a51-4d3e-9a0c-2f1d7e6b9c11"}
	query, args, err = repo.buildActiveQuery(cursor, 25)
	require.NoError(t, err)
	assert.Contains(t, query, "(submitted_at, id) > ($4::timestamptz, $5::uuid)")
	assert.Contains(t, query, "LIMIT 25")
	require.Len(t, args, 5)
	assert.Equal(t, cursor.SubmittedAt, args[3])
	assert.Equal(t, cursor.ID, args[4])
}

func TestJobRepo_Integration_ListAndActive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: clock})

		var ids []string
		for _, name := range []string{"alpha", "beta", "gamma"} {
			clock.AddTime(time.Minute)
			j, err := repo.Create(ctx, testutil.NewJobRequest().WithName(name).Record("carol"))
			require.NoError(t, err)
			ids = append(ids, j.ID)
		}
		_, err := repo.Create(ctx, testutil.NewJobRequest().WithName("other").Record("dave"))
		require.NoError(t, err)
		_, err = repo.MarkSubmissionFailed(ctx, ids[1], "boom")
		require.NoError(t, err)

		all, err := repo.List(ctx, model.JobListOptions{UserID: "carol"})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "gamma", all[0].Name, "newest first")

		found, err := repo.List(ctx, model.JobListOptions{UserID: "carol", Search: "ALP"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, ids[0], found[0].ID)

		failed := model.JobStatusFailed
		onlyFailed, err := repo.List(ctx, model.JobListOptions{UserID: "carol", Status: &failed})
		require.NoError(t, err)
		require.Len(t, onlyFailed, 1)

		active, err := repo.ListActive(ctx, nil, 10)
		require.NoError(t, err)
		require.Len(t, active, 3)
		assert.Equal(t, ids[0], active[0].ID, "oldest first")

		first, err := repo.ListActive(ctx, nil, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		rest, err := repo.ListActive(ctx, first[1].CursorAfter(), 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, active[2].ID, rest[0].ID)
	})
}
