package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/hpcjobs/internal/data"
	"github.com/target/hpcjobs/internal/domain/model"
	apperrors "github.com/target/hpcjobs/internal/errors"
	"github.com/target/hpcjobs/internal/mocks"
	"github.com/target/hpcjobs/internal/testutil"
)

// noUsageRepo satisfies core.UsageRepository for tests that never read usage.
type noUsageRepo struct{}

func (noUsageRepo) GetByJobID(context.Context, string) (*model.UsageRecord, error) {
	return nil, data.ErrUsageNotFound
}

func (noUsageRepo) SummarizeByUser(_ context.Context, userID string, since time.Time) (*model.UsageSummary, error) {
	return &model.UsageSummary{UserID: userID, Since: since}, nil
}

func TestUsageAccountant_ForTransition(t *testing.T) {
	accountant, err := NewUsageAccountant(UsageAccountantOptions{Repo: noUsageRepo{}})
	require.NoError(t, err)

	start := testutil.TestTime()
	end := start.Add(time.Hour)
	stored := start.Add(-time.Hour)

	tests := []struct {
		name     string
		current  model.JobStatus
		next     model.JobStatus
		storedAt *time.Time
		observed *model.SchedulerStatus
		wantSecs int64
		wantNil  bool
	}{
		{
			name:     "running to completed",
			current:  model.JobStatusRunning,
			next:     model.JobStatusCompleted,
			observed: &model.SchedulerStatus{StartTime: &start, EndTime: &end},
			wantSecs: 3600,
		},
		{
			name:     "stored start used when scheduler omits it",
			current:  model.JobStatusRunning,
			next:     model.JobStatusCompleted,
			storedAt: &stored,
			observed: &model.SchedulerStatus{EndTime: &end},
			wantSecs: 7200,
		},
		{
			name:     "failed is not billed",
			current:  model.JobStatusRunning,
			next:     model.JobStatusFailed,
			observed: &model.SchedulerStatus{StartTime: &start, EndTime: &end},
			wantNil:  true,
		},
		{
			name:     "no end time",
			current:  model.JobStatusRunning,
			next:     model.JobStatusCompleted,
			observed: &model.SchedulerStatus{StartTime: &start},
			wantNil:  true,
		},
		{
			name:     "already completed",
			current:  model.JobStatusCompleted,
			next:     model.JobStatusCompleted,
			observed: &model.SchedulerStatus{StartTime: &start, EndTime: &end},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := testutil.NewJob("j1", tt.current)
			job.StartedAt = tt.storedAt

			rec := accountant.ForTransition(job, tt.next, tt.observed)
			if tt.wantNil {
				assert.Nil(t, rec)
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantSecs, rec.WalltimeSeconds)
			assert.Equal(t, "alice", rec.UserID)
		})
	}
}

func TestUsageAccountant_ForJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsageRepository(ctrl)
	accountant, err := NewUsageAccountant(UsageAccountantOptions{Repo: repo})
	require.NoError(t, err)

	repo.EXPECT().GetByJobID(gomock.Any(), "missing").Return(nil, data.ErrUsageNotFound)
	repo.EXPECT().GetByJobID(gomock.Any(), "j1").Return(&model.UsageRecord{JobID: "j1", CPUHours: 4}, nil)

	_, err = accountant.ForJob(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))

	rec, err := accountant.ForJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, rec.CPUHours, 1e-9)
}

func TestUsageAccountant_Summary(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUsageRepository(ctrl)
	accountant, err := NewUsageAccountant(UsageAccountantOptions{Repo: repo})
	require.NoError(t, err)

	since := testutil.TestTime().AddDate(0, -1, 0)
	repo.EXPECT().SummarizeByUser(gomock.Any(), "alice", since).
		Return(&model.UsageSummary{UserID: "alice", Since: since, Jobs: 3, CPUHours: 12.5}, nil)

	sum, err := accountant.Summary(context.Background(), "alice", since)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Jobs)

	_, err = accountant.Summary(context.Background(), "", since)
	assert.True(t, apperrors.IsValidation(err))
}
