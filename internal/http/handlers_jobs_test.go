package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/hpcjobs/internal/adapters/devauth"
	"github.com/target/hpcjobs/internal/adapters/slurm"
	"github.com/target/hpcjobs/internal/data"
	"github.com/target/hpcjobs/internal/domain/model"
	"github.com/target/hpcjobs/internal/mocks"
	"github.com/target/hpcjobs/internal/service"
	"github.com/target/hpcjobs/internal/testutil"
)

const testJobID = "11111111-1111-1111-1111-111111111111"

type apiFixture struct {
	handler   http.Handler
	repo      *mocks.MockJobRepository
	events    *mocks.MockJobEventRepository
	gateway   *mocks.MockSchedulerGateway
	workspace *mocks.MockWorkspace
	usage     *mocks.MockUsageRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &apiFixture{
		repo:      mocks.NewMockJobRepository(ctrl),
		events:    mocks.NewMockJobEventRepository(ctrl),
		gateway:   mocks.NewMockSchedulerGateway(ctrl),
		workspace: mocks.NewMockWorkspace(ctrl),
		usage:     mocks.NewMockUsageRepository(ctrl),
	}

	accountant, err := service.NewUsageAccountant(service.UsageAccountantOptions{Repo: f.usage})
	require.NoError(t, err)
	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:      f.repo,
		Events:    f.events,
		Gateway:   f.gateway,
		Workspace: f.workspace,
		Usage:     accountant,
		Now:       testutil.TestTime,
	})
	require.NoError(t, err)
	queues, err := service.NewQueueService(service.QueueServiceOptions{Gateway: f.gateway})
	require.NoError(t, err)

	f.handler = NewRouter(RouterServices{
		Jobs:          jobs,
		Queues:        queues,
		Authenticator: devauth.NewProvider(devauth.Config{}),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "alice")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateJob_Success(t *testing.T) {
	f := newAPIFixture(t)
	req := testutil.NewJobRequest().Build()
	dir := "/shared/jobs/" + testJobID

	stored := testutil.NewJob(testJobID, model.JobStatusSubmitted)
	stored.ExternalID = nil
	queued := testutil.NewJob(testJobID, model.JobStatusQueued)
	queued.ExternalID = testutil.StringPtr("4242")

	f.repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *model.CreateJobRecord) (*model.Job, error) {
			assert.Equal(t, "alice", rec.UserID)
			return stored, nil
		})
	f.workspace.EXPECT().Prepare(gomock.Any(), "alice", testJobID).Return(dir, nil)
	f.repo.EXPECT().SetWorkingDirectory(gomock.Any(), testJobID, dir).Return(nil)
	f.workspace.EXPECT().WriteScript(gomock.Any(), dir, slurm.ScriptFileName, gomock.Any()).
		Return(dir+"/job.sh", nil)
	f.gateway.EXPECT().Submit(gomock.Any(), dir+"/job.sh").Return("4242", nil)
	f.repo.EXPECT().MarkSubmitted(gomock.Any(), testJobID, "4242").Return(queued, nil)

	rec := f.do(t, http.MethodPost, "/api/jobs", req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var got model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.JobStatusQueued, got.Status)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "4242", *got.ExternalID)
}

func TestCreateJob_ValidationError(t *testing.T) {
	f := newAPIFixture(t)
	req := testutil.NewJobRequest().WithName("  ").Build()

	rec := f.do(t, http.MethodPost, "/api/jobs", req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "validation", body.Error)
	assert.Equal(t, "name is required", body.Message)
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(`{"name":`))
	req.Header.Set(UserIDHeader, "alice")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeErrorBody(t, rec).Error)
}

func TestCreateJob_UnknownField(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/jobs", map[string]any{"name": "x", "account": "physics"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeErrorBody(t, rec).Error)
}

func TestCreateJob_SchedulerRejection(t *testing.T) {
	f := newAPIFixture(t)
	req := testutil.NewJobRequest().Build()
	dir := "/shared/jobs/" + testJobID
	stored := testutil.NewJob(testJobID, model.JobStatusSubmitted)
	cause := &slurm.SubmissionExecError{Err: &slurm.ExitError{Command: "sbatch", Code: 1, Stderr: "invalid partition"}}

	f.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(stored, nil)
	f.workspace.EXPECT().Prepare(gomock.Any(), "alice", testJobID).Return(dir, nil)
	f.repo.EXPECT().SetWorkingDirectory(gomock.Any(), testJobID, dir).Return(nil)
	f.workspace.EXPECT().WriteScript(gomock.Any(), dir, gomock.Any(), gomock.Any()).Return(dir+"/job.sh", nil)
	f.gateway.EXPECT().Submit(gomock.Any(), dir+"/job.sh").Return("", cause)
	f.repo.EXPECT().MarkSubmissionFailed(gomock.Any(), testJobID, cause.Error()).Return(stored, nil)

	rec := f.do(t, http.MethodPost, "/api/jobs", req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "submission_failed", body.Error)
	assert.Equal(t, testJobID, body.JobID)
	assert.Contains(t, body.Message, "invalid partition")
}

func TestCreateJob_RequiresUser(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListJobs(t *testing.T) {
	f := newAPIFixture(t)
	jobs := []*model.Job{testutil.NewJob(testJobID, model.JobStatusRunning)}

	f.repo.EXPECT().List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, opts model.JobListOptions) ([]*model.Job, error) {
			assert.Equal(t, "alice", opts.UserID)
			require.NotNil(t, opts.Status)
			assert.Equal(t, model.JobStatusRunning, *opts.Status)
			assert.Equal(t, 10, opts.Limit)
			assert.Equal(t, 20, opts.Offset)
			return jobs, nil
		})

	rec := f.do(t, http.MethodGet, "/api/jobs?status=running&limit=10&offset=20", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got jobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Jobs, 1)
	assert.Equal(t, testJobID, got.Jobs[0].ID)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, 20, got.Offset)
}

func TestListJobs_EmptyIsArray(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, nil)

	rec := f.do(t, http.MethodGet, "/api/jobs", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":[],"limit":50,"offset":0}`, rec.Body.String())
}

func TestListJobs_InvalidStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/jobs?status=PAUSED", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "invalid_status", body.Error)
	assert.Equal(t, "status", body.Field)
}

func TestGetJob(t *testing.T) {
	f := newAPIFixture(t)
	job := testutil.NewJob(testJobID, model.JobStatusRunning)
	events := []*model.JobEvent{{ID: "e1", JobID: testJobID, Kind: model.EventStarted, CreatedAt: testutil.TestTime()}}

	f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(job, nil)
	f.events.EXPECT().ListByJob(gomock.Any(), testJobID, service.RecentEventLimit).Return(events, nil)

	rec := f.do(t, http.MethodGet, "/api/jobs/"+testJobID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got service.JobDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, testJobID, got.ID)
	require.Len(t, got.Events, 1)
	assert.Equal(t, model.EventStarted, got.Events[0].Kind)
}

func TestGetJob_NotFoundAndForbidden(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *apiFixture)
		wantCode int
		wantErr  string
	}{
		{
			name: "missing job",
			setup: func(f *apiFixture) {
				f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(nil, data.ErrJobNotFound)
			},
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name: "other user's job",
			setup: func(f *apiFixture) {
				job := testutil.NewJob(testJobID, model.JobStatusRunning)
				job.UserID = "mallory"
				f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(job, nil)
			},
			wantCode: http.StatusForbidden,
			wantErr:  "forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			tt.setup(f)

			rec := f.do(t, http.MethodGet, "/api/jobs/"+testJobID, nil)

			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeErrorBody(t, rec).Error)
		})
	}
}

func TestCancelJob(t *testing.T) {
	f := newAPIFixture(t)
	job := testutil.NewJob(testJobID, model.JobStatusRunning)
	cancelled := testutil.NewJob(testJobID, model.JobStatusCancelled)

	gomock.InOrder(
		f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(job, nil),
		f.gateway.EXPECT().Cancel(gomock.Any(), "1000").Return(nil),
		f.repo.EXPECT().ApplyTransition(gomock.Any(), gomock.Any()).Return(true, nil),
		f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(cancelled, nil),
	)

	rec := f.do(t, http.MethodPost, "/api/jobs/"+testJobID+"/cancel", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.JobStatusCancelled, got.Status)
}

func TestCancelJob_TerminalConflict(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(testutil.NewJob(testJobID, model.JobStatusCompleted), nil)

	rec := f.do(t, http.MethodPost, "/api/jobs/"+testJobID+"/cancel", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeErrorBody(t, rec).Error)
}

func TestCancelJob_SchedulerFailure(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(testutil.NewJob(testJobID, model.JobStatusQueued), nil)
	f.gateway.EXPECT().Cancel(gomock.Any(), "1000").
		Return(&slurm.CancelExecError{ExternalID: "1000", Err: errors.New("Invalid job id specified")})

	rec := f.do(t, http.MethodPost, "/api/jobs/"+testJobID+"/cancel", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "cancel_failed", body.Error)
	assert.Contains(t, body.Message, "Invalid job id specified")
}

func TestCancelJob_WrongMethod(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/jobs/"+testJobID+"/cancel", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListEvents(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(testutil.NewJob(testJobID, model.JobStatusQueued), nil)
	f.events.EXPECT().ListByJob(gomock.Any(), testJobID, maxEventLimit).Return(nil, nil)

	rec := f.do(t, http.MethodGet, "/api/jobs/"+testJobID+"/events?limit=5000", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
}

func TestGetUsage(t *testing.T) {
	f := newAPIFixture(t)
	usage := &model.UsageRecord{JobID: testJobID, UserID: "alice", CPUHours: 16, GPUHours: 2, WalltimeSeconds: 3600}

	f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(testutil.NewJob(testJobID, model.JobStatusCompleted), nil)
	f.usage.EXPECT().GetByJobID(gomock.Any(), testJobID).Return(usage, nil)

	rec := f.do(t, http.MethodGet, "/api/jobs/"+testJobID+"/usage", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.UsageRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.InDelta(t, 16.0, got.CPUHours, 1e-9)
	assert.InDelta(t, 2.0, got.GPUHours, 1e-9)
}

func TestGetUsage_NotRecorded(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(testutil.NewJob(testJobID, model.JobStatusRunning), nil)
	f.usage.EXPECT().GetByJobID(gomock.Any(), testJobID).Return(nil, data.ErrUsageNotFound)

	rec := f.do(t, http.MethodGet, "/api/jobs/"+testJobID+"/usage", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsageSummary(t *testing.T) {
	f := newAPIFixture(t)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.usage.EXPECT().SummarizeByUser(gomock.Any(), "alice", since).
		Return(&model.UsageSummary{UserID: "alice", Since: since, Jobs: 3, CPUHours: 12.5}, nil)

	rec := f.do(t, http.MethodGet, "/api/usage?since=2024-01-01", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.UsageSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Jobs)
	assert.InDelta(t, 12.5, got.CPUHours, 1e-9)
}

func TestUsageSummary_InvalidSince(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/usage?since=last-week", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorBody(t, rec)
	assert.Equal(t, "invalid_since", body.Error)
	assert.Equal(t, "since", body.Field)
}
