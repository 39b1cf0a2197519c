package slurm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/hpcjobs/internal/domain/model"
)

type fakeResult struct {
	out string
	err error
	// block waits for the context to expire before returning its error.
	block bool
}

type fakeExecutor struct {
	mu      sync.Mutex
	results map[string]fakeResult
	calls   []string
}

func newFakeExecutor(results map[string]fakeResult) *fakeExecutor {
	return &fakeExecutor{results: results}
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	r, ok := f.results[name]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("unexpected command " + name)
	}
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte(r.out), r.err
}

func newTestGateway(t *testing.T, exec Executor) *Gateway {
	t.Helper()
	g, err := NewGateway(GatewayOptions{Executor: exec, CommandTimeout: time.Second, Location: time.UTC})
	require.NoError(t, err)
	return g
}

func TestNewGateway_RequiresExecutor(t *testing.T) {
	_, err := NewGateway(GatewayOptions{})
	require.Error(t, err)
}

func TestGateway_Submit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{"sbatch": {out: "Submitted batch job 55021\n"}})
		id, err := newTestGateway(t, exec).Submit(context.Background(), "/w/job.sh")
		require.NoError(t, err)
		assert.Equal(t, "55021", id)
		assert.Equal(t, []string{"sbatch /w/job.sh"}, exec.calls)
	})

	t.Run("command failure", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{
			"sbatch": {err: &ExitError{Command: "sbatch", Code: 1, Stderr: "invalid partition"}},
		})
		_, err := newTestGateway(t, exec).Submit(context.Background(), "/w/job.sh")
		var execErr *SubmissionExecError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, err.Error(), "invalid partition")
		assert.True(t, IsSubmissionError(err))
	})

	t.Run("unparsable output", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{"sbatch": {out: "queued\n"}})
		_, err := newTestGateway(t, exec).Submit(context.Background(), "/w/job.sh")
		var parseErr *SubmissionParseError
		require.ErrorAs(t, err, &parseErr)
		assert.True(t, IsSubmissionError(err))
	})
}

func TestGateway_Cancel(t *testing.T) {
	exec := newFakeExecutor(map[string]fakeResult{"scancel": {}})
	require.NoError(t, newTestGateway(t, exec).Cancel(context.Background(), "42"))
	assert.Equal(t, []string{"scancel 42"}, exec.calls)

	exec = newFakeExecutor(map[string]fakeResult{"scancel": {err: &ExitError{Command: "scancel", Code: 1}}})
	err := newTestGateway(t, exec).Cancel(context.Background(), "42")
	var cancelErr *CancelExecError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "42", cancelErr.ExternalID)
}

func TestGateway_QueryStatus(t *testing.T) {
	exitErr := &ExitError{Command: "squeue", Code: 1, Stderr: "Invalid job id specified"}

	t.Run("live queue answers", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{"squeue": {out: "RUNNING 2025-03-01T10:00:00 N/A 0:0\n"}})
		st, err := newTestGateway(t, exec).QueryStatus(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, st.Status)
		assert.Len(t, exec.calls, 1)
		assert.Equal(t, "squeue -j 42 --Format=State,StartTime,EndTime,ExitCode --noheader", exec.calls[0])
	})

	t.Run("empty queue falls back to accounting", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{
			"squeue": {out: ""},
			"sacct":  {out: "COMPLETED|2025-03-01T10:00:00|2025-03-01T11:00:00|0:0\n"},
		})
		st, err := newTestGateway(t, exec).QueryStatus(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, st.Status)
		require.NotNil(t, st.StartTime)
		require.NotNil(t, st.EndTime)
		assert.Equal(t, time.Hour, st.EndTime.Sub(*st.StartTime))
		assert.Equal(t, "sacct -j 42 --format=State,Start,End,ExitCode --noheader --parsable2", exec.calls[1])
	})

	t.Run("squeue non-zero exit falls back to accounting", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{
			"squeue": {err: exitErr},
			"sacct":  {out: "FAILED|2025-03-01T10:00:00|2025-03-01T10:05:00|1:0\n"},
		})
		st, err := newTestGateway(t, exec).QueryStatus(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, st.Status)
		assert.Equal(t, "FAILED", st.Reason)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{
			"squeue": {err: exitErr},
			"sacct":  {out: "\n"},
		})
		_, err := newTestGateway(t, exec).QueryStatus(context.Background(), "42")
		var nf *JobNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "42", nf.ExternalID)
	})

	t.Run("transport failure aborts", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{"squeue": {err: errors.New("connection reset")}})
		_, err := newTestGateway(t, exec).QueryStatus(context.Background(), "42")
		var qe *StatusQueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "squeue", qe.Command)
		assert.Len(t, exec.calls, 1)
	})

	t.Run("sacct failure", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{
			"squeue": {out: ""},
			"sacct":  {err: &ExitError{Command: "sacct", Code: 1}},
		})
		_, err := newTestGateway(t, exec).QueryStatus(context.Background(), "42")
		var qe *StatusQueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, "sacct", qe.Command)
	})

	t.Run("malformed accounting record", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{
			"squeue": {out: ""},
			"sacct":  {out: "COMPLETED\n"},
		})
		_, err := newTestGateway(t, exec).QueryStatus(context.Background(), "42")
		var qe *StatusQueryError
		require.ErrorAs(t, err, &qe)
	})

	t.Run("timeout", func(t *testing.T) {
		exec := newFakeExecutor(map[string]fakeResult{"squeue": {block: true}})
		g, err := NewGateway(GatewayOptions{Executor: exec, CommandTimeout: 20 * time.Millisecond})
		require.NoError(t, err)

		_, err = g.QueryStatus(context.Background(), "42")
		var qe *StatusQueryError
		require.ErrorAs(t, err, &qe)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestGateway_ListQueues(t *testing.T) {
	exec := newFakeExecutor(map[string]fakeResult{"sinfo": {out: "debug* idle 2 32\ngpu mix 4 256\n"}})
	queues, err := newTestGateway(t, exec).ListQueues(context.Background())
	require.NoError(t, err)
	require.Len(t, queues, 2)
	assert.True(t, queues[0].Default)
	assert.Equal(t, "gpu", queues[1].Name)

	exec = newFakeExecutor(map[string]fakeResult{"sinfo": {err: errors.New("slurmctld down")}})
	queues, err = newTestGateway(t, exec).ListQueues(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, queues)
	assert.Empty(t, queues)
}
