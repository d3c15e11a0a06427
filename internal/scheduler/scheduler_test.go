package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/jobstore"
	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/orchestrator"
)

type fakeRunner struct {
	result *orchestrator.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, req *domain.BacktestRequest) (*orchestrator.Result, error) {
	return f.result, f.err
}

func newTestScheduler(t *testing.T, runner Runner) (*Scheduler, *jobstore.Store) {
	t.Helper()
	store, err := jobstore.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(runner, store, nil, zerolog.Nop()), store
}

func validRequest() *domain.BacktestRequest {
	return &domain.BacktestRequest{
		Name:           "trend",
		StrategyCode:   "class S: pass",
		StartDate:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		InitialCapital: 10000,
	}
}

func successResult() *orchestrator.Result {
	return &orchestrator.Result{
		Raw: &domain.RawExecutionResult{
			EquityCurve: map[string]float64{
				"2023-01-01T00:00:00Z": 10000,
				"2023-02-01T00:00:00Z": 10500,
			},
			FinalValue: 10500,
			BarSize:    domain.BarDaily,
		},
		Metadata: domain.StrategyMetadata{Cadence: domain.DefaultCadence()},
	}
}

func TestSubmitEnqueuesAndCreatesPendingRecord(t *testing.T) {
	sched, store := newTestScheduler(t, &fakeRunner{})

	jobID, err := sched.Submit(validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	require.Equal(t, 1, sched.KVSize())

	rec, err := store.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobPending, rec.Status)
}

func TestPollUnknownJobReturnsNilNoError(t *testing.T) {
	sched, _ := newTestScheduler(t, &fakeRunner{})
	rec, err := sched.Poll("missing")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestCancelPendingJobEvictsKV(t *testing.T) {
	sched, _ := newTestScheduler(t, &fakeRunner{})
	jobID, err := sched.Submit(validRequest())
	require.NoError(t, err)

	result, err := sched.Cancel(jobID)
	require.NoError(t, err)
	require.Equal(t, jobstore.CancelOK, result)
	require.Equal(t, 0, sched.KVSize())
}

func TestRunJobOnSuccessTransitionsToCompleted(t *testing.T) {
	sched, store := newTestScheduler(t, &fakeRunner{result: successResult()})
	jobID, err := sched.Submit(validRequest())
	require.NoError(t, err)

	sched.runJob(context.Background(), jobID)

	rec, err := store.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCompleted, rec.Status)
	require.NotNil(t, rec.Result)
	require.Equal(t, jobID, rec.Result.JobID)
	require.Equal(t, 0, sched.KVSize())
}

func TestRunJobOnFailureTransitionsToFailed(t *testing.T) {
	runErr := &domain.ValidationError{Errors: &domain.ErrorList{}}
	runErr.Errors.Add("bad strategy")
	sched, store := newTestScheduler(t, &fakeRunner{err: runErr})
	jobID, err := sched.Submit(validRequest())
	require.NoError(t, err)

	sched.runJob(context.Background(), jobID)

	rec, err := store.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobFailed, rec.Status)
	require.NotNil(t, rec.Error)
	require.Equal(t, "validation", rec.Error.Kind)
	require.Equal(t, 0, sched.KVSize())
}

func TestRunJobSkipsCancelledBetweenDequeueAndPickup(t *testing.T) {
	sched, store := newTestScheduler(t, &fakeRunner{result: successResult()})
	jobID, err := sched.Submit(validRequest())
	require.NoError(t, err)

	_, err = sched.Cancel(jobID)
	require.NoError(t, err)

	sched.runJob(context.Background(), jobID)

	rec, err := store.Get(jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCancelled, rec.Status, "runJob must not overwrite a cancellation")
}

func TestRunSyncReturnsShapedResultWithoutTouchingJobStore(t *testing.T) {
	sched, store := newTestScheduler(t, &fakeRunner{result: successResult()})

	result, err := sched.RunSync(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, result.JobID)

	_, err = store.Get("")
	require.NoError(t, err)
}

func TestRunSyncPropagatesOrchestratorError(t *testing.T) {
	sched, _ := newTestScheduler(t, &fakeRunner{err: errors.New("boom")})
	_, err := sched.RunSync(context.Background(), validRequest())
	require.Error(t, err)
}

func TestRunConsumerDrainsQueueUntilCancelled(t *testing.T) {
	sched, store := newTestScheduler(t, &fakeRunner{result: successResult()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	jobID, err := sched.Submit(validRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, err := store.Get(jobID)
		return err == nil && rec != nil && rec.Status == domain.JobCompleted
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
