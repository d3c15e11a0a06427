package jobstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Husky-Quantitative-Group/hqg-backtester/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.Create("job-1", now))

	rec, err := s.Get("job-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, domain.JobPending, rec.Status)
	require.WithinDuration(t, now, rec.SubmittedAt, time.Millisecond)
	require.Nil(t, rec.StartedAt)
}

func TestGetUnknownJobReturnsNil(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Get("does-not-exist")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestSetRunningOnlyTransitionsFromPending(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Create("job-1", now))

	ok, err := s.SetRunning("job-1", now)
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, domain.JobRunning, rec.Status)

	ok, err = s.SetRunning("job-1", now)
	require.NoError(t, err)
	require.False(t, ok, "already running, should not transition again")
}

func TestSetCompletedPersistsResult(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Create("job-1", now))
	require.NoError(t, s.SetCompleted("job-1", &domain.BacktestResult{JobID: "job-1"}, now))

	rec, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, domain.JobCompleted, rec.Status)
	require.NotNil(t, rec.Result)
	require.Equal(t, "job-1", rec.Result.JobID)
	require.NotNil(t, rec.CompletedAt)
}

func TestSetFailedPersistsStructuredError(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Create("job-1", now))
	require.NoError(t, s.SetFailed("job-1", &domain.JobError{Kind: "validation", Messages: []string{"bad input"}}, now))

	rec, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, domain.JobFailed, rec.Status)
	require.NotNil(t, rec.Error)
	require.Equal(t, "validation", rec.Error.Kind)
	require.Equal(t, []string{"bad input"}, rec.Error.Messages)
}

func TestCancelPendingSucceeds(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Create("job-1", time.Now().UTC()))

	result, err := s.Cancel("job-1")
	require.NoError(t, err)
	require.Equal(t, CancelOK, result)

	rec, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, domain.JobCancelled, rec.Status)
}

func TestCancelUnknownJobReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	result, err := s.Cancel("nope")
	require.NoError(t, err)
	require.Equal(t, CancelNotFound, result)
}

func TestCancelRunningJobReturnsConflict(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Create("job-1", now))
	_, err := s.SetRunning("job-1", now)
	require.NoError(t, err)

	result, err := s.Cancel("job-1")
	require.NoError(t, err)
	require.Equal(t, CancelConflict, result)
}

func TestSweepDeletesOldTerminalRecordsOnly(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	require.NoError(t, s.Create("old-completed", old))
	require.NoError(t, s.SetCompleted("old-completed", &domain.BacktestResult{JobID: "old-completed"}, old))

	require.NoError(t, s.Create("recent-completed", recent))
	require.NoError(t, s.SetCompleted("recent-completed", &domain.BacktestResult{JobID: "recent-completed"}, recent))

	require.NoError(t, s.Create("still-pending", old))

	n, err := s.Sweep(time.Now().UTC().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rec, err := s.Get("old-completed")
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = s.Get("recent-completed")
	require.NoError(t, err)
	require.NotNil(t, rec)

	rec, err = s.Get("still-pending")
	require.NoError(t, err)
	require.NotNil(t, rec, "pending jobs are never swept regardless of age")
}
