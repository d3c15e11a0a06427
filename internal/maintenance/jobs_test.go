package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeJobRecordStore struct {
	calledWith time.Time
	swept      int64
	err        error
}

func (f *fakeJobRecordStore) Sweep(olderThan time.Time) (int64, error) {
	f.calledWith = olderThan
	return f.swept, f.err
}

func TestJobRecordSweepJobCallsSweepWithTTLCutoff(t *testing.T) {
	store := &fakeJobRecordStore{swept: 3}
	job := NewJobRecordSweepJob(store, time.Hour)

	before := time.Now().UTC()
	err := job.Run()
	require.NoError(t, err)

	require.WithinDuration(t, before.Add(-time.Hour), store.calledWith, time.Second)
	require.Equal(t, "job_record_sweep", job.Name())
}

func TestJobRecordSweepJobPropagatesError(t *testing.T) {
	store := &fakeJobRecordStore{err: errors.New("db closed")}
	job := NewJobRecordSweepJob(store, time.Hour)
	require.Error(t, job.Run())
}

type fakeJWKSRefreshable struct {
	calls int
	err   error
}

func (f *fakeJWKSRefreshable) RefreshJWKS(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestJWKSRefreshJobDelegatesToServer(t *testing.T) {
	server := &fakeJWKSRefreshable{}
	job := NewJWKSRefreshJob(context.Background(), server)

	require.NoError(t, job.Run())
	require.Equal(t, 1, server.calls)
	require.Equal(t, "jwks_refresh", job.Name())
}

type fakeCacheSnapshotter struct {
	dir        string
	snapshotID string
	err        error
}

func (f *fakeCacheSnapshotter) SnapshotDir(ctx context.Context, dir string, snapshotID string) (int, error) {
	f.dir = dir
	f.snapshotID = snapshotID
	return 5, f.err
}

func TestCacheSnapshotJobUploadsCacheDir(t *testing.T) {
	uploader := &fakeCacheSnapshotter{}
	job := NewCacheSnapshotJob(context.Background(), uploader, "/data/cache")
	job.now = func() time.Time { return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run())
	require.Equal(t, "/data/cache", uploader.dir)
	require.Equal(t, "2026-03-04", uploader.snapshotID)
	require.Equal(t, "cache_snapshot", job.Name())
}
