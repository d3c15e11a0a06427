package maintenance

import (
	"context"
	"time"
)

// JobRecordStore deletes terminal job records older than TTL, keeping the
// sqlite job store from growing unbounded. internal/jobstore.Store
// satisfies JobRecordStore.
type JobRecordStore interface {
	Sweep(olderThan time.Time) (int64, error)
}

type JobRecordSweepJob struct {
	store JobRecordStore
	ttl   time.Duration
}

func NewJobRecordSweepJob(store JobRecordStore, ttl time.Duration) *JobRecordSweepJob {
	return &JobRecordSweepJob{store: store, ttl: ttl}
}

func (j *JobRecordSweepJob) Name() string { return "job_record_sweep" }

func (j *JobRecordSweepJob) Run() error {
	_, err := j.store.Sweep(time.Now().UTC().Add(-j.ttl))
	return err
}

// JWKSRefreshable forces the HTTP layer's JWKS cache to re-fetch ahead of its
// TTL. internal/httpapi.Server satisfies JWKSRefreshable.
type JWKSRefreshable interface {
	RefreshJWKS(ctx context.Context) error
}

type JWKSRefreshJob struct {
	ctx    context.Context
	server JWKSRefreshable
}

func NewJWKSRefreshJob(ctx context.Context, server JWKSRefreshable) *JWKSRefreshJob {
	return &JWKSRefreshJob{ctx: ctx, server: server}
}

func (j *JWKSRefreshJob) Name() string { return "jwks_refresh" }

func (j *JWKSRefreshJob) Run() error {
	return j.server.RefreshJWKS(j.ctx)
}

// CacheSnapshotter uploads a directory tree to off-box storage.
// internal/archival.Uploader satisfies CacheSnapshotter.
type CacheSnapshotter interface {
	SnapshotDir(ctx context.Context, dir string, snapshotID string) (int, error)
}

type CacheSnapshotJob struct {
	ctx      context.Context
	uploader CacheSnapshotter
	cacheDir string
	now      func() time.Time
}

func NewCacheSnapshotJob(ctx context.Context, uploader CacheSnapshotter, cacheDir string) *CacheSnapshotJob {
	return &CacheSnapshotJob{ctx: ctx, uploader: uploader, cacheDir: cacheDir, now: time.Now}
}

func (j *CacheSnapshotJob) Name() string { return "cache_snapshot" }

func (j *CacheSnapshotJob) Run() error {
	snapshotID := j.now().UTC().Format("2006-01-02")
	_, err := j.uploader.SnapshotDir(j.ctx, j.cacheDir, snapshotID)
	return err
}
