// Package archival uploads the market-data cache directory to S3 so it
// survives a host replacement, mirroring the role the teacher's
// internal/reliability.BackupService plays for its sqlite databases but
// targeting off-box object storage instead of a local backup tree — the
// teacher's go.mod already carries the aws-sdk-go-v2 S3 manager for this
// purpose, it just has no caller yet.
package archival

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Uploader snapshots a local directory tree to an S3 bucket/prefix.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// New builds an Uploader from the ambient AWS credential chain (env vars,
// shared config, or an attached instance role). Returns an error if no
// usable AWS configuration is found; callers should treat archival as
// optional and only construct an Uploader when a bucket is configured.
func New(ctx context.Context, bucket, prefix string, log zerolog.Logger) (*Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		log:    log.With().Str("component", "archival").Logger(),
	}, nil
}

// SnapshotDir uploads every regular file under dir to
// s3://bucket/prefix/<snapshot-id>/<relative-path>, returning the number of
// objects uploaded. A per-file upload failure is logged and skipped rather
// than aborting the whole snapshot, matching the teacher's backup service's
// "continue with other databases" posture.
func (u *Uploader) SnapshotDir(ctx context.Context, dir string, snapshotID string) (int, error) {
	uploader := manager.NewUploader(u.client)

	var count int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(filepath.Join(u.prefix, snapshotID, rel))

		f, err := os.Open(path)
		if err != nil {
			u.log.Error().Err(err).Str("path", path).Msg("archival: failed to open file")
			return nil
		}
		defer f.Close()

		if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(u.bucket),
			Key:    aws.String(key),
			Body:   f,
		}); err != nil {
			u.log.Error().Err(err).Str("key", key).Msg("archival: upload failed")
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walk cache dir: %w", err)
	}

	u.log.Info().Int("objects", count).Str("snapshot_id", snapshotID).Msg("archival: snapshot uploaded")
	return count, nil
}

// SnapshotID formats a timestamp into the date-stamped prefix used for a
// daily cache snapshot, keeping one object tree per day in the bucket.
func SnapshotID(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
