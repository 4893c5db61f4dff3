// Package backup takes encrypted snapshots of the tracker database and
// keeps them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/cadence/internal/calendar"
	"github.com/dukerupert/cadence/internal/metrics"
)

const keyTimeLayout = "2006-01-02T150405Z"

// ObjectStore is the subset of the S3 API backups use.
type ObjectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// Enabled reports whether enough is set to reach a bucket.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// NewS3Client builds a path-style client, which works for AWS as well as
// MinIO and other compatible stores.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Snapshot describes one stored backup.
type Snapshot struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	TakenAt time.Time `json:"taken_at"`
}

// Service snapshots db and manages the stored snapshots under prefix.
type Service struct {
	db         *sqlx.DB
	objects    ObjectStore
	bucket     string
	prefix     string
	passphrase string
	clock      calendar.Clock
	logger     *slog.Logger
}

func NewService(db *sqlx.DB, objects ObjectStore, cfg S3Config, passphrase string, clock calendar.Clock, logger *slog.Logger) *Service {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Service{
		db:         db,
		objects:    objects,
		bucket:     cfg.Bucket,
		prefix:     prefix,
		passphrase: passphrase,
		clock:      clock,
		logger:     logger.With("component", "backup"),
	}
}

// Run writes a consistent copy of the database, seals it, and uploads it.
func (s *Service) Run(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.run(ctx)
	metrics.Backups.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		s.logger.Error("backup failed", "error", err)
		return nil, err
	}
	s.logger.Info("backup uploaded", "key", snap.Key, "bytes", snap.Size, "duration", time.Since(start))
	return snap, nil
}

func (s *Service) run(ctx context.Context) (*Snapshot, error) {
	dir, err := os.MkdirTemp("", "cadence-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	copyPath := filepath.Join(dir, "snapshot.db")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", copyPath); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	plain, err := os.ReadFile(copyPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plain, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("seal snapshot: %w", err)
	}

	takenAt := s.clock().UTC()
	key := s.prefix + "cadence-" + takenAt.Format(keyTimeLayout) + ".db.enc"
	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}
	return &Snapshot{Key: key, Size: int64(len(sealed)), TakenAt: takenAt}, nil
}

// List returns the stored snapshots, oldest first.
func (s *Service) List(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	p := s3.NewListObjectsV2Paginator(s.objects, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "cadence-"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			takenAt, ok := parseKey(strings.TrimPrefix(key, s.prefix))
			if !ok {
				continue
			}
			out = append(out, Snapshot{Key: key, Size: aws.ToInt64(obj.Size), TakenAt: takenAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out, nil
}

// Prune deletes snapshots older than retention, always keeping the newest.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int, error) {
	snaps, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(snaps) <= 1 {
		return 0, nil
	}

	cutoff := s.clock().Add(-retention)
	deleted := 0
	for _, snap := range snaps[:len(snaps)-1] {
		if !snap.TakenAt.Before(cutoff) {
			break
		}
		if _, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(snap.Key),
		}); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", snap.Key, err)
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("pruned backups", "count", deleted, "retention", retention)
	}
	return deleted, nil
}

// Restore downloads key, checks that it opens as a healthy SQLite
// database, and writes it to dst. An existing dst is only replaced when
// overwrite is set; the server must not be running against it.
func (s *Service) Restore(ctx context.Context, key, dst string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("restore: %s already exists", dst)
		}
	}

	result, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()
	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}
	plain, err := Open(sealed, s.passphrase)
	if err != nil {
		return fmt.Errorf("restore %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".cadence-restore-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(plain); err != nil {
		tmp.Close()
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmpPath); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")

	s.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

// Schedule runs a backup and a prune every interval until ctx is done.
func (s *Service) Schedule(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				continue
			}
			if retention > 0 {
				if _, err := s.Prune(ctx, retention); err != nil {
					s.logger.Error("prune backups", "error", err)
				}
			}
		}
	}
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.GetContext(ctx, &result, "PRAGMA integrity_check"); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return errors.New("integrity check failed: " + result)
	}
	return nil
}

func parseKey(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, "cadence-")
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, ".db.enc")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(keyTimeLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
