// Package backup ships encrypted copies of the database to S3-compatible
// storage on a daily schedule. It is operational plumbing: nothing in the
// request path depends on it, and it stays inert unless fully configured.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is the slice of the S3 API the manager uses, as an interface for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds the S3 destination, the encryption passphrase, and the
// schedule. Backups stay disabled unless bucket, credentials, and passphrase
// are all present.
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Prefix        string
	Passphrase    string
	DBPath        string
	Hour          int // UTC hour of the daily run
	RetentionDays int
}

func (c Config) enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

func newS3Client(cfg Config) *s3.Client {
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

// Manager runs the daily backup loop: copy the database, seal it, upload it,
// sweep expired objects.
type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger

	mu      sync.RWMutex
	lastRun time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "backup"),
	}
	if cfg.enabled() {
		m.client = newS3Client(cfg)
	}
	return m
}

// Start begins the schedule loop. It is a no-op when backups are disabled.
func (m *Manager) Start(ctx context.Context) {
	if m.client == nil {
		m.logger.Info("backups disabled")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("backup schedule started", "hour", m.cfg.Hour, "bucket", m.cfg.Bucket)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for any in-flight run to finish.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.Hour {
		return
	}
	m.mu.RLock()
	ranToday := m.lastRun.Year() == now.Year() && m.lastRun.YearDay() == now.YearDay()
	m.mu.RUnlock()
	if ranToday {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
}

// RunNow takes a consistent copy of the database, seals it, and uploads it
// under a timestamped key. It returns the object key.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	if m.client == nil {
		return "", fmt.Errorf("backup not configured")
	}

	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("mathom-backup-%d.db", time.Now().UnixNano()))
	defer os.Remove(tmp)

	// VACUUM INTO writes a point-in-time copy without holding writers off
	// for the duration of the upload.
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return "", fmt.Errorf("vacuum into: %w", err)
	}

	plaintext, err := os.ReadFile(tmp)
	if err != nil {
		return "", fmt.Errorf("read database copy: %w", err)
	}
	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return "", fmt.Errorf("seal backup: %w", err)
	}

	key := m.objectKey(time.Now().UTC())
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	}); err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	m.mu.Lock()
	m.lastRun = time.Now().UTC()
	m.mu.Unlock()
	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))

	if err := m.prune(ctx); err != nil {
		m.logger.Warn("backup retention sweep failed", "error", err)
	}
	return key, nil
}

func (m *Manager) objectKey(now time.Time) string {
	name := fmt.Sprintf("backup-%s.db.enc", now.Format("2006-01-02T150405Z"))
	if m.cfg.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(m.cfg.Prefix, "/") + "/" + name
}

// prune deletes backups past the retention window. Age comes from the
// object's LastModified rather than the key, so a changed prefix or key
// format never strands old objects.
func (m *Manager) prune(ctx context.Context) error {
	if m.cfg.RetentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)

	var token *string
	for {
		page, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.Bucket),
			Prefix:            aws.String(m.cfg.Prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(m.cfg.Bucket),
				Key:    obj.Key,
			}); err != nil {
				m.logger.Warn("delete expired backup failed", "key", aws.ToString(obj.Key), "error", err)
			}
		}
		if page.NextContinuationToken == nil {
			return nil
		}
		token = page.NextContinuationToken
	}
}

// Restore fetches the named backup and writes it to cfg.DBPath before the
// database is opened. Disaster recovery only: it refuses to overwrite an
// existing database file.
func Restore(ctx context.Context, cfg Config, key string, logger *slog.Logger) error {
	if !cfg.enabled() {
		return fmt.Errorf("backup not configured")
	}
	return restore(ctx, newS3Client(cfg), cfg, key, logger)
}

func restore(ctx context.Context, client s3Client, cfg Config, key string, logger *slog.Logger) error {
	if _, err := os.Stat(cfg.DBPath); err == nil {
		return fmt.Errorf("database already exists at %s; move it aside before restoring", cfg.DBPath)
	}

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download backup: %w", err)
	}
	defer obj.Body.Close()

	sealed, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	plaintext, err := Open(sealed, cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}

	tmp := cfg.DBPath + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored copy: %w", err)
	}
	defer os.Remove(tmp)

	check, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("open restored copy: %w", err)
	}
	var integrity string
	err = check.QueryRow("PRAGMA integrity_check").Scan(&integrity)
	check.Close()
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}

	if err := os.Rename(tmp, cfg.DBPath); err != nil {
		return fmt.Errorf("move restored database: %w", err)
	}
	logger.Info("database restored", "key", key)
	return nil
}
