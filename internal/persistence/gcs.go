package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"paperlink/internal/config"
	"paperlink/internal/logging"
)

// gcsBackend keeps the state database as a single Google Cloud Storage
// object. Credentials come from a service account key file when configured,
// otherwise application default credentials.
type gcsBackend struct {
	client *storage.Client
	bucket string
	object string
	logger *slog.Logger
}

func newGCSBackend(ctx context.Context, cfg config.GCSPersistence, logger *slog.Logger) (*gcsBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("gcs credentials file %s: %w", cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &gcsBackend{
		client: client,
		bucket: cfg.Bucket,
		object: cfg.Object,
		logger: logging.NewComponentLogger(logger, "persistence"),
	}, nil
}

func (b *gcsBackend) Describe() string {
	return fmt.Sprintf("gs://%s/%s", b.bucket, b.object)
}

func (b *gcsBackend) Pull(ctx context.Context, localPath string) error {
	reader, err := b.client.Bucket(b.bucket).Object(b.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			b.logger.Info("no remote snapshot, starting fresh", logging.String("object", b.object))
			return nil
		}
		return fmt.Errorf("open gs://%s/%s: %w", b.bucket, b.object, err)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "snapshot-*.db")
	if err != nil {
		return fmt.Errorf("stage snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("download gs://%s/%s: %w", b.bucket, b.object, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("stage snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("stage snapshot: %w", err)
	}
	b.logger.Info("restored state snapshot", logging.String("object", b.object))
	return nil
}

func (b *gcsBackend) Push(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", localPath, err)
	}
	defer file.Close()

	writer := b.client.Bucket(b.bucket).Object(b.object).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"
	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return fmt.Errorf("upload gs://%s/%s: %w", b.bucket, b.object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish upload gs://%s/%s: %w", b.bucket, b.object, err)
	}
	b.logger.Info("pushed state snapshot", logging.String("object", b.object))
	return nil
}
