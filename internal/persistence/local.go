package persistence

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"paperlink/internal/config"
	"paperlink/internal/logging"
)

// localBackend mirrors the state database into a directory on the same
// machine. Useful for keeping run-over-run snapshots outside the data dir.
type localBackend struct {
	dir    string
	logger *slog.Logger
}

func newLocalBackend(cfg config.LocalPersistence, logger *slog.Logger) *localBackend {
	return &localBackend{
		dir:    cfg.Dir,
		logger: logging.NewComponentLogger(logger, "persistence"),
	}
}

func (b *localBackend) Describe() string {
	return fmt.Sprintf("local dir %s", b.dir)
}

func (b *localBackend) Pull(ctx context.Context, localPath string) error {
	src := filepath.Join(b.dir, filepath.Base(localPath))
	if _, err := os.Stat(src); os.IsNotExist(err) {
		b.logger.Info("no mirrored snapshot, starting fresh", logging.String("path", src))
		return nil
	}
	if err := copyFile(src, localPath); err != nil {
		return fmt.Errorf("restore snapshot from %s: %w", src, err)
	}
	b.logger.Info("restored state snapshot", logging.String("path", src))
	return nil
}

func (b *localBackend) Push(ctx context.Context, localPath string) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create mirror dir %s: %w", b.dir, err)
	}
	dst := filepath.Join(b.dir, filepath.Base(localPath))
	if err := copyFile(localPath, dst); err != nil {
		return fmt.Errorf("mirror snapshot to %s: %w", dst, err)
	}
	b.logger.Info("mirrored state snapshot", logging.String("path", dst))
	return nil
}

// copyFile writes through a temp file and renames so a failed copy never
// leaves a truncated destination behind.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
