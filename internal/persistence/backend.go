package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"paperlink/internal/config"
)

// Backend mirrors the state database to durable storage. Pull restores the
// most recent snapshot before a run opens the store; Push uploads the database
// after the store has been closed cleanly. A missing remote snapshot is not an
// error on Pull: first runs start from an empty database.
type Backend interface {
	Pull(ctx context.Context, localPath string) error
	Push(ctx context.Context, localPath string) error
	Describe() string
}

// New builds the backend selected by cfg.Persistence.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Persistence.Backend)) {
	case "", "none":
		return noopBackend{}, nil
	case "local":
		return newLocalBackend(cfg.Persistence.Local, logger), nil
	case "lakefs":
		return newLakeFSBackend(cfg.Persistence.LakeFS, logger), nil
	case "gcs":
		return newGCSBackend(ctx, cfg.Persistence.GCS, logger)
	default:
		return nil, fmt.Errorf("unsupported persistence backend %q", cfg.Persistence.Backend)
	}
}

type noopBackend struct{}

func (noopBackend) Pull(context.Context, string) error { return nil }
func (noopBackend) Push(context.Context, string) error { return nil }
func (noopBackend) Describe() string                   { return "none" }
