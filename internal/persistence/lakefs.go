package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperlink/internal/config"
	"paperlink/internal/logging"
	"paperlink/internal/services"
)

// lakeFSBackend keeps the state database as a versioned object in a lakeFS
// repository. Every Push uploads the file and commits the branch so each run
// leaves an addressable snapshot behind.
type lakeFSBackend struct {
	baseURL    string
	repo       string
	branch     string
	objectPath string
	user       string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

func newLakeFSBackend(cfg config.LakeFSPersistence, logger *slog.Logger) *lakeFSBackend {
	return &lakeFSBackend{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		repo:       cfg.Repo,
		branch:     cfg.Branch,
		objectPath: cfg.Path,
		user:       cfg.User,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     logging.NewComponentLogger(logger, "persistence"),
	}
}

func (b *lakeFSBackend) Describe() string {
	return fmt.Sprintf("lakefs %s/%s@%s:%s", b.baseURL, b.repo, b.branch, b.objectPath)
}

func (b *lakeFSBackend) Pull(ctx context.Context, localPath string) error {
	endpoint := fmt.Sprintf("%s/api/v1/repositories/%s/refs/%s/objects?path=%s",
		b.baseURL, url.PathEscape(b.repo), url.PathEscape(b.branch), url.QueryEscape(b.objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "persistence", "build pull request", "", err)
	}
	req.SetBasicAuth(b.user, b.password)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "persistence", "pull snapshot", "", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		b.logger.Info("no remote snapshot, starting fresh", logging.String("object", b.objectPath))
		return nil
	case resp.StatusCode != http.StatusOK:
		return classifyStatus(resp.StatusCode, "pull snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(localPath), "snapshot-*.db")
	if err != nil {
		return services.Wrap(services.ErrStage, "persistence", "stage snapshot", "", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return services.Wrap(services.ErrTransient, "persistence", "download snapshot", "", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrStage, "persistence", "stage snapshot", "", err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrStage, "persistence", "stage snapshot", "", err)
	}
	b.logger.Info("restored state snapshot", logging.String("object", b.objectPath))
	return nil
}

func (b *lakeFSBackend) Push(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return services.Wrap(services.ErrStage, "persistence", "open snapshot", "", err)
	}
	defer file.Close()

	endpoint := fmt.Sprintf("%s/api/v1/repositories/%s/branches/%s/objects?path=%s",
		b.baseURL, url.PathEscape(b.repo), url.PathEscape(b.branch), url.QueryEscape(b.objectPath))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "persistence", "build push request", "", err)
	}
	req.SetBasicAuth(b.user, b.password)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "persistence", "push snapshot", "", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return classifyStatus(resp.StatusCode, "push snapshot")
	}

	if err := b.commit(ctx); err != nil {
		return err
	}
	b.logger.Info("pushed state snapshot", logging.String("object", b.objectPath))
	return nil
}

func (b *lakeFSBackend) commit(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"message": fmt.Sprintf("paperlink state snapshot %s", time.Now().UTC().Format(time.RFC3339)),
	})
	if err != nil {
		return services.Wrap(services.ErrStage, "persistence", "encode commit", "", err)
	}
	endpoint := fmt.Sprintf("%s/api/v1/repositories/%s/branches/%s/commits",
		b.baseURL, url.PathEscape(b.repo), url.PathEscape(b.branch))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "persistence", "build commit request", "", err)
	}
	req.SetBasicAuth(b.user, b.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "persistence", "commit snapshot", "", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return classifyStatus(resp.StatusCode, "commit snapshot")
	}
	return nil
}

func classifyStatus(status int, operation string) error {
	marker := services.ErrPermanent
	if status >= 500 || status == http.StatusTooManyRequests {
		marker = services.ErrTransient
	}
	return services.Wrap(marker, "persistence", operation,
		fmt.Sprintf("unexpected status %d", status), nil)
}
