package dump

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"paperlink/internal/config"
	"paperlink/internal/logging"
	"paperlink/internal/services"
)

// Fetcher downloads dump files to their configured local paths.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     logging.NewComponentLogger(logger, "dump"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open makes the dump for src available locally and returns a reader over it.
// When the source has a URL the file is re-downloaded (dumps are restartable
// by re-download); otherwise an existing local file is used as-is.
func (f *Fetcher) Open(ctx context.Context, src config.Source) (io.ReadCloser, error) {
	if src.URL != "" {
		if err := f.download(ctx, src); err != nil {
			return nil, err
		}
	}
	file, err := os.Open(src.Path)
	if err != nil {
		if os.IsNotExist(err) && src.URL == "" {
			return nil, services.Wrap(services.ErrConfiguration, "ingest", "open dump",
				fmt.Sprintf("source %q has no url and no local dump at %s", src.Tag, src.Path), nil)
		}
		return nil, services.Wrap(services.ErrStage, "ingest", "open dump", "", err)
	}
	return file, nil
}

func (f *Fetcher) download(ctx context.Context, src config.Source) error {
	timeout := time.Duration(src.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "ingest", "build dump request", "", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "ingest", "download dump", src.URL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return services.Wrap(services.ErrTransient, "ingest", "download dump",
			fmt.Sprintf("%s returned %d", src.URL, resp.StatusCode), nil)
	default:
		return services.Wrap(services.ErrPermanent, "ingest", "download dump",
			fmt.Sprintf("%s returned %d", src.URL, resp.StatusCode), nil)
	}

	// Write to a temp file first so an interrupted download never clobbers a
	// usable previous dump.
	if err := os.MkdirAll(filepath.Dir(src.Path), 0o755); err != nil {
		return services.Wrap(services.ErrStage, "ingest", "prepare dump directory", "", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(src.Path), ".dump-*")
	if err != nil {
		return services.Wrap(services.ErrStage, "ingest", "create temp dump", "", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return services.Wrap(services.ErrTransient, "ingest", "save dump", src.URL, err)
	}
	if err := os.Rename(tmpPath, src.Path); err != nil {
		return services.Wrap(services.ErrStage, "ingest", "finalize dump", "", err)
	}

	f.logger.Info("dump downloaded",
		logging.String(logging.FieldSource, src.Tag),
		logging.String("url", src.URL),
		logging.Int64("bytes", written),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}
