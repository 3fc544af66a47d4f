package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"paperlink/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.KG.BaseURL = "https://kg.test.invalid"
	cfgVal.KG.User = "testbot"
	cfgVal.KG.Password = "testsecret"
	cfgVal.Sources = []config.Source{{
		Tag:  "uci",
		Path: filepath.Join(base, "data", "uci.json"),
	}}
	cfgVal.Persistence.Backend = "none"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithKGBaseURL points the knowledge graph client at the given endpoint,
// typically an httptest server.
func WithKGBaseURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.KG.BaseURL = baseURL
	}
}

// WithDump writes content as the local dump file for the default source.
func WithDump(content string) ConfigOption {
	return func(b *configBuilder) {
		path := b.cfg.Sources[0].Path
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.t.Fatalf("create dump dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			b.t.Fatalf("write dump: %v", err)
		}
	}
}

// WithWorkers sets the pipeline worker count.
func WithWorkers(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Workers = workers
	}
}
