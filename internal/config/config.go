package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// KG contains connection settings for the knowledge graph API.
type KG struct {
	BaseURL   string `toml:"base_url"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	UserAgent string `toml:"user_agent"`
	// IdentifierProperty is the KG property holding the canonical preprint
	// identifier (arXiv ID).
	IdentifierProperty string `toml:"identifier_property"`
	// RepositoryProperty is the KG property the dispatcher writes the
	// companion repository into.
	RepositoryProperty string `toml:"repository_property"`
	// ReferenceProperty carries the provenance URL on the written claim.
	ReferenceProperty string `toml:"reference_property"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RetryAttempts     int    `toml:"retry_attempts"`
}

// Source describes one upstream dump source.
type Source struct {
	Tag string `toml:"tag"`
	URL string `toml:"url"`
	// Path is the local file the dump is downloaded to (or read from when no
	// URL is configured).
	Path           string `toml:"path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Matcher contains heuristic matching thresholds.
type Matcher struct {
	HeuristicEnabled   bool    `toml:"heuristic_enabled"`
	MinTitleSimilarity float64 `toml:"min_title_similarity"`
}

// Persistence selects and configures the state snapshot backend.
type Persistence struct {
	// Backend is one of "none", "local", "lakefs", "gcs".
	Backend string            `toml:"backend"`
	Local   LocalPersistence  `toml:"local"`
	LakeFS  LakeFSPersistence `toml:"lakefs"`
	GCS     GCSPersistence    `toml:"gcs"`
}

// LocalPersistence mirrors the state database into a directory.
type LocalPersistence struct {
	Dir string `toml:"dir"`
}

// LakeFSPersistence stores the state database as a versioned lakeFS object.
type LakeFSPersistence struct {
	URL      string `toml:"url"`
	Repo     string `toml:"repo"`
	Branch   string `toml:"branch"`
	Path     string `toml:"path"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// GCSPersistence stores the state database as a Google Cloud Storage object.
type GCSPersistence struct {
	Bucket          string `toml:"bucket"`
	Object          string `toml:"object"`
	CredentialsFile string `toml:"credentials_file"`
}

// Pipeline contains run-level tuning.
type Pipeline struct {
	Workers int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for paperlink.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - KG: knowledge graph API connection and write properties
//   - Sources: upstream dump sources
//   - Matcher: heuristic matching thresholds
//   - Persistence: state snapshot backend (none/local/lakefs/gcs)
//   - Pipeline: worker pool sizing
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	KG          KG          `toml:"kg"`
	Sources     []Source    `toml:"sources"`
	Matcher     Matcher     `toml:"matcher"`
	Persistence Persistence `toml:"persistence"`
	Pipeline    Pipeline    `toml:"pipeline"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/paperlink/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The second return value is the
// resolved path, the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("paperlink.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs before the state store
// opens.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Persistence.Backend == "local" && strings.TrimSpace(c.Persistence.Local.Dir) != "" {
		if err := os.MkdirAll(c.Persistence.Local.Dir, 0o755); err != nil {
			return fmt.Errorf("create persistence mirror %q: %w", c.Persistence.Local.Dir, err)
		}
	}
	return nil
}

// StateDBPath returns the location of the LinkState database inside the data
// directory.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.Paths.DataDir, "linkstate.db")
}

// SourceByTag returns the configured source with the given tag.
func (c *Config) SourceByTag(tag string) (Source, bool) {
	for _, src := range c.Sources {
		if src.Tag == tag {
			return src, true
		}
	}
	return Source{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
