package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeKG(); err != nil {
		return err
	}
	if err := c.normalizeSources(); err != nil {
		return err
	}
	c.normalizeMatcher()
	if err := c.normalizePersistence(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeKG() error {
	c.KG.BaseURL = strings.TrimRight(strings.TrimSpace(c.KG.BaseURL), "/")
	if c.KG.User == "" {
		if value, ok := os.LookupEnv("PAPERLINK_KG_USER"); ok {
			c.KG.User = value
		}
	}
	if c.KG.Password == "" {
		if value, ok := os.LookupEnv("PAPERLINK_KG_PASSWORD"); ok {
			c.KG.Password = value
		}
	}
	if strings.TrimSpace(c.KG.UserAgent) == "" {
		c.KG.UserAgent = defaultKGUserAgent
	}
	if c.KG.TimeoutSeconds <= 0 {
		c.KG.TimeoutSeconds = defaultKGTimeoutSeconds
	}
	if c.KG.RetryAttempts <= 0 {
		c.KG.RetryAttempts = defaultKGRetryAttempts
	}
	return nil
}

func (c *Config) normalizeSources() error {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Tag = strings.TrimSpace(src.Tag)
		src.URL = strings.TrimSpace(src.URL)
		if src.TimeoutSeconds <= 0 {
			src.TimeoutSeconds = defaultSourceTimeout
		}
		if strings.TrimSpace(src.Path) == "" && src.Tag != "" {
			src.Path = "~/.local/share/paperlink/data/" + src.Tag + ".json"
		}
		if src.Path != "" {
			expanded, err := expandPath(src.Path)
			if err != nil {
				return fmt.Errorf("sources[%d].path: %w", i, err)
			}
			src.Path = expanded
		}
	}
	return nil
}

func (c *Config) normalizeMatcher() {
	if c.Matcher.MinTitleSimilarity <= 0 || c.Matcher.MinTitleSimilarity > 1 {
		c.Matcher.MinTitleSimilarity = defaultMinTitleSimilarity
	}
}

func (c *Config) normalizePersistence() error {
	c.Persistence.Backend = strings.ToLower(strings.TrimSpace(c.Persistence.Backend))
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = "none"
	}
	if c.Persistence.LakeFS.User == "" {
		if value, ok := os.LookupEnv("PAPERLINK_LAKEFS_USER"); ok {
			c.Persistence.LakeFS.User = value
		}
	}
	if c.Persistence.LakeFS.Password == "" {
		if value, ok := os.LookupEnv("PAPERLINK_LAKEFS_PASSWORD"); ok {
			c.Persistence.LakeFS.Password = value
		}
	}
	if strings.TrimSpace(c.Persistence.LakeFS.Branch) == "" {
		c.Persistence.LakeFS.Branch = defaultLakeFSBranch
	}
	c.Persistence.LakeFS.URL = strings.TrimRight(strings.TrimSpace(c.Persistence.LakeFS.URL), "/")
	if c.Persistence.Local.Dir != "" {
		expanded, err := expandPath(c.Persistence.Local.Dir)
		if err != nil {
			return fmt.Errorf("persistence.local.dir: %w", err)
		}
		c.Persistence.Local.Dir = expanded
	}
	if c.Persistence.GCS.CredentialsFile != "" {
		expanded, err := expandPath(c.Persistence.GCS.CredentialsFile)
		if err != nil {
			return fmt.Errorf("persistence.gcs.credentials_file: %w", err)
		}
		c.Persistence.GCS.CredentialsFile = expanded
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
