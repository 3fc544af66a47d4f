package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateKG(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if err := c.validatePersistence(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateKG() error {
	if c.KG.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/paperlink/config.toml"
		}
		return fmt.Errorf("kg.base_url is required. Edit %s (create with 'paperlink config init')", defaultPath)
	}
	if !strings.HasPrefix(c.KG.BaseURL, "http://") && !strings.HasPrefix(c.KG.BaseURL, "https://") {
		return errors.New("kg.base_url must be an http(s) URL")
	}
	for name, value := range map[string]string{
		"kg.identifier_property": c.KG.IdentifierProperty,
		"kg.repository_property": c.KG.RepositoryProperty,
		"kg.reference_property":  c.KG.ReferenceProperty,
	} {
		if !validProperty(value) {
			return fmt.Errorf("%s must be a Wikibase property id (e.g. P223)", name)
		}
	}
	return nil
}

func validProperty(value string) bool {
	if len(value) < 2 || value[0] != 'P' {
		return false
	}
	for _, r := range value[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c *Config) validateSources() error {
	if len(c.Sources) == 0 {
		return errors.New("at least one [[sources]] entry must be configured")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Tag == "" {
			return fmt.Errorf("sources[%d].tag must be set", i)
		}
		if _, ok := seen[src.Tag]; ok {
			return fmt.Errorf("duplicate source tag %q", src.Tag)
		}
		seen[src.Tag] = struct{}{}
		if src.URL == "" && src.Path == "" {
			return fmt.Errorf("source %q needs a url or a local path", src.Tag)
		}
	}
	return nil
}

func (c *Config) validateMatcher() error {
	if c.Matcher.MinTitleSimilarity < 0 || c.Matcher.MinTitleSimilarity > 1 {
		return errors.New("matcher.min_title_similarity must be between 0 and 1")
	}
	return nil
}

func (c *Config) validatePersistence() error {
	switch c.Persistence.Backend {
	case "none":
		return nil
	case "local":
		if c.Persistence.Local.Dir == "" {
			return errors.New("persistence.local.dir must be set when backend is local")
		}
	case "lakefs":
		lf := c.Persistence.LakeFS
		if lf.URL == "" || lf.Repo == "" || lf.Path == "" {
			return errors.New("persistence.lakefs.url, repo, and path must be set when backend is lakefs")
		}
		if lf.User == "" || lf.Password == "" {
			return errors.New("lakefs credentials missing; set persistence.lakefs.user/password or PAPERLINK_LAKEFS_USER/PAPERLINK_LAKEFS_PASSWORD")
		}
	case "gcs":
		gcs := c.Persistence.GCS
		if gcs.Bucket == "" || gcs.Object == "" {
			return errors.New("persistence.gcs.bucket and object must be set when backend is gcs")
		}
	default:
		return fmt.Errorf("persistence.backend: unsupported value %q", c.Persistence.Backend)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
