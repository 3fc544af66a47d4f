// Package config loads, normalizes, and validates the TOML configuration for
// paperlink. Path fields expand ~ and resolve to absolute paths, credentials
// fall back to environment variables, and a sample configuration can be
// written for new installs.
package config
