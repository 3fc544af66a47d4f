package record

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// New-style identifiers: YYMM.NNNNN with an optional version suffix.
	newStyleID = regexp.MustCompile(`^\d{4}\.\d{4,5}$`)
	// Old-style identifiers: archive(.subject)?/YYMMNNN.
	oldStyleID = regexp.MustCompile(`^[a-z-]+(\.[a-z-]+)?/\d{7}$`)

	versionSuffix = regexp.MustCompile(`v\d+$`)
)

// ErrMissingPaperID marks records without a usable preprint identifier.
var ErrMissingPaperID = errors.New("missing paper id")

// CanonicalPaperID normalizes an arXiv identifier: the scheme prefix and any
// version suffix are stripped and the result is lower-cased, so "arXiv:2101.00001v2"
// and "2101.00001" canonicalize to the same key.
func CanonicalPaperID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrMissingPaperID
	}
	lower := strings.ToLower(id)
	lower = strings.TrimPrefix(lower, "arxiv:")
	lower = versionSuffix.ReplaceAllString(lower, "")
	lower = strings.TrimSpace(lower)
	if lower == "" {
		return "", ErrMissingPaperID
	}
	if !newStyleID.MatchString(lower) && !oldStyleID.MatchString(lower) {
		return "", fmt.Errorf("unrecognized arxiv identifier %q", raw)
	}
	return lower, nil
}

// CanonicalURL normalizes a repository URL: scheme and host are lower-cased,
// fragments and trailing slashes are dropped, and default ports removed.
// An empty input stays empty (repository URLs may be absent).
func CanonicalURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", raw)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	switch {
	case parsed.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case parsed.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	parsed.Host = host
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String(), nil
}

// NormalizeTitle collapses whitespace and trims punctuation noise so dump and
// KG titles compare on content rather than formatting.
func NormalizeTitle(raw string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(raw)), " ")
}
