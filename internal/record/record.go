package record

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// CandidateRecord is one normalized row from an upstream dump: a preprint
// identifier paired with the companion repository its dump entry describes.
type CandidateRecord struct {
	// PaperID is the canonical preprint identifier (arXiv ID, version stripped).
	PaperID string
	// Title is the citation title as reported by the dump, used for heuristic
	// matching when the identifier lookup finds nothing.
	Title string
	// RepositoryURL is the normalized companion repository URL.
	RepositoryURL string
	// RepositoryName is the human-readable repository (dataset) name.
	RepositoryName string
	// SourceTag identifies which upstream dump produced this record.
	SourceTag string
	// ContentHash fingerprints the canonical fields for change detection.
	ContentHash string
}

// Fingerprint computes the content hash over the record's canonical fields.
// The hash is taken over a sorted key=value list so field ordering upstream
// never produces a spurious diff. SourceTag is excluded: two sources reporting
// the same linkage are the same record for diffing purposes.
func (r CandidateRecord) Fingerprint() string {
	fields := map[string]string{
		"paper_id":        r.PaperID,
		"title":           r.Title,
		"repository_url":  r.RepositoryURL,
		"repository_name": r.RepositoryName,
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, k := range keys {
		builder.WriteString(k)
		builder.WriteByte('=')
		builder.WriteString(fields[k])
		builder.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(builder.String()))
	return hex.EncodeToString(sum[:])
}
