package record

import (
	"errors"
	"io"
	"log/slog"

	"paperlink/internal/logging"
)

// notApprovedName is the placeholder the upstream crawler stores for dataset
// ids that resolved to an access-denied page.
const notApprovedName = "403 Dataset not approved."

// Tally aggregates per-record outcomes of one normalization pass. Per-record
// problems are counted here, never propagated as errors.
type Tally struct {
	Entries          int
	NotApproved      int
	WithoutCitations int
	Malformed        int
	Rejected         int
	Emitted          int
}

// Add accumulates another tally, for runs that ingest multiple sources.
func (t *Tally) Add(other Tally) {
	t.Entries += other.Entries
	t.NotApproved += other.NotApproved
	t.WithoutCitations += other.WithoutCitations
	t.Malformed += other.Malformed
	t.Rejected += other.Rejected
	t.Emitted += other.Emitted
}

// Normalizer converts raw dump entries into CandidateRecords.
type Normalizer struct {
	sourceTag string
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer emitting records tagged with sourceTag.
func NewNormalizer(sourceTag string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		sourceTag: sourceTag,
		logger:    logging.NewComponentLogger(logger, "normalizer"),
	}
}

// Normalize streams the dump and returns one CandidateRecord per usable arXiv
// citation. Entries that are unapproved, citation-free, or malformed are
// counted and skipped; only a stream-level read failure aborts.
func (n *Normalizer) Normalize(r io.Reader) ([]CandidateRecord, Tally, error) {
	var (
		records []CandidateRecord
		tally   Tally
	)

	scanner := NewScanner(r)
	for {
		entry, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrMalformedEntry) {
			tally.Malformed++
			n.logger.Warn("dropping malformed dump entry", logging.Error(err))
			continue
		}
		if err != nil {
			return nil, tally, err
		}

		tally.Entries++
		records = n.normalizeEntry(entry, records, &tally)
	}

	n.logger.Info("dump normalized",
		logging.String(logging.FieldSource, n.sourceTag),
		logging.Int("entries", tally.Entries),
		logging.Int("candidates", tally.Emitted),
		logging.Int("malformed", tally.Malformed),
		logging.Int("rejected", tally.Rejected),
	)
	return records, tally, nil
}

func (n *Normalizer) normalizeEntry(entry RawEntry, records []CandidateRecord, tally *Tally) []CandidateRecord {
	if entry.DatasetName == notApprovedName {
		tally.NotApproved++
		return records
	}
	if len(entry.Citations) == 0 {
		tally.WithoutCitations++
		return records
	}

	repoURL, err := CanonicalURL(entry.DatasetURL)
	if err != nil {
		// A bad repository URL degrades the record rather than dropping it;
		// the identifier is still worth matching.
		n.logger.Warn("ignoring unparseable repository url",
			logging.Int("dataset_id", entry.DatasetID),
			logging.Error(err),
		)
		repoURL = ""
	}

	sawArxiv := false
	for _, citation := range entry.Citations {
		if citation.ArXiv == "" {
			continue
		}
		sawArxiv = true
		paperID, err := CanonicalPaperID(citation.ArXiv)
		if err != nil {
			tally.Rejected++
			n.logger.Warn("dropping citation without usable identifier",
				logging.Int("dataset_id", entry.DatasetID),
				logging.Error(err),
			)
			continue
		}
		candidate := CandidateRecord{
			PaperID:        paperID,
			Title:          NormalizeTitle(citation.Title),
			RepositoryURL:  repoURL,
			RepositoryName: NormalizeTitle(entry.DatasetName),
			SourceTag:      n.sourceTag,
		}
		candidate.ContentHash = candidate.Fingerprint()
		records = append(records, candidate)
		tally.Emitted++
	}
	if !sawArxiv {
		tally.WithoutCitations++
	}
	return records
}
