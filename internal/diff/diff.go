package diff

import (
	"log/slog"

	"paperlink/internal/linkstate"
	"paperlink/internal/logging"
	"paperlink/internal/record"
)

// Result partitions a candidate batch against the stored link states.
// New, Changed, and Retries records need downstream work; Unchanged records
// are counted so run summaries stay honest about what a dump actually
// contained.
type Result struct {
	New     []record.CandidateRecord
	Changed []record.CandidateRecord
	// Retries holds records whose dump entry is unchanged but whose stored
	// state did not reach a settled outcome: a failed write, or no graph
	// item found yet (graph ingestion may lag the dump).
	Retries   []record.CandidateRecord
	Unchanged int
	// Duplicates counts batch entries discarded because an earlier entry in
	// the same batch carried the same paper identifier.
	Duplicates int
}

// Pending returns the records that require matching and dispatch, new
// records first.
func (r Result) Pending() []record.CandidateRecord {
	pending := make([]record.CandidateRecord, 0, len(r.New)+len(r.Changed)+len(r.Retries))
	pending = append(pending, r.New...)
	pending = append(pending, r.Changed...)
	pending = append(pending, r.Retries...)
	return pending
}

// Differ classifies candidate records against a link-state snapshot.
type Differ struct {
	logger *slog.Logger
}

func NewDiffer(logger *slog.Logger) *Differ {
	return &Differ{logger: logging.NewComponentLogger(logger, "diff")}
}

// Classify walks the batch once and buckets every record as new, changed, or
// unchanged relative to states. Within a batch the first record for a paper
// wins; later duplicates are dropped and counted.
func (d *Differ) Classify(candidates []record.CandidateRecord, states map[string]*linkstate.LinkState) Result {
	var result Result
	seen := make(map[string]struct{}, len(candidates))

	for _, candidate := range candidates {
		if _, dup := seen[candidate.PaperID]; dup {
			result.Duplicates++
			d.logger.Debug("duplicate paper in batch",
				logging.String(logging.FieldPaperID, candidate.PaperID),
				logging.String(logging.FieldSource, candidate.SourceTag))
			continue
		}
		seen[candidate.PaperID] = struct{}{}

		state, known := states[candidate.PaperID]
		switch {
		case !known:
			result.New = append(result.New, candidate)
		case state.LastContentHash != candidate.ContentHash:
			result.Changed = append(result.Changed, candidate)
		case needsRetry(state):
			result.Retries = append(result.Retries, candidate)
		default:
			result.Unchanged++
		}
	}

	d.logger.Info("classified batch",
		logging.Int("new", len(result.New)),
		logging.Int("changed", len(result.Changed)),
		logging.Int("retries", len(result.Retries)),
		logging.Int("unchanged", result.Unchanged),
		logging.Int("duplicates", result.Duplicates))
	return result
}

// needsRetry reports whether a stored state must go back through the pipeline
// even though its dump entry has not changed. Failed writes retry until they
// stick, unmatched papers retry until the graph catches up. Conflicted papers
// wait for an operator, and a skip that carries an item describes a record
// with nothing to write.
func needsRetry(state *linkstate.LinkState) bool {
	if state.Conflict {
		return false
	}
	switch state.LastUpdateStatus {
	case linkstate.StatusPending, linkstate.StatusFailed:
		return true
	case linkstate.StatusSkipped:
		return state.KGItemID == ""
	}
	return false
}
