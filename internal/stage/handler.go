package stage

import (
	"context"

	"paperlink/internal/diff"
	"paperlink/internal/dispatch"
	"paperlink/internal/match"
	"paperlink/internal/record"
)

// Run carries the working state of one pipeline run between stages. Each
// stage reads what earlier stages produced and fills in its own section.
type Run struct {
	ID        string
	SourceTag string
	DryRun    bool

	Candidates []record.CandidateRecord
	Tally      record.Tally
	Diff       diff.Result
	Matches    []match.Result
	// LookupFailed counts records dropped because their graph lookup failed
	// permanently.
	LookupFailed int
	Outcome      dispatch.Outcome
}

// Handler describes the contract the run driver needs from each stage.
type Handler interface {
	Name() string
	Execute(ctx context.Context, run *Run) error
	HealthCheck(ctx context.Context) Health
}
