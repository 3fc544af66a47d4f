package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paperlink/internal/config"
	"paperlink/internal/dump"
	"paperlink/internal/kg"
	"paperlink/internal/linkstate"
	"paperlink/internal/logging"
	"paperlink/internal/match"
	"paperlink/internal/persistence"
	"paperlink/internal/services"
	"paperlink/internal/stage"
)

// Summary reports what one run did, from dump entries read down to claims
// written. Counts cover every record the run touched, including the ones it
// decided to leave alone.
type Summary struct {
	RunID      string    `json:"run_id"`
	Sources    []string  `json:"sources"`
	DryRun     bool      `json:"dry_run,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Entries          int `json:"entries"`
	Malformed        int `json:"malformed"`
	NotApproved      int `json:"not_approved"`
	WithoutCitations int `json:"without_citations"`
	Candidates       int `json:"candidates"`

	New        int `json:"new"`
	Changed    int `json:"changed"`
	Retried    int `json:"retried"`
	Unchanged  int `json:"unchanged"`
	Duplicates int `json:"duplicates"`

	MatchedExact     int `json:"matched_exact"`
	MatchedHeuristic int `json:"matched_heuristic"`
	Unmatched        int `json:"unmatched"`
	Ambiguous        int `json:"ambiguous"`
	LookupFailed     int `json:"lookup_failed"`

	Applied   int `json:"applied"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Conflicts int `json:"conflicts"`
}

// RunOptions selects what a run processes and how.
type RunOptions struct {
	// SourceTag restricts the run to a single configured source. Empty runs
	// all sources.
	SourceTag string
	// DryRun reports what would change without writing anywhere.
	DryRun bool
	// Workers overrides the configured worker count when positive.
	Workers int
}

// Pipeline drives a full reconciliation run: restore state, ingest dumps,
// classify, match, dispatch, then persist state.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	linker  kg.Linker
	backend persistence.Backend
	fetcher *dump.Fetcher
}

// Option overrides a pipeline dependency, mainly for tests.
type Option func(*Pipeline)

// WithLinker substitutes the knowledge graph client.
func WithLinker(linker kg.Linker) Option {
	return func(p *Pipeline) { p.linker = linker }
}

// WithBackend substitutes the persistence backend.
func WithBackend(backend persistence.Backend) Option {
	return func(p *Pipeline) { p.backend = backend }
}

// WithFetcher substitutes the dump fetcher.
func WithFetcher(fetcher *dump.Fetcher) Option {
	return func(p *Pipeline) { p.fetcher = fetcher }
}

// New wires a pipeline from configuration. Dependencies not overridden by
// options are built from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.linker == nil {
		linker, err := kg.New(cfg.KG)
		if err != nil {
			return nil, fmt.Errorf("build kg client: %w", err)
		}
		p.linker = linker
	}
	if p.backend == nil {
		backend, err := persistence.New(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("build persistence backend: %w", err)
		}
		p.backend = backend
	}
	if p.fetcher == nil {
		p.fetcher = dump.NewFetcher(logger)
	}
	return p, nil
}

// Run executes one reconciliation pass. State is pulled from the persistence
// backend before the store opens and pushed back only after every stage
// finished and the store closed cleanly; an aborted run leaves the remote
// snapshot untouched.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	sources, err := p.selectSources(opts.SourceTag)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := p.logger.With(logging.String(logging.FieldRunID, runID))

	summary := &Summary{
		RunID:     runID,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	for _, src := range sources {
		summary.Sources = append(summary.Sources, src.Tag)
	}

	if err := p.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "run", "ensure directories", "", err)
	}
	dbPath := p.cfg.StateDBPath()
	if err := p.backend.Pull(ctx, dbPath); err != nil {
		return nil, err
	}

	store, err := linkstate.Open(dbPath)
	if err != nil {
		return nil, services.Wrap(services.ErrStage, "run", "open state store", "", err)
	}
	logger.Info("run started",
		logging.Any("sources", summary.Sources),
		logging.Bool("dry_run", opts.DryRun))

	runErr := p.executeStages(ctx, store, sources, opts, summary, logger)

	closeErr := store.Close()
	if runErr != nil {
		logger.Error("run aborted", logging.Error(runErr))
		return nil, runErr
	}
	if closeErr != nil {
		return nil, services.Wrap(services.ErrStage, "run", "close state store", "", closeErr)
	}
	if !opts.DryRun {
		if err := p.backend.Push(ctx, dbPath); err != nil {
			return nil, err
		}
	}

	summary.FinishedAt = time.Now().UTC()
	logger.Info("run finished",
		logging.Int("candidates", summary.Candidates),
		logging.Int("applied", summary.Applied),
		logging.Int("failed", summary.Failed),
		logging.Int("conflicts", summary.Conflicts),
		logging.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)))
	return summary, nil
}

// executeStages runs the stage sequence, checking health before and
// cancellation between stages.
func (p *Pipeline) executeStages(ctx context.Context, store *linkstate.Store, sources []config.Source, opts RunOptions, summary *Summary, logger *slog.Logger) error {
	run := &stage.Run{
		ID:        summary.RunID,
		SourceTag: opts.SourceTag,
		DryRun:    opts.DryRun,
	}
	handlers := p.buildStages(store, sources, opts)

	for _, handler := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if health := handler.HealthCheck(ctx); !health.Ready {
			return services.Wrap(services.ErrStage, handler.Name(), "health check", health.Detail, nil)
		}
		stageCtx := services.WithStage(ctx, handler.Name())
		stageLogger := logger.With(logging.String(logging.FieldStage, handler.Name()))
		stageLogger.Debug("stage started")
		if err := handler.Execute(stageCtx, run); err != nil {
			return services.Wrap(services.ErrStage, handler.Name(), "execute", "", err)
		}
		stageLogger.Debug("stage finished")
	}

	p.fillSummary(summary, run)
	return nil
}

func (p *Pipeline) fillSummary(summary *Summary, run *stage.Run) {
	summary.Entries = run.Tally.Entries
	summary.Malformed = run.Tally.Malformed
	summary.NotApproved = run.Tally.NotApproved
	summary.WithoutCitations = run.Tally.WithoutCitations
	summary.Candidates = len(run.Candidates)

	summary.New = len(run.Diff.New)
	summary.Changed = len(run.Diff.Changed)
	summary.Retried = len(run.Diff.Retries)
	summary.Unchanged = run.Diff.Unchanged
	summary.Duplicates = run.Diff.Duplicates
	summary.LookupFailed = run.LookupFailed

	for _, result := range run.Matches {
		switch {
		case result.Ambiguous:
		case result.Confidence == match.ConfidenceExact:
			summary.MatchedExact++
		case result.Confidence == match.ConfidenceHeuristic:
			summary.MatchedHeuristic++
		}
	}
	summary.Ambiguous = run.Outcome.Ambiguous
	summary.Unmatched = run.Outcome.Unmatched
	summary.Applied = run.Outcome.Applied
	summary.Skipped = run.Outcome.Skipped
	summary.Failed = run.Outcome.Failed
	summary.Conflicts = run.Outcome.Conflicts
}

func (p *Pipeline) selectSources(tag string) ([]config.Source, error) {
	if tag == "" {
		if len(p.cfg.Sources) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "run", "select sources",
				"no sources configured", nil)
		}
		return p.cfg.Sources, nil
	}
	src, ok := p.cfg.SourceByTag(tag)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "run", "select sources",
			fmt.Sprintf("unknown source %q", tag), nil)
	}
	return []config.Source{src}, nil
}

func (p *Pipeline) workers(opts RunOptions) int {
	if opts.Workers > 0 {
		return opts.Workers
	}
	return p.cfg.Pipeline.Workers
}

func (p *Pipeline) retryPolicy() services.RetryPolicy {
	policy := services.DefaultRetryPolicy()
	if p.cfg.KG.RetryAttempts > 0 {
		policy.Attempts = p.cfg.KG.RetryAttempts
	}
	return policy
}
