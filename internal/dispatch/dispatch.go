package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"paperlink/internal/kg"
	"paperlink/internal/linkstate"
	"paperlink/internal/logging"
	"paperlink/internal/match"
	"paperlink/internal/services"
)

// Outcome aggregates what happened to a batch of match results.
type Outcome struct {
	Applied   int
	Skipped   int
	Failed    int
	Ambiguous int
	Conflicts int
	Unmatched int
}

// Options tunes a Dispatcher.
type Options struct {
	// Workers bounds concurrent knowledge graph writes.
	Workers int
	// DryRun logs what would be written without touching the graph or the
	// link states.
	DryRun bool
	// Retry governs transient write failures.
	Retry services.RetryPolicy
	// ReferenceURL names the dump a link was extracted from, keyed by
	// source tag. Attached as provenance on every written claim.
	ReferenceURL map[string]string
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// Dispatcher propagates resolved links into the knowledge graph and records
// the outcome in the link-state store. Writes are idempotent: a claim already
// present in the graph confirms the state without a second write, and the
// state row is only advanced after the graph write is confirmed.
type Dispatcher struct {
	store  *linkstate.Store
	linker kg.Linker
	opts   Options
	logger *slog.Logger
}

func New(store *linkstate.Store, linker kg.Linker, opts Options, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		linker: linker,
		opts:   opts.normalized(),
		logger: logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Process works through results with a bounded worker pool. Per-record
// failures are counted, not fatal; the first fatal error (store corruption,
// cancellation) aborts the batch.
func (d *Dispatcher) Process(ctx context.Context, results []match.Result) (Outcome, error) {
	var (
		mu      sync.Mutex
		outcome Outcome
		fatal   error
	)
	record := func(update func(*Outcome), err error) {
		mu.Lock()
		defer mu.Unlock()
		if update != nil {
			update(&outcome)
		}
		if err != nil && fatal == nil {
			fatal = err
		}
	}

	work := make(chan match.Result)
	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for result := range work {
				update, err := d.dispatchOne(ctx, result)
				record(update, err)
			}
		}()
	}

feed:
	for _, result := range results {
		select {
		case <-ctx.Done():
			record(nil, ctx.Err())
			break feed
		case work <- result:
		}
	}
	close(work)
	wg.Wait()

	return outcome, fatal
}

// dispatchOne handles a single match result and returns the counter to bump.
func (d *Dispatcher) dispatchOne(ctx context.Context, result match.Result) (func(*Outcome), error) {
	candidate := result.Candidate
	logger := d.logger.With(
		logging.String(logging.FieldPaperID, candidate.PaperID),
		logging.String(logging.FieldSource, candidate.SourceTag))

	if result.Ambiguous {
		logger.Warn("ambiguous match left unlinked", logging.String("detail", result.Detail))
		return func(o *Outcome) { o.Ambiguous++ }, nil
	}
	if result.Confidence == match.ConfidenceNone {
		// Recorded without an item id, so the differ keeps re-routing the
		// paper until the graph catches up with the dump.
		if !d.opts.DryRun {
			if err := d.persist(ctx, candidate.PaperID, candidate.ContentHash, "", linkstate.StatusSkipped); err != nil {
				return d.classifyPersistError(ctx, logger, candidate.PaperID, err)
			}
		}
		return func(o *Outcome) { o.Unmatched++ }, nil
	}
	if candidate.RepositoryURL == "" {
		logger.Info("no repository url, skipping",
			logging.String(logging.FieldItemID, result.KGItemID))
		if !d.opts.DryRun {
			if err := d.persist(ctx, candidate.PaperID, candidate.ContentHash, result.KGItemID, linkstate.StatusSkipped); err != nil {
				return d.classifyPersistError(ctx, logger, candidate.PaperID, err)
			}
		}
		return func(o *Outcome) { o.Skipped++ }, nil
	}

	// An earlier run may have bound this paper to a different item.
	existing, err := d.store.Get(ctx, candidate.PaperID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.KGItemID != "" && existing.KGItemID != result.KGItemID {
		detail := "resolved to " + result.KGItemID + " but recorded as " + existing.KGItemID
		logger.Error("link conflict", logging.String("detail", detail))
		if d.opts.DryRun {
			return func(o *Outcome) { o.Conflicts++ }, nil
		}
		if err := d.store.MarkConflict(ctx, candidate.PaperID, detail); err != nil {
			return nil, err
		}
		return func(o *Outcome) { o.Conflicts++ }, nil
	}

	if d.opts.DryRun {
		logger.Info("dry run, would link",
			logging.String(logging.FieldItemID, result.KGItemID),
			logging.String("repository_url", candidate.RepositoryURL),
			logging.String("confidence", string(result.Confidence)))
		return func(o *Outcome) { o.Applied++ }, nil
	}

	applied, err := d.apply(ctx, result)
	if err != nil {
		if services.IsFatal(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Error("link failed", logging.Error(err))
		if perr := d.persist(ctx, candidate.PaperID, candidate.ContentHash, result.KGItemID, linkstate.StatusFailed); perr != nil {
			return nil, perr
		}
		return func(o *Outcome) { o.Failed++ }, nil
	}
	if applied {
		logger.Info("link applied",
			logging.String(logging.FieldItemID, result.KGItemID),
			logging.String("confidence", string(result.Confidence)))
	} else {
		logger.Info("link already present",
			logging.String(logging.FieldItemID, result.KGItemID))
	}
	if err := d.persist(ctx, candidate.PaperID, candidate.ContentHash, result.KGItemID, linkstate.StatusApplied); err != nil {
		return d.classifyPersistError(ctx, logger, candidate.PaperID, err)
	}
	return func(o *Outcome) { o.Applied++ }, nil
}

// apply writes the repository claim unless the graph already carries it.
// Returns false when the claim was found to exist.
func (d *Dispatcher) apply(ctx context.Context, result match.Result) (bool, error) {
	candidate := result.Candidate

	var present bool
	err := services.Retry(ctx, d.opts.Retry, func() error {
		var checkErr error
		present, checkErr = d.linker.HasRepositoryClaim(ctx, result.KGItemID, candidate.RepositoryURL)
		return checkErr
	})
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}

	referenceURL := d.opts.ReferenceURL[candidate.SourceTag]
	err = services.Retry(ctx, d.opts.Retry, func() error {
		return d.linker.AddRepositoryClaim(ctx, result.KGItemID, candidate.RepositoryURL, referenceURL)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) persist(ctx context.Context, paperID, hash, itemID string, status linkstate.Status) error {
	return d.store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          paperID,
		LastContentHash:  hash,
		KGItemID:         itemID,
		LastUpdateStatus: status,
		LastSeenAt:       time.Now().UTC(),
	})
}

// classifyPersistError turns an upsert conflict into a recorded conflict;
// any other store error is fatal for the batch.
func (d *Dispatcher) classifyPersistError(ctx context.Context, logger *slog.Logger, paperID string, err error) (func(*Outcome), error) {
	if errors.Is(err, services.ErrConflict) {
		logger.Error("link conflict on persist", logging.Error(err))
		if markErr := d.store.MarkConflict(ctx, paperID, err.Error()); markErr != nil {
			return nil, markErr
		}
		return func(o *Outcome) { o.Conflicts++ }, nil
	}
	return nil, err
}
