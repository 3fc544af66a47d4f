package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"paperlink/internal/config"
	"paperlink/internal/diff"
	"paperlink/internal/dispatch"
	"paperlink/internal/dump"
	"paperlink/internal/linkstate"
	"paperlink/internal/logging"
	"paperlink/internal/match"
	"paperlink/internal/record"
	"paperlink/internal/services"
	"paperlink/internal/stage"
)

func (p *Pipeline) buildStages(store *linkstate.Store, sources []config.Source, opts RunOptions) []stage.Handler {
	referenceURLs := make(map[string]string, len(sources))
	for _, src := range sources {
		if src.URL != "" {
			referenceURLs[src.Tag] = src.URL
		}
	}

	matcher := match.New(p.linker, match.Policy{
		HeuristicEnabled:   p.cfg.Matcher.HeuristicEnabled,
		MinTitleSimilarity: p.cfg.Matcher.MinTitleSimilarity,
		Retry:              p.retryPolicy(),
	}, nil, p.logger)

	dispatcher := dispatch.New(store, p.linker, dispatch.Options{
		Workers:      p.workers(opts),
		DryRun:       opts.DryRun,
		Retry:        p.retryPolicy(),
		ReferenceURL: referenceURLs,
	}, p.logger)

	return []stage.Handler{
		&ingestStage{fetcher: p.fetcher, sources: sources, logger: p.logger},
		&diffStage{store: store, differ: diff.NewDiffer(p.logger)},
		&matchStage{matcher: matcher, workers: p.workers(opts), logger: p.logger},
		&dispatchStage{dispatcher: dispatcher},
	}
}

// ingestStage downloads each dump and normalizes it into candidate records.
type ingestStage struct {
	fetcher *dump.Fetcher
	sources []config.Source
	logger  *slog.Logger
}

func (s *ingestStage) Name() string { return "ingest" }

func (s *ingestStage) HealthCheck(ctx context.Context) stage.Health {
	if len(s.sources) == 0 {
		return stage.Unhealthy(s.Name(), "no sources configured")
	}
	return stage.Healthy(s.Name())
}

func (s *ingestStage) Execute(ctx context.Context, run *stage.Run) error {
	for _, src := range s.sources {
		reader, err := s.fetcher.Open(ctx, src)
		if err != nil {
			return err
		}
		normalizer := record.NewNormalizer(src.Tag, s.logger)
		candidates, tally, err := normalizer.Normalize(reader)
		closeErr := reader.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
		run.Candidates = append(run.Candidates, candidates...)
		run.Tally.Add(tally)
	}
	return nil
}

// diffStage classifies candidates against the stored link states.
type diffStage struct {
	store  *linkstate.Store
	differ *diff.Differ
}

func (s *diffStage) Name() string { return "diff" }

func (s *diffStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.Name())
}

func (s *diffStage) Execute(ctx context.Context, run *stage.Run) error {
	states, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	run.Diff = s.differ.Classify(run.Candidates, states)
	return nil
}

// matchStage resolves pending candidates against the knowledge graph with a
// bounded worker pool.
type matchStage struct {
	matcher *match.Matcher
	workers int
	logger  *slog.Logger
}

func (s *matchStage) Name() string { return "match" }

func (s *matchStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.Name())
}

func (s *matchStage) Execute(ctx context.Context, run *stage.Run) error {
	pending := run.Diff.Pending()
	if len(pending) == 0 {
		return nil
	}

	workers := s.workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]match.Result, len(pending))
	var (
		mu           sync.Mutex
		fatal        error
		lookupFailed int
	)
	work := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				result, err := s.matcher.Resolve(ctx, pending[idx])
				if err != nil {
					if errors.Is(err, services.ErrPermanent) {
						s.logger.Warn("lookup failed, dropping record",
							logging.String(logging.FieldPaperID, pending[idx].PaperID),
							logging.Error(err))
						mu.Lock()
						lookupFailed++
						mu.Unlock()
						continue
					}
					mu.Lock()
					if fatal == nil {
						fatal = err
					}
					mu.Unlock()
					continue
				}
				results[idx] = result
			}
		}()
	}

feed:
	for idx := range pending {
		select {
		case <-ctx.Done():
			mu.Lock()
			if fatal == nil {
				fatal = ctx.Err()
			}
			mu.Unlock()
			break feed
		case work <- idx:
		}
	}
	close(work)
	wg.Wait()

	if fatal != nil {
		return fatal
	}
	// Permanent lookup failures drop the affected records; everything that
	// resolved still proceeds to dispatch.
	run.LookupFailed = lookupFailed
	run.Matches = results[:0]
	for _, result := range results {
		if result.Candidate.PaperID == "" {
			continue
		}
		run.Matches = append(run.Matches, result)
	}
	return nil
}

// dispatchStage propagates resolved links and records outcomes.
type dispatchStage struct {
	dispatcher *dispatch.Dispatcher
}

func (s *dispatchStage) Name() string { return "dispatch" }

func (s *dispatchStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(s.Name())
}

func (s *dispatchStage) Execute(ctx context.Context, run *stage.Run) error {
	outcome, err := s.dispatcher.Process(ctx, run.Matches)
	if err != nil {
		return err
	}
	run.Outcome = outcome
	return nil
}
