package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"paperlink/internal/kg"
	"paperlink/internal/logging"
	"paperlink/internal/record"
	"paperlink/internal/services"
	"paperlink/internal/testsupport"
)

func fastRetry() services.RetryPolicy {
	return services.RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func candidate(paperID, title string) record.CandidateRecord {
	return record.CandidateRecord{PaperID: paperID, Title: title}
}

func TestResolveExactMatch(t *testing.T) {
	linker := &testsupport.FakeLinker{
		Items: map[string][]kg.Item{"2101.00001": {{ID: "Q42"}}},
	}
	matcher := New(linker, Policy{Retry: fastRetry()}, nil, logging.NewNop())

	result, err := matcher.Resolve(context.Background(), candidate("2101.00001", "Iris"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Confidence != ConfidenceExact || result.KGItemID != "Q42" {
		t.Fatalf("result = %+v, want exact Q42", result)
	}
}

func TestResolveAmbiguousIdentifier(t *testing.T) {
	linker := &testsupport.FakeLinker{
		Items: map[string][]kg.Item{"2101.00001": {{ID: "Q42"}, {ID: "Q43"}}},
	}
	matcher := New(linker, Policy{Retry: fastRetry()}, nil, logging.NewNop())

	result, err := matcher.Resolve(context.Background(), candidate("2101.00001", "Iris"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Ambiguous || result.KGItemID != "" || result.Confidence != ConfidenceNone {
		t.Fatalf("result = %+v, want ambiguous without item", result)
	}
	if result.Detail == "" {
		t.Fatal("ambiguous result should carry detail")
	}
}

func TestResolveHeuristicMatch(t *testing.T) {
	linker := &testsupport.FakeLinker{
		Labels: map[string][]kg.Item{
			"Wine Quality": {
				{ID: "Q7", Label: "Wine Quality"},
				{ID: "Q8", Label: "Completely Different Topic"},
			},
		},
	}
	matcher := New(linker, Policy{HeuristicEnabled: true, MinTitleSimilarity: 0.85, Retry: fastRetry()},
		nil, logging.NewNop())

	result, err := matcher.Resolve(context.Background(), candidate("2101.00002", "Wine Quality"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Confidence != ConfidenceHeuristic || result.KGItemID != "Q7" {
		t.Fatalf("result = %+v, want heuristic Q7", result)
	}
}

func TestResolveHeuristicAmbiguous(t *testing.T) {
	linker := &testsupport.FakeLinker{
		Labels: map[string][]kg.Item{
			"Wine Quality": {
				{ID: "Q7", Label: "Wine Quality"},
				{ID: "Q9", Label: "wine quality"},
			},
		},
	}
	matcher := New(linker, Policy{HeuristicEnabled: true, MinTitleSimilarity: 0.85, Retry: fastRetry()},
		nil, logging.NewNop())

	result, err := matcher.Resolve(context.Background(), candidate("2101.00002", "Wine Quality"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Ambiguous || result.KGItemID != "" {
		t.Fatalf("result = %+v, want ambiguous", result)
	}
}

func TestResolveHeuristicDisabled(t *testing.T) {
	titleSearched := false
	linker := &testsupport.FakeLinker{
		SearchByTitleFunc: func(ctx context.Context, title string) ([]kg.Item, error) {
			titleSearched = true
			return nil, nil
		},
	}
	matcher := New(linker, Policy{Retry: fastRetry()}, nil, logging.NewNop())

	result, err := matcher.Resolve(context.Background(), candidate("2101.00003", "Adult"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.Confidence != ConfidenceNone {
		t.Fatalf("result = %+v, want no match", result)
	}
	if titleSearched {
		t.Fatal("title search must not run when heuristics are disabled")
	}
}

func TestResolveRetriesTransientErrors(t *testing.T) {
	calls := 0
	linker := &testsupport.FakeLinker{
		SearchByIdentifierFunc: func(ctx context.Context, identifier string) ([]kg.Item, error) {
			calls++
			if calls < 3 {
				return nil, services.Wrap(services.ErrTransient, "kg", "search identifier", "", nil)
			}
			return []kg.Item{{ID: "Q42"}}, nil
		},
	}
	matcher := New(linker, Policy{Retry: fastRetry()}, nil, logging.NewNop())

	result, err := matcher.Resolve(context.Background(), candidate("2101.00001", "Iris"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.KGItemID != "Q42" || calls != 3 {
		t.Fatalf("result = %+v after %d calls", result, calls)
	}
}

func TestResolvePropagatesPermanentErrors(t *testing.T) {
	calls := 0
	linker := &testsupport.FakeLinker{
		SearchByIdentifierFunc: func(ctx context.Context, identifier string) ([]kg.Item, error) {
			calls++
			return nil, services.Wrap(services.ErrPermanent, "kg", "search identifier", "denied", nil)
		},
	}
	matcher := New(linker, Policy{Retry: fastRetry()}, nil, logging.NewNop())

	_, err := matcher.Resolve(context.Background(), candidate("2101.00001", "Iris"))
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d calls", calls)
	}
}
