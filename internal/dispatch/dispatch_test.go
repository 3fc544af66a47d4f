package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"paperlink/internal/linkstate"
	"paperlink/internal/logging"
	"paperlink/internal/match"
	"paperlink/internal/record"
	"paperlink/internal/services"
	"paperlink/internal/testsupport"
)

func testOptions() Options {
	return Options{
		Workers: 2,
		Retry:   services.RetryPolicy{Attempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		ReferenceURL: map[string]string{
			"uci": "https://archive.ics.uci.edu/api/datasets",
		},
	}
}

func exactResult(paperID, repoURL, itemID string) match.Result {
	candidate := record.CandidateRecord{
		PaperID:       paperID,
		Title:         "Some Dataset",
		RepositoryURL: repoURL,
		SourceTag:     "uci",
	}
	candidate.ContentHash = candidate.Fingerprint()
	return match.Result{Candidate: candidate, KGItemID: itemID, Confidence: match.ConfidenceExact}
}

func TestProcessAppliesLink(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	linker := &testsupport.FakeLinker{}
	d := New(store, linker, testOptions(), logging.NewNop())

	result := exactResult("2101.00001", "https://archive.ics.uci.edu/dataset/53/iris", "Q42")
	outcome, err := d.Process(context.Background(), []match.Result{result})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Applied != 1 {
		t.Fatalf("outcome = %+v, want one applied", outcome)
	}

	written := linker.Written()
	if len(written) != 1 || written[0].ItemID != "Q42" {
		t.Fatalf("written = %+v", written)
	}
	if written[0].ReferenceURL != "https://archive.ics.uci.edu/api/datasets" {
		t.Fatalf("reference url = %s", written[0].ReferenceURL)
	}

	state, err := store.Get(context.Background(), "2101.00001")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.LastUpdateStatus != linkstate.StatusApplied || state.KGItemID != "Q42" {
		t.Fatalf("state = %+v, want applied Q42", state)
	}
}

func TestProcessSkipsExistingClaim(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	linker := &testsupport.FakeLinker{
		HasRepositoryClaimFunc: func(ctx context.Context, itemID, repositoryURL string) (bool, error) {
			return true, nil
		},
	}
	d := New(store, linker, testOptions(), logging.NewNop())

	result := exactResult("2101.00001", "https://archive.ics.uci.edu/dataset/53/iris", "Q42")
	outcome, err := d.Process(context.Background(), []match.Result{result})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Applied != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(linker.Written()) != 0 {
		t.Fatal("claim already in the graph must not be rewritten")
	}

	state, err := store.Get(context.Background(), "2101.00001")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.LastUpdateStatus != linkstate.StatusApplied {
		t.Fatalf("state = %+v, existing claim should still confirm applied", state)
	}
}

func TestProcessRecordsFailure(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	linker := &testsupport.FakeLinker{
		AddRepositoryClaimFunc: func(ctx context.Context, itemID, repositoryURL, referenceURL string) error {
			return services.Wrap(services.ErrPermanent, "kg", "write claim", "denied", nil)
		},
	}
	d := New(store, linker, testOptions(), logging.NewNop())

	result := exactResult("2101.00001", "https://archive.ics.uci.edu/dataset/53/iris", "Q42")
	outcome, err := d.Process(context.Background(), []match.Result{result})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Failed != 1 {
		t.Fatalf("outcome = %+v, want one failed", outcome)
	}

	state, err := store.Get(context.Background(), "2101.00001")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.LastUpdateStatus != linkstate.StatusFailed {
		t.Fatalf("state = %+v, want failed", state)
	}
	if state.KGItemID != "Q42" {
		t.Fatalf("failed state should keep the resolved item, got %q", state.KGItemID)
	}
}

func TestProcessDetectsConflict(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	seed := &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "old-hash",
		KGItemID:         "Q7",
		LastUpdateStatus: linkstate.StatusApplied,
	}
	if err := store.Upsert(context.Background(), seed); err != nil {
		t.Fatal(err)
	}

	linker := &testsupport.FakeLinker{}
	d := New(store, linker, testOptions(), logging.NewNop())

	result := exactResult("2101.00001", "https://archive.ics.uci.edu/dataset/53/iris", "Q42")
	outcome, err := d.Process(context.Background(), []match.Result{result})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Conflicts != 1 {
		t.Fatalf("outcome = %+v, want one conflict", outcome)
	}
	if len(linker.Written()) != 0 {
		t.Fatal("conflicting link must not be written to the graph")
	}

	state, err := store.Get(context.Background(), "2101.00001")
	if err != nil {
		t.Fatal(err)
	}
	if !state.Conflict || state.KGItemID != "Q7" {
		t.Fatalf("state = %+v, want conflict flagged with original item kept", state)
	}
}

func TestProcessAmbiguousAndUnmatched(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	d := New(store, &testsupport.FakeLinker{}, testOptions(), logging.NewNop())

	ambiguous := exactResult("2101.00001", "https://example.org/a", "")
	ambiguous.Confidence = match.ConfidenceNone
	ambiguous.Ambiguous = true

	unmatched := exactResult("2101.00002", "https://example.org/b", "")
	unmatched.Confidence = match.ConfidenceNone

	outcome, err := d.Process(context.Background(), []match.Result{ambiguous, unmatched})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Ambiguous != 1 || outcome.Unmatched != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}

	// Ambiguous papers stay unrecorded so a later run retries them.
	state, err := store.Get(context.Background(), "2101.00001")
	if err != nil {
		t.Fatal(err)
	}
	if state != nil {
		t.Fatalf("ambiguous paper should not be persisted, got %+v", state)
	}

	// Unmatched papers are recorded so only a dump change retries them.
	state, err = store.Get(context.Background(), "2101.00002")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil || state.LastUpdateStatus != linkstate.StatusSkipped {
		t.Fatalf("state = %+v, want skipped", state)
	}
}

func TestProcessSkipsEmptyRepositoryURL(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	linker := &testsupport.FakeLinker{}
	d := New(store, linker, testOptions(), logging.NewNop())

	result := exactResult("2101.00001", "", "Q42")
	outcome, err := d.Process(context.Background(), []match.Result{result})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Skipped != 1 {
		t.Fatalf("outcome = %+v, want one skipped", outcome)
	}
	if len(linker.Written()) != 0 {
		t.Fatal("no claim should be written without a repository url")
	}
}

func TestProcessDryRunTouchesNothing(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	linker := &testsupport.FakeLinker{}
	opts := testOptions()
	opts.DryRun = true
	d := New(store, linker, opts, logging.NewNop())

	result := exactResult("2101.00001", "https://archive.ics.uci.edu/dataset/53/iris", "Q42")
	outcome, err := d.Process(context.Background(), []match.Result{result})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome.Applied != 1 {
		t.Fatalf("outcome = %+v, want one would-apply", outcome)
	}
	if len(linker.Written()) != 0 {
		t.Fatal("dry run must not write to the graph")
	}

	state, err := store.Get(context.Background(), "2101.00001")
	if err != nil {
		t.Fatal(err)
	}
	if state != nil {
		t.Fatalf("dry run must not persist state, got %+v", state)
	}
}

func TestProcessHonorsCancellation(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	linker := &testsupport.FakeLinker{
		HasRepositoryClaimFunc: func(ctx context.Context, itemID, repositoryURL string) (bool, error) {
			close(started)
			<-release
			return false, ctx.Err()
		},
	}
	opts := testOptions()
	opts.Workers = 1
	d := New(store, linker, opts, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
		close(release)
	}()

	results := make([]match.Result, 0, 8)
	for i := 0; i < 8; i++ {
		results = append(results, exactResult(
			fmt.Sprintf("2101.%05d", i+1),
			"https://example.org/repo", "Q42"))
	}
	_, err := d.Process(ctx, results)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
