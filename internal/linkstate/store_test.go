package linkstate_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"paperlink/internal/linkstate"
	"paperlink/internal/services"
)

func openStore(t *testing.T) *linkstate.Store {
	t.Helper()
	store, err := linkstate.Open(filepath.Join(t.TempDir(), "linkstate.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUpsertAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	state := &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-1",
		KGItemID:         "Q1",
		LastUpdateStatus: linkstate.StatusApplied,
	}
	if err := store.Upsert(ctx, state); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	fetched, err := store.Get(ctx, "2101.00001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.KGItemID != "Q1" || fetched.LastContentHash != "hash-1" {
		t.Fatalf("unexpected state: %#v", fetched)
	}
	if fetched.LastUpdateStatus != linkstate.StatusApplied {
		t.Fatalf("unexpected status %q", fetched.LastUpdateStatus)
	}
	if fetched.UpdatedAt.IsZero() || fetched.LastSeenAt.IsZero() {
		t.Fatal("timestamps not persisted")
	}
}

func TestGetAbsentReturnsNil(t *testing.T) {
	store := openStore(t)
	state, err := store.Get(context.Background(), "9999.99999")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil for absent paper, got %#v", state)
	}
}

func TestUpsertRefusesItemRemap(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-1",
		KGItemID:         "Q1",
		LastUpdateStatus: linkstate.StatusApplied,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	err := store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-2",
		KGItemID:         "Q2",
		LastUpdateStatus: linkstate.StatusApplied,
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	fetched, err := store.Get(ctx, "2101.00001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.KGItemID != "Q1" || fetched.LastContentHash != "hash-1" {
		t.Fatalf("conflicting upsert modified the row: %#v", fetched)
	}
}

func TestUpsertWithoutItemKeepsExistingMatch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-1",
		KGItemID:         "Q1",
		LastUpdateStatus: linkstate.StatusFailed,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-1",
		LastUpdateStatus: linkstate.StatusSkipped,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	fetched, err := store.Get(ctx, "2101.00001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.KGItemID != "Q1" {
		t.Fatalf("match was erased: %#v", fetched)
	}
}

func TestUpsertDoesNotMutateArgument(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-1",
		KGItemID:         "Q1",
		LastUpdateStatus: linkstate.StatusApplied,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	update := &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-1",
		LastUpdateStatus: linkstate.StatusSkipped,
	}
	if err := store.Upsert(ctx, update); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if update.KGItemID != "" {
		t.Fatalf("Upsert wrote the stored item back into its argument: %#v", update)
	}

	fetched, err := store.Get(ctx, "2101.00001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.KGItemID != "Q1" {
		t.Fatalf("stored match was erased: %#v", fetched)
	}
}

func TestMarkConflictLeavesLinkageUntouched(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "hash-1",
		KGItemID:         "Q1",
		LastUpdateStatus: linkstate.StatusApplied,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.MarkConflict(ctx, "2101.00001", "dump implies Q2"); err != nil {
		t.Fatalf("MarkConflict failed: %v", err)
	}

	fetched, err := store.Get(ctx, "2101.00001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !fetched.Conflict || fetched.ConflictDetail != "dump implies Q2" {
		t.Fatalf("conflict flag not set: %#v", fetched)
	}
	if fetched.KGItemID != "Q1" || fetched.LastContentHash != "hash-1" || fetched.LastUpdateStatus != linkstate.StatusApplied {
		t.Fatalf("conflict marking modified linkage: %#v", fetched)
	}

	conflicts, err := store.Conflicts(ctx)
	if err != nil {
		t.Fatalf("Conflicts failed: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].PaperID != "2101.00001" {
		t.Fatalf("unexpected conflict list: %#v", conflicts)
	}
}

func TestSnapshotAndStats(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	seed := []*linkstate.LinkState{
		{PaperID: "2101.00001", LastContentHash: "h1", KGItemID: "Q1", LastUpdateStatus: linkstate.StatusApplied},
		{PaperID: "2101.00002", LastContentHash: "h2", LastUpdateStatus: linkstate.StatusSkipped},
		{PaperID: "2101.00003", LastContentHash: "h3", KGItemID: "Q3", LastUpdateStatus: linkstate.StatusFailed},
	}
	for _, state := range seed {
		if err := store.Upsert(ctx, state); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 states, got %d", len(snapshot))
	}
	if snapshot["2101.00002"].LastUpdateStatus != linkstate.StatusSkipped {
		t.Fatalf("unexpected snapshot entry: %#v", snapshot["2101.00002"])
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Applied != 1 || stats.Skipped != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
	if stats.Matched != 2 {
		t.Fatalf("expected 2 matched states, got %d", stats.Matched)
	}
}

func TestOpenRejectsSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkstate.db")
	store, err := linkstate.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if _, err := linkstate.Open(path); !errors.Is(err, linkstate.ErrLocked) {
		t.Fatalf("expected ErrLocked for second writer, got %v", err)
	}
}

func TestUpsertValidatesStatus(t *testing.T) {
	store := openStore(t)
	err := store.Upsert(context.Background(), &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "h1",
		LastUpdateStatus: linkstate.Status("bogus"),
	})
	if err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestUpsertSetsLastSeen(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	before := time.Now().UTC().Add(-time.Second)

	if err := store.Upsert(ctx, &linkstate.LinkState{
		PaperID:          "2101.00001",
		LastContentHash:  "h1",
		LastUpdateStatus: linkstate.StatusPending,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	fetched, err := store.Get(ctx, "2101.00001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.LastSeenAt.Before(before) {
		t.Fatalf("last_seen_at not defaulted: %v", fetched.LastSeenAt)
	}
}
