package testsupport

import (
	"context"
	"sync"

	"paperlink/internal/kg"
)

// WrittenClaim records one repository statement a FakeLinker accepted.
type WrittenClaim struct {
	ItemID        string
	RepositoryURL string
	ReferenceURL  string
}

// FakeLinker is an in-memory kg.Linker for tests. Function fields override
// individual operations; unset fields answer from the Items and Labels maps.
// Writes are recorded and safe for concurrent use.
type FakeLinker struct {
	SearchByIdentifierFunc func(ctx context.Context, identifier string) ([]kg.Item, error)
	SearchByTitleFunc      func(ctx context.Context, title string) ([]kg.Item, error)
	HasRepositoryClaimFunc func(ctx context.Context, itemID, repositoryURL string) (bool, error)
	AddRepositoryClaimFunc func(ctx context.Context, itemID, repositoryURL, referenceURL string) error

	// Items maps paper identifiers to search hits.
	Items map[string][]kg.Item
	// Labels maps titles to search hits for title lookups.
	Labels map[string][]kg.Item

	mu      sync.Mutex
	written []WrittenClaim
}

var _ kg.Linker = (*FakeLinker)(nil)

func (f *FakeLinker) SearchByIdentifier(ctx context.Context, identifier string) ([]kg.Item, error) {
	if f.SearchByIdentifierFunc != nil {
		return f.SearchByIdentifierFunc(ctx, identifier)
	}
	return f.Items[identifier], nil
}

func (f *FakeLinker) SearchByTitle(ctx context.Context, title string) ([]kg.Item, error) {
	if f.SearchByTitleFunc != nil {
		return f.SearchByTitleFunc(ctx, title)
	}
	return f.Labels[title], nil
}

func (f *FakeLinker) HasRepositoryClaim(ctx context.Context, itemID, repositoryURL string) (bool, error) {
	if f.HasRepositoryClaimFunc != nil {
		return f.HasRepositoryClaimFunc(ctx, itemID, repositoryURL)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, claim := range f.written {
		if claim.ItemID == itemID && claim.RepositoryURL == repositoryURL {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeLinker) AddRepositoryClaim(ctx context.Context, itemID, repositoryURL, referenceURL string) error {
	if f.AddRepositoryClaimFunc != nil {
		return f.AddRepositoryClaimFunc(ctx, itemID, repositoryURL, referenceURL)
	}
	f.mu.Lock()
	f.written = append(f.written, WrittenClaim{
		ItemID:        itemID,
		RepositoryURL: repositoryURL,
		ReferenceURL:  referenceURL,
	})
	f.mu.Unlock()
	return nil
}

// Written returns a copy of the claims recorded so far.
func (f *FakeLinker) Written() []WrittenClaim {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]WrittenClaim, len(f.written))
	copy(out, f.written)
	return out
}
