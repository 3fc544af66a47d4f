package testsupport

import (
	"path/filepath"
	"testing"

	"paperlink/internal/linkstate"
)

// MustOpenStore opens a link-state store in a temp directory and closes it
// when the test finishes.
func MustOpenStore(t testing.TB) *linkstate.Store {
	t.Helper()

	store, err := linkstate.Open(filepath.Join(t.TempDir(), "linkstate.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}
