package record_test

import (
	"errors"
	"testing"

	"paperlink/internal/record"
)

func TestCanonicalPaperID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2101.00001", "2101.00001", false},
		{"arXiv:2101.00001", "2101.00001", false},
		{"2101.00001v3", "2101.00001", false},
		{" ARXIV:2101.12345v12 ", "2101.12345", false},
		{"cs/0112017", "cs/0112017", false},
		{"math.GT/0309136", "math.gt/0309136", false},
		{"", "", true},
		{"arXiv:", "", true},
		{"not-an-id", "", true},
		{"10.1000/xyz", "", true},
	}
	for _, tc := range cases {
		got, err := record.CanonicalPaperID(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("CanonicalPaperID(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CanonicalPaperID(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalPaperID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalPaperIDMissing(t *testing.T) {
	if _, err := record.CanonicalPaperID("   "); !errors.Is(err, record.ErrMissingPaperID) {
		t.Fatalf("expected ErrMissingPaperID, got %v", err)
	}
}

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTPS://Archive.ICS.UCI.edu/dataset/53/iris/", "https://archive.ics.uci.edu/dataset/53/iris"},
		{"http://example.org:80/data", "http://example.org/data"},
		{"https://example.org:443/data#readme", "https://example.org/data"},
		{"https://example.org/data?version=2", "https://example.org/data?version=2"},
		{"", ""},
	}
	for _, tc := range cases {
		got, err := record.CanonicalURL(tc.in)
		if err != nil {
			t.Fatalf("CanonicalURL(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("CanonicalURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURLRejectsRelative(t *testing.T) {
	if _, err := record.CanonicalURL("dataset/53/iris"); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestFingerprintIgnoresSource(t *testing.T) {
	a := record.CandidateRecord{PaperID: "2101.00001", RepositoryURL: "https://example.org/a", SourceTag: "one"}
	b := record.CandidateRecord{PaperID: "2101.00001", RepositoryURL: "https://example.org/a", SourceTag: "two"}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprint must not depend on source tag")
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := record.CandidateRecord{PaperID: "2101.00001", RepositoryURL: "https://example.org/a"}
	b := record.CandidateRecord{PaperID: "2101.00001", RepositoryURL: "https://example.org/b"}
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("fingerprint must change when repository url changes")
	}
}
