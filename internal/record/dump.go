package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// RawEntry is one dataset entry of an upstream dump file. The shape follows
// the UCI ML repository export: dataset metadata plus the citations that
// reference it.
type RawEntry struct {
	DatasetID   int        `json:"dataset_id"`
	DatasetName string     `json:"dataset_name"`
	DatasetURL  string     `json:"dataset_url"`
	Citations   []Citation `json:"citations"`
}

// Citation is one publication reference attached to a dataset entry.
type Citation struct {
	ArXiv string `json:"arxiv"`
	DOI   string `json:"doi"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ErrMalformedEntry marks a dump element that could not be decoded. The
// scanner keeps going after returning it.
var ErrMalformedEntry = errors.New("malformed dump entry")

// Scanner streams entries out of a JSON dump array without loading the whole
// file. Next returns io.EOF once the array is exhausted.
type Scanner struct {
	dec     *json.Decoder
	started bool
	done    bool
}

// NewScanner wraps a dump reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{dec: json.NewDecoder(r)}
}

// Next returns the next dump entry. A decode failure scoped to one element
// returns an error wrapping ErrMalformedEntry and leaves the scanner usable;
// any other error is a stream-level failure.
func (s *Scanner) Next() (RawEntry, error) {
	if s.done {
		return RawEntry{}, io.EOF
	}
	if !s.started {
		tok, err := s.dec.Token()
		if err != nil {
			return RawEntry{}, fmt.Errorf("read dump: %w", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			return RawEntry{}, fmt.Errorf("read dump: expected array, got %v", tok)
		}
		s.started = true
	}

	if !s.dec.More() {
		if _, err := s.dec.Token(); err != nil {
			return RawEntry{}, fmt.Errorf("read dump: %w", err)
		}
		s.done = true
		return RawEntry{}, io.EOF
	}

	var raw json.RawMessage
	if err := s.dec.Decode(&raw); err != nil {
		return RawEntry{}, fmt.Errorf("read dump: %w", err)
	}
	var entry RawEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return RawEntry{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return entry, nil
}
