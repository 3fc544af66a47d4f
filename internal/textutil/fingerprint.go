package textutil

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// Fingerprint is a term-frequency vector over the tokens of a title, used to
// compare dump titles against knowledge graph labels.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint from text. Returns nil when the text
// yields no tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize splits text into case-folded alphanumeric tokens. Single-character
// tokens are kept: dataset titles are short and every word counts.
func Tokenize(text string) []string {
	folded := foldCaser.String(text)
	terms := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := terms[:0]
	for _, term := range terms {
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}
