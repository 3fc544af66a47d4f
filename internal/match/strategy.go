package match

import (
	"paperlink/internal/record"
	"paperlink/internal/textutil"
)

// TitleSimilarity scores titles by cosine similarity over case-folded token
// fingerprints. It is the default strategy; alternatives plug in through the
// Strategy interface.
type TitleSimilarity struct{}

func (TitleSimilarity) Score(candidateTitle, itemLabel string) float64 {
	a := textutil.NewFingerprint(record.NormalizeTitle(candidateTitle))
	b := textutil.NewFingerprint(record.NormalizeTitle(itemLabel))
	return textutil.CosineSimilarity(a, b)
}
