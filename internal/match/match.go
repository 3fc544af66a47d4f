package match

import (
	"context"
	"fmt"
	"log/slog"

	"paperlink/internal/kg"
	"paperlink/internal/logging"
	"paperlink/internal/record"
	"paperlink/internal/services"
)

// Confidence grades how a candidate was resolved to a graph item.
type Confidence string

const (
	// ConfidenceExact means the paper identifier resolved to a single item.
	ConfidenceExact Confidence = "exact"
	// ConfidenceHeuristic means a title search resolved to a single item
	// above the similarity threshold.
	ConfidenceHeuristic Confidence = "heuristic"
	// ConfidenceNone means no item qualified.
	ConfidenceNone Confidence = "none"
)

// Result is the outcome of resolving one candidate against the graph.
type Result struct {
	Candidate  record.CandidateRecord
	KGItemID   string
	Confidence Confidence
	// Ambiguous is set when more than one item qualified. Ambiguous results
	// carry no item: guessing between equally plausible targets would write
	// links to the wrong paper.
	Ambiguous bool
	Detail    string
}

// Policy tunes match behavior.
type Policy struct {
	HeuristicEnabled   bool
	MinTitleSimilarity float64
	Retry              services.RetryPolicy
}

func (p Policy) normalized() Policy {
	if p.MinTitleSimilarity <= 0 || p.MinTitleSimilarity > 1 {
		p.MinTitleSimilarity = 0.85
	}
	return p
}

// Strategy scores a candidate title against a graph item label. Scores range
// over [0, 1]; the matcher compares them to the policy threshold.
type Strategy interface {
	Score(candidateTitle, itemLabel string) float64
}

// Matcher resolves candidate records to knowledge graph items.
type Matcher struct {
	linker   kg.Linker
	policy   Policy
	strategy Strategy
	logger   *slog.Logger
}

// New creates a Matcher. A nil strategy falls back to title fingerprint
// similarity.
func New(linker kg.Linker, policy Policy, strategy Strategy, logger *slog.Logger) *Matcher {
	if strategy == nil {
		strategy = TitleSimilarity{}
	}
	return &Matcher{
		linker:   linker,
		policy:   policy.normalized(),
		strategy: strategy,
		logger:   logging.NewComponentLogger(logger, "match"),
	}
}

// Resolve maps one candidate to a graph item. Identifier lookups bind
// exactly; title lookups only bind when a single item clears the similarity
// threshold. Multiple qualifying items at either tier surface as ambiguous.
// Graph errors propagate after the retry policy is exhausted.
func (m *Matcher) Resolve(ctx context.Context, candidate record.CandidateRecord) (Result, error) {
	result := Result{Candidate: candidate, Confidence: ConfidenceNone}

	var items []kg.Item
	err := services.Retry(ctx, m.policy.Retry, func() error {
		var searchErr error
		items, searchErr = m.linker.SearchByIdentifier(ctx, candidate.PaperID)
		return searchErr
	})
	if err != nil {
		return result, err
	}

	switch {
	case len(items) == 1:
		result.KGItemID = items[0].ID
		result.Confidence = ConfidenceExact
		return result, nil
	case len(items) > 1:
		result.Ambiguous = true
		result.Detail = fmt.Sprintf("identifier %s matches %d items (%s, %s, ...)",
			candidate.PaperID, len(items), items[0].ID, items[1].ID)
		m.logger.Warn("ambiguous identifier match",
			logging.String(logging.FieldPaperID, candidate.PaperID),
			logging.Int("items", len(items)))
		return result, nil
	}

	if !m.policy.HeuristicEnabled || candidate.Title == "" {
		return result, nil
	}
	return m.resolveByTitle(ctx, candidate)
}

func (m *Matcher) resolveByTitle(ctx context.Context, candidate record.CandidateRecord) (Result, error) {
	result := Result{Candidate: candidate, Confidence: ConfidenceNone}

	var items []kg.Item
	err := services.Retry(ctx, m.policy.Retry, func() error {
		var searchErr error
		items, searchErr = m.linker.SearchByTitle(ctx, candidate.Title)
		return searchErr
	})
	if err != nil {
		return result, err
	}

	var qualified []kg.Item
	for _, item := range items {
		score := m.strategy.Score(candidate.Title, item.Label)
		if score >= m.policy.MinTitleSimilarity {
			qualified = append(qualified, item)
		}
	}

	switch {
	case len(qualified) == 1:
		result.KGItemID = qualified[0].ID
		result.Confidence = ConfidenceHeuristic
		m.logger.Debug("heuristic title match",
			logging.String(logging.FieldPaperID, candidate.PaperID),
			logging.String(logging.FieldItemID, qualified[0].ID))
	case len(qualified) > 1:
		result.Ambiguous = true
		result.Detail = fmt.Sprintf("title %q matches %d items above threshold (%s, %s, ...)",
			candidate.Title, len(qualified), qualified[0].ID, qualified[1].ID)
		m.logger.Warn("ambiguous title match",
			logging.String(logging.FieldPaperID, candidate.PaperID),
			logging.Int("items", len(qualified)))
	}
	return result, nil
}
