// Package match resolves candidate records to knowledge graph items.
// Identifier matches bind exactly; title matches are heuristic and must clear
// a similarity threshold. Anything that resolves to more than one item is
// surfaced as ambiguous rather than guessed at.
package match
