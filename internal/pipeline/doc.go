// Package pipeline drives reconciliation runs. A run restores the link-state
// snapshot, ingests dump records, diffs them against stored state, resolves
// the pending ones to knowledge graph items, dispatches link writes, and
// pushes the updated state back to the persistence backend.
package pipeline
