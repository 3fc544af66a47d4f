// Package dispatch propagates resolved paper-to-repository links into the
// knowledge graph. Writes go through a bounded worker pool, are idempotent
// against claims already in the graph, and only advance the link-state store
// after the graph confirms the write.
package dispatch
