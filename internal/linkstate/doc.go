// Package linkstate persists the durable per-paper linkage state between
// pipeline runs. The store is SQLite-backed with per-key atomic upserts and a
// file lock enforcing one writer per run. A stored KG item id is immutable:
// remapping a paper to a different item is reported as a conflict for
// operator review, never applied silently.
package linkstate
