// Package record owns the candidate data model of the linking pipeline: the
// CandidateRecord type, identifier and URL canonicalization, the streaming
// dump scanner, and the Normalizer that turns raw dump entries into canonical
// records with deterministic content hashes.
package record
