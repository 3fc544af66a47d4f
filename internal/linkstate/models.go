package linkstate

import "time"

// Status records the outcome of the last dispatch attempt for one paper.
type Status string

const (
	// StatusPending marks a paper seen in a dump but not yet dispatched.
	StatusPending Status = "pending"
	// StatusApplied marks a confirmed knowledge graph write.
	StatusApplied Status = "applied"
	// StatusFailed marks a write that did not go through; the match is kept so
	// the next run retries only the write.
	StatusFailed Status = "failed"
	// StatusSkipped marks a paper with no KG mutation this run (no match, or
	// the write was already reflected).
	StatusSkipped Status = "skipped"
)

var allStatuses = []Status{StatusPending, StatusApplied, StatusFailed, StatusSkipped}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// LinkState is the persisted linkage record for one paper identifier.
type LinkState struct {
	PaperID          string    `json:"paper_id"`
	LastContentHash  string    `json:"last_content_hash"`
	KGItemID         string    `json:"kg_item_id,omitempty"`
	LastUpdateStatus Status    `json:"last_update_status"`
	Conflict         bool      `json:"conflict,omitempty"`
	ConflictDetail   string    `json:"conflict_detail,omitempty"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Stats summarizes the store contents for status reporting.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
	Matched   int `json:"matched"`
}
