package linkstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"paperlink/internal/services"
)

const stateColumns = "paper_id, last_content_hash, kg_item_id, last_update_status, conflict_flag, conflict_detail, last_seen_at, updated_at"

// Get fetches the LinkState for a paper identifier, or nil when absent.
func (s *Store) Get(ctx context.Context, paperID string) (*LinkState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM link_states WHERE paper_id = ?`, paperID)
	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link state: %w", err)
	}
	return state, nil
}

// Upsert inserts or updates the LinkState for state.PaperID. A stored non-null
// KGItemID is immutable: attempting to change it returns services.ErrConflict
// and leaves the row untouched. Each call commits atomically.
func (s *Store) Upsert(ctx context.Context, state *LinkState) error {
	if state == nil {
		return errors.New("state is nil")
	}
	if state.PaperID == "" {
		return errors.New("paper id is empty")
	}
	if !state.LastUpdateStatus.Valid() {
		return fmt.Errorf("invalid status %q", state.LastUpdateStatus)
	}
	state.UpdatedAt = time.Now().UTC()
	if state.LastSeenAt.IsZero() {
		state.LastSeenAt = state.UpdatedAt
	}

	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return s.upsertTx(ctx, state)
	})
}

func (s *Store) upsertTx(ctx context.Context, state *LinkState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	itemID := state.KGItemID
	var existingItem sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT kg_item_id FROM link_states WHERE paper_id = ?`, state.PaperID,
	).Scan(&existingItem)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First sighting of this paper.
	case err != nil:
		return fmt.Errorf("read existing link state: %w", err)
	default:
		if existingItem.Valid && existingItem.String != "" &&
			itemID != "" && itemID != existingItem.String {
			return services.Wrap(services.ErrConflict, "state", "upsert",
				fmt.Sprintf("paper %s already linked to %s, refusing remap to %s",
					state.PaperID, existingItem.String, itemID), nil)
		}
		if existingItem.Valid && itemID == "" {
			// An upsert without a resolved item must not erase the match.
			itemID = existingItem.String
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO link_states (`+stateColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(paper_id) DO UPDATE SET
             last_content_hash = excluded.last_content_hash,
             kg_item_id = excluded.kg_item_id,
             last_update_status = excluded.last_update_status,
             conflict_flag = excluded.conflict_flag,
             conflict_detail = excluded.conflict_detail,
             last_seen_at = excluded.last_seen_at,
             updated_at = excluded.updated_at`,
		state.PaperID,
		state.LastContentHash,
		nullableString(itemID),
		state.LastUpdateStatus,
		boolToInt(state.Conflict),
		nullableString(state.ConflictDetail),
		state.LastSeenAt.Format(time.RFC3339Nano),
		state.UpdatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert link state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// MarkConflict flags a paper for operator review without touching its hash,
// item id, or status.
func (s *Store) MarkConflict(ctx context.Context, paperID, detail string) error {
	if paperID == "" {
		return errors.New("paper id is empty")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithRetry(ctx,
		`UPDATE link_states SET conflict_flag = 1, conflict_detail = ?, updated_at = ? WHERE paper_id = ?`,
		detail, now, paperID)
}

// Snapshot returns all LinkStates keyed by paper identifier, for diffing.
func (s *Store) Snapshot(ctx context.Context) (map[string]*LinkState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stateColumns+` FROM link_states`)
	if err != nil {
		return nil, fmt.Errorf("snapshot link states: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]*LinkState)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		snapshot[state.PaperID] = state
	}
	return snapshot, rows.Err()
}

// Conflicts returns all LinkStates flagged for operator review, oldest first.
func (s *Store) Conflicts(ctx context.Context) ([]*LinkState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM link_states WHERE conflict_flag = 1 ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var states []*LinkState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// Stats aggregates store counts for status reporting.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	rows, err := s.db.QueryContext(ctx,
		`SELECT last_update_status, COUNT(1) FROM link_states GROUP BY last_update_status`)
	if err != nil {
		return stats, fmt.Errorf("aggregate stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusApplied:
			stats.Applied = count
		case StatusFailed:
			stats.Failed = count
		case StatusSkipped:
			stats.Skipped = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM link_states WHERE conflict_flag = 1`).Scan(&stats.Conflicts); err != nil {
		return stats, fmt.Errorf("count conflicts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM link_states WHERE kg_item_id IS NOT NULL AND kg_item_id != ''`).Scan(&stats.Matched); err != nil {
		return stats, fmt.Errorf("count matched: %w", err)
	}
	return stats, nil
}

func scanState(scanner interface{ Scan(dest ...any) error }) (*LinkState, error) {
	var (
		state          LinkState
		itemID         sql.NullString
		conflict       sql.NullInt64
		conflictDetail sql.NullString
		lastSeenRaw    string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&state.PaperID,
		&state.LastContentHash,
		&itemID,
		&state.LastUpdateStatus,
		&conflict,
		&conflictDetail,
		&lastSeenRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	state.KGItemID = itemID.String
	state.Conflict = conflict.Int64 != 0
	state.ConflictDetail = conflictDetail.String

	var err error
	if state.LastSeenAt, err = time.Parse(time.RFC3339Nano, lastSeenRaw); err != nil {
		return nil, fmt.Errorf("parse last_seen_at: %w", err)
	}
	if state.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedRaw); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &state, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
