package element

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// State history source values.
const (
	StateSourcePoll    = "poll"
	StateSourceCommand = "command"
	StateSourceVerify  = "verify"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// StateHistoryEntry represents a single element state change record.
//
// Each entry stores a full snapshot of the decoded state at the time
// the change was observed. This provides a local audit trail even when
// the time-series database is unavailable.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// ElementID is the panel-assigned element identifier.
	ElementID string `json:"element_id"`

	// State is the JSON snapshot of the decoded state.
	State State `json:"state"`

	// Source identifies how the change was recorded (poll, command, verify).
	Source string `json:"source"`

	// RecordedAt is the timestamp of the state change (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// StateHistoryRepository stores and retrieves element state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records an element state change.
	RecordStateChange(ctx context.Context, elementID string, state State, source string) error

	// GetHistory returns recent state changes for the element, newest
	// first. The limit defaults to 50 and is clamped to 200.
	GetHistory(ctx context.Context, elementID string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than the given duration,
	// returning the number of rows removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteStateHistoryRepository implements StateHistoryRepository using
// SQLite, storing state snapshots as JSON in element_state_history.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository creates a new SQLite state history
// repository. The db parameter should be an open SQLite connection.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// RecordStateChange inserts a new state history entry for an element.
func (r *SQLiteStateHistoryRepository) RecordStateChange(ctx context.Context, elementID string, state State, source string) error {
	if elementID == "" {
		return fmt.Errorf("element id is required")
	}
	if source == "" {
		source = StateSourcePoll
	}
	if state == nil {
		state = State{}
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO element_state_history (element_id, state, source) VALUES (?, ?, ?)",
		elementID,
		string(stateJSON),
		source,
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns recent state history entries, ordered newest first.
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, elementID string, limit int) ([]StateHistoryEntry, error) {
	if elementID == "" {
		return nil, fmt.Errorf("element id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, element_id, state, source, recorded_at
		 FROM element_state_history
		 WHERE element_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		elementID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var entry StateHistoryEntry
		var stateJSON string
		var recordedAt string

		if err := rows.Scan(&entry.ID, &entry.ElementID, &stateJSON, &entry.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}

		entry.RecordedAt = parseElementTimestamp(recordedAt)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes history entries older than the given duration.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM element_state_history WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return affected, nil
}
