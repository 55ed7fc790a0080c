// Package audit provides access to the command_logs table for
// querying the history of commands sent to the panel.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandLog represents a single command sent to the panel and its
// outcome.
type CommandLog struct {
	ID         string         `json:"id"`
	ElementID  string         `json:"element_id"`
	Action     string         `json:"action"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Source     string         `json:"source"`
	DurationMS *int           `json:"duration_ms,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which command logs to return.
type Filter struct {
	ElementID string // optional: filter by element
	Action    string // optional: filter by panel action (switchon, setdimmer, ...)
	Source    string // optional: filter by origin (api, mqtt)
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated command log results.
type ListResult struct {
	Logs   []CommandLog `json:"logs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// Repository defines the interface for command log operations.
type Repository interface {
	Create(ctx context.Context, log *CommandLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository reads command logs from SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new command log entry. The ID, Source and CreatedAt
// are defaulted if empty.
func (r *SQLiteRepository) Create(ctx context.Context, log *CommandLog) error {
	if log.ID == "" {
		log.ID = "cmd-" + uuid.NewString()[:8]
	}
	if log.Source == "" {
		log.Source = "api"
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var argsJSON *string
	if log.Arguments != nil {
		b, err := json.Marshal(log.Arguments)
		if err != nil {
			return fmt.Errorf("marshalling command arguments: %w", err)
		}
		s := string(b)
		argsJSON = &s
	}

	success := 0
	if log.Success {
		success = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_logs (id, element_id, action, arguments, success, error, source, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.ElementID, log.Action,
		argsJSON, success, nullableString(log.Error),
		log.Source, nullableInt(log.DurationMS),
		log.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullableInt returns nil for nil pointers, or the value otherwise.
func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

// List returns command logs matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit,gocyclo // dynamic query builder: WHERE clause assembly from filter fields
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for command log queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.ElementID != "" {
		conditions = append(conditions, "element_id = ?")
		args = append(args, filter.ElementID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command logs: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, element_id, action, arguments, success, error, source, duration_ms, created_at FROM command_logs %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command logs: %w", err)
	}
	defer rows.Close()

	var logs []CommandLog
	for rows.Next() {
		var log CommandLog
		var argsJSON, errMsg sql.NullString
		var durationMS sql.NullInt64
		var success int
		var createdAt string

		if err := rows.Scan(&log.ID, &log.ElementID, &log.Action,
			&argsJSON, &success, &errMsg, &log.Source, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}

		log.Success = success != 0
		if errMsg.Valid {
			log.Error = errMsg.String
		}
		if durationMS.Valid {
			d := int(durationMS.Int64)
			log.DurationMS = &d
		}
		if argsJSON.Valid && argsJSON.String != "" {
			var arguments map[string]any
			if json.Unmarshal([]byte(argsJSON.String), &arguments) == nil {
				log.Arguments = arguments
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05Z", createdAt)
			if err != nil {
				return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
			}
		}
		log.CreatedAt = t

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command logs: %w", err)
	}

	if logs == nil {
		logs = []CommandLog{}
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
