package element

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for element catalog persistence.
// This abstraction allows for different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an element by its panel-assigned identifier.
	// Returns ErrNotFound if the element does not exist.
	GetByID(ctx context.Context, id string) (*Element, error)

	// List retrieves all known elements.
	List(ctx context.Context) ([]Element, error)

	// Upsert inserts a newly discovered element or refreshes an
	// existing one. The custom name and first-seen timestamp of an
	// existing row are preserved.
	Upsert(ctx context.Context, e *Element) error

	// SetCustomName sets or clears (empty name) the display-name
	// override for an element. Returns ErrNotFound if the element
	// does not exist.
	SetCustomName(ctx context.Context, id, name string) error

	// DeleteMissing removes elements whose ids are not in activeIDs.
	// A nil or empty activeIDs is a no-op so that a failed discovery
	// never wipes the catalog. Returns the number of rows removed.
	DeleteMissing(ctx context.Context, activeIDs []string) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed element repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an element by its panel-assigned identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Element, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, custom_name, class, scene_id, scene_name, first_seen, last_seen
		 FROM elements
		 WHERE id = ?`,
		id,
	)

	e, err := scanElement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting element %s: %w", id, err)
	}
	return e, nil
}

// List retrieves all known elements ordered by scene then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Element, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, custom_name, class, scene_id, scene_name, first_seen, last_seen
		 FROM elements
		 ORDER BY scene_name, name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing elements: %w", err)
	}
	defer rows.Close()

	var elements []Element
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning element: %w", err)
		}
		elements = append(elements, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating elements: %w", err)
	}
	return elements, nil
}

// Upsert inserts or refreshes an element from a discovery pass.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *Element) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidElement)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO elements (id, name, custom_name, class, scene_id, scene_name, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			scene_id = excluded.scene_id,
			scene_name = excluded.scene_name,
			last_seen = excluded.last_seen`,
		e.ID,
		e.Name,
		nullableString(e.CustomName),
		string(e.Class),
		e.SceneID,
		e.SceneName,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upserting element %s: %w", e.ID, err)
	}
	return nil
}

// SetCustomName sets or clears the display-name override.
func (r *SQLiteRepository) SetCustomName(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE elements SET custom_name = ? WHERE id = ?",
		nullableString(name),
		id,
	)
	if err != nil {
		return fmt.Errorf("setting custom name for %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteMissing removes elements no longer present on the panel.
func (r *SQLiteRepository) DeleteMissing(ctx context.Context, activeIDs []string) (int64, error) {
	if len(activeIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(activeIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(activeIDs))
	for i, id := range activeIDs {
		args[i] = id
	}

	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM elements WHERE id NOT IN (%s)", placeholders),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting missing elements: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return affected, nil
}

// scanElement scans an element row from either *sql.Row or *sql.Rows.
func scanElement(row interface{ Scan(...any) error }) (*Element, error) {
	var (
		e          Element
		class      string
		customName sql.NullString
		firstSeen  string
		lastSeen   string
	)

	err := row.Scan(&e.ID, &e.Name, &customName, &class, &e.SceneID, &e.SceneName, &firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}

	e.Class = Class(class)
	if customName.Valid {
		e.CustomName = customName.String
	}
	e.FirstSeen = parseElementTimestamp(firstSeen)
	e.LastSeen = parseElementTimestamp(lastSeen)

	return &e, nil
}

// nullableString converts an empty string to a NULL for storage.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseElementTimestamp parses a stored timestamp, tolerating both the
// RFC3339 format written by this code and the strftime format written
// by the schema defaults. A malformed value yields the zero time.
func parseElementTimestamp(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", value); err == nil {
		return t
	}
	return time.Time{}
}
