package energy

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TotalsRepository persists stream accumulators across restarts.
type TotalsRepository interface {
	// Load returns every persisted stream total.
	Load(ctx context.Context) ([]Total, error)

	// Save upserts the given stream totals.
	Save(ctx context.Context, totals []Total) error
}

// SQLiteTotalsRepository implements TotalsRepository using SQLite.
type SQLiteTotalsRepository struct {
	db *sql.DB
}

// NewSQLiteTotalsRepository creates a repository using the given
// database connection.
func NewSQLiteTotalsRepository(db *sql.DB) *SQLiteTotalsRepository {
	return &SQLiteTotalsRepository{db: db}
}

// Load returns every persisted stream total, ordered by element then
// metric.
func (r *SQLiteTotalsRepository) Load(ctx context.Context) ([]Total, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT element_id, metric, total_kwh, last_power_w
		FROM energy_totals
		ORDER BY element_id, metric
	`)
	if err != nil {
		return nil, fmt.Errorf("querying energy totals: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cleanup

	var totals []Total
	for rows.Next() {
		var t Total
		var lastPower sql.NullFloat64
		if err := rows.Scan(&t.ElementID, &t.Metric, &t.KWh, &lastPower); err != nil {
			return nil, fmt.Errorf("scanning energy total: %w", err)
		}
		if lastPower.Valid {
			t.LastPowerW = lastPower.Float64
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating energy totals: %w", err)
	}
	return totals, nil
}

// Save upserts the given stream totals in a single transaction.
func (r *SQLiteTotalsRepository) Save(ctx context.Context, totals []Total) error {
	if len(totals) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO energy_totals (element_id, metric, total_kwh, last_power_w, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(element_id, metric) DO UPDATE SET
			total_kwh = excluded.total_kwh,
			last_power_w = excluded.last_power_w,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Statement cleanup

	now := time.Now().UTC().Format(time.RFC3339)
	for _, t := range totals {
		if _, err := stmt.ExecContext(ctx, t.ElementID, t.Metric, t.KWh, t.LastPowerW, now); err != nil {
			return fmt.Errorf("upserting total for %s/%s: %w", t.ElementID, t.Metric, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing energy totals: %w", err)
	}
	return nil
}
