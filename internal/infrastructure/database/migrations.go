package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS carries the embedded migration files. The migrations
// package sets it from an init function so the SQL ships inside the
// binary; an unset FS simply means there is nothing to apply.
var MigrationsFS embed.FS

// MigrationsDir is the directory inside MigrationsFS holding the
// .sql files. "." when they sit at the root of the embedded tree.
var MigrationsDir = "migrations"

// Migration is one schema step, read from a pair of files named
// VERSION_description.up.sql / VERSION_description.down.sql where
// VERSION is YYYYMMDD_HHMMSS. The down file is optional.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrate applies every migration not yet recorded in the
// schema_migrations table, oldest first.
//
// Each migration runs in its own transaction: a failure rolls back
// that step only, earlier steps stay committed, and a re-run after
// fixing the SQL continues where it stopped.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := readMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	if len(migrations) == 0 {
		return nil
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		if err := db.runMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// MigrateDown rolls back the most recently applied migration. Used in
// development and in repository tests; the daemon itself only ever
// migrates forward.
func (db *DB) MigrateDown(ctx context.Context) error {
	if err := db.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	migrations, err := readMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	var target *Migration
	for i := range migrations {
		if migrations[i].Version == latest {
			target = &migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s not found in embedded filesystem", latest)
	}
	if target.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", latest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting rollback transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, target.DownSQL); err != nil {
		return fmt.Errorf("executing down SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", target.Version,
	); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rollback: %w", err)
	}
	return nil
}

func (db *DB) ensureMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// appliedVersions returns recorded migration versions in ascending
// order.
func (db *DB) appliedVersions(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// runMigration applies one migration and records it, atomically.
func (db *DB) runMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// readMigrations loads and pairs the embedded .up.sql/.down.sql files,
// sorted by version.
func readMigrations() ([]Migration, error) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		// No directory means no migrations, not an error.
		return nil, nil
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := splitMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		sqlBytes, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.UpSQL = string(sqlBytes)
		} else {
			m.DownSQL = string(sqlBytes)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", m.Version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// splitMigrationFilename decomposes "20260210_120000_initial_schema.up.sql"
// into version "20260210_120000", name "initial_schema" and direction.
func splitMigrationFilename(filename string) (version, name string, up, ok bool) {
	base := strings.TrimSuffix(filename, ".sql")
	if base == filename {
		return "", "", false, false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		up = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	// date_time_description: the first two segments form the version.
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return "", "", false, false
	}
	version = parts[0] + "_" + parts[1]
	if len(parts) == 3 {
		name = parts[2]
	} else {
		name = base
	}
	return version, name, up, true
}
