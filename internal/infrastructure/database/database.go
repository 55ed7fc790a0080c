package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// openPingTimeout bounds the connectivity probe in Open.
	openPingTimeout = 5 * time.Second

	// Database files hold state history and command logs; keep them
	// owner-only. The containing directory allows group traversal for
	// backup tooling.
	dirPermissions  = 0750
	filePermissions = 0600
)

// DB is the daemon's SQLite handle.
//
// It embeds *sql.DB; repositories receive the embedded handle directly
// and the wrapper adds lifecycle concerns: migrations, the startup
// health probe and permission handling.
type DB struct {
	*sql.DB
	path string
}

// Config mirrors the database section of config.yaml.
type Config struct {
	// Path is the SQLite file location. The parent directory is
	// created on first open.
	Path string

	// WALMode turns on write-ahead logging, letting the poll loop
	// write while API reads are in flight.
	WALMode bool

	// BusyTimeout is how long a locked connection waits, in seconds.
	BusyTimeout int
}

// Open opens (creating if necessary) the SQLite database and verifies
// it answers before returning. The connection pool is pinned to a
// single connection: SQLite has one writer, and a single shared
// connection sidesteps lock contention between the poll loop and the
// API entirely.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), openPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file may not exist until the first write; tighten
	// permissions if it does.
	_ = os.Chmod(cfg.Path, filePermissions)

	return db, nil
}

// dsn builds the go-sqlite3 connection string.
// See https://github.com/mattn/go-sqlite3#connection-string.
func dsn(cfg Config) string {
	s := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		s += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return s
}

// Close releases the underlying connection. Safe on a zero DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to confirm the connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
