// Package migrations compiles the schema migration SQL into the
// binary, so a deployed bridge never depends on loose .sql files.
//
// Files pair up as VERSION_name.up.sql / VERSION_name.down.sql with
// VERSION in YYYYMMDD_HHMMSS form; the database package applies them
// in version order.
package migrations

import (
	"embed"

	"github.com/nerrad567/domo-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// The database package holds the migration runner; importing this
// package points it at the embedded files. cmd/domobridge does the
// import.
func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
