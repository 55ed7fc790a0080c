// Package database owns the SQLite connection and schema migrations.
//
// The bridge keeps everything in one database file: the element
// catalog, state history, command audit logs and energy totals.
// SQLite suits the deployment (a single daemon on a LAN box) and
// keeps backups to a file copy.
//
// The pool is pinned to a single connection. SQLite allows one writer
// at a time, and with WAL mode plus a busy timeout a lone connection
// serves this write rate without lock errors. Foreign keys are
// enabled on the DSN; repositories rely on them.
//
// Migrations are embedded via the migrations package and applied at
// startup, each in its own transaction. They are written additive
// only: new columns are nullable or defaulted, nothing is dropped or
// renamed, and every up file ships a down file for development
// rollbacks.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// The database file is created 0600 and its directory 0750; it holds
// command history and element names, which is nobody else's business.
package database
