// Package database provides SQLite connectivity for the luxbridge decision log.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Forward and rollback schema migrations read from an fs.FS
//   - Connection lifecycle and health checks
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are applied in version order.
package database
