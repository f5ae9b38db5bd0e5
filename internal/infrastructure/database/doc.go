// Package database provides SQLite connectivity for the servo mount bridge.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Versioned schema migrations (YYYYMMDD_HHMMSS_name.up.sql / .down.sql)
//   - Connection lifecycle and health checks
//
// The database holds the local property history only. Losing it never
// affects the servos: the bridge runs with history disabled.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
