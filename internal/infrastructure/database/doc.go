// Package database provides SQLite connectivity for the diagnostics journal.
//
// The camera core itself is fully transient and survives nothing across a
// restart; this package exists only so transition and recovery history can be
// inspected after the fact. It manages:
//   - Database connection with WAL mode for concurrent access
//   - Idempotent schema setup for the journal tables
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
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
package database
