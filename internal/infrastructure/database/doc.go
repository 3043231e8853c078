// Package database provides the SQLite persistence layer for the Lattice
// device agent.
//
// A single WAL-mode database file holds everything the agent persists
// locally: the command_history audit trail and the state_snapshot table the
// state engine restores on startup. Schema changes ship as embedded
// migration files (migrations/*.sql in the repository root) and are applied
// on boot, each in its own transaction.
//
// # Usage
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
//
// All queries use parameterised statements, and the database file is created
// with owner-only permissions since command parameters may carry
// device-specific values.
//
// # Thread Safety
//
// The pool is capped at one open connection; SQLite has a single writer and
// the busy timeout absorbs contention between the repositories.
package database
