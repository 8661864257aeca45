// Package database provides the SQLite store behind PrintLink Core.
//
// It holds the provisioned capability set, state history and print event
// log. The store is local and single-writer: WAL mode lets API reads proceed
// while the printer feed writes.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are YYYYMMDD_HHMMSS_name.up.sql / .down.sql pairs embedded by
// the migrations package. They are additive: new columns must be nullable or
// carry a default.
package database
