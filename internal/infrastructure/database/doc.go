// Package database opens the SQLite file that stores dispatch history and
// applies its schema migrations.
//
// The file is opened with a single connection (SQLite has one writer), an
// optional WAL journal and a busy timeout. Migrations are embedded SQL files
// named YYYYMMDD_HHMMSS_description.up.sql with an optional .down.sql, and
// are applied in version order, each in its own transaction.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/video-route.db", WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
