package database

import (
	"database/sql"
	"fmt"
	"log"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// InitPreviewLedger creates the preview_handles table on db. db is usually
// the connection pool underneath the GORM catalog database.
func InitPreviewLedger(db *sql.DB) error {
	sqlStmt := `
	CREATE TABLE IF NOT EXISTS preview_handles (
		preview_key TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		acquired_at INTEGER NOT NULL,
		released_at INTEGER
	);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("failed to create preview_handles table: %w", err)
	}

	log.Println("preview ledger initialized")
	return nil
}
