package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PreviewLedger records preview handle acquisition and release so leaked
// staged previews can be spotted.
type PreviewLedger struct {
	DB *sql.DB
}

func NewPreviewLedger(db *sql.DB) *PreviewLedger {
	return &PreviewLedger{DB: db}
}

type PreviewStats struct {
	Acquired int64 `json:"acquired"`
	Released int64 `json:"released"`
	Live     int64 `json:"live"`
}

type LivePreview struct {
	Key        string `json:"key"`
	Owner      string `json:"owner"`
	AcquiredAt int64  `json:"acquired_at"`
}

// RecordAcquired inserts a new live handle.
func (l *PreviewLedger) RecordAcquired(key, owner string) error {
	queryBuilder := psql.Insert("preview_handles").
		Columns("preview_key", "owner", "acquired_at", "released_at").
		Values(key, owner, time.Now().Unix(), nil).
		Suffix("ON CONFLICT(preview_key) DO UPDATE SET").
		Suffix("owner = excluded.owner,").
		Suffix("acquired_at = excluded.acquired_at,").
		Suffix("released_at = NULL")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordAcquired: %w", err)
	}
	if _, err := l.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record preview %s: %w", key, err)
	}
	return nil
}

// RecordReleased marks a handle released. Releasing twice keeps the first timestamp.
func (l *PreviewLedger) RecordReleased(key string) error {
	queryBuilder := psql.Update("preview_handles").
		Set("released_at", time.Now().Unix()).
		Where(sq.Eq{"preview_key": key, "released_at": nil})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordReleased: %w", err)
	}
	if _, err := l.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to record release of preview %s: %w", key, err)
	}
	return nil
}

// RecordTransferred reassigns a live handle, e.g. to the catalog once a
// product keeps the preview.
func (l *PreviewLedger) RecordTransferred(key, owner string) error {
	queryBuilder := psql.Update("preview_handles").
		Set("owner", owner).
		Where(sq.Eq{"preview_key": key})

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for RecordTransferred: %w", err)
	}
	if _, err := l.DB.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to transfer preview %s: %w", key, err)
	}
	return nil
}

func (l *PreviewLedger) Stats() (PreviewStats, error) {
	var stats PreviewStats
	queryBuilder := psql.Select(
		"COUNT(*)",
		"COUNT(released_at)",
	).From("preview_handles")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return PreviewStats{}, fmt.Errorf("failed to build SQL query for Stats: %w", err)
	}
	if err := l.DB.QueryRow(sqlStr, args...).Scan(&stats.Acquired, &stats.Released); err != nil {
		return PreviewStats{}, fmt.Errorf("failed to query preview stats: %w", err)
	}
	stats.Live = stats.Acquired - stats.Released
	return stats, nil
}

// ListLive returns unreleased handles, optionally filtered by owner.
func (l *PreviewLedger) ListLive(owner string) ([]LivePreview, error) {
	queryBuilder := psql.Select("preview_key", "owner", "acquired_at").
		From("preview_handles").
		Where(sq.Eq{"released_at": nil}).
		OrderBy("acquired_at ASC", "preview_key ASC")
	if owner != "" {
		queryBuilder = queryBuilder.Where(sq.Eq{"owner": owner})
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListLive: %w", err)
	}
	rows, err := l.DB.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query live previews: %w", err)
	}
	defer rows.Close()

	live := []LivePreview{}
	for rows.Next() {
		var p LivePreview
		if err := rows.Scan(&p.Key, &p.Owner, &p.AcquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan live preview: %w", err)
		}
		live = append(live, p)
	}
	return live, rows.Err()
}
