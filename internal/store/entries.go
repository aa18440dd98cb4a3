package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sadopc/godudb/internal/model"
)

const entryColumns = `path, name, parent_path, size, is_dir, modified_at, depth`

// InsertEntries writes a batch of entries for scanID in one transaction.
// Either the whole batch is stored or none of it is.
func (s *Store) InsertEntries(ctx context.Context, scanID int64, entries []model.Entry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (scan_id, `+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, scanID, e.Path, e.Name, nullString(e.ParentPath),
			e.Size, boolToInt(e.IsDir), nullTime(e.ModTime), e.Depth); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.Path, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// EntryStats recomputes a scan's counters from its persisted entries.
// Only files contribute to the total size.
func (s *Store) EntryStats(ctx context.Context, scanID int64) (model.Stats, error) {
	var stats model.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN is_dir = 0 THEN size ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_dir = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_dir = 1 THEN 1 ELSE 0 END), 0)
		FROM entries WHERE scan_id = ?`, scanID).
		Scan(&stats.TotalSize, &stats.TotalFiles, &stats.TotalDirs)
	if err != nil {
		return model.Stats{}, fmt.Errorf("compute stats for scan %d: %w", scanID, err)
	}
	return stats, nil
}

// ScannedPaths returns every persisted path of a scan with its size.
func (s *Store) ScannedPaths(ctx context.Context, scanID int64) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, size FROM entries WHERE scan_id = ?`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query scanned paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]int64)
	for rows.Next() {
		var (
			path string
			size int64
		)
		if err := rows.Scan(&path, &size); err != nil {
			return nil, fmt.Errorf("scan path row: %w", err)
		}
		paths[path] = size
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scanned paths: %w", err)
	}
	return paths, nil
}

// Entries returns every persisted entry of a scan, shallowest first.
func (s *Store) Entries(ctx context.Context, scanID int64) ([]model.Entry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE scan_id = ? ORDER BY depth, path`, scanID)
}

// LargestEntries returns up to limit entries ordered by size, largest first.
func (s *Store) LargestEntries(ctx context.Context, scanID int64, limit int) ([]model.Entry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE scan_id = ? ORDER BY size DESC, path LIMIT ?`,
		scanID, limit)
}

// Children returns the persisted immediate children of parent.
func (s *Store) Children(ctx context.Context, scanID int64, parent string) ([]model.Entry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE scan_id = ? AND parent_path = ? ORDER BY size DESC, path`,
		scanID, parent)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var (
			e        model.Entry
			parent   sql.NullString
			isDir    int
			modified sql.NullString
		)
		if err := rows.Scan(&e.Path, &e.Name, &parent, &e.Size, &isDir, &modified, &e.Depth); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		e.ParentPath = parent.String
		e.IsDir = isDir != 0
		if modified.Valid {
			t, err := parseTime(modified.String)
			if err != nil {
				return nil, fmt.Errorf("parse modified_at of %s: %w", e.Path, err)
			}
			e.ModTime = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
