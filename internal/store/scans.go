package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sadopc/godudb/internal/model"
)

const scanColumns = `id, root_path, started_at, completed_at, total_size, total_files, total_dirs, status, runner`

// CreateScan inserts a new running scan and returns its id.
func (s *Store) CreateScan(ctx context.Context, rootPath, runner string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (root_path, started_at, status, runner) VALUES (?, ?, ?, ?)`,
		rootPath, formatTime(s.now()), string(model.StatusRunning), runner)
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read scan id: %w", err)
	}
	return id, nil
}

// GetScan loads one scan record.
func (s *Store) GetScan(ctx context.Context, id int64) (model.Scan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	scan, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Scan{}, fmt.Errorf("scan %d: %w", id, ErrScanNotFound)
	}
	if err != nil {
		return model.Scan{}, fmt.Errorf("load scan %d: %w", id, err)
	}
	return scan, nil
}

// ListScans returns every scan, newest first.
func (s *Store) ListScans(ctx context.Context) ([]model.Scan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scanColumns+` FROM scans ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return scans, nil
}

// CompleteScan marks a running scan completed with its final counters.
func (s *Store) CompleteScan(ctx context.Context, id int64, stats model.Stats) error {
	return s.transition(ctx, id,
		`UPDATE scans SET completed_at = ?, total_size = ?, total_files = ?, total_dirs = ?, status = ?
		 WHERE id = ? AND status = ?`,
		formatTime(s.now()), stats.TotalSize, stats.TotalFiles, stats.TotalDirs,
		string(model.StatusCompleted), id, string(model.StatusRunning))
}

// PauseScan marks a running scan paused, storing the counters of what has
// been persisted so far.
func (s *Store) PauseScan(ctx context.Context, id int64, stats model.Stats) error {
	return s.transition(ctx, id,
		`UPDATE scans SET total_size = ?, total_files = ?, total_dirs = ?, status = ?
		 WHERE id = ? AND status = ?`,
		stats.TotalSize, stats.TotalFiles, stats.TotalDirs,
		string(model.StatusPaused), id, string(model.StatusRunning))
}

// ResumeScan moves a paused scan back to running under runner.
func (s *Store) ResumeScan(ctx context.Context, id int64, runner string) error {
	return s.transition(ctx, id,
		`UPDATE scans SET status = ?, runner = ? WHERE id = ? AND status = ?`,
		string(model.StatusRunning), runner, id, string(model.StatusPaused))
}

// FailScan marks a scan that can never be continued (its root is gone).
func (s *Store) FailScan(ctx context.Context, id int64) error {
	return s.transition(ctx, id,
		`UPDATE scans SET status = ? WHERE id = ? AND status IN (?, ?)`,
		string(model.StatusFailed), id, string(model.StatusRunning), string(model.StatusPaused))
}

// DeleteScan removes a scan and, through the foreign key, its entries.
func (s *Store) DeleteScan(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scan %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scan %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("scan %d: %w", id, ErrScanNotFound)
	}
	return nil
}

// transition runs a conditional status update. When nothing matched it
// tells a missing scan apart from one in the wrong state.
func (s *Store) transition(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update scan %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scan %d: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	scan, err := s.GetScan(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("scan %d is %s: %w", id, scan.Status, ErrInvalidTransition)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (model.Scan, error) {
	var (
		scan      model.Scan
		started   string
		completed sql.NullString
		status    string
	)
	if err := row.Scan(&scan.ID, &scan.RootPath, &started, &completed,
		&scan.TotalSize, &scan.TotalFiles, &scan.TotalDirs, &status, &scan.Runner); err != nil {
		return model.Scan{}, err
	}

	var err error
	if scan.StartedAt, err = parseTime(started); err != nil {
		return model.Scan{}, fmt.Errorf("parse started_at: %w", err)
	}
	if completed.Valid {
		t, err := parseTime(completed.String)
		if err != nil {
			return model.Scan{}, fmt.Errorf("parse completed_at: %w", err)
		}
		scan.CompletedAt = &t
	}
	if scan.Status, err = model.ParseStatus(status); err != nil {
		return model.Scan{}, err
	}
	return scan, nil
}
