package store

import (
	"context"
	"fmt"
	"time"
)

// RenewLease records that runner is alive for the next ttl. Scans stamped
// with a runner holding an unexpired lease are not swept by recovery.
func (s *Store) RenewLease(ctx context.Context, runner string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runners (id, expires_at) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET expires_at = excluded.expires_at`,
		runner, formatTime(s.now().Add(ttl)))
	if err != nil {
		return fmt.Errorf("renew lease for runner %s: %w", runner, err)
	}
	return nil
}

// ReleaseLease drops runner's lease. Releasing an unknown runner is a no-op.
func (s *Store) ReleaseLease(ctx context.Context, runner string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runners WHERE id = ?`, runner); err != nil {
		return fmt.Errorf("release lease for runner %s: %w", runner, err)
	}
	return nil
}

// LiveRunners returns the runners whose lease has not expired. Expired
// leases are pruned on the way.
func (s *Store) LiveRunners(ctx context.Context) (map[string]bool, error) {
	now := formatTime(s.now())
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runners WHERE expires_at <= ?`, now); err != nil {
		return nil, fmt.Errorf("prune expired leases: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runners WHERE expires_at > ?`, now)
	if err != nil {
		return nil, fmt.Errorf("query live runners: %w", err)
	}
	defer rows.Close()

	live := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan runner row: %w", err)
		}
		live[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runners: %w", err)
	}
	return live, nil
}
