package store

import (
	"context"
	"fmt"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// UpsertRedirect inserts a redirect or, if the id already exists, leaves
// it untouched (clicks/revenue are updated via IncrementRedirectClicks).
func (s *Store) UpsertRedirect(ctx context.Context, r models.Redirect) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO redirects (id, label, target_url, utm, clicks, revenue) VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.Label, r.TargetURL, r.UTM, r.Clicks, r.Revenue,
	)
	if err != nil {
		return fmt.Errorf("store: upsert redirect: %w", err)
	}
	return nil
}

// IncrementRedirectClicks is the only path that mutates clicks/revenue;
// clicks is monotonic non-decreasing by construction (always +1).
func (s *Store) IncrementRedirectClicks(ctx context.Context, id string, revenuePerClick float64) (string, error) {
	var targetURL string
	err := s.db.QueryRowContext(ctx, `SELECT target_url FROM redirects WHERE id=?`, id).Scan(&targetURL)
	if err != nil {
		return "", fmt.Errorf("store: lookup redirect: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE redirects SET clicks = clicks + 1, revenue = revenue + ? WHERE id=?`, revenuePerClick, id)
	if err != nil {
		return "", fmt.Errorf("store: increment redirect: %w", err)
	}
	return targetURL, nil
}

func (s *Store) RedirectsInWindow(ctx context.Context) ([]models.Redirect, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, target_url, utm, clicks, revenue FROM redirects`)
	if err != nil {
		return nil, fmt.Errorf("store: redirects: %w", err)
	}
	defer rows.Close()
	var out []models.Redirect
	for rows.Next() {
		var r models.Redirect
		if err := rows.Scan(&r.ID, &r.Label, &r.TargetURL, &r.UTM, &r.Clicks, &r.Revenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertFollowersSnapshot records one immutable daily sample.
func (s *Store) InsertFollowersSnapshot(ctx context.Context, f models.FollowersSnapshot) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO follower_snapshots (ts, count) VALUES (?,?) ON CONFLICT(ts) DO NOTHING`, f.Ts, f.Count)
	if err != nil {
		return fmt.Errorf("store: insert followers snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestFollowersSnapshot(ctx context.Context) (models.FollowersSnapshot, bool, error) {
	var f models.FollowersSnapshot
	err := s.db.QueryRowContext(ctx, `SELECT ts, count FROM follower_snapshots ORDER BY ts DESC LIMIT 1`).Scan(&f.Ts, &f.Count)
	if err != nil {
		return models.FollowersSnapshot{}, false, nil
	}
	return f, true, nil
}

// InsertImprovementNote appends to the notes table; capping to the
// ring's max size (100) happens in the persona/generator layer that
// reads this back, keeping the table itself a plain append-only log.
func (s *Store) InsertImprovementNote(ctx context.Context, n models.ImprovementNote) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO improvement_notes (id, text, created_at) VALUES (?,?,?)`, n.ID, n.Text, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert improvement note: %w", err)
	}
	return nil
}

// RecentImprovementNotes returns at most limit most-recent notes, newest
// first.
func (s *Store) RecentImprovementNotes(ctx context.Context, limit int) ([]models.ImprovementNote, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, created_at FROM improvement_notes ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent notes: %w", err)
	}
	defer rows.Close()
	var out []models.ImprovementNote
	for rows.Next() {
		var n models.ImprovementNote
		if err := rows.Scan(&n.ID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// InsertKPISnapshot appends a rolled-up analytics snapshot (job
// kpi_rollup).
func (s *Store) InsertKPISnapshot(ctx context.Context, id string, windowStart, windowEnd, createdAt any, fame, revenuePerDay, authority, penalty, impact, globalJ float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kpi_snapshots (id, window_start, window_end, fame_score, revenue_per_day, authority_score, penalty, impact_score, global_j_score, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		id, windowStart, windowEnd, fame, revenuePerDay, authority, penalty, impact, globalJ, createdAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert kpi snapshot: %w", err)
	}
	return nil
}
