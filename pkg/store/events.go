package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// InsertSensedEvent appends a perception record. Payload/Counts are
// stored as JSON text columns since their shape is externally-defined
// (perception source schemas), per Design Note 9's guidance to keep
// typed structs everywhere except at external boundaries.
func (s *Store) InsertSensedEvent(ctx context.Context, e models.SensedEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("store: marshal payload: %w", err)
	}
	counts, err := json.Marshal(e.Counts)
	if err != nil {
		return fmt.Errorf("store: marshal counts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sensed_events (id, source, kind, payload, counts, created_at) VALUES (?,?,?,?,?,?)`,
		e.ID, e.Source, e.Kind, string(payload), string(counts), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert sensed event: %w", err)
	}
	return nil
}

// InsertStructuredOutcome appends one of the five outcome variants.
func (s *Store) InsertStructuredOutcome(ctx context.Context, o models.StructuredOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO structured_outcomes (id, kind, post_id, url, fork_platform, channel, rating, comment, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		o.ID, o.Kind, o.PostID, o.URL, o.ForkPlatform, o.Channel, o.Rating, o.Comment, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert structured outcome: %w", err)
	}
	return nil
}

// OutcomesInWindow returns every structured outcome in [start,end), used
// by analytics' impact-score computation.
func (s *Store) OutcomesInWindow(ctx context.Context, start, end any) ([]models.StructuredOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, post_id, url, fork_platform, channel, rating, comment, created_at
		FROM structured_outcomes WHERE created_at >= ? AND created_at < ?`, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: outcomes in window: %w", err)
	}
	defer rows.Close()
	var out []models.StructuredOutcome
	for rows.Next() {
		var o models.StructuredOutcome
		if err := rows.Scan(&o.ID, &o.Kind, &o.PostID, &o.URL, &o.ForkPlatform, &o.Channel, &o.Rating, &o.Comment, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
