package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// InsertPost appends an immutable post row; Text/Topic/Kind never change
// after this call, only the metric columns do.
func (s *Store) InsertPost(ctx context.Context, p models.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, platform, kind, text, topic, hour_bin, cta_variant, intensity, ref_id, created_at,
			likes, reposts, replies, quotes, authority_score, j_score)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Platform, p.Kind, p.Text, p.Topic, p.HourBin, p.CTAVariant, p.Intensity, p.RefID, p.CreatedAt,
		p.Engagement.Likes, p.Engagement.Reposts, p.Engagement.Replies, p.Engagement.Quotes, p.AuthorityScore, p.JScore,
	)
	if err != nil {
		return fmt.Errorf("store: insert post: %w", err)
	}
	return nil
}

// UpdateEngagement overwrites the metric columns for an existing post.
func (s *Store) UpdateEngagement(ctx context.Context, postID string, e models.Engagement, authorityScore float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE posts SET likes=?, reposts=?, replies=?, quotes=?, authority_score=? WHERE id=?`,
		e.Likes, e.Reposts, e.Replies, e.Quotes, authorityScore, postID,
	)
	if err != nil {
		return fmt.Errorf("store: update engagement: %w", err)
	}
	return nil
}

// SetJScore writes a post's j_score exactly once (callers are expected to
// check GetPost first; the bandit reward write depends on this one-shot
// semantics per P11).
func (s *Store) SetJScore(ctx context.Context, postID string, j float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET j_score=? WHERE id=? AND j_score IS NULL`, j, postID)
	if err != nil {
		return fmt.Errorf("store: set j_score: %w", err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (models.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, platform, kind, text, topic, hour_bin, cta_variant, intensity, ref_id, created_at,
			likes, reposts, replies, quotes, authority_score, j_score
		FROM posts WHERE id=?`, id)
	return scanPost(row)
}

func scanPost(row *sql.Row) (models.Post, error) {
	var p models.Post
	var jscore sql.NullFloat64
	err := row.Scan(&p.ID, &p.Platform, &p.Kind, &p.Text, &p.Topic, &p.HourBin, &p.CTAVariant, &p.Intensity, &p.RefID, &p.CreatedAt,
		&p.Engagement.Likes, &p.Engagement.Reposts, &p.Engagement.Replies, &p.Engagement.Quotes, &p.AuthorityScore, &jscore)
	if err != nil {
		return models.Post{}, fmt.Errorf("store: scan post: %w", err)
	}
	if jscore.Valid {
		v := jscore.Float64
		p.JScore = &v
	}
	return p, nil
}

// RecentTexts returns post text for duplicate-detection within the
// trailing window (§4.4 "last 30 days").
func (s *Store) RecentTexts(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text FROM posts WHERE created_at >= ? ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("store: recent texts: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PostsInWindow returns every post created within [start, end), used by
// analytics for windowed aggregation.
func (s *Store) PostsInWindow(ctx context.Context, start, end time.Time) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, platform, kind, text, topic, hour_bin, cta_variant, intensity, ref_id, created_at,
			likes, reposts, replies, quotes, authority_score, j_score
		FROM posts WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("store: posts in window: %w", err)
	}
	defer rows.Close()
	var out []models.Post
	for rows.Next() {
		var p models.Post
		var jscore sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Platform, &p.Kind, &p.Text, &p.Topic, &p.HourBin, &p.CTAVariant, &p.Intensity, &p.RefID, &p.CreatedAt,
			&p.Engagement.Likes, &p.Engagement.Reposts, &p.Engagement.Replies, &p.Engagement.Quotes, &p.AuthorityScore, &jscore); err != nil {
			return nil, err
		}
		if jscore.Valid {
			v := jscore.Float64
			p.JScore = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
