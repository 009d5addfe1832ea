package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// InsertArmSelection logs the bandit arm chosen for a post.
func (s *Store) InsertArmSelection(ctx context.Context, a models.ArmSelection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arm_selections (id, post_id, post_type, topic, hour_bin, cta_variant, intensity, sampled_prob, reward_j, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.PostID, a.PostType, a.Topic, a.HourBin, a.CTAVariant, a.Intensity, a.SampledProb, a.RewardJ, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert arm selection: %w", err)
	}
	return nil
}

// SetReward writes reward_j exactly once per arm selection (P11), keyed by
// the post whose j_score just became available.
func (s *Store) SetReward(ctx context.Context, postID string, reward float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE arm_selections SET reward_j=? WHERE post_id=? AND reward_j IS NULL`, reward, postID)
	if err != nil {
		return fmt.Errorf("store: set reward: %w", err)
	}
	return nil
}

// UnrewardedArms returns arm selections whose post now has a JScore but
// whose reward_j has not yet been folded into the bandit.
func (s *Store) UnrewardedArms(ctx context.Context) ([]models.ArmSelection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.post_id, a.post_type, a.topic, a.hour_bin, a.cta_variant, a.intensity, a.sampled_prob, a.reward_j, a.created_at
		FROM arm_selections a
		JOIN posts p ON p.id = a.post_id
		WHERE a.reward_j IS NULL AND p.j_score IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: unrewarded arms: %w", err)
	}
	defer rows.Close()
	var out []models.ArmSelection
	for rows.Next() {
		a, err := scanArm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanArm(rows *sql.Rows) (models.ArmSelection, error) {
	var a models.ArmSelection
	var reward sql.NullFloat64
	if err := rows.Scan(&a.ID, &a.PostID, &a.PostType, &a.Topic, &a.HourBin, &a.CTAVariant, &a.Intensity, &a.SampledProb, &reward, &a.CreatedAt); err != nil {
		return models.ArmSelection{}, fmt.Errorf("store: scan arm: %w", err)
	}
	if reward.Valid {
		v := reward.Float64
		a.RewardJ = &v
	}
	return a, nil
}
