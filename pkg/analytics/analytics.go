// Package analytics computes the fame/authority/revenue/impact signals
// and the per-post and global J-score objective (§4.6).
package analytics

import (
	"math"

	"github.com/dababiyoda/daleobanks/pkg/config"
	"github.com/dababiyoda/daleobanks/pkg/models"
)

// ZScoreRef is a (mean,std) reference pair used to normalize a raw
// metric into a z-score (§4.6, SPEC_FULL open-question #3: configurable).
type ZScoreRef struct {
	Mean float64
	Std  float64
}

func zscore(x float64, ref ZScoreRef) float64 {
	if ref.Std == 0 {
		return 0
	}
	return (x - ref.Mean) / ref.Std
}

// EngagementProxy is the weighted engagement formula from §4.6.
func EngagementProxy(e models.Engagement) float64 {
	return 1*float64(e.Likes) + 2*float64(e.Reposts) + 1.5*float64(e.Replies) + 1.5*float64(e.Quotes)
}

// FameScore = z(engagement_proxy) + z(delta_followers).
func FameScore(posts []models.Post, deltaFollowers float64, cfg *config.Config) float64 {
	var total float64
	for _, p := range posts {
		total += EngagementProxy(p.Engagement)
	}
	engagementZ := zscore(total, ZScoreRef{Mean: cfg.FameEngagementMean, Std: cfg.FameEngagementStd})
	followerZ := zscore(deltaFollowers, ZScoreRef{Mean: cfg.FameFollowerMean, Std: cfg.FameFollowerStd})
	return engagementZ + followerZ
}

// RevenuePerDay sums redirect.clicks * revenuePerClick.
func RevenuePerDay(redirects []models.Redirect, revenuePerClick float64) float64 {
	var total float64
	for _, r := range redirects {
		total += float64(r.Clicks) * revenuePerClick
	}
	return total
}

// AuthorityScore sums per-post authority_score/10, capped at 100.
func AuthorityScore(posts []models.Post) float64 {
	var total float64
	for _, p := range posts {
		total += p.AuthorityScore / 10
	}
	if total > 100 {
		total = 100
	}
	return total
}

// Penalty = 2*rate_limit_strikes + 5*(mutes+blocks+ethics_violations).
func Penalty(rateLimitStrikes, mutes, blocks, ethicsViolations int) float64 {
	return 2*float64(rateLimitStrikes) + 5*float64(mutes+blocks+ethicsViolations)
}

// ImpactWeights are the normalized per-signal weights and targets used by
// ImpactScore.
type ImpactSignal struct {
	Weight float64
	Target float64
}

type ImpactWeights struct {
	Pilots       ImpactSignal
	Artifacts    ImpactSignal
	Coalitions   ImpactSignal
	Citations    ImpactSignal
	Helpfulness  ImpactSignal
}

// DefaultImpactWeights gives every signal an equal weight and a modest
// weekly target; callers may override via config.
func DefaultImpactWeights() ImpactWeights {
	return ImpactWeights{
		Pilots:      ImpactSignal{Weight: 1, Target: 2},
		Artifacts:   ImpactSignal{Weight: 1, Target: 3},
		Coalitions:  ImpactSignal{Weight: 1, Target: 2},
		Citations:   ImpactSignal{Weight: 1, Target: 5},
		Helpfulness: ImpactSignal{Weight: 1, Target: 5},
	}
}

// Counts aggregates one window's StructuredOutcome tallies.
type OutcomeCounts struct {
	Pilots      int
	Artifacts   int
	Coalitions  int
	Citations   int
	Helpfulness int
}

// CountOutcomes buckets a slice of StructuredOutcome by kind.
func CountOutcomes(outcomes []models.StructuredOutcome) OutcomeCounts {
	var c OutcomeCounts
	for _, o := range outcomes {
		switch o.Kind {
		case models.OutcomePilotAcceptance:
			c.Pilots++
		case models.OutcomeArtifactFork:
			c.Artifacts++
		case models.OutcomeCoalitionPartner:
			c.Coalitions++
		case models.OutcomeCitation:
			c.Citations++
		case models.OutcomeHelpfulnessFeedback:
			c.Helpfulness++
		}
	}
	return c
}

// ImpactScore is the weighted sum over {pilots,artifacts,coalitions,
// citations,helpfulness}, each normalized to its target, weights
// normalized to 1, multiplied by 100.
func ImpactScore(c OutcomeCounts, w ImpactWeights) float64 {
	totalWeight := w.Pilots.Weight + w.Artifacts.Weight + w.Coalitions.Weight + w.Citations.Weight + w.Helpfulness.Weight
	if totalWeight == 0 {
		return 0
	}
	norm := func(count int, sig ImpactSignal) float64 {
		if sig.Target == 0 {
			return 0
		}
		r := float64(count) / sig.Target
		if r > 1 {
			r = 1
		}
		return r * (sig.Weight / totalWeight)
	}
	sum := norm(c.Pilots, w.Pilots) + norm(c.Artifacts, w.Artifacts) + norm(c.Coalitions, w.Coalitions) +
		norm(c.Citations, w.Citations) + norm(c.Helpfulness, w.Helpfulness)
	return sum * 100
}

// GoalModeLambda returns the lambda coefficient (penalty weight) for a
// goal mode.
func GoalModeLambda(cfg *config.Config, mode config.GoalMode) float64 {
	return cfg.GoalWeights[mode].Lambda
}

// PostJScore is the per-post objective (§4.6): 0.5*min(engagement/100,1)
// + 0.5*mission_alignment - lambda*min(penalty/10,1), clamped >= 0.
// mission_alignment = impact_score/100.
func PostJScore(engagementProxy, impactScore, penalty, lambda float64) float64 {
	engagementTerm := 0.5 * math.Min(engagementProxy/100, 1)
	alignmentTerm := 0.5 * (impactScore / 100)
	penaltyTerm := lambda * math.Min(penalty/10, 1)
	j := engagementTerm + alignmentTerm - penaltyTerm
	if j < 0 {
		j = 0
	}
	return j
}

// GlobalJScore normalizes fame/revenue/authority/impact under goal-mode
// weights; if impact falls below the weekly floor the revenue weight is
// halved (§4.6).
func GlobalJScore(cfg *config.Config, fame, revenuePerDay, authority, impact, penalty float64) float64 {
	w := cfg.GoalWeights[cfg.GoalMode]
	revenueWeight := w.Beta
	if impact < cfg.ImpactWeeklyFloor {
		revenueWeight = revenueWeight / 2
	}
	fameNorm := clamp01(fame/10 + 0.5) // fame is a z-sum, centered around 0; fold into 0..1
	revenueNorm := clamp01(revenuePerDay / 100)
	authorityNorm := clamp01(authority / 100)
	impactNorm := clamp01(impact / 100)
	raw := w.Alpha*fameNorm + revenueWeight*revenueNorm + w.Gamma*impactNorm + (1-w.Alpha-revenueWeight-w.Gamma)*authorityNorm
	penaltyTerm := w.Lambda * clamp01(penalty/10)
	j := raw - penaltyTerm
	return clamp01(j)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
