package bandit

import "github.com/dababiyoda/daleobanks/pkg/models"

// ActionBandit is the separate top-level Thompson arm over action types
// described in §4.7's "Coupling with Selector": one Beta per action type,
// sampled over the eligible candidate set.
type ActionBandit struct {
	b *Bandit
}

func NewActionBandit(seed int64) *ActionBandit {
	return &ActionBandit{b: New(seed)}
}

// Choose samples one action type from the eligible set weighted by each
// type's Beta posterior, returning the chosen type and its sampled prob.
func (a *ActionBandit) Choose(eligible []models.ActionType) (models.ActionType, float64) {
	candidates := make([]string, len(eligible))
	for i, e := range eligible {
		candidates[i] = string(e)
	}
	res := a.b.SampleDimension(DimPostType, candidates)
	return models.ActionType(res.Value), res.SampledProb
}

// RecordOutcome folds a reward into the chosen action type's posterior.
func (a *ActionBandit) RecordOutcome(action models.ActionType, r float64) {
	a.b.RecordDimensionOutcome(DimPostType, string(action), r)
}

// Mean exposes the current posterior mean for one action type, used by
// deterministic tests (§8 scenario 4).
func (a *ActionBandit) Mean(action models.ActionType) float64 {
	return a.b.DimensionMean(DimPostType, string(action))
}
