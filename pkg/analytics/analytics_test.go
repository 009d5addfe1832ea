package analytics

import (
	"testing"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

func TestPostJScoreBoundsAndPenalty(t *testing.T) {
	j := PostJScore(200, 100, 0, 0.3)
	if j < 0 || j > 1 {
		t.Fatalf("j = %v, want within [0,1]", j)
	}
	withPenalty := PostJScore(200, 100, 50, 0.3)
	if withPenalty >= j {
		t.Fatalf("expected penalty to reduce j-score: %v vs %v", withPenalty, j)
	}
	allPenalty := PostJScore(0, 0, 1000, 0.9)
	if allPenalty < 0 {
		t.Fatalf("j-score must clamp at 0, got %v", allPenalty)
	}
}

func TestImpactScoreWeightedAndCapped(t *testing.T) {
	w := DefaultImpactWeights()
	c := OutcomeCounts{Pilots: 2, Artifacts: 3, Coalitions: 2, Citations: 5, Helpfulness: 5}
	score := ImpactScore(c, w)
	if score < 99 || score > 100.001 {
		t.Fatalf("expected full target achievement to approach 100, got %v", score)
	}
	zero := ImpactScore(OutcomeCounts{}, w)
	if zero != 0 {
		t.Fatalf("expected zero outcomes to score 0, got %v", zero)
	}
}

func TestExtractStructuredOutcomes(t *testing.T) {
	text := "Pilot accepted! Thank you for the support. Source: https://example.com/article"
	outcomes := ExtractStructuredOutcomes("post-1", text)
	var sawPilot, sawCitation, sawHelpfulness bool
	for _, o := range outcomes {
		switch o.Kind {
		case models.OutcomePilotAcceptance:
			sawPilot = true
		case models.OutcomeCitation:
			sawCitation = true
		case models.OutcomeHelpfulnessFeedback:
			sawHelpfulness = true
		}
	}
	if !sawPilot || !sawCitation || !sawHelpfulness {
		t.Fatalf("expected pilot+citation+helpfulness outcomes, got %+v", outcomes)
	}
}
