package bandit

import (
	"testing"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

func TestRecordOutcomeUpdatesAlphaBeta(t *testing.T) {
	b := New(1)
	arm := Arm{PostType: "proposal", Topic: "t", HourBin: "9", CTAVariant: "reply", Intensity: "2"}
	b.RecordOutcome(arm, 0.75)
	post := b.postFor(DimPostType, "proposal")
	if post.Alpha != priorAlpha+0.75 {
		t.Fatalf("alpha = %v, want %v", post.Alpha, priorAlpha+0.75)
	}
	if post.Beta != priorBeta+0.25 {
		t.Fatalf("beta = %v, want %v", post.Beta, priorBeta+0.25)
	}
	if post.Pulls != 1 {
		t.Fatalf("pulls = %d, want 1", post.Pulls)
	}
}

func TestActionBanditShiftsTowardHigherReward(t *testing.T) {
	ab := NewActionBandit(1)
	ab.RecordOutcome(models.ActionPostProposal, 0)
	ab.RecordOutcome(models.ActionReplyMentions, 1)

	meanProposal := ab.Mean(models.ActionPostProposal)
	meanReply := ab.Mean(models.ActionReplyMentions)
	if meanProposal != 0.4 {
		t.Fatalf("POST_PROPOSAL mean = %v, want 0.4", meanProposal)
	}
	if meanReply != 0.6 {
		t.Fatalf("REPLY_MENTIONS mean = %v, want 0.6", meanReply)
	}
	if meanReply <= meanProposal {
		t.Fatal("expected REPLY_MENTIONS to be favored after higher reward")
	}
}

func TestCountToSuccFail(t *testing.T) {
	succ, fail := CountToSuccFail(0.5, 10)
	if succ+fail != 10 {
		t.Fatalf("succ+fail = %d, want 10", succ+fail)
	}
	if succ != 5 {
		t.Fatalf("succ = %d, want 5", succ)
	}
}

func TestRollingWindowPercentile(t *testing.T) {
	w := NewRollingWindow(100)
	for _, v := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		w.Percentile(v)
	}
	p := w.Percentile(0.5)
	if p < 0.5 {
		t.Fatalf("expected high percentile for max value, got %v", p)
	}
}
