package crisis

import (
	"testing"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

type fakePublisher struct {
	dryRun bool
	calls  int
}

func (f *fakePublisher) PublishCalmingMessage(reason string) (bool, error) {
	f.calls++
	return f.dryRun, nil
}

func TestCrisisPauseResumeCycle(t *testing.T) {
	s := NewService(3.0, 1.5)
	pub := &fakePublisher{dryRun: false}

	if err := s.UpdateMetrics(models.CrisisMetrics{Sentiment: -0.8, Velocity: 2.0, Authority: 2.0}, pub); err != nil {
		t.Fatalf("UpdateMetrics: %v", err)
	}
	if !s.State().Active {
		t.Fatal("expected PAUSED after signal exceeds threshold")
	}
	if pub.calls != 1 {
		t.Fatalf("expected exactly one calming publish, got %d", pub.calls)
	}
	if s.Guard(models.ActionPostProposal) {
		t.Fatal("expected Guard to deny non-REST actions while paused")
	}
	if !s.Guard(models.ActionRest) {
		t.Fatal("expected Guard to allow REST while paused")
	}

	if err := s.UpdateMetrics(models.CrisisMetrics{Sentiment: 0.2, Velocity: 0.5, Authority: 1.0}, pub); err != nil {
		t.Fatalf("UpdateMetrics: %v", err)
	}
	if s.State().Active {
		t.Fatal("expected NORMAL after signal drops and a non-dry-run calming receipt exists")
	}
	if pub.calls != 1 {
		t.Fatalf("expected no second calming publish, got %d calls", pub.calls)
	}
}

func TestCrisisNoResumeWithoutNonDryReceipt(t *testing.T) {
	s := NewService(3.0, 1.5)
	pub := &fakePublisher{dryRun: true}
	_ = s.UpdateMetrics(models.CrisisMetrics{Sentiment: -0.8, Velocity: 2.0, Authority: 2.0}, pub)
	_ = s.UpdateMetrics(models.CrisisMetrics{Sentiment: 0.2, Velocity: 0.5, Authority: 1.0}, pub)
	if !s.State().Active {
		t.Fatal("expected state to remain PAUSED when only dry-run calming receipts exist")
	}
}

func TestTextSignalKeywordAndSentiment(t *testing.T) {
	if !TextSignal("breaking scandal unfolds", 0.1) {
		t.Fatal("expected keyword match to trigger text signal")
	}
	if !TextSignal("neutral text", -0.6) {
		t.Fatal("expected low sentiment to trigger text signal")
	}
	if TextSignal("a perfectly normal day", 0.3) {
		t.Fatal("expected benign text to not trigger text signal")
	}
}
