package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/platform"
)

type stubTransport struct {
	name  string
	calls int
}

func (s *stubTransport) Name() string { return s.name }
func (s *stubTransport) CreatePost(ctx context.Context, req platform.WriteRequest) (string, error) {
	s.calls++
	return s.name + "-post", nil
}
func (s *stubTransport) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	return s.name + "-media", nil
}

func notLive() bool { return false }

func newTestTarget(p models.Platform, weight float64) (Target, *stubTransport) {
	tr := &stubTransport{name: string(p)}
	a := platform.NewAdapter(p, "/write", tr, notLive, 5, time.Minute, 3, 60)
	return Target{Platform: p, Adapter: a, Weight: weight, Enabled: true}, tr
}

func TestBroadcastWritesAllEnabledPlatforms(t *testing.T) {
	tx, _ := newTestTarget(models.PlatformX, 1.0)
	tm, _ := newTestTarget(models.PlatformMastodon, 1.0)
	mux := NewMultiplexer(RoutingBroadcast, []Target{tx, tm}, 1)
	receipts, err := mux.Publish(context.Background(), Content{Text: "hi", Kind: models.KindProposal})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(receipts))
	}
}

func TestSingleRoutingPicksMaxWeight(t *testing.T) {
	tx, _ := newTestTarget(models.PlatformX, 0.2)
	tm, _ := newTestTarget(models.PlatformMastodon, 0.9)
	mux := NewMultiplexer(RoutingSingle, []Target{tx, tm}, 1)
	receipts, err := mux.Publish(context.Background(), Content{Text: "hi", Kind: models.KindProposal})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("expected exactly 1 receipt for single routing, got %d", len(receipts))
	}
	if _, ok := receipts[models.PlatformMastodon]; !ok {
		t.Fatalf("expected the max-weight platform (mastodon) to be chosen, got %+v", receipts)
	}
}

func TestWeightedRoutingRespectsZeroWeight(t *testing.T) {
	tx, _ := newTestTarget(models.PlatformX, 0.0)
	tm, _ := newTestTarget(models.PlatformMastodon, 1.0)
	mux := NewMultiplexer(RoutingWeighted, []Target{tx, tm}, 42)
	for i := 0; i < 20; i++ {
		receipts, err := mux.Publish(context.Background(), Content{Text: "hi", Kind: models.KindProposal})
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
		if _, ok := receipts[models.PlatformX]; ok {
			t.Fatal("expected zero-weight platform to never be sampled")
		}
	}
}

func TestPublishCalmingMessageReportsDryRun(t *testing.T) {
	tx, _ := newTestTarget(models.PlatformX, 1.0)
	mux := NewMultiplexer(RoutingBroadcast, []Target{tx}, 1)
	dryRun, err := mux.PublishCalmingMessage("signal threshold exceeded")
	if err != nil {
		t.Fatalf("PublishCalmingMessage: %v", err)
	}
	if !dryRun {
		t.Fatal("expected dry-run calming receipt when adapter is not live")
	}
}

func alwaysLive() bool { return true }

func TestPublishCalmingMessageNotReplayedAcrossCrisisCycles(t *testing.T) {
	tr := &stubTransport{name: string(models.PlatformX)}
	a := platform.NewAdapter(models.PlatformX, "/write", tr, alwaysLive, 5, time.Minute, 3, 60)
	mux := NewMultiplexer(RoutingBroadcast, []Target{{Platform: models.PlatformX, Adapter: a, Weight: 1.0, Enabled: true}}, 1)

	if _, err := mux.PublishCalmingMessage("signal threshold exceeded"); err != nil {
		t.Fatalf("first PublishCalmingMessage: %v", err)
	}
	if _, err := mux.PublishCalmingMessage("signal threshold exceeded"); err != nil {
		t.Fatalf("second PublishCalmingMessage: %v", err)
	}
	if tr.calls != 2 {
		t.Fatalf("expected a second crisis cycle with the same reason to write again, got %d transport calls", tr.calls)
	}
}
