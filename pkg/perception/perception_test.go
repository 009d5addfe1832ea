package perception

import (
	"context"
	"errors"
	"testing"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

type fakeSource struct {
	name   string
	result FetchResult
	err    error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Fetch(ctx context.Context, c Cursors, limit int) (FetchResult, error) {
	if f.err != nil {
		return FetchResult{}, f.err
	}
	return f.result, nil
}

type fakeStore struct {
	events []models.SensedEvent
}

func (s *fakeStore) InsertSensedEvent(ctx context.Context, e models.SensedEvent) error {
	s.events = append(s.events, e)
	return nil
}

func sentimentPtr(v float64) *float64 { return &v }

func TestTickMergesSourcesAndPersistsEvent(t *testing.T) {
	mentions := &fakeSource{name: "mentions", result: FetchResult{
		Texts: []TextItem{
			{Text: "love this", AuthorityHint: 10, SentimentHint: sentimentPtr(0.6)},
			{Text: "breaking scandal", AuthorityHint: 50, SentimentHint: sentimentPtr(-0.9)},
		},
		NewSinceID: "1002",
	}}
	timeline := &fakeSource{name: "timeline", result: FetchResult{Texts: []TextItem{{Text: "hi"}}, NewToken: "tok-2"}}
	trends := &fakeSource{name: "trends", result: FetchResult{Texts: []TextItem{{Text: "#ai"}}}}
	store := &fakeStore{}

	svc := NewService(mentions, timeline, trends, nil, []string{"ai", "policy"}, store)
	event, metrics, err := svc.Tick(context.Background(), Limits{})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if event.Counts["x_mentions"] != 2 {
		t.Fatalf("expected 2 mentions counted, got %d", event.Counts["x_mentions"])
	}
	if metrics.Velocity != 2 {
		t.Fatalf("expected velocity=2 (mention count), got %v", metrics.Velocity)
	}
	wantSentiment := (0.6 - 0.9) / 2
	if diff := metrics.Sentiment - wantSentiment; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected mean sentiment %v, got %v", wantSentiment, metrics.Sentiment)
	}
	if metrics.Authority != 50 {
		t.Fatalf("expected max authority hint 50, got %v", metrics.Authority)
	}
	if svc.Cursors().XMentionsSinceID != "1002" {
		t.Fatalf("expected cursor to advance to 1002, got %q", svc.Cursors().XMentionsSinceID)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected exactly one persisted event, got %d", len(store.events))
	}
}

func TestTickSurvivesPartialSourceFailure(t *testing.T) {
	mentions := &fakeSource{name: "mentions", err: errors.New("rate limited")}
	timeline := &fakeSource{name: "timeline", result: FetchResult{Texts: []TextItem{{Text: "ok"}}}}
	store := &fakeStore{}

	svc := NewService(mentions, timeline, nil, nil, nil, store)
	event, _, err := svc.Tick(context.Background(), Limits{})
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if event.Counts["x_mentions"] != 0 {
		t.Fatalf("expected 0 mentions after source failure, got %d", event.Counts["x_mentions"])
	}
	if event.Counts["x_timeline"] != 1 {
		t.Fatalf("expected timeline to still be ingested, got %d", event.Counts["x_timeline"])
	}
	if len(store.events) != 1 {
		t.Fatal("expected the partial payload to still be persisted")
	}
}

func TestMaxCursorPrefersLonger(t *testing.T) {
	if got := maxCursor("999", "1000"); got != "1000" {
		t.Fatalf("expected longer numeric id to win, got %q", got)
	}
	if got := maxCursor("", "42"); got != "42" {
		t.Fatalf("expected empty cursor to be replaced, got %q", got)
	}
}
