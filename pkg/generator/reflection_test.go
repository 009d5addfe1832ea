package generator

import (
	"context"
	"testing"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

type fakePostHistory struct {
	posts []models.Post
}

func (f fakePostHistory) PostsInWindow(ctx context.Context, start, end time.Time) ([]models.Post, error) {
	return f.posts, nil
}

type fakeNoteSink struct {
	notes []string
}

func (f *fakeNoteSink) AddNote(text string) {
	f.notes = append(f.notes, text)
}

func TestReflectNoPostsAddsPlaceholderNote(t *testing.T) {
	sink := &fakeNoteSink{}
	client := newFakeLLMClient("")
	note, err := Reflect(context.Background(), fakePostHistory{}, sink, client, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.notes) != 1 || sink.notes[0] != note {
		t.Fatalf("expected exactly one note to be recorded, got %v", sink.notes)
	}
}

func TestReflectSummarizesAndAddsLLMNote(t *testing.T) {
	j1, j2 := 0.8, 0.2
	posts := []models.Post{
		{Kind: models.KindProposal, Topic: "permitting", Intensity: 2, Text: "great proposal", JScore: &j1},
		{Kind: models.KindReply, Topic: "permitting", Intensity: 1, Text: "meh reply", JScore: &j2},
	}
	sink := &fakeNoteSink{}
	client := newFakeLLMClient("Lean into proposals; replies underperformed this week.")

	note, err := Reflect(context.Background(), fakePostHistory{posts: posts}, sink, client, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != "Lean into proposals; replies underperformed this week." {
		t.Fatalf("unexpected note: %q", note)
	}
	if len(sink.notes) != 1 {
		t.Fatalf("expected one note recorded, got %d", len(sink.notes))
	}
}
