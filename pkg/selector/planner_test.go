package selector

import (
	"context"
	"testing"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/persona"
)

type fakeWeeklyHistory struct {
	posts []models.Post
}

func (f fakeWeeklyHistory) PostsInWindow(ctx context.Context, start, end time.Time) ([]models.Post, error) {
	return f.posts, nil
}

type fakePersonaPlanner struct {
	p       persona.Persona
	updated persona.Persona
}

func (f *fakePersonaPlanner) Current() (persona.Persona, error) { return f.p, nil }
func (f *fakePersonaPlanner) Update(payload persona.Persona, actor string) (int, error) {
	f.updated = payload
	return f.p.Version + 1, nil
}

func j(v float64) *float64 { return &v }

func TestPlanStepsDrivesTowardBetterPerformingKind(t *testing.T) {
	posts := []models.Post{
		{Kind: models.KindProposal, JScore: j(0.9)},
		{Kind: models.KindProposal, JScore: j(0.9)},
		{Kind: models.KindReply, JScore: j(0.1)},
	}
	store := &fakePersonaPlanner{p: persona.Persona{
		Version: 3,
		Drives:  persona.DriveWeights{Curiosity: 0.5, Novelty: 0.5, Impact: 0.5, Stability: 0.5},
	}}
	p := NewPlanner(fakeWeeklyHistory{posts: posts}, store)

	if _, err := p.Plan(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.updated.Drives.Impact <= 0.5 {
		t.Fatalf("expected impact drive to step up from strong proposal J-scores, got %v", store.updated.Drives.Impact)
	}
	if store.updated.Drives.Curiosity >= 0.5 {
		t.Fatalf("expected curiosity drive to step down from weak reply J-scores, got %v", store.updated.Drives.Curiosity)
	}
}

func TestPlanIsNoOpWithoutPosts(t *testing.T) {
	store := &fakePersonaPlanner{p: persona.Persona{Version: 1}}
	p := NewPlanner(fakeWeeklyHistory{}, store)

	v, err := p.Plan(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Fatalf("expected version to stay at 1 with no posts, got %d", v)
	}
}
