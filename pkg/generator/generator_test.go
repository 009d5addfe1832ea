package generator

import (
	"context"
	"testing"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/llm"
	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/persona"
)

type fakeBackend struct {
	response string
	mutated  string // returned on the 2nd+ call, when set
	calls    int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Chat(ctx context.Context, system string, messages []llm.Message, temperature float64, maxTokens int) (string, error) {
	f.calls++
	if f.calls > 1 && f.mutated != "" {
		return f.mutated, nil
	}
	return f.response, nil
}

type fakeTemplates struct{}

func (fakeTemplates) Fallback(kind string) string { return "fallback " + kind }

type fakePersonaSrc struct {
	p persona.Persona
}

func (f fakePersonaSrc) Current() (persona.Persona, error) { return f.p, nil }
func (f fakePersonaSrc) BuildSystemPrompt(notes []persona.NoteRing) string {
	return "system prompt for " + f.p.Handle
}
func (f fakePersonaSrc) RecentNotes(n int) []persona.NoteRing { return nil }

type fakeHistory struct {
	texts []string
}

func (f fakeHistory) RecentTexts(ctx context.Context, since time.Time) ([]string, error) {
	return f.texts, nil
}

func testPersona() persona.Persona {
	return persona.Persona{
		Handle:  "daleobanks",
		Mission: "ship receipts",
		ContentMix: map[string]float64{
			"proposals": 1.0,
		},
	}
}

const goodProposal = "Problem: permitting backlog stalls clean energy projects for years. " +
	"Mechanism: adopt a shot-clock ordinance modeled on https://www.epa.gov/permits. " +
	"Pilot: run a 60-day trial in one county. KPIs: median approval time, appeals filed. " +
	"Risks: understaffed review boards may rubber-stamp. Here's how you help: reply with your county and we'll draft the ordinance text."

func newTestGenerator(backend llm.Backend, history HistorySource) *Generator {
	client := llm.NewClient(backend, llm.NewBudget(1000, 1000), fakeTemplates{})
	return New(fakePersonaSrc{p: testPersona()}, history, client, []string{".gov", ".edu"}, nil)
}

func newFakeLLMClient(response string) *llm.Client {
	return llm.NewClient(&fakeBackend{response: response}, llm.NewBudget(1000, 1000), fakeTemplates{})
}

func TestDraftAppendsUncertaintyAddendumForProposals(t *testing.T) {
	backend := &fakeBackend{response: goodProposal}
	g := newTestGenerator(backend, fakeHistory{})

	res, err := g.Draft(context.Background(), Request{Kind: models.KindProposal, Topic: "permitting", Intensity: 1, PlatformCharLimit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsFold(res.Text, "roll") {
		t.Fatalf("expected uncertainty/rollback addendum to be appended, got: %s", res.Text)
	}
}

func TestDraftRejectsIncompleteProposal(t *testing.T) {
	backend := &fakeBackend{response: "Problem: stuff is broken. Mechanism: use votes."}
	g := newTestGenerator(backend, fakeHistory{})

	_, err := g.Draft(context.Background(), Request{Kind: models.KindProposal, Topic: "permitting", Intensity: 1, PlatformCharLimit: 1000})
	if err == nil {
		t.Fatal("expected incomplete proposal to be rejected by the gate pipeline")
	}
	if _, ok := err.(*RejectedError); !ok {
		t.Fatalf("expected a *RejectedError, got %T: %v", err, err)
	}
}

const mutatedProposal = "Challenge: towns wait years just to approve solar and wind hookups, per https://www.epa.gov/permits. " +
	"Approach: put a hard clock on every review step so staff can't sit on an application indefinitely. " +
	"Trial: one willing county runs it for two months. Metrics tracked: days to decision, number of appeals. " +
	"Caveat: thin staff could just start rubber-stamping everything. Join us: DM your county and we'll send the draft ordinance."

func TestDraftMutatesOnExactDuplicate(t *testing.T) {
	backend := &fakeBackend{response: goodProposal, mutated: mutatedProposal}
	history := fakeHistory{texts: []string{goodProposal + " We could be wrong about the timeline; we'll roll this back if the pilot data says so."}}
	g := newTestGenerator(backend, history)

	_, err := g.Draft(context.Background(), Request{Kind: models.KindProposal, Topic: "permitting", Intensity: 1, PlatformCharLimit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend.calls < 2 {
		t.Fatalf("expected a mutation retry to call the LLM a second time, got %d calls", backend.calls)
	}
}

func TestAppendUncertaintyAddendumSkipsWhenAlreadyPresent(t *testing.T) {
	text := "We propose X. We could be wrong about the exact timeline."
	if appendUncertaintyAddendum(text) != text {
		t.Fatal("expected existing uncertainty language to be left untouched")
	}
}

func containsFold(s, substr string) bool {
	sl := []rune(s)
	subl := []rune(substr)
	for i := 0; i+len(subl) <= len(sl); i++ {
		match := true
		for j := range subl {
			a, b := sl[i+j], subl[j]
			if a >= 'A' && a <= 'Z' {
				a += 'a' - 'A'
			}
			if b >= 'A' && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
