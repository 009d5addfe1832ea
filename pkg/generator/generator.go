// Package generator implements persona-conditioned drafting: building
// the system/user prompt, calling the LLM, running the validation
// pipeline, appending the uncertainty addendum, and deduplicating
// against recent history (§4.4).
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"github.com/dababiyoda/daleobanks/pkg/gates"
	"github.com/dababiyoda/daleobanks/pkg/llm"
	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/persona"
)

// temperatureByKind implements §4.4 step 3.
var temperatureByKind = map[models.PostKind]float64{
	models.KindProposal: 0.7,
	models.KindReply:    0.6,
	models.KindQuote:    0.6,
}

const mutationTemperature = 0.8
const defaultPlatformCharLimit = 280
const dedupWindow = 30 * 24 * time.Hour
const dedupSimilarityThreshold = 0.8

// Request is everything the Generator needs to draft one post.
type Request struct {
	Kind              models.PostKind
	Topic             string
	Intensity         int
	ReplyContext      string // quoted/replied-to text, when applicable
	PlatformCharLimit int
	CTAVariant        string
}

// RejectedError is returned when every gate/mutation attempt fails.
type RejectedError struct {
	Gate   models.GateName
	Detail string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("generator: rejected by gate %s: %s", e.Gate, e.Detail)
}

// PersonaSource supplies the current persona and its system prompt; it
// is satisfied by *persona.Store.
type PersonaSource interface {
	Current() (persona.Persona, error)
	BuildSystemPrompt(notes []persona.NoteRing) string
	RecentNotes(n int) []persona.NoteRing
}

// HistorySource supplies recent post text for duplicate detection.
type HistorySource interface {
	RecentTexts(ctx context.Context, since time.Time) ([]string, error)
}

// ResolveHost is passed through to the receipts/high-intensity gates.
type ResolveHost func(string) (string, bool)

// Generator composes persona, LLM, gates and dedup into one Draft call.
type Generator struct {
	personaSrc PersonaSource
	history    HistorySource
	llmClient  *llm.Client
	whitelist  []string
	resolveHost ResolveHost
	now        func() time.Time
}

func New(personaSrc PersonaSource, history HistorySource, llmClient *llm.Client, whitelist []string, resolveHost ResolveHost) *Generator {
	return &Generator{
		personaSrc:  personaSrc,
		history:     history,
		llmClient:   llmClient,
		whitelist:   whitelist,
		resolveHost: resolveHost,
		now:         time.Now,
	}
}

// Result is a successfully drafted, gate-passed post ready to publish.
type Result struct {
	Text      string
	UsedLLM   bool
	Mutated   bool
}

// Draft implements §4.4 end to end.
func (g *Generator) Draft(ctx context.Context, req Request) (Result, error) {
	p, err := g.personaSrc.Current()
	if err != nil {
		return Result{}, fmt.Errorf("generator: loading persona: %w", err)
	}

	system := g.personaSrc.BuildSystemPrompt(g.personaSrc.RecentNotes(5))
	userPrompt := buildUserPrompt(req, p)
	temperature := temperatureFor(req.Kind)

	text, usedLLM, err := g.llmClient.Chat(ctx, string(req.Kind), system, []llm.Message{{Role: "user", Content: userPrompt}}, temperature, 600)
	if err != nil {
		return Result{}, fmt.Errorf("generator: llm chat: %w", err)
	}

	if req.Kind == models.KindProposal {
		text = appendUncertaintyAddendum(text)
	}

	charLimit := req.PlatformCharLimit
	if charLimit == 0 {
		charLimit = defaultPlatformCharLimit
	}
	text = gates.Length(text, charLimit)

	if gate, verdict := g.runGates(text, req); gate != "" {
		return Result{}, &RejectedError{Gate: gate, Detail: verdict.Detail}
	}

	mutated := false
	isDup, err := g.isDuplicate(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("generator: dedup check: %w", err)
	}
	if isDup {
		text, err = g.mutate(ctx, system, text, req)
		if err != nil {
			return Result{}, fmt.Errorf("generator: mutation: %w", err)
		}
		text = gates.Length(text, charLimit)
		if gate, verdict := g.runGates(text, req); gate != "" {
			return Result{}, &RejectedError{Gate: gate, Detail: verdict.Detail}
		}
		stillDup, err := g.isDuplicate(ctx, text)
		if err != nil {
			return Result{}, fmt.Errorf("generator: post-mutation dedup check: %w", err)
		}
		if stillDup {
			return Result{}, &RejectedError{Gate: models.GateDuplicate, Detail: "mutation did not produce distinct text"}
		}
		mutated = true
	}

	return Result{Text: text, UsedLLM: usedLLM, Mutated: mutated}, nil
}

func (g *Generator) runGates(text string, req Request) (models.GateName, gates.Verdict) {
	draft := gates.Draft{Text: text, Kind: string(req.Kind), Intensity: req.Intensity, PlatformCharLimit: req.PlatformCharLimit}
	return gates.Run(draft, g.whitelist, resolveHostFunc(g.resolveHost))
}

func resolveHostFunc(f ResolveHost) func(string) (string, bool) {
	if f == nil {
		return nil
	}
	return func(u string) (string, bool) { return f(u) }
}

func temperatureFor(kind models.PostKind) float64 {
	if t, ok := temperatureByKind[kind]; ok {
		return t
	}
	return 0.6
}

// isDuplicate implements §4.4 step 6: exact-text, canonical-hash
// equality, or normalized Levenshtein similarity >0.8 against the last
// 30 days of posts.
func (g *Generator) isDuplicate(ctx context.Context, text string) (bool, error) {
	if g.history == nil {
		return false, nil
	}
	recent, err := g.history.RecentTexts(ctx, g.now().Add(-dedupWindow))
	if err != nil {
		return false, err
	}
	normalizedText := normalize(text)
	for _, candidate := range recent {
		if candidate == text {
			return true, nil
		}
		normalizedCandidate := normalize(candidate)
		if normalizedCandidate == normalizedText {
			return true, nil
		}
		if levenshtein.Match(normalizedText, normalizedCandidate, nil) > dedupSimilarityThreshold {
			return true, nil
		}
	}
	return false, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// mutate calls the LLM once to rewrite text while preserving KPIs,
// mechanism and CTA (§4.4 step 6).
func (g *Generator) mutate(ctx context.Context, system, text string, req Request) (string, error) {
	prompt := fmt.Sprintf(
		"Rewrite the following post so it reads as materially different phrasing while preserving every KPI figure, the stated mechanism, and the call to action exactly:\n\n%s",
		text,
	)
	out, _, err := g.llmClient.Chat(ctx, "mutation", system, []llm.Message{{Role: "user", Content: prompt}}, mutationTemperature, 600)
	if err != nil {
		return "", err
	}
	if req.Kind == models.KindProposal {
		out = appendUncertaintyAddendum(out)
	}
	return out, nil
}

// appendUncertaintyAddendum adds the rollback/uncertainty closer to a
// proposal draft when the LLM didn't already include one (§4.4 step 5).
func appendUncertaintyAddendum(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "roll back") || strings.Contains(lower, "rollback") || strings.Contains(lower, "we could be wrong") {
		return text
	}
	return strings.TrimRight(text, " ") + " We could be wrong about the timeline; we'll roll this back if the pilot data says so."
}
