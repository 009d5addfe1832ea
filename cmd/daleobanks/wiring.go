package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/config"
	"github.com/dababiyoda/daleobanks/pkg/llm"
	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/perception"
	"github.com/dababiyoda/daleobanks/pkg/persona"
	"github.com/dababiyoda/daleobanks/pkg/platform"
	"github.com/dababiyoda/daleobanks/pkg/publisher"
	"github.com/dababiyoda/daleobanks/pkg/selector"
)

// seedPersona is the document written to PersonaPath the first time the
// process starts against an empty data directory. Every field past this
// point is owned by persona.Store and evolves through Update/Rollback.
func seedPersona() persona.Persona {
	return persona.Persona{
		Handle:  "daleobanks",
		Mission: "Ship working pilots for coordination problems institutions are too slow to fix.",
		Beliefs: []string{
			"Public receipts beat private promises.",
			"Small, measured pilots de-risk big claims.",
		},
		Doctrine: []string{
			"Every proposal names a mechanism, a pilot, and a way to measure it.",
		},
		ToneRules: map[string]string{
			"register": "direct, technocratic, no hedging filler",
		},
		ContentMix: map[string]float64{
			"proposals":     0.5,
			"elite_replies": 0.35,
			"summaries":     0.15,
		},
		Templates:  map[string]string{},
		Guardrails: []string{"no personal attacks", "no unverifiable claims presented as fact"},
		Intensity:  persona.IntensitySettings{Min: 0, Max: 4},
		Drives:     persona.DriveWeights{Curiosity: 0.5, Novelty: 0.5, Impact: 0.5, Stability: 0.5},
	}
}

// buildLLMClient wires whichever backend has credentials in the
// environment, preferring Anthropic when both are set (matching the
// teacher's failover stance of naming one primary provider explicitly
// rather than racing both). Budget and fallback templates always apply,
// so a missing key degrades to deterministic templates rather than a
// crash loop once the budget check still tries the backend and errors.
func buildLLMClient(cfg *config.Config) *llm.Client {
	var backend llm.Backend
	switch {
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		model := os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		backend = llm.NewAnthropicBackend(os.Getenv("ANTHROPIC_API_KEY"), model)
	case os.Getenv("OPENAI_API_KEY") != "":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o-mini"
		}
		backend = llm.NewOpenAIBackend(os.Getenv("OPENAI_API_KEY"), model)
	default:
		backend = llm.NewOpenAIBackend("", "gpt-4o-mini")
	}
	budget := llm.NewBudget(cfg.LLMBudgetPerHour, cfg.LLMBudgetPerDay)
	return llm.NewClient(backend, budget, llm.NewDefaultTemplates())
}

// buildPublishTargets constructs one platform.Adapter per enabled
// platform, wiring credentials from the environment the way the
// teacher's own bridge config reads bridge-specific secrets flatly
// rather than through a secrets-manager SDK.
func buildPublishTargets(cfg *config.Config) []publisher.Target {
	live := func() bool { return cfg.Live }
	var targets []publisher.Target

	if cfg.PlatformEnabled["x"] {
		transport := platform.NewXTransport(os.Getenv("X_BEARER_TOKEN"))
		adapter := platform.NewAdapter(models.PlatformX, "x", transport, live,
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerReset, cfg.MaxWriteAttempts, cfg.MaxBackoffSeconds)
		targets = append(targets, publisher.Target{Platform: models.PlatformX, Adapter: adapter, Weight: cfg.PlatformWeight["x"], Enabled: true})
	}
	if cfg.PlatformEnabled["mastodon"] {
		transport := platform.NewMastodonTransport(os.Getenv("MASTODON_INSTANCE_URL"), os.Getenv("MASTODON_ACCESS_TOKEN"))
		adapter := platform.NewAdapter(models.PlatformMastodon, "mastodon", transport, live,
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerReset, cfg.MaxWriteAttempts, cfg.MaxBackoffSeconds)
		targets = append(targets, publisher.Target{Platform: models.PlatformMastodon, Adapter: adapter, Weight: cfg.PlatformWeight["mastodon"], Enabled: true})
	}
	if cfg.PlatformEnabled["linkedin"] {
		transport := platform.NewLinkedInTransport(os.Getenv("LINKEDIN_ACCESS_TOKEN"), os.Getenv("LINKEDIN_AUTHOR_URN"))
		adapter := platform.NewAdapter(models.PlatformLinkedIn, "linkedin", transport, live,
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerReset, cfg.MaxWriteAttempts, cfg.MaxBackoffSeconds)
		targets = append(targets, publisher.Target{Platform: models.PlatformLinkedIn, Adapter: adapter, Weight: cfg.PlatformWeight["linkedin"], Enabled: true})
	}
	return targets
}

// buildPerceptionService wires the X-API-backed sources against the
// authenticated account's own id and the whitelisted-voice roster, using
// a fixed trending-topics keyword set as the "trends" source.
func buildPerceptionService(cfg *config.Config, store perception.EventStore) (*perception.Service, error) {
	bearer := os.Getenv("X_BEARER_TOKEN")
	userID := os.Getenv("X_USER_ID")

	voices, err := perception.LoadVoices(cfg.VoicesPath)
	if err != nil {
		voices = nil
	}
	voiceSources := make([]perception.VoiceSource, 0, len(voices))
	for _, v := range voices {
		voiceSources = append(voiceSources, perception.VoiceSource{
			Voice:  v,
			Source: &perception.VoiceTimelineSource{BearerToken: bearer, Username: v.Username},
		})
	}

	keywords := []string{"permitting reform", "coordination failure", "public pilot program"}
	trends := &perception.KeywordSearchSource{BearerToken: bearer, Query: fmt.Sprintf("(%s)", keywords[0])}

	svc := perception.NewService(
		&perception.XMentionsSource{BearerToken: bearer, UserID: userID},
		&perception.XTimelineSource{BearerToken: bearer, UserID: userID},
		trends,
		voiceSources,
		keywords,
		store,
	)
	return svc, nil
}

// minIntervalFromJobs derives the selector's per-action cooldown from the
// same job-interval table the scheduler uses, so the two stay in lockstep
// without a second source of truth.
func minIntervalFromJobs(cfg *config.Config) selector.MinInterval {
	return selector.MinInterval{
		models.ActionPostProposal:  cfg.Jobs["post_proposal"].Min,
		models.ActionReplyMentions: cfg.Jobs["reply_mentions"].Min,
		models.ActionSearchEngage:  cfg.Jobs["search_engage"].Min,
		models.ActionPostThread:    cfg.Jobs["post_thread"].Min,
		models.ActionSendValueDM:   cfg.Jobs["value_dm"].Min,
	}
}

// quietHoursFunc implements the configured wrap-around quiet window
// (e.g. 23 -> 6) as a selector.QuietHours predicate.
func quietHoursFunc(cfg *config.Config) selector.QuietHours {
	return func(t time.Time) bool {
		h := t.Hour()
		if cfg.QuietHourStart == cfg.QuietHourEnd {
			return false
		}
		if cfg.QuietHourStart < cfg.QuietHourEnd {
			return h >= cfg.QuietHourStart && h < cfg.QuietHourEnd
		}
		return h >= cfg.QuietHourStart || h < cfg.QuietHourEnd
	}
}
