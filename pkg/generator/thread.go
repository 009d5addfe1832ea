package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dababiyoda/daleobanks/pkg/gates"
	"github.com/dababiyoda/daleobanks/pkg/llm"
	"github.com/dababiyoda/daleobanks/pkg/models"
)

const threadTemperature = 0.7
const minThreadSegments = 2
const maxThreadSegments = 7

// ThreadRequest parameterizes a multi-segment thread draft.
type ThreadRequest struct {
	Topic             string
	Intensity         int
	PlatformCharLimit int
}

// ThreadSegment is one validated, publish-ready post in an ordered
// reply chain.
type ThreadSegment struct {
	Text string
}

// threadLLMResponse is the shape the LLM is asked to emit.
type threadLLMResponse struct {
	Segments []string `json:"segments"`
}

// DraftThread implements §4.4.2: an ordered list of segments, first
// segment carrying the hook + receipts, each segment independently
// gate-validated, with a thread-wide citation requirement at high
// intensity.
func (g *Generator) DraftThread(ctx context.Context, req ThreadRequest) ([]ThreadSegment, error) {
	if _, err := g.personaSrc.Current(); err != nil {
		return nil, fmt.Errorf("generator: loading persona: %w", err)
	}
	system := g.personaSrc.BuildSystemPrompt(g.personaSrc.RecentNotes(5))
	prompt := buildThreadPrompt(req)

	raw, _, err := g.llmClient.Chat(ctx, "thread", system, []llm.Message{{Role: "user", Content: prompt}}, threadTemperature, 1200)
	if err != nil {
		return nil, fmt.Errorf("generator: thread llm chat: %w", err)
	}

	texts, err := parseThreadSegments(raw)
	if err != nil {
		return nil, fmt.Errorf("generator: parsing thread segments: %w", err)
	}

	charLimit := req.PlatformCharLimit
	if charLimit == 0 {
		charLimit = defaultPlatformCharLimit
	}

	segments := make([]ThreadSegment, 0, len(texts))
	hasCitation := false
	for i, text := range texts {
		text = gates.Length(text, charLimit)
		kind := string(models.KindThreadSegment)
		if i == 0 {
			kind = string(models.KindThreadRoot)
		}
		draft := gates.Draft{Text: text, Kind: kind, Intensity: req.Intensity, PlatformCharLimit: charLimit}
		if gate, verdict := gates.Run(draft, g.whitelist, resolveHostFunc(g.resolveHost)); gate != "" {
			return nil, &RejectedError{Gate: gate, Detail: fmt.Sprintf("segment %d: %s", i, verdict.Detail)}
		}
		for _, u := range gates.ExtractURLs(text) {
			if hostAllowedForThread(u, g.whitelist) {
				hasCitation = true
			}
		}
		segments = append(segments, ThreadSegment{Text: text})
	}

	if req.Intensity >= 3 && !hasCitation {
		return nil, &RejectedError{Gate: models.GateHighIntensity, Detail: "thread missing a whitelisted citation anywhere in its segments"}
	}

	return segments, nil
}

func hostAllowedForThread(rawURL string, whitelist []string) bool {
	return gates.Receipts(rawURL, whitelist, nil).Pass
}

func buildThreadPrompt(req ThreadRequest) string {
	return fmt.Sprintf(
		"Write a thread of %d-%d posts about %q as a JSON object: {\"segments\": [\"...\", \"...\"]}.\n"+
			"The first segment must contain the hook and at least one whitelisted citation link.\n"+
			"Each segment must stand alone as a complete post. Return ONLY the JSON object, no surrounding text.",
		minThreadSegments, maxThreadSegments, req.Topic,
	)
}

func parseThreadSegments(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var resp threadLLMResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("invalid thread JSON: %w", err)
	}
	if len(resp.Segments) < minThreadSegments {
		return nil, fmt.Errorf("thread must have at least %d segments, got %d", minThreadSegments, len(resp.Segments))
	}
	if len(resp.Segments) > maxThreadSegments {
		resp.Segments = resp.Segments[:maxThreadSegments]
	}
	return resp.Segments, nil
}
