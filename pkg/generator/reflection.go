package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/llm"
	"github.com/dababiyoda/daleobanks/pkg/models"
)

const reflectionTemperature = 0.5

// PostHistory supplies the day's posts for nightly reflection.
type PostHistory interface {
	PostsInWindow(ctx context.Context, start, end time.Time) ([]models.Post, error)
}

// NoteSink is the persona-store side of reflection: it owns the capped
// improvement-note ring.
type NoteSink interface {
	AddNote(text string)
}

// Reflect summarizes the trailing day's posts and J-scores into one
// ImprovementNote, appended to the persona's note ring and surfaced in
// the next BuildSystemPrompt call (SPEC_FULL supplement, grounded on
// services/reflection.py: nightly_reflection).
func Reflect(ctx context.Context, history PostHistory, notes NoteSink, llmClient *llm.Client, day time.Time) (string, error) {
	start := day.Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	posts, err := history.PostsInWindow(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("generator: reflection window: %w", err)
	}
	if len(posts) == 0 {
		note := "No posts published in the last 24h; nothing to reflect on."
		notes.AddNote(note)
		return note, nil
	}

	summary := summarizePosts(posts)
	prompt := fmt.Sprintf(
		"Here is a summary of today's posts and their measured J-scores:\n%s\n"+
			"Write one or two sentences of concrete, actionable guidance for tomorrow's drafts "+
			"(what worked, what to adjust). Do not restate the numbers verbatim.",
		summary,
	)

	note, _, err := llmClient.Chat(ctx, "reflection", "You are a terse strategy note-writer.", []llm.Message{{Role: "user", Content: prompt}}, reflectionTemperature, 200)
	if err != nil {
		return "", fmt.Errorf("generator: reflection llm chat: %w", err)
	}
	note = strings.TrimSpace(note)
	notes.AddNote(note)
	return note, nil
}

func summarizePosts(posts []models.Post) string {
	var b strings.Builder
	byKind := map[models.PostKind]int{}
	var jSum float64
	var jCount int
	var best, worst *models.Post

	for i := range posts {
		p := &posts[i]
		byKind[p.Kind]++
		if p.JScore != nil {
			jSum += *p.JScore
			jCount++
			if best == nil || *p.JScore > *best.JScore {
				best = p
			}
			if worst == nil || *p.JScore < *worst.JScore {
				worst = p
			}
		}
	}

	fmt.Fprintf(&b, "- %d posts total\n", len(posts))
	for _, k := range []models.PostKind{models.KindProposal, models.KindReply, models.KindQuote, models.KindThreadRoot, models.KindThreadSegment} {
		if n := byKind[k]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", k, n)
		}
	}
	if jCount > 0 {
		fmt.Fprintf(&b, "- mean J-score: %.3f across %d measured posts\n", jSum/float64(jCount), jCount)
	}
	if best != nil {
		fmt.Fprintf(&b, "- best: %s (%s, intensity %d, J=%.3f)\n", truncate(best.Text, 80), best.Topic, best.Intensity, *best.JScore)
	}
	if worst != nil && worst != best {
		fmt.Fprintf(&b, "- worst: %s (%s, intensity %d, J=%.3f)\n", truncate(worst.Text, 80), worst.Topic, worst.Intensity, *worst.JScore)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
