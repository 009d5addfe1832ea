package analytics

import (
	"regexp"
	"strings"

	"github.com/dababiyoda/daleobanks/pkg/gates"
	"github.com/dababiyoda/daleobanks/pkg/models"
)

var (
	pilotRe       = regexp.MustCompile(`(?i)pilot accepted|signed the pilot`)
	forkRe        = regexp.MustCompile(`(?i)\bfork(ed)?\b|\bclone(d)?\b`)
	partnerRe     = regexp.MustCompile(`(?i)coalition partner|joined as a partner|partnering with`)
	helpfulnessRe = regexp.MustCompile(`(?i)thank you|appreciate|super helpful`)
	githubRe      = regexp.MustCompile(`(?i)github\.com`)
)

// ExtractStructuredOutcomes heuristically detects pilots, forks,
// partners, citations and helpfulness signals from generated or reply
// text (§4.6).
func ExtractStructuredOutcomes(postID, text string) []models.StructuredOutcome {
	var out []models.StructuredOutcome
	if pilotRe.MatchString(text) {
		out = append(out, models.StructuredOutcome{Kind: models.OutcomePilotAcceptance, PostID: postID})
	}
	if forkRe.MatchString(text) {
		platform := ""
		if githubRe.MatchString(text) {
			platform = "github"
		}
		out = append(out, models.StructuredOutcome{Kind: models.OutcomeArtifactFork, PostID: postID, ForkPlatform: platform})
	}
	if partnerRe.MatchString(text) {
		out = append(out, models.StructuredOutcome{Kind: models.OutcomeCoalitionPartner, PostID: postID})
	}
	for _, u := range gates.ExtractURLs(text) {
		out = append(out, models.StructuredOutcome{Kind: models.OutcomeCitation, PostID: postID, URL: u})
	}
	if helpfulnessRe.MatchString(text) {
		out = append(out, models.StructuredOutcome{Kind: models.OutcomeHelpfulnessFeedback, PostID: postID, Channel: "reply", Rating: ratingFromText(text)})
	}
	return out
}

func ratingFromText(text string) int {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "super helpful"):
		return 5
	case strings.Contains(lower, "appreciate"):
		return 4
	case strings.Contains(lower, "thank you"):
		return 3
	default:
		return 3
	}
}
