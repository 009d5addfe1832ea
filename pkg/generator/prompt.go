package generator

import (
	"fmt"
	"strings"

	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/persona"
)

// buildUserPrompt implements §4.4 step 2: a kind-specific user prompt
// containing the template, constraints, and reference context.
func buildUserPrompt(req Request, p persona.Persona) string {
	var b strings.Builder

	switch req.Kind {
	case models.KindProposal:
		fmt.Fprintf(&b, "Draft a policy proposal about %q.\n", req.Topic)
		b.WriteString("It must name: a problem, a mechanism, a pilot, KPIs to measure it, the risks/caveats, and a call to action (reply, DM, or sign up).\n")
		b.WriteString("Include at least one link to a credible source (.gov, .edu, or a major wire service).\n")
		b.WriteString("Close with a line acknowledging uncertainty and that it would be rolled back if the pilot data disagrees.\n")
	case models.KindReply:
		fmt.Fprintf(&b, "Write a reply to this post: %q\n", req.ReplyContext)
		b.WriteString("Topic to steer toward: " + req.Topic + "\n")
		if req.Intensity >= 2 {
			b.WriteString("Write exactly three sentences: short, short, then one long closing sentence of at least 24 words. Keep the first two sentences under 18 words each.\n")
		} else {
			b.WriteString("Keep it to at most two sentences. Offer either a receipt (link) or say nothing substantive.\n")
		}
	case models.KindQuote:
		fmt.Fprintf(&b, "Write a quote-post commentary on: %q\n", req.ReplyContext)
		b.WriteString("Topic to steer toward: " + req.Topic + "\n")
	case models.KindThreadRoot, models.KindThreadSegment:
		fmt.Fprintf(&b, "Write the opening post of a thread about %q.\n", req.Topic)
		b.WriteString("Include the hook and at least one whitelisted citation in this segment.\n")
	default:
		fmt.Fprintf(&b, "Write a post about %q.\n", req.Topic)
	}

	if req.Intensity >= 3 {
		b.WriteString("This is a high-intensity post: it MUST include a whitelisted citation and a concrete next-step/constructive marker (e.g. \"next step\", \"here's how\").\n")
	}
	if req.CTAVariant != "" {
		fmt.Fprintf(&b, "Call-to-action variant to use: %s.\n", req.CTAVariant)
	}
	fmt.Fprintf(&b, "Stay within %d characters.\n", platformLimitOrDefault(req.PlatformCharLimit))
	fmt.Fprintf(&b, "Current content mix emphasis: %s.\n", mixSummary(p))

	return b.String()
}

func platformLimitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultPlatformCharLimit
	}
	return limit
}

func mixSummary(p persona.Persona) string {
	if len(p.ContentMix) == 0 {
		return "balanced"
	}
	parts := make([]string, 0, len(p.ContentMix))
	for _, k := range sortedMixKeys(p.ContentMix) {
		parts = append(parts, fmt.Sprintf("%s %.0f%%", k, p.ContentMix[k]*100))
	}
	return strings.Join(parts, ", ")
}

func sortedMixKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
