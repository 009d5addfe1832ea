// Package gates implements the independent content validators the
// Generator composes: ethics, length, completeness, receipts, cadence
// and high-intensity checks (§4.4.1). Regex-driven rules are table-
// driven and compiled once, per Design Note 9.
package gates

import (
	"fmt"
	"regexp"
	"strings"
)

// Draft is the text under validation plus the metadata that determines
// which gates apply.
type Draft struct {
	Text      string
	Kind      string // proposal | reply | quote | thread_root | thread_segment
	Intensity int
	PlatformCharLimit int
}

// Verdict is returned by every gate; Pass=false carries the rejection
// detail (§4.4.1 "returns a structured error").
type Verdict struct {
	Pass   bool
	Detail string
}

func ok() Verdict                 { return Verdict{Pass: true} }
func fail(format string, a ...any) Verdict { return Verdict{Pass: false, Detail: fmt.Sprintf(format, a...)} }

// ---- Ethics -----------------------------------------------------------

var (
	deceptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)100%\s*guaranteed`),
		regexp.MustCompile(`(?i)no\s*risk`),
		regexp.MustCompile(`(?i)risk[\s-]*free`),
		regexp.MustCompile(`(?i)guaranteed\s*returns?`),
	}
	harmPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bkill\s+(them|him|her|yourself)\b`),
		regexp.MustCompile(`(?i)\bincite\s+violence\b`),
		regexp.MustCompile(`(?i)\bmake\s+a\s+bomb\b`),
	}
	hedgeWords = regexp.MustCompile(`(?i)\b(maybe|might|could|perhaps|likely|possibly|seems|appears|tentative|preliminary)\b`)
)

// EthicsResult carries the pass/fail verdict plus the computed
// uncertainty score (§4.4.1).
type EthicsResult struct {
	Verdict
	Uncertainty float64 // 0..1
}

// Ethics rejects harmful-intent patterns and overt deception markers, and
// computes a normalized uncertainty score from hedge-word density.
func Ethics(text string) EthicsResult {
	for _, re := range harmPatterns {
		if re.MatchString(text) {
			return EthicsResult{Verdict: fail("ethics: harmful-intent pattern matched")}
		}
	}
	for _, re := range deceptionPatterns {
		if re.MatchString(text) {
			return EthicsResult{Verdict: fail("ethics: deception marker matched: %q", re.String())}
		}
	}
	words := strings.Fields(text)
	hedges := len(hedgeWords.FindAllString(text, -1))
	uncertainty := 0.0
	if len(words) > 0 {
		uncertainty = float64(hedges) / float64(len(words)) * 5 // scale up, small counts matter
		if uncertainty > 1 {
			uncertainty = 1
		}
	}
	return EthicsResult{Verdict: ok(), Uncertainty: uncertainty}
}

// ---- Length -------------------------------------------------------------

// Length hard-trims over-length text with an ellipsis rather than
// failing the gate (§4.4.1).
func Length(text string, limit int) string {
	if limit <= 0 {
		limit = 280
	}
	if len(text) <= limit {
		return text
	}
	if limit <= 1 {
		return "…"
	}
	return strings.TrimRight(text[:limit-1], " ") + "…"
}

// ---- Proposal completeness ----------------------------------------------

// markerFamilies are the six keyword-regex families a proposal must hit.
var markerFamilies = map[string]*regexp.Regexp{
	"problem":   regexp.MustCompile(`(?i)\bproblem\b|\bchallenge\b|\bfails?\b`),
	"mechanism": regexp.MustCompile(`(?i)\bmechanism\b|\buse\b|\bapproach\b|\badopt\b`),
	"pilot":     regexp.MustCompile(`(?i)\bpilot\b|\btrial\b|\btest\s+run\b`),
	"kpis":      regexp.MustCompile(`(?i)\bkpis?\b|\bmetrics?\b|\bmeasure(d|s)?\b`),
	"risks":     regexp.MustCompile(`(?i)\brisks?\b|\bdownside\b|\bcaveat\b`),
	"cta":       regexp.MustCompile(`(?i)\breply\b|\bdm\b|\bjoin\b|\bsign\s*up\b|\bcontact\b`),
}

// Completeness requires all six marker families to be present for a
// proposal.
func Completeness(text string) Verdict {
	var missing []string
	for name, re := range markerFamilies {
		if !re.MatchString(text) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fail("completeness: missing marker families: %s", strings.Join(missing, ", "))
	}
	return ok()
}

// ---- Receipts (evidence) -------------------------------------------------

var urlRe = regexp.MustCompile(`https?://[^\s)]+`)

// ExtractURLs returns every URL literal found in text.
func ExtractURLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// Receipts requires at least one URL whose host ends in a whitelisted
// suffix. resolveHost lets callers plug in goquery/opengraph-based
// canonical-URL resolution for the websearch-assisted fallback (§4 SPEC_FULL
// supplement); pass nil to only check the literal URLs in text.
func Receipts(text string, whitelist []string, resolveHost func(url string) (string, bool)) Verdict {
	urls := ExtractURLs(text)
	for _, u := range urls {
		if hostAllowed(u, whitelist) {
			return ok()
		}
	}
	if resolveHost != nil {
		for _, u := range urls {
			if host, found := resolveHost(u); found && suffixAllowed(host, whitelist) {
				return ok()
			}
		}
	}
	return fail("receipts: no URL with a whitelisted host")
}

func hostAllowed(rawURL string, whitelist []string) bool {
	host := hostOf(rawURL)
	return suffixAllowed(host, whitelist)
}

func suffixAllowed(host string, whitelist []string) bool {
	host = strings.ToLower(host)
	for _, suf := range whitelist {
		if strings.HasSuffix(host, strings.ToLower(suf)) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	rest := strings.TrimPrefix(rawURL, "https://")
	rest = strings.TrimPrefix(rest, "http://")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// ---- Constructive-step marker (high-intensity gate) ---------------------

var constructiveRe = regexp.MustCompile(`(?i)\b(next step|here'?s how|start by|try this|recommend|propose that|let'?s)\b`)

func hasConstructiveStep(text string) bool {
	return constructiveRe.MatchString(text)
}

// HighIntensity requires a whitelisted citation AND a constructive-step
// marker for intensity>=3 content of any kind.
func HighIntensity(text string, intensity int, whitelist []string) Verdict {
	if intensity < 3 {
		return ok()
	}
	hasCitation := false
	for _, u := range ExtractURLs(text) {
		if hostAllowed(u, whitelist) {
			hasCitation = true
			break
		}
	}
	if !hasCitation {
		return fail("high_intensity: missing whitelisted citation")
	}
	if !hasConstructiveStep(text) {
		return fail("high_intensity: missing constructive-step marker")
	}
	return ok()
}
