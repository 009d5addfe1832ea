package gates

import (
	"regexp"
	"strings"
)

var sentenceSplitRe = regexp.MustCompile(`(?s)[^.!?]+[.!?]+`)

// Sentences splits text into trimmed sentences using terminal
// punctuation; a trailing fragment with no terminator counts as its own
// sentence so callers can still report an accurate count.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	matches := sentenceSplitRe.FindAllString(text, -1)
	var out []string
	consumed := 0
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m))
		consumed += len(m)
	}
	rest := strings.TrimSpace(text[min(consumed, len(text)):])
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// Cadence enforces §4.4.1's reply cadence: at intensity>=2, exactly three
// sentences short/short/long (third >=24 words, first two <=18 words);
// below intensity 2, at most two sentences or the gate fails.
func Cadence(text string, intensity int) Verdict {
	sentences := Sentences(text)
	if intensity < 2 {
		if len(sentences) > 2 {
			return fail("receipts or silence")
		}
		return ok()
	}
	if len(sentences) != 3 {
		return fail("cadence: want exactly 3 sentences, got %d", len(sentences))
	}
	w0, w1, w2 := wordCount(sentences[0]), wordCount(sentences[1]), wordCount(sentences[2])
	if w0 > 18 || w1 > 18 {
		return fail("cadence: first two sentences must be <=18 words, got %d/%d", w0, w1)
	}
	if w2 < 24 {
		return fail("cadence: third sentence must be >=24 words, got %d", w2)
	}
	return ok()
}

// SynthesizeCadence patches a draft that is close to the short/short/long
// shape by trimming the first two sentences and padding the third with a
// generic elaboration clause, rather than rejecting outright. Returns the
// patched text and whether a patch was applied.
func SynthesizeCadence(text string, intensity int) (string, bool) {
	if intensity < 2 {
		return text, false
	}
	sentences := Sentences(text)
	if len(sentences) != 3 {
		return text, false
	}
	changed := false
	for i := 0; i < 2; i++ {
		words := strings.Fields(sentences[i])
		if len(words) > 18 {
			sentences[i] = strings.Join(words[:18], " ") + "."
			changed = true
		}
	}
	words := strings.Fields(sentences[2])
	if len(words) < 24 && len(words) > 0 {
		sentences[2] = strings.TrimRight(sentences[2], ".!?") +
			", and that pattern tends to compound across a full quarter once teams actually commit to it."
		changed = true
	}
	if !changed {
		return text, false
	}
	return strings.Join(sentences, " "), true
}
