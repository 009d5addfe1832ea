// Package perception ingests mentions, home timeline, trending topics and
// whitelisted-voice posts, derives crisis signal inputs from them, and
// persists one SensedEvent per tick (§4.9).
package perception

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// Cursors are owned exclusively by the Service; nothing else mutates
// them (§5 "Shared-resource policy").
type Cursors struct {
	XMentionsSinceID string
	XTimelineToken   string
	VoiceCursors     map[string]string // username -> opaque pagination token
}

// Source fetches one kind of input. Implementations wrap whatever
// platform client is configured; they must not block indefinitely.
type Source interface {
	Name() string
	Fetch(ctx context.Context, cursors Cursors, limit int) (FetchResult, error)
}

// FetchResult is one source's contribution to a tick: raw texts plus any
// cursor advance it observed.
type FetchResult struct {
	Texts        []TextItem
	NewSinceID   string // empty = no advance
	NewToken     string
	VoiceCursors map[string]string
}

// TextItem is one piece of perceived text with enough metadata to
// compute sentiment/velocity/authority and extract structured outcomes.
type TextItem struct {
	Text            string
	AuthorityHint   float64 // e.g. derived from follower count / verified badge
	SentimentHint   *float64
}

// Limits bounds how much each source fetches per tick; zero values fall
// back to DefaultLimits.
type Limits struct {
	Mentions int
	Timeline int
	Trends   int
	Voices   int
	Keywords int
}

func DefaultLimits() Limits {
	return Limits{Mentions: 50, Timeline: 50, Trends: 20, Voices: 10, Keywords: 20}
}

func mergeLimits(l Limits) Limits {
	d := DefaultLimits()
	if l.Mentions > 0 {
		d.Mentions = l.Mentions
	}
	if l.Timeline > 0 {
		d.Timeline = l.Timeline
	}
	if l.Trends > 0 {
		d.Trends = l.Trends
	}
	if l.Voices > 0 {
		d.Voices = l.Voices
	}
	if l.Keywords > 0 {
		d.Keywords = l.Keywords
	}
	return d
}

// EventStore is the narrow persistence interface perception depends on.
type EventStore interface {
	InsertSensedEvent(ctx context.Context, e models.SensedEvent) error
}

// Voice is one whitelisted account perception watches for trustworthy
// signal, loaded from YAML at startup (§4.9 "whitelist").
type Voice struct {
	Username string `yaml:"username"`
	Weight   float64 `yaml:"weight"`
}

// Service runs one ingest tick across all configured sources, merging
// their output into a single SensedEvent and advancing cursors.
type Service struct {
	mentions Source
	timeline Source
	trends   Source
	voices   []VoiceSource
	keywords []string

	store   EventStore
	cursors Cursors
}

// VoiceSource fetches one whitelisted voice's recent posts.
type VoiceSource struct {
	Voice  Voice
	Source Source
}

func NewService(mentions, timeline, trends Source, voices []VoiceSource, keywords []string, store EventStore) *Service {
	return &Service{
		mentions: mentions,
		timeline: timeline,
		trends:   trends,
		voices:   voices,
		keywords: keywords,
		store:    store,
		cursors:  Cursors{VoiceCursors: make(map[string]string)},
	}
}

// Cursors returns a copy of the current cursor state (for persistence
// across process restarts by the caller).
func (s *Service) Cursors() Cursors { return s.cursors }

// RestoreCursors seeds cursor state, e.g. from a prior run's persisted
// SensedEvent payload.
func (s *Service) RestoreCursors(c Cursors) {
	if c.VoiceCursors == nil {
		c.VoiceCursors = make(map[string]string)
	}
	s.cursors = c
}

// ingestError pairs a source name with the error it returned, so a
// single failing endpoint never aborts the tick (§4.9 "Errors ... are
// logged and the partial payload is still persisted").
type ingestError struct {
	source string
	err    error
}

// Tick runs one full ingest: fan out to every configured source
// concurrently via errgroup, merge counts/payload, compute crisis
// inputs from mentions, and persist one SensedEvent.
func (s *Service) Tick(ctx context.Context, limits Limits) (models.SensedEvent, models.CrisisMetrics, error) {
	limits = mergeLimits(limits)

	var (
		mentionsRes FetchResult
		timelineRes FetchResult
		trendsRes   FetchResult
		voiceRes    = make([]FetchResult, len(s.voices))
		errs        []ingestError
		errsMu      sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	recordErr := func(name string, err error) {
		errsMu.Lock()
		errs = append(errs, ingestError{source: name, err: err})
		errsMu.Unlock()
	}

	if s.mentions != nil {
		g.Go(func() error {
			r, err := s.mentions.Fetch(gctx, s.cursors, limits.Mentions)
			if err != nil {
				recordErr(s.mentions.Name(), err)
				return nil
			}
			mentionsRes = r
			return nil
		})
	}
	if s.timeline != nil {
		g.Go(func() error {
			r, err := s.timeline.Fetch(gctx, s.cursors, limits.Timeline)
			if err != nil {
				recordErr(s.timeline.Name(), err)
				return nil
			}
			timelineRes = r
			return nil
		})
	}
	if s.trends != nil {
		g.Go(func() error {
			r, err := s.trends.Fetch(gctx, s.cursors, limits.Trends)
			if err != nil {
				recordErr(s.trends.Name(), err)
				return nil
			}
			trendsRes = r
			return nil
		})
	}
	for i, vs := range s.voices {
		i, vs := i, vs
		g.Go(func() error {
			r, err := vs.Source.Fetch(gctx, s.cursors, limits.Voices)
			if err != nil {
				recordErr("voice:"+vs.Voice.Username, err)
				return nil
			}
			voiceRes[i] = r
			return nil
		})
	}
	// errgroup's inner funcs never return a non-nil error themselves (each
	// failure is swallowed into errs above), so Wait cannot fail the tick.
	_ = g.Wait()

	s.advanceCursors(mentionsRes, timelineRes, voiceRes)

	counts := map[string]int{
		"voices":           len(s.voices),
		"keywords":         len(s.keywords),
		"x_mentions":       len(mentionsRes.Texts),
		"x_timeline":       len(timelineRes.Texts),
		"x_trends":         len(trendsRes.Texts),
		"x_voice_updates":  countVoiceTexts(voiceRes),
	}
	counts["signals"] = counts["x_mentions"] + counts["x_timeline"] + counts["x_trends"] + counts["x_voice_updates"]

	payload := map[string]any{
		"whitelisted_voices": truncateVoiceNames(s.voices, 20),
		"keywords":           capKeywords(s.keywords, limits.Keywords),
		"x": map[string]any{
			"mentions":         textStrings(mentionsRes.Texts),
			"home_timeline":    textStrings(timelineRes.Texts),
			"trending_topics":  textStrings(trendsRes.Texts),
			"voices":           voicePayload(s.voices, voiceRes),
			"meta":             errorMeta(errs),
		},
	}

	event := models.SensedEvent{
		Source:  "perception",
		Kind:    "tick",
		Payload: payload,
		Counts:  counts,
	}

	metrics := deriveCrisisMetrics(mentionsRes.Texts)

	if s.store != nil {
		if err := s.store.InsertSensedEvent(ctx, event); err != nil {
			return event, metrics, fmt.Errorf("perception: persisting sensed event: %w", err)
		}
	}
	return event, metrics, nil
}

func (s *Service) advanceCursors(mentions, timeline FetchResult, voiceRes []FetchResult) {
	if mentions.NewSinceID != "" {
		s.cursors.XMentionsSinceID = maxCursor(s.cursors.XMentionsSinceID, mentions.NewSinceID)
	}
	if timeline.NewToken != "" {
		s.cursors.XTimelineToken = timeline.NewToken
	}
	for i, vs := range s.voices {
		if i >= len(voiceRes) {
			continue
		}
		if tok, ok := voiceRes[i].VoiceCursors[vs.Voice.Username]; ok {
			if tok == "" {
				delete(s.cursors.VoiceCursors, vs.Voice.Username)
			} else {
				s.cursors.VoiceCursors[vs.Voice.Username] = tok
			}
		}
	}
}

// maxCursor compares two numeric-ish since_id strings lexically-by-length
// first (handles the common case of monotonically increasing snowflake
// ids without parsing to a big.Int).
func maxCursor(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if len(b) != len(a) {
		if len(b) > len(a) {
			return b
		}
		return a
	}
	if b > a {
		return b
	}
	return a
}

// deriveCrisisMetrics implements §4.9's "Crisis input is derived from
// mentions": velocity = mention count, sentiment = mean of per-text
// sentiment, authority = max of hinted follower/verified indicators.
func deriveCrisisMetrics(mentions []TextItem) models.CrisisMetrics {
	if len(mentions) == 0 {
		return models.CrisisMetrics{}
	}
	var sentimentSum float64
	var sentimentN int
	var maxAuthority float64
	for _, m := range mentions {
		if m.SentimentHint != nil {
			sentimentSum += *m.SentimentHint
			sentimentN++
		} else {
			sentimentSum += heuristicSentiment(m.Text)
			sentimentN++
		}
		if m.AuthorityHint > maxAuthority {
			maxAuthority = m.AuthorityHint
		}
	}
	sentiment := 0.0
	if sentimentN > 0 {
		sentiment = sentimentSum / float64(sentimentN)
	}
	return models.CrisisMetrics{
		Sentiment: sentiment,
		Velocity:  float64(len(mentions)),
		Authority: maxAuthority,
	}
}

var negativeWords = []string{"scandal", "fraud", "emergency", "lawsuit", "breach", "hack", "angry", "furious", "terrible"}
var positiveWords = []string{"thank", "great", "love", "appreciate", "awesome", "excellent"}

// heuristicSentiment is a last-resort fallback when a source cannot
// supply its own sentiment estimate: a small lexicon scan in [-1,1].
func heuristicSentiment(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score -= 0.3
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score += 0.3
		}
	}
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

func countVoiceTexts(res []FetchResult) int {
	n := 0
	for _, r := range res {
		n += len(r.Texts)
	}
	return n
}

func truncateVoiceNames(voices []VoiceSource, max int) []string {
	out := make([]string, 0, len(voices))
	for i, v := range voices {
		if i >= max {
			break
		}
		out = append(out, v.Voice.Username)
	}
	return out
}

func capKeywords(keywords []string, max int) []string {
	if len(keywords) <= max {
		return keywords
	}
	return keywords[:max]
}

func textStrings(items []TextItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Text)
	}
	return out
}

func voicePayload(voices []VoiceSource, res []FetchResult) map[string][]string {
	out := make(map[string][]string, len(voices))
	for i, v := range voices {
		if i < len(res) {
			out[v.Voice.Username] = textStrings(res[i].Texts)
		}
	}
	return out
}

func errorMeta(errs []ingestError) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.source] = e.err.Error()
	}
	return out
}
