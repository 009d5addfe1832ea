// Package selector picks the next action type, the content arm for
// content-producing actions, and the intensity to draft at (§4.3).
package selector

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/bandit"
	"github.com/dababiyoda/daleobanks/pkg/crisis"
	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/persona"
)

// Signals is the current global signal snapshot the intensity policy and
// scoring consult (§4.3 "Inputs per decision").
type Signals struct {
	RecentAvgJ   float64
	Penalty      float64
	Authority    float64
	CrisisSignal float64
	CrisisActive bool
}

// MinInterval maps an action type to its cooldown.
type MinInterval map[models.ActionType]time.Duration

// QuietHours reports whether t falls in a window where only REST is
// eligible (e.g. configured sleep hours).
type QuietHours func(t time.Time) bool

// Decision is what Select returns: the chosen action, and for
// content-producing actions the sampled arm and intensity to draft at.
type Decision struct {
	Action      models.ActionType
	SampledProb float64
	Arm         *bandit.Arm
	Intensity   int
	NextCheck   time.Time // only meaningful when Action == ActionRest
}

// Selector implements §4.3 end to end.
type Selector struct {
	actionBandit *bandit.ActionBandit
	contentBandit *bandit.Bandit
	crisisSvc    *crisis.Service
	quietHours   QuietHours
	minInterval  MinInterval
	crisisSignalThreshold float64
	now          func() time.Time
	rng          *rand.Rand
}

func New(actionBandit *bandit.ActionBandit, contentBandit *bandit.Bandit, crisisSvc *crisis.Service, quietHours QuietHours, minInterval MinInterval, crisisSignalThreshold float64, seed int64) *Selector {
	return &Selector{
		actionBandit:  actionBandit,
		contentBandit: contentBandit,
		crisisSvc:     crisisSvc,
		quietHours:    quietHours,
		minInterval:   minInterval,
		crisisSignalThreshold: crisisSignalThreshold,
		now:           time.Now,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// eligibleActions applies the three ordered eligibility filters of §4.3,
// returning the surviving candidate set and, if quiet hours forced REST,
// true for forcedRest.
func (s *Selector) eligibleActions(lastAction map[models.ActionType]time.Time) ([]models.ActionType, bool) {
	now := s.now()
	if s.quietHours != nil && s.quietHours(now) {
		return nil, true
	}

	var eligible []models.ActionType
	for _, a := range models.AllActionTypes {
		if a != models.ActionRest && s.crisisSvc != nil && !s.crisisSvc.Guard(a) {
			continue
		}
		if a == models.ActionRest {
			eligible = append(eligible, a)
			continue
		}
		min := s.minInterval[a]
		last, seen := lastAction[a]
		if seen && now.Sub(last) < min {
			continue
		}
		eligible = append(eligible, a)
	}
	return eligible, false
}

// driveFactor maps an action type to the persona drive weights that back
// it (§4.3 "drive_factor").
func driveFactor(a models.ActionType, d persona.DriveWeights) float64 {
	switch a {
	case models.ActionPostProposal:
		return d.Impact + d.Novelty
	case models.ActionSearchEngage:
		return d.Curiosity + d.Novelty
	case models.ActionPostThread:
		return d.Impact + d.Stability
	case models.ActionSendValueDM:
		return d.Impact + d.Curiosity
	case models.ActionRest:
		return 2 * d.Stability
	default:
		return 1.0
	}
}

// mixFactor derives a weight from persona.content_mix for action types
// that correspond to a content-mix bucket.
func mixFactor(a models.ActionType, mix map[string]float64) float64 {
	key := ""
	switch a {
	case models.ActionPostProposal:
		key = "proposals"
	case models.ActionReplyMentions, models.ActionSearchEngage:
		key = "elite_replies"
	case models.ActionPostThread:
		key = "summaries"
	}
	if key == "" {
		return 1.0
	}
	if v, ok := mix[key]; ok && v > 0 {
		return v
	}
	return 0.05 // floor so an unmentioned bucket is rare, not impossible
}

var baseWeight = map[models.ActionType]float64{
	models.ActionPostProposal:  1.0,
	models.ActionReplyMentions: 1.2,
	models.ActionSearchEngage:  0.8,
	models.ActionPostThread:    0.4,
	models.ActionSendValueDM:   0.3,
	models.ActionRest:          0.6,
}

// score computes §4.3's prob(a) = base . mix_factor . drive_factor .
// optimizer_factor for each eligible action, without yet normalizing.
func score(a models.ActionType, p persona.Persona, optimizerFactor float64) float64 {
	return baseWeight[a] * mixFactor(a, p.ContentMix) * driveFactor(a, p.Drives) * optimizerFactor
}

// pickAction computes the normalized score distribution over eligible
// actions (optimizer_factor sourced from the action bandit's posterior
// mean) and samples one from it, returning the chosen action and the
// probability mass it carried (§4.3 "Scoring", §4.7 "Coupling").
func (s *Selector) pickAction(eligible []models.ActionType, p persona.Persona) (models.ActionType, float64) {
	scores := make([]float64, len(eligible))
	total := 0.0
	for i, a := range eligible {
		sc := score(a, p, s.actionBandit.Mean(a))
		if sc < 0 {
			sc = 0
		}
		scores[i] = sc
		total += sc
	}
	if total <= 0 {
		choice := eligible[s.rng.Intn(len(eligible))]
		return choice, 1.0 / float64(len(eligible))
	}
	r := s.rng.Float64() * total
	acc := 0.0
	for i, a := range eligible {
		acc += scores[i]
		if r < acc {
			return a, scores[i] / total
		}
	}
	last := eligible[len(eligible)-1]
	return last, scores[len(scores)-1] / total
}

// Select runs the full §4.3 decision: eligibility, scoring, bandit arm
// pick, and intensity policy.
func (s *Selector) Select(p persona.Persona, lastAction map[models.ActionType]time.Time, sig Signals) Decision {
	eligible, forcedRest := s.eligibleActions(lastAction)
	if forcedRest {
		return Decision{Action: models.ActionRest, NextCheck: s.now().Add(60 * time.Minute)}
	}
	if len(eligible) == 0 {
		return Decision{Action: models.ActionRest, NextCheck: s.now().Add(15 * time.Minute)}
	}

	action, sampledProb := s.pickAction(eligible, p)

	if action != models.ActionPostProposal && action != models.ActionReplyMentions &&
		action != models.ActionSearchEngage && action != models.ActionPostThread {
		return Decision{Action: action, SampledProb: sampledProb}
	}

	arm := s.sampleArm(p)
	intensity := s.intensityPolicy(p.Intensity, sig, intensityFromArm(arm.Intensity))
	armCopy := arm
	armCopy.Intensity = intensityToString(intensity)
	return Decision{Action: action, SampledProb: sampledProb, Arm: &armCopy, Intensity: intensity}
}

func (s *Selector) sampleArm(p persona.Persona) bandit.Arm {
	candidates := bandit.Candidates{
		Topic:      sortedKeys(p.ContentMix),
		HourBin:    hourBins(),
		CTAVariant: []string{"learn_more", "reply_thread", "dm_us", "pilot_signup"},
		Intensity:  intensityRange(p.Intensity.Min, p.Intensity.Max),
	}
	return s.contentBandit.SampleArm(candidates)
}

func hourBins() []string {
	out := make([]string, 24)
	for i := 0; i < 24; i++ {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func intensityRange(min, max int) []string {
	if max < min {
		max = min
	}
	out := make([]string, 0, max-min+1)
	for i := min; i <= max; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// intensityPolicy implements §4.3's step-wise adjustment from the
// previous successful intensity, clamped to [MIN,MAX] with max step
// +/-1 (+/-2 if crisis active).
func (s *Selector) intensityPolicy(settings persona.IntensitySettings, sig Signals, prevSuccessful int) int {
	maxStep := 1
	if sig.CrisisActive {
		maxStep = 2
	}
	step := 0
	switch {
	case sig.Penalty >= 8:
		step -= 2
	case sig.Penalty >= 4:
		step -= 1
	}
	switch {
	case sig.RecentAvgJ >= 0.65:
		step += 1
	case sig.RecentAvgJ <= 0.35 && !sig.CrisisActive:
		step -= 1
	}
	if sig.Authority >= 60 {
		step += 1
	}
	if s.crisisSignalThreshold > 0 && sig.CrisisSignal >= s.crisisSignalThreshold {
		if step > -1 {
			step = -1
		}
	}
	if sig.CrisisActive {
		if step > -2 {
			step = -2
		}
	}
	if step > maxStep {
		step = maxStep
	}
	if step < -maxStep {
		step = -maxStep
	}
	result := prevSuccessful + step
	if result < settings.Min {
		result = settings.Min
	}
	if result > settings.Max {
		result = settings.Max
	}
	return result
}

// DMTarget is one whitelisted voice eligible for an outbound value DM.
type DMTarget struct {
	Username       string
	AuthorityWeight float64
}

// SelectDMTarget implements §4.3's "DM target selection": priority
// voices with authority_weight >= 0.75, excluding anyone DM'd in the
// last 24h.
func SelectDMTarget(candidates []DMTarget, lastDM map[string]time.Time, now time.Time) (DMTarget, bool) {
	for _, c := range candidates {
		if c.AuthorityWeight < 0.75 {
			continue
		}
		if last, ok := lastDM[c.Username]; ok && now.Sub(last) < 24*time.Hour {
			continue
		}
		return c, true
	}
	return DMTarget{}, false
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func intensityToString(i int) string { return strconv.Itoa(i) }

// intensityFromArm parses a sampled arm's intensity dimension (stored as
// a string, like its other bandit dimensions) back into an int for the
// intensity policy's step adjustment.
func intensityFromArm(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
