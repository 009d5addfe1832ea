// Package bandit implements the Thompson-sampling arm selector and
// percentile-normalized reward conversion (§4.7). Posterior mutation is
// serialized per-arm and owned exclusively by this package (§3, §5).
package bandit

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Beta is a Beta(alpha,beta) posterior over one dimension value.
type Beta struct {
	Alpha float64
	Beta  float64
	Pulls int
}

// Sample draws p ~ Beta(alpha,beta) using rng; Go's stdlib has no direct
// Beta sampler so this uses the standard two-Gamma construction.
func (b Beta) Sample(rng *rand.Rand) float64 {
	x := sampleGamma(rng, b.Alpha)
	y := sampleGamma(rng, b.Beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// Mean returns alpha/(alpha+beta), used by deterministic tests (§8
// scenario 4: "deterministic sampler = α/(α+β)").
func (b Beta) Mean() float64 {
	if b.Alpha+b.Beta == 0 {
		return 0.5
	}
	return b.Alpha / (b.Alpha + b.Beta)
}

// sampleGamma implements Marsaglia-Tsang for shape>=1, with the standard
// boost trick for shape<1.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Dimension names index the per-value Beta posteriors an arm is built
// from (§4.7 "Cartesian tuples across {post_type, topic, hour_bin,
// cta_variant, intensity}").
type Dimension string

const (
	DimPostType   Dimension = "post_type"
	DimTopic      Dimension = "topic"
	DimHourBin    Dimension = "hour_bin"
	DimCTAVariant Dimension = "cta_variant"
	DimIntensity  Dimension = "intensity"
)

// Bandit owns every dimension's per-value Beta(alpha,beta) posteriors,
// seeded with the Beta(2,2) prior (§4.7).
type Bandit struct {
	mu         sync.Mutex
	dims       map[Dimension]map[string]*Beta
	rng        *rand.Rand
	recentProb []float64 // trailing sampled_prob history for the epsilon-floor check
}

const priorAlpha, priorBeta = 2.0, 2.0

func New(seed int64) *Bandit {
	return &Bandit{
		dims: make(map[Dimension]map[string]*Beta),
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (b *Bandit) postFor(dim Dimension, value string) *Beta {
	vals, ok := b.dims[dim]
	if !ok {
		vals = make(map[string]*Beta)
		b.dims[dim] = vals
	}
	post, ok := vals[value]
	if !ok {
		post = &Beta{Alpha: priorAlpha, Beta: priorBeta}
		vals[value] = post
	}
	return post
}

// SampleResult is the chosen value for one dimension plus its sampled
// probability.
type SampleResult struct {
	Value       string
	SampledProb float64
}

// SampleDimension draws one Beta sample per candidate value and returns
// the argmax (§4.7).
func (b *Bandit) SampleDimension(dim Dimension, candidates []string) SampleResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(candidates) == 0 {
		return SampleResult{}
	}
	bestValue := candidates[0]
	bestProb := -1.0
	for _, c := range candidates {
		p := b.postFor(dim, c).Sample(b.rng)
		if p > bestProb {
			bestProb = p
			bestValue = c
		}
	}
	return SampleResult{Value: bestValue, SampledProb: bestProb}
}

// Arm is the full tuple chosen across every dimension.
type Arm struct {
	PostType    string
	Topic       string
	HourBin     string
	CTAVariant  string
	Intensity   string
	SampledProb float64 // product of the per-dimension sampled probabilities
}

// Candidates lists the allowed values per dimension for one decision.
type Candidates struct {
	PostType   []string
	Topic      []string
	HourBin    []string
	CTAVariant []string
	Intensity  []string
}

const epsilonFloor = 0.1

// SampleArm draws one value per dimension and returns the full tuple. If
// fewer than 10 decisions have been recorded, or the trailing-10
// exploration ratio (sampled_prob<0.5) falls below the epsilon floor, a
// uniform-random arm is returned instead (§4.7 "explore vs exploit").
func (b *Bandit) SampleArm(c Candidates) Arm {
	if b.shouldForceExplore() {
		return b.uniformArm(c)
	}
	pt := b.SampleDimension(DimPostType, c.PostType)
	topic := b.SampleDimension(DimTopic, c.Topic)
	hour := b.SampleDimension(DimHourBin, c.HourBin)
	cta := b.SampleDimension(DimCTAVariant, c.CTAVariant)
	intensity := b.SampleDimension(DimIntensity, c.Intensity)
	prob := pt.SampledProb * topic.SampledProb * hour.SampledProb * cta.SampledProb * intensity.SampledProb
	b.recordSample(prob)
	return Arm{
		PostType: pt.Value, Topic: topic.Value, HourBin: hour.Value,
		CTAVariant: cta.Value, Intensity: intensity.Value, SampledProb: prob,
	}
}

func (b *Bandit) uniformArm(c Candidates) Arm {
	b.mu.Lock()
	defer b.mu.Unlock()
	pick := func(xs []string) string {
		if len(xs) == 0 {
			return ""
		}
		return xs[b.rng.Intn(len(xs))]
	}
	arm := Arm{
		PostType: pick(c.PostType), Topic: pick(c.Topic), HourBin: pick(c.HourBin),
		CTAVariant: pick(c.CTAVariant), Intensity: pick(c.Intensity), SampledProb: 1.0 / 5.0,
	}
	b.recentProbLocked(arm.SampledProb)
	return arm
}

func (b *Bandit) recordSample(p float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recentProbLocked(p)
}

func (b *Bandit) recentProbLocked(p float64) {
	b.recentProb = append(b.recentProb, p)
	if len(b.recentProb) > 10 {
		b.recentProb = b.recentProb[len(b.recentProb)-10:]
	}
}

func (b *Bandit) shouldForceExplore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.recentProb) < 10 {
		return true
	}
	exploring := 0
	for _, p := range b.recentProb {
		if p < 0.5 {
			exploring++
		}
	}
	ratio := float64(exploring) / float64(len(b.recentProb))
	return ratio < epsilonFloor
}

// RecordOutcome sets alpha' = alpha + r, beta' = beta + (1-r), pulls'=pulls+1
// for the value used in each dimension of arm (P11). Updates are
// associative per-dimension so callers may fold multiple measurements.
func (b *Bandit) RecordOutcome(arm Arm, r float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateLocked(DimPostType, arm.PostType, r)
	b.updateLocked(DimTopic, arm.Topic, r)
	b.updateLocked(DimHourBin, arm.HourBin, r)
	b.updateLocked(DimCTAVariant, arm.CTAVariant, r)
	b.updateLocked(DimIntensity, arm.Intensity, r)
}

// RecordDimensionOutcome folds a reward into a single dimension's
// posterior, locking internally. Used by ActionBandit, which tracks a
// single top-level dimension rather than a full arm tuple.
func (b *Bandit) RecordDimensionOutcome(dim Dimension, value string, r float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateLocked(dim, value, r)
}

func (b *Bandit) updateLocked(dim Dimension, value string, r float64) {
	if value == "" {
		return
	}
	post := b.postFor(dim, value)
	post.Alpha += r
	post.Beta += 1 - r
	post.Pulls++
}

// DimensionMean exposes a dimension value's current posterior mean, used
// by tests and by the top-level action-type arm described in §4.7
// "Coupling with Selector".
func (b *Bandit) DimensionMean(dim Dimension, value string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.postFor(dim, value).Mean()
}

// SortedRecentProbs is exposed for tests asserting epsilon-floor behavior.
func (b *Bandit) SortedRecentProbs() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]float64(nil), b.recentProb...)
	sort.Float64s(out)
	return out
}
