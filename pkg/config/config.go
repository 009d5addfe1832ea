// Package config loads the environment- and file-driven settings that
// steer core behavior. It intentionally does not pull in a framework
// config loader; the teacher's own bridge config is a plain struct
// populated from env vars plus a YAML file, and this follows the same
// shape.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GoalMode selects which weighting the global J-score optimizes for.
type GoalMode string

const (
	GoalFame      GoalMode = "FAME"
	GoalMonetize  GoalMode = "MONETIZE"
	GoalImpact    GoalMode = "IMPACT"
	GoalAuthority GoalMode = "AUTHORITY"
	GoalRevenue   GoalMode = "REVENUE"
)

// JobInterval is a [min,max] duration range with additive jitter, as in
// the scheduler table (§4.2).
type JobInterval struct {
	Min    time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// GoalWeights are the alpha/beta/gamma/lambda coefficients for one goal
// mode's J-score normalization.
type GoalWeights struct {
	Alpha  float64
	Beta   float64
	Gamma  float64
	Lambda float64
}

// Config is the single process-wide settings object, constructed once at
// startup and passed by reference — never a package-level mutable map.
type Config struct {
	Live      bool
	GoalMode  GoalMode
	QuietHourStart int // 0..23, inclusive, wraps midnight
	QuietHourEnd   int

	AdaptiveIntensity bool
	MinIntensity      int
	MaxIntensity      int
	RagebaitGuard     bool

	EvidenceWhitelist []string // host suffixes, e.g. ".gov", ".edu"

	GoalWeights map[GoalMode]GoalWeights

	PlatformEnabled map[string]bool
	PlatformWeight  map[string]float64
	PublishMode     string // broadcast | single | weighted

	ImpactWeeklyFloor float64

	CircuitBreakerThreshold int
	CircuitBreakerReset     time.Duration
	MaxWriteAttempts        int
	MaxBackoffSeconds       int

	Jobs map[string]JobInterval

	CrisisSignalThreshold float64
	CrisisResumeThreshold float64
	CrisisCalmingPlatform string // "" = broadcast to all enabled

	RevenuePerClick float64
	FameEngagementMean float64
	FameEngagementStd  float64
	FameFollowerMean   float64
	FameFollowerStd    float64

	PersonaPath   string
	VoicesPath    string
	DBPath        string
	LLMBudgetPerHour int
	LLMBudgetPerDay  int

	HTTPWriteTimeout time.Duration
}

// Default returns the configuration described in spec.md §4.2/§6, before
// any environment overrides are applied.
func Default() *Config {
	return &Config{
		Live:           false,
		GoalMode:       GoalImpact,
		QuietHourStart: 23,
		QuietHourEnd:   6,

		AdaptiveIntensity: true,
		MinIntensity:      0,
		MaxIntensity:      5,
		RagebaitGuard:     true,

		EvidenceWhitelist: []string{".gov", ".edu", ".reuters.com", ".apnews.com", ".bbc.co.uk", ".bbc.com"},

		GoalWeights: map[GoalMode]GoalWeights{
			GoalFame:      {Alpha: 0.5, Beta: 0.2, Gamma: 0.2, Lambda: 0.3},
			GoalMonetize:  {Alpha: 0.2, Beta: 0.5, Gamma: 0.1, Lambda: 0.3},
			GoalImpact:    {Alpha: 0.2, Beta: 0.1, Gamma: 0.5, Lambda: 0.3},
			GoalAuthority: {Alpha: 0.3, Beta: 0.1, Gamma: 0.3, Lambda: 0.4},
			GoalRevenue:   {Alpha: 0.15, Beta: 0.6, Gamma: 0.1, Lambda: 0.3},
		},

		PlatformEnabled: map[string]bool{"x": true, "mastodon": false, "linkedin": false},
		PlatformWeight:  map[string]float64{"x": 1.0, "mastodon": 0.5, "linkedin": 0.3},
		PublishMode:     "broadcast",

		ImpactWeeklyFloor: 20,

		CircuitBreakerThreshold: 5,
		CircuitBreakerReset:     5 * time.Minute,
		MaxWriteAttempts:        5,
		MaxBackoffSeconds:       60,

		Jobs: map[string]JobInterval{
			"post_proposal":      {Min: 45 * time.Minute, Max: 90 * time.Minute, Jitter: 5 * time.Minute},
			"reply_mentions":     {Min: 12 * time.Minute, Max: 25 * time.Minute, Jitter: 2 * time.Minute},
			"search_engage":      {Min: 25 * time.Minute, Max: 45 * time.Minute, Jitter: 3 * time.Minute},
			"post_thread":        {Min: 240 * time.Minute, Max: 360 * time.Minute, Jitter: 7 * time.Minute},
			"value_dm":           {Min: 180 * time.Minute, Max: 300 * time.Minute, Jitter: 6 * time.Minute},
			"perception_ingest":  {Min: 15 * time.Minute, Max: 15 * time.Minute, Jitter: 1 * time.Minute},
			"crisis_watch":       {Min: 5 * time.Minute, Max: 5 * time.Minute, Jitter: 30 * time.Second},
			"analytics_pull":     {Min: 35 * time.Minute, Max: 60 * time.Minute, Jitter: 5 * time.Minute},
			"kpi_rollup":         {Min: 60 * time.Minute, Max: 90 * time.Minute, Jitter: 10 * time.Minute},
		},

		CrisisSignalThreshold: 12.0,
		CrisisResumeThreshold: 6.0,
		CrisisCalmingPlatform: "",

		RevenuePerClick:    0.05,
		FameEngagementMean: 100,
		FameEngagementStd:  50,
		FameFollowerMean:   10,
		FameFollowerStd:    20,

		PersonaPath:      "data/persona.json",
		VoicesPath:       "data/voices.yaml",
		DBPath:           "data/daleobanks.db",
		LLMBudgetPerHour: 40,
		LLMBudgetPerDay:  300,

		HTTPWriteTimeout: 15 * time.Second,
	}
}

// LoadFromEnv overlays environment variable overrides onto a Default()
// config, following the flat-env-var convention of the teacher's bridge
// config rather than introducing a new config framework.
func LoadFromEnv(c *Config) *Config {
	if v, ok := os.LookupEnv("LIVE"); ok {
		c.Live = parseBool(v, c.Live)
	}
	if v, ok := os.LookupEnv("GOAL_MODE"); ok {
		c.GoalMode = GoalMode(strings.ToUpper(strings.TrimSpace(v)))
	}
	if v, ok := os.LookupEnv("PERSONA_PATH"); ok && v != "" {
		c.PersonaPath = v
	}
	if v, ok := os.LookupEnv("VOICES_PATH"); ok && v != "" {
		c.VoicesPath = v
	}
	if v, ok := os.LookupEnv("DB_PATH"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv("RAGEBAIT_GUARD"); ok {
		c.RagebaitGuard = parseBool(v, c.RagebaitGuard)
	}
	if v, ok := os.LookupEnv("ADAPTIVE_INTENSITY"); ok {
		c.AdaptiveIntensity = parseBool(v, c.AdaptiveIntensity)
	}
	if v, ok := os.LookupEnv("EVIDENCE_WHITELIST"); ok && v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		c.EvidenceWhitelist = out
	}
	if v, ok := os.LookupEnv("PUBLISH_MODE"); ok && v != "" {
		c.PublishMode = v
	}
	return c
}

func parseBool(raw string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return b
}
