// Command daleobanks runs the autonomous social-media agent: one
// process owning the scheduler, persona store, content generator,
// bandits, crisis guard and multi-platform publisher described in
// pkg/*, wired here the way the teacher's cmd/ai-bridge wires its
// bridge components — short, construct-then-run, no framework.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/bandit"
	"github.com/dababiyoda/daleobanks/pkg/config"
	"github.com/dababiyoda/daleobanks/pkg/crisis"
	"github.com/dababiyoda/daleobanks/pkg/generator"
	"github.com/dababiyoda/daleobanks/pkg/logging"
	"github.com/dababiyoda/daleobanks/pkg/perception"
	"github.com/dababiyoda/daleobanks/pkg/persona"
	"github.com/dababiyoda/daleobanks/pkg/publisher"
	"github.com/dababiyoda/daleobanks/pkg/scheduler"
	"github.com/dababiyoda/daleobanks/pkg/selector"
	"github.com/dababiyoda/daleobanks/pkg/store"
)

func main() {
	cfg := config.LoadFromEnv(config.Default())

	pretty := os.Getenv("LOG_FILE") == ""
	logger := logging.New(os.Getenv("LOG_FILE"), pretty)
	ctx := logging.WithLogger(context.Background(), logger)

	if err := os.MkdirAll(dirOf(cfg.DBPath), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("creating data directory")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening store")
	}
	defer db.Close()

	personaStore, err := persona.NewStore(cfg.PersonaPath, seedPersona())
	if err != nil {
		logger.Fatal().Err(err).Msg("opening persona store")
	}

	voices, err := perception.LoadVoices(cfg.VoicesPath)
	if err != nil {
		logger.Warn().Err(err).Msg("voices file unavailable, starting with an empty whitelist")
		voices = nil
	}

	llmClient := buildLLMClient(cfg)
	evidence := perception.NewEvidenceFetcher(perception.DefaultEvidenceConfig())
	gen := generator.New(personaStore, db, llmClient, cfg.EvidenceWhitelist, resolveHostVia(evidence))

	seed := time.Now().UnixNano()
	contentBandit := bandit.New(seed)
	actionBandit := bandit.NewActionBandit(seed + 1)
	crisisSvc := crisis.NewService(cfg.CrisisSignalThreshold, cfg.CrisisResumeThreshold)

	targets := buildPublishTargets(cfg)
	pub := publisher.NewMultiplexer(publisher.RoutingMode(cfg.PublishMode), targets, seed+2)

	sel := selector.New(actionBandit, contentBandit, crisisSvc, quietHoursFunc(cfg), minIntervalFromJobs(cfg), cfg.CrisisSignalThreshold, seed+3)

	perceptionSvc, err := buildPerceptionService(cfg, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("wiring perception service")
	}

	app := newDaemon(cfg, db, personaStore, llmClient, gen, contentBandit, actionBandit, crisisSvc, pub, sel, perceptionSvc, voices)

	sched := scheduler.New(app.buildJobs(), app.buildCronJobs(), seed+4, 30*time.Second)
	sched.Start(ctx)
	logger.Info().Bool("live", cfg.Live).Str("goal_mode", string(cfg.GoalMode)).Msg("daleobanks running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received, draining in-flight jobs")
	sched.Stop()
	logger.Info().Msg("shutdown complete")
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// resolveHostVia adapts perception.EvidenceFetcher's ctx/error-returning
// ResolveHost to the generator's plain resolveHost callback, so the
// receipts gate can fall back to the canonical host after redirects
// (e.g. a shortened link) instead of only the literal URL in the draft.
func resolveHostVia(f *perception.EvidenceFetcher) func(string) (string, bool) {
	return func(rawURL string) (string, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		host, err := f.ResolveHost(ctx, rawURL)
		return host, err == nil
	}
}
