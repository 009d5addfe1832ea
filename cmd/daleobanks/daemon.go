package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/analytics"
	"github.com/dababiyoda/daleobanks/pkg/bandit"
	"github.com/dababiyoda/daleobanks/pkg/config"
	"github.com/dababiyoda/daleobanks/pkg/crisis"
	"github.com/dababiyoda/daleobanks/pkg/generator"
	"github.com/dababiyoda/daleobanks/pkg/idgen"
	"github.com/dababiyoda/daleobanks/pkg/llm"
	"github.com/dababiyoda/daleobanks/pkg/logging"
	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/perception"
	"github.com/dababiyoda/daleobanks/pkg/persona"
	"github.com/dababiyoda/daleobanks/pkg/publisher"
	"github.com/dababiyoda/daleobanks/pkg/selector"
	"github.com/dababiyoda/daleobanks/pkg/store"
)

// daemon owns every wired component and the small bits of in-memory
// state (last-action cooldowns, the latest perception snapshot) that
// tie otherwise-independent scheduled jobs together.
type daemon struct {
	cfg        *config.Config
	store      *store.Store
	persona    *persona.Store
	llmClient  *llm.Client
	gen        *generator.Generator
	contentBandit *bandit.Bandit
	actionBandit  *bandit.ActionBandit
	rewardWindow  *bandit.RollingWindow
	crisis     *crisis.Service
	pub        *publisher.Multiplexer
	selector   *selector.Selector
	planner    *selector.Planner
	perception *perception.Service
	voices     []perception.Voice

	mu             sync.Mutex
	lastAction     map[models.ActionType]time.Time
	lastDM         map[string]time.Time
	lastMentions   []string
	lastSearch     []string
	lastMetrics    models.CrisisMetrics
}

func newDaemon(cfg *config.Config, st *store.Store, ps *persona.Store, llmClient *llm.Client,
	gen *generator.Generator, contentBandit *bandit.Bandit, actionBandit *bandit.ActionBandit,
	crisisSvc *crisis.Service, pub *publisher.Multiplexer, sel *selector.Selector,
	perceptionSvc *perception.Service, voices []perception.Voice) *daemon {
	return &daemon{
		cfg: cfg, store: st, persona: ps, llmClient: llmClient, gen: gen,
		contentBandit: contentBandit, actionBandit: actionBandit, rewardWindow: bandit.NewRollingWindow(200),
		crisis: crisisSvc, pub: pub, selector: sel, planner: selector.NewPlanner(st, ps),
		perception: perceptionSvc, voices: voices,
		lastAction: make(map[models.ActionType]time.Time),
		lastDM:     make(map[string]time.Time),
	}
}

// tick runs one selector decision scoped to a single job's action type:
// the scheduler fires this job on its own cadence, but the actual
// decision of whether to act still goes through the shared selector so
// persona drives, quiet hours and crisis guard all apply uniformly.
func (d *daemon) tick(ctx context.Context, want models.ActionType) error {
	log := logging.FromContext(ctx)
	p, err := d.persona.Current()
	if err != nil {
		return fmt.Errorf("daemon: loading persona: %w", err)
	}

	d.mu.Lock()
	lastAction := make(map[models.ActionType]time.Time, len(d.lastAction))
	for k, v := range d.lastAction {
		lastAction[k] = v
	}
	metrics := d.lastMetrics
	d.mu.Unlock()

	sig := selector.Signals{
		CrisisSignal: metrics.Signal(),
		CrisisActive: d.crisis.State().Active,
	}
	decision := d.selector.Select(p, lastAction, sig)
	if decision.Action != want {
		log.Debug().Str("wanted", string(want)).Str("chosen", string(decision.Action)).Msg("selector chose a different action, skipping this slot")
		return nil
	}

	d.mu.Lock()
	d.lastAction[want] = time.Now()
	d.mu.Unlock()

	return d.performAction(ctx, decision)
}

func (d *daemon) performAction(ctx context.Context, decision selector.Decision) error {
	switch decision.Action {
	case models.ActionPostProposal:
		return d.draftAndPublish(ctx, decision, models.KindProposal, "")
	case models.ActionReplyMentions:
		d.mu.Lock()
		ctxText := firstOr(d.lastMentions, "")
		d.mu.Unlock()
		if ctxText == "" {
			logging.FromContext(ctx).Debug().Msg("no cached mention to reply to, skipping")
			return nil
		}
		return d.draftAndPublish(ctx, decision, models.KindReply, ctxText)
	case models.ActionSearchEngage:
		d.mu.Lock()
		ctxText := firstOr(d.lastSearch, "")
		d.mu.Unlock()
		if ctxText == "" {
			logging.FromContext(ctx).Debug().Msg("no cached search result to engage, skipping")
			return nil
		}
		return d.draftAndPublish(ctx, decision, models.KindQuote, ctxText)
	case models.ActionPostThread:
		return d.draftAndPublishThread(ctx, decision)
	case models.ActionSendValueDM:
		return d.sendValueDM(ctx, decision)
	case models.ActionRest:
		logging.FromContext(ctx).Debug().Time("next_check", decision.NextCheck).Msg("resting")
		return nil
	default:
		return fmt.Errorf("daemon: unhandled action %s", decision.Action)
	}
}

func firstOr(xs []string, def string) string {
	if len(xs) == 0 {
		return def
	}
	return xs[0]
}

func (d *daemon) draftAndPublish(ctx context.Context, decision selector.Decision, kind models.PostKind, replyContext string) error {
	req := generator.Request{
		Kind:              kind,
		Topic:             decision.Arm.Topic,
		Intensity:         decision.Intensity,
		ReplyContext:      replyContext,
		PlatformCharLimit: 280,
		CTAVariant:        decision.Arm.CTAVariant,
	}
	res, err := d.gen.Draft(ctx, req)
	if err != nil {
		return fmt.Errorf("daemon: drafting %s: %w", kind, err)
	}

	content := publisher.Content{
		Text:        res.Text,
		Kind:        kind,
		Intensity:   req.Intensity,
		Idempotency: idgen.UUID(),
	}
	receipts, err := d.pub.Publish(ctx, content)
	if err != nil {
		return fmt.Errorf("daemon: publishing %s: %w", kind, err)
	}
	return d.recordPost(ctx, decision, kind, req, res.Text, receipts)
}

func (d *daemon) recordPost(ctx context.Context, decision selector.Decision, kind models.PostKind, req generator.Request, text string, receipts map[models.Platform]models.Receipt) error {
	now := time.Now()
	var primaryID string
	for platformName := range receipts {
		post := models.Post{
			ID:         idgen.XID(),
			Platform:   platformName,
			Kind:       kind,
			Text:       text,
			Topic:      req.Topic,
			HourBin:    now.Hour(),
			CTAVariant: req.CTAVariant,
			Intensity:  req.Intensity,
			CreatedAt:  now,
		}
		if err := d.store.InsertPost(ctx, post); err != nil {
			return fmt.Errorf("daemon: inserting post: %w", err)
		}
		if primaryID == "" {
			primaryID = post.ID
		}
	}
	if primaryID == "" {
		return nil
	}

	arm := models.ArmSelection{
		ID:          idgen.XID(),
		PostID:      primaryID,
		PostType:    decision.Action,
		Topic:       req.Topic,
		HourBin:     now.Hour(),
		CTAVariant:  req.CTAVariant,
		Intensity:   req.Intensity,
		SampledProb: decision.SampledProb,
		CreatedAt:   now,
	}
	if err := d.store.InsertArmSelection(ctx, arm); err != nil {
		return fmt.Errorf("daemon: inserting arm selection: %w", err)
	}

	for _, o := range analytics.ExtractStructuredOutcomes(primaryID, text) {
		o.ID = idgen.XID()
		o.CreatedAt = now
		if err := d.store.InsertStructuredOutcome(ctx, o); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("recording structured outcome")
		}
	}
	return nil
}

func (d *daemon) draftAndPublishThread(ctx context.Context, decision selector.Decision) error {
	segments, err := d.gen.DraftThread(ctx, generator.ThreadRequest{
		Topic:             decision.Arm.Topic,
		Intensity:         decision.Intensity,
		PlatformCharLimit: 280,
	})
	if err != nil {
		return fmt.Errorf("daemon: drafting thread: %w", err)
	}

	now := time.Now()
	var primaryID, inReplyTo string
	for i, seg := range segments {
		kind := models.KindThreadSegment
		if i == 0 {
			kind = models.KindThreadRoot
		}
		content := publisher.Content{
			Text:        seg.Text,
			Kind:        kind,
			Intensity:   decision.Intensity,
			InReplyTo:   inReplyTo,
			Idempotency: idgen.UUID(),
		}
		receipts, err := d.pub.Publish(ctx, content)
		if err != nil {
			return fmt.Errorf("daemon: publishing thread segment %d: %w", i, err)
		}
		for platformName, receipt := range receipts {
			post := models.Post{
				ID:        idgen.XID(),
				Platform:  platformName,
				Kind:      kind,
				Text:      seg.Text,
				Topic:     decision.Arm.Topic,
				HourBin:   now.Hour(),
				Intensity: decision.Intensity,
				CreatedAt: now,
			}
			if err := d.store.InsertPost(ctx, post); err != nil {
				return fmt.Errorf("daemon: inserting thread post: %w", err)
			}
			if primaryID == "" {
				primaryID = post.ID
			}
			inReplyTo = receipt.PostID
		}
	}
	if primaryID == "" {
		return nil
	}
	arm := models.ArmSelection{
		ID: idgen.XID(), PostID: primaryID, PostType: decision.Action, Topic: decision.Arm.Topic,
		HourBin: now.Hour(), CTAVariant: decision.Arm.CTAVariant, Intensity: decision.Intensity,
		SampledProb: decision.SampledProb, CreatedAt: now,
	}
	return d.store.InsertArmSelection(ctx, arm)
}

// sendValueDM drafts a short value-offer message for the next eligible
// whitelisted voice. None of the three platform.Transport
// implementations expose a direct-message endpoint, so this logs the
// draft and records the per-target cooldown rather than inventing a DM
// transport the spec's platforms don't define.
func (d *daemon) sendValueDM(ctx context.Context, decision selector.Decision) error {
	d.mu.Lock()
	candidates := make([]selector.DMTarget, 0, len(d.voices))
	for _, v := range d.voices {
		candidates = append(candidates, selector.DMTarget{Username: v.Username, AuthorityWeight: v.Weight})
	}
	lastDM := make(map[string]time.Time, len(d.lastDM))
	for k, v := range d.lastDM {
		lastDM[k] = v
	}
	d.mu.Unlock()

	target, ok := selector.SelectDMTarget(candidates, lastDM, time.Now())
	if !ok {
		logging.FromContext(ctx).Debug().Msg("no eligible DM target this cycle")
		return nil
	}

	messages := []llm.Message{{Role: "user", Content: fmt.Sprintf(
		"Draft a two-sentence direct message to @%s offering a concrete collaboration or pilot, no generic flattery.", target.Username)}}
	text, _, err := d.llmClient.Chat(ctx, "value_dm", "Be specific and brief.", messages, 0.6, 300)
	if err != nil {
		return fmt.Errorf("daemon: drafting value DM: %w", err)
	}

	logging.FromContext(ctx).Info().Str("target", target.Username).Str("text", text).Msg("drafted value DM")
	d.mu.Lock()
	d.lastDM[target.Username] = time.Now()
	d.mu.Unlock()
	return nil
}

// ingestTick runs one perception fetch, caches the fresh mention/search
// text for the reply/search-engage jobs, and feeds the derived crisis
// metrics to the crisis service.
func (d *daemon) ingestTick(ctx context.Context) error {
	event, metrics, err := d.perception.Tick(ctx, perception.DefaultLimits())
	if err != nil {
		return fmt.Errorf("daemon: perception tick: %w", err)
	}

	d.mu.Lock()
	d.lastMetrics = metrics
	d.lastMentions = extractTexts(event.Payload, "mentions")
	d.lastSearch = extractTexts(event.Payload, "trending_topics")
	d.mu.Unlock()
	return nil
}

func extractTexts(payload map[string]any, field string) []string {
	x, ok := payload["x"].(map[string]any)
	if !ok {
		return nil
	}
	texts, ok := x[field].([]string)
	if !ok {
		return nil
	}
	return texts
}

func (d *daemon) crisisWatchTick(ctx context.Context) error {
	d.mu.Lock()
	metrics := d.lastMetrics
	d.mu.Unlock()
	return d.crisis.UpdateMetrics(metrics, d.pub)
}

// analyticsPullTick scores every post still awaiting a reward, folding
// its J-score into the reward-percentile window and both bandits.
func (d *daemon) analyticsPullTick(ctx context.Context) error {
	pending, err := d.store.UnrewardedArms(ctx)
	if err != nil {
		return fmt.Errorf("daemon: listing unrewarded arms: %w", err)
	}
	lambda := analytics.GoalModeLambda(d.cfg, d.cfg.GoalMode)

	for _, arm := range pending {
		post, err := d.store.GetPost(ctx, arm.PostID)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("post_id", arm.PostID).Msg("skipping reward for missing post")
			continue
		}
		if post.JScore == nil {
			outcomes := analytics.ExtractStructuredOutcomes(post.ID, post.Text)
			counts := analytics.CountOutcomes(outcomes)
			impact := analytics.ImpactScore(counts, analytics.DefaultImpactWeights())
			engagement := analytics.EngagementProxy(post.Engagement)
			j := analytics.PostJScore(engagement, impact, analytics.Penalty(0, 0, 0, 0), lambda)
			if err := d.store.SetJScore(ctx, post.ID, j); err != nil {
				return fmt.Errorf("daemon: setting j-score: %w", err)
			}
			post.JScore = &j
		}

		reward := d.rewardWindow.Percentile(*post.JScore)
		if err := d.store.SetReward(ctx, arm.PostID, reward); err != nil {
			return fmt.Errorf("daemon: setting reward: %w", err)
		}
		d.contentBandit.RecordOutcome(bandit.Arm{
			PostType:   string(arm.PostType),
			Topic:      arm.Topic,
			HourBin:    strconv.Itoa(arm.HourBin),
			CTAVariant: arm.CTAVariant,
			Intensity:  strconv.Itoa(arm.Intensity),
		}, reward)
		d.actionBandit.RecordOutcome(arm.PostType, reward)
	}
	return nil
}

// kpiRollupTick computes the trailing day's global J-score components
// and persists one snapshot row.
func (d *daemon) kpiRollupTick(ctx context.Context) error {
	now := time.Now()
	start := now.Add(-24 * time.Hour)

	posts, err := d.store.PostsInWindow(ctx, start, now)
	if err != nil {
		return fmt.Errorf("daemon: posts in window: %w", err)
	}
	redirects, err := d.store.RedirectsInWindow(ctx)
	if err != nil {
		return fmt.Errorf("daemon: redirects in window: %w", err)
	}
	outcomes, err := d.store.OutcomesInWindow(ctx, start, now)
	if err != nil {
		return fmt.Errorf("daemon: outcomes in window: %w", err)
	}

	// Follower-delta tracking needs a dedicated follower-count source;
	// none of the wired perception sources expose it, so fame scoring
	// runs on engagement alone until one is added.
	fame := analytics.FameScore(posts, 0, d.cfg)
	revenue := analytics.RevenuePerDay(redirects, d.cfg.RevenuePerClick)
	authority := analytics.AuthorityScore(posts)
	impact := analytics.ImpactScore(analytics.CountOutcomes(outcomes), analytics.DefaultImpactWeights())
	penalty := analytics.Penalty(0, 0, 0, 0)
	globalJ := analytics.GlobalJScore(d.cfg, fame, revenue, authority, impact, penalty)

	return d.store.InsertKPISnapshot(ctx, idgen.XID(), start, now, now, fame, revenue, authority, penalty, impact, globalJ)
}

// nightlyReflectionTick summarizes the trailing day into one persona
// improvement note.
func (d *daemon) nightlyReflectionTick(ctx context.Context) error {
	_, err := generator.Reflect(ctx, d.store, d.persona, d.llmClient, time.Now())
	return err
}

// weeklyPlanTick nudges the persona's drive weights from the trailing
// week's per-kind performance.
func (d *daemon) weeklyPlanTick(ctx context.Context) error {
	_, err := d.planner.Plan(ctx)
	return err
}
