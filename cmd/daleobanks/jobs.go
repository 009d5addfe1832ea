package main

import (
	"context"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/scheduler"
)

// buildJobs maps each config-driven interval job to the action type it
// represents (or, for the three non-selector jobs, to its own tick
// method).
func (d *daemon) buildJobs() []scheduler.Job {
	want := func(action models.ActionType) scheduler.JobFunc {
		return func(ctx context.Context) error { return d.tick(ctx, action) }
	}
	return []scheduler.Job{
		{Name: "post_proposal", Interval: d.cfg.Jobs["post_proposal"], Run: want(models.ActionPostProposal)},
		{Name: "reply_mentions", Interval: d.cfg.Jobs["reply_mentions"], Run: want(models.ActionReplyMentions)},
		{Name: "search_engage", Interval: d.cfg.Jobs["search_engage"], Run: want(models.ActionSearchEngage)},
		{Name: "post_thread", Interval: d.cfg.Jobs["post_thread"], Run: want(models.ActionPostThread)},
		{Name: "value_dm", Interval: d.cfg.Jobs["value_dm"], Run: want(models.ActionSendValueDM)},
		{Name: "perception_ingest", Interval: d.cfg.Jobs["perception_ingest"], Run: d.ingestTick},
		{Name: "crisis_watch", Interval: d.cfg.Jobs["crisis_watch"], Run: d.crisisWatchTick},
		{Name: "analytics_pull", Interval: d.cfg.Jobs["analytics_pull"], Run: d.analyticsPullTick},
		{Name: "kpi_rollup", Interval: d.cfg.Jobs["kpi_rollup"], Run: d.kpiRollupTick},
	}
}

// buildCronJobs wires the two fixed-schedule supplements: a nightly
// reflection note just after midnight, and a weekly drive-weight
// adjustment early Sunday morning.
func (d *daemon) buildCronJobs() []scheduler.CronJob {
	return []scheduler.CronJob{
		{Name: "nightly_reflection", Expr: "17 0 * * *", Loc: time.UTC, Run: d.nightlyReflectionTick},
		{Name: "weekly_plan", Expr: "23 3 * * 0", Loc: time.UTC, Run: d.weeklyPlanTick},
	}
}
