// Package scheduler runs the job loop: each configured job fires on its
// own randomized interval (with jitter), at most one instance of a job
// runs at a time, and a nightly/weekly supplement job runs on a fixed
// cron expression (§4.2, §5).
package scheduler

import (
	"math/rand"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/dababiyoda/daleobanks/pkg/config"
)

// nextInterval picks a uniform random point in [Min,Max] and perturbs it
// by up to +/-Jitter, mirroring the job interval table in §4.2.
func nextInterval(iv config.JobInterval, rng *rand.Rand) time.Duration {
	span := iv.Max - iv.Min
	base := iv.Min
	if span > 0 {
		base += time.Duration(rng.Int63n(int64(span) + 1))
	}
	if iv.Jitter > 0 {
		j := time.Duration(rng.Int63n(int64(2*iv.Jitter)+1)) - iv.Jitter
		base += j
	}
	if base < 0 {
		base = 0
	}
	return base
}

// nextCronTime parses a standard 5-field cron expression (minute hour
// dom month dow) and returns the next fire time after now, following the
// teacher's ComputeNextRunAtMs "cron" branch.
func nextCronTime(expr string, loc *time.Location, now time.Time) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	parser := cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, false
	}
	next := sched.Next(now.In(loc))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
