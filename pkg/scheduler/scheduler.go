package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/config"
	"github.com/dababiyoda/daleobanks/pkg/logging"
)

// JobFunc is one job's body. It must return promptly once ctx is
// cancelled (§5 "Cancellation").
type JobFunc func(ctx context.Context) error

// Job is one interval-scheduled unit of work.
type Job struct {
	Name     string
	Interval config.JobInterval
	Run      JobFunc
}

// CronJob is one fixed-schedule supplement job (nightly reflection,
// weekly planning) expressed as a standard cron expression.
type CronJob struct {
	Name string
	Expr string
	Loc  *time.Location
	Run  JobFunc
}

// jobState tracks re-entrancy for one job: max_instances=1 means a job
// whose previous run hasn't finished is skipped, not queued (§5).
type jobState struct {
	mu      sync.Mutex
	running bool
}

func (s *jobState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *jobState) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Scheduler runs a fixed set of interval jobs and cron jobs cooperatively
// in one process, as independent goroutines sharing a cancellation
// context (§5 "Scheduling model").
type Scheduler struct {
	jobs     []Job
	cronJobs []CronJob
	rng      *rand.Rand

	wg     sync.WaitGroup
	cancel context.CancelFunc
	grace  time.Duration
}

// New builds a Scheduler. grace bounds how long Stop waits for in-flight
// job runs before abandoning them (§5 "Cancellation").
func New(jobs []Job, cronJobs []CronJob, seed int64, grace time.Duration) *Scheduler {
	return &Scheduler{jobs: jobs, cronJobs: cronJobs, rng: rand.New(rand.NewSource(seed)), grace: grace}
}

// Start launches every job's loop and returns immediately; call Stop to
// shut down gracefully.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, j := range s.jobs {
		j := j
		state := &jobState{}
		s.wg.Add(1)
		go s.runIntervalLoop(ctx, j, state)
	}
	for _, cj := range s.cronJobs {
		cj := cj
		state := &jobState{}
		s.wg.Add(1)
		go s.runCronLoop(ctx, cj, state)
	}
}

func (s *Scheduler) runIntervalLoop(ctx context.Context, j Job, state *jobState) {
	defer s.wg.Done()
	for {
		delay := nextInterval(j.Interval, s.rng)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if !state.tryAcquire() {
			logging.FromContext(ctx).Warn().Str("job", j.Name).Msg("skipping overlapping run, previous instance still in flight")
			continue
		}
		s.runOnce(ctx, j.Name, j.Run, state)
	}
}

func (s *Scheduler) runCronLoop(ctx context.Context, cj CronJob, state *jobState) {
	defer s.wg.Done()
	for {
		next, ok := nextCronTime(cj.Expr, cj.Loc, time.Now())
		if !ok {
			logging.FromContext(ctx).Error().Str("job", cj.Name).Str("expr", cj.Expr).Msg("invalid cron expression, job disabled")
			return
		}
		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if !state.tryAcquire() {
			logging.FromContext(ctx).Warn().Str("job", cj.Name).Msg("skipping overlapping cron run")
			continue
		}
		s.runOnce(ctx, cj.Name, cj.Run, state)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, name string, run JobFunc, state *jobState) {
	defer state.release()
	log := logging.FromContext(ctx).With().Str("job", name).Logger()
	log.Info().Msg("job starting")
	start := time.Now()
	if err := run(ctx); err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("job failed")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("job finished")
}

// Stop signals all job loops to stop accepting new runs, then waits up
// to the configured grace window for in-flight runs to finish before
// returning (§5 "Cancellation": "wait up to grace; force-abort remaining").
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.grace):
	}
}
