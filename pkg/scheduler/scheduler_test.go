package scheduler

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/config"
)

func TestIntervalJobRunsRepeatedlyAndStopsOnCancel(t *testing.T) {
	var count int64
	job := Job{
		Name:     "tick",
		Interval: config.JobInterval{Min: 5 * time.Millisecond, Max: 5 * time.Millisecond},
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		},
	}
	s := New([]Job{job}, nil, 1, 200*time.Millisecond)
	s.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	s.Stop()
	if atomic.LoadInt64(&count) < 2 {
		t.Fatalf("expected job to run at least twice in 60ms at a 5ms interval, got %d", count)
	}
}

func TestMaxInstancesOneSkipsOverlappingRun(t *testing.T) {
	var running int64
	var maxObserved int64
	job := Job{
		Name:     "slow",
		Interval: config.JobInterval{Min: time.Millisecond, Max: time.Millisecond},
		Run: func(ctx context.Context) error {
			cur := atomic.AddInt64(&running, 1)
			for {
				old := atomic.LoadInt64(&maxObserved)
				if cur <= old || atomic.CompareAndSwapInt64(&maxObserved, old, cur) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt64(&running, -1)
			return nil
		},
	}
	s := New([]Job{job}, nil, 1, 500*time.Millisecond)
	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	if atomic.LoadInt64(&maxObserved) > 1 {
		t.Fatalf("expected at most one instance in flight at a time, observed %d", maxObserved)
	}
}

func TestNextIntervalWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	iv := config.JobInterval{Min: 10 * time.Second, Max: 20 * time.Second, Jitter: 2 * time.Second}
	for i := 0; i < 50; i++ {
		d := nextInterval(iv, rng)
		if d < 8*time.Second || d > 22*time.Second {
			t.Fatalf("interval %v out of expected jittered bounds", d)
		}
	}
}

func TestNextCronTimeParsesStandardExpr(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next, ok := nextCronTime("0 3 * * *", time.UTC, now)
	if !ok {
		t.Fatal("expected valid cron expression to parse")
	}
	if next.Hour() != 3 || next.Minute() != 0 {
		t.Fatalf("expected next run at 03:00, got %v", next)
	}
}
