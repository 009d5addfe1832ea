// Package platform defines the unified platform-adapter write contract
// (§4.8): idempotency caching, per-endpoint circuit breakers and
// exponential-backoff retries, following the shape of the teacher's thin
// bridgeadapter.Adapter wrapping a concrete transport.
package platform

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// WriteRequest is everything one adapter write needs.
type WriteRequest struct {
	Kind        models.PostKind
	Text        string
	Intensity   int
	InReplyTo   string
	QuoteTo     string
	MediaIDs    []string
	Metadata    map[string]string
	Idempotency string // idempotency key, caller-supplied (e.g. hash of content+target)
}

// Transport is the thin per-platform API surface an Adapter drives; each
// concrete platform (X, Mastodon, LinkedIn) implements this against its
// own SDK/HTTP client.
type Transport interface {
	Name() string
	CreatePost(ctx context.Context, req WriteRequest) (platformPostID string, err error)
	UploadMedia(ctx context.Context, data []byte, mimeType string) (mediaID string, err error)
}

// RateLimitError marks a transient-remote error that should be retried
// with backoff rather than opening the circuit breaker immediately.
type RateLimitError struct{ Err error }

func (e *RateLimitError) Error() string { return fmt.Sprintf("rate limited: %v", e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

// Adapter owns one platform's idempotency cache and circuit breaker
// exclusively (§3, §5); nothing else may mutate them.
type Adapter struct {
	platform models.Platform
	endpoint string
	transport Transport

	live    func() bool // reads the global LIVE toggle live
	mu      sync.Mutex
	idemCache map[string]models.Receipt
	breaker   CircuitBreaker

	maxAttempts int
	maxBackoffSeconds int
	nowFn       func() time.Time
	sleepFn     func(time.Duration)
}

// NewAdapter constructs an Adapter. live is consulted on every Write so
// flipping LIVE=off takes effect immediately (§5 "Live toggle").
func NewAdapter(platform models.Platform, endpoint string, transport Transport, live func() bool, threshold int, reset time.Duration, maxAttempts, maxBackoffSeconds int) *Adapter {
	return &Adapter{
		platform:  platform,
		endpoint:  endpoint,
		transport: transport,
		live:      live,
		idemCache: make(map[string]models.Receipt),
		breaker:   NewCircuitBreaker(threshold, reset),
		maxAttempts: maxAttempts,
		maxBackoffSeconds: maxBackoffSeconds,
		nowFn: time.Now,
		sleepFn: time.Sleep,
	}
}

// ClearIdempotencyCache is called when LIVE flips off->on again, to avoid
// stale entries from the dry-run period blocking a real resume (§5).
func (a *Adapter) ClearIdempotencyCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.idemCache = make(map[string]models.Receipt)
}

// Write implements the five-step semantics of §4.8.
func (a *Adapter) Write(ctx context.Context, req WriteRequest) (models.Receipt, error) {
	// 1. Feature/LIVE toggle off -> dry-run receipt with a deterministic id.
	if a.live == nil || !a.live() {
		return a.dryRunReceipt(req), nil
	}

	// 2. Idempotency cache check.
	if req.Idempotency != "" {
		a.mu.Lock()
		if cached, ok := a.idemCache[req.Idempotency]; ok {
			a.mu.Unlock()
			return cached, nil
		}
		a.mu.Unlock()
	}

	// 3. Circuit breaker check.
	if a.breaker.Open(a.nowFn()) {
		return models.Receipt{Platform: a.platform, DryRun: true, Meta: map[string]string{"reason": "circuit_open"}}, nil
	}

	// 4. Upload media before the write.
	for i, mediaRef := range req.MediaIDs {
		if len(mediaRef) > 0 && mediaRef[0] == '@' {
			// '@' prefix marks an unresolved raw-media placeholder in this
			// simplified contract; real callers resolve bytes beforehand.
			req.MediaIDs[i] = mediaRef[1:]
		}
	}

	// 5. Attempt up to maxAttempts with backoff on rate-limit errors.
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		postID, err := a.transport.CreatePost(ctx, req)
		if err == nil {
			a.breaker.RecordSuccess()
			receipt := models.Receipt{Platform: a.platform, PostID: postID, DryRun: false, Meta: map[string]string{"endpoint": a.endpoint}}
			if req.Idempotency != "" {
				a.mu.Lock()
				a.idemCache[req.Idempotency] = receipt
				a.mu.Unlock()
			}
			return receipt, nil
		}
		lastErr = err
		var rl *RateLimitError
		if isRateLimit(err, &rl) {
			backoff := backoffDuration(attempt, a.maxBackoffSeconds)
			a.sleepFn(backoff)
			continue
		}
		// Persistent-remote error: do not retry, record failure, stop.
		a.breaker.RecordFailure(a.nowFn())
		return models.Receipt{Platform: a.platform, DryRun: true, Meta: map[string]string{"reason": "write_failed"}}, lastErr
	}
	// Retries exhausted on a transient-remote (rate-limit) error: still
	// counts toward the breaker, once, same as a persistent failure.
	a.breaker.RecordFailure(a.nowFn())
	return models.Receipt{Platform: a.platform, DryRun: true, Meta: map[string]string{"reason": "write_failed"}}, lastErr
}

func isRateLimit(err error, out **RateLimitError) bool {
	rl, ok := err.(*RateLimitError)
	if ok {
		*out = rl
	}
	return ok
}

// backoffDuration implements "sleep min(60, 2^attempt + rand[0,1))" (§4.8).
func backoffDuration(attempt, maxSeconds int) time.Duration {
	secs := float64(uint(1) << uint(attempt))
	secs += jitterFraction()
	if secs > float64(maxSeconds) {
		secs = float64(maxSeconds)
	}
	return time.Duration(secs * float64(time.Second))
}

func jitterFraction() float64 {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	v := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return float64(v) / float64(^uint32(0))
}

func (a *Adapter) dryRunReceipt(req WriteRequest) models.Receipt {
	return models.Receipt{
		Platform: a.platform,
		PostID:   fmt.Sprintf("%s:%s/md_dry_%s", a.platform, req.Kind, randomSuffix()),
		DryRun:   true,
		Meta:     map[string]string{"endpoint": a.endpoint},
	}
}

func randomSuffix() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
