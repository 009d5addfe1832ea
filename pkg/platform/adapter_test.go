package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

type fakeTransport struct {
	name    string
	calls   int
	fail    error
	postIDs []string
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) CreatePost(ctx context.Context, req WriteRequest) (string, error) {
	f.calls++
	if f.fail != nil {
		return "", f.fail
	}
	return "post-" + string(rune('a'+f.calls)), nil
}

func (f *fakeTransport) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	return "media-1", nil
}

func alwaysLive() bool { return true }
func neverLive() bool  { return false }

func TestWriteDryRunWhenNotLive(t *testing.T) {
	tr := &fakeTransport{name: "x"}
	a := NewAdapter(models.PlatformX, "/tweets", tr, neverLive, 3, time.Minute, 3, 60)
	r, err := a.Write(context.Background(), WriteRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !r.DryRun {
		t.Fatal("expected dry-run receipt when not live")
	}
	if tr.calls != 0 {
		t.Fatalf("expected transport not to be called, got %d calls", tr.calls)
	}
}

func TestWriteIdempotencyCacheShortCircuits(t *testing.T) {
	tr := &fakeTransport{name: "x"}
	a := NewAdapter(models.PlatformX, "/tweets", tr, alwaysLive, 3, time.Minute, 3, 60)
	req := WriteRequest{Text: "hello", Idempotency: "key-1"}
	r1, err := a.Write(context.Background(), req)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	r2, err := a.Write(context.Background(), req)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if r1.PostID != r2.PostID {
		t.Fatalf("expected cached receipt to be reused, got %v vs %v", r1, r2)
	}
	if tr.calls != 1 {
		t.Fatalf("expected transport called once, got %d", tr.calls)
	}
}

func TestWriteOpensCircuitBreakerAfterThreshold(t *testing.T) {
	tr := &fakeTransport{name: "x", fail: errors.New("boom")}
	a := NewAdapter(models.PlatformX, "/tweets", tr, alwaysLive, 2, time.Hour, 1, 1)
	for i := 0; i < 2; i++ {
		if _, err := a.Write(context.Background(), WriteRequest{Text: "x"}); err == nil {
			t.Fatal("expected write error from failing transport")
		}
	}
	r, err := a.Write(context.Background(), WriteRequest{Text: "x"})
	if err != nil {
		t.Fatalf("expected circuit-open to return nil error, got %v", err)
	}
	if !r.DryRun || r.Meta["reason"] != "circuit_open" {
		t.Fatalf("expected circuit_open receipt, got %+v", r)
	}
}

func TestWriteRetriesRateLimitThenSucceeds(t *testing.T) {
	calls := 0
	tr := &rateLimitOnceTransport{}
	a := NewAdapter(models.PlatformX, "/tweets", tr, alwaysLive, 5, time.Hour, 3, 1)
	a.sleepFn = func(time.Duration) {}
	r, err := a.Write(context.Background(), WriteRequest{Text: "x"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if r.DryRun {
		t.Fatal("expected a real receipt after retry succeeds")
	}
	_ = calls
}

type rateLimitOnceTransport struct{ calls int }

func (t *rateLimitOnceTransport) Name() string { return "x" }
func (t *rateLimitOnceTransport) CreatePost(ctx context.Context, req WriteRequest) (string, error) {
	t.calls++
	if t.calls == 1 {
		return "", &RateLimitError{Err: errors.New("429")}
	}
	return "post-ok", nil
}
func (t *rateLimitOnceTransport) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	return "media-1", nil
}
