// Package llm provides a provider-agnostic chat client with per-hour/
// per-day budget gating and a deterministic template fallback, mirroring
// the teacher's aiprovider.AIProvider abstraction (pkg/aiprovider) over
// OpenAI and Anthropic backends.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Message is a provider-agnostic chat turn.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Backend is implemented once per concrete provider (OpenAI, Anthropic).
type Backend interface {
	Name() string
	Chat(ctx context.Context, system string, messages []Message, temperature float64, maxTokens int) (string, error)
}

// Templates supplies the deterministic fallback text used when the
// budget is exhausted (§6, §7 "Budget-exhausted LLM").
type Templates interface {
	Fallback(kind string) string
}

// Budget gates outbound calls per-hour and per-day; it is the exclusive
// owner of its counters (§5 shared-resource policy).
type Budget struct {
	mu        sync.Mutex
	perHour   int
	perDay    int
	hourStart time.Time
	dayStart  time.Time
	hourCount int
	dayCount  int
	now       func() time.Time
}

func NewBudget(perHour, perDay int) *Budget {
	now := time.Now()
	return &Budget{perHour: perHour, perDay: perDay, hourStart: now, dayStart: now, now: time.Now}
}

// Allow reports whether a call may proceed, incrementing counters if so.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if now.Sub(b.hourStart) >= time.Hour {
		b.hourStart = now
		b.hourCount = 0
	}
	if now.Sub(b.dayStart) >= 24*time.Hour {
		b.dayStart = now
		b.dayCount = 0
	}
	if b.hourCount >= b.perHour || b.dayCount >= b.perDay {
		return false
	}
	b.hourCount++
	b.dayCount++
	return true
}

// Client composes a Backend with budget gating and a template fallback.
type Client struct {
	backend   Backend
	budget    *Budget
	templates Templates
}

func NewClient(backend Backend, budget *Budget, templates Templates) *Client {
	return &Client{backend: backend, budget: budget, templates: templates}
}

// Chat calls the backend when the budget allows, otherwise returns the
// deterministic template for kind without ever failing the job (§7).
func (c *Client) Chat(ctx context.Context, kind, system string, messages []Message, temperature float64, maxTokens int) (string, bool, error) {
	if !c.budget.Allow() {
		return c.templates.Fallback(kind), false, nil
	}
	out, err := c.backend.Chat(ctx, system, messages, temperature, maxTokens)
	if err != nil {
		return "", false, fmt.Errorf("llm: chat: %w", err)
	}
	return out, true, nil
}
