// Package crisis owns the CrisisState machine: NORMAL/PAUSED transitions
// driven by the sentiment*velocity*authority signal, and the Guard every
// outbound job must consult before publishing (§4.5).
package crisis

import (
	"strings"
	"sync"

	"github.com/dababiyoda/daleobanks/pkg/models"
)

// keywordTriggers are lowercase substrings that mark a single piece of
// text as crisis-flavored input, independent of the aggregated signal
// (§4.5 "Keyword trigger").
var keywordTriggers = []string{"scandal", "fraud", "emergency", "lawsuit", "breach", "hack"}

// TextSignal reports whether one piece of perceived text should be
// treated as a crisis signal for itself — via keyword match or a
// sentiment score below -0.5 — independent of whether the aggregated
// Service signal crosses threshold.
func TextSignal(text string, sentiment float64) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywordTriggers {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return sentiment < -0.5
}

// Service is the exclusive owner of CrisisState; every mutation goes
// through its methods (§3, §5).
type Service struct {
	mu             sync.Mutex
	state          models.CrisisState
	signalThresh   float64
	resumeThresh   float64
	calmingSent    int // count of calming-message publishes this pause cycle
	nonDryCalming  bool
}

func NewService(signalThreshold, resumeThreshold float64) *Service {
	return &Service{signalThresh: signalThreshold, resumeThresh: resumeThreshold}
}

// CalmingPublisher is implemented by the publisher; kept as a narrow
// interface here so pkg/crisis does not import pkg/publisher.
type CalmingPublisher interface {
	PublishCalmingMessage(reason string) (dryRun bool, err error)
}

// UpdateMetrics feeds a fresh {sentiment,velocity,authority} snapshot and
// evaluates the NORMAL<->PAUSED transition (§4.5).
func (s *Service) UpdateMetrics(m models.CrisisMetrics, pub CalmingPublisher) error {
	s.mu.Lock()
	s.state.Metrics = m
	signal := m.Signal()
	s.state.LastSignal = signal
	wasActive := s.state.Active
	s.mu.Unlock()

	if !wasActive && signal >= s.signalThresh {
		return s.enterCrisis(signal, pub)
	}
	if wasActive && signal <= s.resumeThresh {
		s.tryResume()
	}
	return nil
}

func (s *Service) enterCrisis(signal float64, pub CalmingPublisher) error {
	s.mu.Lock()
	s.state.Active = true
	s.state.Reason = "signal threshold exceeded"
	s.state.ReceiptsValidated = false
	s.calmingSent = 0
	s.nonDryCalming = false
	s.mu.Unlock()

	if pub == nil {
		return nil
	}
	dryRun, err := pub.PublishCalmingMessage(s.Reason())
	s.mu.Lock()
	s.calmingSent++
	if !dryRun {
		s.nonDryCalming = true
	}
	s.mu.Unlock()
	return err
}

// tryResume implements PAUSED -> NORMAL only when signal <= resume
// threshold AND at least one calming-message receipt was non-dry-run
// (P8).
func (s *Service) tryResume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active {
		return
	}
	if !s.nonDryCalming {
		return
	}
	s.state.Active = false
	s.state.Reason = ""
	s.state.ReceiptsValidated = true
}

// RecordCalmingReceipt lets a caller that published the calming message
// out-of-band (e.g. a retried publish) report the receipt back.
func (s *Service) RecordCalmingReceipt(dryRun bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calmingSent++
	if !dryRun {
		s.nonDryCalming = true
	}
}

// Guard reports whether action is allowed: false for every non-REST
// action while the state is PAUSED (P7).
func (s *Service) Guard(action models.ActionType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active {
		return true
	}
	return action == models.ActionRest
}

func (s *Service) State() models.CrisisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Reason
}
