package selector

import (
	"testing"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/bandit"
	"github.com/dababiyoda/daleobanks/pkg/crisis"
	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/persona"
)

func testPersona() persona.Persona {
	return persona.Persona{
		Handle:  "daleobanks",
		Mission: "ship receipts",
		ContentMix: map[string]float64{
			"proposals":     0.4,
			"elite_replies": 0.4,
			"summaries":     0.2,
		},
		Intensity: persona.IntensitySettings{Min: 0, Max: 5},
		Drives:    persona.DriveWeights{Curiosity: 0.5, Novelty: 0.5, Impact: 0.8, Stability: 0.2},
	}
}

func TestQuietHoursForcesRest(t *testing.T) {
	sel := New(bandit.NewActionBandit(1), bandit.New(1), crisis.NewService(12, 6), func(time.Time) bool { return true }, MinInterval{}, 12, 1)
	d := sel.Select(testPersona(), nil, Signals{})
	if d.Action != models.ActionRest {
		t.Fatalf("expected REST during quiet hours, got %v", d.Action)
	}
}

func TestCrisisGuardDeniesNonRest(t *testing.T) {
	crisisSvc := crisis.NewService(3.0, 1.5)
	_ = crisisSvc.UpdateMetrics(models.CrisisMetrics{Sentiment: -0.9, Velocity: 3, Authority: 3}, noopPublisher{})
	sel := New(bandit.NewActionBandit(1), bandit.New(1), crisisSvc, nil, MinInterval{}, 3.0, 1)
	d := sel.Select(testPersona(), nil, Signals{CrisisActive: true})
	if d.Action != models.ActionRest {
		t.Fatalf("expected only REST eligible while crisis paused, got %v", d.Action)
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishCalmingMessage(reason string) (bool, error) { return true, nil }

func TestCooldownExcludesRecentAction(t *testing.T) {
	sel := New(bandit.NewActionBandit(1), bandit.New(1), crisis.NewService(12, 6), nil,
		MinInterval{models.ActionPostProposal: time.Hour}, 12, 1)
	last := map[models.ActionType]time.Time{models.ActionPostProposal: time.Now()}
	for i := 0; i < 20; i++ {
		d := sel.Select(testPersona(), last, Signals{})
		if d.Action == models.ActionPostProposal {
			t.Fatal("expected post_proposal to be excluded by cooldown")
		}
	}
}

func TestIntensityPolicyClampsAndSteps(t *testing.T) {
	sel := New(bandit.NewActionBandit(1), bandit.New(1), crisis.NewService(12, 6), nil, MinInterval{}, 12, 1)
	settings := persona.IntensitySettings{Min: 0, Max: 5}

	got := sel.intensityPolicy(settings, Signals{RecentAvgJ: 0.7}, 2)
	if got != 3 {
		t.Fatalf("expected +1 step from high J, got %d", got)
	}
	got = sel.intensityPolicy(settings, Signals{Penalty: 8}, 2)
	if got != 0 {
		t.Fatalf("expected -2 step from high penalty, got %d", got)
	}
	got = sel.intensityPolicy(settings, Signals{CrisisActive: true}, 4)
	if got != 2 {
		t.Fatalf("expected forced -2 step during crisis, got %d", got)
	}
	got = sel.intensityPolicy(settings, Signals{}, 5)
	if got > settings.Max {
		t.Fatalf("expected clamp to max %d, got %d", settings.Max, got)
	}
}

func TestIntensityPolicyCrisisSignalWithoutActiveCrisisCapsStep(t *testing.T) {
	sel := New(bandit.NewActionBandit(1), bandit.New(1), crisis.NewService(12, 6), nil, MinInterval{}, 10, 1)
	settings := persona.IntensitySettings{Min: 0, Max: 5}

	got := sel.intensityPolicy(settings, Signals{RecentAvgJ: 0.7, CrisisSignal: 11}, 2)
	if got != 1 {
		t.Fatalf("expected crisis signal above threshold to cap the step at -1 even without an active pause, got %d", got)
	}
}

func TestSelectDMTargetFiltersAuthorityAndRecency(t *testing.T) {
	candidates := []DMTarget{
		{Username: "low_authority", AuthorityWeight: 0.5},
		{Username: "recent", AuthorityWeight: 0.9},
		{Username: "eligible", AuthorityWeight: 0.8},
	}
	lastDM := map[string]time.Time{"recent": time.Now().Add(-time.Hour)}
	target, ok := SelectDMTarget(candidates, lastDM, time.Now())
	if !ok || target.Username != "eligible" {
		t.Fatalf("expected eligible target to be chosen, got %+v ok=%v", target, ok)
	}
}
