package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/dababiyoda/daleobanks/pkg/models"
	"github.com/dababiyoda/daleobanks/pkg/persona"
)

const weeklyDriveStep = 0.05

// WeeklyHistory supplies the trailing week of posts for planning.
type WeeklyHistory interface {
	PostsInWindow(ctx context.Context, start, end time.Time) ([]models.Post, error)
}

// PersonaPlanner is the persona-store surface the planner needs.
type PersonaPlanner interface {
	Current() (persona.Persona, error)
	Update(payload persona.Persona, actor string) (int, error)
}

// Planner implements the SPEC_FULL weekly_plan supplement: it nudges
// next week's drive-weight bias from the trailing week's per-action-type
// J-scores, read once at each Sunday tick, grounded on services/planner.py.
type Planner struct {
	history WeeklyHistory
	store   PersonaPlanner
	now     func() time.Time
}

func NewPlanner(history WeeklyHistory, store PersonaPlanner) *Planner {
	return &Planner{history: history, store: store, now: time.Now}
}

// Plan reads the trailing 7 days of posts, derives which drive each
// well-performing kind maps to, and steps the persona's drive weights a
// small amount toward what worked — clamped to [0,1] — then publishes
// the update through the normal versioned Update path.
func (p *Planner) Plan(ctx context.Context) (int, error) {
	now := p.now()
	start := now.Add(-7 * 24 * time.Hour)
	posts, err := p.history.PostsInWindow(ctx, start, now)
	if err != nil {
		return 0, fmt.Errorf("selector: weekly plan window: %w", err)
	}

	current, err := p.store.Current()
	if err != nil {
		return 0, fmt.Errorf("selector: weekly plan persona: %w", err)
	}
	if len(posts) == 0 {
		return current.Version, nil
	}

	bias := driveBiasFromPosts(posts)
	updated := current
	updated.Drives = stepDrives(current.Drives, bias)

	return p.store.Update(updated, "weekly_plan")
}

// driveBiasFromPosts buckets mean J-score by the drive a post's kind
// primarily exercises, then centers each around the overall mean so the
// result is a signed step direction, not an absolute level.
func driveBiasFromPosts(posts []models.Post) persona.DriveWeights {
	var sum, count persona.DriveWeights
	var overallSum float64
	var overallCount int

	for _, post := range posts {
		if post.JScore == nil {
			continue
		}
		j := *post.JScore
		overallSum += j
		overallCount++
		switch post.Kind {
		case models.KindProposal:
			sum.Impact += j
			count.Impact++
			sum.Novelty += j
			count.Novelty++
		case models.KindReply:
			sum.Curiosity += j
			count.Curiosity++
		case models.KindQuote:
			sum.Curiosity += j
			count.Curiosity++
		case models.KindThreadRoot, models.KindThreadSegment:
			sum.Impact += j
			count.Impact++
			sum.Stability += j
			count.Stability++
		}
	}

	if overallCount == 0 {
		return persona.DriveWeights{}
	}
	overallMean := overallSum / float64(overallCount)

	bias := func(s, c float64) float64 {
		if c == 0 {
			return 0
		}
		return s/c - overallMean
	}
	return persona.DriveWeights{
		Curiosity: bias(sum.Curiosity, count.Curiosity),
		Novelty:   bias(sum.Novelty, count.Novelty),
		Impact:    bias(sum.Impact, count.Impact),
		Stability: bias(sum.Stability, count.Stability),
	}
}

// stepDrives moves each weight a fixed small step toward its bias sign,
// clamped to [0,1].
func stepDrives(d persona.DriveWeights, bias persona.DriveWeights) persona.DriveWeights {
	step := func(w, b float64) float64 {
		switch {
		case b > 0:
			w += weeklyDriveStep
		case b < 0:
			w -= weeklyDriveStep
		}
		if w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		return w
	}
	return persona.DriveWeights{
		Curiosity: step(d.Curiosity, bias.Curiosity),
		Novelty:   step(d.Novelty, bias.Novelty),
		Impact:    step(d.Impact, bias.Impact),
		Stability: step(d.Stability, bias.Stability),
	}
}
