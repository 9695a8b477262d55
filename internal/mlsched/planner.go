package mlsched

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kmrl/opsboard/internal/fleet"
)

// SlotsPerDay is the number of half-hour slots in a service day.
const SlotsPerDay = 48

// Engine trains the scheduling model and produces assignments for a date.
type Engine interface {
	Name() string
	Train(ctx context.Context) error
	Generate(ctx context.Context, date string) ([]Assignment, error)
}

// TrainsetSource lists trainsets with their job cards, campaign and cleaning
// slot attached.
type TrainsetSource interface {
	Trainsets(ctx context.Context) ([]fleet.Trainset, error)
}

// RulePlanner schedules trainsets from hard constraints alone. It needs no
// training.
type RulePlanner struct {
	source TrainsetSource
	logger *slog.Logger
}

// NewRulePlanner constructs a planner over source.
func NewRulePlanner(source TrainsetSource, logger *slog.Logger) *RulePlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &RulePlanner{source: source, logger: logger.With(slog.String("component", "mlsched.rules"))}
}

func (p *RulePlanner) Name() string { return "rules" }

// Train is a no-op.
func (p *RulePlanner) Train(context.Context) error { return nil }

// Generate assigns every eligible trainset the next free slot, in source
// order. Trainsets beyond the last slot of the day are left out.
func (p *RulePlanner) Generate(ctx context.Context, date string) ([]Assignment, error) {
	trainsets, err := p.source.Trainsets(ctx)
	if err != nil {
		return nil, fmt.Errorf("mlsched: load trainsets: %w", err)
	}
	slots := TimeSlots()
	out := make([]Assignment, 0, min(len(trainsets), len(slots)))
	dropped := 0
	for _, t := range trainsets {
		if !Eligible(t) {
			continue
		}
		if len(out) == len(slots) {
			dropped++
			continue
		}
		out = append(out, Assignment{
			TrainID:   t.TrainID,
			TimeSlot:  slots[len(out)],
			Task:      TaskFor(t),
			Reasoning: Reasoning(t),
		})
	}
	if dropped > 0 {
		p.logger.Warn("schedule full", slog.String("date", date), slog.Int("dropped", dropped))
	}
	return out, nil
}

// TimeSlots lists the half-hour slot labels "00:00" to "23:30".
func TimeSlots() []string {
	slots := make([]string, 0, SlotsPerDay)
	for i := range SlotsPerDay {
		slots = append(slots, fmt.Sprintf("%02d:%02d", i/2, (i%2)*30))
	}
	return slots
}

// Eligible applies the hard constraints: a valid fitness certificate, no
// open job cards and a completed cleaning slot.
func Eligible(t fleet.Trainset) bool {
	if t.Fitness != fleet.FitnessValid {
		return false
	}
	if t.PendingJobs() > 0 {
		return false
	}
	return t.CleaningSlot != nil && t.CleaningSlot.Status == fleet.CleaningCompleted
}

// TaskFor picks the primary task: maintenance, branding, cleaning, then run.
func TaskFor(t fleet.Trainset) string {
	switch {
	case len(t.JobCards) > 0:
		return TaskMaintenance
	case t.BrandingCampaign != nil:
		return TaskBranding
	case t.CleaningSlot != nil:
		return TaskCleaning
	}
	return TaskRun
}

// Reasoning explains an assignment.
func Reasoning(t fleet.Trainset) string {
	var reasons []string
	if t.Fitness == fleet.FitnessValid {
		reasons = append(reasons, "Fitness certificate valid")
	}
	if len(t.JobCards) == 0 {
		reasons = append(reasons, "No pending maintenance")
	}
	if t.CleaningSlot != nil && t.CleaningSlot.Status == fleet.CleaningCompleted {
		reasons = append(reasons, "Cleaning completed")
	}
	return strings.Join(reasons, "; ")
}
