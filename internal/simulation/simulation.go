// Package simulation answers what-if disruption scenarios with a fixed
// impact assessment and recovery plan.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kmrl/opsboard/internal/platform/httpx"
	"github.com/kmrl/opsboard/internal/tableview"
)

// MaxDescription caps the scenario text.
const MaxDescription = 2000

// Impact severities.
const (
	StatusCritical = "critical"
	StatusWarning  = "warning"
	StatusNormal   = "normal"
)

var statusTones = tableview.ToneMap{StatusCritical: tableview.ToneError, StatusWarning: tableview.ToneWarning, StatusNormal: tableview.ToneSuccess}

// Impact compares one operating metric with and without the disruption.
type Impact struct {
	Metric    string `json:"metric"`
	Baseline  string `json:"baseline"`
	Simulated string `json:"simulated"`
	Impact    string `json:"impact"`
	Status    string `json:"status"`
}

// Tone colours the row by severity.
func (i Impact) Tone() tableview.Tone { return statusTones.Tone(i.Status) }

// Solution is one recovery action.
type Solution struct {
	Title          string `json:"title"`
	Details        string `json:"details"`
	Implementation string `json:"implementation"`
	Cost           string `json:"cost"`
}

// Template is a canned scenario offered on the simulation page.
type Template struct {
	Title       string
	Description string
}

// Templates lists the quick-start scenarios.
var Templates = []Template{
	{Title: "Peak Hour Disruption", Description: "3 trains unavailable during morning rush"},
	{Title: "Maintenance Window", Description: "Track closure for 4 hours overnight"},
	{Title: "Emergency Scenario", Description: "Signal failure affecting 2 routes"},
}

// Request is a scenario to evaluate.
type Request struct {
	Description string `json:"description" validate:"required,max=2000"`
}

// Result is the assessment of a scenario.
type Result struct {
	Description string     `json:"description"`
	Impact      []Impact   `json:"impact"`
	Solutions   []Solution `json:"solutions"`
}

// Service evaluates scenarios.
type Service struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{validate: validator.New(), logger: logger.With(slog.String("component", "simulation"))}
}

// Run validates req and returns the assessment. The assessment does not yet
// depend on the scenario text.
func (s *Service) Run(_ context.Context, req Request) (Result, error) {
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return Result{}, fmt.Errorf("%w: description must be at most %d characters", httpx.ErrValidation, MaxDescription)
		}
		return Result{}, fmt.Errorf("%w: description is required", httpx.ErrValidation)
	}
	s.logger.Info("simulation run", slog.Int("description_len", len(req.Description)))
	return Result{Description: req.Description, Impact: impacts(), Solutions: solutions()}, nil
}

func impacts() []Impact {
	return []Impact{
		{Metric: "Service Frequency", Baseline: "Every 3 minutes", Simulated: "Every 5 minutes", Impact: "Reduced by 40%", Status: StatusCritical},
		{Metric: "Passenger Capacity", Baseline: "12,000/hour", Simulated: "8,400/hour", Impact: "Reduced by 30%", Status: StatusWarning},
		{Metric: "Average Delay", Baseline: "2.1 minutes", Simulated: "7.3 minutes", Impact: "Increased by 247%", Status: StatusCritical},
		{Metric: "Resource Utilization", Baseline: "85%", Simulated: "92%", Impact: "Increased by 8%", Status: StatusNormal},
	}
}

func solutions() []Solution {
	return []Solution{
		{Title: "Deploy backup trains from depot B", Details: "Restore 60% of lost capacity", Implementation: "15 minutes", Cost: "$1,200"},
		{Title: "Reroute trains via alternate track", Details: "Reduce delays by 40%", Implementation: "5 minutes", Cost: "$300"},
		{Title: "Activate emergency bus service", Details: "Handle 2,000 passengers/hour", Implementation: "30 minutes", Cost: "$2,500"},
	}
}
