// Package mlsched produces daily service schedules for the fleet and serves
// the predictive-maintenance insights shown on the ML analysis page.
package mlsched

import (
	"errors"
	"fmt"
	"time"

	"github.com/kmrl/opsboard/internal/numeric"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

// DateLayout is the schedule date format.
const DateLayout = "2006-01-02"

// Schedule tasks.
const (
	TaskRun         = "run"
	TaskMaintenance = "maintenance"
	TaskBranding    = "branding"
	TaskCleaning    = "cleaning"
)

// NoScheduleReasoning is reported for dates nothing was generated for.
const NoScheduleReasoning = "No schedule available"

// ErrNoSchedule indicates no schedule was stored for a date.
var ErrNoSchedule = errors.New("mlsched: no schedule")

// Assignment places one trainset in a time slot.
type Assignment struct {
	TrainID   string `json:"train_id"`
	TimeSlot  string `json:"time_slot"`
	Task      string `json:"task"`
	Reasoning string `json:"reasoning"`
}

// Schedule is the plan for one service day.
type Schedule struct {
	Date        string       `json:"date"`
	Schedule    []Assignment `json:"schedule"`
	Reasoning   string       `json:"reasoning,omitempty"`
	Engine      string       `json:"engine,omitempty"`
	GeneratedAt time.Time    `json:"generated_at,omitzero"`
}

// Failure is a predicted component failure.
type Failure struct {
	Title       string `json:"title" toml:"title"`
	Train       string `json:"train" toml:"train"`
	Timeframe   string `json:"timeframe" toml:"timeframe"`
	Probability int    `json:"probability" toml:"probability"`
	Risk        string `json:"risk" toml:"risk"`
	Subtitle    string `json:"subtitle" toml:"subtitle"`
}

// Trend is a fleet-wide indicator and its recent movement.
type Trend struct {
	Label  string          `json:"label" toml:"label"`
	Value  int             `json:"value" toml:"value"`
	Change numeric.Percent `json:"change" toml:"change"`
	Status string          `json:"status" toml:"status"`
}

// Suggestion is a recommended maintenance action.
type Suggestion struct {
	Train     string        `json:"train" toml:"train"`
	Component string        `json:"component" toml:"component"`
	Action    string        `json:"action" toml:"action"`
	Priority  string        `json:"priority" toml:"priority"`
	Savings   numeric.Money `json:"savings" toml:"savings"`
}

// Insights bundles the ML analysis panels.
type Insights struct {
	Failures    []Failure    `toml:"failures"`
	Trends      []Trend      `toml:"trends"`
	Suggestions []Suggestion `toml:"suggestions"`
}

// ParseDate validates a schedule date. An empty value selects today.
func ParseDate(raw string, now time.Time) (string, error) {
	if raw == "" {
		return now.Format(DateLayout), nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	return d.Format(DateLayout), nil
}
