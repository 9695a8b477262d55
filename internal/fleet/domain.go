// Package fleet models the rolling-stock collections shown on the
// operations dashboard and the stores that serve them.
package fleet

import (
	"errors"
	"strings"

	"github.com/kmrl/opsboard/internal/numeric"
)

// ErrNotFound indicates an unknown trainset.
var ErrNotFound = errors.New("fleet: not found")

// Fitness certificate states.
const (
	FitnessValid   = "Valid"
	FitnessDueSoon = "Due Soon"
	FitnessExpired = "Expired"
)

// Risk levels and job priorities share one scale.
const (
	LevelLow    = "Low"
	LevelMedium = "Medium"
	LevelHigh   = "High"
)

// Job card states.
const (
	JobOpen       = "Open"
	JobInProgress = "In Progress"
	JobClosed     = "Closed"
)

// Campaign states.
const (
	CampaignActive  = "Active"
	CampaignExpired = "Expired"
	CampaignPending = "Pending"
)

// Mileage efficiency bands.
const (
	EfficiencyHigh   = "High"
	EfficiencyNormal = "Normal"
	EfficiencyLow    = "Low"
)

// Cleaning states and kinds.
const (
	CleaningCompleted  = "Completed"
	CleaningInProgress = "In Progress"
	CleaningScheduled  = "Scheduled"
	CleaningCancelled  = "Cancelled"

	CleaningDeep     = "Deep Clean"
	CleaningStandard = "Standard"
)

// Stabling bay states and positions.
const (
	BayOccupied    = "Occupied"
	BayAvailable   = "Available"
	BayReserved    = "Reserved"
	BayMaintenance = "Maintenance"

	PositionPlatformSide = "Platform Side"
	PositionMaintenance  = "Maintenance"
)

// Trainset service states.
const (
	TrainActive      = "Active"
	TrainMaintenance = "Maintenance"
)

// FitnessCertificate is one row of the fitness page.
type FitnessCertificate struct {
	TrainID string `json:"trainId" toml:"train_id"`
	Status  string `json:"status" toml:"status"`
	Expiry  string `json:"expiry" toml:"expiry"`
	Type    string `json:"type" toml:"type"`
	Risk    string `json:"risk" toml:"risk"`
}

// JobCard is a maintenance work order.
type JobCard struct {
	JobID    string `json:"jobId" toml:"job_id"`
	Train    string `json:"train" toml:"train"`
	Type     string `json:"type" toml:"type"`
	Status   string `json:"status" toml:"status"`
	Priority string `json:"priority" toml:"priority"`
	Assigned string `json:"assigned" toml:"assigned"`
}

// IsOpen reports whether the card still blocks service.
func (j JobCard) IsOpen() bool { return strings.EqualFold(strings.TrimSpace(j.Status), JobOpen) }

// BrandingCampaign is an advertising wrap on a trainset.
type BrandingCampaign struct {
	CampaignID string        `json:"campaignId,omitempty" toml:"campaign_id"`
	Campaign   string        `json:"campaign" toml:"campaign"`
	Train      string        `json:"train" toml:"train"`
	Status     string        `json:"status" toml:"status"`
	Expiry     string        `json:"expiry" toml:"expiry"`
	Revenue    numeric.Money `json:"revenue" toml:"revenue"`
	HoursLeft  int           `json:"hoursLeft" toml:"hours_left"`
}

// MileageRecord compares distance run against the balancing target.
type MileageRecord struct {
	TrainID    string           `json:"trainId" toml:"train_id"`
	Mileage    numeric.Distance `json:"mileage" toml:"mileage"`
	Target     numeric.Distance `json:"target" toml:"target"`
	Variance   numeric.Percent  `json:"variance" toml:"variance"`
	Efficiency string           `json:"efficiency" toml:"efficiency"`
}

// CleaningSlot is a cleaning booking.
type CleaningSlot struct {
	TrainID string `json:"trainId" toml:"train_id"`
	Bay     string `json:"bay" toml:"bay"`
	Time    string `json:"time" toml:"time"`
	Status  string `json:"status" toml:"status"`
	Type    string `json:"type" toml:"type"`
}

// StablingBay is the overnight parking position of a trainset.
type StablingBay struct {
	TrainID  string `json:"trainId" toml:"train_id"`
	Bay      string `json:"bay" toml:"bay"`
	Position string `json:"position" toml:"position"`
	Occupied string `json:"occupied" toml:"occupied"`
	Depart   string `json:"depart" toml:"depart"`
	Status   string `json:"status" toml:"status"`
}

// Trainset is the audit view of one train with its related records.
type Trainset struct {
	TrainID          string            `json:"train_id" toml:"train_id"`
	Name             string            `json:"name" toml:"name"`
	Fitness          string            `json:"fitness" toml:"fitness"`
	Status           string            `json:"status" toml:"status"`
	Mileage          numeric.Distance  `json:"mileage" toml:"mileage"`
	Bay              string            `json:"bay" toml:"bay"`
	Passengers       int               `json:"passengers" toml:"passengers"`
	StationsCovered  int               `json:"stations_covered" toml:"stations_covered"`
	TicketSales      numeric.Money     `json:"ticket_sales" toml:"ticket_sales"`
	ValidUntil       string            `json:"valid_until" toml:"valid_until"`
	JobCards         []JobCard         `json:"jobcards" toml:"-"`
	CleaningSlot     *CleaningSlot     `json:"cleaning_slot" toml:"-"`
	BrandingCampaign *BrandingCampaign `json:"branding_campaign" toml:"-"`
}

// PendingJobs counts open job cards.
func (t Trainset) PendingJobs() int {
	n := 0
	for _, j := range t.JobCards {
		if j.IsOpen() {
			n++
		}
	}
	return n
}

// Overview is the headline figures of the dashboard.
type Overview struct {
	TrainsReady       int     `json:"trainsReady"`
	TotalTrains       int     `json:"totalTrains"`
	MaintenanceAlerts int     `json:"maintenanceAlerts"`
	AdDeadlines       int     `json:"adDeadlines"`
	SystemHealth      float64 `json:"systemHealth"`
}

// Dataset bundles every collection, as seeded or ingested.
type Dataset struct {
	Fitness   []FitnessCertificate `toml:"fitness"`
	JobCards  []JobCard            `toml:"jobcards"`
	Branding  []BrandingCampaign   `toml:"branding"`
	Mileage   []MileageRecord      `toml:"mileage"`
	Cleaning  []CleaningSlot       `toml:"cleaning"`
	Stabling  []StablingBay        `toml:"stabling"`
	Trainsets []Trainset           `toml:"trainsets"`
}

// NormalizeJobStatus maps loosely written job states onto the enum. Unknown
// values are returned trimmed but otherwise untouched.
func NormalizeJobStatus(s string) string {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(trimmed)) {
	case "open":
		return JobOpen
	case "in progress":
		return JobInProgress
	case "closed":
		return JobClosed
	}
	return trimmed
}

// RiskForFitness derives the certificate risk from its status.
func RiskForFitness(status string) string {
	switch status {
	case FitnessValid:
		return LevelLow
	case FitnessDueSoon:
		return LevelMedium
	}
	return LevelHigh
}

// EfficiencyForVariance bands a mileage variance: at or above target is High,
// up to five percent under is Normal, anything further under is Low.
func EfficiencyForVariance(v numeric.Percent) string {
	switch {
	case v >= 0:
		return EfficiencyHigh
	case v >= -50:
		return EfficiencyNormal
	}
	return EfficiencyLow
}
