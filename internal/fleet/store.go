package fleet

import (
	"context"
	"math"
)

// Store serves the dashboard collections.
type Store interface {
	Fitness(ctx context.Context) ([]FitnessCertificate, error)
	JobCards(ctx context.Context) ([]JobCard, error)
	Branding(ctx context.Context) ([]BrandingCampaign, error)
	Mileage(ctx context.Context) ([]MileageRecord, error)
	Cleaning(ctx context.Context) ([]CleaningSlot, error)
	Stabling(ctx context.Context) ([]StablingBay, error)
	Trainsets(ctx context.Context) ([]Trainset, error)
	Trainset(ctx context.Context, id string) (Trainset, error)
}

// OverviewSource serves the headline figures.
type OverviewSource interface {
	Overview(ctx context.Context) (Overview, error)
}

// Collection names, used as cache keys, poll source labels and URL segments.
const (
	CollectionFitness   = "fitness"
	CollectionJobCards  = "jobcards"
	CollectionBranding  = "branding"
	CollectionMileage   = "mileage"
	CollectionCleaning  = "cleaning"
	CollectionStabling  = "stabling"
	CollectionTrainsets = "trainsets"
	CollectionOverview  = "overview"
)

// PredictionCollections lists the collections served under /api/prediction.
var PredictionCollections = []string{
	CollectionFitness,
	CollectionJobCards,
	CollectionBranding,
	CollectionMileage,
	CollectionCleaning,
	CollectionStabling,
}

const (
	adDeadlineHours = 168
	emptyFleetScore = 98.2
)

// ComputeOverview derives the headline figures from the raw collections.
func ComputeOverview(trainsets []Trainset, jobs []JobCard, campaigns []BrandingCampaign) Overview {
	var o Overview
	o.TotalTrains = len(trainsets)
	for _, t := range trainsets {
		if t.Status == TrainActive {
			o.TrainsReady++
		}
	}
	for _, j := range jobs {
		if j.IsOpen() {
			o.MaintenanceAlerts++
		}
	}
	for _, c := range campaigns {
		if c.Status == CampaignActive && c.HoursLeft < adDeadlineHours {
			o.AdDeadlines++
		}
	}
	if o.TotalTrains == 0 {
		o.SystemHealth = emptyFleetScore
		return o
	}
	o.SystemHealth = math.Round(float64(o.TrainsReady)/float64(o.TotalTrains)*1000) / 10
	return o
}
