package ingest

import (
	"strings"
	"time"

	"github.com/kmrl/opsboard/internal/fleet"
)

// DateLayout is the timestamp format of the validity and cleaning columns.
const DateLayout = "2006-01-02 15:04:05"

const (
	defaultJobType  = "General"
	defaultTeam     = "Team A"
	expiryDayLayout = "2006-01-02"

	// maxCampaignHours caps the expiry horizon at a century.
	maxCampaignHours = 100 * 365 * 24
)

// FitnessFor derives the consolidated fitness of three certificate expiries.
// Valid needs all three in the future, Due Soon any one of them. Unparseable
// values count as expired. The second result is the earliest parsed expiry.
func FitnessFor(now time.Time, validities ...string) (string, string) {
	var (
		earliest time.Time
		future   int
	)
	for _, v := range validities {
		ts, err := time.Parse(DateLayout, strings.TrimSpace(v))
		if err != nil {
			continue
		}
		if earliest.IsZero() || ts.Before(earliest) {
			earliest = ts
		}
		if ts.After(now) {
			future++
		}
	}
	validUntil := ""
	if !earliest.IsZero() {
		validUntil = earliest.Format(DateLayout)
	}
	switch {
	case future == len(validities) && future > 0:
		return fleet.FitnessValid, validUntil
	case future > 0:
		return fleet.FitnessDueSoon, validUntil
	}
	return fleet.FitnessExpired, validUntil
}

// BuildBatch expands parsed rows into the four stored collections.
func BuildBatch(rows []Row, now time.Time) fleet.Batch {
	now = now.UTC()
	var b fleet.Batch
	for _, row := range rows {
		open := strings.EqualFold(strings.TrimSpace(row.JobCardStatus), fleet.JobOpen)
		fitness, validUntil := FitnessFor(now, row.RollingStock, row.Signalling, row.Telecom)

		status := fleet.TrainActive
		priority := fleet.LevelMedium
		if open {
			status = fleet.TrainMaintenance
			priority = fleet.LevelHigh
		}
		jobStatus := fleet.JobClosed
		if row.JobCardStatus != "" {
			jobStatus = fleet.NormalizeJobStatus(row.JobCardStatus)
		}

		b.Trainsets = append(b.Trainsets, fleet.Trainset{
			TrainID:         row.TrainID,
			Name:            row.TrainID,
			Fitness:         fitness,
			Status:          status,
			Mileage:         row.Mileage,
			Bay:             row.StablingBay,
			Passengers:      row.Passengers,
			StationsCovered: row.StationsCovered,
			TicketSales:     row.TicketSales,
			ValidUntil:      validUntil,
		})
		b.JobCards = append(b.JobCards, fleet.JobCard{
			JobID:    fleet.JobCardID(row.TrainID),
			Train:    row.TrainID,
			Type:     defaultJobType,
			Status:   jobStatus,
			Priority: priority,
			Assigned: defaultTeam,
		})

		campaign := fleet.BrandingCampaign{
			CampaignID: fleet.CampaignID(row.TrainID),
			Campaign:   "Campaign for " + row.TrainID,
			Train:      row.TrainID,
			Status:     fleet.CampaignExpired,
			HoursLeft:  row.HoursLeft,
		}
		if row.HoursLeft > 0 {
			campaign.Status = fleet.CampaignActive
			campaign.Expiry = now.Add(time.Duration(min(row.HoursLeft, maxCampaignHours)) * time.Hour).Format(expiryDayLayout)
		}
		b.Campaigns = append(b.Campaigns, campaign)

		b.Cleaning = append(b.Cleaning, fleet.CleaningSlot{
			TrainID: row.TrainID,
			Bay:     row.StablingBay,
			Time:    row.LastDeepClean,
			Status:  fleet.CleaningCompleted,
			Type:    fleet.CleaningDeep,
		})
	}
	return b
}
