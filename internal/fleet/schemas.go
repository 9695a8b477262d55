package fleet

import (
	"strconv"

	"github.com/kmrl/opsboard/internal/numeric"
	"github.com/kmrl/opsboard/internal/tableview"
)

var (
	fitnessTones = tableview.ToneMap{
		FitnessValid:   tableview.ToneSuccess,
		FitnessDueSoon: tableview.ToneWarning,
		FitnessExpired: tableview.ToneError,
	}
	levelTones = tableview.ToneMap{
		LevelLow:    tableview.ToneSuccess,
		LevelMedium: tableview.ToneWarning,
		LevelHigh:   tableview.ToneError,
	}
	jobTones = tableview.ToneMap{
		JobOpen:       tableview.ToneWarning,
		JobInProgress: tableview.ToneInfo,
		JobClosed:     tableview.ToneSuccess,
	}
	campaignTones = tableview.ToneMap{
		CampaignActive:  tableview.ToneSuccess,
		CampaignExpired: tableview.ToneError,
		CampaignPending: tableview.ToneWarning,
	}
	efficiencyTones = tableview.ToneMap{
		EfficiencyHigh:   tableview.ToneSuccess,
		EfficiencyNormal: tableview.ToneInfo,
		EfficiencyLow:    tableview.ToneWarning,
	}
	cleaningTones = tableview.ToneMap{
		CleaningCompleted:  tableview.ToneSuccess,
		CleaningInProgress: tableview.ToneInfo,
		CleaningScheduled:  tableview.ToneWarning,
		CleaningCancelled:  tableview.ToneError,
	}
	bayTones = tableview.ToneMap{
		BayOccupied:    tableview.TonePrimary,
		BayAvailable:   tableview.ToneSuccess,
		BayReserved:    tableview.ToneWarning,
		BayMaintenance: tableview.ToneError,
	}
	trainTones = tableview.ToneMap{
		TrainActive:      tableview.ToneSuccess,
		TrainMaintenance: tableview.ToneWarning,
	}
)

// FitnessTone colours a fitness status.
func FitnessTone(status string) tableview.Tone { return fitnessTones.Tone(status) }

// TrainTone colours a trainset status.
func TrainTone(status string) tableview.Tone { return trainTones.Tone(status) }

// JobTone colours a job card status.
func JobTone(status string) tableview.Tone { return jobTones.Tone(status) }

// LevelTone colours a High/Medium/Low level.
func LevelTone(level string) tableview.Tone { return levelTones.Tone(level) }

// CleaningTone colours a cleaning status.
func CleaningTone(status string) tableview.Tone { return cleaningTones.Tone(status) }

// CampaignTone colours a campaign status.
func CampaignTone(status string) tableview.Tone { return campaignTones.Tone(status) }

func count(n int) string { return strconv.Itoa(n) }

func countCard(aggs map[string]tableview.Aggregate, field, value string, tones tableview.ToneMap) tableview.Card {
	return tableview.Card{Label: value, Value: count(aggs[field].Get(value)), Tone: tones.Tone(value)}
}

// FitnessSchema drives the fitness certificate page.
func FitnessSchema() tableview.Schema[FitnessCertificate] {
	return tableview.Schema[FitnessCertificate]{
		Name:     "fitness",
		Title:    "Fitness Certificates",
		Subtitle: "Certificate validity and risk per trainset",
		Search: []func(FitnessCertificate) string{
			func(r FitnessCertificate) string { return r.TrainID },
			func(r FitnessCertificate) string { return r.Type },
		},
		Dimensions: []tableview.Dimension[FitnessCertificate]{
			{
				Name:   "status",
				Label:  "Status",
				Value:  func(r FitnessCertificate) string { return r.Status },
				Values: []string{FitnessValid, FitnessDueSoon, FitnessExpired},
				Tones:  fitnessTones,
			},
			{
				Name:   "risk",
				Label:  "Risk",
				Value:  func(r FitnessCertificate) string { return r.Risk },
				Values: []string{LevelLow, LevelMedium, LevelHigh},
				Tones:  levelTones,
			},
		},
		Columns: []tableview.Column[FitnessCertificate]{
			{Label: "Train ID", Text: func(r FitnessCertificate) string { return r.TrainID }},
			{Label: "Type", Text: func(r FitnessCertificate) string { return r.Type }},
			{Label: "Expiry", Text: func(r FitnessCertificate) string { return r.Expiry }},
			{
				Label: "Status",
				Text:  func(r FitnessCertificate) string { return r.Status },
				Tone:  func(r FitnessCertificate) tableview.Tone { return fitnessTones.Tone(r.Status) },
			},
			{
				Label: "Risk",
				Text:  func(r FitnessCertificate) string { return r.Risk },
				Tone:  func(r FitnessCertificate) tableview.Tone { return levelTones.Tone(r.Risk) },
			},
		},
		Summary: func(_ []FitnessCertificate, aggs map[string]tableview.Aggregate) []tableview.Card {
			return []tableview.Card{
				countCard(aggs, "status", FitnessValid, fitnessTones),
				countCard(aggs, "status", FitnessDueSoon, fitnessTones),
				countCard(aggs, "status", FitnessExpired, fitnessTones),
				{Label: "High Risk", Value: count(aggs["risk"].Get(LevelHigh)), Tone: tableview.ToneError},
			}
		},
		Key: func(r FitnessCertificate) string { return r.TrainID },
	}
}

// JobCardSchema drives the job card page.
func JobCardSchema() tableview.Schema[JobCard] {
	return tableview.Schema[JobCard]{
		Name:     "jobcards",
		Title:    "Job Card Status",
		Subtitle: "Open and completed maintenance work orders",
		Search: []func(JobCard) string{
			func(r JobCard) string { return r.JobID },
			func(r JobCard) string { return r.Train },
			func(r JobCard) string { return r.Type },
		},
		Dimensions: []tableview.Dimension[JobCard]{
			{
				Name:   "status",
				Label:  "Status",
				Value:  func(r JobCard) string { return r.Status },
				Values: []string{JobOpen, JobInProgress, JobClosed},
				Tones:  jobTones,
			},
			{
				Name:   "priority",
				Label:  "Priority",
				Value:  func(r JobCard) string { return r.Priority },
				Values: []string{LevelHigh, LevelMedium, LevelLow},
				Tones:  levelTones,
			},
			{
				Name:   "assigned",
				Label:  "Team",
				Value:  func(r JobCard) string { return r.Assigned },
				Values: []string{"Team A", "Team B", "Team C"},
			},
		},
		Columns: []tableview.Column[JobCard]{
			{Label: "Job ID", Text: func(r JobCard) string { return r.JobID }},
			{Label: "Train", Text: func(r JobCard) string { return r.Train }},
			{Label: "Type", Text: func(r JobCard) string { return r.Type }},
			{
				Label: "Status",
				Text:  func(r JobCard) string { return r.Status },
				Tone:  func(r JobCard) tableview.Tone { return jobTones.Tone(r.Status) },
			},
			{
				Label: "Priority",
				Text:  func(r JobCard) string { return r.Priority },
				Tone:  func(r JobCard) tableview.Tone { return levelTones.Tone(r.Priority) },
			},
			{Label: "Assigned", Text: func(r JobCard) string { return r.Assigned }},
		},
		Summary: func(_ []JobCard, aggs map[string]tableview.Aggregate) []tableview.Card {
			return []tableview.Card{
				countCard(aggs, "status", JobOpen, jobTones),
				countCard(aggs, "status", JobInProgress, jobTones),
				countCard(aggs, "status", JobClosed, jobTones),
				{Label: "High Priority", Value: count(aggs["priority"].Get(LevelHigh)), Tone: tableview.ToneError},
			}
		},
		Key: func(r JobCard) string { return r.JobID },
	}
}

// BrandingSchema drives the branding priorities page.
func BrandingSchema() tableview.Schema[BrandingCampaign] {
	return tableview.Schema[BrandingCampaign]{
		Name:     "branding",
		Title:    "Branding Priorities",
		Subtitle: "Advertising campaigns and their revenue",
		Search: []func(BrandingCampaign) string{
			func(r BrandingCampaign) string { return r.Campaign },
			func(r BrandingCampaign) string { return r.Train },
		},
		Dimensions: []tableview.Dimension[BrandingCampaign]{
			{
				Name:   "status",
				Label:  "Status",
				Value:  func(r BrandingCampaign) string { return r.Status },
				Values: []string{CampaignActive, CampaignExpired, CampaignPending},
				Tones:  campaignTones,
			},
			{
				Name:  "campaign",
				Label: "Campaign",
				Value: func(r BrandingCampaign) string { return r.Campaign },
			},
		},
		Columns: []tableview.Column[BrandingCampaign]{
			{Label: "Campaign", Text: func(r BrandingCampaign) string { return r.Campaign }},
			{Label: "Train", Text: func(r BrandingCampaign) string { return r.Train }},
			{
				Label: "Status",
				Text:  func(r BrandingCampaign) string { return r.Status },
				Tone:  func(r BrandingCampaign) tableview.Tone { return campaignTones.Tone(r.Status) },
			},
			{Label: "Expiry", Text: func(r BrandingCampaign) string { return r.Expiry }},
			{Label: "Revenue", Text: func(r BrandingCampaign) string { return r.Revenue.Format() }},
		},
		Summary: func(all []BrandingCampaign, aggs map[string]tableview.Aggregate) []tableview.Card {
			var total, active numeric.Money
			for _, c := range all {
				total += c.Revenue
				if c.Status == CampaignActive {
					active += c.Revenue
				}
			}
			return []tableview.Card{
				countCard(aggs, "status", CampaignActive, campaignTones),
				countCard(aggs, "status", CampaignExpired, campaignTones),
				{Label: "Total Revenue", Value: total.Format(), Tone: tableview.TonePrimary},
				{Label: "Active Revenue", Value: active.Format(), Tone: tableview.ToneSuccess},
			}
		},
		Key: func(r BrandingCampaign) string { return r.Train },
	}
}

// OverallVariance is (Σmileage − Σtarget) / Σtarget over the collection.
func OverallVariance(records []MileageRecord) numeric.Percent {
	var mileage, target float64
	for _, r := range records {
		mileage += r.Mileage.Float64()
		target += r.Target.Float64()
	}
	return numeric.PercentChange(mileage, target)
}

// MileageSchema drives the mileage balancing page.
func MileageSchema() tableview.Schema[MileageRecord] {
	return tableview.Schema[MileageRecord]{
		Name:     "mileage",
		Title:    "Mileage Balancing",
		Subtitle: "Distance run against balancing targets",
		Search: []func(MileageRecord) string{
			func(r MileageRecord) string { return r.TrainID },
		},
		Dimensions: []tableview.Dimension[MileageRecord]{
			{
				Name:   "efficiency",
				Label:  "Efficiency",
				Value:  func(r MileageRecord) string { return r.Efficiency },
				Values: []string{EfficiencyHigh, EfficiencyNormal, EfficiencyLow},
				Tones:  efficiencyTones,
			},
		},
		Columns: []tableview.Column[MileageRecord]{
			{Label: "Train ID", Text: func(r MileageRecord) string { return r.TrainID }},
			{Label: "Mileage (km)", Text: func(r MileageRecord) string { return r.Mileage.Format() }},
			{Label: "Target (km)", Text: func(r MileageRecord) string { return r.Target.Format() }},
			{Label: "Variance", Text: func(r MileageRecord) string { return r.Variance.Format() }},
			{
				Label: "Efficiency",
				Text:  func(r MileageRecord) string { return r.Efficiency },
				Tone:  func(r MileageRecord) tableview.Tone { return efficiencyTones.Tone(r.Efficiency) },
			},
		},
		Summary: func(all []MileageRecord, aggs map[string]tableview.Aggregate) []tableview.Card {
			return []tableview.Card{
				countCard(aggs, "efficiency", EfficiencyHigh, efficiencyTones),
				countCard(aggs, "efficiency", EfficiencyNormal, efficiencyTones),
				countCard(aggs, "efficiency", EfficiencyLow, efficiencyTones),
				{Label: "Overall Variance", Value: OverallVariance(all).Format(), Tone: tableview.TonePrimary},
			}
		},
		Key: func(r MileageRecord) string { return r.TrainID },
	}
}

// CleaningSchema drives the cleaning and detailing page.
func CleaningSchema() tableview.Schema[CleaningSlot] {
	return tableview.Schema[CleaningSlot]{
		Name:     "cleaning",
		Title:    "Cleaning & Detailing",
		Subtitle: "Cleaning bookings per bay",
		Search: []func(CleaningSlot) string{
			func(r CleaningSlot) string { return r.TrainID },
			func(r CleaningSlot) string { return r.Bay },
		},
		Dimensions: []tableview.Dimension[CleaningSlot]{
			{
				Name:   "status",
				Label:  "Status",
				Value:  func(r CleaningSlot) string { return r.Status },
				Values: []string{CleaningCompleted, CleaningInProgress, CleaningScheduled, CleaningCancelled},
				Tones:  cleaningTones,
			},
			{
				Name:   "type",
				Label:  "Type",
				Value:  func(r CleaningSlot) string { return r.Type },
				Values: []string{CleaningDeep, CleaningStandard},
			},
		},
		Columns: []tableview.Column[CleaningSlot]{
			{Label: "Train ID", Text: func(r CleaningSlot) string { return r.TrainID }},
			{Label: "Bay", Text: func(r CleaningSlot) string { return r.Bay }},
			{Label: "Time", Text: func(r CleaningSlot) string { return r.Time }},
			{
				Label: "Status",
				Text:  func(r CleaningSlot) string { return r.Status },
				Tone:  func(r CleaningSlot) tableview.Tone { return cleaningTones.Tone(r.Status) },
			},
			{Label: "Type", Text: func(r CleaningSlot) string { return r.Type }},
		},
		Summary: func(_ []CleaningSlot, aggs map[string]tableview.Aggregate) []tableview.Card {
			return []tableview.Card{
				countCard(aggs, "status", CleaningCompleted, cleaningTones),
				countCard(aggs, "status", CleaningInProgress, cleaningTones),
				countCard(aggs, "status", CleaningScheduled, cleaningTones),
				{Label: CleaningDeep, Value: count(aggs["type"].Get(CleaningDeep)), Tone: tableview.TonePrimary},
			}
		},
		Key: func(r CleaningSlot) string { return r.TrainID },
	}
}

// StablingSchema drives the stabling geometry page.
func StablingSchema() tableview.Schema[StablingBay] {
	return tableview.Schema[StablingBay]{
		Name:     "stabling",
		Title:    "Stabling Geometry",
		Subtitle: "Overnight bay occupancy and departures",
		Search: []func(StablingBay) string{
			func(r StablingBay) string { return r.TrainID },
			func(r StablingBay) string { return r.Bay },
		},
		Dimensions: []tableview.Dimension[StablingBay]{
			{
				Name:   "status",
				Label:  "Status",
				Value:  func(r StablingBay) string { return r.Status },
				Values: []string{BayOccupied, BayAvailable, BayReserved, BayMaintenance},
				Tones:  bayTones,
			},
			{
				Name:   "position",
				Label:  "Position",
				Value:  func(r StablingBay) string { return r.Position },
				Values: []string{PositionPlatformSide, PositionMaintenance},
			},
		},
		Columns: []tableview.Column[StablingBay]{
			{Label: "Train ID", Text: func(r StablingBay) string { return r.TrainID }},
			{Label: "Bay", Text: func(r StablingBay) string { return r.Bay }},
			{Label: "Position", Text: func(r StablingBay) string { return r.Position }},
			{Label: "Occupied", Text: func(r StablingBay) string { return r.Occupied }},
			{Label: "Departure", Text: func(r StablingBay) string { return r.Depart }},
			{
				Label: "Status",
				Text:  func(r StablingBay) string { return r.Status },
				Tone:  func(r StablingBay) tableview.Tone { return bayTones.Tone(r.Status) },
			},
		},
		Summary: func(_ []StablingBay, aggs map[string]tableview.Aggregate) []tableview.Card {
			return []tableview.Card{
				countCard(aggs, "status", BayOccupied, bayTones),
				countCard(aggs, "status", BayAvailable, bayTones),
				{Label: PositionPlatformSide, Value: count(aggs["position"].Get(PositionPlatformSide)), Tone: tableview.ToneInfo},
				{Label: "Maintenance Position", Value: count(aggs["position"].Get(PositionMaintenance)), Tone: tableview.ToneWarning},
			}
		},
		Key: func(r StablingBay) string { return r.TrainID },
	}
}

// TrainsetSchema drives the train audit page.
func TrainsetSchema() tableview.Schema[Trainset] {
	return tableview.Schema[Trainset]{
		Name:     "trainsets",
		Title:    "Train Audit",
		Subtitle: "Every trainset with its fitness, jobs and stabling bay",
		Search: []func(Trainset) string{
			func(r Trainset) string { return r.TrainID },
			func(r Trainset) string { return r.Name },
		},
		Dimensions: []tableview.Dimension[Trainset]{
			{
				Name:   "status",
				Label:  "Status",
				Value:  func(r Trainset) string { return r.Status },
				Values: []string{TrainActive, TrainMaintenance},
				Tones:  trainTones,
			},
			{
				Name:   "fitness",
				Label:  "Fitness",
				Value:  func(r Trainset) string { return r.Fitness },
				Values: []string{FitnessValid, FitnessDueSoon, FitnessExpired},
				Tones:  fitnessTones,
			},
		},
		Columns: []tableview.Column[Trainset]{
			{Label: "Train ID", Text: func(r Trainset) string { return r.TrainID }},
			{Label: "Name", Text: func(r Trainset) string { return r.Name }},
			{
				Label: "Fitness",
				Text:  func(r Trainset) string { return r.Fitness },
				Tone:  func(r Trainset) tableview.Tone { return fitnessTones.Tone(r.Fitness) },
			},
			{Label: "Jobs", Text: func(r Trainset) string { return count(len(r.JobCards)) }},
			{Label: "Mileage (km)", Text: func(r Trainset) string { return r.Mileage.Format() }},
			{Label: "Bay", Text: func(r Trainset) string { return r.Bay }},
			{
				Label: "Status",
				Text:  func(r Trainset) string { return r.Status },
				Tone:  func(r Trainset) tableview.Tone { return trainTones.Tone(r.Status) },
			},
		},
		Summary: func(all []Trainset, aggs map[string]tableview.Aggregate) []tableview.Card {
			pending := 0
			for _, t := range all {
				pending += t.PendingJobs()
			}
			return []tableview.Card{
				countCard(aggs, "status", TrainActive, trainTones),
				countCard(aggs, "status", TrainMaintenance, trainTones),
				{Label: "Expired Fitness", Value: count(aggs["fitness"].Get(FitnessExpired)), Tone: tableview.ToneError},
				{Label: "Pending Jobs", Value: count(pending), Tone: tableview.ToneWarning},
			}
		},
		Key: func(r Trainset) string { return r.TrainID },
	}
}
