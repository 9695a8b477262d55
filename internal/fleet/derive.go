package fleet

import "github.com/kmrl/opsboard/internal/numeric"

// MileageTarget is the balancing target applied to every trainset when the
// store has no per-train target.
const MileageTarget numeric.Distance = 100000

const consolidatedCertificate = "Consolidated"

// DeriveFitness builds the certificate row of a stored trainset.
func DeriveFitness(t Trainset) FitnessCertificate {
	status := t.Fitness
	if status == "" {
		status = FitnessValid
	}
	return FitnessCertificate{
		TrainID: t.TrainID,
		Status:  status,
		Expiry:  t.ValidUntil,
		Type:    consolidatedCertificate,
		Risk:    RiskForFitness(status),
	}
}

// DeriveMileage compares a trainset's mileage with MileageTarget.
func DeriveMileage(t Trainset) MileageRecord {
	variance := numeric.PercentChange(t.Mileage.Float64(), MileageTarget.Float64())
	return MileageRecord{
		TrainID:    t.TrainID,
		Mileage:    t.Mileage,
		Target:     MileageTarget,
		Variance:   variance,
		Efficiency: EfficiencyForVariance(variance),
	}
}

// DeriveStabling reports the bay a trainset occupies, if any.
func DeriveStabling(t Trainset) StablingBay {
	if t.Bay == "" {
		return StablingBay{TrainID: t.TrainID, Status: BayAvailable}
	}
	return StablingBay{TrainID: t.TrainID, Bay: t.Bay, Status: BayOccupied}
}
