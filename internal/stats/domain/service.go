package domain

import "context"

// ImpactReport aggregates environmental impact over all issued credits.
type ImpactReport struct {
	CreditCount       int     `json:"credit_count"`
	TotalHydrogenTons float64 `json:"total_hydrogen_tons"`
	CO2SavedTons      float64 `json:"co2_saved_tons"`
	TreeEquivalent    float64 `json:"tree_equivalent"`
	CarEquivalent     float64 `json:"car_equivalent"`
	VerificationRate  float64 `json:"verification_rate"`
	RetirementRate    float64 `json:"retirement_rate"`
}

type Service interface {
	Impact(ctx context.Context) (*ImpactReport, error)
}
