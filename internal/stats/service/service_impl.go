package service

import (
	"context"

	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
	"github.com/verdantgrid/h2ledger/internal/stats/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Conversion factors: tons of CO2 avoided per ton of green hydrogen
// (vs grey hydrogen), trees needed to absorb one ton of CO2 per year,
// and yearly CO2 output of one passenger car in tons.
const (
	co2PerHydrogenTon = 9.3
	treesPerCO2Ton    = 16
	carCO2TonsPerYear = 4.6
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Credits creditdomain.Repository
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	credits creditdomain.Repository
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("stats.service"),
		credits: p.Credits,
	}
}

func (s *service) Impact(ctx context.Context) (*domain.ImpactReport, error) {
	credits, err := s.credits.List(ctx, s.db, creditdomain.ListFilter{})
	if err != nil {
		return nil, err
	}

	report := &domain.ImpactReport{
		CreditCount: len(credits),
	}

	var verified, retired int
	for _, credit := range credits {
		report.TotalHydrogenTons += credit.Amount
		if credit.Verified {
			verified++
		}
		if credit.Status == creditdomain.StatusRetired {
			retired++
		}
	}

	report.CO2SavedTons = report.TotalHydrogenTons * co2PerHydrogenTon
	report.TreeEquivalent = report.CO2SavedTons * treesPerCO2Ton
	report.CarEquivalent = report.CO2SavedTons / carCO2TonsPerYear

	if len(credits) > 0 {
		report.VerificationRate = float64(verified) / float64(len(credits))
		report.RetirementRate = float64(retired) / float64(len(credits))
	}

	return report, nil
}
