package fraud

import (
	"github.com/verdantgrid/h2ledger/internal/config"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
	"go.uber.org/fx"
)

// DefaultThreshold is the review threshold in tons of hydrogen.
const DefaultThreshold = 1000.0

// Detector flags credits for manual review. It is stateless; a flag is
// derived on read and never persisted, so verification clears it
// without any writeback.
type Detector struct {
	threshold float64
}

func NewDetector(cfg config.Config) *Detector {
	threshold := cfg.FraudThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Flagged reports whether the credit is unusually large and still
// unverified.
func (d *Detector) Flagged(credit *creditdomain.Credit) bool {
	if credit == nil {
		return false
	}
	return credit.Amount > d.threshold && !credit.Verified
}

func (d *Detector) Threshold() float64 {
	return d.threshold
}

var Module = fx.Module("fraud",
	fx.Provide(NewDetector),
)
