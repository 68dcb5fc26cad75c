package sequence

import (
	"context"

	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Credits creditdomain.Repository
}

// Provide seeds the allocator from the highest persisted credit id so
// ids keep increasing across restarts.
func Provide(p Params) (*Allocator, error) {
	max, err := p.Credits.MaxID(context.Background(), p.DB)
	if err != nil {
		return nil, err
	}
	p.Log.Named("sequence").Info("allocator seeded", zap.Int64("next_id", max+1))
	return New(max + 1), nil
}

var Module = fx.Module("sequence",
	fx.Provide(Provide),
)
