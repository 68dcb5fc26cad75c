package stats

import (
	"github.com/verdantgrid/h2ledger/internal/stats/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stats.service",
	fx.Provide(service.NewService),
)
