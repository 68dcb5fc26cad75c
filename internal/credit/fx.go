package credit

import (
	"github.com/verdantgrid/h2ledger/internal/credit/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.store",
	fx.Provide(repository.Provide),
)
