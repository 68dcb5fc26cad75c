package domain

import (
	"context"

	auditdomain "github.com/verdantgrid/h2ledger/internal/audit/domain"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
)

// Service is the credit ledger engine. Every mutation is atomic: the
// credit row and its audit transaction commit together or not at all.
type Service interface {
	Issue(ctx context.Context, producer string, amount float64) (*creditdomain.Credit, error)
	Transfer(ctx context.Context, caller string, id int64, to string) (*creditdomain.Credit, error)
	Retire(ctx context.Context, caller string, id int64) (*creditdomain.Credit, error)
	Verify(ctx context.Context, auditor string, id int64) (*creditdomain.Credit, error)
	Get(ctx context.Context, id int64) (*creditdomain.Credit, error)
	List(ctx context.Context, filter creditdomain.ListFilter) ([]*creditdomain.Credit, error)
	History(ctx context.Context, id int64) ([]*auditdomain.Transaction, error)
}
