package domain

import (
	"context"
	"errors"
	"time"

	"github.com/verdantgrid/h2ledger/pkg/db/pagination"
	"gorm.io/gorm"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

// ListFilter narrows the global transaction feed.
type ListFilter struct {
	Kind     Kind
	CreditID int64
	StartAt  *time.Time
	EndAt    *time.Time

	CursorCreatedAt *time.Time
	CursorID        int64
	Limit           int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	ListByCredit(ctx context.Context, db *gorm.DB, creditID int64) ([]*Transaction, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Transaction, error)
}

type ListTransactionsRequest struct {
	Pagination pagination.Pagination
	Kind       Kind
	CreditID   int64
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListTransactionsResponse struct {
	Transactions []*Transaction       `json:"data"`
	PageInfo     *pagination.PageInfo `json:"page_info"`
}

// Service exposes the global audit feed.
type Service interface {
	List(ctx context.Context, req ListTransactionsRequest) (*ListTransactionsResponse, error)
}
