package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("not_found")
	ErrDuplicateID        = errors.New("duplicate_id")
	ErrInvalidProducer    = errors.New("invalid_producer")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidOwner       = errors.New("invalid_owner")
	ErrInvalidDestination = errors.New("invalid_destination")
	ErrNotOwner           = errors.New("not_owner")
	ErrAlreadyRetired     = errors.New("already_retired")
	ErrSelfTransfer       = errors.New("self_transfer")
)

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Owner    string
	Status   Status
	Verified *bool
}

// Repository persists credits. Mutations are guarded single-row updates
// returning the affected row count so the service layer can classify a
// lost race by re-reading inside the same transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, credit *Credit) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Credit, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Credit, error)
	UpdateOwner(ctx context.Context, db *gorm.DB, id int64, from, to string, at time.Time) (int64, error)
	MarkRetired(ctx context.Context, db *gorm.DB, id int64, owner string, at time.Time) (int64, error)
	MarkVerified(ctx context.Context, db *gorm.DB, id int64, at time.Time) (int64, error)
	MaxID(ctx context.Context, db *gorm.DB) (int64, error)
}
