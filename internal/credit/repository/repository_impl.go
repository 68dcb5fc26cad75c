package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/verdantgrid/h2ledger/internal/credit/domain"
	"github.com/verdantgrid/h2ledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, credit *domain.Credit) error {
	if credit == nil {
		return nil
	}
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO credits (
			id, producer, amount, current_owner, status, verified,
			issued_at, verified_at, retired_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		credit.ID,
		credit.Producer,
		credit.Amount,
		credit.CurrentOwner,
		credit.Status,
		credit.Verified,
		credit.IssuedAt,
		credit.VerifiedAt,
		credit.RetiredAt,
		credit.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateID
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id int64) (*domain.Credit, error) {
	var credit domain.Credit
	err := conn.WithContext(ctx).
		Where("id = ?", id).
		First(&credit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &credit, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Credit, error) {
	var credits []*domain.Credit
	stmt := conn.WithContext(ctx).Model(&domain.Credit{})

	if owner := strings.TrimSpace(filter.Owner); owner != "" {
		stmt = stmt.Where("current_owner = ?", owner)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Verified != nil {
		stmt = stmt.Where("verified = ?", *filter.Verified)
	}

	if err := stmt.Order("id asc").Find(&credits).Error; err != nil {
		return nil, err
	}
	return credits, nil
}

func (r *repo) UpdateOwner(ctx context.Context, conn *gorm.DB, id int64, from, to string, at time.Time) (int64, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE credits
		SET current_owner = ?, updated_at = ?
		WHERE id = ? AND current_owner = ? AND status = ? AND current_owner <> ?`,
		to, at, id, from, domain.StatusActive, to,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkRetired(ctx context.Context, conn *gorm.DB, id int64, owner string, at time.Time) (int64, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE credits
		SET status = ?, retired_at = ?, updated_at = ?
		WHERE id = ? AND current_owner = ? AND status = ?`,
		domain.StatusRetired, at, at, id, owner, domain.StatusActive,
	)
	return res.RowsAffected, res.Error
}

// MarkVerified is idempotent: verified_at keeps its first value, and
// updated_at always moves so drivers report the row as affected.
func (r *repo) MarkVerified(ctx context.Context, conn *gorm.DB, id int64, at time.Time) (int64, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE credits
		SET verified = ?, verified_at = COALESCE(verified_at, ?), updated_at = ?
		WHERE id = ?`,
		true, at, at, id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MaxID(ctx context.Context, conn *gorm.DB) (int64, error) {
	var max int64
	err := conn.WithContext(ctx).
		Raw(`SELECT COALESCE(MAX(id), 0) FROM credits`).
		Scan(&max).Error
	return max, err
}
