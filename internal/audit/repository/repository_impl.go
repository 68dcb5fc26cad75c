package repository

import (
	"context"

	"github.com/verdantgrid/h2ledger/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, txn *domain.Transaction) error {
	if txn == nil {
		return nil
	}
	return conn.WithContext(ctx).Exec(
		`INSERT INTO transactions (
			id, credit_id, kind, from_principal, to_principal, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.CreditID,
		txn.Kind,
		txn.From,
		txn.To,
		txn.Metadata,
		txn.CreatedAt,
	).Error
}

func (r *repo) ListByCredit(ctx context.Context, conn *gorm.DB, creditID int64) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := conn.WithContext(ctx).Model(&domain.Transaction{}).
		Where("credit_id = ?", creditID).
		Order("created_at asc, id asc").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	stmt := conn.WithContext(ctx).Model(&domain.Transaction{})

	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	if filter.CreditID != 0 {
		stmt = stmt.Where("credit_id = ?", filter.CreditID)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.CursorCreatedAt != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.CursorCreatedAt,
			filter.CursorCreatedAt,
			filter.CursorID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
