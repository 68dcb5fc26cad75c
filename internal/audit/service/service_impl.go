package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/verdantgrid/h2ledger/internal/audit/domain"
	"github.com/verdantgrid/h2ledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &service{
		db:   p.DB,
		log:  p.Log.Named("audit.service"),
		repo: p.Repo,
	}
}

func (s *service) List(ctx context.Context, req domain.ListTransactionsRequest) (*domain.ListTransactionsResponse, error) {
	limit := req.Pagination.PageSize
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := domain.ListFilter{
		Kind:     req.Kind,
		CreditID: req.CreditID,
		StartAt:  req.StartAt,
		EndAt:    req.EndAt,
		Limit:    limit,
	}

	if token := strings.TrimSpace(req.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		id, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		filter.CursorCreatedAt = &createdAt
		filter.CursorID = id
	}

	txns, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		s.log.Error("list transactions", zap.Error(err))
		return nil, err
	}

	page, info := pagination.BuildCursorPageInfo(txns, limit, func(t *domain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        strconv.FormatInt(t.ID, 10),
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	return &domain.ListTransactionsResponse{
		Transactions: page,
		PageInfo:     info,
	}, nil
}
