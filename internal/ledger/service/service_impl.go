package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/verdantgrid/h2ledger/internal/audit/domain"
	"github.com/verdantgrid/h2ledger/internal/authorization"
	"github.com/verdantgrid/h2ledger/internal/clock"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
	"github.com/verdantgrid/h2ledger/internal/ledger/domain"
	obsmetrics "github.com/verdantgrid/h2ledger/internal/observability/metrics"
	"github.com/verdantgrid/h2ledger/internal/sequence"
	"github.com/verdantgrid/h2ledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxRetries bounds transparent retries of transactions that lost to
// driver-level contention (sqlite busy, deadlock, serialization).
const maxRetries = 3

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Seq          *sequence.Allocator
	Credits      creditdomain.Repository
	Transactions auditdomain.Repository
	Authz        authorization.Service
	Clock        clock.Clock
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	seq     *sequence.Allocator
	credits creditdomain.Repository
	txns    auditdomain.Repository
	authz   authorization.Service
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		seq:     p.Seq,
		credits: p.Credits,
		txns:    p.Transactions,
		authz:   p.Authz,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *service) Issue(ctx context.Context, producer string, amount float64) (*creditdomain.Credit, error) {
	producer = strings.TrimSpace(producer)
	if producer == "" {
		return nil, creditdomain.ErrInvalidProducer
	}
	if amount <= 0 {
		return nil, creditdomain.ErrInvalidAmount
	}

	id, err := s.seq.Next()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	credit := &creditdomain.Credit{
		ID:           id,
		Producer:     producer,
		Amount:       amount,
		CurrentOwner: producer,
		Status:       creditdomain.StatusActive,
		IssuedAt:     now,
		UpdatedAt:    now,
	}

	err = s.inTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.credits.Insert(ctx, tx, credit); err != nil {
			return err
		}
		return s.txns.Insert(ctx, tx, &auditdomain.Transaction{
			ID:        s.genID.Generate().Int64(),
			CreditID:  id,
			Kind:      auditdomain.KindIssued,
			To:        &producer,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("credit issued",
		zap.Int64("credit_id", id),
		zap.String("producer", producer),
		zap.Float64("amount", amount),
	)
	s.metrics.RecordCreditOp(ctx, string(auditdomain.KindIssued))
	s.metrics.RecordHydrogen(ctx, amount)
	return credit, nil
}

func (s *service) Transfer(ctx context.Context, caller string, id int64, to string) (*creditdomain.Credit, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, creditdomain.ErrInvalidOwner
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, creditdomain.ErrInvalidDestination
	}

	now := s.clock.Now()
	var credit *creditdomain.Credit

	err := s.inTransaction(ctx, func(tx *gorm.DB) error {
		rows, err := s.credits.UpdateOwner(ctx, tx, id, caller, to, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return s.classifyTransferFailure(ctx, tx, id, caller, to)
		}

		credit, err = s.credits.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.txns.Insert(ctx, tx, &auditdomain.Transaction{
			ID:        s.genID.Generate().Int64(),
			CreditID:  id,
			Kind:      auditdomain.KindTransferred,
			From:      &caller,
			To:        &to,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("credit transferred",
		zap.Int64("credit_id", id),
		zap.String("from", caller),
		zap.String("to", to),
	)
	s.metrics.RecordCreditOp(ctx, string(auditdomain.KindTransferred))
	return credit, nil
}

func (s *service) Retire(ctx context.Context, caller string, id int64) (*creditdomain.Credit, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return nil, creditdomain.ErrInvalidOwner
	}

	now := s.clock.Now()
	var credit *creditdomain.Credit

	err := s.inTransaction(ctx, func(tx *gorm.DB) error {
		rows, err := s.credits.MarkRetired(ctx, tx, id, caller, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return s.classifyRetireFailure(ctx, tx, id, caller)
		}

		credit, err = s.credits.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		return s.txns.Insert(ctx, tx, &auditdomain.Transaction{
			ID:        s.genID.Generate().Int64(),
			CreditID:  id,
			Kind:      auditdomain.KindRetired,
			From:      &caller,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("credit retired",
		zap.Int64("credit_id", id),
		zap.String("owner", caller),
	)
	s.metrics.RecordCreditOp(ctx, string(auditdomain.KindRetired))
	return credit, nil
}

// Verify is idempotent: re-verifying an already verified credit keeps
// the original verified_at and still appends a verified transaction.
func (s *service) Verify(ctx context.Context, auditor string, id int64) (*creditdomain.Credit, error) {
	auditor = strings.TrimSpace(auditor)
	if err := s.authz.Authorize(ctx, auditor, authorization.ObjectCredit, authorization.ActionVerify); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var credit *creditdomain.Credit

	err := s.inTransaction(ctx, func(tx *gorm.DB) error {
		rows, err := s.credits.MarkVerified(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return creditdomain.ErrNotFound
		}

		credit, err = s.credits.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if credit == nil {
			return creditdomain.ErrNotFound
		}
		return s.txns.Insert(ctx, tx, &auditdomain.Transaction{
			ID:        s.genID.Generate().Int64(),
			CreditID:  id,
			Kind:      auditdomain.KindVerified,
			Metadata:  datatypes.JSONMap{"auditor": auditor},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("credit verified",
		zap.Int64("credit_id", id),
		zap.String("auditor", auditor),
	)
	s.metrics.RecordCreditOp(ctx, string(auditdomain.KindVerified))
	return credit, nil
}

func (s *service) Get(ctx context.Context, id int64) (*creditdomain.Credit, error) {
	credit, err := s.credits.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if credit == nil {
		return nil, creditdomain.ErrNotFound
	}
	return credit, nil
}

func (s *service) List(ctx context.Context, filter creditdomain.ListFilter) ([]*creditdomain.Credit, error) {
	return s.credits.List(ctx, s.db, filter)
}

// History returns the full ordered transaction log for a credit. Legacy
// rows imported without an issuance record get one synthesized from the
// credit's immutable producer and issued_at.
func (s *service) History(ctx context.Context, id int64) ([]*auditdomain.Transaction, error) {
	credit, err := s.credits.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if credit == nil {
		return nil, creditdomain.ErrNotFound
	}

	txns, err := s.txns.ListByCredit(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	for _, txn := range txns {
		if txn.Kind == auditdomain.KindIssued {
			return txns, nil
		}
	}

	producer := credit.Producer
	issued := &auditdomain.Transaction{
		CreditID:  id,
		Kind:      auditdomain.KindIssued,
		To:        &producer,
		CreatedAt: credit.IssuedAt,
	}
	return append([]*auditdomain.Transaction{issued}, txns...), nil
}

// classifyTransferFailure re-reads the row inside the same transaction
// to decide why the guarded update matched nothing.
func (s *service) classifyTransferFailure(ctx context.Context, tx *gorm.DB, id int64, caller, to string) error {
	credit, err := s.credits.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	switch {
	case credit == nil:
		return creditdomain.ErrNotFound
	case credit.CurrentOwner != caller:
		return creditdomain.ErrNotOwner
	case credit.Status == creditdomain.StatusRetired:
		return creditdomain.ErrAlreadyRetired
	case credit.CurrentOwner == to:
		return creditdomain.ErrSelfTransfer
	default:
		return creditdomain.ErrNotFound
	}
}

func (s *service) classifyRetireFailure(ctx context.Context, tx *gorm.DB, id int64, caller string) error {
	credit, err := s.credits.FindByID(ctx, tx, id)
	if err != nil {
		return err
	}
	switch {
	case credit == nil:
		return creditdomain.ErrNotFound
	case credit.Status == creditdomain.StatusRetired:
		return creditdomain.ErrAlreadyRetired
	case credit.CurrentOwner != caller:
		return creditdomain.ErrNotOwner
	default:
		return creditdomain.ErrNotFound
	}
}

func (s *service) inTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !db.IsRetryableErr(err) {
			return err
		}
		s.log.Warn("retrying contended transaction",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return err
}
