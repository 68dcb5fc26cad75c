package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auditdomain "github.com/verdantgrid/h2ledger/internal/audit/domain"
	auditrepo "github.com/verdantgrid/h2ledger/internal/audit/repository"
	"github.com/verdantgrid/h2ledger/internal/authorization"
	"github.com/verdantgrid/h2ledger/internal/clock"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
	creditrepo "github.com/verdantgrid/h2ledger/internal/credit/repository"
	"github.com/verdantgrid/h2ledger/internal/ledger/domain"
	"github.com/verdantgrid/h2ledger/internal/sequence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeAuthz struct {
	auditors map[string]bool
}

func (f *fakeAuthz) Authorize(ctx context.Context, principal, object, action string) error {
	if object == authorization.ObjectCredit && action == authorization.ActionVerify && f.auditors[principal] {
		return nil
	}
	return authorization.ErrNotAuthorized
}

func (f *fakeAuthz) AddAuditor(ctx context.Context, actor, principal string) error {
	f.auditors[principal] = true
	return nil
}

func (f *fakeAuthz) RemoveAuditor(ctx context.Context, actor, principal string) error {
	delete(f.auditors, principal)
	return nil
}

func (f *fakeAuthz) ListAuditors(ctx context.Context) ([]string, error) {
	auditors := make([]string, 0, len(f.auditors))
	for principal := range f.auditors {
		auditors = append(auditors, principal)
	}
	sort.Strings(auditors)
	return auditors, nil
}

func newTestLedger(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(&creditdomain.Credit{}, &auditdomain.Transaction{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		GenID:        node,
		Seq:          sequence.New(1),
		Credits:      creditrepo.Provide(),
		Transactions: auditrepo.Provide(),
		Authz:        &fakeAuthz{auditors: map[string]bool{"auditor-1": true}},
		Clock:        fc,
	})
	return svc, conn, fc
}

func creditTransactions(t *testing.T, conn *gorm.DB, creditID int64) []*auditdomain.Transaction {
	t.Helper()
	txns, err := auditrepo.Provide().ListByCredit(context.Background(), conn, creditID)
	require.NoError(t, err)
	return txns
}

func TestIssueAssignsSequentialIDs(t *testing.T) {
	svc, conn, fc := newTestLedger(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, "producer-b", 50)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, "producer-a", first.Producer)
	assert.Equal(t, "producer-a", first.CurrentOwner)
	assert.Equal(t, creditdomain.StatusActive, first.Status)
	assert.False(t, first.Verified)
	assert.Equal(t, fc.Now(), first.IssuedAt)

	txns := creditTransactions(t, conn, first.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, auditdomain.KindIssued, txns[0].Kind)
	require.NotNil(t, txns[0].To)
	assert.Equal(t, "producer-a", *txns[0].To)
	assert.Nil(t, txns[0].From)
}

func TestIssueRejectsNonPositiveAmount(t *testing.T) {
	svc, conn, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "producer-a", 0)
	require.ErrorIs(t, err, creditdomain.ErrInvalidAmount)
	_, err = svc.Issue(ctx, "producer-a", -5)
	require.ErrorIs(t, err, creditdomain.ErrInvalidAmount)

	var count int64
	require.NoError(t, conn.Model(&creditdomain.Credit{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIssueRejectsEmptyProducer(t *testing.T) {
	svc, _, _ := newTestLedger(t)

	_, err := svc.Issue(context.Background(), "  ", 10)
	require.ErrorIs(t, err, creditdomain.ErrInvalidProducer)
}

func TestTransferMovesOwnership(t *testing.T) {
	svc, conn, fc := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)

	fc.Advance(time.Minute)
	transferred, err := svc.Transfer(ctx, "producer-a", issued.ID, "buyer-1")
	require.NoError(t, err)

	assert.Equal(t, "buyer-1", transferred.CurrentOwner)
	assert.Equal(t, "producer-a", transferred.Producer)
	assert.Equal(t, creditdomain.StatusActive, transferred.Status)

	txns := creditTransactions(t, conn, issued.ID)
	require.Len(t, txns, 2)
	assert.Equal(t, auditdomain.KindTransferred, txns[1].Kind)
	require.NotNil(t, txns[1].From)
	require.NotNil(t, txns[1].To)
	assert.Equal(t, "producer-a", *txns[1].From)
	assert.Equal(t, "buyer-1", *txns[1].To)
}

func TestTransferFailureClassification(t *testing.T) {
	svc, conn, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, "producer-a", 999, "buyer-1")
	assert.ErrorIs(t, err, creditdomain.ErrNotFound)

	_, err = svc.Transfer(ctx, "stranger", issued.ID, "buyer-1")
	assert.ErrorIs(t, err, creditdomain.ErrNotOwner)

	_, err = svc.Transfer(ctx, "producer-a", issued.ID, "producer-a")
	assert.ErrorIs(t, err, creditdomain.ErrSelfTransfer)

	// Failed attempts must not leave audit entries behind.
	assert.Len(t, creditTransactions(t, conn, issued.ID), 1)

	_, err = svc.Retire(ctx, "producer-a", issued.ID)
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, "producer-a", issued.ID, "buyer-1")
	assert.ErrorIs(t, err, creditdomain.ErrAlreadyRetired)
}

func TestRetire(t *testing.T) {
	svc, conn, fc := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)

	fc.Advance(time.Hour)
	retired, err := svc.Retire(ctx, "producer-a", issued.ID)
	require.NoError(t, err)

	assert.Equal(t, creditdomain.StatusRetired, retired.Status)
	require.NotNil(t, retired.RetiredAt)
	assert.WithinDuration(t, fc.Now(), *retired.RetiredAt, time.Second)

	txns := creditTransactions(t, conn, issued.ID)
	require.Len(t, txns, 2)
	assert.Equal(t, auditdomain.KindRetired, txns[1].Kind)
}

func TestRetireFailureClassification(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)

	_, err = svc.Retire(ctx, "stranger", issued.ID)
	assert.ErrorIs(t, err, creditdomain.ErrNotOwner)

	_, err = svc.Retire(ctx, "producer-a", 999)
	assert.ErrorIs(t, err, creditdomain.ErrNotFound)

	_, err = svc.Retire(ctx, "producer-a", issued.ID)
	require.NoError(t, err)

	// Already retired wins over wrong owner.
	_, err = svc.Retire(ctx, "stranger", issued.ID)
	assert.ErrorIs(t, err, creditdomain.ErrAlreadyRetired)
	_, err = svc.Retire(ctx, "producer-a", issued.ID)
	assert.ErrorIs(t, err, creditdomain.ErrAlreadyRetired)
}

func TestVerify(t *testing.T) {
	svc, conn, fc := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)

	fc.Advance(time.Minute)
	verified, err := svc.Verify(ctx, "auditor-1", issued.ID)
	require.NoError(t, err)

	assert.True(t, verified.Verified)
	require.NotNil(t, verified.VerifiedAt)
	firstVerifiedAt := verified.VerifiedAt.UTC()

	txns := creditTransactions(t, conn, issued.ID)
	require.Len(t, txns, 2)
	assert.Equal(t, auditdomain.KindVerified, txns[1].Kind)
	assert.Equal(t, "auditor-1", txns[1].Metadata["auditor"])

	// Idempotent: verified_at keeps its first value, duplicate audit
	// records are preserved.
	fc.Advance(time.Hour)
	again, err := svc.Verify(ctx, "auditor-1", issued.ID)
	require.NoError(t, err)
	assert.True(t, again.Verified)
	require.NotNil(t, again.VerifiedAt)
	assert.WithinDuration(t, firstVerifiedAt, *again.VerifiedAt, time.Second)
	assert.Len(t, creditTransactions(t, conn, issued.ID), 3)
}

func TestVerifyDeniedAndMissing(t *testing.T) {
	svc, conn, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, "not-an-auditor", issued.ID)
	assert.ErrorIs(t, err, authorization.ErrNotAuthorized)
	assert.Len(t, creditTransactions(t, conn, issued.ID), 1)

	_, err = svc.Verify(ctx, "auditor-1", 999)
	assert.ErrorIs(t, err, creditdomain.ErrNotFound)
}

func TestVerifyKeepsRetiredCreditVerifiable(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)
	_, err = svc.Retire(ctx, "producer-a", issued.ID)
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, "auditor-1", issued.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	assert.Equal(t, creditdomain.StatusRetired, verified.Status)
}

func TestGetAndList(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, 1)
	assert.ErrorIs(t, err, creditdomain.ErrNotFound)

	a, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)
	b, err := svc.Issue(ctx, "producer-b", 200)
	require.NoError(t, err)
	_, err = svc.Retire(ctx, "producer-b", b.ID)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, "auditor-1", a.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	all, err := svc.List(ctx, creditdomain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)

	active, err := svc.List(ctx, creditdomain.ListFilter{Status: creditdomain.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	owned, err := svc.List(ctx, creditdomain.ListFilter{Owner: "producer-b"})
	require.NoError(t, err)
	require.Len(t, owned, 1)

	verified := true
	verifiedOnly, err := svc.List(ctx, creditdomain.ListFilter{Verified: &verified})
	require.NoError(t, err)
	require.Len(t, verifiedOnly, 1)
	assert.Equal(t, a.ID, verifiedOnly[0].ID)
}

func TestHistoryOrderAndSynthesis(t *testing.T) {
	svc, conn, fc := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)
	fc.Advance(time.Minute)
	_, err = svc.Transfer(ctx, "producer-a", issued.ID, "buyer-1")
	require.NoError(t, err)
	fc.Advance(time.Minute)
	_, err = svc.Retire(ctx, "buyer-1", issued.ID)
	require.NoError(t, err)

	history, err := svc.History(ctx, issued.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, auditdomain.KindIssued, history[0].Kind)
	assert.Equal(t, auditdomain.KindTransferred, history[1].Kind)
	assert.Equal(t, auditdomain.KindRetired, history[2].Kind)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt))
	}

	_, err = svc.History(ctx, 999)
	assert.ErrorIs(t, err, creditdomain.ErrNotFound)

	// A credit imported without an issuance record gets one synthesized
	// from its immutable fields.
	legacy := &creditdomain.Credit{
		ID:           50,
		Producer:     "legacy-producer",
		Amount:       10,
		CurrentOwner: "legacy-producer",
		Status:       creditdomain.StatusActive,
		IssuedAt:     fc.Now().Add(-time.Hour),
		UpdatedAt:    fc.Now(),
	}
	require.NoError(t, creditrepo.Provide().Insert(ctx, conn, legacy))

	history, err = svc.History(ctx, legacy.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, auditdomain.KindIssued, history[0].Kind)
	require.NotNil(t, history[0].To)
	assert.Equal(t, "legacy-producer", *history[0].To)
	assert.WithinDuration(t, legacy.IssuedAt, history[0].CreatedAt, time.Second)
}

func TestConcurrentTransfersSingleWinner(t *testing.T) {
	svc, conn, _ := newTestLedger(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "producer-a", 100)
	require.NoError(t, err)

	const contenders = 8
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transfer(ctx, "producer-a", issued.ID, fmt.Sprintf("buyer-%d", i))
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, creditdomain.ErrNotOwner)
		}
	}
	assert.Equal(t, 1, won)

	// Exactly one transferred record alongside the issuance.
	assert.Len(t, creditTransactions(t, conn, issued.ID), 2)
}

func TestConcurrentIssuesUniqueIDs(t *testing.T) {
	svc, _, _ := newTestLedger(t)
	ctx := context.Background()

	const issuers = 10
	var wg sync.WaitGroup
	ids := make([]int64, issuers)
	for i := 0; i < issuers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			credit, err := svc.Issue(ctx, fmt.Sprintf("producer-%d", i), 10)
			assert.NoError(t, err)
			if credit != nil {
				ids[i] = credit.ID
			}
		}(i)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id)
	}
}
