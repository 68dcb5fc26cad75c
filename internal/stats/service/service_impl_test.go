package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
	creditrepo "github.com/verdantgrid/h2ledger/internal/credit/repository"
	statsdomain "github.com/verdantgrid/h2ledger/internal/stats/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (statsdomain.Service, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&creditdomain.Credit{}))

	svc := NewService(Params{
		DB:      conn,
		Log:     zap.NewNop(),
		Credits: creditrepo.Provide(),
	})
	return svc, conn
}

func seedCredit(t *testing.T, conn *gorm.DB, id int64, amount float64, verified bool, status creditdomain.Status) {
	t.Helper()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, creditrepo.Provide().Insert(context.Background(), conn, &creditdomain.Credit{
		ID:           id,
		Producer:     "producer",
		Amount:       amount,
		CurrentOwner: "producer",
		Status:       status,
		Verified:     verified,
		IssuedAt:     now,
		UpdatedAt:    now,
	}))
}

func TestImpactEmptyLedger(t *testing.T) {
	svc, _ := newTestService(t)

	report, err := svc.Impact(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.CreditCount)
	assert.Zero(t, report.TotalHydrogenTons)
	assert.Zero(t, report.CO2SavedTons)
	assert.Zero(t, report.VerificationRate)
	assert.Zero(t, report.RetirementRate)
}

func TestImpactAggregates(t *testing.T) {
	svc, conn := newTestService(t)
	seedCredit(t, conn, 1, 100, true, creditdomain.StatusActive)
	seedCredit(t, conn, 2, 200, false, creditdomain.StatusActive)
	seedCredit(t, conn, 3, 300, true, creditdomain.StatusRetired)
	seedCredit(t, conn, 4, 400, false, creditdomain.StatusRetired)

	report, err := svc.Impact(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.CreditCount)
	assert.InDelta(t, 1000.0, report.TotalHydrogenTons, 1e-9)
	assert.InDelta(t, 9300.0, report.CO2SavedTons, 1e-9)
	assert.InDelta(t, 9300.0*16, report.TreeEquivalent, 1e-9)
	assert.InDelta(t, 9300.0/4.6, report.CarEquivalent, 1e-6)
	assert.InDelta(t, 0.5, report.VerificationRate, 1e-9)
	assert.InDelta(t, 0.5, report.RetirementRate, 1e-9)
}
