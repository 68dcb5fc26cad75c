package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/verdantgrid/h2ledger/internal/config"
	creditdomain "github.com/verdantgrid/h2ledger/internal/credit/domain"
)

func newDetector(threshold float64) *Detector {
	return NewDetector(config.Config{FraudThreshold: threshold})
}

func TestFlaggedLargeUnverified(t *testing.T) {
	d := newDetector(1000)

	assert.True(t, d.Flagged(&creditdomain.Credit{Amount: 1500, Verified: false}))
}

func TestNotFlaggedAtThreshold(t *testing.T) {
	d := newDetector(1000)

	assert.False(t, d.Flagged(&creditdomain.Credit{Amount: 1000, Verified: false}))
}

func TestNotFlaggedWhenVerified(t *testing.T) {
	d := newDetector(1000)

	assert.False(t, d.Flagged(&creditdomain.Credit{Amount: 1500, Verified: true}))
}

func TestNotFlaggedSmall(t *testing.T) {
	d := newDetector(1000)

	assert.False(t, d.Flagged(&creditdomain.Credit{Amount: 10, Verified: false}))
}

func TestDefaultThreshold(t *testing.T) {
	d := newDetector(0)

	assert.Equal(t, DefaultThreshold, d.Threshold())
}
