package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexval/legal-dd-backend/pkg/models"
)

func TestFinancialYear(t *testing.T) {
	from, to := FinancialYear(time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), to)

	// January belongs to the previous financial year.
	from, _ = FinancialYear(time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2025, from.Year())
}

func TestResolveFeePaise_OverrideWinsOverQuotation(t *testing.T) {
	override := int64(250000)
	cs := &models.Case{
		CustomFeePaise:     &override,
		QuotationFinalized: true,
		QuotationPaise:     100000,
	}
	// Neither path touches the database.
	fee, err := ResolveFeePaise(nil, cs)
	assert.NoError(t, err)
	assert.Equal(t, override, fee)
}

func TestResolveFeePaise_FinalizedQuotation(t *testing.T) {
	cs := &models.Case{QuotationFinalized: true, QuotationPaise: 100000}
	fee, err := ResolveFeePaise(nil, cs)
	assert.NoError(t, err)
	assert.Equal(t, int64(100000), fee)
}
