package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
)

// ResolveFeePaise picks the billable amount for one case. Precedence:
// a per-case override, then a finalized quotation, then the bank's
// scheduled fee for (bank, property state, case type). Zero with no
// error means no fee source exists yet.
func ResolveFeePaise(db *gorm.DB, cs *models.Case) (int64, error) {
	if cs.CustomFeePaise != nil {
		return *cs.CustomFeePaise, nil
	}
	if cs.QuotationFinalized && cs.QuotationPaise > 0 {
		return cs.QuotationPaise, nil
	}

	var fee models.BankFee
	err := db.Where("bank_id = ? AND LOWER(state) = LOWER(?) AND case_type_id = ?",
		cs.BankID, cs.State, cs.CaseTypeID).First(&fee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fee.FeePaise, nil
}

// FinancialYear returns the half-open [from, to) window of the Indian
// financial year containing t (1 April through 31 March).
func FinancialYear(t time.Time) (from, to time.Time) {
	y := t.Year()
	if t.Month() < time.April {
		y--
	}
	from = time.Date(y, time.April, 1, 0, 0, 0, 0, t.Location())
	to = from.AddDate(1, 0, 0)
	return
}
