package cases

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexval/legal-dd-backend/pkg/models"
)

// Legal reference numbers look like NX-DL-AB-001688-25.26: a fixed prefix,
// a state code, the advocate's initials, a global six-digit serial and the
// financial year of assignment. Consumers parse this exact shape, so none
// of the segments may change width or order.

const (
	lrnPrefix = "NX"
	// The serial picks up where the pre-migration numbering stopped; the
	// first value ever minted here is 1688.
	lrnSerialBaseline = 1687
)

var stateCodes = map[string]string{
	"Delhi": "DL", "Uttar Pradesh": "UP", "Maharashtra": "MH", "Karnataka": "KA",
	"Tamil Nadu": "TN", "Telangana": "TS", "Gujarat": "GJ", "Rajasthan": "RJ",
	"Haryana": "HR", "Punjab": "PB", "West Bengal": "WB", "Bihar": "BR",
	"Madhya Pradesh": "MP", "Odisha": "OD", "Kerala": "KL", "Andhra Pradesh": "AP",
	"Assam": "AS", "Chhattisgarh": "CG", "Goa": "GA", "Jammu and Kashmir": "JK",
	"Jharkhand": "JH", "Himachal Pradesh": "HP", "Uttarakhand": "UK", "Puducherry": "PY",
}

// stateCode maps a state name to its two-letter code. Unmapped names fall
// back to the uppercased initials of the first two words; an empty state
// yields NA.
func stateCode(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "NA"
	}
	if code, ok := stateCodes[state]; ok {
		return code
	}
	var b strings.Builder
	for i, w := range strings.Fields(state) {
		if i == 2 {
			break
		}
		b.WriteRune(firstRune(w))
	}
	return strings.ToUpper(b.String())
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

// advocateInitials picks the advocate's explicit initials when they are
// exactly two letters, otherwise derives them from the name (first and last
// word, or a doubled initial for a one-word name). No advocate yields XX.
func advocateInitials(adv *models.Employee) string {
	if adv == nil {
		return "XX"
	}
	if ini := strings.TrimSpace(adv.Initials); len(ini) == 2 && isLetters(ini) {
		return strings.ToUpper(ini)
	}
	words := strings.Fields(adv.Name)
	switch {
	case len(words) >= 2:
		return strings.ToUpper(string(firstRune(words[0])) + string(firstRune(words[len(words)-1])))
	case len(words) == 1:
		return strings.ToUpper(strings.Repeat(string(firstRune(words[0])), 2))
	default:
		return "XX"
	}
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// financialYear renders the YY.YY segment for the financial year containing
// now; the year turns over on 1 April.
func financialYear(now time.Time) string {
	start := now.Year()
	if now.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%02d.%02d", start%100, (start+1)%100)
}

// formatLRN assembles the full reference from its segments.
func formatLRN(state string, adv *models.Employee, serial int64, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%06d-%s",
		lrnPrefix, stateCode(state), advocateInitials(adv), serial, financialYear(now))
}

// nextSerial allocates the next global serial from the single-row sequence,
// locked FOR UPDATE so concurrent finalizations cannot mint duplicates. The
// row is seeded on first use from a scan of already-assigned LRNs.
func nextSerial(tx *gorm.DB) (int64, error) {
	var seq models.LRNSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&seq, "id = ?", 1).Error
	if err == gorm.ErrRecordNotFound {
		seed, serr := scanMaxSerial(tx)
		if serr != nil {
			return 0, serr
		}
		seq = models.LRNSequence{ID: 1, Serial: seed}
		if cerr := tx.Create(&seq).Error; cerr != nil {
			return 0, cerr
		}
		// Re-read under lock; another writer may have seeded concurrently.
		if lerr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&seq, "id = ?", 1).Error; lerr != nil {
			return 0, lerr
		}
	} else if err != nil {
		return 0, err
	}

	seq.Serial++
	if err := tx.Model(&models.LRNSequence{}).Where("id = ?", 1).
		Update("serial", seq.Serial).Error; err != nil {
		return 0, err
	}
	return seq.Serial, nil
}

// scanMaxSerial parses the serial segment out of every assigned LRN and
// returns the maximum, floored at the baseline. Only runs once, to seed the
// sequence row.
func scanMaxSerial(tx *gorm.DB) (int64, error) {
	var lrns []string
	if err := tx.Model(&models.Case{}).
		Where("legal_reference_number <> ''").
		Pluck("legal_reference_number", &lrns).Error; err != nil {
		return 0, err
	}
	max := int64(lrnSerialBaseline)
	for _, l := range lrns {
		parts := strings.Split(l, "-")
		if len(parts) != 5 {
			continue
		}
		if n, err := strconv.ParseInt(parts[3], 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

// ensureLRN assigns a legal reference number if the case does not already
// hold one. Idempotent: once non-empty, the LRN never changes. The unique
// index on the column is the last line of defense; a conflict (legacy rows
// numbered ahead of the sequence) gets a fresh serial and one more try.
func (e *Engine) ensureLRN(tx *gorm.DB, cs *models.Case, now time.Time) error {
	if cs.LegalReferenceNumber != "" {
		return nil
	}

	var adv *models.Employee
	if cs.AdvocateID != nil {
		var emp models.Employee
		if err := tx.First(&emp, "id = ?", *cs.AdvocateID).Error; err == nil {
			adv = &emp
		}
	}

	for attempt := 0; attempt < 3; attempt++ {
		serial, err := nextSerial(tx)
		if err != nil {
			return err
		}
		lrn := formatLRN(cs.State, adv, serial, now)
		res := tx.Model(&models.Case{}).Where("id = ?", cs.ID).
			Update("legal_reference_number", lrn)
		if res.Error == nil {
			cs.LegalReferenceNumber = lrn
			return nil
		}
		if !isUniqueViolation(res.Error) {
			return res.Error
		}
	}
	return fmt.Errorf("lrn allocation kept colliding for case %s", cs.CaseNumber)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
