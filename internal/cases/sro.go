package cases

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/utils"
)

/* =============================== Scoping ================================ */

// Matches reports whether a case's location falls inside this scope. The
// three sets are ORed together and compared case-insensitively; a scope
// with no sets populated matches nothing.
func (s Scoping) Matches(state, district, tehsil string) bool {
	if s.Super {
		return true
	}
	return containsFold(s.States, state) ||
		containsFold(s.Districts, district) ||
		containsFold(s.Tehsils, tehsil)
}

func containsFold(set []string, name string) bool {
	if name == "" {
		return false
	}
	for _, v := range set {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}

// ScopingFor builds a Scoping from an employee row.
func ScopingFor(emp *models.Employee) Scoping {
	return Scoping{
		Super:     emp.IsSuperSRO,
		States:    emp.SROStates,
		Districts: emp.SRODistricts,
		Tehsils:   emp.SROTehsils,
	}
}

/* ============================== Visibility ============================== */

// ListForSRO returns the intake queue for an SRO: every case with
// forwarded_to_sro set, plus positive-subject-to-search cases regardless of
// the flag (PSS always implies forwarding), filtered to the SRO's scope.
func (e *Engine) ListForSRO(actor Actor) ([]models.Case, error) {
	if !actor.CanReceiveSRO() {
		return nil, ErrForbidden
	}
	sro, ok := actor.(SRO)
	if !ok {
		return nil, ErrForbidden
	}

	var candidates []models.Case
	if err := e.db.
		Where("forwarded_to_sro OR status = ?", models.CasePSS).
		Preload("Bank").Preload("CaseType").
		Order("updated_at DESC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	if sro.Scope.Super {
		return candidates, nil
	}
	visible := make([]models.Case, 0, len(candidates))
	for _, cs := range candidates {
		if sro.Scope.Matches(cs.State, cs.District, cs.Tehsil) {
			visible = append(visible, cs)
		}
	}
	return visible, nil
}

/* ============================ Receipt intake ============================ */

// sroIntakeSources are the statuses a receipt may land on.
var sroIntakeSources = map[models.CaseStatus]bool{
	models.CasePSS:      true,
	models.CaseNegative: true,
	models.CasePositive: true,
}

// SROReceipt takes in the sub-registrar's receipt for one forwarded case.
// The receipt replaces any earlier receipt, the case moves to
// sro_document_pending and comes off the forwarded queue, and completed_at
// resets because the determination is no longer final. Receipt intake is a
// document operation: it acts on the exact case given, never the parent.
func (e *Engine) SROReceipt(actor Actor, caseID uuid.UUID, f DocumentFile, remark string) (*models.Case, error) {
	if !actor.CanReceiveSRO() {
		return nil, ErrForbidden
	}
	sro, _ := actor.(SRO)

	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.loadCase(tx, caseID)
		if err != nil {
			return err
		}
		if !cs.ForwardedToSRO && cs.Status != models.CasePSS {
			return ErrNotForwarded
		}
		if !sroIntakeSources[cs.Status] {
			return ErrInvalidTransition
		}
		if !sro.Scope.Matches(cs.State, cs.District, cs.Tehsil) {
			return ErrNotVisibleToSRO
		}

		if _, err := e.replaceDocument(tx, cs, models.DocReceipt, f, actor.EmployeeID()); err != nil {
			return err
		}

		old := cs.Status
		cs.Status = models.CaseSRODocumentPending
		cs.ForwardedToSRO = false
		cs.CompletedAt = nil
		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"status":           cs.Status,
			"forwarded_to_sro": false,
			"completed_at":     nil,
		}).Error; err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "sro_receipt", remark, utils.StatusMeta(old, cs.Status))
		out = cs
		return nil
	})
	return out, err
}

/* ====================== Finalize from the SRO loop ====================== */

var finalizeSources = map[models.CaseStatus]bool{
	models.CaseDocumentPending:    true,
	models.CaseSRODocumentPending: true,
}

// FinalizeWithDocument closes the loop after SRO handback: the advocate
// captures the final document and picks the terminal determination. The
// receipt document is untouched; completed_at is stamped fresh and the LRN
// generated if the case never had one. Per-case, like every document
// operation.
func (e *Engine) FinalizeWithDocument(actor Actor, caseID uuid.UUID, choice Action, f DocumentFile, remark string) (*models.Case, error) {
	if !actor.CanFinalize() {
		return nil, ErrForbidden
	}
	if choice != ActionPositive && choice != ActionNegative {
		return nil, ErrInvalidTransition
	}

	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.loadCase(tx, caseID)
		if err != nil {
			return err
		}
		if !canWork(actor, cs) {
			return ErrForbidden
		}
		if !finalizeSources[cs.Status] {
			return ErrInvalidTransition
		}

		if _, err := e.replaceDocument(tx, cs, models.DocFinal, f, actor.EmployeeID()); err != nil {
			return err
		}

		now := time.Now()
		old := cs.Status
		cs.Status = actionStatus[choice]
		cs.CompletedAt = &now
		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"status":       cs.Status,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}
		if err := e.ensureLRN(tx, cs, now); err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "finalized_with_document", remark, utils.StatusMeta(old, cs.Status))
		out = cs
		return nil
	})
	return out, err
}
