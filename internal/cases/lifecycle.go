package cases

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/utils"
)

/* =============================== Creation =============================== */

// CreateInput is everything the intake form captures.
type CreateInput struct {
	ApplicantName    string
	BankID           uuid.UUID
	CaseTypeID       uuid.UUID
	DocumentsPresent bool
	IsSchoolCase     bool
	// ConfirmDuplicate overrides the school-case duplicate prompt.
	ConfirmDuplicate bool

	IsQuotation    bool
	QuotationPaise int64

	AdvocateID *uuid.UUID
	// AssignToOperator auto-assigns the designated admin-operator identity
	// when no advocate is named.
	AssignToOperator bool
	EmployeeID       *uuid.UUID
}

// Create opens a new case. Status resolution: quotation cases start in
// quotation; a case with an advocate (named or auto-assigned operator)
// starts pending; everything else queues for assignment.
func (e *Engine) Create(actor Actor, in CreateInput) (*models.Case, error) {
	if !actor.CanAdminister() {
		return nil, ErrForbidden
	}

	var cs *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var bank models.Bank
		if err := tx.First(&bank, "id = ?", in.BankID).Error; err != nil {
			return fmt.Errorf("%w: bank %s", ErrBrokenReference, in.BankID)
		}
		var ct models.CaseType
		if err := tx.First(&ct, "id = ?", in.CaseTypeID).Error; err != nil {
			return fmt.Errorf("%w: case type %s", ErrBrokenReference, in.CaseTypeID)
		}

		// School cases get a duplicate check surfaced as a confirmation
		// prompt, not a hard error; the actor may override.
		if in.IsSchoolCase && !in.ConfirmDuplicate {
			var dup int64
			if err := tx.Model(&models.Case{}).
				Where("lower(applicant_name) = lower(?) AND bank_id = ? AND is_school_case", in.ApplicantName, in.BankID).
				Count(&dup).Error; err != nil {
				return err
			}
			if dup > 0 {
				return ErrDuplicateSuspected
			}
		}

		advocateID := in.AdvocateID
		if advocateID == nil && in.AssignToOperator && e.OperatorEmployeeID != "" {
			if opID, err := uuid.Parse(e.OperatorEmployeeID); err == nil {
				advocateID = &opID
			}
		}
		if advocateID != nil {
			var adv models.Employee
			if err := tx.First(&adv, "id = ? AND type = ? AND is_active", advocateID, models.RoleAdvocate).Error; err != nil {
				return fmt.Errorf("%w: advocate %s", ErrBrokenReference, advocateID)
			}
		}

		status := models.CasePendingAssignment
		switch {
		case in.IsQuotation:
			status = models.CaseQuotation
		case advocateID != nil:
			status = models.CasePending
		}

		bankCode := strings.ToUpper(bank.Name)
		if len(bankCode) > 3 {
			bankCode = bankCode[:3]
		}

		cs = &models.Case{
			CaseNumber:       fmt.Sprintf("%s-%s", bankCode, time.Now().Format("060102150405")),
			ApplicantName:    strings.TrimSpace(in.ApplicantName),
			BankID:           in.BankID,
			CaseTypeID:       in.CaseTypeID,
			IsQuotation:      in.IsQuotation,
			QuotationPaise:   in.QuotationPaise,
			DocumentsPresent: in.DocumentsPresent,
			IsSchoolCase:     in.IsSchoolCase,
			AdvocateID:       advocateID,
			EmployeeID:       in.EmployeeID,
			Status:           status,
		}
		if err := tx.Create(cs).Error; err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "created", "", map[string]any{
			"new_status": string(status),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs, nil
}

/* ============================== Quotation =============================== */

// FinalizeQuotation moves a quotation case into the working pipeline. Admin
// only; needs a confirmed final price and an assigned advocate.
func (e *Engine) FinalizeQuotation(actor Actor, caseID uuid.UUID, finalPaise int64, confirmed bool) (*models.Case, error) {
	if !actor.CanAdminister() {
		return nil, ErrForbidden
	}
	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		if cs.Status != models.CaseQuotation {
			return ErrInvalidTransition
		}
		if finalPaise <= 0 || !confirmed {
			return ErrQuotationUnconfirmed
		}
		if cs.AdvocateID == nil {
			return ErrNoAdvocate
		}

		old := cs.Status
		cs.Status = models.CasePending
		cs.QuotationPaise = finalPaise
		cs.QuotationFinalized = true
		cs.IsQuotation = false
		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"status":              cs.Status,
			"quotation_paise":     finalPaise,
			"quotation_finalized": true,
			"is_quotation":        false,
		}).Error; err != nil {
			return err
		}
		if err := e.propagateStatusToChildren(tx, cs, actor.EmployeeID(), time.Now()); err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "quotation_finalized", "", utils.StatusMeta(old, cs.Status))
		out = cs
		return nil
	})
	return out, err
}

/* ============================== Assignment ============================== */

// Assign binds an advocate to a queued case. Admin only.
func (e *Engine) Assign(actor Actor, caseID, advocateID uuid.UUID) (*models.Case, error) {
	if !actor.CanAdminister() {
		return nil, ErrForbidden
	}
	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		if cs.Status != models.CasePendingAssignment {
			return ErrInvalidTransition
		}
		var adv models.Employee
		if err := tx.First(&adv, "id = ? AND type = ? AND is_active", advocateID, models.RoleAdvocate).Error; err != nil {
			return fmt.Errorf("%w: advocate %s", ErrBrokenReference, advocateID)
		}

		old := cs.Status
		cs.Status = models.CasePending
		cs.AdvocateID = &advocateID
		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"status":      cs.Status,
			"advocate_id": advocateID,
		}).Error; err != nil {
			return err
		}
		if err := e.propagateStatusToChildren(tx, cs, actor.EmployeeID(), time.Now()); err != nil {
			return err
		}
		// Children follow the advocate as well.
		if err := tx.Model(&models.Case{}).Where("parent_case_id = ?", cs.ID).
			Update("advocate_id", advocateID).Error; err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "assigned", "assigned to "+adv.Name, utils.StatusMeta(old, cs.Status))
		out = cs
		return nil
	})
	return out, err
}

// Reassign swaps the advocate on a case in any status, terminal included.
// Status is preserved; the change always cascades to children.
func (e *Engine) Reassign(actor Actor, caseID, advocateID uuid.UUID) (*models.Case, error) {
	if !actor.CanAdminister() {
		return nil, ErrForbidden
	}
	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		var adv models.Employee
		if err := tx.First(&adv, "id = ? AND type = ? AND is_active", advocateID, models.RoleAdvocate).Error; err != nil {
			return fmt.Errorf("%w: advocate %s", ErrBrokenReference, advocateID)
		}

		now := time.Now()
		cs.AdvocateID = &advocateID
		cs.ReassignedAt = &now
		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"advocate_id":   advocateID,
			"reassigned_at": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Case{}).Where("parent_case_id = ?", cs.ID).Updates(map[string]any{
			"advocate_id":   advocateID,
			"reassigned_at": now,
		}).Error; err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "reassigned", "reassigned to "+adv.Name, nil)
		out = cs
		return nil
	})
	return out, err
}

/* ================================= Hold ================================= */

// holdable reports whether hold may leave from this status: the two
// pending states plus both spellings of query.
func holdable(s models.CaseStatus) bool {
	return s == models.CasePendingAssignment || s == models.CasePending || s.IsQuery()
}

// Hold parks a case. Holding an already-held case is an idempotent success
// (ErrAlreadyOnHold maps to an informational response, not a rejection);
// every other out-of-table source, terminals included, is refused.
func (e *Engine) Hold(actor Actor, caseID uuid.UUID, remark string) (*models.Case, error) {
	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		if !canWork(actor, cs) {
			return ErrForbidden
		}
		if cs.Status == models.CaseOnHold {
			out = cs
			return ErrAlreadyOnHold
		}
		if !holdable(cs.Status) {
			return ErrInvalidTransition
		}

		old := cs.Status
		cs.Status = models.CaseOnHold
		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Update("status", cs.Status).Error; err != nil {
			return err
		}
		if err := e.propagateStatusToChildren(tx, cs, actor.EmployeeID(), time.Now()); err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "hold", remark, utils.StatusMeta(old, cs.Status))
		out = cs
		return nil
	})
	if err == ErrAlreadyOnHold {
		return out, err
	}
	return out, err
}

/* ============================ Advocate action =========================== */

// Action is what an advocate can do to a case it is working.
type Action string

const (
	ActionDraft    Action = "draft"
	ActionQuery    Action = "query"
	ActionPositive Action = "positive"
	ActionNegative Action = "negative"
	ActionPSS      Action = "positive_subject_tosearch"
)

var actionStatus = map[Action]models.CaseStatus{
	ActionDraft:    models.CaseDraft,
	ActionQuery:    models.CaseOnQuery,
	ActionPositive: models.CasePositive,
	ActionNegative: models.CaseNegative,
	ActionPSS:      models.CasePSS,
}

// AdvocateAction applies one of the five advocate determinations to the
// case's root. Terminal outcomes demand complete location details and stamp
// completed_at plus the LRN; draft and query reopen the case. PSS always
// forwards to the SRO; positive and negative forward only when asked.
func (e *Engine) AdvocateAction(actor Actor, caseID uuid.UUID, action Action, remark string, forwardToSRO bool) (*models.Case, error) {
	target, ok := actionStatus[action]
	if !ok {
		return nil, ErrInvalidTransition
	}
	if !actor.CanFinalize() {
		return nil, ErrForbidden
	}

	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		if !canWork(actor, cs) {
			return ErrForbidden
		}
		switch {
		case cs.Status.Terminal():
			return ErrTerminalCase
		case cs.Status == models.CaseQuotation, cs.Status == models.CasePendingAssignment:
			return ErrInvalidTransition
		}
		if target.Terminal() && !cs.HasCompleteDetails() {
			return ErrIncompleteDetails
		}

		now := time.Now()
		old := cs.Status
		cs.Status = target
		switch {
		case target == models.CasePSS:
			cs.ForwardedToSRO = true
			cs.CompletedAt = &now
		case target.Terminal():
			cs.ForwardedToSRO = forwardToSRO
			cs.CompletedAt = &now
		default:
			cs.ForwardedToSRO = false
			cs.CompletedAt = nil
		}

		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"status":           cs.Status,
			"forwarded_to_sro": cs.ForwardedToSRO,
			"completed_at":     cs.CompletedAt,
		}).Error; err != nil {
			return err
		}
		if target.Terminal() {
			if err := e.ensureLRN(tx, cs, now); err != nil {
				return err
			}
		}
		if err := e.propagateStatusToChildren(tx, cs, actor.EmployeeID(), now); err != nil {
			return err
		}
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), string(action), remark, utils.StatusMeta(old, cs.Status))
		out = cs
		return nil
	})
	return out, err
}

/* ============================ Detail updates ============================ */

// DetailsInput carries the location fields the advocate fills in before a
// determination.
type DetailsInput struct {
	PropertyAddress string
	State           string
	District        string
	Tehsil          string
	BranchID        *uuid.UUID
}

// UpdateDetails edits the working details on the case's root. Closed cases
// refuse location edits.
func (e *Engine) UpdateDetails(actor Actor, caseID uuid.UUID, in DetailsInput) (*models.Case, error) {
	var out *models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		if !canWork(actor, cs) {
			return ErrForbidden
		}
		if cs.Status.Terminal() {
			return ErrTerminalCase
		}
		if in.BranchID != nil {
			var br models.Branch
			if err := tx.First(&br, "id = ?", in.BranchID).Error; err != nil {
				return fmt.Errorf("%w: branch %s", ErrBrokenReference, in.BranchID)
			}
			if br.BankID != cs.BankID {
				return fmt.Errorf("%w: branch %s belongs to another bank", ErrBrokenReference, in.BranchID)
			}
		}

		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Updates(map[string]any{
			"property_address": in.PropertyAddress,
			"state":            in.State,
			"district":         in.District,
			"tehsil":           in.Tehsil,
			"branch_id":        in.BranchID,
		}).Error; err != nil {
			return err
		}
		cs.PropertyAddress = in.PropertyAddress
		cs.State = in.State
		cs.District = in.District
		cs.Tehsil = in.Tehsil
		cs.BranchID = in.BranchID
		utils.LogCaseUpdate(tx, cs.ID, actor.EmployeeID(), "details_updated", "", nil)
		out = cs
		return nil
	})
	return out, err
}

/* ================================ Delete ================================ */

// Delete removes a case and everything under it: children, documents,
// audit rows, then the case itself. Blob cleanup happens after the
// transaction commits and is best-effort.
func (e *Engine) Delete(actor Actor, caseID uuid.UUID) error {
	if !actor.CanAdminister() {
		return ErrForbidden
	}
	var keys []string
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		ids := []uuid.UUID{cs.ID}
		var children []models.Case
		if err := tx.Where("parent_case_id = ?", cs.ID).Find(&children).Error; err != nil {
			return err
		}
		for _, ch := range children {
			ids = append(ids, ch.ID)
		}

		var docs []models.CaseDocument
		if err := tx.Where("case_id IN ?", ids).Find(&docs).Error; err != nil {
			return err
		}
		for _, d := range docs {
			keys = append(keys, d.Key)
		}

		if err := tx.Where("case_id IN ?", ids).Delete(&models.CaseDocument{}).Error; err != nil {
			return err
		}
		if err := tx.Where("case_id IN ?", ids).Delete(&models.CaseUpdate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_case_id = ?", cs.ID).Delete(&models.Case{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Case{}, "id = ?", cs.ID).Error
	})
	if err != nil {
		return err
	}
	if e.blob != nil {
		if berr := e.blob.BulkDelete(keys); berr != nil {
			// Rows are gone; orphaned blobs are a cleanup concern, not a
			// failure of the delete.
			logCleanupFailure(berr)
		}
	}
	return nil
}
