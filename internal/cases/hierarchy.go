package cases

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/utils"
)

// resolveRoot walks parent_case up to the top-most ancestor. Every mutating
// entry point except document upload and per-case LRN assignment operates on
// the root, no matter which case id it was handed.
func (e *Engine) resolveRoot(tx *gorm.DB, id uuid.UUID) (*models.Case, error) {
	cs, err := e.loadCase(tx, id)
	if err != nil {
		return nil, err
	}
	for cs.IsChild() {
		parent, err := e.loadCase(tx, *cs.ParentCaseID)
		if err != nil {
			return nil, err
		}
		cs = parent
	}
	return cs, nil
}

// propagateStatusToChildren mirrors the parent's status onto every child,
// unconditionally and without re-validating child completeness. Terminal
// statuses carry completed_at and the forwarded flag along, and each child
// that turns terminal gets its own LRN (LRN assignment stays per-case).
func (e *Engine) propagateStatusToChildren(tx *gorm.DB, parent *models.Case, actorID uuid.UUID, now time.Time) error {
	var children []models.Case
	if err := tx.Where("parent_case_id = ?", parent.ID).Find(&children).Error; err != nil {
		return err
	}
	for i := range children {
		child := &children[i]
		old := child.Status
		updates := map[string]any{
			"status":           parent.Status,
			"forwarded_to_sro": parent.ForwardedToSRO,
			"completed_at":     parent.CompletedAt,
		}
		if err := tx.Model(&models.Case{}).Where("id = ?", child.ID).Updates(updates).Error; err != nil {
			return err
		}
		child.Status = parent.Status
		child.ForwardedToSRO = parent.ForwardedToSRO
		child.CompletedAt = parent.CompletedAt
		if parent.Status.Terminal() {
			if err := e.ensureLRN(tx, child, now); err != nil {
				return err
			}
		}
		if old != parent.Status {
			utils.LogCaseUpdate(tx, child.ID, actorID, "status_mirrored",
				"status mirrored from parent "+parent.CaseNumber,
				utils.StatusMeta(old, parent.Status))
		}
	}
	return nil
}

// ChildInput is one additional property registered under a parent case.
type ChildInput struct {
	PropertyAddress string
	State           string
	District        string
	Tehsil          string
	BranchID        *uuid.UUID
}

// AddChildren registers additional property cases under the given case's
// root. Children inherit applicant, bank, case type, advocate, documents
// flag and status; location, documents and LRN are their own. A child
// created under an already-closed parent receives its LRN immediately and
// goes straight to document capture.
func (e *Engine) AddChildren(actor Actor, caseID uuid.UUID, inputs []ChildInput) ([]models.Case, error) {
	var created []models.Case
	err := e.db.Transaction(func(tx *gorm.DB) error {
		parent, err := e.resolveRoot(tx, caseID)
		if err != nil {
			return err
		}
		if !canWork(actor, parent) {
			return ErrForbidden
		}

		var existing int64
		if err := tx.Model(&models.Case{}).Where("parent_case_id = ?", parent.ID).Count(&existing).Error; err != nil {
			return err
		}

		now := time.Now()
		for _, in := range inputs {
			if in.PropertyAddress == "" {
				continue
			}
			existing++
			child := models.Case{
				CaseNumber:       fmt.Sprintf("%s-%d", parent.CaseNumber, existing),
				ApplicantName:    parent.ApplicantName,
				BankID:           parent.BankID,
				CaseTypeID:       parent.CaseTypeID,
				DocumentsPresent: parent.DocumentsPresent,
				AdvocateID:       parent.AdvocateID,
				EmployeeID:       parent.EmployeeID,
				Status:           parent.Status,
				PropertyAddress:  in.PropertyAddress,
				State:            in.State,
				District:         in.District,
				Tehsil:           in.Tehsil,
				BranchID:         in.BranchID,
				ForwardedToSRO:   parent.ForwardedToSRO,
				CompletedAt:      parent.CompletedAt,
				ParentCaseID:     &parent.ID,
			}
			if err := tx.Create(&child).Error; err != nil {
				return err
			}
			if parent.Status.Terminal() {
				if err := e.ensureLRN(tx, &child, now); err != nil {
					return err
				}
			}
			utils.LogCaseUpdate(tx, child.ID, actor.EmployeeID(), "child_created",
				"registered under parent "+parent.CaseNumber, nil)
			created = append(created, child)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
