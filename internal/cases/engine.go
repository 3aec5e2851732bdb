package cases

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
)

/* =============================== Errors ================================= */

// Guard violations are local, recoverable outcomes: the operation is
// refused, the case is unchanged, and a readable reason goes back to the
// actor. None of these abort anything beyond the one case being processed.
var (
	ErrInvalidTransition    = errors.New("transition not allowed from current status")
	ErrAlreadyOnHold        = errors.New("case is already on hold")
	ErrTerminalCase         = errors.New("case is closed to new work")
	ErrIncompleteDetails    = errors.New("complete all required case details before finalizing")
	ErrNoAdvocate           = errors.New("case has no assigned advocate")
	ErrQuotationUnconfirmed = errors.New("quotation finalize requires a confirmed final price")
	ErrNotForwarded         = errors.New("case is not forwarded for SRO intake")
	ErrNotVisibleToSRO      = errors.New("case is outside this SRO's scope")
	ErrDuplicateSuspected   = errors.New("a similar school case already exists; confirm to proceed")
	ErrBrokenReference      = errors.New("case references a missing row")
	ErrForbidden            = errors.New("actor may not perform this operation")
	ErrNotFound             = errors.New("case not found")
)

/* ============================== Blob store ============================== */

// BlobStore is the boundary to whatever holds the document bytes. Delete
// failures are non-fatal to callers by contract.
type BlobStore interface {
	MakeObjectKey(caseID, tag, filename string) string
	Upload(key string, r io.Reader, contentType string, size int64) error
	Delete(key string) error
	BulkDelete(keys []string) error
}

/* ================================ Actor ================================= */

// Scoping is an SRO's geographic visibility: three name sets matched
// case-insensitively, OR across the sets.
type Scoping struct {
	Super     bool
	States    []string
	Districts []string
	Tehsils   []string
}

// Actor is the capability view of whoever is driving an operation. The
// engine never branches on a raw role string; it asks the actor what it may
// do.
type Actor interface {
	EmployeeID() uuid.UUID // zero for bare admin logins
	CanAdminister() bool   // assignment, reassignment, quotation, delete
	CanFinalize() bool     // advocate actions and document finalization
	CanReceiveSRO() bool   // receipt intake
}

// Admin can do everything except SRO receipt intake.
type Admin struct{ Employee uuid.UUID }

func (a Admin) EmployeeID() uuid.UUID { return a.Employee }
func (a Admin) CanAdminister() bool   { return true }
func (a Admin) CanFinalize() bool     { return true }
func (a Admin) CanReceiveSRO() bool   { return false }

// Advocate works only its assigned cases.
type Advocate struct{ Employee uuid.UUID }

func (a Advocate) EmployeeID() uuid.UUID { return a.Employee }
func (a Advocate) CanAdminister() bool   { return false }
func (a Advocate) CanFinalize() bool     { return true }
func (a Advocate) CanReceiveSRO() bool   { return false }

// SRO receives forwarded cases within its scope.
type SRO struct {
	Employee uuid.UUID
	Scope    Scoping
}

func (s SRO) EmployeeID() uuid.UUID { return s.Employee }
func (s SRO) CanAdminister() bool   { return false }
func (s SRO) CanFinalize() bool     { return false }
func (s SRO) CanReceiveSRO() bool   { return true }

/* ================================ Engine ================================ */

// Engine owns the case lifecycle: the status state machine, hierarchy
// propagation, LRN generation, the document policy and SRO routing. Each
// operation is one synchronous database transaction.
type Engine struct {
	db   *gorm.DB
	blob BlobStore

	// OperatorEmployeeID is the designated admin-operator identity cases are
	// auto-assigned to when requested at creation (empty disables it).
	OperatorEmployeeID string
}

func NewEngine(db *gorm.DB, blob BlobStore) *Engine {
	return &Engine{db: db, blob: blob}
}

// loadCase fetches a case for mutation and runs the narrow referential
// repair: broken nullable references (advocate, originating employee,
// parent) are nulled with an audit diagnostic; broken bank or case-type
// references surface a named error and are never dropped.
func (e *Engine) loadCase(tx *gorm.DB, id uuid.UUID) (*models.Case, error) {
	var cs models.Case
	if err := tx.First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := e.repairReferences(tx, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

func (e *Engine) repairReferences(tx *gorm.DB, cs *models.Case) error {
	var n int64

	// Non-nullable references: diagnose, never drop.
	if err := tx.Model(&models.Bank{}).Where("id = ?", cs.BankID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: bank %s on case %s", ErrBrokenReference, cs.BankID, cs.CaseNumber)
	}
	if err := tx.Model(&models.CaseType{}).Where("id = ?", cs.CaseTypeID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: case type %s on case %s", ErrBrokenReference, cs.CaseTypeID, cs.CaseNumber)
	}

	// Nullable references: repair in place.
	repair := func(col string, ref **uuid.UUID, table string) error {
		if *ref == nil {
			return nil
		}
		if err := tx.Table(table).Where("id = ?", **ref).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).Update(col, nil).Error; err != nil {
			return err
		}
		*ref = nil
		return nil
	}
	if err := repair("advocate_id", &cs.AdvocateID, "employees"); err != nil {
		return err
	}
	if err := repair("employee_id", &cs.EmployeeID, "employees"); err != nil {
		return err
	}
	if err := repair("parent_case_id", &cs.ParentCaseID, "cases"); err != nil {
		return err
	}
	return nil
}

// canWork reports whether the actor may mutate this case: admins always,
// advocates only on their assigned cases.
func canWork(actor Actor, cs *models.Case) bool {
	if actor.CanAdminister() {
		return true
	}
	if !actor.CanFinalize() {
		return false
	}
	return cs.AdvocateID != nil && *cs.AdvocateID == actor.EmployeeID()
}
