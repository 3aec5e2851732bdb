package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

/* =============================== Enums ================================== */

// Role defines the type of employee in the system.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAdvocate Role = "advocate"
	RoleSRO      Role = "sro"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAdvocate || r == RoleSRO
}

// CaseStatus defines lifecycle states for a case.
type CaseStatus string

const (
	CaseDraft             CaseStatus = "draft"
	CaseQuotation         CaseStatus = "quotation"
	CasePendingAssignment CaseStatus = "pending_assignment"
	CasePending           CaseStatus = "pending"
	CaseOnHold            CaseStatus = "on_hold"
	CaseOnQuery           CaseStatus = "on_query"
	// CaseQuery is a historical synonym of CaseOnQuery still present in
	// stored data; both are accepted wherever "query" is meant.
	CaseQuery              CaseStatus = "query"
	CaseDocumentPending    CaseStatus = "document_pending"
	CaseSRODocumentPending CaseStatus = "sro_document_pending"
	CasePositive           CaseStatus = "positive"
	CaseNegative           CaseStatus = "negative"
	// CasePSS: positive subject to search. Terminal, always forwarded to SRO.
	CasePSS CaseStatus = "positive_subject_tosearch"
)

// AllStatuses is the closed enumeration; nothing outside it is ever stored.
var AllStatuses = []CaseStatus{
	CaseDraft, CaseQuotation, CasePendingAssignment, CasePending,
	CaseOnHold, CaseOnQuery, CaseQuery, CaseDocumentPending,
	CaseSRODocumentPending, CasePositive, CaseNegative, CasePSS,
}

// Valid reports whether s is a member of the fixed enumeration.
func (s CaseStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s closes the case to new work.
func (s CaseStatus) Terminal() bool {
	return s == CasePositive || s == CaseNegative || s == CasePSS
}

// IsQuery collapses the two historical spellings of the query state.
func (s CaseStatus) IsQuery() bool {
	return s == CaseOnQuery || s == CaseQuery
}

// DocTag distinguishes the two document slots a case carries.
type DocTag string

const (
	DocReceipt DocTag = "receipt" // supplied by the SRO
	DocFinal   DocTag = "final"   // supplied by the advocate
)

/* =============================== Entities =============================== */

// User is a login identity; every employee has exactly one.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         Role      `gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time
}

// Employee is the operational identity behind a user: an advocate, an SRO
// officer, or an admin operator.
type Employee struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Name       string    `gorm:"not null"`
	EmployeeID string    `gorm:"uniqueIndex;not null"` // human-assigned code, e.g. EMP-0042
	Mobile     string
	Email      string
	Type       Role `gorm:"type:varchar(10);not null"`
	// Initials go into generated LRNs when exactly two letters; otherwise
	// they are derived from Name.
	Initials string `gorm:"type:varchar(4)"`
	IsActive bool   `gorm:"default:true"`

	// SRO geographic scoping. A non-super SRO sees only cases whose state,
	// district or tehsil matches any entry in these sets (case-insensitive).
	IsSuperSRO   bool           `gorm:"default:false"`
	SROStates    pq.StringArray `gorm:"type:text[]"`
	SRODistricts pq.StringArray `gorm:"type:text[]"`
	SROTehsils   pq.StringArray `gorm:"type:text[]"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Bank is a client institution routing cases into the system.
type Bank struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Branch belongs to a bank; a case's branch must belong to the case's bank.
type Branch struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BankID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"not null"`
	BranchCode string    `gorm:"uniqueIndex"`
	State      string
	Address    string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Bank Bank `gorm:"foreignKey:BankID;references:ID"`
}

// CaseType categorizes the due-diligence work requested.
type CaseType struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"uniqueIndex;not null"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BankFee is the (bank, state, case type) fee table consumed by billing.
type BankFee struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BankID     uuid.UUID `gorm:"type:uuid;not null;index:idx_bank_state_type,unique"`
	State      string    `gorm:"not null;index:idx_bank_state_type,unique"`
	CaseTypeID uuid.UUID `gorm:"type:uuid;not null;index:idx_bank_state_type,unique"`
	// Stored in paise to avoid float issues.
	FeePaise int64 `gorm:"not null"`

	CaseType CaseType `gorm:"foreignKey:CaseTypeID;references:ID"`
}

// Case is the central entity of the engine.
type Case struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CaseNumber    string    `gorm:"uniqueIndex;not null"` // assigned at creation
	ApplicantName string    `gorm:"not null"`
	BankID        uuid.UUID `gorm:"type:uuid;not null;index"`
	CaseTypeID    uuid.UUID `gorm:"type:uuid;not null;index"`

	// Quotation flow
	IsQuotation        bool
	QuotationPaise     int64
	QuotationFinalized bool

	DocumentsPresent bool
	IsSchoolCase     bool

	// Assignment
	AdvocateID   *uuid.UUID `gorm:"type:uuid;index"`
	EmployeeID   *uuid.UUID `gorm:"type:uuid"` // originating employee, if any
	ReassignedAt *time.Time

	Status CaseStatus `gorm:"type:varchar(30);not null;default:'pending'"`

	// Location; all five must be present before a terminal determination.
	PropertyAddress string
	State           string
	District        string
	Tehsil          string
	BranchID        *uuid.UUID `gorm:"type:uuid"`

	// Assigned once on the first terminal transition, immutable thereafter.
	LegalReferenceNumber string `gorm:"index:ux_case_lrn,unique,where:legal_reference_number <> ''"`

	// Workflow tracking
	ForwardedToSRO bool
	CompletedAt    *time.Time

	// Hierarchy: a case with ParentCaseID set is a child case.
	ParentCaseID *uuid.UUID `gorm:"type:uuid;index"`

	// Billing override in paise; nil means "use the fee table".
	CustomFeePaise *int64

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	Bank      Bank           `gorm:"foreignKey:BankID;references:ID"`
	CaseType  CaseType       `gorm:"foreignKey:CaseTypeID;references:ID"`
	Advocate  *Employee      `gorm:"foreignKey:AdvocateID;references:ID"`
	Branch    *Branch        `gorm:"foreignKey:BranchID;references:ID"`
	Children  []Case         `gorm:"foreignKey:ParentCaseID;references:ID"`
	Documents []CaseDocument `gorm:"foreignKey:CaseID;references:ID"`
}

// HasCompleteDetails reports whether the advocate may finalize: address,
// state, district, tehsil and branch must all be present.
func (c *Case) HasCompleteDetails() bool {
	return c.PropertyAddress != "" && c.State != "" && c.District != "" &&
		c.Tehsil != "" && c.BranchID != nil
}

// IsChild reports whether this case hangs off a parent.
func (c *Case) IsChild() bool { return c.ParentCaseID != nil }

// CaseDocument is a stored blob attached to a case. At most one document per
// tag is active for a given case; uploading another of the same tag replaces
// the earlier one (row and blob).
type CaseDocument struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CaseID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Tag          DocTag    `gorm:"type:varchar(10);not null;index"`
	Key          string    `gorm:"not null"` // blob store object key
	Mime         string    `gorm:"not null"`
	Size         int64     `gorm:"not null"`
	OriginalName string
	UploadedBy   uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time

	Case Case `gorm:"foreignKey:CaseID;references:ID"`
}

// CaseUpdate is the append-only audit log: never updated, never deleted.
type CaseUpdate struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CaseID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	ActorID    uuid.UUID      `gorm:"type:uuid"`
	Action     string         `gorm:"type:varchar(40);not null"`
	Remark     string         `gorm:"type:text"`
	Meta       datatypes.JSON // e.g. {"old_status": "...", "new_status": "..."}
	UpdateDate time.Time      `gorm:"autoCreateTime"`
}

// LRNSequence is the single-row allocator behind LRN serials. The row is
// read FOR UPDATE inside the finalizing transaction so concurrent
// finalizations cannot mint the same serial.
type LRNSequence struct {
	ID     int   `gorm:"primaryKey"` // always 1
	Serial int64 `gorm:"not null"`
}
