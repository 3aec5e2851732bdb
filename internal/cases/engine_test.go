package cases

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
)

/* ===== helpers ===== */

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Employee{},
		&models.Bank{}, &models.Branch{}, &models.CaseType{}, &models.BankFee{},
		&models.Case{}, &models.CaseDocument{}, &models.CaseUpdate{},
		&models.LRNSequence{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	case_updates,
	case_documents,
	cases,
	bank_fees,
	branches,
	case_types,
	banks,
	employees,
	users,
	lrn_sequences
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

type seedOut struct {
	BankID     uuid.UUID
	BranchID   uuid.UUID
	CaseTypeID uuid.UUID
	AdvocateID uuid.UUID
	AdminID    uuid.UUID
}

func seedMasterData(t *testing.T, db *gorm.DB) seedOut {
	t.Helper()

	bank := models.Bank{Name: "HDFC Bank " + uuid.NewString()[:8]}
	if err := db.Create(&bank).Error; err != nil {
		t.Fatal(err)
	}
	branch := models.Branch{BankID: bank.ID, Name: "Karol Bagh", BranchCode: "KB-" + uuid.NewString()[:8], State: "Delhi"}
	if err := db.Create(&branch).Error; err != nil {
		t.Fatal(err)
	}
	ct := models.CaseType{Name: "Title Search " + uuid.NewString()[:8]}
	if err := db.Create(&ct).Error; err != nil {
		t.Fatal(err)
	}

	advUser := models.User{Email: fmt.Sprintf("adv+%s@test.local", uuid.NewString()), PasswordHash: "x", Role: models.RoleAdvocate}
	if err := db.Create(&advUser).Error; err != nil {
		t.Fatal(err)
	}
	adv := models.Employee{
		UserID: advUser.ID, Name: "Ravi Kapoor",
		EmployeeID: "EMP-" + uuid.NewString()[:8],
		Type:       models.RoleAdvocate, IsActive: true,
	}
	if err := db.Create(&adv).Error; err != nil {
		t.Fatal(err)
	}

	adminUser := models.User{Email: fmt.Sprintf("adm+%s@test.local", uuid.NewString()), PasswordHash: "x", Role: models.RoleAdmin}
	if err := db.Create(&adminUser).Error; err != nil {
		t.Fatal(err)
	}
	admin := models.Employee{
		UserID: adminUser.ID, Name: "Admin One",
		EmployeeID: "EMP-" + uuid.NewString()[:8],
		Type:       models.RoleAdmin, IsActive: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatal(err)
	}

	return seedOut{
		BankID: bank.ID, BranchID: branch.ID, CaseTypeID: ct.ID,
		AdvocateID: adv.ID, AdminID: admin.ID,
	}
}

func fillDetails(t *testing.T, e *Engine, actor Actor, caseID uuid.UUID, s seedOut) {
	t.Helper()
	_, err := e.UpdateDetails(actor, caseID, DetailsInput{
		PropertyAddress: "12 MG Road",
		State:           "Delhi",
		District:        "Central",
		Tehsil:          "Karol Bagh",
		BranchID:        &s.BranchID,
	})
	if err != nil {
		t.Fatalf("update details: %v", err)
	}
}

/* ================== TESTS ================== */

func Test_Create_StatusResolution(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}

	unassigned, err := e.Create(admin, CreateInput{
		ApplicantName: "A One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if unassigned.Status != models.CasePendingAssignment {
		t.Fatalf("want pending_assignment, got %s", unassigned.Status)
	}
	if !strings.HasPrefix(unassigned.CaseNumber, "HDF-") {
		t.Fatalf("case number %q should start with the bank code", unassigned.CaseNumber)
	}

	assigned, err := e.Create(admin, CreateInput{
		ApplicantName: "A Two", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if assigned.Status != models.CasePending {
		t.Fatalf("want pending, got %s", assigned.Status)
	}

	quo, err := e.Create(admin, CreateInput{
		ApplicantName: "A Three", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		IsQuotation: true, QuotationPaise: 500000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if quo.Status != models.CaseQuotation {
		t.Fatalf("want quotation, got %s", quo.Status)
	}
}

func Test_Create_NonAdminForbidden(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)

	_, err := e.Create(Advocate{Employee: s.AdvocateID}, CreateInput{
		ApplicantName: "X", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
	})
	if err != ErrForbidden {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func Test_Create_SchoolDuplicatePrompt(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}

	mk := func(confirm bool) error {
		_, err := e.Create(admin, CreateInput{
			ApplicantName: "St Marys School", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
			IsSchoolCase: true, ConfirmDuplicate: confirm,
		})
		return err
	}
	if err := mk(false); err != nil {
		t.Fatal(err)
	}
	if err := mk(false); err != ErrDuplicateSuspected {
		t.Fatalf("want ErrDuplicateSuspected, got %v", err)
	}
	// The prompt is an override, not a wall.
	if err := mk(true); err != nil {
		t.Fatalf("confirmed duplicate should pass: %v", err)
	}
}

func Test_FinalizeQuotation_GuardsAndEffects(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "Q One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		IsQuotation: true, QuotationPaise: 300000,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The final price must be explicit and confirmed.
	if _, err := e.FinalizeQuotation(admin, cs.ID, 350000, false); err != ErrQuotationUnconfirmed {
		t.Fatalf("unconfirmed price: want ErrQuotationUnconfirmed, got %v", err)
	}
	if _, err := e.FinalizeQuotation(admin, cs.ID, 0, true); err != ErrQuotationUnconfirmed {
		t.Fatalf("zero price: want ErrQuotationUnconfirmed, got %v", err)
	}

	// No advocate yet: the case cannot enter the working pipeline.
	if _, err := e.FinalizeQuotation(admin, cs.ID, 350000, true); err != ErrNoAdvocate {
		t.Fatalf("want ErrNoAdvocate, got %v", err)
	}

	if _, err := e.Reassign(admin, cs.ID, s.AdvocateID); err != nil {
		t.Fatal(err)
	}
	got, err := e.FinalizeQuotation(admin, cs.ID, 350000, true)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CasePending {
		t.Fatalf("want pending, got %s", got.Status)
	}
	if !got.QuotationFinalized || got.IsQuotation || got.QuotationPaise != 350000 {
		t.Fatalf("quotation flags wrong: %+v", got)
	}

	// Once in the pipeline, finalize is no longer applicable.
	if _, err := e.FinalizeQuotation(admin, cs.ID, 400000, true); err != ErrInvalidTransition {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func Test_FinalizeQuotation_NonQuotationCaseRejected(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "Q Two", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.FinalizeQuotation(admin, cs.ID, 100000, true); err != ErrInvalidTransition {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if _, err := e.FinalizeQuotation(Advocate{Employee: s.AdvocateID}, cs.ID, 100000, true); err != ErrForbidden {
		t.Fatalf("want ErrForbidden, got %v", err)
	}
}

func Test_Assign_OnlyFromPendingAssignment(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "B One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.Assign(admin, cs.ID, s.AdvocateID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CasePending || got.AdvocateID == nil || *got.AdvocateID != s.AdvocateID {
		t.Fatalf("assign result wrong: %+v", got)
	}

	// Already pending: assign again must be refused.
	if _, err := e.Assign(admin, cs.ID, s.AdvocateID); err != ErrInvalidTransition {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func Test_Hold_IdempotentOnHeldCase(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "C One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}

	held, err := e.Hold(admin, cs.ID, "client travelling")
	if err != nil {
		t.Fatal(err)
	}
	if held.Status != models.CaseOnHold {
		t.Fatalf("want on_hold, got %s", held.Status)
	}

	again, err := e.Hold(admin, cs.ID, "still travelling")
	if err != ErrAlreadyOnHold {
		t.Fatalf("want ErrAlreadyOnHold, got %v", err)
	}
	if again == nil || again.Status != models.CaseOnHold {
		t.Fatalf("held case should come back with the error, got %+v", again)
	}
}

func Test_Hold_RejectedFromTerminal(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "C Two", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	fillDetails(t, e, adv, cs.ID, s)
	if _, err := e.AdvocateAction(adv, cs.ID, ActionPositive, "", false); err != nil {
		t.Fatal(err)
	}

	// Closed cases cannot be parked.
	if _, err := e.Hold(admin, cs.ID, ""); err != ErrInvalidTransition {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func Test_Hold_AcceptedFromQuery(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "C Three", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AdvocateAction(adv, cs.ID, ActionQuery, "missing mutation entry", false); err != nil {
		t.Fatal(err)
	}

	got, err := e.Hold(adv, cs.ID, "awaiting client response")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CaseOnHold {
		t.Fatalf("want on_hold, got %s", got.Status)
	}
}

func Test_AdvocateAction_TerminalNeedsCompleteDetails(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "D One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.AdvocateAction(adv, cs.ID, ActionPositive, "", false); err != ErrIncompleteDetails {
		t.Fatalf("want ErrIncompleteDetails, got %v", err)
	}

	fillDetails(t, e, adv, cs.ID, s)

	got, err := e.AdvocateAction(adv, cs.ID, ActionPositive, "clear title", false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CasePositive || got.CompletedAt == nil {
		t.Fatalf("positive case wrong: %+v", got)
	}
	if !strings.HasPrefix(got.LegalReferenceNumber, "NX-DL-") {
		t.Fatalf("bad LRN %q", got.LegalReferenceNumber)
	}

	// Terminal cases are closed to further determinations.
	if _, err := e.AdvocateAction(adv, cs.ID, ActionNegative, "", false); err != ErrTerminalCase {
		t.Fatalf("want ErrTerminalCase, got %v", err)
	}
}

func Test_AdvocateAction_PSSAlwaysForwards(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "E One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	fillDetails(t, e, adv, cs.ID, s)

	// forwardToSRO false is ignored for PSS.
	got, err := e.AdvocateAction(adv, cs.ID, ActionPSS, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ForwardedToSRO || got.CompletedAt == nil {
		t.Fatalf("PSS must forward and complete: %+v", got)
	}
}

func Test_AdvocateAction_QueryReopensAndClearsCompletion(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "F One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.AdvocateAction(adv, cs.ID, ActionQuery, "need sale deed", false)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CaseOnQuery || got.CompletedAt != nil || got.ForwardedToSRO {
		t.Fatalf("query case wrong: %+v", got)
	}
}

func Test_Children_MirrorParentStatus(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	parent, err := e.Create(admin, CreateInput{
		ApplicantName: "G One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	fillDetails(t, e, adv, parent.ID, s)

	kids, err := e.AddChildren(adv, parent.ID, []ChildInput{
		{PropertyAddress: "Plot 1", State: "Delhi", District: "Central", Tehsil: "Karol Bagh", BranchID: &s.BranchID},
		{PropertyAddress: "Plot 2", State: "Delhi", District: "Central", Tehsil: "Karol Bagh", BranchID: &s.BranchID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 2 {
		t.Fatalf("want 2 children, got %d", len(kids))
	}
	if !strings.HasPrefix(kids[0].CaseNumber, parent.CaseNumber+"-") {
		t.Fatalf("child number %q should derive from parent %q", kids[0].CaseNumber, parent.CaseNumber)
	}

	if _, err := e.AdvocateAction(adv, parent.ID, ActionNegative, "encumbrance found", false); err != nil {
		t.Fatal(err)
	}

	var children []models.Case
	if err := db.Where("parent_case_id = ?", parent.ID).Find(&children).Error; err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, ch := range children {
		if ch.Status != models.CaseNegative {
			t.Fatalf("child %s not mirrored: %s", ch.CaseNumber, ch.Status)
		}
		if ch.CompletedAt == nil {
			t.Fatalf("child %s missing completed_at", ch.CaseNumber)
		}
		if ch.LegalReferenceNumber == "" || seen[ch.LegalReferenceNumber] {
			t.Fatalf("child %s LRN missing or duplicated: %q", ch.CaseNumber, ch.LegalReferenceNumber)
		}
		seen[ch.LegalReferenceNumber] = true
	}
}

func Test_ChildOperation_RedirectsToRoot(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	parent, err := e.Create(admin, CreateInput{
		ApplicantName: "H One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	kids, err := e.AddChildren(adv, parent.ID, []ChildInput{
		{PropertyAddress: "Plot 1", State: "Delhi", District: "Central", Tehsil: "Karol Bagh", BranchID: &s.BranchID},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Holding the child parks the whole family via the root.
	got, err := e.Hold(adv, kids[0].ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != parent.ID {
		t.Fatalf("hold should act on the root, acted on %s", got.ID)
	}
	var child models.Case
	if err := db.First(&child, "id = ?", kids[0].ID).Error; err != nil {
		t.Fatal(err)
	}
	if child.Status != models.CaseOnHold {
		t.Fatalf("child should mirror the hold, got %s", child.Status)
	}
}

func Test_Reassign_PreservesStatus(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "I One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	fillDetails(t, e, adv, cs.ID, s)
	if _, err := e.AdvocateAction(adv, cs.ID, ActionPositive, "", false); err != nil {
		t.Fatal(err)
	}

	user2 := models.User{Email: fmt.Sprintf("adv2+%s@test.local", uuid.NewString()), PasswordHash: "x", Role: models.RoleAdvocate}
	if err := db.Create(&user2).Error; err != nil {
		t.Fatal(err)
	}
	adv2 := models.Employee{
		UserID: user2.ID, Name: "Second Advocate",
		EmployeeID: "EMP-" + uuid.NewString()[:8],
		Type:       models.RoleAdvocate, IsActive: true,
	}
	if err := db.Create(&adv2).Error; err != nil {
		t.Fatal(err)
	}

	got, err := e.Reassign(admin, cs.ID, adv2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CasePositive {
		t.Fatalf("reassignment must not touch status, got %s", got.Status)
	}
	if got.ReassignedAt == nil || *got.AdvocateID != adv2.ID {
		t.Fatalf("reassignment not recorded: %+v", got)
	}
}

func Test_SROFlow_ReceiptThenFinalize(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "J One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	fillDetails(t, e, adv, cs.ID, s)
	if _, err := e.AdvocateAction(adv, cs.ID, ActionPSS, "", false); err != nil {
		t.Fatal(err)
	}

	sroUser := models.User{Email: fmt.Sprintf("sro+%s@test.local", uuid.NewString()), PasswordHash: "x", Role: models.RoleSRO}
	if err := db.Create(&sroUser).Error; err != nil {
		t.Fatal(err)
	}
	sroEmp := models.Employee{
		UserID: sroUser.ID, Name: "Officer Delhi",
		EmployeeID: "EMP-" + uuid.NewString()[:8],
		Type:       models.RoleSRO, IsActive: true,
	}
	if err := db.Create(&sroEmp).Error; err != nil {
		t.Fatal(err)
	}
	sro := SRO{Employee: sroEmp.ID, Scope: Scoping{States: []string{"delhi"}}}

	queue, err := e.ListForSRO(sro)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, q := range queue {
		if q.ID == cs.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("PSS case should appear in the in-scope SRO queue")
	}

	got, err := e.SROReceipt(sro, cs.ID, docOf("receipt.pdf", "application/pdf", 512), "search done")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.CaseSRODocumentPending || got.ForwardedToSRO || got.CompletedAt != nil {
		t.Fatalf("receipt intake wrong: %+v", got)
	}

	// Accepting the receipt hands the case back to the advocate.
	fin, err := e.FinalizeWithDocument(adv, cs.ID, ActionPositive, docOf("final.pdf", "application/pdf", 512), "")
	if err != nil {
		t.Fatal(err)
	}
	if fin.Status != models.CasePositive || fin.CompletedAt == nil {
		t.Fatalf("finalize wrong: %+v", fin)
	}

	// LRN survives the whole loop unchanged.
	if fin.LegalReferenceNumber != got.LegalReferenceNumber {
		t.Fatalf("LRN changed across the SRO loop: %q -> %q", got.LegalReferenceNumber, fin.LegalReferenceNumber)
	}

	var docs []models.CaseDocument
	if err := db.Where("case_id = ?", cs.ID).Find(&docs).Error; err != nil {
		t.Fatal(err)
	}
	tags := map[models.DocTag]int{}
	for _, d := range docs {
		tags[d.Tag]++
	}
	if tags[models.DocReceipt] != 1 || tags[models.DocFinal] != 1 {
		t.Fatalf("want one receipt and one final, got %v", tags)
	}
}

func Test_SROQueue_OutOfScopeHidden(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "K One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	fillDetails(t, e, adv, cs.ID, s)
	if _, err := e.AdvocateAction(adv, cs.ID, ActionPositive, "", true); err != nil {
		t.Fatal(err)
	}

	sroUser := models.User{Email: fmt.Sprintf("sro2+%s@test.local", uuid.NewString()), PasswordHash: "x", Role: models.RoleSRO}
	if err := db.Create(&sroUser).Error; err != nil {
		t.Fatal(err)
	}
	sroEmp := models.Employee{
		UserID: sroUser.ID, Name: "Officer Pune",
		EmployeeID: "EMP-" + uuid.NewString()[:8],
		Type:       models.RoleSRO, IsActive: true,
	}
	if err := db.Create(&sroEmp).Error; err != nil {
		t.Fatal(err)
	}
	outOfScope := SRO{Employee: sroEmp.ID, Scope: Scoping{States: []string{"Maharashtra"}}}

	queue, err := e.ListForSRO(outOfScope)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range queue {
		if q.ID == cs.ID {
			t.Fatal("Delhi case must be hidden from a Maharashtra-only officer")
		}
	}

	if _, err := e.SROReceipt(outOfScope, cs.ID, docOf("r.pdf", "application/pdf", 100), ""); err != ErrNotVisibleToSRO {
		t.Fatalf("want ErrNotVisibleToSRO, got %v", err)
	}
}

func Test_UploadFinal_SecondUploadReplacesFirst(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	cs, err := e.Create(admin, CreateInput{
		ApplicantName: "N One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.UploadFinalDocument(adv, cs.ID, docOf("v1.pdf", "application/pdf", 100)); err != nil {
		t.Fatal(err)
	}
	doc2, err := e.UploadFinalDocument(adv, cs.ID, docOf("v2.pdf", "application/pdf", 200))
	if err != nil {
		t.Fatal(err)
	}

	// Exactly one active final document, and it is the second upload.
	var docs []models.CaseDocument
	if err := db.Where("case_id = ? AND tag = ?", cs.ID, models.DocFinal).Find(&docs).Error; err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("want 1 final document, got %d", len(docs))
	}
	if docs[0].ID != doc2.ID || docs[0].OriginalName != "v2.pdf" {
		t.Fatalf("survivor should be the replacement: %+v", docs[0])
	}

	active, err := e.ActiveDocument(cs.ID, models.DocFinal)
	if err != nil {
		t.Fatal(err)
	}
	if active == nil || active.ID != doc2.ID {
		t.Fatalf("active document should be the replacement, got %+v", active)
	}

	// The audit trail distinguishes the replacement from the first upload.
	var cnt int64
	if err := db.Model(&models.CaseUpdate{}).
		Where("case_id = ? AND action = ?", cs.ID, "document_replaced").
		Count(&cnt).Error; err != nil {
		t.Fatal(err)
	}
	if cnt != 1 {
		t.Fatalf("want 1 document_replaced audit row, got %d", cnt)
	}
}

func Test_GroupUpload_PerCaseFailures(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	parent, err := e.Create(admin, CreateInput{
		ApplicantName: "L One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	kids, err := e.AddChildren(adv, parent.ID, []ChildInput{
		{PropertyAddress: "Plot 1", State: "Delhi", District: "Central", Tehsil: "Karol Bagh", BranchID: &s.BranchID},
	})
	if err != nil {
		t.Fatal(err)
	}

	// File for the parent only; the child must fail on its own line.
	results, err := e.GroupUploadFinal(adv, parent.ID, map[uuid.UUID]DocumentFile{
		parent.ID: docOf("parent.pdf", "application/pdf", 100),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	byID := map[uuid.UUID]GroupUploadResult{}
	for _, r := range results {
		byID[r.CaseID] = r
	}
	if byID[parent.ID].Error != "" {
		t.Fatalf("parent upload should succeed: %q", byID[parent.ID].Error)
	}
	if byID[kids[0].ID].Error == "" {
		t.Fatal("child with no file must report an error")
	}

	var cnt int64
	if err := db.Model(&models.CaseDocument{}).Where("case_id = ?", parent.ID).Count(&cnt).Error; err != nil {
		t.Fatal(err)
	}
	if cnt != 1 {
		t.Fatalf("parent should hold exactly one final document, got %d", cnt)
	}
}

func Test_Delete_CascadesFamily(t *testing.T) {
	db := openTestDB(t)
	s := seedMasterData(t, db)
	e := NewEngine(db, nil)
	admin := Admin{Employee: s.AdminID}
	adv := Advocate{Employee: s.AdvocateID}

	parent, err := e.Create(admin, CreateInput{
		ApplicantName: "M One", BankID: s.BankID, CaseTypeID: s.CaseTypeID,
		AdvocateID: &s.AdvocateID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddChildren(adv, parent.ID, []ChildInput{
		{PropertyAddress: "Plot 1", State: "Delhi", District: "Central", Tehsil: "Karol Bagh", BranchID: &s.BranchID},
	}); err != nil {
		t.Fatal(err)
	}

	if err := e.Delete(adv, parent.ID); err != ErrForbidden {
		t.Fatalf("advocate delete must be refused, got %v", err)
	}
	if err := e.Delete(admin, parent.ID); err != nil {
		t.Fatal(err)
	}

	var cnt int64
	if err := db.Model(&models.Case{}).
		Where("id = ? OR parent_case_id = ?", parent.ID, parent.ID).
		Count(&cnt).Error; err != nil {
		t.Fatal(err)
	}
	if cnt != 0 {
		t.Fatalf("family should be gone, %d rows remain", cnt)
	}
}
