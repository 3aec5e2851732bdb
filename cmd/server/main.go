// @title           Legal Due Diligence API
// @version         1.0
// @description     Case lifecycle backend for bank-ordered title due diligence: admins open cases, advocates work and finalize them, SRO officers handle forwarded searches, billing aggregates completed work.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/nexval/legal-dd-backend/pkg/database"
	"github.com/nexval/legal-dd-backend/pkg/models"

	"github.com/nexval/legal-dd-backend/internal/auth"
	"github.com/nexval/legal-dd-backend/internal/banks"
	"github.com/nexval/legal-dd-backend/internal/billing"
	"github.com/nexval/legal-dd-backend/internal/cases"
	"github.com/nexval/legal-dd-backend/internal/employees"
	"github.com/nexval/legal-dd-backend/internal/storage"
)

func main() {
	_ = godotenv.Load()

	db := database.Init()
	if err := db.AutoMigrate(
		&models.User{}, &models.Employee{},
		&models.Bank{}, &models.Branch{}, &models.CaseType{}, &models.BankFee{},
		&models.Case{}, &models.CaseDocument{}, &models.CaseUpdate{},
		&models.LRNSequence{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")

	// Auth
	authH := auth.NewHandler(db)
	api.Post("/signup", authH.Signup) // bootstrap admin only
	api.Post("/login", authH.Login)
	api.Get("/me", auth.RequireAuth(), authH.Me)

	// Storage helper
	sb := storage.NewSupabase() // uses SUPABASE_URL / SUPABASE_SERVICE_KEY / SUPABASE_BUCKET

	// Case engine
	engine := cases.NewEngine(db, sb)
	engine.OperatorEmployeeID = os.Getenv("OPERATOR_EMPLOYEE_ID")

	caseH := cases.NewHandler(db, engine, sb)
	// Admin
	api.Post("/cases", auth.RequireAuth(), auth.RequireRole("admin"), caseH.Create)
	api.Post("/cases/:id/assign", auth.RequireAuth(), auth.RequireRole("admin"), caseH.Assign)
	api.Post("/cases/:id/reassign", auth.RequireAuth(), auth.RequireRole("admin"), caseH.Reassign)
	api.Post("/cases/:id/quotation/finalize", auth.RequireAuth(), auth.RequireRole("admin"), caseH.FinalizeQuotation)
	api.Delete("/cases/:id", auth.RequireAuth(), auth.RequireRole("admin"), caseH.Delete)
	// Admin + advocate
	api.Get("/cases", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.List)
	api.Get("/cases/:id", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.Detail)
	api.Get("/cases/:id/updates", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.Updates)
	api.Put("/cases/:id/details", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.UpdateDetails)
	api.Post("/cases/:id/hold", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.Hold)
	api.Post("/cases/:id/action", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.Action)
	api.Post("/cases/:id/children", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.AddChildren)
	api.Post("/cases/:id/documents/final", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.UploadFinal)
	api.Post("/cases/:id/documents/group", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.GroupUpload)
	api.Post("/cases/:id/finalize", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.FinalizeWithDocument)
	api.Get("/cases/:id/documents/:tag", auth.RequireAuth(), auth.RequireRole("admin", "advocate"), caseH.ActiveDocumentByTag)
	api.Get("/documents/:docID/signed-url", auth.RequireAuth(), caseH.SignedDocumentURL)
	// SRO
	api.Get("/sro/queue", auth.RequireAuth(), auth.RequireRole("sro"), caseH.SROQueue)
	api.Post("/sro/cases/:id/receipt", auth.RequireAuth(), auth.RequireRole("sro"), caseH.SROReceipt)

	// Master data (admin writes, everyone authenticated reads)
	bankH := banks.NewHandler(db)
	api.Post("/banks", auth.RequireAuth(), auth.RequireRole("admin"), bankH.CreateBank)
	api.Put("/banks/:id", auth.RequireAuth(), auth.RequireRole("admin"), bankH.UpdateBank)
	api.Get("/banks", auth.RequireAuth(), bankH.ListBanks)
	api.Post("/branches", auth.RequireAuth(), auth.RequireRole("admin"), bankH.CreateBranch)
	api.Get("/banks/:id/branches", auth.RequireAuth(), bankH.ListBranches)
	api.Post("/case-types", auth.RequireAuth(), auth.RequireRole("admin"), bankH.CreateCaseType)
	api.Get("/case-types", auth.RequireAuth(), bankH.ListCaseTypes)
	api.Put("/fees", auth.RequireAuth(), auth.RequireRole("admin"), bankH.UpsertFee)
	api.Get("/banks/:id/fees", auth.RequireAuth(), auth.RequireRole("admin"), bankH.ListFees)

	// Employees
	empH := employees.NewHandler(db)
	api.Post("/employees", auth.RequireAuth(), auth.RequireRole("admin"), empH.Create)
	api.Get("/employees", auth.RequireAuth(), auth.RequireRole("admin"), empH.List)
	api.Put("/employees/:id", auth.RequireAuth(), auth.RequireRole("admin"), empH.Update)
	api.Put("/employees/:id/scope", auth.RequireAuth(), auth.RequireRole("admin"), empH.SetScope)

	// Billing
	billH := billing.NewHandler(db)
	api.Get("/billing/summary", auth.RequireAuth(), auth.RequireRole("admin"), billH.Summary)
	api.Get("/billing/export", auth.RequireAuth(), auth.RequireRole("admin"), billH.ExportCSV)
	api.Put("/billing/cases/:id/override", auth.RequireAuth(), auth.RequireRole("admin"), billH.SetOverride)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	log.Println("Server running on :" + port)
	log.Fatal(app.Listen(":" + port))
}
