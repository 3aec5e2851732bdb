package billing

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/sanitize"
)

// Handler aggregates completed cases into billable reports. All routes
// are admin-only.
type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

// periodFromQuery resolves ?fy=2025 | ?month=2025-07 | ?from=&to= into a
// half-open window. With no parameters the current financial year is used.
func periodFromQuery(c *fiber.Ctx) (from, to time.Time, err error) {
	if fy := c.Query("fy"); fy != "" {
		y, perr := strconv.Atoi(fy)
		if perr != nil || y < 2000 || y > 2100 {
			return from, to, fiber.NewError(fiber.StatusBadRequest, "invalid fy")
		}
		from = time.Date(y, time.April, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0), nil
	}
	if m := c.Query("month"); m != "" {
		t, perr := time.Parse("2006-01", m)
		if perr != nil {
			return from, to, fiber.NewError(fiber.StatusBadRequest, "invalid month, want YYYY-MM")
		}
		return t, t.AddDate(0, 1, 0), nil
	}
	if f, t := c.Query("from"), c.Query("to"); f != "" || t != "" {
		from, err = time.Parse("2006-01-02", f)
		if err != nil {
			return from, to, fiber.NewError(fiber.StatusBadRequest, "invalid from, want YYYY-MM-DD")
		}
		to, err = time.Parse("2006-01-02", t)
		if err != nil {
			return from, to, fiber.NewError(fiber.StatusBadRequest, "invalid to, want YYYY-MM-DD")
		}
		return from, to.AddDate(0, 0, 1), nil
	}
	from, to = FinancialYear(time.Now())
	return from, to, nil
}

func (h *Handler) completedInPeriod(c *fiber.Ctx) (*gorm.DB, time.Time, time.Time, error) {
	from, to, err := periodFromQuery(c)
	if err != nil {
		return nil, from, to, err
	}
	q := h.db.Model(&models.Case{}).
		Where("completed_at IS NOT NULL AND completed_at >= ? AND completed_at < ?", from, to)

	if b := c.Query("bank_id"); b != "" {
		bankID, perr := uuid.Parse(b)
		if perr != nil {
			return nil, from, to, fiber.NewError(fiber.StatusBadRequest, "invalid bank_id")
		}
		q = q.Where("bank_id = ?", bankID)
	}
	if br := c.Query("branch_id"); br != "" {
		branchID, perr := uuid.Parse(br)
		if perr != nil {
			return nil, from, to, fiber.NewError(fiber.StatusBadRequest, "invalid branch_id")
		}
		q = q.Where("branch_id = ?", branchID)
	}
	return q, from, to, nil
}

// Summary godoc
// @Summary      Billing summary
// @Description  Totals over completed cases in a period, filtered by bank/branch
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Param        fy        query int    false "financial year start, e.g. 2025"
// @Param        month     query string false "YYYY-MM"
// @Param        from      query string false "YYYY-MM-DD"
// @Param        to        query string false "YYYY-MM-DD"
// @Param        bank_id   query string false "bank id (uuid)"
// @Param        branch_id query string false "branch id (uuid)"
// @Success      200  {object}  map[string]any
// @Router       /billing/summary [get]
func (h *Handler) Summary(c *fiber.Ctx) error {
	q, from, to, err := h.completedInPeriod(c)
	if err != nil {
		return err
	}

	var list []models.Case
	if err := q.Order("completed_at ASC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var totalPaise int64
	var unpriced int
	byStatus := map[models.CaseStatus]int{}
	for i := range list {
		fee, ferr := ResolveFeePaise(h.db, &list[i])
		if ferr != nil {
			return fiber.ErrInternalServerError
		}
		if fee == 0 {
			unpriced++
		}
		totalPaise += fee
		byStatus[list[i].Status]++
	}

	return c.JSON(fiber.Map{
		"from":           from.Format("2006-01-02"),
		"to":             to.AddDate(0, 0, -1).Format("2006-01-02"),
		"cases":          len(list),
		"total_paise":    totalPaise,
		"unpriced_cases": unpriced,
		"by_status":      byStatus,
	})
}

// ExportCSV godoc
// @Summary      Billing export
// @Description  CSV of completed cases with resolved fees for the period
// @Tags         billing
// @Security     BearerAuth
// @Produce      text/csv
// @Param        fy        query int    false "financial year start"
// @Param        month     query string false "YYYY-MM"
// @Param        bank_id   query string false "bank id (uuid)"
// @Param        branch_id query string false "branch id (uuid)"
// @Success      200  {string}  string  "CSV body"
// @Router       /billing/export [get]
func (h *Handler) ExportCSV(c *fiber.Ctx) error {
	q, from, to, err := h.completedInPeriod(c)
	if err != nil {
		return err
	}

	var list []models.Case
	if err := q.Preload("Bank").Preload("CaseType").Preload("Branch").
		Order("completed_at ASC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write([]string{
		"case_number", "lrn", "applicant", "bank", "branch", "case_type",
		"state", "status", "completed_at", "fee_paise",
	})
	for i := range list {
		cs := &list[i]
		fee, ferr := ResolveFeePaise(h.db, cs)
		if ferr != nil {
			return fiber.ErrInternalServerError
		}
		branch := ""
		if cs.Branch != nil {
			branch = cs.Branch.Name
		}
		completed := ""
		if cs.CompletedAt != nil {
			completed = cs.CompletedAt.Format("2006-01-02")
		}
		_ = w.Write([]string{
			cs.CaseNumber,
			cs.LegalReferenceNumber,
			sanitize.RedactPII(cs.ApplicantName),
			cs.Bank.Name,
			branch,
			cs.CaseType.Name,
			cs.State,
			string(cs.Status),
			completed,
			strconv.FormatInt(fee, 10),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fiber.ErrInternalServerError
	}

	name := fmt.Sprintf("billing_%s_%s.csv", from.Format("20060102"), to.AddDate(0, 0, -1).Format("20060102"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.SendString(sb.String())
}

/* ============================ Fee overrides ============================= */

type OverrideRequest struct {
	FeePaise *int64 `json:"fee_paise" validate:"omitempty,gte=0"`
}

// SetOverride godoc
// @Summary      Set or clear a per-case fee override
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string           true "case id (uuid)"
// @Param        payload  body OverrideRequest  true "fee_paise, null clears"
// @Success      200  {object}  map[string]any
// @Router       /billing/cases/{id}/override [put]
func (h *Handler) SetOverride(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	var in OverrideRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if in.FeePaise != nil && *in.FeePaise < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "fee_paise must be >= 0")
	}

	res := h.db.Model(&models.Case{}).Where("id = ?", id).
		Update("custom_fee_paise", in.FeePaise)
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.JSON(fiber.Map{"id": id, "custom_fee_paise": in.FeePaise})
}
