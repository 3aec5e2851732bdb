package banks

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/validation"
)

// Handler serves the master data behind every case: banks and their
// branches, case types, and the per-bank fee schedule.
type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

/* ================================ Banks ================================ */

type BankRequest struct {
	Name string `json:"name" validate:"required,max=150"`
}

// CreateBank godoc
// @Summary      Create bank
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  BankRequest  true  "Bank"
// @Success      201  {object}  models.Bank
// @Failure      409  {object}  models.ErrorResponse  "name taken"
// @Router       /banks [post]
func (h *Handler) CreateBank(c *fiber.Ctx) error {
	var in BankRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	name := strings.TrimSpace(in.Name)

	var cnt int64
	if err := h.db.Model(&models.Bank{}).
		Where("LOWER(name) = LOWER(?)", name).Count(&cnt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cnt > 0 {
		return fiber.NewError(fiber.StatusConflict, "bank name already exists")
	}

	b := models.Bank{Name: name}
	if err := h.db.Create(&b).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

// ListBanks godoc
// @Summary      List banks
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.Bank
// @Router       /banks [get]
func (h *Handler) ListBanks(c *fiber.Ctx) error {
	var list []models.Bank
	if err := h.db.Order("name ASC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.Bank{}
	}
	return c.JSON(list)
}

// UpdateBank godoc
// @Summary      Rename bank
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string       true "bank id (uuid)"
// @Param        payload  body BankRequest  true "Bank"
// @Success      200  {object}  models.Bank
// @Router       /banks/{id} [put]
func (h *Handler) UpdateBank(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in BankRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var b models.Bank
	if err := h.db.First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	b.Name = strings.TrimSpace(in.Name)
	if err := h.db.Save(&b).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(b)
}

/* =============================== Branches =============================== */

type BranchRequest struct {
	BankID     string `json:"bank_id" validate:"required,uuid4"`
	BranchCode string `json:"branch_code" validate:"required,max=30"`
	Name       string `json:"name" validate:"required,max=150"`
	State      string `json:"state" validate:"required,max=100"`
	Address    string `json:"address" validate:"max=300"`
}

// CreateBranch godoc
// @Summary      Create bank branch
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  BranchRequest  true  "Branch"
// @Success      201  {object}  models.Branch
// @Router       /branches [post]
func (h *Handler) CreateBranch(c *fiber.Ctx) error {
	var in BranchRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	bankID, _ := uuid.Parse(in.BankID)
	var cnt int64
	if err := h.db.Model(&models.Bank{}).Where("id = ?", bankID).Count(&cnt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cnt == 0 {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "bank does not exist")
	}

	br := models.Branch{
		BankID:     bankID,
		BranchCode: strings.TrimSpace(in.BranchCode),
		Name:       strings.TrimSpace(in.Name),
		State:      strings.TrimSpace(in.State),
		Address:    strings.TrimSpace(in.Address),
	}
	if err := h.db.Create(&br).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(br)
}

// ListBranches godoc
// @Summary      List branches of a bank
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "bank id (uuid)"
// @Success      200  {array}  models.Branch
// @Router       /banks/{id}/branches [get]
func (h *Handler) ListBranches(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var list []models.Branch
	if err := h.db.Where("bank_id = ?", id).Order("name ASC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.Branch{}
	}
	return c.JSON(list)
}

/* ============================== Case types ============================== */

type CaseTypeRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateCaseType godoc
// @Summary      Create case type
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CaseTypeRequest  true  "Case type"
// @Success      201  {object}  models.CaseType
// @Router       /case-types [post]
func (h *Handler) CreateCaseType(c *fiber.Ctx) error {
	var in CaseTypeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	ct := models.CaseType{Name: strings.TrimSpace(in.Name)}
	if err := h.db.Create(&ct).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(ct)
}

// ListCaseTypes godoc
// @Summary      List case types
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.CaseType
// @Router       /case-types [get]
func (h *Handler) ListCaseTypes(c *fiber.Ctx) error {
	var list []models.CaseType
	if err := h.db.Order("name ASC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.CaseType{}
	}
	return c.JSON(list)
}

/* ================================= Fees ================================= */

type FeeRequest struct {
	BankID     string `json:"bank_id" validate:"required,uuid4"`
	State      string `json:"state" validate:"required,max=100"`
	CaseTypeID string `json:"case_type_id" validate:"required,uuid4"`
	FeePaise   int64  `json:"fee_paise" validate:"required,gte=0"`
}

// UpsertFee godoc
// @Summary      Set scheduled fee
// @Description  One row per (bank, state, case type); overwrites on repeat
// @Tags         master
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  FeeRequest  true  "Fee"
// @Success      200  {object}  models.BankFee
// @Router       /fees [put]
func (h *Handler) UpsertFee(c *fiber.Ctx) error {
	var in FeeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	bankID, _ := uuid.Parse(in.BankID)
	typeID, _ := uuid.Parse(in.CaseTypeID)
	state := strings.TrimSpace(in.State)

	var fee models.BankFee
	err := h.db.Where("bank_id = ? AND LOWER(state) = LOWER(?) AND case_type_id = ?",
		bankID, state, typeID).First(&fee).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fee = models.BankFee{BankID: bankID, State: state, CaseTypeID: typeID, FeePaise: in.FeePaise}
		if err := h.db.Create(&fee).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	case err == nil:
		if err := h.db.Model(&fee).Update("fee_paise", in.FeePaise).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		fee.FeePaise = in.FeePaise
	default:
		return fiber.ErrInternalServerError
	}
	return c.JSON(fee)
}

// ListFees godoc
// @Summary      Fee schedule of a bank
// @Tags         master
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "bank id (uuid)"
// @Success      200  {array}  models.BankFee
// @Router       /banks/{id}/fees [get]
func (h *Handler) ListFees(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var list []models.BankFee
	if err := h.db.Preload("CaseType").Where("bank_id = ?", id).
		Order("state ASC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.BankFee{}
	}
	return c.JSON(list)
}
