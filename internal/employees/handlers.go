package employees

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/validation"
)

// Handler manages employee accounts: advocates, SRO officers and admin
// operators. Only admins reach these routes.
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

/* ============================== Onboarding ============================== */

type CreateEmployeeRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Name       string `json:"name" validate:"required,max=150"`
	EmployeeID string `json:"employee_id" validate:"required,empcode"`
	Mobile     string `json:"mobile" validate:"max=20"`
	Type       string `json:"type" validate:"required,oneof=admin advocate sro"`
	Initials   string `json:"initials" validate:"omitempty,initials"`
}

// Create godoc
// @Summary      Onboard employee
// @Description  Creates the login and the employee record in one step
// @Tags         employees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateEmployeeRequest  true  "Employee"
// @Success      201  {object}  models.Employee
// @Failure      409  {object}  models.ErrorResponse  "email or code taken"
// @Router       /employees [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateEmployeeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	code := strings.TrimSpace(in.EmployeeID)

	var cnt int64
	if err := h.db.Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cnt > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already registered")
	}
	if err := h.db.Model(&models.Employee{}).Where("employee_id = ?", code).Count(&cnt).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if cnt > 0 {
		return fiber.NewError(fiber.StatusConflict, "employee code already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	var emp models.Employee
	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Email:        email,
			PasswordHash: string(hash),
			Role:         models.Role(in.Type),
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		emp = models.Employee{
			UserID:     user.ID,
			Name:       strings.TrimSpace(in.Name),
			EmployeeID: code,
			Mobile:     strings.TrimSpace(in.Mobile),
			Email:      email,
			Type:       models.Role(in.Type),
			Initials:   strings.ToUpper(strings.TrimSpace(in.Initials)),
			IsActive:   true,
		}
		return tx.Create(&emp).Error
	})
	if txErr != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(emp)
}

/* ================================ Listing =============================== */

// List godoc
// @Summary      List employees
// @Tags         employees
// @Security     BearerAuth
// @Produce      json
// @Param        type  query string false "admin | advocate | sro"
// @Success      200  {array}  models.Employee
// @Router       /employees [get]
func (h *Handler) List(c *fiber.Ctx) error {
	q := h.db.Model(&models.Employee{})
	if t := c.Query("type"); t != "" {
		if !models.Role(t).Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid type filter")
		}
		q = q.Where("type = ?", t)
	}
	var list []models.Employee
	if err := q.Order("name ASC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.Employee{}
	}
	return c.JSON(list)
}

/* ============================= Maintenance ============================== */

type UpdateEmployeeRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=150"`
	Mobile   *string `json:"mobile" validate:"omitempty,max=20"`
	Initials *string `json:"initials" validate:"omitempty,initials"`
	IsActive *bool   `json:"is_active"`
}

// Update godoc
// @Summary      Update employee
// @Description  Deactivation blocks login but keeps history intact
// @Tags         employees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string                 true "employee id (uuid)"
// @Param        payload  body UpdateEmployeeRequest  true "Fields to change"
// @Success      200  {object}  models.Employee
// @Router       /employees/{id} [put]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateEmployeeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var emp models.Employee
	if err := h.db.First(&emp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Mobile != nil {
		updates["mobile"] = strings.TrimSpace(*in.Mobile)
	}
	if in.Initials != nil {
		updates["initials"] = strings.ToUpper(strings.TrimSpace(*in.Initials))
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) == 0 {
		return c.JSON(emp)
	}
	if err := h.db.Model(&emp).Updates(updates).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if err := h.db.First(&emp, "id = ?", id).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(emp)
}

/* ============================== SRO scoping ============================= */

type ScopeRequest struct {
	IsSuperSRO bool     `json:"is_super_sro"`
	States     []string `json:"states"`
	Districts  []string `json:"districts"`
	Tehsils    []string `json:"tehsils"`
}

// SetScope godoc
// @Summary      Set SRO geographic scope
// @Description  Empty sets on a non-super officer mean the officer sees nothing
// @Tags         employees
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string        true "employee id (uuid)"
// @Param        payload  body ScopeRequest  true "Scope"
// @Success      200  {object}  models.Employee
// @Failure      422  {object}  models.ErrorResponse  "not an SRO"
// @Router       /employees/{id}/scope [put]
func (h *Handler) SetScope(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in ScopeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	var emp models.Employee
	if err := h.db.First(&emp, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if emp.Type != models.RoleSRO {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "employee is not an SRO officer")
	}

	if err := h.db.Model(&emp).Updates(map[string]any{
		"is_super_sro":  in.IsSuperSRO,
		"sro_states":    pq.StringArray(trimAll(in.States)),
		"sro_districts": pq.StringArray(trimAll(in.Districts)),
		"sro_tehsils":   pq.StringArray(trimAll(in.Tehsils)),
	}).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if err := h.db.First(&emp, "id = ?", id).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(emp)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
