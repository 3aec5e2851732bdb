package cases

import (
	"errors"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/internal/auth"
	"github.com/nexval/legal-dd-backend/internal/storage"
	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/sanitize"
	"github.com/nexval/legal-dd-backend/pkg/validation"
)

type Handler struct {
	db     *gorm.DB
	engine *Engine
	sb     *storage.Supabase
}

func NewHandler(db *gorm.DB, engine *Engine, sb *storage.Supabase) *Handler {
	return &Handler{db: db, engine: engine, sb: sb}
}

/* ============================ Actor plumbing ============================ */

// actorFromCtx builds the capability view of the request's employee.
func (h *Handler) actorFromCtx(c *fiber.Ctx) (Actor, error) {
	role := auth.MustRole(c)
	empID, _ := uuid.Parse(auth.EmployeeID(c))

	switch models.Role(role) {
	case models.RoleAdmin:
		return Admin{Employee: empID}, nil
	case models.RoleAdvocate:
		return Advocate{Employee: empID}, nil
	case models.RoleSRO:
		var emp models.Employee
		if err := h.db.First(&emp, "id = ?", empID).Error; err != nil {
			return nil, fiber.ErrForbidden
		}
		return SRO{Employee: empID, Scope: ScopingFor(&emp)}, nil
	default:
		return nil, fiber.ErrForbidden
	}
}

// respondEngineErr maps engine guard violations onto HTTP responses. Every
// one of them is local and recoverable; the case is unchanged.
func respondEngineErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrAlreadyOnHold):
		// Idempotent no-op, informational rather than an error.
		return c.JSON(fiber.Map{"info": err.Error()})
	case errors.Is(err, ErrNotFound):
		return fiber.ErrNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotVisibleToSRO):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrIncompleteDetails):
		// The client is redirected back to the detail-completion step.
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":    true,
			"message":  err.Error(),
			"redirect": "work_on_case",
		})
	case errors.Is(err, ErrDuplicateSuspected):
		// Confirmation prompt, not a failure: resubmit with confirm_duplicate.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":                 true,
			"message":               err.Error(),
			"confirmation_required": true,
		})
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrTerminalCase),
		errors.Is(err, ErrNoAdvocate), errors.Is(err, ErrQuotationUnconfirmed),
		errors.Is(err, ErrNotForwarded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrBrokenReference):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.ErrInternalServerError
	}
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func fileToDocument(fh *multipart.FileHeader) (DocumentFile, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return DocumentFile{}, nil, err
	}
	return DocumentFile{
		Name:   fh.Filename,
		Mime:   fh.Header.Get("Content-Type"),
		Size:   fh.Size,
		Reader: f,
	}, func() { _ = f.Close() }, nil
}

/* =============================== Creation =============================== */

type CreateCaseRequest struct {
	ApplicantName    string  `json:"applicant_name" validate:"required,max=200"`
	BankID           string  `json:"bank_id" validate:"required,uuid4"`
	CaseTypeID       string  `json:"case_type_id" validate:"required,uuid4"`
	DocumentsPresent bool    `json:"documents_present"`
	IsSchoolCase     bool    `json:"is_school_case"`
	ConfirmDuplicate bool    `json:"confirm_duplicate"`
	IsQuotation      bool    `json:"is_quotation"`
	QuotationPaise   int64   `json:"quotation_paise" validate:"gte=0"`
	AdvocateID       *string `json:"advocate_id" validate:"omitempty,uuid4"`
	AssignToOperator bool    `json:"assign_to_operator"`
}

// Create Case godoc
// @Summary      Create case
// @Description  Admin opens a new due-diligence case
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateCaseRequest  true  "Case payload"
// @Success      201  {object}  map[string]string  "id, case_number, status"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "duplicate confirmation required"
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}

	bankID, _ := uuid.Parse(in.BankID)
	typeID, _ := uuid.Parse(in.CaseTypeID)
	input := CreateInput{
		ApplicantName:    in.ApplicantName,
		BankID:           bankID,
		CaseTypeID:       typeID,
		DocumentsPresent: in.DocumentsPresent,
		IsSchoolCase:     in.IsSchoolCase,
		ConfirmDuplicate: in.ConfirmDuplicate,
		IsQuotation:      in.IsQuotation,
		QuotationPaise:   in.QuotationPaise,
		AssignToOperator: in.AssignToOperator,
	}
	if in.AdvocateID != nil {
		advID, _ := uuid.Parse(*in.AdvocateID)
		input.AdvocateID = &advID
	}

	cs, err := h.engine.Create(actor, input)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":          cs.ID,
		"case_number": cs.CaseNumber,
		"status":      cs.Status,
	})
}

/* ================================ Listing =============================== */

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return
}

// statusFilters mirrors the operator-facing list buckets.
var statusFilters = map[string][]models.CaseStatus{
	"pending":            {models.CasePending},
	"pending_assignment": {models.CasePendingAssignment},
	"quotation":          {models.CaseQuotation},
	"hold":               {models.CaseOnHold},
	"query":              {models.CaseOnQuery, models.CaseQuery},
	"document_pending":   {models.CaseDocumentPending, models.CaseSRODocumentPending},
	"active":             {models.CaseOnHold, models.CaseOnQuery, models.CaseQuery, models.CaseDocumentPending, models.CaseSRODocumentPending},
	"completed":          {models.CasePositive, models.CaseNegative, models.CasePSS},
}

// List godoc
// @Summary      List cases
// @Description  Admin sees all cases; an advocate sees only its assignments
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        page    query int    false "page"
// @Param        pageSize query int   false "pageSize"
// @Param        filter  query string false "status bucket"
// @Success      200  {object}  map[string]any
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	role := auth.MustRole(c)
	page, size := parsePage(c)

	q := h.db.Model(&models.Case{})
	if models.Role(role) == models.RoleAdvocate {
		empID, err := uuid.Parse(auth.EmployeeID(c))
		if err != nil {
			return fiber.ErrForbidden
		}
		q = q.Where("advocate_id = ?", empID)
	}
	if fl := c.Query("filter"); fl != "" {
		statuses, ok := statusFilters[fl]
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unknown filter")
		}
		q = q.Where("status IN ?", statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var list []models.Case
	if err := q.Preload("Bank").Preload("CaseType").Preload("Advocate").
		Order("updated_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.Case{}
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total, "items": list,
	})
}

// Detail godoc
// @Summary      Case detail
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var cs models.Case
	if err := h.db.
		Preload("Bank").Preload("CaseType").Preload("Advocate").Preload("Branch").
		Preload("Children").Preload("Documents").
		First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	role := models.Role(auth.MustRole(c))
	if role == models.RoleAdvocate {
		empID, _ := uuid.Parse(auth.EmployeeID(c))
		if cs.AdvocateID == nil || *cs.AdvocateID != empID {
			return fiber.ErrForbidden
		}
	}
	if cs.Children == nil {
		cs.Children = []models.Case{}
	}
	if cs.Documents == nil {
		cs.Documents = []models.CaseDocument{}
	}
	return c.JSON(cs)
}

// Updates godoc
// @Summary      Case audit trail
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {array}  map[string]any
// @Router       /cases/{id}/updates [get]
func (h *Handler) Updates(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var rows []models.CaseUpdate
	if err := h.db.Where("case_id = ?", id).Order("update_date DESC").Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]fiber.Map, 0, len(rows))
	for _, r := range rows {
		items = append(items, fiber.Map{
			"id":     r.ID,
			"action": r.Action,
			"remark": sanitize.Summary(sanitize.RedactPII(r.Remark), 240),
			"meta":   r.Meta,
			"date":   r.UpdateDate,
		})
	}
	return c.JSON(items)
}

/* ============================== Transitions ============================= */

type DetailsRequest struct {
	PropertyAddress string  `json:"property_address" validate:"required"`
	State           string  `json:"state" validate:"required,max=100"`
	District        string  `json:"district" validate:"required,max=100"`
	Tehsil          string  `json:"tehsil" validate:"required,max=100"`
	BranchID        *string `json:"branch_id" validate:"omitempty,uuid4"`
}

// UpdateDetails godoc
// @Summary      Fill in working details
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string          true "case id (uuid)"
// @Param        payload  body DetailsRequest  true "Location details"
// @Success      200  {object}  models.Case
// @Router       /cases/{id}/details [put]
func (h *Handler) UpdateDetails(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in DetailsRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}

	input := DetailsInput{
		PropertyAddress: in.PropertyAddress,
		State:           in.State,
		District:        in.District,
		Tehsil:          in.Tehsil,
	}
	if in.BranchID != nil {
		brID, _ := uuid.Parse(*in.BranchID)
		input.BranchID = &brID
	}
	cs, err := h.engine.UpdateDetails(actor, id, input)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(cs)
}

type AssignRequest struct {
	AdvocateID string `json:"advocate_id" validate:"required,uuid4"`
}

// Assign godoc
// @Summary      Assign advocate
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string         true "case id (uuid)"
// @Param        payload  body AssignRequest  true "Advocate"
// @Success      200  {object}  models.Case
// @Router       /cases/{id}/assign [post]
func (h *Handler) Assign(c *fiber.Ctx) error {
	return h.assignLike(c, h.engine.Assign)
}

// Reassign godoc
// @Summary      Reassign advocate (any status)
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string         true "case id (uuid)"
// @Param        payload  body AssignRequest  true "Advocate"
// @Success      200  {object}  models.Case
// @Router       /cases/{id}/reassign [post]
func (h *Handler) Reassign(c *fiber.Ctx) error {
	return h.assignLike(c, h.engine.Reassign)
}

func (h *Handler) assignLike(c *fiber.Ctx, op func(Actor, uuid.UUID, uuid.UUID) (*models.Case, error)) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in AssignRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	advID, _ := uuid.Parse(in.AdvocateID)
	cs, err := op(actor, id, advID)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(cs)
}

type QuotationFinalizeRequest struct {
	FinalPaise int64 `json:"final_paise" validate:"required,gte=1"`
	Confirm    bool  `json:"confirm"`
}

// FinalizeQuotation godoc
// @Summary      Finalize quotation
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string                    true "case id (uuid)"
// @Param        payload  body QuotationFinalizeRequest  true "Final price"
// @Success      200  {object}  models.Case
// @Router       /cases/{id}/quotation/finalize [post]
func (h *Handler) FinalizeQuotation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in QuotationFinalizeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	cs, err := h.engine.FinalizeQuotation(actor, id, in.FinalPaise, in.Confirm)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(cs)
}

type HoldRequest struct {
	Remark string `json:"remark" validate:"max=2000"`
}

// Hold godoc
// @Summary      Put case on hold
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string       true "case id (uuid)"
// @Param        payload  body HoldRequest  false "Remark"
// @Success      200  {object}  models.Case
// @Failure      409  {object}  models.ErrorResponse
// @Router       /cases/{id}/hold [post]
func (h *Handler) Hold(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in HoldRequest
	_ = c.BodyParser(&in)
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	cs, err := h.engine.Hold(actor, id, in.Remark)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(cs)
}

type ActionRequest struct {
	Action       string `json:"action" validate:"required,oneof=draft query positive negative positive_subject_tosearch"`
	Remark       string `json:"remark" validate:"max=2000"`
	ForwardToSRO bool   `json:"forward_to_sro"`
}

// Action godoc
// @Summary      Advocate determination
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string         true "case id (uuid)"
// @Param        payload  body ActionRequest  true "Action"
// @Success      200  {object}  models.Case
// @Failure      409  {object}  models.ErrorResponse
// @Failure      422  {object}  models.ErrorResponse  "details incomplete"
// @Router       /cases/{id}/action [post]
func (h *Handler) Action(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in ActionRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	cs, err := h.engine.AdvocateAction(actor, id, Action(in.Action), in.Remark, in.ForwardToSRO)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(cs)
}

/* =============================== Hierarchy ============================== */

type ChildRequest struct {
	PropertyAddress string  `json:"property_address" validate:"required"`
	State           string  `json:"state" validate:"required,max=100"`
	District        string  `json:"district" validate:"required,max=100"`
	Tehsil          string  `json:"tehsil" validate:"required,max=100"`
	BranchID        *string `json:"branch_id" validate:"omitempty,uuid4"`
}

type AddChildrenRequest struct {
	Children []ChildRequest `json:"children" validate:"required,min=1,dive"`
}

// AddChildren godoc
// @Summary      Register additional property cases
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string              true "parent case id (uuid)"
// @Param        payload  body AddChildrenRequest  true "Children"
// @Success      201  {array}  models.Case
// @Router       /cases/{id}/children [post]
func (h *Handler) AddChildren(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var in AddChildrenRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}

	inputs := make([]ChildInput, 0, len(in.Children))
	for _, ch := range in.Children {
		ci := ChildInput{
			PropertyAddress: ch.PropertyAddress,
			State:           ch.State,
			District:        ch.District,
			Tehsil:          ch.Tehsil,
		}
		if ch.BranchID != nil {
			brID, _ := uuid.Parse(*ch.BranchID)
			ci.BranchID = &brID
		}
		inputs = append(inputs, ci)
	}
	created, err := h.engine.AddChildren(actor, id, inputs)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

/* =============================== Documents ============================== */

// UploadFinal godoc
// @Summary      Upload the advocate's final document
// @Description  Replaces any earlier final document on this specific case
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path     string true "case id (uuid)"
// @Param        file  formData file   true "PDF/image/DOC, max 5MB"
// @Success      201  {object}  models.CaseDocument
// @Router       /cases/{id}/documents/final [post]
func (h *Handler) UploadFinal(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	f, closef, err := fileToDocument(fh)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer closef()

	doc, err := h.engine.UploadFinalDocument(actor, id, f)
	if err != nil {
		if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
			return respondEngineErr(c, err)
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GroupUpload godoc
// @Summary      Batch final-document upload for a case group
// @Description  One file per case id; failures are per-case
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id  path string true "root case id (uuid)"
// @Success      200  {array}  GroupUploadResult
// @Router       /cases/{id}/documents/group [post]
func (h *Handler) GroupUpload(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required")
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}

	files := make(map[uuid.UUID]DocumentFile)
	var closers []func()
	defer func() {
		for _, cf := range closers {
			cf()
		}
	}()
	for field, fhs := range form.File {
		caseID, perr := uuid.Parse(field)
		if perr != nil || len(fhs) == 0 {
			continue
		}
		f, closef, ferr := fileToDocument(fhs[0])
		if ferr != nil {
			continue
		}
		closers = append(closers, closef)
		files[caseID] = f
	}

	results, err := h.engine.GroupUploadFinal(actor, id, files)
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(fiber.Map{"results": results})
}

// ActiveDocumentByTag godoc
// @Summary      Current document in a slot
// @Description  The one active receipt or final document of a case
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Param        tag  path string true "receipt | final"
// @Success      200  {object}  models.CaseDocument
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/documents/{tag} [get]
func (h *Handler) ActiveDocumentByTag(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	tag := models.DocTag(c.Params("tag"))
	if tag != models.DocReceipt && tag != models.DocFinal {
		return fiber.NewError(fiber.StatusBadRequest, "unknown document tag")
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if models.Role(auth.MustRole(c)) == models.RoleAdvocate {
		empID, _ := uuid.Parse(auth.EmployeeID(c))
		if cs.AdvocateID == nil || *cs.AdvocateID != empID {
			return fiber.ErrForbidden
		}
	}

	doc, err := h.engine.ActiveDocument(id, tag)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if doc == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(doc)
}

// SignedDocumentURL godoc
// @Summary      Short-lived signed URL for a case document
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        docID  path string true "document id (uuid)"
// @Success      200  {object}  map[string]any  "url, expires_in"
// @Router       /documents/{docID}/signed-url [get]
func (h *Handler) SignedDocumentURL(c *fiber.Ctx) error {
	docID, err := parseID(c, "docID")
	if err != nil {
		return err
	}
	var doc models.CaseDocument
	if err := h.db.Preload("Case").First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	role := models.Role(auth.MustRole(c))
	if role == models.RoleAdvocate {
		empID, _ := uuid.Parse(auth.EmployeeID(c))
		if doc.Case.AdvocateID == nil || *doc.Case.AdvocateID != empID {
			return fiber.ErrForbidden
		}
	}

	if h.sb == nil {
		// Test fallback: no storage wired.
		return c.JSON(fiber.Map{"url": "about:blank#" + doc.Key, "expires_in": 60, "now": time.Now().UTC()})
	}
	url, err := h.sb.SignedURL(doc.Key, 60)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": 60, "now": time.Now().UTC()})
}

/* ================================== SRO ================================= */

// SROQueue godoc
// @Summary      SRO intake queue
// @Description  Forwarded and positive-subject-to-search cases within scope
// @Tags         sro
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.Case
// @Router       /sro/queue [get]
func (h *Handler) SROQueue(c *fiber.Ctx) error {
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	list, err := h.engine.ListForSRO(actor)
	if err != nil {
		return respondEngineErr(c, err)
	}
	if list == nil {
		list = []models.Case{}
	}
	return c.JSON(list)
}

// SROReceipt godoc
// @Summary      SRO receipt intake for one case
// @Tags         sro
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id       path     string true "case id (uuid)"
// @Param        file     formData file   true "receipt document"
// @Param        remark   formData string false "remark"
// @Success      200  {object}  models.Case
// @Router       /sro/cases/{id}/receipt [post]
func (h *Handler) SROReceipt(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	f, closef, err := fileToDocument(fh)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer closef()

	cs, err := h.engine.SROReceipt(actor, id, f, c.FormValue("remark"))
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(cs)
}

// FinalizeWithDocument godoc
// @Summary      Advocate finalization from the SRO loop
// @Tags         cases
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id      path     string true "case id (uuid)"
// @Param        file    formData file   true "final document"
// @Param        action  formData string true "positive | negative"
// @Success      200  {object}  models.Case
// @Router       /cases/{id}/finalize [post]
func (h *Handler) FinalizeWithDocument(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	f, closef, err := fileToDocument(fh)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	defer closef()

	cs, err := h.engine.FinalizeWithDocument(actor, id, Action(c.FormValue("action")), f, c.FormValue("remark"))
	if err != nil {
		return respondEngineErr(c, err)
	}
	return c.JSON(cs)
}

/* ================================ Delete ================================ */

// Delete godoc
// @Summary      Delete case (cascades to children and documents)
// @Tags         cases
// @Security     BearerAuth
// @Param        id  path string true "case id (uuid)"
// @Success      204
// @Router       /cases/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	actor, err := h.actorFromCtx(c)
	if err != nil {
		return err
	}
	if err := h.engine.Delete(actor, id); err != nil {
		return respondEngineErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
