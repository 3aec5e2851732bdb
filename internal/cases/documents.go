package cases

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
	"github.com/nexval/legal-dd-backend/pkg/utils"
)

// Document policy: a case holds at most one active document per tag
// (receipt, final). Uploading another of the same tag replaces the earlier
// one; failure to clean up the old blob never blocks the new document.

const maxDocumentSize = 5 * 1024 * 1024 // 5 MB

var allowedMimes = map[string]bool{
	"application/pdf":    true,
	"image/png":          true,
	"image/jpeg":         true,
	"image/gif":          true,
	"image/webp":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// DocumentFile is an incoming upload, decoupled from the transport's
// multipart types so the engine can be driven from tests.
type DocumentFile struct {
	Name   string
	Mime   string
	Size   int64
	Reader io.Reader
}

// validateDocument enforces the per-file rules: non-empty, at most 5 MB,
// allow-listed content type (PDF, common images, DOC/DOCX).
func validateDocument(f DocumentFile) error {
	if f.Size <= 0 {
		return errors.New("empty file")
	}
	if f.Size > maxDocumentSize {
		return errors.New("file exceeds 5MB limit")
	}
	ct := f.Mime
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(f.Name))
	}
	if !allowedMimes[ct] {
		return fmt.Errorf("content type %q not allowed", ct)
	}
	return nil
}

func logCleanupFailure(err error) {
	log.Println("blob cleanup failed (ignored):", err)
}

// replaceDocument stores the new blob, removes every active document of the
// same tag (rows now, blobs best-effort) and inserts the new row. Runs
// inside the caller's transaction so a crash cannot leave the case pointing
// at a document it does not have.
func (e *Engine) replaceDocument(tx *gorm.DB, cs *models.Case, tag models.DocTag, f DocumentFile, actorID uuid.UUID) (*models.CaseDocument, error) {
	if err := validateDocument(f); err != nil {
		return nil, err
	}

	ct := f.Mime
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(f.Name))
	}
	key := f.Name
	if e.blob != nil {
		key = e.blob.MakeObjectKey(cs.ID.String(), string(tag), f.Name)
		if err := e.blob.Upload(key, f.Reader, ct, f.Size); err != nil {
			return nil, err
		}
	}

	var prior []models.CaseDocument
	if err := tx.Where("case_id = ? AND tag = ?", cs.ID, tag).Find(&prior).Error; err != nil {
		return nil, err
	}
	if len(prior) > 0 {
		if err := tx.Where("case_id = ? AND tag = ?", cs.ID, tag).Delete(&models.CaseDocument{}).Error; err != nil {
			return nil, err
		}
	}

	doc := models.CaseDocument{
		CaseID:       cs.ID,
		Tag:          tag,
		Key:          key,
		Mime:         ct,
		Size:         f.Size,
		OriginalName: f.Name,
		UploadedBy:   actorID,
	}
	if err := tx.Create(&doc).Error; err != nil {
		return nil, err
	}

	action := "document_uploaded"
	if len(prior) > 0 {
		action = "document_replaced"
	}
	utils.LogCaseUpdate(tx, cs.ID, actorID, action, f.Name, map[string]any{"tag": string(tag)})

	// Old blobs go last and failures are swallowed: the new document is
	// never blocked by cleanup.
	if e.blob != nil {
		for _, p := range prior {
			if err := e.blob.Delete(p.Key); err != nil {
				logCleanupFailure(err)
			}
		}
	}
	return &doc, nil
}

// UploadFinalDocument captures the advocate's final document on one specific
// case. Document upload is deliberately per-case: it never redirects to the
// parent.
func (e *Engine) UploadFinalDocument(actor Actor, caseID uuid.UUID, f DocumentFile) (*models.CaseDocument, error) {
	if !actor.CanFinalize() {
		return nil, ErrForbidden
	}
	var doc *models.CaseDocument
	err := e.db.Transaction(func(tx *gorm.DB) error {
		cs, err := e.loadCase(tx, caseID)
		if err != nil {
			return err
		}
		if !canWork(actor, cs) {
			return ErrForbidden
		}
		doc, err = e.replaceDocument(tx, cs, models.DocFinal, f, actor.EmployeeID())
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GroupUploadResult reports one case's outcome inside a batch upload.
type GroupUploadResult struct {
	CaseID     uuid.UUID `json:"case_id"`
	CaseNumber string    `json:"case_number"`
	Error      string    `json:"error,omitempty"`
}

// GroupUploadFinal fills the final-document slot for a parent and its
// children in one user-submitted batch. Each case is its own transaction:
// a missing or invalid file aborts only that case's row and is reported
// back without touching siblings.
func (e *Engine) GroupUploadFinal(actor Actor, rootID uuid.UUID, files map[uuid.UUID]DocumentFile) ([]GroupUploadResult, error) {
	if !actor.CanFinalize() {
		return nil, ErrForbidden
	}

	var group []models.Case
	if err := e.db.Transaction(func(tx *gorm.DB) error {
		root, err := e.resolveRoot(tx, rootID)
		if err != nil {
			return err
		}
		if !canWork(actor, root) {
			return ErrForbidden
		}
		group = append(group, *root)
		var children []models.Case
		if err := tx.Where("parent_case_id = ?", root.ID).Order("case_number").Find(&children).Error; err != nil {
			return err
		}
		group = append(group, children...)
		return nil
	}); err != nil {
		return nil, err
	}

	results := make([]GroupUploadResult, 0, len(group))
	for i := range group {
		cs := &group[i]
		res := GroupUploadResult{CaseID: cs.ID, CaseNumber: cs.CaseNumber}

		f, ok := files[cs.ID]
		if !ok {
			res.Error = "no file supplied for this case"
			results = append(results, res)
			continue
		}
		err := e.db.Transaction(func(tx *gorm.DB) error {
			_, err := e.replaceDocument(tx, cs, models.DocFinal, f, actor.EmployeeID())
			return err
		})
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// ActiveDocument returns the case's current document for a tag, if any.
func (e *Engine) ActiveDocument(caseID uuid.UUID, tag models.DocTag) (*models.CaseDocument, error) {
	var doc models.CaseDocument
	err := e.db.Where("case_id = ? AND tag = ?", caseID, tag).
		Order("created_at DESC").First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
