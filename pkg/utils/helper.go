package utils

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nexval/legal-dd-backend/pkg/models"
)

// LogCaseUpdate appends an audit record to case_updates. Used to track every
// meaningful transition and document event on a case. Errors are ignored on
// purpose (best-effort logging); the audit row rides the caller's
// transaction when db is a tx handle.
func LogCaseUpdate(
	db *gorm.DB,
	caseID, actorID uuid.UUID,
	action, remark string,
	meta map[string]any,
) {
	var m datatypes.JSON
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			m = datatypes.JSON(b)
		}
	}
	_ = db.Create(&models.CaseUpdate{
		CaseID:     caseID,
		ActorID:    actorID,
		Action:     action,
		Remark:     remark,
		Meta:       m,
		UpdateDate: time.Now(),
	}).Error
}

// StatusMeta builds the standard old/new status metadata blob.
func StatusMeta(oldS, newS models.CaseStatus) map[string]any {
	return map[string]any{"old_status": string(oldS), "new_status": string(newS)}
}
