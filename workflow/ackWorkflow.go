package workflow

import (
	"context"

	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"gorm.io/gorm"
)

// AcknowledgeDocument records the ERP's confirmation: REVISED or EXPORTED
// moves to EXPORTED. The transition is idempotent and terminal; re-acking
// an exported document succeeds again (the ERP retries acknowledgements).
// Acking an unrevised document is illegal: export must follow revision.
func AcknowledgeDocument(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := models.ResolveDocumentID(tx, key)
		if err != nil {
			return err
		}
		doc, err := models.GetDocumentForUpdate(tx, id)
		if err != nil {
			return err
		}
		if doc.Status != models.DocumentStatusRevised && doc.Status != models.DocumentStatusExported {
			return utils.Unprocessable("cannot acknowledge document in status %s", doc.Status)
		}

		if err := tx.Model(doc).Update("status", models.DocumentStatusExported).Error; err != nil {
			return err
		}
		doc.Status = models.DocumentStatusExported
		return doc.BumpVersion(tx)
	})
}
