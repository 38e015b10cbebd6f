package workflow

import (
	"context"

	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemUpdateInput struct {
	models.ItemRef
	CountedQty   *decimal.Decimal `json:"countedQty"`
	CorrectedQty *decimal.Decimal `json:"correctedQty"`
	Note         *string          `json:"note"`
}

type UpdateItemsInput struct {
	Version int               `json:"version" binding:"required"`
	Items   []ItemUpdateInput `json:"items"`
}

// UpdateItems is the v1 whole-document optimistic update: the submitted
// version must match the stored one, field values replace the old values
// outright, and the document version advances by exactly one regardless of
// how many items were touched. The batch is atomic: one unresolvable item
// reference aborts everything.
func UpdateItems(ctx context.Context, db *gorm.DB, key string, input *UpdateItemsInput) (*models.Document, error) {
	var docId int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := models.ResolveDocumentID(tx, key)
		if err != nil {
			return err
		}
		docId = id

		doc, err := models.GetDocumentForUpdate(tx, id)
		if err != nil {
			return err
		}
		if doc.Version != input.Version {
			return utils.Conflict("version conflict: submitted %d, current %d", input.Version, doc.Version)
		}

		for i := range input.Items {
			update := &input.Items[i]
			item, err := update.ItemRef.Resolve(tx, doc.ID)
			if err != nil {
				return err
			}

			fields := map[string]interface{}{}
			if update.CountedQty != nil {
				fields["counted_qty"] = *update.CountedQty
			}
			if update.CorrectedQty != nil {
				fields["corrected_qty"] = *update.CorrectedQty
			}
			if update.Note != nil {
				fields["note"] = *update.Note
			}
			if len(fields) == 0 {
				continue
			}
			if err := tx.Model(item).Updates(fields).Error; err != nil {
				return err
			}
		}

		return doc.BumpVersion(tx)
	})
	if err != nil {
		return nil, err
	}

	return models.GetDocument(db.WithContext(ctx), docId)
}
