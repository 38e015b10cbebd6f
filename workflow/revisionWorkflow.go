package workflow

import (
	"context"

	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReviseResult struct {
	Id      int                   `json:"id"`
	Status  models.DocumentStatus `json:"status"`
	Version int                   `json:"version"`
}

// ReviseDocument freezes the authoritative delta per item and moves the
// document IMPORTED -> REVISED. The gate is one-way: a revised document is
// never re-revised. All deltas are computed from the same transaction
// snapshot.
func ReviseDocument(ctx context.Context, db *gorm.DB, key string) (*ReviseResult, error) {
	var result ReviseResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := models.ResolveDocumentID(tx, key)
		if err != nil {
			return err
		}
		doc, err := models.GetDocumentForUpdate(tx, id)
		if err != nil {
			return err
		}
		if doc.Status != models.DocumentStatusImported {
			return utils.Unprocessable("cannot revise document in status %s", doc.Status)
		}

		var items []*models.Item
		if err := tx.Where("document_id = ?", doc.ID).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			delta := effectiveQty(item).Sub(item.QtyFrom1C)
			if err := tx.Model(item).Update("delta_qty", delta).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(doc).Update("status", models.DocumentStatusRevised).Error; err != nil {
			return err
		}
		doc.Status = models.DocumentStatusRevised
		if err := doc.BumpVersion(tx); err != nil {
			return err
		}

		result = ReviseResult{Id: doc.ID, Status: doc.Status, Version: doc.Version}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// effectiveQty is the quantity the delta is computed against:
// supervisor correction wins over the scanner count; an untouched item
// counts as zero.
func effectiveQty(item *models.Item) decimal.Decimal {
	if item.CorrectedQty != nil {
		return *item.CorrectedQty
	}
	if item.CountedQty != nil {
		return *item.CountedQty
	}
	return decimal.Zero
}
