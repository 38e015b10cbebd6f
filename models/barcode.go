package models

import (
	"time"

	"github.com/mmdatafocus/recount_backend/utils"
	"gorm.io/gorm"
)

// Barcode belongs to one item and is unique per (document_id, barcode).
// Exactly one barcode per item is primary: the first one in the submitted
// import order.
type Barcode struct {
	ID         int       `gorm:"primary_key" json:"id"`
	DocumentId int       `gorm:"not null;uniqueIndex:uniq_doc_barcode" json:"document_id"`
	ItemId     int       `gorm:"not null;index" json:"item_id"`
	Barcode    string    `gorm:"size:64;not null;uniqueIndex:uniq_doc_barcode" json:"barcode"`
	IsPrimary  bool      `gorm:"not null" json:"isPrimary"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ReplaceItemBarcodes swaps the item's whole barcode set for the submitted
// list, re-deriving primary from the new order. A duplicate barcode within
// the document is a payload problem, not a store problem.
func ReplaceItemBarcodes(tx *gorm.DB, documentId int, itemId int, barcodes []string) error {
	if err := tx.Where("item_id = ?", itemId).Delete(&Barcode{}).Error; err != nil {
		return err
	}
	for i, code := range barcodes {
		if code == "" {
			return utils.BadRequest("empty barcode for item %d", itemId)
		}
		row := Barcode{
			DocumentId: documentId,
			ItemId:     itemId,
			Barcode:    code,
			IsPrimary:  i == 0,
		}
		if err := tx.Create(&row).Error; err != nil {
			if utils.IsDuplicateKeyErr(err) {
				return utils.BadRequest("duplicate barcode %s in document %d", code, documentId)
			}
			return err
		}
	}
	return nil
}
