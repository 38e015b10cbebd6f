package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is one SKU line of a document, unique per (document_id, sku).
// QtyFrom1C is the ERP-declared quantity and only the import reconciler
// touches it. CountedQty/CorrectedQty come from scanners and supervisors;
// DeltaQty is written solely by the revision engine.
type Item struct {
	ID           int              `gorm:"primary_key" json:"id"`
	DocumentId   int              `gorm:"not null;uniqueIndex:uniq_doc_sku" json:"document_id"`
	Sku          string           `gorm:"size:64;not null;uniqueIndex:uniq_doc_sku" json:"sku"`
	Name         string           `gorm:"size:255" json:"name"`
	Unit         string           `gorm:"size:32" json:"unit"`
	QtyFrom1C    decimal.Decimal  `gorm:"type:decimal(20,4);not null;column:qty_from1c" json:"qtyFrom1C"`
	CountedQty   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"countedQty"`
	CorrectedQty *decimal.Decimal `gorm:"type:decimal(20,4)" json:"correctedQty"`
	DeltaQty     *decimal.Decimal `gorm:"type:decimal(20,4)" json:"deltaQty"`
	Note         string           `gorm:"type:text" json:"note"`
	Barcodes     []Barcode        `gorm:"foreignKey:ItemId" json:"barcodes"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// ItemRef addresses an item by exactly one of sku or barcode.
// A barcode reference resolves to the barcode's owning item.
type ItemRef struct {
	Sku     *string `json:"sku"`
	Barcode *string `json:"barcode"`
}

func (r ItemRef) Validate() error {
	hasSku := r.Sku != nil && *r.Sku != ""
	hasBarcode := r.Barcode != nil && *r.Barcode != ""
	if hasSku == hasBarcode {
		return utils.BadRequest("item reference must have exactly one of sku or barcode")
	}
	return nil
}

func (r ItemRef) String() string {
	if r.Sku != nil && *r.Sku != "" {
		return "sku " + *r.Sku
	}
	if r.Barcode != nil && *r.Barcode != "" {
		return "barcode " + *r.Barcode
	}
	return "empty reference"
}

// Resolve returns the referenced item within the document.
func (r ItemRef) Resolve(tx *gorm.DB, documentId int) (*Item, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var item Item
	if r.Sku != nil && *r.Sku != "" {
		err := tx.Where("document_id = ? AND sku = ?", documentId, *r.Sku).First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("item with %s not found in document %d", r.String(), documentId)
		}
		if err != nil {
			return nil, err
		}
		return &item, nil
	}

	var barcode Barcode
	err := tx.Where("document_id = ? AND barcode = ?", documentId, *r.Barcode).First(&barcode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("item with %s not found in document %d", r.String(), documentId)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.First(&item, barcode.ItemId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("item with %s not found in document %d", r.String(), documentId)
		}
		return nil, err
	}
	return &item, nil
}

// UpsertItem creates the item or refreshes its ERP-declared fields only.
// Scanner-entered fields (counted/corrected/delta/note) survive re-imports.
func UpsertItem(tx *gorm.DB, documentId int, sku string, name string, unit string, qtyFrom1C decimal.Decimal) (*Item, error) {
	var item Item
	err := tx.Where("document_id = ? AND sku = ?", documentId, sku).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		item = Item{
			DocumentId: documentId,
			Sku:        sku,
			Name:       name,
			Unit:       unit,
			QtyFrom1C:  qtyFrom1C,
		}
		if createErr := tx.Create(&item).Error; createErr != nil {
			if !utils.IsDuplicateKeyErr(createErr) {
				return nil, createErr
			}
			if err := tx.Where("document_id = ? AND sku = ?", documentId, sku).First(&item).Error; err != nil {
				return nil, err
			}
		} else {
			return &item, nil
		}
	} else if err != nil {
		return nil, err
	}

	if err := tx.Model(&item).Updates(map[string]interface{}{
		"name":       name,
		"unit":       unit,
		"qty_from1c": qtyFrom1C,
	}).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
