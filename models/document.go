package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/recount_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Document is one recount batch exchanged with the ERP.
//
// ExternalId is the ERP-assigned idempotency key; OnecNumber is the
// human-facing document number and is not unique. Version is the optimistic
// lock token: it strictly increases by one on every committed mutation and
// is never decreased.
type Document struct {
	ID            int            `gorm:"primary_key" json:"id"`
	ExternalId    string         `gorm:"size:64;not null;uniqueIndex" json:"externalId"`
	OnecNumber    string         `gorm:"size:64;index" json:"onecNumber"`
	OnecDate      time.Time      `json:"onecDate"`
	WarehouseCode string         `gorm:"size:32;not null;index" json:"warehouseCode"`
	Status        DocumentStatus `gorm:"size:16;not null" json:"status"`
	Version       int            `gorm:"not null" json:"version"`
	Items         []Item         `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	// Warehouse hydrates GET/import responses; not a stored column.
	Warehouse *Warehouse `gorm:"-" json:"warehouse,omitempty"`
}

// GetDocumentForUpdate locks the document row for the rest of the
// transaction. Every mutating operation goes through this, so concurrent
// writers serialize here and the version check decides the outcome.
func GetDocumentForUpdate(tx *gorm.DB, id int) (*Document, error) {
	var doc Document
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&doc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("document %d not found", id)
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocument returns the fully hydrated document: warehouse, items ordered
// by sku, and each item's barcodes in import order.
func GetDocument(tx *gorm.DB, id int) (*Document, error) {
	var doc Document
	err := tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sku") }).
		Preload("Items.Barcodes", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&doc, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("document %d not found", id)
		}
		return nil, err
	}

	warehouse, err := GetWarehouseByCode(tx, doc.WarehouseCode)
	if err == nil {
		doc.Warehouse = warehouse
	} else if _, isApp := utils.AsAppError(err); !isApp {
		return nil, err
	}
	return &doc, nil
}

// ListDocumentsByWarehouse returns document summaries for a warehouse.
// Barcodes are deliberately omitted to keep list payloads small.
func ListDocumentsByWarehouse(tx *gorm.DB, warehouseCode string) ([]*Document, error) {
	if _, err := GetWarehouseByCode(tx, warehouseCode); err != nil {
		return nil, err
	}

	var docs []*Document
	err := tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sku") }).
		Where("warehouse_code = ?", warehouseCode).
		Order("created_at DESC, id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// BumpVersion increments the optimistic lock token by exactly one.
// Callers must hold the row lock from GetDocumentForUpdate.
func (d *Document) BumpVersion(tx *gorm.DB) error {
	d.Version++
	return tx.Model(d).Update("version", d.Version).Error
}
