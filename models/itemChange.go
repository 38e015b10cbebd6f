package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemChange is the append-only per-device edit log behind the v2 update
// path. Rows are never updated or deleted; they survive as an audit trail
// even after item state is overwritten. Export reconstructs authoritative
// quantities by replaying this log.
type ItemChange struct {
	ID           int              `gorm:"primary_key" json:"id"`
	DocumentId   int              `gorm:"not null;index" json:"document_id"`
	ItemId       int              `gorm:"not null;index" json:"item_id"`
	DeviceId     string           `gorm:"size:64;not null" json:"deviceId"`
	CountedQty   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"countedQty"`
	CorrectedQty *decimal.Decimal `gorm:"type:decimal(20,4)" json:"correctedQty"`
	Note         *string          `gorm:"type:text" json:"note"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"createdAt"`
}

// ListItemChanges returns the document's change log in replay order:
// wall-clock first, insertion id as the deterministic tie-break.
func ListItemChanges(tx *gorm.DB, documentId int) ([]*ItemChange, error) {
	var changes []*ItemChange
	err := tx.Where("document_id = ?", documentId).
		Order("created_at ASC, id ASC").
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// LatestItemChange returns the newest log row for an item, or nil when the
// item has no logged edits.
func LatestItemChange(tx *gorm.DB, itemId int) (*ItemChange, error) {
	var change ItemChange
	err := tx.Where("item_id = ?", itemId).
		Order("created_at DESC, id DESC").
		First(&change).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &change, nil
}
