package models

import (
	"errors"
	"strconv"

	"github.com/mmdatafocus/recount_backend/utils"
	"gorm.io/gorm"
)

// ResolveDocumentID maps a caller-supplied key to the canonical internal
// document id. Lookup order, first match wins:
//  1. internal id (numeric keys only)
//  2. external id (unique; a uniqueness anomaly in the store reads as not found)
//  3. ERP document number, most recently created document when several share it
//
// Every document operation resolves through here, so callers may address
// documents by any of the three keys interchangeably.
func ResolveDocumentID(tx *gorm.DB, key string) (int, error) {
	if key == "" {
		return 0, utils.BadRequest("document key is required")
	}

	if id, convErr := strconv.Atoi(key); convErr == nil && id > 0 {
		var doc Document
		err := tx.Select("id").First(&doc, id).Error
		if err == nil {
			return doc.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	var doc Document
	err := tx.Select("id").Where("external_id = ?", key).First(&doc).Error
	if err == nil {
		return doc.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	err = tx.Select("id").Where("onec_number = ?", key).
		Order("created_at DESC, id DESC").
		First(&doc).Error
	if err == nil {
		return doc.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	return 0, utils.NotFound("document %s not found", key)
}
