package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/recount_backend/config"
	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ImportWarehouseInput struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name"`
}

type ImportItemInput struct {
	Sku       string          `json:"sku" binding:"required"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	QtyFrom1C decimal.Decimal `json:"qtyFrom1C"`
	Barcodes  []string        `json:"barcodes"`
}

type ImportDocumentInput struct {
	ExternalId string               `json:"externalId" binding:"required"`
	OnecNumber string               `json:"onecNumber"`
	OnecDate   string               `json:"onecDate"`
	Warehouse  ImportWarehouseInput `json:"warehouse" binding:"required"`
	Items      []ImportItemInput    `json:"items" binding:"dive"`
}

// onecDate arrives in whatever format the 1C integration is configured
// with; RFC3339 from the middleware, bare local datetime from older setups.
var onecDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseOnecDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range onecDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, utils.BadRequest("invalid onecDate %q", value)
}

// ImportDocument idempotently upserts a document with its items and
// barcodes from an ERP payload, all inside one transaction.
//
// Re-import refreshes ERP metadata only: it never regresses status or
// version (scanners may hold outstanding optimistic locks) and never
// touches counted/corrected/delta quantities.
//
// The redislock is a best-effort serialization of concurrent imports of the
// same externalId; correctness comes from the store's unique constraints.
func ImportDocument(ctx context.Context, db *gorm.DB, locker *redislock.Client, logger *logrus.Logger, input *ImportDocumentInput) (*models.Document, error) {
	start := time.Now()

	if input.ExternalId == "" {
		return nil, utils.BadRequest("externalId is required")
	}
	if input.Warehouse.Code == "" {
		return nil, utils.BadRequest("warehouse.code is required")
	}
	onecDate, err := parseOnecDate(input.OnecDate)
	if err != nil {
		return nil, err
	}

	if locker != nil {
		lock, lockErr := locker.Obtain(ctx, "import:"+input.ExternalId, config.ImportTimeout(), nil)
		if lockErr == nil {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	var docId int
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := models.UpsertWarehouse(tx, input.Warehouse.Code, input.Warehouse.Name); err != nil {
			return err
		}

		doc, err := upsertDocument(tx, input, onecDate)
		if err != nil {
			return err
		}
		docId = doc.ID

		for i := range input.Items {
			itemInput := &input.Items[i]
			if itemInput.Sku == "" {
				return utils.BadRequest("items[%d].sku is required", i)
			}
			item, err := models.UpsertItem(tx, doc.ID, itemInput.Sku, itemInput.Name, itemInput.Unit, itemInput.QtyFrom1C)
			if err != nil {
				return err
			}
			if err := models.ReplaceItemBarcodes(tx, doc.ID, item.ID, itemInput.Barcodes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if elapsed := time.Since(start); logger != nil && elapsed >= config.ImportAlertThreshold() {
		logger.WithFields(logrus.Fields{
			"module":     "workflow",
			"funcName":   "ImportDocument",
			"externalId": input.ExternalId,
			"items":      len(input.Items),
			"elapsedMs":  elapsed.Milliseconds(),
		}).Warn("document import exceeded alert threshold")
	}

	return models.GetDocument(db.WithContext(ctx), docId)
}

// upsertDocument creates the document on first import, or refreshes ERP
// metadata on repeat imports with the same externalId.
func upsertDocument(tx *gorm.DB, input *ImportDocumentInput, onecDate time.Time) (*models.Document, error) {
	var doc models.Document
	err := tx.Where("external_id = ?", input.ExternalId).First(&doc).Error
	if err == nil {
		if err := tx.Model(&doc).Updates(map[string]interface{}{
			"onec_number":    input.OnecNumber,
			"onec_date":      onecDate,
			"warehouse_code": input.Warehouse.Code,
		}).Error; err != nil {
			return nil, err
		}
		return &doc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	doc = models.Document{
		ExternalId:    input.ExternalId,
		OnecNumber:    input.OnecNumber,
		OnecDate:      onecDate,
		WarehouseCode: input.Warehouse.Code,
		Status:        models.DocumentStatusImported,
		Version:       1,
	}
	if createErr := tx.Create(&doc).Error; createErr != nil {
		if !utils.IsDuplicateKeyErr(createErr) {
			return nil, createErr
		}
		// Lost a create race; the winner's row is the one we wanted.
		if err := tx.Where("external_id = ?", input.ExternalId).First(&doc).Error; err != nil {
			return nil, err
		}
	}
	return &doc, nil
}
