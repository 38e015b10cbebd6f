package workflow

import (
	"context"

	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ExportWarehouse struct {
	Code string `json:"code"`
}

type ExportItem struct {
	Sku          string           `json:"sku"`
	Unit         string           `json:"unit"`
	CorrectedQty *decimal.Decimal `json:"correctedQty"`
	DeltaQty     *decimal.Decimal `json:"deltaQty"`
	Barcodes     []string         `json:"barcodes"`
}

type ExportPayload struct {
	ExternalId string          `json:"externalId"`
	Warehouse  ExportWarehouse `json:"warehouse"`
	Items      []ExportItem    `json:"items"`
}

// deviceTally carries the newest logged counted/corrected value per device.
// Rows are scanned in replay order, so later rows simply overwrite.
type deviceTally struct {
	countedQty   *decimal.Decimal
	correctedQty *decimal.Decimal
}

// ExportDocument builds the ERP-facing payload. Read-only.
//
// Items touched by the v2 change log are reconstructed by replay: group the
// log by device, keep the newest counted/corrected value per device, then
// sum across devices. Scanners each count a disjoint portion of the same
// SKU, so per-device latest values are additive. Items without log rows
// fall back to their stored corrected/counted values and the delta frozen
// at revision time.
//
// Export requires REVISED or EXPORTED status: quantities are not
// authoritative before the revision gate.
func ExportDocument(ctx context.Context, db *gorm.DB, key string) (*ExportPayload, error) {
	var payload *ExportPayload
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := models.ResolveDocumentID(tx, key)
		if err != nil {
			return err
		}
		doc, err := models.GetDocument(tx, id)
		if err != nil {
			return err
		}
		if doc.Status != models.DocumentStatusRevised && doc.Status != models.DocumentStatusExported {
			return utils.Unprocessable("cannot export document in status %s", doc.Status)
		}

		changes, err := models.ListItemChanges(tx, doc.ID)
		if err != nil {
			return err
		}
		tallies := make(map[int]map[string]*deviceTally) // itemId -> deviceId -> tally
		for _, change := range changes {
			perDevice, ok := tallies[change.ItemId]
			if !ok {
				perDevice = make(map[string]*deviceTally)
				tallies[change.ItemId] = perDevice
			}
			tally, ok := perDevice[change.DeviceId]
			if !ok {
				tally = &deviceTally{}
				perDevice[change.DeviceId] = tally
			}
			if change.CountedQty != nil {
				tally.countedQty = change.CountedQty
			}
			if change.CorrectedQty != nil {
				tally.correctedQty = change.CorrectedQty
			}
		}

		payload = &ExportPayload{
			ExternalId: doc.ExternalId,
			Warehouse:  ExportWarehouse{Code: doc.WarehouseCode},
			Items:      make([]ExportItem, 0, len(doc.Items)),
		}
		for i := range doc.Items {
			item := &doc.Items[i]
			exportItem := ExportItem{
				Sku:      item.Sku,
				Unit:     item.Unit,
				Barcodes: make([]string, 0, len(item.Barcodes)),
			}
			for _, barcode := range item.Barcodes {
				exportItem.Barcodes = append(exportItem.Barcodes, barcode.Barcode)
			}

			if aggregated, ok := aggregateTallies(tallies[item.ID]); ok {
				delta := aggregated.Sub(item.QtyFrom1C)
				exportItem.CorrectedQty = &aggregated
				exportItem.DeltaQty = &delta
			} else {
				if item.CorrectedQty != nil {
					exportItem.CorrectedQty = item.CorrectedQty
				} else {
					exportItem.CorrectedQty = item.CountedQty
				}
				exportItem.DeltaQty = item.DeltaQty
			}
			payload.Items = append(payload.Items, exportItem)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// aggregateTallies sums each device's corrected-else-counted value.
// Note-only logs carry no quantity information, so the item falls back to
// its stored values just like an unlogged item.
func aggregateTallies(perDevice map[string]*deviceTally) (decimal.Decimal, bool) {
	sum := decimal.Zero
	contributed := false
	for _, tally := range perDevice {
		var value *decimal.Decimal
		if tally.correctedQty != nil {
			value = tally.correctedQty
		} else if tally.countedQty != nil {
			value = tally.countedQty
		}
		if value != nil {
			sum = sum.Add(*value)
			contributed = true
		}
	}
	return sum, contributed
}
