package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/recount_backend/config"
	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MergeItemUpdateInput struct {
	models.ItemRef
	CountedQty        *decimal.Decimal `json:"countedQty"`
	CorrectedQty      *decimal.Decimal `json:"correctedQty"`
	Note              *string          `json:"note"`
	LastKnownModified *time.Time       `json:"lastKnownModified"`
}

type MergeItemsInput struct {
	Version  int                    `json:"version" binding:"required"`
	DeviceId string                 `json:"deviceId"`
	Items    []MergeItemUpdateInput `json:"items"`
}

// FieldConflict tells the device that somebody else edited the field since
// the device last saw it. Informational only: the change was logged anyway.
type FieldConflict struct {
	Sku          string    `json:"sku"`
	Field        string    `json:"field"`
	YourValue    string    `json:"yourValue"`
	CurrentValue string    `json:"currentValue"`
	LastModified time.Time `json:"lastModified"`
	ModifiedBy   string    `json:"modifiedBy"`
}

type MergeItemsResult struct {
	Success        bool            `json:"success"`
	Version        int             `json:"version"`
	AppliedChanges int             `json:"appliedChanges"`
	Conflicts      []FieldConflict `json:"conflicts"`
}

type ItemWithTimestamp struct {
	models.Item
	LastModified time.Time `json:"lastModified"`
	ModifiedBy   string    `json:"modifiedBy,omitempty"`
}

// itemState is the item's current value set as a device would observe it:
// the newest change-log row when one exists, the item row otherwise.
type itemState struct {
	countedQty   *decimal.Decimal
	correctedQty *decimal.Decimal
	note         string
	lastModified time.Time
	modifiedBy   string
}

func currentItemState(tx *gorm.DB, item *models.Item) (*itemState, error) {
	latest, err := models.LatestItemChange(tx, item.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &itemState{
			countedQty:   item.CountedQty,
			correctedQty: item.CorrectedQty,
			note:         item.Note,
			lastModified: item.UpdatedAt,
		}, nil
	}
	return &itemState{
		countedQty:   latest.CountedQty,
		correctedQty: latest.CorrectedQty,
		note:         utils.DereferencePtr(latest.Note, item.Note),
		lastModified: latest.CreatedAt,
		modifiedBy:   latest.DeviceId,
	}, nil
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// MergeItems is the v2 multi-device update path. Unlike v1 it never mutates
// item rows: every accepted field change becomes a new ItemChange row tagged
// with the device id, so no device's input is ever lost to a race.
// Reconciliation is deferred to export-time replay.
//
// The version check matches v1 by default; MERGE_ACCEPT_STALE_VERSIONS
// relaxes it to accept-and-log. Unresolvable item references are skipped,
// tolerating stale scanner caches that still hold removed items.
func MergeItems(ctx context.Context, db *gorm.DB, key string, input *MergeItemsInput) (*MergeItemsResult, error) {
	result := &MergeItemsResult{Conflicts: []FieldConflict{}}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := models.ResolveDocumentID(tx, key)
		if err != nil {
			return err
		}
		doc, err := models.GetDocumentForUpdate(tx, id)
		if err != nil {
			return err
		}
		if doc.Version != input.Version && !config.MergeAcceptsStaleVersions() {
			return utils.Conflict("version conflict: submitted %d, current %d", input.Version, doc.Version)
		}

		for i := range input.Items {
			update := &input.Items[i]
			if err := update.ItemRef.Validate(); err != nil {
				return err
			}
			item, err := update.ItemRef.Resolve(tx, doc.ID)
			if err != nil {
				if appErr, ok := utils.AsAppError(err); ok && appErr.Code == utils.ErrorCodeNotFound {
					continue
				}
				return err
			}

			hasChange := update.CountedQty != nil || update.CorrectedQty != nil || update.Note != nil
			if !hasChange {
				continue
			}

			state, err := currentItemState(tx, item)
			if err != nil {
				return err
			}
			if update.LastKnownModified != nil && state.lastModified.After(*update.LastKnownModified) {
				result.Conflicts = append(result.Conflicts, conflictsFor(item.Sku, update, state)...)
			}

			change := models.ItemChange{
				DocumentId:   doc.ID,
				ItemId:       item.ID,
				DeviceId:     input.DeviceId,
				CountedQty:   update.CountedQty,
				CorrectedQty: update.CorrectedQty,
				Note:         update.Note,
			}
			if err := tx.Create(&change).Error; err != nil {
				return err
			}
			result.AppliedChanges++
		}

		if result.AppliedChanges > 0 {
			if err := doc.BumpVersion(tx); err != nil {
				return err
			}
		}
		result.Version = doc.Version
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Success = true
	return result, nil
}

func conflictsFor(sku string, update *MergeItemUpdateInput, state *itemState) []FieldConflict {
	var conflicts []FieldConflict
	add := func(field, yourValue, currentValue string) {
		conflicts = append(conflicts, FieldConflict{
			Sku:          sku,
			Field:        field,
			YourValue:    yourValue,
			CurrentValue: currentValue,
			LastModified: state.lastModified,
			ModifiedBy:   state.modifiedBy,
		})
	}
	if update.CountedQty != nil {
		add("countedQty", decimalString(update.CountedQty), decimalString(state.countedQty))
	}
	if update.CorrectedQty != nil {
		add("correctedQty", decimalString(update.CorrectedQty), decimalString(state.correctedQty))
	}
	if update.Note != nil {
		add("note", *update.Note, state.note)
	}
	return conflicts
}

// ListItemsWithTimestamps annotates each item with the timestamp a v2
// device should echo back as lastKnownModified on its next update.
func ListItemsWithTimestamps(ctx context.Context, db *gorm.DB, key string) ([]*ItemWithTimestamp, error) {
	var items []*ItemWithTimestamp
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := models.ResolveDocumentID(tx, key)
		if err != nil {
			return err
		}
		doc, err := models.GetDocument(tx, id)
		if err != nil {
			return err
		}
		for i := range doc.Items {
			item := doc.Items[i]
			state, err := currentItemState(tx, &item)
			if err != nil {
				return err
			}
			items = append(items, &ItemWithTimestamp{
				Item:         item,
				LastModified: state.lastModified,
				ModifiedBy:   state.modifiedBy,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
