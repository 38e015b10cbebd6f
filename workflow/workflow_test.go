package workflow_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/utils"
	"github.com/mmdatafocus/recount_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func sampleImport() *workflow.ImportDocumentInput {
	return &workflow.ImportDocumentInput{
		ExternalId: "d1",
		OnecNumber: "РП-000042",
		OnecDate:   "2026-08-30T10:00:00",
		Warehouse:  workflow.ImportWarehouseInput{Code: "MAIN", Name: "Main Warehouse"},
		Items: []workflow.ImportItemInput{
			{Sku: "A", Name: "Item A", Unit: "pcs", QtyFrom1C: decimal.NewFromInt(10), Barcodes: []string{"111", "222"}},
		},
	}
}

func mustImport(t *testing.T, db *gorm.DB, input *workflow.ImportDocumentInput) *models.Document {
	t.Helper()
	doc, err := workflow.ImportDocument(context.Background(), db, nil, nil, input)
	if err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}
	return doc
}

func qty(i int64) *decimal.Decimal {
	d := decimal.NewFromInt(i)
	return &d
}

func TestImportCreatesDocument(t *testing.T) {
	db := newTestDB(t)
	doc := mustImport(t, db, sampleImport())

	if doc.Version != 1 {
		t.Fatalf("expected version 1, got %d", doc.Version)
	}
	if doc.Status != models.DocumentStatusImported {
		t.Fatalf("expected status IMPORTED, got %s", doc.Status)
	}
	if doc.Warehouse == nil || doc.Warehouse.Code != "MAIN" {
		t.Fatalf("expected hydrated warehouse MAIN, got %+v", doc.Warehouse)
	}
	if len(doc.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(doc.Items))
	}
	item := doc.Items[0]
	if item.CountedQty != nil {
		t.Fatalf("expected nil countedQty after import, got %s", item.CountedQty)
	}
	if !item.QtyFrom1C.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected qtyFrom1C 10, got %s", item.QtyFrom1C)
	}
	if len(item.Barcodes) != 2 {
		t.Fatalf("expected 2 barcodes, got %d", len(item.Barcodes))
	}
	if item.Barcodes[0].Barcode != "111" || !item.Barcodes[0].IsPrimary {
		t.Fatalf("expected first barcode 111 to be primary, got %+v", item.Barcodes[0])
	}
	if item.Barcodes[1].IsPrimary {
		t.Fatalf("expected barcode 222 to not be primary")
	}
}

func TestImportIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	first := mustImport(t, db, sampleImport())
	second := mustImport(t, db, sampleImport())

	if second.ID != first.ID {
		t.Fatalf("repeat import created a new document: %d vs %d", second.ID, first.ID)
	}
	if second.Version != 1 || second.Status != models.DocumentStatusImported {
		t.Fatalf("repeat import changed workflow state: version=%d status=%s", second.Version, second.Status)
	}
	if len(second.Items) != 1 {
		t.Fatalf("expected 1 item after repeat import, got %d", len(second.Items))
	}
	var barcodeCount int64
	if err := db.Model(&models.Barcode{}).Where("document_id = ?", first.ID).Count(&barcodeCount).Error; err != nil {
		t.Fatalf("count barcodes: %v", err)
	}
	if barcodeCount != 2 {
		t.Fatalf("repeat import duplicated barcodes: %d", barcodeCount)
	}

	var primaryCount int64
	if err := db.Model(&models.Barcode{}).Where("item_id = ? AND is_primary = ?", second.Items[0].ID, true).Count(&primaryCount).Error; err != nil {
		t.Fatalf("count primary barcodes: %v", err)
	}
	if primaryCount != 1 {
		t.Fatalf("expected exactly one primary barcode, got %d", primaryCount)
	}
}

func TestReimportPreservesRecountWork(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	_, err := workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
		Version: 1,
		Items: []workflow.ItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(12)},
		},
	})
	if err != nil {
		t.Fatalf("UpdateItems: %v", err)
	}

	reimport := sampleImport()
	reimport.Items[0].Name = "Item A (renamed)"
	reimport.Items[0].QtyFrom1C = decimal.NewFromInt(15)
	reimport.Items[0].Barcodes = []string{"333"}
	updated := mustImport(t, db, reimport)

	if updated.Version != 2 {
		t.Fatalf("re-import must not touch version: got %d", updated.Version)
	}
	item := updated.Items[0]
	if item.CountedQty == nil || !item.CountedQty.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("re-import lost countedQty: %v", item.CountedQty)
	}
	if !item.QtyFrom1C.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("re-import should refresh qtyFrom1C, got %s", item.QtyFrom1C)
	}
	if item.Name != "Item A (renamed)" {
		t.Fatalf("re-import should refresh name, got %s", item.Name)
	}
	if len(item.Barcodes) != 1 || item.Barcodes[0].Barcode != "333" || !item.Barcodes[0].IsPrimary {
		t.Fatalf("re-import should replace barcode set, got %+v", item.Barcodes)
	}
}

func TestImportRejectsDuplicateBarcodeAtomically(t *testing.T) {
	db := newTestDB(t)
	input := sampleImport()
	input.Items = append(input.Items, workflow.ImportItemInput{
		Sku: "B", Name: "Item B", Unit: "pcs", QtyFrom1C: decimal.NewFromInt(3), Barcodes: []string{"111"},
	})

	_, err := workflow.ImportDocument(context.Background(), db, nil, nil, input)
	if err == nil {
		t.Fatal("expected duplicate barcode to fail the import")
	}
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeBadRequest {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}

	var docCount int64
	if err := db.Model(&models.Document{}).Count(&docCount).Error; err != nil {
		t.Fatalf("count documents: %v", err)
	}
	if docCount != 0 {
		t.Fatalf("partial import observable: %d documents", docCount)
	}
}

func TestUpdateItemsV1(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	updated, err := workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
		Version: 1,
		Items: []workflow.ItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(12)},
		},
	})
	if err != nil {
		t.Fatalf("UpdateItems: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
	if updated.Items[0].CountedQty == nil || !updated.Items[0].CountedQty.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected countedQty 12, got %v", updated.Items[0].CountedQty)
	}

	// Same stale version again: exactly one success, one CONFLICT.
	_, err = workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
		Version: 1,
		Items: []workflow.ItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(99)},
		},
	})
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeConflict {
		t.Fatalf("expected CONFLICT on stale version, got %v", err)
	}
	if !strings.Contains(appErr.Message, "1") || !strings.Contains(appErr.Message, "2") {
		t.Fatalf("conflict message should carry both versions: %s", appErr.Message)
	}

	// Overwrite semantics: a second accepted update replaces, never adds.
	updated, err = workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
		Version: 2,
		Items: []workflow.ItemUpdateInput{
			{ItemRef: models.ItemRef{Barcode: utils.StringPtr("222")}, CountedQty: qty(7), Note: utils.StringPtr("recounted")},
		},
	})
	if err != nil {
		t.Fatalf("UpdateItems by barcode: %v", err)
	}
	if updated.Items[0].CountedQty == nil || !updated.Items[0].CountedQty.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected countedQty replaced with 7, got %v", updated.Items[0].CountedQty)
	}
	if updated.Items[0].Note != "recounted" {
		t.Fatalf("expected note applied, got %q", updated.Items[0].Note)
	}
	if updated.Version != 3 {
		t.Fatalf("expected version 3, got %d", updated.Version)
	}
}

func TestUpdateItemsV1BatchIsAtomic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	_, err := workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
		Version: 1,
		Items: []workflow.ItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(12)},
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("NOPE")}, CountedQty: qty(1)},
		},
	})
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeNotFound {
		t.Fatalf("expected NOT_FOUND for unresolved item, got %v", err)
	}

	fresh, err := models.GetDocument(db, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if fresh.Version != 1 {
		t.Fatalf("failed batch must not bump version: got %d", fresh.Version)
	}
	if fresh.Items[0].CountedQty != nil {
		t.Fatalf("failed batch must not apply partial updates: %v", fresh.Items[0].CountedQty)
	}
}

func TestUpdateItemsV1RejectsAmbiguousRef(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	for _, ref := range []models.ItemRef{
		{Sku: utils.StringPtr("A"), Barcode: utils.StringPtr("111")},
		{},
	} {
		_, err := workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
			Version: 1,
			Items:   []workflow.ItemUpdateInput{{ItemRef: ref, CountedQty: qty(1)}},
		})
		appErr, ok := utils.AsAppError(err)
		if !ok || appErr.Code != utils.ErrorCodeBadRequest {
			t.Fatalf("expected BAD_REQUEST for ref %+v, got %v", ref, err)
		}
	}
}

func TestReviseComputesDeltas(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	input := sampleImport()
	input.Items = append(input.Items,
		workflow.ImportItemInput{Sku: "B", Unit: "pcs", QtyFrom1C: decimal.NewFromInt(4), Barcodes: []string{"444"}},
		workflow.ImportItemInput{Sku: "C", Unit: "pcs", QtyFrom1C: decimal.NewFromInt(9), Barcodes: []string{"555"}},
	)
	doc := mustImport(t, db, input)

	_, err := workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
		Version: 1,
		Items: []workflow.ItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(12)},
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("B")}, CountedQty: qty(7), CorrectedQty: qty(5)},
		},
	})
	if err != nil {
		t.Fatalf("UpdateItems: %v", err)
	}

	result, err := workflow.ReviseDocument(ctx, db, doc.ExternalId)
	if err != nil {
		t.Fatalf("ReviseDocument: %v", err)
	}
	if result.Status != models.DocumentStatusRevised {
		t.Fatalf("expected REVISED, got %s", result.Status)
	}
	if result.Version != 3 {
		t.Fatalf("expected version 3 after update+revise, got %d", result.Version)
	}

	fresh, err := models.GetDocument(db, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	expected := map[string]int64{
		"A": 2,  // counted 12 - declared 10
		"B": 1,  // corrected 5 wins over counted 7, minus declared 4
		"C": -9, // untouched counts as zero, minus declared 9
	}
	for _, item := range fresh.Items {
		want := expected[item.Sku]
		if item.DeltaQty == nil || !item.DeltaQty.Equal(decimal.NewFromInt(want)) {
			t.Fatalf("item %s: expected delta %d, got %v", item.Sku, want, item.DeltaQty)
		}
	}

	// One-way gate: no re-revision.
	_, err = workflow.ReviseDocument(ctx, db, doc.ExternalId)
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeUnprocessable {
		t.Fatalf("expected UNPROCESSABLE_ENTITY on re-revise, got %v", err)
	}
}

func TestExportV1Path(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	// Not authoritative before the revision gate.
	_, err := workflow.ExportDocument(ctx, db, doc.ExternalId)
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeUnprocessable {
		t.Fatalf("expected UNPROCESSABLE_ENTITY before revise, got %v", err)
	}

	_, err = workflow.UpdateItems(ctx, db, doc.ExternalId, &workflow.UpdateItemsInput{
		Version: 1,
		Items: []workflow.ItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(12)},
		},
	})
	if err != nil {
		t.Fatalf("UpdateItems: %v", err)
	}
	if _, err := workflow.ReviseDocument(ctx, db, doc.ExternalId); err != nil {
		t.Fatalf("ReviseDocument: %v", err)
	}

	payload, err := workflow.ExportDocument(ctx, db, doc.ExternalId)
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	if payload.ExternalId != "d1" || payload.Warehouse.Code != "MAIN" {
		t.Fatalf("unexpected envelope: %+v", payload)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected 1 export item, got %d", len(payload.Items))
	}
	item := payload.Items[0]
	if item.CorrectedQty == nil || item.CorrectedQty.String() != "12" {
		t.Fatalf("expected correctedQty 12, got %v", item.CorrectedQty)
	}
	if item.DeltaQty == nil || item.DeltaQty.String() != "2" {
		t.Fatalf("expected deltaQty 2, got %v", item.DeltaQty)
	}
	if len(item.Barcodes) != 2 || item.Barcodes[0] != "111" {
		t.Fatalf("expected barcodes [111 222], got %v", item.Barcodes)
	}
}

func TestMergeAppendsChangesWithoutMutatingItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	result, err := workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
		Version:  1,
		DeviceId: "dev-1",
		Items: []workflow.MergeItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(5)},
		},
	})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}
	if !result.Success || result.AppliedChanges != 1 {
		t.Fatalf("expected 1 applied change, got %+v", result)
	}
	if result.Version != 2 {
		t.Fatalf("expected version bump to 2, got %d", result.Version)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", result.Conflicts)
	}

	fresh, err := models.GetDocument(db, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if fresh.Items[0].CountedQty != nil {
		t.Fatalf("v2 must not mutate item rows, got countedQty %v", fresh.Items[0].CountedQty)
	}
	var changeCount int64
	if err := db.Model(&models.ItemChange{}).Where("document_id = ?", doc.ID).Count(&changeCount).Error; err != nil {
		t.Fatalf("count changes: %v", err)
	}
	if changeCount != 1 {
		t.Fatalf("expected 1 change row, got %d", changeCount)
	}

	// Default policy matches v1: stale version is rejected.
	_, err = workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
		Version:  1,
		DeviceId: "dev-2",
		Items: []workflow.MergeItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(6)},
		},
	})
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeConflict {
		t.Fatalf("expected CONFLICT on stale version, got %v", err)
	}
}

func TestMergeAcceptsStaleVersionsWhenConfigured(t *testing.T) {
	t.Setenv("MERGE_ACCEPT_STALE_VERSIONS", "true")
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	result, err := workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
		Version:  99,
		DeviceId: "dev-1",
		Items: []workflow.MergeItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(5)},
		},
	})
	if err != nil {
		t.Fatalf("MergeItems with relaxed policy: %v", err)
	}
	if result.AppliedChanges != 1 {
		t.Fatalf("expected change accepted, got %+v", result)
	}
}

func TestMergeSkipsUnresolvableItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	result, err := workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
		Version:  1,
		DeviceId: "dev-1",
		Items: []workflow.MergeItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("GONE")}, CountedQty: qty(5)},
		},
	})
	if err != nil {
		t.Fatalf("stale cache reference must not fail the batch: %v", err)
	}
	if result.AppliedChanges != 0 {
		t.Fatalf("expected 0 applied changes, got %d", result.AppliedChanges)
	}
	if result.Version != 1 {
		t.Fatalf("no-op merge must not bump version, got %d", result.Version)
	}
}

func TestMergeReportsConflictsButAppends(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	_, err := workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
		Version:  1,
		DeviceId: "dev-1",
		Items: []workflow.MergeItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(5)},
		},
	})
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}

	stale := time.Now().Add(-time.Hour)
	result, err := workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
		Version:  2,
		DeviceId: "dev-2",
		Items: []workflow.MergeItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(6), LastKnownModified: &stale},
		},
	})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if result.AppliedChanges != 1 {
		t.Fatalf("conflicting change must still be appended, got %+v", result)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %+v", result.Conflicts)
	}
	conflict := result.Conflicts[0]
	if conflict.Sku != "A" || conflict.Field != "countedQty" {
		t.Fatalf("unexpected conflict target: %+v", conflict)
	}
	if conflict.YourValue != "6" || conflict.CurrentValue != "5" {
		t.Fatalf("unexpected conflict values: %+v", conflict)
	}
	if conflict.ModifiedBy != "dev-1" {
		t.Fatalf("expected conflict attributed to dev-1, got %s", conflict.ModifiedBy)
	}

	var changeCount int64
	if err := db.Model(&models.ItemChange{}).Where("document_id = ?", doc.ID).Count(&changeCount).Error; err != nil {
		t.Fatalf("count changes: %v", err)
	}
	if changeCount != 2 {
		t.Fatalf("expected both changes logged, got %d", changeCount)
	}
}

func TestExportAggregatesChangeLog(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	input := sampleImport()
	input.Items = append(input.Items, workflow.ImportItemInput{
		Sku: "B", Unit: "pcs", QtyFrom1C: decimal.NewFromInt(4), Barcodes: []string{"444"},
	})
	doc := mustImport(t, db, input)

	merge := func(version int, device string, sku string, counted *decimal.Decimal, note *string) {
		t.Helper()
		_, err := workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
			Version:  version,
			DeviceId: device,
			Items: []workflow.MergeItemUpdateInput{
				{ItemRef: models.ItemRef{Sku: utils.StringPtr(sku)}, CountedQty: counted, Note: note},
			},
		})
		if err != nil {
			t.Fatalf("merge %s/%s: %v", device, sku, err)
		}
	}

	// Two scanners count disjoint portions of A; dev-1 then corrects itself.
	merge(1, "dev-1", "A", qty(5), nil)
	merge(2, "dev-2", "A", qty(7), nil)
	merge(3, "dev-1", "A", qty(6), nil)
	// B gets only a note: no quantity information in the log.
	merge(4, "dev-1", "B", nil, utils.StringPtr("shelf empty"))

	if _, err := workflow.ReviseDocument(ctx, db, doc.ExternalId); err != nil {
		t.Fatalf("ReviseDocument: %v", err)
	}

	payload, err := workflow.ExportDocument(ctx, db, doc.ExternalId)
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}

	bySku := map[string]workflow.ExportItem{}
	for _, item := range payload.Items {
		bySku[item.Sku] = item
	}

	a := bySku["A"]
	if a.CorrectedQty == nil || a.CorrectedQty.String() != "13" {
		t.Fatalf("expected A aggregated to 6+7=13, got %v", a.CorrectedQty)
	}
	if a.DeltaQty == nil || a.DeltaQty.String() != "3" {
		t.Fatalf("expected A delta recomputed to 3, got %v", a.DeltaQty)
	}

	// Note-only log rows carry no quantities: B falls back to stored values
	// and the delta frozen at revision time.
	b := bySku["B"]
	if b.CorrectedQty != nil {
		t.Fatalf("expected B correctedQty nil, got %v", b.CorrectedQty)
	}
	if b.DeltaQty == nil || b.DeltaQty.String() != "-4" {
		t.Fatalf("expected B frozen delta -4, got %v", b.DeltaQty)
	}
}

func TestListItemsWithTimestamps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	items, err := workflow.ListItemsWithTimestamps(ctx, db, doc.ExternalId)
	if err != nil {
		t.Fatalf("ListItemsWithTimestamps: %v", err)
	}
	if len(items) != 1 || items[0].ModifiedBy != "" {
		t.Fatalf("expected unmodified item, got %+v", items)
	}

	_, err = workflow.MergeItems(ctx, db, doc.ExternalId, &workflow.MergeItemsInput{
		Version:  1,
		DeviceId: "dev-1",
		Items: []workflow.MergeItemUpdateInput{
			{ItemRef: models.ItemRef{Sku: utils.StringPtr("A")}, CountedQty: qty(5)},
		},
	})
	if err != nil {
		t.Fatalf("MergeItems: %v", err)
	}

	items, err = workflow.ListItemsWithTimestamps(ctx, db, doc.ExternalId)
	if err != nil {
		t.Fatalf("ListItemsWithTimestamps: %v", err)
	}
	if items[0].ModifiedBy != "dev-1" {
		t.Fatalf("expected lastModified attributed to dev-1, got %+v", items[0])
	}
	if items[0].LastModified.IsZero() {
		t.Fatal("expected non-zero lastModified")
	}
}

func TestAckTransitions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := mustImport(t, db, sampleImport())

	// Export must follow revision.
	err := workflow.AcknowledgeDocument(ctx, db, doc.ExternalId)
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != utils.ErrorCodeUnprocessable {
		t.Fatalf("expected UNPROCESSABLE_ENTITY for ack on IMPORTED, got %v", err)
	}

	if _, err := workflow.ReviseDocument(ctx, db, doc.ExternalId); err != nil {
		t.Fatalf("ReviseDocument: %v", err)
	}
	if err := workflow.AcknowledgeDocument(ctx, db, doc.ExternalId); err != nil {
		t.Fatalf("first ack: %v", err)
	}

	fresh, err := models.GetDocument(db, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if fresh.Status != models.DocumentStatusExported {
		t.Fatalf("expected EXPORTED, got %s", fresh.Status)
	}
	versionAfterFirstAck := fresh.Version

	// Terminal transition is idempotent; the ERP retries acks.
	if err := workflow.AcknowledgeDocument(ctx, db, doc.ExternalId); err != nil {
		t.Fatalf("second ack: %v", err)
	}
	fresh, err = models.GetDocument(db, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if fresh.Status != models.DocumentStatusExported {
		t.Fatalf("expected EXPORTED after re-ack, got %s", fresh.Status)
	}
	if fresh.Version <= versionAfterFirstAck {
		t.Fatalf("version must strictly increase on every committed mutation: %d -> %d", versionAfterFirstAck, fresh.Version)
	}
}
