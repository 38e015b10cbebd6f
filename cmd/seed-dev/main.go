// seed-dev imports a sample recount document so local frontends and scanner
// simulators have something to work against.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/recount_backend/config"
	"github.com/mmdatafocus/recount_backend/models"
	"github.com/mmdatafocus/recount_backend/workflow"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	db := config.ConnectDatabaseWithRetry()
	defer config.CloseDatabase(db)

	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	input := &workflow.ImportDocumentInput{
		ExternalId: "dev-seed-0001",
		OnecNumber: "РП-000001",
		OnecDate:   time.Now().UTC().Format(time.RFC3339),
		Warehouse: workflow.ImportWarehouseInput{
			Code: "MAIN",
			Name: "Main Warehouse",
		},
		Items: []workflow.ImportItemInput{
			{Sku: "SKU-0001", Name: "Mineral Water 1L", Unit: "pcs", QtyFrom1C: decimal.NewFromInt(120), Barcodes: []string{"4600000000017", "4600000000024"}},
			{Sku: "SKU-0002", Name: "Instant Coffee 100g", Unit: "pcs", QtyFrom1C: decimal.NewFromInt(48), Barcodes: []string{"4600000000109"}},
			{Sku: "SKU-0003", Name: "Rice 5kg", Unit: "bag", QtyFrom1C: decimal.NewFromInt(30), Barcodes: []string{"4600000000203"}},
		},
	}

	doc, err := workflow.ImportDocument(ctx, db, nil, config.GetLogger(), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded document id=%d externalId=%s items=%d\n", doc.ID, doc.ExternalId, len(doc.Items))
}
