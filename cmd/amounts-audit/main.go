package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/models"
	"bitbucket.org/mmdatafocus/invoicing_backend/models/reports"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
)

// amounts-audit re-derives every document's totals and reports documents
// whose persisted row disagrees. Read-only; run amounts-rebuild to repair.
func main() {
	businessID := flag.String("business-id", "", "Optional: audit only one business. If empty, audits all businesses.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	var businessIds []string
	bizQuery := db.WithContext(ctx).Model(&models.Document{}).Distinct("business_id")
	if strings.TrimSpace(*businessID) != "" {
		bizQuery = bizQuery.Where("business_id = ?", strings.TrimSpace(*businessID))
	}
	if err := bizQuery.Pluck("business_id", &businessIds).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list businesses: %v\n", err)
		os.Exit(1)
	}
	if len(businessIds) == 0 {
		fmt.Fprintln(os.Stderr, "no documents found to audit")
		return
	}

	dirty := false
	for _, bid := range businessIds {
		bctx := utils.SetBusinessIdInContext(ctx, bid)
		mismatched, err := reports.VerifyDocumentAmounts(bctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "business %s: audit failed: %v\n", bid, err)
			os.Exit(1)
		}
		if len(mismatched) == 0 {
			fmt.Printf("business %s: ok\n", bid)
			continue
		}
		dirty = true
		for _, id := range mismatched {
			fmt.Printf("business %s document %d: persisted amounts out of date\n", bid, id)
		}
	}
	if dirty {
		os.Exit(2)
	}
}
