package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/models"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
)

// amounts-rebuild recomputes the persisted totals row for every document.
// Recomputation is idempotent, so running this against a healthy database is
// a no-op apart from refreshed tax snapshots.
func main() {
	businessID := flag.String("business-id", "", "Optional: rebuild only one business. If empty, rebuilds all businesses.")
	documentID := flag.Int("document-id", 0, "Optional: rebuild a single document (requires -business-id)")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry(ctx)

	models.MigrateTable()

	if *documentID != 0 {
		bid := strings.TrimSpace(*businessID)
		if bid == "" {
			fmt.Fprintln(os.Stderr, "-document-id requires -business-id")
			os.Exit(1)
		}
		bctx := utils.SetBusinessIdInContext(ctx, bid)
		if _, err := models.CalculateDocumentAmounts(bctx, *documentID); err != nil {
			fmt.Fprintf(os.Stderr, "business %s document %d: %v\n", bid, *documentID, err)
			os.Exit(1)
		}
		fmt.Printf("business %s document %d: rebuilt\n", bid, *documentID)
		return
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
		fmt.Fprintln(os.Stderr, "no documents found to rebuild")
		return
	}

	for _, bid := range businessIds {
		bctx := utils.SetBusinessIdInContext(ctx, bid)

		var documentIds []int
		err := db.WithContext(bctx).Model(&models.Document{}).
			Where("business_id = ?", bid).
			Order("id ASC").
			Pluck("id", &documentIds).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "business %s: failed to list documents: %v\n", bid, err)
			continue
		}

		rebuilt, failed := 0, 0
		for _, id := range documentIds {
			if _, err := models.CalculateDocumentAmounts(bctx, id); err != nil {
				// Dangling tax references abort a single document, not the run.
				if errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, utils.ErrorInvariantViolation) {
					fmt.Fprintf(os.Stderr, "business %s document %d: %v\n", bid, id, err)
					failed++
					continue
				}
				fmt.Fprintf(os.Stderr, "business %s document %d: %v\n", bid, id, err)
				os.Exit(1)
			}
			rebuilt++
		}
		fmt.Printf("business %s: rebuilt %d documents, %d failed\n", bid, rebuilt, failed)
	}
}
