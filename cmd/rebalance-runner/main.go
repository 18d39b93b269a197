package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"bitbucket.org/mmdatafocus/fulfillment_backend/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// One-off maintenance tool: finds inventory items whose available-to-promise
// went negative and rebalances their reservations, synchronously, without
// going through the request queue. Scope narrows by product and/or facility;
// --enqueue hands the items to the dispatcher instead of running them here.
func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	productID := flag.Int("product-id", 0, "Optional: restrict to one product")
	facilityID := flag.Int("facility-id", 0, "Optional: restrict to one facility")
	itemIDList := flag.String("item-ids", "", "Optional: comma-separated inventory item ids to rebalance")
	minShortfall := flag.String("min-shortfall", "", "Optional: only rebalance items short by at least this quantity")
	enqueue := flag.Bool("enqueue", false, "Queue rebalance requests for the dispatcher instead of running them now")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing items and continue")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}
	shortfall, err := utils.ParseDecimal(*minShortfall)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --min-shortfall %q: %v\n", *minShortfall, err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()
	logger := logrus.New()

	ctx := utils.SetRequestedByInContext(context.Background(), "rebalance-runner")

	itemIDs, err := parseItemIds(*itemIDList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --item-ids: %v\n", err)
		os.Exit(1)
	}
	if len(itemIDs) == 0 {
		q := db.Model(&models.InventoryItem{}).
			Where("business_id = ? AND item_kind = ?", *businessID, models.InventoryItemKindNonSerialized)
		if shortfall.IsPositive() {
			q = q.Where("available_to_promise <= ?", shortfall.Neg())
		} else {
			q = q.Where("available_to_promise < 0")
		}
		if *productID > 0 {
			q = q.Where("product_id = ?", *productID)
		}
		if *facilityID > 0 {
			q = q.Where("facility_id = ?", *facilityID)
		}
		if err := q.Order("id ASC").Pluck("id", &itemIDs).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list items: %v\n", err)
			os.Exit(1)
		}
	}

	if len(itemIDs) == 0 {
		fmt.Println("nothing to rebalance")
		return
	}

	if *enqueue {
		correlationID := uuid.NewString()
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, id := range itemIDs {
				if err := workflow.EnqueueRebalance(tx, *businessID, id, nil, correlationID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to enqueue: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("enqueued %d item(s), correlation %s\n", len(itemIDs), correlationID)
		return
	}

	fmt.Printf("rebalancing %d item(s)\n", len(itemIDs))

	failed := 0
	for _, id := range itemIDs {
		err := db.Transaction(func(tx *gorm.DB) error {
			return workflow.RebalanceInventory(ctx, tx, logger, *businessID, id, nil)
		})
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "item %d: %v\n", id, err)
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("item %d: rebalanced\n", id)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "done with %d failure(s)\n", failed)
		os.Exit(1)
	}
	fmt.Println("done")
}

func parseItemIds(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad item id %q", part)
		}
		ids = append(ids, id)
	}
	return utils.UniqueSlice(ids), nil
}
