package workflow

import (
	"context"
	"fmt"
	"sort"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BalanceInventoryItems replays the reservations competing for an item's
// stock after a correction made availability go negative. Reservations are
// cancelled and re-taken in a deterministic order, so the order lines that
// reserved first (or were explicitly prioritized) keep their stock and the
// shortfall lands on whoever sorted last.
//
// Reservations already committed to an open pick list are left alone: that
// stock is physically being walked to.
func (e *Engine) BalanceInventoryItems(ctx context.Context, itemId int, priorityLine *OrderLine) error {
	const op = "workflow.BalanceInventoryItems"

	item, err := e.store.ItemById(itemId)
	if err != nil {
		return utils.WrapInfrastructure(op, err)
	}
	if item == nil {
		return utils.NewNotFoundError(op, "inventory item %d not found", itemId)
	}

	// The triggering item always participates, even if a prior correction
	// already pulled it back to non-negative: its backorders may still need
	// reordering.
	lots := []*models.InventoryItem{item}
	similar, err := e.store.SimilarItemsWithNegativeAvailability(item)
	if err != nil {
		return utils.WrapInfrastructure(op, err)
	}
	lotById := map[int]*models.InventoryItem{item.ID: item}
	for _, lot := range similar {
		if _, ok := lotById[lot.ID]; ok {
			continue
		}
		lotById[lot.ID] = lot
		lots = append(lots, lot)
	}

	var priorityBucket, normalBucket []*models.ItemReservation
	for _, lot := range lots {
		reservations, err := e.store.ActiveReservationsForItem(lot.ID)
		if err != nil {
			return utils.WrapInfrastructure(op, err)
		}
		for _, res := range reservations {
			onPick, err := e.store.OnOpenPickList(res)
			if err != nil {
				return utils.WrapInfrastructure(op, err)
			}
			if onPick {
				continue
			}
			if priorityLine != nil && res.SameOrderLine(priorityLine.OrderId, priorityLine.OrderItemSeqId, priorityLine.ShipGroupSeqId) {
				priorityBucket = append(priorityBucket, res)
			} else {
				normalBucket = append(normalBucket, res)
			}
		}
	}

	sortReservationsForRebalance(priorityBucket)
	sortReservationsForRebalance(normalBucket)
	ordered := append(priorityBucket, normalBucket...)
	if len(ordered) == 0 {
		return nil
	}

	// A serialized item can only ever satisfy one reservation: every
	// competing reservation is released and only the sort-winner is re-taken.
	// The losers must be re-resolved against other stock by their callers.
	replay := ordered
	if item.IsSerialized() {
		replay = ordered[:1]
	}

	for _, res := range ordered {
		if err := e.releaseReservation(ctx, res, lotById[res.InventoryItemId]); err != nil {
			return err
		}
	}

	for _, res := range replay {
		lot := lotById[res.InventoryItemId]
		req := ReserveRequest{
			OrderId:          res.OrderId,
			OrderItemSeqId:   res.OrderItemSeqId,
			ShipGroupSeqId:   res.ShipGroupSeqId,
			ProductId:        lot.ProductId,
			Quantity:         res.Quantity,
			ReservedAt:       res.ReservedAt,
			RequireInventory: false,
			Policy:           res.Policy,
			SequenceId:       res.SequenceId,
			IsPriority:       utils.DereferencePtr(res.IsPriority),
		}
		if lot.FacilityId != nil {
			// Pin the original facility: a rebalance must not silently move
			// stock between facilities.
			req.FacilityId = lot.FacilityId
			req.IgnoreAddressFacility = true
		} else {
			e.logger.WithFields(logrus.Fields{
				"inventory_item_id": lot.ID,
				"order_id":          res.OrderId,
			}).Warn("rebalancing reservation with no facility; resolving freely")
		}
		notReserved, err := e.Reserve(ctx, req)
		if err != nil {
			return err
		}
		if notReserved.IsPositive() {
			// RequireInventory is false above, so the engine accounts for
			// every unit; a nonzero residue would mean a broken invariant.
			return utils.WrapInfrastructure(op,
				fmt.Errorf("rebalance left %s unreserved for order %d", notReserved, res.OrderId))
		}
	}

	return nil
}

// releaseReservation undoes one reservation's hold on its lot and soft-cancels
// the record.
func (e *Engine) releaseReservation(ctx context.Context, res *models.ItemReservation, lot *models.InventoryItem) error {
	const op = "workflow.BalanceInventoryItems"

	if lot == nil {
		found, err := e.store.ItemById(res.InventoryItemId)
		if err != nil {
			return utils.WrapInfrastructure(op, err)
		}
		if found == nil {
			return utils.NewNotFoundError(op, "inventory item %d not found", res.InventoryItemId)
		}
		lot = found
	}

	if lot.IsSerialized() {
		if err := e.store.SetItemStatus(lot, models.InventoryStatusAvailable); err != nil {
			return utils.WrapInfrastructure(op, err)
		}
	} else if res.Quantity.IsPositive() {
		line := OrderLine{OrderId: res.OrderId, OrderItemSeqId: res.OrderItemSeqId, ShipGroupSeqId: res.ShipGroupSeqId}
		err := e.store.AppendItemDetail(lot, ItemDelta{
			AvailableToPromiseDiff: res.Quantity,
			EffectiveDate:          res.ReservedAt,
			Description:            ledgerNote(ctx, fmt.Sprintf("Released reservation for order %d", res.OrderId)),
			Line:                   &line,
		})
		if err != nil {
			return utils.WrapInfrastructure(op, err)
		}
	}

	if err := e.store.CancelReservation(res); err != nil {
		return utils.WrapInfrastructure(op, err)
	}
	return nil
}

// sortReservationsForRebalance orders by reserved timestamp ascending, ties
// broken by sequence id ascending with nil sequence ids last. The sort is
// stable, so two nil-sequence rows keep their store order.
func sortReservationsForRebalance(reservations []*models.ItemReservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if !a.ReservedAt.Equal(b.ReservedAt) {
			return a.ReservedAt.Before(b.ReservedAt)
		}
		switch {
		case a.SequenceId == nil && b.SequenceId == nil:
			return false
		case a.SequenceId == nil:
			return false
		case b.SequenceId == nil:
			return true
		default:
			return *a.SequenceId < *b.SequenceId
		}
	})
}

// RebalanceInventory is the transactional entry point for one rebalance run.
func RebalanceInventory(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, businessId string, itemId int, priorityLine *OrderLine) error {
	return rebalanceWithLock(ctx, NewGormStore(tx, businessId), logger, businessId, itemId, priorityLine)
}

// rebalanceWithLock derives the lock key from a lock-free scope read, takes
// the reservation lock, and only then lets the engine run its row-locking
// reads. The ordering matches ReserveInventory (reservation lock before row
// locks); locking the item row first would deadlock against a concurrent
// reserve holding the reservation lock and waiting on that same row.
func rebalanceWithLock(ctx context.Context, store InventoryStore, logger *logrus.Logger, businessId string, itemId int, priorityLine *OrderLine) error {
	const op = "workflow.RebalanceInventory"

	scope, err := store.ItemScope(itemId)
	if err != nil {
		config.LogError(logger, "workflow", "RebalanceInventory", "load item scope", logData(ctx, itemId), err)
		return utils.WrapInfrastructure(op, err)
	}
	if scope == nil {
		return utils.NewNotFoundError(op, "inventory item %d not found", itemId)
	}

	release, err := obtainReservationLock(ctx, reservationLockKey(businessId, scope.ProductId, scope.FacilityId))
	if err != nil {
		config.LogError(logger, "workflow", "RebalanceInventory", "obtain lock", logData(ctx, itemId), err)
		return utils.WrapInfrastructure(op, err)
	}
	defer release()

	engine := NewEngine(store, logger)
	if err := engine.BalanceInventoryItems(ctx, itemId, priorityLine); err != nil {
		config.LogError(logger, "workflow", "RebalanceInventory", "rebalance", logData(ctx, itemId), err)
		return err
	}
	return nil
}
