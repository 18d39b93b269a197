package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReReserve moves (part of) an order line's reserved quantity to a new
// facility. All active reservations for the line are cancelled, then replayed:
// newQuantity is drawn from the new facility and the rest stays where it was.
// Asking for more than the line had reserved is a policy violation.
//
// Sub-reservations preserve the original reserved timestamp, policy and
// sequence id, so a later rebalance still sorts this line by its original age.
func (e *Engine) ReReserve(ctx context.Context, line OrderLine, newFacilityId int, newQuantity decimal.Decimal) error {
	const op = "workflow.ReReserve"

	if line.OrderId == 0 || line.OrderItemSeqId == 0 || line.ShipGroupSeqId == 0 {
		return utils.NewValidationError(op, "order line is required")
	}
	if !newQuantity.IsPositive() {
		return utils.NewValidationError(op, "new quantity must be positive, got %s", newQuantity)
	}

	originals, err := e.store.ActiveReservationsForOrderLine(line, nil)
	if err != nil {
		return utils.WrapInfrastructure(op, err)
	}
	if len(originals) == 0 {
		return utils.NewNotFoundError(op, "no active reservations for order %d item %d ship group %d",
			line.OrderId, line.OrderItemSeqId, line.ShipGroupSeqId)
	}

	lotById := make(map[int]*models.InventoryItem, len(originals))
	for _, res := range originals {
		if _, ok := lotById[res.InventoryItemId]; ok {
			continue
		}
		lot, err := e.store.ItemById(res.InventoryItemId)
		if err != nil {
			return utils.WrapInfrastructure(op, err)
		}
		if lot == nil {
			return utils.NewNotFoundError(op, "inventory item %d not found", res.InventoryItemId)
		}
		lotById[res.InventoryItemId] = lot
	}

	for _, res := range originals {
		if err := e.releaseReservation(ctx, res, lotById[res.InventoryItemId]); err != nil {
			return err
		}
	}

	remainder := newQuantity
	for _, res := range originals {
		lot := lotById[res.InventoryItemId]
		q := res.Quantity

		switch remainder.Cmp(q) {
		case 1:
			return utils.NewPolicyError(op, "over-requested: asked to move %s but order %d item %d had only %s reserved here",
				remainder, line.OrderId, line.OrderItemSeqId, q)
		case 0:
			if err := e.reReserveAt(ctx, res, lot, &newFacilityId, remainder); err != nil {
				return err
			}
			remainder = decimal.Zero
		default:
			if remainder.IsPositive() {
				if err := e.reReserveAt(ctx, res, lot, &newFacilityId, remainder); err != nil {
					return err
				}
			}
			if err := e.reReserveAt(ctx, res, lot, lot.FacilityId, q.Sub(remainder)); err != nil {
				return err
			}
			remainder = decimal.Zero
		}
	}

	return nil
}

// reReserveAt replays one reservation slice against an explicit facility,
// bypassing address resolution. Backorders are allowed: the quantity was
// already promised once and must not be dropped now.
func (e *Engine) reReserveAt(ctx context.Context, res *models.ItemReservation, lot *models.InventoryItem, facilityId *int, quantity decimal.Decimal) error {
	const op = "workflow.ReReserve"

	req := ReserveRequest{
		OrderId:               res.OrderId,
		OrderItemSeqId:        res.OrderItemSeqId,
		ShipGroupSeqId:        res.ShipGroupSeqId,
		ProductId:             lot.ProductId,
		Quantity:              quantity,
		ReservedAt:            res.ReservedAt,
		RequireInventory:      false,
		Policy:                res.Policy,
		FacilityId:            facilityId,
		SequenceId:            res.SequenceId,
		IsPriority:            utils.DereferencePtr(res.IsPriority),
		IgnoreAddressFacility: true,
	}
	notReserved, err := e.Reserve(ctx, req)
	if err != nil {
		return err
	}
	if notReserved.IsPositive() {
		return utils.WrapInfrastructure(op,
			fmt.Errorf("re-reservation left %s unreserved for order %d", notReserved, res.OrderId))
	}
	return nil
}

// ReReserveInventory is the transactional entry point for moving an order
// line's reservation to a new facility.
func ReReserveInventory(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, businessId string, line OrderLine, newFacilityId int, newQuantity decimal.Decimal) error {
	return reReserveWithLock(ctx, NewGormStore(tx, businessId), logger, businessId, line, newFacilityId, newQuantity)
}

// reReserveWithLock resolves the lock key from the line's reservations and a
// lock-free scope read, then takes the reservation lock before the engine
// performs any row-locking read. Same lock ordering as ReserveInventory.
func reReserveWithLock(ctx context.Context, store InventoryStore, logger *logrus.Logger, businessId string, line OrderLine, newFacilityId int, newQuantity decimal.Decimal) error {
	const op = "workflow.ReReserveInventory"

	reservations, err := store.ActiveReservationsForOrderLine(line, nil)
	if err != nil {
		config.LogError(logger, "workflow", "ReReserveInventory", "load reservations", logData(ctx, line), err)
		return utils.WrapInfrastructure(op, err)
	}
	if len(reservations) == 0 {
		return utils.NewNotFoundError(op, "no active reservations for order %d item %d ship group %d",
			line.OrderId, line.OrderItemSeqId, line.ShipGroupSeqId)
	}
	scope, err := store.ItemScope(reservations[0].InventoryItemId)
	if err != nil {
		config.LogError(logger, "workflow", "ReReserveInventory", "load item scope", logData(ctx, line), err)
		return utils.WrapInfrastructure(op, err)
	}
	var productId int
	if scope != nil {
		productId = scope.ProductId
	}

	release, err := obtainReservationLock(ctx, reservationLockKey(businessId, productId, nil))
	if err != nil {
		config.LogError(logger, "workflow", "ReReserveInventory", "obtain lock", logData(ctx, line), err)
		return utils.WrapInfrastructure(op, err)
	}
	defer release()

	if err := NewEngine(store, logger).ReReserve(ctx, line, newFacilityId, newQuantity); err != nil {
		config.LogError(logger, "workflow", "ReReserveInventory", "re-reserve", logData(ctx, line), err)
		return err
	}
	return nil
}
