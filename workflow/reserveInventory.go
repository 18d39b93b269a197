package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var validate = validator.New()

// Engine orchestrates reserving, rebalancing and re-reserving inventory.
// One engine per unit of work; it holds no state across calls except the
// injected store and logger.
type Engine struct {
	store  InventoryStore
	logger *logrus.Logger
}

func NewEngine(store InventoryStore, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Engine{store: store, logger: logger}
}

// ReserveRequest carries everything one reservation decision needs.
type ReserveRequest struct {
	OrderId        int `validate:"required"`
	OrderItemSeqId int `validate:"required"`
	ShipGroupSeqId int `validate:"required"`
	ProductId      int `validate:"required"`

	Quantity   decimal.Decimal
	ReservedAt time.Time

	// RequireInventory refuses backorders: unmet quantity is returned to the
	// caller instead of being pushed onto a lot as negative availability.
	RequireInventory bool

	Policy      models.ReservePolicy
	FacilityId  *int
	ContainerId *string
	SequenceId  *int64
	IsPriority  bool

	// IgnoreAddressFacility skips ship-to address resolution and pins the
	// reservation to FacilityId as supplied. Rebalancing and re-reservation
	// set this so stock does not silently change facilities.
	IgnoreAddressFacility bool
}

func (r ReserveRequest) Line() OrderLine {
	return OrderLine{OrderId: r.OrderId, OrderItemSeqId: r.OrderItemSeqId, ShipGroupSeqId: r.ShipGroupSeqId}
}

// ledgerNote appends the requesting actor to a ledger description when the
// context carries one, so detail rows record who moved the quantity.
func ledgerNote(ctx context.Context, note string) string {
	if actor, ok := utils.GetRequestedByFromContext(ctx); ok && actor != "" {
		return note + " by " + actor
	}
	return note
}

// logData bundles the failing payload with the correlation id, when the
// context carries one, for structured error logs.
func logData(ctx context.Context, payload interface{}) map[string]interface{} {
	data := map[string]interface{}{"payload": payload}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		data["correlation_id"] = cid
	}
	return data
}

// Reserve promises the requested quantity against candidate lots and returns
// the quantity it could not reserve. Zero means fully reserved. A nonzero
// return only happens with RequireInventory=true; otherwise every unit ends
// in a reservation, backordered if necessary.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (decimal.Decimal, error) {
	const op = "workflow.Reserve"

	if err := validate.Struct(req); err != nil {
		return decimal.Zero, utils.NewValidationError(op, "invalid reserve request: %v", err)
	}
	if !req.Quantity.IsPositive() {
		return decimal.Zero, utils.NewValidationError(op, "quantity must be positive, got %s", req.Quantity)
	}
	if req.ReservedAt.IsZero() {
		req.ReservedAt = time.Now().UTC()
	}

	product, err := e.store.ProductById(req.ProductId)
	if err != nil {
		return decimal.Zero, utils.WrapInfrastructure(op, err)
	}
	if product == nil {
		return decimal.Zero, utils.NewNotFoundError(op, "product %d not found", req.ProductId)
	}
	if !product.IsPhysical() {
		// Digital goods and services hold no stock; nothing to reserve.
		return decimal.Zero, nil
	}

	order, err := e.store.OrderById(req.OrderId)
	if err != nil {
		return decimal.Zero, utils.WrapInfrastructure(op, err)
	}
	if order == nil {
		return decimal.Zero, utils.NewNotFoundError(op, "order %d not found", req.OrderId)
	}

	facilityId, err := e.resolveFacility(order, req)
	if err != nil {
		return decimal.Zero, err
	}

	policy := models.NormalizeReservePolicy(string(req.Policy))
	if facilityId != nil {
		facility, err := e.store.FacilityById(*facilityId)
		if err != nil {
			return decimal.Zero, utils.WrapInfrastructure(op, err)
		}
		if facility == nil {
			return decimal.Zero, utils.NewNotFoundError(op, "facility %d not found", *facilityId)
		}
		if facility.DefaultReservePolicy != nil {
			policy = models.NormalizeReservePolicy(string(*facility.DefaultReservePolicy))
		}
	}

	promised, err := e.promisedShipDate(order, req.ProductId, facilityId)
	if err != nil {
		return decimal.Zero, utils.WrapInfrastructure(op, err)
	}

	candidates, err := e.selectCandidates(LotFilter{
		ProductId:   req.ProductId,
		FacilityId:  facilityId,
		ContainerId: req.ContainerId,
	}, policy)
	if err != nil {
		return decimal.Zero, utils.WrapInfrastructure(op, err)
	}

	remaining := req.Quantity
	var lastNonSerialized *models.InventoryItem
	for _, lot := range candidates {
		if !remaining.IsPositive() {
			break
		}
		absorbed, err := e.applyLot(ctx, lot, req, policy, promised, remaining)
		if err != nil {
			return decimal.Zero, err
		}
		if !lot.IsSerialized() && absorbed.IsPositive() {
			lastNonSerialized = lot
		}
		remaining = remaining.Sub(absorbed)
	}

	if remaining.IsPositive() && !req.RequireInventory {
		remaining, err = e.backorder(ctx, req, policy, promised, remaining, lastNonSerialized, facilityId)
		if err != nil {
			return decimal.Zero, err
		}
	}

	return remaining, nil
}

// applyLot absorbs as much of remaining as the lot allows and records the
// reservation. Returns the absorbed quantity, zero when the lot is unusable.
func (e *Engine) applyLot(ctx context.Context, lot *models.InventoryItem, req ReserveRequest, policy models.ReservePolicy, promised time.Time, remaining decimal.Decimal) (decimal.Decimal, error) {
	const op = "workflow.Reserve"

	if lot.IsSerialized() {
		if lot.Status != models.InventoryStatusAvailable {
			return decimal.Zero, nil
		}
		if err := e.store.SetItemStatus(lot, models.InventoryStatusPromised); err != nil {
			return decimal.Zero, utils.WrapInfrastructure(op, err)
		}
		one := decimal.NewFromInt(1)
		if err := e.createReservation(lot, req, policy, promised, one, decimal.Zero); err != nil {
			return decimal.Zero, err
		}
		return one, nil
	}

	promisable := lot.PromisableQuantity()
	if !promisable.IsPositive() {
		return decimal.Zero, nil
	}
	absorbed := decimal.Min(remaining, promisable)

	line := req.Line()
	err := e.store.AppendItemDetail(lot, ItemDelta{
		AvailableToPromiseDiff: absorbed.Neg(),
		EffectiveDate:          req.ReservedAt,
		Description:            ledgerNote(ctx, fmt.Sprintf("Reserved for order %d", req.OrderId)),
		Line:                   &line,
	})
	if err != nil {
		return decimal.Zero, utils.WrapInfrastructure(op, err)
	}
	if err := e.createReservation(lot, req, policy, promised, absorbed, decimal.Zero); err != nil {
		return decimal.Zero, err
	}
	return absorbed, nil
}

// backorder accounts for quantity no real lot could absorb. It first pushes
// the last touched non-serialized lot further negative (capped by any pending
// transfer against it), then parks whatever is left on a fresh system-owned
// lot. Nothing is dropped.
func (e *Engine) backorder(ctx context.Context, req ReserveRequest, policy models.ReservePolicy, promised time.Time, remaining decimal.Decimal, lastLot *models.InventoryItem, facilityId *int) (decimal.Decimal, error) {
	const op = "workflow.Reserve"
	line := req.Line()

	if lastLot != nil {
		extra := remaining
		pending, hasPending, err := e.store.PendingTransferQuantity(lastLot.ID)
		if err != nil {
			return remaining, utils.WrapInfrastructure(op, err)
		}
		if hasPending {
			headroom := lastLot.QuantityOnHand.Sub(pending)
			if headroom.IsNegative() {
				headroom = decimal.Zero
			}
			extra = decimal.Min(remaining, headroom)
		}
		if extra.IsPositive() {
			err = e.store.AppendItemDetail(lastLot, ItemDelta{
				AvailableToPromiseDiff: extra.Neg(),
				EffectiveDate:          req.ReservedAt,
				Description:            ledgerNote(ctx, fmt.Sprintf("Backordered for order %d", req.OrderId)),
				Line:                   &line,
			})
			if err != nil {
				return remaining, utils.WrapInfrastructure(op, err)
			}
			if err := e.createReservation(lastLot, req, policy, promised, extra, extra); err != nil {
				return remaining, err
			}
			remaining = remaining.Sub(extra)
		}
	}

	if remaining.IsPositive() {
		lot, err := e.store.CreateBackorderLot(req.ProductId, facilityId)
		if err != nil {
			return remaining, utils.WrapInfrastructure(op, err)
		}
		err = e.store.AppendItemDetail(lot, ItemDelta{
			AvailableToPromiseDiff: remaining.Neg(),
			EffectiveDate:          req.ReservedAt,
			Description:            ledgerNote(ctx, fmt.Sprintf("Backordered for order %d", req.OrderId)),
			Line:                   &line,
		})
		if err != nil {
			return remaining, utils.WrapInfrastructure(op, err)
		}
		if err := e.createReservation(lot, req, policy, promised, remaining, remaining); err != nil {
			return remaining, err
		}
		remaining = decimal.Zero
	}

	return remaining, nil
}

func (e *Engine) createReservation(lot *models.InventoryItem, req ReserveRequest, policy models.ReservePolicy, promised time.Time, quantity, notAvailable decimal.Decimal) error {
	const op = "workflow.Reserve"
	isPriority := req.IsPriority
	res := &models.ItemReservation{
		OrderId:              req.OrderId,
		OrderItemSeqId:       req.OrderItemSeqId,
		ShipGroupSeqId:       req.ShipGroupSeqId,
		InventoryItemId:      lot.ID,
		Quantity:             quantity,
		QuantityNotAvailable: notAvailable,
		ReservedAt:           req.ReservedAt,
		PromisedShipDate:     &promised,
		Policy:               policy,
		SequenceId:           req.SequenceId,
		IsPriority:           &isPriority,
	}
	if err := e.store.CreateReservation(res); err != nil {
		return utils.WrapInfrastructure(op, err)
	}
	return nil
}

// resolveFacility picks the facility to reserve from: the one serving the
// ship group's address, else whatever the caller supplied, else the ship
// group's own facility assignment, else none (search every facility). An
// explicit caller facility outranks the ship group's so callers that pin a
// facility are never silently redirected.
func (e *Engine) resolveFacility(order *models.OrderHeader, req ReserveRequest) (*int, error) {
	const op = "workflow.Reserve"

	if req.IgnoreAddressFacility {
		return req.FacilityId, nil
	}

	sg, err := e.store.ShipGroup(req.OrderId, req.ShipGroupSeqId)
	if err != nil {
		return nil, utils.WrapInfrastructure(op, err)
	}
	if sg != nil && order.ProductStoreId != nil && sg.ContactMechId != nil {
		facilityId, err := e.store.FacilityForAddress(*order.ProductStoreId, *sg.ContactMechId)
		if err != nil {
			return nil, utils.WrapInfrastructure(op, err)
		}
		if facilityId != nil {
			return facilityId, nil
		}
	}
	if req.FacilityId != nil {
		return req.FacilityId, nil
	}
	if sg != nil && sg.FacilityId != nil {
		return sg.FacilityId, nil
	}
	return nil, nil
}

const defaultDaysToShip = 30

// promisedShipDate is the order date plus the lead time: per-product override
// at the facility, else the facility default, else a fixed 30 days.
func (e *Engine) promisedShipDate(order *models.OrderHeader, productId int, facilityId *int) (time.Time, error) {
	days := defaultDaysToShip
	if facilityId != nil {
		pf, err := e.store.ProductFacility(productId, *facilityId)
		if err != nil {
			return time.Time{}, err
		}
		if pf != nil && pf.DaysToShip != nil {
			days = *pf.DaysToShip
		} else {
			facility, err := e.store.FacilityById(*facilityId)
			if err != nil {
				return time.Time{}, err
			}
			if facility != nil && facility.DaysToShip != nil {
				days = *facility.DaysToShip
			}
		}
	}
	return order.OrderDate.AddDate(0, 0, days), nil
}

// ReserveInventory is the transactional entry point. It serializes competing
// reservations for the same product with a distributed lock, then runs the
// engine against a store scoped to the supplied transaction.
func ReserveInventory(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, businessId string, req ReserveRequest) (decimal.Decimal, error) {
	return reserveWithLock(ctx, NewGormStore(tx, businessId), logger, businessId, req)
}

func reserveWithLock(ctx context.Context, store InventoryStore, logger *logrus.Logger, businessId string, req ReserveRequest) (decimal.Decimal, error) {
	const op = "workflow.ReserveInventory"

	release, err := obtainReservationLock(ctx, reservationLockKey(businessId, req.ProductId, req.FacilityId))
	if err != nil {
		config.LogError(logger, "workflow", "ReserveInventory", "obtain lock", logData(ctx, req), err)
		return decimal.Zero, utils.WrapInfrastructure(op, err)
	}
	defer release()

	notReserved, err := NewEngine(store, logger).Reserve(ctx, req)
	if err != nil {
		config.LogError(logger, "workflow", "ReserveInventory", "reserve", logData(ctx, req), err)
		return decimal.Zero, err
	}
	return notReserved, nil
}
