package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"github.com/shopspring/decimal"
)

// OrderLine is the composite key binding reservations to one order item in
// one ship group. Matching is always by value.
type OrderLine struct {
	OrderId        int
	OrderItemSeqId int
	ShipGroupSeqId int
}

// LotFilter scopes a candidate-lot query. A zero LocationType (or
// FacilityLocationTypeNone) means unrestricted: no location join at all.
type LotFilter struct {
	ProductId    int
	FacilityId   *int
	ContainerId  *string
	LocationType models.FacilityLocationType
}

// LotScope identifies the product and facility a lot belongs to. It is all a
// caller needs to derive the reservation lock key for that lot.
type LotScope struct {
	ProductId  int
	FacilityId *int
}

// ItemDelta is one append-only ledger adjustment against an inventory item.
// The store persists the detail row, bumps the item's per-item sequence and
// folds the diffs into the item's totals, all inside the ambient transaction.
type ItemDelta struct {
	QuantityOnHandDiff     decimal.Decimal
	AvailableToPromiseDiff decimal.Decimal
	EffectiveDate          time.Time
	Description            string
	Line                   *OrderLine
}

// InventoryStore is the persistence boundary of the reservation subsystem.
// One store instance is scoped to one business and one unit of work; callers
// construct a fresh store per transaction, so nothing here caches across
// calls. Reads of lots that will be written must take row locks in
// implementations backed by a shared database.
//
// Lookups return (nil, nil) when the record does not exist; the engine turns
// that into a typed not-found error.
type InventoryStore interface {
	// Order domain (consumed).
	OrderById(orderId int) (*models.OrderHeader, error)
	ShipGroup(orderId, shipGroupSeqId int) (*models.OrderShipGroup, error)
	// FacilityForAddress resolves the facility serving a store's ship-to
	// address, or nil when no mapping exists.
	FacilityForAddress(productStoreId int, contactMechId string) (*int, error)

	// Product domain (consumed).
	ProductById(productId int) (*models.Product, error)
	FacilityById(facilityId int) (*models.Facility, error)
	ProductFacility(productId, facilityId int) (*models.ProductFacility, error)

	// Lots.
	CandidateLots(filter LotFilter) ([]*models.InventoryItem, error)
	ItemById(itemId int) (*models.InventoryItem, error)
	// ItemScope reads a lot's product and facility without taking a row
	// lock, so lock keys can be derived before any row is locked. Returns
	// (nil, nil) when the lot does not exist.
	ItemScope(itemId int) (*LotScope, error)
	SetItemStatus(item *models.InventoryItem, status models.InventoryStatus) error
	AppendItemDetail(item *models.InventoryItem, delta ItemDelta) error
	// CreateBackorderLot creates a system-owned non-serialized lot with no
	// physical stock, used to hold quantity promised beyond all real lots.
	CreateBackorderLot(productId int, facilityId *int) (*models.InventoryItem, error)
	// SimilarItemsWithNegativeAvailability returns non-serialized lots for the
	// same product and facility scope whose available-to-promise is negative.
	SimilarItemsWithNegativeAvailability(item *models.InventoryItem) ([]*models.InventoryItem, error)
	// PendingTransferQuantity sums quantity held by pending transfers against
	// the item; the bool reports whether any pending transfer exists.
	PendingTransferQuantity(itemId int) (decimal.Decimal, bool, error)

	// Reservations.
	CreateReservation(res *models.ItemReservation) error
	CancelReservation(res *models.ItemReservation) error
	ActiveReservationsForItem(itemId int) ([]*models.ItemReservation, error)
	ActiveReservationsForOrderLine(line OrderLine, inventoryItemId *int) ([]*models.ItemReservation, error)
	// OnOpenPickList reports whether the reservation is committed to a pick
	// list that is neither picked nor cancelled.
	OnOpenPickList(res *models.ItemReservation) (bool, error)
}
