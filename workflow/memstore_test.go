package workflow

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory InventoryStore for unit tests. Single-goroutine
// use only; no locking, no transactions.
type memStore struct {
	products          map[int]*models.Product
	orders            map[int]*models.OrderHeader
	shipGroups        map[string]*models.OrderShipGroup
	addressFacilities map[string]int
	facilities        map[int]*models.Facility
	productFacilities map[string]*models.ProductFacility
	items             map[int]*models.InventoryItem
	locationTypes     map[string]models.FacilityLocationType
	details           []*models.InventoryItemDetail
	reservations      []*models.ItemReservation
	transfers         []*models.InventoryTransfer
	openPickKeys      map[string]bool

	nextItemId int
	nextResId  int
}

func newMemStore() *memStore {
	return &memStore{
		products:          map[int]*models.Product{},
		orders:            map[int]*models.OrderHeader{},
		shipGroups:        map[string]*models.OrderShipGroup{},
		addressFacilities: map[string]int{},
		facilities:        map[int]*models.Facility{},
		productFacilities: map[string]*models.ProductFacility{},
		items:             map[int]*models.InventoryItem{},
		locationTypes:     map[string]models.FacilityLocationType{},
		openPickKeys:      map[string]bool{},
		nextItemId:        1000,
		nextResId:         1,
	}
}

func sgKey(orderId, shipGroupSeqId int) string {
	return fmt.Sprintf("%d:%d", orderId, shipGroupSeqId)
}

func pfKey(productId, facilityId int) string {
	return fmt.Sprintf("%d:%d", productId, facilityId)
}

func locKey(facilityId int, locationSeqId string) string {
	return fmt.Sprintf("%d:%s", facilityId, locationSeqId)
}

func pickKey(res *models.ItemReservation) string {
	return fmt.Sprintf("%d:%d:%d:%d", res.OrderId, res.OrderItemSeqId, res.ShipGroupSeqId, res.InventoryItemId)
}

func (s *memStore) OrderById(orderId int) (*models.OrderHeader, error) {
	return s.orders[orderId], nil
}

func (s *memStore) ShipGroup(orderId, shipGroupSeqId int) (*models.OrderShipGroup, error) {
	return s.shipGroups[sgKey(orderId, shipGroupSeqId)], nil
}

func (s *memStore) FacilityForAddress(productStoreId int, contactMechId string) (*int, error) {
	if id, ok := s.addressFacilities[fmt.Sprintf("%d:%s", productStoreId, contactMechId)]; ok {
		return &id, nil
	}
	return nil, nil
}

func (s *memStore) ProductById(productId int) (*models.Product, error) {
	return s.products[productId], nil
}

func (s *memStore) FacilityById(facilityId int) (*models.Facility, error) {
	return s.facilities[facilityId], nil
}

func (s *memStore) ProductFacility(productId, facilityId int) (*models.ProductFacility, error) {
	return s.productFacilities[pfKey(productId, facilityId)], nil
}

func (s *memStore) CandidateLots(filter LotFilter) ([]*models.InventoryItem, error) {
	var out []*models.InventoryItem
	for id := 0; id <= s.nextItemId; id++ {
		item, ok := s.items[id]
		if !ok {
			continue
		}
		if item.ProductId != filter.ProductId {
			continue
		}
		if filter.FacilityId != nil {
			if item.FacilityId == nil || *item.FacilityId != *filter.FacilityId {
				continue
			}
		}
		if filter.ContainerId != nil {
			if item.ContainerId == nil || *item.ContainerId != *filter.ContainerId {
				continue
			}
		}
		switch filter.LocationType {
		case models.FacilityLocationTypePrimary, models.FacilityLocationTypeBulk:
			if item.FacilityId == nil || item.LocationSeqId == nil {
				continue
			}
			if s.locationTypes[locKey(*item.FacilityId, *item.LocationSeqId)] != filter.LocationType {
				continue
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *memStore) ItemById(itemId int) (*models.InventoryItem, error) {
	return s.items[itemId], nil
}

func (s *memStore) ItemScope(itemId int) (*LotScope, error) {
	item, ok := s.items[itemId]
	if !ok {
		return nil, nil
	}
	return &LotScope{ProductId: item.ProductId, FacilityId: item.FacilityId}, nil
}

func (s *memStore) SetItemStatus(item *models.InventoryItem, status models.InventoryStatus) error {
	item.Status = status
	return nil
}

func (s *memStore) AppendItemDetail(item *models.InventoryItem, delta ItemDelta) error {
	item.DetailSeq++
	detail := &models.InventoryItemDetail{
		ID:                     len(s.details) + 1,
		BusinessId:             item.BusinessId,
		InventoryItemId:        item.ID,
		DetailSeqId:            item.DetailSeq,
		EffectiveDate:          delta.EffectiveDate,
		QuantityOnHandDiff:     delta.QuantityOnHandDiff,
		AvailableToPromiseDiff: delta.AvailableToPromiseDiff,
		Description:            delta.Description,
	}
	if delta.Line != nil {
		detail.OrderId = &delta.Line.OrderId
		detail.OrderItemSeqId = &delta.Line.OrderItemSeqId
		detail.ShipGroupSeqId = &delta.Line.ShipGroupSeqId
	}
	s.details = append(s.details, detail)

	atp := decimal.Zero
	if item.AvailableToPromise.Valid {
		atp = item.AvailableToPromise.Decimal
	}
	item.AvailableToPromise = decimal.NullDecimal{Decimal: atp.Add(delta.AvailableToPromiseDiff), Valid: true}
	item.QuantityOnHand = item.QuantityOnHand.Add(delta.QuantityOnHandDiff)
	return nil
}

func (s *memStore) CreateBackorderLot(productId int, facilityId *int) (*models.InventoryItem, error) {
	s.nextItemId++
	item := &models.InventoryItem{
		ID:                 s.nextItemId,
		ProductId:          productId,
		FacilityId:         facilityId,
		ItemKind:           models.InventoryItemKindNonSerialized,
		Status:             models.InventoryStatusAvailable,
		QuantityOnHand:     decimal.Zero,
		AvailableToPromise: decimal.NullDecimal{Decimal: decimal.Zero, Valid: true},
		ReceivedDate:       time.Now().UTC(),
		OwnerPartyId:       utils.NewString("system"),
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *memStore) SimilarItemsWithNegativeAvailability(item *models.InventoryItem) ([]*models.InventoryItem, error) {
	var out []*models.InventoryItem
	for id := 0; id <= s.nextItemId; id++ {
		other, ok := s.items[id]
		if !ok {
			continue
		}
		if other.ProductId != item.ProductId || other.IsSerialized() {
			continue
		}
		switch {
		case item.FacilityId == nil && other.FacilityId != nil:
			continue
		case item.FacilityId != nil && (other.FacilityId == nil || *other.FacilityId != *item.FacilityId):
			continue
		}
		if !other.AvailableToPromise.Valid || !other.AvailableToPromise.Decimal.IsNegative() {
			continue
		}
		out = append(out, other)
	}
	return out, nil
}

func (s *memStore) PendingTransferQuantity(itemId int) (decimal.Decimal, bool, error) {
	total := decimal.Zero
	found := false
	for _, tr := range s.transfers {
		if tr.InventoryItemId == itemId && tr.Status.Pending() {
			total = total.Add(tr.Quantity)
			found = true
		}
	}
	return total, found, nil
}

func (s *memStore) CreateReservation(res *models.ItemReservation) error {
	res.ID = s.nextResId
	s.nextResId++
	s.reservations = append(s.reservations, res)
	return nil
}

func (s *memStore) CancelReservation(res *models.ItemReservation) error {
	if res.CancelledAt == nil {
		now := time.Now().UTC()
		res.CancelledAt = &now
	}
	return nil
}

func (s *memStore) ActiveReservationsForItem(itemId int) ([]*models.ItemReservation, error) {
	var out []*models.ItemReservation
	for _, res := range s.reservations {
		if res.InventoryItemId == itemId && res.Active() {
			out = append(out, res)
		}
	}
	return out, nil
}

func (s *memStore) ActiveReservationsForOrderLine(line OrderLine, inventoryItemId *int) ([]*models.ItemReservation, error) {
	var out []*models.ItemReservation
	for _, res := range s.reservations {
		if !res.Active() || !res.SameOrderLine(line.OrderId, line.OrderItemSeqId, line.ShipGroupSeqId) {
			continue
		}
		if inventoryItemId != nil && res.InventoryItemId != *inventoryItemId {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *memStore) OnOpenPickList(res *models.ItemReservation) (bool, error) {
	return s.openPickKeys[pickKey(res)], nil
}

var _ InventoryStore = (*memStore)(nil)

// Seeding helpers.

func (s *memStore) addProduct(id int, productType models.ProductType) *models.Product {
	p := &models.Product{ID: id, Name: fmt.Sprintf("product-%d", id), ProductType: productType}
	s.products[id] = p
	return p
}

func (s *memStore) addOrder(id int, orderDate time.Time, productStoreId *int) *models.OrderHeader {
	o := &models.OrderHeader{ID: id, OrderDate: orderDate, ProductStoreId: productStoreId}
	s.orders[id] = o
	return o
}

func (s *memStore) addShipGroup(orderId, seqId int, contactMechId *string, facilityId *int) *models.OrderShipGroup {
	sg := &models.OrderShipGroup{OrderId: orderId, ShipGroupSeqId: seqId, ContactMechId: contactMechId, FacilityId: facilityId}
	s.shipGroups[sgKey(orderId, seqId)] = sg
	return sg
}

func (s *memStore) addFacility(id int, daysToShip *int, policy *models.ReservePolicy) *models.Facility {
	f := &models.Facility{ID: id, Name: fmt.Sprintf("facility-%d", id), DaysToShip: daysToShip, DefaultReservePolicy: policy, IsActive: utils.NewTrue()}
	s.facilities[id] = f
	return f
}

func (s *memStore) addLocation(facilityId int, locationSeqId string, locType models.FacilityLocationType) {
	s.locationTypes[locKey(facilityId, locationSeqId)] = locType
}

func (s *memStore) addLot(id int, productId int, facilityId *int, atp string, received time.Time) *models.InventoryItem {
	qty := decimal.RequireFromString(atp)
	item := &models.InventoryItem{
		ID:                 id,
		ProductId:          productId,
		FacilityId:         facilityId,
		ItemKind:           models.InventoryItemKindNonSerialized,
		Status:             models.InventoryStatusAvailable,
		QuantityOnHand:     qty,
		AvailableToPromise: decimal.NullDecimal{Decimal: qty, Valid: true},
		ReceivedDate:       received,
	}
	s.items[id] = item
	if id >= s.nextItemId {
		s.nextItemId = id
	}
	return item
}

func (s *memStore) addSerialLot(id int, productId int, facilityId *int, status models.InventoryStatus, received time.Time) *models.InventoryItem {
	serial := fmt.Sprintf("SN-%d", id)
	item := &models.InventoryItem{
		ID:           id,
		ProductId:    productId,
		FacilityId:   facilityId,
		ItemKind:     models.InventoryItemKindSerialized,
		Status:       status,
		SerialNumber: &serial,
		ReceivedDate: received,
	}
	s.items[id] = item
	if id >= s.nextItemId {
		s.nextItemId = id
	}
	return item
}

func (s *memStore) activeReservations() []*models.ItemReservation {
	var out []*models.ItemReservation
	for _, res := range s.reservations {
		if res.Active() {
			out = append(out, res)
		}
	}
	return out
}
