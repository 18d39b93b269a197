package workflow

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fulfillment_backend/models"
	"bitbucket.org/mmdatafocus/fulfillment_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the production InventoryStore. One instance per transaction:
// all reads and writes go through the supplied tx so the whole reservation
// decision commits or rolls back as one unit.
//
// Lot reads take SELECT ... FOR UPDATE row locks. Concurrent reservations
// against the same lot would otherwise both read a positive
// available-to-promise and both debit it past the true capacity.
type GormStore struct {
	tx         *gorm.DB
	businessId string
}

func NewGormStore(tx *gorm.DB, businessId string) *GormStore {
	return &GormStore{tx: tx, businessId: businessId}
}

func (s *GormStore) OrderById(orderId int) (*models.OrderHeader, error) {
	var order models.OrderHeader
	err := s.tx.Where("business_id = ? AND id = ?", s.businessId, orderId).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *GormStore) ShipGroup(orderId, shipGroupSeqId int) (*models.OrderShipGroup, error) {
	var sg models.OrderShipGroup
	err := s.tx.Where("business_id = ? AND order_id = ? AND ship_group_seq_id = ?",
		s.businessId, orderId, shipGroupSeqId).First(&sg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sg, nil
}

func (s *GormStore) FacilityForAddress(productStoreId int, contactMechId string) (*int, error) {
	var psf models.ProductStoreFacility
	err := s.tx.Where("business_id = ? AND product_store_id = ? AND contact_mech_id = ?",
		s.businessId, productStoreId, contactMechId).First(&psf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &psf.FacilityId, nil
}

func (s *GormStore) ProductById(productId int) (*models.Product, error) {
	var product models.Product
	err := s.tx.Where("business_id = ? AND id = ?", s.businessId, productId).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *GormStore) FacilityById(facilityId int) (*models.Facility, error) {
	var facility models.Facility
	err := s.tx.Where("business_id = ? AND id = ?", s.businessId, facilityId).First(&facility).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &facility, nil
}

func (s *GormStore) ProductFacility(productId, facilityId int) (*models.ProductFacility, error) {
	var pf models.ProductFacility
	err := s.tx.Where("business_id = ? AND product_id = ? AND facility_id = ?",
		s.businessId, productId, facilityId).First(&pf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pf, nil
}

func (s *GormStore) CandidateLots(filter LotFilter) ([]*models.InventoryItem, error) {
	q := s.tx.Model(&models.InventoryItem{}).
		Where("inventory_items.business_id = ? AND inventory_items.product_id = ?", s.businessId, filter.ProductId)
	if filter.FacilityId != nil {
		q = q.Where("inventory_items.facility_id = ?", *filter.FacilityId)
	}
	if filter.ContainerId != nil {
		q = q.Where("inventory_items.container_id = ?", *filter.ContainerId)
	}
	switch filter.LocationType {
	case models.FacilityLocationTypePrimary, models.FacilityLocationTypeBulk:
		q = q.Joins(`JOIN facility_locations fl
			ON fl.business_id = inventory_items.business_id
			AND fl.facility_id = inventory_items.facility_id
			AND fl.location_seq_id = inventory_items.location_seq_id`).
			Where("fl.location_type = ?", filter.LocationType)
	default:
		// Final tier: no location restriction.
	}

	var lots []*models.InventoryItem
	err := q.Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("inventory_items.id ASC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	// Policy ordering is applied in memory (RankLots) so every store shares
	// one ranking implementation.
	return lots, nil
}

func (s *GormStore) ItemById(itemId int) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", s.businessId, itemId).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ItemScope is deliberately lock-free: it runs before the reservation lock
// is obtained, and taking a row lock here would invert the lock order that
// ReserveInventory establishes (reservation lock first, row locks after).
func (s *GormStore) ItemScope(itemId int) (*LotScope, error) {
	var scope LotScope
	err := s.tx.Model(&models.InventoryItem{}).
		Select("product_id", "facility_id").
		Where("business_id = ? AND id = ?", s.businessId, itemId).
		Take(&scope).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &scope, nil
}

func (s *GormStore) SetItemStatus(item *models.InventoryItem, status models.InventoryStatus) error {
	err := s.tx.Model(&models.InventoryItem{}).
		Where("business_id = ? AND id = ?", s.businessId, item.ID).
		Update("status", status).Error
	if err != nil {
		return err
	}
	item.Status = status
	return nil
}

// AppendItemDetail writes one ledger row and folds the diffs into the item
// aggregate. The per-item sequence comes from the item row itself, under the
// same transaction, never from a process-wide counter.
func (s *GormStore) AppendItemDetail(item *models.InventoryItem, delta ItemDelta) error {
	seq := item.DetailSeq + 1

	detail := models.InventoryItemDetail{
		BusinessId:             s.businessId,
		InventoryItemId:        item.ID,
		DetailSeqId:            seq,
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
	if err := s.tx.Create(&detail).Error; err != nil {
		return err
	}

	atp := decimal.Zero
	if item.AvailableToPromise.Valid {
		atp = item.AvailableToPromise.Decimal
	}
	atp = atp.Add(delta.AvailableToPromiseDiff)
	qoh := item.QuantityOnHand.Add(delta.QuantityOnHandDiff)

	err := s.tx.Model(&models.InventoryItem{}).
		Where("business_id = ? AND id = ?", s.businessId, item.ID).
		Updates(map[string]interface{}{
			"detail_seq":           seq,
			"available_to_promise": atp,
			"quantity_on_hand":     qoh,
		}).Error
	if err != nil {
		return err
	}

	item.DetailSeq = seq
	item.AvailableToPromise = decimal.NullDecimal{Decimal: atp, Valid: true}
	item.QuantityOnHand = qoh
	return nil
}

func (s *GormStore) CreateBackorderLot(productId int, facilityId *int) (*models.InventoryItem, error) {
	item := models.InventoryItem{
		BusinessId:         s.businessId,
		ProductId:          productId,
		FacilityId:         facilityId,
		ItemKind:           models.InventoryItemKindNonSerialized,
		Status:             models.InventoryStatusAvailable,
		QuantityOnHand:     decimal.Zero,
		AvailableToPromise: decimal.NullDecimal{Decimal: decimal.Zero, Valid: true},
		ReceivedDate:       time.Now().UTC(),
		OwnerPartyId:       utils.NewString("system"),
	}
	if err := s.tx.Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *GormStore) SimilarItemsWithNegativeAvailability(item *models.InventoryItem) ([]*models.InventoryItem, error) {
	q := s.tx.Model(&models.InventoryItem{}).
		Where("business_id = ? AND product_id = ? AND item_kind = ? AND available_to_promise < 0",
			s.businessId, item.ProductId, models.InventoryItemKindNonSerialized)
	if item.FacilityId != nil {
		q = q.Where("facility_id = ?", *item.FacilityId)
	} else {
		q = q.Where("facility_id IS NULL")
	}

	var items []*models.InventoryItem
	err := q.Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *GormStore) PendingTransferQuantity(itemId int) (decimal.Decimal, bool, error) {
	type row struct {
		Total decimal.Decimal
		Count int64
	}
	var r row
	err := s.tx.Model(&models.InventoryTransfer{}).
		Select("COALESCE(SUM(quantity),0) AS total, COUNT(*) AS count").
		Where("business_id = ? AND inventory_item_id = ? AND status IN ?",
			s.businessId, itemId, []models.TransferStatus{models.TransferStatusRequested, models.TransferStatusScheduled}).
		Scan(&r).Error
	if err != nil {
		return decimal.Zero, false, err
	}
	return r.Total, r.Count > 0, nil
}

func (s *GormStore) CreateReservation(res *models.ItemReservation) error {
	res.BusinessId = s.businessId
	return s.tx.Create(res).Error
}

func (s *GormStore) CancelReservation(res *models.ItemReservation) error {
	if res.CancelledAt != nil {
		return nil
	}
	now := time.Now().UTC()
	err := s.tx.Model(&models.ItemReservation{}).
		Where("business_id = ? AND id = ? AND cancelled_at IS NULL", s.businessId, res.ID).
		Update("cancelled_at", &now).Error
	if err != nil {
		return err
	}
	res.CancelledAt = &now
	return nil
}

func (s *GormStore) ActiveReservationsForItem(itemId int) ([]*models.ItemReservation, error) {
	var reservations []*models.ItemReservation
	err := s.tx.
		Where("business_id = ? AND inventory_item_id = ? AND cancelled_at IS NULL", s.businessId, itemId).
		Order("reserved_at ASC, id ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (s *GormStore) ActiveReservationsForOrderLine(line OrderLine, inventoryItemId *int) ([]*models.ItemReservation, error) {
	q := s.tx.
		Where("business_id = ? AND order_id = ? AND order_item_seq_id = ? AND ship_group_seq_id = ? AND cancelled_at IS NULL",
			s.businessId, line.OrderId, line.OrderItemSeqId, line.ShipGroupSeqId)
	if inventoryItemId != nil {
		q = q.Where("inventory_item_id = ?", *inventoryItemId)
	}

	var reservations []*models.ItemReservation
	err := q.Order("id ASC").Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (s *GormStore) OnOpenPickList(res *models.ItemReservation) (bool, error) {
	var count int64
	err := s.tx.Model(&models.PickListItem{}).
		Joins("JOIN pick_lists pl ON pl.id = pick_list_items.pick_list_id AND pl.business_id = pick_list_items.business_id").
		Where(`pick_list_items.business_id = ?
			AND pick_list_items.order_id = ?
			AND pick_list_items.order_item_seq_id = ?
			AND pick_list_items.ship_group_seq_id = ?
			AND pick_list_items.inventory_item_id = ?
			AND pl.current_status NOT IN ?`,
			s.businessId, res.OrderId, res.OrderItemSeqId, res.ShipGroupSeqId, res.InventoryItemId,
			[]models.PickListStatus{models.PickListStatusPicked, models.PickListStatusCancelled}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ InventoryStore = (*GormStore)(nil)
