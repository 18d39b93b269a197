package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is one unit-tracking record of stock (a lot).
//
// Serialized items represent exactly one physical unit; their availability is
// carried by Status alone. Non-serialized items carry decimal totals, and
// AvailableToPromise may go negative: that is an accepted backorder condition,
// never rounded away.
type InventoryItem struct {
	ID            int               `gorm:"primary_key" json:"id"`
	BusinessId    string            `gorm:"index;not null" json:"business_id"`
	ProductId     int               `gorm:"index:idx_inv_item_product_facility,priority:1;not null" json:"product_id"`
	FacilityId    *int              `gorm:"index:idx_inv_item_product_facility,priority:2" json:"facility_id"`
	ContainerId   *string           `gorm:"size:60" json:"container_id"`
	LocationSeqId *string           `gorm:"size:60" json:"location_seq_id"`
	ItemKind      InventoryItemKind `gorm:"type:enum('S','N');default:'N'" json:"item_kind"`
	Status        InventoryStatus   `gorm:"type:enum('Available','Promised','BeingTransferred','Defective','Delivered');default:'Available'" json:"status"`
	SerialNumber  *string           `gorm:"size:100" json:"serial_number"`

	QuantityOnHand     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"quantity_on_hand"`
	AvailableToPromise decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"available_to_promise"`

	ReceivedDate time.Time       `gorm:"index;not null" json:"received_date"`
	ExpireDate   *time.Time      `gorm:"index" json:"expire_date"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CurrencyId   int             `gorm:"index" json:"currency_id"`

	// DetailSeq is the last ledger sequence issued for this item. It is
	// incremented in the same transaction that creates each detail row.
	DetailSeq int `gorm:"not null;default:0" json:"detail_seq"`

	// OwnerPartyId marks synthetic lots created to hold backorder quantity.
	OwnerPartyId *string `gorm:"size:60" json:"owner_party_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *InventoryItem) IsSerialized() bool {
	return i.ItemKind == InventoryItemKindSerialized
}

// PromisableQuantity returns how much this item can still absorb, or zero.
// Serialized: 1 when Available. Non-serialized: positive ATP only.
func (i *InventoryItem) PromisableQuantity() decimal.Decimal {
	if i.IsSerialized() {
		if i.Status == InventoryStatusAvailable {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	}
	if !i.AvailableToPromise.Valid || !i.AvailableToPromise.Decimal.IsPositive() {
		return decimal.Zero
	}
	return i.AvailableToPromise.Decimal
}

// BeforeSave keeps serialized items coherent: a serialized lot never carries
// decimal totals, and a non-serialized lot never carries a serial number.
func (i *InventoryItem) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if i == nil {
		return nil
	}
	if i.ItemKind == "" {
		i.ItemKind = InventoryItemKindNonSerialized
	}
	if i.IsSerialized() {
		i.QuantityOnHand = decimal.Zero
		i.AvailableToPromise = decimal.NullDecimal{}
	} else {
		i.SerialNumber = nil
	}
	return nil
}

// InventoryItemDetail is one append-only ledger row adjusting an item's
// totals. Rows are never updated or deleted; corrections append new rows.
type InventoryItemDetail struct {
	ID              int `gorm:"primary_key" json:"id"`
	BusinessId      string `gorm:"index;not null" json:"business_id"`
	InventoryItemId int    `gorm:"index:idx_inv_detail_item_seq,priority:1;not null" json:"inventory_item_id"`

	// DetailSeqId orders rows within one item. Issued from InventoryItem.DetailSeq
	// under the same transaction, never from a process-wide counter.
	DetailSeqId int `gorm:"index:idx_inv_detail_item_seq,priority:2;not null" json:"detail_seq_id"`

	EffectiveDate          time.Time       `gorm:"index;not null" json:"effective_date"`
	QuantityOnHandDiff     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_on_hand_diff"`
	AvailableToPromiseDiff decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"available_to_promise_diff"`
	Description            string          `gorm:"size:255" json:"description"`

	OrderId        *int `gorm:"index" json:"order_id"`
	OrderItemSeqId *int `json:"order_item_seq_id"`
	ShipGroupSeqId *int `json:"ship_group_seq_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
