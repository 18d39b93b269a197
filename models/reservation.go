package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemReservation binds one order line (order + item sequence + ship group)
// to one inventory item. Cancellation is soft: rebalancing and re-reservation
// cancel rows and create replacements, the history stays queryable.
type ItemReservation struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;not null" json:"business_id"`

	OrderId        int `gorm:"index:idx_res_order_line,priority:1;not null" json:"order_id"`
	OrderItemSeqId int `gorm:"index:idx_res_order_line,priority:2;not null" json:"order_item_seq_id"`
	ShipGroupSeqId int `gorm:"index:idx_res_order_line,priority:3;not null" json:"ship_group_seq_id"`

	InventoryItemId int `gorm:"index;not null" json:"inventory_item_id"`

	Quantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	// QuantityNotAvailable is the explicitly backordered portion of Quantity:
	// promised beyond what was physically on hand when the reservation was taken.
	QuantityNotAvailable decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_not_available"`

	ReservedAt       time.Time     `gorm:"index;not null" json:"reserved_at"`
	PromisedShipDate *time.Time    `json:"promised_ship_date"`
	Policy           ReservePolicy `gorm:"size:20;default:'FIFO_REC'" json:"policy"`

	// SequenceId breaks ties between reservations taken at the same instant.
	// Nil sorts last.
	SequenceId *int64 `gorm:"index" json:"sequence_id"`
	IsPriority *bool  `gorm:"not null;default:false" json:"is_priority"`

	CancelledAt *time.Time `gorm:"index" json:"cancelled_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *ItemReservation) Active() bool {
	return r.CancelledAt == nil
}

// SameOrderLine matches by value on the composite order-line key.
func (r *ItemReservation) SameOrderLine(orderId, orderItemSeqId, shipGroupSeqId int) bool {
	return r.OrderId == orderId &&
		r.OrderItemSeqId == orderItemSeqId &&
		r.ShipGroupSeqId == shipGroupSeqId
}
