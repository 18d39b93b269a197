package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryTransfer moves quantity of an inventory item between facilities.
// While a transfer is pending, its quantity is spoken for and caps how far a
// backorder may extend against the item.
type InventoryTransfer struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	InventoryItemId int             `gorm:"index;not null" json:"inventory_item_id"`
	FacilityId      *int            `gorm:"index" json:"facility_id"`
	FacilityIdTo    *int            `gorm:"index" json:"facility_id_to"`
	Status          TransferStatus  `gorm:"type:enum('Requested','Scheduled','InTransit','Complete','Cancelled');default:'Requested'" json:"status"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	SendDate        *time.Time      `json:"send_date"`
	ReceiveDate     *time.Time      `json:"receive_date"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
