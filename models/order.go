package models

import (
	"time"
)

// OrderHeader is the narrow slice of the order domain this service reads:
// the placement date (promised-ship computation) and the product store
// (address-based facility resolution). Order lifecycle lives elsewhere.
type OrderHeader struct {
	ID             int       `gorm:"primary_key" json:"id"`
	BusinessId     string    `gorm:"index;not null" json:"business_id"`
	OrderDate      time.Time `gorm:"not null" json:"order_date"`
	ProductStoreId *int      `gorm:"index" json:"product_store_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderShipGroup groups order lines shipping together to one address.
type OrderShipGroup struct {
	ID             int     `gorm:"primary_key" json:"id"`
	BusinessId     string  `gorm:"index;not null" json:"business_id"`
	OrderId        int     `gorm:"index:idx_ship_group,priority:1;not null" json:"order_id"`
	ShipGroupSeqId int     `gorm:"index:idx_ship_group,priority:2;not null" json:"ship_group_seq_id"`
	ContactMechId  *string `gorm:"size:60" json:"contact_mech_id"`
	FacilityId     *int    `gorm:"index" json:"facility_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
