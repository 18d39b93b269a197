package models

import (
	"time"
)

type Facility struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;not null" json:"business_id"`
	Name       string `gorm:"size:100;not null" json:"name"`

	// DaysToShip is the default lead time used for promised-ship dates.
	DaysToShip *int `json:"days_to_ship"`
	// DefaultReservePolicy, when set, overrides the caller-supplied policy for
	// every reservation taken against this facility.
	DefaultReservePolicy *ReservePolicy `gorm:"size:20" json:"default_reserve_policy"`

	Address  string `gorm:"type:text" json:"address"`
	IsActive *bool  `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// FacilityLocation is a physical slot within a facility. Its type decides
// which reservation search tier the stock stored there belongs to.
type FacilityLocation struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	BusinessId    string               `gorm:"index;not null" json:"business_id"`
	FacilityId    int                  `gorm:"index:idx_fac_loc,priority:1;not null" json:"facility_id"`
	LocationSeqId string               `gorm:"index:idx_fac_loc,priority:2;size:60;not null" json:"location_seq_id"`
	LocationType  FacilityLocationType `gorm:"type:enum('PRIMARY','BULK','NONE');default:'NONE'" json:"location_type"`
	Aisle         string               `gorm:"size:20" json:"aisle"`
	Section       string               `gorm:"size:20" json:"section"`
	Level         string               `gorm:"size:20" json:"level"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductFacility carries per-product overrides of facility defaults.
type ProductFacility struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;not null" json:"business_id"`
	ProductId  int    `gorm:"index:idx_product_facility,priority:1;not null" json:"product_id"`
	FacilityId int    `gorm:"index:idx_product_facility,priority:2;not null" json:"facility_id"`
	DaysToShip *int   `json:"days_to_ship"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductStoreFacility maps a store's ship-to address to the facility that
// serves it. Used to resolve the reservation facility from an order's ship group.
type ProductStoreFacility struct {
	ID             int       `gorm:"primary_key" json:"id"`
	BusinessId     string    `gorm:"index;not null" json:"business_id"`
	ProductStoreId int       `gorm:"index:idx_store_address,priority:1;not null" json:"product_store_id"`
	ContactMechId  string    `gorm:"index:idx_store_address,priority:2;size:60;not null" json:"contact_mech_id"`
	FacilityId     int       `gorm:"index;not null" json:"facility_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
