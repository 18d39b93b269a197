package models

import (
	"time"
)

type PickList struct {
	ID            int            `gorm:"primary_key" json:"id"`
	BusinessId    string         `gorm:"index;not null" json:"business_id"`
	FacilityId    int            `gorm:"index;not null" json:"facility_id"`
	CurrentStatus PickListStatus `gorm:"type:enum('Input','Assigned','Picked','Cancelled');default:'Input'" json:"current_status"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// PickListItem commits one reservation to a physical pick. A reservation on
// an open pick list is excluded from rebalancing: the stock is already being
// walked to.
type PickListItem struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"index;not null" json:"business_id"`
	PickListId int    `gorm:"index;not null" json:"pick_list_id"`

	OrderId         int `gorm:"index:idx_pick_order_line,priority:1;not null" json:"order_id"`
	OrderItemSeqId  int `gorm:"index:idx_pick_order_line,priority:2;not null" json:"order_item_seq_id"`
	ShipGroupSeqId  int `gorm:"index:idx_pick_order_line,priority:3;not null" json:"ship_group_seq_id"`
	InventoryItemId int `gorm:"index;not null" json:"inventory_item_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
