package models

import (
	"time"
)

// RebalanceRequest is one queued unit of rebalancing work. Stock corrections
// enqueue a row; the dispatcher claims rows and replays the item's reservation
// history. Rows are append-only work records with retry bookkeeping, in the
// same shape as the accounting outbox this codebase grew up with.
type RebalanceRequest struct {
	ID              int    `gorm:"primary_key" json:"id"`
	BusinessId      string `gorm:"index;not null" json:"business_id"`
	InventoryItemId int    `gorm:"index;not null" json:"inventory_item_id"`

	// Optional order line guaranteed to win scarce stock during this rebalance.
	PriorityOrderId        *int `json:"priority_order_id"`
	PriorityOrderItemSeqId *int `json:"priority_order_item_seq_id"`
	PriorityShipGroupSeqId *int `json:"priority_ship_group_seq_id"`

	Status        string     `gorm:"size:20;index;not null;default:'PENDING'" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      *string    `gorm:"size:64" json:"locked_by"`
	ProcessedAt   *time.Time `json:"processed_at"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
