package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type ProductType string

const (
	ProductTypePhysical ProductType = "P"
	ProductTypeDigital  ProductType = "D"
	ProductTypeService  ProductType = "V"
)

// IsPhysical reports whether the product type holds stock.
// Only physical goods participate in reservation.
func (t ProductType) IsPhysical() bool {
	return t == ProductTypePhysical
}

type InventoryItemKind string

const (
	InventoryItemKindSerialized    InventoryItemKind = "S"
	InventoryItemKindNonSerialized InventoryItemKind = "N"
)

type InventoryStatus string

const (
	InventoryStatusAvailable        InventoryStatus = "Available"
	InventoryStatusPromised         InventoryStatus = "Promised"
	InventoryStatusBeingTransferred InventoryStatus = "BeingTransferred"
	InventoryStatusDefective        InventoryStatus = "Defective"
	InventoryStatusDelivered        InventoryStatus = "Delivered"
)

// ReservePolicy determines the order candidate lots are drawn from.
type ReservePolicy string

const (
	ReservePolicyFifoReceived    ReservePolicy = "FIFO_REC"
	ReservePolicyLifoReceived    ReservePolicy = "LIFO_REC"
	ReservePolicyFifoExpire      ReservePolicy = "FIFO_EXP"
	ReservePolicyLifoExpire      ReservePolicy = "LIFO_EXP"
	ReservePolicyGreaterUnitCost ReservePolicy = "GREATER_COST"
	ReservePolicyLesserUnitCost  ReservePolicy = "LESSER_COST"
)

// NormalizeReservePolicy maps a policy code to a known policy.
// Unrecognized or empty codes fall back to FIFO-by-received-date; this default
// is deliberate, not a fallthrough.
func NormalizeReservePolicy(code string) ReservePolicy {
	switch ReservePolicy(code) {
	case ReservePolicyFifoReceived:
		return ReservePolicyFifoReceived
	case ReservePolicyLifoReceived:
		return ReservePolicyLifoReceived
	case ReservePolicyFifoExpire:
		return ReservePolicyFifoExpire
	case ReservePolicyLifoExpire:
		return ReservePolicyLifoExpire
	case ReservePolicyGreaterUnitCost:
		return ReservePolicyGreaterUnitCost
	case ReservePolicyLesserUnitCost:
		return ReservePolicyLesserUnitCost
	default:
		return ReservePolicyFifoReceived
	}
}

func (p ReservePolicy) Value() (driver.Value, error) {
	return string(NormalizeReservePolicy(string(p))), nil
}

func (p *ReservePolicy) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*p = NormalizeReservePolicy(v)
	case []byte:
		*p = NormalizeReservePolicy(string(v))
	case nil:
		*p = ReservePolicyFifoReceived
	default:
		return fmt.Errorf("cannot scan %T into ReservePolicy", value)
	}
	return nil
}

// FacilityLocationType is the three-tier search scope for candidate lots.
// Reservation always tries Primary, then Bulk, then None (no fixed location).
type FacilityLocationType string

const (
	FacilityLocationTypePrimary FacilityLocationType = "PRIMARY"
	FacilityLocationTypeBulk    FacilityLocationType = "BULK"
	FacilityLocationTypeNone    FacilityLocationType = "NONE"
)

func (t *FacilityLocationType) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*t = FacilityLocationType(v)
	case []byte:
		*t = FacilityLocationType(v)
	case nil:
		*t = FacilityLocationTypeNone
	default:
		return errors.New("facility location type must be string")
	}
	return nil
}

func (t FacilityLocationType) Value() (driver.Value, error) {
	if t == "" {
		return string(FacilityLocationTypeNone), nil
	}
	return string(t), nil
}

type TransferStatus string

const (
	TransferStatusRequested TransferStatus = "Requested"
	TransferStatusScheduled TransferStatus = "Scheduled"
	TransferStatusInTransit TransferStatus = "InTransit"
	TransferStatusComplete  TransferStatus = "Complete"
	TransferStatusCancelled TransferStatus = "Cancelled"
)

// Pending reports whether the transfer still holds quantity against its item.
func (s TransferStatus) Pending() bool {
	return s == TransferStatusRequested || s == TransferStatusScheduled
}

type PickListStatus string

const (
	PickListStatusInput     PickListStatus = "Input"
	PickListStatusAssigned  PickListStatus = "Assigned"
	PickListStatusPicked    PickListStatus = "Picked"
	PickListStatusCancelled PickListStatus = "Cancelled"
)

// Open reports whether reservations on this pick list are still physically
// uncommitted (not yet picked, not cancelled).
func (s PickListStatus) Open() bool {
	return s != PickListStatusPicked && s != PickListStatusCancelled
}

// Rebalance queue statuses for RebalanceRequest.Status.
// Keep these as strings (DB values).
const (
	RebalanceStatusPending    = "PENDING"
	RebalanceStatusProcessing = "PROCESSING"
	RebalanceStatusDone       = "DONE"
	RebalanceStatusFailed     = "FAILED"
	RebalanceStatusDead       = "DEAD"
)
