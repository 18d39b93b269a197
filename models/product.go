package models

import (
	"time"
)

type Product struct {
	ID          int         `gorm:"primary_key" json:"id"`
	BusinessId  string      `gorm:"index;not null" json:"business_id"`
	Name        string      `gorm:"size:100;not null" json:"name"`
	Sku         string      `gorm:"size:100" json:"sku"`
	ProductType ProductType `gorm:"type:enum('P','D','V');default:'P'" json:"product_type"`
	UnitId      int         `gorm:"index" json:"unit_id"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsPhysical reports whether this product holds stock. Digital goods and
// services are always fully satisfiable with nothing to reserve.
func (p *Product) IsPhysical() bool {
	return p.ProductType.IsPhysical()
}
