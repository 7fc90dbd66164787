package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is a catalog entry an order item can be priced from.
type Service struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	Name                  string          `gorm:"not null" json:"name"`
	Description           string          `gorm:"type:text" json:"description"`
	BasePrice             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"base_price"`
	Category              string          `gorm:"default:'General'" json:"category"`
	EstimatedDeliveryDays int             `gorm:"default:0" json:"estimated_delivery_days"`
	IsActive              bool            `gorm:"not null" json:"is_active"`

	Timestamps
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
