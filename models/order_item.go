package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemStatus string

const (
	ItemPending     ItemStatus = "pending"
	ItemInProgress  ItemStatus = "in_progress"
	ItemUnderReview ItemStatus = "under_review"
	ItemCompleted   ItemStatus = "completed"
	ItemCancelled   ItemStatus = "cancelled"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemInProgress, ItemUnderReview, ItemCompleted, ItemCancelled:
		return true
	}
	return false
}

type OrderItem struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	OrderID   uint     `gorm:"index;not null" json:"order_id"`
	ServiceID *uint    `gorm:"index" json:"service_id"`
	Service   *Service `gorm:"foreignKey:ServiceID" json:"service,omitempty"`

	ItemType    string          `gorm:"type:varchar(64)" json:"item_type"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`

	Specifications JSONB  `gorm:"type:jsonb" json:"specifications"`
	EstimatedHours *int   `json:"estimated_hours"`
	Deliverables   string `gorm:"type:text" json:"deliverables"`

	Status             ItemStatus `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	ProgressPercentage int        `gorm:"not null;default:0" json:"progress_percentage"`
	StartDate          *time.Time `json:"start_date"`
	EndDate            *time.Time `json:"end_date"`

	Timestamps
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeSave keeps the line total in step with quantity and price on every persist.
func (i *OrderItem) BeforeSave(tx *gorm.DB) error {
	i.TotalPrice = i.LineTotal()
	return nil
}

func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// RemainingHours returns nil when the item has no estimate.
func (i *OrderItem) RemainingHours() *int {
	if i.EstimatedHours == nil {
		return nil
	}
	done := *i.EstimatedHours * i.ProgressPercentage / 100
	rest := *i.EstimatedHours - done
	if rest < 0 {
		rest = 0
	}
	return &rest
}
