package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderOnHold     OrderStatus = "on_hold"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderInProgress, OrderCompleted, OrderCancelled, OrderOnHold:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefunded      PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPartiallyPaid, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

type OrderSource string

const (
	SourceWhatsApp  OrderSource = "whatsapp"
	SourceWebsite   OrderSource = "website"
	SourcePhone     OrderSource = "phone"
	SourceEmail     OrderSource = "email"
	SourceFacebook  OrderSource = "facebook"
	SourceInstagram OrderSource = "instagram"
	SourceDirect    OrderSource = "direct"
)

func (s OrderSource) Valid() bool {
	switch s {
	case SourceWhatsApp, SourceWebsite, SourcePhone, SourceEmail, SourceFacebook, SourceInstagram, SourceDirect:
		return true
	}
	return false
}

type Order struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OrderNumber string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_number"`
	CustomerID  uint      `gorm:"index;not null" json:"customer_id"`
	Customer    *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	Status        OrderStatus   `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);index;not null;default:'unpaid'" json:"payment_status"`
	Source        OrderSource   `gorm:"type:varchar(20);not null;default:'whatsapp'" json:"source"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"paid_amount"`

	OrderDate            time.Time  `gorm:"index" json:"order_date"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time `json:"actual_delivery_date"`

	Notes                string `gorm:"type:text" json:"notes"`
	CustomerRequirements string `gorm:"type:text" json:"customer_requirements"`
	InternalNotes        string `gorm:"type:text" json:"internal_notes"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	Timestamps
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// RemainingAmount is the unpaid part of the total, never negative.
func (o *Order) RemainingAmount() decimal.Decimal {
	rest := o.Total.Sub(o.PaidAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

func (o *Order) IsFullyPaid() bool {
	return o.PaidAmount.GreaterThanOrEqual(o.Total)
}
