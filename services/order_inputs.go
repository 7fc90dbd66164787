package services

import (
	"fmt"
	"time"

	"crm-backend/models"
	"crm-backend/utils"

	"github.com/shopspring/decimal"
)

// ItemInput describes a new order line. Either ServiceID or both Description
// and UnitPrice must be given; a service fills in what is missing.
type ItemInput struct {
	ServiceID      *uint             `json:"service_id"`
	ItemType       string            `json:"item_type"`
	Description    string            `json:"description"`
	Quantity       int               `json:"quantity"`
	UnitPrice      *decimal.Decimal  `json:"unit_price"`
	Specifications models.JSONB      `json:"specifications"`
	EstimatedHours *int              `json:"estimated_hours"`
	Deliverables   string            `json:"deliverables"`
	Status         models.ItemStatus `json:"status"`
}

func (in ItemInput) validate(prefix string, fields map[string]string) {
	if in.Quantity < 1 {
		fields[prefix+"quantity"] = "must be at least 1"
	}
	if in.UnitPrice == nil {
		if in.ServiceID == nil {
			fields[prefix+"unit_price"] = "is required"
		}
	} else if in.UnitPrice.IsNegative() {
		fields[prefix+"unit_price"] = "must not be negative"
	}
	if in.Description == "" && in.ServiceID == nil {
		fields[prefix+"description"] = "is required"
	}
	if in.Status != "" && !in.Status.Valid() {
		fields[prefix+"status"] = fmt.Sprintf("unknown status %q", in.Status)
	}
	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		fields[prefix+"estimated_hours"] = "must not be negative"
	}
}

// ItemPatch is a partial item update; nil fields are left alone.
type ItemPatch struct {
	ItemType       *string            `json:"item_type"`
	Description    *string            `json:"description"`
	Quantity       *int               `json:"quantity"`
	UnitPrice      *decimal.Decimal   `json:"unit_price"`
	Specifications models.JSONB       `json:"specifications"`
	EstimatedHours *int               `json:"estimated_hours"`
	Deliverables   *string            `json:"deliverables"`
	Status         *models.ItemStatus `json:"status"`
}

func (p ItemPatch) validate() error {
	fields := map[string]string{}
	if p.Quantity != nil && *p.Quantity < 1 {
		fields["quantity"] = "must be at least 1"
	}
	if p.UnitPrice != nil && p.UnitPrice.IsNegative() {
		fields["unit_price"] = "must not be negative"
	}
	if p.Description != nil && *p.Description == "" {
		fields["description"] = "must not be empty"
	}
	if p.Status != nil && !p.Status.Valid() {
		fields["status"] = fmt.Sprintf("unknown status %q", *p.Status)
	}
	if p.EstimatedHours != nil && *p.EstimatedHours < 0 {
		fields["estimated_hours"] = "must not be negative"
	}
	if verr := utils.ValidationFailed(fields); verr != nil {
		return verr
	}
	return nil
}

func (p ItemPatch) apply(item *models.OrderItem) {
	if p.ItemType != nil {
		item.ItemType = *p.ItemType
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.UnitPrice != nil {
		item.UnitPrice = *p.UnitPrice
	}
	if p.Specifications != nil {
		item.Specifications = p.Specifications
	}
	if p.EstimatedHours != nil {
		item.EstimatedHours = p.EstimatedHours
	}
	if p.Deliverables != nil {
		item.Deliverables = *p.Deliverables
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
}

type CreateOrderInput struct {
	CustomerID           uint               `json:"customer_id"`
	Source               models.OrderSource `json:"source"`
	Status               models.OrderStatus `json:"status"`
	TaxRate              *decimal.Decimal   `json:"tax_rate"`
	DiscountAmount       *decimal.Decimal   `json:"discount_amount"`
	ExpectedDeliveryDate *time.Time         `json:"expected_delivery_date"`
	Notes                string             `json:"notes"`
	CustomerRequirements string             `json:"customer_requirements"`
	InternalNotes        string             `json:"internal_notes"`
	Items                []ItemInput        `json:"items"`
}

func (in CreateOrderInput) validate() error {
	fields := map[string]string{}
	if in.CustomerID == 0 {
		fields["customer_id"] = "is required"
	}
	if in.Source == "" {
		fields["source"] = "is required"
	} else if !in.Source.Valid() {
		fields["source"] = fmt.Sprintf("unknown source %q", in.Source)
	}
	if in.Status != "" && !in.Status.Valid() {
		fields["status"] = fmt.Sprintf("unknown status %q", in.Status)
	}
	validateTaxRate(in.TaxRate, fields)
	validateDiscount(in.DiscountAmount, fields)
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, item := range in.Items {
		item.validate(fmt.Sprintf("items.%d.", i), fields)
	}
	if verr := utils.ValidationFailed(fields); verr != nil {
		return verr
	}
	return nil
}

// OrderPatch is a partial order update; nil fields are left alone.
type OrderPatch struct {
	CustomerID           *uint               `json:"customer_id"`
	Source               *models.OrderSource `json:"source"`
	Status               *models.OrderStatus `json:"status"`
	TaxRate              *decimal.Decimal    `json:"tax_rate"`
	DiscountAmount       *decimal.Decimal    `json:"discount_amount"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date"`
	ActualDeliveryDate   *time.Time          `json:"actual_delivery_date"`
	Notes                *string             `json:"notes"`
	CustomerRequirements *string             `json:"customer_requirements"`
	InternalNotes        *string             `json:"internal_notes"`
}

func (p OrderPatch) validate() error {
	fields := map[string]string{}
	if p.CustomerID != nil && *p.CustomerID == 0 {
		fields["customer_id"] = "must not be zero"
	}
	if p.Source != nil && !p.Source.Valid() {
		fields["source"] = fmt.Sprintf("unknown source %q", *p.Source)
	}
	if p.Status != nil && !p.Status.Valid() {
		fields["status"] = fmt.Sprintf("unknown status %q", *p.Status)
	}
	validateTaxRate(p.TaxRate, fields)
	validateDiscount(p.DiscountAmount, fields)
	if verr := utils.ValidationFailed(fields); verr != nil {
		return verr
	}
	return nil
}

// affectsTotals reports whether the patch changes an input of the total.
func (p OrderPatch) affectsTotals() bool {
	return p.TaxRate != nil || p.DiscountAmount != nil
}

func validateTaxRate(rate *decimal.Decimal, fields map[string]string) {
	if rate == nil {
		return
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		fields["tax_rate"] = "must be between 0 and 100"
	}
}

func validateDiscount(discount *decimal.Decimal, fields map[string]string) {
	if discount != nil && discount.IsNegative() {
		fields["discount_amount"] = "must not be negative"
	}
}
