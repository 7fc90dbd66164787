package services

import (
	"crm-backend/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals is the derived money state of one order.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals sums the given items and applies a percentage tax and a flat
// discount. Items must already exclude soft-deleted rows. Negative totals are
// returned as-is.
func ComputeTotals(items []models.OrderItem, taxRate, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for i := range items {
		subtotal = subtotal.Add(items[i].LineTotal())
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax).Sub(discount),
	}
}

// DerivePaymentStatus classifies how much of total has been paid. Covering
// the total wins, so an order whose total is zero or negative counts as paid
// even when nothing was paid.
func DerivePaymentStatus(paid, total decimal.Decimal) models.PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.PaymentPaid
	case !paid.IsPositive():
		return models.PaymentUnpaid
	default:
		return models.PaymentPartiallyPaid
	}
}

// applyTotals writes the derived fields onto order. A refunded order keeps its
// payment status.
func applyTotals(order *models.Order, items []models.OrderItem) {
	t := ComputeTotals(items, order.TaxRate, order.DiscountAmount)
	order.Subtotal = t.Subtotal
	order.TaxAmount = t.TaxAmount
	order.Total = t.Total
	if order.PaymentStatus != models.PaymentRefunded {
		order.PaymentStatus = DerivePaymentStatus(order.PaidAmount, order.Total)
	}
}
