package services

import (
	"context"
	"fmt"

	"crm-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStats struct {
	TotalOrders        int64            `json:"total_orders"`
	ByStatus           map[string]int64 `json:"by_status"`
	ByPaymentStatus    map[string]int64 `json:"by_payment_status"`
	BySource           map[string]int64 `json:"by_source"`
	TotalRevenue       decimal.Decimal  `json:"total_revenue"`
	PendingRevenue     decimal.Decimal  `json:"pending_revenue"`
	OutstandingBalance decimal.Decimal  `json:"outstanding_balance"`
}

// CustomerSummary is computed from the customer's live orders on every read.
type CustomerSummary struct {
	CustomerID      uint            `json:"customer_id"`
	TotalOrders     int64           `json:"total_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	CompletedOrders int64           `json:"completed_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	UnpaidAmount    decimal.Decimal `json:"unpaid_amount"`
}

type groupCount struct {
	GroupKey string
	Count    int64
}

// Stats aggregates live orders. Revenue counts paid orders only, pending
// revenue the totals of unpaid ones, and the outstanding balance whatever is
// still owed on orders that are neither cancelled nor refunded.
func (l *OrderLedger) Stats(ctx context.Context) (*OrderStats, error) {
	db := l.db.WithContext(ctx)
	stats := &OrderStats{}

	if err := db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}

	var err error
	if stats.ByStatus, err = countBy(db, "status"); err != nil {
		return nil, err
	}
	if stats.ByPaymentStatus, err = countBy(db, "payment_status"); err != nil {
		return nil, err
	}
	if stats.BySource, err = countBy(db, "source"); err != nil {
		return nil, err
	}

	if stats.TotalRevenue, err = sumOrders(db, "total", "payment_status = ?", models.PaymentPaid); err != nil {
		return nil, err
	}
	if stats.PendingRevenue, err = sumOrders(db, "total", "payment_status = ?", models.PaymentUnpaid); err != nil {
		return nil, err
	}
	if stats.OutstandingBalance, err = sumOrders(db, "total - paid_amount",
		"total > paid_amount AND status <> ? AND payment_status <> ?",
		models.OrderCancelled, models.PaymentRefunded); err != nil {
		return nil, err
	}
	return stats, nil
}

// CustomerSummary returns order counts and money totals for one customer.
func (l *OrderLedger) CustomerSummary(ctx context.Context, customerID uint) (*CustomerSummary, error) {
	db := l.db.WithContext(ctx)
	if err := ensureCustomer(db, customerID); err != nil {
		return nil, err
	}

	summary := &CustomerSummary{CustomerID: customerID}
	orders := func() *gorm.DB {
		return db.Model(&models.Order{}).Where("customer_id = ?", customerID)
	}

	if err := orders().Count(&summary.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := orders().Where("status = ?", models.OrderPending).Count(&summary.PendingOrders).Error; err != nil {
		return nil, err
	}
	if err := orders().Where("status = ?", models.OrderCompleted).Count(&summary.CompletedOrders).Error; err != nil {
		return nil, err
	}

	var err error
	if summary.TotalSpent, err = sumOrders(orders(), "paid_amount", "payment_status <> ?", models.PaymentRefunded); err != nil {
		return nil, err
	}
	if summary.UnpaidAmount, err = sumOrders(orders(), "total - paid_amount",
		"total > paid_amount AND status <> ? AND payment_status <> ?",
		models.OrderCancelled, models.PaymentRefunded); err != nil {
		return nil, err
	}
	return summary, nil
}

func countBy(db *gorm.DB, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := db.Model(&models.Order{}).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count orders by %s: %w", column, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Count
	}
	return out, nil
}

func sumOrders(db *gorm.DB, expr, where string, args ...any) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := db.Model(&models.Order{}).
		Select("COALESCE(SUM("+expr+"), 0)").
		Where(where, args...).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum orders %s: %w", expr, err)
	}
	return sum.Round(2), nil
}
