// services/order_ledger.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-backend/models"
	"crm-backend/utils"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultOrderNumberAttempts = 3

// OrderLedger owns order totals, payment status, order numbers and the item
// mutations that feed them. Every mutating call runs in one transaction and
// recomputes the order before committing.
type OrderLedger struct {
	db        *gorm.DB
	sequencer OrderSequencer
	events    EventPublisher
	now       func() time.Time
	attempts  int
}

type LedgerOption func(*OrderLedger)

func WithSequencer(s OrderSequencer) LedgerOption {
	return func(l *OrderLedger) { l.sequencer = s }
}

func WithPublisher(p EventPublisher) LedgerOption {
	return func(l *OrderLedger) { l.events = p }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(l *OrderLedger) { l.now = now }
}

// WithOrderNumberAttempts bounds the retries on order number collisions.
func WithOrderNumberAttempts(n int) LedgerOption {
	return func(l *OrderLedger) {
		if n > 0 {
			l.attempts = n
		}
	}
}

func NewOrderLedger(db *gorm.DB, opts ...LedgerOption) *OrderLedger {
	l := &OrderLedger{
		db:        db,
		sequencer: LastNumberSequencer{},
		events:    NoopPublisher{},
		now:       time.Now,
		attempts:  defaultOrderNumberAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// timestamp is truncated so it round-trips through the database unchanged.
func (l *OrderLedger) timestamp() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

// GenerateOrderNumber returns a candidate number for an order created at at.
func (l *OrderLedger) GenerateOrderNumber(ctx context.Context, tx *gorm.DB, at time.Time) (string, error) {
	period := OrderPeriod(at)
	seq, err := l.sequencer.Next(ctx, tx, period)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(period, seq), nil
}

// RecomputeTotals reloads the live items of order and persists subtotal, tax,
// total and payment status. Calling it twice without changes is a no-op.
func (l *OrderLedger) RecomputeTotals(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	var items []models.OrderItem
	if err := tx.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Order("id").
		Find(&items).Error; err != nil {
		return fmt.Errorf("load items of order %d: %w", order.ID, err)
	}

	applyTotals(order, items)
	if err := tx.WithContext(ctx).Model(order).
		Select("subtotal", "tax_amount", "total", "payment_status").
		Updates(order).Error; err != nil {
		return fmt.Errorf("save totals of order %d: %w", order.ID, err)
	}
	order.Items = items
	return nil
}

// Recompute recalculates one order in its own transaction.
func (l *OrderLedger) Recompute(ctx context.Context, orderID uint) (*models.Order, error) {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		return l.RecomputeTotals(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(ctx, orderID)
}

// GetOrder loads an order with its customer and live items.
func (l *OrderLedger) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := l.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Service").
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("order %d not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderFilter narrows ListOrders. Zero values match everything; Until is
// exclusive.
type OrderFilter struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	Source        models.OrderSource
	CustomerID    uint
	From          *time.Time
	Until         *time.Time
}

// ListOrders returns live orders, newest first, with their customers.
func (l *OrderLedger) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := l.db.WithContext(ctx).Preload("Customer").Order("order_date DESC, id DESC")
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		query = query.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.Source != "" {
		query = query.Where("source = ?", f.Source)
	}
	if f.CustomerID != 0 {
		query = query.Where("customer_id = ?", f.CustomerID)
	}
	if f.From != nil {
		query = query.Where("order_date >= ?", *f.From)
	}
	if f.Until != nil {
		query = query.Where("order_date < ?", *f.Until)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder persists an order and its items atomically. A collision on the
// order number restarts the whole transaction with a fresh number.
func (l *OrderLedger) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		orderID, err := l.createOrderOnce(ctx, in)
		if err == nil {
			order, err := l.GetOrder(ctx, orderID)
			if err != nil {
				return nil, err
			}
			l.publish(ctx, RKOrderCreated, order)
			return order, nil
		}
		if !isDuplicateKey(err) {
			return nil, err
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("order number collision, retrying")
	}
	return nil, utils.Conflict(lastErr, "could not allocate a unique order number after %d attempts", l.attempts)
}

func (l *OrderLedger) createOrderOnce(ctx context.Context, in CreateOrderInput) (uint, error) {
	var orderID uint
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCustomer(tx, in.CustomerID); err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(in.Items))
		for _, itemIn := range in.Items {
			item, err := buildItem(tx, itemIn)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		now := l.timestamp()
		number, err := l.GenerateOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		order := models.Order{
			OrderNumber:          number,
			CustomerID:           in.CustomerID,
			Status:               models.OrderPending,
			PaymentStatus:        models.PaymentUnpaid,
			Source:               in.Source,
			Total:                decimal.Zero,
			OrderDate:            now,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
			Notes:                in.Notes,
			CustomerRequirements: in.CustomerRequirements,
			InternalNotes:        in.InternalNotes,
		}
		if in.TaxRate != nil {
			order.TaxRate = *in.TaxRate
		}
		if in.DiscountAmount != nil {
			order.DiscountAmount = *in.DiscountAmount
		}
		if in.Status != "" {
			applyStatus(&order, in.Status, now)
		}

		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return fmt.Errorf("create items: %w", err)
		}

		orderID = order.ID
		return l.RecomputeTotals(ctx, tx, &order)
	})
	return orderID, err
}

// UpdateOrderFields applies a partial update. Totals are recomputed when the
// tax rate or discount changes.
func (l *OrderLedger) UpdateOrderFields(ctx context.Context, orderID uint, patch OrderPatch) (*models.Order, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	statusChanged := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}

		if patch.CustomerID != nil && *patch.CustomerID != order.CustomerID {
			if err := ensureCustomer(tx, *patch.CustomerID); err != nil {
				return err
			}
			order.CustomerID = *patch.CustomerID
		}
		if patch.Source != nil {
			order.Source = *patch.Source
		}
		if patch.TaxRate != nil {
			order.TaxRate = *patch.TaxRate
		}
		if patch.DiscountAmount != nil {
			order.DiscountAmount = *patch.DiscountAmount
		}
		if patch.ExpectedDeliveryDate != nil {
			order.ExpectedDeliveryDate = patch.ExpectedDeliveryDate
		}
		if patch.ActualDeliveryDate != nil {
			order.ActualDeliveryDate = patch.ActualDeliveryDate
		}
		if patch.Notes != nil {
			order.Notes = *patch.Notes
		}
		if patch.CustomerRequirements != nil {
			order.CustomerRequirements = *patch.CustomerRequirements
		}
		if patch.InternalNotes != nil {
			order.InternalNotes = *patch.InternalNotes
		}
		if patch.Status != nil && *patch.Status != order.Status {
			if err := CheckTransition(order.Status, *patch.Status); err != nil {
				return err
			}
			applyStatus(order, *patch.Status, l.timestamp())
			statusChanged = true
		}

		if err := tx.Model(order).Select(
			"customer_id", "source", "status", "tax_rate", "discount_amount",
			"expected_delivery_date", "actual_delivery_date",
			"notes", "customer_requirements", "internal_notes",
		).Updates(order).Error; err != nil {
			return err
		}

		if patch.affectsTotals() {
			return l.RecomputeTotals(ctx, tx, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if statusChanged {
		l.publish(ctx, RKOrderStatusChanged, order)
	}
	return order, nil
}

// SetStatus moves the order to status, enforcing the transition rules.
func (l *OrderLedger) SetStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error) {
	changed := false
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if err := CheckTransition(order.Status, status); err != nil {
			return err
		}
		if order.Status == status {
			return nil
		}
		applyStatus(order, status, l.timestamp())
		changed = true
		return tx.Model(order).Select("status", "actual_delivery_date").Updates(order).Error
	})
	if err != nil {
		return nil, err
	}

	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if changed {
		l.publish(ctx, RKOrderStatusChanged, order)
	}
	return order, nil
}

// SetPaymentStatus records a refund, or clears one. Any status other than
// refunded must match what paid_amount and total already imply.
func (l *OrderLedger) SetPaymentStatus(ctx context.Context, orderID uint, status models.PaymentStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, utils.FieldError("payment_status", fmt.Sprintf("unknown payment status %q", status))
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		if status != models.PaymentRefunded {
			derived := DerivePaymentStatus(order.PaidAmount, order.Total)
			if derived != status {
				return utils.FieldError("payment_status",
					fmt.Sprintf("paid amount %s of %s implies %s", order.PaidAmount.StringFixed(2), order.Total.StringFixed(2), derived))
			}
		}
		order.PaymentStatus = status
		return tx.Model(order).Select("payment_status").Updates(order).Error
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(ctx, orderID)
}

// AddPayment records a payment and recomputes the order. A new payment
// re-derives the payment status even if the order was refunded.
func (l *OrderLedger) AddPayment(ctx context.Context, orderID uint, amount decimal.Decimal) (*models.Order, error) {
	if amount.IsNegative() {
		return nil, utils.InvalidArgument("payment amount must not be negative, got %s", amount.String())
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		order.PaidAmount = order.PaidAmount.Add(amount)
		order.PaymentStatus = models.PaymentUnpaid
		if err := tx.Model(order).Select("paid_amount").Updates(order).Error; err != nil {
			return err
		}
		return l.RecomputeTotals(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	l.publish(ctx, RKOrderPaymentAdded, order)
	return order, nil
}

// ListItems returns the live items of an order.
func (l *OrderLedger) ListItems(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	if _, err := findOrder(l.db.WithContext(ctx), orderID); err != nil {
		return nil, err
	}
	var items []models.OrderItem
	if err := l.db.WithContext(ctx).Preload("Service").
		Where("order_id = ?", orderID).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem appends a line to the order and recomputes it.
func (l *OrderLedger) AddItem(ctx context.Context, orderID uint, in ItemInput) (*models.OrderItem, *models.Order, error) {
	fields := map[string]string{}
	in.validate("", fields)
	if verr := utils.ValidationFailed(fields); verr != nil {
		return nil, nil, verr
	}

	var itemID uint
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		item, err := buildItem(tx, in)
		if err != nil {
			return err
		}
		item.OrderID = order.ID
		if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
			return err
		}
		itemID = item.ID
		return l.RecomputeTotals(ctx, tx, order)
	})
	if err != nil {
		return nil, nil, err
	}
	return l.itemSnapshot(ctx, orderID, itemID)
}

// UpdateItem changes an item and recomputes its order.
func (l *OrderLedger) UpdateItem(ctx context.Context, orderID, itemID uint, patch ItemPatch) (*models.OrderItem, *models.Order, error) {
	if err := patch.validate(); err != nil {
		return nil, nil, err
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		item, err := findItem(tx, orderID, itemID)
		if err != nil {
			return err
		}
		patch.apply(item)
		if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
			return err
		}
		return l.RecomputeTotals(ctx, tx, order)
	})
	if err != nil {
		return nil, nil, err
	}
	return l.itemSnapshot(ctx, orderID, itemID)
}

// DeleteItem soft-deletes an item and recomputes its order.
func (l *OrderLedger) DeleteItem(ctx context.Context, orderID, itemID uint) (*models.Order, error) {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		item, err := findItem(tx, orderID, itemID)
		if err != nil {
			return err
		}
		if err := tx.Delete(item).Error; err != nil {
			return err
		}
		return l.RecomputeTotals(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(ctx, orderID)
}

// UpdateItemProgress records work progress on an item. Prices are untouched,
// so the order is not recomputed.
func (l *OrderLedger) UpdateItemProgress(ctx context.Context, orderID, itemID uint, percentage int) (*models.OrderItem, error) {
	var item *models.OrderItem
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOrder(tx, orderID); err != nil {
			return err
		}
		var err error
		item, err = findItem(tx, orderID, itemID)
		if err != nil {
			return err
		}
		ApplyProgress(item, percentage, l.timestamp())
		return tx.Model(item).
			Select("progress_percentage", "status", "start_date", "end_date").
			Updates(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SetItemStatus changes the work status of one item.
func (l *OrderLedger) SetItemStatus(ctx context.Context, orderID, itemID uint, status models.ItemStatus) (*models.OrderItem, error) {
	if !status.Valid() {
		return nil, utils.FieldError("status", fmt.Sprintf("unknown status %q", status))
	}

	var item *models.OrderItem
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOrder(tx, orderID); err != nil {
			return err
		}
		var err error
		item, err = findItem(tx, orderID, itemID)
		if err != nil {
			return err
		}
		item.Status = status
		return tx.Model(item).Select("status").Updates(item).Error
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteOrder soft-deletes the order together with its live items.
func (l *OrderLedger) DeleteOrder(ctx context.Context, orderID uint) error {
	var snapshot *models.Order
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		now := l.timestamp()
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ?", order.ID).
			Update("deleted_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(order).Update("deleted_at", now).Error; err != nil {
			return err
		}
		snapshot = order
		return nil
	})
	if err != nil {
		return err
	}
	l.publish(ctx, RKOrderDeleted, snapshot)
	return nil
}

// RestoreOrder undoes DeleteOrder. Items deleted individually before the
// order stay deleted.
func (l *OrderLedger) RestoreOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Unscoped().First(&order, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("order %d not found", orderID)
		}
		if err != nil {
			return err
		}
		if !order.DeletedAt.Valid {
			return nil
		}

		deletedAt := order.DeletedAt.Time
		if err := tx.Unscoped().Model(&models.OrderItem{}).
			Where("order_id = ? AND deleted_at = ?", order.ID, deletedAt).
			Update("deleted_at", nil).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Model(&order).Update("deleted_at", nil).Error; err != nil {
			return err
		}
		order.DeletedAt = gorm.DeletedAt{}
		return l.RecomputeTotals(ctx, tx, &order)
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(ctx, orderID)
}

func (l *OrderLedger) itemSnapshot(ctx context.Context, orderID, itemID uint) (*models.OrderItem, *models.Order, error) {
	order, err := l.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return &order.Items[i], order, nil
		}
	}
	return nil, nil, utils.NotFound("order item %d not found", itemID)
}

// publish runs after commit; a broker failure never fails the request.
func (l *OrderLedger) publish(ctx context.Context, routingKey string, order *models.Order) {
	if order == nil {
		return
	}
	if err := l.events.Publish(ctx, routingKey, newOrderEvent(order, l.now())); err != nil {
		log.Error().Err(err).
			Str("routing_key", routingKey).
			Uint("order_id", order.ID).
			Msg("publish order event")
	}
}

// lockOrder loads a live order and locks its row for the rest of tx.
func lockOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	return findOrder(tx.Clauses(clause.Locking{Strength: "UPDATE"}), orderID)
}

func findOrder(tx *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	err := tx.First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("order %d not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func findItem(tx *gorm.DB, orderID, itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	err := tx.Where("order_id = ?", orderID).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("order item %d not found", itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func ensureCustomer(tx *gorm.DB, customerID uint) error {
	var count int64
	if err := tx.Model(&models.Customer{}).Where("id = ?", customerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.NotFound("customer %d not found", customerID)
	}
	return nil
}

// buildItem turns validated input into an item, prefilling price and
// description from the referenced service.
func buildItem(tx *gorm.DB, in ItemInput) (models.OrderItem, error) {
	item := models.OrderItem{
		ServiceID:      in.ServiceID,
		ItemType:       in.ItemType,
		Description:    in.Description,
		Quantity:       in.Quantity,
		Specifications: in.Specifications,
		EstimatedHours: in.EstimatedHours,
		Deliverables:   in.Deliverables,
		Status:         models.ItemPending,
	}
	if in.Status != "" {
		item.Status = in.Status
	}
	if in.UnitPrice != nil {
		item.UnitPrice = *in.UnitPrice
	}

	if in.ServiceID != nil {
		var service models.Service
		err := tx.First(&service, *in.ServiceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return item, utils.NotFound("service %d not found", *in.ServiceID)
		}
		if err != nil {
			return item, err
		}
		if in.UnitPrice == nil {
			item.UnitPrice = service.BasePrice
		}
		if item.Description == "" {
			item.Description = service.Name
		}
		if item.ItemType == "" {
			item.ItemType = "service"
		}
	}
	item.TotalPrice = item.LineTotal()
	return item, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
