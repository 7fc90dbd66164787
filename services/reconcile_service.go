// services/reconcile_service.go
package services

import (
	"context"
	"time"

	"crm-backend/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const reconcileBatchSize = 100

// ReconcileService periodically re-runs the totals computation over every live
// order and repairs rows whose stored money columns drifted.
type ReconcileService struct {
	ledger *OrderLedger
	cron   *cron.Cron
}

func NewReconcileService(ledger *OrderLedger) *ReconcileService {
	return &ReconcileService{ledger: ledger}
}

// StartScheduler registers the sweep under schedule (standard 5-field cron).
// An empty schedule leaves the job disabled.
func (s *ReconcileService) StartScheduler(schedule string) error {
	if schedule == "" {
		log.Info().Msg("Order reconciliation disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.ReconcileAll(ctx); err != nil {
			log.Error().Err(err).Msg("Order reconciliation failed")
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c

	log.Info().Str("schedule", schedule).Msg("Order reconciliation scheduler started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ReconcileService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// ReconcileAll returns the number of orders that had to be repaired.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (int, error) {
	log.Info().Msg("Starting order reconciliation...")

	var (
		orders   []models.Order
		repaired int
		failed   int
	)
	result := s.ledger.db.WithContext(ctx).
		Select("id").
		FindInBatches(&orders, reconcileBatchSize, func(_ *gorm.DB, _ int) error {
			for _, o := range orders {
				fixed, err := s.reconcileOrder(ctx, o.ID)
				if err != nil {
					failed++
					log.Error().Err(err).Uint("order_id", o.ID).Msg("Failed to reconcile order")
					continue
				}
				if fixed {
					repaired++
				}
			}
			return ctx.Err()
		})
	if result.Error != nil {
		return repaired, result.Error
	}

	log.Info().Int("repaired", repaired).Int("failed", failed).Msg("Order reconciliation completed")
	return repaired, nil
}

func (s *ReconcileService) reconcileOrder(ctx context.Context, orderID uint) (bool, error) {
	fixed := false
	err := s.ledger.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		stored := *order

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return err
		}
		applyTotals(order, items)
		if !drifted(&stored, order) {
			return nil
		}

		log.Warn().
			Uint("order_id", order.ID).
			Str("stored_total", stored.Total.StringFixed(2)).
			Str("computed_total", order.Total.StringFixed(2)).
			Msg("Order totals drifted, repairing")
		fixed = true
		return s.ledger.RecomputeTotals(ctx, tx, order)
	})
	return fixed, err
}

func drifted(stored, computed *models.Order) bool {
	return !stored.Subtotal.Equal(computed.Subtotal) ||
		!stored.TaxAmount.Equal(computed.TaxAmount) ||
		!stored.Total.Equal(computed.Total) ||
		stored.PaymentStatus != computed.PaymentStatus
}
