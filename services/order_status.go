package services

import (
	"fmt"
	"time"

	"crm-backend/models"
	"crm-backend/utils"
)

// Position along pending -> confirmed -> in_progress -> completed.
var statusRank = map[models.OrderStatus]int{
	models.OrderPending:    0,
	models.OrderConfirmed:  1,
	models.OrderInProgress: 2,
	models.OrderCompleted:  3,
}

// CheckTransition validates an order status change. Orders move forward along
// the main path, may be cancelled or put on hold from any non-terminal state,
// and resume from hold to any non-terminal main-path state.
func CheckTransition(from, to models.OrderStatus) error {
	if !to.Valid() {
		return utils.FieldError("status", fmt.Sprintf("unknown status %q", to))
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return utils.FieldError("status", fmt.Sprintf("order is %s and cannot change status", from))
	}
	switch {
	case to == models.OrderCancelled || to == models.OrderOnHold:
		return nil
	case from == models.OrderOnHold:
		if to == models.OrderCompleted {
			return utils.FieldError("status", "order on hold must be resumed before completion")
		}
		return nil
	case statusRank[to] > statusRank[from]:
		return nil
	}
	return utils.FieldError("status", fmt.Sprintf("cannot move order from %s back to %s", from, to))
}

// applyStatus sets the status and stamps the delivery date on completion.
func applyStatus(order *models.Order, to models.OrderStatus, now time.Time) {
	order.Status = to
	if to == models.OrderCompleted && order.ActualDeliveryDate == nil {
		order.ActualDeliveryDate = &now
	}
}
