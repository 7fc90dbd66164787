package services

import (
	"time"

	"crm-backend/models"
)

// ApplyProgress clamps percentage to [0,100] and moves the item status along
// with it. It never touches prices.
func ApplyProgress(item *models.OrderItem, percentage int, now time.Time) {
	switch {
	case percentage < 0:
		percentage = 0
	case percentage > 100:
		percentage = 100
	}
	item.ProgressPercentage = percentage

	if percentage == 100 {
		item.Status = models.ItemCompleted
		item.EndDate = &now
		return
	}
	if percentage > 0 && item.Status == models.ItemPending {
		item.Status = models.ItemInProgress
		if item.StartDate == nil {
			item.StartDate = &now
		}
	}
}
