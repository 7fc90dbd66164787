package services

import (
	"testing"

	"crm-backend/models"
	"crm-backend/utils"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		ok       bool
	}{
		{models.OrderPending, models.OrderConfirmed, true},
		{models.OrderPending, models.OrderCompleted, true},
		{models.OrderConfirmed, models.OrderInProgress, true},
		{models.OrderInProgress, models.OrderPending, false},
		{models.OrderCompleted, models.OrderCompleted, true},
		{models.OrderCompleted, models.OrderCancelled, false},
		{models.OrderCancelled, models.OrderPending, false},
		{models.OrderInProgress, models.OrderCancelled, true},
		{models.OrderConfirmed, models.OrderOnHold, true},
		{models.OrderOnHold, models.OrderInProgress, true},
		{models.OrderOnHold, models.OrderPending, true},
		{models.OrderOnHold, models.OrderCompleted, false},
		{models.OrderOnHold, models.OrderCancelled, true},
		{models.OrderPending, models.OrderStatus("shipped"), false},
	}

	for _, tt := range tests {
		err := CheckTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
			continue
		}
		if assert.Error(t, err, "%s -> %s", tt.from, tt.to) {
			assert.Equal(t, utils.KindValidation, utils.KindOf(err))
		}
	}
}

func TestApplyStatusStampsDelivery(t *testing.T) {
	order := &models.Order{Status: models.OrderInProgress}
	applyStatus(order, models.OrderCompleted, testNow)

	if assert.NotNil(t, order.ActualDeliveryDate) {
		assert.True(t, order.ActualDeliveryDate.Equal(testNow))
	}

	earlier := testNow.AddDate(0, 0, -2)
	order = &models.Order{Status: models.OrderInProgress, ActualDeliveryDate: &earlier}
	applyStatus(order, models.OrderCompleted, testNow)
	assert.True(t, order.ActualDeliveryDate.Equal(earlier))
}
