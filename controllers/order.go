// controllers/order.go
package controllers

import (
	"net/http"
	"strconv"
	"time"

	"crm-backend/models"
	"crm-backend/services"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// OrderController exposes the order ledger over HTTP.
type OrderController struct {
	Ledger *services.OrderLedger
}

type orderView struct {
	*models.Order
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Items           []itemView      `json:"items,omitempty"`
}

type itemView struct {
	*models.OrderItem
	RemainingHours *int `json:"remaining_hours"`
}

func newOrderView(o *models.Order) orderView {
	v := orderView{Order: o, RemainingAmount: o.RemainingAmount()}
	for i := range o.Items {
		v.Items = append(v.Items, newItemView(&o.Items[i]))
	}
	return v
}

func newItemView(item *models.OrderItem) itemView {
	return itemView{OrderItem: item, RemainingHours: item.RemainingHours()}
}

type SetStatusInput struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

type SetPaymentStatusInput struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
}

type AddPaymentInput struct {
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

// GetOrders lists orders, filtered by status, payment_status, source,
// customer_id and an inclusive from/to range of order days (YYYY-MM-DD)
func (oc *OrderController) GetOrders(c *gin.Context) {
	filter := services.OrderFilter{
		Status:        models.OrderStatus(c.Query("status")),
		PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
		Source:        models.OrderSource(c.Query("source")),
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondWithAppError(c, utils.InvalidArgument("invalid customer_id %q", raw))
			return
		}
		filter.CustomerID = uint(id)
	}
	if raw := c.Query("from"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.RespondWithAppError(c, utils.InvalidArgument("invalid from date %q", raw))
			return
		}
		from := utils.BeginningOfDay(day)
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.RespondWithAppError(c, utils.InvalidArgument("invalid to date %q", raw))
			return
		}
		until := utils.BeginningOfDay(day).AddDate(0, 0, 1)
		filter.Until = &until
	}

	orders, err := oc.Ledger.ListOrders(c.Request.Context(), filter)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, newOrderView(&orders[i]))
	}
	c.JSON(http.StatusOK, views)
}

// CreateOrder creates an order together with its items
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var input services.CreateOrderInput
	if !bindJSON(c, &input) {
		return
	}

	order, err := oc.Ledger.CreateOrder(c.Request.Context(), input)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newOrderView(order))
}

// GetOrder retrieves an order with its customer and items
func (oc *OrderController) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := oc.Ledger.GetOrder(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}

// UpdateOrder applies a partial update to an order
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch services.OrderPatch
	if !bindJSON(c, &patch) {
		return
	}

	order, err := oc.Ledger.UpdateOrderFields(c.Request.Context(), id, patch)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}

// DeleteOrder soft deletes an order and its items
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := oc.Ledger.DeleteOrder(c.Request.Context(), id); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}

// RestoreOrder brings back a soft deleted order
func (oc *OrderController) RestoreOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := oc.Ledger.RestoreOrder(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}

// SetStatus moves an order to a new status
func (oc *OrderController) SetStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input SetStatusInput
	if !bindJSON(c, &input) {
		return
	}

	order, err := oc.Ledger.SetStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}

// SetPaymentStatus marks an order refunded or confirms its derived status
func (oc *OrderController) SetPaymentStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input SetPaymentStatusInput
	if !bindJSON(c, &input) {
		return
	}

	order, err := oc.Ledger.SetPaymentStatus(c.Request.Context(), id, input.PaymentStatus)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}

// AddPayment records a payment against an order
func (oc *OrderController) AddPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input AddPaymentInput
	if !bindJSON(c, &input) {
		return
	}

	order, err := oc.Ledger.AddPayment(c.Request.Context(), id, *input.Amount)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}
