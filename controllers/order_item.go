package controllers

import (
	"net/http"

	"crm-backend/models"
	"crm-backend/services"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
)

type SetItemStatusInput struct {
	Status models.ItemStatus `json:"status" binding:"required"`
}

type ItemProgressInput struct {
	ProgressPercentage *int `json:"progress_percentage" binding:"required"`
}

// itemResponse carries the updated order so clients see the new totals.
type itemResponse struct {
	Item  itemView  `json:"item"`
	Order orderView `json:"order"`
}

func itemIDs(c *gin.Context) (uint, uint, bool) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return 0, 0, false
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return 0, 0, false
	}
	return orderID, itemID, true
}

// GetItems lists the live items of an order
func (oc *OrderController) GetItems(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	items, err := oc.Ledger.ListItems(c.Request.Context(), orderID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	views := make([]itemView, 0, len(items))
	for i := range items {
		views = append(views, newItemView(&items[i]))
	}
	c.JSON(http.StatusOK, views)
}

// AddItem appends an item to an order
func (oc *OrderController) AddItem(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input services.ItemInput
	if !bindJSON(c, &input) {
		return
	}

	item, order, err := oc.Ledger.AddItem(c.Request.Context(), orderID, input)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, itemResponse{Item: newItemView(item), Order: newOrderView(order)})
}

// UpdateItem changes an item of an order
func (oc *OrderController) UpdateItem(c *gin.Context) {
	orderID, itemID, ok := itemIDs(c)
	if !ok {
		return
	}
	var patch services.ItemPatch
	if !bindJSON(c, &patch) {
		return
	}

	item, order, err := oc.Ledger.UpdateItem(c.Request.Context(), orderID, itemID, patch)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemResponse{Item: newItemView(item), Order: newOrderView(order)})
}

// DeleteItem soft deletes an item and returns the recomputed order
func (oc *OrderController) DeleteItem(c *gin.Context) {
	orderID, itemID, ok := itemIDs(c)
	if !ok {
		return
	}

	order, err := oc.Ledger.DeleteItem(c.Request.Context(), orderID, itemID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrderView(order))
}

// SetItemStatus changes the work status of an item
func (oc *OrderController) SetItemStatus(c *gin.Context) {
	orderID, itemID, ok := itemIDs(c)
	if !ok {
		return
	}
	var input SetItemStatusInput
	if !bindJSON(c, &input) {
		return
	}

	item, err := oc.Ledger.SetItemStatus(c.Request.Context(), orderID, itemID, input.Status)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newItemView(item))
}

// UpdateItemProgress records work progress on an item
func (oc *OrderController) UpdateItemProgress(c *gin.Context) {
	orderID, itemID, ok := itemIDs(c)
	if !ok {
		return
	}
	var input ItemProgressInput
	if !bindJSON(c, &input) {
		return
	}

	item, err := oc.Ledger.UpdateItemProgress(c.Request.Context(), orderID, itemID, *input.ProgressPercentage)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, newItemView(item))
}
