// controllers/service.go
package controllers

import (
	"errors"
	"net/http"

	"crm-backend/config"
	"crm-backend/models"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateServiceInput defines the expected JSON structure for creating a service
type CreateServiceInput struct {
	Name                  string          `json:"name" binding:"required"`
	Description           string          `json:"description"`
	BasePrice             decimal.Decimal `json:"base_price"`
	Category              string          `json:"category"`
	EstimatedDeliveryDays int             `json:"estimated_delivery_days" binding:"min=0"`
	IsActive              *bool           `json:"is_active"`
}

// UpdateServiceInput defines the expected JSON structure for updating a service
type UpdateServiceInput struct {
	Name                  *string          `json:"name"`
	Description           *string          `json:"description"`
	BasePrice             *decimal.Decimal `json:"base_price"`
	Category              *string          `json:"category"`
	EstimatedDeliveryDays *int             `json:"estimated_delivery_days"`
	IsActive              *bool            `json:"is_active"`
}

// CreateService creates a new catalog service
func CreateService(c *gin.Context) {
	var input CreateServiceInput
	if !bindJSON(c, &input) {
		return
	}
	if input.BasePrice.IsNegative() {
		utils.RespondWithAppError(c, utils.FieldError("base_price", "must not be negative"))
		return
	}

	service := models.Service{
		Name:                  input.Name,
		Description:           input.Description,
		BasePrice:             input.BasePrice,
		Category:              input.Category,
		EstimatedDeliveryDays: input.EstimatedDeliveryDays,
		IsActive:              true,
	}
	if service.Category == "" {
		service.Category = "General"
	}
	if input.IsActive != nil {
		service.IsActive = *input.IsActive
	}

	if err := config.DB.Create(&service).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create service")
		return
	}

	c.JSON(http.StatusCreated, service)
}

// GetServices retrieves all services, optionally only the active ones
func GetServices(c *gin.Context) {
	query := config.DB.Order("name")
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var services []models.Service
	if err := query.Find(&services).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve services")
		return
	}

	c.JSON(http.StatusOK, services)
}

// GetService retrieves a specific service by ID
func GetService(c *gin.Context) {
	service, ok := loadService(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, service)
}

// UpdateService updates an existing service
func UpdateService(c *gin.Context) {
	var input UpdateServiceInput
	if !bindJSON(c, &input) {
		return
	}

	service, ok := loadService(c)
	if !ok {
		return
	}

	if input.Name != nil {
		service.Name = *input.Name
	}
	if input.Description != nil {
		service.Description = *input.Description
	}
	if input.BasePrice != nil {
		if input.BasePrice.IsNegative() {
			utils.RespondWithAppError(c, utils.FieldError("base_price", "must not be negative"))
			return
		}
		service.BasePrice = *input.BasePrice
	}
	if input.Category != nil {
		service.Category = *input.Category
	}
	if input.EstimatedDeliveryDays != nil {
		service.EstimatedDeliveryDays = *input.EstimatedDeliveryDays
	}
	if input.IsActive != nil {
		service.IsActive = *input.IsActive
	}

	if err := config.DB.Save(service).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update service")
		return
	}

	c.JSON(http.StatusOK, service)
}

// DeleteService soft deletes a service. Existing order items keep their prices.
func DeleteService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result := config.DB.Delete(&models.Service{}, id)
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete service")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Service not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}

func loadService(c *gin.Context) (*models.Service, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}

	var service models.Service
	if err := config.DB.First(&service, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Service not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return nil, false
	}
	return &service, true
}
