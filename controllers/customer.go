package controllers

import (
	"errors"
	"net/http"
	"strings"

	"crm-backend/config"
	"crm-backend/models"
	"crm-backend/services"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateCustomerInput defines the expected JSON structure for creating a customer
type CreateCustomerInput struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// UpdateCustomerInput defines the expected JSON structure for updating a customer
type UpdateCustomerInput struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

// CreateCustomer creates a new customer
func CreateCustomer(c *gin.Context) {
	var input CreateCustomerInput
	if !bindJSON(c, &input) {
		return
	}

	if !utils.ValidatePhone(input.Phone) {
		utils.RespondWithAppError(c, utils.FieldError("phone", "Invalid phone number format"))
		return
	}

	// Check if phone already exists
	if taken, err := phoneTaken(input.Phone, 0); err != nil {
		utils.RespondWithAppError(c, err)
		return
	} else if taken {
		utils.RespondWithError(c, http.StatusConflict, "Customer with this phone number already exists")
		return
	}

	customer := models.Customer{
		Name:    strings.TrimSpace(input.Name),
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
		Notes:   input.Notes,
	}
	if err := config.DB.Create(&customer).Error; err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, customer)
}

// GetCustomers retrieves all customers
func GetCustomers(c *gin.Context) {
	var customers []models.Customer
	if err := config.DB.Order("name").Find(&customers).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve customers")
		return
	}

	c.JSON(http.StatusOK, customers)
}

// GetCustomer retrieves a specific customer by ID
func GetCustomer(c *gin.Context) {
	customer, ok := loadCustomer(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, customer)
}

// UpdateCustomer updates an existing customer
func UpdateCustomer(c *gin.Context) {
	var input UpdateCustomerInput
	if !bindJSON(c, &input) {
		return
	}

	customer, ok := loadCustomer(c)
	if !ok {
		return
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			utils.RespondWithAppError(c, utils.FieldError("name", "must not be empty"))
			return
		}
		customer.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil && *input.Phone != customer.Phone {
		if !utils.ValidatePhone(*input.Phone) {
			utils.RespondWithAppError(c, utils.FieldError("phone", "Invalid phone number format"))
			return
		}
		if taken, err := phoneTaken(*input.Phone, customer.ID); err != nil {
			utils.RespondWithAppError(c, err)
			return
		} else if taken {
			utils.RespondWithError(c, http.StatusConflict, "Another customer with this phone number already exists")
			return
		}
		customer.Phone = *input.Phone
	}
	if input.Email != nil {
		customer.Email = *input.Email
	}
	if input.Address != nil {
		customer.Address = *input.Address
	}
	if input.Notes != nil {
		customer.Notes = *input.Notes
	}

	if err := config.DB.Save(customer).Error; err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

// DeleteCustomer soft deletes a customer
func DeleteCustomer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result := config.DB.Delete(&models.Customer{}, id)
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete customer")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Customer not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}

// CustomerController serves the read-only order projections of a customer.
type CustomerController struct {
	Ledger *services.OrderLedger
}

// GetCustomerSummary returns order counts and money totals for a customer
func (cc *CustomerController) GetCustomerSummary(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	summary, err := cc.Ledger.CustomerSummary(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func loadCustomer(c *gin.Context) (*models.Customer, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}

	var customer models.Customer
	if err := config.DB.First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Customer not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return nil, false
	}
	return &customer, true
}

// phoneTaken also sees soft-deleted customers, their phones still hold the
// unique index.
func phoneTaken(phone string, exceptID uint) (bool, error) {
	var count int64
	err := config.DB.Unscoped().Model(&models.Customer{}).
		Where("phone = ? AND id <> ?", phone, exceptID).
		Count(&count).Error
	return count > 0, err
}
