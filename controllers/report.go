// controllers/report.go
package controllers

import (
	"net/http"

	"crm-backend/services"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
)

// ReportController handles all reporting functions
type ReportController struct {
	Ledger *services.OrderLedger
}

// GetOrderStats returns order counts and revenue figures
func (rc *ReportController) GetOrderStats(c *gin.Context) {
	stats, err := rc.Ledger.Stats(c.Request.Context())
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to get order statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}
