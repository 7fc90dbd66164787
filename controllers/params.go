package controllers

import (
	"strconv"

	"crm-backend/utils"

	"github.com/gin-gonic/gin"
)

// paramID parses a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondWithAppError(c, utils.InvalidArgument("invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.RespondWithAppError(c, utils.InvalidArgument("Invalid input: %s", err.Error()))
		return false
	}
	return true
}
