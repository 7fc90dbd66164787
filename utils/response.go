package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Code    ErrorKind         `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func RespondWithError(c *gin.Context, status int, message string) {
	code := KindInternal
	switch {
	case status == 404:
		code = KindNotFound
	case status == 409:
		code = KindConflict
	case status == 422:
		code = KindValidation
	case status >= 400 && status < 500:
		code = KindInvalidArgument
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

// RespondWithAppError writes err as a structured error response. Errors that are
// not AppErrors are logged and reported as a generic 500.
func RespondWithAppError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		log.Error().Err(err).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("unhandled error")
		c.AbortWithStatusJSON(500, gin.H{"error": errorBody{Code: KindInternal, Message: "Internal server error"}})
		return
	}
	c.AbortWithStatusJSON(StatusFor(appErr.Kind), gin.H{"error": errorBody{
		Code:    appErr.Kind,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	}})
}
