package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   ErrorKind
		status int
	}{
		{NotFound("order %d not found", 1), KindNotFound, http.StatusNotFound},
		{FieldError("quantity", "must be at least 1"), KindValidation, http.StatusUnprocessableEntity},
		{InvalidArgument("bad id"), KindInvalidArgument, http.StatusBadRequest},
		{Conflict(errors.New("dup"), "taken"), KindConflict, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", NotFound("x")), KindNotFound, http.StatusNotFound},
		{errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.err), tt.err.Error())
		assert.Equal(t, tt.status, StatusFor(KindOf(tt.err)))
	}
}

func TestValidationFailedNilWhenEmpty(t *testing.T) {
	assert.Nil(t, ValidationFailed(nil))
	assert.Nil(t, ValidationFailed(map[string]string{}))

	err := ValidationFailed(map[string]string{"b": "second", "a": "first"})
	require.NotNil(t, err)
	assert.Equal(t, "validation_failed: validation failed; a: first; b: second", err.Error())
}

func TestConflictUnwraps(t *testing.T) {
	cause := errors.New("unique violation")
	err := Conflict(cause, "order number taken")
	assert.ErrorIs(t, err, cause)
}

func TestRespondWithAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(err error) (int, map[string]any) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		RespondWithAppError(c, err)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body["error"].(map[string]any)
	}

	code, body := run(FieldError("items.0.quantity", "must be at least 1"))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "validation_failed", body["code"])
	assert.Equal(t, map[string]any{"items.0.quantity": "must be at least 1"}, body["fields"])

	code, body = run(errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal", body["code"])
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, body, "fields")
}

func TestValidatePhone(t *testing.T) {
	for _, ok := range []string{"+15551234567", "44 20 7946 0958", "(555) 123-4567", "+49 30 1234567"} {
		assert.True(t, ValidatePhone(ok), ok)
	}
	for _, bad := range []string{"", "12", "+0123456789", "555-CALL-NOW", "+1234567890123456"} {
		assert.False(t, ValidatePhone(bad), bad)
	}
}
