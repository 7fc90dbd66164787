package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limit, err := RateLimit("1-M")
	require.NoError(t, err)

	r := gin.New()
	r.Use(limit)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		return w
	}

	first := get()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := get()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	var body struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &body))
	assert.Equal(t, KindInvalidArgument, body.Error.Code)
	assert.Equal(t, "Rate limit exceeded", body.Error.Message)
}

func TestRateLimitRejectsBadFormat(t *testing.T) {
	_, err := RateLimit("lots")
	assert.Error(t, err)
}
