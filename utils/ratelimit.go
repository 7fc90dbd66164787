package utils

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit limits requests per client IP. rate uses the limiter format, e.g. "200-M".
func RateLimit(rate string) (gin.HandlerFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", rate, err)
	}

	instance := limiter.New(memory.NewStore(), parsed)
	return mgin.NewMiddleware(instance,
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			RespondWithAppError(c, fmt.Errorf("rate limiter: %w", err))
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			RespondWithError(c, http.StatusTooManyRequests, "Rate limit exceeded")
		}),
	), nil
}
