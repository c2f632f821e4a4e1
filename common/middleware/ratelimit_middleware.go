package middleware

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/fairwaylink/scorecard/common/ratelimit"
)

// isInternalRequest checks if the request is from an internal service.
// Internal services set X-Internal-Service header to bypass rate limits.
func isInternalRequest(c echo.Context) bool {
	internalHeader := c.Request().Header.Get("X-Internal-Service")
	if internalHeader == "" {
		return false
	}

	// Verify against shared secret (prevents spoofing)
	expectedSecret := os.Getenv("INTERNAL_SERVICE_SECRET")
	if expectedSecret == "" {
		return false
	}

	return internalHeader == expectedSecret
}

// GlobalRateLimit checks the service-wide write limit. On limiter
// errors the request is allowed through (fail open for availability).
func GlobalRateLimit(rateLimiter *ratelimit.RateLimiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c) {
				return next(c)
			}

			result, err := rateLimiter.CheckGlobalLimit(c.Request().Context(), limit)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "global_rate_limit_exceeded",
					"message": "Service is experiencing high load. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window":              "60 seconds",
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// RoundRateLimit checks the per-round write limit, keyed on the :id
// route parameter. Requests without the parameter pass through.
func RoundRateLimit(rateLimiter *ratelimit.RateLimiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c) {
				return next(c)
			}

			roundID := c.Param("id")
			if roundID == "" {
				return next(c)
			}

			result, err := rateLimiter.CheckRoundLimit(c.Request().Context(), roundID, limit)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "round_rate_limit_exceeded",
					"message": "This round is receiving too many writes. Please wait before trying again.",
					"details": map[string]interface{}{
						"round_id":            roundID,
						"limit":               result.Limit,
						"window":              "60 seconds",
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
