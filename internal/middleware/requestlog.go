package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/logger"
)

// RequestLogger assigns an X-Request-ID (reusing the caller's when present),
// carries it in the request context and writes one access log line per
// request.
func RequestLogger(logg *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqID := req.Header.Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)
			c.SetRequest(req.WithContext(logg.WithRequestID(req.Context(), reqID)))

			start := time.Now()
			err := next(c)
			if err != nil {
				// Render now so the logged status is the one the client sees.
				c.Error(err)
			}

			ctx := logg.WithFields(c.Request().Context(), map[string]any{
				"method":      req.Method,
				"route":       c.Path(),
				"status":      c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   c.RealIP(),
			})
			switch status := c.Response().Status; {
			case status >= 500:
				logg.Error(ctx, "request failed", err)
			case status >= 400:
				logg.Warn(ctx, "request rejected")
			default:
				logg.Info(ctx, "request completed")
			}
			return nil
		}
	}
}
