package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

// RequireRole rejects callers whose role is not listed.  It must run after
// JWTAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return apperr.New(apperr.CodeUnauthorized, "authentication required")
			}
			if !allowed[actor.Role] {
				return apperr.New(apperr.CodeForbidden, "role not permitted")
			}
			return next(c)
		}
	}
}
