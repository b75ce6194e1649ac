package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/service"
)

// RequireRole lets the request through only when the role LoadUser stored
// is one of roles.  The role comes from the users table, not the token, so
// a demoted account loses access immediately.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(KeyRole).(string)
			if !ok || !allowed[role] {
				return service.ErrRoleDenied
			}
			return next(c)
		}
	}
}
