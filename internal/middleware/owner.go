package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/service"
)

// RequireOwner rejects requests whose :userId path parameter names anyone
// but the authenticated caller.  Routes without the parameter pass through.
// It must run after JWTAuth.
func RequireOwner(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Param(param)
			if raw == "" {
				return next(c)
			}
			uid, ok := c.Get(KeyUserID).(uint64)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			want, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return service.Invalid("userId must be a positive integer")
			}
			if want != uid {
				return service.ErrForbidden
			}
			return next(c)
		}
	}
}

// currentUserID returns the caller id for keying, "anon" when the request
// is unauthenticated.
func currentUserID(c echo.Context) string {
	switch v := c.Get(KeyUserID).(type) {
	case uint64:
		return strconv.FormatUint(v, 10)
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
