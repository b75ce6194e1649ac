package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/repository"
)

// Context keys set by the auth middleware.
const (
	KeyUserID = "user_id" // uint64 subject of the access token
	KeyEmail  = "email"   // email claim, when present
	KeyUser   = "user"    // model.User loaded by LoadUser
	KeyRole   = "role"    // role of the loaded user
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject and email claims into the request
// context.  Tokens are issued by the account service; the secret must
// match the one it signs with.  Handlers read the caller via
// `c.Get(KeyUserID)`.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer <jwt>".
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Only HMAC signed tokens are accepted.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid claims")
			}
			uid, err := subjectID(claims["sub"])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject")
			}

			c.Set(KeyUserID, uid)
			if email, ok := claims["email"].(string); ok {
				c.Set(KeyEmail, email)
			}
			return next(c)
		}
	}
}

// subjectID accepts the numeric forms a JSON "sub" claim may take.
func subjectID(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, errors.New("bad subject")
		}
		return uint64(t), nil
	case json.Number:
		return strconv.ParseUint(t.String(), 10, 64)
	case string:
		return strconv.ParseUint(t, 10, 64)
	}
	return 0, errors.New("missing subject")
}

// LoadUser re-reads the caller's account so revoked or deactivated users
// lose access before their token expires.  The email claim is preferred
// when present; the subject must still match the stored account.
func LoadUser(users repository.UserDirectory) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := c.Get(KeyUserID).(uint64)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			ctx := c.Request().Context()

			var (
				u   model.User
				err error
			)
			if email, _ := c.Get(KeyEmail).(string); email != "" {
				u, err = users.GetByEmail(ctx, email)
			} else {
				u, err = users.GetByID(ctx, uid)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
			}
			if err != nil {
				return err
			}
			if u.ID != uid || !u.IsActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "user is not active")
			}
			c.Set(KeyUser, u)
			c.Set(KeyRole, u.Role)
			return next(c)
		}
	}
}
