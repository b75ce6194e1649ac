// Package handler exposes the page builder over HTTP.  Every response,
// success or failure, uses the same JSON envelope.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/iliyamo/page-builder/internal/service"
)

// DefaultTimeout bounds each request's store work when none is configured.
const DefaultTimeout = 5 * time.Second

// Envelope is the uniform response body.  Status always equals the HTTP
// status code of the response.
type Envelope struct {
	Status  int     `json:"status"`
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Message *string `json:"message"`
}

// respond writes a success envelope.
func respond(c echo.Context, status int, data any, msg string) error {
	env := Envelope{Status: status, Success: status < http.StatusBadRequest, Data: data}
	if msg != "" {
		env.Message = &msg
	}
	return c.JSON(status, env)
}

// ErrorHandler renders any handler or middleware error as an envelope.
// Domain errors carry their own status; echo errors keep theirs; anything
// else is a 500 whose text is logged but not exposed.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := http.StatusInternalServerError, "Internal server error"

		var de *service.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &de):
			status, msg = de.Kind.HTTPStatus(), de.Message
		case errors.As(err, &he):
			status = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(he.Code)
			}
		case errors.Is(err, context.DeadlineExceeded):
			status, msg = http.StatusGatewayTimeout, "Request timed out"
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		env := Envelope{Status: status, Success: false, Message: &msg}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, env)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

// userIDParam parses the :userId path parameter.
func userIDParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || id == 0 {
		return 0, service.Invalid("userId must be a positive integer")
	}
	return id, nil
}

// objectIDParam parses a hex ObjectID path parameter.
func objectIDParam(c echo.Context, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, service.Invalid("invalid " + name)
	}
	return id, nil
}

// pageParams parses :userId and :pageId.
func pageParams(c echo.Context) (uint64, primitive.ObjectID, error) {
	uid, err := userIDParam(c)
	if err != nil {
		return 0, primitive.NilObjectID, err
	}
	pid, err := objectIDParam(c, "pageId")
	return uid, pid, err
}

// bind decodes the JSON body, mapping decode failures to InvalidInput.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return service.Invalid("invalid request body")
	}
	return nil
}

// requestCtx derives the per-request store context.
func requestCtx(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}
