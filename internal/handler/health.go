package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger is any dependency that can report its liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Health returns the health-check endpoint used by load balancers and
// monitoring systems.  Every named check must answer; a failing check
// turns the response into a 503 listing which dependency is down.
func Health(checks map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), DefaultTimeout)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			msg := "degraded"
			return c.JSON(http.StatusServiceUnavailable, Envelope{Status: http.StatusServiceUnavailable, Data: status, Message: &msg})
		}
		return respond(c, http.StatusOK, status, "ok")
	}
}
