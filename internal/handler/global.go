package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/service"
)

// GlobalHandler exposes a user's global entries.
type GlobalHandler struct {
	Globals *service.Globals
	Timeout time.Duration
}

func NewGlobalHandler(globals *service.Globals, timeout time.Duration) *GlobalHandler {
	if globals == nil {
		panic("nil globals service passed to NewGlobalHandler")
	}
	return &GlobalHandler{Globals: globals, Timeout: timeout}
}

// Get handles GET /globals/get/:userId.
func (h *GlobalHandler) Get(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	set, err := h.Globals.Get(ctx, userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, set, "")
}

// Delete handles DELETE /globals/delete/:userId.
func (h *GlobalHandler) Delete(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	if err := h.Globals.Delete(ctx, userID); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Globals deleted")
}
