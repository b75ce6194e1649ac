package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/service"
)

// PageHandler serves page lifecycle, read and layout routes.
type PageHandler struct {
	Pages   *service.Pages
	Blocks  *service.Blocks
	Timeout time.Duration
}

// NewPageHandler panics if a service is missing.
func NewPageHandler(pages *service.Pages, blocks *service.Blocks, timeout time.Duration) *PageHandler {
	if pages == nil || blocks == nil {
		panic("nil service passed to NewPageHandler")
	}
	return &PageHandler{Pages: pages, Blocks: blocks, Timeout: timeout}
}

// Create handles POST /page/create/:userId.
func (h *PageHandler) Create(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req createPageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	page, err := h.Pages.Create(ctx, userID, req.Title)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, page, "Page created")
}

// List handles GET /page/all-pages/:userId.
func (h *PageHandler) List(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	pages, err := h.Pages.List(ctx, userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, pages, "")
}

// Get handles GET /page/:userId/:pageId: the page with every global
// reference resolved.
func (h *PageHandler) Get(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	page, err := h.Pages.Get(ctx, userID, pageID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, page, "")
}

// GetPublic handles GET /page/web/:userId/:pageId.  Hidden pages read as
// not found.
func (h *PageHandler) GetPublic(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	page, err := h.Pages.GetPublic(ctx, userID, pageID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, page, "")
}

// Update handles PUT /page/:userId/:pageId.
func (h *PageHandler) Update(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	var req service.PageUpdate
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	page, err := h.Pages.Update(ctx, userID, pageID, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, page, "Page updated")
}

// Delete handles DELETE /page/:userId/:pageId.
func (h *PageHandler) Delete(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	if err := h.Pages.Delete(ctx, userID, pageID); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Page deleted")
}

// InsertGlobal handles POST /page/insert-global-block/:userId/:pageId:
// place an existing global entry on another page.
func (h *PageHandler) InsertGlobal(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	var req insertGlobalRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	entryID, err := req.entryID()
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	block, err := h.Blocks.InsertGlobal(ctx, service.InsertGlobalInput{
		UserID:     userID,
		PageID:     pageID,
		BlockType:  req.BlockType,
		BlockOrder: *req.BlockOrder,
		EntryID:    entryID,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, block, "Block inserted")
}

// Reorder handles POST /page/page-reorder/:userId/:pageId.
func (h *PageHandler) Reorder(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	var req reorderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	blocks, err := h.Blocks.Reorder(ctx, userID, pageID, req.Data)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, blocks, "Blocks reordered")
}
