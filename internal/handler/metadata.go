package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/service"
)

// MetadataHandler manages the content block registry.
type MetadataHandler struct {
	Metadata *service.Metadata
	Timeout  time.Duration
}

func NewMetadataHandler(metadata *service.Metadata, timeout time.Duration) *MetadataHandler {
	if metadata == nil {
		panic("nil metadata service passed to NewMetadataHandler")
	}
	return &MetadataHandler{Metadata: metadata, Timeout: timeout}
}

// List handles GET /content-block.
func (h *MetadataHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	items, err := h.Metadata.List(ctx)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, items, "")
}

// Create handles POST /content-block/create.
func (h *MetadataHandler) Create(c echo.Context) error {
	var req metadataRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	m, err := h.Metadata.Create(ctx, req.BlockMetadata)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, m, "Content block created")
}

// Update handles PATCH /content-block/edit/:blockId.
func (h *MetadataHandler) Update(c echo.Context) error {
	id, err := objectIDParam(c, "blockId")
	if err != nil {
		return err
	}
	var req service.MetadataPatch
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	m, err := h.Metadata.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, m, "Content block updated")
}

// Delete handles DELETE /content-block/delete/:blockId.
func (h *MetadataHandler) Delete(c echo.Context) error {
	id, err := objectIDParam(c, "blockId")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	if err := h.Metadata.Delete(ctx, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Content block deleted")
}

// DeleteAll handles DELETE /content-block/delete-all.
func (h *MetadataHandler) DeleteAll(c echo.Context) error {
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	n, err := h.Metadata.DeleteAll(ctx)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]int64{"deleted": n}, "Content blocks deleted")
}
