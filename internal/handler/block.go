package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/service"
)

// BlockHandler serves the create/edit/delete routes of one block kind.
// One instance is registered per kind in the registry.
type BlockHandler struct {
	Kind    blocktype.Kind  // kind served by this handler
	Blocks  *service.Blocks // shared block service
	Timeout time.Duration   // per-request store deadline
}

// NewBlockHandler panics if blocks is nil or the kind is not registered.
func NewBlockHandler(kind blocktype.Kind, blocks *service.Blocks, timeout time.Duration) *BlockHandler {
	if blocks == nil {
		panic("nil block service passed to NewBlockHandler")
	}
	if _, ok := blocktype.Lookup(kind.Name); !ok {
		panic("unregistered block kind " + kind.Name)
	}
	return &BlockHandler{Kind: kind, Blocks: blocks, Timeout: timeout}
}

// Create handles POST /<route>/create/:userId/:pageId.
func (h *BlockHandler) Create(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	var req createBlockRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	data, accounts, err := blockData(h.Kind, req.Data)
	if err != nil {
		return err
	}

	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	created, err := h.Blocks.Create(ctx, h.Kind, service.CreateInput{
		UserID:     userID,
		PageID:     pageID,
		BlockType:  req.BlockType,
		BlockOrder: *req.BlockOrder,
		Data:       data,
		Accounts:   accounts,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, created, "Block created")
}

// Edit handles PATCH /<route>/edit/:userId/:pageId/:blockId and, for
// global kinds, PATCH /<route>/edit/:userId which edits the shared entry
// without naming a page.
func (h *BlockHandler) Edit(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req editBlockRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	if req.BlockType != "" && req.BlockType != h.Kind.Name {
		return service.ErrBlockTypeMismatch
	}
	data, accounts, err := blockData(h.Kind, req.Data)
	if err != nil {
		return err
	}

	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()

	if c.Param("blockId") == "" {
		if !h.Kind.IsGlobal() {
			return service.ErrNotGlobalType
		}
		entry, err := h.Blocks.UpdateGlobal(ctx, h.Kind, userID, data, accounts)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, entry, "Block updated")
	}

	pageID, err := objectIDParam(c, "pageId")
	if err != nil {
		return err
	}
	blockID, err := objectIDParam(c, "blockId")
	if err != nil {
		return err
	}
	out, err := h.Blocks.Update(ctx, h.Kind, service.UpdateInput{
		UserID:    userID,
		PageID:    pageID,
		BlockID:   blockID,
		BlockType: req.BlockType,
		Data:      data,
		Accounts:  accounts,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, out, "Block updated")
}

// Delete handles DELETE /<route>/delete/:userId/:pageId/:blockId.  Global
// data stays in place for other pages.
func (h *BlockHandler) Delete(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	blockID, err := objectIDParam(c, "blockId")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	if err := h.Blocks.Delete(ctx, h.Kind, userID, pageID, blockID); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Block deleted")
}

// SocialHandler serves the social routes that have no generic counterpart.
type SocialHandler struct {
	Blocks  *service.Blocks
	Timeout time.Duration
}

func NewSocialHandler(blocks *service.Blocks, timeout time.Duration) *SocialHandler {
	if blocks == nil {
		panic("nil block service passed to NewSocialHandler")
	}
	return &SocialHandler{Blocks: blocks, Timeout: timeout}
}

// Accounts handles POST /social/create/:userId: merge accounts into the
// user's social entry by platform.
func (h *SocialHandler) Accounts(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req socialAccountsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validateAccounts(req.Data); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	entry, err := h.Blocks.UpsertSocial(ctx, userID, req.Data)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, entry, "Social accounts saved")
}

// Link handles POST /social/update/:userId/:pageId: show the named
// platforms on the page.
func (h *SocialHandler) Link(c echo.Context) error {
	userID, pageID, err := pageParams(c)
	if err != nil {
		return err
	}
	var req socialLinkRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate(req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	block, err := h.Blocks.LinkSocial(ctx, userID, pageID, *req.BlockOrder, req.Data)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, block, "Social block updated")
}
