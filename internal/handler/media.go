package handler

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/page-builder/internal/service"
	"github.com/iliyamo/page-builder/internal/storage"
)

// MediaHandler accepts multipart uploads for audio and image blocks and
// returns the stored object's URL.
type MediaHandler struct {
	Store    storage.MediaStore
	MaxBytes int64
	Timeout  time.Duration
}

func NewMediaHandler(store storage.MediaStore, maxBytes int64, timeout time.Duration) *MediaHandler {
	if store == nil {
		panic("nil media store passed to NewMediaHandler")
	}
	return &MediaHandler{Store: store, MaxBytes: maxBytes, Timeout: timeout}
}

// Audio handles POST /audio/upload/:userId (form field "audio").
func (h *MediaHandler) Audio(c echo.Context) error { return h.upload(c, "audio", "audio/") }

// Image handles POST /image/upload/:userId (form field "image").
func (h *MediaHandler) Image(c echo.Context) error { return h.upload(c, "image", "image/") }

type uploaded struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (h *MediaHandler) upload(c echo.Context, field, typePrefix string) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile(field)
	if err != nil {
		return service.Invalid(fmt.Sprintf("multipart field %q is required", field))
	}
	if h.MaxBytes > 0 && fh.Size > h.MaxBytes {
		return service.Invalid(fmt.Sprintf("file exceeds %d bytes", h.MaxBytes))
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	// Sniff when the client sent no usable type.
	r := bufio.NewReader(f)
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		head, _ := r.Peek(512)
		ct = http.DetectContentType(head)
	}
	if !strings.HasPrefix(ct, typePrefix) {
		return service.Invalid(fmt.Sprintf("%s upload must be %s*, got %s", field, typePrefix, ct))
	}

	key := storage.ObjectKey(userID, field, fh.Filename)
	ctx, cancel := requestCtx(c, h.Timeout)
	defer cancel()
	url, err := h.Store.Put(ctx, key, ct, r, fh.Size)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, uploaded{URL: url, Key: key, ContentType: ct, Size: fh.Size}, "File uploaded")
}
