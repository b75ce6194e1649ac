package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/page-builder/internal/blocktype"
	"github.com/iliyamo/page-builder/internal/service"
)

func render(t *testing.T, err error) (int, Envelope) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(nil)(err, c)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestErrorHandlerStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{service.ErrUnknownBlockType, http.StatusBadRequest, "Content block metadata not found"},
		{service.ErrCountMismatch, http.StatusBadRequest, "Page data not matched"},
		{service.ErrProRequired, http.StatusForbidden, "Not allowed, user must be pro"},
		{service.ErrPageNotFound, http.StatusNotFound, "Page not found, wrong pageId"},
		{service.ErrGlobalNotFound, http.StatusNotFound, "Data not found in globals"},
		{service.ErrLimitExceeded, http.StatusConflict, "Block limit exceeded"},
		{service.ErrWriteConflict, http.StatusConflict, service.ErrWriteConflict.Message},
		{fmt.Errorf("create: %w", service.ErrDuplicateOrder), http.StatusConflict, "Block order cannot be duplicated"},
		{echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), http.StatusTooManyRequests, "rate limit exceeded"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "Request timed out"},
		{errors.New("mongo: connection reset"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		code, env := render(t, tc.err)
		assert.Equal(t, tc.status, code, tc.err.Error())
		assert.Equal(t, tc.status, env.Status)
		assert.False(t, env.Success)
		require.NotNil(t, env.Message)
		assert.Equal(t, tc.msg, *env.Message)
	}
}

func TestRespondEnvelope(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, respond(c, http.StatusOK, []int{1}, ""))
	assert.JSONEq(t, `{"status":200,"success":true,"data":[1],"message":null}`, rec.Body.String())
}

func TestBlockData(t *testing.T) {
	heading, _ := blocktype.Lookup(blocktype.Heading)
	social, _ := blocktype.Lookup(blocktype.Social)

	data, accounts, err := blockData(heading, json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Nil(t, accounts)
	assert.Equal(t, "hi", data["text"])

	_, _, err = blockData(heading, json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, accounts, err = blockData(social, json.RawMessage(`[{"platform":" x ","accountUrl":"https://x.com/a"}]`))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "x", accounts[0].Platform)

	_, _, err = blockData(social, json.RawMessage(`{"platform":"x"}`))
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, _, err = blockData(social, json.RawMessage(`[]`))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestRequestValidation(t *testing.T) {
	order := 0
	assert.NoError(t, validate(createBlockRequest{BlockOrder: &order, BlockType: "text", Data: json.RawMessage(`{}`)}))
	assert.Error(t, validate(createBlockRequest{BlockOrder: &order, BlockType: "text", Data: json.RawMessage(`null`)}))
	assert.Error(t, validate(createBlockRequest{BlockType: "text", Data: json.RawMessage(`{}`)}))

	neg := -2
	assert.Error(t, validate(createBlockRequest{BlockOrder: &neg, BlockType: "text", Data: json.RawMessage(`{}`)}))

	assert.Error(t, validate(socialLinkRequest{BlockOrder: &order, Data: []string{"x", ""}}))
	assert.Error(t, validate(createPageRequest{}))
	assert.NoError(t, validate(reorderRequest{Data: []service.OrderItem{}}))
	assert.Error(t, validate(reorderRequest{}))

	r := insertGlobalRequest{BlockType: "bio", BlockOrder: &order}
	require.NoError(t, validate(r))
	_, err := r.entryID()
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestParams(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("userId", "pageId")
	c.SetParamValues("0", "zz")
	_, err := userIDParam(c)
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	c.SetParamValues("4", "zz")
	_, _, err = pageParams(c)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestHealth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	h := Health(map[string]Pinger{
		"mongo": PingFunc(func(context.Context) error { return nil }),
		"redis": PingFunc(func(context.Context) error { return errors.New("down") }),
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}
