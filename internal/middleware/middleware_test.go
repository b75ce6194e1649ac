package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/page-builder/internal/config"
	"github.com/iliyamo/page-builder/internal/model"
	"github.com/iliyamo/page-builder/internal/repository"
	"github.com/iliyamo/page-builder/internal/service"
)

const secret = "test-secret"

func signed(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return service.StatusOf(err)
}

func newCtx(method, target string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestJWTAuth(t *testing.T) {
	mw := JWTAuth(secret)(ok)
	exp := time.Now().Add(time.Hour).Unix()

	c, _ := newCtx(http.MethodGet, "/")
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(c)))

	c, _ = newCtx(http.MethodGet, "/")
	c.Request().Header.Set("Authorization", "Bearer "+signed(t, "other", jwt.MapClaims{"sub": "1", "exp": exp}))
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(c)))

	c, _ = newCtx(http.MethodGet, "/")
	c.Request().Header.Set("Authorization", "Bearer "+signed(t, secret, jwt.MapClaims{"sub": "abc", "exp": exp}))
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(c)))

	c, _ = newCtx(http.MethodGet, "/")
	c.Request().Header.Set("Authorization", "Bearer "+signed(t, secret, jwt.MapClaims{"sub": 42, "email": "a@b.c", "exp": exp}))
	require.NoError(t, mw(c))
	assert.Equal(t, uint64(42), c.Get(KeyUserID))
	assert.Equal(t, "a@b.c", c.Get(KeyEmail))
}

func TestLoadUser(t *testing.T) {
	users := repository.NewMemoryUserDirectory(
		model.User{ID: 1, Email: "on@x.io", IsActive: true, Role: model.RoleAdmin},
		model.User{ID: 2, Email: "off@x.io"},
	)
	mw := LoadUser(users)(ok)

	c, _ := newCtx(http.MethodGet, "/")
	c.Set(KeyUserID, uint64(1))
	c.Set(KeyEmail, "on@x.io")
	require.NoError(t, mw(c))
	assert.Equal(t, uint64(1), c.Get(KeyUser).(model.User).ID)
	assert.Equal(t, model.RoleAdmin, c.Get(KeyRole))

	c, _ = newCtx(http.MethodGet, "/")
	c.Set(KeyUserID, uint64(2))
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(c)))

	// email of another account
	c, _ = newCtx(http.MethodGet, "/")
	c.Set(KeyUserID, uint64(2))
	c.Set(KeyEmail, "on@x.io")
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(c)))

	c, _ = newCtx(http.MethodGet, "/")
	c.Set(KeyUserID, uint64(9))
	assert.Equal(t, http.StatusUnauthorized, statusOf(mw(c)))
}

func TestRequireOwner(t *testing.T) {
	mw := RequireOwner("userId")(ok)

	c, _ := newCtx(http.MethodGet, "/", "userId", "7")
	c.Set(KeyUserID, uint64(7))
	assert.NoError(t, mw(c))

	c, _ = newCtx(http.MethodGet, "/", "userId", "8")
	c.Set(KeyUserID, uint64(7))
	assert.ErrorIs(t, mw(c), service.ErrForbidden)

	c, _ = newCtx(http.MethodGet, "/", "userId", "x")
	c.Set(KeyUserID, uint64(7))
	assert.Equal(t, http.StatusBadRequest, statusOf(mw(c)))

	c, _ = newCtx(http.MethodGet, "/")
	assert.NoError(t, mw(c))
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(model.RoleAdmin)(ok)

	c, _ := newCtx(http.MethodPost, "/")
	c.Set(KeyRole, model.RoleAdmin)
	assert.NoError(t, mw(c))

	c, _ = newCtx(http.MethodPost, "/")
	c.Set(KeyRole, model.RoleUser)
	assert.ErrorIs(t, mw(c), service.ErrRoleDenied)

	c, _ = newCtx(http.MethodPost, "/")
	c.Set(KeyRole, "")
	assert.Equal(t, http.StatusForbidden, statusOf(mw(c)))

	// no LoadUser in front
	c, _ = newCtx(http.MethodPost, "/")
	assert.ErrorIs(t, mw(c), service.ErrRoleDenied)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/x", ok, NewTokenBucket(cfg, rdb, zap.NewNop()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, rec.Code)
		if i == 2 {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		}
	}
	assert.Equal(t, []int{200, 200, http.StatusTooManyRequests}, codes)
}

func TestTokenBucketRefill(t *testing.T) {
	_, rdb := newRedis(t)
	now := time.UnixMilli(1_000_000)
	b := &tokenBucket{
		cfg: config.RateLimitConfig{Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute},
		rdb: rdb,
		now: func() time.Time { return now },
	}
	ctx := context.Background()

	d, err := b.take(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	now = now.Add(400 * time.Millisecond)
	d, err = b.take(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(600), d.RetryMs)

	now = now.Add(600 * time.Millisecond)
	d, err = b.take(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestBuildRateKey(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/")
	c.Set(KeyUserID, uint64(5))
	assert.Equal(t, "rl:user:5", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))

	c, _ = newCtx(http.MethodGet, "/")
	assert.Equal(t, "rl:user:anon", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
	assert.Equal(t, "rl:ip:192.0.2.1:user:anon:route:GET ", buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
}

func TestPageCache(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "pc", MaxBodyBytes: 1 << 10}

	reads := 0
	e := echo.New()
	g := e.Group("", NewPageCache(cfg, rdb, nil), BumpOnWrite(cfg, rdb, nil))
	g.GET("/p/:userId", func(c echo.Context) error {
		reads++
		return c.JSON(http.StatusOK, map[string]int{"reads": reads})
	})
	g.POST("/p/:userId", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })
	g.POST("/fail/:userId", func(c echo.Context) error { return service.ErrPageNotFound })

	get := func(user string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/p/"+user, nil))
		return rec
	}
	post := func(path string) {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	first := get("1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, reads)

	// other users have their own entries
	assert.Equal(t, "MISS", get("2").Header().Get("X-Cache"))
	assert.Equal(t, 2, reads)

	post("/fail/1")
	assert.Equal(t, "HIT", get("1").Header().Get("X-Cache"))

	post("/p/1")
	third := get("1")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, reads)
	assert.Equal(t, "HIT", get("2").Header().Get("X-Cache"))
}

func TestPageCacheDisabled(t *testing.T) {
	calls := 0
	h := NewPageCache(config.CacheConfig{}, nil, nil)(func(c echo.Context) error {
		calls++
		return nil
	})
	c, _ := newCtx(http.MethodGet, "/", "userId", "1")
	require.NoError(t, h(c))
	require.NoError(t, h(c))
	assert.Equal(t, 2, calls)
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(201, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, 201, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/missing", func(c echo.Context) error { return echo.ErrNotFound })

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(HeaderRequestID, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "rid-1", rec.Header().Get(HeaderRequestID))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	assert.Equal(t, "rid-1", fields["request_id"])
}
