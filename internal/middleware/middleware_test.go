package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/invoice-billing/internal/apperr"
	"github.com/iliyamo/invoice-billing/internal/config"
	"github.com/iliyamo/invoice-billing/internal/model"
	"github.com/iliyamo/invoice-billing/internal/utils"
)

const secret = "access-secret"

func newContext(t *testing.T, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestJWTAuth(t *testing.T) {
	mw := JWTAuth(secret)

	c, _ := newContext(t, http.MethodGet, "/api/invoices")
	assert.ErrorIs(t, mw(ok)(c), apperr.ErrUnauthorized)

	c, _ = newContext(t, http.MethodGet, "/api/invoices")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	assert.ErrorIs(t, mw(ok)(c), apperr.ErrUnauthorized)

	u := &model.User{ID: "u-1", Email: "jane@example.com", Role: model.RoleCustomer, AccountNumber: "ACC-1"}
	tok, err := utils.NewAccessToken(secret, u, time.Minute)
	require.NoError(t, err)

	c, rec := newContext(t, http.MethodGet, "/api/invoices")
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	require.NoError(t, mw(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	v, found := ViewerFrom(c)
	require.True(t, found)
	assert.Equal(t, model.Viewer{ID: "u-1", Email: "jane@example.com", Role: model.RoleCustomer, AccountNumber: "ACC-1"}, v)
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(model.RoleAdmin)

	c, _ := newContext(t, http.MethodDelete, "/api/invoices/1")
	assert.ErrorIs(t, mw(ok)(c), apperr.ErrUnauthorized)

	c, _ = newContext(t, http.MethodDelete, "/api/invoices/1")
	SetViewer(c, model.Viewer{ID: "u-1", Role: model.RoleCustomer})
	assert.ErrorIs(t, mw(ok)(c), apperr.ErrForbidden)

	c, rec := newContext(t, http.MethodDelete, "/api/invoices/1")
	SetViewer(c, model.Viewer{ID: "a-1", Role: model.RoleAdmin})
	require.NoError(t, mw(ok)(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	c, _ := newContext(t, http.MethodPost, "/api/auth/login")
	c.SetPath("/api/auth/login")
	c.Request().RemoteAddr = "10.0.0.7:5555"

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.7:route:POST /api/auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
	SetViewer(c, model.Viewer{ID: "u-9", Role: model.RoleCustomer})
	assert.Equal(t, "rl:user:u-9", buildRateKey(cfg, c))
}

func TestCacheKeyPerUser(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "user_route_query"}

	a, _ := newContext(t, http.MethodGet, "/api/invoices/stats?b=2&a=1")
	a.SetPath("/api/invoices/stats")
	SetViewer(a, model.Viewer{ID: "u-1", Role: model.RoleCustomer})

	b, _ := newContext(t, http.MethodGet, "/api/invoices/stats?a=1&b=2")
	b.SetPath("/api/invoices/stats")
	SetViewer(b, model.Viewer{ID: "u-1", Role: model.RoleCustomer})

	other, _ := newContext(t, http.MethodGet, "/api/invoices/stats?a=1&b=2")
	other.SetPath("/api/invoices/stats")
	SetViewer(other, model.Viewer{ID: "u-2", Role: model.RoleCustomer})

	assert.Equal(t, cacheKeyFrom(cfg, a), cacheKeyFrom(cfg, b))
	assert.NotEqual(t, cacheKeyFrom(cfg, a), cacheKeyFrom(cfg, other))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, cacheKeyFrom(cfg, a))
}

func TestPayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"text/csv"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte("a,b\n"))
	require.NoError(t, err)

	status, gotHdr, body, valid := decodePayload(bs)
	require.True(t, valid)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "text/csv", gotHdr.Get("Content-Type"))
	assert.Equal(t, "a,b\n", string(body))

	_, _, _, valid = decodePayload(bs[:5])
	assert.False(t, valid)
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	for _, mw := range []echo.MiddlewareFunc{
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil),
		NewRedisCache(config.CacheConfig{Enabled: false}, nil),
	} {
		c, rec := newContext(t, http.MethodGet, "/api/invoices/sample-csv")
		require.NoError(t, mw(ok)(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
