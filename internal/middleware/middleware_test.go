package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/config"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
	"github.com/iliyamo/hospital-guest-access/internal/utils"
)

const secret = "test-secret"

type users map[uint64]model.User

func (u users) GetByID(_ context.Context, id uint64) (model.User, error) {
	if x, ok := u[id]; ok {
		return x, nil
	}
	return model.User{}, repository.ErrNotFound
}

func ptr(v uint64) *uint64 { return &v }

func bearer(t *testing.T, id uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return "Bearer " + at.Token
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRoles(t *testing.T) {
	e := echo.New()
	g := e.Group("", JWTAuth(secret), RequireRole(model.RoleNurse))
	g.GET("/who", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": c.Get("user_id"), "role": c.Get("role")})
	})

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/who", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/who", "Bearer nope").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/who", bearer(t, 3, model.RolePatient)).Code)

	rec := serve(e, http.MethodGet, "/who", bearer(t, 3, model.RoleNurse))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":3,"role":"NURSE"}`, rec.Body.String())
}

func TestLoadActor(t *testing.T) {
	u := users{
		1: {ID: 1, Role: model.RoleNurse, HospitalID: ptr(9), SectionID: ptr(4), IsActive: true},
		2: {ID: 2, Role: model.RoleNurse, HospitalID: ptr(9), IsActive: true},
		3: {ID: 3, Role: model.RoleSecurity, HospitalID: ptr(9), IsActive: false},
	}
	e := echo.New()
	g := e.Group("", JWTAuth(secret), LoadActor(u))
	g.GET("/actor", func(c echo.Context) error {
		a, ok := ActorFrom(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, a)
	})

	rec := serve(e, http.MethodGet, "/actor", bearer(t, 1, model.RoleNurse))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"UserID":1,"Role":"NURSE","HospitalID":9,"SectionID":4,"WingID":0}`, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/actor", bearer(t, 2, model.RoleNurse)).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/actor", bearer(t, 3, model.RoleSecurity)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/actor", bearer(t, 99, model.RoleNurse)).Code)
}

func TestLoadActorUsesStoredRole(t *testing.T) {
	u := users{5: {ID: 5, Role: model.RoleSecurity, HospitalID: ptr(9), IsActive: true}}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		a, _ := ActorFrom(c)
		return c.String(http.StatusOK, a.Role)
	}, JWTAuth(secret), LoadActor(u), RequireRole(model.RoleSecurity))

	rec := serve(e, http.MethodGet, "/x", bearer(t, 5, model.RoleNurse))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.RoleSecurity, rec.Body.String())
}

func TestTokenBucketWithoutRedisPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.LoadRateLimitConfig(), nil))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	for i := 0; i < 100; i++ {
		require.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/", "").Code)
	}
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/access/scan", nil), httptest.NewRecorder())
	c.SetPath("/v1/access/scan")
	c.Set("user_id", uint64(12))

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:12:route:POST /v1/access/scan", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:12", buildRateKey(cfg, c))
}

func TestCacheKeySeparatesUsers(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "user_route_query"}
	key := func(uid uint64) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/hospital/dashboard?x=1", nil), httptest.NewRecorder())
		c.SetPath("/v1/hospital/dashboard")
		c.Set("user_id", uid)
		return cacheKeyFrom(cfg, c)
	}
	assert.Equal(t, key(1), key(1))
	assert.NotEqual(t, key(1), key(2))
}

func TestCacheKeySharedWithinHospital(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "hospital_route_query"}
	key := func(uid, hid uint64) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/hospital/dashboard", nil), httptest.NewRecorder())
		c.SetPath("/v1/hospital/dashboard")
		c.Set("user_id", uid)
		c.Set(actorKey, access.Actor{UserID: uid, HospitalID: hid})
		return cacheKeyFrom(cfg, c)
	}
	assert.Equal(t, key(1, 7), key(2, 7))
	assert.NotEqual(t, key(1, 7), key(1, 8))
}

func TestCacheMissStoresOnlyOK(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", KeyStrategy: "route"}

	e := echo.New()
	e.GET("/gone", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"success": false})
	}, NewRedisCache(cfg, rdb))

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/gone", nil), httptest.NewRecorder())
	c.SetPath("/gone")
	mock.ExpectGet(cacheKeyFrom(cfg, c)).RedisNil()

	rec := serve(e, http.MethodGet, "/gone", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NoError(t, mock.ExpectationsWereMet(), "no SET for a 404")
}

func TestCacheHitReplaysStoredResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", KeyStrategy: "route"}

	e := echo.New()
	calls := 0
	e.GET("/v1/hospital/dashboard", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"fresh": true})
	}, NewRedisCache(cfg, rdb))

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/hospital/dashboard", nil), httptest.NewRecorder())
	c.SetPath("/v1/hospital/dashboard")
	key := cacheKeyFrom(cfg, c)

	hdr := http.Header{}
	hdr.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	payload, err := encodePayload(http.StatusOK, hdr, []byte(`{"cached":true}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	rec := serve(e, http.MethodGet, "/v1/hospital/dashboard", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"cached":true}`, rec.Body.String())
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActorFromMissing(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := ActorFrom(c)
	assert.False(t, ok)
	c.Set(actorKey, access.Actor{UserID: 1})
	a, ok := ActorFrom(c)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), a.UserID)
}
