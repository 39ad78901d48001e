// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hospital-guest-access/internal/config"
	"github.com/iliyamo/hospital-guest-access/internal/handler"
	"github.com/iliyamo/hospital-guest-access/internal/middleware"
)

// Handlers groups every handler the router mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Admin    *handler.AdminHandler
	Hospital *handler.HospitalHandler
	Sessions *handler.SessionHandler
	Guests   *handler.GuestPassHandler
	Access   *handler.AccessHandler
	Audit    *handler.AuditHandler
	Devices  *handler.DeviceHandler
}

// Deps carries what the route middleware needs.
type Deps struct {
	JWTSecret     string
	Users         middleware.UserLookup
	Redis         *redis.Client // nil disables limiter and cache
	RateLimit     config.RateLimitConfig
	AuthRateLimit config.RateLimitConfig
	Cache         config.CacheConfig
}

// Register mounts every route.  Authenticated routes live under /v1 and
// run JWTAuth, LoadActor and the rate limiter in that order; role
// checks are applied per group.
func Register(e *echo.Echo, h Handlers, d Deps) {
	RegisterRoutes(e, h.Health)

	RegisterAuth(e, h.Auth, d)

	v1 := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.LoadActor(d.Users),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	v1.GET("/me", h.Auth.Me)
	v1.POST("/devices", h.Devices.Register)
	v1.DELETE("/devices/:token", h.Devices.Delete)

	RegisterAdmin(v1, h.Admin)
	RegisterHospital(v1, h, d)
	RegisterPatient(v1, h.Guests)
	RegisterAccess(v1, h)
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Health)
}

// RegisterAuth registers the token endpoints.  They are limited per IP
// with the stricter auth bucket since they run before authentication.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, d Deps) {
	g := e.Group("/v1/auth", middleware.NewTokenBucket(d.AuthRateLimit, d.Redis))
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/otp/request", a.RequestOTP)
	g.POST("/otp/verify", a.VerifyOTP)
}
