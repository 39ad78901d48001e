package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/handler"
	"github.com/iliyamo/hospital-guest-access/internal/middleware"
	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// RegisterAdmin registers the SUPER_ADMIN tenant endpoints.
func RegisterAdmin(v1 *echo.Group, a *handler.AdminHandler) {
	g := v1.Group("/admin", middleware.RequireRole(model.RoleSuperAdmin))
	g.POST("/hospitals", a.CreateHospital)
	g.GET("/hospitals", a.ListHospitals)
	g.POST("/hospitals/:id/admins", a.CreateHospitalAdmin)
}

// RegisterHospital registers the HOSPITAL_ADMIN endpoints of one
// hospital and the session endpoints shared with nurses.
func RegisterHospital(v1 *echo.Group, h Handlers, d Deps) {
	g := v1.Group("/hospital", middleware.RequireRole(model.RoleHospitalAdmin))

	// ---- Structure ----
	g.POST("/wings", h.Hospital.CreateWing)
	g.GET("/wings", h.Hospital.ListWings)
	g.POST("/wings/:id/rooms", h.Hospital.CreateRooms)
	g.POST("/wings/:id/rooms/bulk", h.Hospital.BulkRooms)
	g.GET("/rooms", h.Hospital.ListRooms)
	g.POST("/sections", h.Hospital.CreateSection)
	g.PUT("/sections/:id/rooms", h.Hospital.ReplaceSectionRooms)

	// ---- Staff ----
	g.POST("/staff", h.Hospital.CreateStaff)
	g.GET("/staff", h.Hospital.ListStaff)

	// ---- Guest pass decisions ----
	g.GET("/guests/pending", h.Guests.ListPending)
	g.POST("/guests/:id/approve", h.Guests.Approve)
	g.POST("/guests/:id/reject", h.Guests.Reject)

	// every admin of a hospital sees the same counters
	dash := d.Cache
	dash.KeyStrategy = "hospital_route_query"
	g.GET("/dashboard", h.Audit.Dashboard, middleware.NewRedisCache(dash, d.Redis))

	// ---- Sessions ----
	s := v1.Group("/sessions", middleware.RequireRole(model.RoleHospitalAdmin, model.RoleNurse))
	s.POST("", h.Sessions.Admit)
	s.GET("", h.Sessions.List)
	s.POST("/:id/discharge", h.Sessions.Discharge)
}
