package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/handler"
	"github.com/iliyamo/hospital-guest-access/internal/middleware"
	"github.com/iliyamo/hospital-guest-access/internal/model"
)

// RegisterPatient registers the endpoints a patient uses to manage the
// visitors of the current stay.
func RegisterPatient(v1 *echo.Group, g *handler.GuestPassHandler) {
	p := v1.Group("/patient", middleware.RequireRole(model.RolePatient))
	p.POST("/guests", g.Issue)
	p.GET("/guests", g.List)
	p.DELETE("/guests/:id", g.Deactivate)
	p.GET("/guests/:id/qr", g.QR)
}

// RegisterAccess registers guest entry and exit recording and the
// audit reads over them.
func RegisterAccess(v1 *echo.Group, h Handlers) {
	a := v1.Group("/access")
	a.POST("/guests/:id/check-in", h.Access.CheckIn, middleware.RequireRole(model.RoleNurse))
	a.POST("/guests/:id/check-out", h.Access.CheckOut, middleware.RequireRole(model.RoleNurse))
	a.POST("/scan", h.Access.Scan, middleware.RequireRole(model.RoleSecurity))

	logs := v1.Group("/guest-logs",
		middleware.RequireRole(model.RoleHospitalAdmin, model.RoleNurse, model.RoleSecurity))
	logs.GET("", h.Audit.GuestLogs)
	logs.GET("/inside", h.Audit.Inside)

	v1.GET("/qr-scans", h.Audit.QrScans,
		middleware.RequireRole(model.RoleHospitalAdmin, model.RoleSecurity))
}
