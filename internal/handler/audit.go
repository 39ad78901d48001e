package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

// LogReader queries guest logs and the counters built on them.
type LogReader interface {
	List(ctx context.Context, f repository.LogFilter) ([]model.GuestLogView, error)
	Dashboard(ctx context.Context, hospitalID uint64, dayStart time.Time) (repository.Dashboard, error)
}

// ScanReader queries the security scan audit.
type ScanReader interface {
	List(ctx context.Context, f repository.ScanFilter) ([]model.QrScan, error)
}

// AuditHandler serves the read side: logs, who is inside, scans and
// the admin dashboard.
type AuditHandler struct {
	Logs  LogReader
	Scans ScanReader
	Loc   *time.Location // hospital calendar for "today"
	now   func() time.Time
}

func NewAuditHandler(logs LogReader, scans ScanReader, loc *time.Location) *AuditHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AuditHandler{Logs: logs, Scans: scans, Loc: loc, now: time.Now}
}

// logFilter scopes a log query to what the caller may see: the
// hospital, then the nurse's section or the officer's wing.
func logFilter(c echo.Context) (repository.LogFilter, bool) {
	a, found := actorOf(c)
	if !found || a.HospitalID == 0 {
		return repository.LogFilter{}, false
	}
	f := repository.LogFilter{HospitalID: a.HospitalID, Limit: queryLimit(c)}
	switch a.Role {
	case model.RoleNurse:
		f.SectionID = a.SectionID
	case model.RoleSecurity:
		f.WingID = a.WingID
	}
	return f, true
}

// GuestLogs handles GET /v1/guest-logs?guest_id=&inside=&granted=&limit=.
func (h *AuditHandler) GuestLogs(c echo.Context) error {
	f, found := logFilter(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	guestID, valid := queryID(c, "guest_id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid guest_id")
	}
	inside, valid := queryBool(c, "inside")
	if !valid {
		return fail(c, http.StatusBadRequest, "inside must be true or false")
	}
	granted, valid := queryBool(c, "granted")
	if !valid {
		return fail(c, http.StatusBadRequest, "granted must be true or false")
	}
	f.GuestID = guestID
	f.InsideOnly = inside != nil && *inside
	f.Granted = granted
	return h.listLogs(c, f)
}

// Inside handles GET /v1/guest-logs/inside.
func (h *AuditHandler) Inside(c echo.Context) error {
	f, found := logFilter(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	f.InsideOnly = true
	return h.listLogs(c, f)
}

func (h *AuditHandler) listLogs(c echo.Context, f repository.LogFilter) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	logs, err := h.Logs.List(ctx, f)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, logs)
}

// QrScans handles GET /v1/qr-scans?guest_id=.  Officers see their own
// scans; admins see the whole hospital.
func (h *AuditHandler) QrScans(c echo.Context) error {
	a, found := actorOf(c)
	if !found || a.HospitalID == 0 {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	guestID, valid := queryID(c, "guest_id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid guest_id")
	}
	f := repository.ScanFilter{HospitalID: a.HospitalID, GuestID: guestID, Limit: queryLimit(c)}
	if a.Role == model.RoleSecurity {
		f.SecurityID = a.UserID
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	scans, err := h.Scans.List(ctx, f)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, scans)
}

// Dashboard handles GET /v1/hospital/dashboard.
func (h *AuditHandler) Dashboard(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	now := h.now().In(h.Loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.Loc)

	ctx, cancel := reqCtx(c)
	defer cancel()

	d, err := h.Logs.Dashboard(ctx, hid, dayStart.UTC())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, d)
}
