package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/yeqown/go-qrcode"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
	"github.com/iliyamo/hospital-guest-access/internal/service"
)

// PassManager issues passes and records admin decisions.
type PassManager interface {
	Policy() access.PassPolicy
	IssueGuestPass(ctx context.Context, in service.IssueRequest) (model.GuestPass, error)
	Approve(ctx context.Context, hospitalID, guestID, adminID uint64) (model.GuestPass, error)
	Reject(ctx context.Context, hospitalID, guestID, adminID uint64) (model.GuestPass, error)
}

// PatientSessions finds the running stay of a patient.
type PatientSessions interface {
	ActiveForPatient(ctx context.Context, patientUserID uint64) (model.PatientSession, error)
}

// GuestPasses reads and deactivates passes.
type GuestPasses interface {
	GetByID(ctx context.Context, id uint64) (model.GuestPass, error)
	ListBySession(ctx context.Context, sessionID uint64) ([]model.GuestPass, error)
	ListPending(ctx context.Context, hospitalID uint64) ([]model.GuestPass, error)
	Deactivate(ctx context.Context, sessionID, guestID uint64) error
}

// GuestPassHandler serves patients managing their visitors and admins
// deciding pending passes.
type GuestPassHandler struct {
	Passes   PassManager
	Sessions PatientSessions
	Guests   GuestPasses
}

func NewGuestPassHandler(passes PassManager, sessions PatientSessions, guests GuestPasses) *GuestPassHandler {
	return &GuestPassHandler{Passes: passes, Sessions: sessions, Guests: guests}
}

type issuePassReq struct {
	GuestName    string  `json:"guest_name" validate:"required,max=120"`
	GuestPhone   string  `json:"guest_phone" validate:"required,phone"`
	Relationship *string `json:"relationship" validate:"omitempty,max=50"`
	PassType     string  `json:"pass_type" validate:"required,passtype"`
	VisitDate    string  `json:"visit_date" validate:"omitempty,visitdate"`
}

// activeSession returns the caller's running stay.  When found is
// false the response has been written.
func (h *GuestPassHandler) activeSession(ctx context.Context, c echo.Context) (model.PatientSession, bool, error) {
	uid, err := getUserID(c)
	if err != nil {
		return model.PatientSession{}, false, fail(c, http.StatusUnauthorized, "unauthorized")
	}
	ps, err := h.Sessions.ActiveForPatient(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return ps, false, fail(c, http.StatusNotFound, "no active session")
	}
	if err != nil {
		return ps, false, failErr(c, err)
	}
	return ps, true, nil
}

// Issue handles POST /v1/patient/guests.
func (h *GuestPassHandler) Issue(c echo.Context) error {
	var req issuePassReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	in := service.IssueRequest{
		GuestName:    req.GuestName,
		GuestPhone:   req.GuestPhone,
		Relationship: req.Relationship,
		PassType:     req.PassType,
	}
	if req.VisitDate != "" {
		day, err := access.ParseVisitDate(req.VisitDate, h.Passes.Policy().Location)
		if err != nil {
			return fail(c, http.StatusBadRequest, err.Error())
		}
		in.VisitDate = &day
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, found, err := h.activeSession(ctx, c)
	if !found {
		return err
	}
	in.SessionID = ps.ID
	g, err := h.Passes.IssueGuestPass(ctx, in)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, g)
}

// List handles GET /v1/patient/guests.
func (h *GuestPassHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, found, err := h.activeSession(ctx, c)
	if !found {
		return err
	}
	list, err := h.Guests.ListBySession(ctx, ps.ID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, list)
}

// Deactivate handles DELETE /v1/patient/guests/:id.  The row is kept
// for the audit trail.
func (h *GuestPassHandler) Deactivate(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid guest id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, found, err := h.activeSession(ctx, c)
	if !found {
		return err
	}
	if err := h.Guests.Deactivate(ctx, ps.ID, id); err != nil {
		return failErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// QR handles GET /v1/patient/guests/:id/qr and returns the scan token
// of an approved pass as a JPEG image.
func (h *GuestPassHandler) QR(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid guest id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, found, err := h.activeSession(ctx, c)
	if !found {
		return err
	}
	g, err := h.Guests.GetByID(ctx, id)
	if err != nil {
		return failErr(c, err)
	}
	if g.SessionID != ps.ID {
		return fail(c, http.StatusNotFound, "not found")
	}
	if g.Status != model.PassApproved || !g.IsActive {
		return failReason(c, http.StatusConflict, access.ReasonPassNotApproved)
	}

	qrc, err := qrcode.New(g.QRCode)
	if err != nil {
		return failErr(c, err)
	}
	path := filepath.Join(os.TempDir(), "guest-pass-"+uuid.NewString()+".jpeg")
	if err := qrc.Save(path); err != nil {
		return failErr(c, err)
	}
	defer os.Remove(path)
	return c.File(path)
}

// ListPending handles GET /v1/hospital/guests/pending.
func (h *GuestPassHandler) ListPending(c echo.Context) error {
	hid, found := hospitalOf(c)
	if !found {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Guests.ListPending(ctx, hid)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, list)
}

// Approve handles POST /v1/hospital/guests/:id/approve.
func (h *GuestPassHandler) Approve(c echo.Context) error {
	return h.decide(c, h.Passes.Approve)
}

// Reject handles POST /v1/hospital/guests/:id/reject.
func (h *GuestPassHandler) Reject(c echo.Context) error {
	return h.decide(c, h.Passes.Reject)
}

func (h *GuestPassHandler) decide(c echo.Context, fn func(ctx context.Context, hospitalID, guestID, adminID uint64) (model.GuestPass, error)) error {
	a, found := actorOf(c)
	if !found || a.HospitalID == 0 {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid guest id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	g, err := fn(ctx, a.HospitalID, id, a.UserID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, g)
}
