package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

// SessionHandler admits and discharges patients.
type SessionHandler struct {
	Sessions *repository.SessionRepo
}

func NewSessionHandler(sessions *repository.SessionRepo) *SessionHandler {
	return &SessionHandler{Sessions: sessions}
}

type admitReq struct {
	PatientName  string `json:"patient_name" validate:"required,max=120"`
	PatientPhone string `json:"patient_phone" validate:"required,phone"`
	RoomID       uint64 `json:"room_id" validate:"required,gt=0"`
}

// Admit handles POST /v1/sessions.  The patient user is created on
// first admission and reused afterwards, matched by phone.
func (h *SessionHandler) Admit(c echo.Context) error {
	a, found := actorOf(c)
	if !found || a.HospitalID == 0 {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	var req admitReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, err := h.Sessions.Admit(ctx, repository.Admission{
		HospitalID:   a.HospitalID,
		RoomID:       req.RoomID,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		AdmittedBy:   a.UserID,
		StartDate:    time.Now().UTC(),
	})
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, ps)
}

// Discharge handles POST /v1/sessions/:id/discharge.
func (h *SessionHandler) Discharge(c echo.Context) error {
	a, found := actorOf(c)
	if !found || a.HospitalID == 0 {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid session id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, err := h.Sessions.Discharge(ctx, a.HospitalID, id, time.Now().UTC())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, ps)
}

// List handles GET /v1/sessions?status=.
func (h *SessionHandler) List(c echo.Context) error {
	a, found := actorOf(c)
	if !found || a.HospitalID == 0 {
		return fail(c, http.StatusForbidden, "no hospital assigned")
	}
	status := c.QueryParam("status")
	if status != "" && status != model.SessionActive && status != model.SessionDischarged {
		return fail(c, http.StatusBadRequest, "status must be active or discharged")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Sessions.List(ctx, a.HospitalID, status)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, list)
}
