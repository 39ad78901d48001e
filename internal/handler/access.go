package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/service"
)

// AccessRecorder decides and records one guest entry or exit.
type AccessRecorder interface {
	RequestAccess(ctx context.Context, actor access.Actor, target service.Target, action access.Action, meta service.ScanMeta) (service.Result, error)
}

// AccessHandler serves nurse check-in/check-out and security scans.
type AccessHandler struct {
	Access AccessRecorder
}

func NewAccessHandler(a AccessRecorder) *AccessHandler {
	return &AccessHandler{Access: a}
}

type manualAccessReq struct {
	Notes *string `json:"notes" validate:"omitempty,max=500"`
}

type scanReq struct {
	QRCode   string  `json:"qr_code" validate:"required,max=64"`
	Action   string  `json:"action" validate:"required,action"`
	DeviceID *string `json:"device_id" validate:"omitempty,max=100"`
	Notes    *string `json:"notes" validate:"omitempty,max=500"`
}

type guestSummary struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	PassType   string    `json:"pass_type"`
	SessionID  uint64    `json:"session_id"`
	ValidUntil time.Time `json:"valid_until"`
	ScansUsed  uint32    `json:"qr_scans_used"`
	ScanLimit  *uint32   `json:"qr_scan_limit"`
}

type accessResp struct {
	Success   bool          `json:"success"`
	Granted   bool          `json:"granted"`
	Error     string        `json:"error,omitempty"`
	Reason    access.Reason `json:"reason,omitempty"`
	LogID     uint64        `json:"log_id"`
	Timestamp time.Time     `json:"timestamp"`
	Guest     *guestSummary `json:"guest,omitempty"`
}

// denialStatus is the HTTP status of a recorded denial.
func denialStatus(r access.Reason) int {
	switch r {
	case access.ReasonAccessDenied:
		return http.StatusForbidden
	case access.ReasonPassOutsideWindow:
		return http.StatusUnprocessableEntity
	}
	return http.StatusConflict
}

func writeResult(c echo.Context, res service.Result) error {
	body := accessResp{
		Success:   res.Granted,
		Granted:   res.Granted,
		Reason:    res.Reason,
		LogID:     res.LogID,
		Timestamp: res.Timestamp,
	}
	// a caller outside the guest's scope learns nothing about the pass
	if res.Reason != access.ReasonAccessDenied {
		body.Guest = &guestSummary{
			ID:         res.Guest.ID,
			Name:       res.Guest.GuestName,
			PassType:   res.Guest.PassType,
			SessionID:  res.Guest.SessionID,
			ValidUntil: res.Guest.ValidUntil,
			ScansUsed:  res.Guest.QRScansUsed,
			ScanLimit:  res.Guest.QRScanLimit,
		}
	}
	if res.Granted {
		return c.JSON(http.StatusOK, body)
	}
	body.Error = res.Reason.Message()
	return c.JSON(denialStatus(res.Reason), body)
}

// CheckIn handles POST /v1/access/guests/:id/check-in.
func (h *AccessHandler) CheckIn(c echo.Context) error {
	return h.manual(c, access.CheckIn)
}

// CheckOut handles POST /v1/access/guests/:id/check-out.
func (h *AccessHandler) CheckOut(c echo.Context) error {
	return h.manual(c, access.CheckOut)
}

func (h *AccessHandler) manual(c echo.Context, action access.Action) error {
	actor, found := actorOf(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "invalid guest id")
	}
	var req manualAccessReq
	if c.Request().ContentLength != 0 {
		if okBind, err := bind(c, &req); !okBind {
			return err
		}
	}
	res, err := h.Access.RequestAccess(c.Request().Context(), actor,
		service.Target{GuestID: id}, action, service.ScanMeta{Notes: req.Notes})
	if err != nil {
		return failErr(c, err)
	}
	return writeResult(c, res)
}

// Scan handles POST /v1/access/scan from a security scanner.
func (h *AccessHandler) Scan(c echo.Context) error {
	actor, found := actorOf(c)
	if !found {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req scanReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	action, _ := access.ParseAction(req.Action)
	res, err := h.Access.RequestAccess(c.Request().Context(), actor,
		service.Target{QRCode: req.QRCode}, action,
		service.ScanMeta{DeviceID: req.DeviceID, Notes: req.Notes})
	if err != nil {
		return failErr(c, err)
	}
	return writeResult(c, res)
}
