package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DeviceTokens stores push tokens of mobile clients.
type DeviceTokens interface {
	UpsertDevice(ctx context.Context, userID uint64, token, platform string) error
	DeleteDevice(ctx context.Context, userID uint64, token string) error
}

// DeviceHandler registers push tokens.  Nothing is delivered to them
// from this service.
type DeviceHandler struct {
	Devices DeviceTokens
}

func NewDeviceHandler(d DeviceTokens) *DeviceHandler { return &DeviceHandler{Devices: d} }

type deviceReq struct {
	Token    string `json:"token" validate:"required,max=255"`
	Platform string `json:"platform" validate:"required,oneof=android ios web"`
}

// Register handles POST /v1/devices.
func (h *DeviceHandler) Register(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var req deviceReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Devices.UpsertDevice(ctx, uid, strings.TrimSpace(req.Token), req.Platform); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, echo.Map{"token": req.Token, "platform": req.Platform})
}

// Delete handles DELETE /v1/devices/:token.
func (h *DeviceHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return fail(c, http.StatusBadRequest, "token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Devices.DeleteDevice(ctx, uid, token); err != nil {
		return failErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
