package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/config"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
	"github.com/iliyamo/hospital-guest-access/internal/utils"
)

// otpDigits is the length of a login code.
const otpDigits = 6

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	OTP    *repository.OTPStore
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, otp *repository.OTPStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, OTP: otp}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type otpRequestReq struct {
	Phone string `json:"phone" validate:"required,phone"`
}
type otpVerifyReq struct {
	Phone string `json:"phone" validate:"required,phone"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

// issue creates a token pair for u and stores the refresh hash.
func (h *AuthHandler) issue(c echo.Context, u model.User) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return failErr(c, err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return failErr(c, err)
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Login: verify email and password of a staff account.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return failErr(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if !u.IsActive {
		return fail(c, http.StatusForbidden, "account disabled")
	}
	return h.issue(c, u)
}

// Refresh: exchange a refresh token for a new pair.  The old token is
// revoked in the same transaction, so it works once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required")
	}
	oldHash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := reqCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, oldHash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	if err != nil {
		return failErr(c, err)
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return failErr(c, err)
	}
	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return failErr(c, err)
	}
	err = h.Tokens.Rotate(ctx, u.ID, oldHash, utils.HashRefreshRaw(newRef.Raw), newRef.Exp)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// Logout revokes the refresh token in the body, or every refresh token
// of the bearer when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return fail(c, http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return failErr(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	bearer, found := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if !found {
		return fail(c, http.StatusBadRequest, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(bearer))
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
		return failErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's user row.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, u)
}

// RequestOTP sends a login code to a patient phone.  The response is
// the same whether or not the phone is known; only in development, with
// OTP_EXPOSE set, does it carry the code.
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req otpRequestReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	resp := echo.Map{"expires_in": int(h.OTP.TTL().Seconds())}
	u, err := h.Users.GetByPhone(ctx, req.Phone)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ok(c, http.StatusAccepted, resp)
	case err != nil:
		return failErr(c, err)
	case u.Role != model.RolePatient || !u.IsActive:
		return ok(c, http.StatusAccepted, resp)
	}

	code, err := utils.NewOTP(otpDigits)
	if err != nil {
		return failErr(c, err)
	}
	if err := h.OTP.Put(ctx, req.Phone, code); err != nil {
		if errors.Is(err, repository.ErrOTPDisabled) {
			return fail(c, http.StatusServiceUnavailable, "otp login unavailable")
		}
		return failErr(c, err)
	}
	if h.Cfg.OTPExpose {
		resp["code"] = code
	}
	return ok(c, http.StatusAccepted, resp)
}

// VerifyOTP consumes a code and logs the patient in.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpVerifyReq
	if okBind, err := bind(c, &req); !okBind {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	switch err := h.OTP.Verify(ctx, req.Phone, req.Code); {
	case errors.Is(err, repository.ErrOTPTooMany):
		return fail(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, repository.ErrOTPInvalid):
		return fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, repository.ErrOTPDisabled):
		return fail(c, http.StatusServiceUnavailable, "otp login unavailable")
	case err != nil:
		return failErr(c, err)
	}

	u, err := h.Users.GetByPhone(ctx, req.Phone)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && u.Role != model.RolePatient) {
		return fail(c, http.StatusUnauthorized, "invalid or expired code")
	}
	if err != nil {
		return failErr(c, err)
	}
	return h.issue(c, u)
}
