package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/middleware"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
	"github.com/iliyamo/hospital-guest-access/internal/service"
)

// dbTimeout bounds the storage calls of one request.
const dbTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// ok writes the success envelope.  data may be nil.
func ok(c echo.Context, status int, data any) error {
	body := echo.Map{"success": true}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

// fail writes the error envelope.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}

func failReason(c echo.Context, status int, reason access.Reason) error {
	return c.JSON(status, echo.Map{"success": false, "error": reason.Message(), "reason": reason})
}

// failErr maps a repository or service error to a response.  Unknown
// errors become a generic 500 and are attached to the request log.
func failErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrGuestLimitReached):
		return failReason(c, http.StatusConflict, access.ReasonGuestLimitReached)
	case errors.Is(err, service.ErrSessionNotActive):
		return failReason(c, http.StatusConflict, access.ReasonSessionNotActive)
	case errors.Is(err, service.ErrGuestNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrNotPermitted),
		errors.Is(err, service.ErrOtherHospital):
		return fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrForbidden):
		return fail(c, http.StatusForbidden, "resource belongs to another hospital")
	case errors.Is(err, service.ErrInvalidTarget),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, access.ErrUnknownPassType),
		errors.Is(err, access.ErrVisitDateRequired),
		errors.Is(err, access.ErrVisitDateInPast),
		errors.Is(err, access.ErrInvalidVisitDate):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPassNotPending),
		errors.Is(err, repository.ErrRoomNotAvailable),
		errors.Is(err, repository.ErrActiveSessionExists),
		errors.Is(err, repository.ErrGuestsInside),
		errors.Is(err, repository.ErrEmailExists):
		return fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrDuplicate):
		return fail(c, http.StatusConflict, "conflicting state")
	case errors.Is(err, context.DeadlineExceeded):
		c.Set("error", err)
		return fail(c, http.StatusServiceUnavailable, "request timed out")
	}
	c.Set("error", err)
	return fail(c, http.StatusInternalServerError, "internal error")
}

// bind decodes the body into dst and runs the registered validator.
// The response is already written when it returns false.
func bind(c echo.Context, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, fail(c, http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(dst); err != nil {
		return false, fail(c, http.StatusBadRequest, err.Error())
	}
	return true, nil
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// actorOf returns the scoped caller loaded by middleware.LoadActor.
func actorOf(c echo.Context) (access.Actor, bool) {
	return middleware.ActorFrom(c)
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryID parses an optional numeric query parameter; zero when absent.
func queryID(c echo.Context, name string) (uint64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(c echo.Context, name string) (*bool, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, false
	}
	return &b, true
}

func queryLimit(c echo.Context) int {
	n, _ := strconv.Atoi(c.QueryParam("limit"))
	return n
}
