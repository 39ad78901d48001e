package middleware

// identity.go holds helpers shared across middleware files: the caller
// id used in rate limit and cache keys, and the per-request actor.

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hospital-guest-access/internal/access"
	"github.com/iliyamo/hospital-guest-access/internal/model"
	"github.com/iliyamo/hospital-guest-access/internal/repository"
)

const actorKey = "actor"

// userID returns the authenticated user id as a string, or "anon".
func userID(c echo.Context) string {
	if id, ok := c.Get("user_id").(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

// UserLookup loads the user row behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// LoadActor resolves the caller's scope from its user row and stores an
// access.Actor under "actor".  Deactivated users and users whose scope is
// incomplete (a nurse without a section) are refused.  The role in the
// row wins over the token claim.
func LoadActor(users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get("user_id").(uint64)
			if !ok || id == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized"})
			}
			u, err := users.GetByID(c.Request().Context(), id)
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unknown user"})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "error": "database error"})
			}
			if !u.IsActive {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "account disabled"})
			}
			a, ok := access.ActorFromUser(u)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "error": "account has no assigned scope"})
			}
			c.Set("role", u.Role)
			c.Set(actorKey, a)
			return next(c)
		}
	}
}

// ActorFrom returns the actor stored by LoadActor.
func ActorFrom(c echo.Context) (access.Actor, bool) {
	a, ok := c.Get(actorKey).(access.Actor)
	return a, ok
}
