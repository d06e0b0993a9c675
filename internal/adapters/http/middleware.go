package http

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/ports"
)

const actorKey = "actor"

var errMissingToken = entities.NewAuthenticationError("missing authorization token")

// Authenticate validates the bearer token, or the token query parameter used by WebSocket
// clients, and stores the resulting actor on the context.
func Authenticate(auth ports.AuthService, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				token = c.QueryParam("token")
			}
			if token == "" {
				return errMissingToken
			}

			actor, err := auth.ValidateToken(token)
			if err != nil {
				log.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"path": c.Request().URL.Path,
				})
				return err
			}

			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// RequireAdmin rejects non-admin actors. It must run after Authenticate.
func RequireAdmin(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return errMissingToken
			}

			if !actor.IsAdmin() {
				log.LogSecurityEvent("insufficient_permissions", actor.ID.String(), c.RealIP(), map[string]interface{}{
					"user_role": actor.Role,
					"endpoint":  c.Request().URL.Path,
				})
				return entities.ErrAdminOnly
			}

			return next(c)
		}
	}
}

// ActorFrom returns the authenticated actor stored by Authenticate.
func ActorFrom(c echo.Context) (entities.Actor, bool) {
	actor, ok := c.Get(actorKey).(entities.Actor)
	return actor, ok
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
