package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
)

// Response is the envelope shared by every API reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Success: true, Data: data})
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, Response{Success: true, Message: msg})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(kind entities.ErrorKind) int {
	switch kind {
	case entities.KindValidation:
		return http.StatusBadRequest
	case entities.KindAuthentication:
		return http.StatusUnauthorized
	case entities.KindAuthorization:
		return http.StatusForbidden
	case entities.KindNotFound:
		return http.StatusNotFound
	case entities.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error as an error envelope. Internal failures are logged and their
// details withheld from the client.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := renderError(err)
		if code >= http.StatusInternalServerError {
			log.WithRequestID(c.Response().Header().Get(echo.HeaderXRequestID)).
				WithError(err).
				Errorw("Internal server error",
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
				)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.Errorw("Error sending response", "error", err)
		}
	}
}

func renderError(err error) (int, Response) {
	var de *entities.DomainError
	if errors.As(err, &de) {
		return StatusFor(de.Kind), Response{Message: de.Message, Errors: de.Details}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, Response{Message: fmt.Sprint(he.Message)}
	}

	if errors.Is(err, entities.ErrAssignmentFailed) {
		return http.StatusInternalServerError, Response{Message: entities.ErrAssignmentFailed.Error()}
	}

	return http.StatusInternalServerError, Response{Message: "internal server error"}
}
