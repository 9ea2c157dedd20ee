package presenter

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/starnet/internal/domain"
)

const internalFailure = "internal failure"

// OK wraps a successful response.
func OK[T any](c echo.Context, payload T, message string) error {
	return c.JSON(http.StatusOK, domain.OKResult(payload, message))
}

func BadRequest(c echo.Context, err error) error {
	return BadRequestMessage(c, err.Error())
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("message", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, domain.ErrorResult[any](msg, ""))
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, domain.ErrorResult[any](msg, ""))
}

func StatusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidStateTransition, domain.KindConflict:
		return http.StatusConflict
	case domain.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error reports err with the status class of its kind. Unexpected errors
// only expose their text when verbose is set.
func Error(c echo.Context, err error, verbose bool) error {
	kind := domain.KindOf(err)
	status := StatusOf(kind)

	if kind != domain.KindUnexpected {
		return c.JSON(status, domain.ErrorResult[any](err.Error(), ""))
	}

	slog.ErrorContext(
		c.Request().Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("path", c.Path()),
		slog.String("module", "rest"),
	)
	if verbose {
		return c.JSON(status, domain.ErrorResult[any](internalFailure, err.Error()))
	}
	return c.JSON(status, domain.ErrorResult[any](internalFailure, ""))
}
