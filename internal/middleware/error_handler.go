package middleware

import (
	"errors"
	"net/http"

	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
	jsonres "smartLink/pkg/response"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders errors that escape handlers with the JSON envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Unhandled request error", "path", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, jsonres.Error(code, message, nil))
}

func classify(err error) (int, string, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, codeFor(he.Code), msg
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, apperrors.ErrInvalidRegion), errors.Is(err, apperrors.ErrSelfMapping):
		return http.StatusBadRequest, "BAD_REQUEST", err.Error()
	case errors.Is(err, apperrors.ErrInvalidToken):
		return http.StatusBadRequest, "INVALID_TOKEN", err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, apperrors.ErrBudgetExceeded):
		return http.StatusTooManyRequests, "BUDGET_EXCEEDED", err.Error()
	case errors.Is(err, apperrors.ErrMarketplaceUnavailable):
		return http.StatusBadGateway, "MARKETPLACE_UNAVAILABLE", err.Error()
	}

	return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	}
	if status >= http.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "ERROR"
}
