package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

const (
	headerTimezone    = "X-Timezone"
	headerCountryCode = "X-Country-Code"
	headerSessionID   = "X-Session-ID"
	cookieSessionID   = "session_id"
)

// requestSignals collects the detection hints carried by the request.
func requestSignals(c echo.Context) domain.RequestSignals {
	req := c.Request()

	tz := req.Header.Get(headerTimezone)
	if tz == "" {
		tz = c.QueryParam("tz")
	}

	session := req.Header.Get(headerSessionID)
	if session == "" {
		if cookie, err := c.Cookie(cookieSessionID); err == nil {
			session = cookie.Value
		}
	}

	userID, _ := c.Get("user_id").(string)

	return domain.RequestSignals{
		NetworkOrigin:  c.RealIP(),
		CountryCode:    strings.ToUpper(strings.TrimSpace(req.Header.Get(headerCountryCode))),
		AcceptLanguage: req.Header.Get("Accept-Language"),
		Timezone:       tz,
		SessionID:      session,
		UserID:         userID,
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidRegion),
		errors.Is(err, apperrors.ErrSelfMapping),
		errors.Is(err, apperrors.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrBudgetExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrMarketplaceUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func regionParam(c echo.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("region")))
}
