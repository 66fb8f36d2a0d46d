//go:build !integration

package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/pkg/apperrors"
	"smartLink/pkg/utils"
)

func newAdminServer() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	}, AuthMiddleware("secret"), AdminOnly())
	e.GET("/missing", func(c echo.Context) error {
		return fmt.Errorf("lookup: %w", apperrors.ErrNotFound)
	})
	e.GET("/boom", func(c echo.Context) error {
		return fmt.Errorf("db down")
	})
	return e
}

func doRequest(e *echo.Echo, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	e := newAdminServer()

	admin, err := utils.GenerateJWT("secret", "ops", "ADMIN", time.Hour)
	require.NoError(t, err)
	viewer, err := utils.GenerateJWT("secret", "viewer", "VIEWER", time.Hour)
	require.NoError(t, err)
	forged, err := utils.GenerateJWT("other", "ops", "ADMIN", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"forged", "Bearer " + forged, http.StatusUnauthorized},
		{"not admin", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, "/admin", tt.auth)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := doRequest(e, "/admin", "Bearer "+admin)
	assert.Equal(t, "ops", rec.Body.String())
}

func TestErrorHandler(t *testing.T) {
	e := newAdminServer()

	rec := doRequest(e, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	rec = doRequest(e, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")

	rec = doRequest(e, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
