//go:build !integration

package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

type fakeLocation struct {
	signals domain.RequestSignals
	saved   domain.UserRegionPreference
	manual  bool
}

func (f *fakeLocation) DetectRegion(ctx context.Context, signals domain.RequestSignals) domain.RegionDetection {
	f.signals = signals
	return domain.RegionDetection{Region: "BR", Confidence: 0.76, Source: domain.SourceNetworkOrigin}
}

func (f *fakeLocation) SavePreference(ctx context.Context, userID, sessionID, region string, manual bool) (domain.UserRegionPreference, error) {
	if region == "ZZ" {
		return domain.UserRegionPreference{}, apperrors.ErrInvalidRegion
	}
	f.manual = manual
	f.saved = domain.UserRegionPreference{SessionID: sessionID, PreferredRegion: region, IsManualSelection: manual}
	return f.saved, nil
}

func (f *fakeLocation) ActiveRegions(ctx context.Context) ([]domain.Region, error) {
	return []domain.Region{{ID: "BR", Name: "Brasil"}, {ID: "US", Name: "United States"}}, nil
}

func newLocationServer(f *fakeLocation) *echo.Echo {
	e := echo.New()
	h := NewLocationHandler(f)
	api := e.Group("/api/v1")
	api.GET("/location", h.Detect)
	api.PUT("/location/preference", h.SavePreference)
	api.GET("/regions", h.Regions)
	return e
}

func TestLocationHandler_Detect(t *testing.T) {
	f := &fakeLocation{}
	e := newLocationServer(f)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/location", nil)
	req.Header.Set("X-Country-Code", " br ")
	rec := serve(e, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"region":"BR"`)
	assert.Equal(t, "BR", f.signals.CountryCode)
}

func TestLocationHandler_SavePreference(t *testing.T) {
	f := &fakeLocation{}
	e := newLocationServer(f)

	put := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/location/preference", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-Session-ID", "sess-9")
		return serve(e, req)
	}

	rec := put(`{"region":"ES"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.manual)
	assert.Equal(t, "sess-9", f.saved.SessionID)

	rec = put(`{"region":"ES","manual":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.manual)

	assert.Equal(t, http.StatusBadRequest, put(`{"region":"ZZ"}`).Code)
	assert.Equal(t, http.StatusBadRequest, put(`{"region":"SPAIN"}`).Code)
	assert.Equal(t, http.StatusBadRequest, put(`{}`).Code)
}

func TestLocationHandler_Regions(t *testing.T) {
	e := newLocationServer(&fakeLocation{})

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/v1/regions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "United States")
}
