package rest

import (
	"context"
	"net/http"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"smartLink/domain"
	"smartLink/pkg/logger"
)

type (
	LocationHandler struct {
		validate *validator.Validate
		location LocationService
	}

	LocationService interface {
		DetectRegion(ctx context.Context, signals domain.RequestSignals) domain.RegionDetection
		SavePreference(ctx context.Context, userID, sessionID, region string, manual bool) (domain.UserRegionPreference, error)
		ActiveRegions(ctx context.Context) ([]domain.Region, error)
	}

	PreferenceInput struct {
		Region    string `json:"region" validate:"required,len=2"`
		SessionID string `json:"session_id"`
		Manual    *bool  `json:"manual"`
	}
)

func NewLocationHandler(location LocationService) *LocationHandler {
	return &LocationHandler{
		validate: validator.New(),
		location: location,
	}
}

// GET /api/v1/location
func (h *LocationHandler) Detect(c echo.Context) error {
	detection := h.location.DetectRegion(c.Request().Context(), requestSignals(c))
	return c.JSON(http.StatusOK, fres.Response.StatusOK(detection))
}

// PUT /api/v1/location/preference
func (h *LocationHandler) SavePreference(c echo.Context) error {
	var request PreferenceInput

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	signals := requestSignals(c)
	if request.SessionID != "" {
		signals.SessionID = request.SessionID
	}

	manual := true
	if request.Manual != nil {
		manual = *request.Manual
	}

	pref, err := h.location.SavePreference(c.Request().Context(), signals.UserID, signals.SessionID, request.Region, manual)
	if err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(pref))
}

// GET /api/v1/regions
func (h *LocationHandler) Regions(c echo.Context) error {
	regions, err := h.location.ActiveRegions(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list regions", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to list regions"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(regions))
}
