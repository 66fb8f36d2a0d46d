package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"smartLink/business/linkresolver"
	"smartLink/pkg/logger"
)

type (
	LinkHandler struct {
		validate *validator.Validate
		links    LinkService
	}

	LinkService interface {
		Resolve(ctx context.Context, productID string, uc linkresolver.UserContext) linkresolver.Resolution
		TrackingLinks(ctx context.Context, productID string, contexts []string) (linkresolver.TrackingLinks, error)
		DecodeToken(token string) (productID, origin string, err error)
	}

	TrackingInput struct {
		Contexts []string `json:"contexts" validate:"max=20,dive,max=64"`
	}
)

func NewLinkHandler(links LinkService) *LinkHandler {
	return &LinkHandler{
		validate: validator.New(),
		links:    links,
	}
}

func (h *LinkHandler) userContext(c echo.Context) linkresolver.UserContext {
	return linkresolver.UserContext{
		Signals: requestSignals(c),
		Region:  strings.ToUpper(strings.TrimSpace(c.QueryParam("region"))),
		Context: c.QueryParam("context"),
	}
}

// GET /api/v1/links/:productId?region=US&context=blog
func (h *LinkHandler) Resolve(c echo.Context) error {
	productID := strings.TrimSpace(c.Param("productId"))
	if productID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "product id is required"})
	}

	res := h.links.Resolve(c.Request().Context(), productID, h.userContext(c))
	if !res.Resolvable() {
		return c.JSON(http.StatusNotFound, res)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(res))
}

// GET /api/v1/go/:productId
func (h *LinkHandler) Redirect(c echo.Context) error {
	productID := strings.TrimSpace(c.Param("productId"))
	if productID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "product id is required"})
	}

	return h.redirect(c, productID, h.userContext(c))
}

// GET /api/v1/go/t?token=...
func (h *LinkHandler) TrackedRedirect(c echo.Context) error {
	productID, origin, err := h.links.DecodeToken(c.QueryParam("token"))
	if err != nil {
		logger.Warn("Rejected tracking token", "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	uc := h.userContext(c)
	uc.Context = origin
	return h.redirect(c, productID, uc)
}

func (h *LinkHandler) redirect(c echo.Context, productID string, uc linkresolver.UserContext) error {
	res := h.links.Resolve(c.Request().Context(), productID, uc)
	if !res.Resolvable() {
		return c.JSON(http.StatusNotFound, ResponseError{Message: res.Reason})
	}

	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Redirect(http.StatusFound, res.RedirectURL)
}

// POST /api/v1/links/:productId/tracking
func (h *LinkHandler) Tracking(c echo.Context) error {
	var request TrackingInput

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	links, err := h.links.TrackingLinks(c.Request().Context(), c.Param("productId"), request.Contexts)
	if err != nil {
		logger.Error("Failed to build tracking links", "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(links))
}
