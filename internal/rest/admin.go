package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"smartLink/business/costgovernor"
	"smartLink/business/linkresolver"
	"smartLink/business/refresh"
	"smartLink/domain"
	"smartLink/pkg/logger"
	"smartLink/pkg/utils"
)

const (
	adminSubject         = "admin"
	adminRole            = "ADMIN"
	defaultPerfWindow    = 7 * 24 * time.Hour
	maxPerfWindow        = 90 * 24 * time.Hour
	defaultAdminTokenTTL = 12 * time.Hour
)

type (
	CostService interface {
		CostAnalytics(ctx context.Context, region string) (costgovernor.Analytics, error)
		PredictDemand(ctx context.Context, region string) (costgovernor.Demand, error)
		CacheStrategy(ctx context.Context, productID, region string) (costgovernor.Strategy, error)
		ApplyThrottling(ctx context.Context, region string) error
		ReleaseThrottle(ctx context.Context, region string) error
	}

	RefreshService interface {
		RunBatchRefresh(ctx context.Context, region string) (refresh.Report, error)
		RefreshProducts(ctx context.Context, region string, productIDs []string) (int, error)
		ReactivateProducts(ctx context.Context, region string, ids []string) (int, error)
		OptimizeFrequencies(ctx context.Context, region string) (int, error)
	}

	LinkInsights interface {
		LinkPerformance(ctx context.Context, window time.Duration) (linkresolver.Performance, error)
		PreWarm(ctx context.Context, region string) (int, error)
		ValidateRegionConfiguration(ctx context.Context, region string) (linkresolver.Validation, error)
		ValidateRegions(ctx context.Context) ([]linkresolver.Validation, error)
	}

	CatalogStore interface {
		CreateMapping(ctx context.Context, mapping *domain.ProductEquivalenceMapping) error
		DeactivateMapping(ctx context.Context, id uint64) error
		SetEngagement(ctx context.Context, engagement *domain.ProductEngagement) error
	}

	RegionTable interface {
		IsKnown(region string) bool
	}

	AdminAuth struct {
		Secret       string
		PasswordHash string
		TokenTTL     time.Duration
	}

	AdminHandler struct {
		validate *validator.Validate
		cost     CostService
		refresh  RefreshService
		links    LinkInsights
		catalog  CatalogStore
		regions  RegionTable
		auth     AdminAuth
	}

	TokenInput struct {
		Password string `json:"password" validate:"required"`
	}

	ProductIDsInput struct {
		ProductIDs []string `json:"product_ids" validate:"max=500,dive,required"`
	}

	MappingInput struct {
		BaseProductID       string  `json:"base_product_id" validate:"required"`
		RegionID            string  `json:"region_id" validate:"required,len=2"`
		EquivalentProductID string  `json:"equivalent_product_id" validate:"required"`
		SimilarityScore     float64 `json:"similarity_score" validate:"gte=0,lte=1"`
	}

	EngagementInput struct {
		Favorites int64 `json:"favorites" validate:"gte=0"`
		Views     int64 `json:"views" validate:"gte=0"`
	}
)

func NewAdminHandler(
	cost CostService,
	refresher RefreshService,
	links LinkInsights,
	catalog CatalogStore,
	regions RegionTable,
	auth AdminAuth,
) *AdminHandler {
	if auth.TokenTTL <= 0 {
		auth.TokenTTL = defaultAdminTokenTTL
	}
	return &AdminHandler{
		validate: validator.New(),
		cost:     cost,
		refresh:  refresher,
		links:    links,
		catalog:  catalog,
		regions:  regions,
		auth:     auth,
	}
}

func (h *AdminHandler) knownRegion(c echo.Context) (string, bool) {
	region := regionParam(c)
	return region, h.regions.IsKnown(region)
}

// POST /api/v1/admin/token
func (h *AdminHandler) Token(c echo.Context) error {
	var request TokenInput

	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if h.auth.PasswordHash == "" || !utils.CheckPassword(request.Password, h.auth.PasswordHash) {
		logger.Warn("Admin login rejected", "ip", c.RealIP())
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "invalid credentials"})
	}

	token, err := utils.GenerateJWT(h.auth.Secret, adminSubject, adminRole, h.auth.TokenTTL)
	if err != nil {
		logger.Error("Failed to sign admin token", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: "failed to issue token"})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(echo.Map{
		"token":      token,
		"expires_in": int(h.auth.TokenTTL.Seconds()),
	}))
}

// GET /api/v1/admin/cost/:region
func (h *AdminHandler) CostAnalytics(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	analytics, err := h.cost.CostAnalytics(c.Request().Context(), region)
	if err != nil {
		logger.Error("Failed to compute cost analytics", "region", region, "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(analytics))
}

// GET /api/v1/admin/cost/:region/demand
func (h *AdminHandler) Demand(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	demand, err := h.cost.PredictDemand(c.Request().Context(), region)
	if err != nil {
		logger.Error("Failed to predict demand", "region", region, "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(demand))
}

// GET /api/v1/admin/cost/:region/strategy/:productId
func (h *AdminHandler) Strategy(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	strategy, err := h.cost.CacheStrategy(c.Request().Context(), c.Param("productId"), region)
	if err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(strategy))
}

// POST /api/v1/admin/cost/:region/throttle
func (h *AdminHandler) Throttle(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	if err := h.cost.ApplyThrottling(c.Request().Context(), region); err != nil {
		logger.Error("Failed to throttle region", "region", region, "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("Region throttled"))
}

// DELETE /api/v1/admin/cost/:region/throttle
func (h *AdminHandler) ReleaseThrottle(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	if err := h.cost.ReleaseThrottle(c.Request().Context(), region); err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("Throttle released"))
}

// POST /api/v1/admin/refresh/:region
func (h *AdminHandler) RunRefresh(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	report, err := h.refresh.RunBatchRefresh(c.Request().Context(), region)
	if err != nil {
		logger.Error("Batch refresh failed", "region", region, "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(report))
}

// POST /api/v1/admin/refresh/:region/products
func (h *AdminHandler) RefreshProducts(c echo.Context) error {
	return h.productBatch(c, h.refresh.RefreshProducts, true)
}

// POST /api/v1/admin/refresh/:region/reactivate
func (h *AdminHandler) Reactivate(c echo.Context) error {
	return h.productBatch(c, h.refresh.ReactivateProducts, false)
}

func (h *AdminHandler) productBatch(
	c echo.Context,
	fn func(ctx context.Context, region string, ids []string) (int, error),
	requireIDs bool,
) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	var request ProductIDsInput
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if requireIDs && len(request.ProductIDs) == 0 {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "product_ids is required"})
	}

	n, err := fn(c.Request().Context(), region, request.ProductIDs)
	if err != nil {
		logger.Error("Product refresh failed", "region", region, "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"region": region, "count": n}))
}

// POST /api/v1/admin/refresh/:region/frequencies
func (h *AdminHandler) OptimizeFrequencies(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	n, err := h.refresh.OptimizeFrequencies(c.Request().Context(), region)
	if err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"region": region, "high_frequency": n}))
}

// POST /api/v1/admin/links/prewarm/:region
func (h *AdminHandler) PreWarm(c echo.Context) error {
	region, ok := h.knownRegion(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	n, err := h.links.PreWarm(c.Request().Context(), region)
	if err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{"region": region, "refreshed": n}))
}

// GET /api/v1/admin/links/performance?days=7
func (h *AdminHandler) Performance(c echo.Context) error {
	window := defaultPerfWindow
	if days := c.QueryParam("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid days"})
		}
		window = time.Duration(n) * 24 * time.Hour
		if window > maxPerfWindow {
			window = maxPerfWindow
		}
	}

	perf, err := h.links.LinkPerformance(c.Request().Context(), window)
	if err != nil {
		logger.Error("Failed to compute link performance", "error", err)
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(perf))
}

// GET /api/v1/admin/regions/validate?region=US
func (h *AdminHandler) Validate(c echo.Context) error {
	ctx := c.Request().Context()

	if region := strings.TrimSpace(c.QueryParam("region")); region != "" {
		v, err := h.links.ValidateRegionConfiguration(ctx, region)
		if err != nil {
			return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusOK, fres.Response.StatusOK(v))
	}

	all, err := h.links.ValidateRegions(ctx)
	if err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(all))
}

// POST /api/v1/admin/mappings
func (h *AdminHandler) CreateMapping(c echo.Context) error {
	var request MappingInput

	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	mapping := &domain.ProductEquivalenceMapping{
		BaseProductID:       strings.TrimSpace(request.BaseProductID),
		RegionID:            strings.ToUpper(request.RegionID),
		EquivalentProductID: strings.TrimSpace(request.EquivalentProductID),
		SimilarityScore:     request.SimilarityScore,
		IsActive:            true,
	}
	if !h.regions.IsKnown(mapping.RegionID) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "unknown region"})
	}

	if err := h.catalog.CreateMapping(c.Request().Context(), mapping); err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(mapping))
}

// DELETE /api/v1/admin/mappings/:id
func (h *AdminHandler) DeactivateMapping(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid mapping id"})
	}

	if err := h.catalog.DeactivateMapping(c.Request().Context(), id); err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("Mapping deactivated"))
}

// PUT /api/v1/admin/engagement/:productId
func (h *AdminHandler) SetEngagement(c echo.Context) error {
	var request EngagementInput

	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	engagement := &domain.ProductEngagement{
		ProductID: strings.TrimSpace(c.Param("productId")),
		Favorites: request.Favorites,
		Views:     request.Views,
	}
	if engagement.ProductID == "" {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "product id is required"})
	}

	if err := h.catalog.SetEngagement(c.Request().Context(), engagement); err != nil {
		return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(engagement))
}
