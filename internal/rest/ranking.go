package rest

import (
	"context"
	"net/http"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"smartLink/business/ranker"
	"smartLink/domain"
	"smartLink/pkg/logger"
)

type (
	RankingHandler struct {
		validate *validator.Validate
		ranker   RankingService
	}

	RankingService interface {
		RankCandidates(criteria domain.ConceptCriteria, candidates []domain.ProductCandidate) []ranker.Scored
		ResolveKit(ctx context.Context, items []domain.ConceptItem) []domain.KitProduct
		ReRank(products []domain.KitProduct, pr *ranker.PriceRange) []domain.KitProduct
	}

	RankInput struct {
		Criteria   domain.ConceptCriteria    `json:"criteria"`
		Candidates []domain.ProductCandidate `json:"candidates" validate:"required,max=500"`
	}

	KitInput struct {
		Items []domain.ConceptItem `json:"items" validate:"required,min=1,max=20,dive"`
	}

	ReRankInput struct {
		Products   []domain.KitProduct `json:"products" validate:"required,max=100"`
		PriceRange *ranker.PriceRange  `json:"price_range"`
	}
)

func NewRankingHandler(r RankingService) *RankingHandler {
	return &RankingHandler{
		validate: validator.New(),
		ranker:   r,
	}
}

// POST /api/v1/rank
func (h *RankingHandler) Rank(c echo.Context) error {
	var request RankInput

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.ranker.RankCandidates(request.Criteria, request.Candidates)))
}

// POST /api/v1/kits/resolve
func (h *RankingHandler) ResolveKit(c echo.Context) error {
	var request KitInput

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	products := h.ranker.ResolveKit(c.Request().Context(), request.Items)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(products))
}

// POST /api/v1/kits/rerank
func (h *RankingHandler) ReRank(c echo.Context) error {
	var request ReRankInput

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(h.ranker.ReRank(request.Products, request.PriceRange)))
}
