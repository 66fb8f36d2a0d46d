package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
	"smartLink/pkg/metrics"
	"smartLink/pkg/retry"
)

const maxIDsPerCall = 10

type MarketplaceConfig struct {
	BaseURL       string
	APIKey        string
	DefaultRegion string
	Timeout       time.Duration
	// spacing between item lookups of one GetByIDs call
	ChunkDelay time.Duration
}

// Admission charges one gateway request to a region before it is sent. A
// refusal wraps apperrors.ErrBudgetExceeded.
type Admission interface {
	Admit(ctx context.Context, region string) error
}

// MarketplaceRepository talks to the product catalog gateway. Credentials
// go in basic auth; bodies are JSON.
type MarketplaceRepository struct {
	config    MarketplaceConfig
	client    *http.Client
	retry     *retry.Config
	limiter   *rate.Limiter
	admission Admission
}

// NewMarketplaceRepository builds the gateway client. Without an admission
// every request is sent unmetered.
func NewMarketplaceRepository(cfg MarketplaceConfig, client *http.Client, admission Admission) *MarketplaceRepository {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.ChunkDelay > 0 {
		limit = rate.Every(cfg.ChunkDelay)
	}
	return &MarketplaceRepository{
		config:    cfg,
		client:    client,
		retry:     retry.DefaultConfig(),
		limiter:   rate.NewLimiter(limit, 1),
		admission: admission,
	}
}

type searchPayload struct {
	Region    string   `json:"region"`
	Keywords  string   `json:"keywords"`
	Category  string   `json:"category,omitempty"`
	MinPrice  float64  `json:"min_price,omitempty"`
	MaxPrice  float64  `json:"max_price,omitempty"`
	MinRating float64  `json:"min_rating,omitempty"`
	PrimeOnly bool     `json:"prime_only,omitempty"`
	SortBy    string   `json:"sort_by,omitempty"`
	ItemCount int      `json:"item_count,omitempty"`
	ItemIDs   []string `json:"item_ids,omitempty"`
}

type itemPayload struct {
	ASIN          string  `json:"asin"`
	Title         string  `json:"title"`
	Brand         string  `json:"brand"`
	ImageURL      string  `json:"image_url"`
	Price         float64 `json:"price"`
	ListPrice     float64 `json:"list_price"`
	Rating        float64 `json:"rating"`
	ReviewCount   int     `json:"review_count"`
	IsPrime       bool    `json:"is_prime"`
	DetailPageURL string  `json:"detail_page_url"`
	Category      string  `json:"category"`
}

type itemsResponse struct {
	Items  []itemPayload `json:"items"`
	Errors []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

// statusError is a non-2xx gateway answer.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("marketplace returned status %d: %s", e.code, e.body)
}

func (e *statusError) IsRetryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

func (e *statusError) Unwrap() error {
	return apperrors.ErrMarketplaceUnavailable
}

// Search runs a catalog query.
func (r *MarketplaceRepository) Search(ctx context.Context, req domain.SearchRequest) ([]domain.ProductCandidate, error) {
	if len(req.Keywords) == 0 {
		return nil, errors.New("at least one keyword is required")
	}

	payload := searchPayload{
		Region:    r.region(req.Region),
		Keywords:  strings.Join(req.Keywords, " "),
		Category:  req.Category,
		MinPrice:  req.PriceMin,
		MaxPrice:  req.PriceMax,
		MinRating: req.MinRating,
		PrimeOnly: req.PrimeOnly,
		SortBy:    req.SortHint,
		ItemCount: req.MaxResults,
	}

	resp, err := retry.Do(ctx, r.retry, func() (itemsResponse, error) {
		return r.post(ctx, "/search", payload)
	})
	if errors.Is(err, apperrors.ErrBudgetExceeded) {
		metrics.MarketplaceCalls.WithLabelValues("search", "refused").Inc()
		logger.Info("marketplace search refused by budget", "region", payload.Region, "error", err)
		return nil, err
	}
	if err != nil {
		metrics.MarketplaceCalls.WithLabelValues("search", "error").Inc()
		logger.Error("marketplace search failed", "keywords", payload.Keywords, "region", payload.Region, "error", err)
		return nil, err
	}

	metrics.MarketplaceCalls.WithLabelValues("search", "ok").Inc()
	return toCandidates(resp.Items), nil
}

// GetByIDs looks products up in chunks of ten. A chunk that keeps failing is
// logged and skipped; its ids are simply missing from the result. The error
// is returned only when no chunk succeeded, except for a budget refusal,
// which stops the lookup and comes back with whatever was already found.
func (r *MarketplaceRepository) GetByIDs(ctx context.Context, region string, ids []string) ([]domain.ProductCandidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		out     []domain.ProductCandidate
		lastErr error
		okCalls int
	)
	for start := 0; start < len(ids); start += maxIDsPerCall {
		chunk := ids[start:min(start+maxIDsPerCall, len(ids))]

		if err := r.limiter.Wait(ctx); err != nil {
			return out, fmt.Errorf("context error: %w", err)
		}

		payload := searchPayload{Region: r.region(region), ItemIDs: chunk}
		resp, err := retry.Do(ctx, r.retry, func() (itemsResponse, error) {
			return r.post(ctx, "/items", payload)
		})
		if errors.Is(err, apperrors.ErrBudgetExceeded) {
			metrics.MarketplaceCalls.WithLabelValues("get_items", "refused").Inc()
			logger.Info("marketplace item lookup refused by budget", "region", payload.Region, "error", err)
			return out, err
		}
		if err != nil {
			metrics.MarketplaceCalls.WithLabelValues("get_items", "error").Inc()
			logger.Error("marketplace item lookup failed", "region", payload.Region, "ids", len(chunk), "error", err)
			lastErr = err
			continue
		}

		metrics.MarketplaceCalls.WithLabelValues("get_items", "ok").Inc()
		okCalls++
		for _, e := range resp.Errors {
			logger.Debug("marketplace item error", "id", e.ID, "message", e.Message)
		}
		out = append(out, toCandidates(resp.Items)...)
	}

	if okCalls == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

// post sends one request. Every attempt, retries included, is charged
// through the admission first.
func (r *MarketplaceRepository) post(ctx context.Context, path string, payload searchPayload) (itemsResponse, error) {
	if r.admission != nil {
		if err := r.admission.Admit(ctx, payload.Region); err != nil {
			return itemsResponse{}, err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return itemsResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(r.config.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return itemsResponse{}, err
	}
	req.Header.Add("Content-Type", "application/json")
	req.SetBasicAuth(r.config.APIKey, "")

	res, err := r.client.Do(req)
	if err != nil {
		return itemsResponse{}, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return itemsResponse{}, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return itemsResponse{}, &statusError{code: res.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	var parsed itemsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return itemsResponse{}, fmt.Errorf("failed to decode marketplace response: %w", err)
	}
	return parsed, nil
}

func (r *MarketplaceRepository) region(region string) string {
	if region == "" {
		return strings.ToUpper(r.config.DefaultRegion)
	}
	return strings.ToUpper(region)
}

func toCandidates(items []itemPayload) []domain.ProductCandidate {
	out := make([]domain.ProductCandidate, 0, len(items))
	for _, it := range items {
		if it.ASIN == "" {
			continue
		}
		out = append(out, domain.ProductCandidate{
			ID:            it.ASIN,
			Title:         it.Title,
			Brand:         it.Brand,
			ImageURL:      it.ImageURL,
			CurrentPrice:  it.Price,
			OriginalPrice: it.ListPrice,
			Rating:        it.Rating,
			ReviewCount:   it.ReviewCount,
			IsPrime:       it.IsPrime,
			ProductURL:    it.DetailPageURL,
			CategoryPath:  it.Category,
		})
	}
	return out
}
