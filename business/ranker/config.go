package ranker

import (
	"context"
	"time"

	"smartLink/domain"
)

// Weights of the scoring formula. Rating, discount and price feed the value
// score; Review scales the logarithmic social-proof multiplier.
type Weights struct {
	Rating   float64 `json:"rating"`
	Discount float64 `json:"discount"`
	Price    float64 `json:"price"`
	Review   float64 `json:"review"`
}

type Config struct {
	Weights Weights

	// candidates requested per concept item when building a kit
	SearchResults int
	// pause between marketplace searches of consecutive kit items
	ItemDelay time.Duration

	AffiliateHost string
	AffiliateTag  string
}

const (
	defaultRatingWeight   = 0.35
	defaultDiscountWeight = 0.25
	defaultPriceWeight    = 0.20
	defaultReviewWeight   = 0.20

	defaultSearchResults = 10
	defaultItemDelay     = 500 * time.Millisecond
	defaultAffiliateHost = "www.amazon.com.br"
)

func DefaultWeights() Weights {
	return Weights{
		Rating:   defaultRatingWeight,
		Discount: defaultDiscountWeight,
		Price:    defaultPriceWeight,
		Review:   defaultReviewWeight,
	}
}

func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights(),
		SearchResults: defaultSearchResults,
		ItemDelay:     defaultItemDelay,
		AffiliateHost: defaultAffiliateHost,
	}
}

// Searcher is the slice of the marketplace client the ranker needs.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.ProductCandidate, error)
}
