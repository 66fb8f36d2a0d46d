package ranker

import (
	"math"
	"sort"
	"time"

	"smartLink/domain"
)

// PriceRange bounds the prices of one candidate set.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Scored pairs a candidate with the breakdown of its latest scoring run.
type Scored struct {
	domain.ProductCandidate
	Breakdown domain.ScoreBreakdown `json:"score_breakdown"`

	// unrounded final score; the breakdown holds the presented value
	final float64
}

type Ranker struct {
	cfg      Config
	searcher Searcher
	now      func() time.Time
}

func New(cfg Config, searcher Searcher) *Ranker {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if cfg.SearchResults <= 0 {
		cfg.SearchResults = defaultSearchResults
	}
	if cfg.AffiliateHost == "" {
		cfg.AffiliateHost = defaultAffiliateHost
	}
	return &Ranker{cfg: cfg, searcher: searcher, now: time.Now}
}

// PriceRangeOf spans the positive prices of candidates. A set without any
// positive price yields the zero range.
func PriceRangeOf(candidates []domain.ProductCandidate) PriceRange {
	var (
		r     PriceRange
		found bool
	)
	for _, c := range candidates {
		if c.CurrentPrice <= 0 {
			continue
		}
		if !found {
			r = PriceRange{Min: c.CurrentPrice, Max: c.CurrentPrice}
			found = true
			continue
		}
		r.Min = math.Min(r.Min, c.CurrentPrice)
		r.Max = math.Max(r.Max, c.CurrentPrice)
	}
	return r
}

// Score computes the breakdown of one candidate against the price range of
// its set. Presented values are rounded to 4 decimals.
func (r *Ranker) Score(c domain.ProductCandidate, pr PriceRange) domain.ScoreBreakdown {
	b, _ := r.score(c, pr)
	return b
}

func (r *Ranker) score(c domain.ProductCandidate, pr PriceRange) (domain.ScoreBreakdown, float64) {
	w := r.cfg.Weights

	priceNorm := 0.0
	if pr.Max > pr.Min {
		priceNorm = clamp01((c.CurrentPrice - pr.Min) / (pr.Max - pr.Min))
	}

	ratingNorm := clamp01(c.Rating / 5)

	discountPercent := 0.0
	if c.OriginalPrice > 0 && c.OriginalPrice > c.CurrentPrice {
		discountPercent = (c.OriginalPrice - c.CurrentPrice) / c.OriginalPrice * 100
	}
	discountNorm := math.Min(discountPercent/100, 1)

	reviews := max(c.ReviewCount, 0)

	value := ratingNorm*w.Rating + discountNorm*w.Discount - priceNorm*w.Price
	multiplier := 1 + math.Log10(float64(reviews)+1)*w.Review
	final := value * multiplier

	return domain.ScoreBreakdown{
		ValueScore:         round4(value),
		ReviewMultiplier:   round4(multiplier),
		FinalScore:         round4(final),
		PriceNormalized:    round4(priceNorm),
		RatingNormalized:   round4(ratingNorm),
		DiscountNormalized: round4(discountNorm),
		ReviewCount:        reviews,
		CalculatedAt:       r.now(),
	}, final
}

// Rank scores candidates against their own price range and orders them by
// final score desc, review count desc, price asc. Input order settles exact
// ties so repeated calls agree.
func (r *Ranker) Rank(candidates []domain.ProductCandidate) []Scored {
	pr := PriceRangeOf(candidates)

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		b, final := r.score(c, pr)
		scored = append(scored, Scored{ProductCandidate: c, Breakdown: b, final: final})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return less(scored[i], scored[j])
	})
	return scored
}

func less(a, b Scored) bool {
	if a.final != b.final {
		return a.final > b.final
	}
	if a.ReviewCount != b.ReviewCount {
		return a.ReviewCount > b.ReviewCount
	}
	return a.CurrentPrice < b.CurrentPrice
}

// RankCandidates drops candidates that fail criteria and ranks the rest.
// Dropped candidates never influence price normalization.
func (r *Ranker) RankCandidates(criteria domain.ConceptCriteria, candidates []domain.ProductCandidate) []Scored {
	return r.Rank(Filter(criteria, candidates))
}

// Filter keeps candidates that satisfy the Prime, price band and rating
// requirements of criteria.
func Filter(criteria domain.ConceptCriteria, candidates []domain.ProductCandidate) []domain.ProductCandidate {
	kept := make([]domain.ProductCandidate, 0, len(candidates))
	for _, c := range candidates {
		if criteria.PrimeOnly && !c.IsPrime {
			continue
		}
		if criteria.PriceMin > 0 && c.CurrentPrice < criteria.PriceMin {
			continue
		}
		if criteria.PriceMax > 0 && c.CurrentPrice > criteria.PriceMax {
			continue
		}
		if criteria.RatingMin > 0 && c.Rating < criteria.RatingMin {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
