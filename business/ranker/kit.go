package ranker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
	"smartLink/pkg/workerpool"
)

var rolePriority = map[string]int{
	domain.RolePrimary:    0,
	domain.RoleSecondary:  1,
	domain.RoleComplement: 2,
}

var roleLabel = map[string]string{
	domain.RolePrimary:    "Main product",
	domain.RoleSecondary:  "Secondary product",
	domain.RoleComplement: "Complement",
}

// ResolveConceptItem searches the marketplace for one concept item and
// returns its best candidate. Search failures, budget refusals and empty
// result sets yield ok == false, never an error.
func (r *Ranker) ResolveConceptItem(ctx context.Context, item domain.ConceptItem) (Scored, bool) {
	if r.searcher == nil {
		return Scored{}, false
	}

	criteria := item.Criteria
	keywords := make([]string, 0, len(criteria.MustKeywords)+len(criteria.OptionalKeywords))
	keywords = append(keywords, criteria.MustKeywords...)
	keywords = append(keywords, criteria.OptionalKeywords...)

	candidates, err := r.searcher.Search(ctx, domain.SearchRequest{
		Keywords:   keywords,
		Category:   criteria.Category,
		PriceMin:   criteria.PriceMin,
		PriceMax:   criteria.PriceMax,
		MinRating:  criteria.RatingMin,
		PrimeOnly:  criteria.PrimeOnly,
		SortHint:   "Featured",
		MaxResults: r.cfg.SearchResults,
	})
	if errors.Is(err, apperrors.ErrBudgetExceeded) {
		logger.Info("marketplace search refused by budget", "item", item.Name, "error", err)
		return Scored{}, false
	}
	if err != nil {
		logger.Warn("marketplace search failed for concept item", "item", item.Name, "error", err)
		return Scored{}, false
	}

	ranked := r.RankCandidates(criteria, candidates)
	if len(ranked) == 0 {
		logger.Info("no candidates for concept item", "item", item.Name)
		return Scored{}, false
	}
	return ranked[0], true
}

// ResolveKit resolves every concept item independently and orders the kit by
// role priority, then final score.
func (r *Ranker) ResolveKit(ctx context.Context, items []domain.ConceptItem) []domain.KitProduct {
	if len(items) == 0 {
		return []domain.KitProduct{}
	}

	// one search at a time, spaced by ItemDelay
	pool := workerpool.New(workerpool.Config{MaxConcurrent: 1, BatchDelay: r.cfg.ItemDelay})

	work := make([]workerpool.WorkItem[*domain.KitProduct], 0, len(items))
	for _, item := range items {
		work = append(work, workerpool.WorkItem[*domain.KitProduct]{
			ID: item.Name,
			Execute: func(ctx context.Context) (*domain.KitProduct, error) {
				best, ok := r.ResolveConceptItem(ctx, item)
				if !ok {
					return nil, nil
				}
				kp := r.kitProduct(best, item)
				return &kp, nil
			},
		})
	}

	kit := make([]domain.KitProduct, 0, len(items))
	for _, res := range workerpool.Process(ctx, pool, work) {
		if res.Err != nil || res.Result == nil {
			continue
		}
		kit = append(kit, *res.Result)
	}

	sort.SliceStable(kit, func(i, j int) bool {
		pi, pj := roleRank(kit[i].Role), roleRank(kit[j].Role)
		if pi != pj {
			return pi < pj
		}
		return kit[i].RankScore > kit[j].RankScore
	})
	for i := range kit {
		kit[i].SortOrder = i
	}

	return kit
}

func (r *Ranker) kitProduct(best Scored, item domain.ConceptItem) domain.KitProduct {
	return domain.KitProduct{
		ProductID:      best.ID,
		Title:          best.Title,
		Description:    item.Name,
		ImageURL:       best.ImageURL,
		Price:          best.CurrentPrice,
		OriginalPrice:  best.OriginalPrice,
		Rating:         best.Rating,
		ReviewCount:    best.ReviewCount,
		IsPrime:        best.IsPrime,
		Role:           item.Role,
		RankScore:      best.final,
		TaskMatchScore: item.Weight,
		Rationale:      rationale(best, item),
		AffiliateLink:  r.AffiliateLink(best.ID),
		ScoreBreakdown: best.Breakdown,
		LastCheckedAt:  r.now(),
	}
}

// AffiliateLink builds the canonical product page with the affiliate tag.
func (r *Ranker) AffiliateLink(productID string) string {
	link := url.URL{Scheme: "https", Host: r.cfg.AffiliateHost, Path: "/dp/" + productID}
	if r.cfg.AffiliateTag != "" {
		link.RawQuery = url.Values{"tag": {r.cfg.AffiliateTag}}.Encode()
	}
	return link.String()
}

func rationale(p Scored, item domain.ConceptItem) string {
	var parts []string
	if p.Rating >= 4.0 {
		parts = append(parts, fmt.Sprintf("rated %.1f stars", p.Rating))
	}
	if p.ReviewCount > 100 {
		parts = append(parts, fmt.Sprintf("%d reviews", p.ReviewCount))
	}
	if p.Breakdown.DiscountNormalized > 0.1 {
		parts = append(parts, fmt.Sprintf("%.0f%% off", p.Breakdown.DiscountNormalized*100))
	}
	if p.IsPrime {
		parts = append(parts, "Prime")
	}

	label, ok := roleLabel[item.Role]
	if !ok {
		label = "Product"
	}

	if len(parts) > 0 {
		return fmt.Sprintf("%s: selected for %s. Score: %.3f", label, strings.Join(parts, ", "), p.Breakdown.FinalScore)
	}
	return fmt.Sprintf("%s: best match for %q. Score: %.3f", label, item.Name, p.Breakdown.FinalScore)
}

// ReRank rescores existing kit products, for instance after a manual
// addition or a price refresh. A nil range is derived from the products.
func (r *Ranker) ReRank(products []domain.KitProduct, pr *PriceRange) []domain.KitProduct {
	candidates := make([]domain.ProductCandidate, 0, len(products))
	for _, p := range products {
		candidates = append(candidates, domain.ProductCandidate{
			ID:            p.ProductID,
			Title:         p.Title,
			CurrentPrice:  p.Price,
			OriginalPrice: p.OriginalPrice,
			Rating:        p.Rating,
			ReviewCount:   p.ReviewCount,
			IsPrime:       p.IsPrime,
			ProductURL:    p.AffiliateLink,
		})
	}

	rangeToUse := PriceRangeOf(candidates)
	if pr != nil {
		rangeToUse = *pr
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		b, final := r.score(c, rangeToUse)
		scored = append(scored, Scored{ProductCandidate: c, Breakdown: b, final: final})
	}

	// carry the original slot along so duplicates of one product stay distinct
	idx := make([]int, len(scored))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return less(scored[idx[a]], scored[idx[b]])
	})

	out := make([]domain.KitProduct, 0, len(products))
	for order, i := range idx {
		p := products[i]
		p.RankScore = scored[i].final
		p.ScoreBreakdown = scored[i].Breakdown
		p.SortOrder = order
		out = append(out, p)
	}
	return out
}

func roleRank(role string) int {
	if p, ok := rolePriority[role]; ok {
		return p
	}
	return len(rolePriority)
}
