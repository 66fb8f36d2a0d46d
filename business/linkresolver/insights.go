package linkresolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smartLink/domain"
	"smartLink/pkg/logger"
)

type RegionShare struct {
	Region     string  `json:"region"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

type Performance struct {
	Since        time.Time                 `json:"since"`
	TotalClicks  int64                     `json:"total_clicks"`
	SuccessRate  float64                   `json:"success_rate"`
	FallbackRate float64                   `json:"fallback_rate"`
	TopRegions   []RegionShare             `json:"top_regions"`
	TopProducts  []domain.ProductClickStat `json:"top_products"`
}

// LinkPerformance summarises resolutions recorded in the last window. Rates
// are percentages.
func (r *Resolver) LinkPerformance(ctx context.Context, window time.Duration) (Performance, error) {
	if err := ctx.Err(); err != nil {
		return Performance{}, fmt.Errorf("context error: %w", err)
	}

	since := r.now().Add(-window)
	total, available, fallback, err := r.analytics.ClickTotals(ctx, since)
	if err != nil {
		logger.Error("failed to load click totals", "error", err)
		return Performance{}, err
	}

	regionClicks, err := r.analytics.RegionClicks(ctx, since, 10)
	if err != nil {
		logger.Error("failed to load region clicks", "error", err)
		return Performance{}, err
	}

	top, err := r.analytics.TopProducts(ctx, "", since, 10)
	if err != nil {
		logger.Error("failed to load top products", "error", err)
		return Performance{}, err
	}

	perf := Performance{
		Since:       since,
		TotalClicks: total,
		TopRegions:  make([]RegionShare, 0, len(regionClicks)),
		TopProducts: top,
	}
	if total > 0 {
		perf.SuccessRate = float64(available) / float64(total) * 100
		perf.FallbackRate = float64(fallback) / float64(total) * 100
	}
	for _, rc := range regionClicks {
		share := RegionShare{Region: rc.RegionID, Clicks: rc.Count}
		if total > 0 {
			share.Percentage = float64(rc.Count) / float64(total) * 100
		}
		perf.TopRegions = append(perf.TopRegions, share)
	}
	if perf.TopProducts == nil {
		perf.TopProducts = []domain.ProductClickStat{}
	}

	return perf, nil
}

// PreWarm refreshes the most clicked products of region ahead of demand.
func (r *Resolver) PreWarm(ctx context.Context, region string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	if r.refresher == nil {
		return 0, nil
	}

	region = strings.ToUpper(region)
	popular, err := r.analytics.TopProducts(ctx, region, time.Time{}, r.cfg.PreWarmCandidates)
	if err != nil {
		logger.Error("failed to load popular products", "region", region, "error", err)
		return 0, err
	}

	ids := make([]string, 0, len(popular))
	for _, p := range popular {
		if len(ids) >= r.cfg.PreWarmLimit {
			break
		}
		ids = append(ids, p.ProductID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	refreshed, err := r.refresher.RefreshProducts(ctx, region, ids)
	if err != nil {
		logger.Error("prewarm failed", "region", region, "error", err)
		return refreshed, err
	}

	logger.Info("prewarm finished", "region", region, "requested", len(ids), "refreshed", refreshed)
	return refreshed, nil
}

type Validation struct {
	Region           string   `json:"region"`
	IsValid          bool     `json:"is_valid"`
	ProductCount     int64    `json:"product_count"`
	AvailableCount   int64    `json:"available_count"`
	AvailabilityRate float64  `json:"availability_rate"`
	Issues           []string `json:"issues"`
	Recommendations  []string `json:"recommendations"`
}

// ValidateRegionConfiguration checks that region is active and has enough
// available products to serve links.
func (r *Resolver) ValidateRegionConfiguration(ctx context.Context, region string) (Validation, error) {
	if err := ctx.Err(); err != nil {
		return Validation{}, fmt.Errorf("context error: %w", err)
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	v := Validation{Region: region, Issues: []string{}, Recommendations: []string{}}

	active, err := r.locator.ActiveRegions(ctx)
	if err != nil {
		return Validation{}, err
	}
	found := false
	for _, a := range active {
		if a.ID == region {
			found = true
			break
		}
	}
	if !found {
		v.Issues = append(v.Issues, fmt.Sprintf("region %s does not exist or is inactive", region))
	}

	total, available, err := r.records.CountRecords(ctx, region)
	if err != nil {
		return Validation{}, err
	}
	v.ProductCount, v.AvailableCount = total, available

	if total < r.cfg.MinRegionProducts {
		v.Issues = append(v.Issues, fmt.Sprintf("too few products configured for region %s", region))
		v.Recommendations = append(v.Recommendations, "add more regional products from the marketplace")
	}

	if total > 0 {
		v.AvailabilityRate = float64(available) / float64(total)
	}
	if v.AvailabilityRate < r.cfg.MinAvailabilityRate {
		v.Issues = append(v.Issues, fmt.Sprintf("low availability rate: %.1f%%", v.AvailabilityRate*100))
		v.Recommendations = append(v.Recommendations, "check and refresh links of unavailable products")
	}

	v.IsValid = len(v.Issues) == 0
	return v, nil
}

// ValidateRegions runs ValidateRegionConfiguration for every active region.
func (r *Resolver) ValidateRegions(ctx context.Context) ([]Validation, error) {
	active, err := r.locator.ActiveRegions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Validation, 0, len(active))
	for _, region := range active {
		v, err := r.ValidateRegionConfiguration(ctx, region.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
