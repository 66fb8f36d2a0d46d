package costgovernor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
)

// neverChecked stands in for the age of a record that was never refreshed.
const neverChecked = 999.0

type Strategy struct {
	ShouldRefresh bool    `json:"should_refresh"`
	TTLHours      float64 `json:"ttl_hours"`
	Priority      string  `json:"priority"`
	Reason        string  `json:"reason"`
	Popularity    float64 `json:"popularity"`
	HoursSince    float64 `json:"hours_since_check"`
}

// Popularity maps usage to [0,1] with per-signal caps, so growth past a cap
// adds nothing.
func Popularity(u domain.UsageSignals) float64 {
	clicks := math.Min(float64(u.Clicks)/100, 1)
	favorites := math.Min(float64(u.Favorites)/50, 1)
	views := math.Min(float64(u.Views)/1000, 1)
	return clicks*0.4 + favorites*0.3 + views*0.3
}

// CacheStrategy decides how eagerly a product should be re-fetched in region.
// Budget pressure always wins over popularity.
func (g *Governor) CacheStrategy(ctx context.Context, productID, region string) (Strategy, error) {
	if err := ctx.Err(); err != nil {
		return Strategy{}, fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	now := g.now()

	ledger, err := g.ledger(ctx, region, now)
	if err != nil {
		return Strategy{}, err
	}
	return g.strategy(ctx, productID, region, ledger.BudgetUsage(), now)
}

func (g *Governor) strategy(ctx context.Context, productID, region string, budgetUsage float64, now time.Time) (Strategy, error) {
	usage, err := g.usage.UsageSignals(ctx, productID, now.Add(-g.cfg.HistoryWindow))
	if err != nil {
		return Strategy{}, fmt.Errorf("failed to load usage signals: %w", err)
	}
	popularity := Popularity(usage)

	priority, ttl := PriorityBatch, g.cfg.BatchTTL
	switch {
	case popularity > g.cfg.PopularityHigh:
		priority, ttl = PriorityImmediate, g.cfg.ImmediateTTL
	case popularity < g.cfg.PopularityLow:
		priority, ttl = PriorityDefer, g.cfg.DeferTTL
	}

	pressured := budgetUsage > g.cfg.PressureThreshold
	if pressured {
		ttl *= 2
		if priority == PriorityImmediate {
			priority = PriorityBatch
		}
	}

	hoursSince := neverChecked
	record, err := g.records.FindRecord(ctx, productID, region)
	switch {
	case err == nil && record.LastCheckedAt != nil:
		hoursSince = now.Sub(*record.LastCheckedAt).Hours()
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return Strategy{}, fmt.Errorf("failed to load regional record: %w", err)
	}
	// only reactivation brings a record back after repeated failures
	deactivated := err == nil && record.FailedChecks >= g.cfg.FailureThreshold

	ttlHours := ttl.Hours()
	reason := strategyReason(pressured, popularity > g.cfg.PopularityHigh, hoursSince)
	if deactivated {
		reason = "deactivated after repeated failed checks"
	}
	return Strategy{
		ShouldRefresh: hoursSince >= ttlHours && !deactivated,
		TTLHours:      ttlHours,
		Priority:      priority,
		Reason:        reason,
		Popularity:    popularity,
		HoursSince:    hoursSince,
	}, nil
}

func strategyReason(pressured, popular bool, hoursSince float64) string {
	switch {
	case pressured:
		return "budget pressure: cache extended"
	case popular:
		return "popular product: frequent refresh"
	case hoursSince > 24:
		return "cache very old: refresh needed"
	}
	return "cache within normal strategy"
}

type BatchPlan struct {
	Region     string   `json:"region"`
	Peak       bool     `json:"peak"`
	Priority   string   `json:"priority"`
	Limit      int      `json:"limit"`
	ProductIDs []string `json:"product_ids"`
}

// ScheduleBatch picks the products worth refreshing in region at now. During
// peak hours only the most clicked products that are due get a slot;
// off-peak a larger batch of stale records is planned.
func (g *Governor) ScheduleBatch(ctx context.Context, region string, now time.Time) (BatchPlan, error) {
	if err := ctx.Err(); err != nil {
		return BatchPlan{}, fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	since := now.Add(-g.cfg.HistoryWindow)

	hourly, err := g.usage.HourlyClicks(ctx, region, since)
	if err != nil {
		return BatchPlan{}, fmt.Errorf("failed to load hourly clicks: %w", err)
	}
	peaks := peakHours(hourly, g.cfg.PeakFactor)

	ledger, err := g.ledger(ctx, region, now)
	if err != nil {
		return BatchPlan{}, err
	}
	budgetUsage := ledger.BudgetUsage()

	plan := BatchPlan{Region: region, ProductIDs: []string{}}
	if peaks[now.UTC().Hour()] {
		plan.Peak = true
		plan.Priority = PriorityImmediate
		plan.Limit = g.cfg.PeakBatchLimit

		top, err := g.usage.TopProducts(ctx, region, since, plan.Limit*2)
		if err != nil {
			return BatchPlan{}, fmt.Errorf("failed to load top products: %w", err)
		}
		for _, p := range top {
			if len(plan.ProductIDs) >= plan.Limit {
				break
			}
			s, err := g.strategy(ctx, p.ProductID, region, budgetUsage, now)
			if err != nil {
				logger.Warn("skipping product without strategy", "product_id", p.ProductID, "error", err)
				continue
			}
			if s.ShouldRefresh {
				plan.ProductIDs = append(plan.ProductIDs, p.ProductID)
			}
		}
	} else {
		plan.Priority = PriorityBatch
		plan.Limit = g.cfg.OffPeakBatchLimit

		stale, err := g.records.StaleProductIDs(ctx, region, now, g.cfg.StaleAfter, g.cfg.FailureThreshold, plan.Limit*2)
		if err != nil {
			return BatchPlan{}, fmt.Errorf("failed to load stale products: %w", err)
		}

		type due struct {
			id   string
			rank int
		}
		var picked []due
		for _, id := range stale {
			s, err := g.strategy(ctx, id, region, budgetUsage, now)
			if err != nil {
				logger.Warn("skipping product without strategy", "product_id", id, "error", err)
				continue
			}
			if s.ShouldRefresh {
				picked = append(picked, due{id: id, rank: priorityRank(s.Priority)})
			}
		}
		sort.SliceStable(picked, func(i, j int) bool { return picked[i].rank < picked[j].rank })
		for _, p := range picked {
			if len(plan.ProductIDs) >= plan.Limit {
				break
			}
			plan.ProductIDs = append(plan.ProductIDs, p.id)
		}
	}

	logger.Info("refresh batch planned", "region", region, "peak", plan.Peak, "products", len(plan.ProductIDs))
	return plan, nil
}

func priorityRank(priority string) int {
	switch priority {
	case PriorityImmediate:
		return 0
	case PriorityBatch:
		return 1
	}
	return 2
}

// peakHours flags hours whose click count exceeds factor times the hourly
// average of the window.
func peakHours(hourly [24]int64, factor float64) [24]bool {
	var (
		total int64
		peaks [24]bool
	)
	for _, c := range hourly {
		total += c
	}
	avg := float64(total) / 24
	for h, c := range hourly {
		peaks[h] = float64(c) > avg*factor
	}
	return peaks
}
