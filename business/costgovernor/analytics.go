package costgovernor

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

type Analytics struct {
	Region          string   `json:"region"`
	Spent           float64  `json:"spent"`
	DailyAverage    float64  `json:"daily_average"`
	Projected       float64  `json:"projected"`
	Budget          float64  `json:"budget"`
	Remaining       float64  `json:"remaining"`
	RiskLevel       string   `json:"risk_level"`
	Recommendations []string `json:"recommendations"`
	DailyRequests   int      `json:"daily_requests"`
	DailyLimit      int      `json:"daily_limit"`
	Throttled       bool     `json:"throttled"`
}

func (g *Governor) CostAnalytics(ctx context.Context, region string) (Analytics, error) {
	if err := ctx.Err(); err != nil {
		return Analytics{}, fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	now := g.now()

	ledger, err := g.ledger(ctx, region, now)
	if err != nil {
		return Analytics{}, err
	}

	usage := ledger.BudgetUsage()
	dailyAverage := ledger.MonthlySpend / float64(now.UTC().Day())

	risk := RiskLow
	switch {
	case usage > 0.8:
		risk = RiskHigh
	case usage > 0.6:
		risk = RiskMedium
	}

	var recommendations []string
	if usage > 0.8 {
		recommendations = append(recommendations,
			"budget nearly exhausted: consider aggressive throttling",
			"refresh only high-frequency and most visited products")
	}
	if float64(ledger.DailyCount) > float64(ledger.DailyCeiling)*0.7 {
		recommendations = append(recommendations, "daily limit close: group lookups into batches")
	}

	stale, err := g.records.CountCheckedBefore(ctx, region, now.Add(-6*time.Hour))
	if err != nil {
		return Analytics{}, fmt.Errorf("failed to count stale records: %w", err)
	}
	if stale > 100 {
		recommendations = append(recommendations, fmt.Sprintf("%d products with expired cache: batch processing recommended", stale))
	}

	inactive, err := g.records.CountUnavailableSince(ctx, region, now.Add(-30*24*time.Hour))
	if err != nil {
		return Analytics{}, fmt.Errorf("failed to count inactive records: %w", err)
	}
	if inactive > 10 {
		recommendations = append(recommendations, fmt.Sprintf("%d inactive products still consuming lookups: consider deactivating", inactive))
	}
	if recommendations == nil {
		recommendations = []string{}
	}

	return Analytics{
		Region:          region,
		Spent:           ledger.MonthlySpend,
		DailyAverage:    dailyAverage,
		Projected:       dailyAverage * float64(daysInMonth(now)),
		Budget:          ledger.MonthlyBudget,
		Remaining:       ledger.MonthlyBudget - ledger.MonthlySpend,
		RiskLevel:       risk,
		Recommendations: recommendations,
		DailyRequests:   ledger.DailyCount,
		DailyLimit:      ledger.DailyCeiling,
		Throttled:       ledger.Throttled,
	}, nil
}

type Demand struct {
	Region                string  `json:"region"`
	ExpectedRequests      int     `json:"expected_requests"`
	PeakHours             []int   `json:"peak_hours"`
	CostSavingOpportunity float64 `json:"cost_saving_opportunity"`
	RecommendedBatchTime  string  `json:"recommended_batch_time"`
}

// PredictDemand estimates tomorrow's lookups from the click history window
// and suggests the quietest hour for batch work.
func (g *Governor) PredictDemand(ctx context.Context, region string) (Demand, error) {
	if err := ctx.Err(); err != nil {
		return Demand{}, fmt.Errorf("context error: %w", err)
	}

	region = normalizeRegion(region)
	now := g.now()

	hourly, err := g.usage.HourlyClicks(ctx, region, now.Add(-g.cfg.HistoryWindow))
	if err != nil {
		return Demand{}, fmt.Errorf("failed to load hourly clicks: %w", err)
	}

	var total int64
	for _, c := range hourly {
		total += c
	}

	peaks := peakHours(hourly, g.cfg.PeakFactor)
	peakList := []int{}
	quietest := -1
	for h, c := range hourly {
		if peaks[h] {
			peakList = append(peakList, h)
			continue
		}
		if c > 0 && (quietest < 0 || c < hourly[quietest]) {
			quietest = h
		}
	}

	days := math.Max(g.cfg.HistoryWindow.Hours()/24, 1)
	expected := int(math.Ceil(float64(total) * (1 + g.cfg.WeeklyGrowth) / days))
	cost := float64(expected) * g.costs.CostPerRequest(region)

	batchTime := "03:00"
	if quietest >= 0 {
		batchTime = fmt.Sprintf("%02d:00", quietest)
	}

	return Demand{
		Region:                region,
		ExpectedRequests:      expected,
		PeakHours:             peakList,
		CostSavingOpportunity: cost * g.cfg.BatchSavings,
		RecommendedBatchTime:  batchTime,
	}, nil
}
