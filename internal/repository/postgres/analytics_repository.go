package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartLink/domain"
)

// AnalyticsRepository reads and appends click history. An empty region means
// every region and a zero since means all time.
type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

func (r *AnalyticsRepository) RecordClick(ctx context.Context, event *domain.ClickAnalyticsEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *AnalyticsRepository) clicks(ctx context.Context, since time.Time) *gorm.DB {
	q := r.DB.WithContext(ctx).Model(&domain.ClickAnalyticsEvent{})
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	return q
}

func (r *AnalyticsRepository) SuccessfulRegions(ctx context.Context, productID string) ([]domain.RegionCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var counts []domain.RegionCount
	err := r.clicks(ctx, time.Time{}).
		Select("served_region AS region_id, COUNT(*) AS count").
		Where("product_id = ? AND product_available = ? AND fallback_type <> ?", productID, true, domain.FallbackEmergency).
		Group("served_region").
		Order("count DESC, served_region ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count successful regions: %w", err)
	}

	return counts, nil
}

func (r *AnalyticsRepository) ClickTotals(ctx context.Context, since time.Time) (int64, int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, 0, fmt.Errorf("context error: %w", err)
	}

	var totals struct {
		Total     int64
		Available int64
		Fallback  int64
	}
	err := r.clicks(ctx, since).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN product_available THEN 1 ELSE 0 END), 0) AS available, " +
			"COALESCE(SUM(CASE WHEN fallback_used THEN 1 ELSE 0 END), 0) AS fallback").
		Scan(&totals).Error
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count clicks: %w", err)
	}

	return totals.Total, totals.Available, totals.Fallback, nil
}

func (r *AnalyticsRepository) RegionClicks(ctx context.Context, since time.Time, limit int) ([]domain.RegionCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var counts []domain.RegionCount
	err := r.clicks(ctx, since).
		Select("served_region AS region_id, COUNT(*) AS count").
		Group("served_region").
		Order("count DESC, served_region ASC").
		Limit(limit).
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count region clicks: %w", err)
	}

	return counts, nil
}

// TopProducts ranks products by clicks from visitors of region.
func (r *AnalyticsRepository) TopProducts(ctx context.Context, regionID string, since time.Time, limit int) ([]domain.ProductClickStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	q := r.clicks(ctx, since).
		Select("product_id, COUNT(*) AS clicks, " +
			"COALESCE(SUM(CASE WHEN fallback_used THEN 1 ELSE 0 END), 0) AS fallback_count, " +
			"COALESCE(SUM(CASE WHEN product_available THEN 0 ELSE 1 END), 0) AS unavailable")
	if regionID != "" {
		q = q.Where("requested_region = ?", regionID)
	}

	var stats []domain.ProductClickStat
	err := q.Group("product_id").
		Order("clicks DESC, product_id ASC").
		Limit(limit).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	return stats, nil
}

// HourlyClicks buckets clicks of region by UTC hour of day.
func (r *AnalyticsRepository) HourlyClicks(ctx context.Context, regionID string, since time.Time) ([24]int64, error) {
	var hourly [24]int64
	if err := ctx.Err(); err != nil {
		return hourly, fmt.Errorf("context error: %w", err)
	}

	hourExpr := "CAST(EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC') AS INTEGER)"
	if r.DB.Dialector.Name() == "sqlite" {
		hourExpr = "CAST(strftime('%H', created_at) AS INTEGER)"
	}

	var rows []struct {
		Hour  int
		Count int64
	}
	err := r.clicks(ctx, since).
		Select(hourExpr+" AS hour, COUNT(*) AS count").
		Where("requested_region = ?", regionID).
		Group("hour").
		Scan(&rows).Error
	if err != nil {
		return hourly, fmt.Errorf("failed to bucket clicks by hour: %w", err)
	}

	for _, row := range rows {
		if row.Hour >= 0 && row.Hour < 24 {
			hourly[row.Hour] = row.Count
		}
	}
	return hourly, nil
}

// UsageSignals combines recent clicks with the engagement counters of the
// product.
func (r *AnalyticsRepository) UsageSignals(ctx context.Context, productID string, since time.Time) (domain.UsageSignals, error) {
	if err := ctx.Err(); err != nil {
		return domain.UsageSignals{}, fmt.Errorf("context error: %w", err)
	}

	var usage domain.UsageSignals
	if err := r.clicks(ctx, since).Where("product_id = ?", productID).Count(&usage.Clicks).Error; err != nil {
		return domain.UsageSignals{}, fmt.Errorf("failed to count product clicks: %w", err)
	}

	var engagement domain.ProductEngagement
	err := r.DB.WithContext(ctx).Where("product_id = ?", productID).First(&engagement).Error
	switch {
	case err == nil:
		usage.Favorites, usage.Views = engagement.Favorites, engagement.Views
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return domain.UsageSignals{}, fmt.Errorf("failed to find product engagement: %w", err)
	}

	return usage, nil
}

// SetEngagement stores the content side's favorite and view counters.
func (r *AnalyticsRepository) SetEngagement(ctx context.Context, engagement *domain.ProductEngagement) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if engagement.ProductID == "" {
		return errors.New("product id is required")
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"favorites", "views", "updated_at"}),
	}).Create(engagement).Error
	if err != nil {
		return fmt.Errorf("failed to store product engagement: %w", err)
	}

	return nil
}
