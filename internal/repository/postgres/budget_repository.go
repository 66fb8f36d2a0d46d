package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

// BudgetRepository keeps one ledger row per region. Every counter change is
// a single conditional UPDATE so concurrent writers never overshoot.
type BudgetRepository struct {
	DB *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{DB: db}
}

func (r *BudgetRepository) EnsureLedger(ctx context.Context, ledger domain.BudgetLedger) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "region_id"}},
		DoNothing: true,
	}).Create(&ledger).Error
	if err != nil {
		return fmt.Errorf("failed to create budget ledger: %w", err)
	}

	return nil
}

func (r *BudgetRepository) GetLedger(ctx context.Context, regionID string) (domain.BudgetLedger, error) {
	if err := ctx.Err(); err != nil {
		return domain.BudgetLedger{}, fmt.Errorf("context error: %w", err)
	}

	var ledger domain.BudgetLedger
	err := r.DB.WithContext(ctx).Where("region_id = ?", regionID).First(&ledger).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.BudgetLedger{}, apperrors.ErrNotFound
		}
		return domain.BudgetLedger{}, fmt.Errorf("failed to find budget ledger: %w", err)
	}

	return ledger, nil
}

// RollOver resets the monthly counters when month changed, then the daily
// count when day changed.
func (r *BudgetRepository) RollOver(ctx context.Context, regionID, day, month string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.BudgetLedger{}).
			Where("region_id = ? AND month <> ?", regionID, month).
			Updates(map[string]any{
				"month":          month,
				"day":            day,
				"daily_count":    0,
				"monthly_spend":  0,
				"daily_ceiling":  gorm.Expr("base_daily_ceiling"),
				"throttled":      false,
				"throttle_until": nil,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to roll over month: %w", err)
		}

		err = tx.Model(&domain.BudgetLedger{}).
			Where("region_id = ? AND day <> ?", regionID, day).
			Updates(map[string]any{
				"day":         day,
				"daily_count": 0,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to roll over day: %w", err)
		}
		return nil
	})
}

func (r *BudgetRepository) TryAcquire(ctx context.Context, regionID string, cost, budgetCutoff float64, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).
		Model(&domain.BudgetLedger{}).
		Where("region_id = ?", regionID).
		Where("daily_count < daily_ceiling").
		Where("monthly_spend < monthly_budget * ?", budgetCutoff).
		Where("NOT (throttled = ? AND throttle_until IS NOT NULL AND throttle_until > ?)", true, now).
		Updates(map[string]any{
			"daily_count":   gorm.Expr("daily_count + 1"),
			"monthly_spend": gorm.Expr("monthly_spend + ?", cost),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to acquire budget: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (r *BudgetRepository) Throttle(ctx context.Context, regionID string, ceiling int, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).
		Model(&domain.BudgetLedger{}).
		Where("region_id = ?", regionID).
		Updates(map[string]any{
			"daily_ceiling":  ceiling,
			"throttled":      true,
			"throttle_until": until,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to throttle region: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *BudgetRepository) ReleaseThrottle(ctx context.Context, regionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).
		Model(&domain.BudgetLedger{}).
		Where("region_id = ?", regionID).
		Updates(map[string]any{
			"throttled":      false,
			"throttle_until": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to release throttle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
