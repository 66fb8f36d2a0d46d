package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

type RegionalProductRepository struct {
	DB *gorm.DB
}

func NewRegionalProductRepository(db *gorm.DB) *RegionalProductRepository {
	return &RegionalProductRepository{DB: db}
}

func (r *RegionalProductRepository) FindRecord(ctx context.Context, productID, regionID string) (domain.RegionalProductRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.RegionalProductRecord{}, fmt.Errorf("context error: %w", err)
	}

	var record domain.RegionalProductRecord
	err := r.DB.WithContext(ctx).
		Where("product_id = ? AND region_id = ?", productID, regionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RegionalProductRecord{}, apperrors.ErrNotFound
		}
		return domain.RegionalProductRecord{}, fmt.Errorf("failed to find regional record: %w", err)
	}

	return record, nil
}

// UpsertRecord writes the record last-write-wins. Records that claim
// availability without a link are stored as unavailable.
func (r *RegionalProductRepository) UpsertRecord(ctx context.Context, record *domain.RegionalProductRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if err := record.Normalize(); err != nil {
		return err
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "region_id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert regional record: %w", err)
	}

	return nil
}

func (r *RegionalProductRepository) CountRecords(ctx context.Context, regionID string) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("context error: %w", err)
	}

	var counts struct {
		Total     int64
		Available int64
	}
	err := r.DB.WithContext(ctx).
		Model(&domain.RegionalProductRecord{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_available THEN 1 ELSE 0 END), 0) AS available").
		Where("region_id = ?", regionID).
		Scan(&counts).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count regional records: %w", err)
	}

	return counts.Total, counts.Available, nil
}

// StaleProductIDs returns records of region that were never checked or whose
// last check is older than the cutoff of their refresh tier, oldest first.
// Records with maxFailures or more failed checks are left out.
func (r *RegionalProductRepository) StaleProductIDs(ctx context.Context, regionID string, now time.Time, staleAfter map[string]time.Duration, maxFailures, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	tiers := make([]string, 0, len(staleAfter))
	for tier := range staleAfter {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)

	conds := []string{"last_checked_at IS NULL"}
	args := make([]any, 0, len(tiers)*2)
	for _, tier := range tiers {
		conds = append(conds, "(refresh_frequency = ? AND last_checked_at < ?)")
		args = append(args, tier, now.Add(-staleAfter[tier]))
	}

	var ids []string
	err := r.DB.WithContext(ctx).
		Model(&domain.RegionalProductRecord{}).
		Where("region_id = ? AND failed_checks < ?", regionID, maxFailures).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Order("(last_checked_at IS NOT NULL), last_checked_at ASC, product_id ASC").
		Limit(limit).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale records: %w", err)
	}

	return ids, nil
}

func (r *RegionalProductRepository) CountCheckedBefore(ctx context.Context, regionID string, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var n int64
	err := r.DB.WithContext(ctx).
		Model(&domain.RegionalProductRecord{}).
		Where("region_id = ? AND (last_checked_at IS NULL OR last_checked_at < ?)", regionID, before).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unchecked records: %w", err)
	}

	return n, nil
}

func (r *RegionalProductRepository) CountUnavailableSince(ctx context.Context, regionID string, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var n int64
	err := r.DB.WithContext(ctx).
		Model(&domain.RegionalProductRecord{}).
		Where("region_id = ? AND is_available = ? AND unavailable_since < ?", regionID, false, before).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unavailable records: %w", err)
	}

	return n, nil
}

func (r *RegionalProductRepository) FailingProductIDs(ctx context.Context, regionID string, minFailures int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var ids []string
	err := r.DB.WithContext(ctx).
		Model(&domain.RegionalProductRecord{}).
		Where("region_id = ? AND failed_checks >= ?", regionID, minFailures).
		Order("product_id ASC").
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find failing records: %w", err)
	}

	return ids, nil
}

func (r *RegionalProductRepository) AssignFrequencies(ctx context.Context, regionID string, highIDs []string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		medium := tx.Model(&domain.RegionalProductRecord{}).Where("region_id = ?", regionID)
		if len(highIDs) > 0 {
			medium = medium.Where("product_id NOT IN ?", highIDs)
		}
		if err := medium.Update("refresh_frequency", domain.RefreshMedium).Error; err != nil {
			return fmt.Errorf("failed to reset refresh frequencies: %w", err)
		}

		if len(highIDs) == 0 {
			return nil
		}
		err := tx.Model(&domain.RegionalProductRecord{}).
			Where("region_id = ? AND product_id IN ?", regionID, highIDs).
			Update("refresh_frequency", domain.RefreshHigh).Error
		if err != nil {
			return fmt.Errorf("failed to promote popular records: %w", err)
		}
		return nil
	})
}
