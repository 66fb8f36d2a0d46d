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

// LocationRepository persists detection cache entries and region
// preferences.
type LocationRepository struct {
	DB *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{DB: db}
}

func (r *LocationRepository) Get(ctx context.Context, origin string) (domain.LocationCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.LocationCacheEntry{}, fmt.Errorf("context error: %w", err)
	}

	var entry domain.LocationCacheEntry
	err := r.DB.WithContext(ctx).Where("network_origin = ?", origin).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LocationCacheEntry{}, apperrors.ErrNotFound
		}
		return domain.LocationCacheEntry{}, fmt.Errorf("failed to find location cache entry: %w", err)
	}

	return entry, nil
}

func (r *LocationRepository) Put(ctx context.Context, entry domain.LocationCacheEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "network_origin"}},
		UpdateAll: true,
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert location cache entry: %w", err)
	}

	return nil
}

func (r *LocationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.LocationCacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired location cache: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *LocationRepository) GetPreference(ctx context.Context, ownerKey string) (domain.UserRegionPreference, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserRegionPreference{}, fmt.Errorf("context error: %w", err)
	}

	var pref domain.UserRegionPreference
	err := r.DB.WithContext(ctx).Where("owner_key = ?", ownerKey).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserRegionPreference{}, apperrors.ErrNotFound
		}
		return domain.UserRegionPreference{}, fmt.Errorf("failed to find region preference: %w", err)
	}

	return pref, nil
}

func (r *LocationRepository) UpsertPreference(ctx context.Context, pref domain.UserRegionPreference) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if pref.OwnerKey == "" {
		return errors.New("preference owner key is required")
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_key"}},
		UpdateAll: true,
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("failed to upsert region preference: %w", err)
	}

	return nil
}
