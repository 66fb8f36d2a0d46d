package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartLink/domain"
)

type RegionRepository struct {
	DB *gorm.DB
}

func NewRegionRepository(db *gorm.DB) *RegionRepository {
	return &RegionRepository{DB: db}
}

// FindActive lists active regions by display priority.
func (r *RegionRepository) FindActive(ctx context.Context) ([]domain.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var regions []domain.Region
	err := r.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority ASC, id ASC").
		Find(&regions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find regions: %w", err)
	}

	return regions, nil
}

// Seed upserts the configured regions. The active flag is left alone on
// existing rows so an operator can disable a region in the database.
func (r *RegionRepository) Seed(ctx context.Context, regions []domain.Region) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(regions) == 0 {
		return nil
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "currency", "marketplace_host", "priority"}),
	}).Create(&regions).Error
	if err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}

	return nil
}
