package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

type MappingRepository struct {
	DB *gorm.DB
}

func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{DB: db}
}

// ActiveMappings lists active equivalents of productID in region, most
// similar first. Self mappings are never returned.
func (r *MappingRepository) ActiveMappings(ctx context.Context, productID, regionID string) ([]domain.ProductEquivalenceMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var mappings []domain.ProductEquivalenceMapping
	err := r.DB.WithContext(ctx).
		Where("base_product_id = ? AND region_id = ? AND is_active = ?", productID, regionID, true).
		Where("equivalent_product_id <> base_product_id").
		Order("similarity_score DESC, id ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find equivalence mappings: %w", err)
	}

	return mappings, nil
}

func (r *MappingRepository) CreateMapping(ctx context.Context, mapping *domain.ProductEquivalenceMapping) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	mapping.BaseProductID = strings.TrimSpace(mapping.BaseProductID)
	mapping.EquivalentProductID = strings.TrimSpace(mapping.EquivalentProductID)
	mapping.RegionID = strings.ToUpper(strings.TrimSpace(mapping.RegionID))
	if mapping.BaseProductID == mapping.EquivalentProductID {
		return apperrors.ErrSelfMapping
	}
	if mapping.SimilarityScore < 0 || mapping.SimilarityScore > 1 {
		return errors.New("similarity score must be within [0, 1]")
	}

	if err := r.DB.WithContext(ctx).Create(mapping).Error; err != nil {
		return fmt.Errorf("failed to create equivalence mapping: %w", err)
	}

	return nil
}

func (r *MappingRepository) DeactivateMapping(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).
		Model(&domain.ProductEquivalenceMapping{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate equivalence mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
