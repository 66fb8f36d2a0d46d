//go:build !integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/domain"
)

func TestRegionRepository_SeedAndFindActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewRegionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, []domain.Region{
		{ID: "US", Name: "United States", Currency: "USD", Priority: 2},
		{ID: "BR", Name: "Brasil", Currency: "BRL", Priority: 1},
		{ID: "JP", Name: "Japan", Currency: "JPY", Priority: 10},
	}))
	require.NoError(t, db.Model(&domain.Region{}).Where("id = ?", "JP").Update("is_active", false).Error)

	// reseeding renames but does not reactivate
	require.NoError(t, repo.Seed(ctx, []domain.Region{{ID: "JP", Name: "日本", Currency: "JPY", Priority: 10}}))

	regions, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "BR", regions[0].ID)
	assert.Equal(t, "US", regions[1].ID)

	var jp domain.Region
	require.NoError(t, db.First(&jp, "id = ?", "JP").Error)
	assert.Equal(t, "日本", jp.Name)
	assert.False(t, jp.IsActive)
}
