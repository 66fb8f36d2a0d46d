//go:build !integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

func ptr(t time.Time) *time.Time { return &t }

func TestRegionalProductRepository_UpsertAndFind(t *testing.T) {
	repo := NewRegionalProductRepository(newTestDB(t))
	ctx := context.Background()

	rec := &domain.RegionalProductRecord{ProductID: "P1", RegionID: "BR", IsAvailable: true, PurchaseLink: "https://br/P1", LocalPrice: 10}
	require.NoError(t, repo.UpsertRecord(ctx, rec))

	rec.LocalPrice = 12.5
	rec.PurchaseLink = ""
	require.NoError(t, repo.UpsertRecord(ctx, rec))

	got, err := repo.FindRecord(ctx, "P1", "BR")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.LocalPrice)
	assert.False(t, got.IsAvailable, "a record without a link is never available")
	assert.Equal(t, domain.RefreshMedium, got.RefreshFrequency)

	_, err = repo.FindRecord(ctx, "P1", "US")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Error(t, repo.UpsertRecord(ctx, &domain.RegionalProductRecord{ProductID: "P2"}))
}

func TestRegionalProductRepository_Counts(t *testing.T) {
	repo := NewRegionalProductRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	records := []domain.RegionalProductRecord{
		{ProductID: "A", RegionID: "BR", IsAvailable: true, PurchaseLink: "l", LastCheckedAt: ptr(now.Add(-time.Hour))},
		{ProductID: "B", RegionID: "BR", IsAvailable: true, PurchaseLink: "l", LastCheckedAt: ptr(now.Add(-10 * time.Hour))},
		{ProductID: "C", RegionID: "BR", UnavailableSince: ptr(now.Add(-40 * 24 * time.Hour)), FailedChecks: 5},
		{ProductID: "D", RegionID: "BR", UnavailableSince: ptr(now.Add(-2 * 24 * time.Hour)), FailedChecks: 2},
		{ProductID: "E", RegionID: "US", IsAvailable: true, PurchaseLink: "l"},
	}
	for i := range records {
		require.NoError(t, repo.UpsertRecord(ctx, &records[i]))
	}

	total, available, err := repo.CountRecords(ctx, "BR")
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(2), available)

	n, err := repo.CountCheckedBefore(ctx, "BR", now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "B is old, C and D were never checked")

	n, err = repo.CountUnavailableSince(ctx, "BR", now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids, err := repo.FailingProductIDs(ctx, "BR", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, ids)
}

func TestRegionalProductRepository_StaleProductIDs(t *testing.T) {
	repo := NewRegionalProductRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	records := []domain.RegionalProductRecord{
		{ProductID: "fresh-high", RegionID: "BR", RefreshFrequency: domain.RefreshHigh, LastCheckedAt: ptr(now.Add(-10 * time.Minute))},
		{ProductID: "stale-high", RegionID: "BR", RefreshFrequency: domain.RefreshHigh, LastCheckedAt: ptr(now.Add(-45 * time.Minute))},
		{ProductID: "fresh-low", RegionID: "BR", RefreshFrequency: domain.RefreshLow, LastCheckedAt: ptr(now.Add(-3 * time.Hour))},
		{ProductID: "stale-medium", RegionID: "BR", RefreshFrequency: domain.RefreshMedium, LastCheckedAt: ptr(now.Add(-5 * time.Hour))},
		{ProductID: "never", RegionID: "BR", RefreshFrequency: domain.RefreshLow},
		{ProductID: "other-region", RegionID: "US"},
		{ProductID: "deactivated", RegionID: "BR", RefreshFrequency: domain.RefreshHigh, FailedChecks: 7, LastCheckedAt: ptr(now.Add(-48 * time.Hour))},
		{ProductID: "failing", RegionID: "BR", RefreshFrequency: domain.RefreshHigh, FailedChecks: 4, LastCheckedAt: ptr(now.Add(-47 * time.Hour))},
	}
	for i := range records {
		require.NoError(t, repo.UpsertRecord(ctx, &records[i]))
	}

	staleAfter := map[string]time.Duration{
		domain.RefreshHigh:   30 * time.Minute,
		domain.RefreshMedium: 2 * time.Hour,
		domain.RefreshLow:    6 * time.Hour,
	}
	ids, err := repo.StaleProductIDs(ctx, "BR", now, staleAfter, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"never", "failing", "stale-medium", "stale-high"}, ids)
	assert.NotContains(t, ids, "deactivated")

	ids, err = repo.StaleProductIDs(ctx, "BR", now, staleAfter, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"never"}, ids)
}

func TestRegionalProductRepository_AssignFrequencies(t *testing.T) {
	repo := NewRegionalProductRepository(newTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, repo.UpsertRecord(ctx, &domain.RegionalProductRecord{ProductID: id, RegionID: "BR", RefreshFrequency: domain.RefreshLow}))
	}

	require.NoError(t, repo.AssignFrequencies(ctx, "BR", []string{"B"}))

	for id, want := range map[string]string{"A": domain.RefreshMedium, "B": domain.RefreshHigh, "C": domain.RefreshMedium} {
		rec, err := repo.FindRecord(ctx, id, "BR")
		require.NoError(t, err)
		assert.Equal(t, want, rec.RefreshFrequency, id)
	}

	require.NoError(t, repo.AssignFrequencies(ctx, "BR", nil))
	rec, err := repo.FindRecord(ctx, "B", "BR")
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshMedium, rec.RefreshFrequency)
}
