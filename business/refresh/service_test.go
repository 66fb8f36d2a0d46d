//go:build !integration

package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/business/costgovernor"
	"smartLink/business/regions"
	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

var testNow = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)

type fakeMarket struct {
	mu       sync.Mutex
	products map[string]domain.ProductCandidate
	err      error
	calls    [][]string
}

func (f *fakeMarket) GetByIDs(ctx context.Context, region string, ids []string) ([]domain.ProductCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ProductCandidate
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeGovernor struct {
	mu      sync.Mutex
	plans   map[string]costgovernor.BatchPlan
	planErr map[string]error
	allow   int
	checks  int
}

func (f *fakeGovernor) ScheduleBatch(ctx context.Context, region string, now time.Time) (costgovernor.BatchPlan, error) {
	if err := f.planErr[region]; err != nil {
		return costgovernor.BatchPlan{}, err
	}
	return f.plans[region], nil
}

func (f *fakeGovernor) CanProceed(ctx context.Context, region string) (costgovernor.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.allow >= 0 && f.checks > f.allow {
		return costgovernor.Decision{Allowed: false, Reason: "daily request limit reached"}, nil
	}
	return costgovernor.Decision{Allowed: true}, nil
}

type memRecords struct {
	mu      sync.Mutex
	records map[string]domain.RegionalProductRecord
	high    []string
}

func newMemRecords() *memRecords {
	return &memRecords{records: map[string]domain.RegionalProductRecord{}}
}

func (m *memRecords) FindRecord(ctx context.Context, productID, regionID string) (domain.RegionalProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[productID+"/"+regionID]
	if !ok {
		return domain.RegionalProductRecord{}, apperrors.ErrNotFound
	}
	return rec, nil
}

func (m *memRecords) UpsertRecord(ctx context.Context, record *domain.RegionalProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ProductID+"/"+record.RegionID] = *record
	return nil
}

func (m *memRecords) FailingProductIDs(ctx context.Context, regionID string, minFailures int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, rec := range m.records {
		if rec.RegionID == regionID && rec.FailedChecks >= minFailures {
			ids = append(ids, rec.ProductID)
		}
	}
	return ids, nil
}

func (m *memRecords) AssignFrequencies(ctx context.Context, regionID string, highIDs []string) error {
	m.high = highIDs
	return nil
}

type fakeClicks struct {
	stats []domain.ProductClickStat
}

func (f *fakeClicks) TopProducts(ctx context.Context, regionID string, since time.Time, limit int) ([]domain.ProductClickStat, error) {
	return f.stats, nil
}

type fixture struct {
	svc      *Service
	market   *fakeMarket
	governor *fakeGovernor
	records  *memRecords
	clicks   *fakeClicks
}

func newFixture() *fixture {
	f := &fixture{
		market:   &fakeMarket{products: map[string]domain.ProductCandidate{}},
		governor: &fakeGovernor{plans: map[string]costgovernor.BatchPlan{}, planErr: map[string]error{}, allow: -1},
		records:  newMemRecords(),
		clicks:   &fakeClicks{},
	}
	cfg := DefaultConfig()
	cfg.BatchDelay = 0
	cfg.MaxConcurrent = 1
	f.svc = NewService(f.market, f.governor, f.records, f.clicks, regions.DefaultTables(), cfg)
	f.svc.now = func() time.Time { return testNow }
	return f
}

// seed stores n available BR records P00..Pnn and lists them in the marketplace.
func (f *fixture) seed(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		id := fmt.Sprintf("P%02d", i)
		ids[i] = id
		f.records.records[id+"/BR"] = domain.RegionalProductRecord{
			ProductID:    id,
			RegionID:     "BR",
			IsAvailable:  true,
			PurchaseLink: "https://old.example/" + id,
			LocalPrice:   10,
		}
		f.market.products[id] = domain.ProductCandidate{
			ID:           id,
			CurrentPrice: 99.9,
			IsPrime:      true,
			ProductURL:   "https://www.amazon.com.br/dp/" + id,
		}
	}
	return ids
}

func TestRunBatchRefresh(t *testing.T) {
	f := newFixture()
	ids := f.seed(25)
	delete(f.market.products, "P07")
	rec := f.records.records["P07/BR"]
	rec.FailedChecks = 4
	f.records.records["P07/BR"] = rec
	f.governor.plans["BR"] = costgovernor.BatchPlan{Region: "BR", ProductIDs: ids}

	report, err := f.svc.RunBatchRefresh(context.Background(), "br")

	require.NoError(t, err)
	assert.Equal(t, 25, report.Planned)
	assert.Equal(t, 24, report.Refreshed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Deactivated)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, 3, f.governor.checks)

	require.Len(t, f.market.calls, 3)
	assert.Len(t, f.market.calls[0], 10)
	assert.Len(t, f.market.calls[2], 5)

	got := f.records.records["P00/BR"]
	assert.Equal(t, 99.9, got.LocalPrice)
	assert.Equal(t, "BRL", got.Currency)
	assert.Equal(t, "https://www.amazon.com.br/dp/P00", got.PurchaseLink)
	assert.True(t, got.IsPrime)
	require.NotNil(t, got.LastCheckedAt)
	assert.Equal(t, testNow, *got.LastCheckedAt)

	dead := f.records.records["P07/BR"]
	assert.False(t, dead.IsAvailable)
	assert.Equal(t, 5, dead.FailedChecks)
	require.NotNil(t, dead.UnavailableSince)
}

func TestRunBatchRefresh_BudgetRefusalSkipsRest(t *testing.T) {
	f := newFixture()
	ids := f.seed(25)
	f.governor.plans["BR"] = costgovernor.BatchPlan{Region: "BR", ProductIDs: ids}
	f.governor.allow = 1

	report, err := f.svc.RunBatchRefresh(context.Background(), "BR")

	require.NoError(t, err)
	assert.Equal(t, 10, report.Refreshed)
	assert.Equal(t, 15, report.Skipped)
	assert.Equal(t, "daily request limit reached", report.StopReason)
	assert.Len(t, f.market.calls, 1)
	assert.Equal(t, 2, f.governor.checks, "no check after the first refusal")
}

func TestRunBatchRefresh_RefusedLookupIsNotAFailure(t *testing.T) {
	f := newFixture()
	ids := f.seed(25)
	rec := f.records.records["P03/BR"]
	rec.FailedChecks = 4
	f.records.records["P03/BR"] = rec
	f.governor.plans["BR"] = costgovernor.BatchPlan{Region: "BR", ProductIDs: ids}
	f.market.err = fmt.Errorf("%w: daily request limit reached", apperrors.ErrBudgetExceeded)

	report, err := f.svc.RunBatchRefresh(context.Background(), "BR")

	require.NoError(t, err)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Deactivated)
	assert.Equal(t, 25, report.Skipped)
	assert.Contains(t, report.StopReason, "daily request limit reached")
	assert.Len(t, f.market.calls, 1, "no lookup after the budget refused one")
	assert.Equal(t, 4, f.records.records["P03/BR"].FailedChecks)
	assert.True(t, f.records.records["P03/BR"].IsAvailable)
}

func TestRunBatchRefresh_MarketplaceErrorCountsFailures(t *testing.T) {
	f := newFixture()
	ids := f.seed(3)
	f.governor.plans["BR"] = costgovernor.BatchPlan{Region: "BR", ProductIDs: ids}
	f.market.err = apperrors.ErrMarketplaceUnavailable

	report, err := f.svc.RunBatchRefresh(context.Background(), "BR")

	require.NoError(t, err)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 1, f.records.records["P01/BR"].FailedChecks)
	assert.True(t, f.records.records["P01/BR"].IsAvailable, "one failure keeps the record in service")
}

func TestRunBatchRefresh_ScheduleError(t *testing.T) {
	f := newFixture()
	f.governor.planErr["BR"] = errors.New("db down")

	_, err := f.svc.RunBatchRefresh(context.Background(), "BR")

	assert.Error(t, err)
}

func TestRefresh_PricelessListingIsUnavailable(t *testing.T) {
	f := newFixture()
	f.seed(1)
	f.market.products["P00"] = domain.ProductCandidate{ID: "P00", ProductURL: "https://www.amazon.com.br/dp/P00"}

	n, err := f.svc.RefreshProducts(context.Background(), "BR", []string{"P00"})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	rec := f.records.records["P00/BR"]
	assert.False(t, rec.IsAvailable)
	assert.Zero(t, rec.FailedChecks)
	require.NotNil(t, rec.UnavailableSince)
}

func TestRefreshProducts_CreatesMissingRecordsAndDedupes(t *testing.T) {
	f := newFixture()
	f.market.products["NEW"] = domain.ProductCandidate{ID: "NEW", CurrentPrice: 5, ProductURL: "https://www.amazon.com/dp/NEW"}

	n, err := f.svc.RefreshProducts(context.Background(), "us", []string{"NEW", "NEW", " "})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.market.calls, 1)
	assert.Equal(t, []string{"NEW"}, f.market.calls[0])
	rec := f.records.records["NEW/US"]
	assert.True(t, rec.Usable())
	assert.Equal(t, "USD", rec.Currency)
}

func TestReactivateProducts(t *testing.T) {
	f := newFixture()
	f.seed(3)
	for _, id := range []string{"P00", "P01"} {
		rec := f.records.records[id+"/BR"]
		rec.IsAvailable = false
		rec.FailedChecks = 5
		f.records.records[id+"/BR"] = rec
	}
	delete(f.market.products, "P01")

	n, err := f.svc.ReactivateProducts(context.Background(), "BR", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.records.records["P00/BR"].Usable())
	assert.Zero(t, f.records.records["P00/BR"].FailedChecks)
	assert.False(t, f.records.records["P01/BR"].IsAvailable)
	assert.Equal(t, 1, f.records.records["P01/BR"].FailedChecks)
}

func TestOptimizeFrequencies(t *testing.T) {
	f := newFixture()
	f.clicks.stats = []domain.ProductClickStat{
		{ProductID: "A", Clicks: 11},
		{ProductID: "B", Clicks: 10},
	}

	n, err := f.svc.OptimizeFrequencies(context.Background(), "BR")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A"}, f.records.high)
}

func TestChunkIDs(t *testing.T) {
	assert.Empty(t, chunkIDs(nil, 10))
	chunks := chunkIDs([]string{"a", "b", "c"}, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, chunks)
}
