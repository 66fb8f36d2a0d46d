//go:build !integration

package costgovernor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/business/regions"
	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

type memLedgers struct {
	mu      sync.Mutex
	ledgers map[string]*domain.BudgetLedger
}

func newMemLedgers() *memLedgers {
	return &memLedgers{ledgers: make(map[string]*domain.BudgetLedger)}
}

func (m *memLedgers) EnsureLedger(ctx context.Context, ledger domain.BudgetLedger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ledgers[ledger.RegionID]; !ok {
		l := ledger
		m.ledgers[ledger.RegionID] = &l
	}
	return nil
}

func (m *memLedgers) GetLedger(ctx context.Context, regionID string) (domain.BudgetLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[regionID]
	if !ok {
		return domain.BudgetLedger{}, apperrors.ErrNotFound
	}
	return *l, nil
}

func (m *memLedgers) RollOver(ctx context.Context, regionID, day, month string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.ledgers[regionID]
	if l.Month != month {
		l.Month, l.Day = month, day
		l.DailyCount, l.MonthlySpend = 0, 0
		l.DailyCeiling = l.BaseDailyCeiling
		l.Throttled, l.ThrottleUntil = false, nil
	}
	if l.Day != day {
		l.Day = day
		l.DailyCount = 0
	}
	return nil
}

func (m *memLedgers) TryAcquire(ctx context.Context, regionID string, cost, budgetCutoff float64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.ledgers[regionID]
	if l.DailyCount >= l.DailyCeiling || l.MonthlySpend >= l.MonthlyBudget*budgetCutoff {
		return false, nil
	}
	if l.Throttled && l.ThrottleUntil != nil && now.Before(*l.ThrottleUntil) {
		return false, nil
	}
	l.DailyCount++
	l.MonthlySpend += cost
	return true, nil
}

func (m *memLedgers) Throttle(ctx context.Context, regionID string, ceiling int, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.ledgers[regionID]
	l.DailyCeiling = ceiling
	l.Throttled = true
	l.ThrottleUntil = &until
	return nil
}

func (m *memLedgers) ReleaseThrottle(ctx context.Context, regionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.ledgers[regionID]
	l.Throttled, l.ThrottleUntil = false, nil
	return nil
}

type memUsage struct {
	signals map[string]domain.UsageSignals
	hourly  [24]int64
	top     []domain.ProductClickStat
}

func (m *memUsage) UsageSignals(ctx context.Context, productID string, since time.Time) (domain.UsageSignals, error) {
	return m.signals[productID], nil
}

func (m *memUsage) HourlyClicks(ctx context.Context, regionID string, since time.Time) ([24]int64, error) {
	return m.hourly, nil
}

func (m *memUsage) TopProducts(ctx context.Context, regionID string, since time.Time, limit int) ([]domain.ProductClickStat, error) {
	if len(m.top) > limit {
		return m.top[:limit], nil
	}
	return m.top, nil
}

type memRecords struct {
	records     map[string]domain.RegionalProductRecord
	stale       []string
	unchecked   int64
	unavailable int64
}

func (m *memRecords) FindRecord(ctx context.Context, productID, regionID string) (domain.RegionalProductRecord, error) {
	r, ok := m.records[productID+"/"+regionID]
	if !ok {
		return domain.RegionalProductRecord{}, apperrors.ErrNotFound
	}
	return r, nil
}

func (m *memRecords) StaleProductIDs(ctx context.Context, regionID string, now time.Time, staleAfter map[string]time.Duration, maxFailures, limit int) ([]string, error) {
	return m.stale, nil
}

func (m *memRecords) CountCheckedBefore(ctx context.Context, regionID string, before time.Time) (int64, error) {
	return m.unchecked, nil
}

func (m *memRecords) CountUnavailableSince(ctx context.Context, regionID string, before time.Time) (int64, error) {
	return m.unavailable, nil
}

var testNow = time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

type fixture struct {
	gov     *Governor
	ledgers *memLedgers
	usage   *memUsage
	records *memRecords
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		ledgers: newMemLedgers(),
		usage:   &memUsage{signals: map[string]domain.UsageSignals{}},
		records: &memRecords{records: map[string]domain.RegionalProductRecord{}},
	}
	f.gov = New(f.ledgers, f.usage, f.records, regions.DefaultTables(), cfg)
	f.gov.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) seed(l domain.BudgetLedger) {
	if l.Day == "" {
		l.Day = dayKey(testNow)
	}
	if l.Month == "" {
		l.Month = monthKey(testNow)
	}
	f.ledgers.ledgers[l.RegionID] = &l
}

func TestCanProceed_CreatesDefaultLedger(t *testing.T) {
	f := newFixture(DefaultConfig())

	d, err := f.gov.CanProceed(context.Background(), "br")

	require.NoError(t, err)
	assert.True(t, d.Allowed)
	l := f.ledgers.ledgers["BR"]
	assert.Equal(t, 1000, l.DailyCeiling)
	assert.Equal(t, 100.0, l.MonthlyBudget)
}

func TestCanProceed_Refusals(t *testing.T) {
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)

	tests := []struct {
		name    string
		ledger  domain.BudgetLedger
		allowed bool
		reason  string
	}{
		{"daily ceiling reached", domain.BudgetLedger{DailyCount: 10, DailyCeiling: 10, MonthlyBudget: 100}, false, reasonDailyLimit},
		{"budget at 95%", domain.BudgetLedger{DailyCeiling: 10, MonthlySpend: 95, MonthlyBudget: 100}, false, reasonBudgetLimit},
		{"budget just below 95%", domain.BudgetLedger{DailyCeiling: 10, MonthlySpend: 94.9, MonthlyBudget: 100}, true, ""},
		{"throttle window open", domain.BudgetLedger{DailyCeiling: 10, MonthlyBudget: 100, Throttled: true, ThrottleUntil: &future}, false, ""},
		{"throttle window elapsed", domain.BudgetLedger{DailyCeiling: 10, MonthlyBudget: 100, Throttled: true, ThrottleUntil: &past}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(DefaultConfig())
			tt.ledger.RegionID = "US"
			tt.ledger.BaseDailyCeiling = 10
			f.seed(tt.ledger)

			d, err := f.gov.CanProceed(context.Background(), "US")

			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, d.Reason)
			}
			if !tt.allowed {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestAcquire_NeverExceedsCeiling(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.seed(domain.BudgetLedger{RegionID: "BR", DailyCeiling: 10, BaseDailyCeiling: 10, MonthlyBudget: 100})

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := f.gov.Acquire(context.Background(), "BR")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
	l := f.ledgers.ledgers["BR"]
	assert.Equal(t, 10, l.DailyCount)
	assert.InDelta(t, 10*0.0005, l.MonthlySpend, 1e-12)
}

func TestAcquire_RollsOverDay(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.seed(domain.BudgetLedger{RegionID: "BR", Day: "2025-06-14", DailyCount: 10, DailyCeiling: 10, BaseDailyCeiling: 10, MonthlySpend: 3, MonthlyBudget: 100})

	d, err := f.gov.Acquire(context.Background(), "BR")

	require.NoError(t, err)
	assert.True(t, d.Allowed)
	l := f.ledgers.ledgers["BR"]
	assert.Equal(t, 1, l.DailyCount)
	assert.InDelta(t, 3.0005, l.MonthlySpend, 1e-12)
}

func TestAcquire_RollsOverMonthAndRestoresCeiling(t *testing.T) {
	f := newFixture(DefaultConfig())
	until := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	f.seed(domain.BudgetLedger{
		RegionID: "BR", Day: "2025-05-31", Month: "2025-05",
		DailyCount: 3, DailyCeiling: 3, BaseDailyCeiling: 10,
		MonthlySpend: 90, MonthlyBudget: 100, Throttled: true, ThrottleUntil: &until,
	})

	d, err := f.gov.Acquire(context.Background(), "BR")

	require.NoError(t, err)
	assert.True(t, d.Allowed)
	l := f.ledgers.ledgers["BR"]
	assert.Equal(t, 10, l.DailyCeiling)
	assert.False(t, l.Throttled)
	assert.InDelta(t, 0.0005, l.MonthlySpend, 1e-12)
}

func TestAdmit(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.seed(domain.BudgetLedger{RegionID: "BR", DailyCount: 1, DailyCeiling: 2, BaseDailyCeiling: 2, MonthlyBudget: 100})

	require.NoError(t, f.gov.Admit(context.Background(), "br"))
	assert.Equal(t, 2, f.ledgers.ledgers["BR"].DailyCount)

	err := f.gov.Admit(context.Background(), "BR")
	assert.ErrorIs(t, err, apperrors.ErrBudgetExceeded)
	assert.Contains(t, err.Error(), "daily request limit reached")
	assert.Equal(t, 2, f.ledgers.ledgers["BR"].DailyCount)
}

func TestApplyThrottling(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.seed(domain.BudgetLedger{RegionID: "ES", DailyCeiling: 1000, BaseDailyCeiling: 1000, MonthlySpend: 81, MonthlyBudget: 100})

	require.NoError(t, f.gov.ApplyThrottling(context.Background(), "ES"))

	l := f.ledgers.ledgers["ES"]
	assert.True(t, l.Throttled)
	assert.Equal(t, 300, l.DailyCeiling)
	require.NotNil(t, l.ThrottleUntil)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *l.ThrottleUntil)

	d, err := f.gov.CanProceed(context.Background(), "ES")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	require.NoError(t, f.gov.ReleaseThrottle(context.Background(), "ES"))
	d, err = f.gov.CanProceed(context.Background(), "ES")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 300, f.ledgers.ledgers["ES"].DailyCeiling)
}

func TestApplyThrottling_BelowThreshold(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.seed(domain.BudgetLedger{RegionID: "ES", DailyCeiling: 1000, BaseDailyCeiling: 1000, MonthlySpend: 80, MonthlyBudget: 100})

	require.NoError(t, f.gov.ApplyThrottling(context.Background(), "ES"))

	assert.False(t, f.ledgers.ledgers["ES"].Throttled)
}

func TestReleaseThrottle_UnknownRegion(t *testing.T) {
	f := newFixture(DefaultConfig())

	err := f.gov.ReleaseThrottle(context.Background(), "ZZ")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNextMonth(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nextMonth(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 28, daysInMonth(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))
}
