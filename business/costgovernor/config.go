package costgovernor

import (
	"context"
	"time"

	"smartLink/domain"
)

const (
	PriorityImmediate = "immediate"
	PriorityBatch     = "batch"
	PriorityDefer     = "defer"
)

type Config struct {
	DailyRequestLimit int
	MonthlyBudget     float64

	// share of the monthly budget after which admission stops
	BudgetCutoff float64
	// budget usage that activates throttling and stretches cache TTLs
	PressureThreshold float64
	// share of the configured daily ceiling kept while throttled
	ThrottleFactor float64

	PopularityHigh float64
	PopularityLow  float64
	ImmediateTTL   time.Duration
	BatchTTL       time.Duration
	DeferTTL       time.Duration

	PeakFactor        float64
	PeakBatchLimit    int
	OffPeakBatchLimit int
	HistoryWindow     time.Duration

	// staleness cutoff per refresh frequency tier
	StaleAfter map[string]time.Duration
	// failed checks after which a record leaves batch planning
	FailureThreshold int

	WeeklyGrowth float64
	BatchSavings float64
}

const (
	defaultDailyRequestLimit = 1000
	defaultMonthlyBudget     = 100.0
	defaultBudgetCutoff      = 0.95
	defaultPressureThreshold = 0.8
	defaultThrottleFactor    = 0.3
	defaultPopularityHigh    = 0.8
	defaultPopularityLow     = 0.3
	defaultImmediateTTL      = 2 * time.Hour
	defaultBatchTTL          = 6 * time.Hour
	defaultDeferTTL          = 24 * time.Hour
	defaultPeakFactor        = 1.25
	defaultPeakBatchLimit    = 20
	defaultOffPeakBatchLimit = 100
	defaultHistoryWindow     = 7 * 24 * time.Hour
	defaultFailureThreshold  = 5
	defaultWeeklyGrowth      = 0.05
	defaultBatchSavings      = 0.3
)

func DefaultConfig() Config {
	return Config{
		DailyRequestLimit: defaultDailyRequestLimit,
		MonthlyBudget:     defaultMonthlyBudget,
		BudgetCutoff:      defaultBudgetCutoff,
		PressureThreshold: defaultPressureThreshold,
		ThrottleFactor:    defaultThrottleFactor,
		PopularityHigh:    defaultPopularityHigh,
		PopularityLow:     defaultPopularityLow,
		ImmediateTTL:      defaultImmediateTTL,
		BatchTTL:          defaultBatchTTL,
		DeferTTL:          defaultDeferTTL,
		PeakFactor:        defaultPeakFactor,
		PeakBatchLimit:    defaultPeakBatchLimit,
		OffPeakBatchLimit: defaultOffPeakBatchLimit,
		HistoryWindow:     defaultHistoryWindow,
		StaleAfter: map[string]time.Duration{
			domain.RefreshHigh:   30 * time.Minute,
			domain.RefreshMedium: 2 * time.Hour,
			domain.RefreshLow:    6 * time.Hour,
		},
		FailureThreshold: defaultFailureThreshold,
		WeeklyGrowth:     defaultWeeklyGrowth,
		BatchSavings:     defaultBatchSavings,
	}
}

// LedgerRepository persists per-region budget counters. TryAcquire must be a
// single atomic check-and-increment.
type LedgerRepository interface {
	EnsureLedger(ctx context.Context, ledger domain.BudgetLedger) error
	GetLedger(ctx context.Context, regionID string) (domain.BudgetLedger, error)
	RollOver(ctx context.Context, regionID, day, month string) error
	TryAcquire(ctx context.Context, regionID string, cost, budgetCutoff float64, now time.Time) (bool, error)
	Throttle(ctx context.Context, regionID string, ceiling int, until time.Time) error
	ReleaseThrottle(ctx context.Context, regionID string) error
}

type UsageRepository interface {
	UsageSignals(ctx context.Context, productID string, since time.Time) (domain.UsageSignals, error)
	HourlyClicks(ctx context.Context, regionID string, since time.Time) ([24]int64, error)
	TopProducts(ctx context.Context, regionID string, since time.Time, limit int) ([]domain.ProductClickStat, error)
}

type RecordRepository interface {
	FindRecord(ctx context.Context, productID, regionID string) (domain.RegionalProductRecord, error)
	// StaleProductIDs skips records with maxFailures or more failed checks.
	StaleProductIDs(ctx context.Context, regionID string, now time.Time, staleAfter map[string]time.Duration, maxFailures, limit int) ([]string, error)
	CountCheckedBefore(ctx context.Context, regionID string, before time.Time) (int64, error)
	CountUnavailableSince(ctx context.Context, regionID string, before time.Time) (int64, error)
}

// CostTable prices one marketplace request per region.
type CostTable interface {
	CostPerRequest(region string) float64
}
