package refresh

import (
	"context"
	"time"

	"smartLink/business/costgovernor"
	"smartLink/domain"
)

type Config struct {
	ChunkSize     int           // ids per marketplace lookup
	MaxConcurrent int           // lookups in flight per batch
	BatchDelay    time.Duration // spacing between batches of lookups

	// consecutive failed checks before a record is marked unavailable
	FailureThreshold int

	PopularClicks int64
	PopularWindow time.Duration
}

const (
	defaultChunkSize        = 10
	defaultMaxConcurrent    = 5
	defaultBatchDelay       = 2 * time.Second
	defaultFailureThreshold = 5
	defaultPopularClicks    = 10
	defaultPopularWindow    = 7 * 24 * time.Hour
)

func DefaultConfig() Config {
	return Config{
		ChunkSize:        defaultChunkSize,
		MaxConcurrent:    defaultMaxConcurrent,
		BatchDelay:       defaultBatchDelay,
		FailureThreshold: defaultFailureThreshold,
		PopularClicks:    defaultPopularClicks,
		PopularWindow:    defaultPopularWindow,
	}
}

// Marketplace returns the products it still lists; ids it does not return
// are treated as failed checks. The client charges each request to the
// budget itself and reports a refusal as apperrors.ErrBudgetExceeded.
type Marketplace interface {
	GetByIDs(ctx context.Context, region string, ids []string) ([]domain.ProductCandidate, error)
}

type Governor interface {
	ScheduleBatch(ctx context.Context, region string, now time.Time) (costgovernor.BatchPlan, error)
	CanProceed(ctx context.Context, region string) (costgovernor.Decision, error)
}

type RecordRepository interface {
	FindRecord(ctx context.Context, productID, regionID string) (domain.RegionalProductRecord, error)
	UpsertRecord(ctx context.Context, record *domain.RegionalProductRecord) error
	// FailingProductIDs lists records of region with at least minFailures
	// consecutive failed checks.
	FailingProductIDs(ctx context.Context, regionID string, minFailures int) ([]string, error)
	// AssignFrequencies sets the high tier on highIDs and medium on every
	// other record of region.
	AssignFrequencies(ctx context.Context, regionID string, highIDs []string) error
}

type ClickRepository interface {
	TopProducts(ctx context.Context, regionID string, since time.Time, limit int) ([]domain.ProductClickStat, error)
}

// CurrencyTable gives the currency a region prices in.
type CurrencyTable interface {
	Currency(region string) string
}
