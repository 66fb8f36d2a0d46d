package linkresolver

import (
	"context"
	"time"

	"smartLink/domain"
)

type Config struct {
	// upper bound for one resolution, analytics excluded
	ResolveTimeout time.Duration
	// budget for the emergency lookup and the analytics write once the
	// request deadline is gone
	EmergencyTimeout time.Duration

	NearbyConfidence float64
	GlobalConfidence float64

	PreWarmCandidates int
	PreWarmLimit      int

	MinRegionProducts   int64
	MinAvailabilityRate float64

	// key for tracking-link tokens, 16, 24 or 32 bytes
	TokenKey      string
	PublicBaseURL string
}

const (
	defaultResolveTimeout      = 3 * time.Second
	defaultEmergencyTimeout    = 500 * time.Millisecond
	defaultNearbyConfidence    = 0.7
	defaultGlobalConfidence    = 0.5
	defaultPreWarmCandidates   = 50
	defaultPreWarmLimit        = 25
	defaultMinRegionProducts   = 10
	defaultMinAvailabilityRate = 0.7
)

func DefaultConfig() Config {
	return Config{
		ResolveTimeout:      defaultResolveTimeout,
		EmergencyTimeout:    defaultEmergencyTimeout,
		NearbyConfidence:    defaultNearbyConfidence,
		GlobalConfidence:    defaultGlobalConfidence,
		PreWarmCandidates:   defaultPreWarmCandidates,
		PreWarmLimit:        defaultPreWarmLimit,
		MinRegionProducts:   defaultMinRegionProducts,
		MinAvailabilityRate: defaultMinAvailabilityRate,
	}
}

// Locator infers the visitor's region.
type Locator interface {
	DetectRegion(ctx context.Context, signals domain.RequestSignals) domain.RegionDetection
	ActiveRegions(ctx context.Context) ([]domain.Region, error)
}

type RecordRepository interface {
	FindRecord(ctx context.Context, productID, regionID string) (domain.RegionalProductRecord, error)
	CountRecords(ctx context.Context, regionID string) (total int64, available int64, err error)
}

// MappingRepository returns active mappings for (product, region) ordered by
// similarity, highest first.
type MappingRepository interface {
	ActiveMappings(ctx context.Context, productID, regionID string) ([]domain.ProductEquivalenceMapping, error)
}

type AnalyticsRepository interface {
	RecordClick(ctx context.Context, event *domain.ClickAnalyticsEvent) error
	// SuccessfulRegions counts available, non-emergency resolutions of the
	// product per served region, most first.
	SuccessfulRegions(ctx context.Context, productID string) ([]domain.RegionCount, error)
	ClickTotals(ctx context.Context, since time.Time) (total, available, fallback int64, err error)
	RegionClicks(ctx context.Context, since time.Time, limit int) ([]domain.RegionCount, error)
	TopProducts(ctx context.Context, regionID string, since time.Time, limit int) ([]domain.ProductClickStat, error)
}

// Refresher re-fetches products from the marketplace, within budget.
type Refresher interface {
	RefreshProducts(ctx context.Context, regionID string, productIDs []string) (int, error)
}

// RegionTable is the static region knowledge the cascade walks.
type RegionTable interface {
	Nearby(region string) []string
	Priority(region string) int
	IsKnown(region string) bool
	CurrencySymbol(currency string) string
}
