package location

import (
	"context"
	"time"

	"smartLink/domain"
)

type Config struct {
	// trust placed in each detection source during fusion
	SourceWeights map[string]float64

	CacheTTL time.Duration

	PrivateOriginConfidence  float64
	UnknownCountryConfidence float64
	LanguageExactFactor      float64
	LanguageBaseFactor       float64
	UnmatchedConfidence      float64
	TimezoneExactConfidence  float64
	TimezonePrefixConfidence float64
	NoSignalConfidence       float64
}

const (
	defaultCacheTTL                 = 7 * 24 * time.Hour
	defaultPrivateOriginConfidence  = 0.3
	defaultUnknownCountryConfidence = 0.3
	defaultLanguageExactFactor      = 0.7
	defaultLanguageBaseFactor       = 0.6
	defaultUnmatchedConfidence      = 0.2
	defaultTimezoneExactConfidence  = 0.8
	defaultTimezonePrefixConfidence = 0.4
	defaultNoSignalConfidence       = 0.2
)

func DefaultConfig() Config {
	return Config{
		SourceWeights: map[string]float64{
			domain.SourceManual:        1.0,
			domain.SourceCache:         0.9,
			domain.SourceNetworkOrigin: 0.8,
			domain.SourceTimezone:      0.7,
			domain.SourceLanguage:      0.6,
			domain.SourceFallback:      0.3,
		},
		CacheTTL:                 defaultCacheTTL,
		PrivateOriginConfidence:  defaultPrivateOriginConfidence,
		UnknownCountryConfidence: defaultUnknownCountryConfidence,
		LanguageExactFactor:      defaultLanguageExactFactor,
		LanguageBaseFactor:       defaultLanguageBaseFactor,
		UnmatchedConfidence:      defaultUnmatchedConfidence,
		TimezoneExactConfidence:  defaultTimezoneExactConfidence,
		TimezonePrefixConfidence: defaultTimezonePrefixConfidence,
		NoSignalConfidence:       defaultNoSignalConfidence,
	}
}

func (c Config) weight(source string) float64 {
	if w, ok := c.SourceWeights[source]; ok {
		return w
	}
	return c.SourceWeights[domain.SourceFallback]
}

// LocationCache stores fused detections keyed by network origin.
// Get must return apperrors.ErrNotFound for a miss.
type LocationCache interface {
	Get(ctx context.Context, origin string) (domain.LocationCacheEntry, error)
	Put(ctx context.Context, entry domain.LocationCacheEntry) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PreferenceRepository interface {
	GetPreference(ctx context.Context, ownerKey string) (domain.UserRegionPreference, error)
	UpsertPreference(ctx context.Context, pref domain.UserRegionPreference) error
}

type RegionRepository interface {
	FindActive(ctx context.Context) ([]domain.Region, error)
}

// CountryLookup maps a network origin to an ISO country code. Deployments
// behind a CDN usually get the country from an edge header instead.
type CountryLookup interface {
	LookupCountry(ctx context.Context, origin string) (string, bool)
}

// NoopCountryLookup never resolves; only edge-supplied country codes count.
type NoopCountryLookup struct{}

func (NoopCountryLookup) LookupCountry(ctx context.Context, origin string) (string, bool) {
	return "", false
}
