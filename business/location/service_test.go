//go:build !integration

package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartLink/business/regions"
	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.LocationCacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]domain.LocationCacheEntry)}
}

func (m *memCache) Get(ctx context.Context, origin string) (domain.LocationCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[origin]
	if !ok {
		return domain.LocationCacheEntry{}, apperrors.ErrNotFound
	}
	return e, nil
}

func (m *memCache) Put(ctx context.Context, entry domain.LocationCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.NetworkOrigin] = entry
	return nil
}

func (m *memCache) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

type memPrefs struct {
	mu    sync.Mutex
	prefs map[string]domain.UserRegionPreference
}

func newMemPrefs() *memPrefs {
	return &memPrefs{prefs: make(map[string]domain.UserRegionPreference)}
}

func (m *memPrefs) GetPreference(ctx context.Context, ownerKey string) (domain.UserRegionPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[ownerKey]
	if !ok {
		return domain.UserRegionPreference{}, apperrors.ErrNotFound
	}
	return p, nil
}

func (m *memPrefs) UpsertPreference(ctx context.Context, pref domain.UserRegionPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.OwnerKey] = pref
	return nil
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(cache *memCache, prefs *memPrefs) *Service {
	s := NewService(cache, prefs, nil, nil, regions.DefaultTables(), DefaultConfig())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestDetectRegion_NoSignals(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	got := s.DetectRegion(context.Background(), domain.RequestSignals{})

	assert.Equal(t, "BR", got.Region)
	assert.Equal(t, 0.2, got.Confidence)
	assert.Equal(t, domain.SourceFallback, got.Source)
}

func TestDetectRegion_ManualPreferenceWins(t *testing.T) {
	cache := newMemCache()
	prefs := newMemPrefs()
	prefs.prefs["session:s1"] = domain.UserRegionPreference{
		OwnerKey:          "session:s1",
		SessionID:         "s1",
		PreferredRegion:   "US",
		IsManualSelection: true,
	}
	cache.entries["200.1.1.1"] = domain.LocationCacheEntry{
		NetworkOrigin: "200.1.1.1",
		Region:        "BR",
		Confidence:    0.9,
		Source:        domain.SourceNetworkOrigin,
		ExpiresAt:     fixedNow.Add(time.Hour),
	}
	s := newTestService(cache, prefs)

	got := s.DetectRegion(context.Background(), domain.RequestSignals{
		NetworkOrigin: "200.1.1.1",
		CountryCode:   "BR",
		SessionID:     "s1",
	})

	assert.Equal(t, "US", got.Region)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, domain.SourceManual, got.Source)
}

func TestDetectRegion_CacheHit(t *testing.T) {
	cache := newMemCache()
	cache.entries["200.1.1.1"] = domain.LocationCacheEntry{
		NetworkOrigin: "200.1.1.1",
		Region:        "MX",
		Confidence:    0.64,
		Source:        domain.SourceNetworkOrigin,
		ExpiresAt:     fixedNow.Add(time.Hour),
	}
	s := newTestService(cache, newMemPrefs())

	got := s.DetectRegion(context.Background(), domain.RequestSignals{NetworkOrigin: "200.1.1.1", CountryCode: "BR"})

	assert.Equal(t, "MX", got.Region)
	assert.Equal(t, 0.64, got.Confidence)
	assert.Equal(t, domain.SourceCache, got.Source)
}

func TestDetectRegion_ExpiredCacheIgnored(t *testing.T) {
	cache := newMemCache()
	cache.entries["200.1.1.1"] = domain.LocationCacheEntry{
		NetworkOrigin: "200.1.1.1",
		Region:        "US",
		Confidence:    0.9,
		ExpiresAt:     fixedNow,
	}
	s := newTestService(cache, newMemPrefs())

	got := s.DetectRegion(context.Background(), domain.RequestSignals{NetworkOrigin: "200.1.1.1", CountryCode: "BR"})

	assert.Equal(t, "BR", got.Region)
	assert.InDelta(t, 0.76, got.Confidence, 1e-9)
	assert.Equal(t, domain.SourceNetworkOrigin, got.Source)

	// the fresh detection replaced the stale entry
	entry := cache.entries["200.1.1.1"]
	assert.Equal(t, "BR", entry.Region)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), entry.ExpiresAt)
	assert.NotContains(t, entry.Signals, "session_id")
}

func TestDetectRegion_PrivateOrigin(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	got := s.DetectRegion(context.Background(), domain.RequestSignals{NetworkOrigin: "192.168.0.10"})

	assert.Equal(t, "BR", got.Region)
	assert.InDelta(t, 0.24, got.Confidence, 1e-9)
}

func TestDetectRegion_SignalsAccumulate(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	got := s.DetectRegion(context.Background(), domain.RequestSignals{
		NetworkOrigin:  "200.1.1.1",
		CountryCode:    "BR",
		Timezone:       "America/New_York",
		AcceptLanguage: "en-US",
	})

	// US: 0.8*0.7 + 0.7*0.6 = 0.98 beats BR: 0.95*0.8 = 0.76
	assert.Equal(t, "US", got.Region)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
	assert.Equal(t, domain.SourceTimezone, got.Source)
}

func TestDetectRegion_LanguageOnly(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	got := s.DetectRegion(context.Background(), domain.RequestSignals{AcceptLanguage: "en-GB,en;q=0.8"})

	assert.Equal(t, "UK", got.Region)
	assert.InDelta(t, 0.42, got.Confidence, 1e-9)
	assert.Equal(t, domain.SourceLanguage, got.Source)
}

func TestDetectRegion_RecordsLastDetected(t *testing.T) {
	prefs := newMemPrefs()
	s := newTestService(newMemCache(), prefs)

	s.DetectRegion(context.Background(), domain.RequestSignals{Timezone: "Europe/Paris", SessionID: "abc"})

	pref, ok := prefs.prefs["session:abc"]
	require.True(t, ok)
	assert.Equal(t, "FR", pref.LastDetectedRegion)
	assert.False(t, pref.IsManualSelection)
}

func TestFuse_TieKeepsEarlierCandidate(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	got := s.fuse(
		nil,
		[]evidence{{Region: "US", Confidence: 0.6, Source: domain.SourceTimezone}},
		[]evidence{{Region: "UK", Confidence: 0.7, Source: domain.SourceLanguage}},
	)

	assert.Equal(t, "US", got.Region)

	got = s.fuse(
		nil,
		[]evidence{{Region: "UK", Confidence: 0.6, Source: domain.SourceTimezone}},
		[]evidence{{Region: "US", Confidence: 0.7, Source: domain.SourceLanguage}},
	)

	assert.Equal(t, "UK", got.Region)
}

func TestParseAcceptLanguage(t *testing.T) {
	tags := parseAcceptLanguage("fr-CA;q=0.4, de;q=0.9, *;q=0.1, es;q=0, pt-BR")

	require.Len(t, tags, 3)
	assert.Equal(t, languageTag{Tag: "pt-br", Quality: 1}, tags[0])
	assert.Equal(t, languageTag{Tag: "de", Quality: 0.9}, tags[1])
	assert.Equal(t, languageTag{Tag: "fr-ca", Quality: 0.4}, tags[2])
}

func TestDetectLanguage_BaseMatch(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	got := s.detectLanguage("ja-XX;q=0.5")

	require.Len(t, got, 1)
	assert.Equal(t, "JP", got[0].Region)
	assert.InDelta(t, 0.3, got[0].Confidence, 1e-9)
}

func TestDetectTimezone(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	tests := []struct {
		zone       string
		region     string
		confidence float64
	}{
		{"Europe/Berlin", "DE", 0.8},
		{"America/Lima", "BR", 0.4},
		{"Europe/Vienna", "ES", 0.4},
		{"Africa/Lagos", "BR", 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			got := s.detectTimezone(tt.zone)
			require.Len(t, got, 1)
			assert.Equal(t, tt.region, got[0].Region)
			assert.InDelta(t, tt.confidence, got[0].Confidence, 1e-9)
		})
	}
}

func TestSavePreference(t *testing.T) {
	prefs := newMemPrefs()
	s := newTestService(newMemCache(), prefs)

	_, err := s.SavePreference(context.Background(), "", "s9", "zz", true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRegion)

	_, err = s.SavePreference(context.Background(), "", "", "US", true)
	assert.Error(t, err)

	pref, err := s.SavePreference(context.Background(), "", "s9", "us", true)
	require.NoError(t, err)
	assert.Equal(t, "US", pref.PreferredRegion)

	got := s.DetectRegion(context.Background(), domain.RequestSignals{SessionID: "s9", Timezone: "Asia/Tokyo"})
	assert.Equal(t, "US", got.Region)
	assert.Equal(t, domain.SourceManual, got.Source)
}

func TestFallbackRegion(t *testing.T) {
	s := newTestService(newMemCache(), newMemPrefs())

	assert.Equal(t, "US", s.FallbackRegion("BR"))
	assert.Equal(t, "FR", s.FallbackRegion("es"))
	assert.Equal(t, "US", s.FallbackRegion("ZZ"))
}

func TestCleanExpiredCache(t *testing.T) {
	cache := newMemCache()
	cache.entries["a"] = domain.LocationCacheEntry{NetworkOrigin: "a", ExpiresAt: fixedNow.Add(-time.Minute)}
	cache.entries["b"] = domain.LocationCacheEntry{NetworkOrigin: "b", ExpiresAt: fixedNow.Add(time.Minute)}
	s := newTestService(cache, newMemPrefs())

	removed, err := s.CleanExpiredCache(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Contains(t, cache.entries, "b")
}
