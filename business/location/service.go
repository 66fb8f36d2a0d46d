package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"smartLink/business/regions"
	"smartLink/domain"
	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
	"smartLink/pkg/metrics"
)

type Service struct {
	cache      LocationCache
	prefs      PreferenceRepository
	regionRepo RegionRepository
	countries  CountryLookup
	tables     *regions.Tables
	cfg        Config
	now        func() time.Time
}

func NewService(
	cache LocationCache,
	prefs PreferenceRepository,
	regionRepo RegionRepository,
	countries CountryLookup,
	tables *regions.Tables,
	cfg Config,
) *Service {
	if countries == nil {
		countries = NoopCountryLookup{}
	}
	if tables == nil {
		tables = regions.DefaultTables()
	}
	if cfg.SourceWeights == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		cache:      cache,
		prefs:      prefs,
		regionRepo: regionRepo,
		countries:  countries,
		tables:     tables,
		cfg:        cfg,
		now:        time.Now,
	}
}

// DetectRegion infers the visitor's region. It never fails: missing or broken
// collaborators degrade to weaker evidence and finally to the home region.
func (s *Service) DetectRegion(ctx context.Context, signals domain.RequestSignals) domain.RegionDetection {
	detection := s.detect(ctx, signals)
	detection.Signals = signals
	metrics.LocationDetections.WithLabelValues(detection.Source).Inc()
	return detection
}

func (s *Service) detect(ctx context.Context, signals domain.RequestSignals) domain.RegionDetection {
	if signals.Empty() {
		return s.noSignal()
	}

	// a manual choice is read before the origin cache so it always wins
	ownerKey := domain.PreferenceKey(signals.UserID, signals.SessionID)
	if ownerKey != "" && s.prefs != nil {
		pref, err := s.prefs.GetPreference(ctx, ownerKey)
		switch {
		case err == nil && pref.IsManualSelection && s.tables.IsKnown(pref.PreferredRegion):
			return domain.RegionDetection{
				Region:     pref.PreferredRegion,
				Confidence: 1.0,
				Source:     domain.SourceManual,
			}
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			logger.Warn("failed to read region preference", "error", err)
		}
	}

	origin := strings.TrimSpace(signals.NetworkOrigin)
	if origin != "" && s.cache != nil {
		entry, err := s.cache.Get(ctx, origin)
		switch {
		case err == nil && !entry.Expired(s.now()):
			return domain.RegionDetection{
				Region:     entry.Region,
				Confidence: entry.Confidence,
				Source:     domain.SourceCache,
			}
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			logger.Warn("failed to read location cache", "origin", origin, "error", err)
		}
	}

	// one slot per detector keeps candidate order independent of scheduling
	var network, zone, language []evidence
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		network = s.detectNetworkOrigin(gctx, signals)
		return nil
	})
	g.Go(func() error {
		zone = s.detectTimezone(signals.Timezone)
		return nil
	})
	g.Go(func() error {
		language = s.detectLanguage(signals.AcceptLanguage)
		return nil
	})
	_ = g.Wait()

	detection := s.fuse(network, zone, language)

	if origin != "" && s.cache != nil {
		s.remember(ctx, origin, detection, signals)
	}
	if ownerKey != "" && s.prefs != nil {
		s.touchPreference(ctx, ownerKey, signals, detection.Region)
	}

	return detection
}

func (s *Service) noSignal() domain.RegionDetection {
	return domain.RegionDetection{
		Region:     s.tables.HomeRegion,
		Confidence: s.cfg.NoSignalConfidence,
		Source:     domain.SourceFallback,
	}
}

func (s *Service) remember(ctx context.Context, origin string, detection domain.RegionDetection, signals domain.RequestSignals) {
	now := s.now()
	entry := domain.LocationCacheEntry{
		NetworkOrigin: origin,
		Region:        detection.Region,
		Confidence:    detection.Confidence,
		Source:        detection.Source,
		Signals: map[string]interface{}{
			"country_code":    signals.CountryCode,
			"accept_language": signals.AcceptLanguage,
			"timezone":        signals.Timezone,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.CacheTTL),
	}
	if err := s.cache.Put(ctx, entry); err != nil {
		logger.Warn("failed to write location cache", "origin", origin, "error", err)
	}
}

// touchPreference records the latest inferred region without disturbing a
// stored preferred region.
func (s *Service) touchPreference(ctx context.Context, ownerKey string, signals domain.RequestSignals, region string) {
	pref, err := s.prefs.GetPreference(ctx, ownerKey)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		pref = domain.UserRegionPreference{
			OwnerKey:        ownerKey,
			UserID:          signals.UserID,
			SessionID:       signals.SessionID,
			PreferredRegion: region,
		}
	}
	pref.LastDetectedRegion = region
	pref.LastUsedAt = s.now()

	if err := s.prefs.UpsertPreference(ctx, pref); err != nil {
		logger.Warn("failed to update region preference", "session_id", signals.SessionID, "error", err)
	}
}

// SavePreference stores an explicit visitor choice. Manual choices win over
// every inferred signal on later detections.
func (s *Service) SavePreference(ctx context.Context, userID, sessionID, region string, manual bool) (domain.UserRegionPreference, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserRegionPreference{}, fmt.Errorf("context error: %w", err)
	}

	ownerKey := domain.PreferenceKey(userID, sessionID)
	if ownerKey == "" {
		return domain.UserRegionPreference{}, errors.New("user id or session id is required")
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	valid, err := s.IsValidRegion(ctx, region)
	if err != nil {
		return domain.UserRegionPreference{}, err
	}
	if !valid {
		return domain.UserRegionPreference{}, fmt.Errorf("%w: %s", apperrors.ErrInvalidRegion, region)
	}

	pref := domain.UserRegionPreference{
		OwnerKey:          ownerKey,
		UserID:            userID,
		SessionID:         sessionID,
		PreferredRegion:   region,
		IsManualSelection: manual,
		LastUsedAt:        s.now(),
	}
	if existing, err := s.prefs.GetPreference(ctx, ownerKey); err == nil {
		pref.LastDetectedRegion = existing.LastDetectedRegion
	}

	if err := s.prefs.UpsertPreference(ctx, pref); err != nil {
		logger.Error("failed to save region preference", "region", region, "error", err)
		return domain.UserRegionPreference{}, err
	}

	logger.Info("region preference saved", "region", region, "manual", manual)
	return pref, nil
}

// ActiveRegions lists regions open for traffic. When the store has none the
// configured tables are used.
func (s *Service) ActiveRegions(ctx context.Context) ([]domain.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if s.regionRepo != nil {
		active, err := s.regionRepo.FindActive(ctx)
		if err != nil {
			logger.Error("failed to load active regions", "error", err)
			return nil, err
		}
		if len(active) > 0 {
			return active, nil
		}
	}

	return s.tables.ActiveRegions(), nil
}

func (s *Service) IsValidRegion(ctx context.Context, region string) (bool, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return false, nil
	}

	active, err := s.ActiveRegions(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range active {
		if r.ID == region {
			return true, nil
		}
	}
	return false, nil
}

// FallbackRegion is the nearest neighbour of region, or the home region.
func (s *Service) FallbackRegion(region string) string {
	for _, candidate := range s.tables.Nearby(region) {
		if candidate != strings.ToUpper(region) && s.tables.IsKnown(candidate) {
			return candidate
		}
	}
	return s.tables.HomeRegion
}

func (s *Service) HomeRegion() string {
	return s.tables.HomeRegion
}

func (s *Service) CleanExpiredCache(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	if s.cache == nil {
		return 0, nil
	}

	removed, err := s.cache.DeleteExpired(ctx, s.now())
	if err != nil {
		logger.Error("failed to clean location cache", "error", err)
		return 0, err
	}
	if removed > 0 {
		logger.Info("location cache cleaned", "removed", removed)
	}
	return removed, nil
}
