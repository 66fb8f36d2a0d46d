package linkresolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
	"smartLink/pkg/logger"
	"smartLink/pkg/metrics"
)

// UserContext carries what the caller knows about the visitor. Region skips
// detection when set to a known region.
type UserContext struct {
	Signals domain.RequestSignals
	Region  string
	Context string
}

type Availability struct {
	ProductAvailable bool       `json:"product_available"`
	Price            float64    `json:"price,omitempty"`
	Currency         string     `json:"currency,omitempty"`
	FormattedPrice   string     `json:"formatted_price,omitempty"`
	IsPrime          bool       `json:"is_prime"`
	ShippingNote     string     `json:"shipping_note,omitempty"`
	LastChecked      *time.Time `json:"last_checked,omitempty"`
}

type Resolution struct {
	ProductID       string       `json:"product_id"`
	ServedProductID string       `json:"served_product_id,omitempty"`
	RedirectURL     string       `json:"redirect_url"`
	TargetRegion    string       `json:"target_region"`
	OriginalRegion  string       `json:"original_region"`
	FallbackUsed    bool         `json:"fallback_used"`
	FallbackType    string       `json:"fallback_type"`
	Reason          string       `json:"reason"`
	Confidence      float64      `json:"confidence"`
	Availability    Availability `json:"availability"`
}

// Resolvable reports whether the resolution carries a link to follow.
func (r Resolution) Resolvable() bool {
	return r.RedirectURL != ""
}

type Resolver struct {
	locator   Locator
	records   RecordRepository
	mappings  MappingRepository
	analytics AnalyticsRepository
	refresher Refresher
	regions   RegionTable
	home      string
	cfg       Config
	now       func() time.Time
}

func New(
	locator Locator,
	records RecordRepository,
	mappings MappingRepository,
	analytics AnalyticsRepository,
	refresher Refresher,
	regions RegionTable,
	homeRegion string,
	cfg Config,
) *Resolver {
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = defaultResolveTimeout
	}
	if cfg.EmergencyTimeout <= 0 {
		cfg.EmergencyTimeout = defaultEmergencyTimeout
	}
	return &Resolver{
		locator:   locator,
		records:   records,
		mappings:  mappings,
		analytics: analytics,
		refresher: refresher,
		regions:   regions,
		home:      strings.ToUpper(homeRegion),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Resolve maps a product to a purchase link for the visitor. It always
// answers: when every tier fails, or the deadline passes, the home region is
// tried and finally an unresolvable result is returned.
func (r *Resolver) Resolve(ctx context.Context, productID string, uc UserContext) Resolution {
	start := r.now()
	productID = strings.TrimSpace(productID)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ResolveTimeout)
	defer cancel()

	region := strings.ToUpper(strings.TrimSpace(uc.Region))
	if region == "" || !r.regions.IsKnown(region) {
		region = r.locator.DetectRegion(ctx, uc.Signals).Region
	}

	res, ok := r.cascade(ctx, productID, region)
	if !ok {
		// the request context may be spent; the last resort runs on its own budget
		ectx, ecancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.EmergencyTimeout)
		res = r.emergency(ectx, productID, region)
		ecancel()
	}

	actx, acancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.EmergencyTimeout)
	r.record(actx, res, uc.Context)
	acancel()

	metrics.LinkResolutions.WithLabelValues(res.FallbackType, res.TargetRegion).Inc()
	metrics.LinkResolveLatency.Observe(time.Since(start).Seconds())
	return res
}

func (r *Resolver) cascade(ctx context.Context, productID, region string) (Resolution, bool) {
	if productID == "" || ctx.Err() != nil {
		return Resolution{}, false
	}

	if rec, ok := r.usable(ctx, productID, region); ok {
		res := r.build(productID, productID, region, region, rec)
		res.FallbackType = domain.FallbackNone
		res.Confidence = 1.0
		res.Reason = fmt.Sprintf("product available in region %s", region)
		return res, true
	}

	tiers := []func(context.Context, string, string) (Resolution, bool){
		r.similarProduct,
		r.nearbyRegion,
		r.globalAlternative,
	}
	for _, tier := range tiers {
		if ctx.Err() != nil {
			logger.Warn("resolution deadline passed mid-cascade", "product_id", productID, "region", region)
			return Resolution{}, false
		}
		if res, ok := tier(ctx, productID, region); ok {
			res.FallbackUsed = true
			return res, true
		}
	}

	return Resolution{}, false
}

func (r *Resolver) similarProduct(ctx context.Context, productID, region string) (Resolution, bool) {
	mappings, err := r.mappings.ActiveMappings(ctx, productID, region)
	if err != nil {
		logger.Warn("failed to load equivalence mappings", "product_id", productID, "region", region, "error", err)
		return Resolution{}, false
	}

	for _, m := range mappings {
		if !m.IsActive || m.EquivalentProductID == "" || m.EquivalentProductID == productID {
			continue
		}
		if rec, ok := r.usable(ctx, m.EquivalentProductID, region); ok {
			res := r.build(productID, m.EquivalentProductID, region, region, rec)
			res.FallbackType = domain.FallbackSimilarProduct
			res.Confidence = m.SimilarityScore
			res.Reason = fmt.Sprintf("similar product %s available in region %s", m.EquivalentProductID, region)
			return res, true
		}
	}
	return Resolution{}, false
}

func (r *Resolver) nearbyRegion(ctx context.Context, productID, region string) (Resolution, bool) {
	for _, nearby := range r.regions.Nearby(region) {
		if nearby == region {
			continue
		}
		if rec, ok := r.usable(ctx, productID, nearby); ok {
			res := r.build(productID, productID, region, nearby, rec)
			res.FallbackType = domain.FallbackNearbyRegion
			res.Confidence = r.cfg.NearbyConfidence
			res.Reason = fmt.Sprintf("product unavailable in %s, served from nearby region %s", region, nearby)
			return res, true
		}
	}
	return Resolution{}, false
}

func (r *Resolver) globalAlternative(ctx context.Context, productID, region string) (Resolution, bool) {
	target := r.home

	counts, err := r.analytics.SuccessfulRegions(ctx, productID)
	if err != nil {
		logger.Warn("failed to load resolution history", "product_id", productID, "error", err)
	}
	if len(counts) > 0 {
		sort.SliceStable(counts, func(i, j int) bool {
			if counts[i].Count != counts[j].Count {
				return counts[i].Count > counts[j].Count
			}
			return r.regions.Priority(counts[i].RegionID) < r.regions.Priority(counts[j].RegionID)
		})
		target = counts[0].RegionID
	}

	rec, ok := r.usable(ctx, productID, target)
	if !ok {
		return Resolution{}, false
	}
	res := r.build(productID, productID, region, target, rec)
	res.FallbackType = domain.FallbackGlobalAlternative
	res.Confidence = r.cfg.GlobalConfidence
	res.Reason = fmt.Sprintf("served from %s, the region that most often resolves this product", target)
	return res, true
}

// emergency serves the home-region record whenever it carries a link,
// regardless of availability.
func (r *Resolver) emergency(ctx context.Context, productID, region string) Resolution {
	if productID != "" {
		rec, err := r.records.FindRecord(ctx, productID, r.home)
		switch {
		case err == nil && strings.TrimSpace(rec.PurchaseLink) != "":
			res := r.build(productID, productID, region, r.home, rec)
			res.FallbackUsed = true
			res.FallbackType = domain.FallbackEmergency
			res.Reason = fmt.Sprintf("no regional match, using emergency link from %s", r.home)
			return res
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			logger.Error("emergency lookup failed", "product_id", productID, "error", err)
		}
	}

	return Resolution{
		ProductID:      productID,
		TargetRegion:   r.home,
		OriginalRegion: region,
		FallbackUsed:   true,
		FallbackType:   domain.FallbackNone,
		Reason:         "no purchase link available for this product",
	}
}

func (r *Resolver) usable(ctx context.Context, productID, region string) (domain.RegionalProductRecord, bool) {
	rec, err := r.records.FindRecord(ctx, productID, region)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("failed to load regional record", "product_id", productID, "region", region, "error", err)
		}
		return domain.RegionalProductRecord{}, false
	}
	return rec, rec.Usable()
}

func (r *Resolver) build(productID, servedID, original, target string, rec domain.RegionalProductRecord) Resolution {
	return Resolution{
		ProductID:       productID,
		ServedProductID: servedID,
		RedirectURL:     rec.PurchaseLink,
		TargetRegion:    target,
		OriginalRegion:  original,
		Availability: Availability{
			ProductAvailable: rec.IsAvailable,
			Price:            rec.LocalPrice,
			Currency:         rec.Currency,
			FormattedPrice:   r.FormatPrice(rec.LocalPrice, rec.Currency),
			IsPrime:          rec.IsPrime,
			ShippingNote:     rec.ShippingNote,
			LastChecked:      rec.LastCheckedAt,
		},
	}
}

func (r *Resolver) record(ctx context.Context, res Resolution, origin string) {
	event := &domain.ClickAnalyticsEvent{
		ID:               uuid.NewString(),
		ProductID:        res.ProductID,
		RequestedRegion:  res.OriginalRegion,
		ServedRegion:     res.TargetRegion,
		FallbackUsed:     res.FallbackUsed,
		FallbackType:     res.FallbackType,
		ProductAvailable: res.Availability.ProductAvailable,
		Context:          origin,
		CreatedAt:        r.now(),
	}
	if err := r.analytics.RecordClick(ctx, event); err != nil {
		logger.Warn("failed to record click analytics", "product_id", res.ProductID, "error", err)
	}
}

// FormatPrice renders a local price such as "R$ 129.90".
func (r *Resolver) FormatPrice(price float64, currency string) string {
	if price <= 0 || currency == "" {
		return "price unavailable"
	}
	return fmt.Sprintf("%s %.2f", r.regions.CurrencySymbol(currency), price)
}
