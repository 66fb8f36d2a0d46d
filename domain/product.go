package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	RefreshHigh   = "high"
	RefreshMedium = "medium"
	RefreshLow    = "low"
)

// ProductCandidate is a marketplace search hit. It is scored and discarded,
// never stored as-is.
type ProductCandidate struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Brand         string  `json:"brand,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	CurrentPrice  float64 `json:"current_price"`
	OriginalPrice float64 `json:"original_price,omitempty"`
	Rating        float64 `json:"rating"`
	ReviewCount   int     `json:"review_count"`
	IsPrime       bool    `json:"is_prime"`
	ProductURL    string  `json:"product_url"`
	CategoryPath  string  `json:"category_path,omitempty"`
}

// CREATE TABLE public.regional_product_records (
//     product_id         TEXT,
//     region_id          TEXT,
//     is_available       BOOLEAN,
//     local_price        NUMERIC,
//     currency           TEXT,
//     purchase_link      TEXT,
//     is_prime           BOOLEAN,
//     shipping_note      TEXT,
//     refresh_frequency  TEXT,
//     failed_checks      INT DEFAULT 0,
//     last_checked_at    TIMESTAMPTZ,
//     unavailable_since  TIMESTAMPTZ,
//     updated_at         TIMESTAMPTZ,
//     PRIMARY KEY (product_id, region_id)
// );

type RegionalProductRecord struct {
	ProductID        string     `gorm:"column:product_id;primaryKey;type:text" json:"product_id"`
	RegionID         string     `gorm:"column:region_id;primaryKey;type:text" json:"region_id"`
	IsAvailable      bool       `gorm:"column:is_available;default:false" json:"is_available"`
	LocalPrice       float64    `gorm:"column:local_price;type:numeric" json:"local_price"`
	Currency         string     `gorm:"column:currency;type:text" json:"currency"`
	PurchaseLink     string     `gorm:"column:purchase_link;type:text" json:"purchase_link"`
	IsPrime          bool       `gorm:"column:is_prime;default:false" json:"is_prime"`
	ShippingNote     string     `gorm:"column:shipping_note;type:text" json:"shipping_note,omitempty"`
	RefreshFrequency string     `gorm:"column:refresh_frequency;type:text;default:medium" json:"refresh_frequency"`
	FailedChecks     int        `gorm:"column:failed_checks;default:0" json:"failed_checks"`
	LastCheckedAt    *time.Time `gorm:"column:last_checked_at" json:"last_checked_at,omitempty"`
	UnavailableSince *time.Time `gorm:"column:unavailable_since" json:"unavailable_since,omitempty"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (RegionalProductRecord) TableName() string {
	return "regional_product_records"
}

// Usable reports whether the record can be handed to a visitor.
func (r RegionalProductRecord) Usable() bool {
	return r.IsAvailable && strings.TrimSpace(r.PurchaseLink) != ""
}

// Normalize enforces that an available record always carries a link by
// demoting linkless records to unavailable.
func (r *RegionalProductRecord) Normalize() error {
	if r.ProductID == "" || r.RegionID == "" {
		return errors.New("product id and region id are required")
	}
	if r.IsAvailable && strings.TrimSpace(r.PurchaseLink) == "" {
		r.IsAvailable = false
	}
	if r.IsAvailable {
		r.UnavailableSince = nil
	}
	if r.RefreshFrequency == "" {
		r.RefreshFrequency = RefreshMedium
	}
	return nil
}

// CREATE TABLE public.product_equivalence_mappings (
//     id                    BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     base_product_id       TEXT,
//     region_id             TEXT,
//     equivalent_product_id TEXT,
//     similarity_score      NUMERIC,
//     is_active             BOOLEAN DEFAULT TRUE
// );

type ProductEquivalenceMapping struct {
	ID                  uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BaseProductID       string  `gorm:"column:base_product_id;type:text;index:idx_equiv_base_region" json:"base_product_id"`
	RegionID            string  `gorm:"column:region_id;type:text;index:idx_equiv_base_region" json:"region_id"`
	EquivalentProductID string  `gorm:"column:equivalent_product_id;type:text" json:"equivalent_product_id"`
	SimilarityScore     float64 `gorm:"column:similarity_score;type:numeric" json:"similarity_score"`
	IsActive            bool    `gorm:"column:is_active;default:true" json:"is_active"`
}

func (ProductEquivalenceMapping) TableName() string {
	return "product_equivalence_mappings"
}

// SearchRequest is a marketplace catalog query. Zero values mean "no filter".
type SearchRequest struct {
	Region     string   `json:"region,omitempty"`
	Keywords   []string `json:"keywords" validate:"required,min=1"`
	Category   string   `json:"category,omitempty"`
	PriceMin   float64  `json:"price_min,omitempty"`
	PriceMax   float64  `json:"price_max,omitempty"`
	MinRating  float64  `json:"min_rating,omitempty"`
	PrimeOnly  bool     `json:"prime_only,omitempty"`
	SortHint   string   `json:"sort_hint,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}
