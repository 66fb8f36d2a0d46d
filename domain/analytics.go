package domain

import "time"

const (
	FallbackNone              = "none"
	FallbackSimilarProduct    = "similar-product"
	FallbackNearbyRegion      = "nearby-region"
	FallbackGlobalAlternative = "global-alternative"
	FallbackEmergency         = "emergency"
)

// CREATE TABLE public.click_analytics (
//     id                TEXT PRIMARY KEY,
//     product_id        TEXT,
//     requested_region  TEXT,
//     served_region     TEXT,
//     fallback_used     BOOLEAN,
//     fallback_type     TEXT,
//     product_available BOOLEAN,
//     context           TEXT,
//     created_at        TIMESTAMPTZ DEFAULT NOW()
// );

type ClickAnalyticsEvent struct {
	ID               string    `gorm:"column:id;primaryKey;type:text" json:"id"`
	ProductID        string    `gorm:"column:product_id;type:text;index" json:"product_id"`
	RequestedRegion  string    `gorm:"column:requested_region;type:text" json:"requested_region"`
	ServedRegion     string    `gorm:"column:served_region;type:text" json:"served_region"`
	FallbackUsed     bool      `gorm:"column:fallback_used" json:"fallback_used"`
	FallbackType     string    `gorm:"column:fallback_type;type:text" json:"fallback_type"`
	ProductAvailable bool      `gorm:"column:product_available" json:"product_available"`
	Context          string    `gorm:"column:context;type:text" json:"context,omitempty"`
	CreatedAt        time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (ClickAnalyticsEvent) TableName() string {
	return "click_analytics"
}

// ProductClickStat is an aggregate over click history for one product.
type ProductClickStat struct {
	ProductID     string `json:"product_id"`
	Clicks        int64  `json:"clicks"`
	FallbackCount int64  `json:"fallback_count"`
	Unavailable   int64  `json:"unavailable"`
}

// RegionCount is a per-region tally, ordered by the query that produced it.
type RegionCount struct {
	RegionID string `json:"region_id"`
	Count    int64  `json:"count"`
}

// UsageSignals feed the popularity score of a product.
type UsageSignals struct {
	Clicks    int64 `json:"clicks"`
	Favorites int64 `json:"favorites"`
	Views     int64 `json:"views"`
}
