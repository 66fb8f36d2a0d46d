package domain

import "time"

const (
	RolePrimary    = "primary"
	RoleSecondary  = "secondary"
	RoleComplement = "complement"
)

// ScoreBreakdown is recomputed on every ranking run and replaced wholesale.
type ScoreBreakdown struct {
	ValueScore         float64   `json:"value_score"`
	ReviewMultiplier   float64   `json:"review_multiplier"`
	FinalScore         float64   `json:"final_score"`
	PriceNormalized    float64   `json:"price_normalized"`
	RatingNormalized   float64   `json:"rating_normalized"`
	DiscountNormalized float64   `json:"discount_normalized"`
	ReviewCount        int       `json:"review_count"`
	CalculatedAt       time.Time `json:"calculated_at"`
}

type ConceptCriteria struct {
	MustKeywords     []string `json:"must_keywords"`
	OptionalKeywords []string `json:"optional_keywords,omitempty"`
	Category         string   `json:"category,omitempty"`
	PriceMin         float64  `json:"price_min,omitempty"`
	PriceMax         float64  `json:"price_max,omitempty"`
	RatingMin        float64  `json:"rating_min,omitempty"`
	PrimeOnly        bool     `json:"prime_only,omitempty"`
}

// ConceptItem is an abstract product slot in a kit.
type ConceptItem struct {
	Name     string          `json:"name" validate:"required"`
	Role     string          `json:"role" validate:"required,oneof=primary secondary complement"`
	Weight   float64         `json:"weight"`
	Criteria ConceptCriteria `json:"criteria"`
}

type KitProduct struct {
	ProductID      string         `json:"product_id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	ImageURL       string         `json:"image_url,omitempty"`
	Price          float64        `json:"price"`
	OriginalPrice  float64        `json:"original_price,omitempty"`
	Rating         float64        `json:"rating"`
	ReviewCount    int            `json:"review_count"`
	IsPrime        bool           `json:"is_prime"`
	Role           string         `json:"role"`
	RankScore      float64        `json:"rank_score"`
	TaskMatchScore float64        `json:"task_match_score"`
	Rationale      string         `json:"rationale"`
	AffiliateLink  string         `json:"affiliate_link"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
	SortOrder      int            `json:"sort_order"`
	LastCheckedAt  time.Time      `json:"last_checked_at"`
}
