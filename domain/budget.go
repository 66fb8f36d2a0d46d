package domain

import "time"

// CREATE TABLE public.budget_ledgers (
//     region_id           TEXT PRIMARY KEY,
//     day                 TEXT,    -- 2006-01-02, UTC
//     month               TEXT,    -- 2006-01, UTC
//     daily_count         INT,
//     daily_ceiling       INT,
//     base_daily_ceiling  INT,
//     monthly_spend       NUMERIC,
//     monthly_budget      NUMERIC,
//     throttled           BOOLEAN,
//     throttle_until      TIMESTAMPTZ,
//     updated_at          TIMESTAMPTZ
// );

type BudgetLedger struct {
	RegionID         string     `gorm:"column:region_id;primaryKey;type:text" json:"region_id"`
	Day              string     `gorm:"column:day;type:text" json:"day"`
	Month            string     `gorm:"column:month;type:text" json:"month"`
	DailyCount       int        `gorm:"column:daily_count;default:0" json:"daily_count"`
	DailyCeiling     int        `gorm:"column:daily_ceiling" json:"daily_ceiling"`
	BaseDailyCeiling int        `gorm:"column:base_daily_ceiling" json:"base_daily_ceiling"`
	MonthlySpend     float64    `gorm:"column:monthly_spend;type:numeric;default:0" json:"monthly_spend"`
	MonthlyBudget    float64    `gorm:"column:monthly_budget;type:numeric" json:"monthly_budget"`
	Throttled        bool       `gorm:"column:throttled;default:false" json:"throttled"`
	ThrottleUntil    *time.Time `gorm:"column:throttle_until" json:"throttle_until,omitempty"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (BudgetLedger) TableName() string {
	return "budget_ledgers"
}

// BudgetUsage is monthly spend as a fraction of the monthly budget.
func (l BudgetLedger) BudgetUsage() float64 {
	if l.MonthlyBudget <= 0 {
		return 1
	}
	return l.MonthlySpend / l.MonthlyBudget
}

// CREATE TABLE public.product_engagement (
//     product_id  TEXT PRIMARY KEY,
//     favorites   BIGINT,
//     views       BIGINT,
//     updated_at  TIMESTAMPTZ
// );

// ProductEngagement holds counters maintained by the content side (favorites
// and page views). Clicks come from click_analytics.
type ProductEngagement struct {
	ProductID string    `gorm:"column:product_id;primaryKey;type:text" json:"product_id"`
	Favorites int64     `gorm:"column:favorites;default:0" json:"favorites"`
	Views     int64     `gorm:"column:views;default:0" json:"views"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ProductEngagement) TableName() string {
	return "product_engagement"
}
