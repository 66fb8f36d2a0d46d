package domain

import "time"

// CREATE TABLE public.regions (
//     id               TEXT PRIMARY KEY,
//     name             TEXT,
//     currency         TEXT,
//     marketplace_host TEXT,
//     priority         INT,
//     is_active        BOOLEAN DEFAULT TRUE,
//     created_at       TIMESTAMPTZ DEFAULT NOW()
// );

type Region struct {
	ID              string    `gorm:"column:id;primaryKey;type:text" json:"id"`
	Name            string    `gorm:"column:name;type:text" json:"name"`
	Currency        string    `gorm:"column:currency;type:text" json:"currency"`
	MarketplaceHost string    `gorm:"column:marketplace_host;type:text" json:"marketplace_host"`
	Priority        int       `gorm:"column:priority;default:0" json:"priority"`
	IsActive        bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

func (Region) TableName() string {
	return "regions"
}
