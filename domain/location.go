package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SourceManual        = "manual"
	SourceCache         = "cache"
	SourceNetworkOrigin = "network-origin"
	SourceTimezone      = "timezone"
	SourceLanguage      = "language"
	SourceFallback      = "fallback"
)

// RequestSignals are the weak hints the web layer hands to detection.
type RequestSignals struct {
	NetworkOrigin  string `json:"network_origin,omitempty"`
	CountryCode    string `json:"country_code,omitempty"`
	AcceptLanguage string `json:"accept_language,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// Empty reports whether no detection input was supplied at all.
func (s RequestSignals) Empty() bool {
	return s.NetworkOrigin == "" && s.CountryCode == "" && s.AcceptLanguage == "" &&
		s.Timezone == "" && s.SessionID == "" && s.UserID == ""
}

type RegionDetection struct {
	Region     string         `json:"region"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
	Signals    RequestSignals `json:"signals"`
}

// CREATE TABLE public.location_cache (
//     network_origin  TEXT PRIMARY KEY,
//     region          TEXT,
//     confidence      NUMERIC,
//     source          TEXT,
//     signals         JSONB,
//     created_at      TIMESTAMPTZ,
//     expires_at      TIMESTAMPTZ
// );

type LocationCacheEntry struct {
	NetworkOrigin string            `gorm:"column:network_origin;primaryKey;type:text" json:"network_origin"`
	Region        string            `gorm:"column:region;type:text" json:"region"`
	Confidence    float64           `gorm:"column:confidence;type:numeric" json:"confidence"`
	Source        string            `gorm:"column:source;type:text" json:"source"`
	Signals       datatypes.JSONMap `gorm:"column:signals" json:"signals"`
	CreatedAt     time.Time         `gorm:"column:created_at" json:"created_at"`
	ExpiresAt     time.Time         `gorm:"column:expires_at;index" json:"expires_at"`
}

func (LocationCacheEntry) TableName() string {
	return "location_cache"
}

func (e LocationCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CREATE TABLE public.user_region_preferences (
//     owner_key           TEXT PRIMARY KEY, -- "user:<id>" or "session:<id>"
//     preferred_region    TEXT,
//     last_detected_region TEXT,
//     is_manual_selection BOOLEAN,
//     last_used_at        TIMESTAMPTZ
// );

type UserRegionPreference struct {
	OwnerKey           string    `gorm:"column:owner_key;primaryKey;type:text" json:"-"`
	UserID             string    `gorm:"column:user_id;type:text" json:"user_id,omitempty"`
	SessionID          string    `gorm:"column:session_id;type:text" json:"session_id,omitempty"`
	PreferredRegion    string    `gorm:"column:preferred_region;type:text" json:"preferred_region"`
	LastDetectedRegion string    `gorm:"column:last_detected_region;type:text" json:"last_detected_region,omitempty"`
	IsManualSelection  bool      `gorm:"column:is_manual_selection;default:false" json:"is_manual_selection"`
	LastUsedAt         time.Time `gorm:"column:last_used_at" json:"last_used_at"`
}

func (UserRegionPreference) TableName() string {
	return "user_region_preferences"
}

// PreferenceKey picks the user id over the session id.
func PreferenceKey(userID, sessionID string) string {
	switch {
	case userID != "":
		return "user:" + userID
	case sessionID != "":
		return "session:" + sessionID
	}
	return ""
}
