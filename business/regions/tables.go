package regions

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"smartLink/domain"
)

// Weighted is one candidate region with the confidence a signal lends it.
type Weighted struct {
	Region     string  `yaml:"region"`
	Confidence float64 `yaml:"confidence"`
}

type CountryRule struct {
	Region     string   `yaml:"region"`
	Confidence float64  `yaml:"confidence"`
	Fallbacks  []string `yaml:"fallbacks"`
}

type RegionInfo struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Currency        string  `yaml:"currency"`
	MarketplaceHost string  `yaml:"marketplace_host"`
	Priority        int     `yaml:"priority"`
	CostPer1000     float64 `yaml:"cost_per_1000"`
}

// Tables holds every static lookup the engine consults. They are data, not
// code, so deployments can extend them without a rebuild.
type Tables struct {
	HomeRegion      string                 `yaml:"home_region"`
	DefaultCost     float64                `yaml:"default_cost_per_1000"`
	Regions         []RegionInfo           `yaml:"regions"`
	Countries       map[string]CountryRule `yaml:"countries"`
	Languages       map[string][]string    `yaml:"languages"`
	Timezones       map[string]string      `yaml:"timezones"`
	ContinentPrefix map[string]string      `yaml:"continent_prefixes"`
	Proximity       map[string][]string    `yaml:"proximity"`
	DefaultNearby   []string               `yaml:"default_nearby"`
	CurrencySymbols map[string]string      `yaml:"currency_symbols"`
}

// Load reads tables from a YAML file over the compiled-in defaults. Map
// sections are merged key by key, list and scalar sections replace.
func Load(path string) (*Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region tables: %w", err)
	}

	var file Tables
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse region tables: %w", err)
	}
	file.normalize()
	t.merge(file)

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Tables) merge(o Tables) {
	if o.HomeRegion != "" {
		t.HomeRegion = o.HomeRegion
	}
	if o.DefaultCost > 0 {
		t.DefaultCost = o.DefaultCost
	}
	if o.Regions != nil {
		t.Regions = o.Regions
	}
	if o.DefaultNearby != nil {
		t.DefaultNearby = o.DefaultNearby
	}
	for k, v := range o.Countries {
		t.Countries[k] = v
	}
	for k, v := range o.Languages {
		t.Languages[k] = v
	}
	for k, v := range o.Timezones {
		t.Timezones[k] = v
	}
	for k, v := range o.ContinentPrefix {
		t.ContinentPrefix[k] = v
	}
	for k, v := range o.Proximity {
		t.Proximity[k] = v
	}
	for k, v := range o.CurrencySymbols {
		t.CurrencySymbols[k] = v
	}
}

// normalize upper-cases region and country codes and lower-cases language tags.
func (t *Tables) normalize() {
	t.HomeRegion = strings.ToUpper(t.HomeRegion)
	for i := range t.Regions {
		t.Regions[i].ID = strings.ToUpper(t.Regions[i].ID)
	}

	proximity := make(map[string][]string, len(t.Proximity))
	for region, list := range t.Proximity {
		proximity[strings.ToUpper(region)] = list
	}
	t.Proximity = proximity

	countries := make(map[string]CountryRule, len(t.Countries))
	for code, rule := range t.Countries {
		rule.Region = strings.ToUpper(rule.Region)
		countries[strings.ToUpper(code)] = rule
	}
	t.Countries = countries

	languages := make(map[string][]string, len(t.Languages))
	for tag, list := range t.Languages {
		languages[strings.ToLower(tag)] = list
	}
	t.Languages = languages
}

func (t *Tables) Validate() error {
	if t.HomeRegion == "" {
		return errors.New("home_region is required")
	}
	if _, ok := t.Region(t.HomeRegion); !ok {
		return fmt.Errorf("home_region %q is not listed in regions", t.HomeRegion)
	}
	for code, rule := range t.Countries {
		if rule.Confidence < 0 || rule.Confidence > 1 {
			return fmt.Errorf("country %s: confidence out of range", code)
		}
	}
	return nil
}

func (t *Tables) Region(id string) (RegionInfo, bool) {
	id = strings.ToUpper(id)
	for _, r := range t.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return RegionInfo{}, false
}

// RegionIDs lists regions by display priority, then id.
func (t *Tables) RegionIDs() []string {
	sorted := make([]RegionInfo, len(t.Regions))
	copy(sorted, t.Regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})

	ids := make([]string, 0, len(sorted))
	for _, r := range sorted {
		ids = append(ids, r.ID)
	}
	return ids
}

// ActiveRegions converts the table rows, in priority order, into region
// records marked active.
func (t *Tables) ActiveRegions() []domain.Region {
	out := make([]domain.Region, 0, len(t.Regions))
	for _, id := range t.RegionIDs() {
		info, _ := t.Region(id)
		out = append(out, domain.Region{
			ID:              info.ID,
			Name:            info.Name,
			Currency:        info.Currency,
			MarketplaceHost: info.MarketplaceHost,
			Priority:        info.Priority,
			IsActive:        true,
		})
	}
	return out
}

// Nearby returns the proximity list for a region, nearest first.
func (t *Tables) Nearby(region string) []string {
	if list, ok := t.Proximity[strings.ToUpper(region)]; ok {
		return list
	}
	return t.DefaultNearby
}

// CostPerRequest is the marketplace price of a single lookup in region.
func (t *Tables) CostPerRequest(region string) float64 {
	if r, ok := t.Region(region); ok && r.CostPer1000 > 0 {
		return r.CostPer1000 / 1000
	}
	return t.DefaultCost / 1000
}

// Currency is the ISO code region prices in, empty for unknown regions.
func (t *Tables) Currency(region string) string {
	if r, ok := t.Region(region); ok {
		return r.Currency
	}
	return ""
}

func (t *Tables) CurrencySymbol(currency string) string {
	if s, ok := t.CurrencySymbols[strings.ToUpper(currency)]; ok {
		return s
	}
	return strings.ToUpper(currency)
}

// Priority returns the display priority of region; unknown regions sort last.
func (t *Tables) Priority(region string) int {
	if r, ok := t.Region(region); ok {
		return r.Priority
	}
	return int(^uint(0) >> 1)
}

func (t *Tables) IsKnown(region string) bool {
	_, ok := t.Region(region)
	return ok
}
