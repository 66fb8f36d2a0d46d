//go:build !integration

package regions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables_Valid(t *testing.T) {
	tables := DefaultTables()
	require.NoError(t, tables.Validate())

	assert.Equal(t, "BR", tables.HomeRegion)
	assert.Equal(t, []string{"BR", "US", "ES", "MX", "CA", "UK", "FR", "DE", "IT", "JP"}, tables.RegionIDs())
}

func TestCostPerRequest(t *testing.T) {
	tables := DefaultTables()

	assert.InDelta(t, 0.0005, tables.CostPerRequest("BR"), 1e-12)
	assert.InDelta(t, 0.0008, tables.CostPerRequest("jp"), 1e-12)
	assert.InDelta(t, 0.0006, tables.CostPerRequest("ZZ"), 1e-12)
}

func TestNearby(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, []string{"US", "ES", "MX"}, tables.Nearby("BR"))
	assert.Equal(t, []string{"US", "BR"}, tables.Nearby("AU"))
}

func TestCurrencySymbol(t *testing.T) {
	tables := DefaultTables()

	assert.Equal(t, "R$", tables.CurrencySymbol("brl"))
	assert.Equal(t, "C$", tables.CurrencySymbol("CAD"))
	assert.Equal(t, "CHF", tables.CurrencySymbol("chf"))
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.yaml")
	body := `
countries:
  pe: { region: us, confidence: 0.6, fallbacks: [MX] }
languages:
  pt-PT: [ES]
timezones:
  Europe/Lisbon: ES
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	tables, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, CountryRule{Region: "US", Confidence: 0.6, Fallbacks: []string{"MX"}}, tables.Countries["PE"])
	assert.Equal(t, []string{"ES"}, tables.Languages["pt-pt"])
	assert.Equal(t, "ES", tables.Timezones["Europe/Lisbon"])
	// untouched defaults survive
	assert.Equal(t, "BR", tables.Countries["BR"].Region)
	assert.Equal(t, "JP", tables.Timezones["Asia/Tokyo"])
}

func TestLoad_RejectsUnknownHome(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("home_region: ZZ\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ShippedFile(t *testing.T) {
	tables, err := Load(filepath.Join("..", "..", "configs", "regions.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ES", tables.Timezones["Europe/Lisbon"])
	assert.Len(t, tables.Regions, 10)
}

func TestTables_ActiveRegions(t *testing.T) {
	active := DefaultTables().ActiveRegions()
	require.NotEmpty(t, active)
	assert.Equal(t, "BR", active[0].ID)
	assert.Equal(t, "BRL", active[0].Currency)
	for _, r := range active {
		assert.True(t, r.IsActive)
	}
}
