package regions

const (
	defaultHomeRegion  = "BR"
	defaultCostPer1000 = 0.60
)

// DefaultTables returns the compiled-in tables used when no file is configured.
func DefaultTables() *Tables {
	return &Tables{
		HomeRegion:  defaultHomeRegion,
		DefaultCost: defaultCostPer1000,
		Regions: []RegionInfo{
			{ID: "BR", Name: "Brasil", Currency: "BRL", MarketplaceHost: "www.amazon.com.br", Priority: 1, CostPer1000: 0.50},
			{ID: "US", Name: "United States", Currency: "USD", MarketplaceHost: "www.amazon.com", Priority: 2, CostPer1000: 0.75},
			{ID: "ES", Name: "España", Currency: "EUR", MarketplaceHost: "www.amazon.es", Priority: 3, CostPer1000: 0.60},
			{ID: "MX", Name: "México", Currency: "MXN", MarketplaceHost: "www.amazon.com.mx", Priority: 4, CostPer1000: 0.55},
			{ID: "CA", Name: "Canada", Currency: "CAD", MarketplaceHost: "www.amazon.ca", Priority: 5, CostPer1000: 0.70},
			{ID: "UK", Name: "United Kingdom", Currency: "GBP", MarketplaceHost: "www.amazon.co.uk", Priority: 6, CostPer1000: 0.65},
			{ID: "FR", Name: "France", Currency: "EUR", MarketplaceHost: "www.amazon.fr", Priority: 7, CostPer1000: 0.65},
			{ID: "DE", Name: "Deutschland", Currency: "EUR", MarketplaceHost: "www.amazon.de", Priority: 8, CostPer1000: 0.70},
			{ID: "IT", Name: "Italia", Currency: "EUR", MarketplaceHost: "www.amazon.it", Priority: 9, CostPer1000: 0.60},
			{ID: "JP", Name: "日本", Currency: "JPY", MarketplaceHost: "www.amazon.co.jp", Priority: 10, CostPer1000: 0.80},
		},
		Countries: map[string]CountryRule{
			"BR": {Region: "BR", Confidence: 0.95, Fallbacks: []string{"US"}},
			"US": {Region: "US", Confidence: 0.95, Fallbacks: []string{"CA"}},
			"CA": {Region: "CA", Confidence: 0.95, Fallbacks: []string{"US"}},
			"MX": {Region: "MX", Confidence: 0.90, Fallbacks: []string{"US", "ES"}},
			"AR": {Region: "BR", Confidence: 0.70, Fallbacks: []string{"US"}},
			"CO": {Region: "US", Confidence: 0.75, Fallbacks: []string{"MX", "BR"}},
			"CL": {Region: "US", Confidence: 0.75, Fallbacks: []string{"BR"}},
			"ES": {Region: "ES", Confidence: 0.95, Fallbacks: []string{"FR", "IT"}},
			"FR": {Region: "FR", Confidence: 0.95, Fallbacks: []string{"ES", "DE"}},
			"DE": {Region: "DE", Confidence: 0.95, Fallbacks: []string{"FR", "UK"}},
			"IT": {Region: "IT", Confidence: 0.95, Fallbacks: []string{"ES", "FR"}},
			"UK": {Region: "UK", Confidence: 0.95, Fallbacks: []string{"DE", "FR"}},
			"GB": {Region: "UK", Confidence: 0.95, Fallbacks: []string{"DE", "FR"}},
			"PT": {Region: "ES", Confidence: 0.80, Fallbacks: []string{"BR", "FR"}},
			"NL": {Region: "DE", Confidence: 0.85, Fallbacks: []string{"UK", "FR"}},
			"BE": {Region: "FR", Confidence: 0.85, Fallbacks: []string{"DE", "UK"}},
			"CH": {Region: "DE", Confidence: 0.85, Fallbacks: []string{"FR", "IT"}},
			"AT": {Region: "DE", Confidence: 0.90, Fallbacks: []string{"UK"}},
			"JP": {Region: "JP", Confidence: 0.95, Fallbacks: []string{"US"}},
			"AU": {Region: "US", Confidence: 0.80, Fallbacks: []string{"UK"}},
			"IN": {Region: "US", Confidence: 0.75, Fallbacks: []string{"UK"}},
			"SG": {Region: "US", Confidence: 0.75, Fallbacks: []string{"JP"}},
		},
		Languages: map[string][]string{
			"pt":    {"BR"},
			"pt-br": {"BR"},
			"pt-pt": {"BR", "ES"},
			"en":    {"US", "UK", "CA"},
			"en-us": {"US", "CA"},
			"en-gb": {"UK", "US"},
			"en-ca": {"CA", "US"},
			"es":    {"ES", "MX"},
			"es-es": {"ES", "MX"},
			"es-mx": {"MX", "ES", "US"},
			"es-ar": {"ES", "US"},
			"fr":    {"FR", "CA"},
			"fr-fr": {"FR"},
			"fr-ca": {"CA", "FR"},
			"de":    {"DE"},
			"de-de": {"DE"},
			"de-at": {"DE"},
			"de-ch": {"DE"},
			"it":    {"IT", "ES"},
			"it-it": {"IT"},
			"ja":    {"JP"},
			"ja-jp": {"JP"},
		},
		Timezones: map[string]string{
			"America/Sao_Paulo":   "BR",
			"America/New_York":    "US",
			"America/Los_Angeles": "US",
			"America/Chicago":     "US",
			"America/Denver":      "US",
			"America/Toronto":     "CA",
			"America/Vancouver":   "CA",
			"America/Mexico_City": "MX",
			"Europe/Madrid":       "ES",
			"Europe/Paris":        "FR",
			"Europe/Berlin":       "DE",
			"Europe/Rome":         "IT",
			"Europe/London":       "UK",
			"Asia/Tokyo":          "JP",
			"Australia/Sydney":    "US",
		},
		ContinentPrefix: map[string]string{
			"America/": "BR",
			"Europe/":  "ES",
		},
		Proximity: map[string][]string{
			"BR": {"US", "ES", "MX"},
			"US": {"CA", "MX", "UK"},
			"CA": {"US", "UK"},
			"MX": {"US", "ES", "BR"},
			"ES": {"FR", "IT", "BR"},
			"FR": {"DE", "ES", "IT", "UK"},
			"DE": {"FR", "UK", "IT"},
			"IT": {"ES", "FR", "DE"},
			"UK": {"FR", "DE", "US"},
			"JP": {"US", "UK"},
		},
		DefaultNearby: []string{"US", "BR"},
		CurrencySymbols: map[string]string{
			"BRL": "R$",
			"USD": "$",
			"EUR": "€",
			"GBP": "£",
			"JPY": "¥",
			"MXN": "$",
			"CAD": "C$",
		},
	}
}
