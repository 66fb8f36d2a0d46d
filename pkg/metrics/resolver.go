package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Region detections by winning source (manual, cache, network-origin, ...)
	LocationDetections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "location_detections_total",
		Help: "Region detections by reported source",
	}, []string{"source"})

	// Link resolutions by fallback type ("none" when the direct record served)
	LinkResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "link_resolutions_total",
		Help: "Link resolutions by fallback type and served region",
	}, []string{"fallback_type", "region"})

	LinkResolveLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "link_resolve_latency_seconds",
		Help:    "Latency of link resolution including analytics write",
		Buckets: prometheus.DefBuckets,
	})

	BudgetDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "budget_decisions_total",
		Help: "Admission decisions for marketplace lookups",
	}, []string{"region", "allowed"})

	MarketplaceCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_calls_total",
		Help: "Marketplace API calls by operation and outcome",
	}, []string{"operation", "outcome"})

	RefreshedProducts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_products_total",
		Help: "Regional product refreshes by region and outcome",
	}, []string{"region", "outcome"})
)

func init() {
	prometheus.MustRegister(
		LocationDetections,
		LinkResolutions,
		LinkResolveLatency,
		BudgetDecisions,
		MarketplaceCalls,
		RefreshedProducts,
	)
}
