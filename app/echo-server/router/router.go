package router

import (
	"smartLink/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetupLinkRoutes(api *echo.Group, handler *rest.LinkHandler) {
	links := api.Group("/links")
	links.GET("/:productId", handler.Resolve)
	links.POST("/:productId/tracking", handler.Tracking)

	// static segment wins over the param route
	redirect := api.Group("/go")
	redirect.GET("/t", handler.TrackedRedirect)
	redirect.GET("/:productId", handler.Redirect)
}

func SetupLocationRoutes(api *echo.Group, handler *rest.LocationHandler) {
	api.GET("/location", handler.Detect)
	api.PUT("/location/preference", handler.SavePreference)
	api.GET("/regions", handler.Regions)
}

func SetupRankingRoutes(api *echo.Group, handler *rest.RankingHandler, kitLimiter echo.MiddlewareFunc) {
	api.POST("/rank", handler.Rank)

	kits := api.Group("/kits")
	kits.POST("/resolve", handler.ResolveKit, kitLimiter)
	kits.POST("/rerank", handler.ReRank)
}

func SetupAdminRoutes(api *echo.Group, handler *rest.AdminHandler, authRequired echo.MiddlewareFunc, adminOnly echo.MiddlewareFunc) {
	api.POST("/admin/token", handler.Token)

	admin := api.Group("/admin", authRequired, adminOnly)

	cost := admin.Group("/cost/:region")
	cost.GET("", handler.CostAnalytics)
	cost.GET("/demand", handler.Demand)
	cost.GET("/strategy/:productId", handler.Strategy)
	cost.POST("/throttle", handler.Throttle)
	cost.DELETE("/throttle", handler.ReleaseThrottle)

	refresh := admin.Group("/refresh/:region")
	refresh.POST("", handler.RunRefresh)
	refresh.POST("/products", handler.RefreshProducts)
	refresh.POST("/reactivate", handler.Reactivate)
	refresh.POST("/frequencies", handler.OptimizeFrequencies)

	admin.GET("/links/performance", handler.Performance)
	admin.POST("/links/prewarm/:region", handler.PreWarm)
	admin.GET("/regions/validate", handler.Validate)

	admin.POST("/mappings", handler.CreateMapping)
	admin.DELETE("/mappings/:id", handler.DeactivateMapping)
	admin.PUT("/engagement/:productId", handler.SetEngagement)
}
