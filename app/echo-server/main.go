package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpMetrics "smartLink/app/echo-server/metrics"
	"smartLink/app/echo-server/router"
	"smartLink/business/costgovernor"
	"smartLink/business/linkresolver"
	"smartLink/business/location"
	"smartLink/business/ranker"
	"smartLink/business/refresh"
	"smartLink/business/regions"
	"smartLink/internal/middleware"
	"smartLink/internal/repository/marketplace"
	psqlRepo "smartLink/internal/repository/postgres"
	redisRepo "smartLink/internal/repository/redis"
	"smartLink/internal/rest"
	"smartLink/pkg/config"
	"smartLink/pkg/database"
	redisClient "smartLink/pkg/database/redis"
	"smartLink/pkg/logger"
)

// catalogStore joins the admin catalog writes of two repositories.
type catalogStore struct {
	*psqlRepo.MappingRepository
	*psqlRepo.AnalyticsRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	defer logger.Sync()
	logger.Info("Starting "+cfg.App.Name, "version", cfg.App.Version)

	tables, err := regions.Load(cfg.Engine.RegionTablesPath)
	if err != nil {
		logger.Fatal("Failed to load region tables", "error", err)
	}
	homeRegion := strings.ToUpper(cfg.Engine.HomeRegion)
	if !tables.IsKnown(homeRegion) {
		logger.Fatal("Home region is not in the region tables", "region", homeRegion)
	}

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", "error", err)
	}
	logger.Info("Database connected successfully")

	// Init repo
	regionRepo := psqlRepo.NewRegionRepository(db)
	recordRepo := psqlRepo.NewRegionalProductRepository(db)
	mappingRepo := psqlRepo.NewMappingRepository(db)
	locationRepo := psqlRepo.NewLocationRepository(db)
	analyticsRepo := psqlRepo.NewAnalyticsRepository(db)
	budgetRepo := psqlRepo.NewBudgetRepository(db)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := regionRepo.Seed(seedCtx, tables.ActiveRegions()); err != nil {
		logger.Error("Failed to seed regions", "error", err)
	}
	seedCancel()

	// Redis is optional; Postgres keeps the location cache without it
	var locationCache location.LocationCache = locationRepo
	rdb, err := redisClient.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, using database location cache", "error", err)
	} else if rdb != nil {
		locationCache = redisRepo.NewLocationCache(rdb, 0, 0)
		logger.Info("Redis connected successfully")
	}
	defer func() { _ = redisClient.CloseRedisClient(rdb) }()

	// Init service
	locationService := location.NewService(locationCache, locationRepo, regionRepo, nil, tables, location.DefaultConfig())

	refreshCfg := refresh.DefaultConfig()
	refreshCfg.BatchDelay = cfg.Engine.RefreshBatchDelay

	governorCfg := costgovernor.DefaultConfig()
	governorCfg.DailyRequestLimit = cfg.Engine.DailyRequestLimit
	governorCfg.MonthlyBudget = cfg.Engine.MonthlyBudget
	governorCfg.FailureThreshold = refreshCfg.FailureThreshold
	governor := costgovernor.New(budgetRepo, analyticsRepo, recordRepo, tables, governorCfg)

	// every gateway request, retries included, is charged to the governor
	market := marketplace.NewMarketplaceRepository(marketplace.MarketplaceConfig{
		BaseURL:       cfg.Marketplace.BaseURL,
		APIKey:        cfg.Marketplace.APIKey,
		DefaultRegion: homeRegion,
		Timeout:       cfg.Marketplace.Timeout,
		ChunkDelay:    cfg.Marketplace.ChunkDelay,
	}, nil, governor)

	refreshService := refresh.NewService(market, governor, recordRepo, analyticsRepo, tables, refreshCfg)

	resolverCfg := linkresolver.DefaultConfig()
	resolverCfg.ResolveTimeout = cfg.Server.ResolveTimeout
	resolverCfg.TokenKey = cfg.Engine.LinkTokenKey
	resolverCfg.PublicBaseURL = cfg.Engine.PublicBaseURL
	resolver := linkresolver.New(locationService, recordRepo, mappingRepo, analyticsRepo, refreshService, tables, homeRegion, resolverCfg)

	rankerCfg := ranker.DefaultConfig()
	rankerCfg.AffiliateTag = cfg.Marketplace.AffiliateTag
	if info, ok := tables.Region(homeRegion); ok && info.MarketplaceHost != "" {
		rankerCfg.AffiliateHost = info.MarketplaceHost
	}
	productRanker := ranker.New(rankerCfg, market)

	scheduler := refresh.NewScheduler(refreshService, locationService, locationService, cfg.Engine.RefreshInterval, time.Hour)

	// Init handler
	linkHandler := rest.NewLinkHandler(resolver)
	locationHandler := rest.NewLocationHandler(locationService)
	rankingHandler := rest.NewRankingHandler(productRanker)
	adminHandler := rest.NewAdminHandler(
		governor,
		refreshService,
		resolver,
		catalogStore{mappingRepo, analyticsRepo},
		tables,
		rest.AdminAuth{
			Secret:       cfg.JWT.SecretKey,
			PasswordHash: cfg.JWT.AdminPasswordHash,
			TokenTTL:     cfg.JWT.TokenTTL,
		},
	)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	httpMetrics.Init()
	e.Use(echomiddleware.Recover())
	e.Use(httpMetrics.Middleware())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: strings.Split(cfg.Server.AllowOrigins, ","),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			"X-Session-ID", "X-Timezone", "X-Country-Code",
		},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupLinkRoutes(api, linkHandler)
	router.SetupLocationRoutes(api, locationHandler)
	// each kit item is a paid marketplace search
	kitLimiter := echomiddleware.RateLimiter(echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.Server.KitRateLimit),
		Burst:     3,
		ExpiresIn: 10 * time.Minute,
	}))
	router.SetupRankingRoutes(api, rankingHandler, kitLimiter)
	router.SetupAdminRoutes(api, adminHandler, middleware.AuthMiddleware(cfg.JWT.SecretKey), middleware.AdminOnly())

	// Background refresh
	bgCtx, bgCancel := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(bgCtx)
	}()

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown server
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	select {
	case <-schedulerDone:
	case <-ctx.Done():
		logger.Warn("Refresh scheduler did not stop in time")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Server stopped")
}
