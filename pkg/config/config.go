package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Marketplace MarketplaceConfig
	Engine      EngineConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port           string
	ResolveTimeout time.Duration
	AllowOrigins   string
	// kit resolutions per second allowed to one client
	KitRateLimit float64
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey         string
	AdminPasswordHash string
	TokenTTL          time.Duration
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type MarketplaceConfig struct {
	BaseURL      string
	APIKey       string
	AffiliateTag string
	Timeout      time.Duration
	ChunkDelay   time.Duration
}

type EngineConfig struct {
	HomeRegion        string
	RegionTablesPath  string
	LinkTokenKey      string
	DailyRequestLimit int
	MonthlyBudget     float64
	RefreshInterval   time.Duration
	RefreshBatchDelay time.Duration
	PublicBaseURL     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Smart Link Resolver"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ResolveTimeout: getEnvDuration("RESOLVE_TIMEOUT", 3*time.Second),
			AllowOrigins:   getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000"),
			KitRateLimit:   getEnvFloat("KIT_RATE_LIMIT", 0.2),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "smart_link"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:         getEnv("JWT_SECRET", ""),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			TokenTTL:          getEnvDuration("JWT_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", ""),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
		},
		Marketplace: MarketplaceConfig{
			BaseURL:      getEnv("MARKETPLACE_BASE_URL", ""),
			APIKey:       getEnv("MARKETPLACE_API_KEY", ""),
			AffiliateTag: getEnv("MARKETPLACE_AFFILIATE_TAG", ""),
			Timeout:      getEnvDuration("MARKETPLACE_TIMEOUT", 10*time.Second),
			ChunkDelay:   getEnvDuration("MARKETPLACE_CHUNK_DELAY", time.Second),
		},
		Engine: EngineConfig{
			HomeRegion:        getEnv("HOME_REGION", "BR"),
			RegionTablesPath:  getEnv("REGION_TABLES_PATH", ""),
			LinkTokenKey:      getEnv("LINK_TOKEN_KEY", ""),
			DailyRequestLimit: getEnvInt("DAILY_REQUEST_LIMIT", 1000),
			MonthlyBudget:     getEnvFloat("MONTHLY_BUDGET", 100),
			RefreshInterval:   getEnvDuration("REFRESH_INTERVAL", time.Hour),
			RefreshBatchDelay: getEnvDuration("REFRESH_BATCH_DELAY", 2*time.Second),
			PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	// AES-CBC needs a 16, 24 or 32 byte key
	switch len(cfg.Engine.LinkTokenKey) {
	case 16, 24, 32:
	default:
		return nil, errors.New("link token key must be 16, 24 or 32 bytes")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}

	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}

	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}

	return defaultVal
}
