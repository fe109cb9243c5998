package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	// Tenant scope served by this deployment
	CompanyID string
	TeamID    string
	// Chat webhook ingestion
	WebhookSecret string
	// Search
	MeiliURL       string
	MeiliMasterKey string
	// First-run credential for the seeded owner account
	BootstrapPassword string
	CORSOrigin        string
	// Issue queue ceiling (see store.Options.MaxIssuePriority)
	MaxIssuePriority int
}

func Load() Config {
	return Config{
		Addr:              getenv("API_ADDR", ":8686"),
		DatabaseURL:       getenv("DATABASE_URL", ""),
		RedisURL:          getenv("REDIS_URL", ""),
		JWTSecret:         getenv("ROOFFLOW_JWT_SECRET", "roofflow-dev-secret"),
		AccessTTL:         time.Duration(getenvInt("ROOFFLOW_ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL:        time.Duration(getenvInt("ROOFFLOW_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		CompanyID:         getenv("ROOFFLOW_COMPANY_ID", "co_demo"),
		TeamID:            getenv("ROOFFLOW_TEAM_ID", "tm_leadership"),
		WebhookSecret:     getenv("ROOFFLOW_WEBHOOK_SECRET", ""),
		MeiliURL:          getenv("MEILI_URL", ""),
		MeiliMasterKey:    getenv("MEILI_MASTER_KEY", ""),
		BootstrapPassword: getenv("ROOFFLOW_BOOTSTRAP_PASSWORD", "roofflow-setup"),
		CORSOrigin:        getenv("ROOFFLOW_CORS_ORIGIN", "*"),
		MaxIssuePriority:  getenvInt("ROOFFLOW_MAX_ISSUE_PRIORITY", 5),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
