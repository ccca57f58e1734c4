package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DatabaseDriver string
	DatabaseURL    string

	ScrapeURL       string
	SeedFile        string
	RefreshInterval time.Duration

	ProbePort      int
	ProbeTimeout   time.Duration
	ProbeBatchSize int

	SourceTimeout   time.Duration
	SourceUserAgent string
	FetchProxy      string

	ISPFeedURL   string
	ISPFeedTTL   time.Duration
	ISPFeedMerge bool

	AdminJWTSecret      string
	SubscribeRatePerMin int

	LogLevel  string
	LogFormat string
}

var Current Config

func Load() error {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	Current = cfg
	return err
}

// FromEnv builds a Config from the process environment without touching .env files.
func FromEnv() (Config, error) {
	var errs []error
	intEnv := func(key string, def int) int {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}

	cfg := Config{
		Port:                getenv("APP_PORT", "8080"),
		DatabaseDriver:      strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DatabaseURL:         getenv("DATABASE_URL", "data/database.sqlite"),
		ScrapeURL:           getenv("SCRAPE_URL", "https://cf.090227.xyz/"),
		SeedFile:            getenv("SEED_FILE", ""),
		RefreshInterval:     time.Duration(intEnv("REFRESH_INTERVAL_MINUTES", 20)) * time.Minute,
		ProbePort:           intEnv("PROBE_PORT", 443),
		ProbeTimeout:        time.Duration(intEnv("PROBE_TIMEOUT_MS", 2000)) * time.Millisecond,
		ProbeBatchSize:      intEnv("PROBE_BATCH_SIZE", 10),
		SourceTimeout:       time.Duration(intEnv("SOURCE_TIMEOUT_SECONDS", 15)) * time.Second,
		SourceUserAgent:     getenv("SOURCE_USER_AGENT", "v2rayN/6.33"),
		FetchProxy:          getenv("FETCH_PROXY", ""),
		ISPFeedURL:          getenv("ISP_FEED_URL", "https://stock.hostmonit.com/CloudFlareYes"),
		ISPFeedTTL:          time.Duration(intEnv("ISP_FEED_TTL_MINUTES", 20)) * time.Minute,
		ISPFeedMerge:        getenv("ISP_FEED_MERGE", "false") == "true",
		AdminJWTSecret:      getenv("ADMIN_JWT_SECRET", ""),
		SubscribeRatePerMin: intEnv("SUBSCRIBE_RATE_PER_MINUTE", 60),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogFormat:           getenv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "postgres" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DatabaseDriver))
	}
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL_MINUTES must be positive"))
	}
	if cfg.ProbePort < 1 || cfg.ProbePort > 65535 {
		errs = append(errs, fmt.Errorf("PROBE_PORT out of range: %d", cfg.ProbePort))
	}
	if cfg.ProbeBatchSize <= 0 {
		errs = append(errs, errors.New("PROBE_BATCH_SIZE must be positive"))
	}
	return cfg, errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
