package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Scrape target
	TargetURL   string
	SearchQuery string

	// Browser configuration
	Browser    string
	Headless   bool
	UserAgent  string
	PageWait   time.Duration
	SearchWait time.Duration

	// Debug artifacts
	DebugDir       string
	DebugArtifacts bool

	// Outlet store
	StoreDriver string
	StoreDSN    string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int
	PublishEnabled       bool

	// Memcache configuration
	MemcacheAddr string

	// Worker configuration
	ScrapeInterval time.Duration
	BlockTime      time.Duration

	// Environment
	Environment string
}

const (
	BrowserChrome = "chrome"
	BrowserStatic = "static"
)

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	pageWait, _ := strconv.Atoi(getEnv("SCRAPER_PAGE_WAIT_SECONDS", "10"))
	searchWait, _ := strconv.Atoi(getEnv("SCRAPER_SEARCH_WAIT_SECONDS", "5"))
	interval, _ := strconv.Atoi(getEnv("SCRAPE_INTERVAL_SECONDS", "0"))
	blockTime, _ := strconv.Atoi(getEnv("BLOCK_SECONDS", "600"))

	return &Config{
		TargetURL:            getEnv("SCRAPER_TARGET_URL", "https://subway.com.my/find-a-subway"),
		SearchQuery:          getEnv("SCRAPER_QUERY", "kuala lumpur"),
		Browser:              strings.ToLower(getEnv("SCRAPER_BROWSER", BrowserChrome)),
		Headless:             getBool("SCRAPER_HEADLESS", true),
		UserAgent:            getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"),
		PageWait:             time.Duration(pageWait) * time.Second,
		SearchWait:           time.Duration(searchWait) * time.Second,
		DebugDir:             getEnv("SCRAPER_DEBUG_DIR", "debug"),
		DebugArtifacts:       getBool("SCRAPER_DEBUG_ARTIFACTS", true),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		StoreDSN:             getEnv("STORE_DSN", "outlets.db"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "outlets"),
		RedisStreamMaxLength: streamMaxLength,
		PublishEnabled:       getBool("PUBLISH_ENABLED", false),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		ScrapeInterval:       time.Duration(interval) * time.Second,
		BlockTime:            time.Duration(blockTime) * time.Second,
		Environment:          getEnv("SCRAPER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the scraper cannot run with
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("SCRAPER_TARGET_URL must not be empty")
	}
	switch c.Browser {
	case BrowserChrome, BrowserStatic:
	default:
		return fmt.Errorf("unsupported browser %q (want %s or %s)", c.Browser, BrowserChrome, BrowserStatic)
	}
	switch c.StoreDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported store driver %q", c.StoreDriver)
	}
	if c.PageWait < 0 || c.SearchWait < 0 {
		return fmt.Errorf("wait durations must not be negative")
	}
	if c.ScrapeInterval < 0 {
		return fmt.Errorf("SCRAPE_INTERVAL_SECONDS must not be negative")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
