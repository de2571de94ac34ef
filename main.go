package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/outletscraper/config"
	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/internal/crawler"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/pkg/errors"
	"sjsage522/outletscraper/services/cache"
	"sjsage522/outletscraper/services/publisher"
	"sjsage522/outletscraper/services/store"
	_ "sjsage522/outletscraper/services/store/mysql"
	_ "sjsage522/outletscraper/services/store/postgres"
	_ "sjsage522/outletscraper/services/store/sqlite"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	// Set up context cancelled on shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration from the environment
func loadConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfiguration("invalid configuration", err)
	}
	return cfg, nil
}

// Services holds all the initialized services
type Services struct {
	Store     store.Store
	Guard     *cache.RunGuard
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// openStore opens the configured outlet store
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{Driver: cfg.StoreDriver, DSN: cfg.StoreDSN})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	return st, nil
}

// initializeServices initializes all services a scrape needs
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.Default
	services := &Services{}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Store = st
	log.Info().Str("driver", cfg.StoreDriver).Msg("Opened outlet store")

	// The run guard is optional: without memcache every run goes ahead
	memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcacheService.Ping(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, run guard disabled")
	} else {
		services.Guard = cache.NewRunGuard(memcacheService, cfg.BlockTime)
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
	}

	if cfg.PublishEnabled {
		redisPublisher := publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(); err != nil {
			redisPublisher.Close()
			services.Cleanup()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		services.Publisher = redisPublisher
		log.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Connected to Redis")
	}

	return services, nil
}

// sessionFactory opens the browser selected by configuration
func sessionFactory(cfg *config.Config) crawler.SessionFactory {
	if cfg.Browser == config.BrowserStatic {
		return func(ctx context.Context) (browser.Session, error) {
			return browser.NewStaticSession(nil), nil
		}
	}
	return func(ctx context.Context) (browser.Session, error) {
		session, err := browser.NewChromeSession(ctx, browser.ChromeOptions{
			Headless:  cfg.Headless,
			UserAgent: cfg.UserAgent,
			Logger:    logger.ForComponent("chrome"),
		})
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

// newScraper builds the scraper for the configured target
func newScraper(cfg *config.Config) *crawler.Scraper {
	var artifacts crawler.Artifacts = crawler.NopArtifacts{}
	if cfg.DebugArtifacts {
		artifacts = crawler.NewDirArtifacts(cfg.DebugDir, logger.ForComponent("artifacts"))
	}

	return crawler.NewScraper(crawler.Options{
		TargetURL:  cfg.TargetURL,
		Query:      cfg.SearchQuery,
		PageWait:   cfg.PageWait,
		SearchWait: cfg.SearchWait,
	}, sessionFactory(cfg), artifacts, logger.ForScraper(cfg.TargetURL))
}
