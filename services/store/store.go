package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sjsage522/outletscraper/internal/crawler"
)

// Table is the name of the outlet table in every backend
const Table = "outlets"

// Row is a stored outlet. Latitude and Longitude stay nil until a
// geocoding pass fills them.
type Row struct {
	ID int64
	crawler.Outlet
	Latitude  *float64
	Longitude *float64
}

// Store persists the outlets of the latest run
type Store interface {
	// ReplaceAll deletes every stored outlet and inserts outlets in order
	ReplaceAll(ctx context.Context, outlets []crawler.Outlet) error

	// List returns the stored outlets in insertion order
	List(ctx context.Context) ([]Row, error)

	// Close releases the connection pool
	Close() error
}

// Config selects and configures a backend
type Config struct {
	Driver string
	DSN    string
}

// Factory opens a Store for a registered driver
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under driver. It is meant to be
// called from a backend package's init and panics on duplicates.
func Register(driver string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if driver == "" {
		panic("store: Register called with empty driver")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[driver]; exists {
		panic(fmt.Sprintf("store: factory already registered for driver=%q", driver))
	}
	factories[driver] = f
}

// Open creates a Store with the factory registered for cfg.Driver
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("store: missing driver")
	}

	mu.RLock()
	f, ok := factories[cfg.Driver]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q (registered: %v)", cfg.Driver, Drivers())
	}
	return f(ctx, cfg)
}

// Drivers lists the registered driver names
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	drivers := make([]string, 0, len(factories))
	for d := range factories {
		drivers = append(drivers, d)
	}
	sort.Strings(drivers)
	return drivers
}
