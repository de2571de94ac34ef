package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sjsage522/outletscraper/config"
	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/internal/crawler"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/services/cache"
	"sjsage522/outletscraper/services/publisher"
	"sjsage522/outletscraper/services/store"
	"sjsage522/outletscraper/services/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A locator page with a search form and the results page it submits to
const (
	testSearchHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Find a Subway</title>
</head>
<body>
    <form action="/results" method="get">
        <input id="addressInput" name="address" placeholder="Search by Postcode, City or State">
        <button id="searchButton" type="submit">Search</button>
    </form>
</body>
</html>
`

	testResultsHTML = `
<!DOCTYPE html>
<html>
<body>
    <div class="results-list">
        <div class="results-list-item">
            <h3 class="location-name">Subway Bangsar</h3>
            <div class="address-line">Jalan Telawi 3, 59100 Kuala Lumpur</div>
            <div>Opening Hours: 8am - 10pm</div>
            <a href="https://waze.com/ul?q=bangsar">Waze</a>
        </div>
        <div class="results-list-item">
            <h3 class="location-name">Subway KLCC</h3>
            <div class="address-line">Suria KLCC, 50088 Kuala Lumpur</div>
            <div>Opening Hours: 10am - 10pm</div>
            <a href="https://waze.com/ul?q=klcc">Waze</a>
        </div>
    </div>
</body>
</html>
`
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

// Ensure MockCacheService implements cache.CacheService
var _ cache.CacheService = (*MockCacheService)(nil)

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

// MockPublisher records published messages
type MockPublisher struct {
	messages [][]byte
	trimmed  int
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.messages = append(m.messages, message)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func newLocatorServer(t *testing.T, results string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/find-a-subway":
			io.WriteString(w, testSearchHTML)
		case "/results":
			io.WriteString(w, results)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, server *httptest.Server) *config.Config {
	t.Setenv("SCRAPER_TARGET_URL", server.URL+"/find-a-subway")
	t.Setenv("SCRAPER_BROWSER", config.BrowserStatic)
	t.Setenv("SCRAPER_PAGE_WAIT_SECONDS", "0")
	t.Setenv("SCRAPER_SEARCH_WAIT_SECONDS", "0")
	t.Setenv("SCRAPER_DEBUG_ARTIFACTS", "false")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_DSN", filepath.Join(t.TempDir(), "outlets.db"))

	cfg, err := loadConfig()
	require.NoError(t, err)
	return cfg
}

// TestIntegration tests the scrape, store, publish and list flow
func TestIntegration(t *testing.T) {
	server := newLocatorServer(t, testResultsHTML)
	cfg := testConfig(t, server)
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()

	mockCache := &MockCacheService{cache: make(map[string][]byte)}
	guard := cache.NewRunGuard(mockCache, time.Minute)
	pub := &MockPublisher{}

	w := worker.NewWorker(ctx, newScraper(cfg), st, pub, guard, 0).WithLogger(logger.Nop())
	count, err := w.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	expected := []crawler.Outlet{
		{
			Name:           "Subway Bangsar",
			Address:        "Jalan Telawi 3, 59100 Kuala Lumpur",
			OperatingHours: "Opening Hours: 8am - 10pm",
			MapLink:        "https://waze.com/ul?q=bangsar",
		},
		{
			Name:           "Subway KLCC",
			Address:        "Suria KLCC, 50088 Kuala Lumpur",
			OperatingHours: "Opening Hours: 10am - 10pm",
			MapLink:        "https://waze.com/ul?q=klcc",
		},
	}

	rows, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, expected[0], rows[0].Outlet)
	assert.Equal(t, expected[1], rows[1].Outlet)

	require.Len(t, pub.messages, 2)
	var published crawler.Outlet
	require.NoError(t, json.Unmarshal(pub.messages[1], &published))
	assert.Equal(t, expected[1], published)
	assert.Equal(t, 1, pub.trimmed)

	blocked, _, err := guard.Blocked(cfg.TargetURL)
	require.NoError(t, err)
	assert.False(t, blocked)

	// list reads the same database through the CLI
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list", "--json"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	var listed []outletJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, int64(1), listed[0].ID)
	assert.Equal(t, "Subway Bangsar", listed[0].Name)
	assert.Nil(t, listed[0].Latitude)
}

func TestIntegration_EmptyRunKeepsStore(t *testing.T) {
	server := newLocatorServer(t, `<html><body><p>No stores near you.</p></body></html>`)
	cfg := testConfig(t, server)
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	require.NoError(t, err)
	defer st.Close()

	previous := []crawler.Outlet{{Name: "Subway Cheras", Address: "Jalan Cheras"}}
	require.NoError(t, st.ReplaceAll(ctx, previous))

	mockCache := &MockCacheService{cache: make(map[string][]byte)}
	guard := cache.NewRunGuard(mockCache, time.Minute)
	pub := &MockPublisher{}

	w := worker.NewWorker(ctx, newScraper(cfg), st, pub, guard, 0).WithLogger(logger.Nop())
	count, err := w.RunOnce()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, pub.messages)

	rows, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, previous[0], rows[0].Outlet)

	// the empty run blocks the target until the guard expires
	_, err = w.RunOnce()
	assert.True(t, errors.Is(err, worker.ErrBlocked))
}

func TestRenderOutlets(t *testing.T) {
	lat := 3.1319
	rows := []store.Row{
		{ID: 1, Outlet: crawler.Outlet{Name: "Subway Bangsar", Address: "Jalan Telawi", OperatingHours: "8am - 10pm"}},
		{ID: 2, Outlet: crawler.Outlet{Name: "Subway KLCC", MapLink: "https://waze.com/ul?q=klcc"}, Latitude: &lat},
	}

	var out bytes.Buffer
	renderOutlets(&out, rows)

	text := out.String()
	assert.Contains(t, text, "NAME")
	assert.Contains(t, text, "OPERATING HOURS")
	assert.Contains(t, text, "Subway Bangsar")
	assert.Contains(t, text, "https://waze.com/ul?q=klcc")
	assert.Contains(t, text, "2 OUTLETS")
	assert.Contains(t, text, "╭")
}

func TestSessionFactory(t *testing.T) {
	cfg := config.LoadConfig()
	cfg.Browser = config.BrowserStatic

	session, err := sessionFactory(cfg)(context.Background())
	require.NoError(t, err)
	defer session.Close()
	assert.IsType(t, &browser.StaticSession{}, session)
}

func TestScrapeCmd_RejectsUnknownBrowser(t *testing.T) {
	server := newLocatorServer(t, testResultsHTML)
	testConfig(t, server)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"scrape", "--browser", "firefox"})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "unsupported browser")
}

func TestInitializeServices_WithoutMemcache(t *testing.T) {
	server := newLocatorServer(t, testResultsHTML)
	t.Setenv("MEMCACHE_ADDR", "127.0.0.1:1")
	t.Setenv("PUBLISH_ENABLED", "false")
	cfg := testConfig(t, server)

	services, err := initializeServices(context.Background(), cfg)
	require.NoError(t, err)
	defer services.Cleanup()

	assert.NotNil(t, services.Store)
	assert.Nil(t, services.Guard)
	assert.Nil(t, services.Publisher)
}
