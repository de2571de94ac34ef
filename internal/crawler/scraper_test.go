package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	locatorURL = "https://subway.example.com/find-a-subway"

	searchPage = `<html><body>
<form action="/results" method="get">
  <input id="addressInput" name="address" placeholder="Search by Postcode, City or State">
  <button id="searchButton" type="submit">Search</button>
</form>
</body></html>`

	resultsPage = `<html><body>
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
</body></html>`
)

// sitePages serves markup by path and records requested queries
type sitePages struct {
	pages   map[string]string
	queries []string
}

func (p *sitePages) fetch(ctx context.Context, rawURL string) (io.Reader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	p.queries = append(p.queries, u.RawQuery)
	markup, ok := p.pages[u.Path]
	if !ok {
		return nil, fmt.Errorf("fetch %s unexpected status code: 404", rawURL)
	}
	return strings.NewReader(markup), nil
}

func newTestScraper(site *sitePages, artifacts Artifacts) (*Scraper, *[]time.Duration) {
	var slept []time.Duration
	open := func(ctx context.Context) (browser.Session, error) {
		return browser.NewStaticSession(site.fetch), nil
	}
	s := NewScraper(Options{
		TargetURL:  locatorURL,
		PageWait:   10 * time.Second,
		SearchWait: 5 * time.Second,
	}, open, artifacts, logger.Nop()).WithSleep(func(d time.Duration) {
		slept = append(slept, d)
	})
	return s, &slept
}

func TestScraper_EndToEnd(t *testing.T) {
	site := &sitePages{pages: map[string]string{
		"/find-a-subway": searchPage,
		"/results":       resultsPage,
	}}
	artifacts := newRecordingArtifacts()
	s, slept := newTestScraper(site, artifacts)

	got := s.Run(context.Background())

	assert.Equal(t, []Outlet{
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
	}, got)

	assert.Equal(t, []time.Duration{10 * time.Second, 5 * time.Second}, *slept)
	assert.Contains(t, site.queries, "address=kuala+lumpur")
	assert.Contains(t, artifacts.texts, "initial_page.html")
	assert.Contains(t, artifacts.texts, "after_search.html")
	assert.Contains(t, artifacts.texts, "outlet_0.html")
	assert.Contains(t, artifacts.texts, "outlet_1.html")
}

func TestScraper_NoSearchInputFallsBack(t *testing.T) {
	site := &sitePages{pages: map[string]string{
		"/find-a-subway": `<html><body>
<h3>Subway Cheras</h3><div class="address">Jalan Cheras</div>
</body></html>`,
	}}
	s, slept := newTestScraper(site, nil)

	got := s.Run(context.Background())
	assert.Equal(t, []Outlet{{Name: "Subway Cheras", Address: "Jalan Cheras"}}, got)
	assert.Equal(t, []time.Duration{10 * time.Second}, *slept)
}

func TestScraper_SearchInputInFrame(t *testing.T) {
	frame := strings.NewReplacer(`"`, "&quot;", "<", "&lt;", ">", "&gt;").Replace(searchPage)
	site := &sitePages{pages: map[string]string{
		"/find-a-subway": `<html><body><form></form><iframe srcdoc="` + frame + `"></iframe></body></html>`,
		"/results":       resultsPage,
	}}
	s, _ := newTestScraper(site, nil)

	got := s.Run(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "Subway Bangsar", got[0].Name)
	assert.Equal(t, "Subway KLCC", got[1].Name)
}

func TestScraper_NoButtonPressesEnter(t *testing.T) {
	site := &sitePages{pages: map[string]string{
		"/find-a-subway": `<html><body><form action="/results">
<input name="address"></form></body></html>`,
		"/results": `<html><body>
<div class="store-list"><h3>Subway Setapak</h3><div class="address">Setapak Central</div></div>
</body></html>`,
	}}
	s, slept := newTestScraper(site, nil)

	got := s.Run(context.Background())
	assert.Equal(t, []Outlet{{Name: "Subway Setapak", Address: "Setapak Central"}}, got)
	assert.Equal(t, []time.Duration{10 * time.Second, 5 * time.Second}, *slept)
	assert.Contains(t, site.queries, "address=kuala+lumpur")
}

func TestScraper_NoResultsContainerFallsBack(t *testing.T) {
	site := &sitePages{pages: map[string]string{
		"/find-a-subway": searchPage,
		"/results": `<html><body>
<section><h4>Subway Kepong</h4><div class="address">Kepong Baru</div></section>
</body></html>`,
	}}
	s, _ := newTestScraper(site, nil)

	got := s.Run(context.Background())
	assert.Equal(t, []Outlet{{Name: "Subway Kepong", Address: "Kepong Baru"}}, got)
}

func TestScraper_SearchErrorFallsBack(t *testing.T) {
	// The results page is missing, so the submit fails and the search page
	// itself goes through the generic extractor.
	site := &sitePages{pages: map[string]string{
		"/find-a-subway": strings.Replace(searchPage, "</form>",
			`</form><div><h3>Subway Ampang</h3><a href="https://waze.com/ul?q=ampang">Waze</a></div>`, 1),
	}}
	s, _ := newTestScraper(site, nil)

	got := s.Run(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "Subway Ampang", got[0].Name)
	assert.Equal(t, "https://waze.com/ul?q=ampang", got[0].MapLink)
}

func TestScraper_BlankPage(t *testing.T) {
	site := &sitePages{pages: map[string]string{"/find-a-subway": ""}}
	s, _ := newTestScraper(site, nil)

	got := s.Run(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

// panicSession blows up on the first lookup
type panicSession struct {
	mockSession
}

func (p *panicSession) Find(ctx context.Context, s browser.Strategy) ([]browser.Element, error) {
	panic("browser crashed")
}

func TestScraper_RunFailures(t *testing.T) {
	opts := Options{TargetURL: locatorURL}
	noSleep := func(time.Duration) {}

	t.Run("session cannot open", func(t *testing.T) {
		open := func(ctx context.Context) (browser.Session, error) {
			return nil, errors.New("chrome not found")
		}
		got := NewScraper(opts, open, nil, logger.Nop()).WithSleep(noSleep).Run(context.Background())
		require.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("load fails and session is closed", func(t *testing.T) {
		session := browser.NewStaticSession((&sitePages{}).fetch)
		closed := &closeTracker{Session: session}
		open := func(ctx context.Context) (browser.Session, error) { return closed, nil }

		got := NewScraper(opts, open, nil, logger.Nop()).WithSleep(noSleep).Run(context.Background())
		assert.Empty(t, got)
		assert.True(t, closed.closed)
	})

	t.Run("panic is recovered and session is closed", func(t *testing.T) {
		session := &panicSession{}
		open := func(ctx context.Context) (browser.Session, error) { return session, nil }

		got := NewScraper(opts, open, nil, logger.Nop()).WithSleep(noSleep).Run(context.Background())
		require.NotNil(t, got)
		assert.Empty(t, got)
		assert.True(t, session.closed)
	})
}

type closeTracker struct {
	browser.Session
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.Session.Close()
}

func TestNewScraper_Defaults(t *testing.T) {
	s := NewScraper(Options{TargetURL: locatorURL}, nil, nil, nil)
	assert.Equal(t, DefaultQuery, s.opts.Query)
	assert.Equal(t, locatorURL, s.Target())
}

// stagesLogged returns the stages in the order the run logged them
func stagesLogged(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var stages []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		if stage, ok := entry["stage"].(string); ok && entry["message"] == "Stage reached" {
			stages = append(stages, stage)
		}
	}
	return stages
}

func TestScraper_AlwaysEndsDone(t *testing.T) {
	level := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(level)

	site := &sitePages{pages: map[string]string{
		"/find-a-subway": searchPage,
		"/results":       resultsPage,
	}}

	tests := []struct {
		name string
		open SessionFactory
		want []string
	}{
		{
			name: "success",
			open: func(ctx context.Context) (browser.Session, error) {
				return browser.NewStaticSession(site.fetch), nil
			},
			want: []string{"page_loaded", "search_submitted", "results_located", "extracted", "done"},
		},
		{
			name: "session cannot open",
			open: func(ctx context.Context) (browser.Session, error) {
				return nil, errors.New("chrome not found")
			},
			want: []string{"done"},
		},
		{
			name: "load fails",
			open: func(ctx context.Context) (browser.Session, error) {
				return browser.NewStaticSession((&sitePages{}).fetch), nil
			},
			want: []string{"done"},
		},
		{
			name: "panic",
			open: func(ctx context.Context) (browser.Session, error) {
				return &panicSession{}, nil
			},
			want: []string{"page_loaded", "done"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewScraper(Options{TargetURL: locatorURL}, tt.open, nil, logger.New(&buf)).
				WithSleep(func(time.Duration) {})
			s.Run(context.Background())
			assert.Equal(t, tt.want, stagesLogged(t, &buf))
		})
	}
}
