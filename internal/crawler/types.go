package crawler

import (
	"context"
	"time"

	"sjsage522/outletscraper/internal/browser"
)

// Outlet represents one scraped store location
type Outlet struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	OperatingHours string `json:"operating_hours"`
	MapLink        string `json:"map_link"`
}

// Valid reports whether the outlet carries enough information to keep.
// A record without both name and address is discarded.
func (o Outlet) Valid() bool {
	return o.Name != "" || o.Address != ""
}

// Stage is a step of a scrape run. Runs only move forward.
type Stage string

const (
	StageStart           Stage = "start"
	StagePageLoaded      Stage = "page_loaded"
	StageSearchSubmitted Stage = "search_submitted"
	StageResultsLocated  Stage = "results_located"
	StageExtracted       Stage = "extracted"
	StageDone            Stage = "done"
)

// SessionFactory opens the browser session a run drives
type SessionFactory func(ctx context.Context) (browser.Session, error)

// Options contains configuration for a scrape run
type Options struct {
	TargetURL  string
	Query      string
	PageWait   time.Duration
	SearchWait time.Duration
}

// DefaultQuery is the search term submitted to the locator form
const DefaultQuery = "kuala lumpur"
