package crawler

import (
	"context"
	"fmt"
	"time"

	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/pkg/errors"
)

// Scraper drives one store-locator page from load to extracted outlets
type Scraper struct {
	opts      Options
	open      SessionFactory
	artifacts Artifacts
	logger    *logger.Logger
	sleep     func(time.Duration)

	outlets *OutletExtractor
	generic *GenericExtractor
}

// NewScraper creates a scraper. Nil artifacts and logger are replaced by
// no-op implementations.
func NewScraper(opts Options, open SessionFactory, artifacts Artifacts, log *logger.Logger) *Scraper {
	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if artifacts == nil {
		artifacts = NopArtifacts{}
	}
	if log == nil {
		log = logger.Nop()
	}
	generic := NewGenericExtractor(artifacts, log.WithField("extractor", "generic"))
	return &Scraper{
		opts:      opts,
		open:      open,
		artifacts: artifacts,
		logger:    log,
		sleep:     time.Sleep,
		outlets:   NewOutletExtractor(generic, artifacts, log.WithField("extractor", "outlet")),
		generic:   generic,
	}
}

// WithSleep replaces the fixed pauses after navigation and search
func (s *Scraper) WithSleep(sleep func(time.Duration)) *Scraper {
	s.sleep = sleep
	return s
}

// Target returns the page the scraper loads
func (s *Scraper) Target() string {
	return s.opts.TargetURL
}

// Run performs one scrape. It never fails: any unexpected error or panic
// is logged and yields an empty result. The session is always closed and
// every run ends in StageDone.
func (s *Scraper) Run(ctx context.Context) (outlets []Outlet) {
	r := &scrapeRun{Scraper: s, stage: StageStart}

	defer func() {
		if rec := recover(); rec != nil {
			err := errors.NewRunFailure(string(r.stage), fmt.Errorf("panic: %v", rec))
			s.logger.Error().Err(err).Msg("An error occurred during scraping")
			outlets = []Outlet{}
		}
		r.advance(StageDone)
	}()

	session, err := s.open(ctx)
	if err != nil {
		s.logger.Error().Err(errors.NewRunFailure(string(r.stage), err)).Msg("Failed to open browser session")
		return []Outlet{}
	}
	r.session = session
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close browser session")
			return
		}
		s.logger.Info().Msg("Browser session closed")
	}()

	result, err := r.execute(ctx)
	if err != nil {
		s.logger.Error().Err(errors.NewRunFailure(string(r.stage), err)).Msg("An error occurred during scraping")
		return []Outlet{}
	}

	s.logger.Info().Int("count", len(result)).Msg("Scraping completed")
	return result
}

// scrapeRun holds the state of a single Run
type scrapeRun struct {
	*Scraper
	session browser.Session
	stage   Stage
}

func (r *scrapeRun) advance(next Stage) {
	r.stage = next
	r.logger.Debug().Str("stage", string(next)).Msg("Stage reached")
}

func (r *scrapeRun) execute(ctx context.Context) ([]Outlet, error) {
	r.logger.Info().Str("url", r.opts.TargetURL).Msg("Loading store locator")
	if err := r.session.Load(ctx, r.opts.TargetURL); err != nil {
		return nil, fmt.Errorf("load %s: %w", r.opts.TargetURL, err)
	}
	r.advance(StagePageLoaded)
	r.sleep(r.opts.PageWait)
	r.snapshot(ctx, "initial_page")

	input, ok := Locate(ctx, r.session, SearchInputStrategies, r.logger)
	if !ok {
		r.logger.Error().Msg("Could not find search input using any strategy")
		input, ok = r.searchFrames(ctx)
	}
	if !ok {
		return r.fallback(ctx)
	}

	outlets, err := r.search(ctx, input)
	if err != nil {
		r.logger.Error().Err(errors.NewAutomation(string(r.stage), "error during search", err)).Msg("Search failed")
		return r.fallback(ctx)
	}
	return outlets, nil
}

// searchFrames looks for the search input inside each iframe. When found
// the session stays in that frame.
func (r *scrapeRun) searchFrames(ctx context.Context) (browser.Element, bool) {
	if forms, err := r.session.Find(ctx, browser.Tag("form")); err == nil {
		r.logger.Info().Int("count", len(forms)).Msg("Found form elements")
		for i, form := range forms {
			if markup, err := form.OuterHTML(ctx); err == nil {
				r.logger.Debug().Int("index", i).Str("html", markup).Msg("Form markup")
			}
		}
	}

	frames, err := r.session.Find(ctx, browser.Tag("iframe"))
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to list iframes")
		return nil, false
	}
	r.logger.Info().Int("count", len(frames)).Msg("Found iframes")

	for i, frame := range frames {
		if err := r.session.EnterFrame(ctx, frame); err != nil {
			r.logger.Warn().Err(err).Int("index", i).Msg("Could not switch to iframe")
			r.exitFrame(ctx)
			continue
		}
		r.screenshot(ctx, fmt.Sprintf("iframe_%d.png", i))

		if input, ok := Locate(ctx, r.session, SearchInputStrategies, r.logger); ok {
			r.logger.Info().Int("index", i).Msg("Found search input in iframe")
			return input, true
		}
		r.exitFrame(ctx)
	}
	return nil, false
}

func (r *scrapeRun) exitFrame(ctx context.Context) {
	if err := r.session.ExitFrame(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to return to main document")
	}
}

func (r *scrapeRun) search(ctx context.Context, input browser.Element) ([]Outlet, error) {
	if err := input.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear search input: %w", err)
	}
	if err := input.Type(ctx, r.opts.Query); err != nil {
		return nil, fmt.Errorf("type search query: %w", err)
	}
	r.logger.Info().Str("query", r.opts.Query).Msg("Entered search query")

	button, ok := Locate(ctx, r.session, SearchButtonStrategies, r.logger)
	if !ok {
		r.logger.Error().Msg("Could not find search button, pressing Enter")
		if err := input.Submit(ctx); err != nil {
			return nil, fmt.Errorf("submit search input: %w", err)
		}
		r.advance(StageSearchSubmitted)
		r.sleep(r.opts.SearchWait)
		return r.fallback(ctx)
	}

	if err := button.Click(ctx); err != nil {
		return nil, fmt.Errorf("click search button: %w", err)
	}
	r.advance(StageSearchSubmitted)
	r.logger.Info().Msg("Clicked the search button")
	r.sleep(r.opts.SearchWait)
	r.snapshot(ctx, "after_search")

	container, ok := Locate(ctx, r.session, ResultsContainerStrategies, r.logger)
	if !ok {
		r.logger.Error().Msg("Could not find results container")
		return r.fallback(ctx)
	}
	r.advance(StageResultsLocated)

	outlets := r.outlets.Extract(ctx, r.session, container)
	r.advance(StageExtracted)
	return outlets, nil
}

// fallback runs the generic extractor over the current page
func (r *scrapeRun) fallback(ctx context.Context) ([]Outlet, error) {
	markup, err := r.session.Markup(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page markup: %w", err)
	}
	outlets := r.generic.Extract(markup)
	r.advance(StageExtracted)
	return outlets, nil
}

// snapshot saves a screenshot and the markup of the current page
func (r *scrapeRun) snapshot(ctx context.Context, name string) {
	r.screenshot(ctx, name+".png")
	markup, err := r.session.Markup(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Failed to read page markup")
		return
	}
	r.artifacts.SaveText(name+".html", markup)
}

func (r *scrapeRun) screenshot(ctx context.Context, name string) {
	png, err := r.session.Screenshot(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Str("name", name).Msg("Screenshot unavailable")
		return
	}
	r.artifacts.SaveScreenshot(name, png)
}
