package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"sjsage522/outletscraper/internal/crawler"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/services/publisher"
	"sjsage522/outletscraper/services/store"
)

// ErrBlocked is returned by RunOnce when the run guard holds the target
var ErrBlocked = errors.New("target is blocked after an empty run")

// Runner performs one scrape of a target
type Runner interface {
	Run(ctx context.Context) []crawler.Outlet
	Target() string
}

// Guard remembers targets that recently produced nothing
type Guard interface {
	Blocked(target string) (bool, time.Duration, error)
	Block(target string) error
	Release(target string) error
}

// Worker runs the scraper and hands its results to the store and publisher
type Worker struct {
	ctx       context.Context
	scraper   Runner
	store     store.Store
	publisher publisher.Publisher
	guard     Guard
	logger    *logger.Logger
	interval  time.Duration
	debugDir  string
}

// NewWorker creates a new worker. publisher and guard may be nil.
func NewWorker(
	ctx context.Context,
	scraper Runner,
	st store.Store,
	pub publisher.Publisher,
	guard Guard,
	interval time.Duration,
) *Worker {
	return &Worker{
		ctx:       ctx,
		scraper:   scraper,
		store:     st,
		publisher: pub,
		guard:     guard,
		logger:    logger.ForWorker(),
		interval:  interval,
	}
}

// WithLogger replaces the worker logger
func (w *Worker) WithLogger(log *logger.Logger) *Worker {
	w.logger = log
	return w
}

// WithDebugDir points the worker at the debug artifact directory it lists
// after an empty run
func (w *Worker) WithDebugDir(dir string) *Worker {
	w.debugDir = dir
	return w
}

// Start runs once when no interval is set, otherwise every interval until
// the context is cancelled. Runs never overlap.
func (w *Worker) Start() error {
	if w.interval <= 0 {
		_, err := w.RunOnce()
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(); err != nil && !errors.Is(err, ErrBlocked) {
			w.logger.Error().Err(err).Msg("Scrape cycle failed")
		}

		select {
		case <-w.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce scrapes the target and replaces the stored outlets. An empty
// result leaves the store untouched and blocks the target.
func (w *Worker) RunOnce() (int, error) {
	target := w.scraper.Target()

	if w.guard != nil {
		blocked, blockTime, err := w.guard.Blocked(target)
		switch {
		case err != nil:
			w.logger.Warn().Err(err).Msg("Failed to check run guard")
		case blocked:
			w.logger.Info().
				Str("target", target).
				Dur("block_time", blockTime).
				Msg("Target is blocked, skipping run")
			return 0, ErrBlocked
		}
	}

	start := time.Now()
	outlets := w.scraper.Run(w.ctx)
	w.logger.Info().
		Int("count", len(outlets)).
		Dur("elapsed", time.Since(start)).
		Msg("Scrape run finished")

	if len(outlets) == 0 {
		w.logger.Warn().Msg("No outlets were scraped")
		w.reportDebugFiles()
		if w.guard != nil {
			if err := w.guard.Block(target); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to block target")
			}
		}
		return 0, nil
	}

	if err := w.store.ReplaceAll(w.ctx, outlets); err != nil {
		return 0, err
	}
	w.logger.Info().Int("count", len(outlets)).Msg("Stored outlets")

	if w.guard != nil {
		if err := w.guard.Release(target); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to release target")
		}
	}

	w.publish(outlets)
	return len(outlets), nil
}

// publish announces each outlet on the stream, then trims it
func (w *Worker) publish(outlets []crawler.Outlet) {
	if w.publisher == nil {
		return
	}

	for i, outlet := range outlets {
		data, err := json.Marshal(outlet)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to encode outlet")
			continue
		}
		if err := w.publisher.Publish("outlet", data); err != nil {
			w.logger.Error().Err(err).Str("name", outlet.Name).Msg("Failed to publish outlet")
			continue
		}
		if i == 0 {
			w.logger.Debug().RawJSON("outlet", data).Msg("Published first outlet")
		}
	}

	if err := w.publisher.TrimStreams(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to trim streams")
	}
}

// reportDebugFiles lists the saved artifacts to help diagnose an empty run
func (w *Worker) reportDebugFiles() {
	if w.debugDir == "" {
		return
	}
	entries, err := os.ReadDir(w.debugDir)
	if err != nil || len(entries) == 0 {
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	w.logger.Info().
		Str("dir", w.debugDir).
		Strs("files", names).
		Msg("Debug files available; check whether the page structure changed")
}
