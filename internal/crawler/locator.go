package crawler

import (
	"context"

	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/logger"
)

// Locate tries each strategy in order against scope and returns the first
// visible element found. Lookup and visibility errors count as a miss for
// that strategy only. No match is reported as false, never as an error.
func Locate(ctx context.Context, scope browser.Finder, strategies []browser.Strategy, log *logger.Logger) (browser.Element, bool) {
	for _, strategy := range strategies {
		elements, err := scope.Find(ctx, strategy)
		if err != nil {
			log.Debug().Err(err).Str("strategy", strategy.String()).Msg("Strategy lookup failed")
			continue
		}

		for _, el := range elements {
			visible, err := el.Visible(ctx)
			if err != nil {
				log.Debug().Err(err).Str("strategy", strategy.String()).Msg("Visibility check failed")
				continue
			}
			if visible {
				log.Debug().
					Str("strategy", strategy.String()).
					Int("matches", len(elements)).
					Msg("Found visible element")
				return el, true
			}
		}
	}
	return nil, false
}

// LocateAll returns every element matched by the first strategy that
// matches anything at all, visible or not.
func LocateAll(ctx context.Context, scope browser.Finder, strategies []browser.Strategy, log *logger.Logger) []browser.Element {
	for _, strategy := range strategies {
		elements, err := scope.Find(ctx, strategy)
		if err != nil {
			log.Debug().Err(err).Str("strategy", strategy.String()).Msg("Strategy lookup failed")
			continue
		}
		if len(elements) > 0 {
			log.Info().
				Str("strategy", strategy.String()).
				Int("count", len(elements)).
				Msg("Found elements")
			return elements
		}
	}
	return nil
}
