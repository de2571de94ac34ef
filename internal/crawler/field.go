package crawler

import (
	"context"
	"strings"

	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/logger"
)

// ExtractText returns the trimmed text of the first element located by
// strategies inside el, or "" when nothing is found.
func ExtractText(ctx context.Context, el browser.Finder, strategies []browser.Strategy, log *logger.Logger) string {
	found, ok := Locate(ctx, el, strategies, log)
	if !ok {
		return ""
	}
	text, err := found.Text(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read element text")
		return ""
	}
	return strings.TrimSpace(text)
}

// ScanMapLink returns the href of the first link inside el that points at
// the navigation service, in document order.
func ScanMapLink(ctx context.Context, el browser.Finder, log *logger.Logger) string {
	links, err := el.Find(ctx, browser.Tag("a"))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to list links")
		return ""
	}
	for _, link := range links {
		href, ok, err := link.Attr(ctx, "href")
		if err != nil {
			log.Debug().Err(err).Msg("Failed to read link href")
			continue
		}
		if ok && isMapLink(href) {
			return href
		}
	}
	return ""
}

func isMapLink(href string) bool {
	return strings.Contains(strings.ToLower(href), mapLinkMarker)
}
