package crawler

import (
	"context"
	"fmt"

	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/logger"
	"sjsage522/outletscraper/pkg/errors"
)

// OutletExtractor turns the elements of a results container into outlets
type OutletExtractor struct {
	generic   *GenericExtractor
	artifacts Artifacts
	logger    *logger.Logger
}

// NewOutletExtractor creates an extractor that falls back to generic when
// the container holds no outlet elements.
func NewOutletExtractor(generic *GenericExtractor, artifacts Artifacts, log *logger.Logger) *OutletExtractor {
	if artifacts == nil {
		artifacts = NopArtifacts{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if generic == nil {
		generic = NewGenericExtractor(artifacts, log)
	}
	return &OutletExtractor{generic: generic, artifacts: artifacts, logger: log}
}

// Extract returns the valid outlets found in container, in document order.
// Without candidate elements the whole current page goes through the
// generic extractor instead.
func (e *OutletExtractor) Extract(ctx context.Context, session browser.Session, container browser.Element) []Outlet {
	e.logger.Info().Msg("Extracting outlets from results container")

	candidates := LocateAll(ctx, container, OutletGroupStrategies, e.logger)
	if len(candidates) == 0 {
		e.logger.Warn().Msg("Could not find outlet elements, trying with the entire page")
		markup, err := session.Markup(ctx)
		if err != nil {
			e.logger.Error().Err(err).Msg("Failed to read page markup")
			return []Outlet{}
		}
		return e.generic.Extract(markup)
	}

	outlets := make([]Outlet, 0, len(candidates))
	for i, candidate := range candidates {
		outlet, err := e.extractCandidate(ctx, i, candidate)
		if err != nil {
			e.logger.Warn().Err(err).Int("index", i).Msg("Error processing outlet element")
			continue
		}
		if !outlet.Valid() {
			continue
		}
		e.logger.Debug().Str("name", outlet.Name).Msg("Extracted outlet")
		outlets = append(outlets, outlet)
	}
	return outlets
}

func (e *OutletExtractor) extractCandidate(ctx context.Context, i int, el browser.Element) (outlet Outlet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewAutomation("outlet", fmt.Sprintf("outlet element %d", i), fmt.Errorf("panic: %v", r))
		}
	}()

	if markup, err := el.OuterHTML(ctx); err == nil {
		e.artifacts.SaveText(fmt.Sprintf("outlet_%d.html", i), markup)
	} else {
		e.logger.Debug().Err(err).Int("index", i).Msg("Failed to read outlet markup")
	}

	outlet = Outlet{
		Name:           ExtractText(ctx, el, NameStrategies, e.logger),
		Address:        ExtractText(ctx, el, AddressStrategies, e.logger),
		OperatingHours: ExtractText(ctx, el, HoursStrategies, e.logger),
		MapLink:        ScanMapLink(ctx, el, e.logger),
	}
	return outlet, nil
}
