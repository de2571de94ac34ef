package crawler

import (
	"strings"

	"sjsage522/outletscraper/logger"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	nameSelector       = "h3, h4"
	anchorNameSelector = "h3, h4, strong"
	addressSelector    = "address, div"
	anchorScopeFilter  = "div, li"
)

// GenericExtractor recovers outlets from page markup when no structured
// results container could be used. It works on a static parse only.
type GenericExtractor struct {
	logger    *logger.Logger
	artifacts Artifacts
}

// NewGenericExtractor creates a generic extractor
func NewGenericExtractor(artifacts Artifacts, log *logger.Logger) *GenericExtractor {
	if artifacts == nil {
		artifacts = NopArtifacts{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GenericExtractor{logger: log, artifacts: artifacts}
}

// Extract parses markup and applies the page-wide heuristics. It always
// returns a non-nil slice.
func (g *GenericExtractor) Extract(markup string) []Outlet {
	g.logger.Info().Msg("Trying to extract outlets using generic approach")
	g.artifacts.SaveText("generic_extraction.html", markup)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to parse page markup")
		return []Outlet{}
	}
	return g.ExtractDocument(doc)
}

// ExtractDocument runs positional pairing first and falls back to
// walking up from map links when pairing yields nothing.
func (g *GenericExtractor) ExtractDocument(doc *goquery.Document) []Outlet {
	stores := doc.Find("[class]").FilterFunction(classContains("store", "location"))
	names := doc.Find(nameSelector)
	addresses := doc.Find(addressSelector).FilterFunction(classContains("address"))
	links := doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isMapLink(s.AttrOr("href", ""))
	})

	g.logger.Info().
		Int("store_elements", stores.Length()).
		Int("name_elements", names.Length()).
		Int("address_elements", addresses.Length()).
		Int("map_links", links.Length()).
		Msg("Generic extraction candidates")

	outlets := pairByPosition(names, addresses)
	if len(outlets) > 0 {
		g.logger.Info().Int("count", len(outlets)).Msg("Matched names with addresses by position")
	}

	if len(outlets) == 0 && links.Length() > 0 {
		g.logger.Info().Msg("Extracting outlets from map links")
		outlets = fromMapLinks(links)
	}

	g.logger.Info().Int("count", len(outlets)).Msg("Generic extraction finished")
	return outlets
}

// pairByPosition pairs the i-th name with the i-th address. It assumes
// document order reflects association, which is only a heuristic: it is
// skipped unless both sets are non-empty and equally long.
func pairByPosition(names, addresses *goquery.Selection) []Outlet {
	outlets := []Outlet{}
	if names.Length() == 0 || names.Length() != addresses.Length() {
		return outlets
	}
	for i := 0; i < names.Length(); i++ {
		outlet := Outlet{
			Name:    strippedText(names.Eq(i)),
			Address: strippedText(addresses.Eq(i)),
		}
		if outlet.Valid() {
			outlets = append(outlets, outlet)
		}
	}
	return outlets
}

// fromMapLinks builds one outlet per map link from its nearest block
// container. Links sharing a container produce duplicates.
func fromMapLinks(links *goquery.Selection) []Outlet {
	outlets := []Outlet{}
	links.Each(func(_ int, link *goquery.Selection) {
		scope := link.ParentsFiltered(anchorScopeFilter).First()
		if scope.Length() == 0 {
			return
		}

		var outlet Outlet
		if name := scope.Find(anchorNameSelector).First(); name.Length() > 0 {
			outlet.Name = strippedText(name)
		}
		if address := scope.Find(addressSelector).FilterFunction(classContains("address")).First(); address.Length() > 0 {
			outlet.Address = strippedText(address)
		} else if outlet.Name != "" {
			outlet.Address = strings.Replace(strippedText(scope), outlet.Name, "", 1)
		}
		outlet.MapLink = link.AttrOr("href", "")

		if outlet.Valid() {
			outlets = append(outlets, outlet)
		}
	})
	return outlets
}

// classContains matches elements whose class attribute contains any of
// the given substrings, ignoring case.
func classContains(parts ...string) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		if class == "" {
			return false
		}
		for _, part := range parts {
			if strings.Contains(class, part) {
				return true
			}
		}
		return false
	}
}

// strippedText concatenates the trimmed text nodes below s, skipping
// scripts, styles and comments.
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.TrimSpace(n.Data))
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "template":
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}
