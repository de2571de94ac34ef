package crawler

import "sjsage522/outletscraper/internal/browser"

// Strategy lists are tried in order; the first one that yields a visible
// element wins. Path expressions evaluated against an element only see
// that element's subtree.
var (
	SearchInputStrategies = []browser.Strategy{
		browser.ID("addressInput"),
		browser.Name("address"),
		browser.XPath("//input[@placeholder='Search by Postcode, City or State']"),
		browser.XPath("//input[contains(@class, 'search')]"),
		browser.CSS(".store-search-input"),
		browser.Tag("input"),
	}

	SearchButtonStrategies = []browser.Strategy{
		browser.ID("searchButton"),
		browser.XPath("//button[contains(text(), 'Search')]"),
		browser.XPath("//button[contains(@class, 'search')]"),
		browser.CSS("button[type='submit']"),
		browser.Tag("button"),
	}

	ResultsContainerStrategies = []browser.Strategy{
		browser.Class("results-list"),
		browser.Class("store-list"),
		browser.Class("location-list"),
		browser.XPath("//div[contains(@class, 'results')]"),
		browser.XPath("//div[contains(@class, 'store')]"),
		browser.XPath("//div[contains(@class, 'location')]"),
	}

	// OutletGroupStrategies go from named classes to bare container tags
	OutletGroupStrategies = []browser.Strategy{
		browser.Class("results-list-item"),
		browser.Class("store-item"),
		browser.Class("location-item"),
		browser.XPath("//div[contains(@class, 'item')]"),
		browser.Tag("li"),
		browser.Tag("div"),
	}

	NameStrategies = []browser.Strategy{
		browser.Class("location-name"),
		browser.Class("store-name"),
		browser.Tag("h3"),
		browser.Tag("h4"),
	}

	AddressStrategies = []browser.Strategy{
		browser.Class("address-line"),
		browser.Class("store-address"),
		browser.XPath("//div[contains(@class, 'address')]"),
		browser.Tag("address"),
	}

	HoursStrategies = []browser.Strategy{
		browser.XPath("//div[contains(text(), 'Opening Hours')]"),
		browser.XPath("//div[contains(text(), 'Hours')]"),
		browser.XPath("//span[contains(text(), 'Opening Hours')]"),
		browser.XPath("//span[contains(text(), 'Hours')]"),
	}
)

// mapLinkMarker identifies links to the navigation service
const mapLinkMarker = "waze"
