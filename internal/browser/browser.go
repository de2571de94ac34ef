// Package browser is the narrow DOM capability the extraction core needs:
// query by strategy, read visibility/text/attributes, interact with form
// controls, and move in and out of embedded documents. ChromeSession drives
// a live browser, StaticSession works on fetched markup.
package browser

import "context"

// Finder is anything elements can be looked up in: a whole page or a
// single element.
type Finder interface {
	Find(ctx context.Context, s Strategy) ([]Element, error)
}

// Element is a handle to one node of the current page
type Element interface {
	Finder

	Visible(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	OuterHTML(ctx context.Context) (string, error)

	Clear(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Click(ctx context.Context) error
	// Submit sends the equivalent of pressing Enter in the element
	Submit(ctx context.Context) error
}

// Session is a page loaded in some browser
type Session interface {
	Finder

	Load(ctx context.Context, url string) error
	EnterFrame(ctx context.Context, frame Element) error
	ExitFrame(ctx context.Context) error
	Markup(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
