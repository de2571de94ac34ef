package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"sjsage522/outletscraper/helpers"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// FetchFunc retrieves the markup of a URL as UTF-8
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

var (
	errNoPage         = errors.New("no page loaded")
	errNoStaticAction = errors.New("element has no static action")
)

// StaticSession implements Session over fetched markup. It has no script
// engine: forms are submitted as GET requests and visibility is judged
// from attributes and inline styles only.
type StaticSession struct {
	fetch FetchFunc

	page    *goquery.Document
	pageURL *url.URL

	// current is the page itself or the frame document entered last
	current    *goquery.Document
	currentURL *url.URL
}

// NewStaticSession creates a static session. A nil fetch uses
// helpers.FetchWithRandomHeaders.
func NewStaticSession(fetch FetchFunc) *StaticSession {
	if fetch == nil {
		fetch = helpers.FetchWithRandomHeaders
	}
	return &StaticSession{fetch: fetch}
}

// Load fetches and parses a page, replacing the current one
func (s *StaticSession) Load(ctx context.Context, rawURL string) error {
	doc, u, err := s.fetchDocument(ctx, rawURL)
	if err != nil {
		return err
	}
	s.page, s.pageURL = doc, u
	s.current, s.currentURL = doc, u
	return nil
}

// LoadHTML installs markup directly as the current page
func (s *StaticSession) LoadHTML(pageURL, markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	u, _ := url.Parse(pageURL)
	s.page, s.pageURL = doc, u
	s.current, s.currentURL = doc, u
	return nil
}

func (s *StaticSession) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	body, err := s.fetch(ctx, u.String())
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, u, nil
}

// Find looks up elements in the current document
func (s *StaticSession) Find(ctx context.Context, strategy Strategy) ([]Element, error) {
	if s.current == nil {
		return nil, errNoPage
	}
	return s.find(s.current.Selection, strategy, false)
}

func (s *StaticSession) find(scope *goquery.Selection, strategy Strategy, scoped bool) ([]Element, error) {
	if strategy.Kind == ByXPath {
		expr := strategy.Value
		if scoped {
			expr = ScopedXPath(expr)
		}
		var elements []Element
		for _, top := range scope.Nodes {
			nodes, err := htmlquery.QueryAll(top, expr)
			if err != nil {
				return nil, fmt.Errorf("xpath %q: %w", expr, err)
			}
			for _, n := range nodes {
				if n.Type == html.ElementNode {
					elements = append(elements, s.wrap(n))
				}
			}
		}
		return elements, nil
	}

	css, err := strategy.Selector()
	if err != nil {
		return nil, err
	}
	matcher, err := cascadia.Compile(css)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", css, err)
	}

	matched := scope.FindMatcher(matcher)
	elements := make([]Element, 0, matched.Length())
	for _, n := range matched.Nodes {
		elements = append(elements, s.wrap(n))
	}
	return elements, nil
}

func (s *StaticSession) wrap(n *html.Node) *staticElement {
	return &staticElement{session: s, sel: goquery.NewDocumentFromNode(n).Selection}
}

// EnterFrame switches lookups into an iframe's document, read from its
// srcdoc attribute or fetched from its src.
func (s *StaticSession) EnterFrame(ctx context.Context, frame Element) error {
	el, ok := frame.(*staticElement)
	if !ok {
		return fmt.Errorf("static session cannot enter %T", frame)
	}
	if tag := goquery.NodeName(el.sel); tag != "iframe" && tag != "frame" {
		return fmt.Errorf("element <%s> is not a frame", tag)
	}

	if srcdoc, ok := el.sel.Attr("srcdoc"); ok {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(srcdoc))
		if err != nil {
			return fmt.Errorf("failed to parse srcdoc: %w", err)
		}
		s.current, s.currentURL = doc, s.pageURL
		return nil
	}

	src, ok := el.sel.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return fmt.Errorf("frame has neither src nor srcdoc")
	}
	doc, u, err := s.fetchDocument(ctx, s.resolve(src))
	if err != nil {
		return err
	}
	s.current, s.currentURL = doc, u
	return nil
}

// ExitFrame returns to the top-level page
func (s *StaticSession) ExitFrame(ctx context.Context) error {
	s.current, s.currentURL = s.page, s.pageURL
	return nil
}

// Markup returns the markup of the current document
func (s *StaticSession) Markup(ctx context.Context) (string, error) {
	if s.current == nil {
		return "", errNoPage
	}
	return s.current.Html()
}

// Screenshot is not available without a rendering engine
func (s *StaticSession) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, errors.New("static session cannot take screenshots")
}

// Close releases nothing; it exists to satisfy Session
func (s *StaticSession) Close() error {
	s.page, s.current = nil, nil
	return nil
}

func (s *StaticSession) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if s.currentURL == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return s.currentURL.ResolveReference(parsed).String()
}

// submitForm sends a GET request built from the form's named controls.
// clicked is the submit control that triggered it, if any.
func (s *StaticSession) submitForm(ctx context.Context, form *goquery.Selection, clicked *goquery.Selection) error {
	method := strings.ToLower(strings.TrimSpace(form.AttrOr("method", "get")))
	if method != "get" && method != "" {
		return fmt.Errorf("static session cannot submit %s forms", method)
	}

	action := s.resolve(form.AttrOr("action", ""))
	target, err := url.Parse(action)
	if err != nil {
		return fmt.Errorf("invalid form action %q: %w", action, err)
	}

	values := url.Values{}
	form.Find("input[name], select[name], textarea[name]").Each(func(_ int, control *goquery.Selection) {
		if _, disabled := control.Attr("disabled"); disabled {
			return
		}
		name := control.AttrOr("name", "")
		switch goquery.NodeName(control) {
		case "select":
			option := control.Find("option[selected]").First()
			if option.Length() == 0 {
				option = control.Find("option").First()
			}
			values.Add(name, option.AttrOr("value", strings.TrimSpace(option.Text())))
		case "textarea":
			values.Add(name, control.AttrOr("value", control.Text()))
		default:
			switch strings.ToLower(control.AttrOr("type", "text")) {
			case "submit", "button", "image", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := control.Attr("checked"); !checked {
					return
				}
				values.Add(name, control.AttrOr("value", "on"))
			default:
				values.Add(name, control.AttrOr("value", ""))
			}
		}
	})
	if clicked != nil {
		if name, ok := clicked.Attr("name"); ok && name != "" {
			values.Add(name, clicked.AttrOr("value", ""))
		}
	}

	target.RawQuery = values.Encode()
	return s.Load(ctx, target.String())
}

// staticElement is one node of a StaticSession document
type staticElement struct {
	session *StaticSession
	sel     *goquery.Selection
}

func (e *staticElement) Find(ctx context.Context, strategy Strategy) ([]Element, error) {
	return e.session.find(e.sel, strategy, true)
}

// Visible reports false for nodes that markup alone marks as not rendered
func (e *staticElement) Visible(ctx context.Context) (bool, error) {
	node := e.sel.Get(0)
	if node == nil {
		return false, nil
	}
	if node.Data == "input" && strings.EqualFold(e.sel.AttrOr("type", ""), "hidden") {
		return false, nil
	}
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.Data {
		case "head", "script", "style", "template", "noscript", "title":
			return false, nil
		}
		for _, attr := range n.Attr {
			switch attr.Key {
			case "hidden":
				return false, nil
			case "style":
				style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false, nil
				}
			}
		}
	}
	return true, nil
}

// Text approximates innerText: line breaks at <br> and block boundaries,
// whitespace runs collapsed within a line, non-rendered nodes skipped.
func (e *staticElement) Text(ctx context.Context) (string, error) {
	var b strings.Builder
	for _, n := range e.sel.Nodes {
		renderText(&b, n)
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "tr": true,
	"ul": true,
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "template", "noscript", "head", "title":
			return
		case "br":
			b.WriteByte('\n')
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

func (e *staticElement) Attr(ctx context.Context, name string) (string, bool, error) {
	value, ok := e.sel.Attr(name)
	if !ok {
		return "", false, nil
	}
	if name == "href" || name == "src" || name == "action" {
		value = e.session.resolve(value)
	}
	return value, true, nil
}

func (e *staticElement) OuterHTML(ctx context.Context) (string, error) {
	return goquery.OuterHtml(e.sel)
}

func (e *staticElement) Clear(ctx context.Context) error {
	e.sel.SetAttr("value", "")
	return nil
}

func (e *staticElement) Type(ctx context.Context, text string) error {
	e.sel.SetAttr("value", e.sel.AttrOr("value", "")+text)
	return nil
}

// Click follows links and submits forms; anything else has no static effect
func (e *staticElement) Click(ctx context.Context) error {
	switch goquery.NodeName(e.sel) {
	case "a":
		if href, ok := e.sel.Attr("href"); ok && strings.TrimSpace(href) != "" {
			return e.session.Load(ctx, e.session.resolve(href))
		}
	case "button":
		if !strings.EqualFold(e.sel.AttrOr("type", "submit"), "submit") {
			break
		}
		return e.submitEnclosing(ctx, e.sel)
	case "input":
		switch strings.ToLower(e.sel.AttrOr("type", "")) {
		case "submit", "image":
			return e.submitEnclosing(ctx, e.sel)
		}
	}
	return errNoStaticAction
}

func (e *staticElement) Submit(ctx context.Context) error {
	return e.submitEnclosing(ctx, nil)
}

func (e *staticElement) submitEnclosing(ctx context.Context, clicked *goquery.Selection) error {
	form := e.sel.Closest("form")
	if form.Length() == 0 {
		return fmt.Errorf("<%s> is not inside a form", goquery.NodeName(e.sel))
	}
	return e.session.submitForm(ctx, form, clicked)
}
