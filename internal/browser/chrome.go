package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"sjsage522/outletscraper/logger"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromeOptions configures the browser started by NewChromeSession
type ChromeOptions struct {
	Headless  bool
	UserAgent string
	Width     int
	Height    int
	Logger    *logger.Logger
}

// markAttr tags the results of an XPath query so they can be fetched
// back as DOM nodes with a CSS query.
const markAttr = "data-outlet-locator"

const xpathMarkJS = `(function(scopePath, expr, mark) {
	var scope = document;
	if (scopePath) {
		scope = document.evaluate(scopePath, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!scope) { return -1; }
	}
	var result = document.evaluate(expr, scope, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	var count = 0;
	for (var i = 0; i < result.snapshotLength; i++) {
		var node = result.snapshotItem(i);
		if (node.nodeType === Node.ELEMENT_NODE) {
			node.setAttribute(%[1]q, mark);
			count++;
		}
	}
	return count;
})(%[2]s, %[3]s, %[4]s)`

const xpathUnmarkJS = `document.querySelectorAll('[%[1]s=%[2]q]').forEach(function(n) { n.removeAttribute(%[1]q); })`

var errXPathInFrame = errors.New("xpath strategies are not evaluated inside frames")

// ChromeSession implements Session on a Chrome instance driven by chromedp.
// All actions run on the browser context created in NewChromeSession.
type ChromeSession struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc

	frame *cdp.Node
	marks atomic.Uint64
}

// NewChromeSession starts a browser and returns a session bound to it
func NewChromeSession(parent context.Context, opts ChromeOptions) (*ChromeSession, error) {
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1920, 1080
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, args ...interface{}) {
		log.Debug().Msgf(format, args...)
	}))

	// Running without actions starts the browser
	if err := chromedp.Run(ctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &ChromeSession{ctx: ctx, cancelCtx: cancelCtx, cancelAlloc: cancelAlloc}, nil
}

func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, actions...)
}

func (s *ChromeSession) Load(ctx context.Context, rawURL string) error {
	s.frame = nil
	return s.run(ctx, chromedp.Navigate(rawURL))
}

func (s *ChromeSession) Find(ctx context.Context, strategy Strategy) ([]Element, error) {
	return s.find(ctx, strategy, s.frame, false)
}

func (s *ChromeSession) find(ctx context.Context, strategy Strategy, from *cdp.Node, scoped bool) ([]Element, error) {
	if strategy.Kind == ByXPath {
		return s.findXPath(ctx, strategy.Value, from, scoped)
	}

	css, err := strategy.Selector()
	if err != nil {
		return nil, err
	}

	// AtLeast(0) keeps an absent element from blocking until timeout
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if from != nil {
		opts = append(opts, chromedp.FromNode(from))
	}

	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(css, &nodes, opts...)); err != nil {
		return nil, err
	}
	return s.wrap(nodes), nil
}

func (s *ChromeSession) findXPath(ctx context.Context, expr string, from *cdp.Node, scoped bool) ([]Element, error) {
	if s.frame != nil {
		return nil, errXPathInFrame
	}

	scopePath := ""
	if scoped && from != nil {
		scopePath = from.FullXPath()
		expr = ScopedXPath(expr)
	}

	mark := fmt.Sprintf("x%d", s.marks.Add(1))
	script, err := markScript(scopePath, expr, mark)
	if err != nil {
		return nil, err
	}

	var count int
	if err := s.run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	if count <= 0 {
		return nil, nil
	}

	var nodes []*cdp.Node
	sel := fmt.Sprintf(`[%s=%q]`, markAttr, mark)
	findErr := s.run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	unmarkErr := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(xpathUnmarkJS, markAttr, mark), nil))
	if findErr != nil {
		return nil, findErr
	}
	if unmarkErr != nil {
		return nil, unmarkErr
	}
	return s.wrap(nodes), nil
}

func markScript(scopePath, expr, mark string) (string, error) {
	args := make([]string, 0, 3)
	for _, v := range []string{scopePath, expr, mark} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		args = append(args, string(b))
	}
	return fmt.Sprintf(xpathMarkJS, markAttr, args[0], args[1], args[2]), nil
}

func (s *ChromeSession) wrap(nodes []*cdp.Node) []Element {
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{session: s, node: n})
	}
	return elements
}

// EnterFrame scopes later lookups to the content document of an iframe
func (s *ChromeSession) EnterFrame(ctx context.Context, frame Element) error {
	el, ok := frame.(*chromeElement)
	if !ok {
		return fmt.Errorf("chrome session cannot enter %T", frame)
	}
	switch strings.ToUpper(el.node.NodeName) {
	case "IFRAME", "FRAME":
	default:
		return fmt.Errorf("element <%s> is not a frame", strings.ToLower(el.node.NodeName))
	}
	s.frame = el.node
	return nil
}

func (s *ChromeSession) ExitFrame(ctx context.Context) error {
	s.frame = nil
	return nil
}

func (s *ChromeSession) Markup(ctx context.Context) (string, error) {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	var markup string
	if err := s.run(ctx, chromedp.OuterHTML("html", &markup, opts...)); err != nil {
		return "", err
	}
	return markup, nil
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close shuts the browser down
func (s *ChromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancelCtx()
	s.cancelAlloc()
	return err
}

func (s *ChromeSession) resolve(ctx context.Context, ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || parsed.IsAbs() {
		return ref
	}
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return ref
	}
	base, err := url.Parse(location)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// chromeElement is a node of the live DOM
type chromeElement struct {
	session *ChromeSession
	node    *cdp.Node
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Find(ctx context.Context, strategy Strategy) ([]Element, error) {
	return e.session.find(ctx, strategy, e.node, true)
}

// renderedJS is called on an element; it mirrors WebDriver's displayed
// check for styles that keep a box: hidden visibility and zero opacity.
const renderedJS = `function() {
	for (let el = this; el && el.nodeType === 1; el = el.parentElement) {
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.opacity === '0') {
			return false;
		}
	}
	const visibility = window.getComputedStyle(this).visibility;
	return visibility !== 'hidden' && visibility !== 'collapse';
}`

// Visible reports whether the node has a non-empty box and is not hidden
// by its computed style
func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var (
		model    *dom.BoxModel
		rendered bool
	)
	err := e.session.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		model, err = dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil || model.Width <= 0 || model.Height <= 0 {
			return err
		}

		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exp, err := runtime.CallFunctionOn(renderedJS).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		return json.Unmarshal(res.Value, &rendered)
	}))
	if err != nil || model == nil {
		// no box model: not rendered
		return false, nil
	}
	return rendered, nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.session.run(ctx, chromedp.JavascriptAttribute(e.ids(), "innerText", &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}

func (e *chromeElement) Attr(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := e.session.run(ctx, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, err
	}
	if ok && (name == "href" || name == "src") {
		value = e.session.resolve(ctx, value)
	}
	return value, ok, nil
}

func (e *chromeElement) OuterHTML(ctx context.Context) (string, error) {
	var markup string
	if err := e.session.run(ctx, chromedp.OuterHTML(e.ids(), &markup, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return markup, nil
}

func (e *chromeElement) Clear(ctx context.Context) error {
	return e.session.run(ctx, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

func (e *chromeElement) Type(ctx context.Context, text string) error {
	return e.session.run(ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.session.run(ctx, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *chromeElement) Submit(ctx context.Context) error {
	return e.session.run(ctx, chromedp.SendKeys(e.ids(), kb.Enter, chromedp.ByNodeID))
}
