package crawler

import (
	"context"
	"errors"
	"sync"

	"sjsage522/outletscraper/internal/browser"
)

var errStale = errors.New("stale element reference")

// mockElement is a hand-built element tree for locator tests
type mockElement struct {
	label    string
	visible  bool
	text     string
	attrs    map[string]string
	children map[browser.Strategy][]browser.Element

	findErr    map[browser.Strategy]error
	visibleErr error
	textErr    error
	panicOn    bool
}

var _ browser.Element = (*mockElement)(nil)

func (m *mockElement) Find(ctx context.Context, s browser.Strategy) ([]browser.Element, error) {
	if m.panicOn {
		panic("element detached")
	}
	if err := m.findErr[s]; err != nil {
		return nil, err
	}
	return m.children[s], nil
}

func (m *mockElement) Visible(ctx context.Context) (bool, error) {
	return m.visible, m.visibleErr
}

func (m *mockElement) Text(ctx context.Context) (string, error) {
	return m.text, m.textErr
}

func (m *mockElement) Attr(ctx context.Context, name string) (string, bool, error) {
	v, ok := m.attrs[name]
	return v, ok, nil
}

func (m *mockElement) OuterHTML(ctx context.Context) (string, error) {
	return "<div>" + m.label + "</div>", nil
}

func (m *mockElement) Clear(ctx context.Context) error { return nil }
func (m *mockElement) Type(ctx context.Context, text string) error { return nil }
func (m *mockElement) Click(ctx context.Context) error { return nil }
func (m *mockElement) Submit(ctx context.Context) error { return nil }

// mockSession serves fixed markup and records Close
type mockSession struct {
	markup    string
	markupErr error
	closed    bool
}

var _ browser.Session = (*mockSession)(nil)

func (m *mockSession) Find(ctx context.Context, s browser.Strategy) ([]browser.Element, error) {
	return nil, nil
}
func (m *mockSession) Load(ctx context.Context, url string) error { return nil }
func (m *mockSession) EnterFrame(ctx context.Context, frame browser.Element) error { return nil }
func (m *mockSession) ExitFrame(ctx context.Context) error { return nil }
func (m *mockSession) Markup(ctx context.Context) (string, error) { return m.markup, m.markupErr }
func (m *mockSession) Screenshot(ctx context.Context) ([]byte, error) { return nil, errors.New("no screen") }
func (m *mockSession) Close() error {
	m.closed = true
	return nil
}

// recordingArtifacts keeps every saved artifact in memory
type recordingArtifacts struct {
	mu    sync.Mutex
	texts map[string]string
	shots map[string][]byte
}

func newRecordingArtifacts() *recordingArtifacts {
	return &recordingArtifacts{texts: make(map[string]string), shots: make(map[string][]byte)}
}

func (a *recordingArtifacts) SaveText(name, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts[name] = content
}

func (a *recordingArtifacts) SaveScreenshot(name string, png []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shots[name] = png
}
