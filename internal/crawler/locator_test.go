package crawler

import (
	"context"
	"errors"
	"testing"

	"sjsage522/outletscraper/internal/browser"
	"sjsage522/outletscraper/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate(t *testing.T) {
	ctx := context.Background()
	log := logger.Nop()

	hidden := &mockElement{label: "hidden", visible: false}
	shown := &mockElement{label: "shown", visible: true}
	later := &mockElement{label: "later", visible: true}

	first := browser.ID("first")
	second := browser.Class("second")
	third := browser.Tag("h3")

	t.Run("skips invisible match of earlier strategy", func(t *testing.T) {
		scope := &mockElement{children: map[browser.Strategy][]browser.Element{
			first:  {hidden},
			second: {shown},
			third:  {later},
		}}
		el, ok := Locate(ctx, scope, []browser.Strategy{first, second, third}, log)
		require.True(t, ok)
		assert.Same(t, shown, el)
	})

	t.Run("first visible of several matches", func(t *testing.T) {
		scope := &mockElement{children: map[browser.Strategy][]browser.Element{
			first: {hidden, later, shown},
		}}
		el, ok := Locate(ctx, scope, []browser.Strategy{first}, log)
		require.True(t, ok)
		assert.Same(t, later, el)
	})

	t.Run("lookup error falls through", func(t *testing.T) {
		scope := &mockElement{
			findErr:  map[browser.Strategy]error{first: errors.New("invalid selector")},
			children: map[browser.Strategy][]browser.Element{first: {later}, second: {shown}},
		}
		el, ok := Locate(ctx, scope, []browser.Strategy{first, second}, log)
		require.True(t, ok)
		assert.Same(t, shown, el)
	})

	t.Run("visibility error counts as miss", func(t *testing.T) {
		stale := &mockElement{visible: true, visibleErr: errStale}
		scope := &mockElement{children: map[browser.Strategy][]browser.Element{
			first:  {stale},
			second: {shown},
		}}
		el, ok := Locate(ctx, scope, []browser.Strategy{first, second}, log)
		require.True(t, ok)
		assert.Same(t, shown, el)
	})

	t.Run("nothing visible", func(t *testing.T) {
		scope := &mockElement{children: map[browser.Strategy][]browser.Element{first: {hidden}}}
		el, ok := Locate(ctx, scope, []browser.Strategy{first, second, third}, log)
		assert.False(t, ok)
		assert.Nil(t, el)
	})
}

func TestLocateAll(t *testing.T) {
	ctx := context.Background()
	a := &mockElement{label: "a"}
	b := &mockElement{label: "b", visible: true}

	scope := &mockElement{children: map[browser.Strategy][]browser.Element{
		browser.Tag("li"):  {a, b},
		browser.Tag("div"): {b},
	}}

	got := LocateAll(ctx, scope, []browser.Strategy{browser.Class("store-item"), browser.Tag("li"), browser.Tag("div")}, logger.Nop())
	assert.Equal(t, []browser.Element{a, b}, got)

	assert.Empty(t, LocateAll(ctx, &mockElement{}, OutletGroupStrategies, logger.Nop()))
}

func TestLocate_StaticSession(t *testing.T) {
	ctx := context.Background()
	session := browser.NewStaticSession(nil)
	require.NoError(t, session.LoadHTML("https://example.com/", `<html><body>
<input id="addressInput" type="hidden">
<input name="address" style="display:none">
<input class="store-search-input search" placeholder="Search by Postcode, City or State">
</body></html>`))

	el, ok := Locate(ctx, session, SearchInputStrategies, logger.Nop())
	require.True(t, ok)

	placeholder, _, err := el.Attr(ctx, "placeholder")
	require.NoError(t, err)
	assert.Equal(t, "Search by Postcode, City or State", placeholder)
}
