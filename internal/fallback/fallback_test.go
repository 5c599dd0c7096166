package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/placeholder"
)

func factoryFor(tag string) Factory {
	return func(*html.Node) *html.Node { return dom.Element(tag) }
}

func always(*html.Node) bool { return true }

func TestFallbackFor_TagMapping(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTagFallback("DIV", factoryFor("p"))

	got := reg.FallbackFor(dom.Element("div"))
	require.NotNil(t, got)
	assert.Equal(t, "p", dom.TagName(got))

	assert.Nil(t, reg.FallbackFor(dom.Element("section")))
}

func TestFallbackFor_LastTagRegistrationWins(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTagFallback("div", factoryFor("p"))
	reg.RegisterTagFallback("div", factoryFor("h1"))

	assert.Equal(t, "h1", dom.TagName(reg.FallbackFor(dom.Element("div"))))
	tags, _ := reg.Len()
	assert.Equal(t, 1, tags)
}

func TestFallbackFor_TagBeatsIntent(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterIntentFallback(always, factoryFor("blockquote"), 100)
	reg.RegisterTagFallback("div", factoryFor("p"))

	assert.Equal(t, "p", dom.TagName(reg.FallbackFor(dom.Element("div"))))
	assert.Equal(t, "blockquote", dom.TagName(reg.FallbackFor(dom.Element("section"))))
}

func TestFallbackFor_IntentPriority(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterIntentFallback(always, factoryFor("h2"), 0)
	reg.RegisterIntentFallback(always, factoryFor("h1"), 10)
	reg.RegisterIntentFallback(always, factoryFor("h3"), 0)

	assert.Equal(t, "h1", dom.TagName(reg.FallbackFor(dom.Element("x-any"))))
}

func TestFallbackFor_IntentTiesKeepRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterIntentFallback(always, factoryFor("h2"), 5)
	reg.RegisterIntentFallback(always, factoryFor("h3"), 5)
	reg.RegisterIntentFallback(func(*html.Node) bool { return false }, factoryFor("h1"), 50)

	assert.Equal(t, "h2", dom.TagName(reg.FallbackFor(dom.Element("x-any"))))
}

func TestFallbackFor_PredicateSeesElement(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterIntentFallback(func(el *html.Node) bool {
		return dom.HasClass(el, "callout")
	}, factoryFor("blockquote"), 0)

	assert.NotNil(t, reg.FallbackFor(dom.Element("div", "class", "callout")))
	assert.Nil(t, reg.FallbackFor(dom.Element("div")))
}

func TestFallbackFor_NilFactoryResult(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTagFallback("div", func(*html.Node) *html.Node { return nil })

	assert.Nil(t, reg.FallbackFor(dom.Element("div")))
}

func TestFallbackFor_AppliesPlaceholder(t *testing.T) {
	reg := NewRegistry(WithPlaceholder(placeholder.Options{Text: "Empty"}))
	reg.RegisterTagFallback("div", factoryFor("p"))

	got := reg.FallbackFor(dom.Element("div"))
	assert.Equal(t, `<p data-placeholder="Empty"><br/></p>`, dom.OuterHTML(got))
}

func TestReset(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTagFallback("div", factoryFor("p"))
	reg.RegisterIntentFallback(always, factoryFor("p"), 0)

	reg.Reset()
	tags, intents := reg.Len()
	assert.Zero(t, tags)
	assert.Zero(t, intents)
	assert.Nil(t, reg.FallbackFor(dom.Element("div")))
}
