package enforcer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/fallback"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/schema"
	"github.com/conneroisu/blockedit/internal/schema/blocks"
)

const placeholderP = `<p class="block placeholder"><br/></p>`

func newEnforcer(t *testing.T, markup string, reg *schema.Registry, opts ...Option) (*dom.Document, *Enforcer, *[]Normalization) {
	t.Helper()
	doc, err := dom.ParseDocument(markup, "div")
	require.NoError(t, err)

	var corrections []Normalization
	opts = append([]Option{
		WithRegistry(reg),
		WithLogger(logging.NewTestLogger()),
		WithDiagnostics(func(n Normalization) { corrections = append(corrections, n) }),
	}, opts...)
	return doc, New(doc, opts...), &corrections
}

func reasons(ns []Normalization) []Reason {
	out := make([]Reason, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Reason)
	}
	return out
}

func TestEnforceRoot_UnknownRootChildScenario(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{})
	reg.RegisterBlock("h1", schema.Rule{})
	reg.AllowInRoot("p", "h1")

	doc, enf, corrections := newEnforcer(t, `<div>hi</div><h1>Title</h1>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, placeholderP+`<h1>Title</h1>`, doc.Render())
	assert.Equal(t, []Reason{ReasonUnknownRootChild}, reasons(*corrections))
	assert.Equal(t, "div", dom.TagName((*corrections)[0].Original))
}

func TestEnforce_NotAllowedInRoot(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("li", schema.Rule{})
	reg.RegisterBlock("p", schema.Rule{})
	reg.AllowInRoot("p")

	doc, enf, corrections := newEnforcer(t, `<li>item</li><p>ok</p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, placeholderP+`<p>ok</p>`, doc.Render())
	assert.Equal(t, []Reason{ReasonNotAllowedInRoot}, reasons(*corrections))
}

func TestEnforce_AttributeClosure(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		AllowedAttributes: []schema.AttributeRule{{Name: "data-x", Values: []string{"a", "b"}}},
	})
	reg.AllowInRoot("p")

	doc, enf, corrections := newEnforcer(t, `<p data-x="c" data-y="z">t</p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	p := doc.Root().FirstChild
	assert.False(t, dom.HasAttr(p, "data-x"))
	assert.False(t, dom.HasAttr(p, "data-y"))
	assert.Equal(t, []Reason{ReasonAttributeRemoved, ReasonAttributeRemoved}, reasons(*corrections))
}

func TestEnforce_AttributeSanitizing(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		AllowedAttributes: []schema.AttributeRule{
			{Name: "align", Values: []string{"left", "right"}, Sanitize: schema.LowerSanitizer},
			{Name: "data-n", Sanitize: schema.IntSanitizer},
			{Name: "data-free"},
		},
	})
	reg.AllowInRoot("p")

	doc, enf, _ := newEnforcer(t, `<p align=" LEFT " data-n="x" data-free="anything">t</p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	p := doc.Root().FirstChild
	align, _ := dom.Attr(p, "align")
	assert.Equal(t, "left", align)
	assert.False(t, dom.HasAttr(p, "data-n"))
	assert.True(t, dom.HasAttr(p, "data-free"))
}

func TestEnforce_ClassForcing(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		Classes: &schema.ClassRule{Allowed: []string{"block", "empty"}},
	})
	reg.AllowInRoot("p")

	doc, enf, corrections := newEnforcer(t, `<p class="block weird">t</p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, []string{"block", "empty"}, dom.Classes(doc.Root().FirstChild))
	require.Len(t, *corrections, 1)
	assert.Equal(t, ReasonClassStripped, (*corrections)[0].Reason)
	assert.Equal(t, "weird", (*corrections)[0].Detail)
}

func TestEnforce_AllowAdditionalClasses(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		Classes: &schema.ClassRule{Allowed: []string{"block"}, AllowAdditional: true},
	})
	reg.AllowInRoot("p")

	doc, enf, _ := newEnforcer(t, `<p class="custom">t</p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, []string{"custom", "block"}, dom.Classes(doc.Root().FirstChild))
}

func TestEnforce_Children(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("ul", schema.Rule{
		AllowedChildren: []schema.ChildRule{{
			Tags:    []string{"li"},
			Classes: map[string]*schema.ClassRule{"li": {Allowed: []string{"item"}}},
		}},
	})
	reg.AllowInRoot("ul")

	doc, enf, corrections := newEnforcer(t, "<ul>\n  <li class=\"x\">a</li>\n  <div>b</div>stray</ul>", reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, `<ul><li class="item">a</li>`+placeholderP+`stray</ul>`, doc.Render())
	assert.Contains(t, reasons(*corrections), ReasonDisallowedChild)
}

func TestEnforce_BlankTextKeptWhenAllowed(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		AllowedChildren: []schema.ChildRule{{Tags: []string{"em"}, AllowText: true}},
	})
	reg.AllowInRoot("p")

	doc, enf, _ := newEnforcer(t, `<p><em>a</em> <em>b</em></p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, `<p><em>a</em> <em>b</em></p>`, doc.Render())
}

func TestEnforce_DisallowedChildUsesFallback(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("blockquote", schema.Rule{
		AllowedChildren: []schema.ChildRule{{Tags: []string{"p"}}},
	})
	reg.AllowInRoot("blockquote")

	fb := fallback.NewRegistry()
	fb.RegisterTagFallback("h1", func(orig *html.Node) *html.Node {
		p := dom.Element("p")
		p.AppendChild(dom.Text(dom.TextContent(orig)))
		return p
	})

	doc, enf, _ := newEnforcer(t, `<blockquote><h1>Quote</h1></blockquote>`, reg, WithFallbacks(fb))
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, `<blockquote><p>Quote</p></blockquote>`, doc.Render())
}

func TestEnforce_FallbackSubstitutionFirst(t *testing.T) {
	reg := schema.NewRegistry()
	blocks.Register(reg)

	fb := fallback.NewRegistry()
	fb.RegisterIntentFallback(func(el *html.Node) bool {
		return dom.TagName(el) == "div" && dom.HasClass(el, "callout")
	}, func(orig *html.Node) *html.Node {
		q := dom.Element("blockquote")
		q.AppendChild(dom.Text(dom.TextContent(orig)))
		return q
	}, 10)

	doc, enf, corrections := newEnforcer(t, `<div class="callout">Note</div>`, reg, WithFallbacks(fb))
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, `<blockquote class="block">Note</blockquote>`, doc.Render())
	assert.Equal(t, ReasonFallback, (*corrections)[0].Reason)
}

func TestEnforce_NestedUnknownTagsUntouched(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		AllowedChildren: []schema.ChildRule{{Tags: []string{"x-mention"}, AllowText: true}},
	})
	reg.AllowInRoot("p")

	doc, enf, corrections := newEnforcer(t, `<p>hi <x-mention data-user="1" class="m">@a</x-mention></p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, `<p>hi <x-mention data-user="1" class="m">@a</x-mention></p>`, doc.Render())
	assert.Empty(t, *corrections)
}

func TestEnforce_SanitizesBeforeRules(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		AllowedChildren: []schema.ChildRule{{Tags: []string{"span"}, AllowText: true}},
	})
	reg.AllowInRoot("p")

	doc, enf, _ := newEnforcer(t, `<p style="x" onclick="y()"><span><span class="k">t</span></span></p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, `<p><span class="k">t</span></p>`, doc.Render())
}

func TestEnforce_HooksRunInOrder(t *testing.T) {
	var calls []string
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		Validate: func(el *html.Node, r *schema.Registry) error {
			calls = append(calls, "validate")
			return nil
		},
		Normalize: func(el *html.Node, r *schema.Registry) error {
			calls = append(calls, "normalize")
			dom.SetAttr(el, "data-normalized", "1")
			return nil
		},
	})
	reg.AllowInRoot("p")

	doc, enf, _ := newEnforcer(t, `<p>t</p>`, reg)
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, []string{"validate", "normalize"}, calls)
	assert.True(t, dom.HasAttr(doc.Root().FirstChild, "data-normalized"))
}

func TestEnforce_HookErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	reg := schema.NewRegistry()
	reg.RegisterBlock("p", schema.Rule{
		Validate: func(*html.Node, *schema.Registry) error { return boom },
	})
	reg.AllowInRoot("p")

	_, enf, _ := newEnforcer(t, `<p>a</p><p>b</p>`, reg)
	err := enf.EnforceRoot()
	assert.ErrorIs(t, err, boom)
}

func TestEnforce_ReturnsReplacement(t *testing.T) {
	reg := schema.NewRegistry()
	reg.AllowInRoot("p")

	doc, enf, _ := newEnforcer(t, `<section>x</section>`, reg)
	got, err := enf.Enforce(doc.Root().FirstChild, true)
	require.NoError(t, err)
	assert.Equal(t, placeholderP, dom.OuterHTML(got))
	assert.Same(t, got, doc.Root().FirstChild)
}

func TestEnforce_PlaceholderText(t *testing.T) {
	reg := schema.NewRegistry()
	doc, enf, _ := newEnforcer(t, `<section>x</section>`, reg, WithPlaceholderText("Type '/'"))
	require.NoError(t, enf.EnforceRoot())

	assert.Equal(t, `<p class="block placeholder" data-placeholder="Type &#39;/&#39;"><br/></p>`, doc.Render())
}

func TestObserver_Lifecycle(t *testing.T) {
	doc, enf, _ := newEnforcer(t, ``, schema.NewRegistry())

	assert.False(t, enf.Observing())
	enf.Stop()
	assert.False(t, enf.Observing())

	enf.Start()
	enf.Start()
	assert.True(t, enf.Observing())
	assert.Equal(t, 1, doc.Subscribers(), "restart keeps a single subscription")

	enf.Stop()
	assert.False(t, enf.Observing())
	assert.Equal(t, 0, doc.Subscribers())
}

func TestObserver_EnforcesInsertedNodes(t *testing.T) {
	reg := schema.NewRegistry()
	blocks.Register(reg)

	doc, enf, corrections := newEnforcer(t, `<p class="block">first</p>`, reg)
	enf.Start()
	defer enf.Stop()

	doc.AppendChild(doc.Root(), dom.Element("div"))
	nodes, err := dom.ParseFragment(`<h2 onclick="x()">Title</h2>`, "div")
	require.NoError(t, err)
	doc.AppendChild(doc.Root(), nodes[0])
	require.NoError(t, doc.Commit())

	assert.Equal(t, `<p class="block">first</p>`+placeholderP+`<h2 class="block">Title</h2>`, doc.Render())
	assert.Equal(t, []Reason{ReasonUnknownRootChild}, reasons(*corrections))
}

func TestObserver_NestedInsertIsNotRootChild(t *testing.T) {
	reg := schema.NewRegistry()
	blocks.Register(reg)

	doc, enf, _ := newEnforcer(t, `<ul class="block"><li>a</li></ul>`, reg)
	enf.Start()
	defer enf.Stop()

	li := dom.Element("li", "style", "color:red")
	li.AppendChild(dom.Text("b"))
	doc.AppendChild(doc.Root().FirstChild, li)
	require.NoError(t, doc.Commit())

	assert.Equal(t, `<ul class="block"><li>a</li><li>b</li></ul>`, doc.Render())
}

func TestObserver_SkipsDetachedNodes(t *testing.T) {
	reg := schema.NewRegistry()
	doc, enf, corrections := newEnforcer(t, ``, reg)
	enf.Start()
	defer enf.Stop()

	div := dom.Element("div")
	doc.AppendChild(doc.Root(), div)
	doc.Remove(div)
	require.NoError(t, doc.Commit())

	assert.Empty(t, *corrections)
	assert.Equal(t, "", doc.Render())
}

func TestObserver_StoppedIgnoresMutations(t *testing.T) {
	doc, enf, corrections := newEnforcer(t, ``, schema.NewRegistry())
	enf.Start()
	enf.Stop()

	doc.AppendChild(doc.Root(), dom.Element("div"))
	require.NoError(t, doc.Commit())

	assert.Empty(t, *corrections)
	assert.Equal(t, "<div></div>", doc.Render())
}

func TestObserver_HookErrorStopsBatch(t *testing.T) {
	reg := schema.NewRegistry()
	reg.RegisterBlock("h1", schema.Rule{
		Normalize: func(*html.Node, *schema.Registry) error { return errors.New("bad hook") },
	})
	reg.AllowInRoot("h1")

	doc, enf, corrections := newEnforcer(t, ``, reg)
	enf.Start()
	defer enf.Stop()

	doc.AppendChild(doc.Root(), dom.Element("h1"))
	doc.AppendChild(doc.Root(), dom.Element("div"))
	require.NoError(t, doc.Commit())

	assert.Empty(t, *corrections, "records after the failing hook are not processed")
	assert.Equal(t, "<h1></h1><div></div>", doc.Render())
}

func TestObserver_NormalizeHookInsertsAreEnforced(t *testing.T) {
	reg := schema.NewRegistry()
	blocks.Register(reg)

	var doc *dom.Document
	inserted := false
	reg.RegisterBlock("hr", schema.Rule{
		Classes: &schema.ClassRule{Allowed: []string{"block"}},
		Normalize: func(el *html.Node, _ *schema.Registry) error {
			if inserted {
				return nil
			}
			inserted = true
			doc.InsertBefore(el.Parent, dom.Element("section"), el.NextSibling)
			return nil
		},
	})

	var enf *Enforcer
	doc, enf, _ = newEnforcer(t, ``, reg)
	enf.Start()
	defer enf.Stop()

	doc.AppendChild(doc.Root(), dom.Element("hr"))
	require.NoError(t, doc.Commit())

	assert.Equal(t, `<hr class="block"/>`+placeholderP, doc.Render())
}
