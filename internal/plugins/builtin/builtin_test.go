package builtin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/assets"
	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/enforcer"
	"github.com/conneroisu/blockedit/internal/fallback"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/overlay"
	"github.com/conneroisu/blockedit/internal/plugins"
	"github.com/conneroisu/blockedit/internal/schema"
)

type menuExt struct {
	plugins.BaseExtension
	items []MenuItem
	err   error
	panic bool
}

func (m *menuExt) Items(*html.Node) ([]MenuItem, error) {
	if m.panic {
		panic("menu exploded")
	}
	return m.items, m.err
}

type shortcutExt struct {
	plugins.BaseExtension
	shortcuts []Shortcut
}

func (s *shortcutExt) Shortcuts() ([]Shortcut, error) { return s.shortcuts, nil }

func base(name, target string) plugins.BaseExtension {
	return plugins.BaseExtension{ExtensionName: name, TargetName: target}
}

func build(t *testing.T, doc *dom.Document, hosts []plugins.Plugin, exts ...plugins.Extension) *plugins.Engine {
	t.Helper()
	engine := plugins.NewEngine(logging.NewTestLogger())
	for _, h := range hosts {
		require.NoError(t, engine.Register(h))
	}
	for _, ext := range exts {
		require.NoError(t, engine.Extend(ext))
	}
	require.NoError(t, engine.Build(context.Background(), doc))
	return engine
}

func parse(t *testing.T, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseDocument(markup, "div")
	require.NoError(t, err)
	return doc
}

func rootTags(doc *dom.Document) []string {
	var tags []string
	for _, c := range dom.ElementChildren(doc.Root()) {
		tags = append(tags, dom.TagName(c))
	}
	return tags
}

func newSchemaPlugin(opts ...enforcer.Option) *SchemaPlugin {
	return NewSchemaPlugin(schema.NewRegistry(), fallback.NewRegistry(), logging.NewTestLogger(), opts...)
}

func TestSchemaPlugin_NormalizesOnSetup(t *testing.T) {
	doc := parse(t, `<div>hello</div><h1 style="color:red">Title</h1><x-widget>bad</x-widget>`)
	sp := newSchemaPlugin()
	build(t, doc, []plugins.Plugin{sp}, NewDefaultBlocks())

	assert.Equal(t, []string{"p", "h1", "p"}, rootTags(doc))
	children := dom.ElementChildren(doc.Root())
	assert.Equal(t, "hello", dom.TextContent(children[0]))
	assert.True(t, dom.HasClass(children[0], "block"))
	assert.False(t, dom.HasAttr(children[1], "style"))
	assert.True(t, dom.HasClass(children[2], enforcer.PlaceholderClass))

	assert.True(t, sp.Registry().IsAllowedInRoot("blockquote"))
	assert.True(t, sp.Enforcer().Observing())
}

func TestSchemaPlugin_ObservesInsertions(t *testing.T) {
	doc := parse(t, `<p>one</p>`)
	var reasons []enforcer.Reason
	sp := newSchemaPlugin(enforcer.WithDiagnostics(func(n enforcer.Normalization) {
		reasons = append(reasons, n.Reason)
	}))
	build(t, doc, []plugins.Plugin{sp}, NewDefaultBlocks())

	callout := dom.Element("aside", "class", "callout")
	callout.AppendChild(dom.Text("careful"))
	doc.AppendChild(doc.Root(), callout)
	heading := dom.Element("span", "role", "heading", "aria-level", "3")
	heading.AppendChild(dom.Text("Section"))
	doc.AppendChild(doc.Root(), heading)
	require.NoError(t, doc.Commit())

	assert.Equal(t, []string{"p", "blockquote", "h3"}, rootTags(doc))
	assert.Contains(t, reasons, enforcer.ReasonFallback)
}

func TestSchemaPlugin_TeardownStopsObserving(t *testing.T) {
	doc := parse(t, `<p>one</p>`)
	sp := newSchemaPlugin()
	engine := build(t, doc, []plugins.Plugin{sp}, NewDefaultBlocks())

	require.NoError(t, engine.Shutdown(context.Background()))
	assert.False(t, sp.Enforcer().Observing())

	doc.AppendChild(doc.Root(), dom.Element("x-widget"))
	require.NoError(t, doc.Commit())
	assert.Equal(t, []string{"p", "x-widget"}, rootTags(doc))
}

func TestSlashMenu_ItemsSortedAndFiltered(t *testing.T) {
	doc := parse(t, `<h1>Title</h1>`)
	menu := NewSlashMenuPlugin(overlay.NewStack(), logging.NewTestLogger())
	build(t, doc, []plugins.Plugin{menu},
		NewBlockItems(),
		&menuExt{BaseExtension: base("broken", SlashMenuPluginName), err: errors.New("boom")},
		&menuExt{BaseExtension: base("panicky", SlashMenuPluginName), panic: true},
		&menuExt{BaseExtension: base("first", SlashMenuPluginName), items: []MenuItem{
			{ID: "table", Label: "Table", Block: "table", Sort: 1},
		}},
	)

	items := menu.ItemsFor(context.Background(), doc.Root().FirstChild)
	require.NotEmpty(t, items)
	assert.Equal(t, "table", items[0].ID)
	assert.Equal(t, "paragraph", items[1].ID)
	for _, it := range items {
		assert.NotEqual(t, "heading-1", it.ID)
	}
}

func TestSlashMenu_OpenToggles(t *testing.T) {
	doc := parse(t, `<p>text</p>`)
	stack := overlay.NewStack()
	menu := NewSlashMenuPlugin(stack, logging.NewTestLogger())
	build(t, doc, []plugins.Plugin{menu}, NewBlockItems())

	block := doc.Root().FirstChild
	comp, ok := menu.Open(context.Background(), block)
	require.True(t, ok)
	assert.Equal(t, 1, stack.Len())
	assert.True(t, dom.HasClass(comp.Node(), SlashMenuClass))
	assert.Len(t, dom.ElementChildren(comp.Node()), 8)

	_, ok = menu.Open(context.Background(), block)
	assert.False(t, ok)
	assert.Equal(t, 0, stack.Len())
}

func TestSlashMenu_NotShownWithoutItems(t *testing.T) {
	doc := parse(t, `<p>text</p>`)
	stack := overlay.NewStack()
	menu := NewSlashMenuPlugin(stack, logging.NewTestLogger())
	build(t, doc, []plugins.Plugin{menu},
		&menuExt{BaseExtension: base("broken", SlashMenuPluginName), err: errors.New("boom")})

	comp, ok := menu.Open(context.Background(), doc.Root().FirstChild)
	assert.False(t, ok)
	assert.Nil(t, comp)
	assert.Equal(t, 0, stack.Len())
}

func TestSlashMenu_Apply(t *testing.T) {
	doc := parse(t, `<p>hi <em>there</em></p>`)
	stack := overlay.NewStack()
	menu := NewSlashMenuPlugin(stack, logging.NewTestLogger())
	sp := newSchemaPlugin()
	build(t, doc, []plugins.Plugin{sp, menu}, NewDefaultBlocks(), NewBlockItems())

	block := doc.Root().FirstChild
	_, ok := menu.Open(context.Background(), block)
	require.True(t, ok)

	repl, err := menu.Apply(context.Background(), block, "heading-2")
	require.NoError(t, err)
	assert.Equal(t, "h2", dom.TagName(repl))
	assert.Equal(t, "hi there", dom.TextContent(repl))
	assert.True(t, dom.HasClass(repl, "block"))
	assert.Equal(t, 0, stack.Len())

	_, err = menu.Apply(context.Background(), repl, "heading-2")
	assert.Error(t, err)
}

func TestToolbar_Buttons(t *testing.T) {
	doc := parse(t, `<p>text</p><pre>code</pre>`)
	stack := overlay.NewStack()
	toolbar := NewToolbarPlugin(stack, logging.NewTestLogger())
	build(t, doc, []plugins.Plugin{toolbar},
		NewFormatButtons(),
		&menuExt{BaseExtension: base("wrong-kind", ToolbarPluginName)})

	p := doc.Root().FirstChild
	pre := p.NextSibling
	ctx := context.Background()

	assert.Empty(t, toolbar.ButtonsFor(ctx, ToolbarContext{Block: p}))
	assert.Empty(t, toolbar.ButtonsFor(ctx, ToolbarContext{Block: pre, Selection: true}))

	buttons := toolbar.ButtonsFor(ctx, ToolbarContext{Block: p, Selection: true})
	require.Len(t, buttons, 6)
	assert.Equal(t, "bold", buttons[0].ID)
	assert.Equal(t, "link", buttons[5].ID)
}

func TestToolbar_SitsAboveSlashMenu(t *testing.T) {
	doc := parse(t, `<p>text</p>`)
	stack := overlay.NewStack()
	menu := NewSlashMenuPlugin(stack, logging.NewTestLogger())
	toolbar := NewToolbarPlugin(stack, logging.NewTestLogger())
	build(t, doc, []plugins.Plugin{menu, toolbar}, NewBlockItems(), NewFormatButtons())

	block := doc.Root().FirstChild
	_, ok := menu.Open(context.Background(), block)
	require.True(t, ok)
	_, ok = toolbar.Show(context.Background(), ToolbarContext{Block: block, Selection: true})
	require.True(t, ok)
	assert.Equal(t, 2, stack.Len())

	// The menu cannot sit above the toolbar, so reopening it closes the toolbar.
	menu.Close()
	_, ok = menu.Open(context.Background(), block)
	require.True(t, ok)
	assert.Equal(t, 1, stack.Len())
}

func TestShortcuts_LowerSortWins(t *testing.T) {
	doc := parse(t, `<p>text</p>`)
	sc := NewShortcutPlugin(logging.NewTestLogger())
	build(t, doc, []plugins.Plugin{sc},
		NewMarkdownShortcuts(),
		&shortcutExt{BaseExtension: base("custom", ShortcutPluginName), shortcuts: []Shortcut{
			{Chord: "mod-B", Command: "custom-bold", Sort: 5},
			{Chord: "", Command: "ignored"},
		}},
	)

	s, ok := sc.Lookup("Mod-b")
	require.True(t, ok)
	assert.Equal(t, "custom-bold", s.Command)

	s, ok = sc.Lookup("Shift-Mod-X")
	require.True(t, ok)
	assert.Equal(t, "strikethrough", s.Command)

	s, ok = sc.Lookup("# ")
	require.True(t, ok)
	assert.Equal(t, "heading-1", s.Command)

	_, ok = sc.Lookup("mod-q")
	assert.False(t, ok)

	keymap := sc.Keymap()
	assert.Equal(t, "custom-bold", keymap[0].Command)
}

func TestNormalizeChord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mod-b", "mod-b"},
		{"Shift-Mod-K", "mod-shift-k"},
		{"mod-shift-k", "mod-shift-k"},
		{"# ", "# "},
		{"-", "-"},
		{"Enter", "Enter"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeChord(tt.in))
		})
	}
}

func TestAssetsPlugin_SchedulesBundles(t *testing.T) {
	head := dom.Element("head")
	injector := assets.NewDocumentInjector(head)
	loader := assets.NewLoader(injector,
		assets.WithIdleDelay(time.Millisecond),
		assets.WithLogger(logging.NewTestLogger()))
	ap := NewAssetsPlugin(loader, logging.NewTestLogger())

	doc := parse(t, `<p>text</p>`)
	engine := build(t, doc, []plugins.Plugin{ap},
		NewStaticBundles("core-bundles", CoreBundles()...),
		NewStaticBundles("broken-bundles", assets.Bundle{}))
	require.NoError(t, engine.Shutdown(context.Background()))

	assert.True(t, loader.Loaded("editor-core"))
	assert.True(t, loader.Loaded("slash-menu"))
	assert.True(t, loader.Loaded("toolbar"))
	assert.False(t, loader.Loaded("highlight"))
	assert.Contains(t, injector.Head(), "/assets/editor.css")

	require.NoError(t, ap.Loader().Ensure(context.Background(), "code-block"))
	assert.True(t, loader.Loaded("highlight"))
	assert.True(t, strings.Contains(injector.Head(), "enableHighlight"))
}
