package builtin

import (
	"sort"
	"strconv"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/assets"
	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/fallback"
	"github.com/conneroisu/blockedit/internal/plugins"
	"github.com/conneroisu/blockedit/internal/schema/blocks"
)

// DefaultBlocks contributes the core block set and the fallbacks for
// generic containers pasted into the editor.
type DefaultBlocks struct {
	plugins.BaseExtension
}

// NewDefaultBlocks creates the core block extension.
func NewDefaultBlocks() *DefaultBlocks {
	return &DefaultBlocks{BaseExtension: plugins.BaseExtension{
		ExtensionName: "default-blocks",
		TargetName:    SchemaPluginName,
	}}
}

// Blocks returns the core block rules, root blocks flagged.
func (d *DefaultBlocks) Blocks() ([]BlockDefinition, error) {
	rules := blocks.Rules()
	root := make(map[string]bool, len(blocks.RootTags))
	for _, tag := range blocks.RootTags {
		root[tag] = true
	}

	tags := make([]string, 0, len(rules))
	for tag := range rules {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	defs := make([]BlockDefinition, 0, len(tags))
	for _, tag := range tags {
		defs = append(defs, BlockDefinition{Tag: tag, Rule: rules[tag], Root: root[tag]})
	}
	return defs, nil
}

// Fallbacks maps generic containers to paragraphs and recognizes ARIA
// headings and callouts.
func (d *DefaultBlocks) Fallbacks() ([]FallbackDefinition, error) {
	toParagraph := retag("p")
	return []FallbackDefinition{
		{Tag: "div", Factory: toParagraph},
		{Tag: "section", Factory: toParagraph},
		{Tag: "article", Factory: toParagraph},
		{Tag: "center", Factory: toParagraph},
		{Predicate: isAriaHeading, Factory: ariaHeading, Priority: 20},
		{Predicate: isCallout, Factory: retag("blockquote"), Priority: 10},
	}, nil
}

// retag builds a factory producing a tag element holding the original's
// children.
func retag(tag string) fallback.Factory {
	return func(original *html.Node) *html.Node {
		repl := dom.Element(tag)
		for _, c := range dom.Children(original) {
			dom.Detach(c)
			repl.AppendChild(c)
		}
		return repl
	}
}

func isAriaHeading(el *html.Node) bool {
	role, _ := dom.Attr(el, "role")
	return role == "heading"
}

func ariaHeading(original *html.Node) *html.Node {
	level := 2
	if v, ok := dom.Attr(original, "aria-level"); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 6 {
			level = n
		}
	}
	return retag("h" + strconv.Itoa(level))(original)
}

func isCallout(el *html.Node) bool {
	return dom.HasClass(el, "callout") || dom.HasClass(el, "note")
}

// BlockItems contributes the "turn into" entries of the slash menu. The
// entry for the current block's own tag is hidden.
type BlockItems struct {
	plugins.BaseExtension
}

// NewBlockItems creates the block menu extension.
func NewBlockItems() *BlockItems {
	return &BlockItems{BaseExtension: plugins.BaseExtension{
		ExtensionName: "block-items",
		TargetName:    SlashMenuPluginName,
	}}
}

// Items returns the block entries for block.
func (b *BlockItems) Items(block *html.Node) ([]MenuItem, error) {
	current := dom.TagName(block)
	items := []MenuItem{
		{ID: "paragraph", Label: "Text", Block: "p", Keywords: []string{"text", "paragraph"}, Sort: 10},
		{ID: "heading-1", Label: "Heading 1", Block: "h1", Keywords: []string{"title", "h1"}, Sort: 20},
		{ID: "heading-2", Label: "Heading 2", Block: "h2", Keywords: []string{"subtitle", "h2"}, Sort: 21},
		{ID: "heading-3", Label: "Heading 3", Block: "h3", Keywords: []string{"h3"}, Sort: 22},
		{ID: "bulleted-list", Label: "Bulleted list", Block: "ul", Keywords: []string{"list", "bullet"}, Sort: 30},
		{ID: "numbered-list", Label: "Numbered list", Block: "ol", Keywords: []string{"list", "ordered"}, Sort: 31},
		{ID: "quote", Label: "Quote", Block: "blockquote", Keywords: []string{"quote", "citation"}, Sort: 40},
		{ID: "code", Label: "Code", Block: "pre", Keywords: []string{"code", "snippet"}, Sort: 50},
		{ID: "divider", Label: "Divider", Block: "hr", Keywords: []string{"rule", "separator"}, Sort: 60},
	}
	for i := range items {
		items[i].Hidden = items[i].Block == current
	}
	return items, nil
}

// FormatButtons contributes the inline formatting buttons. They show only
// over a selection, and not inside code blocks.
type FormatButtons struct {
	plugins.BaseExtension
}

// NewFormatButtons creates the formatting button extension.
func NewFormatButtons() *FormatButtons {
	return &FormatButtons{BaseExtension: plugins.BaseExtension{
		ExtensionName: "format-buttons",
		TargetName:    ToolbarPluginName,
	}}
}

// Buttons returns the formatting buttons for tc.
func (f *FormatButtons) Buttons(tc ToolbarContext) ([]Button, error) {
	hidden := !tc.Selection || tc.Tag() == "pre"
	buttons := []Button{
		{ID: "bold", Label: "B", Command: "bold", Sort: 10},
		{ID: "italic", Label: "I", Command: "italic", Sort: 20},
		{ID: "underline", Label: "U", Command: "underline", Sort: 30},
		{ID: "strike", Label: "S", Command: "strikethrough", Sort: 40},
		{ID: "code", Label: "Code", Command: "code", Sort: 50},
		{ID: "link", Label: "Link", Command: "link", Sort: 60},
	}
	for i := range buttons {
		buttons[i].Hidden = hidden
	}
	return buttons, nil
}

// MarkdownShortcuts contributes markdown input rules and the formatting
// chords.
type MarkdownShortcuts struct {
	plugins.BaseExtension
}

// NewMarkdownShortcuts creates the markdown shortcut extension.
func NewMarkdownShortcuts() *MarkdownShortcuts {
	return &MarkdownShortcuts{BaseExtension: plugins.BaseExtension{
		ExtensionName: "markdown-shortcuts",
		TargetName:    ShortcutPluginName,
	}}
}

// Shortcuts returns the markdown prefixes and formatting chords.
func (m *MarkdownShortcuts) Shortcuts() ([]Shortcut, error) {
	return []Shortcut{
		{Chord: "# ", Command: "heading-1", Sort: 10},
		{Chord: "## ", Command: "heading-2", Sort: 10},
		{Chord: "### ", Command: "heading-3", Sort: 10},
		{Chord: "- ", Command: "bulleted-list", Sort: 10},
		{Chord: "* ", Command: "bulleted-list", Sort: 10},
		{Chord: "1. ", Command: "numbered-list", Sort: 10},
		{Chord: "> ", Command: "quote", Sort: 10},
		{Chord: "``` ", Command: "code", Sort: 10},
		{Chord: "Mod-b", Command: "bold", Sort: 20},
		{Chord: "Mod-i", Command: "italic", Sort: 20},
		{Chord: "Mod-u", Command: "underline", Sort: 20},
		{Chord: "Mod-Shift-x", Command: "strikethrough", Sort: 20},
		{Chord: "Mod-e", Command: "code", Sort: 20},
		{Chord: "Mod-k", Command: "link", Sort: 20},
	}, nil
}

// StaticBundles contributes a fixed list of asset bundles, typically read
// from configuration.
type StaticBundles struct {
	plugins.BaseExtension
	bundles []assets.Bundle
}

// NewStaticBundles creates a bundle extension named name.
func NewStaticBundles(name string, bundles ...assets.Bundle) *StaticBundles {
	return &StaticBundles{
		BaseExtension: plugins.BaseExtension{ExtensionName: name, TargetName: AssetsPluginName},
		bundles:       bundles,
	}
}

// Bundles returns the configured bundles.
func (s *StaticBundles) Bundles() ([]assets.Bundle, error) {
	return s.bundles, nil
}

// CoreBundles are the bundles the editor ships with.
func CoreBundles() []assets.Bundle {
	return []assets.Bundle{
		{
			Feature:  "editor-core",
			Styles:   []string{"/assets/editor.css"},
			Scripts:  []string{"/assets/editor.js"},
			Schedule: assets.ScheduleStartup,
		},
		{
			Feature:      "slash-menu",
			Dependencies: []string{"editor-core"},
			Styles:       []string{"/assets/slash-menu.css"},
			Scripts:      []string{"/assets/slash-menu.js"},
			Schedule:     assets.ScheduleIdle,
		},
		{
			Feature:      "toolbar",
			Dependencies: []string{"editor-core"},
			Scripts:      []string{"/assets/toolbar.js"},
			Schedule:     assets.ScheduleIdle,
		},
		{
			Feature: "highlight",
			Styles:  []string{"/assets/highlight.css"},
			Scripts: []string{"/assets/highlight.js"},
		},
		{
			Feature:      "code-block",
			Dependencies: []string{"editor-core", "highlight"},
			Inline:       []string{"window.blockedit && window.blockedit.enableHighlight();"},
		},
	}
}
