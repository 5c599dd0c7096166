package builtin

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/overlay"
	"github.com/conneroisu/blockedit/internal/plugins"
)

// SlashMenuClass is the class of the rendered menu element.
const SlashMenuClass = "slash-menu"

// MenuItem is one entry of the slash menu. Selecting it turns the current
// block into a Block element.
type MenuItem struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Block    string   `json:"block"`
	Keywords []string `json:"keywords,omitempty"`
	Sort     int      `json:"sort"`
	Hidden   bool     `json:"-"`
}

// SortKey implements plugins.Contribution.
func (m MenuItem) SortKey() int { return m.Sort }

// Visible implements plugins.Conditional.
func (m MenuItem) Visible() bool { return !m.Hidden }

// MenuExtension contributes slash menu items for the block the caret is in.
type MenuExtension interface {
	plugins.Extension

	Items(block *html.Node) ([]MenuItem, error)
}

// SlashMenuPlugin aggregates menu items and opens the menu on the overlay
// stack.
type SlashMenuPlugin struct {
	stack  *overlay.Stack
	logger logging.Logger

	mu   sync.Mutex
	exts []MenuExtension
	doc  *dom.Document
	open overlay.Component
}

// NewSlashMenuPlugin creates the slash menu host.
func NewSlashMenuPlugin(stack *overlay.Stack, logger logging.Logger) *SlashMenuPlugin {
	return &SlashMenuPlugin{
		stack:  stack,
		logger: orDefault(logger).WithComponent(SlashMenuPluginName),
	}
}

// Name returns the plugin name.
func (p *SlashMenuPlugin) Name() string { return SlashMenuPluginName }

// Description returns the plugin description.
func (p *SlashMenuPlugin) Description() string {
	return "Block insertion menu opened by typing /"
}

// AttachExtensions keeps the menu extensions.
func (p *SlashMenuPlugin) AttachExtensions(exts []plugins.Extension) error {
	menu := accept[MenuExtension](context.Background(), p.logger, SlashMenuPluginName, exts)
	p.mu.Lock()
	p.exts = menu
	p.mu.Unlock()
	return nil
}

// Setup binds the plugin to the document.
func (p *SlashMenuPlugin) Setup(_ context.Context, root *dom.Document, _ []plugins.Plugin) error {
	p.mu.Lock()
	p.doc = root
	p.mu.Unlock()
	return nil
}

// ItemsFor returns the visible items for block sorted by sort key.
// Failing extensions are logged and skipped.
func (p *SlashMenuPlugin) ItemsFor(ctx context.Context, block *html.Node) []MenuItem {
	p.mu.Lock()
	exts := p.exts
	p.mu.Unlock()

	items, _ := plugins.Aggregate(ctx, p.logger, exts, func(ext MenuExtension) ([]MenuItem, error) {
		return ext.Items(block)
	})
	return items
}

// Open renders the menu for block and pushes it on the overlay stack. It
// reports false when there is nothing to show or when the push toggled an
// already open menu closed.
func (p *SlashMenuPlugin) Open(ctx context.Context, block *html.Node) (overlay.Component, bool) {
	items := p.ItemsFor(ctx, block)
	if len(items) == 0 {
		p.logger.Debug(ctx, "Slash menu has no items", "block", dom.TagName(block))
		return nil, false
	}

	comp := overlay.NewComponent(SlashMenuPluginName, renderMenu(items),
		overlay.ComponentOptions{CloseOnClickOutside: true})
	if !p.stack.Push(comp) {
		p.mu.Lock()
		p.open = nil
		p.mu.Unlock()
		return nil, false
	}

	p.mu.Lock()
	p.open = comp
	p.mu.Unlock()
	return comp, true
}

// Close removes the menu from the overlay stack if it is open.
func (p *SlashMenuPlugin) Close() bool {
	p.mu.Lock()
	open := p.open
	p.open = nil
	p.mu.Unlock()
	if open == nil {
		return false
	}
	return p.stack.Remove(open.Node())
}

// Apply turns block into the element of the item with the given id and
// closes the menu. The replacement goes through the document so the
// schema observer sees it.
func (p *SlashMenuPlugin) Apply(ctx context.Context, block *html.Node, itemID string) (*html.Node, error) {
	p.mu.Lock()
	doc := p.doc
	p.mu.Unlock()
	if doc == nil {
		return nil, errors.NewPluginError(errors.ErrCodePluginSetup, "slash menu is not set up", nil)
	}

	var item *MenuItem
	for _, it := range p.ItemsFor(ctx, block) {
		if it.ID == itemID {
			it := it
			item = &it
			break
		}
	}
	if item == nil {
		return nil, errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("unknown slash menu item %q", itemID)).
			WithContext("block", dom.TagName(block))
	}

	replacement := dom.Element(item.Block)
	if !isVoid(item.Block) {
		for _, c := range dom.Children(block) {
			dom.Detach(c)
			replacement.AppendChild(c)
		}
	}
	doc.ReplaceWith(block, replacement)
	p.Close()

	if err := doc.Commit(); err != nil {
		return replacement, err
	}
	p.logger.Debug(ctx, "Slash menu item applied", "item", itemID, "block", item.Block)
	return replacement, nil
}

func renderMenu(items []MenuItem) *html.Node {
	menu := dom.Element("div", "class", SlashMenuClass, "role", "listbox")
	for i, item := range items {
		li := dom.Element("div",
			"class", "slash-menu-item",
			"role", "option",
			"data-item", item.ID,
			"data-block", item.Block,
			"data-index", strconv.Itoa(i))
		li.AppendChild(dom.Text(item.Label))
		menu.AppendChild(li)
	}
	return menu
}

func isVoid(tag string) bool {
	switch tag {
	case "hr", "br", "img", "input":
		return true
	}
	return false
}
