package builtin

import (
	"context"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/overlay"
	"github.com/conneroisu/blockedit/internal/plugins"
)

// ToolbarClass is the class of the rendered toolbar element.
const ToolbarClass = "toolbar"

// ToolbarContext describes the editing state the toolbar is shown for.
type ToolbarContext struct {
	Block     *html.Node
	Selection bool
}

// Tag returns the tag of the block under the caret.
func (c ToolbarContext) Tag() string {
	return dom.TagName(c.Block)
}

// Button is a toolbar command.
type Button struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Command string `json:"command"`
	Sort    int    `json:"sort"`
	Active  bool   `json:"active,omitempty"`
	Hidden  bool   `json:"-"`
}

// SortKey implements plugins.Contribution.
func (b Button) SortKey() int { return b.Sort }

// Visible implements plugins.Conditional.
func (b Button) Visible() bool { return !b.Hidden }

// ButtonExtension contributes toolbar buttons.
type ButtonExtension interface {
	plugins.Extension

	Buttons(tc ToolbarContext) ([]Button, error)
}

// ToolbarPlugin aggregates buttons into the floating formatting toolbar.
type ToolbarPlugin struct {
	stack  *overlay.Stack
	logger logging.Logger

	mu   sync.Mutex
	exts []ButtonExtension
}

// NewToolbarPlugin creates the toolbar host.
func NewToolbarPlugin(stack *overlay.Stack, logger logging.Logger) *ToolbarPlugin {
	return &ToolbarPlugin{
		stack:  stack,
		logger: orDefault(logger).WithComponent(ToolbarPluginName),
	}
}

// Name returns the plugin name.
func (p *ToolbarPlugin) Name() string { return ToolbarPluginName }

// Description returns the plugin description.
func (p *ToolbarPlugin) Description() string {
	return "Formatting toolbar shown over a selection"
}

// AttachExtensions keeps the button extensions.
func (p *ToolbarPlugin) AttachExtensions(exts []plugins.Extension) error {
	buttons := accept[ButtonExtension](context.Background(), p.logger, ToolbarPluginName, exts)
	p.mu.Lock()
	p.exts = buttons
	p.mu.Unlock()
	return nil
}

// Setup is a no-op; the toolbar renders on demand.
func (p *ToolbarPlugin) Setup(context.Context, *dom.Document, []plugins.Plugin) error {
	return nil
}

// ButtonsFor returns the visible buttons for tc sorted by sort key.
func (p *ToolbarPlugin) ButtonsFor(ctx context.Context, tc ToolbarContext) []Button {
	p.mu.Lock()
	exts := p.exts
	p.mu.Unlock()

	buttons, _ := plugins.Aggregate(ctx, p.logger, exts, func(ext ButtonExtension) ([]Button, error) {
		return ext.Buttons(tc)
	})
	return buttons
}

// Show renders the toolbar for tc and pushes it on the overlay stack. The
// toolbar may sit above the slash menu.
func (p *ToolbarPlugin) Show(ctx context.Context, tc ToolbarContext) (overlay.Component, bool) {
	buttons := p.ButtonsFor(ctx, tc)
	if len(buttons) == 0 {
		return nil, false
	}

	bar := dom.Element("div", "class", ToolbarClass, "role", "toolbar")
	for _, b := range buttons {
		attrs := []string{"type", "button", "data-command", b.Command, "data-id", b.ID}
		if b.Active {
			attrs = append(attrs, "aria-pressed", "true")
		}
		btn := dom.Element("button", attrs...)
		btn.AppendChild(dom.Text(b.Label))
		bar.AppendChild(btn)
	}

	comp := overlay.NewComponent(ToolbarPluginName, bar, overlay.ComponentOptions{
		Overlays:            []string{SlashMenuPluginName},
		CloseOnClickOutside: true,
	})
	if !p.stack.Push(comp) {
		return nil, false
	}
	return comp, true
}
