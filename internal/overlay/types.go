// Package overlay manages the stack of transient surfaces (menus, popovers,
// dialogs) layered above the document.
package overlay

import (
	"slices"

	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// Entry is anything the stack can hold: a live element.
type Entry interface {
	Node() *html.Node
}

// Component is a structured overlay. Kind identifies the overlay type and
// is compared by value: pushing a component whose kind is already on the
// stack closes the existing one instead.
type Component interface {
	Entry

	// Kind returns the overlay type, e.g. "slash-menu".
	Kind() string

	// CanOverlay reports whether this component may sit above other.
	CanOverlay(other Entry) bool

	// CanCloseOnClickOutside reports whether a click outside the component
	// dismisses it.
	CanCloseOnClickOutside() bool
}

// AnyKind in ComponentOptions.Overlays lets a component sit above anything.
const AnyKind = "*"

type plain struct {
	id   string
	node *html.Node
}

// Plain wraps an element that is not a structured component. Plain entries
// always claim the whole stack.
func Plain(node *html.Node) Entry {
	return &plain{id: uuid.NewString(), node: node}
}

func (p *plain) Node() *html.Node { return p.node }

// ID returns the entry's unique identifier.
func (p *plain) ID() string { return p.id }

// ComponentOptions configures NewComponent.
type ComponentOptions struct {
	// Overlays lists the kinds this component may sit above. AnyKind
	// accepts every component. Plain entries are never overlaid.
	Overlays []string

	// CloseOnClickOutside lets outside clicks dismiss the component.
	CloseOnClickOutside bool
}

type component struct {
	id   string
	kind string
	node *html.Node
	opts ComponentOptions
}

// NewComponent builds a configurable component around node.
func NewComponent(kind string, node *html.Node, opts ComponentOptions) Component {
	return &component{id: uuid.NewString(), kind: kind, node: node, opts: opts}
}

func (c *component) Node() *html.Node { return c.node }
func (c *component) Kind() string     { return c.kind }
func (c *component) ID() string       { return c.id }

func (c *component) CanOverlay(other Entry) bool {
	o, ok := other.(Component)
	if !ok {
		return false
	}
	return slices.Contains(c.opts.Overlays, AnyKind) || slices.Contains(c.opts.Overlays, o.Kind())
}

func (c *component) CanCloseOnClickOutside() bool {
	return c.opts.CloseOnClickOutside
}

// identify returns an entry's ID when it has one.
func identify(e Entry) string {
	if idd, ok := e.(interface{ ID() string }); ok {
		return idd.ID()
	}
	return ""
}

// kindOf returns the kind of a component, or "" for plain entries.
func kindOf(e Entry) string {
	if c, ok := e.(Component); ok {
		return c.Kind()
	}
	return ""
}
