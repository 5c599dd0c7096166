// Package placeholder keeps blocks visibly present when they are empty and
// strips attribute and wrapper noise from elements before enforcement.
package placeholder

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/blockedit/internal/dom"
)

const (
	// Attr holds the placeholder text shown for an empty block.
	Attr = "data-placeholder"
	// PersistAttr marks a <br> that EnsurePlaceholder must keep.
	PersistAttr = "data-persist"
)

// DeniedAttributes are removed from every element by SanitizeElement.
var DeniedAttributes = []string{"style", "onclick", "onmouseover"}

// Options configures EnsurePlaceholder.
type Options struct {
	Text string
}

// embedded elements count as content even though they hold no text.
var embedded = map[atom.Atom]bool{
	atom.Img:    true,
	atom.Video:  true,
	atom.Audio:  true,
	atom.Iframe: true,
	atom.Embed:  true,
	atom.Object: true,
	atom.Canvas: true,
	atom.Svg:    true,
	atom.Hr:     true,
	atom.Input:  true,
}

// HasMeaningfulContent reports whether n holds non-blank text, or an
// element other than <br> that itself has meaningful content.
func HasMeaningfulContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return true
			}
		case html.ElementNode:
			if c.DataAtom == atom.Br {
				continue
			}
			if embedded[c.DataAtom] || HasMeaningfulContent(c) {
				return true
			}
		}
	}
	return false
}

// EnsurePlaceholder sets the placeholder attribute when opts.Text is given
// and the attribute is absent. When el has no meaningful content it removes
// blank text and non-persisted <br> children and appends a single <br>.
// Calling it again on an unchanged element mutates nothing.
func EnsurePlaceholder(el *html.Node, opts Options) {
	if el == nil {
		return
	}
	if opts.Text != "" && !dom.HasAttr(el, Attr) {
		dom.SetAttr(el, Attr, opts.Text)
	}
	if HasMeaningfulContent(el) || settled(el) {
		return
	}

	for _, c := range dom.Children(el) {
		if isStray(c) {
			el.RemoveChild(c)
		}
	}
	el.AppendChild(dom.Element("br"))
}

// settled reports whether el already ends in its placeholder <br> and holds
// nothing else EnsurePlaceholder would strip.
func settled(el *html.Node) bool {
	last := el.LastChild
	if last == nil || !isVolatileBr(last) {
		return false
	}
	for c := el.FirstChild; c != last; c = c.NextSibling {
		if isStray(c) {
			return false
		}
	}
	return true
}

func isStray(n *html.Node) bool {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data) == ""
	}
	return isVolatileBr(n)
}

func isVolatileBr(n *html.Node) bool {
	return n.Type == html.ElementNode && n.DataAtom == atom.Br && !dom.HasAttr(n, PersistAttr)
}

// SanitizeElement removes the denied attributes from el and unwraps
// redundant spans beneath it. A span is redundant when it has no
// attributes and every child is a span. Text is never removed.
//
// el itself is never unwrapped, even when it is a redundant span; callers
// that need that must unwrap it from its parent.
func SanitizeElement(el *html.Node) {
	if el == nil {
		return
	}
	for _, name := range DeniedAttributes {
		dom.RemoveAttr(el, name)
	}
	for _, c := range dom.Children(el) {
		unwrapSpans(c)
	}
}

func unwrapSpans(n *html.Node) {
	if n.Type != html.ElementNode {
		return
	}
	children := dom.Children(n)
	if redundantSpan(n) {
		dom.Unwrap(n)
	}
	for _, c := range children {
		unwrapSpans(c)
	}
}

func redundantSpan(n *html.Node) bool {
	if n.DataAtom != atom.Span || len(n.Attr) > 0 || n.FirstChild == nil {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Span {
			return false
		}
	}
	return true
}
