// Package enforcer keeps an editing root consistent with the block schema.
// It subscribes to a dom.Document's mutation channel and normalizes every
// inserted element: fallback substitution, sanitizing, class and attribute
// rules, child validation, custom hooks and the root-allow check.
//
// Schema violations never surface as errors. Offending nodes are replaced
// (at worst by an empty placeholder paragraph) and reported through the
// optional diagnostics callback. Only failing rule hooks return errors.
package enforcer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/fallback"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/placeholder"
	"github.com/conneroisu/blockedit/internal/schema"
)

// Reason says why an element was corrected.
type Reason string

const (
	ReasonFallback         Reason = "fallback"
	ReasonUnknownRootChild Reason = "unknown-root-child"
	ReasonDisallowedChild  Reason = "disallowed-child"
	ReasonNotAllowedInRoot Reason = "not-allowed-in-root"
	ReasonClassStripped    Reason = "class-stripped"
	ReasonAttributeRemoved Reason = "attribute-removed"
)

// PlaceholderClass marks paragraphs synthesized for invalid blocks.
const PlaceholderClass = "placeholder"

// Normalization describes one correction. For class and attribute
// corrections Original and Replacement are the same element and Detail
// names the class or attribute.
type Normalization struct {
	Original    *html.Node
	Replacement *html.Node
	Reason      Reason
	Detail      string
}

// Enforcer applies the schema to one document root.
type Enforcer struct {
	doc         *dom.Document
	registry    *schema.Registry
	fallbacks   *fallback.Registry
	logger      logging.Logger
	diagnostics func(Normalization)
	placeholder placeholder.Options

	mu     sync.Mutex
	cancel func()
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithRegistry sets the schema registry. The default is an empty registry.
func WithRegistry(reg *schema.Registry) Option {
	return func(e *Enforcer) {
		e.registry = reg
	}
}

// WithFallbacks sets the fallback registry. The default is empty.
func WithFallbacks(reg *fallback.Registry) Option {
	return func(e *Enforcer) {
		e.fallbacks = reg
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Enforcer) {
		e.logger = logger
	}
}

// WithDiagnostics registers a callback invoked for every correction.
func WithDiagnostics(fn func(Normalization)) Option {
	return func(e *Enforcer) {
		e.diagnostics = fn
	}
}

// WithPlaceholderText sets the placeholder text of synthesized paragraphs.
func WithPlaceholderText(text string) Option {
	return func(e *Enforcer) {
		e.placeholder = placeholder.Options{Text: text}
	}
}

// New creates a stopped enforcer for doc.
func New(doc *dom.Document, opts ...Option) *Enforcer {
	e := &Enforcer{doc: doc}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = schema.NewRegistry()
	}
	if e.fallbacks == nil {
		e.fallbacks = fallback.NewRegistry()
	}
	if e.logger == nil {
		e.logger = logging.NewLogger(logging.DefaultConfig())
	}
	e.logger = e.logger.WithComponent("enforcer")
	return e
}

// Registry returns the schema registry in use.
func (e *Enforcer) Registry() *schema.Registry {
	return e.registry
}

// Fallbacks returns the fallback registry in use.
func (e *Enforcer) Fallbacks() *fallback.Registry {
	return e.fallbacks
}

// Start subscribes to the document's mutation channel. Calling Start while
// observing restarts the subscription.
func (e *Enforcer) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = e.doc.Observe(e.handle)
}

// Stop unsubscribes. It is a no-op when stopped.
func (e *Enforcer) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return
	}
	e.cancel()
	e.cancel = nil
}

// Observing reports whether the enforcer is subscribed.
func (e *Enforcer) Observing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

func (e *Enforcer) handle(records []dom.MutationRecord) {
	root := e.doc.Root()
	for _, rec := range records {
		for _, n := range rec.Added {
			if !dom.IsElement(n) || n == root || !dom.Contains(root, n) {
				continue
			}
			if _, err := e.Enforce(n, n.Parent == root); err != nil {
				e.logger.Error(context.Background(), err, "Enforcement aborted for mutation batch",
					"tag", dom.TagName(n), "records", len(records))
				return
			}
		}
	}
}

// EnforceRoot enforces every current element child of the root.
func (e *Enforcer) EnforceRoot() error {
	for _, child := range dom.ElementChildren(e.doc.Root()) {
		if _, err := e.Enforce(child, true); err != nil {
			return err
		}
	}
	return nil
}

// Enforce normalizes el in place and returns the element now standing in
// its position, which differs from el when it was replaced. isRootChild
// marks direct children of the editing root.
func (e *Enforcer) Enforce(el *html.Node, isRootChild bool) (*html.Node, error) {
	if !dom.IsElement(el) {
		return el, nil
	}

	if repl := e.fallbacks.FallbackFor(el); repl != nil {
		e.swap(el, repl, ReasonFallback)
		el = repl
	}

	placeholder.SanitizeElement(el)

	tag := dom.TagName(el)
	rule, ok := e.registry.Rule(tag)
	if !ok {
		if isRootChild {
			return e.paragraph(el, ReasonUnknownRootChild), nil
		}
		return el, nil
	}

	e.applyClasses(el, rule.Classes)
	e.applyAttributes(el, rule.AllowedAttributes)

	if err := e.enforceChildren(el, rule); err != nil {
		return el, err
	}

	if rule.Validate != nil {
		if err := rule.Validate(el, e.registry); err != nil {
			return el, fmt.Errorf("validate hook for <%s>: %w", tag, err)
		}
	}
	if rule.Normalize != nil {
		if err := rule.Normalize(el, e.registry); err != nil {
			return el, fmt.Errorf("normalize hook for <%s>: %w", tag, err)
		}
	}

	if isRootChild && !e.registry.IsAllowedInRoot(tag) {
		return e.paragraph(el, ReasonNotAllowedInRoot), nil
	}
	return el, nil
}

// applyClasses strips classes the rule does not permit, then adds every
// allowed class that is missing.
func (e *Enforcer) applyClasses(el *html.Node, rule *schema.ClassRule) {
	if rule == nil {
		return
	}
	current := dom.Classes(el)
	kept := make([]string, 0, len(current)+len(rule.Allowed))
	for _, c := range current {
		if rule.Permits(c) {
			kept = append(kept, c)
			continue
		}
		e.notify(Normalization{Original: el, Replacement: el, Reason: ReasonClassStripped, Detail: c})
	}
	for _, c := range rule.Allowed {
		if !contains(kept, c) {
			kept = append(kept, c)
		}
	}
	if strings.Join(kept, " ") == strings.Join(current, " ") {
		return
	}
	dom.SetClasses(el, kept)
}

// applyAttributes removes every attribute the rules do not name, and named
// attributes whose sanitized value is rejected. A nil rule list leaves
// attributes alone. The class attribute belongs to the class rule.
func (e *Enforcer) applyAttributes(el *html.Node, rules []schema.AttributeRule) {
	if rules == nil {
		return
	}
	for _, name := range dom.AttrNames(el) {
		if name == "class" {
			continue
		}
		value, _ := dom.Attr(el, name)
		rule, ok := findAttribute(rules, name)
		if !ok {
			e.removeAttr(el, name, value)
			continue
		}
		clean := value
		if rule.Sanitize != nil {
			var keep bool
			clean, keep = rule.Sanitize(value)
			if !keep {
				e.removeAttr(el, name, value)
				continue
			}
		}
		if !rule.Accepts(clean) {
			e.removeAttr(el, name, value)
			continue
		}
		if clean != value {
			dom.SetAttr(el, name, clean)
		}
	}
}

func (e *Enforcer) removeAttr(el *html.Node, name, value string) {
	dom.RemoveAttr(el, name)
	e.notify(Normalization{
		Original:    el,
		Replacement: el,
		Reason:      ReasonAttributeRemoved,
		Detail:      name + "=" + value,
	})
}

// enforceChildren validates el's children against the flattened child
// rules. Blank text is dropped unless text is allowed; other text always
// stays. A nil rule list leaves children alone.
func (e *Enforcer) enforceChildren(el *html.Node, rule *schema.Rule) error {
	if rule.AllowedChildren == nil {
		return nil
	}
	set := schema.FlattenChildren(rule.AllowedChildren)

	for _, child := range dom.Children(el) {
		switch child.Type {
		case html.TextNode:
			if !set.AllowText && strings.TrimSpace(child.Data) == "" {
				el.RemoveChild(child)
			}
		case html.ElementNode:
			tag := dom.TagName(child)
			if !set.Allows(tag) {
				if repl := e.fallbacks.FallbackFor(child); repl != nil {
					e.swap(child, repl, ReasonDisallowedChild)
				} else {
					e.paragraph(child, ReasonDisallowedChild)
				}
				continue
			}
			if cr, ok := set.Classes[tag]; ok {
				e.applyClasses(child, cr)
			}
			if attrs, ok := set.Attributes[tag]; ok {
				e.applyAttributes(child, attrs)
			}
			if _, err := e.Enforce(child, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// paragraph replaces el with an empty placeholder paragraph.
func (e *Enforcer) paragraph(el *html.Node, reason Reason) *html.Node {
	p := NewPlaceholderParagraph(e.placeholder)
	e.swap(el, p, reason)
	return p
}

// NewPlaceholderParagraph builds the <p class="block placeholder"> used when
// no fallback or rule resolves an element.
func NewPlaceholderParagraph(opts placeholder.Options) *html.Node {
	p := dom.Element("p", "class", "block "+PlaceholderClass)
	placeholder.EnsurePlaceholder(p, opts)
	return p
}

func (e *Enforcer) swap(original, replacement *html.Node, reason Reason) {
	dom.Replace(original, replacement)
	e.notify(Normalization{Original: original, Replacement: replacement, Reason: reason})
}

func (e *Enforcer) notify(n Normalization) {
	e.logger.Debug(context.Background(), "Normalized element",
		"reason", string(n.Reason),
		"tag", dom.TagName(n.Original),
		"replacement", dom.TagName(n.Replacement),
		"detail", n.Detail)
	if e.diagnostics != nil {
		e.diagnostics(n)
	}
}

func findAttribute(rules []schema.AttributeRule, name string) (schema.AttributeRule, bool) {
	for _, r := range rules {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return schema.AttributeRule{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
