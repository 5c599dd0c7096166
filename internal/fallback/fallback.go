// Package fallback maps tags and element intents that have no valid schema
// mapping to replacement element factories.
package fallback

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/placeholder"
)

// Factory builds a replacement for original. Returning nil means no
// replacement.
type Factory func(original *html.Node) *html.Node

// Predicate reports whether an intent fallback applies to an element.
type Predicate func(el *html.Node) bool

type intent struct {
	predicate Predicate
	factory   Factory
	priority  int
}

// Registry resolves fallbacks. Exact tag mappings win over intents; intents
// are tried in descending priority, ties in registration order.
type Registry struct {
	mu      sync.RWMutex
	tags    map[string]Factory
	intents []intent
	opts    placeholder.Options
}

// Option configures a Registry.
type Option func(*Registry)

// WithPlaceholder sets the options passed to EnsurePlaceholder for every
// produced replacement.
func WithPlaceholder(opts placeholder.Options) Option {
	return func(r *Registry) {
		r.opts = opts
	}
}

// NewRegistry creates an empty fallback registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{tags: make(map[string]Factory)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterTagFallback maps tag to factory. The last registration wins.
func (r *Registry) RegisterTagFallback(tag string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[strings.ToLower(tag)] = factory
}

// RegisterIntentFallback adds a predicate-driven fallback.
func (r *Registry) RegisterIntentFallback(predicate Predicate, factory Factory, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent{predicate: predicate, factory: factory, priority: priority})
	sort.SliceStable(r.intents, func(i, j int) bool {
		return r.intents[i].priority > r.intents[j].priority
	})
}

// FallbackFor returns the replacement for el, or nil when nothing matches.
// Replacements are passed through EnsurePlaceholder.
func (r *Registry) FallbackFor(el *html.Node) *html.Node {
	factory := r.lookup(el)
	if factory == nil {
		return nil
	}
	replacement := factory(el)
	if replacement == nil {
		return nil
	}
	placeholder.EnsurePlaceholder(replacement, r.opts)
	return replacement
}

func (r *Registry) lookup(el *html.Node) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.tags[dom.TagName(el)]; ok {
		return f
	}
	for _, in := range r.intents {
		if in.predicate(el) {
			return in.factory
		}
	}
	return nil
}

// Len returns the number of tag and intent fallbacks.
func (r *Registry) Len() (tags, intents int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tags), len(r.intents)
}

// Reset clears both stores.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = make(map[string]Factory)
	r.intents = nil
}
