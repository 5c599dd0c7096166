package schema

import (
	"sort"
	"sync"

	"golang.org/x/text/cases"
)

// foldTag returns the canonical registry key for a tag name. A Caser keeps
// state, so each call gets its own.
func foldTag(tag string) string {
	return cases.Fold().String(tag)
}

// Registry stores block rules, tag variants and the set of tags allowed
// directly under the editing root. Rules are copied on the way in and on
// the way out, so no caller can mutate a stored rule after registration.
//
// Registration is expected during bootstrap. Lookups are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	blocks   map[string]*Rule
	variants map[string]*Rule
	root     map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		blocks:   make(map[string]*Rule),
		variants: make(map[string]*Rule),
		root:     make(map[string]bool),
	}
}

// RegisterBlock stores or overwrites the rule for tag. An empty rule.Tag
// defaults to the canonical key.
func (r *Registry) RegisterBlock(tag string, rule Rule) {
	key := foldTag(tag)
	stored := rule.Clone()
	if stored.Tag == "" {
		stored.Tag = key
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[key] = stored
}

// RegisterVariant stores a variant under "tag::name".
func (r *Registry) RegisterVariant(tag string, variant VariantSchema) {
	key := foldTag(tag)
	stored := variant.Rule.Clone()
	if stored.Tag == "" {
		stored.Tag = key
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[variantKey(key, variant.Name)] = stored
}

// AllowInRoot adds tags to the root-allow set.
func (r *Registry) AllowInRoot(tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range tags {
		r.root[foldTag(tag)] = true
	}
}

// Rule returns a copy of the rule registered for tag.
func (r *Registry) Rule(tag string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.blocks[foldTag(tag)]
	if !ok {
		return nil, false
	}
	return rule.Clone(), true
}

// Variant returns a copy of the named variant of tag.
func (r *Registry) Variant(tag, name string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.variants[variantKey(foldTag(tag), name)]
	if !ok {
		return nil, false
	}
	return rule.Clone(), true
}

// IsAllowedInRoot reports whether tag may be a direct root child.
func (r *Registry) IsAllowedInRoot(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root[foldTag(tag)]
}

// Tags returns the registered block tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.blocks))
	for tag := range r.blocks {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// RootTags returns the root-allow set in sorted order.
func (r *Registry) RootTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.root))
	for tag := range r.root {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Reset clears blocks, variants and the root-allow set.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = make(map[string]*Rule)
	r.variants = make(map[string]*Rule)
	r.root = make(map[string]bool)
}

func variantKey(tag, name string) string {
	return tag + "::" + name
}
