// Package schema holds the declarative content rules the enforcer applies
// to the editing root: which tags may appear, which classes, attributes and
// children they may carry, and which tags may sit directly under the root.
package schema

import (
	"slices"

	"golang.org/x/net/html"
)

// Wildcard in AttributeRule.Values accepts any value.
const Wildcard = "*"

// ClassRule constrains the class list of an element.
//
// Enforcement strips every class not in Allowed (unless AllowAdditional is
// set) and then adds every class of Allowed that is missing. Required is
// kept for rule authors and loaders; the enforcer injects the whole Allowed
// set.
type ClassRule struct {
	Allowed         []string `yaml:"allowed" toml:"allowed"`
	Required        []string `yaml:"required,omitempty" toml:"required,omitempty"`
	AllowAdditional bool     `yaml:"allowAdditional,omitempty" toml:"allowAdditional,omitempty"`
}

// Permits reports whether class may stay on an element.
func (c *ClassRule) Permits(class string) bool {
	return c.AllowAdditional || slices.Contains(c.Allowed, class)
}

func (c *ClassRule) clone() *ClassRule {
	if c == nil {
		return nil
	}
	return &ClassRule{
		Allowed:         slices.Clone(c.Allowed),
		Required:        slices.Clone(c.Required),
		AllowAdditional: c.AllowAdditional,
	}
}

// SanitizeFunc rewrites an attribute value. ok=false removes the attribute.
type SanitizeFunc func(value string) (clean string, ok bool)

// AttributeRule allows one attribute name. An empty Values list, or one
// containing Wildcard, accepts any value.
type AttributeRule struct {
	Name     string
	Values   []string
	Sanitize SanitizeFunc
}

// Accepts reports whether value is in the allowed value set.
func (a AttributeRule) Accepts(value string) bool {
	if len(a.Values) == 0 {
		return true
	}
	return slices.Contains(a.Values, Wildcard) || slices.Contains(a.Values, value)
}

func cloneAttributes(attrs []AttributeRule) []AttributeRule {
	if attrs == nil {
		return nil
	}
	out := make([]AttributeRule, len(attrs))
	for i, a := range attrs {
		out[i] = AttributeRule{Name: a.Name, Values: slices.Clone(a.Values), Sanitize: a.Sanitize}
	}
	return out
}

// ChildRule allows a set of child tags, with optional per-tag class and
// attribute overrides, and says whether blank text may appear.
type ChildRule struct {
	Tags       []string
	Classes    map[string]*ClassRule
	Attributes map[string][]AttributeRule
	AllowText  bool
}

func (c ChildRule) clone() ChildRule {
	out := ChildRule{
		Tags:      slices.Clone(c.Tags),
		AllowText: c.AllowText,
	}
	if c.Classes != nil {
		out.Classes = make(map[string]*ClassRule, len(c.Classes))
		for tag, cr := range c.Classes {
			out.Classes[tag] = cr.clone()
		}
	}
	if c.Attributes != nil {
		out.Attributes = make(map[string][]AttributeRule, len(c.Attributes))
		for tag, attrs := range c.Attributes {
			out.Attributes[tag] = cloneAttributes(attrs)
		}
	}
	return out
}

// Hook is a custom validate or normalize step. It may mutate el and read
// the registry. A returned error aborts enforcement of the current batch.
type Hook func(el *html.Node, reg *Registry) error

// Rule is the contract for one tag.
type Rule struct {
	Tag               string
	Classes           *ClassRule
	AllowedAttributes []AttributeRule
	AllowedChildren   []ChildRule
	Validate          Hook
	Normalize         Hook
}

// Clone returns a deep copy of the rule's data. Hooks and sanitizers are
// shared.
func (r *Rule) Clone() *Rule {
	out := &Rule{
		Tag:               r.Tag,
		Classes:           r.Classes.clone(),
		AllowedAttributes: cloneAttributes(r.AllowedAttributes),
		Validate:          r.Validate,
		Normalize:         r.Normalize,
	}
	if r.AllowedChildren != nil {
		out.AllowedChildren = make([]ChildRule, len(r.AllowedChildren))
		for i, c := range r.AllowedChildren {
			out.AllowedChildren[i] = c.clone()
		}
	}
	return out
}

// VariantSchema is a named alternative rule for a tag.
type VariantSchema struct {
	Name string
	Rule
}

// ChildSet is the flattened form of a rule's AllowedChildren.
type ChildSet struct {
	Tags       map[string]bool
	Classes    map[string]*ClassRule
	Attributes map[string][]AttributeRule
	AllowText  bool
}

// Allows reports whether tag is an accepted child.
func (s ChildSet) Allows(tag string) bool {
	return s.Tags[foldTag(tag)]
}

// FlattenChildren merges child rules into one set. Tags are unioned, the
// text flag is OR-ed, and for per-tag overrides a later rule replaces an
// earlier one for the same tag.
func FlattenChildren(rules []ChildRule) ChildSet {
	set := ChildSet{
		Tags:       make(map[string]bool),
		Classes:    make(map[string]*ClassRule),
		Attributes: make(map[string][]AttributeRule),
	}
	for _, r := range rules {
		for _, tag := range r.Tags {
			set.Tags[foldTag(tag)] = true
		}
		for tag, cr := range r.Classes {
			set.Classes[foldTag(tag)] = cr
		}
		for tag, attrs := range r.Attributes {
			set.Attributes[foldTag(tag)] = attrs
		}
		set.AllowText = set.AllowText || r.AllowText
	}
	return set
}
