// Package blocks registers the editor's default block schema.
package blocks

import (
	"github.com/conneroisu/blockedit/internal/schema"
)

// Inline lists the tags allowed inside text blocks.
var Inline = []string{
	"strong", "em", "b", "i", "u", "s", "code", "a", "span", "br", "mark", "sub", "sup",
}

// Headings are the heading levels registered as blocks.
var Headings = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

// RootTags are the tags allowed directly under the editing root.
var RootTags = []string{
	"p", "h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "blockquote", "pre", "hr", "figure", "table",
}

// BlockClass is carried by every top-level block.
const BlockClass = "block"

func blockClasses() *schema.ClassRule {
	return &schema.ClassRule{Allowed: []string{BlockClass}, AllowAdditional: true}
}

func inlineChildren() schema.ChildRule {
	return schema.ChildRule{
		Tags:      Inline,
		AllowText: true,
		Attributes: map[string][]schema.AttributeRule{
			"a": {
				{Name: "href", Sanitize: schema.URLSanitizer},
				{Name: "title"},
				{Name: "target", Values: []string{"_blank", "_self"}},
			},
			"span": {{Name: "data-mark"}},
		},
	}
}

var common = []schema.AttributeRule{
	{Name: "data-id", Sanitize: schema.TrimSanitizer},
	{Name: "data-placeholder"},
	{Name: "data-persist"},
}

func attrs(extra ...schema.AttributeRule) []schema.AttributeRule {
	out := make([]schema.AttributeRule, 0, len(common)+len(extra))
	out = append(out, common...)
	return append(out, extra...)
}

// Rules returns the default block rules keyed by tag.
func Rules() map[string]schema.Rule {
	rules := map[string]schema.Rule{
		"p": {
			Classes:           blockClasses(),
			AllowedAttributes: attrs(),
			AllowedChildren:   []schema.ChildRule{inlineChildren()},
		},
		"ul": {
			Classes:           blockClasses(),
			AllowedAttributes: attrs(),
			AllowedChildren:   []schema.ChildRule{{Tags: []string{"li"}}},
		},
		"ol": {
			Classes:           blockClasses(),
			AllowedAttributes: attrs(schema.AttributeRule{Name: "start", Sanitize: schema.IntSanitizer}),
			AllowedChildren:   []schema.ChildRule{{Tags: []string{"li"}}},
		},
		"li": {
			AllowedAttributes: attrs(),
			AllowedChildren: []schema.ChildRule{
				inlineChildren(),
				{Tags: []string{"ul", "ol"}},
			},
		},
		"blockquote": {
			Classes:           blockClasses(),
			AllowedAttributes: attrs(),
			AllowedChildren: []schema.ChildRule{
				inlineChildren(),
				{Tags: []string{"p"}},
			},
		},
		"pre": {
			Classes: blockClasses(),
			AllowedAttributes: attrs(schema.AttributeRule{
				Name: "data-language", Sanitize: schema.LowerSanitizer,
			}),
			AllowedChildren: []schema.ChildRule{{Tags: []string{"code"}, AllowText: true}},
		},
		"hr": {
			Classes:           blockClasses(),
			AllowedAttributes: attrs(),
		},
		"figure": {
			Classes:           blockClasses(),
			AllowedAttributes: attrs(),
			AllowedChildren:   []schema.ChildRule{{Tags: []string{"img", "figcaption"}}},
		},
		"img": {
			AllowedAttributes: []schema.AttributeRule{
				{Name: "src", Sanitize: schema.URLSanitizer},
				{Name: "alt"},
				{Name: "width", Sanitize: schema.IntSanitizer},
				{Name: "height", Sanitize: schema.IntSanitizer},
			},
		},
		"figcaption": {
			AllowedChildren: []schema.ChildRule{inlineChildren()},
		},
		"table": {
			Classes:           blockClasses(),
			AllowedAttributes: attrs(),
			AllowedChildren:   []schema.ChildRule{{Tags: []string{"thead", "tbody"}}},
		},
		"thead": {AllowedChildren: []schema.ChildRule{{Tags: []string{"tr"}}}},
		"tbody": {AllowedChildren: []schema.ChildRule{{Tags: []string{"tr"}}}},
		"tr":    {AllowedChildren: []schema.ChildRule{{Tags: []string{"td", "th"}}}},
		"td": {
			AllowedAttributes: []schema.AttributeRule{
				{Name: "colspan", Sanitize: schema.IntSanitizer},
				{Name: "rowspan", Sanitize: schema.IntSanitizer},
			},
			AllowedChildren: []schema.ChildRule{inlineChildren()},
		},
		"th": {
			AllowedAttributes: []schema.AttributeRule{
				{Name: "colspan", Sanitize: schema.IntSanitizer},
				{Name: "scope", Values: []string{"col", "row"}},
			},
			AllowedChildren: []schema.ChildRule{inlineChildren()},
		},
	}
	for _, h := range Headings {
		rules[h] = schema.Rule{
			Classes:           blockClasses(),
			AllowedAttributes: attrs(),
			AllowedChildren:   []schema.ChildRule{inlineChildren()},
		}
	}
	return rules
}

// Register adds the default blocks and root-allow set to reg.
func Register(reg *schema.Registry) {
	for tag, rule := range Rules() {
		reg.RegisterBlock(tag, rule)
	}
	reg.AllowInRoot(RootTags...)
}
