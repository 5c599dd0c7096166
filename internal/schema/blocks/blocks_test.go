package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockedit/internal/schema"
)

func TestRegister(t *testing.T) {
	reg := schema.NewRegistry()
	Register(reg)

	for _, tag := range RootTags {
		_, ok := reg.Rule(tag)
		assert.True(t, ok, "root tag %s has a rule", tag)
		assert.True(t, reg.IsAllowedInRoot(tag))
	}

	assert.False(t, reg.IsAllowedInRoot("li"))
	assert.False(t, reg.IsAllowedInRoot("td"))
}

func TestParagraphAllowsInlineContent(t *testing.T) {
	reg := schema.NewRegistry()
	Register(reg)

	p, ok := reg.Rule("p")
	require.True(t, ok)

	set := schema.FlattenChildren(p.AllowedChildren)
	assert.True(t, set.AllowText)
	for _, tag := range Inline {
		assert.True(t, set.Allows(tag), tag)
	}
	assert.False(t, set.Allows("div"))
}

func TestLinkHrefSanitized(t *testing.T) {
	reg := schema.NewRegistry()
	Register(reg)

	p, _ := reg.Rule("p")
	set := schema.FlattenChildren(p.AllowedChildren)

	var href *schema.AttributeRule
	for i, a := range set.Attributes["a"] {
		if a.Name == "href" {
			href = &set.Attributes["a"][i]
		}
	}
	require.NotNil(t, href)

	_, ok := href.Sanitize("javascript:alert(1)")
	assert.False(t, ok)
	v, ok := href.Sanitize("https://example.com")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com", v)
}

func TestRulesAreIndependent(t *testing.T) {
	a := Rules()
	b := Rules()
	a["p"].Classes.Allowed[0] = "changed"
	assert.Equal(t, BlockClass, b["p"].Classes.Allowed[0])
}
