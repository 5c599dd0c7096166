package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockedit/internal/logging"
)

type item struct {
	label  string
	sort   int
	hidden bool
}

func (i item) SortKey() int  { return i.sort }
func (i item) Visible() bool { return !i.hidden }

type itemSource struct {
	BaseExtension
	items  []item
	err    error
	panics bool
}

func (s *itemSource) Items() ([]item, error) {
	if s.panics {
		panic("broken extension")
	}
	return s.items, s.err
}

func source(name string, items ...item) *itemSource {
	return &itemSource{BaseExtension: BaseExtension{ExtensionName: name, TargetName: "menu"}, items: items}
}

func contribute(s *itemSource) ([]item, error) { return s.Items() }

func labels(items []item) []string {
	out := make([]string, 0, len(items))
	for _, i := range items {
		out = append(out, i.label)
	}
	return out
}

func TestAggregate_SortOrder(t *testing.T) {
	exts := []*itemSource{
		source("e1", item{label: "E1", sort: 10}),
		source("e2", item{label: "E2", sort: 30}),
		source("e3", item{label: "E3", sort: 20}),
	}

	items, failures := Aggregate(context.Background(), logging.NewTestLogger(), exts, contribute)
	assert.Empty(t, failures)
	assert.Equal(t, []string{"E1", "E3", "E2"}, labels(items))
}

func TestAggregate_TiesKeepInsertionOrder(t *testing.T) {
	exts := []*itemSource{
		source("a", item{label: "A", sort: 5}, item{label: "B", sort: 5}),
		source("b", item{label: "C", sort: 1}, item{label: "D", sort: 5}),
	}

	items, _ := Aggregate(context.Background(), logging.NewTestLogger(), exts, contribute)
	assert.Equal(t, []string{"C", "A", "B", "D"}, labels(items))
}

func TestAggregate_SkipsFailingExtensions(t *testing.T) {
	broken := source("broken", item{label: "X"})
	broken.err = errors.New("cannot build items")
	panicky := source("panicky")
	panicky.panics = true

	exts := []*itemSource{
		source("ok", item{label: "A", sort: 2}),
		broken,
		panicky,
		source("ok2", item{label: "B", sort: 1}),
	}

	items, failures := Aggregate(context.Background(), logging.NewTestLogger(), exts, contribute)
	assert.Equal(t, []string{"B", "A"}, labels(items))
	require.Len(t, failures, 2)
	assert.Equal(t, "broken", failures[0].Plugin)
	assert.Equal(t, "panicky", failures[1].Plugin)
	assert.Contains(t, failures[1].Err.Error(), "broken extension")
}

func TestFilterVisible(t *testing.T) {
	items := []item{{label: "a"}, {label: "b", hidden: true}, {label: "c"}}
	assert.Equal(t, []string{"a", "c"}, labels(FilterVisible(items)))
	assert.Len(t, items, 3, "input is not modified")
}

func TestExtensionsOf(t *testing.T) {
	exts := []Extension{source("menu-items"), &MockExtension{BaseExtension{ExtensionName: "other"}}}

	matched, rejected := ExtensionsOf[*itemSource](exts)
	require.Len(t, matched, 1)
	assert.Equal(t, "menu-items", matched[0].Name())
	require.Len(t, rejected, 1)
	assert.Equal(t, "other", rejected[0].Name())
}
