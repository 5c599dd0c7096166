package plugins

import (
	"context"
	"sort"

	"github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/logging"
)

// Contribution is an item an extension adds to a host: a menu entry, a
// toolbar button, a shortcut. Lower sort keys come first.
type Contribution interface {
	SortKey() int
}

// Conditional is implemented by contributions that may be hidden in the
// current editing state.
type Conditional interface {
	Visible() bool
}

// Collect asks every extension for its contributions. An extension that
// returns an error or panics is logged and skipped; the others still
// contribute. Results keep extension order.
func Collect[E Extension, C any](
	ctx context.Context,
	logger logging.Logger,
	exts []E,
	contribute func(E) ([]C, error),
) ([]C, []errors.PluginFailure) {
	var (
		items    []C
		failures []errors.PluginFailure
	)
	for _, ext := range exts {
		var got []C
		err := guard(func() error {
			var err error
			got, err = contribute(ext)
			return err
		})
		if err != nil {
			failures = append(failures, errors.PluginFailure{
				Plugin: ext.Name(),
				Phase:  errors.PhaseContribute,
				Err:    err,
			})
			if logger != nil {
				logger.Warn(ctx, err, "Extension contribution failed",
					"extension", ext.Name(), "target", ext.Target())
			}
			continue
		}
		items = append(items, got...)
	}
	return items, failures
}

// FilterVisible drops contributions that implement Conditional and report
// themselves hidden.
func FilterVisible[C any](items []C) []C {
	out := items[:0:0]
	for _, item := range items {
		if c, ok := any(item).(Conditional); ok && !c.Visible() {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SortContributions orders items by ascending sort key. Equal keys keep
// their relative order.
func SortContributions[C Contribution](items []C) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].SortKey() < items[j].SortKey()
	})
}

// Aggregate collects, filters and sorts in one step.
func Aggregate[E Extension, C Contribution](
	ctx context.Context,
	logger logging.Logger,
	exts []E,
	contribute func(E) ([]C, error),
) ([]C, []errors.PluginFailure) {
	items, failures := Collect(ctx, logger, exts, contribute)
	items = FilterVisible(items)
	SortContributions(items)
	return items, failures
}

// ExtensionsOf narrows a host's attached extensions to those implementing
// the host's contribution interface. Extensions of another kind are
// returned separately so the host can report them.
func ExtensionsOf[T Extension](exts []Extension) (matched []T, rejected []Extension) {
	for _, ext := range exts {
		if t, ok := ext.(T); ok {
			matched = append(matched, t)
			continue
		}
		rejected = append(rejected, ext)
	}
	return matched, rejected
}
