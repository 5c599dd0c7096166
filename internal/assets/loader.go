package assets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/logging"
)

// DefaultIdleDelay is used when no idle delay is configured.
const DefaultIdleDelay = 200 * time.Millisecond

// Loader registers bundles and loads them on demand or on schedule.
// Concurrent requests for a feature share one in-flight load. A successful
// load is remembered; a failed one is forgotten so it can be retried.
type Loader struct {
	injector  Injector
	logger    logging.Logger
	idleDelay time.Duration

	mu      sync.RWMutex
	bundles map[string]Bundle
	loaded  map[string]bool

	flight    singleflight.Group
	scheduled sync.WaitGroup
	failures  *errors.ErrorCollector
}

// Option configures a Loader.
type Option func(*Loader)

// WithIdleDelay sets how long idle bundles wait after Schedule.
func WithIdleDelay(d time.Duration) Option {
	return func(l *Loader) {
		l.idleDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader using injector.
func NewLoader(injector Injector, opts ...Option) *Loader {
	l := &Loader{
		injector:  injector,
		idleDelay: DefaultIdleDelay,
		bundles:   make(map[string]Bundle),
		loaded:    make(map[string]bool),
		failures:  errors.NewErrorCollector(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.NewLogger(logging.DefaultConfig())
	}
	l.logger = l.logger.WithComponent("assets")
	return l
}

// Register adds or replaces a bundle.
func (l *Loader) Register(b Bundle) error {
	if b.Feature == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "bundle without a feature name")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bundles[b.Feature] = b
	return nil
}

// Bundle returns a registered bundle.
func (l *Loader) Bundle(feature string) (Bundle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.bundles[feature]
	return b, ok
}

// Features returns the registered feature names, sorted.
func (l *Loader) Features() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.bundles))
	for f := range l.bundles {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Loaded reports whether feature finished loading.
func (l *Loader) Loaded(feature string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded[feature]
}

// ResolveOrder returns feature and its transitive dependencies in load
// order, dependencies first. Unknown features and cycles are configuration
// errors.
func (l *Loader) ResolveOrder(feature string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		order    []string
		visited  = make(map[string]bool)
		visiting = make(map[string]bool)
		path     []string
	)
	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		if visiting[name] {
			return errors.ErrDependencyCycle(append(cyclePath(path, name), name))
		}
		b, ok := l.bundles[name]
		if !ok {
			return errors.ErrUnknownFeature(name)
		}
		visiting[name] = true
		path = append(path, name)
		for _, dep := range b.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		visiting[name] = false
		visited[name] = true
		order = append(order, name)
		return nil
	}
	if err := visit(feature); err != nil {
		return nil, err
	}
	return order, nil
}

// cyclePath returns the part of path starting at name.
func cyclePath(path []string, name string) []string {
	for i, p := range path {
		if p == name {
			return append([]string(nil), path[i:]...)
		}
	}
	return append([]string(nil), path...)
}

// Ensure loads feature and its dependencies unless already loaded.
func (l *Loader) Ensure(ctx context.Context, feature string) error {
	if l.Loaded(feature) {
		return nil
	}
	order, err := l.ResolveOrder(feature)
	if err != nil {
		return err
	}
	for _, name := range order {
		if err := l.ensureOne(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) ensureOne(ctx context.Context, feature string) error {
	_, err, shared := l.flight.Do(feature, func() (interface{}, error) {
		if l.Loaded(feature) {
			return nil, nil
		}
		b, ok := l.Bundle(feature)
		if !ok {
			return nil, errors.ErrUnknownFeature(feature)
		}
		if err := l.inject(ctx, b); err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded[feature] = true
		l.mu.Unlock()
		l.logger.Debug(ctx, "Bundle loaded", "feature", feature)
		return nil, nil
	})
	if shared {
		l.logger.Debug(ctx, "Joined in-flight bundle load", "feature", feature)
	}
	return err
}

func (l *Loader) inject(ctx context.Context, b Bundle) error {
	wrap := func(kind, ref string, err error) error {
		return errors.NewAssetError(errors.ErrCodeAssetLoad,
			fmt.Sprintf("loading %s for %s", kind, b.Feature), err).
			WithContext("feature", b.Feature).
			WithContext("ref", ref)
	}
	for _, href := range b.Styles {
		if err := l.injector.InjectStyle(ctx, href); err != nil {
			return wrap("style", href, err)
		}
	}
	for _, src := range b.Scripts {
		if err := l.injector.InjectScript(ctx, src); err != nil {
			return wrap("script", src, err)
		}
	}
	for i, code := range b.Inline {
		if err := l.injector.InjectInline(ctx, code); err != nil {
			return wrap("inline code", fmt.Sprintf("#%d", i), err)
		}
	}
	return nil
}

// Schedule starts loading startup bundles now and idle bundles after the
// idle delay. It does not block; failures are logged and reported by Wait.
func (l *Loader) Schedule(ctx context.Context) {
	var startup, idle []string
	for _, f := range l.Features() {
		b, _ := l.Bundle(f)
		switch b.Schedule {
		case ScheduleStartup:
			startup = append(startup, f)
		case ScheduleIdle:
			idle = append(idle, f)
		}
	}

	if len(startup) > 0 {
		l.scheduled.Add(1)
		go func() {
			defer l.scheduled.Done()
			var g errgroup.Group
			for _, f := range startup {
				g.Go(func() error {
					l.record(ctx, f, l.Ensure(ctx, f))
					return nil
				})
			}
			_ = g.Wait()
		}()
	}

	if len(idle) > 0 {
		l.scheduled.Add(1)
		time.AfterFunc(l.idleDelay, func() {
			defer l.scheduled.Done()
			for _, f := range idle {
				if ctx.Err() != nil {
					l.record(ctx, f, ctx.Err())
					continue
				}
				l.record(ctx, f, l.Ensure(ctx, f))
			}
		})
	}
}

func (l *Loader) record(ctx context.Context, feature string, err error) {
	if err == nil {
		return
	}
	l.failures.Add(errors.PluginFailure{Plugin: feature, Phase: errors.PhaseSetup, Err: err})
	l.logger.Warn(ctx, err, "Scheduled bundle failed to load", "feature", feature)
}

// Wait blocks until scheduled loading finishes and returns the joined
// failures.
func (l *Loader) Wait() error {
	l.scheduled.Wait()
	return l.failures.Err()
}
