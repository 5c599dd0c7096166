package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/logging"
)

// Engine instantiates the plugin graph: it groups extensions by target,
// attaches them to their extensible hosts and then runs every plugin's
// Setup. A failing plugin is marked as errored and skipped; the rest of the
// graph still builds.
type Engine struct {
	logger   logging.Logger
	failures *errors.ErrorCollector

	plugins    []Plugin
	byName     map[string]Plugin
	extensions []Extension
	states     map[string]PluginState
	attached   map[string][]Extension
	disabled   map[string]bool
	orphans    map[string]bool
	built      bool

	mu sync.RWMutex
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDisabled disables plugins by name. Disabled plugins are never
// attached or set up, and extensions targeting them are ignored.
func WithDisabled(names ...string) EngineOption {
	return func(e *Engine) {
		for _, name := range names {
			e.disabled[name] = true
		}
	}
}

// NewEngine creates an empty engine.
func NewEngine(logger logging.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = logging.NewLogger(logging.DefaultConfig())
	}
	e := &Engine{
		logger:   logger.WithComponent("plugins"),
		failures: errors.NewErrorCollector(),
		byName:   make(map[string]Plugin),
		states:   make(map[string]PluginState),
		attached: make(map[string][]Extension),
		disabled: make(map[string]bool),
		orphans:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a plugin. Names must be unique.
func (e *Engine) Register(p Plugin) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.built {
		return errors.NewPluginError(errors.ErrCodePluginSetup, "engine already built", nil).
			WithContext("plugin", p.Name())
	}
	name := p.Name()
	if _, exists := e.byName[name]; exists {
		return errors.NewPluginError(errors.ErrCodePluginDuplicate,
			fmt.Sprintf("plugin %s already registered", name), nil).WithContext("plugin", name)
	}

	e.plugins = append(e.plugins, p)
	e.byName[name] = p
	if e.disabled[name] {
		e.states[name] = PluginStateDisabled
	} else {
		e.states[name] = PluginStateRegistered
	}
	return nil
}

// Extend adds an extension. Its target does not need to be registered yet.
func (e *Engine) Extend(ext Extension) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.built {
		return errors.NewPluginError(errors.ErrCodePluginSetup, "engine already built", nil).
			WithContext("extension", ext.Name())
	}
	if ext.Target() == "" {
		return errors.NewPluginError(errors.ErrCodePluginAttach,
			fmt.Sprintf("extension %s has no target", ext.Name()), nil)
	}
	e.extensions = append(e.extensions, ext)
	return nil
}

// Build attaches extensions and sets up every enabled plugin, in
// registration order. It may only run once. The returned error joins every
// plugin failure; plugins that did not fail are fully set up regardless.
func (e *Engine) Build(ctx context.Context, doc *dom.Document) error {
	e.mu.Lock()
	if e.built {
		e.mu.Unlock()
		return errors.NewPluginError(errors.ErrCodePluginSetup, "engine already built", nil)
	}
	e.built = true

	var active []Plugin
	for _, p := range e.plugins {
		if !e.disabled[p.Name()] {
			active = append(active, p)
		}
	}
	groups := make(map[string][]Extension)
	for _, ext := range e.extensions {
		target := ext.Target()
		if _, ok := e.byName[target]; !ok {
			e.orphans[ext.Name()] = true
			e.logger.Warn(ctx, nil, "Extension targets unknown plugin",
				"extension", ext.Name(), "target", target)
			continue
		}
		if e.disabled[target] {
			e.logger.Debug(ctx, "Extension skipped, target disabled",
				"extension", ext.Name(), "target", target)
			continue
		}
		groups[target] = append(groups[target], ext)
	}
	e.mu.Unlock()

	for _, p := range active {
		name := p.Name()
		host, ok := p.(Extensible)
		if !ok {
			e.setState(name, PluginStateAttached)
			continue
		}
		exts := groups[name]
		if exts == nil {
			exts = []Extension{}
		}
		if err := guard(func() error { return host.AttachExtensions(exts) }); err != nil {
			e.fail(ctx, name, errors.PhaseAttach, err)
			continue
		}
		e.mu.Lock()
		e.attached[name] = exts
		e.states[name] = PluginStateAttached
		e.mu.Unlock()
		e.logger.Debug(ctx, "Extensions attached", "plugin", name, "count", len(exts))
	}

	for _, p := range active {
		name := p.Name()
		if e.State(name) == PluginStateError {
			continue
		}
		if err := guard(func() error { return p.Setup(ctx, doc, active) }); err != nil {
			e.fail(ctx, name, errors.PhaseSetup, err)
			continue
		}
		e.setState(name, PluginStateEnabled)
		e.logger.Info(ctx, "Plugin enabled", "plugin", name)
	}

	return e.failures.Err()
}

func (e *Engine) fail(ctx context.Context, name string, phase errors.Phase, err error) {
	e.setState(name, PluginStateError)
	e.failures.Add(errors.PluginFailure{Plugin: name, Phase: phase, Err: err})
	e.logger.Error(ctx, err, "Plugin failed", "plugin", name, "phase", string(phase))
}

func (e *Engine) setState(name string, state PluginState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[name] = state
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Plugin returns a registered plugin by name.
func (e *Engine) Plugin(name string) (Plugin, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.byName[name]
	return p, ok
}

// State returns the state of the named plugin.
func (e *Engine) State(name string) PluginState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[name]
}

// States returns a copy of every plugin state.
func (e *Engine) States() map[string]PluginState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]PluginState, len(e.states))
	for k, v := range e.states {
		out[k] = v
	}
	return out
}

// Failures returns every recorded plugin failure.
func (e *Engine) Failures() []errors.PluginFailure {
	return e.failures.Failures()
}

// Plugins describes the registered plugins in registration order.
func (e *Engine) Plugins() []PluginInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]PluginInfo, 0, len(e.plugins))
	for _, p := range e.plugins {
		name := p.Name()
		info := PluginInfo{Name: name, State: e.states[name]}
		if d, ok := p.(Describer); ok {
			info.Description = d.Description()
		}
		if _, ok := p.(Extensible); ok {
			info.Extensible = true
		}
		for _, ext := range e.attached[name] {
			info.Extensions = append(info.Extensions, ext.Name())
		}
		for _, f := range e.failures.FailuresFor(name) {
			info.Error = f.Err.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

// Extensions describes the registered extensions in registration order.
func (e *Engine) Extensions() []ExtensionInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	infos := make([]ExtensionInfo, 0, len(e.extensions))
	for _, ext := range e.extensions {
		info := ExtensionInfo{Name: ext.Name(), Target: ext.Target(), Orphan: e.orphans[ext.Name()]}
		if d, ok := ext.(Describer); ok {
			info.Description = d.Description()
		}
		infos = append(infos, info)
	}
	return infos
}

// Shutdown tears down enabled plugins in reverse registration order.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.RLock()
	plugins := make([]Plugin, len(e.plugins))
	copy(plugins, e.plugins)
	e.mu.RUnlock()

	collector := errors.NewErrorCollector()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		name := p.Name()
		if e.State(name) != PluginStateEnabled {
			continue
		}
		if td, ok := p.(Teardown); ok {
			if err := guard(func() error { return td.Teardown(ctx) }); err != nil {
				collector.Add(errors.PluginFailure{Plugin: name, Phase: errors.PhaseTeardown, Err: err})
				e.logger.Error(ctx, err, "Plugin teardown failed", "plugin", name)
			}
		}
		e.setState(name, PluginStateStopped)
	}
	return collector.Err()
}
