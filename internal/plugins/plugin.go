package plugins

import (
	"context"

	"github.com/conneroisu/blockedit/internal/dom"
)

// Plugin is a lifecycle unit. Setup is called once per build, after every
// extensible plugin has received its extensions.
type Plugin interface {
	// Name returns the unique name of the plugin. Extensions use it as
	// their target key.
	Name() string

	// Setup wires the plugin to the document. all holds every registered
	// plugin in registration order.
	Setup(ctx context.Context, root *dom.Document, all []Plugin) error
}

// Extensible is a plugin that accepts extensions. AttachExtensions is
// called exactly once per build, before Setup, with every extension
// targeting the plugin in registration order (possibly none).
type Extensible interface {
	Plugin

	AttachExtensions(extensions []Extension) error
}

// Extension contributes to one extensible plugin. It holds no reference to
// the engine; the engine owns the target association.
type Extension interface {
	// Name identifies the extension in logs and listings.
	Name() string

	// Target returns the Name of the plugin this extension augments.
	Target() string
}

// Teardown is implemented by plugins that hold resources (observers,
// listeners, timers) they must release on shutdown.
type Teardown interface {
	Teardown(ctx context.Context) error
}

// Describer is implemented by plugins and extensions that provide a
// human-readable description for listings.
type Describer interface {
	Description() string
}

// PluginState represents the current state of a plugin
type PluginState string

const (
	PluginStateRegistered PluginState = "registered"
	PluginStateAttached   PluginState = "attached"
	PluginStateEnabled    PluginState = "enabled"
	PluginStateDisabled   PluginState = "disabled"
	PluginStateError      PluginState = "error"
	PluginStateStopped    PluginState = "stopped"
)

// PluginInfo describes a registered plugin for listings.
type PluginInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	State       PluginState `json:"state"`
	Extensible  bool        `json:"extensible"`
	Extensions  []string    `json:"extensions,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ExtensionInfo describes a registered extension for listings.
type ExtensionInfo struct {
	Name        string `json:"name"`
	Target      string `json:"target"`
	Description string `json:"description,omitempty"`
	Orphan      bool   `json:"orphan,omitempty"`
}

// BasePlugin supplies a name and no-op lifecycle methods for embedding.
type BasePlugin struct {
	PluginName string
}

// Name returns the plugin name.
func (b BasePlugin) Name() string { return b.PluginName }

// Setup does nothing.
func (b BasePlugin) Setup(context.Context, *dom.Document, []Plugin) error { return nil }

// BaseExtension supplies Name and Target for embedding.
type BaseExtension struct {
	ExtensionName string
	TargetName    string
}

// Name returns the extension name.
func (b BaseExtension) Name() string { return b.ExtensionName }

// Target returns the target plugin name.
func (b BaseExtension) Target() string { return b.TargetName }
