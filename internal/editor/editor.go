// Package editor wires the schema, fallback, enforcement, plugin, overlay
// and asset services around one editing root.
package editor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/blockedit/internal/assets"
	"github.com/conneroisu/blockedit/internal/config"
	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/enforcer"
	"github.com/conneroisu/blockedit/internal/errors"
	"github.com/conneroisu/blockedit/internal/fallback"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/overlay"
	"github.com/conneroisu/blockedit/internal/placeholder"
	"github.com/conneroisu/blockedit/internal/plugins"
	"github.com/conneroisu/blockedit/internal/plugins/builtin"
	"github.com/conneroisu/blockedit/internal/plugins/lua"
	"github.com/conneroisu/blockedit/internal/schema"
)

// Editor owns one editing root and the services enforcing it.
type Editor struct {
	cfg    *config.Config
	logger logging.Logger

	doc       *dom.Document
	registry  *schema.Registry
	fallbacks *fallback.Registry
	engine    *plugins.Engine
	stack     *overlay.Stack
	loader    *assets.Loader
	injector  *assets.DocumentInjector
	overlays  *html.Node

	schemaHost *builtin.SchemaPlugin
	slashMenu  *builtin.SlashMenuPlugin
	toolbar    *builtin.ToolbarPlugin
	shortcuts  *builtin.ShortcutPlugin
	assetsHost *builtin.AssetsPlugin
	scripts    []*lua.Extension

	diagnostics func(enforcer.Normalization)

	mu          sync.Mutex
	corrections []enforcer.Normalization
	closed      bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithExtensions adds extensions next to the built-in ones.
func WithExtensions(exts ...plugins.Extension) Option {
	return func(e *Editor) {
		for _, ext := range exts {
			if err := e.engine.Extend(ext); err != nil {
				e.logger.Warn(context.Background(), err, "Extension rejected", "extension", ext.Name())
			}
		}
	}
}

// WithDiagnostics receives every correction as it is made.
func WithDiagnostics(fn func(enforcer.Normalization)) Option {
	return func(e *Editor) {
		e.diagnostics = fn
	}
}

// New builds an editor from cfg and starts its plugins. A nil cfg uses
// config.Default.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (*Editor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewLogger(logging.DefaultConfig())
	}

	fallbacks := fallback.NewRegistry(fallback.WithPlaceholder(placeholder.Options{
		Text: cfg.Editor.Placeholder,
	}))
	e := &Editor{
		cfg:       cfg,
		logger:    logger.WithComponent("editor"),
		doc:       dom.NewDocument(dom.Element(cfg.Editor.RootTag)),
		registry:  schema.NewRegistry(),
		fallbacks: fallbacks,
		engine:    plugins.NewEngine(logger, plugins.WithDisabled(cfg.Plugins.Disabled...)),
		overlays:  dom.Element("div", "class", "overlays"),
	}

	e.stack = overlay.NewStack(
		overlay.WithEditorArea(e.doc.Root()),
		overlay.WithHost(e.overlays),
		overlay.WithLogger(logger),
		overlay.WithOnCloseGroup(func() {
			e.logger.Debug(context.Background(), "Overlay group closed")
		}),
	)
	e.injector = assets.NewDocumentInjector(dom.Element("head"))
	e.loader = assets.NewLoader(e.injector,
		assets.WithIdleDelay(cfg.Assets.IdleDelay),
		assets.WithLogger(logger))

	e.schemaHost = builtin.NewSchemaPlugin(e.registry, e.fallbacks, logger,
		enforcer.WithPlaceholderText(cfg.Editor.Placeholder),
		enforcer.WithDiagnostics(e.record))
	e.slashMenu = builtin.NewSlashMenuPlugin(e.stack, logger)
	e.toolbar = builtin.NewToolbarPlugin(e.stack, logger)
	e.shortcuts = builtin.NewShortcutPlugin(logger)
	e.assetsHost = builtin.NewAssetsPlugin(e.loader, logger)

	for _, p := range []plugins.Plugin{e.schemaHost, e.slashMenu, e.toolbar, e.shortcuts, e.assetsHost} {
		if err := e.engine.Register(p); err != nil {
			return nil, err
		}
	}
	for _, ext := range e.builtinExtensions() {
		if err := e.engine.Extend(ext); err != nil {
			return nil, err
		}
	}
	e.loadScripts(ctx)

	for _, opt := range opts {
		opt(e)
	}

	if err := e.engine.Build(ctx, e.doc); err != nil {
		e.logger.Warn(ctx, err, "Some plugins failed to start")
	}

	// Schema files load after the default blocks so their rules win.
	for _, path := range cfg.Schema.Files {
		if err := schema.LoadFile(e.registry, path); err != nil {
			_ = e.Close(ctx)
			return nil, err
		}
	}

	e.logger.Debug(ctx, "Editor ready",
		"root", cfg.Editor.RootTag,
		"blocks", len(e.registry.Tags()),
		"plugins", len(e.engine.Plugins()))
	return e, nil
}

func (e *Editor) builtinExtensions() []plugins.Extension {
	exts := []plugins.Extension{
		builtin.NewBlockItems(),
		builtin.NewFormatButtons(),
		builtin.NewMarkdownShortcuts(),
	}
	if e.cfg.Schema.DefaultBlocks {
		exts = append(exts, builtin.NewDefaultBlocks())
	}
	if e.cfg.Assets.Core {
		exts = append(exts, builtin.NewStaticBundles("core-bundles", builtin.CoreBundles()...))
	}
	if len(e.cfg.Assets.Bundles) > 0 {
		exts = append(exts, builtin.NewStaticBundles("configured-bundles", e.cfg.Assets.Bundles...))
	}
	return exts
}

// loadScripts loads the configured Lua scripts. Scripts that fail to load
// are logged and skipped.
func (e *Editor) loadScripts(ctx context.Context) {
	opts := []lua.Option{lua.WithTimeout(e.cfg.Plugins.LuaTimeout)}
	for _, path := range e.cfg.Plugins.Scripts {
		info, err := os.Stat(path)
		if err != nil {
			e.logger.Warn(ctx, err, "Lua script path unavailable", "path", path)
			continue
		}

		var exts []*lua.Extension
		if info.IsDir() {
			exts, err = lua.LoadDir(path, opts...)
		} else {
			var ext *lua.Extension
			if ext, err = lua.LoadExtension(path, opts...); err == nil {
				exts = append(exts, ext)
			}
		}
		if err != nil {
			e.logger.Warn(ctx, err, "Lua scripts failed to load", "path", path)
		}

		for _, ext := range exts {
			if err := e.engine.Extend(ext); err != nil {
				e.logger.Warn(ctx, err, "Lua extension rejected", "extension", ext.Name())
				ext.Close()
				continue
			}
			e.scripts = append(e.scripts, ext)
		}
	}
}

func (e *Editor) record(n enforcer.Normalization) {
	e.mu.Lock()
	e.corrections = append(e.corrections, n)
	e.mu.Unlock()
	if e.diagnostics != nil {
		e.diagnostics(n)
	}
}

// Load replaces the editing root's content with markup and enforces it.
func (e *Editor) Load(markup string) error {
	if err := e.doc.SetInnerHTML(e.doc.Root(), markup); err != nil {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "cannot parse markup").
			WithContext("cause", err.Error())
	}
	return e.doc.Commit()
}

// Insert parses markup and inserts it before the element child at index.
// An index past the end appends.
func (e *Editor) Insert(markup string, index int) ([]*html.Node, error) {
	root := e.doc.Root()
	nodes, err := dom.ParseFragment(markup, dom.TagName(root))
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeValidationFailed, "cannot parse markup").
			WithContext("cause", err.Error())
	}

	ref := e.Block(index)
	for _, n := range nodes {
		if ref == nil {
			e.doc.AppendChild(root, n)
		} else {
			e.doc.InsertBefore(root, n, ref)
		}
	}
	if err := e.doc.Commit(); err != nil {
		return nil, err
	}

	// Enforcement may have swapped the inserted nodes; report what is
	// attached now.
	var placed []*html.Node
	for _, n := range nodes {
		if n.Parent == root {
			placed = append(placed, n)
		}
	}
	return placed, nil
}

// Normalize loads markup and returns the enforced result together with the
// corrections made while loading it.
func (e *Editor) Normalize(markup string) (string, []enforcer.Normalization, error) {
	e.TakeCorrections()
	if err := e.Load(markup); err != nil {
		return "", nil, err
	}
	return e.HTML(), e.TakeCorrections(), nil
}

// Block returns the element child of the root at index, or nil.
func (e *Editor) Block(index int) *html.Node {
	if index < 0 {
		return nil
	}
	blocks := dom.ElementChildren(e.doc.Root())
	if index >= len(blocks) {
		return nil
	}
	return blocks[index]
}

// OpenSlashMenu opens the slash menu for the block at index.
func (e *Editor) OpenSlashMenu(ctx context.Context, index int) (overlay.Component, error) {
	block := e.Block(index)
	if block == nil {
		return nil, errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("no block at index %d", index))
	}
	comp, _ := e.slashMenu.Open(ctx, block)
	return comp, nil
}

// ApplySlashItem turns the block at index into the item's block.
func (e *Editor) ApplySlashItem(ctx context.Context, index int, itemID string) (*html.Node, error) {
	block := e.Block(index)
	if block == nil {
		return nil, errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("no block at index %d", index))
	}
	return e.slashMenu.Apply(ctx, block, itemID)
}

// Corrections returns the corrections recorded so far.
func (e *Editor) Corrections() []enforcer.Normalization {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]enforcer.Normalization, len(e.corrections))
	copy(out, e.corrections)
	return out
}

// TakeCorrections returns and clears the recorded corrections.
func (e *Editor) TakeCorrections() []enforcer.Normalization {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.corrections
	e.corrections = nil
	return out
}

// HTML returns the editing root's content.
func (e *Editor) HTML() string { return e.doc.Render() }

// Head returns the markup injected by loaded asset bundles.
func (e *Editor) Head() string { return e.injector.Head() }

// OverlayHTML returns the markup of the open overlays.
func (e *Editor) OverlayHTML() string { return dom.InnerHTML(e.overlays) }

// Document returns the editing document.
func (e *Editor) Document() *dom.Document {
	return e.doc
}

// Registry returns the schema registry.
func (e *Editor) Registry() *schema.Registry {
	return e.registry
}

// Fallbacks returns the fallback registry.
func (e *Editor) Fallbacks() *fallback.Registry {
	return e.fallbacks
}

// Engine returns the plugin engine.
func (e *Editor) Engine() *plugins.Engine {
	return e.engine
}

// Stack returns the overlay stack.
func (e *Editor) Stack() *overlay.Stack {
	return e.stack
}

// Loader returns the asset loader.
func (e *Editor) Loader() *assets.Loader {
	return e.loader
}

// SlashMenu returns the slash menu host.
func (e *Editor) SlashMenu() *builtin.SlashMenuPlugin {
	return e.slashMenu
}

// Toolbar returns the toolbar host.
func (e *Editor) Toolbar() *builtin.ToolbarPlugin {
	return e.toolbar
}

// Shortcuts returns the shortcut host.
func (e *Editor) Shortcuts() *builtin.ShortcutPlugin {
	return e.shortcuts
}

// SchemaHost returns the schema host.
func (e *Editor) SchemaHost() *builtin.SchemaPlugin {
	return e.schemaHost
}

// Config returns the configuration the editor was built with.
func (e *Editor) Config() *config.Config {
	return e.cfg
}

// Close shuts the plugins down and releases Lua states. It is safe to call
// more than once.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.engine.Shutdown(ctx)
	e.stack.Clear()
	for _, s := range e.scripts {
		s.Close()
	}
	return err
}
