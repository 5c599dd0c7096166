package builtin

import (
	"context"
	"sync"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/enforcer"
	"github.com/conneroisu/blockedit/internal/fallback"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/plugins"
	"github.com/conneroisu/blockedit/internal/schema"
)

// BlockDefinition is a block rule contributed by a schema extension.
type BlockDefinition struct {
	Tag      string
	Rule     schema.Rule
	Root     bool
	Variants []schema.VariantSchema
}

// FallbackDefinition is a fallback contributed by a schema extension.
// A non-empty Tag registers a tag fallback; otherwise Predicate registers
// an intent fallback with Priority.
type FallbackDefinition struct {
	Tag       string
	Predicate fallback.Predicate
	Factory   fallback.Factory
	Priority  int
}

// SchemaExtension contributes blocks and fallbacks.
type SchemaExtension interface {
	plugins.Extension

	Blocks() ([]BlockDefinition, error)
	Fallbacks() ([]FallbackDefinition, error)
}

// SchemaPlugin registers schema contributions into the injected registries
// at attach time and, on setup, enforces the document and starts observing
// it.
type SchemaPlugin struct {
	registry  *schema.Registry
	fallbacks *fallback.Registry
	logger    logging.Logger
	opts      []enforcer.Option

	mu       sync.Mutex
	enforcer *enforcer.Enforcer
}

// NewSchemaPlugin creates the schema host. opts are passed to the enforcer
// created on setup.
func NewSchemaPlugin(reg *schema.Registry, fb *fallback.Registry, logger logging.Logger, opts ...enforcer.Option) *SchemaPlugin {
	return &SchemaPlugin{
		registry:  reg,
		fallbacks: fb,
		logger:    orDefault(logger).WithComponent(SchemaPluginName),
		opts:      opts,
	}
}

// Name returns the plugin name.
func (p *SchemaPlugin) Name() string { return SchemaPluginName }

// Description returns the plugin description.
func (p *SchemaPlugin) Description() string {
	return "Enforces the block schema on every inserted element"
}

// AttachExtensions registers every contributed block and fallback.
func (p *SchemaPlugin) AttachExtensions(exts []plugins.Extension) error {
	ctx := context.Background()
	schemaExts := accept[SchemaExtension](ctx, p.logger, SchemaPluginName, exts)

	blocks, _ := plugins.Collect(ctx, p.logger, schemaExts, SchemaExtension.Blocks)
	for _, b := range blocks {
		p.registry.RegisterBlock(b.Tag, b.Rule)
		if b.Root {
			p.registry.AllowInRoot(b.Tag)
		}
		for _, v := range b.Variants {
			p.registry.RegisterVariant(b.Tag, v)
		}
	}

	fallbacks, _ := plugins.Collect(ctx, p.logger, schemaExts, SchemaExtension.Fallbacks)
	for _, f := range fallbacks {
		switch {
		case f.Factory == nil:
			continue
		case f.Tag != "":
			p.fallbacks.RegisterTagFallback(f.Tag, f.Factory)
		case f.Predicate != nil:
			p.fallbacks.RegisterIntentFallback(f.Predicate, f.Factory, f.Priority)
		}
	}

	p.logger.Debug(ctx, "Schema contributions registered",
		"blocks", len(blocks), "fallbacks", len(fallbacks))
	return nil
}

// Setup normalizes the current document and starts observing it.
func (p *SchemaPlugin) Setup(ctx context.Context, root *dom.Document, _ []plugins.Plugin) error {
	opts := append([]enforcer.Option{
		enforcer.WithRegistry(p.registry),
		enforcer.WithFallbacks(p.fallbacks),
		enforcer.WithLogger(p.logger),
	}, p.opts...)
	enf := enforcer.New(root, opts...)
	if err := enf.EnforceRoot(); err != nil {
		return err
	}
	enf.Start()

	p.mu.Lock()
	p.enforcer = enf
	p.mu.Unlock()
	return nil
}

// Teardown stops observing.
func (p *SchemaPlugin) Teardown(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enforcer != nil {
		p.enforcer.Stop()
	}
	return nil
}

// Enforcer returns the enforcer created on setup, or nil before setup.
func (p *SchemaPlugin) Enforcer() *enforcer.Enforcer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enforcer
}

// Registry returns the schema registry.
func (p *SchemaPlugin) Registry() *schema.Registry {
	return p.registry
}
