package builtin

import (
	"context"

	"github.com/conneroisu/blockedit/internal/assets"
	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/plugins"
)

// BundleExtension contributes asset bundles.
type BundleExtension interface {
	plugins.Extension

	Bundles() ([]assets.Bundle, error)
}

// AssetsPlugin registers contributed bundles with the loader and starts the
// scheduled loads on setup.
type AssetsPlugin struct {
	loader *assets.Loader
	logger logging.Logger
}

// NewAssetsPlugin creates the assets host.
func NewAssetsPlugin(loader *assets.Loader, logger logging.Logger) *AssetsPlugin {
	return &AssetsPlugin{
		loader: loader,
		logger: orDefault(logger).WithComponent(AssetsPluginName),
	}
}

// Name returns the plugin name.
func (p *AssetsPlugin) Name() string { return AssetsPluginName }

// Description returns the plugin description.
func (p *AssetsPlugin) Description() string {
	return "Lazy loading of feature scripts and styles"
}

// AttachExtensions registers every contributed bundle. Bundles the loader
// rejects are logged and skipped.
func (p *AssetsPlugin) AttachExtensions(exts []plugins.Extension) error {
	ctx := context.Background()
	bundleExts := accept[BundleExtension](ctx, p.logger, AssetsPluginName, exts)
	bundles, _ := plugins.Collect(ctx, p.logger, bundleExts, BundleExtension.Bundles)
	for _, b := range bundles {
		if err := p.loader.Register(b); err != nil {
			p.logger.Warn(ctx, err, "Bundle rejected", "feature", b.Feature)
		}
	}
	return nil
}

// Setup schedules startup and idle bundles.
func (p *AssetsPlugin) Setup(ctx context.Context, _ *dom.Document, _ []plugins.Plugin) error {
	p.loader.Schedule(ctx)
	return nil
}

// Teardown waits for scheduled loads to finish. Load failures were already
// logged by the loader.
func (p *AssetsPlugin) Teardown(ctx context.Context) error {
	if err := p.loader.Wait(); err != nil {
		p.logger.Debug(ctx, "Scheduled asset loads finished with errors", "error", err.Error())
	}
	return nil
}

// Loader returns the underlying loader.
func (p *AssetsPlugin) Loader() *assets.Loader {
	return p.loader
}
