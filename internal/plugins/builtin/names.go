// Package builtin provides the editor's extensible host plugins (schema,
// slash menu, toolbar, shortcuts, assets) and the extensions that ship
// with the editor.
package builtin

import (
	"context"

	"github.com/conneroisu/blockedit/internal/logging"
	"github.com/conneroisu/blockedit/internal/plugins"
)

// Host plugin names. Extensions return one of these from Target.
const (
	SchemaPluginName    = "schema"
	SlashMenuPluginName = "slash-menu"
	ToolbarPluginName   = "toolbar"
	ShortcutPluginName  = "shortcuts"
	AssetsPluginName    = "assets"
)

// accept keeps the extensions implementing T and logs the rest.
func accept[T plugins.Extension](ctx context.Context, logger logging.Logger, host string, exts []plugins.Extension) []T {
	matched, rejected := plugins.ExtensionsOf[T](exts)
	for _, ext := range rejected {
		logger.Warn(ctx, nil, "Extension does not implement the host contract",
			"host", host, "extension", ext.Name())
	}
	return matched
}

func orDefault(logger logging.Logger) logging.Logger {
	if logger == nil {
		return logging.NewLogger(logging.DefaultConfig())
	}
	return logger
}
