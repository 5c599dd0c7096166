package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/blockedit/internal/editor"
	"github.com/conneroisu/blockedit/internal/plugins"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List plugins, their extensions and states",
	Long: `List the host plugins after the engine has been built, together with
the extensions attached to each and the state every plugin ended in.
Configured Lua scripts are loaded, so broken scripts show up here.

Examples:
  blockedit plugins             # Table of plugins and extensions
  blockedit plugins -f json     # Machine readable`,
	RunE: runPlugins,
}

var pluginsFlags *OutputFlags

func init() {
	rootCmd.AddCommand(pluginsCmd)
	pluginsFlags = AddOutputFlags(pluginsCmd, "table", FormatJSON, FormatYAML)
}

// PluginListing is the structured output of plugins.
type PluginListing struct {
	Plugins    []plugins.PluginInfo    `json:"plugins" yaml:"plugins"`
	Extensions []plugins.ExtensionInfo `json:"extensions" yaml:"extensions"`
}

func runPlugins(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := context.Background()
	ed, err := editor.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ed.Close(ctx)

	listing := PluginListing{
		Plugins:    ed.Engine().Plugins(),
		Extensions: ed.Engine().Extensions(),
	}

	out := cmd.OutOrStdout()
	switch pluginsFlags.Format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(listing)
	}
	return printPluginTable(out, listing)
}

func printPluginTable(out io.Writer, listing PluginListing) error {
	fmt.Fprintln(out, titleStyle.Render("Plugins"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tEXTENSIONS\tDESCRIPTION")
	for _, p := range listing.Plugins {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Name, stateLabel(p.State), len(p.Extensions), p.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Extensions"))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTARGET\tDESCRIPTION")
	for _, e := range listing.Extensions {
		target := e.Target
		if e.Orphan {
			target += " " + warningStyle.Render("(no host)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, target, e.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, p := range listing.Plugins {
		if p.Error != "" {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("%s: %s", p.Name, p.Error)))
		}
	}
	return nil
}

func stateLabel(state plugins.PluginState) string {
	switch state {
	case plugins.PluginStateEnabled:
		return successStyle.Render(title(string(state)))
	case plugins.PluginStateError:
		return errorStyle.Render(title(string(state)))
	case plugins.PluginStateDisabled:
		return mutedStyle.Render(title(string(state)))
	}
	return title(string(state))
}
