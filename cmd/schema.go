package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/blockedit/internal/editor"
	"github.com/conneroisu/blockedit/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List the registered blocks",
	Long: `List every block the schema knows after default blocks, schema files
and extensions have been applied.

Examples:
  blockedit schema              # Table of blocks
  blockedit schema --root       # Only blocks allowed in the root
  blockedit schema -f yaml      # Machine readable`,
	RunE: runSchema,
}

var (
	schemaFlags    *OutputFlags
	schemaRootOnly bool
)

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaFlags = AddOutputFlags(schemaCmd, "table", FormatJSON, FormatYAML)
	schemaCmd.Flags().BoolVar(&schemaRootOnly, "root", false, "Only list blocks allowed in the root")
}

// BlockListing describes one registered block. AnyChildren is set when
// the rule does not constrain children.
type BlockListing struct {
	Tag         string   `json:"tag" yaml:"tag"`
	Root        bool     `json:"root" yaml:"root"`
	Classes     []string `json:"classes,omitempty" yaml:"classes,omitempty"`
	Attributes  []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children    []string `json:"children,omitempty" yaml:"children,omitempty"`
	Text        bool     `json:"text" yaml:"text"`
	AnyChildren bool     `json:"any_children" yaml:"any_children"`
}

func runSchema(cmd *cobra.Command, args []string) error {
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

	blocks := listBlocks(ed.Registry(), schemaRootOnly)

	out := cmd.OutOrStdout()
	switch schemaFlags.Format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(blocks)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(blocks)
	}
	return printBlockTable(out, blocks)
}

func listBlocks(reg *schema.Registry, rootOnly bool) []BlockListing {
	var blocks []BlockListing
	for _, tag := range reg.Tags() {
		root := reg.IsAllowedInRoot(tag)
		if rootOnly && !root {
			continue
		}
		rule, ok := reg.Rule(tag)
		if !ok {
			continue
		}
		unconstrained := rule.AllowedChildren == nil
		b := BlockListing{Tag: tag, Root: root, Text: unconstrained, AnyChildren: unconstrained}
		if rule.Classes != nil {
			b.Classes = append(b.Classes, rule.Classes.Allowed...)
		}
		for _, a := range rule.AllowedAttributes {
			b.Attributes = append(b.Attributes, a.Name)
		}
		for _, c := range rule.AllowedChildren {
			b.Children = append(b.Children, c.Tags...)
			if c.AllowText {
				b.Text = true
			}
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func printBlockTable(out io.Writer, blocks []BlockListing) error {
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Blocks (%d)", len(blocks))))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tROOT\tCLASSES\tATTRIBUTES\tCHILDREN")
	for _, b := range blocks {
		root := ""
		if b.Root {
			root = "yes"
		}
		children := strings.Join(b.Children, ",")
		switch {
		case b.AnyChildren:
			children = "any"
		case b.Text:
			children = strings.TrimPrefix(children+",#text", ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", b.Tag, root,
			orDash(strings.Join(b.Classes, ",")),
			orDash(strings.Join(b.Attributes, ",")),
			orDash(children))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
