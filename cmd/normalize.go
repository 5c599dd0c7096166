package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/blockedit/internal/dom"
	"github.com/conneroisu/blockedit/internal/editor"
	"github.com/conneroisu/blockedit/internal/enforcer"
)

var normalizeCmd = &cobra.Command{
	Use:     "normalize [file]",
	Aliases: []string{"n"},
	Short:   "Normalize an HTML fragment against the schema",
	Long: `Normalize reads an HTML fragment from a file or from stdin, runs it
through the schema and prints the normalized markup. The corrections made
along the way are reported on stderr.

Examples:
  blockedit normalize page.html           # Normalize a file
  cat page.html | blockedit normalize     # Normalize stdin
  blockedit normalize page.html -f json   # Markup and report as JSON
  blockedit normalize page.html -q        # Markup only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNormalize,
}

var normalizeFlags *OutputFlags

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeFlags = AddOutputFlags(normalizeCmd)
}

// Correction is one entry of a normalize report.
type Correction struct {
	Reason   string `json:"reason" yaml:"reason"`
	Original string `json:"original" yaml:"original"`
	Result   string `json:"result" yaml:"result"`
	Detail   string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// NormalizeResult is the structured output of normalize.
type NormalizeResult struct {
	Source      string       `json:"source,omitempty" yaml:"source,omitempty"`
	HTML        string       `json:"html" yaml:"html"`
	Corrections []Correction `json:"corrections" yaml:"corrections"`
}

func runNormalize(cmd *cobra.Command, args []string) error {
	source := ""
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		source = args[0]
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", source, err)
		}
		defer f.Close()
		in = f
	}
	markup, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ed, err := editor.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ed.Close(ctx)

	result, err := normalizeMarkup(ed, string(markup))
	if err != nil {
		return err
	}
	result.Source = source
	return writeNormalizeResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result, normalizeFlags)
}

func normalizeMarkup(ed *editor.Editor, markup string) (*NormalizeResult, error) {
	out, corrections, err := ed.Normalize(markup)
	if err != nil {
		return nil, err
	}
	return &NormalizeResult{HTML: out, Corrections: toCorrections(corrections)}, nil
}

func toCorrections(ns []enforcer.Normalization) []Correction {
	out := make([]Correction, 0, len(ns))
	for _, n := range ns {
		out = append(out, Correction{
			Reason:   string(n.Reason),
			Original: openingTag(n.Original),
			Result:   openingTag(n.Replacement),
			Detail:   n.Detail,
		})
	}
	return out
}

// openingTag renders the start tag of n.
func openingTag(n *html.Node) string {
	if n == nil {
		return ""
	}
	outer := dom.OuterHTML(n)
	if i := strings.Index(outer, ">"); i >= 0 {
		return outer[:i+1]
	}
	return outer
}

func writeNormalizeResult(out, report io.Writer, result *NormalizeResult, flags *OutputFlags) error {
	switch flags.Format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(result)
	}

	fmt.Fprintln(out, result.HTML)
	if !flags.Quiet {
		printCorrections(report, result)
	}
	return nil
}

func printCorrections(w io.Writer, result *NormalizeResult) {
	heading := "Corrections"
	if result.Source != "" {
		heading += " in " + result.Source
	}
	if len(result.Corrections) == 0 {
		fmt.Fprintln(w, successStyle.Render("No corrections needed"))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d)", heading, len(result.Corrections))))
	for _, c := range result.Corrections {
		line := fmt.Sprintf("  %s %s", warningStyle.Render(title(c.Reason)+":"), c.Original)
		if c.Result != "" && c.Result != c.Original {
			line += " -> " + c.Result
		}
		if c.Detail != "" {
			line += " " + mutedStyle.Render("("+c.Detail+")")
		}
		fmt.Fprintln(w, line)
	}
}
