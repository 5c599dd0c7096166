package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/blockedit/internal/editor"
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Fail when HTML files need schema corrections",
	Long: `Validate normalizes each file in memory and reports the ones the
schema would change. Nothing is written. The command fails when any file
needs corrections, which makes it usable as a CI check.

Examples:
  blockedit validate page.html          # Check one file
  blockedit validate content/*.html -q  # Only the exit status and summary`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

var validateFlags *OutputFlags

func init() {
	rootCmd.AddCommand(validateCmd)
	validateFlags = AddOutputFlags(validateCmd, FormatText)
}

// errNeedsCorrections is returned when at least one file is not clean.
var errNeedsCorrections = errors.New("files need schema corrections")

func runValidate(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	dirty := 0
	for _, path := range args {
		markup, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		result, err := normalizeMarkup(ed, string(markup))
		if err != nil {
			return fmt.Errorf("failed to normalize %s: %w", path, err)
		}
		result.Source = path
		if len(result.Corrections) == 0 {
			continue
		}
		dirty++
		if validateFlags.Quiet {
			continue
		}
		printCorrections(out, result)
	}

	if dirty > 0 {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("%d of %d file(s) need corrections", dirty, len(args))))
		return errNeedsCorrections
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%d file(s) conform to the schema", len(args))))
	return nil
}
