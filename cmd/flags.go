package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// OutputFlags are shared by every command that prints a report.
type OutputFlags struct {
	Format string
	Quiet  bool
}

// AddOutputFlags registers --format and --quiet on cmd and validates the
// format before the command runs.
func AddOutputFlags(cmd *cobra.Command, formats ...string) *OutputFlags {
	if len(formats) == 0 {
		formats = []string{FormatText, FormatJSON, FormatYAML}
	}
	flags := &OutputFlags{}
	cmd.Flags().StringVarP(&flags.Format, "format", "f", formats[0],
		fmt.Sprintf("Output format (%s)", strings.Join(formats, "|")))
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress the report")

	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormat(format, formats)
	})
	return flags
}

// AddFlagValidation runs validate on the named flag's value before the
// command's RunE.
func AddFlagValidation(cmd *cobra.Command, name string, validate func(string) error) {
	prev := cmd.PreRunE
	cmd.PreRunE = func(c *cobra.Command, args []string) error {
		if prev != nil {
			if err := prev(c, args); err != nil {
				return err
			}
		}
		var err error
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Name == name && err == nil {
				err = validate(f.Value.String())
			}
		})
		return err
	}
}

// ValidateFormat rejects formats outside valid.
func ValidateFormat(format string, valid []string) error {
	if slices.Contains(valid, format) {
		return nil
	}
	return fmt.Errorf("unsupported format %q (supported: %s)", format, strings.Join(valid, ", "))
}
