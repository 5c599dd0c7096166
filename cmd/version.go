package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/blockedit/internal/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for blockedit: the version, the git
commit, the build time, and the Go toolchain and platform.

Examples:
  blockedit version              # Short version
  blockedit version --detailed   # Every build field
  blockedit version -f json      # Output as JSON`,
	RunE: runVersion,
}

var (
	versionFlags    *OutputFlags
	versionDetailed bool
)

func init() {
	rootCmd.AddCommand(versionCmd)

	versionFlags = AddOutputFlags(versionCmd)
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch versionFlags.Format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case FormatYAML:
		return yaml.NewEncoder(out).Encode(info)
	}

	if versionDetailed {
		fmt.Fprintln(out, info.Detailed())
		return nil
	}
	fmt.Fprintln(out, "blockedit "+info.Short())
	return nil
}
