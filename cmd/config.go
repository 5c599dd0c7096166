package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/blockedit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or validate the blockedit configuration",
	Long: `Inspect the configuration blockedit runs with.

Examples:
  blockedit config show                       # Effective configuration as YAML
  blockedit config show -f json               # ... as JSON
  blockedit config validate                   # Validate the current configuration
  blockedit config validate --file other.yml  # Validate a specific file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configShowFlags *OutputFlags
	configFile      string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowFlags = AddOutputFlags(configShowCmd, FormatYAML, FormatJSON)
	configValidateCmd.Flags().StringVar(&configFile, "file", "", "Configuration file to validate (default: the loaded one)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if configShowFlags.Format == FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	enc := yaml.NewEncoder(out)
	defer enc.Close()
	return enc.Encode(cfg)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	source := v.ConfigFileUsed()
	if configFile != "" {
		v = viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", configFile, err)
		}
		source = configFile
	}
	if source == "" {
		source = "defaults"
	}

	if _, err := config.LoadFrom(v); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Invalid configuration ("+source+")"))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Configuration is valid ("+source+")"))
	return nil
}
