package cli

import (
	"fmt"
	"io"
	"maps"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/tabula/internal/config"
	"github.com/mrz1836/tabula/internal/logging"
	"github.com/mrz1836/tabula/internal/tui"
)

// AddConfigCommand adds the config command and its subcommands.
func AddConfigCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect tabula configuration",
	}
	cmd.AddCommand(newConfigShowCmd(flags))
	root.AddCommand(cmd)
}

func newConfigShowCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after merging defaults, ~/.tabula/config.yaml,
.tabula/config.yaml and TABULA_* environment variables.

Data settings whose names look like secrets are masked.

Examples:
  tabula config show
  tabula config show --output json
  tabula config show --config ci.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithOverrides(cmd.Context(), flags.ConfigFile, nil)
			if err != nil {
				return err
			}
			return showConfig(cmd.OutOrStdout(), flags.Output, cfg)
		},
	}
}

func showConfig(w io.Writer, format string, cfg *config.Config) error {
	masked := *cfg
	masked.Data.Settings = maskSettings(cfg.Data.Settings)

	if format == tui.FormatJSON {
		return tui.NewJSONOutput(w).JSON(masked)
	}
	data, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func maskSettings(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	maps.Copy(out, settings)
	for k, v := range out {
		out[k] = logging.SafeValue(k, v)
	}
	return out
}
