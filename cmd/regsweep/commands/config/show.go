package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	"github.com/marmos91/regsweep/internal/cli/output"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults, file, environment and flags
are folded together. Stored tokens are not shown; only config-file and
flag tokens appear.

Outputs YAML by default; -o json switches to JSON.

Examples:
  regsweep config show
  regsweep config show -o json
  regsweep config show --config ./regsweep.yaml`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
