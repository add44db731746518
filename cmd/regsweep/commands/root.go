// Package commands implements the CLI commands for regsweep.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	configcmd "github.com/marmos91/regsweep/cmd/regsweep/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "regsweep",
	Short: "Reconcile and sweep GitHub container package versions",
	Long: `regsweep reconciles the GitHub Packages version ledger of one container
package with the manifest graph the registry serves for it, then lists,
reports on, or deletes versions by tag group.

A multi-platform image is one tagged index plus the per-platform manifests
it references; the ledger records them as separate versions. regsweep folds
both views together so deleting a tag removes the whole image, orphaned
manifests become visible, and nothing referenced by a surviving tag is
ever touched.

Use "regsweep [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Sync flags to cmdutil.Flags for subcommands
		cmdutil.Flags.ConfigFile, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.APIURL, _ = cmd.Flags().GetString("api-url")
		cmdutil.Flags.RegistryURL, _ = cmd.Flags().GetString("registry-url")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
		cmdutil.Flags.Quiet, _ = cmd.Flags().GetBool("quiet")
	},
}

// Execute runs the root command with ctx as the run context. Cancelling ctx
// (SIGINT/SIGTERM in main) aborts an in-flight run.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().String("config", "", "config file (default: $XDG_CONFIG_HOME/regsweep/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "GitHub API base URL (overrides config)")
	rootCmd.PersistentFlags().String("registry-url", "", "Container registry base URL (overrides config)")
	rootCmd.PersistentFlags().String("token", "", "GitHub token (overrides config and stored credentials)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors")

	// Add subcommands
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(versionCmd)
}
