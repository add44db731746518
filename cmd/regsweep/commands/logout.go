package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	"github.com/marmos91/regsweep/internal/cli/credentials"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored token",
	Long: `Remove the stored credentials for the configured API host.

Examples:
  # Log out of github.com
  regsweep logout

  # Log out of a GitHub Enterprise host
  regsweep logout --api-url https://github.example.com/api/v3`,
	RunE: runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	host := credentials.ContextName(cfg.API.URL)
	if err := store.Delete(host); err != nil {
		if errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("not logged in to %s", host)
		}
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	fmt.Printf("Logged out of %s\n", host)
	return nil
}
