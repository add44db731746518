package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	"github.com/marmos91/regsweep/internal/cli/credentials"
	"github.com/marmos91/regsweep/internal/cli/prompt"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a GitHub token",
	Long: `Verify a GitHub token and store it for later runs.

The token is read from --token or prompted for (input is masked). It needs
the read:packages scope, plus delete:packages for 'regsweep delete'. Before
storing, the token is verified against the API and the authenticated user
recorded with it.

Credentials are kept per API host, so GitHub Enterprise hosts can be logged
in alongside github.com (--api-url selects the host).

Examples:
  # Prompted, masked input
  regsweep login

  # Non-interactive
  regsweep login --token ghp_xxx

  # GitHub Enterprise
  regsweep login --api-url https://github.example.com/api/v3`,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	token := cfg.API.Token
	if token == "" {
		token, err = prompt.Password("GitHub token")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}
	if token == "" {
		return fmt.Errorf("empty token")
	}

	// Verify before storing: a bad token should fail here, not mid-sweep.
	api, err := cmdutil.NewAPIClient(cfg, token)
	if err != nil {
		return err
	}
	user, err := api.CurrentUser(cmd.Context())
	if err != nil {
		return fmt.Errorf("token verification failed: %w", err)
	}

	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	host := credentials.ContextName(cfg.API.URL)
	err = store.Set(host, &credentials.Context{
		APIURL:   cfg.API.URL,
		Username: user.Login,
		Token:    token,
		SavedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("Logged in to %s as %s\n", host, user.Login)
	fmt.Printf("Credentials saved to: %s\n", store.ConfigPath())
	return nil
}
