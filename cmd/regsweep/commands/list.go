package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	"github.com/marmos91/regsweep/internal/cli/output"
	"github.com/marmos91/regsweep/internal/cli/timeutil"
	"github.com/marmos91/regsweep/pkg/reconcile"
)

var listConcurrency int

var listCmd = &cobra.Command{
	Use:   "list OWNER/PACKAGE [TAG...]",
	Short: "List tag groups and their versions",
	Long: `Reconcile the package and list its versions grouped by tag.

Each group is one tagged image: the index the tags point at plus the
per-platform manifests it references. Untagged, unreferenced versions land
in the reserved Unknown group at the end.

With TAG arguments only groups containing one of the tags are listed and
the Unknown group is left out.

Examples:
  # List everything
  regsweep list pdcastro/oh_so_smart

  # Only groups containing v1 or v2
  regsweep list pdcastro/oh_so_smart v1 v2

  # Machine-readable
  regsweep list pdcastro/oh_so_smart -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVar(&listConcurrency, "concurrency", 0, "Concurrent manifest fetches (default from config)")
}

func runList(cmd *cobra.Command, args []string) error {
	repo, err := cmdutil.ParseRepository(args[0])
	if err != nil {
		return err
	}
	filter, err := cmdutil.CleanTags(args[1:])
	if err != nil {
		return err
	}

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	if err := cmdutil.InitLogger(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	shutdown, err := cmdutil.InitTelemetry(ctx, cfg, Version)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(ctx) }()

	run, err := cmdutil.NewRun(ctx, cfg, repo, cmdutil.RunOptions{
		Operation:   "list",
		Concurrency: listConcurrency,
	})
	if err != nil {
		return err
	}

	planner, err := run.Reconcile()
	if err != nil {
		run.Finish(err)
		return err
	}

	groups := planner.List(filter)
	err = printGroups(groups)
	run.Finish(err)
	return err
}

// printGroups renders the tag groups. One row per version; a group with no
// versions still gets one row so empty groups stay visible.
func printGroups(groups []reconcile.ListGroup) error {
	table := output.NewTableData("GROUP", "TAGS", "VERSION", "DIGEST", "ROLE", "UPDATED")
	for _, g := range groups {
		tags := joinTags(g.Tags)
		if len(g.Versions) == 0 {
			table.AddRow(g.Head, tags, "-", "-", "-", "-")
			continue
		}
		for i, v := range g.Versions {
			head, members := g.Head, tags
			if i > 0 {
				head, members = "", ""
			}
			table.AddRow(head, members,
				formatVersionID(v.ID),
				cmdutil.ShortDigest(v.Digest),
				v.Role,
				timeutil.FormatAge(v.UpdatedAt))
		}
	}
	return cmdutil.PrintOutput(os.Stdout, groups, len(groups) == 0, "No tag groups found.", table)
}
