package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	"github.com/marmos91/regsweep/internal/cli/output"
	"github.com/marmos91/regsweep/internal/cli/prompt"
	"github.com/marmos91/regsweep/internal/telemetry"
	"github.com/marmos91/regsweep/pkg/reconcile"
)

var (
	deleteOrphans     bool
	deleteDryRun      bool
	deleteYes         bool
	deleteConcurrency int
)

var deleteCmd = &cobra.Command{
	Use:   "delete OWNER/PACKAGE [TAG...]",
	Short: "Delete versions by tag group",
	Long: `Reconcile the package, then delete every version belonging to a tag group
that contains one of the given tags: the tagged index and all manifests it
references. Manifests also referenced by a surviving index are kept.

With --orphans, untagged versions no index references are deleted too.
At least one TAG or --orphans is required.

The report counts and the deletion plan are printed before anything is
deleted, and a confirmation prompt guards the execution (--yes skips it,
--dry-run stops after the plan).

Examples:
  # Delete the v1 image (index + platform manifests)
  regsweep delete pdcastro/oh_so_smart v1

  # See what would go, delete nothing
  regsweep delete pdcastro/oh_so_smart v1 --dry-run

  # Sweep orphaned manifests without touching any tag
  regsweep delete pdcastro/oh_so_smart --orphans

  # Scripted
  regsweep delete pdcastro/oh_so_smart v1 --yes -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteOrphans, "orphans", false, "Also delete untagged, unreferenced versions")
	deleteCmd.Flags().BoolVar(&deleteDryRun, "dry-run", false, "Plan and print, delete nothing")
	deleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "Skip the confirmation prompt")
	deleteCmd.Flags().IntVar(&deleteConcurrency, "concurrency", 0, "Concurrent fetches and deletions (default from config)")
}

// deleteResult is the machine-readable outcome for -o json|yaml.
type deleteResult struct {
	Package string               `json:"package" yaml:"package"`
	Report  *reconcile.Report    `json:"report" yaml:"report"`
	Plan    []reconcile.Deletion `json:"plan" yaml:"plan"`
	DryRun  bool                 `json:"dry_run" yaml:"dry_run"`
	Deleted int                  `json:"deleted" yaml:"deleted"`
}

func runDelete(cmd *cobra.Command, args []string) error {
	repo, err := cmdutil.ParseRepository(args[0])
	if err != nil {
		return err
	}
	tags, err := cmdutil.CleanTags(args[1:])
	if err != nil {
		return err
	}
	if len(tags) == 0 && !deleteOrphans {
		return fmt.Errorf("nothing to delete: give at least one TAG or --orphans")
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
		Operation:   "delete",
		Tags:        tags,
		Concurrency: deleteConcurrency,
	})
	if err != nil {
		return err
	}

	err = executeDelete(run)
	run.Finish(err)
	return err
}

func executeDelete(run *cmdutil.Run) error {
	planner, err := run.Reconcile()
	if err != nil {
		return err
	}

	report, err := planner.BuildReport()
	if err != nil {
		return err
	}
	run.Recorder.RecordReport(report.Orphans, report.Dangling, report.SharedRefs)

	plan, err := planner.PlanDeletions(deleteOrphans)
	if err != nil {
		return err
	}
	telemetry.SetAttributes(run.Context(),
		telemetry.DryRun(deleteDryRun),
		telemetry.Planned(len(plan)))

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	// The report and the plan are shown before anything is deleted.
	if format == output.FormatTable {
		if err := printReport(report); err != nil {
			return err
		}
		fmt.Println()
		if err := printPlan(plan); err != nil {
			return err
		}
	}

	printer := output.NewPrinter(os.Stdout, format, !cmdutil.IsColorDisabled())

	if len(plan) == 0 {
		if format == output.FormatTable {
			printer.Success("nothing to delete")
			return nil
		}
		return printer.Print(&deleteResult{
			Package: run.Repo.String(),
			Report:  report,
			Plan:    plan,
			DryRun:  deleteDryRun,
		})
	}

	if deleteDryRun {
		if format == output.FormatTable {
			printer.Warning(fmt.Sprintf("dry run: %d versions would be deleted", len(plan)))
			return nil
		}
		return printer.Print(&deleteResult{
			Package: run.Repo.String(),
			Report:  report,
			Plan:    plan,
			DryRun:  true,
		})
	}

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Delete %d versions from %s?", len(plan), run.Repo), deleteYes)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := planner.ExecuteDeletions(run.Context(), plan, run.Config.Sweep.Concurrency); err != nil {
		return err
	}

	if format == output.FormatTable {
		printer.Success(fmt.Sprintf("deleted %d versions from %s", len(plan), run.Repo))
		return nil
	}
	return printer.Print(&deleteResult{
		Package: run.Repo.String(),
		Report:  report,
		Plan:    plan,
		Deleted: len(plan),
	})
}

func printPlan(plan []reconcile.Deletion) error {
	if len(plan) == 0 {
		return nil
	}
	table := output.NewTableData("VERSION", "DIGEST", "REASON")
	for _, d := range plan {
		table.AddRow(formatVersionID(d.ID), cmdutil.ShortDigest(d.Digest.String()), string(d.Reason))
	}
	return output.PrintTable(os.Stdout, table)
}
