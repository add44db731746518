package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/regsweep/cmd/regsweep/cmdutil"
	"github.com/marmos91/regsweep/internal/cli/output"
	"github.com/marmos91/regsweep/pkg/reconcile"
)

var reportConcurrency int

var reportCmd = &cobra.Command{
	Use:   "report OWNER/PACKAGE",
	Short: "Print reconciliation counts",
	Long: `Reconcile the package and print its self-consistency counts: versions,
distinct digests, tags, tag groups, orphans, dangling references and
manifests shared by more than one index.

A dangling reference (an index naming a digest the ledger does not have)
is logged as an error but does not fail the report.

Examples:
  regsweep report pdcastro/oh_so_smart
  regsweep report pdcastro/oh_so_smart -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportConcurrency, "concurrency", 0, "Concurrent manifest fetches (default from config)")
}

func runReport(cmd *cobra.Command, args []string) error {
	repo, err := cmdutil.ParseRepository(args[0])
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
		Operation:   "report",
		Concurrency: reportConcurrency,
	})
	if err != nil {
		return err
	}

	planner, err := run.Reconcile()
	if err != nil {
		run.Finish(err)
		return err
	}

	report, err := planner.BuildReport()
	if err != nil {
		run.Finish(err)
		return err
	}
	run.Recorder.RecordReport(report.Orphans, report.Dangling, report.SharedRefs)

	err = printReport(report)
	run.Finish(err)
	return err
}

func printReport(report *reconcile.Report) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, report)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, report)
	default:
		return output.SimpleTable(os.Stdout, [][2]string{
			{"Package", report.Package},
			{"Versions", strconv.Itoa(report.Versions)},
			{"Digests", strconv.Itoa(report.Digests)},
			{"Tags", strconv.Itoa(report.Tags)},
			{"Tag groups", strconv.Itoa(report.TagGroups)},
			{"Orphans", strconv.Itoa(report.Orphans)},
			{"Deletion targets", strconv.Itoa(report.DeletionTargets)},
			{"Dangling references", strconv.Itoa(report.Dangling)},
			{"Shared references", strconv.Itoa(report.SharedRefs)},
		})
	}
}
