package cmd

import (
	"context"
	"errors"
	"fmt"

	"fabdrop/internal/pipeline"
	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
)

var deployOpts pipeline.Options

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the monthly deploy: data, semantic model and report, refresh",
	Long: `Run every step of the monthly deploy in order:

  1. Load data to lakehouse
  2. Deploy semantic model + report through the workspace git connection
  3. Refresh the semantic model

The first failing step stops the run. --dry-run writes the report definition
to the debug directory and calls no remote service.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, deployOpts)
	},
}

var (
	reportDryRun      bool
	reportSkipRefresh bool
	reportOut         string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Deploy the semantic model and report without touching data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportOut != "" {
			current.config.Report.DebugDir = reportOut
		}
		return runPipeline(cmd, pipeline.Options{
			ReportOnly:  true,
			SkipRefresh: reportSkipRefresh,
			DryRun:      reportDryRun,
		})
	},
}

func runPipeline(cmd *cobra.Command, opts pipeline.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	p, err := current.deployPipeline(opts)
	if err != nil {
		return err
	}

	current.ui.Section(fmt.Sprintf("Deploying %s to %s", current.config.Report.ModelName, current.config.Workspace))
	result, err := p.Run(cmd.Context(), opts)
	if result != nil {
		ui.StepTable(cmd.OutOrStdout(), result.Steps, result.Total)
		showResult(result, opts)
	}
	if err != nil {
		if errors.Is(cmd.Context().Err(), context.Canceled) {
			current.ui.Warning("deploy interrupted")
		}
		return err
	}
	return nil
}

func showResult(result *pipeline.Result, opts pipeline.Options) {
	current.ui.KeyValue("Workspace", result.WorkspaceID)
	current.ui.KeyValue("Lakehouse", result.LakehouseID)
	if result.Git != nil {
		repo := result.Git.Repository
		current.ui.KeyValue("Repository", fmt.Sprintf("%s (%s)", repo.RepositoryName, repo.BranchName))
		current.ui.KeyValue("Commit", result.Git.Commit)
	}
	if result.ReportURL != "" {
		current.ui.KeyValue("Report", result.ReportURL)
	}
	if opts.DryRun && len(result.Written) > 0 {
		current.ui.Info(fmt.Sprintf("dry run, %d files written to %s", len(result.Written), current.config.Report.DebugDir))
	}
}

func init() {
	rootCmd.AddCommand(deployCmd, reportCmd)

	deployCmd.Flags().BoolVar(&deployOpts.DataOnly, "data-only", false, "only load data")
	deployCmd.Flags().BoolVar(&deployOpts.ReportOnly, "report-only", false, "only deploy the model and report")
	deployCmd.Flags().BoolVar(&deployOpts.SkipRefresh, "skip-refresh", false, "do not refresh the semantic model")
	deployCmd.Flags().BoolVar(&deployOpts.DryRun, "dry-run", false, "write the report definition locally, call nothing")
	deployCmd.Flags().BoolVar(&deployOpts.Data.SkipExport, "skip-export", false, "reuse the previous export")

	reportCmd.Flags().BoolVar(&reportDryRun, "dry-run", false, "write the report definition locally, call nothing")
	reportCmd.Flags().BoolVar(&reportSkipRefresh, "skip-refresh", false, "do not refresh the semantic model")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "debug directory for --dry-run (default report.debug_dir)")
}
