package cmd

import (
	"fmt"

	"fabdrop/internal/kpisync"
	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
)

var kpiOpts kpisync.Options

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Manage external KPIs in the dataset file",
}

var kpisSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy ticket KPI values from the semantic model into the dataset",
	Long: `Evaluate the SNOW and ICM ticket measures against the deployed semantic
model and write the rounded values, with today's date, into the matching
externalKpis entries of the dataset file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := current.config.KPIs
		opts := kpiOpts
		if opts.Dataset == "" {
			opts.Dataset = cfg.Dataset
		}
		if opts.Dataset == "" {
			opts.Dataset = current.config.Report.ModelName
		}
		if opts.SnowMeasure == "" {
			opts.SnowMeasure = cfg.SnowMeasure
		}
		if opts.ICMMeasure == "" {
			opts.ICMMeasure = cfg.ICMMeasure
		}

		client, err := current.fabricClient()
		if err != nil {
			return err
		}
		pbi, err := current.powerBI()
		if err != nil {
			return err
		}
		wsID, err := current.workspaceID(ctx, client)
		if err != nil {
			return err
		}

		syncer := &kpisync.Syncer{Measures: pbi, Store: current.store(), Log: current.log}
		result, err := syncer.Sync(ctx, wsID, opts)
		if err != nil {
			return err
		}

		pairs := make([][2]string, 0, len(result.Values))
		for _, v := range result.Values {
			pairs = append(pairs, [2]string{v.KPI, fmt.Sprintf("%.0f (%s)", v.Value, v.Measure)})
		}
		current.ui.Section("KPIs from " + result.Dataset.Name)
		ui.KeyValueTable(cmd.OutOrStdout(), pairs)
		if result.Written {
			current.ui.Success(syncer.Store.Path + " updated")
		} else {
			current.ui.Info("dry run, data file not modified")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kpisCmd)
	kpisCmd.AddCommand(kpisSyncCmd)
	flags := kpisSyncCmd.Flags()
	flags.StringVar(&kpiOpts.Dataset, "dataset", "", "dataset to query (default kpis.dataset, then report.model_name)")
	flags.StringVar(&kpiOpts.SnowMeasure, "snow-measure", "", "measure for SNOW tickets (default kpis.snow_measure)")
	flags.StringVar(&kpiOpts.ICMMeasure, "icm-measure", "", "measure for ICM tickets (default kpis.icm_measure)")
	flags.BoolVar(&kpiOpts.SnowOnly, "snow-only", false, "only sync the SNOW KPI")
	flags.BoolVar(&kpiOpts.DryRun, "dry-run", false, "fetch values without writing")
}
