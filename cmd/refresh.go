package cmd

import (
	"fmt"

	"fabdrop/internal/pipeline"
	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
)

var (
	refreshDataset string
	refreshWait    bool
	refreshHistory int
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the semantic model or show its refresh history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name := refreshDataset
		if name == "" {
			name = current.config.Report.ModelName
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
		ds, err := pbi.FindDataset(ctx, wsID, name)
		if err != nil {
			return err
		}

		if refreshHistory > 0 {
			history, err := pbi.RefreshHistory(ctx, wsID, ds.ID, refreshHistory)
			if err != nil {
				return err
			}
			current.ui.Section("Refresh history of " + ds.Name)
			ui.RefreshTable(cmd.OutOrStdout(), history)
			return nil
		}

		if !refreshWait {
			if err := pbi.TriggerRefresh(ctx, wsID, ds.ID); err != nil {
				return err
			}
			current.ui.Success("refresh of " + ds.Name + " triggered, use --history 1 to check it")
			return nil
		}

		current.ui.StartProgress("Refreshing " + ds.Name)
		refresh, err := pipeline.Refresh(ctx, pbi, wsID, ds, current.log)
		if err != nil {
			current.ui.StopProgress(false, "Refresh of "+ds.Name+" failed")
			return err
		}
		current.ui.StopProgress(true, fmt.Sprintf("Refresh of %s %s", ds.Name, refresh.Status))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().StringVar(&refreshDataset, "dataset", "", "dataset name (default report.model_name)")
	refreshCmd.Flags().BoolVar(&refreshWait, "wait", false, "wait for the refresh to finish")
	refreshCmd.Flags().IntVar(&refreshHistory, "history", 0, "show the last N refreshes instead of refreshing")
}
