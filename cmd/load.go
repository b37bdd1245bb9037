package cmd

import (
	"fabdrop/internal/pipeline"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var loadOpts pipeline.DataOptions

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Export, upload and load the dataset tables into the lakehouse",
	Long: `Export the dataset as CSV tables, upload them to the lakehouse Files area
and load each one as a Delta table (overwrite mode).

  --skip-export   reuse the CSV files already in the export directory
  --upload-only   stop after the upload
  --load-only     load files uploaded by an earlier run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadOpts.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()
		client, err := current.fabricClient()
		if err != nil {
			return err
		}
		wsID, err := current.workspaceID(ctx, client)
		if err != nil {
			return err
		}
		lhID := current.config.LakehouseID
		if lhID == "" {
			lh, err := client.FindLakehouse(ctx, wsID)
			if err != nil {
				return err
			}
			lhID = lh.ID
		}
		current.log.WithFields(logrus.Fields{"workspace_id": wsID, "lakehouse_id": lhID}).Debug("load target")

		current.ui.StartProgress("Loading data to lakehouse")
		summary, err := current.data(client).Run(ctx, wsID, lhID, loadOpts)
		if err != nil {
			current.ui.StopProgress(false, "Load failed")
			return err
		}
		current.ui.StopProgress(true, summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().BoolVar(&loadOpts.SkipExport, "skip-export", false, "reuse the previous export")
	loadCmd.Flags().BoolVar(&loadOpts.UploadOnly, "upload-only", false, "upload without loading tables")
	loadCmd.Flags().BoolVar(&loadOpts.LoadOnly, "load-only", false, "load previously uploaded files")
}
