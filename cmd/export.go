package cmd

import (
	"fmt"

	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dataset as lakehouse CSV tables",
	Long: `Render every lakehouse table from the dataset file and write the CSV files
to the export directory. Nothing is uploaded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data := current.data(nil)
		if exportDir != "" {
			data.ExportDir = exportDir
		}
		files, err := data.Export()
		if err != nil {
			return err
		}

		pairs := make([][2]string, 0, len(files))
		for _, name := range files.Paths() {
			pairs = append(pairs, [2]string{name, fmt.Sprintf("%d bytes", len(files[name]))})
		}
		current.ui.Section("Exported tables")
		current.ui.KeyValue("Directory", data.ExportDir)
		ui.KeyValueTable(cmd.OutOrStdout(), pairs)
		current.ui.Success(fmt.Sprintf("%d tables exported", len(files)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "export directory (default lakehouse.export_dir)")
}
