package cmd

import (
	"fmt"
	"os"
	"strings"

	"fabdrop/internal/dataset"
	"fabdrop/internal/ingest"
	"fabdrop/internal/tabular"
	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
)

var (
	importDryRun  bool
	importVersion string
	importMerge   bool
	importForce   bool
	importSheets  *ingest.SheetMap
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tracker exports and workbooks into the dataset file",
}

var importCSVCmd = &cobra.Command{
	Use:   "csv FILE",
	Short: "Replace the dataset with a flat tracker CSV export",
	Long: fmt.Sprintf(`Read a tracker CSV export and rebuild publishers, spend, risks and
managed titles from it. External KPIs are kept from the current file.

Encodings are tried in order: %s.`, strings.Join(tabular.Encodings(), ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, encoding, err := tabular.ReadCSV(args[0])
		if err != nil {
			return err
		}
		current.log.WithField("encoding", encoding).Debug("csv decoded")

		store := current.store()
		existing, buf, err := store.Load()
		if err != nil {
			return err
		}
		im := ingest.NewImporter(current.config.FiscalYear, current.log)
		doc, report, err := im.ImportTracker(rows, existing, ingest.TrackerOptions{Version: importVersion})
		if err != nil {
			return err
		}
		report.Source = args[0]
		report.Encoding = encoding
		return finishImport(cmd, store, buf, doc, report)
	},
}

var importWorkbookCmd = &cobra.Command{
	Use:   "workbook FILE",
	Short: "Import a multi-sheet workbook into the dataset",
	Long: `Read every recognised sheet of an .xlsx workbook. Sheet types are detected
from sheet names unless --sheet-map names them. Without --merge, imported
sections replace the current ones and missing sections are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wb, err := tabular.OpenWorkbook(args[0])
		if err != nil {
			return err
		}
		store := current.store()
		existing, buf, err := store.Load()
		if err != nil {
			return err
		}
		im := ingest.NewImporter(current.config.FiscalYear, current.log)
		doc, report, err := im.ImportWorkbook(wb, existing, ingest.WorkbookOptions{
			SheetMap: importSheets,
			Merge:    importMerge,
			Version:  importVersion,
		})
		if err != nil {
			return err
		}
		for _, name := range report.SkippedSheets {
			current.ui.Warning(fmt.Sprintf("sheet '%s' skipped: type unknown (use --sheet-map '%s=TYPE')", name, name))
		}
		return finishImport(cmd, store, buf, doc, report)
	},
}

var importTemplateCmd = &cobra.Command{
	Use:   "template OUT.xlsx",
	Short: "Write an import template workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil && !importForce {
			ok, err := ui.Confirm(fmt.Sprintf("%s exists. Overwrite?", path), false)
			if err != nil {
				return err
			}
			if !ok {
				current.ui.Info("template not written")
				return nil
			}
		}
		if err := ingest.WriteTemplate(path, current.config.FiscalYear); err != nil {
			return err
		}
		current.ui.Success("template written to " + path)
		return nil
	},
}

// finishImport reports the import and writes the new declaration, or
// previews it on a dry run.
func finishImport(cmd *cobra.Command, store *ingest.Store, buf []byte, doc *dataset.Document, report *ingest.Report) error {
	for _, sheet := range report.Sheets {
		if notice := sheet.Result.Skipped(); notice != nil {
			current.log.WithFields(notice.Context).Warn(notice.Message)
		}
	}

	out, err := store.Render(buf, doc)
	if err != nil {
		return err
	}

	current.ui.Section("Import summary")
	current.ui.KeyValue("Source", report.Source)
	if report.Encoding != "" {
		current.ui.KeyValue("Encoding", report.Encoding)
	}
	current.ui.KeyValue("Version", report.Version)
	ui.ImportTable(cmd.OutOrStdout(), report, ingest.Counts(doc))

	if importDryRun {
		current.ui.Preview(store.Path, store.Preview(out))
		current.ui.Info("dry run, " + store.Path + " not modified")
		return nil
	}
	if err := store.Write(out); err != nil {
		return err
	}
	current.ui.Success(fmt.Sprintf("%s updated with %d records", store.Path, report.Total))
	return nil
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importCSVCmd, importWorkbookCmd, importTemplateCmd)

	for _, c := range []*cobra.Command{importCSVCmd, importWorkbookCmd} {
		c.Flags().BoolVar(&importDryRun, "dry-run", false, "preview the new dataset without writing")
		c.Flags().StringVar(&importVersion, "version", "", "dataset version (default <FY>_<SOURCE>_IMPORT_<date>)")
	}
	importSheets = ingest.NewSheetMap(ingest.DefaultCatalog())
	importWorkbookCmd.Flags().BoolVar(&importMerge, "merge", false, "merge into existing records instead of replacing")
	importWorkbookCmd.Flags().Var(importSheets, "sheet-map", "map a sheet to a type, SHEET=TYPE (repeatable)")
	importTemplateCmd.Flags().BoolVarP(&importForce, "force", "f", false, "overwrite without asking")
	importTemplateCmd.Annotations = map[string]string{noLogFile: "true"}
}
