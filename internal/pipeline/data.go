package pipeline

import (
	"context"
	"fmt"
	"strings"

	"fabdrop/internal/artifact"
	"fabdrop/internal/ingest"
	"fabdrop/internal/lakehouse"
	"fabdrop/internal/semantic"
	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// DataOptions select parts of the lakehouse load.
type DataOptions struct {
	// SkipExport reuses the CSV files already in the export directory.
	SkipExport bool
	UploadOnly bool
	LoadOnly   bool
}

// Validate rejects contradictory options.
func (o DataOptions) Validate() error {
	if o.UploadOnly && o.LoadOnly {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "--upload-only and --load-only cannot be combined")
	}
	return nil
}

// UploaderFunc creates an uploader once the lakehouse is known.
type UploaderFunc func(workspaceID, lakehouseID string) (lakehouse.Uploader, error)

// Data exports the dataset file as CSV tables and loads them into the lakehouse.
type Data struct {
	Store       *ingest.Store
	Exporter    *lakehouse.Exporter
	ExportDir   string
	Folder      string
	NewUploader UploaderFunc
	Tables      lakehouse.TableLoader
	Log         logrus.FieldLogger
}

// Export renders the tables and writes them to ExportDir.
func (d *Data) Export() (artifact.FileSet, error) {
	doc, _, err := d.Store.Load()
	if err != nil {
		return nil, err
	}
	files, counts, err := d.Exporter.Export(doc)
	if err != nil {
		return nil, err
	}
	if _, err := files.Write(d.ExportDir); err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	d.Log.WithFields(logrus.Fields{"dir": d.ExportDir, "tables": len(files), "rows": total}).Info("tables exported")
	return files, nil
}

// Run exports (or reads the previous export), uploads and loads. It returns
// a one-line summary.
func (d *Data) Run(ctx context.Context, workspaceID, lakehouseID string, opts DataOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}

	var files artifact.FileSet
	var err error
	if opts.SkipExport {
		files, err = lakehouse.ReadExport(d.ExportDir, d.Exporter.Tables, d.Log)
	} else {
		files, err = d.Export()
	}
	if err != nil {
		return "", err
	}
	var done []string

	if !opts.LoadOnly {
		up, err := d.NewUploader(workspaceID, lakehouseID)
		if err != nil {
			return "", err
		}
		if err := lakehouse.UploadAll(ctx, up, d.Folder, files, d.Log); err != nil {
			return "", err
		}
		done = append(done, fmt.Sprintf("%d files uploaded", len(files)))
	}

	if !opts.UploadOnly {
		loader := &lakehouse.Loader{
			Tables:      d.Tables,
			WorkspaceID: workspaceID,
			LakehouseID: lakehouseID,
			Folder:      d.Folder,
			Log:         d.Log,
		}
		if _, err := loader.Load(ctx, tableNames(d.Exporter.Tables, files)); err != nil {
			return "", err
		}
		done = append(done, fmt.Sprintf("%d tables loaded", len(files)))
	}
	return strings.Join(done, ", "), nil
}

// tableNames lists the tables that have a file, in catalog order.
func tableNames(tables []semantic.Table, files artifact.FileSet) []string {
	var names []string
	for _, t := range tables {
		if _, ok := files[lakehouse.FileName(t.Name)]; ok {
			names = append(names, t.Name)
		}
	}
	return names
}
