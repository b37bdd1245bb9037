package lakehouse

import (
	"context"
	"errors"
	"strings"

	"fabdrop/internal/fabric"
	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// TableLoader loads lakehouse files into a table. *fabric.Client implements it.
type TableLoader interface {
	LoadTable(ctx context.Context, workspaceID, lakehouseID, table string, req fabric.LoadTableRequest) error
}

// Result reports the outcome of one table load.
type Result struct {
	Table string
	Err   error
}

// Loader loads uploaded CSV files into lakehouse tables, one table per file.
type Loader struct {
	Tables      TableLoader
	WorkspaceID string
	LakehouseID string
	Folder      string
	Log         logrus.FieldLogger
}

// Load loads each table in order. A failed table does not stop the others;
// the returned error lists every failure.
func (l *Loader) Load(ctx context.Context, tables []string) ([]Result, error) {
	results := make([]Result, 0, len(tables))
	var errs []error
	var failed []string

	for _, table := range tables {
		log := l.Log.WithField("table", table)
		log.Info("loading table")
		req := fabric.CSVOverwrite(FilesPath(l.Folder, FileName(table)))
		err := l.Tables.LoadTable(ctx, l.WorkspaceID, l.LakehouseID, table, req)
		results = append(results, Result{Table: table, Err: err})
		if err != nil {
			log.WithError(err).Error("table load failed")
			errs = append(errs, err)
			failed = append(failed, table)
			continue
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}

	if len(errs) > 0 {
		return results, apperrors.Wrap(errors.Join(errs...), apperrors.ErrCodeRemoteRejected,
			"failed to load tables: "+strings.Join(failed, ", ")).
			WithContext("failed", len(failed)).
			WithContext("total", len(tables))
	}
	return results, nil
}
