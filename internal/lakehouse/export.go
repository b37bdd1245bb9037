// Package lakehouse exports the dataset as CSV tables, uploads them to
// OneLake and loads them into lakehouse tables.
package lakehouse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fabdrop/internal/artifact"
	"fabdrop/internal/common"
	"fabdrop/internal/dataset"
	"fabdrop/internal/ingest"
	"fabdrop/internal/semantic"
	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// FileName is the CSV file a table is exported to.
func FileName(table string) string {
	return table + ".csv"
}

// source maps a table onto a dataset record set. Columns read the record
// field of the same name unless renamed.
type source struct {
	set     string
	renamed map[string]string
}

var sources = map[string]source{
	semantic.TablePublisher:   {set: ingest.KeyPublishers, renamed: map[string]string{"publisher_id": "id"}},
	semantic.TableSpend:       {set: ingest.KeySpend},
	semantic.TableRisk:        {set: ingest.KeyRisks},
	semantic.TableTitle:       {set: ingest.KeyManagedTitles},
	semantic.TableExternalKPI: {set: ingest.KeyExternalKPIs},
}

// Exporter turns a dataset document into one CSV per lakehouse table.
type Exporter struct {
	Tables     []semantic.Table
	FiscalYear string
	Log        logrus.FieldLogger
}

// NewExporter exports the default tables with a date dimension for fiscalYear.
func NewExporter(fiscalYear string, log logrus.FieldLogger) *Exporter {
	return &Exporter{Tables: semantic.Tables(), FiscalYear: fiscalYear, Log: log}
}

// Export renders every table. The returned counts are data rows per table.
func (e *Exporter) Export(doc *dataset.Document) (artifact.FileSet, map[string]int, error) {
	files := artifact.FileSet{}
	counts := make(map[string]int, len(e.Tables))

	for _, t := range e.Tables {
		var rows [][]string
		if t.Name == semantic.TableDate {
			dates, err := DateDimension(e.FiscalYear)
			if err != nil {
				return nil, nil, err
			}
			rows = dates
		} else {
			src, ok := sources[t.Name]
			if !ok {
				return nil, nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "no dataset source for table "+t.Name)
			}
			set := doc.Set(src.set)
			if set == nil || set.Len() == 0 {
				e.Log.WithFields(logrus.Fields{"table": t.Name, "set": src.set}).Warn("dataset section is empty")
			}
			rows = tableRows(t, src, set)
		}

		content, err := encodeCSV(t.ColumnNames(), rows)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode "+FileName(t.Name))
		}
		files[FileName(t.Name)] = content
		counts[t.Name] = len(rows)
		e.Log.WithFields(logrus.Fields{"table": t.Name, "rows": len(rows)}).Info("table exported")
	}
	return files, counts, nil
}

func tableRows(t semantic.Table, src source, set *dataset.RecordSet) [][]string {
	if set == nil {
		return nil
	}
	rows := make([][]string, 0, set.Len())
	for _, rec := range set.Records {
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			field := c.Name
			if renamed, ok := src.renamed[c.Name]; ok {
				field = renamed
			}
			row[i] = cell(rec, field, c.DataType)
		}
		rows = append(rows, row)
	}
	return rows
}

// cell formats one value; missing numbers become 0, other missing values "".
func cell(rec *dataset.Record, field string, typ semantic.DataType) string {
	v, ok := rec.Get(field)
	if (!ok || v == nil) && typ.Numeric() {
		return "0"
	}
	return dataset.Text(v)
}

func encodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FiscalYearEnd parses "FY26" or "FY2026" into the calendar year the fiscal
// year ends in.
func FiscalYearEnd(label string) (int, error) {
	digits := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(label)), "FY")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, apperrors.ConfigError(fmt.Sprintf("invalid fiscal year %q, expected FYnn", label), "fiscal_year")
	}
	switch len(digits) {
	case 2:
		return 2000 + n, nil
	case 4:
		return n, nil
	}
	return 0, apperrors.ConfigError(fmt.Sprintf("invalid fiscal year %q, expected FYnn", label), "fiscal_year")
}

// DateDimension returns one row per day of the fiscal year, July 1 to
// June 30: date, year, month, month_name, quarter (calendar), fiscal_year.
func DateDimension(fiscalYear string) ([][]string, error) {
	end, err := FiscalYearEnd(fiscalYear)
	if err != nil {
		return nil, err
	}
	label := fmt.Sprintf("FY%02d", end%100)
	start := time.Date(end-1, time.July, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end, time.June, 30, 0, 0, 0, 0, time.UTC)

	var rows [][]string
	for d := start; !d.After(last); d = d.AddDate(0, 0, 1) {
		rows = append(rows, []string{
			d.Format("2006-01-02"),
			strconv.Itoa(d.Year()),
			strconv.Itoa(int(d.Month())),
			d.Month().String(),
			strconv.Itoa((int(d.Month())-1)/3 + 1),
			label,
		})
	}
	return rows, nil
}

// ReadExport loads previously exported CSVs from dir. Missing files are
// skipped with a warning.
func ReadExport(dir string, tables []semantic.Table, log logrus.FieldLogger) (artifact.FileSet, error) {
	files := artifact.FileSet{}
	for _, t := range tables {
		path, err := common.JoinPath(dir, FileName(t.Name))
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "invalid export directory")
		}
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			log.WithField("file", path).Warn("exported table not found, skipping")
			continue
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read "+path)
		}
		files[FileName(t.Name)] = data
	}
	if len(files) == 0 {
		return nil, apperrors.NotFound("exported tables", dir).
			WithSuggestions("Run 'fabdrop export' first or drop --skip-export")
	}
	return files, nil
}
