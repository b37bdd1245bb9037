package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"fabdrop/internal/dataset"
	"fabdrop/internal/tabular"
	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// Version builds the dataset version string, e.g. FY26_CSV_IMPORT_2026-02-24.
func Version(fiscalYear, source string, day time.Time) string {
	return fmt.Sprintf("%s_%s_IMPORT_%s", fiscalYear, source, day.Format("2006-01-02"))
}

// Importer turns tabular sources into dataset documents.
type Importer struct {
	Catalog    *Catalog
	FiscalYear string
	Log        logrus.FieldLogger
	// Now is overridden in tests.
	Now func() time.Time
}

// NewImporter creates an importer for the default catalog.
func NewImporter(fiscalYear string, log logrus.FieldLogger) *Importer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Importer{
		Catalog:    DefaultCatalog(),
		FiscalYear: fiscalYear,
		Log:        log,
		Now:        time.Now,
	}
}

func (im *Importer) today() string {
	return im.Now().Format("2006-01-02")
}

// SheetReport describes one imported sheet or CSV.
type SheetReport struct {
	Sheet  string
	Type   SheetType
	Key    string
	Result *tabular.Result
}

// Report summarizes an import.
type Report struct {
	Source   string
	Encoding string
	Sheets   []SheetReport
	// SkippedSheets lists sheets whose type could not be determined.
	SkippedSheets []string
	Merged        bool
	// Kept lists sections carried over from the existing file.
	Kept    []string
	Total   int
	Version string
}

// Counts returns the number of records per dataset key of doc.
func Counts(doc *dataset.Document) map[string]int {
	counts := make(map[string]int, len(doc.Sets))
	for _, s := range doc.Sets {
		counts[s.Name] = s.Len()
	}
	return counts
}

// Ordered rebuilds doc with sets in catalog order, then any others.
func (c *Catalog) Ordered(sets map[string]*dataset.RecordSet, version string) *dataset.Document {
	doc := &dataset.Document{Version: version}
	for _, spec := range c.Sets {
		if set, ok := sets[spec.Key]; ok {
			doc.Sets = append(doc.Sets, set)
		}
	}
	return doc
}

// WorkbookOptions controls ImportWorkbook.
type WorkbookOptions struct {
	SheetMap *SheetMap
	Merge    bool
	// Version overrides the generated dataset version.
	Version string
}

// ImportWorkbook reads every recognised sheet of wb. existing may be nil
// when the data file has no dataset yet.
func (im *Importer) ImportWorkbook(wb *tabular.Workbook, existing *dataset.Document, opts WorkbookOptions) (*dataset.Document, *Report, error) {
	report := &Report{Source: wb.Path}
	imported := map[string]*dataset.RecordSet{}

	for _, sheet := range wb.Sheets {
		sheetType, ok := opts.SheetMap.Lookup(sheet.Name)
		if !ok {
			sheetType, ok = DetectSheetType(sheet.Name)
		}
		if !ok {
			im.Log.WithField("sheet", sheet.Name).Warn("Skipping sheet: could not detect type, use --sheet-map")
			report.SkippedSheets = append(report.SkippedSheets, sheet.Name)
			continue
		}
		spec, ok := im.Catalog.ByType(sheetType)
		if !ok {
			report.SkippedSheets = append(report.SkippedSheets, sheet.Name)
			continue
		}

		result, err := tabular.Read(sheet.Rows, spec.Schema, tabular.Options{SerialDates: true})
		if err != nil {
			return nil, nil, err
		}
		im.logSheet(sheet.Name, spec.Key, result)

		imported[spec.Key] = result.Set
		report.Sheets = append(report.Sheets, SheetReport{Sheet: sheet.Name, Type: sheetType, Key: spec.Key, Result: result})
		report.Total += result.Set.Len()
	}

	if len(imported) == 0 {
		return nil, report, apperrors.New(apperrors.ErrCodeConfigInvalid, "no data sheets detected").
			WithContext("file", wb.Path).
			WithSuggestions("Rename sheets to include publisher, spend, risk, title or kpi",
				"Or map them explicitly with --sheet-map SHEET=TYPE")
	}

	if pubs, ok := imported[KeyPublishers]; ok {
		for i, r := range pubs.Records {
			if r.Float("id") == 0 {
				r.Set("id", int64(i+1))
			}
		}
	}

	if opts.Merge && existing != nil {
		imported = im.merge(existing, imported)
		report.Merged = true
	}

	version := opts.Version
	if version == "" {
		version = Version(im.FiscalYear, "EXCEL", im.Now())
	}
	report.Version = version

	if !opts.Merge && existing != nil {
		for _, spec := range im.Catalog.Sets {
			if _, ok := imported[spec.Key]; ok {
				continue
			}
			if set := existing.Set(spec.Key); set != nil {
				imported[spec.Key] = set
				report.Kept = append(report.Kept, spec.Key)
			}
		}
	}

	return im.Catalog.Ordered(imported, version), report, nil
}

// merge overlays imported sets on the existing dataset. Sections absent
// from the import are kept as they are.
func (im *Importer) merge(existing *dataset.Document, imported map[string]*dataset.RecordSet) map[string]*dataset.RecordSet {
	merged := map[string]*dataset.RecordSet{}
	for _, set := range existing.Sets {
		merged[set.Name] = set
	}
	for key, set := range imported {
		spec, ok := im.Catalog.ByKey(key)
		if !ok {
			merged[key] = set
			continue
		}
		out := dataset.Merge(existing.Set(key), set, dataset.FieldKey(spec.MergeKey...))
		out.Name = key
		if spec.IDField != "" {
			dataset.Renumber(out, spec.IDField)
		}
		merged[key] = out
	}
	return merged
}

func (im *Importer) logSheet(sheet, key string, result *tabular.Result) {
	entry := im.Log.WithFields(logrus.Fields{"sheet": sheet, "set": key, "records": result.Set.Len()})
	entry.Infof("Sheet '%s' -> %s: %d records", sheet, key, result.Set.Len())
	entry.Debugf("Mapped columns: %s", strings.Join(result.Fields(), ", "))
	if len(result.Unclaimed) > 0 {
		entry.Warnf("Unmapped columns (skipped): %s", strings.Join(result.Unclaimed, ", "))
	}
	if result.Dropped > 0 {
		entry.Warnf("%d rows dropped: empty %s", result.Dropped, key)
	}
	for _, cell := range result.Defaulted {
		entry.WithFields(logrus.Fields{"row": cell.Row, "field": cell.Field}).
			Debugf("Value %q replaced by default", cell.Raw)
	}
}

// FallbackKPIs are used when the existing file has no externalKpis.
func (im *Importer) FallbackKPIs() *dataset.RecordSet {
	day := im.today()
	return dataset.NewRecordSet(KeyExternalKPIs,
		dataset.NewRecord("name", "SNOW Tickets MTD", "value", int64(315), "unit", "tickets", "source", "ServiceNow", "lastUpdated", day, "notes", ""),
		dataset.NewRecord("name", "ICM Tickets MTD", "value", int64(135), "unit", "tickets", "source", "ICM System", "lastUpdated", day, "notes", ""),
	)
}

var (
	multiNewline  = regexp.MustCompile(`\n+`)
	multiSpace    = regexp.MustCompile(`\s+`)
	lineBreakGlue = regexp.MustCompile(`\s*\n\s*`)
	bulletSplit   = regexp.MustCompile(`[•\x{FFFD}]`)
)

// CleanTitle normalizes bullets and whitespace in a tracker title.
func CleanTitle(title string) string {
	if title == "" {
		return ""
	}
	s := strings.ReplaceAll(title, "�", "•")
	s = multiNewline.ReplaceAllString(s, " ")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SplitTitles breaks a compound tracker title into managed title records.
// Bullets split first, then line breaks, then " & ".
func SplitTitles(title, publisher string) []*dataset.Record {
	if strings.TrimSpace(title) == "" {
		return nil
	}

	var parts []string
	switch {
	case bulletSplit.MatchString(title):
		parts = bulletSplit.Split(title, -1)
	case strings.Contains(title, "\n"):
		parts = strings.Split(title, "\n")
	case strings.Contains(title, " & "):
		parts = strings.Split(title, " & ")
	default:
		parts = []string{title}
	}

	var records []*dataset.Record
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), "–"))
		if p == "" {
			continue
		}
		records = append(records, dataset.NewRecord(
			"title", p,
			"publisher", publisher,
			"category", "Other",
			"licenseCount", int64(0),
			"notes", "active",
		))
	}
	return records
}

// MapStatus converts a tracker invoice status to a publisher status.
func MapStatus(invoiceStatus string) string {
	switch strings.ToLower(strings.TrimSpace(invoiceStatus)) {
	case "completed":
		return "Active"
	case "pending":
		return "Pending"
	case "tbd", "":
		return "In Review"
	default:
		return "Active"
	}
}
