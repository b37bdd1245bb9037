package ingest

import (
	"strings"

	"fabdrop/internal/dataset"
	"fabdrop/internal/tabular"
)

// TrackerSchema matches the flat tracker export: one row per publisher
// with spend, risk and comment columns. Fiscal-year columns are matched
// for fiscalYear, e.g. "FY26 Savings".
func TrackerSchema(fiscalYear string) tabular.Schema {
	fy := strings.ToLower(fiscalYear)
	return tabular.Schema{
		Name: "tracker",
		Rules: []tabular.Rule{
			text("publisher", "publisher", "publisher name"),
			text("title", "title"),
			text("type", "on prem vs. saas", "on prem vs saas", "license type"),
			text("contact", "sls fte point of contact", "point of contact", "contact"),
			date("renewalDate", "license / renewal / subscription end date", "renewal date", "subscription end date"),
			text("invoiceStatus", fy+" invoice status", "invoice status"),
			currency("savingsAmount", fy+" savings", "savings"),
			text("savingsType", "savings type"),
			currency("companySpend", fy+" company annual spend", "company annual spend"),
			currency("msdSpend", fy+" msd annual spend", "msd annual spend"),
			currency("tiamSpend", fy+" ti&m annual spend", "ti&m annual spend"),
			text("spendNotes", fy+" company annual spend notes", "company annual spend notes"),
			text("sspa", "risks : sspa", "risks: sspa"),
			text("po", "risks : po", "risks: po"),
			text("finance", "risks : finance", "risks: finance"),
			text("legal", "risks : legal", "risks: legal"),
			text("inventory", "risks : inventory", "risks: inventory"),
			text("details", "comments (does not require publishing on power bi)", "comments"),
		},
		Primary: "publisher",
	}
}

// TrackerOptions controls ImportTracker.
type TrackerOptions struct {
	// Version overrides the generated dataset version.
	Version string
}

// ImportTracker converts tracker rows into a full dataset. External KPIs
// come from a different system, so they are kept from existing, or
// seeded with fallback values when there are none.
func (im *Importer) ImportTracker(rows [][]string, existing *dataset.Document, opts TrackerOptions) (*dataset.Document, *Report, error) {
	result, err := tabular.Read(rows, TrackerSchema(im.FiscalYear), tabular.Options{})
	if err != nil {
		return nil, nil, err
	}
	im.logSheet("tracker", "publishers", result)

	publishers := dataset.NewRecordSet(KeyPublishers)
	spend := dataset.NewRecordSet(KeySpend)
	risks := dataset.NewRecordSet(KeyRisks)
	titles := dataset.NewRecordSet(KeyManagedTitles)

	for _, row := range result.Set.Records {
		name := strings.TrimSpace(lineBreakGlue.ReplaceAllString(row.String("publisher"), " "))
		if name == "" {
			continue
		}
		rawTitle := row.String("title")

		var savingsType interface{}
		if st := row.String("savingsType"); st != "" {
			savingsType = st
		}

		publishers.Append(dataset.NewRecord(
			"id", int64(publishers.Len()+1),
			"name", name,
			"title", CleanTitle(rawTitle),
			"type", row.String("type"),
			"contact", row.String("contact"),
			"renewalDate", row.String("renewalDate"),
			"status", MapStatus(row.String("invoiceStatus")),
			"savingsAmount", row.Float("savingsAmount"),
			"savingsType", savingsType,
		))
		spend.Append(dataset.NewRecord(
			"publisher", name,
			"companySpend", row.Float("companySpend"),
			"msdSpend", row.Float("msdSpend"),
			"tiamSpend", row.Float("tiamSpend"),
			"fiscalYear", im.FiscalYear,
			"notes", row.String("spendNotes"),
		))
		risks.Append(dataset.NewRecord(
			"publisher", name,
			"sspa", row.String("sspa"),
			"po", row.String("po"),
			"finance", row.String("finance"),
			"legal", row.String("legal"),
			"inventory", row.String("inventory"),
			"details", row.String("details"),
		))
		titles.Append(SplitTitles(rawTitle, name)...)
	}

	report := &Report{
		Sheets: []SheetReport{{Sheet: "tracker", Key: KeyPublishers, Result: result}},
		Total:  publishers.Len() + spend.Len() + risks.Len() + titles.Len(),
	}

	var kpis *dataset.RecordSet
	if existing != nil {
		kpis = existing.Set(KeyExternalKPIs)
	}
	if kpis != nil {
		report.Kept = append(report.Kept, KeyExternalKPIs)
	} else {
		kpis = im.FallbackKPIs()
	}

	version := opts.Version
	if version == "" {
		version = Version(im.FiscalYear, "CSV", im.Now())
	}
	report.Version = version

	doc := im.Catalog.Ordered(map[string]*dataset.RecordSet{
		KeyPublishers:    publishers,
		KeySpend:         spend,
		KeyRisks:         risks,
		KeyManagedTitles: titles,
		KeyExternalKPIs:  kpis,
	}, version)
	return doc, report, nil
}
