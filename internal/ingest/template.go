package ingest

import "fabdrop/internal/tabular"

// TemplateSheets returns the starter workbook: one sheet per dataset set
// with headers the importer recognises and an example row.
func TemplateSheets(fiscalYear string) []tabular.OutputSheet {
	return []tabular.OutputSheet{
		{Name: "Publishers", Rows: [][]interface{}{
			{"ID", "Publisher Name", "Product Title", "License Type", "Contact", "Renewal Date", "Status", "Savings Amount", "Savings Type"},
			{1, "Example Publisher", "Example Product", "SaaS", "Contact Name", "2026-06-30", "Active", 0, "Cost Avoidance"},
		}},
		{Name: "Spend", Rows: [][]interface{}{
			{"Publisher", "Company Spend", "MSD Spend", "TI&M Spend", "Fiscal Year", "Notes"},
			{"Example Publisher", 1000000, 50000, 10000, fiscalYear, ""},
		}},
		{Name: "Risks", Rows: [][]interface{}{
			{"Publisher", "SSPA", "PO", "Finance", "Legal", "Inventory", "Details"},
			{"Example Publisher", "", "", "", "", "", ""},
		}},
		{Name: "ManagedTitles", Rows: [][]interface{}{
			{"Title", "Publisher", "Category", "License Count", "Notes"},
			{"Example Product", "Example Publisher", "Other", 0, "active"},
		}},
		{Name: "ExternalKPIs", Rows: [][]interface{}{
			{"KPI Name", "Value", "Unit", "Source", "Last Updated", "Notes"},
			{"SNOW Tickets MTD", 0, "tickets", "ServiceNow", "2026-01-01", ""},
			{"ICM Tickets MTD", 0, "tickets", "ICM System", "2026-01-01", ""},
		}},
	}
}

// WriteTemplate saves the starter workbook to path.
func WriteTemplate(path, fiscalYear string) error {
	return tabular.WriteWorkbook(path, TemplateSheets(fiscalYear))
}
