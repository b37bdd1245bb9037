// Package semantic describes the Direct Lake semantic model and renders it
// as a TMDL folder.
package semantic

import (
	"fmt"

	apperrors "fabdrop/pkg/errors"
)

// DataType is a column's model type.
type DataType string

const (
	Int64    DataType = "Int64"
	String   DataType = "String"
	DateTime DataType = "DateTime"
	Double   DataType = "Double"
	Boolean  DataType = "Boolean"
)

var tmdlTypes = map[DataType]string{
	Int64:    "int64",
	String:   "string",
	DateTime: "dateTime",
	Double:   "double",
	Boolean:  "boolean",
}

// TMDL returns the TMDL spelling of the type.
func (d DataType) TMDL() string {
	if t, ok := tmdlTypes[d]; ok {
		return t
	}
	return "string"
}

// Numeric reports whether the column takes the "0" format string.
func (d DataType) Numeric() bool {
	return d == Int64 || d == Double
}

// Column is one lakehouse table column.
type Column struct {
	Name     string
	DataType DataType
}

// Table is a lakehouse table exposed through the model.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in order; they double as CSV headers.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Relationship joins FromTable.FromColumn (many side) to ToTable.ToColumn.
type Relationship struct {
	FromTable      string
	FromColumn     string
	ToTable        string
	ToColumn       string
	ManyToMany     bool
	BothDirections bool
	Inactive       bool
}

// Key identifies the relationship for id generation.
func (r Relationship) Key() string {
	return fmt.Sprintf("rel_%s.%s_%s.%s", r.FromTable, r.FromColumn, r.ToTable, r.ToColumn)
}

// Measure is a DAX measure. An empty FormatString is omitted.
type Measure struct {
	Name         string
	Expression   string
	FormatString string
}

// Model is the full semantic model definition.
type Model struct {
	Name          string
	Tables        []Table
	Relationships []Relationship
	// Measures all live on MeasureTable.
	Measures     []Measure
	MeasureTable string
}

// Table returns the named table.
func (m *Model) Table(name string) (*Table, bool) {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i], true
		}
	}
	return nil, false
}

// Validate checks that relationships and the measure table refer to known
// tables and columns and that names are unique.
func (m *Model) Validate() error {
	if m.Name == "" {
		return apperrors.ConfigError("semantic model name is empty", "report.model_name")
	}
	tables := make(map[string]map[string]bool, len(m.Tables))
	for _, t := range m.Tables {
		if _, dup := tables[t.Name]; dup {
			return apperrors.New(apperrors.ErrCodeConfigInvalid, "duplicate table "+t.Name)
		}
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if cols[c.Name] {
				return apperrors.New(apperrors.ErrCodeConfigInvalid,
					fmt.Sprintf("duplicate column %s.%s", t.Name, c.Name))
			}
			cols[c.Name] = true
		}
		tables[t.Name] = cols
	}
	for _, r := range m.Relationships {
		if !tables[r.FromTable][r.FromColumn] {
			return apperrors.New(apperrors.ErrCodeConfigInvalid,
				fmt.Sprintf("relationship source %s.%s does not exist", r.FromTable, r.FromColumn))
		}
		if !tables[r.ToTable][r.ToColumn] {
			return apperrors.New(apperrors.ErrCodeConfigInvalid,
				fmt.Sprintf("relationship target %s.%s does not exist", r.ToTable, r.ToColumn))
		}
	}
	if len(m.Measures) > 0 {
		if _, ok := tables[m.MeasureTable]; !ok {
			return apperrors.New(apperrors.ErrCodeConfigInvalid,
				fmt.Sprintf("measure table %q does not exist", m.MeasureTable))
		}
	}
	seen := make(map[string]bool, len(m.Measures))
	for _, ms := range m.Measures {
		if seen[ms.Name] {
			return apperrors.New(apperrors.ErrCodeConfigInvalid, "duplicate measure "+ms.Name)
		}
		seen[ms.Name] = true
	}
	return nil
}

// Lakehouse table names.
const (
	TablePublisher   = "dim_Publisher"
	TableDate        = "dim_Date"
	TableSpend       = "fact_Spend"
	TableRisk        = "fact_Risk"
	TableTitle       = "dim_ManagedTitle"
	TableExternalKPI = "fact_ExternalKPI"
)

// Tables returns the lakehouse tables in load order.
func Tables() []Table {
	return []Table{
		{Name: TablePublisher, Columns: []Column{
			{"publisher_id", Int64},
			{"name", String},
			{"title", String},
			{"type", String},
			{"contact", String},
			{"renewalDate", DateTime},
			{"status", String},
			{"savingsAmount", Double},
			{"savingsType", String},
		}},
		{Name: TableDate, Columns: []Column{
			{"date", DateTime},
			{"year", Int64},
			{"month", Int64},
			{"month_name", String},
			{"quarter", Int64},
			{"fiscal_year", String},
		}},
		{Name: TableSpend, Columns: []Column{
			{"publisher", String},
			{"companySpend", Double},
			{"msdSpend", Double},
			{"tiamSpend", Double},
			{"fiscalYear", String},
			{"notes", String},
		}},
		{Name: TableRisk, Columns: []Column{
			{"publisher", String},
			{"sspa", String},
			{"po", String},
			{"finance", String},
			{"legal", String},
			{"inventory", String},
			{"details", String},
		}},
		{Name: TableTitle, Columns: []Column{
			{"title", String},
			{"publisher", String},
			{"category", String},
			{"licenseCount", Int64},
			{"notes", String},
		}},
		{Name: TableExternalKPI, Columns: []Column{
			{"name", String},
			{"value", Double},
			{"unit", String},
			{"source", String},
			{"lastUpdated", DateTime},
		}},
	}
}

// Relationships returns the fact-to-publisher joins.
func Relationships() []Relationship {
	return []Relationship{
		{FromTable: TableSpend, FromColumn: "publisher", ToTable: TablePublisher, ToColumn: "name"},
		{FromTable: TableRisk, FromColumn: "publisher", ToTable: TablePublisher, ToColumn: "name"},
		{FromTable: TableTitle, FromColumn: "publisher", ToTable: TablePublisher, ToColumn: "name"},
	}
}

// compactSpend renders a spend measure with M/K suffixes.
func compactSpend(measure, currency string) string {
	if currency == "" {
		return fmt.Sprintf(`VAR Spend = [%s] `+
			`RETURN IF(Spend >= 1000000, FORMAT(Spend / 1000000, "0.00") & "M", `+
			`IF(Spend >= 1000, FORMAT(Spend / 1000, "0.0") & "K", FORMAT(Spend, "#,##0")))`, measure)
	}
	return fmt.Sprintf(`VAR Spend = [%s] `+
		`RETURN IF(Spend >= 1000000, "%s" & FORMAT(Spend / 1000000, "0.00") & "M", `+
		`IF(Spend >= 1000, "%s" & FORMAT(Spend / 1000, "0.0") & "K", FORMAT(Spend, "%s#,##0")))`,
		measure, currency, currency, currency)
}

func kpiMeasure(name string) Measure {
	return Measure{
		Name:         name,
		Expression:   fmt.Sprintf(`CALCULATE(SUM(fact_ExternalKPI[value]), fact_ExternalKPI[name] = "%s")`, name),
		FormatString: "#,##0",
	}
}

func riskMeasure(name, column string) Measure {
	return Measure{
		Name:         name,
		Expression:   fmt.Sprintf(`CALCULATE(DISTINCTCOUNT(fact_Risk[publisher]), fact_Risk[%s] <> "")`, column),
		FormatString: "#,##0",
	}
}

const nextRenewal = `CALCULATE(MIN(dim_Publisher[renewalDate]), dim_Publisher[renewalDate] >= TODAY())`

// Measures returns the report measures in display order.
func Measures() []Measure {
	return []Measure{
		{Name: "Total Company Spend", Expression: "SUM(fact_Spend[companySpend])", FormatString: "$#,##0"},
		{Name: "Total MSD Spend", Expression: "SUM(fact_Spend[msdSpend])", FormatString: "$#,##0"},
		{Name: "Total TI&M Spend", Expression: "SUM(fact_Spend[tiamSpend])", FormatString: "$#,##0"},
		{Name: "Total Savings", Expression: "SUM(dim_Publisher[savingsAmount])", FormatString: "$#,##0"},

		{Name: "Company Spend Fmt", Expression: compactSpend("Total Company Spend", "")},
		{Name: "MSD Spend Fmt", Expression: compactSpend("Total MSD Spend", "")},
		{Name: "TI&M Spend Fmt", Expression: compactSpend("Total TI&M Spend", "")},
		{Name: "Savings Fmt", Expression: compactSpend("Total Savings", "$")},

		{Name: "Managed Publishers", Expression: "DISTINCTCOUNT(dim_Publisher[name])", FormatString: "#,##0"},
		{Name: "Managed Titles", Expression: "DISTINCTCOUNT(dim_ManagedTitle[title])", FormatString: "#,##0"},

		kpiMeasure("SNOW Tickets MTD"),
		kpiMeasure("ICM Tickets MTD"),

		riskMeasure("SSPA Risks", "sspa"),
		riskMeasure("PO Risks", "po"),
		riskMeasure("Finance Risks", "finance"),
		riskMeasure("Legal Risks", "legal"),
		riskMeasure("Inventory Risks", "inventory"),
		{
			Name:         "Total Risks",
			Expression:   "[SSPA Risks] + [PO Risks] + [Finance Risks] + [Legal Risks] + [Inventory Risks]",
			FormatString: "#,##0",
		},

		// Renewal measures return 0 instead of blank.
		{
			Name: "Days Until Next Renewal",
			Expression: "VAR NextRenewal = " + nextRenewal + " " +
				"RETURN IF(ISBLANK(NextRenewal), 0, INT(NextRenewal - TODAY()))",
			FormatString: "0",
		},
		{
			Name: "Next Renewal Publisher",
			Expression: "VAR NextDate = " + nextRenewal + " " +
				`RETURN IF(ISBLANK(NextDate), "None", ` +
				"CALCULATE(FIRSTNONBLANK(dim_Publisher[name], 1), dim_Publisher[renewalDate] = NextDate))",
		},
		{Name: "Next Renewal Date", Expression: nextRenewal, FormatString: "M/d/yyyy"},
		{
			Name: "Days Until Next Renewal Date",
			Expression: "VAR NextDate = " + nextRenewal + " " +
				"RETURN IF(ISBLANK(NextDate), 0, INT(NextDate - TODAY()))",
			FormatString: "0",
		},
		{
			Name: "Renewals This Quarter",
			Expression: "VAR QEnd = EOMONTH(TODAY(), 3 - MOD(MONTH(TODAY()) - 1, 3) - 1) " +
				"VAR Cnt = CALCULATE(DISTINCTCOUNT(dim_Publisher[name]), " +
				"dim_Publisher[renewalDate] >= TODAY(), dim_Publisher[renewalDate] <= QEnd) " +
				"RETURN IF(ISBLANK(Cnt), 0, Cnt)",
			FormatString: "0",
		},
		{
			Name: "Renewals This Year",
			Expression: "VAR YEnd = DATE(YEAR(TODAY()), 12, 31) " +
				"VAR Cnt = CALCULATE(DISTINCTCOUNT(dim_Publisher[name]), " +
				"dim_Publisher[renewalDate] >= TODAY(), dim_Publisher[renewalDate] <= YEnd) " +
				"RETURN IF(ISBLANK(Cnt), 0, Cnt)",
			FormatString: "0",
		},
		{
			Name: "Past Due Renewals",
			Expression: "VAR Cnt = CALCULATE(DISTINCTCOUNT(dim_Publisher[name]), " +
				"dim_Publisher[renewalDate] < TODAY(), dim_Publisher[renewalDate] <> BLANK()) " +
				"RETURN IF(ISBLANK(Cnt), 0, Cnt)",
			FormatString: "0",
		},
	}
}

// DefaultModel returns the model deployed under name.
func DefaultModel(name string) Model {
	return Model{
		Name:          name,
		Tables:        Tables(),
		Relationships: Relationships(),
		Measures:      Measures(),
		MeasureTable:  TableSpend,
	}
}
