// Package ingest converts tracker CSVs and multi-sheet workbooks into the
// dataset held in data.js and writes it back.
package ingest

import (
	"fmt"
	"sort"
	"strings"

	"fabdrop/internal/literal"
	"fabdrop/internal/tabular"
	apperrors "fabdrop/pkg/errors"
)

// SheetType classifies a workbook sheet.
type SheetType string

const (
	SheetPublishers SheetType = "publishers"
	SheetSpend      SheetType = "spend"
	SheetRisks      SheetType = "risks"
	SheetTitles     SheetType = "titles"
	SheetKPIs       SheetType = "kpis"
)

// Dataset keys in data.js.
const (
	KeyPublishers    = "publishers"
	KeySpend         = "spendData"
	KeyRisks         = "riskData"
	KeyManagedTitles = "managedTitles"
	KeyExternalKPIs  = "externalKpis"
)

// SetSpec describes one record set of the dataset.
type SetSpec struct {
	Type SheetType
	// Key is the property name in data.js.
	Key    string
	Schema tabular.Schema
	// Hints is the field order used when writing elements.
	Hints []string
	// MergeKey lists the fields identifying a record when merging.
	MergeKey []string
	// IDField is renumbered 1..n after a merge. Empty for none.
	IDField string
}

// Catalog is the full dataset description. Callers may build their own to
// import a differently shaped dataset.
type Catalog struct {
	// Variable is the declared name in data.js.
	Variable   string
	VersionKey string
	Sets       []SetSpec
}

// Layout returns the serializer layout for the catalog.
func (c *Catalog) Layout() literal.Layout {
	layout := literal.Layout{
		Hints:      make(map[string][]string, len(c.Sets)),
		VersionKey: c.VersionKey,
	}
	for _, s := range c.Sets {
		layout.Order = append(layout.Order, s.Key)
		layout.Hints[s.Key] = s.Hints
	}
	// Importers have always written the version just before the KPIs.
	if _, ok := c.ByKey(KeyExternalKPIs); ok {
		layout.VersionBefore = KeyExternalKPIs
	}
	return layout
}

// ByType returns the set for a sheet type.
func (c *Catalog) ByType(t SheetType) (SetSpec, bool) {
	for _, s := range c.Sets {
		if s.Type == t {
			return s, true
		}
	}
	return SetSpec{}, false
}

// ByKey returns the set stored under a data.js key.
func (c *Catalog) ByKey(key string) (SetSpec, bool) {
	for _, s := range c.Sets {
		if s.Key == key {
			return s, true
		}
	}
	return SetSpec{}, false
}

// Types lists the valid sheet types in catalog order.
func (c *Catalog) Types() []string {
	types := make([]string, len(c.Sets))
	for i, s := range c.Sets {
		types[i] = string(s.Type)
	}
	return types
}

// ParseSheetType validates a --sheet-map type name.
func (c *Catalog) ParseSheetType(name string) (SheetType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := c.ByType(SheetType(name)); ok {
		return SheetType(name), nil
	}
	return "", apperrors.ConfigError(
		fmt.Sprintf("unknown sheet type '%s'. Valid: %s", name, strings.Join(c.Types(), ", ")), "sheet-map")
}

// DetectSheetType guesses a sheet's type from its name.
func DetectSheetType(sheetName string) (SheetType, bool) {
	lower := strings.ToLower(strings.TrimSpace(sheetName))
	switch {
	case strings.Contains(lower, "publisher") && !strings.Contains(lower, "managed"):
		return SheetPublishers, true
	case strings.Contains(lower, "spend"):
		return SheetSpend, true
	case strings.Contains(lower, "risk"):
		return SheetRisks, true
	case strings.Contains(lower, "title") || strings.Contains(lower, "managed"):
		return SheetTitles, true
	case strings.Contains(lower, "kpi") || strings.Contains(lower, "external"):
		return SheetKPIs, true
	}
	return "", false
}

func text(field string, aliases ...string) tabular.Rule {
	return tabular.Rule{Aliases: aliases, Field: field, Kind: tabular.KindText}
}

func currency(field string, aliases ...string) tabular.Rule {
	return tabular.Rule{Aliases: aliases, Field: field, Kind: tabular.KindCurrency}
}

func date(field string, aliases ...string) tabular.Rule {
	return tabular.Rule{Aliases: aliases, Field: field, Kind: tabular.KindDate}
}

func integer(field string, aliases ...string) tabular.Rule {
	return tabular.Rule{Aliases: aliases, Field: field, Kind: tabular.KindInteger}
}

// DefaultCatalog is the SLS MBR dataset.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Variable:   "defaultRawData",
		VersionKey: "datasetVersion",
		Sets: []SetSpec{
			{
				Type: SheetPublishers,
				Key:  KeyPublishers,
				Schema: tabular.Schema{
					Name: KeyPublishers,
					Rules: []tabular.Rule{
						integer("id", "id", "publisher id"),
						text("name", "name", "publisher name", "publisher"),
						text("title", "title", "product", "product title", "software"),
						text("type", "type", "license type", "lic type"),
						text("contact", "contact", "owner", "manager"),
						date("renewalDate", "renewal date", "renewal", "renew date", "expiry", "expiration"),
						text("status", "status"),
						currency("savingsAmount", "savings amount", "savings", "saving"),
						text("savingsType", "savings type", "saving type"),
					},
				},
				Hints:    []string{"id", "name", "title", "type", "contact", "renewalDate", "status", "savingsAmount", "savingsType"},
				MergeKey: []string{"name"},
				IDField:  "id",
			},
			{
				Type: SheetSpend,
				Key:  KeySpend,
				Schema: tabular.Schema{
					Name: KeySpend,
					Rules: []tabular.Rule{
						text("publisher", "publisher", "name", "publisher name"),
						currency("companySpend", "company spend", "company", "total spend", "org spend"),
						currency("msdSpend", "msd spend", "msd", "ms dev"),
						currency("tiamSpend", "tiam spend", "ti&m spend", "ti&m", "tiam", "ti and m"),
						text("fiscalYear", "fiscal year", "fy", "year"),
						text("notes", "notes", "note", "comments"),
					},
				},
				Hints:    []string{"publisher", "companySpend", "msdSpend", "tiamSpend", "fiscalYear", "notes"},
				MergeKey: []string{"publisher"},
			},
			{
				Type: SheetRisks,
				Key:  KeyRisks,
				Schema: tabular.Schema{
					Name: KeyRisks,
					Rules: []tabular.Rule{
						text("publisher", "publisher", "name", "publisher name"),
						text("sspa", "sspa"),
						text("po", "po", "purchase order"),
						text("finance", "finance", "financial"),
						text("legal", "legal"),
						text("inventory", "inventory", "inv"),
						text("details", "details", "detail", "notes", "comments"),
					},
				},
				Hints:    []string{"publisher", "sspa", "po", "finance", "legal", "inventory", "details"},
				MergeKey: []string{"publisher"},
			},
			{
				Type: SheetTitles,
				Key:  KeyManagedTitles,
				Schema: tabular.Schema{
					Name: KeyManagedTitles,
					Rules: []tabular.Rule{
						text("title", "title", "managed title", "product", "software title"),
						text("publisher", "publisher", "publisher name", "vendor"),
						text("category", "category", "cat"),
						integer("licenseCount", "license count", "count", "qty", "quantity", "licenses"),
						text("notes", "notes", "note", "status", "comments"),
					},
					Primary: "title",
				},
				Hints:    []string{"title", "publisher", "category", "licenseCount", "notes"},
				MergeKey: []string{"title", "publisher"},
			},
			{
				Type: SheetKPIs,
				Key:  KeyExternalKPIs,
				Schema: tabular.Schema{
					Name: KeyExternalKPIs,
					Rules: []tabular.Rule{
						text("name", "name", "kpi", "kpi name", "metric"),
						currency("value", "value", "val", "amount", "count"),
						text("unit", "unit", "uom"),
						text("source", "source", "system", "data source"),
						date("lastUpdated", "last updated", "updated", "date", "as of"),
						text("notes", "notes", "note", "comments"),
					},
				},
				Hints:    []string{"name", "value", "unit", "source", "lastUpdated", "notes"},
				MergeKey: []string{"name"},
			},
		},
	}
}

// SheetMap is the repeatable --sheet-map SHEET=TYPE flag.
type SheetMap struct {
	catalog *Catalog
	entries map[string]SheetType
}

// NewSheetMap creates an empty map validated against catalog.
func NewSheetMap(catalog *Catalog) *SheetMap {
	return &SheetMap{catalog: catalog, entries: map[string]SheetType{}}
}

// String implements pflag.Value.
func (m *SheetMap) String() string {
	if m == nil || len(m.entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.entries))
	for sheet, t := range m.entries {
		parts = append(parts, sheet+"="+string(t))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Set implements pflag.Value.
func (m *SheetMap) Set(value string) error {
	sheet, typ, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(sheet) == "" {
		return apperrors.ConfigError(
			fmt.Sprintf("invalid sheet-map format (use SHEET=TYPE): %s", value), "sheet-map")
	}
	t, err := m.catalog.ParseSheetType(typ)
	if err != nil {
		return err
	}
	m.entries[strings.TrimSpace(sheet)] = t
	return nil
}

// Type implements pflag.Value.
func (m *SheetMap) Type() string {
	return "SHEET=TYPE"
}

// Lookup returns the explicit type for sheet.
func (m *SheetMap) Lookup(sheet string) (SheetType, bool) {
	if m == nil {
		return "", false
	}
	t, ok := m.entries[sheet]
	return t, ok
}
