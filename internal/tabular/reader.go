// Package tabular turns spreadsheet and CSV rows into record sets by
// matching header names against alias rules and coercing cell values.
package tabular

import (
	"strings"

	"fabdrop/internal/dataset"
	apperrors "fabdrop/pkg/errors"
)

// Rule maps any of Aliases to the canonical Field.
type Rule struct {
	Aliases []string
	Field   string
	Kind    Kind
}

// Schema is an ordered rule list for one record set.
type Schema struct {
	// Name becomes the RecordSet name.
	Name  string
	Rules []Rule
	// Primary overrides the identifying field. When empty the first of
	// name, publisher and title present in Rules is used.
	Primary string
}

var primaryCandidates = []string{"name", "publisher", "title"}

// PrimaryField returns the field whose empty value drops a row, or "".
func (s Schema) PrimaryField() string {
	if s.Primary != "" {
		return s.Primary
	}
	for _, candidate := range primaryCandidates {
		for _, r := range s.Rules {
			if r.Field == candidate {
				return candidate
			}
		}
	}
	return ""
}

func (s Schema) rule(field string) (Rule, bool) {
	for _, r := range s.Rules {
		if r.Field == field {
			return r, true
		}
	}
	return Rule{}, false
}

// Options tunes coercion.
type Options struct {
	// SerialDates accepts bare spreadsheet serial numbers in date fields.
	SerialDates bool
}

// Cell identifies one value that was replaced by its kind's default.
// Row is 1-based and counts the header row.
type Cell struct {
	Row   int
	Field string
	Raw   string
}

// Result is the outcome of Read.
type Result struct {
	Set *dataset.RecordSet
	// Mapping is column index to canonical field.
	Mapping map[int]string
	// Unclaimed lists non-empty headers no rule matched.
	Unclaimed []string
	// Dropped counts data rows whose primary field was empty.
	Dropped int
	// Defaulted lists cells that could not be coerced.
	Defaulted []Cell
}

// Fields returns the mapped canonical fields in column order.
func (r *Result) Fields() []string {
	max := -1
	for idx := range r.Mapping {
		if idx > max {
			max = idx
		}
	}
	fields := make([]string, 0, len(r.Mapping))
	for i := 0; i <= max; i++ {
		if f, ok := r.Mapping[i]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// Skipped reports the rows and cells that were dropped or defaulted as a
// ValidationSkipped notice, or nil when nothing was skipped.
func (r *Result) Skipped() *apperrors.AppError {
	if r.Dropped == 0 && len(r.Defaulted) == 0 && len(r.Unclaimed) == 0 {
		return nil
	}
	return apperrors.Newf(apperrors.ErrCodeValidationSkipped,
		"%s: %d rows dropped, %d cells defaulted, %d columns unmapped",
		r.Set.Name, r.Dropped, len(r.Defaulted), len(r.Unclaimed)).
		WithSeverity(apperrors.SeverityWarning).
		WithContext("unmapped", strings.Join(r.Unclaimed, ", "))
}

// MapColumns resolves header cells to canonical fields, one column at a time
// in header order. A column takes the first unclaimed rule with an exact
// case-insensitive alias match, or failing that the first unclaimed rule with
// an alias that contains, or is contained in, the header. Each field is
// claimed by at most one column and the earliest column wins.
func MapColumns(headers []string, rules []Rule) map[int]string {
	mapping := make(map[int]string)
	claimed := make(map[string]bool)
	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}
		field := matchRule(h, rules, claimed, false)
		if field == "" {
			field = matchRule(h, rules, claimed, true)
		}
		if field != "" {
			mapping[i] = field
			claimed[field] = true
		}
	}
	return mapping
}

func matchRule(header string, rules []Rule, claimed map[string]bool, substring bool) string {
	for _, rule := range rules {
		if !claimed[rule.Field] && matchesAlias(header, rule.Aliases, substring) {
			return rule.Field
		}
	}
	return ""
}

func matchesAlias(header string, aliases []string, substring bool) bool {
	for _, alias := range aliases {
		a := strings.ToLower(alias)
		if header == a {
			return true
		}
		if substring && a != "" && (strings.Contains(header, a) || strings.Contains(a, header)) {
			return true
		}
	}
	return false
}

// Read converts rows into a RecordSet. The first row with a non-blank
// cell is the header; blank rows are skipped. Coercion never fails a row;
// the only rejection is an empty primary field.
func Read(rows [][]string, schema Schema, opts Options) (*Result, error) {
	if len(schema.Rules) == 0 {
		return nil, apperrors.ConfigError("schema has no column rules", schema.Name)
	}

	result := &Result{
		Set:     dataset.NewRecordSet(schema.Name),
		Mapping: map[int]string{},
	}

	headerAt := -1
	for i, row := range rows {
		if !blank(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return result, nil
	}

	headers := rows[headerAt]
	result.Mapping = MapColumns(headers, schema.Rules)
	for i, h := range headers {
		if _, ok := result.Mapping[i]; !ok && strings.TrimSpace(h) != "" {
			result.Unclaimed = append(result.Unclaimed, strings.TrimSpace(h))
		}
	}

	columns := make([]int, 0, len(result.Mapping))
	for i := range headers {
		if _, ok := result.Mapping[i]; ok {
			columns = append(columns, i)
		}
	}
	primary := schema.PrimaryField()

	for rowIdx := headerAt + 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if blank(row) {
			continue
		}

		rec := dataset.NewRecord()
		for _, col := range columns {
			field := result.Mapping[col]
			rule, _ := schema.rule(field)
			raw := ""
			if col < len(row) {
				raw = row[col]
			}
			value, ok := Coerce(raw, rule.Kind, opts)
			if !ok {
				result.Defaulted = append(result.Defaulted, Cell{Row: rowIdx + 1, Field: field, Raw: raw})
			}
			rec.Set(field, value)
		}

		if primary != "" && rec.String(primary) == "" {
			result.Dropped++
			continue
		}
		result.Set.Append(rec)
	}

	return result, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
