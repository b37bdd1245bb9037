package tabular

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	apperrors "fabdrop/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"$13,644,684.70", 13644684.7, true},
		{"-", 0, true},
		{"$-", 0, true},
		{" $ - ", 0, true},
		{"", 0, true},
		{"1 000", 1000, true},
		{"€2,500.5", 2500.5, true},
		{"(1,200)", -1200, true},
		{"-350.25", -350.25, true},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseCurrency(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"10/24/2026 pending review", "2026-10-24", true},
		{"1/5/2026", "2026-01-05", true},
		{"2026-06-30", "2026-06-30", true},
		{"2026-06-30T00:00:00", "2026-06-30", true},
		{"not a date", "", false},
		{"13/45/2026", "", false},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseInteger(t *testing.T) {
	n, ok := ParseInteger("3.9")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	n, _ = ParseInteger("-2.7")
	assert.Equal(t, int64(-2), n)

	n, _ = ParseInteger("1,250")
	assert.Equal(t, int64(1250), n)

	n, ok = ParseInteger("lots")
	assert.False(t, ok)
	assert.Zero(t, n)

	for _, raw := range []string{"1e30", "-1e30", "99999999999999999999", "9223372036854775808"} {
		n, ok = ParseInteger(raw)
		assert.False(t, ok, raw)
		assert.Zero(t, n, raw)
	}

	n, ok = ParseInteger("-9223372036854775808")
	assert.True(t, ok)
	assert.Equal(t, int64(math.MinInt64), n)
}

func TestCoerceSerialDates(t *testing.T) {
	v, ok := Coerce("46203", KindDate, Options{})
	assert.False(t, ok)
	assert.Equal(t, "", v)

	v, ok = Coerce("46203", KindDate, Options{SerialDates: true})
	assert.True(t, ok)
	assert.Equal(t, "2026-06-30", v)

	v, _ = Coerce("  padded  ", KindText, Options{})
	assert.Equal(t, "padded", v)
}

func TestMapColumnsResolvesInHeaderOrder(t *testing.T) {
	rules := []Rule{{Aliases: []string{"publisher"}, Field: "publisher"}}
	mapping := MapColumns([]string{"Publisher Name", "Publisher"}, rules)
	assert.Equal(t, map[int]string{0: "publisher"}, mapping)

	rules = []Rule{
		{Aliases: []string{"spend"}, Field: "spend"},
		{Aliases: []string{"spend notes"}, Field: "notes"},
	}
	mapping = MapColumns([]string{"Spend Notes Extra", "Spend"}, rules)
	assert.Equal(t, map[int]string{0: "spend", 1: "notes"}, mapping)
}

func TestMapColumnsPrefersExactMatchWithinHeader(t *testing.T) {
	rules := []Rule{
		{Aliases: []string{"cost"}, Field: "cost"},
		{Aliases: []string{"cost center"}, Field: "costCenter"},
	}
	mapping := MapColumns([]string{"Cost Center", "Total Cost"}, rules)
	assert.Equal(t, map[int]string{0: "costCenter", 1: "cost"}, mapping)
}

func TestMapColumnsClaimsOnce(t *testing.T) {
	rules := []Rule{
		{Aliases: []string{"name", "publisher name", "publisher"}, Field: "name"},
		{Aliases: []string{"title", "product"}, Field: "title"},
	}
	mapping := MapColumns([]string{"Publisher", "Name", "", "Product Title"}, rules)
	assert.Equal(t, map[int]string{0: "name", 3: "title"}, mapping)
}

func TestRead(t *testing.T) {
	schema := Schema{
		Name: "publishers",
		Rules: []Rule{
			{Aliases: []string{"id", "publisher id"}, Field: "id", Kind: KindInteger},
			{Aliases: []string{"name", "publisher name", "publisher"}, Field: "name"},
			{Aliases: []string{"renewal date", "renewal"}, Field: "renewalDate", Kind: KindDate},
			{Aliases: []string{"savings amount", "savings"}, Field: "savingsAmount", Kind: KindCurrency},
		},
	}
	rows := [][]string{
		{"", "  "},
		{"Publisher ID", "Publisher Name", "Renewal Date", "Savings Amount", "Owner Notes"},
		{"1", " Adobe ", "6/30/2026", "$5,672,880.00", "x"},
		{},
		{"2", "", "2026-01-31", "-", ""},
		{"3", "Figma", "soon", "lots"},
	}

	result, err := Read(rows, schema, Options{})
	require.NoError(t, err)

	assert.Equal(t, "publishers", result.Set.Name)
	assert.Equal(t, []string{"Owner Notes"}, result.Unclaimed)
	assert.Equal(t, []string{"id", "name", "renewalDate", "savingsAmount"}, result.Fields())
	assert.Equal(t, 1, result.Dropped)
	require.Equal(t, 2, result.Set.Len())

	adobe := result.Set.Records[0]
	assert.Equal(t, "Adobe", adobe.String("name"))
	assert.Equal(t, "2026-06-30", adobe.String("renewalDate"))
	assert.Equal(t, 5672880.0, adobe.Float("savingsAmount"))
	id, _ := adobe.Get("id")
	assert.Equal(t, int64(1), id)

	figma := result.Set.Records[1]
	assert.Equal(t, "", figma.String("renewalDate"))
	assert.Equal(t, 0.0, figma.Float("savingsAmount"))
	assert.Equal(t, []Cell{
		{Row: 6, Field: "renewalDate", Raw: "soon"},
		{Row: 6, Field: "savingsAmount", Raw: "lots"},
	}, result.Defaulted)

	skipped := result.Skipped()
	require.NotNil(t, skipped)
	assert.Equal(t, apperrors.ErrCodeValidationSkipped, skipped.Code)
}

func TestReadEdgeCases(t *testing.T) {
	schema := Schema{Name: "kpis", Rules: []Rule{{Aliases: []string{"name"}, Field: "name"}}}

	result, err := Read(nil, schema, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Set.Len())
	assert.Nil(t, result.Skipped())

	_, err = Read(nil, Schema{Name: "empty"}, Options{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))

	assert.Equal(t, "publisher", Schema{Rules: []Rule{{Field: "title"}, {Field: "publisher"}}}.PrimaryField())
	assert.Equal(t, "title", Schema{Rules: []Rule{{Field: "value"}, {Field: "title"}}}.PrimaryField())
	assert.Equal(t, "title", Schema{Rules: []Rule{{Field: "name"}, {Field: "title"}}, Primary: "title"}.PrimaryField())
	assert.Equal(t, "", Schema{Rules: []Rule{{Field: "value"}}}.PrimaryField())
}

func TestDecode(t *testing.T) {
	text, enc, err := Decode([]byte("\xEF\xBB\xBFPublisher,Title\n"))
	require.NoError(t, err)
	assert.Equal(t, "utf-8-sig", enc)
	assert.Equal(t, "Publisher,Title\n", text)

	text, enc, err = Decode([]byte("Caf\xC3\xA9"))
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc)
	assert.Equal(t, "Café", text)

	text, enc, err = Decode([]byte("\x93quoted\x94 \x95 bullet"))
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", enc)
	assert.Equal(t, "“quoted” • bullet", text)

	assert.Equal(t, []string{"utf-8-sig", "utf-8", "windows-1252", "iso-8859-1"}, Encodings())
}

func TestParseCSVMultilineCells(t *testing.T) {
	data := []byte("Publisher,Title\n\"Adobe\",\"• Acrobat\n• Photoshop\"\nFigma,Figma\n")
	rows, enc, err := ParseCSV(data)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", enc)
	require.Len(t, rows, 3)
	assert.Equal(t, "• Acrobat\n• Photoshop", rows[1][1])
}

func TestReadCSVMissingFile(t *testing.T) {
	_, _, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.xlsx")
	err := WriteWorkbook(path, []OutputSheet{
		{Name: "Publishers", Rows: [][]interface{}{
			{"ID", "Publisher Name"},
			{1, "Example Publisher"},
		}},
		{Name: "Spend", Rows: [][]interface{}{
			{"Publisher", "Company Spend"},
			{"Example Publisher", 1000000},
		}},
	})
	require.NoError(t, err)

	wb, err := OpenWorkbook(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "Publishers", wb.Sheets[0].Name)
	assert.Equal(t, []string{"1", "Example Publisher"}, wb.Sheets[0].Rows[1])

	spend, ok := wb.Sheet("Spend")
	require.True(t, ok)
	assert.Equal(t, "1000000", spend.Rows[1][1])

	_, ok = wb.Sheet("Risks")
	assert.False(t, ok)

	assert.Error(t, WriteWorkbook(path, nil))
}

func TestOpenWorkbookRejectsLegacyXLS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.xls")
	require.NoError(t, os.WriteFile(path, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, 0600))

	_, err := OpenWorkbook(path)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMalformed))

	_, err = OpenWorkbook(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}
