package semantic

import (
	"encoding/json"
	"strings"
	"testing"

	"fabdrop/internal/artifact"
	apperrors "fabdrop/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder() *Builder {
	return &Builder{
		Model:       DefaultModel("SLS MBR"),
		WorkspaceID: "ws-1",
		LakehouseID: "lh-1",
		OneLakeURL:  "https://onelake.dfs.fabric.microsoft.com/",
	}
}

func TestDefaultModel(t *testing.T) {
	m := DefaultModel("SLS MBR")
	require.NoError(t, m.Validate())

	assert.Len(t, m.Tables, 6)
	assert.Len(t, m.Relationships, 3)
	assert.Len(t, m.Measures, 25)
	assert.Equal(t, TableSpend, m.MeasureTable)

	pub, ok := m.Table(TablePublisher)
	require.True(t, ok)
	assert.Equal(t, []string{"publisher_id", "name", "title", "type", "contact",
		"renewalDate", "status", "savingsAmount", "savingsType"}, pub.ColumnNames())

	_, ok = m.Table("missing")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Model)
		want   string
	}{
		{"empty name", func(m *Model) { m.Name = "" }, "name is empty"},
		{"bad source", func(m *Model) { m.Relationships[0].FromColumn = "nope" }, "source fact_Spend.nope"},
		{"bad target", func(m *Model) { m.Relationships[1].ToTable = "dim_Nope" }, "target dim_Nope.name"},
		{"bad measure table", func(m *Model) { m.MeasureTable = "x" }, "measure table"},
		{"duplicate measure", func(m *Model) { m.Measures = append(m.Measures, m.Measures[0]) }, "duplicate measure"},
		{"duplicate table", func(m *Model) { m.Tables = append(m.Tables, m.Tables[0]) }, "duplicate table"},
		{"duplicate column", func(m *Model) {
			m.Tables[0].Columns = append(m.Tables[0].Columns, m.Tables[0].Columns[0])
		}, "duplicate column dim_Publisher.publisher_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultModel("SLS MBR")
			tt.mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDataType(t *testing.T) {
	assert.Equal(t, "dateTime", DateTime.TMDL())
	assert.Equal(t, "int64", Int64.TMDL())
	assert.Equal(t, "string", DataType("Decimal").TMDL())
	assert.True(t, Double.Numeric())
	assert.False(t, String.Numeric())
}

func TestBuildFileLayout(t *testing.T) {
	files, err := testBuilder().Build()
	require.NoError(t, err)

	assert.Equal(t, []string{
		".platform",
		"definition.pbism",
		"definition/database.tmdl",
		"definition/expressions.tmdl",
		"definition/model.tmdl",
		"definition/relationships.tmdl",
		"definition/tables/dim_Date.tmdl",
		"definition/tables/dim_ManagedTitle.tmdl",
		"definition/tables/dim_Publisher.tmdl",
		"definition/tables/fact_ExternalKPI.tmdl",
		"definition/tables/fact_Risk.tmdl",
		"definition/tables/fact_Spend.tmdl",
	}, files.Paths())

	assert.Equal(t, "database\n\tcompatibilityLevel: 1604\n", string(files["definition/database.tmdl"]))

	var platform Platform
	require.NoError(t, json.Unmarshal(files[".platform"], &platform))
	assert.Equal(t, "SemanticModel", platform.Metadata.Type)
	assert.Equal(t, "SLS MBR", platform.Metadata.DisplayName)
	assert.Equal(t, artifact.ID("sm_SLS MBR"), platform.Config.LogicalID)

	var def map[string]interface{}
	require.NoError(t, json.Unmarshal(files["definition.pbism"], &def))
	assert.Equal(t, "4.2", def["version"])
	assert.Equal(t, map[string]interface{}{}, def["settings"])
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := testBuilder().Build()
	require.NoError(t, err)
	b, err := testBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other := testBuilder()
	other.Model = DefaultModel("Other")
	c, err := other.Build()
	require.NoError(t, err)
	assert.NotEqual(t, string(a["definition/tables/dim_Date.tmdl"]), string(c["definition/tables/dim_Date.tmdl"]))
}

func TestModelAndExpressions(t *testing.T) {
	files, err := testBuilder().Build()
	require.NoError(t, err)

	model := string(files["definition/model.tmdl"])
	assert.True(t, strings.HasPrefix(model, "model Model\n\tculture: en-US\n"))
	assert.Contains(t, model, "ref table dim_Publisher\nref table dim_Date\nref table fact_Spend\n")
	assert.True(t, strings.HasSuffix(model, "ref expression 'DirectLake - lakehouse'\n\nref cultureInfo en-US\n"))

	expr := string(files["definition/expressions.tmdl"])
	assert.Contains(t, expr,
		`AzureStorage.DataLake("https://onelake.dfs.fabric.microsoft.com/ws-1/lh-1", [HierarchicalNavigation=true])`)
	assert.Contains(t, expr, "\tannotation PBI_IncludeFutureArtifacts = False\n")
}

func TestRelationships(t *testing.T) {
	files, err := testBuilder().Build()
	require.NoError(t, err)

	rel := string(files["definition/relationships.tmdl"])
	blocks := strings.Split(strings.TrimSuffix(rel, "\n"), "\n\n")
	require.Len(t, blocks, 3)
	assert.Contains(t, blocks[0], "\tfromColumn: fact_Spend.publisher\n\ttoColumn: dim_Publisher.name")
	assert.Contains(t, blocks[2], "\tfromColumn: dim_ManagedTitle.publisher")

	b := testBuilder()
	b.Model.Relationships = []Relationship{{
		FromTable: TableRisk, FromColumn: "publisher", ToTable: TableSpend, ToColumn: "publisher",
		ManyToMany: true, BothDirections: true, Inactive: true,
	}}
	files, err = b.Build()
	require.NoError(t, err)
	rel = string(files["definition/relationships.tmdl"])
	assert.Contains(t, rel, "\tfromCardinality: many\n\ttoCardinality: many\n")
	assert.Contains(t, rel, "\tcrossFilteringBehavior: bothDirections\n\tisActive: false\n")
}

func TestTableTMDL(t *testing.T) {
	files, err := testBuilder().Build()
	require.NoError(t, err)

	date := string(files["definition/tables/dim_Date.tmdl"])
	assert.True(t, strings.HasPrefix(date, "table dim_Date\n\tlineageTag: "))
	assert.Contains(t, date, "\tsourceLineageTag: [dbo].[dim_Date]\n\n")
	assert.Contains(t, date, "\tcolumn date\n\t\tdataType: dateTime\n\t\tformatString: General Date\n")
	assert.Contains(t, date, "\tcolumn year\n\t\tdataType: int64\n\t\tformatString: 0\n")
	assert.Contains(t, date, "\tcolumn month_name\n\t\tdataType: string\n\t\tlineageTag: ")
	assert.Contains(t, date, "\t\tsummarizeBy: none\n\t\tsourceColumn: quarter\n\n\t\tannotation SummarizationSetBy = Automatic\n\n")
	assert.True(t, strings.HasSuffix(date,
		"\tpartition dim_Date = entity\n\t\tmode: directLake\n\t\tsource\n"+
			"\t\t\tentityName: dim_Date\n\t\t\texpressionSource: 'DirectLake - lakehouse'\n"))
	assert.NotContains(t, date, "measure ")

	spend := string(files["definition/tables/fact_Spend.tmdl"])
	assert.Equal(t, 25, strings.Count(spend, "\tmeasure '"))
	assert.Contains(t, spend, "\tmeasure 'Total TI&M Spend' = SUM(fact_Spend[tiamSpend])\n\t\tformatString: $#,##0\n")
	assert.Contains(t, spend, "\tmeasure 'Next Renewal Date' = CALCULATE(MIN(dim_Publisher[renewalDate]), "+
		"dim_Publisher[renewalDate] >= TODAY())\n\t\tformatString: M/d/yyyy\n")
	assert.Contains(t, spend, `"$" & FORMAT(Spend / 1000000, "0.00") & "M"`)
	assert.Contains(t, spend, "[Total Company Spend] RETURN IF(Spend >= 1000000, FORMAT(")
	// Measures without a format string go straight to their lineage tag.
	assert.Contains(t, spend, "\tmeasure 'Company Spend Fmt' = VAR Spend")
	idx := strings.Index(spend, "\tmeasure 'Company Spend Fmt'")
	next := spend[idx:]
	next = next[strings.Index(next, "\n")+1:]
	assert.True(t, strings.HasPrefix(next, "\t\tlineageTag: "))
}

func TestQuoteName(t *testing.T) {
	assert.Equal(t, "Publisher''s Spend", quoteName("Publisher's Spend"))
}
